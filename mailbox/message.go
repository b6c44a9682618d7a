// Package mailbox decodes archived mail into values the query evaluator can
// inspect, and reads and writes mbox files.
package mailbox

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-message/textproto"

	"github.com/migadu/listsearch/consts"
	"github.com/migadu/listsearch/helpers"
	"github.com/migadu/listsearch/logger"
	"github.com/migadu/listsearch/query"
)

// Options controls how message bodies are presented to queries.
type Options struct {
	// HTMLToText renders text/html bodies as plain text before matching.
	HTMLToText bool
}

// Message is a parsed RFC 5322 message. It implements query.Message.
type Message struct {
	header mail.Header
	// body holds the encoded body unless decoded is set, in which case
	// the content transfer encoding and charset were already removed.
	body    []byte
	decoded bool
	raw     []byte
	opts    Options
}

var _ query.Message = (*Message)(nil)

// Parse splits raw into header and body. Only a header that cannot be
// read at all is an error; body problems surface as empty text.
func Parse(raw []byte, opts Options) (*Message, error) {
	br := bufio.NewReader(bytes.NewReader(raw))
	h, err := textproto.ReadHeader(br)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", consts.ErrMalformedMessage, err)
	}
	body, err := io.ReadAll(br)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", consts.ErrMalformedMessage, err)
	}
	return &Message{
		header: mail.Header{Header: message.Header{Header: h}},
		body:   body,
		raw:    raw,
		opts:   opts,
	}, nil
}

// Raw returns the message exactly as it was read.
func (m *Message) Raw() []byte {
	return m.raw
}

// Field returns the RFC 2047 decoded value of a header.
func (m *Message) Field(name string) (string, bool) {
	if !m.header.Has(name) {
		return "", false
	}
	v, err := m.header.Text(name)
	if err != nil {
		return m.header.Get(name), true
	}
	return v, true
}

func (m *Message) From() string {
	v, _ := m.Field("From")
	return v
}

func (m *Message) Subject() string {
	v, _ := m.Field("Subject")
	return v
}

func (m *Message) Date() (string, bool) {
	if !m.header.Has("Date") {
		return "", false
	}
	return strings.TrimSpace(m.header.Get("Date")), true
}

func (m *Message) MessageID() (string, bool) {
	if id, err := m.header.MessageID(); err == nil && id != "" {
		return id, true
	}
	return rawMsgID(m.header.Get("Message-Id"))
}

func (m *Message) InReplyTo() (string, bool) {
	if ids, err := m.header.MsgIDList("In-Reply-To"); err == nil && len(ids) > 0 {
		return ids[0], true
	}
	return rawMsgID(m.header.Get("In-Reply-To"))
}

// rawMsgID salvages an identifier from a header that failed strict parsing.
func rawMsgID(v string) (string, bool) {
	v = strings.TrimSpace(v)
	if i := strings.IndexByte(v, '<'); i >= 0 {
		if j := strings.IndexByte(v[i:], '>'); j > 0 {
			v = v[i+1 : i+j]
		}
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (m *Message) mediaType() string {
	t, _, err := m.header.ContentType()
	if err != nil {
		return "text/plain"
	}
	return t
}

func (m *Message) IsMultipart() bool {
	return strings.HasPrefix(m.mediaType(), "multipart/")
}

func (m *Message) entity() *message.Entity {
	e, err := message.New(m.header.Header, bytes.NewReader(m.body))
	if err != nil && !message.IsUnknownCharset(err) && !message.IsUnknownEncoding(err) {
		logger.Debug("Mailbox: body decoding problem", "error", err)
	}
	return e
}

// FirstBodyPart returns the first child of a multipart message. Later
// parts are never decoded.
func (m *Message) FirstBodyPart() query.Message {
	if !m.IsMultipart() {
		return nil
	}
	mr := m.entity().MultipartReader()
	if mr == nil {
		return nil
	}
	p, err := mr.NextPart()
	if err != nil && !message.IsUnknownCharset(err) && !message.IsUnknownEncoding(err) {
		logger.Debug("Mailbox: failed to read first body part", "error", err)
		return nil
	}
	if p == nil {
		return nil
	}
	body, err := io.ReadAll(p.Body)
	if err != nil {
		logger.Debug("Mailbox: failed to read first body part", "error", err)
	}
	return &Message{
		header:  mail.Header{Header: p.Header},
		body:    body,
		decoded: true,
		opts:    m.opts,
	}
}

// BodyText returns the decoded body. For a multipart message this is the
// undecoded multipart payload; callers descend with FirstBodyPart.
func (m *Message) BodyText() string {
	var text string
	if m.decoded || m.IsMultipart() {
		text = string(m.body)
	} else {
		b, err := io.ReadAll(m.entity().Body)
		if err != nil {
			logger.Debug("Mailbox: failed to decode body", "error", err)
		}
		text = string(b)
	}
	if m.opts.HTMLToText && m.mediaType() == "text/html" {
		return helpers.HTMLToText(text)
	}
	return text
}
