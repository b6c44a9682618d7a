package testutils

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"
)

// MessageSpec describes a test message. Empty fields are omitted from the
// header, except Date which defaults to a fixed timestamp.
type MessageSpec struct {
	From        string
	To          string
	Subject     string
	Date        string
	MessageID   string
	InReplyTo   string
	ContentType string
	Headers     map[string]string
	Body        string
}

const DefaultDate = "Mon, 15 Jan 2024 10:00:00 +0000"

// Bytes renders the message with LF line endings, as Mailman archives do.
func (m MessageSpec) Bytes() []byte {
	var b strings.Builder
	header := func(k, v string) {
		if v != "" {
			fmt.Fprintf(&b, "%s: %s\n", k, v)
		}
	}
	header("From", m.From)
	header("To", m.To)
	header("Subject", m.Subject)
	date := m.Date
	if date == "" {
		date = DefaultDate
	}
	if date != "-" {
		header("Date", date)
	}
	if m.MessageID != "" {
		header("Message-ID", "<"+m.MessageID+">")
	}
	if m.InReplyTo != "" {
		header("In-Reply-To", "<"+m.InReplyTo+">")
	}
	header("Content-Type", m.ContentType)

	keys := make([]string, 0, len(m.Headers))
	for k := range m.Headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		header(k, m.Headers[k])
	}

	b.WriteString("\n")
	b.WriteString(m.Body)
	if !strings.HasSuffix(m.Body, "\n") {
		b.WriteString("\n")
	}
	return []byte(b.String())
}

// Multipart returns a Content-Type value and body holding parts in order.
// Each part is a complete entity: its own header block, a blank line, then
// content.
func Multipart(subtype, boundary string, parts ...string) (contentType, body string) {
	var b strings.Builder
	b.WriteString("This is a multi-part message in MIME format.\n")
	for _, p := range parts {
		fmt.Fprintf(&b, "--%s\n%s\n", boundary, strings.TrimRight(p, "\n"))
	}
	fmt.Fprintf(&b, "--%s--\n", boundary)
	return fmt.Sprintf("multipart/%s; boundary=%q", subtype, boundary), b.String()
}

// Mbox concatenates raw messages into an mbox stream, escaping body lines
// that start with "From ".
func Mbox(msgs ...[]byte) []byte {
	var buf bytes.Buffer
	for _, raw := range msgs {
		buf.WriteString("From MAILER-DAEMON Mon Jan 15 10:00:00 2024\n")
		for _, line := range strings.SplitAfter(string(raw), "\n") {
			if strings.HasPrefix(line, "From ") {
				buf.WriteString(">")
			}
			buf.WriteString(line)
		}
		if !bytes.HasSuffix(raw, []byte("\n")) {
			buf.WriteString("\n")
		}
		buf.WriteString("\n")
	}
	return buf.Bytes()
}

// Gzip compresses data.
func Gzip(t testing.TB, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// WriteFile writes data under t.TempDir and returns the path.
func WriteFile(t testing.TB, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}
