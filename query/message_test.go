package query

import "strings"

// fakeMessage is an in-memory Message for evaluator tests.
type fakeMessage struct {
	headers map[string]string
	body    string
	parts   []*fakeMessage
}

func newFakeMessage(kv ...string) *fakeMessage {
	m := &fakeMessage{headers: map[string]string{}}
	for i := 0; i+1 < len(kv); i += 2 {
		m.headers[strings.ToLower(kv[i])] = kv[i+1]
	}
	return m
}

func (m *fakeMessage) withBody(body string) *fakeMessage {
	m.body = body
	return m
}

func (m *fakeMessage) withParts(parts ...*fakeMessage) *fakeMessage {
	m.parts = parts
	return m
}

func (m *fakeMessage) Field(name string) (string, bool) {
	v, ok := m.headers[strings.ToLower(name)]
	return v, ok
}

func (m *fakeMessage) IsMultipart() bool { return len(m.parts) > 0 }

func (m *fakeMessage) FirstBodyPart() Message {
	if len(m.parts) == 0 {
		return nil
	}
	return m.parts[0]
}

func (m *fakeMessage) BodyText() string { return m.body }

func (m *fakeMessage) MessageID() (string, bool) { return m.Field("message-id") }

func (m *fakeMessage) InReplyTo() (string, bool) { return m.Field("in-reply-to") }

func (m *fakeMessage) Date() (string, bool) { return m.Field("date") }
