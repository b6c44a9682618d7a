package search

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/migadu/listsearch/helpers"
	"github.com/migadu/listsearch/mailbox"
)

// Sink receives every message that satisfies the query.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, msg *mailbox.Message) error
	Close() error
}

// Printer writes one "from (subject) date" line per match.
type Printer struct {
	mu sync.Mutex
	w  io.Writer
}

func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

func (p *Printer) Name() string { return "print" }

func (p *Printer) Deliver(_ context.Context, msg *mailbox.Message) error {
	date, _ := msg.Date()
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := fmt.Fprintf(p.w, "%s (%s) %s\n",
		helpers.SanitizeLine(msg.From()), helpers.SanitizeLine(msg.Subject()), helpers.SanitizeLine(date))
	return err
}

func (p *Printer) Close() error { return nil }

// MboxSink appends matches to an mbox file.
type MboxSink struct {
	w *mailbox.Writer
}

func NewMboxSink(path string) (*MboxSink, error) {
	w, err := mailbox.OpenWriter(path)
	if err != nil {
		return nil, err
	}
	return &MboxSink{w: w}, nil
}

func (s *MboxSink) Name() string { return "mbox" }

func (s *MboxSink) Deliver(_ context.Context, msg *mailbox.Message) error {
	return s.w.Append(msg)
}

func (s *MboxSink) Close() error { return s.w.Close() }

// ExecSink runs a shell command once per match with the raw message on
// standard input. The sender, subject and message id are also exported
// as LISTSEARCH_FROM, LISTSEARCH_SUBJECT and LISTSEARCH_MESSAGE_ID.
type ExecSink struct {
	command string
	stdout  io.Writer
	stderr  io.Writer
}

func NewExecSink(command string, stdout, stderr io.Writer) *ExecSink {
	return &ExecSink{command: command, stdout: stdout, stderr: stderr}
}

func (s *ExecSink) Name() string { return "exec" }

func (s *ExecSink) Deliver(ctx context.Context, msg *mailbox.Message) error {
	cmd := exec.CommandContext(ctx, "sh", "-c", s.command)
	cmd.Stdin = bytes.NewReader(msg.Raw())
	cmd.Stdout = s.stdout
	cmd.Stderr = s.stderr

	id, _ := msg.MessageID()
	cmd.Env = append(os.Environ(),
		"LISTSEARCH_FROM="+helpers.SanitizeLine(msg.From()),
		"LISTSEARCH_SUBJECT="+helpers.SanitizeLine(msg.Subject()),
		"LISTSEARCH_MESSAGE_ID="+helpers.SanitizeLine(id),
	)

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("command %q: %w", s.command, err)
	}
	return nil
}

func (s *ExecSink) Close() error { return nil }
