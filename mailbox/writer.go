package mailbox

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/emersion/go-mbox"

	"github.com/migadu/listsearch/helpers"
	"github.com/migadu/listsearch/query"
)

// Writer appends messages to an mbox file, creating it if needed.
type Writer struct {
	mu   sync.Mutex
	f    *os.File
	w    *mbox.Writer
	path string
}

func OpenWriter(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open mbox %s: %w", path, err)
	}
	return &Writer{f: f, w: mbox.NewWriter(f), path: path}, nil
}

// Append writes msg with a "From " line built from its sender and date.
func (w *Writer) Append(msg *Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	when := time.Now()
	if d, ok := msg.Date(); ok {
		if t, err := query.ParseMessageDate(d); err == nil {
			when = t
		}
	}

	mw, err := w.w.CreateMessage(helpers.EnvelopeSender(msg.From()), when)
	if err != nil {
		return fmt.Errorf("failed to start message in %s: %w", w.path, err)
	}
	if _, err := mw.Write(msg.Raw()); err != nil {
		return fmt.Errorf("failed to write message to %s: %w", w.path, err)
	}
	return nil
}

func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.w.Close(); err != nil {
		w.f.Close()
		return err
	}
	return w.f.Close()
}
