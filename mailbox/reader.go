package mailbox

import (
	"errors"
	"fmt"
	"io"

	"github.com/emersion/go-mbox"

	"github.com/migadu/listsearch/logger"
	"github.com/migadu/listsearch/pkg/metrics"
)

// Reader yields the messages of an mbox stream in file order.
type Reader struct {
	r    *mbox.Reader
	opts Options
	n    int
}

func NewReader(r io.Reader, opts Options) *Reader {
	return &Reader{r: mbox.NewReader(r), opts: opts}
}

// Next returns the next message or io.EOF. Messages whose header cannot be
// parsed are logged and skipped.
func (r *Reader) Next() (*Message, error) {
	for {
		mr, err := r.r.NextMessage()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("failed to read mbox: %w", err)
		}
		r.n++

		raw, err := io.ReadAll(mr)
		if err != nil {
			return nil, fmt.Errorf("failed to read message %d: %w", r.n, err)
		}

		msg, err := Parse(raw, r.opts)
		if err != nil {
			logger.Warn("Mailbox: skipping unparseable message", "index", r.n, "error", err)
			metrics.MessagesSkipped.WithLabelValues("malformed").Inc()
			continue
		}
		return msg, nil
	}
}

// Count is the number of messages read so far, skipped ones included.
func (r *Reader) Count() int {
	return r.n
}
