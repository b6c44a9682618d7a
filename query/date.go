package query

import (
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// DateMatch compares the message Date header with a fixed instant.
type DateMatch struct {
	Threshold time.Time
	// Before selects messages strictly earlier than Threshold; otherwise
	// messages at or after Threshold are selected.
	Before bool
}

// NewDateMatch parses value as a free-form date. Dates without a zone are
// taken as UTC.
func NewDateMatch(value string, before bool) (*DateMatch, error) {
	t, err := dateparse.ParseAny(strings.TrimSpace(value))
	if err != nil {
		return nil, fmt.Errorf("unparseable date %q: %w", value, err)
	}
	return &DateMatch{Threshold: t, Before: before}, nil
}

// Evaluate returns Unmatched for messages without a readable Date header.
func (d *DateMatch) Evaluate(msg Message, _ *ThreadState) MatchResult {
	raw, ok := msg.Date()
	if !ok {
		return Unmatched
	}
	sent, err := ParseMessageDate(raw)
	if err != nil {
		return Unmatched
	}

	if d.Before {
		if d.Threshold.After(sent) {
			return ExactMatch
		}
		return Unmatched
	}
	if !d.Threshold.After(sent) {
		return ExactMatch
	}
	return Unmatched
}

func (d *DateMatch) String() string {
	op := "since"
	if d.Before {
		op = "before"
	}
	return fmt.Sprintf("date %s %s", op, d.Threshold.Format(time.RFC3339))
}

// ParseMessageDate parses an RFC 5322 date, falling back to free-form
// parsing for the odd formats found in old archives.
func ParseMessageDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := mail.ParseDate(s); err == nil {
		return t, nil
	}
	return dateparse.ParseAny(s)
}
