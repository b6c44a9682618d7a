package query

import (
	"errors"
	"fmt"
)

// ErrCompilation is matched by every CompilationError.
var ErrCompilation = errors.New("query compilation failed")

// CompilationError reports why a list of words is not a valid query.
type CompilationError struct {
	// Pos is the 1-based index of the offending word, or 0 when the error
	// concerns the query as a whole.
	Pos    int
	Token  string
	Reason string
	Err    error
}

func (e *CompilationError) Error() string {
	msg := e.Reason
	if e.Pos > 0 {
		msg = fmt.Sprintf("%s %q at word %d", e.Reason, e.Token, e.Pos)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CompilationError) Is(target error) bool {
	return target == ErrCompilation
}

func (e *CompilationError) Unwrap() error {
	return e.Err
}
