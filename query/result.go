package query

// MatchResult is the outcome of evaluating a predicate against one message.
// Only Unmatched has a fixed meaning to callers; every other value includes
// the message.
type MatchResult int

const (
	Unmatched MatchResult = iota
	PartialMatch
	ExactMatch
	PatternMatch
)

// Matched reports whether r includes the message.
func (r MatchResult) Matched() bool {
	return r != Unmatched
}

func (r MatchResult) String() string {
	switch r {
	case Unmatched:
		return "unmatched"
	case PartialMatch:
		return "partial"
	case ExactMatch:
		return "exact"
	case PatternMatch:
		return "pattern"
	default:
		return "unknown"
	}
}
