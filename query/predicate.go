package query

// Predicate is a node of a compiled query.
//
// Evaluate must return one of the four MatchResult values. The thread state
// is only read or written by ThreadedAndGroup; every other predicate ignores
// it and may be evaluated with a nil state.
type Predicate interface {
	Evaluate(msg Message, st *ThreadState) MatchResult
	String() string
}
