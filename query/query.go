package query

// Query is a compiled filter together with the thread state it accumulates.
type Query struct {
	root     Predicate
	threads  *ThreadState
	threaded bool
}

// Compile builds a Query from words as they were split on the command line.
func Compile(tokens []string, threaded bool) (*Query, error) {
	c := NewCompiler()
	for _, tok := range tokens {
		if err := c.Feed(tok); err != nil {
			return nil, err
		}
	}
	root, err := c.Finish(threaded)
	if err != nil {
		return nil, err
	}
	return &Query{root: root, threads: NewThreadState(), threaded: threaded}, nil
}

// Match evaluates the query against the next message of the stream.
func (q *Query) Match(msg Message) MatchResult {
	return q.root.Evaluate(msg, q.threads)
}

func (q *Query) Matches(msg Message) bool {
	return q.Match(msg).Matched()
}

func (q *Query) Root() Predicate {
	return q.root
}

func (q *Query) Threaded() bool {
	return q.threaded
}

// TrackedThreads returns how many message identifiers a threaded query is
// holding on to.
func (q *Query) TrackedThreads() int {
	return q.threads.Len()
}

func (q *Query) String() string {
	return q.root.String()
}
