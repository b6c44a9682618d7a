package query

import "strings"

// ThreadState holds the identifiers of messages a threaded query has
// included so far. It only grows: nothing is evicted, so a long stream of
// matching messages costs memory proportional to its length.
type ThreadState struct {
	ids map[string]struct{}
}

func NewThreadState() *ThreadState {
	return &ThreadState{ids: make(map[string]struct{})}
}

func (s *ThreadState) Add(id string) {
	id = normalizeID(id)
	if id == "" {
		return
	}
	s.ids[id] = struct{}{}
}

func (s *ThreadState) Contains(id string) bool {
	id = normalizeID(id)
	if id == "" {
		return false
	}
	_, ok := s.ids[id]
	return ok
}

// Len returns the number of remembered identifiers.
func (s *ThreadState) Len() int {
	return len(s.ids)
}

func normalizeID(id string) string {
	return strings.Trim(strings.TrimSpace(id), "<>")
}

// ThreadedAndGroup is an AndGroup that also includes replies to messages it
// has already included.
type ThreadedAndGroup struct {
	AndGroup
}

// Evaluate records the identifier of every included message in st. A
// message the group does not match on its own is still included, as a
// PartialMatch, when its In-Reply-To names a recorded identifier; its own
// identifier is then recorded so the rest of the thread follows.
func (g *ThreadedAndGroup) Evaluate(msg Message, st *ThreadState) MatchResult {
	base := g.AndGroup.Evaluate(msg, st)
	if st == nil {
		return base
	}

	if base != Unmatched {
		if id, ok := msg.MessageID(); ok {
			st.Add(id)
		}
		return base
	}

	parent, ok := msg.InReplyTo()
	if !ok || !st.Contains(parent) {
		return Unmatched
	}
	if id, ok := msg.MessageID(); ok {
		st.Add(id)
	}
	return PartialMatch
}

func (g *ThreadedAndGroup) String() string {
	return "thread(" + g.AndGroup.String() + ")"
}
