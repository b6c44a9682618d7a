package query

import "strings"

// State is the position of the Compiler within a clause.
type State int

const (
	AwaitingField State = iota
	AwaitingOperator
	AwaitingValue
)

func (s State) String() string {
	switch s {
	case AwaitingField:
		return "awaiting field"
	case AwaitingOperator:
		return "awaiting operator"
	case AwaitingValue:
		return "awaiting value"
	default:
		return "unknown"
	}
}

// Compiler turns words into a predicate tree one word at a time.
type Compiler struct {
	state    State
	field    string
	operator string
	negate   bool
	pos      int

	current clauseGroup
	groups  []clauseGroup
}

func NewCompiler() *Compiler {
	return &Compiler{current: &AndGroup{}}
}

// State returns the state the next word will be read in.
func (c *Compiler) State() State {
	return c.state
}

// Feed consumes one word.
func (c *Compiler) Feed(token string) error {
	c.pos++

	if negationWords.has(token) {
		c.negate = true
		return nil
	}

	switch c.state {
	case AwaitingField:
		switch {
		case andWords.has(token):
			c.closeGroup()
			c.current = &AndGroup{}
		case orWords.has(token):
			c.openOr()
		case isDateOperator(token):
			c.field = DateField
			c.operator = strings.ToLower(token)
			c.state = AwaitingValue
		default:
			c.field = token
			c.state = AwaitingOperator
		}
		return nil

	case AwaitingOperator:
		c.operator = strings.ToLower(token)
		switch {
		case presenceWords.has(token):
			return c.emit(Wildcard)
		case equalityWords.has(token), looseWords.has(token), isDateOperator(token):
			c.state = AwaitingValue
			return nil
		default:
			return c.fail(token, "unrecognized operator", nil)
		}

	default:
		return c.emit(token)
	}
}

// emit builds the pending clause, appends it to the current group and
// resets the clause state.
func (c *Compiler) emit(value string) error {
	var p Predicate
	switch {
	case presenceWords.has(c.operator):
		if c.negate {
			p = NewFieldMatch(c.field, RequireAbsenceOfMatch, Wildcard)
		} else {
			p = NewFieldMatch(c.field, AcceptLooseMatch, Wildcard)
		}
	case equalityWords.has(c.operator):
		if c.negate {
			p = NewFieldMatch(c.field, RequireAbsenceOfMatch, value)
		} else {
			p = NewFieldMatch(c.field, RequireExact, value)
		}
	case looseWords.has(c.operator):
		if c.negate {
			p = NewFieldMatch(c.field, RequireAbsenceOfMatch, value)
		} else {
			p = NewFieldMatch(c.field, AcceptLooseMatch, value)
		}
	default:
		before := beforeWords.has(c.operator)
		if c.negate {
			before = !before
		}
		dm, err := NewDateMatch(value, before)
		if err != nil {
			return c.fail(value, "invalid date", err)
		}
		p = dm
	}

	c.current.add(p)
	c.field, c.operator, c.negate = "", "", false
	c.state = AwaitingField
	return nil
}

// openOr starts an OR group. The clause written just before the connective
// becomes its first operand, so OR binds tighter than the implicit AND
// between neighbouring clauses. An OR inside an OR group changes nothing.
func (c *Compiler) openOr() {
	if _, ok := c.current.(*OrGroup); ok {
		return
	}
	or := &OrGroup{}
	if last := c.current.popLast(); last != nil {
		or.add(last)
	}
	c.closeGroup()
	c.current = or
}

func (c *Compiler) closeGroup() {
	if c.current.size() > 0 {
		c.groups = append(c.groups, c.current)
	}
	c.current = nil
}

func (c *Compiler) fail(token, reason string, err error) error {
	return &CompilationError{Pos: c.pos, Token: token, Reason: reason, Err: err}
}

// Finish closes the last group and returns the root, a ThreadedAndGroup when
// threaded is set and an AndGroup otherwise. Its children are always the
// closed groups.
func (c *Compiler) Finish(threaded bool) (Predicate, error) {
	if c.state != AwaitingField {
		return nil, &CompilationError{Reason: "incomplete clause at end of query (" + c.state.String() + ")"}
	}
	c.closeGroup()
	if len(c.groups) == 0 {
		return nil, &CompilationError{Reason: "query has no clauses"}
	}

	root := &AndGroup{}
	for _, g := range c.groups {
		root.add(g)
	}
	if threaded {
		return &ThreadedAndGroup{AndGroup: *root}, nil
	}
	return root, nil
}
