package query

import "strings"

// AndGroup includes a message when every child does.
type AndGroup struct {
	Children []Predicate
}

func (g *AndGroup) Evaluate(msg Message, st *ThreadState) MatchResult {
	for _, child := range g.Children {
		if child.Evaluate(msg, st) == Unmatched {
			return Unmatched
		}
	}
	return ExactMatch
}

func (g *AndGroup) String() string {
	return joinChildren(g.Children, " and ")
}

func (g *AndGroup) add(p Predicate) { g.Children = append(g.Children, p) }

func (g *AndGroup) size() int { return len(g.Children) }

func (g *AndGroup) popLast() Predicate {
	if len(g.Children) == 0 {
		return nil
	}
	last := g.Children[len(g.Children)-1]
	g.Children = g.Children[:len(g.Children)-1]
	return last
}

// OrGroup includes a message when at least one child does.
type OrGroup struct {
	Children []Predicate
}

func (g *OrGroup) Evaluate(msg Message, st *ThreadState) MatchResult {
	for _, child := range g.Children {
		if child.Evaluate(msg, st) != Unmatched {
			return ExactMatch
		}
	}
	return Unmatched
}

func (g *OrGroup) String() string {
	return joinChildren(g.Children, " or ")
}

func (g *OrGroup) add(p Predicate) { g.Children = append(g.Children, p) }

func (g *OrGroup) size() int { return len(g.Children) }

func (g *OrGroup) popLast() Predicate {
	if len(g.Children) == 0 {
		return nil
	}
	last := g.Children[len(g.Children)-1]
	g.Children = g.Children[:len(g.Children)-1]
	return last
}

// clauseGroup is a group the compiler is still appending to.
type clauseGroup interface {
	Predicate
	add(Predicate)
	size() int
	popLast() Predicate
}

func joinChildren(children []Predicate, sep string) string {
	parts := make([]string, len(children))
	for i, c := range children {
		s := c.String()
		if _, ok := c.(clauseGroup); ok && len(children) > 1 {
			s = "(" + s + ")"
		}
		parts[i] = s
	}
	return strings.Join(parts, sep)
}
