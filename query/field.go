package query

import (
	"fmt"
	"regexp"
	"strings"
)

// Policy decides how a FieldMatch turns its raw comparison into a result.
type Policy int

const (
	// RequireExact only accepts a field equal to the pattern.
	RequireExact Policy = iota
	// RequireAbsenceOfMatch accepts a field the pattern does not match in
	// any way, including a missing field.
	RequireAbsenceOfMatch
	// AcceptLooseMatch accepts equality, a regular expression hit or a
	// substring.
	AcceptLooseMatch
)

func (p Policy) String() string {
	switch p {
	case RequireExact:
		return "is"
	case RequireAbsenceOfMatch:
		return "not contains"
	case AcceptLooseMatch:
		return "contains"
	default:
		return "unknown"
	}
}

// Wildcard is the pattern used by the presence operation.
const Wildcard = ".*"

// FieldMatch compares one header, or the body, with a pattern.
type FieldMatch struct {
	Field   string
	Policy  Policy
	Pattern string

	// nil when Pattern is not a valid regular expression; the pattern is then
	// only compared literally.
	re *regexp.Regexp
}

func NewFieldMatch(field string, policy Policy, pattern string) *FieldMatch {
	fm := &FieldMatch{
		Field:   strings.ToLower(field),
		Policy:  policy,
		Pattern: pattern,
	}
	if policy != RequireExact {
		if re, err := regexp.Compile(pattern); err == nil {
			fm.re = re
		}
	}
	return fm
}

func (f *FieldMatch) Evaluate(msg Message, _ *ThreadState) MatchResult {
	candidate := Unmatched
	if text, ok := f.resolve(msg); ok {
		candidate = f.compare(text)
	}

	switch f.Policy {
	case RequireExact:
		if candidate != ExactMatch {
			return Unmatched
		}
	case RequireAbsenceOfMatch:
		if candidate == Unmatched {
			return ExactMatch
		}
		return Unmatched
	}
	return candidate
}

func (f *FieldMatch) compare(text string) MatchResult {
	switch {
	case text == f.Pattern:
		return ExactMatch
	case f.Policy == RequireExact:
		return Unmatched
	case f.re != nil && f.re.MatchString(text):
		return PatternMatch
	case strings.Contains(text, f.Pattern):
		return PartialMatch
	default:
		return Unmatched
	}
}

// resolve returns the text the pattern is compared with. The body of a
// multipart message is the body of its first part, followed down through
// nested multiparts; sibling parts are never consulted.
func (f *FieldMatch) resolve(msg Message) (string, bool) {
	if f.Field != BodyField {
		return msg.Field(f.Field)
	}
	for msg.IsMultipart() {
		part := msg.FirstBodyPart()
		if part == nil {
			return "", false
		}
		msg = part
	}
	return msg.BodyText(), true
}

func (f *FieldMatch) String() string {
	if f.Pattern == Wildcard && f.Policy != RequireExact {
		if f.Policy == RequireAbsenceOfMatch {
			return fmt.Sprintf("not %s present", f.Field)
		}
		return fmt.Sprintf("%s present", f.Field)
	}
	return fmt.Sprintf("%s %s %q", f.Field, f.Policy, f.Pattern)
}
