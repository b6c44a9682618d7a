// Package query compiles search filters given as a flat list of words into a
// tree of predicates and evaluates that tree against mail messages.
//
// A filter is written as FIELD OPERATION [VALUE] clauses:
//
//	from contains phil or from contains paul
//	subject is Hello and not from contains spam
//	before 2020-01-01
//
// Clauses written next to each other are joined with AND. The words "or" and
// "|" join the clause before them and every clause after them into one OR
// group, until "and" or "&" starts a new AND group. The words "not" and "!"
// negate the next clause.
//
// # Operations
//
//   - is, equals, eq, ==: the field equals VALUE exactly
//   - contains, ~=: the field equals VALUE, matches it as a regular
//     expression, or contains it as a substring
//   - present, available: the field exists (no VALUE)
//   - before, earlier, after, since: compare the message Date header with
//     VALUE; these may be written without a field
//
// The field "body" selects the message text. For multipart messages only the
// first part is searched.
//
// # Threads
//
// A threaded query also includes messages whose In-Reply-To points at a
// message that was already included. Identifiers of included messages are
// remembered for the lifetime of the Query and never evicted, so memory grows
// with the number of included messages. Messages must be evaluated in the
// order they were written for replies to be picked up.
//
// A Query is not safe for concurrent use.
package query
