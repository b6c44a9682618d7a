package main

import (
	"fmt"
	"io"
)

func printUsage(w io.Writer) {
	fmt.Fprint(w, `Usage: listsearch [OPTIONS] ARCHIVE FILTER...
Search Mailman list archives.

ARCHIVE is the URL of a pipermail archive index, or a local mbox file
(gzip-compressed if it ends in .gz). Archives are searched in index order,
most recent first unless -oldest-first is given.

Options:
  -c                Clear the archive cache instead of searching
  -o PATH           Append matches to the mbox file at PATH
  -x COMMAND        Run COMMAND with sh -c for each match, message on stdin
  -t                Threaded: also match replies to matching messages
  -q                Do not print matches
  -html             Search text/html bodies as plain text
  -oldest-first     Search the oldest archive first
  -no-cache         Do not read or write the archive cache
  -metrics ADDR     Serve Prometheus metrics on ADDR while searching
  -loglevel LEVEL   debug, info, warn or error
  -config PATH      Configuration file (default ~/.config/listsearch/config.toml)
  -h                This help message

Filters:
Filters take the form FIELD OPERATION [VALUE]. FIELD names a header, or
"body" for the message text. Prefix a filter with "not" or "!" to negate it.

Operations:
  is, equals, eq, ==      FIELD equals VALUE exactly
  contains, ~=            FIELD contains VALUE, or matches it as a
                          regular expression
  present, available      FIELD exists (takes no VALUE)
  before, earlier         message Date is before VALUE
  after, since            message Date is at or after VALUE

"before DATE" and "after DATE" may also be written without a field.

Filters written one after another must all match. Join filters with "or"
or "|" to accept either; "or" binds tighter than the implicit "and". The
words "and" and "&" start a new group that must also match.

Examples:
  listsearch https://lists.example.org/pipermail/dev/ subject is Hello \
      from contains phil or from contains paul
  listsearch -t -o thread.mbox dev.mbox.gz subject contains "release plan"
  listsearch https://lists.example.org/pipermail/dev/ not from contains spam \
      after 2024-01-01

Exit status is 0 when something matched, 1 when nothing did and 2 on error.
`)
}
