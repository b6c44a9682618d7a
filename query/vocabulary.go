package query

import "strings"

type vocabulary map[string]struct{}

func words(ws ...string) vocabulary {
	v := make(vocabulary, len(ws))
	for _, w := range ws {
		v[w] = struct{}{}
	}
	return v
}

func (v vocabulary) has(word string) bool {
	_, ok := v[strings.ToLower(word)]
	return ok
}

var (
	negationWords = words("not", "!")
	andWords      = words("and", "&")
	orWords       = words("or", "|")

	presenceWords = words("present", "available")
	equalityWords = words("is", "equals", "eq", "==")
	looseWords    = words("contains", "~=")
	beforeWords   = words("before", "earlier")
	afterWords    = words("after", "since")
)

func isDateOperator(word string) bool {
	return beforeWords.has(word) || afterWords.has(word)
}
