package helpers

import (
	"strings"

	"github.com/k3a/html2text"
)

// HTMLToText renders an HTML body as plain text for searching.
func HTMLToText(html string) string {
	return strings.TrimSpace(html2text.HTML2Text(html))
}

// EnvelopeSender turns a From header into an address usable on an mbox
// "From " line. Mailman archives obfuscate addresses as "user at host".
func EnvelopeSender(from string) string {
	from = strings.TrimSpace(from)
	if i := strings.IndexByte(from, '<'); i >= 0 {
		if j := strings.IndexByte(from[i:], '>'); j > 0 {
			from = from[i+1 : i+j]
		}
	}
	if i := strings.IndexByte(from, '('); i > 0 {
		from = strings.TrimSpace(from[:i])
	}
	from = strings.Replace(from, " at ", "@", 1)
	if from == "" || strings.ContainsAny(from, " \t") {
		return "MAILER-DAEMON"
	}
	return from
}
