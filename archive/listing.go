package archive

import (
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"golang.org/x/net/html"
)

// archiveSuffixes are the link targets treated as monthly archives.
var archiveSuffixes = []string{".txt.gz", ".txt"}

func isArchiveLink(href string) bool {
	p := strings.ToLower(href)
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	for _, s := range archiveSuffixes {
		if strings.HasSuffix(p, s) {
			return true
		}
	}
	return false
}

// IndexBase returns the URL archive links are resolved against. A Mailman
// index URL given without a trailing slash names a directory unless its
// last segment looks like a file.
func IndexBase(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("invalid archive URL %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid archive URL %q: scheme must be http or https", raw)
	}
	if !strings.HasSuffix(u.Path, "/") && !strings.Contains(path.Base(u.Path), ".") {
		u.Path += "/"
	}
	return u, nil
}

// ParseIndex returns the absolute URLs of archive links in an index page,
// in page order and without duplicates.
func ParseIndex(base *url.URL, page io.Reader) ([]string, error) {
	z := html.NewTokenizer(page)
	seen := make(map[string]bool)
	var links []string

	for {
		switch z.Next() {
		case html.ErrorToken:
			if err := z.Err(); err != io.EOF {
				return nil, fmt.Errorf("failed to parse archive index: %w", err)
			}
			return links, nil

		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			if string(name) != "a" || !hasAttr {
				continue
			}
			for {
				key, val, more := z.TagAttr()
				if string(key) == "href" && isArchiveLink(string(val)) {
					ref, err := url.Parse(strings.TrimSpace(string(val)))
					if err == nil {
						abs := base.ResolveReference(ref).String()
						if !seen[abs] {
							seen[abs] = true
							links = append(links, abs)
						}
					}
				}
				if !more {
					break
				}
			}
		}
	}
}
