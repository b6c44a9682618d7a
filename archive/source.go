// Package archive locates and retrieves the mbox archives a search runs
// over: the monthly files linked from a Mailman pipermail index, or local
// mbox files.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/migadu/listsearch/consts"
	"github.com/migadu/listsearch/logger"
)

// Archive is one mbox file to search.
type Archive struct {
	// Name is the file name, used in logs.
	Name     string
	Location string
}

// Source lists archives and retrieves their raw, possibly compressed,
// bytes.
type Source interface {
	List(ctx context.Context) ([]Archive, error)
	Fetch(ctx context.Context, a Archive) ([]byte, error)
	// Forget removes any local copy of a and returns its path, or "" when
	// nothing is kept locally.
	Forget(ctx context.Context, a Archive) (string, error)
}

// IsRemote reports whether location should be read over HTTP.
func IsRemote(location string) bool {
	l := strings.ToLower(location)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://")
}

// MailmanSource reads a pipermail archive index.
type MailmanSource struct {
	base        *url.URL
	fetcher     *Fetcher
	oldestFirst bool
}

func NewMailmanSource(indexURL string, fetcher *Fetcher, oldestFirst bool) (*MailmanSource, error) {
	base, err := IndexBase(indexURL)
	if err != nil {
		return nil, err
	}
	return &MailmanSource{base: base, fetcher: fetcher, oldestFirst: oldestFirst}, nil
}

// List fetches the index page. It is never served from the cache since
// it changes whenever a new month starts.
func (s *MailmanSource) List(ctx context.Context) ([]Archive, error) {
	page, err := s.fetcher.Download(ctx, s.base.String())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch archive index: %w", err)
	}
	links, err := ParseIndex(s.base, bytes.NewReader(page))
	if err != nil {
		return nil, err
	}
	if len(links) == 0 {
		return nil, fmt.Errorf("%s: %w", s.base, consts.ErrNoArchives)
	}
	if s.oldestFirst {
		slices.Reverse(links)
	}

	archives := make([]Archive, len(links))
	for i, l := range links {
		name := l
		if u, err := url.Parse(l); err == nil {
			name = filepath.Base(u.Path)
		}
		archives[i] = Archive{Name: name, Location: l}
	}
	logger.Info("Listed archives", "index", s.base.String(), "count", len(archives))
	return archives, nil
}

func (s *MailmanSource) Fetch(ctx context.Context, a Archive) ([]byte, error) {
	return s.fetcher.Fetch(ctx, a.Location)
}

func (s *MailmanSource) Forget(_ context.Context, a Archive) (string, error) {
	return s.fetcher.Forget(a.Location)
}

// FileSource searches local mbox files, plain or gzip-compressed.
type FileSource struct {
	paths []string
}

func NewFileSource(paths ...string) *FileSource {
	return &FileSource{paths: paths}
}

func (s *FileSource) List(_ context.Context) ([]Archive, error) {
	if len(s.paths) == 0 {
		return nil, consts.ErrNoArchives
	}
	archives := make([]Archive, 0, len(s.paths))
	for _, p := range s.paths {
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("archive %s: %w", p, err)
		}
		archives = append(archives, Archive{Name: filepath.Base(p), Location: p})
	}
	return archives, nil
}

func (s *FileSource) Fetch(_ context.Context, a Archive) ([]byte, error) {
	data, err := os.ReadFile(a.Location)
	if err != nil {
		return nil, fmt.Errorf("failed to read archive: %w", err)
	}
	return data, nil
}

// Forget is a no-op: local files are never cached.
func (s *FileSource) Forget(context.Context, Archive) (string, error) {
	return "", nil
}
