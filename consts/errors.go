package consts

import "errors"

var (
	ErrNoArchives       = errors.New("no archives found")
	ErrMalformedMessage = errors.New("malformed message")
	ErrNotCached        = errors.New("not cached")
	ErrObjectTooLarge   = errors.New("object exceeds cache size limit")
	ErrFetchFailed      = errors.New("archive fetch failed")
)
