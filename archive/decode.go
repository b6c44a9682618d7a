package archive

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
)

var gzipMagic = []byte{0x1f, 0x8b}

// Decompress returns the mbox stream held in data, gunzipping it when it
// carries the gzip magic number. Servers disagree on Content-Encoding for
// .txt.gz files, so the bytes decide.
func Decompress(data []byte) (io.ReadCloser, error) {
	if !bytes.HasPrefix(data, gzipMagic) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open gzip archive: %w", err)
	}
	return zr, nil
}
