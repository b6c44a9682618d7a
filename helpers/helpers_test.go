package helpers

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSize(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"1kb", 1000, false},
		{"1KiB", 1024, false},
		{" 5mb ", 5000000, false},
		{"1gb", 1000000000, false},
		{"", 0, true},
		{"lots", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseSize(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestParseDuration(t *testing.T) {
	d, err := ParseDuration("30d")
	require.NoError(t, err)
	assert.Equal(t, 30*24*time.Hour, d)

	d, err = ParseDuration("90s")
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, d)

	_, err = ParseDuration("xd")
	assert.Error(t, err)
	_, err = ParseDuration("soon")
	assert.Error(t, err)
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, ".sma_cache"), ExpandHome("~/.sma_cache"))
	assert.Equal(t, "/var/cache/x", ExpandHome("/var/cache/x"))
	assert.Equal(t, "~user/x", ExpandHome("~user/x"))
}

func TestEnvelopeSender(t *testing.T) {
	tests := map[string]string{
		"phil at example.org (Phil Example)": "phil@example.org",
		"Paul <paul@example.org>":            "paul@example.org",
		"mary@example.org":                   "mary@example.org",
		"":                                   "MAILER-DAEMON",
		"Some Name":                          "MAILER-DAEMON",
	}
	for in, want := range tests {
		assert.Equal(t, want, EnvelopeSender(in), in)
	}
}

func TestHTMLToText(t *testing.T) {
	got := HTMLToText("<p>Hello <b>world</b></p>")
	assert.Contains(t, got, "Hello world")
}

func TestSanitizeLine(t *testing.T) {
	tests := map[string]string{
		"plain subject":             "plain subject",
		"folded\r\n\tsubject":       "folded subject",
		"nul\x00byte":               "nulbyte",
		"bad \xff\xfe utf8":         "bad  utf8",
		"tab\tseparated":            "tab separated",
		"keeps � replacement": "keeps � replacement",
	}
	for in, want := range tests {
		assert.Equal(t, want, SanitizeLine(in), in)
	}
}
