package search

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/migadu/listsearch/archive"
	"github.com/migadu/listsearch/consts"
	"github.com/migadu/listsearch/mailbox"
	"github.com/migadu/listsearch/query"
	"github.com/migadu/listsearch/testutils"
)

// memorySource serves archives from memory with optional per-archive delay.
type memorySource struct {
	names  []string
	data   map[string][]byte
	delay  map[string]time.Duration
	fail   map[string]error
	mu     sync.Mutex
	served []string
}

func newMemorySource() *memorySource {
	return &memorySource{
		data:  map[string][]byte{},
		delay: map[string]time.Duration{},
		fail:  map[string]error{},
	}
}

func (s *memorySource) add(name string, data []byte) {
	s.names = append(s.names, name)
	s.data[name] = data
}

func (s *memorySource) List(context.Context) ([]archive.Archive, error) {
	var out []archive.Archive
	for _, n := range s.names {
		out = append(out, archive.Archive{Name: n, Location: "mem://" + n})
	}
	return out, nil
}

func (s *memorySource) Fetch(ctx context.Context, a archive.Archive) ([]byte, error) {
	select {
	case <-time.After(s.delay[a.Name]):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if err := s.fail[a.Name]; err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.served = append(s.served, a.Name)
	s.mu.Unlock()
	return s.data[a.Name], nil
}

func (s *memorySource) Forget(context.Context, archive.Archive) (string, error) {
	return "", nil
}

func compile(t *testing.T, threaded bool, words string) *query.Query {
	t.Helper()
	q, err := query.Compile(strings.Fields(words), threaded)
	require.NoError(t, err)
	return q
}

func msg(from, subject, id, parent string) []byte {
	return testutils.MessageSpec{
		From:      from,
		Subject:   subject,
		MessageID: id,
		InReplyTo: parent,
		Body:      "body of " + subject,
	}.Bytes()
}

func TestRunner_PrintsMatchesInOrder(t *testing.T) {
	src := newMemorySource()
	src.add("2024-February.txt.gz", testutils.Gzip(t, testutils.Mbox(
		msg("phil at example.org", "Release", "1@x", ""),
		msg("spam at example.org", "Buy now", "2@x", ""),
	)))
	src.add("2024-January.txt", testutils.Mbox(
		msg("paul at example.org", "Kernel", "3@x", ""),
	))
	// The newest archive is slow; output must still follow listing order.
	src.delay["2024-February.txt.gz"] = 30 * time.Millisecond

	var out bytes.Buffer
	r := NewRunner(src, compile(t, false, "from contains phil or from contains paul"), mailbox.Options{}, 3, NewPrinter(&out))
	stats, err := r.Run(context.Background())
	require.NoError(t, err)
	require.NoError(t, r.Close())

	assert.Equal(t, Stats{Archives: 2, Messages: 3, Matches: 2}, stats)
	assert.Equal(t,
		"phil at example.org (Release) "+testutils.DefaultDate+"\n"+
			"paul at example.org (Kernel) "+testutils.DefaultDate+"\n",
		out.String())
}

func TestRunner_ThreadedAcrossArchives(t *testing.T) {
	src := newMemorySource()
	src.add("2023-December.txt", testutils.Mbox(
		msg("phil at example.org", "Proposal", "root@x", ""),
		msg("anne at example.org", "Unrelated", "other@x", ""),
	))
	src.add("2024-January.txt", testutils.Mbox(
		msg("paul at example.org", "Re: Proposal", "reply@x", "root@x"),
		msg("anne at example.org", "Re: Re: Proposal", "reply2@x", "reply@x"),
		msg("bob at example.org", "Re: Unrelated", "r3@x", "other@x"),
	))

	var out bytes.Buffer
	q := compile(t, true, "from contains phil")
	r := NewRunner(src, q, mailbox.Options{}, 2, NewPrinter(&out))
	stats, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Matches)
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "(Proposal)")
	assert.Contains(t, lines[1], "(Re: Proposal)")
	assert.Contains(t, lines[2], "(Re: Re: Proposal)")
	assert.Equal(t, 3, q.TrackedThreads())
}

func TestRunner_FetchErrorAborts(t *testing.T) {
	src := newMemorySource()
	src.add("a.txt", testutils.Mbox(msg("x", "a", "", "")))
	src.add("b.txt", testutils.Mbox(msg("x", "b", "", "")))
	src.add("c.txt", testutils.Mbox(msg("x", "c", "", "")))
	src.fail["b.txt"] = fmt.Errorf("404: %w", consts.ErrFetchFailed)

	var out bytes.Buffer
	r := NewRunner(src, compile(t, false, "subject present"), mailbox.Options{}, 1, NewPrinter(&out))
	stats, err := r.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, consts.ErrFetchFailed)
	assert.Contains(t, err.Error(), "b.txt")
	assert.Equal(t, 1, stats.Archives)
	assert.Equal(t, "x (a) "+testutils.DefaultDate+"\n", out.String())
}

func TestRunner_Cancelled(t *testing.T) {
	src := newMemorySource()
	src.add("slow.txt", testutils.Mbox(msg("x", "a", "", "")))
	src.delay["slow.txt"] = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	r := NewRunner(src, compile(t, false, "subject present"), mailbox.Options{}, 1)
	_, err := r.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunner_EmptyArchive(t *testing.T) {
	src := newMemorySource()
	src.add("empty.txt", nil)

	r := NewRunner(src, compile(t, false, "subject present"), mailbox.Options{}, 1)
	stats, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Stats{Archives: 1}, stats)
}

func TestRunner_NoArchives(t *testing.T) {
	r := NewRunner(archive.NewFileSource(), compile(t, false, "subject present"), mailbox.Options{}, 1)
	_, err := r.Run(context.Background())
	assert.True(t, errors.Is(err, consts.ErrNoArchives))
}

func TestRunner_MboxAndExecSinks(t *testing.T) {
	dir := t.TempDir()
	mboxPath := filepath.Join(dir, "out.mbox")
	logPath := filepath.Join(dir, "exec.log")

	src := newMemorySource()
	src.add("a.txt", testutils.Mbox(
		msg("phil at example.org", "First", "1@x", ""),
		msg("paul at example.org", "Second", "2@x", ""),
	))

	mboxSink, err := NewMboxSink(mboxPath)
	require.NoError(t, err)
	execSink := NewExecSink(`printf '%s|%s\n' "$LISTSEARCH_SUBJECT" "$(grep -c '^Subject:')" >> '`+logPath+`'`, os.Stdout, os.Stderr)

	r := NewRunner(src, compile(t, false, "subject present"), mailbox.Options{}, 1, mboxSink, execSink)
	stats, err := r.Run(context.Background())
	require.NoError(t, err)
	require.NoError(t, r.Close())
	assert.Equal(t, 2, stats.Matches)
	assert.Zero(t, stats.SinkErrors)

	logged, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Equal(t, "First|1\nSecond|1\n", string(logged))

	f, err := os.Open(mboxPath)
	require.NoError(t, err)
	defer f.Close()
	rd := mailbox.NewReader(f, mailbox.Options{})
	var subjects []string
	for {
		m, err := rd.Next()
		if err != nil {
			break
		}
		subjects = append(subjects, m.Subject())
	}
	assert.Equal(t, []string{"First", "Second"}, subjects)
}

func TestRunner_SinkErrorsAreCounted(t *testing.T) {
	src := newMemorySource()
	src.add("a.txt", testutils.Mbox(msg("x", "a", "", ""), msg("y", "b", "", "")))

	var out bytes.Buffer
	r := NewRunner(src, compile(t, false, "subject present"), mailbox.Options{}, 1,
		NewExecSink("exit 3", &out, &out), NewPrinter(&out))
	stats, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Matches)
	assert.Equal(t, 2, stats.SinkErrors)
	assert.Contains(t, out.String(), "x (a)", "later sinks still run")
}

func TestRunner_HTMLToText(t *testing.T) {
	src := newMemorySource()
	src.add("a.txt", testutils.Mbox(testutils.MessageSpec{
		Subject:     "html",
		ContentType: "text/html",
		Body:        "<p>release <b>candidate</b></p>",
	}.Bytes()))

	for _, tt := range []struct {
		opts mailbox.Options
		want int
	}{
		{mailbox.Options{}, 0},
		{mailbox.Options{HTMLToText: true}, 1},
	} {
		q, err := query.Compile([]string{"body", "contains", "release candidate"}, false)
		require.NoError(t, err)
		stats, err := NewRunner(src, q, tt.opts, 1).Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, tt.want, stats.Matches, "html_to_text=%v", tt.opts.HTMLToText)
	}
}
