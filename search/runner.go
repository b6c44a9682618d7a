// Package search runs a compiled query over the messages of a sequence of
// archives and hands matches to sinks.
//
// Archives are fetched ahead of the one being searched, but messages are
// always evaluated one at a time in archive order: threaded queries depend
// on seeing a message before its replies.
package search

import (
	"context"
	"errors"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"

	"github.com/migadu/listsearch/archive"
	"github.com/migadu/listsearch/logger"
	"github.com/migadu/listsearch/mailbox"
	"github.com/migadu/listsearch/pkg/metrics"
	"github.com/migadu/listsearch/query"
)

// Stats summarizes a finished run.
type Stats struct {
	Archives   int
	Messages   int
	Matches    int
	SinkErrors int
}

type Runner struct {
	source   archive.Source
	query    *query.Query
	sinks    []Sink
	prefetch int
	opts     mailbox.Options
}

// NewRunner creates a runner that keeps up to prefetch archives downloaded
// ahead of the one being searched.
func NewRunner(source archive.Source, q *query.Query, opts mailbox.Options, prefetch int, sinks ...Sink) *Runner {
	if prefetch < 1 {
		prefetch = 1
	}
	return &Runner{source: source, query: q, sinks: sinks, prefetch: prefetch, opts: opts}
}

type fetched struct {
	data []byte
	err  error
}

// Run searches every archive the source lists. A failed fetch aborts the
// run; a failed delivery is logged and counted.
func (r *Runner) Run(ctx context.Context) (Stats, error) {
	var stats Stats

	archives, err := r.source.List(ctx)
	if err != nil {
		return stats, err
	}
	logger.Debug("Running query", "query", r.query.String(), "archives", len(archives), "threaded", r.query.Threaded())

	parent := ctx
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	results := make([]chan fetched, len(archives))
	for i := range results {
		results[i] = make(chan fetched, 1)
	}
	slots := make(chan struct{}, r.prefetch)

	g.Go(func() error {
		for i, a := range archives {
			i, a := i, a
			select {
			case slots <- struct{}{}:
			case <-gctx.Done():
				return nil
			}
			g.Go(func() error {
				data, err := r.source.Fetch(gctx, a)
				if err != nil {
					err = fmt.Errorf("archive %s: %w", a.Name, err)
				}
				results[i] <- fetched{data: data, err: err}
				return err
			})
		}
		return nil
	})

	runErr := func() error {
		for i, a := range archives {
			var f fetched
			select {
			case f = <-results[i]:
			case <-gctx.Done():
				return nil
			}
			<-slots
			if f.err != nil {
				return f.err
			}

			if err := r.searchArchive(ctx, a, f.data, &stats); err != nil {
				return fmt.Errorf("archive %s: %w", a.Name, err)
			}
			stats.Archives++
		}
		return nil
	}()

	cancel()
	waitErr := g.Wait()
	switch {
	case runErr != nil:
		return stats, runErr
	case waitErr != nil && !errors.Is(waitErr, context.Canceled):
		return stats, waitErr
	case stats.Archives < len(archives):
		return stats, parent.Err()
	}
	return stats, nil
}

func (r *Runner) searchArchive(ctx context.Context, a archive.Archive, data []byte, stats *Stats) error {
	rc, err := archive.Decompress(data)
	if err != nil {
		return err
	}
	defer rc.Close()

	mr := mailbox.NewReader(rc, r.opts)
	matches := 0
	for {
		msg, err := mr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		stats.Messages++
		metrics.MessagesScanned.Inc()

		if !r.query.Matches(msg) {
			continue
		}
		matches++
		stats.Matches++
		metrics.MessagesMatched.Inc()
		r.deliver(ctx, msg, stats)
	}

	if r.query.Threaded() {
		metrics.ThreadsTracked.Set(float64(r.query.TrackedThreads()))
	}
	logger.Info("Searched archive", "archive", a.Name, "messages", mr.Count(), "matches", matches)
	return nil
}

func (r *Runner) deliver(ctx context.Context, msg *mailbox.Message, stats *Stats) {
	for _, s := range r.sinks {
		if err := s.Deliver(ctx, msg); err != nil {
			stats.SinkErrors++
			metrics.SinkErrors.WithLabelValues(s.Name()).Inc()
			logger.Warn("Failed to deliver match", "sink", s.Name(), "subject", msg.Subject(), "error", err)
		}
	}
}

// Close closes every sink, returning the first error.
func (r *Runner) Close() error {
	var first error
	for _, s := range r.sinks {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
