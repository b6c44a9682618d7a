package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/migadu/listsearch/archive"
	"github.com/migadu/listsearch/cache"
	"github.com/migadu/listsearch/config"
	"github.com/migadu/listsearch/logger"
	"github.com/migadu/listsearch/mailbox"
	"github.com/migadu/listsearch/pkg/metrics"
	"github.com/migadu/listsearch/pkg/retry"
	"github.com/migadu/listsearch/query"
	"github.com/migadu/listsearch/search"
)

// Exit codes
const (
	exitMatch   = 0
	exitNoMatch = 1
	exitError   = 2
)

const defaultConfigPath = "~/.config/listsearch/config.toml"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			printUsage(stdout)
			return exitMatch
		}
		fmt.Fprintf(stderr, "Error: %v\n\n", err)
		printUsage(stderr)
		return exitError
	}

	cfg, err := opts.loadConfig()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}

	logFile, err := logger.Initialize(cfg.Logging)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}
	if logFile != nil {
		defer logFile.Close()
	}

	// Compile before touching the network so typos fail fast.
	var q *query.Query
	if !opts.clear {
		q, err = query.Compile(opts.filter, cfg.Search.Threaded)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitError
		}
		logger.Debug("Compiled query", "query", q.String())
	}

	source, closeSource, err := newSource(cfg, opts.archive)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}
	defer closeSource()

	if opts.clear {
		if err := clearCache(ctx, source, stdout); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitError
		}
		return exitMatch
	}

	if cfg.Metrics.Addr != "" {
		srv, err := metrics.Listen(cfg.Metrics)
		if err != nil {
			fmt.Fprintf(stderr, "Error: metrics server: %v\n", err)
			return exitError
		}
		metricsCtx, stopMetrics := context.WithCancel(ctx)
		defer stopMetrics()
		go func() {
			if err := srv.Serve(metricsCtx); err != nil {
				logger.Error("Metrics server failed", "error", err)
			}
		}()
	}

	sinks, err := newSinks(cfg.Output, stdout, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}

	runner := search.NewRunner(source, q, mailbox.Options{HTMLToText: cfg.Search.HTMLToText}, cfg.HTTP.GetConcurrency(), sinks...)
	stats, runErr := runner.Run(ctx)
	if err := runner.Close(); err != nil {
		logger.Error("Failed to close output", "error", err)
		if runErr == nil {
			runErr = err
		}
	}
	logger.Info("Search finished", "archives", stats.Archives, "messages", stats.Messages, "matches", stats.Matches)

	if runErr != nil {
		fmt.Fprintf(stderr, "Error: %v\n", runErr)
		return exitError
	}
	if stats.Matches > 0 {
		return exitMatch
	}
	return exitNoMatch
}

// newSource picks the archive source for location. The returned function
// releases the cache, if one was opened.
func newSource(cfg config.Config, location string) (archive.Source, func(), error) {
	noop := func() {}
	if !archive.IsRemote(location) {
		return archive.NewFileSource(location), noop, nil
	}

	var c *cache.Cache
	if cfg.Cache.Enabled {
		capacity, err := cfg.Cache.GetCapacity()
		if err != nil {
			return nil, noop, err
		}
		maxObject, err := cfg.Cache.GetMaxObjectSize()
		if err != nil {
			return nil, noop, err
		}
		c, err = cache.New(cfg.Cache.GetPath(), capacity, maxObject)
		if err != nil {
			return nil, noop, err
		}
	}
	release := func() {
		if c != nil {
			c.Close()
		}
	}

	backoff, err := retry.FromConfig(cfg.Retry)
	if err != nil {
		release()
		return nil, noop, err
	}
	fetcher, err := archive.NewFetcher(cfg.HTTP, backoff, c)
	if err != nil {
		release()
		return nil, noop, err
	}
	src, err := archive.NewMailmanSource(location, fetcher, cfg.Search.OldestFirst)
	if err != nil {
		release()
		return nil, noop, err
	}
	return src, release, nil
}

func newSinks(cfg config.OutputConfig, stdout, stderr io.Writer) ([]search.Sink, error) {
	var sinks []search.Sink
	if cfg.Print {
		sinks = append(sinks, search.NewPrinter(stdout))
	}
	if cfg.Mbox != "" {
		s, err := search.NewMboxSink(cfg.Mbox)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, s)
	}
	if cfg.Exec != "" {
		sinks = append(sinks, search.NewExecSink(cfg.Exec, stdout, stderr))
	}
	return sinks, nil
}

// clearCache drops the cached copy of every listed archive.
func clearCache(ctx context.Context, source archive.Source, stdout io.Writer) error {
	archives, err := source.List(ctx)
	if err != nil {
		return err
	}
	for _, a := range archives {
		path, err := source.Forget(ctx, a)
		if err != nil {
			return err
		}
		if path != "" {
			fmt.Fprintf(stdout, "Removing [%s]\n", path)
		}
	}
	return nil
}
