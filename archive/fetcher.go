package archive

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/migadu/listsearch/cache"
	"github.com/migadu/listsearch/config"
	"github.com/migadu/listsearch/consts"
	"github.com/migadu/listsearch/logger"
	"github.com/migadu/listsearch/pkg/circuitbreaker"
	"github.com/migadu/listsearch/pkg/metrics"
	"github.com/migadu/listsearch/pkg/retry"
)

// Fetcher downloads archive files, reusing cached copies that are at least
// as new as the server's Last-Modified.
type Fetcher struct {
	client    *http.Client
	cache     *cache.Cache
	backoff   retry.BackoffConfig
	probe     *circuitbreaker.CircuitBreaker
	userAgent string
	username  string
	password  string
}

// NewFetcher builds a Fetcher. c may be nil to disable caching.
func NewFetcher(cfg config.HTTPConfig, backoff retry.BackoffConfig, c *cache.Cache) (*Fetcher, error) {
	timeout, err := cfg.GetTimeout()
	if err != nil {
		return nil, err
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	probe := circuitbreaker.New(circuitbreaker.Settings{
		Name:        "freshness-probe",
		MaxFailures: 3,
		Timeout:     time.Minute,
		OnStateChange: func(name string, from, to circuitbreaker.State) {
			logger.Warn("Circuit breaker changed state", "name", name, "from", from, "to", to)
		},
	})

	return &Fetcher{
		client:    &http.Client{Timeout: timeout, Transport: transport},
		cache:     c,
		backoff:   backoff,
		probe:     probe,
		userAgent: cfg.UserAgent,
		username:  cfg.Username,
		password:  cfg.Password,
	}, nil
}

func (f *Fetcher) newRequest(ctx context.Context, method, url string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, err
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	if f.username != "" {
		req.SetBasicAuth(f.username, f.password)
	}
	return req, nil
}

// Fetch returns the bytes at url, from the cache when it is fresh.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if f.cache != nil {
		if entry, err := f.cache.Stat(url); err == nil {
			if f.cacheIsFresh(ctx, url, entry.ModTime) {
				data, err := f.cache.Get(url)
				if err == nil {
					logger.Debug("Archive served from cache", "url", url, "path", entry.Path)
					metrics.ArchivesFetched.WithLabelValues("cache").Inc()
					return data, nil
				}
				logger.Warn("Failed to read cached archive, refetching", "url", url, "error", err)
			}
		} else if !errors.Is(err, consts.ErrNotCached) {
			logger.Warn("Failed to stat cached archive", "url", url, "error", err)
		}
	}

	data, err := f.Download(ctx, url)
	if err != nil {
		return nil, err
	}

	if f.cache != nil {
		if err := f.cache.Put(url, data); err != nil {
			logger.Warn("Failed to cache archive", "url", url, "error", err)
		} else if err := f.cache.PurgeIfNeeded(ctx); err != nil {
			logger.Warn("Failed to purge archive cache", "error", err)
		}
	}
	return data, nil
}

// cacheIsFresh asks the server when url last changed. A cached copy is
// kept when the server cannot say because HEAD failed, and refetched when
// the server answers without a Last-Modified. After repeated HEAD failures
// the probe is skipped for a while and the cache trusted outright.
func (f *Fetcher) cacheIsFresh(ctx context.Context, url string, cachedAt time.Time) bool {
	var lm string
	err := f.probe.Execute(func() error {
		req, err := f.newRequest(ctx, http.MethodHead, url)
		if err != nil {
			return err
		}
		resp, err := f.client.Do(req)
		if err != nil {
			return err
		}
		resp.Body.Close()
		if resp.StatusCode >= 300 {
			return fmt.Errorf("HEAD %s: %s", url, resp.Status)
		}
		lm = resp.Header.Get("Last-Modified")
		return nil
	})
	if err != nil {
		logger.Debug("Freshness check failed, trusting cache", "url", url, "error", err)
		return true
	}

	if lm == "" {
		return false
	}
	modified, err := http.ParseTime(lm)
	if err != nil {
		logger.Debug("Unparseable Last-Modified, refetching", "url", url, "value", lm)
		return false
	}
	return !cachedAt.Before(modified)
}

// Download fetches url from the network, retrying transient failures.
// Client errors (4xx) are not retried.
func (f *Fetcher) Download(ctx context.Context, url string) ([]byte, error) {
	start := time.Now()
	var data []byte

	err := retry.WithRetry(ctx, func() error {
		req, err := f.newRequest(ctx, http.MethodGet, url)
		if err != nil {
			return retry.Stop(err)
		}
		resp, err := f.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode >= 400 && resp.StatusCode < 500:
			return retry.Stop(fmt.Errorf("%s: %s: %w", url, resp.Status, consts.ErrFetchFailed))
		case resp.StatusCode >= 300:
			return fmt.Errorf("%s: %s: %w", url, resp.Status, consts.ErrFetchFailed)
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("%s: reading body: %w", url, err)
		}
		data = body
		return nil
	}, f.backoff)
	if err != nil {
		metrics.ArchiveFetchErrors.Inc()
		return nil, err
	}

	metrics.ArchiveFetchDuration.Observe(time.Since(start).Seconds())
	metrics.ArchiveBytes.Add(float64(len(data)))
	metrics.ArchivesFetched.WithLabelValues("network").Inc()
	logger.Info("Fetched archive", "url", url, "bytes", len(data), "duration", time.Since(start))
	return data, nil
}

// Forget drops the cached copy of url and returns where it was stored.
// Without a cache there is nothing to forget and the path is empty.
func (f *Fetcher) Forget(url string) (string, error) {
	if f.cache == nil {
		return "", nil
	}
	path := f.cache.PathForURL(url)
	return path, f.cache.Delete(url)
}
