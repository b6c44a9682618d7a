package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/migadu/listsearch/config"
)

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(ArchivesFetched.WithLabelValues("cache"))
	ArchivesFetched.WithLabelValues("cache").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(ArchivesFetched.WithLabelValues("cache")))

	scanned := testutil.ToFloat64(MessagesScanned)
	MessagesScanned.Add(5)
	assert.Equal(t, scanned+5, testutil.ToFloat64(MessagesScanned))
}

func TestRouter(t *testing.T) {
	MessagesMatched.Inc()

	server := httptest.NewServer(NewRouter("/stats"))
	defer server.Close()

	resp, err := http.Get(server.URL + "/stats")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "listsearch_messages_matched_total")

	resp2, err := http.Get(server.URL + "/metrics")
	require.NoError(t, err)
	resp2.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp2.StatusCode)
}

func TestServer_ServeAndShutdown(t *testing.T) {
	s, err := Listen(config.MetricsConfig{Addr: "127.0.0.1:0"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()

	var resp *http.Response
	require.Eventually(t, func() bool {
		resp, err = http.Get("http://" + s.Addr() + "/metrics")
		return err == nil
	}, 2*time.Second, 20*time.Millisecond)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.True(t, strings.Contains(string(body), "listsearch_"))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
