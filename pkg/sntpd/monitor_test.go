package sntpd

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startTestMonitor(t *testing.T, srv *Server) *Monitor {
	t.Helper()
	mon := NewMonitor("127.0.0.1:0", srv)
	require.NoError(t, mon.Start())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = mon.Stop(ctx)
	})
	return mon
}

func TestMonitor_Health(t *testing.T) {
	srv := startTestServer(t, Config{})
	mon := startTestMonitor(t, srv)

	resp, err := http.Get("http://" + mon.Addr() + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy", body["status"])
}

func TestMonitor_Stats(t *testing.T) {
	srv := startTestServer(t, Config{})
	mon := startTestMonitor(t, srv)

	resp, err := http.Get("http://" + mon.Addr() + "/stats")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		ListenAddr string          `json:"listen_addr"`
		QueueDepth int             `json:"queue_depth"`
		Totals     MetricsSnapshot `json:"totals"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, srv.Addr(), body.ListenAddr)
	assert.Equal(t, 0, body.QueueDepth)
}

func TestMonitor_PrometheusMetrics(t *testing.T) {
	srv := startTestServer(t, Config{})
	mon := startTestMonitor(t, srv)

	resp, err := http.Get("http://" + mon.Addr() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	text := string(raw)
	assert.True(t, strings.Contains(text, "sntpd_requests_received_total"))
	assert.True(t, strings.Contains(text, "sntpd_replies_sent_total"))
	assert.True(t, strings.Contains(text, "sntpd_request_queue_depth"))
}

func TestMonitor_MethodNotAllowed(t *testing.T) {
	srv := startTestServer(t, Config{})
	mon := startTestMonitor(t, srv)

	resp, err := http.Post("http://"+mon.Addr()+"/health", "application/json", strings.NewReader("{}"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
