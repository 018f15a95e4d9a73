package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestServe_ExposesWorkerMetrics(t *testing.T) {
	listener := mustListen(t)
	addr := listener.Addr().String()
	listener.Close()

	registry := prometheus.NewRegistry()
	metrics := NewPrometheusMetrics(registry)
	metrics.SetActiveWorkers(2)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		errChan <- Serve(ctx, ServerOptions{
			Addr:     addr,
			Gatherer: registry,
			Health: func() HealthReport {
				return HealthReport{Status: "ok", Running: true, Workers: 2}
			},
		}, zap.NewNop())
	}()

	var body string
	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/metrics")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return false
		}
		body = string(data)
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 25*time.Millisecond)
	families := parseMetrics(t, body)
	active, ok := families["zapretd_active_workers"]
	require.True(t, ok)
	require.Len(t, active.GetMetric(), 1)
	assert.Equal(t, 2.0, active.GetMetric()[0].GetGauge().GetValue())

	resp, err := http.Get("http://" + addr + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()

	select {
	case err := <-errChan:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop in time")
	}
}

func TestServe_EmptyAddrDisabled(t *testing.T) {
	require.NoError(t, Serve(context.Background(), ServerOptions{}, nil))
}

func TestServe_PortInUse(t *testing.T) {
	listener := mustListen(t)
	defer listener.Close()

	err := Serve(context.Background(), ServerOptions{Addr: listener.Addr().String()}, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listen on metrics address")
}

func TestHealthHandler(t *testing.T) {
	var running atomic.Bool
	handler := healthHandler(func() HealthReport {
		if running.Load() {
			return HealthReport{Status: "ok", Running: true, Workers: 1}
		}
		return HealthReport{Status: "stopped"}
	})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	running.Store(true)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var report HealthReport
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&report))
	require.True(t, report.Running)
	require.Equal(t, 1, report.Workers)
}

func TestHealthHandler_NilSource(t *testing.T) {
	rec := httptest.NewRecorder()
	healthHandler(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func mustListen(t *testing.T) net.Listener {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("skip test due to listen error: %v", err)
	}
	return listener
}

func parseMetrics(t *testing.T, body string) map[string]*dto.MetricFamily {
	t.Helper()
	dec := expfmt.NewDecoder(strings.NewReader(body), expfmt.NewFormat(expfmt.TypeTextPlain))
	out := make(map[string]*dto.MetricFamily)
	for {
		family := &dto.MetricFamily{}
		if err := dec.Decode(family); err != nil {
			if errors.Is(err, io.EOF) {
				return out
			}
			require.NoError(t, err)
		}
		out[family.GetName()] = family
	}
}
