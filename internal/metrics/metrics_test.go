package metrics

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordSessionStart()
	m.RecordSessionState("idle", []string{"idle"})
	m.RecordSessionError("token")
	m.RecordTokenFetch(time.Second)
	m.RecordPartial()
	m.RecordCommitted()
	m.RecordFinalTranscript()
	m.RecordStaleCallback()
	m.RecordEvent("solve-start")
	m.RecordIgnoredEvent("solve-success", "malformed")
	m.RecordStage("queued", []string{"queued"})
	m.RecordCacheWrite("solution", false)
	m.RecordNotification("error")
	m.RecordGatewayEvent("reset-view")
}

func TestRecordersUpdateCollectors(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordSessionStart()
	m.RecordSessionStart()
	m.RecordSessionError("stream")
	m.RecordEvent("solve-start")
	m.RecordIgnoredEvent("solve-success", "malformed")
	m.RecordCacheWrite("solution", true)

	require.Equal(t, 2.0, testutil.ToFloat64(m.SessionStarts))
	require.Equal(t, 1.0, testutil.ToFloat64(m.SessionErrors.WithLabelValues("stream")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.PipelineEvents.WithLabelValues("solve-start")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.IgnoredEvents.WithLabelValues("solve-success", "malformed")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.CacheWrites.WithLabelValues("solution", "remove")))
}

func TestRecordStageIsExclusive(t *testing.T) {
	m := New(prometheus.NewRegistry())
	all := []string{"queued", "solving", "solved"}

	m.RecordStage("solving", all)
	m.RecordStage("solved", all)

	require.Equal(t, 0.0, testutil.ToFloat64(m.PipelineStage.WithLabelValues("queued")))
	require.Equal(t, 0.0, testutil.ToFloat64(m.PipelineStage.WithLabelValues("solving")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.PipelineStage.WithLabelValues("solved")))
}

func TestServerExposesMetricsAndHealth(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.RecordSessionStart()

	srv := NewServer("127.0.0.1:0", reg, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "cluely_session_starts_total 1")

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, "ok", rec.Body.String())
}

func TestServeStopsOnContextCancel(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := NewServer(listener.Addr().String(), prometheus.NewRegistry(), nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, listener) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + listener.Addr().String() + "/healthz")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return string(body) == "ok"
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("metrics server did not stop")
	}
}
