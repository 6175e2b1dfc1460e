package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Record(t *testing.T) {
	m := New()
	m.TurnCompleted("responded", 2*time.Second)
	m.TurnCompleted("empty", time.Second)
	m.TranscriptResolved("batch")
	m.BatchSkipped()
	m.ConnectionOpened()
	m.ConnectionOpened()
	m.ConnectionClosed()

	if got := testutil.ToFloat64(m.turns.WithLabelValues("responded")); got != 1 {
		t.Fatalf("expected one responded turn, got %v", got)
	}
	if got := testutil.ToFloat64(m.activeConnections); got != 1 {
		t.Fatalf("expected one active connection, got %v", got)
	}
	if got := testutil.ToFloat64(m.batchSkipped); got != 1 {
		t.Fatalf("expected one skipped fallback, got %v", got)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "openclaw_voice_transcripts_total{source=\"batch\"} 1") {
		t.Fatalf("expected transcripts counter in exposition, got:\n%s", body)
	}
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.TurnCompleted("empty", time.Second)
	m.TranscriptResolved("none")
	m.SynthesisFailed()
	m.ConnectionRejected("invalid_key")
	m.ConnectionOpened()
	m.ConnectionClosed()
}
