package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestNew(t *testing.T) {
	m := New()
	if m == nil {
		t.Fatal("New() returned nil")
	}
	if m.registry == nil {
		t.Fatal("registry is nil")
	}
}

func TestRecordRequest(t *testing.T) {
	m := New()
	m.RecordRequest("chat", "ok", 50*time.Millisecond)
	m.RecordRequest("chat", "ok", 100*time.Millisecond)
	m.RecordRequest("chat", "error", 5*time.Millisecond)

	val := counterValue(t, m.RequestsTotal, "type", "chat", "outcome", "ok")
	if val != 2 {
		t.Errorf("expected 2 ok chat requests, got %f", val)
	}

	val = counterValue(t, m.RequestsTotal, "type", "chat", "outcome", "error")
	if val != 1 {
		t.Errorf("expected 1 errored chat request, got %f", val)
	}
}

func TestRecordToolCall(t *testing.T) {
	m := New()
	m.RecordToolCall("read_file", "ok")
	m.RecordToolCall("read_file", "ok")
	m.RecordToolCall("read_file", "error")

	val := counterValue(t, m.ToolCallsTotal, "plugin", "read_file", "outcome", "ok")
	if val != 2 {
		t.Errorf("expected 2 successful calls, got %f", val)
	}
	val = counterValue(t, m.ToolCallsTotal, "plugin", "read_file", "outcome", "error")
	if val != 1 {
		t.Errorf("expected 1 failed call, got %f", val)
	}
}

func TestRecordProviderTimeout(t *testing.T) {
	m := New()
	m.RecordProviderTimeout("quantized")
	m.RecordProviderTimeout("quantized")

	val := counterValue(t, m.ProviderTimeouts, "backend", "quantized")
	if val != 2 {
		t.Errorf("expected 2 timeouts, got %f", val)
	}
}

func TestTrackConnection(t *testing.T) {
	m := New()

	done := m.TrackConnection()

	var metric dto.Metric
	if err := m.ActiveConnections.Write(&metric); err != nil {
		t.Fatalf("failed to read gauge: %v", err)
	}
	if metric.GetGauge().GetValue() != 1 {
		t.Errorf("expected 1 active connection, got %f", metric.GetGauge().GetValue())
	}

	done()

	if err := m.ActiveConnections.Write(&metric); err != nil {
		t.Fatalf("failed to read gauge: %v", err)
	}
	if metric.GetGauge().GetValue() != 0 {
		t.Errorf("expected 0 active connections after release, got %f", metric.GetGauge().GetValue())
	}
}

func TestSetIndexedDocuments(t *testing.T) {
	m := New()
	m.SetIndexedDocuments(42)

	var metric dto.Metric
	if err := m.IndexedDocuments.Write(&metric); err != nil {
		t.Fatalf("failed to read gauge: %v", err)
	}
	if metric.GetGauge().GetValue() != 42 {
		t.Errorf("expected 42 indexed documents, got %f", metric.GetGauge().GetValue())
	}
}

func TestHandler(t *testing.T) {
	m := New()
	m.RecordRequest("chat", "ok", 10*time.Millisecond)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}

	body := rec.Body.String()
	if !strings.Contains(body, "nucleus_requests_total") {
		t.Error("metrics output missing nucleus_requests_total")
	}
	if !strings.Contains(body, "nucleus_request_duration_seconds") {
		t.Error("metrics output missing nucleus_request_duration_seconds")
	}
	if !strings.Contains(body, "go_goroutines") {
		t.Error("metrics output missing go runtime metrics")
	}
}

// counterValue extracts the value of a counter with the given label pairs.
func counterValue(t *testing.T, cv *prometheus.CounterVec, labelPairs ...string) float64 {
	t.Helper()
	labels := prometheus.Labels{}
	for i := 0; i < len(labelPairs); i += 2 {
		labels[labelPairs[i]] = labelPairs[i+1]
	}
	counter, err := cv.GetMetricWith(labels)
	if err != nil {
		t.Fatalf("failed to get metric: %v", err)
	}
	var metric dto.Metric
	if err := counter.Write(&metric); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	return metric.GetCounter().GetValue()
}
