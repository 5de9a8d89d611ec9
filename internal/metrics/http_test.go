package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRouteLabel(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		path    string
		want    string
	}{
		{"pattern strips method", "POST /api/subscriptions/{id}/cancel", "/api/subscriptions/abc/cancel", "/api/subscriptions/{id}/cancel"},
		{"pattern without method", "/", "/nowhere", "/"},
		{"unmatched uuid replaced", "", "/api/subscriptions/6f1c2a9e-4b7d-4c3a-9e8f-1a2b3c4d5e6f/cancel", "/api/subscriptions/{id}/cancel"},
		{"unmatched plain path", "", "/api/usage", "/api/usage"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.path, nil)
			req.Pattern = tt.pattern
			if got := routeLabel(req); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestMiddleware_RecordsMatchedPattern(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/subscriptions/{id}/cancel", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	counter := HTTPRequestsTotal.WithLabelValues("POST", "/api/subscriptions/{id}/cancel", "404")
	before := testutil.ToFloat64(counter)

	rec := httptest.NewRecorder()
	Middleware(mux).ServeHTTP(rec, httptest.NewRequest("POST", "/api/subscriptions/sub-1/cancel", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if got := testutil.ToFloat64(counter) - before; got != 1 {
		t.Errorf("expected counter to increase by 1, got %v", got)
	}
}

func TestMiddleware_SkipsMetricsEndpoint(t *testing.T) {
	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	counter := HTTPRequestsTotal.WithLabelValues("GET", "/metrics", "200")
	before := testutil.ToFloat64(counter)

	Middleware(next).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/metrics", nil))

	if !called {
		t.Error("expected handler to be called")
	}
	if got := testutil.ToFloat64(counter); got != before {
		t.Errorf("expected /metrics to be skipped, counter went from %v to %v", before, got)
	}
}

func TestResponseWriter_KeepsFirstStatus(t *testing.T) {
	rw := newResponseWriter(httptest.NewRecorder())

	rw.Write([]byte("ok"))
	rw.WriteHeader(http.StatusInternalServerError)

	if rw.statusCode != http.StatusOK {
		t.Errorf("expected implicit 200 to stick, got %d", rw.statusCode)
	}
	if rw.bytesWritten != 2 {
		t.Errorf("expected 2 bytes written, got %d", rw.bytesWritten)
	}
}
