package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware())
	r.Get("/readings/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, id := range []string{"a", "b"} {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readings/"+id, http.NoBody))
	}

	got := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/readings/{id}", "404"))
	if got < 2 {
		t.Errorf("expected both requests under one route label, got %f", got)
	}
}

func TestMiddlewareUnmatched(t *testing.T) {
	h := Middleware()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", http.NoBody))

	if got := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "unmatched", "200")); got < 1 {
		t.Errorf("expected unmatched label, got %f", got)
	}
}

func TestObserveStage(t *testing.T) {
	before := testutil.CollectAndCount(StageDuration)
	ObserveStage("extract", time.Now())
	if after := testutil.CollectAndCount(StageDuration); after < before || after == 0 {
		t.Errorf("expected stage series, before=%d after=%d", before, after)
	}
}
