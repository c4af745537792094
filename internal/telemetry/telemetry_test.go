package telemetry

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareRecordsRoutePattern(t *testing.T) {
	before := testutil.CollectAndCount(httpRequestDurationSeconds)

	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/data/{region}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/data/London", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Greater(t, testutil.CollectAndCount(httpRequestDurationSeconds), before)
}

func TestObserveCacheLookup(t *testing.T) {
	ObserveCacheLookup("regions", true)
	ObserveCacheLookup("regions", false)

	hits := testutil.ToFloat64(cacheLookupsTotal.WithLabelValues("regions", "hit"))
	require.GreaterOrEqual(t, hits, 1.0)
}

func TestObservePipelineRun(t *testing.T) {
	ObservePipelineRun("succeeded", 3*time.Second)

	runs := testutil.ToFloat64(pipelineRunsTotal.WithLabelValues("succeeded"))
	require.GreaterOrEqual(t, runs, 1.0)
}
