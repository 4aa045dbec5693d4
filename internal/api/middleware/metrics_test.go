package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsMiddleware(t *testing.T) {
	httpRequestsTotal.Reset()
	httpRequestDuration.Reset()

	r := chi.NewRouter()
	r.Use(MetricsMiddleware())
	r.Get("/accounts/{accountID}", func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "accountID") == "404" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte("OK"))
	})

	for _, path := range []string{"/accounts/1", "/accounts/2", "/accounts/404"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	expected := `
		# HELP credit_engine_http_requests_total Total number of HTTP requests.
		# TYPE credit_engine_http_requests_total counter
		credit_engine_http_requests_total{method="GET",path="/accounts/{accountID}",status_code="200"} 2
		credit_engine_http_requests_total{method="GET",path="/accounts/{accountID}",status_code="404"} 1
	`
	assert.NoError(t, testutil.CollectAndCompare(httpRequestsTotal, strings.NewReader(expected)))
	assert.Equal(t, 2, testutil.CollectAndCount(httpRequestDuration))
}

func TestRoutePattern_OutsideRouter(t *testing.T) {
	assert.Equal(t, "unmatched", routePattern(httptest.NewRequest(http.MethodGet, "/anything", nil)))
}
