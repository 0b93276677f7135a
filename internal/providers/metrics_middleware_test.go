package providers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carebot/internal/structures"
)

type mockMetrics struct {
	requestEndpoint string
	requestStatus   int
	requestCalls    int
	durationCalls   int
}

func (m *mockMetrics) IncRequestsTotal(endpoint string, status int) {
	m.requestEndpoint = endpoint
	m.requestStatus = status
	m.requestCalls++
}
func (m *mockMetrics) ObserveRequestDuration(_ string, _ time.Duration) { m.durationCalls++ }
func (m *mockMetrics) IncCacheHits()                                    {}
func (m *mockMetrics) IncCacheMisses()                                  {}
func (m *mockMetrics) IncEvents(_ string)                               {}
func (m *mockMetrics) IncAnswersAccepted(_ string)                      {}
func (m *mockMetrics) IncAnswersRejected(_ string)                      {}
func (m *mockMetrics) IncExternalRoutes()                               {}
func (m *mockMetrics) IncClassifierFailures()                           {}
func (m *mockMetrics) IncStaleInteractions()                            {}
func (m *mockMetrics) ObserveClassifierDuration(_ time.Duration)        {}
func (m *mockMetrics) ObserveTransitionDuration(_ time.Duration)        {}

// accessTestLogger records the channel each line went to.
type accessTestLogger struct {
	cacheTestLogger
	infoTypes []TypeEnum
}

func (l *accessTestLogger) Infof(t TypeEnum, _ string, _ ...interface{}) {
	l.infoTypes = append(l.infoTypes, t)
}

func adminRoutes() []structures.Route {
	return []structures.Route{
		{Url: "/stats"},
		{Url: "/answers"},
		{Url: "/export"},
	}
}

func TestMetricsMiddleware_CapturesStatusAndEndpoint(t *testing.T) {
	metrics := &mockMetrics{}

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})

	mw := MetricsMiddleware(metrics, &accessTestLogger{}, adminRoutes(), handler)

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rr := httptest.NewRecorder()
	mw.ServeHTTP(rr, req)

	assert.Equal(t, 1, metrics.requestCalls)
	assert.Equal(t, "/stats", metrics.requestEndpoint)
	assert.Equal(t, http.StatusCreated, metrics.requestStatus)
	assert.Equal(t, 1, metrics.durationCalls)
}

func TestMetricsMiddleware_FoldsUnknownPaths(t *testing.T) {
	metrics := &mockMetrics{}

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	mw := MetricsMiddleware(metrics, &accessTestLogger{}, adminRoutes(), handler)

	req := httptest.NewRequest(http.MethodGet, "/does-not-exist", nil)
	rr := httptest.NewRecorder()
	mw.ServeHTTP(rr, req)

	assert.Equal(t, "other", metrics.requestEndpoint)
	assert.Equal(t, http.StatusNotFound, metrics.requestStatus)
}

func TestMetricsMiddleware_DefaultStatus200(t *testing.T) {
	metrics := &mockMetrics{}

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	mw := MetricsMiddleware(metrics, &accessTestLogger{}, adminRoutes(), handler)

	req := httptest.NewRequest(http.MethodGet, "/answers", nil)
	rr := httptest.NewRecorder()
	mw.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, metrics.requestStatus)
}

func TestMetricsMiddleware_WritesAccessLog(t *testing.T) {
	logger := &accessTestLogger{}
	mw := MetricsMiddleware(&mockMetrics{}, logger, adminRoutes(), dummyHandler())

	req := httptest.NewRequest(http.MethodGet, "/export", nil)
	mw.ServeHTTP(httptest.NewRecorder(), req)

	require.Len(t, logger.infoTypes, 1)
	assert.Equal(t, TypeGet, logger.infoTypes[0])
}

func TestStatusWriter_WriteHeader(t *testing.T) {
	rr := httptest.NewRecorder()
	sw := &statusWriter{ResponseWriter: rr, status: http.StatusOK}

	sw.WriteHeader(http.StatusNotFound)
	assert.Equal(t, http.StatusNotFound, sw.status)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
