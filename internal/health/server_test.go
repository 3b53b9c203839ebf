package health

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"cosmossdk.io/log"
	"github.com/stretchr/testify/require"
)

func TestHealthzAlwaysOK(t *testing.T) {
	s := New(log.NewNopLogger(), ":0", func() bool { return false })

	rec := httptest.NewRecorder()
	s.handleHealthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReflectsReadyFunc(t *testing.T) {
	ready := false
	s := New(log.NewNopLogger(), ":0", func() bool { return ready })

	rec := httptest.NewRecorder()
	s.handleReadyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	ready = true
	rec = httptest.NewRecorder()
	s.handleReadyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzWithNilReadyFuncIsNotReady(t *testing.T) {
	s := New(log.NewNopLogger(), ":0", nil)

	rec := httptest.NewRecorder()
	s.handleReadyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
