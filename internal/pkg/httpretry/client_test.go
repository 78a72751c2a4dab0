package httpretry

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flakyServer(t *testing.T, failures int32, failStatus int) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n <= failures {
			w.WriteHeader(failStatus)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestDoRetriesTransientStatus(t *testing.T) {
	srv, calls := flakyServer(t, 2, http.StatusServiceUnavailable)
	rc := NewRetryClient(nil, 3)
	rc.baseDelay = 1 // keep the test fast

	req, err := http.NewRequest("GET", srv.URL, nil)
	require.NoError(t, err)

	resp, err := rc.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(3), atomic.LoadInt32(calls))
}

func TestDoDoesNotRetryClientErrors(t *testing.T) {
	srv, calls := flakyServer(t, 5, http.StatusNotFound)
	rc := NewRetryClient(nil, 3)
	rc.baseDelay = 1

	req, err := http.NewRequest("GET", srv.URL, nil)
	require.NoError(t, err)

	resp, err := rc.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls), "4xx must not be retried")
}

func TestDoReturnsLastResponseWhenRetriesExhausted(t *testing.T) {
	srv, calls := flakyServer(t, 10, http.StatusInternalServerError)
	rc := NewRetryClient(nil, 2)
	rc.baseDelay = 1

	req, err := http.NewRequest("GET", srv.URL, nil)
	require.NoError(t, err)

	resp, err := rc.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, int32(3), atomic.LoadInt32(calls))
}
