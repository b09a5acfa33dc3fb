package heartbeat

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestPinger(url string) *Pinger {
	p := NewPinger(url, time.Second, zerolog.Nop())
	p.retryDelay = time.Millisecond
	return p
}

func TestPingDeliversGet(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		require.Equal(t, http.MethodGet, r.Method)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := newTestPinger(srv.URL)
	require.NoError(t, p.Ping(context.Background()))
	require.Equal(t, int32(1), hits.Load())
}

func TestPingRetriesServerError(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := newTestPinger(srv.URL)
	require.NoError(t, p.Ping(context.Background()))
	require.Equal(t, int32(2), hits.Load())
}

func TestPingGivesUpAfterRetries(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := newTestPinger(srv.URL)
	err := p.Ping(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "max retries exceeded")
	require.Equal(t, int32(2), hits.Load())
}

func TestPingDoesNotRetryClientError(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	p := newTestPinger(srv.URL)
	err := p.Ping(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "ping rejected: 404")
	require.Equal(t, int32(1), hits.Load())
}

func TestPingDisabledWithoutURL(t *testing.T) {
	p := newTestPinger("")
	require.False(t, p.Enabled())
	require.NoError(t, p.Ping(context.Background()))
}
