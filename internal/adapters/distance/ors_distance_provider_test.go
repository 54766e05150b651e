package distance

import (
	"context"
	"encoding/json"
	"hos-dispatch-service/internal/platform/httpx"
	"hos-dispatch-service/internal/platform/logging"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestORS(t *testing.T, h http.Handler) *ORSDistanceProvider {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	client := httpx.New(2*time.Second, 0)
	client.Backoff = time.Millisecond

	p, err := NewORSDistanceProvider("test-key", logging.Discard(), WithBaseURL(srv.URL), WithHTTPClient(client))
	require.NoError(t, err)
	return p
}

func TestORSDistanceProviderCoordinateKeysSkipGeocode(t *testing.T) {
	var matrixCalls, geocodeCalls atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("/v2/matrix/driving-hgv", func(w http.ResponseWriter, r *http.Request) {
		matrixCalls.Add(1)
		assert.Equal(t, "test-key", r.Header.Get("Authorization"))

		var req matrixRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Len(t, req.Locations, 2)
		assert.Equal(t, []float64{-87.6298, 41.8781}, req.Locations[0])

		_, _ = w.Write([]byte(`{"distances":[[160934.4]],"durations":[[10800.4]]}`))
	})
	mux.HandleFunc("/geocode/search", func(w http.ResponseWriter, r *http.Request) {
		geocodeCalls.Add(1)
		http.Error(w, "unexpected", http.StatusBadRequest)
	})

	p := newTestORS(t, mux)
	r, err := p.GetDistance(context.Background(), "41.878100,-87.629800", "39.768400,-86.158100")
	require.NoError(t, err)
	require.Equal(t, 160934, r.DistanceMeters)
	require.Equal(t, 10800, r.DurationSeconds)
	require.EqualValues(t, 1, matrixCalls.Load())
	require.EqualValues(t, 0, geocodeCalls.Load())
}

func TestORSDistanceProviderGeocodesAddresses(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/geocode/search", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "US", r.URL.Query().Get("boundary.country"))
		_, _ = w.Write([]byte(`{"features":[{"geometry":{"coordinates":[-86.1581,39.7684]}}]}`))
	})
	mux.HandleFunc("/v2/matrix/driving-hgv", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"distances":[[1000]],"durations":[[60]]}`))
	})

	p := newTestORS(t, mux)
	r, err := p.GetDistance(context.Background(), "41.878100,-87.629800", "  Indianapolis,   IN ")
	require.NoError(t, err)
	require.Equal(t, 1000, r.DistanceMeters)
}

func TestORSDistanceProviderRejectsVagueGeocodes(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/geocode/search", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "address,street,venue", r.URL.Query().Get("layers"))
		_, _ = w.Write([]byte(`{"features":[{"geometry":{"coordinates":[-86.15,39.76]},"properties":{"label":"Indianapolis, IN, USA","confidence":0.3}}]}`))
	})

	p := newTestORS(t, mux)
	_, err := p.GetDistance(context.Background(), "41.878100,-87.629800", "Dock 4, Indianapolis, IN")
	require.ErrorContains(t, err, "confidence 0.30")
}

func TestORSDistanceProviderRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	p := newTestORS(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"distances":[[500]],"durations":[[30]]}`))
	}))

	r, err := p.GetDistance(context.Background(), "41.0,-87.0", "40.0,-86.0")
	require.NoError(t, err)
	require.Equal(t, 500, r.DistanceMeters)
	require.EqualValues(t, 3, calls.Load())
}

func TestORSDistanceProviderDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	p := newTestORS(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad key", http.StatusForbidden)
	}))

	_, err := p.GetDistance(context.Background(), "41.0,-87.0", "40.0,-86.0")
	require.Error(t, err)

	var se *httpx.StatusError
	require.ErrorAs(t, err, &se)
	require.Equal(t, http.StatusForbidden, se.Code)
	require.EqualValues(t, 1, calls.Load())
}

func TestORSDistanceProviderUnroutable(t *testing.T) {
	p := newTestORS(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"distances":[[null]],"durations":[[null]]}`))
	}))

	_, err := p.GetDistance(context.Background(), "41.0,-87.0", "21.3,-157.8")
	require.ErrorContains(t, err, "no route")
}

func TestNewORSDistanceProviderRequiresKey(t *testing.T) {
	_, err := NewORSDistanceProvider("", logging.Discard())
	require.Error(t, err)
}
