package openmeteo

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couchcryptid/sst-heatwave-service/internal/domain"
	"github.com/couchcryptid/sst-heatwave-service/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	contentTypeJSON   = "application/json"
	headerContentType = "Content-Type"
)

var sanur = domain.Location{Key: "sanur", Name: "Sanur", Lat: -8.67368, Lon: 115.277472}

func testClient(baseURL string, maxRetries int) *Client {
	return NewClient(Options{
		BaseURL:      baseURL,
		Timeout:      5 * time.Second,
		Timezone:     "Asia/Singapore",
		PastDays:     5,
		ForecastDays: 7,
		Backoff: Backoff{
			MaxRetries:      maxRetries,
			InitialInterval: time.Millisecond,
			MaxInterval:     5 * time.Millisecond,
		},
	}, observability.NewMetricsForTesting(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func f(v float64) *float64 { return &v }

func writePayload(t *testing.T, w http.ResponseWriter, payload marineResponse) {
	t.Helper()
	w.Header().Set(headerContentType, contentTypeJSON)
	require.NoError(t, json.NewEncoder(w).Encode(payload))
}

func TestClient_FetchDaily_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/v1/marine", r.URL.Path)
		assert.Equal(t, "-8.67368", q.Get("latitude"))
		assert.Equal(t, "115.277472", q.Get("longitude"))
		assert.Equal(t, "sea_surface_temperature", q.Get("hourly"))
		assert.Equal(t, "Asia/Singapore", q.Get("timezone"))
		assert.Equal(t, "5", q.Get("past_days"))
		assert.Equal(t, "7", q.Get("forecast_days"))

		writePayload(t, w, marineResponse{Hourly: hourlySeries{
			Time: []string{
				"2025-09-10T00:00", "2025-09-10T01:00", "2025-09-10T02:00",
				"2025-09-11T00:00", "2025-09-11T01:00",
			},
			SeaSurfaceTemperature: []*float64{f(28), nil, f(29), f(27.5), f(28.5)},
		}})
	}))
	defer srv.Close()

	obs, err := testClient(srv.URL+"/v1/marine", 0).FetchDaily(context.Background(), sanur)
	require.NoError(t, err)

	assert.Equal(t, []domain.Observation{
		{Date: "2025-09-10", Location: "sanur", Value: 28.5},
		{Date: "2025-09-11", Location: "sanur", Value: 28},
	}, obs)
}

func TestClient_FetchDaily_AllNull(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = io.WriteString(w, `{"hourly":{"time":["2025-09-10T00:00","2025-09-10T01:00"],"sea_surface_temperature":[null,null]}}`)
	}))
	defer srv.Close()

	obs, err := testClient(srv.URL, 0).FetchDaily(context.Background(), sanur)
	require.NoError(t, err)
	assert.Empty(t, obs)
}

func TestClient_FetchDaily_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		writePayload(t, w, marineResponse{Hourly: hourlySeries{
			Time:                  []string{"2025-09-10T00:00"},
			SeaSurfaceTemperature: []*float64{f(28.2)},
		}})
	}))
	defer srv.Close()

	obs, err := testClient(srv.URL, 3).FetchDaily(context.Background(), sanur)
	require.NoError(t, err)

	assert.Equal(t, int32(3), calls.Load())
	require.Len(t, obs, 1)
	assert.Equal(t, 28.2, obs[0].Value)
}

func TestClient_FetchDaily_RetriesExhausted(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL, 2).FetchDaily(context.Background(), sanur)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Contains(t, err.Error(), "sanur")
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_FetchDaily_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":true,"reason":"Latitude must be in range of -90 to 90°."}`)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL, 3).FetchDaily(context.Background(), sanur)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnexpected)
	assert.Contains(t, err.Error(), "Latitude")
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_FetchDaily_APIErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writePayload(t, w, marineResponse{Error: true, Reason: "No data"})
	}))
	defer srv.Close()

	_, err := testClient(srv.URL, 0).FetchDaily(context.Background(), sanur)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "No data")
}

func TestClient_FetchDaily_InvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "not json")
	}))
	defer srv.Close()

	_, err := testClient(srv.URL, 0).FetchDaily(context.Background(), sanur)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode response")
}

func TestClient_FetchDaily_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := testClient(srv.URL, 3).FetchDaily(ctx, sanur)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestClient_CircuitOpensAfterRepeatedFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := testClient(srv.URL, 0)
	for i := 0; i < 5; i++ {
		_, err := c.FetchDaily(context.Background(), sanur)
		require.ErrorIs(t, err, ErrServerError)
	}

	_, err := c.FetchDaily(context.Background(), sanur)

	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, int32(5), calls.Load(), "open circuit must not reach the server")
}

func TestRequestURL_InvalidBase(t *testing.T) {
	c := testClient("://bad", 0)

	_, err := c.FetchDaily(context.Background(), sanur)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse base url")
}
