package repository

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const parisBody = `{"location": {"name": "Paris", "country": "France"}, "current": {"temp_c": 18, "feelslike_c": 17, "condition": {"text": "Sunny", "icon": "//cdn.weatherapi.com/weather/64x64/day/113.png"}, "humidity": 40, "wind_kph": 9.4, "vis_km": 10, "dewpoint_c": 5.1, "precip_mm": 0, "uv": 5}}`

func newTestRepository(rt http.RoundTripper) *weatherRepository {
	return &weatherRepository{
		httpClient: &http.Client{Transport: rt},
		endpoint:   "https://api.weatherapi.com/v1/current.json",
		apiKey:     "testkey",
	}
}

func TestNewWeatherRepository(t *testing.T) {
	repo := NewWeatherRepository()
	require.NotNil(t, repo)

	r, ok := repo.(*weatherRepository)
	require.True(t, ok)
	assert.Same(t, SharedHTTPClient(), r.httpClient)
	assert.Equal(t, "https://api.weatherapi.com/v1/current.json", r.endpoint)
}

func TestNewWeatherRepository_CustomClient(t *testing.T) {
	client := &http.Client{}
	r := NewWeatherRepository(client).(*weatherRepository)
	assert.Same(t, client, r.httpClient)
}

func TestSharedHTTPClient_Singleton(t *testing.T) {
	c1 := SharedHTTPClient()
	assert.Same(t, c1, SharedHTTPClient())

	ResetHTTPClientForTest()
	c2 := SharedHTTPClient()
	assert.NotSame(t, c1, c2)
	assert.Equal(t, c1.Timeout, c2.Timeout)
}

func TestGetWeather_Success(t *testing.T) {
	var gotReq *http.Request
	repo := newTestRepository(RoundTripperFunc(func(req *http.Request) *http.Response {
		gotReq = req
		return StubResponse(http.StatusOK, parisBody)
	}))

	payload, err := repo.GetWeather(context.Background(), "Paris")
	require.NoError(t, err)
	require.NotNil(t, payload)

	assert.Equal(t, "Paris", payload.Location.Name)
	assert.Equal(t, "France", payload.Location.Country)
	assert.Equal(t, 18.0, payload.Current.TempC)
	assert.Equal(t, "Sunny", payload.Current.Condition.Text)

	require.NotNil(t, gotReq)
	assert.Equal(t, http.MethodGet, gotReq.Method)
	assert.Equal(t, "/v1/current.json", gotReq.URL.Path)
	assert.Equal(t, "testkey", gotReq.URL.Query().Get("key"))
	assert.Equal(t, "Paris", gotReq.URL.Query().Get("q"))
}

func TestGetWeather_QueryForwardedUnmodified(t *testing.T) {
	for _, q := range []string{"", "   ", "北京", "London@#$%", "48.85,2.35"} {
		var got string
		repo := newTestRepository(RoundTripperFunc(func(req *http.Request) *http.Response {
			got = req.URL.Query().Get("q")
			return StubResponse(http.StatusOK, parisBody)
		}))
		_, err := repo.GetWeather(context.Background(), q)
		require.NoError(t, err)
		assert.Equal(t, q, got)
	}
}

func TestGetWeather_ErrorCases(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"location not found", http.StatusBadRequest, `{"error":{"code":1006,"message":"No matching location found."}}`, ErrLocationNotFound},
		{"invalid key", http.StatusUnauthorized, `{"error":{"code":2006,"message":"API key is invalid."}}`, ErrExternalAPI},
		{"server error", http.StatusInternalServerError, "oops", ErrExternalAPI},
		{"empty body", http.StatusOK, "", ErrEmptyBody},
		{"null body", http.StatusOK, "null", ErrEmptyBody},
		{"malformed body", http.StatusOK, "not-json", ErrDecode},
		{"truncated body", http.StatusOK, `{"location": {"name": "Par`, ErrDecode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newTestRepository(RoundTripperFunc(func(req *http.Request) *http.Response {
				return StubResponse(tt.status, tt.body)
			}))
			payload, err := repo.GetWeather(context.Background(), "Somewhere")
			assert.Nil(t, payload)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestGetWeather_TransportFailure(t *testing.T) {
	dnsErr := errors.New("dial tcp: lookup api.weatherapi.com: no such host")
	repo := newTestRepository(ErrorTransport{Err: dnsErr})

	_, err := repo.GetWeather(context.Background(), "Paris")
	assert.ErrorIs(t, err, ErrExternalAPI)
	assert.ErrorIs(t, err, dnsErr)
}

func TestGetWeather_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(parisBody))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	repo := &weatherRepository{httpClient: srv.Client(), endpoint: srv.URL + "/v1/current.json", apiKey: "testkey"}

	_, err := repo.GetWeather(ctx, "Paris")
	assert.ErrorIs(t, err, ErrExternalAPI)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGetWeather_NilContext(t *testing.T) {
	repo := newTestRepository(RoundTripperFunc(func(req *http.Request) *http.Response {
		return StubResponse(http.StatusOK, parisBody)
	}))
	//nolint:staticcheck
	payload, err := repo.GetWeather(nil, "Paris")
	require.NoError(t, err)
	assert.Equal(t, "Paris", payload.Location.Name)
}

func TestGetWeather_AgainstServer(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path != "/v1/current.json" || r.URL.Query().Get("key") != "testkey" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(parisBody))
	}))
	defer srv.Close()

	repo := &weatherRepository{
		httpClient: srv.Client(),
		endpoint:   srv.URL + "/v1/current.json",
		apiKey:     "testkey",
	}
	payload, err := repo.GetWeather(context.Background(), "Paris")
	require.NoError(t, err)
	assert.Equal(t, "Paris", payload.Location.Name)
	assert.Equal(t, int32(1), hits.Load(), "exactly one network call per lookup")
}

func BenchmarkWeatherRepository_GetWeather(b *testing.B) {
	repo := newTestRepository(RoundTripperFunc(func(req *http.Request) *http.Response {
		return StubResponse(http.StatusOK, parisBody)
	}))
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = repo.GetWeather(ctx, "London")
	}
}
