package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fakhrymubarak/weather-lookup/internal/middleware"
	"github.com/fakhrymubarak/weather-lookup/internal/model"
	"github.com/fakhrymubarak/weather-lookup/internal/service"
)

// Mock service for testing
type mockWeatherService struct {
	mu        sync.Mutex
	submitted []string
	state     model.WeatherState
}

func (m *mockWeatherService) Submit(query string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submitted = append(m.submitted, query)
	m.state = model.Loading[model.WeatherPayload](uint64(len(m.submitted)), query)
}

func (m *mockWeatherService) State() model.WeatherState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *mockWeatherService) Subscribe(service.Observer) func() { return func() {} }

// Ensure mockWeatherService implements WeatherServiceInterface
var _ service.WeatherServiceInterface = (*mockWeatherService)(nil)

type stateResponse struct {
	Data    model.WeatherState `json:"data"`
	Message string             `json:"message"`
}

func decodeState(t *testing.T, rr *httptest.ResponseRecorder) stateResponse {
	t.Helper()
	var resp stateResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	return resp
}

func TestNewWeatherHandler(t *testing.T) {
	handler := NewWeatherHandler()
	require.NotNil(t, handler)
	assert.NotNil(t, handler.WeatherService)

	svc := &mockWeatherService{}
	assert.Same(t, svc, NewWeatherHandler(svc).WeatherService)
}

func TestWeatherHandler_HandleSearch(t *testing.T) {
	tests := []struct {
		name     string
		target   string
		body     string
		wantLoc  string
		wantCode int
	}{
		{"query parameter", "/search?location=London", "", "London", http.StatusAccepted},
		{"form body", "/search", "location=Paris", "Paris", http.StatusAccepted},
		{"empty location forwarded", "/search?location=", "", "", http.StatusAccepted},
		{"missing location forwarded", "/search", "", "", http.StatusAccepted},
		{"unicode location", "/search?location=%E5%8C%97%E4%BA%AC", "", "北京", http.StatusAccepted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockWeatherService{}
			h := &WeatherHandler{WeatherService: svc}

			req := httptest.NewRequest(http.MethodPost, tt.target, strings.NewReader(tt.body))
			if tt.body != "" {
				req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			}
			rr := httptest.NewRecorder()
			h.HandleSearch(rr, req)

			assert.Equal(t, tt.wantCode, rr.Code)
			assert.Equal(t, []string{tt.wantLoc}, svc.submitted)

			resp := decodeState(t, rr)
			assert.Equal(t, "Accepted", resp.Message)
			assert.Equal(t, model.StatusLoading, resp.Data.Status)
			assert.Equal(t, tt.wantLoc, resp.Data.Query)
		})
	}
}

func TestWeatherHandler_HandleState(t *testing.T) {
	tests := []struct {
		name  string
		state model.WeatherState
	}{
		{"idle", model.Idle[model.WeatherPayload]()},
		{"error", model.Failure[model.WeatherPayload](2, "x", service.FailedToLoadMessage)},
		{"success", model.Success(3, "London", model.WeatherPayload{Location: model.Location{Name: "London"}})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &WeatherHandler{WeatherService: &mockWeatherService{state: tt.state}}
			rr := httptest.NewRecorder()
			h.HandleState(rr, httptest.NewRequest(http.MethodGet, "/state", nil))

			require.Equal(t, http.StatusOK, rr.Code)
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
			resp := decodeState(t, rr)
			assert.Equal(t, tt.state.Status.String(), resp.Message)
			assert.Equal(t, tt.state.Status, resp.Data.Status)
			assert.Equal(t, tt.state.Message, resp.Data.Message)
			if tt.state.Data != nil {
				require.NotNil(t, resp.Data.Data)
				assert.Equal(t, tt.state.Data.Location.Name, resp.Data.Data.Location.Name)
			}
		})
	}
}

func TestWeatherHandler_HandleView(t *testing.T) {
	tests := []struct {
		name    string
		state   model.WeatherState
		want    []string
		notWant []string
	}{
		{"idle shows only search", model.Idle[model.WeatherPayload](), []string{searchLabel}, []string{"Loading", "Humidity"}},
		{"loading", model.Loading[model.WeatherPayload](1, "Paris"), []string{"Loading...", "Paris"}, []string{"Humidity"}},
		{"error", model.Failure[model.WeatherPayload](1, "Paris", "Failed to load data"), []string{"Failed to load data"}, []string{"Humidity"}},
		{"success", model.Success(1, "Paris", model.WeatherPayload{
			Location: model.Location{Name: "Paris", Country: "France"},
			Current:  model.Current{TempC: 18},
		}), []string{"Paris", "France", "18 ° c", "Humidity"}, []string{"Loading"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &WeatherHandler{WeatherService: &mockWeatherService{state: tt.state}}
			rr := httptest.NewRecorder()
			h.HandleView(rr, httptest.NewRequest(http.MethodGet, "/view", nil))

			require.Equal(t, http.StatusOK, rr.Code)
			body := rr.Body.String()
			for _, s := range tt.want {
				assert.Contains(t, body, s)
			}
			for _, s := range tt.notWant {
				assert.NotContains(t, body, s)
			}
		})
	}
}

func TestNewRouter(t *testing.T) {
	svc := &mockWeatherService{state: model.Idle[model.WeatherPayload]()}
	limiter := middleware.NewRateLimiter(middleware.Limit{PerMinute: 10, Burst: 10}, middleware.Limit{PerMinute: 1, Burst: 1})
	router := NewRouter(NewWeatherHandler(svc), limiter)

	tests := []struct {
		method string
		target string
		want   int
	}{
		{http.MethodGet, "/healthz", http.StatusOK},
		{http.MethodGet, "/state", http.StatusOK},
		{http.MethodGet, "/view", http.StatusOK},
		{http.MethodPost, "/search?location=Paris", http.StatusAccepted},
		{http.MethodPost, "/search?location=Paris", http.StatusTooManyRequests},
		{http.MethodGet, "/search?location=Paris", http.StatusMethodNotAllowed},
		{http.MethodGet, "/nope", http.StatusNotFound},
	}
	for _, tt := range tests {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(tt.method, tt.target, nil))
		assert.Equal(t, tt.want, rr.Code, "%s %s", tt.method, tt.target)
	}
	assert.Equal(t, []string{"Paris"}, svc.submitted)
}

func TestNewRouter_FormBodySearchesLimitedPerLocation(t *testing.T) {
	svc := &mockWeatherService{}
	limiter := middleware.NewRateLimiter(middleware.Limit{PerMinute: 10, Burst: 10}, middleware.Limit{PerMinute: 2, Burst: 2})
	router := NewRouter(NewWeatherHandler(svc), limiter)

	post := func(location string) int {
		req := httptest.NewRequest(http.MethodPost, "/search", strings.NewReader("location="+location))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		return rr.Code
	}

	locations := []string{"Paris", "Tokyo", "London", "Berlin"}
	for _, loc := range locations {
		assert.Equal(t, http.StatusAccepted, post(loc), loc)
	}
	assert.Equal(t, locations, svc.submitted)

	// The per-location bucket still applies to body-submitted searches.
	assert.Equal(t, http.StatusAccepted, post("Paris"))
	assert.Equal(t, http.StatusTooManyRequests, post("Paris"))
}

func TestNewRouter_WithoutLimiter(t *testing.T) {
	svc := &mockWeatherService{}
	router := NewRouter(NewWeatherHandler(svc), nil)
	for i := 0; i < 5; i++ {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/search?location=Paris", nil))
		assert.Equal(t, http.StatusAccepted, rr.Code)
	}
}

func TestNewServer(t *testing.T) {
	srv := NewServer(http.NotFoundHandler())
	assert.Equal(t, ":8080", srv.Addr)
	assert.NotZero(t, srv.ReadHeaderTimeout)
	assert.NotZero(t, srv.WriteTimeout)
}
