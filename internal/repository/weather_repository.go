package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/fakhrymubarak/weather-lookup/internal/config"
	"github.com/fakhrymubarak/weather-lookup/internal/model"
)

// Custom error types
var (
	ErrLocationNotFound = errors.New("location not found")
	ErrExternalAPI      = errors.New("external API error")
	ErrEmptyBody        = errors.New("empty response body")
	ErrDecode           = errors.New("malformed response body")
)

// WeatherAPI error code for "No matching location found."
const codeNoMatchingLocation = 1006

var (
	sharedClient *http.Client
	clientOnce   sync.Once
)

// SharedHTTPClient returns the process-wide outbound client, created on first use.
func SharedHTTPClient() *http.Client {
	clientOnce.Do(func() {
		sharedClient = &http.Client{Timeout: config.GetHTTPTimeout()}
	})
	return sharedClient
}

// ResetHTTPClientForTest resets the shared client singleton. Use only in tests.
func ResetHTTPClientForTest() {
	clientOnce = sync.Once{}
	sharedClient = nil
}

// WeatherRepository defines the interface for weather data access
type WeatherRepository interface {
	GetWeather(ctx context.Context, query string) (*model.WeatherPayload, error)
}

// weatherRepository implements WeatherRepository against WeatherAPI.com
type weatherRepository struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
}

// NewWeatherRepository creates a new weather repository instance
func NewWeatherRepository(httpClient ...*http.Client) WeatherRepository {
	client := SharedHTTPClient()
	if len(httpClient) > 0 && httpClient[0] != nil {
		client = httpClient[0]
	}
	return &weatherRepository{
		httpClient: client,
		endpoint:   config.GetWeatherAPIBaseURL() + config.GetWeatherAPICurrentPath(),
		apiKey:     config.GetWeatherAPIKey(),
	}
}

// GetWeather issues a single current-conditions request for query.
// The query is passed through untouched apart from URL encoding.
func (r *weatherRepository) GetWeather(ctx context.Context, query string) (*model.WeatherPayload, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	values := url.Values{}
	values.Set("key", r.apiKey)
	values.Set("q", query)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.endpoint+"?"+values.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExternalAPI, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExternalAPI, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, statusError(resp)
	}

	var payload *model.WeatherPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyBody
		}
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if payload == nil {
		return nil, ErrEmptyBody
	}
	return payload, nil
}

// apiErrorBody is the error document WeatherAPI.com returns with 4xx responses.
type apiErrorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func statusError(resp *http.Response) error {
	var body apiErrorBody
	_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body)

	if body.Error.Code == codeNoMatchingLocation {
		return fmt.Errorf("%w: %s", ErrLocationNotFound, body.Error.Message)
	}
	if body.Error.Message != "" {
		return fmt.Errorf("%w: status %d: %s", ErrExternalAPI, resp.StatusCode, body.Error.Message)
	}
	return fmt.Errorf("%w: status %d", ErrExternalAPI, resp.StatusCode)
}
