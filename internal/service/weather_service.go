package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/fakhrymubarak/weather-lookup/internal/config"
	"github.com/fakhrymubarak/weather-lookup/internal/model"
	"github.com/fakhrymubarak/weather-lookup/internal/repository"
)

// FailedToLoadMessage is the only error text ever shown to users.
const FailedToLoadMessage = "Failed to load data"

var errNilPayload = errors.New("repository returned no payload")

// Observer receives every state published by the controller, in order.
// Observers run on the publishing goroutine and must not call Submit.
type Observer func(model.WeatherState)

// WeatherServiceInterface is what presentation surfaces depend on.
type WeatherServiceInterface interface {
	Submit(query string)
	State() model.WeatherState
	Subscribe(fn Observer) (unsubscribe func())
}

type Option func(*WeatherService)

// WithDiscardSuperseded drops results of lookups that were superseded by a
// later Submit instead of letting whichever finishes last win.
func WithDiscardSuperseded() Option {
	return func(s *WeatherService) { s.discardSuperseded = true }
}

// WithContext sets the context passed to every lookup. Cancelling it aborts
// in-flight requests, which then publish the error state.
func WithContext(ctx context.Context) Option {
	return func(s *WeatherService) { s.ctx = ctx }
}

// WeatherService is the fetch controller: it owns the single FetchState
// slot for one screen session and drives it through Idle, Loading,
// Success and Error.
type WeatherService struct {
	WeatherRepo repository.WeatherRepository

	ctx               context.Context
	discardSuperseded bool

	// publishMu orders slot writes with observer delivery and guards seq.
	publishMu sync.Mutex
	seq       uint64

	mu        sync.RWMutex
	state     model.WeatherState
	observers map[int]Observer
	nextID    int

	inflight sync.WaitGroup
}

// NewWeatherService creates a controller in the Idle state. A nil repo
// falls back to the configured WeatherAPI repository.
func NewWeatherService(repo repository.WeatherRepository, opts ...Option) *WeatherService {
	if repo == nil {
		repo = repository.NewWeatherRepository()
	}
	s := &WeatherService{
		WeatherRepo: repo,
		ctx:         context.Background(),
		state:       model.Idle[model.WeatherPayload](),
		observers:   make(map[int]Observer),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current state.
func (s *WeatherService) State() model.WeatherState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Subscribe registers fn for every future publication.
func (s *WeatherService) Subscribe(fn Observer) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.observers[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.observers, id)
			s.mu.Unlock()
		})
	}
}

// Submit publishes Loading before returning and starts exactly one lookup
// for query in the background. The query is not validated.
func (s *WeatherService) Submit(query string) {
	s.publishMu.Lock()
	s.seq++
	seq := s.seq
	// Counted before Loading is visible, so a Wait that observes it blocks.
	s.inflight.Add(1)
	s.setAndNotify(model.Loading[model.WeatherPayload](seq, query))
	s.publishMu.Unlock()

	go s.fetch(seq, query, uuid.NewString())
}

// Wait blocks until every started lookup has published its outcome.
func (s *WeatherService) Wait() {
	s.inflight.Wait()
}

func (s *WeatherService) fetch(seq uint64, query, requestID string) {
	defer s.inflight.Done()

	log := config.GetLogger().With("requestID", requestID, "query", query, "seq", seq)
	next, err := s.lookup(seq, query)
	if err != nil {
		log.Warnw("weather lookup failed", "error", err)
	} else {
		log.Debugw("weather lookup succeeded", "location", next.Data.Location.Name)
	}

	s.publishMu.Lock()
	defer s.publishMu.Unlock()
	if s.discardSuperseded && seq != s.seq {
		log.Debugw("dropping superseded result", "latestSeq", s.seq)
		return
	}
	s.setAndNotify(next)
}

// lookup never fails outright: every error, including a panic in the
// repository, becomes the error state.
func (s *WeatherService) lookup(seq uint64, query string) (st model.WeatherState, err error) {
	fail := model.Failure[model.WeatherPayload](seq, query, FailedToLoadMessage)
	defer func() {
		if r := recover(); r != nil {
			st, err = fail, fmt.Errorf("repository panic: %v", r)
		}
	}()

	payload, err := s.WeatherRepo.GetWeather(s.ctx, query)
	if err != nil {
		return fail, err
	}
	if payload == nil {
		return fail, errNilPayload
	}
	return model.Success(seq, query, *payload), nil
}

// setAndNotify must be called with publishMu held.
func (s *WeatherService) setAndNotify(st model.WeatherState) {
	s.mu.Lock()
	s.state = st
	observers := make([]Observer, 0, len(s.observers))
	for id := 0; id < s.nextID; id++ {
		if fn, ok := s.observers[id]; ok {
			observers = append(observers, fn)
		}
	}
	s.mu.Unlock()

	for _, fn := range observers {
		fn(st)
	}
}
