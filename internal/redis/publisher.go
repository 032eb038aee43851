package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	redisv9 "github.com/redis/go-redis/v9"

	"github.com/fakhrymubarak/weather-lookup/internal/config"
	"github.com/fakhrymubarak/weather-lookup/internal/model"
)

const (
	publishTimeout = 2 * time.Second
	queueSize      = 64
)

// Publisher is the subset of the redis client used to fan out states.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redisv9.IntCmd
}

// StatePublisher forwards every published weather state to a pub/sub channel
// so other processes can follow a session. States handed to the observer are
// queued and sent in order by a single background goroutine.
type StatePublisher struct {
	client  Publisher
	channel string

	mu     sync.RWMutex
	closed bool
	queue  chan model.WeatherState

	start sync.Once
	stop  sync.Once
	done  chan struct{}
}

func NewStatePublisher(client Publisher, channel string) *StatePublisher {
	return &StatePublisher{
		client:  client,
		channel: channel,
		queue:   make(chan model.WeatherState, queueSize),
		done:    make(chan struct{}),
	}
}

func (p *StatePublisher) Publish(ctx context.Context, st model.WeatherState) error {
	b, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	return p.client.Publish(ctx, p.channel, b).Err()
}

// Observer adapts the publisher to the controller's observer signature.
// It never waits on redis: states are queued, and dropped with a warning
// when the queue is full. Publish failures never affect the local state.
func (p *StatePublisher) Observer() func(model.WeatherState) {
	p.start.Do(func() { go p.drain() })
	return func(st model.WeatherState) {
		p.mu.RLock()
		defer p.mu.RUnlock()
		if p.closed {
			return
		}
		select {
		case p.queue <- st:
		default:
			config.GetLogger().Warnw("publish queue full, dropping weather state", "channel", p.channel, "seq", st.Seq)
		}
	}
}

// Close stops accepting states and waits until the queued ones are sent.
func (p *StatePublisher) Close() {
	p.stop.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.queue)
		p.mu.Unlock()
	})
	p.start.Do(func() { go p.drain() })
	<-p.done
}

func (p *StatePublisher) drain() {
	defer close(p.done)
	for st := range p.queue {
		ctx, cancel := context.WithTimeout(GetContext(), publishTimeout)
		if err := p.Publish(ctx, st); err != nil {
			config.GetLogger().Warnw("failed to publish weather state", "channel", p.channel, "seq", st.Seq, "error", err)
		}
		cancel()
	}
}

// Watch subscribes to channel and decodes states until ctx is done.
// The returned channel is closed when the subscription ends.
func Watch(ctx context.Context, client *redisv9.Client, channel string) (<-chan model.WeatherState, error) {
	sub := client.Subscribe(ctx, channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}

	out := make(chan model.WeatherState)
	go func() {
		defer close(out)
		defer sub.Close()

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var st model.WeatherState
				if err := json.Unmarshal([]byte(msg.Payload), &st); err != nil {
					config.GetLogger().Warnw("dropping undecodable state", "channel", channel, "error", err)
					continue
				}
				select {
				case out <- st:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
