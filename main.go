package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/fakhrymubarak/weather-lookup/internal/config"
	"github.com/fakhrymubarak/weather-lookup/internal/handler"
	"github.com/fakhrymubarak/weather-lookup/internal/middleware"
	"github.com/fakhrymubarak/weather-lookup/internal/model"
	"github.com/fakhrymubarak/weather-lookup/internal/redis"
	"github.com/fakhrymubarak/weather-lookup/internal/repository"
	"github.com/fakhrymubarak/weather-lookup/internal/service"
	"github.com/fakhrymubarak/weather-lookup/internal/tui"
	"github.com/fakhrymubarak/weather-lookup/internal/view"
)

var errLookupFailed = errors.New("lookup failed")

type options struct {
	mode              string
	query             string
	logFile           string
	discardSuperseded bool
}

func parseFlags(args []string) (options, error) {
	var opts options
	fs := pflag.NewFlagSet("weather-lookup", pflag.ContinueOnError)
	fs.StringVarP(&opts.mode, "mode", "m", "tui", "tui, serve or watch")
	fs.StringVarP(&opts.query, "query", "q", "", "look up one location, print it and exit")
	fs.StringVar(&opts.logFile, "log-file", "weather-lookup.log", "log destination while the terminal UI runs")
	fs.BoolVar(&opts.discardSuperseded, "discard-superseded", false, "ignore results of searches replaced by a newer one")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	switch opts.mode {
	case "tui", "serve", "watch":
	default:
		return opts, fmt.Errorf("unknown mode %q", opts.mode)
	}
	return opts, nil
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, os.Stdout); err != nil {
		if !errors.Is(err, errLookupFailed) {
			config.GetLogger().Errorw("weather-lookup stopped", "error", err)
		}
		_ = config.GetLogger().Sync()
		os.Exit(1)
	}
	_ = config.GetLogger().Sync()
}

func run(ctx context.Context, opts options, out io.Writer) error {
	if opts.mode == "watch" {
		return runWatch(ctx, out)
	}

	settings := config.Load()
	if err := settings.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	svc, closeController := newController(ctx, settings, opts.discardSuperseded)
	defer closeController()

	switch {
	case opts.query != "":
		return runOnce(svc, opts.query, out)
	case opts.mode == "serve":
		return runServer(ctx, svc)
	default:
		if err := useFileLogger(opts.logFile); err != nil {
			return err
		}
		defer svc.Wait()
		if err := tui.Run(svc, tea.WithContext(ctx)); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			return err
		}
		return nil
	}
}

// newController wires the controller and its optional redis fan-out. The
// returned func waits for in-flight lookups and flushes pending publishes.
func newController(ctx context.Context, settings config.Settings, discardSuperseded bool) (*service.WeatherService, func()) {
	opts := []service.Option{service.WithContext(ctx)}
	if discardSuperseded {
		opts = append(opts, service.WithDiscardSuperseded())
	}
	svc := service.NewWeatherService(repository.NewWeatherRepository(), opts...)

	if !settings.RedisEnabled {
		return svc, svc.Wait
	}
	pub := redis.NewStatePublisher(redis.GetClient(), settings.RedisChannel)
	svc.Subscribe(pub.Observer())
	return svc, func() {
		svc.Wait()
		pub.Close()
	}
}

// runOnce performs a single lookup and prints its rendering.
func runOnce(svc *service.WeatherService, query string, out io.Writer) error {
	svc.Submit(query)
	svc.Wait()

	st := svc.State()
	if _, err := io.WriteString(out, view.Render(st)); err != nil {
		return err
	}
	if st.Status != model.StatusSuccess {
		return errLookupFailed
	}
	return nil
}

func runServer(ctx context.Context, svc *service.WeatherService) error {
	log := config.GetLogger()

	limiter := middleware.NewRateLimiterFromConfig()
	stopCleanup := make(chan struct{})
	defer close(stopCleanup)
	limiter.StartCleanup(config.GetRateLimiterCleanupTimeout(), stopCleanup)

	srv := handler.NewServer(handler.NewRouter(handler.NewWeatherHandler(svc), limiter))

	serverErr := make(chan error, 1)
	go func() {
		log.Infow("weather lookup server running", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warnw("error during shutdown", "error", err)
	}
	svc.Wait()
	return nil
}

// runWatch follows the states another instance publishes to redis.
func runWatch(ctx context.Context, out io.Writer) error {
	channel := config.GetRedisChannel()
	states, err := redis.Watch(ctx, redis.GetClient(), channel)
	if err != nil {
		return err
	}
	config.GetLogger().Infow("watching weather states", "channel", channel)
	for st := range states {
		if _, err := fmt.Fprintf(out, "--- #%d %s %q\n%s", st.Seq, st.Status, st.Query, view.Render(st)); err != nil {
			return err
		}
	}
	return nil
}

func useFileLogger(path string) error {
	cfg := zap.NewDevelopmentConfig()
	cfg.OutputPaths = []string{path}
	cfg.ErrorOutputPaths = []string{path}
	l, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	config.SetLogger(l.Sugar())
	return nil
}
