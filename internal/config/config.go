package config

import (
	"flag"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var once sync.Once
var logger *zap.SugaredLogger
var loggerOnce sync.Once

// isTestRun returns true if the current process is a Go test binary.
func isTestRun() bool {
	return flag.Lookup("test.v") != nil || filepath.Ext(os.Args[0]) == ".test"
}

func setDefaults() {
	viper.SetDefault("weatherapi.base_url", "https://api.weatherapi.com")
	viper.SetDefault("weatherapi.current_path", "/v1/current.json")
	viper.SetDefault("http.timeout", "30s")
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.read_header_timeout", "15s")
	viper.SetDefault("server.read_timeout", "15s")
	viper.SetDefault("server.write_timeout", "10s")
	viper.SetDefault("server.idle_timeout", "30s")
	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.channel", "weather:state")
}

func initConfig() {
	once.Do(func() {
		setDefaults()
		viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		viper.AutomaticEnv()

		root, err := getProjectRoot()
		if err != nil {
			GetLogger().Errorw("Error finding project root", "error", err)
			return
		}
		viper.SetConfigType("yaml")

		viper.SetConfigName("config")
		viper.AddConfigPath(root)
		if err = viper.ReadInConfig(); err != nil {
			GetLogger().Errorw("Error reading config file", "error", err)
		}

		if isTestRun() {
			viper.SetConfigName("config_test")
			if err = viper.MergeInConfig(); err != nil {
				GetLogger().Errorw("Error merging test config file", "error", err)
			}
		}
	})
}

func getProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", os.ErrNotExist
}

func GetWeatherAPIBaseURL() string {
	initConfig()
	return strings.TrimRight(viper.GetString("weatherapi.base_url"), "/")
}

func GetWeatherAPICurrentPath() string {
	initConfig()
	return viper.GetString("weatherapi.current_path")
}

// GetWeatherAPIKey reads WEATHERAPI_API_KEY from the environment (or .env)
// and falls back to weatherapi.api_key in the config file.
func GetWeatherAPIKey() string {
	_ = godotenv.Load()
	if key := os.Getenv("WEATHERAPI_API_KEY"); key != "" {
		return key
	}
	initConfig()
	return viper.GetString("weatherapi.api_key")
}

// GetHTTPTimeout returns the outbound client timeout. Zero disables it.
func GetHTTPTimeout() time.Duration {
	initConfig()
	return parseDuration(viper.GetString("http.timeout"), 30*time.Second)
}

func GetRedisAddr() string {
	initConfig()
	return viper.GetString("redis.addr")
}

func GetRedisChannel() string {
	initConfig()
	return viper.GetString("redis.channel")
}

func IsRedisEnabled() bool {
	initConfig()
	return viper.GetBool("redis.enabled")
}

func GetServerPort() string {
	initConfig()
	serverPort := viper.GetString("server.port")
	return serverPort
}

// GetServerTimeout returns server.<key> as a duration, 15s when unset or invalid.
func GetServerTimeout(key string) time.Duration {
	initConfig()
	return parseDuration(viper.GetString("server."+key), 15*time.Second)
}

// ReloadConfigForTest resets the config singleton and reloads Viper config. Use only in tests.
func ReloadConfigForTest() {
	once = sync.Once{}
	initConfig()
}

func GetLogger() *zap.SugaredLogger {
	loggerOnce.Do(func() {
		l, err := zap.NewDevelopment()
		if err != nil {
			panic(err)
		}
		logger = l.Sugar()
	})
	return logger
}

// SetLogger replaces the process logger, e.g. with a file-backed one while
// the terminal UI owns stdout.
func SetLogger(l *zap.SugaredLogger) {
	loggerOnce.Do(func() {})
	logger = l
}

// GetRateLimiterCleanupTimeout returns the rate limiter cleanup timeout as a time.Duration.
// Defaults to 3m if not set or invalid.
func GetRateLimiterCleanupTimeout() time.Duration {
	initConfig()
	return parseDuration(viper.GetString("rate_limiter.cleanup_timeout"), 3*time.Minute)
}

// GetGlobalRateLimiterConfig returns the per-minute rate and burst for the global rate limiter.
func GetGlobalRateLimiterConfig() (rate float64, burst int) {
	initConfig()
	rate = viper.GetFloat64("rate_limiter.global.rate")
	if rate == 0 {
		rate = 10
	}
	burst = viper.GetInt("rate_limiter.global.burst")
	if burst == 0 {
		burst = 10
	}
	return
}

// GetParamRateLimiterConfig returns the per-minute rate and burst for the per-location limiter.
func GetParamRateLimiterConfig() (rate float64, burst int) {
	initConfig()
	rate = viper.GetFloat64("rate_limiter.param.rate")
	if rate == 0 {
		rate = 2
	}
	burst = viper.GetInt("rate_limiter.param.burst")
	if burst == 0 {
		burst = 2
	}
	return
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

// Settings is the subset of configuration checked at startup.
type Settings struct {
	APIKey       string        `validate:"required"`
	BaseURL      string        `validate:"required,url"`
	CurrentPath  string        `validate:"required,startswith=/"`
	HTTPTimeout  time.Duration `validate:"gte=0"`
	ServerPort   string        `validate:"required,numeric"`
	RedisEnabled bool
	RedisAddr    string `validate:"required_if=RedisEnabled true"`
	RedisChannel string `validate:"required_if=RedisEnabled true"`
}

func Load() Settings {
	return Settings{
		APIKey:       GetWeatherAPIKey(),
		BaseURL:      GetWeatherAPIBaseURL(),
		CurrentPath:  GetWeatherAPICurrentPath(),
		HTTPTimeout:  GetHTTPTimeout(),
		ServerPort:   GetServerPort(),
		RedisEnabled: IsRedisEnabled(),
		RedisAddr:    GetRedisAddr(),
		RedisChannel: GetRedisChannel(),
	}
}

func (s Settings) Validate() error {
	return validator.New().Struct(s)
}
