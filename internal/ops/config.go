package ops

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"papertrade/internal/errors"
	"papertrade/internal/model"
	"papertrade/pkg/exception"
)

// Environment overrides.
const (
	EnvDBDriver      = "PAPERTRADE_DB_DRIVER"
	EnvDBDSN         = "PAPERTRADE_DB_DSN"
	EnvDBPath        = "PAPERTRADE_DB_PATH"
	EnvMetricsAddr   = "PAPERTRADE_METRICS_ADDR"
	EnvPyroscopeAddr = "PAPERTRADE_PYROSCOPE_ADDR"
	EnvFeedBaseURL   = "PAPERTRADE_FEED_BASE_URL"
)

// Config is loaded once at start up and never changed afterwards.
type Config struct {
	InitialBalance decimal.Decimal  `json:"initialBalance"`
	Instruments    []string         `json:"instruments"`
	Timeframe      string           `json:"timeframe"`
	CandleLimit    int              `json:"candleLimit"`
	Interval       Duration         `json:"interval"`
	Risk           model.RiskLimits `json:"risk"`
	Fill           model.FillModel  `json:"fill"`
	Strategies     []StrategyConfig `json:"strategies"`
	Database       DatabaseConfig   `json:"database"`
	Feed           FeedConfig       `json:"feed"`
	Metrics        MetricsConfig    `json:"metrics"`
	Profiling      ProfilingConfig  `json:"profiling"`
}

// StrategyConfig enables a registered strategy. Order matters: the first
// strategy whose signal is accepted wins the instrument for the tick.
type StrategyConfig struct {
	Name    string         `json:"name"`
	Enabled *bool          `json:"enabled"`
	Params  map[string]any `json:"params"`
}

func (s StrategyConfig) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// DatabaseConfig selects the durable store. An empty driver keeps state in
// memory only.
type DatabaseConfig struct {
	Driver   string            `json:"driver"`
	DSN      string            `json:"dsn"`
	Path     string            `json:"path"`
	Host     string            `json:"host"`
	Port     int               `json:"port"`
	User     string            `json:"user"`
	Password string            `json:"password"`
	Name     string            `json:"name"`
	SSLMode  string            `json:"sslMode"`
	Params   map[string]string `json:"params"`
}

type FeedConfig struct {
	Kind       string   `json:"kind"`
	BaseURL    string   `json:"baseUrl"`
	Timeout    Duration `json:"timeout"`
	RetryCount int      `json:"retryCount"`
}

type MetricsConfig struct {
	Addr string `json:"addr"`
}

type ProfilingConfig struct {
	ServerAddress   string `json:"serverAddress"`
	ApplicationName string `json:"applicationName"`
}

const (
	FeedBinance = "binance"
	FeedStatic  = "static"
)

// Default is the configuration used for every field a file leaves out.
func Default() Config {
	return Config{
		InitialBalance: decimal.NewFromInt(10000),
		Instruments:    []string{"BTC/USDT", "ETH/USDT"},
		Timeframe:      "1h",
		CandleLimit:    200,
		Interval:       Duration(5 * time.Minute),
		Risk:           model.DefaultRiskLimits(),
		Fill:           model.DefaultFillModel(),
		Strategies:     []StrategyConfig{{Name: "ema_rsi"}},
		Feed: FeedConfig{
			Kind:    FeedBinance,
			Timeout: Duration(10 * time.Second),
		},
		Profiling: ProfilingConfig{ApplicationName: "papertrade"},
	}
}

// Load reads the JSON config at path over the defaults, then applies the
// environment. Variables found in envFiles only fill what the process
// environment leaves unset. Missing env files are ignored; an empty path
// skips the JSON file.
func Load(path string, envFiles ...string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.Wrapf(err, "read config %s", path)
		}
		if err := json.Unmarshal(data, &cfg); err != nil {
			return Config{}, errors.Mark(errors.Wrapf(err, "decode config %s", path), exception.ErrValidation)
		}
	}

	env, err := readEnv(envFiles)
	if err != nil {
		return Config{}, err
	}
	cfg.applyEnv(env)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func readEnv(files []string) (func(string) string, error) {
	fromFiles := make(map[string]string)
	for _, file := range files {
		if _, err := os.Stat(file); os.IsNotExist(err) {
			continue
		}
		values, err := godotenv.Read(file)
		if err != nil {
			return nil, errors.Wrapf(err, "read env file %s", file)
		}
		for k, v := range values {
			if _, ok := fromFiles[k]; !ok {
				fromFiles[k] = v
			}
		}
	}
	return func(key string) string {
		if v, ok := os.LookupEnv(key); ok {
			return v
		}
		return fromFiles[key]
	}, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv(EnvDBDriver); v != "" {
		c.Database.Driver = v
	}
	if v := getenv(EnvDBDSN); v != "" {
		c.Database.DSN = v
	}
	if v := getenv(EnvDBPath); v != "" {
		c.Database.Path = v
	}
	if v := getenv(EnvMetricsAddr); v != "" {
		c.Metrics.Addr = v
	}
	if v := getenv(EnvPyroscopeAddr); v != "" {
		c.Profiling.ServerAddress = v
	}
	if v := getenv(EnvFeedBaseURL); v != "" {
		c.Feed.BaseURL = v
	}
}

func (c Config) Validate() error {
	if !c.InitialBalance.IsPositive() {
		return invalid("initialBalance %s must be positive", c.InitialBalance)
	}
	if len(c.Instruments) == 0 {
		return invalid("no instruments configured")
	}
	seen := make(map[string]struct{}, len(c.Instruments))
	for _, inst := range c.Instruments {
		if !model.ValidInstrument(inst) {
			return invalid("instrument %q is not BASE/QUOTE", inst)
		}
		if _, ok := seen[inst]; ok {
			return invalid("instrument %s listed twice", inst)
		}
		seen[inst] = struct{}{}
	}
	if strings.TrimSpace(c.Timeframe) == "" {
		return invalid("timeframe is empty")
	}
	if c.CandleLimit <= 0 {
		return invalid("candleLimit must be > 0")
	}
	if c.Interval <= 0 {
		return invalid("interval must be > 0")
	}
	if err := c.Risk.Validate(); err != nil {
		return err
	}
	if err := c.Fill.Validate(); err != nil {
		return err
	}
	enabled := 0
	for _, s := range c.Strategies {
		if strings.TrimSpace(s.Name) == "" {
			return invalid("strategy without name")
		}
		if s.IsEnabled() {
			enabled++
		}
	}
	if enabled == 0 {
		return invalid("no strategy enabled")
	}
	switch c.Feed.Kind {
	case FeedBinance, FeedStatic:
	default:
		return invalid("unknown feed kind %q", c.Feed.Kind)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return errors.Wrapf(exception.ErrValidation, "config: "+format, args...)
}

// Duration reads "90s", "5m" or a number of seconds.
type Duration time.Duration

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		v, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("duration %q: %w", s, err)
		}
		*d = Duration(v)
		return nil
	}
	var seconds float64
	if err := json.Unmarshal(data, &seconds); err != nil {
		return fmt.Errorf("duration %s: want string or seconds", data)
	}
	*d = Duration(seconds * float64(time.Second))
	return nil
}
