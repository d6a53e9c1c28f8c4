package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig   `yaml:"server"`
	Logging   LoggingConfig  `yaml:"logging"`
	Postgres  PostgresConfig `yaml:"postgres"`
	Redis     RedisConfig    `yaml:"redis"`
	Market    MarketConfig   `yaml:"market"`
	Engine    EngineConfig   `yaml:"engine"`
	Telegram  TelegramConfig `yaml:"telegram"`
	RulesFile string         `yaml:"rules_file"` // optional; built-in rule table when empty
}

type ServerConfig struct {
	Addr              string        `yaml:"addr"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	RequestTimeout    time.Duration `yaml:"request_timeout"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
	File   string `yaml:"file"`   // optional extra sink
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"` // default "odds"
}

// MarketConfig selects where live market snapshots come from.
type MarketConfig struct {
	Source       string        `yaml:"source"`   // http, postgres or redis
	OddsURL      string        `yaml:"odds_url"` // base URL of the odds feed (http source)
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
	MaxAge       time.Duration `yaml:"max_age"` // postgres and redis sources: ignore older offers
}

type TelegramConfig struct {
	BotToken     string `yaml:"bot_token"`
	ChatID       int64  `yaml:"chat_id"`
	NotifyFlags  bool   `yaml:"notify_flags"`  // send FLAGGED reports
	NotifyBlocks bool   `yaml:"notify_blocks"` // send REJECTED_INCOMPATIBLE reports
}

// The dynamic threshold never leaves [ThresholdFloor, ThresholdCeiling], whatever the
// configured min_threshold and max_threshold.
const (
	ThresholdFloor   = 0.3
	ThresholdCeiling = 0.8
)

// EngineConfig holds every tunable constant of the validation engine.
// The tax and threshold constants are empirical and await calibration against settled bets.
type EngineConfig struct {
	MinLegs          int      `yaml:"min_legs"`
	LineTolerance    float64  `yaml:"line_tolerance"`
	OddsDriftPercent float64  `yaml:"odds_drift_percent"`
	LineMarkets      []string `yaml:"line_markets"`
	BatchConcurrency int      `yaml:"batch_concurrency"`

	TaxBase  float64 `yaml:"tax_base"`
	TaxSlope float64 `yaml:"tax_slope"`

	Confidence ConfidenceConfig `yaml:"confidence"`
}

type ConfidenceConfig struct {
	Priors              map[string]float64 `yaml:"priors"`
	DefaultPrior        float64            `yaml:"default_prior"`
	SourceOrder         []string           `yaml:"source_order"`
	InitialPosterior    float64            `yaml:"initial_posterior"`
	LikelihoodSteepness float64            `yaml:"likelihood_steepness"`

	PreseasonAdjustment         float64 `yaml:"preseason_adjustment"`
	PlayoffAdjustment           float64 `yaml:"playoff_adjustment"`
	BackToBackAdjustment        float64 `yaml:"back_to_back_adjustment"`
	NationalBroadcastAdjustment float64 `yaml:"national_broadcast_adjustment"`

	BaseThreshold            float64 `yaml:"base_threshold"`
	ReliabilityThresholdSpan float64 `yaml:"reliability_threshold_span"` // +/- span at reliability 0 / 1
	PreseasonThresholdShift  float64 `yaml:"preseason_threshold_shift"`
	PlayoffThresholdShift    float64 `yaml:"playoff_threshold_shift"`
	MinThreshold             float64 `yaml:"min_threshold"`
	MaxThreshold             float64 `yaml:"max_threshold"`
}

// Defaults returns the configuration used when a key is absent from the file.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Addr:              ":8080",
			ReadHeaderTimeout: 5 * time.Second,
			RequestTimeout:    30 * time.Second,
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Redis:   RedisConfig{KeyPrefix: "odds"},
		Market: MarketConfig{
			Source:       "http",
			FetchTimeout: 10 * time.Second,
			MaxAge:       15 * time.Minute,
		},
		Engine: DefaultEngineConfig(),
	}
}

// DefaultEngineConfig returns the engine constants.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		MinLegs:          2,
		LineTolerance:    0.5,
		OddsDriftPercent: 10.0,
		LineMarkets:      []string{"spreads", "totals", "alternate_spreads", "alternate_totals"},
		BatchConcurrency: 8,
		TaxBase:          1.1,
		TaxSlope:         0.2,
		Confidence: ConfidenceConfig{
			Priors: map[string]float64{
				"model_confidence":  0.5,
				"retrieval_quality": 0.6,
				"market_signal":     0.5,
				"injury_signal":     0.7,
				"sharp_signal":      0.8,
				"public_signal":     0.4,
			},
			DefaultPrior: 0.5,
			SourceOrder: []string{
				"market_signal",
				"sharp_signal",
				"public_signal",
				"model_confidence",
				"retrieval_quality",
				"injury_signal",
			},
			InitialPosterior:    0.5,
			LikelihoodSteepness: 5.0,

			PreseasonAdjustment:         -0.08,
			PlayoffAdjustment:           0.05,
			BackToBackAdjustment:        -0.03,
			NationalBroadcastAdjustment: 0.02,

			BaseThreshold:            0.6,
			ReliabilityThresholdSpan: 0.05,
			PreseasonThresholdShift:  0.05,
			PlayoffThresholdShift:    -0.03,
			MinThreshold:             ThresholdFloor,
			MaxThreshold:             ThresholdCeiling,
		},
	}
}

// Load reads the YAML file at configPath on top of Defaults, then applies
// environment overrides (a .env file in the working directory is honoured).
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Defaults()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	_ = godotenv.Load()
	applyEnvOverrides(&config)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &config, nil
}

func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Postgres.DSN, "POSTGRES_DSN")
	setStr(&cfg.Redis.Addr, "REDIS_ADDR")
	setStr(&cfg.Redis.Password, "REDIS_PASSWORD")
	setStr(&cfg.Market.OddsURL, "ODDS_URL")
	setStr(&cfg.Market.Source, "MARKET_SOURCE")
	setStr(&cfg.Telegram.BotToken, "TELEGRAM_BOT_TOKEN")
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Telegram.ChatID = id
		}
	}
}

func setStr(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

// Validate checks the engine constants for internal consistency.
func (c *Config) Validate() error {
	var errs []error
	switch strings.ToLower(c.Market.Source) {
	case "http", "postgres", "redis":
	default:
		errs = append(errs, fmt.Errorf("market.source must be http, postgres or redis, got %q", c.Market.Source))
	}
	if err := c.Engine.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Validate checks the engine constants only.
func (e *EngineConfig) Validate() error {
	var errs []error
	if e.MinLegs < 1 {
		errs = append(errs, fmt.Errorf("engine.min_legs must be >= 1, got %d", e.MinLegs))
	}
	if e.LineTolerance < 0 {
		errs = append(errs, fmt.Errorf("engine.line_tolerance must be >= 0, got %v", e.LineTolerance))
	}
	if e.OddsDriftPercent < 0 {
		errs = append(errs, fmt.Errorf("engine.odds_drift_percent must be >= 0, got %v", e.OddsDriftPercent))
	}
	if e.TaxBase < 1 {
		errs = append(errs, fmt.Errorf("engine.tax_base must be >= 1 to keep the multiplier >= 1, got %v", e.TaxBase))
	}
	if e.TaxSlope < 0 {
		errs = append(errs, fmt.Errorf("engine.tax_slope must be >= 0, got %v", e.TaxSlope))
	}

	c := e.Confidence
	for k, p := range c.Priors {
		if p < 0 || p > 1 {
			errs = append(errs, fmt.Errorf("engine.confidence.priors[%s] must be in [0,1], got %v", k, p))
		}
	}
	if c.DefaultPrior < 0 || c.DefaultPrior > 1 {
		errs = append(errs, fmt.Errorf("engine.confidence.default_prior must be in [0,1], got %v", c.DefaultPrior))
	}
	if c.InitialPosterior <= 0 || c.InitialPosterior >= 1 {
		errs = append(errs, fmt.Errorf("engine.confidence.initial_posterior must be in (0,1), got %v", c.InitialPosterior))
	}
	if c.LikelihoodSteepness <= 0 {
		errs = append(errs, fmt.Errorf("engine.confidence.likelihood_steepness must be > 0, got %v", c.LikelihoodSteepness))
	}
	if c.MinThreshold < ThresholdFloor || c.MaxThreshold > ThresholdCeiling || c.MinThreshold > c.MaxThreshold {
		errs = append(errs, fmt.Errorf("engine.confidence threshold bounds invalid: [%v, %v] must lie within [%v, %v]",
			c.MinThreshold, c.MaxThreshold, ThresholdFloor, ThresholdCeiling))
	}
	return errors.Join(errs...)
}
