// Package config handles configuration loading for ratingrisk.
// It supports YAML config files with environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/seenimoa/ratingrisk/internal/backtest"
	"github.com/seenimoa/ratingrisk/internal/episode"
	"github.com/seenimoa/ratingrisk/internal/hazard"
	"github.com/seenimoa/ratingrisk/internal/infra"
	"github.com/seenimoa/ratingrisk/internal/scorer"
	"github.com/seenimoa/ratingrisk/pkg/utils"
)

// EnvPrefix prefixes environment overrides, e.g. RATINGRISK_SCORING_HORIZON_DAYS.
const EnvPrefix = "RATINGRISK"

// Config represents the complete application configuration.
type Config struct {
	Logging    LoggingConfig    `mapstructure:"logging"    yaml:"logging"`
	Scoring    ScoringConfig    `mapstructure:"scoring"    yaml:"scoring"`
	Fallback   FallbackConfig   `mapstructure:"fallback"   yaml:"fallback"`
	Training   TrainingConfig   `mapstructure:"training"   yaml:"training"`
	Backtest   BacktestConfig   `mapstructure:"backtest"   yaml:"backtest"`
	Preprocess PreprocessConfig `mapstructure:"preprocess" yaml:"preprocess"`
	Metrics    MetricsConfig    `mapstructure:"metrics"    yaml:"metrics"`
	Store      StoreConfig      `mapstructure:"store"      yaml:"store"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"  validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" yaml:"format" validate:"oneof=text console json"`
	Output string `mapstructure:"output" yaml:"output"` // stderr, stdout or a file path
}

// ScoringConfig holds risk scorer settings.
type ScoringConfig struct {
	HorizonDays          int     `mapstructure:"horizon_days"           yaml:"horizon_days"           validate:"gte=0"`
	NRThresholdDays      int     `mapstructure:"nr_threshold_days"      yaml:"nr_threshold_days"      validate:"gte=0"`
	WDNRMultiplier       float64 `mapstructure:"wd_nr_multiplier"       yaml:"wd_nr_multiplier"       validate:"gte=1"`
	NRMaxMultiplier      float64 `mapstructure:"nr_max_multiplier"      yaml:"nr_max_multiplier"      validate:"gte=1"`
	ShortHorizonExponent float64 `mapstructure:"short_horizon_exponent" yaml:"short_horizon_exponent" validate:"gt=0"`
	Floor                float64 `mapstructure:"floor"                  yaml:"floor"                  validate:"gt=0,ltfield=Ceiling"`
	Ceiling              float64 `mapstructure:"ceiling"                yaml:"ceiling"                validate:"lte=1"`
	HighThreshold        float64 `mapstructure:"high_threshold"         yaml:"high_threshold"         validate:"lte=1"`
	MediumThreshold      float64 `mapstructure:"medium_threshold"       yaml:"medium_threshold"       validate:"ltfield=HighThreshold"`
	LowThreshold         float64 `mapstructure:"low_threshold"          yaml:"low_threshold"          validate:"gt=0,ltfield=MediumThreshold"`
}

// FallbackConfig recalibrates the fallback hazard table.
type FallbackConfig struct {
	BaselineScale         float64 `mapstructure:"baseline_scale"          yaml:"baseline_scale"          validate:"gt=0"`
	RatingMultiplierScale float64 `mapstructure:"rating_multiplier_scale" yaml:"rating_multiplier_scale" validate:"gt=0"`
	StressK               float64 `mapstructure:"stress_k"                yaml:"stress_k"                validate:"gte=0"`
	TimeExponent          float64 `mapstructure:"time_exponent"           yaml:"time_exponent"           validate:"gt=0"`
}

// TrainingConfig holds hazard model fitting settings.
type TrainingConfig struct {
	MinEvents    int           `mapstructure:"min_events"    yaml:"min_events"    validate:"gte=1"`
	FitTimeout   time.Duration `mapstructure:"fit_timeout"   yaml:"fit_timeout"   validate:"gt=0"`
	TotalTimeout time.Duration `mapstructure:"total_timeout" yaml:"total_timeout" validate:"gtefield=FitTimeout"`
	Workers      int           `mapstructure:"workers"       yaml:"workers"       validate:"gte=0"` // 0 = number of CPUs
	Penalizer    float64       `mapstructure:"penalizer"     yaml:"penalizer"     validate:"gt=0"`
	MaxIter      int           `mapstructure:"max_iter"      yaml:"max_iter"      validate:"gt=0"`
}

// SplitConfig is one out-of-time partition. Dates are YYYY-MM-DD.
type SplitConfig struct {
	Name            string `mapstructure:"name"             yaml:"name"             validate:"required"`
	TrainStart      string `mapstructure:"train_start"      yaml:"train_start"      validate:"datetime=2006-01-02"`
	TrainEnd        string `mapstructure:"train_end"        yaml:"train_end"        validate:"datetime=2006-01-02"`
	ValidationStart string `mapstructure:"validation_start" yaml:"validation_start" validate:"datetime=2006-01-02"`
	ValidationEnd   string `mapstructure:"validation_end"   yaml:"validation_end"   validate:"datetime=2006-01-02"`
	TestStart       string `mapstructure:"test_start"       yaml:"test_start"       validate:"datetime=2006-01-02"`
	TestEnd         string `mapstructure:"test_end"         yaml:"test_end"         validate:"datetime=2006-01-02"`
}

// BacktestConfig holds backtest settings.
type BacktestConfig struct {
	HorizonDays   int           `mapstructure:"horizon_days"    yaml:"horizon_days"    validate:"gt=0"`
	RegimeStart   string        `mapstructure:"regime_start"    yaml:"regime_start"    validate:"datetime=2006-01-02"`
	RegimeEnd     string        `mapstructure:"regime_end"      yaml:"regime_end"      validate:"datetime=2006-01-02"`
	HighBiasPct   float64       `mapstructure:"high_bias_pct"   yaml:"high_bias_pct"   validate:"gtfield=MediumBiasPct"`
	MediumBiasPct float64       `mapstructure:"medium_bias_pct" yaml:"medium_bias_pct" validate:"gt=0"`
	Splits        []SplitConfig `mapstructure:"splits"          yaml:"splits"          validate:"min=1,dive"`
}

// PreprocessConfig holds rating panel settings.
type PreprocessConfig struct {
	WithdrawalThresholdDays int `mapstructure:"withdrawal_threshold_days" yaml:"withdrawal_threshold_days" validate:"gt=0"`
	AlertThresholdDays      int `mapstructure:"alert_threshold_days"      yaml:"alert_threshold_days"      validate:"gt=0"`
}

// MetricsConfig holds Prometheus settings.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"   yaml:"enabled"`
	Namespace string `mapstructure:"namespace" yaml:"namespace"`
}

// StoreConfig holds the model run store settings.
type StoreConfig struct {
	RunTTL time.Duration `mapstructure:"run_ttl" yaml:"run_ttl" validate:"gte=0"` // 0 keeps runs forever
}

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.ratingrisk/config.yaml (home directory)
//  3. /etc/ratingrisk/config.yaml (system)
//
// Environment variables override config file values.
// Format: RATINGRISK_<SECTION>_<KEY>, e.g., RATINGRISK_SCORING_HORIZON_DAYS
func Load() (*Config, error) {
	v := newViper()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".ratingrisk"))
	v.AddConfigPath("/etc/ratingrisk")

	// Read config file (not required to exist)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}
	return decode(v)
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}
	return decode(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %s %s", fe.Namespace(), fe.Tag(), fe.Param()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// setDefaults sets sensible defaults for all config values.
func setDefaults(v *viper.Viper) {
	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output", "stderr")

	// Scoring defaults
	v.SetDefault("scoring.horizon_days", 90)
	v.SetDefault("scoring.nr_threshold_days", 30)
	v.SetDefault("scoring.wd_nr_multiplier", 1.20)
	v.SetDefault("scoring.nr_max_multiplier", 1.5)
	v.SetDefault("scoring.short_horizon_exponent", 0.7)
	v.SetDefault("scoring.floor", 0.001)
	v.SetDefault("scoring.ceiling", 0.85)
	v.SetDefault("scoring.high_threshold", 0.30)
	v.SetDefault("scoring.medium_threshold", 0.10)
	v.SetDefault("scoring.low_threshold", 0.05)

	// Fallback defaults
	v.SetDefault("fallback.baseline_scale", 1.0)
	v.SetDefault("fallback.rating_multiplier_scale", 1.0)
	v.SetDefault("fallback.stress_k", 0.3)
	v.SetDefault("fallback.time_exponent", 0.5)

	// Training defaults
	v.SetDefault("training.min_events", 2)
	v.SetDefault("training.fit_timeout", "60s")
	v.SetDefault("training.total_timeout", "300s")
	v.SetDefault("training.workers", 0)
	v.SetDefault("training.penalizer", 0.1)
	v.SetDefault("training.max_iter", 50)

	// Backtest defaults
	v.SetDefault("backtest.horizon_days", 90)
	v.SetDefault("backtest.regime_start", "2020-01-01")
	v.SetDefault("backtest.regime_end", "2021-12-31")
	v.SetDefault("backtest.high_bias_pct", 20.0)
	v.SetDefault("backtest.medium_bias_pct", 10.0)
	v.SetDefault("backtest.splits", defaultSplits())

	// Preprocess defaults
	v.SetDefault("preprocess.withdrawal_threshold_days", 30)
	v.SetDefault("preprocess.alert_threshold_days", 90)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.namespace", "ratingrisk")

	// Store defaults
	v.SetDefault("store.run_ttl", "24h")
}

func defaultSplits() []map[string]any {
	var out []map[string]any
	for _, s := range backtest.DefaultSplits() {
		out = append(out, map[string]any{
			"name":             s.Name,
			"train_start":      utils.FormatDate(s.Train.Start),
			"train_end":        utils.FormatDate(s.Train.End),
			"validation_start": utils.FormatDate(s.Validation.Start),
			"validation_end":   utils.FormatDate(s.Validation.End),
			"test_start":       utils.FormatDate(s.Test.Start),
			"test_end":         utils.FormatDate(s.Test.End),
		})
	}
	return out
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}

// ════════════════════════════════════════════════════════════════════
// Package configs
// ════════════════════════════════════════════════════════════════════

// Logger returns the infra logging config.
func (c LoggingConfig) Logger() infra.LogConfig {
	return infra.LogConfig{Level: c.Level, Format: c.Format, Output: c.Output}
}

// Scorer returns the scorer config.
func (c ScoringConfig) Scorer() scorer.Config {
	return scorer.Config{
		HorizonDays:     c.HorizonDays,
		Floor:           c.Floor,
		Ceiling:         c.Ceiling,
		WDNRMultiplier:  c.WDNRMultiplier,
		NRThresholdDays: c.NRThresholdDays,
		NRMaxMultiplier: c.NRMaxMultiplier,
		HighThreshold:   c.HighThreshold,
		MediumThreshold: c.MediumThreshold,
		LowThreshold:    c.LowThreshold,
		Predict:         hazard.PredictConfig{ShortHorizonExponent: c.ShortHorizonExponent},
	}
}

// Params returns the fallback estimator parameters.
func (c FallbackConfig) Params() hazard.FallbackParams {
	return hazard.FallbackParams{
		BaselineScale:         c.BaselineScale,
		RatingMultiplierScale: c.RatingMultiplierScale,
		StressK:               c.StressK,
		TimeExponent:          c.TimeExponent,
	}
}

// Trainer returns the trainer config.
func (c TrainingConfig) Trainer() hazard.TrainerConfig {
	return hazard.TrainerConfig{
		MinEvents:    c.MinEvents,
		FitTimeout:   c.FitTimeout,
		TotalTimeout: c.TotalTimeout,
		Workers:      c.Workers,
	}
}

// Cox returns the Cox solver settings.
func (c TrainingConfig) Cox() hazard.CoxPH {
	return hazard.NewCoxPH(hazard.CoxPH{Penalizer: c.Penalizer, MaxIter: c.MaxIter})
}

// Preprocessor returns the panel preprocessor config.
func (c PreprocessConfig) Preprocessor() episode.PreprocessConfig {
	return episode.PreprocessConfig{
		WithdrawalThresholdDays: c.WithdrawalThresholdDays,
		AlertThresholdDays:      c.AlertThresholdDays,
	}
}

// Engine returns the backtest engine config.
func (c BacktestConfig) Engine() (backtest.Config, error) {
	regime, err := parseWindow(c.RegimeStart, c.RegimeEnd)
	if err != nil {
		return backtest.Config{}, fmt.Errorf("regime window: %w", err)
	}
	out := backtest.Config{
		HorizonDays:  c.HorizonDays,
		RegimeWindow: regime,
		Bias:         backtest.BiasThresholds{HighPct: c.HighBiasPct, MediumPct: c.MediumBiasPct},
		Splits:       make([]backtest.Split, 0, len(c.Splits)),
	}
	for _, s := range c.Splits {
		split := backtest.Split{Name: s.Name}
		if split.Train, err = parseWindow(s.TrainStart, s.TrainEnd); err != nil {
			return backtest.Config{}, fmt.Errorf("split %s train: %w", s.Name, err)
		}
		if split.Validation, err = parseWindow(s.ValidationStart, s.ValidationEnd); err != nil {
			return backtest.Config{}, fmt.Errorf("split %s validation: %w", s.Name, err)
		}
		if split.Test, err = parseWindow(s.TestStart, s.TestEnd); err != nil {
			return backtest.Config{}, fmt.Errorf("split %s test: %w", s.Name, err)
		}
		out.Splits = append(out.Splits, split)
	}
	return out, nil
}

func parseWindow(start, end string) (episode.Window, error) {
	s, err := utils.ParseDate(start)
	if err != nil {
		return episode.Window{}, err
	}
	e, err := utils.ParseDate(end)
	if err != nil {
		return episode.Window{}, err
	}
	if e.Before(s) {
		return episode.Window{}, fmt.Errorf("end %s before start %s", end, start)
	}
	return episode.Window{Start: s, End: e}, nil
}
