package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seenimoa/ratingrisk/internal/backtest"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 90, cfg.Scoring.HorizonDays)
	assert.InDelta(t, 0.85, cfg.Scoring.Ceiling, 1e-12)
	assert.InDelta(t, 1.2, cfg.Scoring.WDNRMultiplier, 1e-12)
	assert.Equal(t, 60*time.Second, cfg.Training.FitTimeout)
	assert.Equal(t, 300*time.Second, cfg.Training.TotalTimeout)
	assert.Equal(t, 24*time.Hour, cfg.Store.RunTTL)
	assert.Equal(t, "ratingrisk", cfg.Metrics.Namespace)
	require.Len(t, cfg.Backtest.Splits, 3)
	assert.Equal(t, "main_split", cfg.Backtest.Splits[0].Name)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
scoring:
  horizon_days: 180
  floor: 0.002
training:
  fit_timeout: 5s
backtest:
  splits:
    - name: only
      train_start: "2010-01-01"
      train_end: "2015-12-31"
      validation_start: "2016-01-01"
      validation_end: "2017-12-31"
      test_start: "2018-01-01"
      test_end: "2019-12-31"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 180, cfg.Scoring.HorizonDays)
	assert.InDelta(t, 0.002, cfg.Scoring.Floor, 1e-12)
	assert.Equal(t, 5*time.Second, cfg.Training.FitTimeout)
	require.Len(t, cfg.Backtest.Splits, 1)
	assert.Equal(t, "only", cfg.Backtest.Splits[0].Name)
	// untouched sections keep defaults
	assert.Equal(t, 30, cfg.Preprocess.WithdrawalThresholdDays)
}

func TestEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: info\n"), 0o600))
	t.Setenv("RATINGRISK_LOGGING_LEVEL", "debug")
	t.Setenv("RATINGRISK_SCORING_HORIZON_DAYS", "365")

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 365, cfg.Scoring.HorizonDays)
}

func TestLoadFromFileMissing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"floor above ceiling", "scoring:\n  floor: 0.9\n", "Floor"},
		{"thresholds out of order", "scoring:\n  medium_threshold: 0.4\n", "MediumThreshold"},
		{"bad level", "logging:\n  level: loud\n", "Level"},
		{"bad split date", "backtest:\n  splits:\n    - name: x\n      train_start: 2010/01/01\n", "TrainStart"},
		{"total below fit budget", "training:\n  total_timeout: 1s\n", "TotalTimeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.body), 0o600))
			_, err := LoadFromFile(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestPackageConfigs(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
	cfg, err := Load()
	require.NoError(t, err)

	sc := cfg.Scoring.Scorer()
	assert.Equal(t, 90, sc.HorizonDays)
	assert.InDelta(t, 0.7, sc.Predict.ShortHorizonExponent, 1e-12)

	fb := cfg.Fallback.Params()
	assert.InDelta(t, 0.3, fb.StressK, 1e-12)

	tr := cfg.Training.Trainer()
	assert.Equal(t, 2, tr.MinEvents)
	cox := cfg.Training.Cox()
	assert.InDelta(t, 0.1, cox.Penalizer, 1e-12)
	assert.Equal(t, 50, cox.MaxIter)
	assert.Greater(t, cox.Tolerance, 0.0)

	pp := cfg.Preprocess.Preprocessor()
	assert.Equal(t, 90, pp.AlertThresholdDays)

	bt, err := cfg.Backtest.Engine()
	require.NoError(t, err)
	assert.Equal(t, backtest.DefaultSplits(), bt.Splits)
	assert.Equal(t, backtest.DefaultRegimeWindow(), bt.RegimeWindow)
	assert.InDelta(t, 20.0, bt.Bias.HighPct, 1e-12)

	assert.Equal(t, "stderr", cfg.Logging.Logger().Output)
}

func TestEngineRejectsInvertedWindow(t *testing.T) {
	bc := BacktestConfig{
		HorizonDays: 90, RegimeStart: "2021-01-01", RegimeEnd: "2020-01-01",
	}
	_, err := bc.Engine()
	require.Error(t, err)
}
