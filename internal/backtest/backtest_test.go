package backtest

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seenimoa/ratingrisk/internal/episode"
	"github.com/seenimoa/ratingrisk/internal/infra"
	"github.com/seenimoa/ratingrisk/internal/rating"
	"github.com/seenimoa/ratingrisk/pkg/models"
	"github.com/seenimoa/ratingrisk/pkg/utils"
)

// ════════════════════════════════════════════════════════════════════
// Test Helpers
// ════════════════════════════════════════════════════════════════════

// ratingHistory generates deterministic rating paths from 2010 to 2024.
// Issuers with high starting severity drift down more often.
func ratingHistory(issuers int) ([]models.RatingObservation, []models.CovariateSnapshot) {
	scale := rating.Standard()
	end := utils.MustDate("2024-12-31")

	var obs []models.RatingObservation
	var snaps []models.CovariateSnapshot
	for k := 0; k < issuers; k++ {
		id := "ISS" + string(rune('A'+k/26)) + string(rune('A'+k%26))
		sev := 3 + k%12
		date := utils.MustDate("2010-01-01").AddDate(0, 0, k*11)

		snaps = append(snaps, models.CovariateSnapshot{
			IssuerID: id,
			Date:     date,
			Ratios: map[string]float64{
				models.RatioDebtToAssets: 0.25 + 0.05*float64(k%12),
				models.RatioROA:          0.08 - 0.01*float64(k%12),
			},
		})

		for n := 0; !date.After(end); n++ {
			sym, _ := scale.Symbol(sev)
			obs = append(obs, models.RatingObservation{IssuerID: id, Date: date, Rating: sym})

			switch {
			case (k+n)%4 == 0 && sev < 19:
				sev++
			case (k*3+n)%7 == 0 && sev > 1:
				sev--
			}
			date = date.AddDate(0, 0, 120+(k*37+n*53)%300)
		}
	}
	return obs, snaps
}

func newTestEngine(cfg Config, opts ...Option) *Engine {
	return NewEngine(cfg, nil, zerolog.Nop(), opts...)
}

// ════════════════════════════════════════════════════════════════════
// Metrics
// ════════════════════════════════════════════════════════════════════

func TestConcordanceIndex(t *testing.T) {
	durations := []float64{1, 2, 3, 4}
	all := []bool{true, true, true, true}

	tests := []struct {
		name   string
		events []bool
		risk   []float64
		want   float64
	}{
		{"perfect", all, []float64{0.9, 0.6, 0.3, 0.1}, 1},
		{"inverted", all, []float64{0.1, 0.3, 0.6, 0.9}, 0},
		{"tied", all, []float64{0.5, 0.5, 0.5, 0.5}, 0.5},
		{"no events", []bool{false, false, false, false}, []float64{0.9, 0.6, 0.3, 0.1}, 0.5},
		// Only the subject at t=2 has an event: pairs (2,3) and (2,4).
		{"censored", []bool{false, true, false, false}, []float64{0.1, 0.6, 0.9, 0.3}, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, ConcordanceIndex(durations, tt.events, tt.risk), 1e-12)
		})
	}
}

func TestHorizonAUC(t *testing.T) {
	tests := []struct {
		name   string
		scores []float64
		labels []bool
		want   float64
	}{
		{"perfect", []float64{0.1, 0.2, 0.8, 0.9}, []bool{false, false, true, true}, 1},
		{"inverted", []float64{0.9, 0.8, 0.2, 0.1}, []bool{false, false, true, true}, 0},
		{"unsorted", []float64{0.8, 0.1, 0.9, 0.2}, []bool{true, false, true, false}, 1},
		{"tied", []float64{0.4, 0.4, 0.4, 0.4}, []bool{false, true, false, true}, 0.5},
		{"single class", []float64{0.1, 0.9}, []bool{false, false}, 0.5},
		{"empty", nil, nil, 0.5},
		{"mixed", []float64{0, 3, 5, 6, 7.5, 8}, []bool{false, true, false, true, true, true}, 0.9375},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, HorizonAUC(tt.scores, tt.labels), 1e-12)
		})
	}

	scores := []float64{0.8, 0.1}
	HorizonAUC(scores, []bool{true, false})
	assert.Equal(t, []float64{0.8, 0.1}, scores, "input must not be reordered")
}

func TestBrierScore(t *testing.T) {
	assert.Equal(t, 0.0, BrierScore([]float64{1, 0}, []bool{true, false}))
	assert.Equal(t, 1.0, BrierScore([]float64{0, 1}, []bool{true, false}))
	assert.InDelta(t, 0.25, BrierScore([]float64{0.5, 0.5}, []bool{true, false}), 1e-12)
	assert.Equal(t, 0.0, BrierScore(nil, nil))
}

// ════════════════════════════════════════════════════════════════════
// Regime bias
// ════════════════════════════════════════════════════════════════════

func biasRows(regimeMetric, regimeBrier float64) []models.BacktestResult {
	return []models.BacktestResult{
		{ConcordanceIndex: 0.8, HorizonAUC: 0.8, BrierScore: 0.1},
		{ConcordanceIndex: 0.8, HorizonAUC: 0.8, BrierScore: 0.1},
		{ConcordanceIndex: regimeMetric, HorizonAUC: regimeMetric, BrierScore: regimeBrier, RegimeFlag: true},
	}
}

func TestAnalyzeRegimeBias(t *testing.T) {
	tests := []struct {
		name        string
		regime      float64
		wantLevel   models.BiasLevel
		wantPct     float64
		wantCadence string
	}{
		{"high", 0.6, models.BiasHigh, 25, "monthly"},
		{"medium", 0.7, models.BiasMedium, 12.5, "quarterly"},
		{"low", 0.78, models.BiasLow, 2.5, "annually"},
		{"improved", 0.9, models.BiasLow, -12.5, "annually"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rb, ok := AnalyzeRegimeBias(biasRows(tt.regime, 0.15), BiasThresholds{})
			require.True(t, ok)
			assert.Equal(t, 1, rb.RegimeRows)
			assert.Equal(t, 2, rb.NormalRows)
			assert.InDelta(t, tt.wantPct, rb.OverallDegradationPct, 1e-9)
			assert.InDelta(t, 50, rb.Degradation.BrierScore, 1e-9)
			assert.Equal(t, tt.wantLevel, rb.Level)
			assert.Equal(t, tt.wantCadence, rb.RetrainCadence)
			assert.NotEmpty(t, rb.Recommendation)
		})
	}
}

func TestAnalyzeRegimeBiasSpread(t *testing.T) {
	rows := []models.BacktestResult{
		{ConcordanceIndex: 0.7, HorizonAUC: 0.8, BrierScore: 0.1},
		{ConcordanceIndex: 0.9, HorizonAUC: 0.8, BrierScore: 0.3},
		{ConcordanceIndex: 0.6, HorizonAUC: 0.6, BrierScore: 0.2, RegimeFlag: true},
	}
	rb, ok := AnalyzeRegimeBias(rows, BiasThresholds{})
	require.True(t, ok)

	assert.InDelta(t, 0.8, rb.Normal.ConcordanceIndex, 1e-9)
	assert.InDelta(t, math.Sqrt(0.02), rb.NormalStd.ConcordanceIndex, 1e-9)
	assert.InDelta(t, 0, rb.NormalStd.HorizonAUC, 1e-9)
	assert.InDelta(t, math.Sqrt(0.02), rb.NormalStd.BrierScore, 1e-9)
	// One regime row has no spread.
	assert.Equal(t, models.MetricMeans{}, rb.RegimeStd)
}

func TestAnalyzeRegimeBiasNeedsBothGroups(t *testing.T) {
	rows := biasRows(0.6, 0.1)[:2]
	_, ok := AnalyzeRegimeBias(rows, BiasThresholds{})
	assert.False(t, ok)

	_, ok = AnalyzeRegimeBias(nil, BiasThresholds{})
	assert.False(t, ok)
}

// ════════════════════════════════════════════════════════════════════
// Engine
// ════════════════════════════════════════════════════════════════════

func TestDefaultSplits(t *testing.T) {
	splits := DefaultSplits()
	require.Len(t, splits, 3)
	assert.Equal(t, "main_split", splits[0].Name)
	assert.Equal(t, "covid_analysis", splits[1].Name)
	assert.Equal(t, "rolling_window", splits[2].Name)
	for _, s := range splits {
		assert.True(t, s.Train.End.Before(s.Validation.Start), s.Name)
		assert.True(t, s.Validation.End.Before(s.Test.Start), s.Name)
	}
}

func TestEngineRun(t *testing.T) {
	obs, snaps := ratingHistory(48)
	e := newTestEngine(Config{})

	rep, err := e.Run(context.Background(), obs, snaps)
	require.NoError(t, err)
	assert.Empty(t, rep.Skipped)
	assert.Equal(t, 90, rep.HorizonDays)

	perSplit := 3 * len(models.ModeledTransitions)
	require.Len(t, rep.Rows, 3*perSplit)
	assert.Equal(t, "main_split", rep.Rows[0].SplitName)
	assert.Equal(t, "covid_analysis", rep.Rows[perSplit].SplitName)
	assert.Equal(t, "rolling_window", rep.Rows[2*perSplit].SplitName)

	for _, r := range rep.Rows {
		assert.GreaterOrEqual(t, r.ConcordanceIndex, 0.0)
		assert.LessOrEqual(t, r.ConcordanceIndex, 1.0)
		assert.GreaterOrEqual(t, r.HorizonAUC, 0.0)
		assert.LessOrEqual(t, r.HorizonAUC, 1.0)
		assert.GreaterOrEqual(t, r.BrierScore, 0.0)
		assert.LessOrEqual(t, r.BrierScore, 1.0)
		assert.Greater(t, r.NObservations, 0)
		assert.LessOrEqual(t, r.NEvents, r.NObservations)
	}

	flag := func(split string, p models.Period) bool {
		for _, r := range rep.Rows {
			if r.SplitName == split && r.Period == p {
				return r.RegimeFlag
			}
		}
		t.Fatalf("no rows for %s/%s", split, p)
		return false
	}
	assert.False(t, flag("main_split", models.PeriodTrain))
	assert.True(t, flag("main_split", models.PeriodValidation))
	assert.False(t, flag("main_split", models.PeriodTest))
	assert.True(t, flag("covid_analysis", models.PeriodValidation))
	assert.True(t, flag("rolling_window", models.PeriodTrain))

	require.NotNil(t, rep.Bias)
	assert.Contains(t, []models.BiasLevel{models.BiasHigh, models.BiasMedium, models.BiasLow}, rep.Bias.Level)
}

func TestEngineSkipsEmptyWindows(t *testing.T) {
	obs, snaps := ratingHistory(24)
	reg := prometheus.NewRegistry()
	metrics, err := infra.NewMetrics(infra.MetricsConfig{Registry: reg})
	require.NoError(t, err)

	w := func(a, b string) episode.Window {
		return episode.Window{Start: utils.MustDate(a), End: utils.MustDate(b)}
	}
	cfg := Config{Splits: []Split{
		{Name: "ancient", Train: w("1990-01-01", "1995-12-31"), Validation: w("1996-01-01", "1997-12-31"), Test: w("1998-01-01", "1999-12-31")},
		{Name: "partial", Train: w("2010-01-01", "2018-12-31"), Validation: w("1996-01-01", "1997-12-31"), Test: w("2022-01-01", "2024-12-31")},
	}}
	rep, err := newTestEngine(cfg, WithMetrics(metrics)).Run(context.Background(), obs, snaps)
	require.NoError(t, err)

	require.Len(t, rep.Skipped, 2)
	assert.Equal(t, "ancient", rep.Skipped[0].Split)
	assert.Empty(t, rep.Skipped[0].Period)
	assert.Contains(t, rep.Skipped[0].Reason, "train window")
	assert.Equal(t, "partial", rep.Skipped[1].Split)
	assert.Equal(t, models.PeriodValidation, rep.Skipped[1].Period)

	assert.Len(t, rep.Rows, 2*len(models.ModeledTransitions))
	assert.Nil(t, rep.Bias, "no rows fall in the regime window")

	expected := `
# HELP ratingrisk_backtest_skipped_splits_total Backtest splits skipped because of empty windows or training errors.
# TYPE ratingrisk_backtest_skipped_splits_total counter
ratingrisk_backtest_skipped_splits_total 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "ratingrisk_backtest_skipped_splits_total"))
}

func TestEngineRejectsDuplicateObservations(t *testing.T) {
	obs := []models.RatingObservation{
		{IssuerID: "X", Date: utils.MustDate("2015-01-01"), Rating: "A"},
		{IssuerID: "X", Date: utils.MustDate("2015-01-01"), Rating: "BBB"},
	}
	_, err := newTestEngine(Config{}).Run(context.Background(), obs, nil)
	assert.ErrorIs(t, err, episode.ErrDuplicateObservation)
}

func TestEngineCancelled(t *testing.T) {
	obs, snaps := ratingHistory(12)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestEngine(Config{}).Run(ctx, obs, snaps)
	assert.ErrorIs(t, err, context.Canceled)
}
