package backtest

import (
	"math"

	"github.com/creasty/defaults"
	"gonum.org/v1/gonum/stat"

	"github.com/seenimoa/ratingrisk/pkg/models"
)

// ════════════════════════════════════════════════════════════════════
// Regime Bias
// ════════════════════════════════════════════════════════════════════

// BiasThresholds grade the overall degradation, in percent.
type BiasThresholds struct {
	HighPct   float64 `default:"20"`
	MediumPct float64 `default:"10"`
}

var biasAdvice = map[models.BiasLevel]struct{ recommendation, cadence string }{
	models.BiasHigh: {
		"Significant regime bias. Consider regime-switching models or separate training on the stress period.",
		"monthly",
	},
	models.BiasMedium: {
		"Moderate regime bias. Monitor model performance and retrain periodically.",
		"quarterly",
	},
	models.BiasLow: {
		"Minimal regime bias. The model appears robust across market conditions.",
		"annually",
	},
}

// AnalyzeRegimeBias compares rows flagged as inside the stress regime with
// the rest. It returns false when either group is empty. Zero thresholds
// take defaults.
func AnalyzeRegimeBias(rows []models.BacktestResult, th BiasThresholds) (*models.RegimeBias, bool) {
	_ = defaults.Set(&th)
	var regime, normal []models.BacktestResult
	for _, r := range rows {
		if r.RegimeFlag {
			regime = append(regime, r)
		} else {
			normal = append(normal, r)
		}
	}
	if len(regime) == 0 || len(normal) == 0 {
		return nil, false
	}

	rb := &models.RegimeBias{
		RegimeRows: len(regime),
		NormalRows: len(normal),
	}
	rb.Regime, rb.RegimeStd = groupStats(regime)
	rb.Normal, rb.NormalStd = groupStats(normal)
	rb.Degradation = models.MetricMeans{
		ConcordanceIndex: degradation(rb.Normal.ConcordanceIndex, rb.Regime.ConcordanceIndex),
		HorizonAUC:       degradation(rb.Normal.HorizonAUC, rb.Regime.HorizonAUC),
		// Lower is better for Brier.
		BrierScore: growth(rb.Normal.BrierScore, rb.Regime.BrierScore),
	}
	rb.OverallDegradationPct = (rb.Degradation.ConcordanceIndex + rb.Degradation.HorizonAUC) / 2

	switch {
	case rb.OverallDegradationPct > th.HighPct:
		rb.Level = models.BiasHigh
	case rb.OverallDegradationPct > th.MediumPct:
		rb.Level = models.BiasMedium
	default:
		rb.Level = models.BiasLow
	}
	advice := biasAdvice[rb.Level]
	rb.Recommendation = advice.recommendation
	rb.RetrainCadence = advice.cadence
	return rb, true
}

// groupStats returns the per-metric mean and sample standard deviation.
// A single-row group has zero spread.
func groupStats(rows []models.BacktestResult) (mean, std models.MetricMeans) {
	c := make([]float64, len(rows))
	a := make([]float64, len(rows))
	b := make([]float64, len(rows))
	for i, r := range rows {
		c[i], a[i], b[i] = r.ConcordanceIndex, r.HorizonAUC, r.BrierScore
	}
	mean.ConcordanceIndex, std.ConcordanceIndex = meanStd(c)
	mean.HorizonAUC, std.HorizonAUC = meanStd(a)
	mean.BrierScore, std.BrierScore = meanStd(b)
	return mean, std
}

func meanStd(x []float64) (float64, float64) {
	m, sd := stat.MeanStdDev(x, nil)
	if len(x) < 2 || math.IsNaN(sd) {
		sd = 0
	}
	return m, sd
}

// degradation returns (base - other) / base in percent, or 0 when base is 0.
func degradation(base, other float64) float64 {
	if base == 0 {
		return 0
	}
	return (base - other) / base * 100
}

// growth returns (other - base) / base in percent, or 0 when base is 0.
func growth(base, other float64) float64 {
	if base == 0 {
		return 0
	}
	return (other - base) / base * 100
}
