package hazard

import (
	"fmt"
	"math"

	"github.com/creasty/defaults"

	"github.com/seenimoa/ratingrisk/internal/rating"
	"github.com/seenimoa/ratingrisk/pkg/models"
)

// FallbackParams are the tunable hyperparameters of the fallback model.
// The two scales recalibrate the table without touching it.
type FallbackParams struct {
	BaselineScale         float64 `default:"1.0"`
	RatingMultiplierScale float64 `default:"1.0"`
	StressK               float64 `default:"0.3"`
	TimeExponent          float64 `default:"0.5"`
	Epsilon               float64 `default:"0.001"`
	MaxLambda             float64 `default:"1.0"`
}

// FallbackKey addresses one cell of the base hazard table.
type FallbackKey struct {
	Bucket rating.Bucket
	Type   models.TransitionType
}

// DefaultBaseHazards are annual base hazards per bucket and transition.
var DefaultBaseHazards = map[FallbackKey]float64{
	{rating.BucketPrime, models.TransitionUpgrade}:   0.02,
	{rating.BucketPrime, models.TransitionDowngrade}: 0.06,
	{rating.BucketPrime, models.TransitionDefault}:   0.0005,
	{rating.BucketPrime, models.TransitionWithdrawn}: 0.01,

	{rating.BucketHighGrade, models.TransitionUpgrade}:   0.05,
	{rating.BucketHighGrade, models.TransitionDowngrade}: 0.08,
	{rating.BucketHighGrade, models.TransitionDefault}:   0.001,
	{rating.BucketHighGrade, models.TransitionWithdrawn}: 0.012,

	{rating.BucketMediumGrade, models.TransitionUpgrade}:   0.07,
	{rating.BucketMediumGrade, models.TransitionDowngrade}: 0.10,
	{rating.BucketMediumGrade, models.TransitionDefault}:   0.003,
	{rating.BucketMediumGrade, models.TransitionWithdrawn}: 0.015,

	{rating.BucketSpeculative, models.TransitionUpgrade}:   0.08,
	{rating.BucketSpeculative, models.TransitionDowngrade}: 0.14,
	{rating.BucketSpeculative, models.TransitionDefault}:   0.02,
	{rating.BucketSpeculative, models.TransitionWithdrawn}: 0.02,

	{rating.BucketHighRisk, models.TransitionUpgrade}:   0.05,
	{rating.BucketHighRisk, models.TransitionDowngrade}: 0.25,
	{rating.BucketHighRisk, models.TransitionDefault}:   0.15,
	{rating.BucketHighRisk, models.TransitionWithdrawn}: 0.03,
}

// DefaultRatingMultipliers scale hazards by credit quality.
var DefaultRatingMultipliers = map[rating.Bucket]float64{
	rating.BucketPrime:       0.7,
	rating.BucketHighGrade:   0.85,
	rating.BucketMediumGrade: 1.0,
	rating.BucketSpeculative: 1.2,
	rating.BucketHighRisk:    1.5,
}

// StressTier adds Penalty when the ratio crosses Threshold.
type StressTier struct {
	Threshold float64
	Penalty   float64
}

// StressRule scores one ratio. Tiers are checked in order and the first
// match wins. Above selects "worse when higher".
type StressRule struct {
	Ratio string
	Above bool
	Tiers []StressTier
}

// DefaultStressRules cover leverage, liquidity and profitability.
var DefaultStressRules = []StressRule{
	{Ratio: models.RatioDebtToAssets, Above: true, Tiers: []StressTier{{0.8, 0.3}, {0.6, 0.1}}},
	{Ratio: models.RatioCurrentRatio, Above: false, Tiers: []StressTier{{0.5, 0.3}, {0.8, 0.1}}},
	{Ratio: models.RatioROA, Above: false, Tiers: []StressTier{{-0.02, 0.4}, {0.01, 0.2}}},
}

// FallbackEstimator is the deterministic bucket-calibrated hazard model.
// It is immutable and safe for concurrent use.
type FallbackEstimator struct {
	params FallbackParams
	base   map[FallbackKey]float64
	mult   map[rating.Bucket]float64
	rules  []StressRule
}

// NewFallbackEstimator builds an estimator over the default tables.
// Zero params take defaults.
func NewFallbackEstimator(p FallbackParams) *FallbackEstimator {
	return NewFallbackEstimatorWithTables(p, DefaultBaseHazards, DefaultRatingMultipliers, DefaultStressRules)
}

// NewFallbackEstimatorWithTables builds an estimator over custom tables.
// The tables are copied.
func NewFallbackEstimatorWithTables(p FallbackParams, base map[FallbackKey]float64, mult map[rating.Bucket]float64, rules []StressRule) *FallbackEstimator {
	_ = defaults.Set(&p)
	f := &FallbackEstimator{
		params: p,
		base:   make(map[FallbackKey]float64, len(base)),
		mult:   make(map[rating.Bucket]float64, len(mult)),
		rules:  append([]StressRule(nil), rules...),
	}
	for k, v := range base {
		f.base[k] = v
	}
	for k, v := range mult {
		f.mult[k] = v
	}
	return f
}

// Params returns the estimator's hyperparameters.
func (f *FallbackEstimator) Params() FallbackParams { return f.params }

// StressScore sums the first matching tier of each rule, capped at 1.
// Missing ratios contribute nothing.
func (f *FallbackEstimator) StressScore(ratios map[string]float64) float64 {
	score := 0.0
	for _, r := range f.rules {
		v, ok := ratios[r.Ratio]
		if !ok || !finite(v) {
			continue
		}
		for _, tier := range r.Tiers {
			if (r.Above && v > tier.Threshold) || (!r.Above && v < tier.Threshold) {
				score += tier.Penalty
				break
			}
		}
	}
	return math.Min(score, 1.0)
}

// CumulativeHazard returns the clamped fallback hazard over years.
func (f *FallbackEstimator) CumulativeHazard(bucket rating.Bucket, t models.TransitionType, ratios map[string]float64, years float64) float64 {
	p := f.params
	base := f.base[FallbackKey{bucket, t}]
	mult, ok := f.mult[bucket]
	if !ok {
		mult = 1
	}
	stress := 1 + f.StressScore(ratios)*p.StressK
	h := math.Max(years, 0)

	lambda := base * mult * p.RatingMultiplierScale * p.BaselineScale * stress * math.Pow(h, p.TimeExponent)
	if !finite(lambda) {
		lambda = p.MaxLambda
	}
	return math.Min(math.Max(lambda, p.Epsilon), p.MaxLambda)
}

// Estimate returns a FallbackUsed result for one transition.
func (f *FallbackEstimator) Estimate(in Input, t models.TransitionType, years float64, reason string) Result {
	lambda := f.CumulativeHazard(in.Bucket, t, in.Ratios, years)
	if reason == "" {
		reason = fmt.Sprintf("fallback table (%s)", in.Bucket)
	}
	return FallbackUsed(lambda, 1-math.Exp(-lambda), reason)
}
