// Package scorer turns a FirmProfile into a RiskAssessment using the
// per-transition models of one training run.
package scorer

import (
	"fmt"
	"math"

	"github.com/creasty/defaults"
	"github.com/rs/zerolog"

	"github.com/seenimoa/ratingrisk/internal/hazard"
	"github.com/seenimoa/ratingrisk/internal/infra"
	"github.com/seenimoa/ratingrisk/internal/rating"
	"github.com/seenimoa/ratingrisk/pkg/models"
	"github.com/seenimoa/ratingrisk/pkg/utils"
)

// Config holds scoring parameters. Zero fields take defaults.
type Config struct {
	HorizonDays int `default:"90"`

	// Floor and Ceiling bound the combined probability before any NR
	// adjustment.
	Floor   float64 `default:"0.001"`
	Ceiling float64 `default:"0.85"`

	WDNRMultiplier  float64 `default:"1.2"`
	NRThresholdDays int     `default:"30"`
	NRRampDays      float64 `default:"365"`
	NRRampSlope     float64 `default:"0.5"`
	NRMaxMultiplier float64 `default:"1.5"`

	HighThreshold   float64 `default:"0.30"`
	MediumThreshold float64 `default:"0.10"`
	LowThreshold    float64 `default:"0.05"`

	Predict hazard.PredictConfig
}

// Option customizes a Scorer.
type Option func(*Scorer)

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Scorer) { s.log = infra.Component(log, "scorer") }
}

// WithMetrics records assessments and fallback uses.
func WithMetrics(m *infra.Metrics) Option {
	return func(s *Scorer) { s.metrics = m }
}

// WithScale replaces the standard rating scale.
func WithScale(scale *rating.Scale) Option {
	return func(s *Scorer) {
		if scale != nil {
			s.scale = scale
		}
	}
}

// WithFallback replaces the default fallback estimator.
func WithFallback(f *hazard.FallbackEstimator) Option {
	return func(s *Scorer) {
		if f != nil {
			s.fallback = f
		}
	}
}

// Scorer computes risk assessments. It never mutates its models and is
// safe for concurrent use.
type Scorer struct {
	models   *hazard.ModelSet
	fallback *hazard.FallbackEstimator
	scale    *rating.Scale
	cfg      Config
	log      zerolog.Logger
	metrics  *infra.Metrics
}

// New creates a scorer over set. A nil set scores everything with the
// fallback estimator.
func New(set *hazard.ModelSet, cfg Config, opts ...Option) *Scorer {
	_ = defaults.Set(&cfg)
	s := &Scorer{
		models:   set,
		fallback: hazard.NewFallbackEstimator(hazard.FallbackParams{}),
		scale:    rating.Standard(),
		cfg:      cfg,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Config returns the effective configuration.
func (s *Scorer) Config() Config { return s.cfg }

// Score assesses firm over horizonDays. Only *InvalidInputError is
// returned; every hazard problem is absorbed by the fallback estimator.
func (s *Scorer) Score(firm models.FirmProfile, horizonDays int) (*models.RiskAssessment, error) {
	sev, err := checkProfile(s.scale, firm, horizonDays)
	if err != nil {
		return nil, err
	}

	ratios, warnings := CoerceRatios(firm.FinancialRatios)
	for _, w := range warnings {
		s.log.Warn().Str("company_id", firm.CompanyID).Msg(w)
	}

	in := hazard.NewInput(s.scale, sev, ratios)
	years := utils.DaysToYears(horizonDays)

	a := &models.RiskAssessment{
		CompanyID:         firm.CompanyID,
		HorizonDays:       horizonDays,
		CumulativeHazards: make(map[models.TransitionType]float64, len(models.ModeledTransitions)),
		ModelSources:      make(map[models.TransitionType]string, len(models.ModeledTransitions)),
		Warnings:          warnings,
	}

	// Transition types are combined as independent competing risks.
	survive := 1.0
	for _, t := range models.ModeledTransitions {
		r := s.TransitionHazard(in, t, years)
		if r.Status == hazard.StatusFallback && years > 0 {
			s.metrics.ObserveFallback(string(t))
		}
		a.CumulativeHazards[t] = r.CumulativeHazard
		a.SetProbability(t, r.Probability)
		a.ModelSources[t] = r.Status.String()
		survive *= 1 - r.Probability
	}

	original := clamp(1-survive, s.cfg.Floor, s.cfg.Ceiling)
	factor, reason := s.Adjustment(firm)
	a.OriginalChangeProbability = original
	a.AdjustmentFactor = factor
	a.AdjustmentReason = reason
	a.OverallChangeProbability = clamp(original*factor, 0, 1)
	a.RiskClassification = s.Classify(a.OverallChangeProbability)

	s.metrics.ObserveAssessment(string(a.RiskClassification))
	s.log.Debug().
		Str("company_id", a.CompanyID).
		Int("horizon_days", horizonDays).
		Float64("overall", a.OverallChangeProbability).
		Str("classification", string(a.RiskClassification)).
		Msg("firm scored")
	return a, nil
}

// TransitionHazard evaluates one transition type for in over years. A
// fitted model is used when present and well-behaved for this profile;
// otherwise the fallback estimate is returned with the reason.
func (s *Scorer) TransitionHazard(in hazard.Input, t models.TransitionType, years float64) hazard.Result {
	m, ok := s.models.Get(t)
	fitted := ok && !m.UsesFallback()

	if years <= 0 {
		status := hazard.StatusFallback
		if fitted {
			status = hazard.StatusOK
		}
		return hazard.Result{Status: status, Reason: "zero horizon"}
	}

	var reason string
	switch {
	case fitted:
		r := hazard.PredictFitted(m.Fitted, in.Covariates, years, s.cfg.Predict)
		if r.Status == hazard.StatusOK {
			return r
		}
		reason = r.Reason
	case ok:
		reason = m.Reason
	default:
		reason = "no trained model"
	}
	return s.fallback.Estimate(in, t, years, reason)
}

// Adjustment returns the NR multiplier for firm and its reason.
func (s *Scorer) Adjustment(firm models.FirmProfile) (float64, string) {
	if firm.NRFlag != 1 {
		return 1, "None"
	}
	if firm.IsWithdrawn() {
		f := s.cfg.WDNRMultiplier
		return f, fmt.Sprintf("WD+NR state adjustment (x%.2f)", f)
	}
	if firm.ConsecutiveNRDays >= s.cfg.NRThresholdDays {
		extra := float64(firm.ConsecutiveNRDays-s.cfg.NRThresholdDays) / s.cfg.NRRampDays * s.cfg.NRRampSlope
		f := math.Min(s.cfg.NRMaxMultiplier, 1+extra)
		return f, fmt.Sprintf("Long-term NR adjustment (x%.2f)", f)
	}
	return 1, "None"
}

// Classify maps a probability to a risk level.
func (s *Scorer) Classify(p float64) models.RiskLevel {
	switch {
	case p >= s.cfg.HighThreshold:
		return models.RiskHigh
	case p >= s.cfg.MediumThreshold:
		return models.RiskMedium
	case p >= s.cfg.LowThreshold:
		return models.RiskLow
	}
	return models.RiskVeryLow
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Min(math.Max(v, lo), hi)
}
