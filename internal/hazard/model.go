package hazard

import (
	"fmt"
	"math"
	"time"

	"github.com/creasty/defaults"

	"github.com/seenimoa/ratingrisk/pkg/models"
)

// TransitionModel is the training outcome for one transition type.
// Fitted is nil when the fallback estimator must be used.
type TransitionModel struct {
	Type         models.TransitionType
	Fitted       FittedModel
	Reason       string
	Observations int
	Events       int
	Dropped      []string
	Significant  []string
	FitTime      time.Duration
}

// UsesFallback reports whether no fitted model is available.
func (m TransitionModel) UsesFallback() bool { return m.Fitted == nil }

// ModelSet holds the per-type outcome of one training run. It is
// read-only after construction.
type ModelSet struct {
	models map[models.TransitionType]TransitionModel
}

// NewModelSet collects transition models. Later entries replace earlier
// ones of the same type.
func NewModelSet(ms ...TransitionModel) *ModelSet {
	s := &ModelSet{models: make(map[models.TransitionType]TransitionModel, len(ms))}
	for _, m := range ms {
		s.models[m.Type] = m
	}
	return s
}

// Get returns the model for t. A nil set has no models.
func (s *ModelSet) Get(t models.TransitionType) (TransitionModel, bool) {
	if s == nil {
		return TransitionModel{}, false
	}
	m, ok := s.models[t]
	return m, ok
}

// Models returns the stored models in modeled-transition order.
func (s *ModelSet) Models() []TransitionModel {
	var out []TransitionModel
	for _, t := range models.ModeledTransitions {
		if m, ok := s.Get(t); ok {
			out = append(out, m)
		}
	}
	return out
}

// FittedCount returns how many types have a fitted model.
func (s *ModelSet) FittedCount() int {
	n := 0
	for _, m := range s.Models() {
		if !m.UsesFallback() {
			n++
		}
	}
	return n
}

// ════════════════════════════════════════════════════════════════════
// Fitted prediction
// ════════════════════════════════════════════════════════════════════

// PredictConfig controls how fitted survival curves are read.
type PredictConfig struct {
	// ShortHorizonExponent shapes S(t) = S(1)^(t^β) for t ≤ 1 year.
	ShortHorizonExponent float64 `default:"0.7"`
	// DegenerateSurvival rejects profiles whose one-year survival is at
	// or above this value.
	DegenerateSurvival float64 `default:"0.999"`
	// MinHazard rejects profiles whose one-year hazard is below this value.
	MinHazard float64 `default:"0.001"`
}

// minSurvival keeps -ln S finite.
const minSurvival = 1e-12

// PredictFitted evaluates a fitted model for one profile over years.
// The profile is validated once at one year so that the choice between
// fitted and fallback output does not depend on the horizon. Invalid is
// returned for degenerate profiles.
func PredictFitted(m FittedModel, cov Covariates, years float64, cfg PredictConfig) Result {
	_ = defaults.Set(&cfg)
	s1 := m.SurvivalProbability(cov, 1)
	switch {
	case !finite(s1) || s1 <= 0 || s1 > 1:
		return Invalid(fmt.Sprintf("%v: S(1)=%v", ErrDegenerateModel, s1))
	case s1 >= cfg.DegenerateSurvival:
		return Invalid(fmt.Sprintf("%v: S(1)=%.6f at or above %.3f", ErrDegenerateModel, s1, cfg.DegenerateSurvival))
	case -math.Log(s1) < cfg.MinHazard:
		return Invalid(fmt.Sprintf("%v: hazard below %.4f", ErrDegenerateModel, cfg.MinHazard))
	}

	var s float64
	switch {
	case years <= 0:
		s = 1
	case years <= 1:
		s = math.Pow(s1, math.Pow(years, cfg.ShortHorizonExponent))
	default:
		s = m.SurvivalProbability(cov, years)
		if !finite(s) {
			return Invalid(fmt.Sprintf("%v: S(%.2f)=%v", ErrDegenerateModel, years, s))
		}
		s = math.Min(s, s1)
	}
	s = math.Max(s, minSurvival)
	return OK(math.Max(-math.Log(s), 0), 1-s)
}
