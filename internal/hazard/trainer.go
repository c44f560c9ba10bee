package hazard

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/creasty/defaults"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/seenimoa/ratingrisk/internal/infra"
	"github.com/seenimoa/ratingrisk/internal/rating"
	"github.com/seenimoa/ratingrisk/pkg/models"
)

// TrainerConfig controls per-type fitting.
type TrainerConfig struct {
	MinEvents          int           `default:"2"`
	FitTimeout         time.Duration `default:"60s"`
	TotalTimeout       time.Duration `default:"300s"`
	Workers            int           // 0 uses runtime.NumCPU
	DegenerateSurvival float64       `default:"0.99"`
	MinProbability     float64       `default:"0.0001"`
	// ReferenceTime is the evaluation time, in years, of the degeneracy check.
	ReferenceTime float64 `default:"1.0"`
	// SignificanceLevel selects covariates reported as significant.
	SignificanceLevel float64 `default:"0.05"`
}

// Trainer fits one model per transition type.
type Trainer struct {
	reg     SurvivalRegressionModel
	scale   *rating.Scale
	cfg     TrainerConfig
	log     zerolog.Logger
	metrics *infra.Metrics
}

// NewTrainer creates a trainer. A nil reg uses the default CoxPH solver;
// a nil scale uses the standard scale; metrics may be nil.
func NewTrainer(reg SurvivalRegressionModel, scale *rating.Scale, cfg TrainerConfig, log zerolog.Logger, metrics *infra.Metrics) *Trainer {
	if reg == nil {
		reg = NewCoxPH(CoxPH{})
	}
	if scale == nil {
		scale = rating.Standard()
	}
	_ = defaults.Set(&cfg)
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	return &Trainer{
		reg:     reg,
		scale:   scale,
		cfg:     cfg,
		log:     infra.Component(log, "trainer"),
		metrics: metrics,
	}
}

// Train fits every modeled transition type in parallel. A type that
// cannot be fitted gets a fallback entry; only a cancelled context fails
// the run.
func (t *Trainer) Train(ctx context.Context, episodes []models.TransitionEpisode) (*ModelSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("train: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, t.cfg.TotalTimeout)
	defer cancel()

	types := models.ModeledTransitions
	results := make([]TransitionModel, len(types))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.cfg.Workers)
	for i, tt := range types {
		g.Go(func() error {
			results[i] = t.trainOne(gctx, episodes, tt)
			return nil
		})
	}
	_ = g.Wait()

	set := NewModelSet(results...)
	t.log.Info().
		Int("episodes", len(episodes)).
		Int("fitted", set.FittedCount()).
		Int("fallback", len(types)-set.FittedCount()).
		Msg("training complete")
	return set, nil
}

func (t *Trainer) trainOne(ctx context.Context, episodes []models.TransitionEpisode, tt models.TransitionType) TransitionModel {
	start := time.Now()
	d := BuildDataset(t.scale, episodes, tt)
	tm := TransitionModel{
		Type:         tt,
		Observations: d.Len(),
		Events:       d.EventCount(),
	}
	tm.Dropped = d.DropLowVariance(MinVariance)

	fallback := func(err error) TransitionModel {
		tm.Fitted = nil
		tm.Reason = err.Error()
		tm.FitTime = time.Since(start)
		t.metrics.ObserveFit(string(tt), infra.OutcomeFallback, tm.FitTime)
		t.log.Info().
			Str("transition", string(tt)).
			Int("observations", tm.Observations).
			Int("events", tm.Events).
			Str("reason", tm.Reason).
			Msg("using fallback hazard")
		return tm
	}

	if tm.Events < t.cfg.MinEvents {
		return fallback(fmt.Errorf("%d events, need %d: %w", tm.Events, t.cfg.MinEvents, ErrInsufficientData))
	}

	fitCtx, cancel := context.WithTimeout(ctx, t.cfg.FitTimeout)
	fitted, err := t.reg.Fit(fitCtx, d)
	cancel()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("fit budget of %s exceeded: %w", t.cfg.FitTimeout, err)
		}
		return fallback(err)
	}

	s := fitted.SurvivalProbability(d.ColumnMeans(), t.cfg.ReferenceTime)
	switch {
	case !finite(s):
		return fallback(fmt.Errorf("S(%.1f)=%v: %w", t.cfg.ReferenceTime, s, ErrDegenerateModel))
	case s >= t.cfg.DegenerateSurvival:
		return fallback(fmt.Errorf("S(%.1f)=%.4f at or above %.2f: %w", t.cfg.ReferenceTime, s, t.cfg.DegenerateSurvival, ErrDegenerateModel))
	case 1-s < t.cfg.MinProbability:
		return fallback(fmt.Errorf("probability %.2g below %.2g: %w", 1-s, t.cfg.MinProbability, ErrDegenerateModel))
	}

	tm.Fitted = fitted
	tm.FitTime = time.Since(start)
	if cm, ok := fitted.(*CoxModel); ok {
		tm.Significant = cm.SignificantCovariates(t.cfg.SignificanceLevel)
	}
	t.metrics.ObserveFit(string(tt), infra.OutcomeFitted, tm.FitTime)
	t.log.Info().
		Str("transition", string(tt)).
		Int("observations", tm.Observations).
		Int("events", tm.Events).
		Strs("dropped", tm.Dropped).
		Strs("significant", tm.Significant).
		Dur("fit_time", tm.FitTime).
		Msg("hazard model fitted")
	return tm
}
