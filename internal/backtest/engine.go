// Package backtest evaluates the hazard models out of time: it trains on
// one window of rating episodes, scores later windows and measures
// discrimination, calibration and stress-regime degradation.
package backtest

import (
	"context"
	"fmt"
	"runtime"

	"github.com/creasty/defaults"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/seenimoa/ratingrisk/internal/episode"
	"github.com/seenimoa/ratingrisk/internal/hazard"
	"github.com/seenimoa/ratingrisk/internal/infra"
	"github.com/seenimoa/ratingrisk/internal/rating"
	"github.com/seenimoa/ratingrisk/internal/scorer"
	"github.com/seenimoa/ratingrisk/pkg/models"
	"github.com/seenimoa/ratingrisk/pkg/utils"
)

// ════════════════════════════════════════════════════════════════════
// Engine Configuration
// ════════════════════════════════════════════════════════════════════

// Split is one train/validation/test partition by episode start date.
type Split struct {
	Name       string
	Train      episode.Window
	Validation episode.Window
	Test       episode.Window
}

func (s Split) windows() []struct {
	period models.Period
	window episode.Window
} {
	return []struct {
		period models.Period
		window episode.Window
	}{
		{models.PeriodTrain, s.Train},
		{models.PeriodValidation, s.Validation},
		{models.PeriodTest, s.Test},
	}
}

func window(start, end string) episode.Window {
	return episode.Window{Start: utils.MustDate(start), End: utils.MustDate(end)}
}

// DefaultSplits returns the standard out-of-time partitions.
func DefaultSplits() []Split {
	return []Split{
		{
			Name:       "main_split",
			Train:      window("2010-01-01", "2018-12-31"),
			Validation: window("2019-01-01", "2021-12-31"),
			Test:       window("2022-01-01", "2024-12-31"),
		},
		{
			Name:       "covid_analysis",
			Train:      window("2010-01-01", "2019-12-31"),
			Validation: window("2020-01-01", "2021-12-31"),
			Test:       window("2022-01-01", "2024-12-31"),
		},
		{
			Name:       "rolling_window",
			Train:      window("2012-01-01", "2020-12-31"),
			Validation: window("2021-01-01", "2022-12-31"),
			Test:       window("2023-01-01", "2024-12-31"),
		},
	}
}

// DefaultRegimeWindow is the stress regime contrasted by the bias pass.
func DefaultRegimeWindow() episode.Window {
	return window("2020-01-01", "2021-12-31")
}

// Config holds backtest parameters. Nil Splits and a zero RegimeWindow
// take the defaults.
type Config struct {
	Splits       []Split
	HorizonDays  int `default:"90"`
	RegimeWindow episode.Window
	Bias         BiasThresholds
	Workers      int // 0 uses runtime.NumCPU
}

// Option customizes an Engine.
type Option func(*Engine)

// WithScale replaces the standard rating scale.
func WithScale(s *rating.Scale) Option {
	return func(e *Engine) {
		if s != nil {
			e.scale = s
		}
	}
}

// WithScoring sets the scorer configuration used to predict each period.
func WithScoring(cfg scorer.Config) Option {
	return func(e *Engine) { e.scoring = cfg }
}

// WithFallback replaces the default fallback estimator.
func WithFallback(f *hazard.FallbackEstimator) Option {
	return func(e *Engine) { e.fallback = f }
}

// WithMetrics records skipped splits.
func WithMetrics(m *infra.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// ════════════════════════════════════════════════════════════════════
// Engine
// ════════════════════════════════════════════════════════════════════

// Skipped records a split, or a single period of a split, that produced
// no rows.
type Skipped struct {
	Split  string        `json:"split"            yaml:"split"`
	Period models.Period `json:"period,omitempty" yaml:"period,omitempty"`
	Reason string        `json:"reason"           yaml:"reason"`
}

// Report is the outcome of one backtest run.
type Report struct {
	HorizonDays int                     `json:"horizon_days"      yaml:"horizon_days"`
	Rows        []models.BacktestResult `json:"rows"              yaml:"rows"`
	Skipped     []Skipped               `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	Bias        *models.RegimeBias      `json:"regime_bias,omitempty" yaml:"regime_bias,omitempty"`
}

// Engine runs out-of-time backtests.
type Engine struct {
	cfg      Config
	trainer  *hazard.Trainer
	builder  *episode.Builder
	scale    *rating.Scale
	scoring  scorer.Config
	fallback *hazard.FallbackEstimator
	log      zerolog.Logger
	metrics  *infra.Metrics
}

// NewEngine creates an engine that fits each split with trainer. A nil
// trainer uses the default Cox trainer.
func NewEngine(cfg Config, trainer *hazard.Trainer, log zerolog.Logger, opts ...Option) *Engine {
	_ = defaults.Set(&cfg)
	if cfg.Splits == nil {
		cfg.Splits = DefaultSplits()
	}
	if cfg.RegimeWindow.Start.IsZero() && cfg.RegimeWindow.End.IsZero() {
		cfg.RegimeWindow = DefaultRegimeWindow()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}

	e := &Engine{
		cfg:     cfg,
		trainer: trainer,
		scale:   rating.Standard(),
		log:     infra.Component(log, "backtest"),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.trainer == nil {
		e.trainer = hazard.NewTrainer(nil, e.scale, hazard.TrainerConfig{}, log, e.metrics)
	}
	e.builder = episode.NewBuilder(e.scale, log)
	return e
}

// Config returns the effective configuration.
func (e *Engine) Config() Config { return e.cfg }

type splitOutcome struct {
	rows    []models.BacktestResult
	skipped []Skipped
}

// Run builds episodes once and evaluates every split in parallel. Rows
// keep split order. Only invalid observations and cancellation fail the
// run; a split that cannot be trained is reported as skipped.
func (e *Engine) Run(ctx context.Context, obs []models.RatingObservation, snaps []models.CovariateSnapshot) (*Report, error) {
	episodes, err := e.builder.Build(obs, snaps)
	if err != nil {
		return nil, fmt.Errorf("backtest: %w", err)
	}

	outcomes := make([]splitOutcome, len(e.cfg.Splits))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Workers)
	for i, split := range e.cfg.Splits {
		g.Go(func() error {
			out, err := e.runSplit(gctx, split, episodes)
			if err != nil {
				return fmt.Errorf("split %s: %w", split.Name, err)
			}
			outcomes[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	rep := &Report{HorizonDays: e.cfg.HorizonDays}
	for _, out := range outcomes {
		rep.Rows = append(rep.Rows, out.rows...)
		rep.Skipped = append(rep.Skipped, out.skipped...)
	}

	if bias, ok := AnalyzeRegimeBias(rep.Rows, e.cfg.Bias); ok {
		rep.Bias = bias
		e.log.Info().
			Str("level", string(bias.Level)).
			Float64("degradation_pct", bias.OverallDegradationPct).
			Msg("regime bias assessed")
	} else {
		e.log.Info().Msg("no regime contrast available, bias analysis skipped")
	}

	e.log.Info().
		Int("episodes", len(episodes)).
		Int("rows", len(rep.Rows)).
		Int("skipped", len(rep.Skipped)).
		Msg("backtest complete")
	return rep, nil
}

func (e *Engine) runSplit(ctx context.Context, split Split, all []models.TransitionEpisode) (splitOutcome, error) {
	var out splitOutcome
	log := e.log.With().Str("split", split.Name).Logger()

	skip := func(reason string) (splitOutcome, error) {
		e.metrics.ObserveSkippedSplit()
		log.Warn().Str("reason", reason).Msg("split skipped")
		return splitOutcome{skipped: []Skipped{{Split: split.Name, Reason: reason}}}, nil
	}

	train := episode.FilterWindow(all, split.Train)
	if len(train) == 0 {
		return skip(fmt.Sprintf("no episodes in train window %s", split.Train))
	}

	set, err := e.trainer.Train(ctx, train)
	if err != nil {
		if ctx.Err() != nil {
			return out, err
		}
		return skip(fmt.Sprintf("training failed: %v", err))
	}

	sc := scorer.New(set, e.scoring, scorer.WithScale(e.scale), scorer.WithFallback(e.fallback))
	for _, pw := range split.windows() {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		eps := episode.FilterWindow(all, pw.window)
		if len(eps) == 0 {
			reason := fmt.Sprintf("no episodes in %s", pw.window)
			log.Info().Str("period", string(pw.period)).Msg(reason)
			out.skipped = append(out.skipped, Skipped{Split: split.Name, Period: pw.period, Reason: reason})
			continue
		}
		out.rows = append(out.rows, e.evaluate(sc, split.Name, pw.period, eps)...)
	}
	return out, nil
}

// evaluate computes one row per modeled transition type for a period.
func (e *Engine) evaluate(sc *scorer.Scorer, split string, period models.Period, eps []models.TransitionEpisode) []models.BacktestResult {
	horizon := utils.DaysToYears(e.cfg.HorizonDays)

	regime := false
	inputs := make([]hazard.Input, len(eps))
	durations := make([]float64, len(eps))
	for i, ep := range eps {
		inputs[i] = hazard.EpisodeInput(e.scale, ep)
		durations[i] = ep.Duration
		if e.cfg.RegimeWindow.Contains(ep.StartDate) {
			regime = true
		}
	}

	rows := make([]models.BacktestResult, 0, len(models.ModeledTransitions))
	for _, t := range models.ModeledTransitions {
		events := make([]bool, len(eps))
		labels := make([]bool, len(eps))
		probs := make([]float64, len(eps))
		nEvents := 0
		for i, ep := range eps {
			events[i] = ep.IsEvent(t)
			labels[i] = events[i] && ep.Duration <= horizon
			probs[i] = sc.TransitionHazard(inputs[i], t, horizon).Probability
			if events[i] {
				nEvents++
			}
		}

		row := models.BacktestResult{
			SplitName:        split,
			Period:           period,
			TransitionType:   t,
			ConcordanceIndex: ConcordanceIndex(durations, events, probs),
			HorizonAUC:       HorizonAUC(probs, labels),
			BrierScore:       BrierScore(probs, labels),
			NObservations:    len(eps),
			NEvents:          nEvents,
			RegimeFlag:       regime,
		}
		rows = append(rows, row)
		e.log.Debug().
			Str("split", split).
			Str("period", string(period)).
			Str("transition", string(t)).
			Float64("c_index", row.ConcordanceIndex).
			Float64("auc", row.HorizonAUC).
			Float64("brier", row.BrierScore).
			Int("n", row.NObservations).
			Msg("period evaluated")
	}
	return rows
}
