// Package service wires the rating pipeline together: it builds every
// component from configuration and keeps trained model sets per run.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/seenimoa/ratingrisk/internal/analysis/fundamental"
	"github.com/seenimoa/ratingrisk/internal/backtest"
	"github.com/seenimoa/ratingrisk/internal/config"
	"github.com/seenimoa/ratingrisk/internal/dataset"
	"github.com/seenimoa/ratingrisk/internal/episode"
	"github.com/seenimoa/ratingrisk/internal/hazard"
	"github.com/seenimoa/ratingrisk/internal/infra"
	"github.com/seenimoa/ratingrisk/internal/rating"
	"github.com/seenimoa/ratingrisk/internal/report"
	"github.com/seenimoa/ratingrisk/internal/scorer"
	"github.com/seenimoa/ratingrisk/pkg/models"
)

// ErrUnknownRun is returned for run ids that are not (or no longer) stored.
var ErrUnknownRun = errors.New("unknown training run")

// ErrNoHistory is returned when a dataset has no rating history to train on.
var ErrNoHistory = errors.New("dataset has no observations or panel rows")

// Service owns the pipeline components of one process.
type Service struct {
	cfg      *config.Config
	log      zerolog.Logger
	registry *prometheus.Registry
	metrics  *infra.Metrics

	scale    *rating.Scale
	fallback *hazard.FallbackEstimator
	builder  *episode.Builder
	pre      *episode.Preprocessor
	trainer  *hazard.Trainer

	runs *infra.Store[*hazard.ModelSet]
}

// New builds a service from cfg. Metrics go to a private registry
// exposed through Registry.
func New(cfg *config.Config, log zerolog.Logger) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("service: nil config")
	}

	s := &Service{
		cfg:   cfg,
		log:   infra.Component(log, "service"),
		scale: rating.Standard(),
		runs:  infra.NewStore[*hazard.ModelSet](cfg.Store.RunTTL),
	}

	if cfg.Metrics.Enabled {
		s.registry = prometheus.NewRegistry()
		m, err := infra.NewMetrics(infra.MetricsConfig{
			Namespace: cfg.Metrics.Namespace,
			Registry:  s.registry,
		})
		if err != nil {
			return nil, fmt.Errorf("service: metrics: %w", err)
		}
		s.metrics = m
	}

	s.fallback = hazard.NewFallbackEstimator(cfg.Fallback.Params())
	s.builder = episode.NewBuilder(s.scale, log)
	s.pre = episode.NewPreprocessor(s.scale, cfg.Preprocess.Preprocessor(), log)
	s.trainer = hazard.NewTrainer(cfg.Training.Cox(), s.scale, cfg.Training.Trainer(), log, s.metrics)
	return s, nil
}

// Registry returns the metrics registry, or nil when metrics are disabled.
func (s *Service) Registry() *prometheus.Registry { return s.registry }

// Inputs are the model-ready series derived from a dataset.
type Inputs struct {
	Observations []models.RatingObservation
	Snapshots    []models.CovariateSnapshot
	States       map[string]episode.IssuerState
	Alerts       []episode.Alert
}

// Prepare turns panel rows into observations and statements into
// covariate snapshots, appending them to the dataset's explicit series.
func (s *Service) Prepare(ds *dataset.Dataset) (*Inputs, error) {
	if ds == nil || ds.Empty() {
		return nil, ErrNoHistory
	}

	in := &Inputs{
		Observations: append([]models.RatingObservation(nil), ds.Observations...),
		Snapshots:    append([]models.CovariateSnapshot(nil), ds.Snapshots...),
		States:       map[string]episode.IssuerState{},
	}
	if len(ds.Panel) > 0 {
		res, err := s.pre.Process(ds.Panel)
		if err != nil {
			return nil, fmt.Errorf("preprocess panel: %w", err)
		}
		in.Observations = append(in.Observations, res.Observations...)
		in.States = res.States
		in.Alerts = res.Alerts
	}
	if len(ds.Statements) > 0 {
		in.Snapshots = append(in.Snapshots, fundamental.Snapshots(ds.Statements)...)
	}
	return in, nil
}

// Train builds episodes, fits a model set and stores it under a new run id.
func (s *Service) Train(ctx context.Context, obs []models.RatingObservation, snaps []models.CovariateSnapshot) (string, error) {
	episodes, err := s.builder.Build(obs, snaps)
	if err != nil {
		return "", fmt.Errorf("build episodes: %w", err)
	}
	set, err := s.trainer.Train(ctx, episodes)
	if err != nil {
		return "", err
	}

	runID := uuid.NewString()
	s.runs.Put(runID, set)
	s.runs.Cleanup()
	s.log.Info().
		Str("run_id", runID).
		Int("episodes", len(episodes)).
		Int("fitted", set.FittedCount()).
		Msg("model set stored")
	return runID, nil
}

// Models returns the model set of a run.
func (s *Service) Models(runID string) (*hazard.ModelSet, error) {
	set, ok := s.runs.Get(runID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRun, runID)
	}
	return set, nil
}

// Runs lists the stored run ids.
func (s *Service) Runs() []string { return s.runs.Keys() }

// Scorer returns a scorer over the models of a run.
func (s *Service) Scorer(runID string) (*scorer.Scorer, error) {
	set, err := s.Models(runID)
	if err != nil {
		return nil, err
	}
	return scorer.New(set, s.cfg.Scoring.Scorer(),
		scorer.WithLogger(s.log),
		scorer.WithMetrics(s.metrics),
		scorer.WithScale(s.scale),
		scorer.WithFallback(s.fallback),
	), nil
}

// Score trains on the dataset's history and scores every firm in it.
// Panel states override the NR fields of matching firms.
func (s *Service) Score(ctx context.Context, ds *dataset.Dataset, horizonDays int) (*report.ScoreOutput, error) {
	in, err := s.Prepare(ds)
	if err != nil {
		return nil, err
	}
	runID, err := s.Train(ctx, in.Observations, in.Snapshots)
	if err != nil {
		return nil, err
	}
	sc, err := s.Scorer(runID)
	if err != nil {
		return nil, err
	}

	firms := make([]models.FirmProfile, len(ds.Firms))
	copy(firms, ds.Firms)
	for i := range firms {
		if st, ok := in.States[firms[i].CompanyID]; ok {
			st.Apply(&firms[i])
		}
	}

	res, err := sc.ScorePortfolio(ctx, firms, horizonDays)
	if err != nil {
		return nil, err
	}

	out := &report.ScoreOutput{
		HorizonDays: horizonDays,
		RunID:       runID,
		Portfolio:   res,
		Peers:       peerRanking(firms),
	}
	for _, a := range in.Alerts {
		out.Alerts = append(out.Alerts, fmt.Sprintf("%s: %s (%d days)", a.IssuerID, a.Message, a.DaysUnrated))
	}
	return out, nil
}

// Backtest runs the configured splits over the dataset's history.
func (s *Service) Backtest(ctx context.Context, ds *dataset.Dataset) (*backtest.Report, error) {
	in, err := s.Prepare(ds)
	if err != nil {
		return nil, err
	}
	btCfg, err := s.cfg.Backtest.Engine()
	if err != nil {
		return nil, fmt.Errorf("backtest config: %w", err)
	}
	engine := backtest.NewEngine(btCfg, s.trainer, s.log,
		backtest.WithScale(s.scale),
		backtest.WithScoring(s.cfg.Scoring.Scorer()),
		backtest.WithFallback(s.fallback),
		backtest.WithMetrics(s.metrics),
	)
	return engine.Run(ctx, in.Observations, in.Snapshots)
}

func peerRanking(firms []models.FirmProfile) []fundamental.PeerEntry {
	if len(firms) < 2 {
		return nil
	}
	entries := make([]fundamental.PeerEntry, 0, len(firms))
	for _, f := range firms {
		ratios, _ := scorer.CoerceRatios(f.FinancialRatios)
		entries = append(entries, fundamental.PeerEntry{CompanyID: f.CompanyID, Ratios: ratios})
	}
	return fundamental.RankPeers(entries)
}
