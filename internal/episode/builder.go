// Package episode turns rating histories into labeled transition episodes.
package episode

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/seenimoa/ratingrisk/internal/infra"
	"github.com/seenimoa/ratingrisk/internal/rating"
	"github.com/seenimoa/ratingrisk/pkg/models"
	"github.com/seenimoa/ratingrisk/pkg/utils"
)

// ErrDuplicateObservation is returned when an issuer has two ratings on the same date.
var ErrDuplicateObservation = errors.New("duplicate rating observation")

// Window is an inclusive date range.
type Window struct {
	Start time.Time `json:"start" yaml:"start"`
	End   time.Time `json:"end"   yaml:"end"`
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return utils.Within(t, w.Start, w.End)
}

func (w Window) String() string {
	return utils.FormatDate(w.Start) + ".." + utils.FormatDate(w.End)
}

// Builder pairs consecutive observations into episodes.
type Builder struct {
	scale *rating.Scale
	log   zerolog.Logger
}

// NewBuilder creates a builder over scale. A nil scale uses the standard one.
func NewBuilder(scale *rating.Scale, log zerolog.Logger) *Builder {
	if scale == nil {
		scale = rating.Standard()
	}
	return &Builder{scale: scale, log: infra.Component(log, "episode_builder")}
}

// Build returns one episode per consecutive observation pair, ordered by
// issuer and start date. Issuers with fewer than two observations yield
// nothing. Pairs that start in an absorbing state are skipped.
func (b *Builder) Build(obs []models.RatingObservation, snaps []models.CovariateSnapshot) ([]models.TransitionEpisode, error) {
	byIssuer := groupObservations(obs)
	snapsByIssuer := groupSnapshots(snaps)

	issuers := make([]string, 0, len(byIssuer))
	for id := range byIssuer {
		issuers = append(issuers, id)
	}
	sort.Strings(issuers)

	var episodes []models.TransitionEpisode
	skipped := 0
	for _, id := range issuers {
		history := byIssuer[id]
		if len(history) < 2 {
			continue
		}
		for i := 1; i < len(history); i++ {
			if !history[i].Date.After(history[i-1].Date) {
				return nil, fmt.Errorf("issuer %s on %s: %w", id, utils.FormatDate(history[i].Date), ErrDuplicateObservation)
			}
		}

		for i := 0; i+1 < len(history); i++ {
			from, to := history[i], history[i+1]
			ep, ok, err := b.episode(from, to, snapsByIssuer[id])
			if err != nil {
				return nil, fmt.Errorf("issuer %s: %w", id, err)
			}
			if !ok {
				skipped++
				continue
			}
			episodes = append(episodes, ep)
		}
	}

	b.log.Debug().
		Int("issuers", len(issuers)).
		Int("episodes", len(episodes)).
		Int("skipped_terminal", skipped).
		Msg("episodes built")
	return episodes, nil
}

// BuildWindow builds episodes and keeps those starting inside w.
func (b *Builder) BuildWindow(obs []models.RatingObservation, snaps []models.CovariateSnapshot, w Window) ([]models.TransitionEpisode, error) {
	all, err := b.Build(obs, snaps)
	if err != nil {
		return nil, err
	}
	return FilterWindow(all, w), nil
}

// FilterWindow keeps episodes whose start date lies in w.
func FilterWindow(episodes []models.TransitionEpisode, w Window) []models.TransitionEpisode {
	var out []models.TransitionEpisode
	for _, ep := range episodes {
		if w.Contains(ep.StartDate) {
			out = append(out, ep)
		}
	}
	return out
}

func (b *Builder) episode(from, to models.RatingObservation, snaps []models.CovariateSnapshot) (models.TransitionEpisode, bool, error) {
	fromSym, fromSev, err := b.scale.Resolve(from.Rating)
	if err != nil {
		return models.TransitionEpisode{}, false, fmt.Errorf("%s: %w", utils.FormatDate(from.Date), err)
	}
	toSym, toSev, err := b.scale.Resolve(to.Rating)
	if err != nil {
		return models.TransitionEpisode{}, false, fmt.Errorf("%s: %w", utils.FormatDate(to.Date), err)
	}
	if b.scale.IsTerminal(fromSym) {
		return models.TransitionEpisode{}, false, nil
	}

	class, err := b.scale.Classify(fromSym, toSym)
	if err != nil {
		return models.TransitionEpisode{}, false, err
	}

	return models.TransitionEpisode{
		IssuerID:     from.IssuerID,
		StartDate:    from.Date,
		EndDate:      to.Date,
		Duration:     utils.YearFraction(from.Date, to.Date),
		FromRating:   fromSym,
		ToRating:     toSym,
		FromSeverity: fromSev,
		ToSeverity:   toSev,
		Type:         class,
		Covariates:   snapshotAt(snaps, from.Date),
	}, true, nil
}

// snapshotAt returns a copy of the latest snapshot dated on or before t,
// or the earliest snapshot when none precedes t. snaps must be sorted.
func snapshotAt(snaps []models.CovariateSnapshot, t time.Time) map[string]float64 {
	if len(snaps) == 0 {
		return nil
	}
	// First snapshot strictly after t.
	i := sort.Search(len(snaps), func(i int) bool { return snaps[i].Date.After(t) })
	chosen := snaps[0]
	if i > 0 {
		chosen = snaps[i-1]
	}
	out := make(map[string]float64, len(chosen.Ratios))
	for k, v := range chosen.Ratios {
		out[k] = v
	}
	return out
}

func groupObservations(obs []models.RatingObservation) map[string][]models.RatingObservation {
	out := make(map[string][]models.RatingObservation)
	for _, o := range obs {
		out[o.IssuerID] = append(out[o.IssuerID], o)
	}
	for _, h := range out {
		sort.SliceStable(h, func(i, j int) bool { return h[i].Date.Before(h[j].Date) })
	}
	return out
}

func groupSnapshots(snaps []models.CovariateSnapshot) map[string][]models.CovariateSnapshot {
	out := make(map[string][]models.CovariateSnapshot)
	for _, s := range snaps {
		out[s.IssuerID] = append(out[s.IssuerID], s)
	}
	for _, h := range out {
		sort.SliceStable(h, func(i, j int) bool { return h[i].Date.Before(h[j].Date) })
	}
	return out
}
