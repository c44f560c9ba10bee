package models

import "time"

// TransitionType labels the outcome of a rating episode.
type TransitionType string

const (
	TransitionUpgrade   TransitionType = "upgrade"
	TransitionDowngrade TransitionType = "downgrade"
	TransitionStable    TransitionType = "stable"
	TransitionDefault   TransitionType = "default"
	TransitionWithdrawn TransitionType = "withdrawn"
)

// ModeledTransitions lists the transition types that get a hazard model.
// Stable episodes are censored observations for every type.
var ModeledTransitions = []TransitionType{
	TransitionUpgrade,
	TransitionDowngrade,
	TransitionDefault,
	TransitionWithdrawn,
}

// RatingObservation is a single published rating for an issuer.
type RatingObservation struct {
	IssuerID string    `json:"issuer_id" yaml:"issuer_id"`
	Date     time.Time `json:"date"      yaml:"date"`
	Rating   string    `json:"rating"    yaml:"rating"`
}

// CovariateSnapshot holds the financial ratios known for an issuer at a date.
type CovariateSnapshot struct {
	IssuerID string             `json:"issuer_id" yaml:"issuer_id"`
	Date     time.Time          `json:"date"      yaml:"date"`
	Ratios   map[string]float64 `json:"ratios"    yaml:"ratios"`
}

// TransitionEpisode is the time between two consecutive observations of
// the same issuer, labeled by where it ended.
type TransitionEpisode struct {
	IssuerID     string             `json:"issuer_id"`
	StartDate    time.Time          `json:"start_date"`
	EndDate      time.Time          `json:"end_date"`
	Duration     float64            `json:"duration"` // years
	FromRating   string             `json:"from_rating"`
	ToRating     string             `json:"to_rating"`
	FromSeverity int                `json:"from_severity"`
	ToSeverity   int                `json:"to_severity"`
	Type         TransitionType     `json:"transition_type"`
	Covariates   map[string]float64 `json:"covariates,omitempty"`
}

// IsEvent reports whether the episode ended in the given transition.
func (e TransitionEpisode) IsEvent(t TransitionType) bool {
	return e.Type == t
}

// RatingPanelRow is one periodic record of an issuer's rating status.
// An empty rating or "NR" means the issuer was unrated on that date.
type RatingPanelRow struct {
	IssuerID string    `json:"issuer_id" yaml:"issuer_id"`
	Date     time.Time `json:"date"      yaml:"date"`
	Rating   string    `json:"rating"    yaml:"rating"`
}
