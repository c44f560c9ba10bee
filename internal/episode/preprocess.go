package episode

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/rs/zerolog"

	"github.com/seenimoa/ratingrisk/internal/infra"
	"github.com/seenimoa/ratingrisk/internal/rating"
	"github.com/seenimoa/ratingrisk/pkg/models"
	"github.com/seenimoa/ratingrisk/pkg/utils"
)

// NRReason explains why an issuer is currently unrated.
type NRReason string

const (
	ReasonNone                NRReason = ""
	ReasonNeverRated          NRReason = "never_rated"
	ReasonVoluntaryWithdrawal NRReason = "voluntary_withdrawal"
	ReasonInfoDeficiency      NRReason = "info_deficiency"
)

// PreprocessConfig tunes not-rated handling.
type PreprocessConfig struct {
	// WithdrawalThresholdDays is how long an unrated run must last before
	// it counts as a withdrawal.
	WithdrawalThresholdDays int `default:"30"`
	// AlertThresholdDays raises an alert for issuers unrated at least this long.
	AlertThresholdDays int `default:"90"`
}

// IssuerState is the latest rating status of an issuer in a panel.
type IssuerState struct {
	IssuerID          string    `json:"issuer_id"`
	AsOf              time.Time `json:"as_of"`
	LastRating        string    `json:"last_rating,omitempty"`
	State             string    `json:"state"`
	NRFlag            int       `json:"nr_flag"`
	ConsecutiveNRDays int       `json:"consecutive_nr_days"`
	NRReason          NRReason  `json:"nr_reason,omitempty"`
}

// Apply copies the not-rated flags onto a firm profile.
func (s IssuerState) Apply(f *models.FirmProfile) {
	f.NRFlag = s.NRFlag
	f.ConsecutiveNRDays = s.ConsecutiveNRDays
	f.State = s.State
	if f.CurrentRating == "" && s.LastRating != "" {
		f.CurrentRating = models.RatingRef(s.LastRating)
	}
}

// Alert flags an issuer that has been unrated for too long.
type Alert struct {
	IssuerID    string `json:"issuer_id"`
	DaysUnrated int    `json:"days_unrated"`
	Message     string `json:"message"`
}

// PreprocessResult is the output of Preprocessor.Process.
type PreprocessResult struct {
	Observations []models.RatingObservation
	States       map[string]IssuerState
	Alerts       []Alert
}

// Preprocessor converts a periodic rating panel into observations.
// Unrated runs that last at least the withdrawal threshold become a
// withdrawn observation dated at the start of the run; shorter gaps are
// treated as missing data.
type Preprocessor struct {
	scale *rating.Scale
	cfg   PreprocessConfig
	log   zerolog.Logger
}

// NewPreprocessor creates a preprocessor. Zero config fields take defaults.
func NewPreprocessor(scale *rating.Scale, cfg PreprocessConfig, log zerolog.Logger) *Preprocessor {
	if scale == nil {
		scale = rating.Standard()
	}
	_ = defaults.Set(&cfg)
	return &Preprocessor{scale: scale, cfg: cfg, log: infra.Component(log, "preprocessor")}
}

// Process runs the panel through NR/WD tagging.
func (p *Preprocessor) Process(rows []models.RatingPanelRow) (*PreprocessResult, error) {
	byIssuer := make(map[string][]models.RatingPanelRow)
	for _, r := range rows {
		byIssuer[r.IssuerID] = append(byIssuer[r.IssuerID], r)
	}
	ids := make([]string, 0, len(byIssuer))
	for id := range byIssuer {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	res := &PreprocessResult{States: make(map[string]IssuerState, len(ids))}
	for _, id := range ids {
		h := byIssuer[id]
		sort.SliceStable(h, func(i, j int) bool { return h[i].Date.Before(h[j].Date) })

		obs, state, err := p.issuer(id, h)
		if err != nil {
			return nil, err
		}
		res.Observations = append(res.Observations, obs...)
		res.States[id] = state

		if state.NRFlag == 1 && state.ConsecutiveNRDays >= p.cfg.AlertThresholdDays {
			res.Alerts = append(res.Alerts, Alert{
				IssuerID:    id,
				DaysUnrated: state.ConsecutiveNRDays,
				Message:     fmt.Sprintf("Unrated > %dd", p.cfg.AlertThresholdDays),
			})
		}
	}

	p.log.Debug().
		Int("issuers", len(ids)).
		Int("observations", len(res.Observations)).
		Int("alerts", len(res.Alerts)).
		Msg("panel preprocessed")
	return res, nil
}

func (p *Preprocessor) issuer(id string, rows []models.RatingPanelRow) ([]models.RatingObservation, IssuerState, error) {
	var (
		obs        []models.RatingObservation
		lastRated  string
		rated      bool
		inRun      bool
		runStart   time.Time
		withdrawn  bool
		explicitWD bool
	)

	for _, r := range rows {
		if isUnrated(r.Rating) {
			if !inRun {
				inRun, runStart, withdrawn = true, r.Date, false
			}
			days := utils.DaysBetween(runStart, r.Date)
			if rated && !withdrawn && days >= p.cfg.WithdrawalThresholdDays {
				obs = append(obs, models.RatingObservation{IssuerID: id, Date: runStart, Rating: "WD"})
				withdrawn = true
			}
			continue
		}

		sym, _, err := p.scale.Resolve(r.Rating)
		if err != nil {
			return nil, IssuerState{}, fmt.Errorf("issuer %s on %s: %w", id, utils.FormatDate(r.Date), err)
		}
		inRun, withdrawn = false, false
		explicitWD = p.scale.IsWithdrawn(sym)
		obs = append(obs, models.RatingObservation{IssuerID: id, Date: r.Date, Rating: sym})
		if !explicitWD {
			rated, lastRated = true, sym
		}
	}

	state := IssuerState{IssuerID: id, LastRating: lastRated, State: lastRated}
	if len(rows) > 0 {
		state.AsOf = rows[len(rows)-1].Date
	}

	switch {
	case inRun:
		days := utils.DaysBetween(runStart, state.AsOf)
		state.NRFlag = 1
		state.ConsecutiveNRDays = days
		switch {
		case !rated:
			state.State = "NR"
			state.NRReason = ReasonNeverRated
		case days >= p.cfg.WithdrawalThresholdDays:
			state.State = models.StateWithdrawn
			state.NRReason = ReasonVoluntaryWithdrawal
		default:
			state.NRReason = ReasonInfoDeficiency
		}
	case explicitWD:
		state.State = models.StateWithdrawn
		state.NRFlag = 1
		state.NRReason = ReasonVoluntaryWithdrawal
	}
	return obs, state, nil
}

func isUnrated(sym string) bool {
	switch strings.ToUpper(strings.TrimSpace(sym)) {
	case "", "NR", "N/A", "-", "NOT RATED":
		return true
	}
	return false
}
