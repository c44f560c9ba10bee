package hazard

import (
	"sort"

	"github.com/seenimoa/ratingrisk/internal/rating"
	"github.com/seenimoa/ratingrisk/pkg/models"
)

// CovInvestmentGrade is the investment-grade indicator covariate.
const CovInvestmentGrade = "investment_grade"

// Covariates maps covariate names to values. Missing names read as 0.
type Covariates map[string]float64

// BucketCovariate names the dummy column for a bucket.
func BucketCovariate(b rating.Bucket) string {
	return "bucket_" + b.String()
}

// Input is everything needed to evaluate any transition hazard for one
// subject: its covariates for fitted models and its bucket and ratios for
// the fallback.
type Input struct {
	Severity   int
	Bucket     rating.Bucket
	Ratios     map[string]float64
	Covariates Covariates
}

// NewInput builds covariates from a severity and financial ratios.
// Non-finite ratios are stored as 0.
func NewInput(scale *rating.Scale, severity int, ratios map[string]float64) Input {
	if scale == nil {
		scale = rating.Standard()
	}
	bucket := scale.Bucket(severity)
	clean := make(map[string]float64, len(ratios))
	cov := make(Covariates, len(ratios)+len(rating.Buckets())+1)
	for _, b := range rating.Buckets() {
		cov[BucketCovariate(b)] = 0
	}
	cov[BucketCovariate(bucket)] = 1
	if scale.InvestmentGrade(severity) {
		cov[CovInvestmentGrade] = 1
	} else {
		cov[CovInvestmentGrade] = 0
	}
	for k, v := range ratios {
		if !finite(v) {
			v = 0
		}
		clean[k] = v
		cov[k] = v
	}
	return Input{Severity: severity, Bucket: bucket, Ratios: clean, Covariates: cov}
}

// EpisodeInput builds the Input for an episode's starting state.
func EpisodeInput(scale *rating.Scale, ep models.TransitionEpisode) Input {
	return NewInput(scale, ep.FromSeverity, ep.Covariates)
}

// ════════════════════════════════════════════════════════════════════
// Dataset
// ════════════════════════════════════════════════════════════════════

// Dataset is the design matrix for one transition type.
type Dataset struct {
	Columns   []string
	X         [][]float64
	Durations []float64
	Events    []bool
}

// Len returns the number of rows.
func (d *Dataset) Len() int { return len(d.Durations) }

// EventCount returns the number of rows with an event.
func (d *Dataset) EventCount() int {
	n := 0
	for _, e := range d.Events {
		if e {
			n++
		}
	}
	return n
}

// ColumnMeans returns the mean covariate profile.
func (d *Dataset) ColumnMeans() Covariates {
	out := make(Covariates, len(d.Columns))
	if d.Len() == 0 {
		return out
	}
	for j, c := range d.Columns {
		sum := 0.0
		for _, row := range d.X {
			sum += row[j]
		}
		out[c] = sum / float64(d.Len())
	}
	return out
}

// BuildDataset assembles the design matrix for transition type t. Rows
// with a non-finite or non-positive duration are skipped. Columns are the
// bucket dummies, the investment-grade flag and every ratio seen on any
// episode, in a stable order.
func BuildDataset(scale *rating.Scale, episodes []models.TransitionEpisode, t models.TransitionType) *Dataset {
	ratioSet := make(map[string]struct{})
	for _, ep := range episodes {
		for k := range ep.Covariates {
			ratioSet[k] = struct{}{}
		}
	}
	ratioNames := make([]string, 0, len(ratioSet))
	for k := range ratioSet {
		ratioNames = append(ratioNames, k)
	}
	sort.Strings(ratioNames)

	cols := make([]string, 0, len(rating.Buckets())+1+len(ratioNames))
	for _, b := range rating.Buckets() {
		cols = append(cols, BucketCovariate(b))
	}
	cols = append(cols, CovInvestmentGrade)
	cols = append(cols, ratioNames...)

	d := &Dataset{Columns: cols}
	for _, ep := range episodes {
		if !finite(ep.Duration) || ep.Duration <= 0 {
			continue
		}
		in := EpisodeInput(scale, ep)
		row := make([]float64, len(cols))
		for j, c := range cols {
			row[j] = in.Covariates[c]
		}
		d.X = append(d.X, row)
		d.Durations = append(d.Durations, ep.Duration)
		d.Events = append(d.Events, ep.IsEvent(t))
	}
	return d
}
