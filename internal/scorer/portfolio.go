package scorer

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/seenimoa/ratingrisk/pkg/models"
)

// Failure records a firm that could not be scored.
type Failure struct {
	Index     int    `json:"index"      yaml:"index"`
	CompanyID string `json:"company_id" yaml:"company_id"`
	Error     string `json:"error"      yaml:"error"`
}

// PortfolioResult holds assessments in input order. Entries for failed
// firms are nil and listed in Failures.
type PortfolioResult struct {
	Assessments []*models.RiskAssessment `json:"assessments"        yaml:"assessments"`
	Failures    []Failure                `json:"failures,omitempty" yaml:"failures,omitempty"`
}

// Scored returns the non-nil assessments.
func (r *PortfolioResult) Scored() []*models.RiskAssessment {
	out := make([]*models.RiskAssessment, 0, len(r.Assessments))
	for _, a := range r.Assessments {
		if a != nil {
			out = append(out, a)
		}
	}
	return out
}

// ScorePortfolio scores firms in parallel. Invalid firms are recorded as
// failures; only context cancellation aborts the run.
func (s *Scorer) ScorePortfolio(ctx context.Context, firms []models.FirmProfile, horizonDays int) (*PortfolioResult, error) {
	res := &PortfolioResult{Assessments: make([]*models.RiskAssessment, len(firms))}
	errs := make([]error, len(firms))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i := range firms {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res.Assessments[i], errs[i] = s.Score(firms[i], horizonDays)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, err := range errs {
		if err != nil {
			res.Failures = append(res.Failures, Failure{Index: i, CompanyID: firms[i].CompanyID, Error: err.Error()})
		}
	}
	if len(res.Failures) > 0 {
		s.log.Warn().
			Int("firms", len(firms)).
			Int("failed", len(res.Failures)).
			Msg("portfolio scored with failures")
	}
	return res, nil
}
