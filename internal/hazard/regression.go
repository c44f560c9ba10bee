package hazard

import (
	"context"

	"gonum.org/v1/gonum/stat"
)

// MinVariance is the variance below which a covariate is dropped.
const MinVariance = 1e-10

// SurvivalRegressionModel fits a survival model to a dataset. Any
// implementation that honors ctx cancellation can be plugged into the
// Trainer.
type SurvivalRegressionModel interface {
	Fit(ctx context.Context, d *Dataset) (FittedModel, error)
}

// FittedModel predicts survival for a covariate profile. Implementations
// must be safe for concurrent use and must not change after Fit returns.
type FittedModel interface {
	// SurvivalProbability returns S(t | covariates) for t in years.
	SurvivalProbability(cov Covariates, t float64) float64
}

// DropLowVariance removes columns whose sample variance is below min (or
// undefined) and returns their names.
func (d *Dataset) DropLowVariance(min float64) []string {
	var keep []int
	var dropped []string
	col := make([]float64, d.Len())
	for j, name := range d.Columns {
		for i, row := range d.X {
			col[i] = row[j]
		}
		v := stat.Variance(col, nil)
		if v >= min {
			keep = append(keep, j)
		} else {
			dropped = append(dropped, name)
		}
	}
	if len(dropped) == 0 {
		return nil
	}

	cols := make([]string, len(keep))
	for k, j := range keep {
		cols[k] = d.Columns[j]
	}
	for i, row := range d.X {
		nr := make([]float64, len(keep))
		for k, j := range keep {
			nr[k] = row[j]
		}
		d.X[i] = nr
	}
	d.Columns = cols
	return dropped
}
