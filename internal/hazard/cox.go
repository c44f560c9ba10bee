package hazard

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/creasty/defaults"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// CoxPH is a penalized Cox proportional-hazards regression with Breslow
// handling of tied event times. Covariates are standardized before the
// fit; the penalty is applied to the standardized coefficients.
type CoxPH struct {
	// Penalizer is the L2 weight on the mean log partial likelihood.
	Penalizer float64 `default:"0.1"`
	// MaxIter bounds Newton-Raphson iterations.
	MaxIter int `default:"50"`
	// Tolerance is the convergence threshold on the largest step.
	Tolerance float64 `default:"1e-7"`
}

// NewCoxPH returns a solver with zero fields set to their defaults.
func NewCoxPH(c CoxPH) CoxPH {
	_ = defaults.Set(&c)
	return c
}

// CoxModel is a fitted Cox model.
type CoxModel struct {
	columns    []string
	mean       []float64
	scale      []float64
	beta       []float64
	stdErr     []float64
	times      []float64 // ascending event times
	cumHazard  []float64 // Breslow baseline cumulative hazard at times
	iterations int
	logLik     float64
}

// CoefficientSummary describes one fitted coefficient on the standardized scale.
type CoefficientSummary struct {
	Name        string
	Coef        float64
	HazardRatio float64 // per one unit of the raw covariate
	StdErr      float64
	Z           float64
	P           float64
}

// coxData is the standardized design sorted by descending duration.
type coxData struct {
	n, p   int
	z      [][]float64
	time   []float64
	event  []bool
	groups [][2]int // [start, end) index ranges of equal durations
}

// Fit estimates coefficients by Newton-Raphson with step halving and
// then computes the Breslow baseline. It checks ctx once per iteration.
func (c CoxPH) Fit(ctx context.Context, d *Dataset) (FittedModel, error) {
	c = NewCoxPH(c)
	if d.Len() == 0 {
		return nil, fmt.Errorf("cox fit: empty dataset: %w", ErrInsufficientData)
	}

	cd, mean, scale := prepare(d)
	beta := make([]float64, cd.p)
	m := &CoxModel{
		columns: append([]string(nil), d.Columns...),
		mean:    mean,
		scale:   scale,
	}

	if cd.p > 0 {
		converged := false
		for iter := 1; iter <= c.MaxIter; iter++ {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("cox fit after %d iterations: %w", iter-1, err)
			}
			ll, grad, info := c.derivatives(cd, beta, true)

			var chol mat.Cholesky
			if ok := chol.Factorize(info); !ok {
				return nil, fmt.Errorf("cox fit: information matrix not positive definite: %w", ErrNotConverged)
			}
			var delta mat.VecDense
			if err := chol.SolveVecTo(&delta, grad); err != nil {
				return nil, fmt.Errorf("cox fit: %v: %w", err, ErrNotConverged)
			}

			step, next, nextLL := 1.0, make([]float64, cd.p), math.Inf(-1)
			for half := 0; half < 30; half++ {
				for j := range beta {
					next[j] = beta[j] + step*delta.AtVec(j)
				}
				nextLL, _, _ = c.derivatives(cd, next, false)
				if finite(nextLL) && nextLL >= ll-1e-12 {
					break
				}
				step /= 2
			}
			if !finite(nextLL) {
				return nil, fmt.Errorf("cox fit: non-finite likelihood: %w", ErrNotConverged)
			}

			maxStep := 0.0
			for j := range beta {
				maxStep = math.Max(maxStep, math.Abs(next[j]-beta[j]))
			}
			copy(beta, next)
			m.iterations, m.logLik = iter, nextLL
			if maxStep < c.Tolerance {
				converged = true
				break
			}
		}
		if !converged {
			return nil, fmt.Errorf("cox fit: %d iterations: %w", c.MaxIter, ErrNotConverged)
		}

		_, _, info := c.derivatives(cd, beta, true)
		m.stdErr = standardErrors(info, cd.n)
	}

	m.beta = beta
	m.times, m.cumHazard = breslow(cd, beta)
	return m, nil
}

// prepare standardizes columns and sorts rows by descending duration.
func prepare(d *Dataset) (*coxData, []float64, []float64) {
	n, p := d.Len(), len(d.Columns)
	mean := make([]float64, p)
	scale := make([]float64, p)
	col := make([]float64, n)
	for j := 0; j < p; j++ {
		for i := range d.X {
			col[i] = d.X[i][j]
		}
		mu, variance := stat.MeanVariance(col, nil)
		sd := math.Sqrt(variance)
		if !finite(sd) || sd == 0 {
			sd = 1
		}
		mean[j], scale[j] = mu, sd
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return d.Durations[order[a]] > d.Durations[order[b]] })

	cd := &coxData{n: n, p: p, z: make([][]float64, n), time: make([]float64, n), event: make([]bool, n)}
	for k, i := range order {
		row := make([]float64, p)
		for j := 0; j < p; j++ {
			row[j] = (d.X[i][j] - mean[j]) / scale[j]
		}
		cd.z[k], cd.time[k], cd.event[k] = row, d.Durations[i], d.Events[i]
	}
	for start := 0; start < n; {
		end := start + 1
		for end < n && cd.time[end] == cd.time[start] {
			end++
		}
		cd.groups = append(cd.groups, [2]int{start, end})
		start = end
	}
	return cd, mean, scale
}

// derivatives returns the penalized mean log partial likelihood and, when
// withDerivs is set, its gradient and negated Hessian (information).
func (c CoxPH) derivatives(cd *coxData, beta []float64, withDerivs bool) (float64, *mat.VecDense, *mat.SymDense) {
	p := cd.p
	eta := make([]float64, cd.n)
	shift := math.Inf(-1)
	for i, row := range cd.z {
		for j, b := range beta {
			eta[i] += row[j] * b
		}
		shift = math.Max(shift, eta[i])
	}

	var (
		ll   float64
		s0   float64
		s1   = make([]float64, p)
		s2   = make([]float64, p*p)
		grad = make([]float64, p)
		info = make([]float64, p*p)
	)
	for _, g := range cd.groups {
		for i := g[0]; i < g[1]; i++ {
			w := math.Exp(eta[i] - shift)
			s0 += w
			if !withDerivs {
				continue
			}
			zi := cd.z[i]
			for a := 0; a < p; a++ {
				s1[a] += w * zi[a]
				for b := 0; b <= a; b++ {
					s2[a*p+b] += w * zi[a] * zi[b]
				}
			}
		}
		logS0 := math.Log(s0) + shift
		for i := g[0]; i < g[1]; i++ {
			if !cd.event[i] {
				continue
			}
			ll += eta[i] - logS0
			if !withDerivs {
				continue
			}
			zi := cd.z[i]
			for a := 0; a < p; a++ {
				ma := s1[a] / s0
				grad[a] += zi[a] - ma
				for b := 0; b <= a; b++ {
					info[a*p+b] += s2[a*p+b]/s0 - ma*s1[b]/s0
				}
			}
		}
	}

	nf := float64(cd.n)
	ll /= nf
	for _, b := range beta {
		ll -= 0.5 * c.Penalizer * b * b
	}
	if !withDerivs {
		return ll, nil, nil
	}

	for a := 0; a < p; a++ {
		grad[a] = grad[a]/nf - c.Penalizer*beta[a]
		for b := 0; b <= a; b++ {
			v := info[a*p+b] / nf
			if a == b {
				v += c.Penalizer
			}
			info[a*p+b], info[b*p+a] = v, v
		}
	}
	return ll, mat.NewVecDense(p, grad), mat.NewSymDense(p, info)
}

// standardErrors inverts the information of the summed likelihood.
func standardErrors(info *mat.SymDense, n int) []float64 {
	p := info.SymmetricDim()
	out := make([]float64, p)
	var chol mat.Cholesky
	if !chol.Factorize(info) {
		for j := range out {
			out[j] = math.NaN()
		}
		return out
	}
	var inv mat.SymDense
	if err := chol.InverseTo(&inv); err != nil {
		for j := range out {
			out[j] = math.NaN()
		}
		return out
	}
	for j := 0; j < p; j++ {
		out[j] = math.Sqrt(inv.At(j, j) / float64(n))
	}
	return out
}

// breslow computes the baseline cumulative hazard at each event time.
func breslow(cd *coxData, beta []float64) ([]float64, []float64) {
	var times, increments []float64
	s0 := 0.0
	for _, g := range cd.groups {
		deaths := 0
		for i := g[0]; i < g[1]; i++ {
			eta := 0.0
			for j, b := range beta {
				eta += cd.z[i][j] * b
			}
			s0 += math.Exp(eta)
			if cd.event[i] {
				deaths++
			}
		}
		if deaths > 0 {
			times = append(times, cd.time[g[0]])
			increments = append(increments, float64(deaths)/s0)
		}
	}

	// Groups were visited in descending time.
	k := len(times)
	asc := make([]float64, k)
	cum := make([]float64, k)
	total := 0.0
	for i := 0; i < k; i++ {
		asc[i] = times[k-1-i]
		total += increments[k-1-i]
		cum[i] = total
	}
	return asc, cum
}

// ════════════════════════════════════════════════════════════════════
// Prediction
// ════════════════════════════════════════════════════════════════════

// BaselineCumulativeHazard returns H0(t) for the mean covariate profile.
func (m *CoxModel) BaselineCumulativeHazard(t float64) float64 {
	i := sort.Search(len(m.times), func(i int) bool { return m.times[i] > t })
	if i == 0 {
		return 0
	}
	return m.cumHazard[i-1]
}

// LinearPredictor returns the standardized linear predictor for cov.
func (m *CoxModel) LinearPredictor(cov Covariates) float64 {
	eta := 0.0
	for j, name := range m.columns {
		x := cov[name]
		if !finite(x) {
			x = 0
		}
		eta += (x - m.mean[j]) / m.scale[j] * m.beta[j]
	}
	return eta
}

// SurvivalProbability returns S(t | cov) = exp(-H0(t) exp(eta)).
func (m *CoxModel) SurvivalProbability(cov Covariates, t float64) float64 {
	if t <= 0 {
		return 1
	}
	return math.Exp(-m.BaselineCumulativeHazard(t) * math.Exp(m.LinearPredictor(cov)))
}

// Iterations returns the Newton iterations used.
func (m *CoxModel) Iterations() int { return m.iterations }

// LogLikelihood returns the penalized mean log partial likelihood at the fit.
func (m *CoxModel) LogLikelihood() float64 { return m.logLik }

// Summary returns per-coefficient statistics in column order.
func (m *CoxModel) Summary() []CoefficientSummary {
	out := make([]CoefficientSummary, len(m.columns))
	for j, name := range m.columns {
		s := CoefficientSummary{
			Name:        name,
			Coef:        m.beta[j],
			HazardRatio: math.Exp(m.beta[j] / m.scale[j]),
			StdErr:      math.NaN(),
			Z:           math.NaN(),
			P:           math.NaN(),
		}
		if j < len(m.stdErr) && finite(m.stdErr[j]) && m.stdErr[j] > 0 {
			s.StdErr = m.stdErr[j]
			s.Z = m.beta[j] / s.StdErr
			s.P = 2 * (1 - distuv.UnitNormal.CDF(math.Abs(s.Z)))
		}
		out[j] = s
	}
	return out
}

// SignificantCovariates returns covariate names with p-value below alpha.
func (m *CoxModel) SignificantCovariates(alpha float64) []string {
	var out []string
	for _, s := range m.Summary() {
		if finite(s.P) && s.P < alpha {
			out = append(out, s.Name)
		}
	}
	return out
}
