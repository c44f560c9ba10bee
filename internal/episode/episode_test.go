package episode

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seenimoa/ratingrisk/internal/rating"
	"github.com/seenimoa/ratingrisk/pkg/models"
	"github.com/seenimoa/ratingrisk/pkg/utils"
)

func obs(issuer, date, sym string) models.RatingObservation {
	return models.RatingObservation{IssuerID: issuer, Date: utils.MustDate(date), Rating: sym}
}

func snap(issuer, date string, dta float64) models.CovariateSnapshot {
	return models.CovariateSnapshot{
		IssuerID: issuer,
		Date:     utils.MustDate(date),
		Ratios:   map[string]float64{models.RatioDebtToAssets: dta},
	}
}

// ════════════════════════════════════════════════════════════════════
// Builder
// ════════════════════════════════════════════════════════════════════

func TestBuildClassifiesEpisodes(t *testing.T) {
	b := NewBuilder(nil, zerolog.Nop())
	history := []models.RatingObservation{
		obs("X", "2015-01-01", "BBB"),
		obs("X", "2016-01-01", "A"),
		obs("X", "2017-01-01", "A"),
		obs("X", "2018-07-01", "BB"),
		obs("X", "2019-01-01", "D"),
	}

	eps, err := b.Build(history, nil)
	require.NoError(t, err)
	require.Len(t, eps, 4)

	want := []models.TransitionType{
		models.TransitionUpgrade,
		models.TransitionStable,
		models.TransitionDowngrade,
		models.TransitionDefault,
	}
	for i, ep := range eps {
		assert.Equal(t, want[i], ep.Type, "episode %d", i)
		assert.Greater(t, ep.Duration, 0.0)
	}
	assert.InDelta(t, 365.0/utils.DaysPerYear, eps[0].Duration, 1e-9)
	assert.Equal(t, "BB", eps[3].FromRating)
	assert.Equal(t, 21, eps[3].ToSeverity)
}

func TestBuildIgnoresInputOrder(t *testing.T) {
	b := NewBuilder(nil, zerolog.Nop())
	history := []models.RatingObservation{
		obs("X", "2017-01-01", "BB"),
		obs("X", "2015-01-01", "BBB"),
	}
	eps, err := b.Build(history, nil)
	require.NoError(t, err)
	require.Len(t, eps, 1)
	assert.Equal(t, models.TransitionDowngrade, eps[0].Type)
}

func TestBuildSingleObservationIssuer(t *testing.T) {
	b := NewBuilder(nil, zerolog.Nop())
	eps, err := b.Build([]models.RatingObservation{obs("solo", "2015-01-01", "AA")}, nil)
	require.NoError(t, err)
	assert.Empty(t, eps)
}

func TestBuildWithdrawnAndTerminalStart(t *testing.T) {
	b := NewBuilder(nil, zerolog.Nop())
	history := []models.RatingObservation{
		obs("X", "2015-01-01", "BBB"),
		obs("X", "2016-01-01", "WD"),
		obs("X", "2018-01-01", "BB"), // re-rated after withdrawal
		obs("X", "2019-01-01", "NR"),
	}
	eps, err := b.Build(history, nil)
	require.NoError(t, err)
	require.Len(t, eps, 2)
	assert.Equal(t, models.TransitionWithdrawn, eps[0].Type)
	assert.Equal(t, models.TransitionWithdrawn, eps[1].Type)
	assert.Equal(t, "BB", eps[1].FromRating)
}

func TestBuildDuplicateDate(t *testing.T) {
	b := NewBuilder(nil, zerolog.Nop())
	_, err := b.Build([]models.RatingObservation{
		obs("X", "2015-01-01", "BBB"),
		obs("X", "2015-01-01", "BB"),
	}, nil)
	assert.ErrorIs(t, err, ErrDuplicateObservation)
}

func TestBuildUnknownSymbol(t *testing.T) {
	b := NewBuilder(nil, zerolog.Nop())
	_, err := b.Build([]models.RatingObservation{
		obs("X", "2015-01-01", "BBB"),
		obs("X", "2016-01-01", "QQ"),
	}, nil)
	assert.ErrorIs(t, err, rating.ErrUnknownRating)
}

func TestCovariateCarryForward(t *testing.T) {
	b := NewBuilder(nil, zerolog.Nop())
	history := []models.RatingObservation{
		obs("X", "2014-01-01", "BBB"),
		obs("X", "2016-01-01", "BBB"),
		obs("X", "2017-06-01", "BB"),
		obs("X", "2018-06-01", "B"),
	}
	snaps := []models.CovariateSnapshot{
		snap("X", "2017-01-01", 0.7),
		snap("X", "2015-06-30", 0.5),
		snap("Y", "2010-01-01", 0.9),
	}

	eps, err := b.Build(history, snaps)
	require.NoError(t, err)
	require.Len(t, eps, 3)

	// 2014: nothing before, earliest snapshot is used.
	assert.Equal(t, 0.5, eps[0].Covariates[models.RatioDebtToAssets])
	// 2016: latest on or before start.
	assert.Equal(t, 0.5, eps[1].Covariates[models.RatioDebtToAssets])
	// 2017-06: picks up the 2017 snapshot.
	assert.Equal(t, 0.7, eps[2].Covariates[models.RatioDebtToAssets])

	// Episodes own their covariate maps.
	eps[0].Covariates[models.RatioDebtToAssets] = 99
	assert.Equal(t, 0.5, snaps[1].Ratios[models.RatioDebtToAssets])
}

func TestBuildWindow(t *testing.T) {
	b := NewBuilder(nil, zerolog.Nop())
	history := []models.RatingObservation{
		obs("X", "2017-01-01", "BBB"),
		obs("X", "2018-01-01", "BB"),
		obs("X", "2019-01-01", "B"),
		obs("X", "2020-01-01", "CCC"),
	}
	w := Window{Start: utils.MustDate("2018-01-01"), End: utils.MustDate("2018-12-31")}

	eps, err := b.BuildWindow(history, nil, w)
	require.NoError(t, err)
	require.Len(t, eps, 1)
	assert.Equal(t, "BB", eps[0].FromRating)
	assert.Equal(t, "2018-01-01..2018-12-31", w.String())
}

// ════════════════════════════════════════════════════════════════════
// Preprocessor
// ════════════════════════════════════════════════════════════════════

func row(issuer, date, sym string) models.RatingPanelRow {
	return models.RatingPanelRow{IssuerID: issuer, Date: utils.MustDate(date), Rating: sym}
}

func TestPreprocessLongGapBecomesWithdrawal(t *testing.T) {
	p := NewPreprocessor(nil, PreprocessConfig{}, zerolog.Nop())
	res, err := p.Process([]models.RatingPanelRow{
		row("X", "2020-01-01", "BBB"),
		row("X", "2020-04-01", "NR"),
		row("X", "2020-07-01", ""),
		row("X", "2020-10-01", "NR"),
	})
	require.NoError(t, err)

	require.Len(t, res.Observations, 2)
	assert.Equal(t, "WD", res.Observations[1].Rating)
	assert.Equal(t, utils.MustDate("2020-04-01"), res.Observations[1].Date)

	st := res.States["X"]
	assert.Equal(t, 1, st.NRFlag)
	assert.Equal(t, 183, st.ConsecutiveNRDays)
	assert.Equal(t, models.StateWithdrawn, st.State)
	assert.Equal(t, ReasonVoluntaryWithdrawal, st.NRReason)

	require.Len(t, res.Alerts, 1)
	assert.Equal(t, "Unrated > 90d", res.Alerts[0].Message)
}

func TestPreprocessShortGapIsInfoDeficiency(t *testing.T) {
	p := NewPreprocessor(nil, PreprocessConfig{}, zerolog.Nop())
	res, err := p.Process([]models.RatingPanelRow{
		row("X", "2020-01-01", "A"),
		row("X", "2020-01-10", "NR"),
		row("X", "2020-01-20", "NR"),
	})
	require.NoError(t, err)

	require.Len(t, res.Observations, 1)
	st := res.States["X"]
	assert.Equal(t, 1, st.NRFlag)
	assert.Equal(t, 10, st.ConsecutiveNRDays)
	assert.Equal(t, "A", st.State)
	assert.Equal(t, ReasonInfoDeficiency, st.NRReason)
	assert.Empty(t, res.Alerts)
}

func TestPreprocessGapThenReRating(t *testing.T) {
	p := NewPreprocessor(nil, PreprocessConfig{}, zerolog.Nop())
	res, err := p.Process([]models.RatingPanelRow{
		row("X", "2019-01-01", "BB"),
		row("X", "2019-02-01", "NR"),
		row("X", "2019-03-15", "NR"),
		row("X", "2019-06-01", "BB-"),
	})
	require.NoError(t, err)

	require.Len(t, res.Observations, 3)
	assert.Equal(t, "WD", res.Observations[1].Rating)
	st := res.States["X"]
	assert.Equal(t, 0, st.NRFlag)
	assert.Equal(t, "BB-", st.State)
	assert.Equal(t, ReasonNone, st.NRReason)
}

func TestPreprocessAlertThreshold(t *testing.T) {
	tests := []struct {
		last   string
		days   int
		alerts int
	}{
		{"2020-04-30", 89, 0},
		{"2020-05-01", 90, 1},
		{"2020-05-02", 91, 1},
	}
	for _, tt := range tests {
		t.Run(tt.last, func(t *testing.T) {
			p := NewPreprocessor(nil, PreprocessConfig{}, zerolog.Nop())
			res, err := p.Process([]models.RatingPanelRow{
				row("X", "2020-01-01", "BBB"),
				row("X", "2020-02-01", "NR"),
				row("X", tt.last, "NR"),
			})
			require.NoError(t, err)
			assert.Equal(t, tt.days, res.States["X"].ConsecutiveNRDays)
			require.Len(t, res.Alerts, tt.alerts)
			if tt.alerts > 0 {
				assert.Equal(t, tt.days, res.Alerts[0].DaysUnrated)
				assert.Equal(t, "Unrated > 90d", res.Alerts[0].Message)
			}
		})
	}
}

func TestPreprocessNeverRated(t *testing.T) {
	p := NewPreprocessor(nil, PreprocessConfig{AlertThresholdDays: 30}, zerolog.Nop())
	res, err := p.Process([]models.RatingPanelRow{
		row("N", "2021-01-01", ""),
		row("N", "2021-06-01", ""),
	})
	require.NoError(t, err)

	assert.Empty(t, res.Observations)
	st := res.States["N"]
	assert.Equal(t, ReasonNeverRated, st.NRReason)
	assert.Equal(t, "NR", st.State)
	require.Len(t, res.Alerts, 1)
	assert.Equal(t, "Unrated > 30d", res.Alerts[0].Message)
}

func TestPreprocessUnknownRating(t *testing.T) {
	p := NewPreprocessor(nil, PreprocessConfig{}, zerolog.Nop())
	_, err := p.Process([]models.RatingPanelRow{row("X", "2021-01-01", "ZZ")})
	assert.ErrorIs(t, err, rating.ErrUnknownRating)
}

func TestIssuerStateApply(t *testing.T) {
	st := IssuerState{LastRating: "BB", State: models.StateWithdrawn, NRFlag: 1, ConsecutiveNRDays: 120}
	f := models.FirmProfile{CompanyID: "X"}
	st.Apply(&f)

	assert.Equal(t, models.RatingRef("BB"), f.CurrentRating)
	assert.Equal(t, 1, f.NRFlag)
	assert.Equal(t, 120, f.ConsecutiveNRDays)
	assert.True(t, f.IsWithdrawn())
}
