package dataset

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seenimoa/ratingrisk/pkg/models"
	"github.com/seenimoa/ratingrisk/pkg/utils"
)

const yamlDoc = `
observations:
  - {issuer_id: ACME, date: 2015-01-01, rating: BBB}
  - {issuer_id: ACME, date: "2016-06-30", rating: BB+}
panel:
  - {issuer_id: ZETA, date: 2020-01-31, rating: A}
  - {issuer_id: ZETA, date: 2020-02-29, rating: NR}
snapshots:
  - issuer_id: ACME
    date: 2014-12-31
    ratios: {debt_to_assets: 0.6, roa: 0.03}
statements:
  - issuer_id: ZETA
    date: 2019-12-31
    total_assets: 1000
    total_liabilities: 600
    revenue: 800
firms:
  - company_id: ACME
    current_rating: 8
    nr_flag: 0
    financial_ratios: {debt_to_assets: 0.6, interest_coverage: 3}
`

const jsonDoc = `{
  "observations": [
    {"issuer_id": "ACME", "date": "2015-01-01", "rating": "BBB"},
    {"issuer_id": "ACME", "date": "2016-06-30", "rating": 10}
  ],
  "firms": [
    {"company_id": "ACME", "current_rating": "BB+", "nr_flag": 1,
     "state": "Withdrawn", "consecutive_nr_days": 45,
     "financial_ratios": {"roa": 0.01, "roe": null}}
  ]
}`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadYAML(t *testing.T) {
	ds, err := Load(writeFile(t, "data.yaml", yamlDoc))
	require.NoError(t, err)

	require.Len(t, ds.Observations, 2)
	assert.Equal(t, utils.MustDate("2015-01-01"), ds.Observations[0].Date)
	assert.Equal(t, "BB+", ds.Observations[1].Rating)

	require.Len(t, ds.Panel, 2)
	assert.Equal(t, "NR", ds.Panel[1].Rating)

	require.Len(t, ds.Snapshots, 1)
	assert.InDelta(t, 0.6, ds.Snapshots[0].Ratios[models.RatioDebtToAssets], 1e-12)

	require.Len(t, ds.Statements, 1)
	assert.InDelta(t, 1000, ds.Statements[0].TotalAssets, 1e-12)
	assert.Equal(t, utils.MustDate("2019-12-31"), ds.Statements[0].Date)

	require.Len(t, ds.Firms, 1)
	assert.Equal(t, models.RatingRef("8"), ds.Firms[0].CurrentRating)
	assert.False(t, ds.Empty())
}

func TestLoadJSON(t *testing.T) {
	ds, err := Load(writeFile(t, "data.json", jsonDoc))
	require.NoError(t, err)

	require.Len(t, ds.Observations, 2)
	assert.Equal(t, "10", ds.Observations[1].Rating)
	assert.Empty(t, ds.Panel)

	require.Len(t, ds.Firms, 1)
	f := ds.Firms[0]
	assert.Equal(t, models.RatingRef("BB+"), f.CurrentRating)
	assert.True(t, f.IsWithdrawn())
	assert.Equal(t, 45, f.ConsecutiveNRDays)
	assert.Nil(t, f.FinancialRatios["roe"])
}

func TestDecodeBadDate(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"observation", `observations: [{issuer_id: A, date: "01/02/2015", rating: A}]`, "observations[0]"},
		{"panel", `panel: [{issuer_id: A, date: "soon", rating: A}]`, "panel[0]"},
		{"snapshot", `snapshots: [{issuer_id: A, date: ""}]`, "snapshots[0]"},
		{"statement", `statements: [{issuer_id: A, date: "x"}]`, "statements[0]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.body), FormatYAML)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestDecodeEmptyYAML(t *testing.T) {
	ds, err := Decode(strings.NewReader(""), FormatYAML)
	require.NoError(t, err)
	assert.True(t, ds.Empty())
}

func TestFormatFor(t *testing.T) {
	f, err := FormatFor("a/b.YML")
	require.NoError(t, err)
	assert.Equal(t, FormatYAML, f)

	_, err = FormatFor("data.csv")
	require.ErrorIs(t, err, ErrUnknownFormat)

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}
