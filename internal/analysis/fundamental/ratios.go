// Package fundamental derives credit ratios from financial statements and
// grades an issuer's balance-sheet health.
package fundamental

import (
	"math"
	"sort"

	"github.com/seenimoa/ratingrisk/pkg/models"
)

// IndustryDefaults are used when a ratio cannot be computed from the statement.
var IndustryDefaults = map[string]float64{
	models.RatioDebtToAssets:        0.65,
	models.RatioCurrentRatio:        1.1,
	models.RatioROA:                 0.02,
	models.RatioROE:                 0.05,
	models.RatioOperatingMargin:     0.08,
	models.RatioEquityRatio:         0.35,
	models.RatioAssetTurnover:       0.8,
	models.RatioInterestCoverage:    3.0,
	models.RatioQuickRatio:          0.9,
	models.RatioWorkingCapitalRatio: 0.1,
}

// RatioResult holds computed ratios and the names that fell back to defaults.
type RatioResult struct {
	Ratios    map[string]float64
	Defaulted []string
}

// ComputeRatios calculates the credit ratios for one statement. Missing
// totals are infilled from the balance-sheet identity
// assets = liabilities + equity before any ratio is taken.
func ComputeRatios(stmt models.FinancialStatement) RatioResult {
	assets, liabilities, equity := balanceSheetIdentity(stmt.TotalAssets, stmt.TotalLiabilities, stmt.TotalEquity)

	r := RatioResult{Ratios: make(map[string]float64, len(IndustryDefaults))}
	set := func(name string, num, den float64, ok bool) {
		if v, valid := safeDiv(num, den); ok && valid {
			r.Ratios[name] = v
			return
		}
		r.Ratios[name] = IndustryDefaults[name]
		r.Defaulted = append(r.Defaulted, name)
	}

	liquid := stmt.Cash + stmt.ShortTermInvestments + stmt.Receivables

	set(models.RatioDebtToAssets, liabilities, assets, liabilities > 0)
	set(models.RatioCurrentRatio, stmt.CurrentAssets, stmt.CurrentLiabilities, stmt.CurrentAssets > 0)
	set(models.RatioROA, stmt.NetIncome, assets, true)
	set(models.RatioROE, stmt.NetIncome, equity, true)
	set(models.RatioOperatingMargin, stmt.OperatingProfit, stmt.Revenue, true)
	set(models.RatioEquityRatio, equity, assets, equity > 0)
	set(models.RatioAssetTurnover, stmt.Revenue, assets, stmt.Revenue > 0)
	set(models.RatioInterestCoverage, stmt.OperatingProfit, stmt.InterestExpense, true)
	set(models.RatioQuickRatio, liquid, stmt.CurrentLiabilities, liquid > 0)
	set(models.RatioWorkingCapitalRatio, stmt.CurrentAssets-stmt.CurrentLiabilities, assets,
		stmt.CurrentAssets > 0 && stmt.CurrentLiabilities > 0)

	sort.Strings(r.Defaulted)
	return r
}

// Snapshots converts statements into covariate snapshots.
func Snapshots(stmts []models.FinancialStatement) []models.CovariateSnapshot {
	out := make([]models.CovariateSnapshot, 0, len(stmts))
	for _, s := range stmts {
		out = append(out, models.CovariateSnapshot{
			IssuerID: s.IssuerID,
			Date:     s.Date,
			Ratios:   ComputeRatios(s).Ratios,
		})
	}
	return out
}

// balanceSheetIdentity fills at most one missing total from the other two.
func balanceSheetIdentity(assets, liabilities, equity float64) (float64, float64, float64) {
	switch {
	case assets <= 0 && liabilities > 0 && equity != 0:
		assets = liabilities + equity
	case liabilities <= 0 && assets > 0 && equity != 0:
		liabilities = assets - equity
	case equity == 0 && assets > 0 && liabilities > 0:
		equity = assets - liabilities
	}
	return assets, liabilities, equity
}

// safeDiv divides when the denominator is positive and the result is finite.
func safeDiv(num, den float64) (float64, bool) {
	if den <= 0 || math.IsNaN(num) || math.IsInf(num, 0) {
		return 0, false
	}
	v := num / den
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
