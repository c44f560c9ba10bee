package fundamental

import (
	"fmt"
	"sort"

	"github.com/seenimoa/ratingrisk/pkg/models"
)

// CreditHealth scores an issuer's balance-sheet robustness.
type CreditHealth struct {
	Score      float64            // 0-100 composite score
	Grade      string             // "A", "B", "C", "D"
	Strengths  []string           // positive factors
	Weaknesses []string           // negative factors
	Components map[string]float64 // individual component scores
}

// AssessCreditHealth grades leverage, liquidity, profitability and
// coverage. Missing ratios score zero for their component.
func AssessCreditHealth(ratios map[string]float64) CreditHealth {
	h := CreditHealth{Components: make(map[string]float64)}

	// Leverage (30 points).
	lev := 0.0
	if v, ok := ratios[models.RatioDebtToAssets]; ok {
		switch {
		case v < 0.4:
			lev = 30
			h.Strengths = append(h.Strengths, fmt.Sprintf("Low leverage: debt/assets %.2f", v))
		case v < 0.6:
			lev = 20
		case v < 0.8:
			lev = 10
		default:
			h.Weaknesses = append(h.Weaknesses, fmt.Sprintf("High leverage: debt/assets %.2f", v))
		}
	}
	h.Components["leverage"] = lev

	// Liquidity (25 points).
	liq := 0.0
	if v, ok := ratios[models.RatioCurrentRatio]; ok {
		switch {
		case v >= 1.5:
			liq = 25
			h.Strengths = append(h.Strengths, fmt.Sprintf("Strong liquidity: current ratio %.2f", v))
		case v >= 1.0:
			liq = 15
		case v >= 0.8:
			liq = 8
		default:
			h.Weaknesses = append(h.Weaknesses, fmt.Sprintf("Weak liquidity: current ratio %.2f", v))
		}
	}
	h.Components["liquidity"] = liq

	// Profitability (25 points).
	prof := 0.0
	if v, ok := ratios[models.RatioROA]; ok {
		switch {
		case v >= 0.05:
			prof = 25
			h.Strengths = append(h.Strengths, fmt.Sprintf("Profitable: ROA %.1f%%", v*100))
		case v >= 0.01:
			prof = 15
		case v >= 0:
			prof = 5
		default:
			h.Weaknesses = append(h.Weaknesses, fmt.Sprintf("Loss-making: ROA %.1f%%", v*100))
		}
	}
	h.Components["profitability"] = prof

	// Coverage (20 points).
	cov := 0.0
	if v, ok := ratios[models.RatioInterestCoverage]; ok {
		switch {
		case v >= 5:
			cov = 20
		case v >= 2:
			cov = 12
		case v >= 1:
			cov = 5
		default:
			h.Weaknesses = append(h.Weaknesses, fmt.Sprintf("Interest not covered: coverage %.2fx", v))
		}
	}
	h.Components["coverage"] = cov

	h.Score = lev + liq + prof + cov
	switch {
	case h.Score >= 80:
		h.Grade = "A"
	case h.Score >= 60:
		h.Grade = "B"
	case h.Score >= 40:
		h.Grade = "C"
	default:
		h.Grade = "D"
	}

	sort.Strings(h.Strengths)
	sort.Strings(h.Weaknesses)
	return h
}
