package models

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Financial ratio names used as covariates.
const (
	RatioDebtToAssets        = "debt_to_assets"
	RatioCurrentRatio        = "current_ratio"
	RatioROA                 = "roa"
	RatioROE                 = "roe"
	RatioOperatingMargin     = "operating_margin"
	RatioEquityRatio         = "equity_ratio"
	RatioAssetTurnover       = "asset_turnover"
	RatioInterestCoverage    = "interest_coverage"
	RatioQuickRatio          = "quick_ratio"
	RatioWorkingCapitalRatio = "working_capital_ratio"
)

// RequiredRatios must be present in every FirmProfile.
var RequiredRatios = []string{
	RatioDebtToAssets,
	RatioCurrentRatio,
	RatioROA,
	RatioROE,
	RatioOperatingMargin,
	RatioEquityRatio,
	RatioAssetTurnover,
	RatioInterestCoverage,
	RatioQuickRatio,
	RatioWorkingCapitalRatio,
}

// StateWithdrawn is the FirmProfile state for issuers whose coverage ended.
const StateWithdrawn = "Withdrawn"

// RatingRef is a rating given either as a symbol ("BBB+") or as a
// numeric severity ("8" or 8 in JSON).
type RatingRef string

// UnmarshalJSON accepts both strings and numbers.
func (r *RatingRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = RatingRef(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*r = RatingRef(n.String())
	return nil
}

// FirmProfile is the caller-provided description of an issuer to score.
type FirmProfile struct {
	CompanyID         string         `json:"company_id"          yaml:"company_id"          validate:"required"`
	CurrentRating     RatingRef      `json:"current_rating"      yaml:"current_rating"      validate:"required"`
	FinancialRatios   map[string]any `json:"financial_ratios"    yaml:"financial_ratios"    validate:"required,ratios"`
	NRFlag            int            `json:"nr_flag"             yaml:"nr_flag"             validate:"oneof=0 1"`
	State             string         `json:"state"               yaml:"state"`
	ConsecutiveNRDays int            `json:"consecutive_nr_days" yaml:"consecutive_nr_days" validate:"gte=0"`
}

// IsWithdrawn reports whether the profile's state marks a withdrawn rating.
func (f FirmProfile) IsWithdrawn() bool {
	s := strings.TrimSpace(f.State)
	return strings.EqualFold(s, StateWithdrawn) || strings.EqualFold(s, "WD")
}
