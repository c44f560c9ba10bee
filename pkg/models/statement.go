package models

import "time"

// FinancialStatement holds the balance sheet and income items needed to
// derive credit ratios. Zero means "not reported".
type FinancialStatement struct {
	IssuerID string    `json:"issuer_id" yaml:"issuer_id"`
	Date     time.Time `json:"date"      yaml:"date"`

	TotalAssets          float64 `json:"total_assets"           yaml:"total_assets"`
	TotalLiabilities     float64 `json:"total_liabilities"      yaml:"total_liabilities"`
	TotalEquity          float64 `json:"total_equity"           yaml:"total_equity"`
	CurrentAssets        float64 `json:"current_assets"         yaml:"current_assets"`
	CurrentLiabilities   float64 `json:"current_liabilities"    yaml:"current_liabilities"`
	Cash                 float64 `json:"cash"                   yaml:"cash"`
	ShortTermInvestments float64 `json:"short_term_investments" yaml:"short_term_investments"`
	Receivables          float64 `json:"receivables"            yaml:"receivables"`

	Revenue         float64 `json:"revenue"          yaml:"revenue"`
	OperatingProfit float64 `json:"operating_profit" yaml:"operating_profit"`
	NetIncome       float64 `json:"net_income"       yaml:"net_income"`
	InterestExpense float64 `json:"interest_expense" yaml:"interest_expense"`
}
