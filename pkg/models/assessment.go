package models

// RiskLevel is the classification of an overall change probability.
type RiskLevel string

const (
	RiskHigh    RiskLevel = "HIGH"
	RiskMedium  RiskLevel = "MEDIUM"
	RiskLow     RiskLevel = "LOW"
	RiskVeryLow RiskLevel = "VERY_LOW"
)

// RiskAssessment is the scoring result for one firm at one horizon.
type RiskAssessment struct {
	CompanyID                 string                     `json:"company_id"                  yaml:"company_id"`
	HorizonDays               int                        `json:"horizon_days"                yaml:"horizon_days"`
	OverallChangeProbability  float64                    `json:"overall_change_probability"  yaml:"overall_change_probability"`
	OriginalChangeProbability float64                    `json:"original_change_probability" yaml:"original_change_probability"`
	AdjustmentFactor          float64                    `json:"adjustment_factor"           yaml:"adjustment_factor"`
	AdjustmentReason          string                     `json:"adjustment_reason"           yaml:"adjustment_reason"`
	UpgradeProbability        float64                    `json:"upgrade_probability"         yaml:"upgrade_probability"`
	DowngradeProbability      float64                    `json:"downgrade_probability"       yaml:"downgrade_probability"`
	DefaultProbability        float64                    `json:"default_probability"         yaml:"default_probability"`
	WithdrawnProbability      float64                    `json:"withdrawn_probability"       yaml:"withdrawn_probability"`
	CumulativeHazards         map[TransitionType]float64 `json:"cumulative_hazards"          yaml:"cumulative_hazards"`
	RiskClassification        RiskLevel                  `json:"risk_classification"         yaml:"risk_classification"`
	ModelSources              map[TransitionType]string  `json:"model_sources,omitempty"     yaml:"model_sources,omitempty"`
	Warnings                  []string                   `json:"warnings,omitempty"          yaml:"warnings,omitempty"`
}

// Probability returns the per-type probability stored on the assessment.
func (a *RiskAssessment) Probability(t TransitionType) float64 {
	switch t {
	case TransitionUpgrade:
		return a.UpgradeProbability
	case TransitionDowngrade:
		return a.DowngradeProbability
	case TransitionDefault:
		return a.DefaultProbability
	case TransitionWithdrawn:
		return a.WithdrawnProbability
	}
	return 0
}

// SetProbability stores a per-type probability on the assessment.
func (a *RiskAssessment) SetProbability(t TransitionType, p float64) {
	switch t {
	case TransitionUpgrade:
		a.UpgradeProbability = p
	case TransitionDowngrade:
		a.DowngradeProbability = p
	case TransitionDefault:
		a.DefaultProbability = p
	case TransitionWithdrawn:
		a.WithdrawnProbability = p
	}
}
