package models

// Period names a backtest evaluation population.
type Period string

const (
	PeriodTrain      Period = "train"
	PeriodValidation Period = "validation"
	PeriodTest       Period = "test"
)

// BacktestResult is one metric row: split × period × transition type.
type BacktestResult struct {
	SplitName        string         `json:"split_name"        yaml:"split_name"`
	Period           Period         `json:"period"            yaml:"period"`
	TransitionType   TransitionType `json:"transition_type"   yaml:"transition_type"`
	ConcordanceIndex float64        `json:"concordance_index" yaml:"concordance_index"`
	HorizonAUC       float64        `json:"horizon_auc"       yaml:"horizon_auc"`
	BrierScore       float64        `json:"brier_score"       yaml:"brier_score"`
	NObservations    int            `json:"n_observations"    yaml:"n_observations"`
	NEvents          int            `json:"n_events"          yaml:"n_events"`
	RegimeFlag       bool           `json:"regime_flag"       yaml:"regime_flag"`
}

// BiasLevel grades how much a model degrades during a stress regime.
type BiasLevel string

const (
	BiasHigh   BiasLevel = "HIGH"
	BiasMedium BiasLevel = "MEDIUM"
	BiasLow    BiasLevel = "LOW"
)

// MetricMeans holds one summary statistic of backtest metrics for a group
// of rows, either the mean or the standard deviation.
type MetricMeans struct {
	ConcordanceIndex float64 `json:"concordance_index" yaml:"concordance_index"`
	HorizonAUC       float64 `json:"horizon_auc"       yaml:"horizon_auc"`
	BrierScore       float64 `json:"brier_score"       yaml:"brier_score"`
}

// RegimeBias compares metrics inside a flagged stress regime to the rest.
type RegimeBias struct {
	RegimeRows            int         `json:"regime_rows"             yaml:"regime_rows"`
	NormalRows            int         `json:"normal_rows"             yaml:"normal_rows"`
	Regime                MetricMeans `json:"regime"                  yaml:"regime"`
	Normal                MetricMeans `json:"normal"                  yaml:"normal"`
	RegimeStd             MetricMeans `json:"regime_std"              yaml:"regime_std"`
	NormalStd             MetricMeans `json:"normal_std"              yaml:"normal_std"`
	Degradation           MetricMeans `json:"degradation_pct"         yaml:"degradation_pct"`
	OverallDegradationPct float64     `json:"overall_degradation_pct" yaml:"overall_degradation_pct"`
	Level                 BiasLevel   `json:"level"                   yaml:"level"`
	Recommendation        string      `json:"recommendation"          yaml:"recommendation"`
	RetrainCadence        string      `json:"retrain_cadence"         yaml:"retrain_cadence"`
}
