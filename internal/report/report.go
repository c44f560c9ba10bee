// Package report renders assessments and backtests for terminals and
// machine consumers.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/seenimoa/ratingrisk/internal/analysis/fundamental"
	"github.com/seenimoa/ratingrisk/internal/backtest"
	"github.com/seenimoa/ratingrisk/internal/scorer"
	"github.com/seenimoa/ratingrisk/pkg/models"
)

// ════════════════════════════════════════════════════════════════════
// Output formats
// ════════════════════════════════════════════════════════════════════

// Format specifies the output format.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat validates a format name. Empty selects text.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatText, nil
	case FormatText, FormatJSON, FormatYAML:
		return f, nil
	}
	return "", fmt.Errorf("unknown output format %q (want text, json or yaml)", s)
}

// Encode writes v as JSON or YAML.
func Encode(w io.Writer, v any, f Format) error {
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("format %q is not a structured encoding", f)
}

// ScoreOutput bundles everything the score command reports.
type ScoreOutput struct {
	HorizonDays int                     `json:"horizon_days"           yaml:"horizon_days"`
	RunID       string                  `json:"run_id,omitempty"       yaml:"run_id,omitempty"`
	Portfolio   *scorer.PortfolioResult `json:"portfolio"              yaml:"portfolio"`
	Peers       []fundamental.PeerEntry `json:"peer_ranking,omitempty" yaml:"peer_ranking,omitempty"`
	Alerts      []string                `json:"alerts,omitempty"       yaml:"alerts,omitempty"`
}

// WriteScore writes a score run in format f.
func WriteScore(w io.Writer, out *ScoreOutput, f Format) error {
	if f != FormatText {
		return Encode(w, out, f)
	}
	_, err := io.WriteString(w, RenderScore(out))
	return err
}

// WriteBacktest writes a backtest report in format f.
func WriteBacktest(w io.Writer, rep *backtest.Report, f Format) error {
	if f != FormatText {
		return Encode(w, rep, f)
	}
	_, err := io.WriteString(w, RenderBacktest(rep))
	return err
}

// ════════════════════════════════════════════════════════════════════
// Risk factors
// ════════════════════════════════════════════════════════════════════

// RiskFactor is a notable component of an assessment.
type RiskFactor struct {
	Level       string
	Description string
}

// RiskFactors flags elevated downgrade and default probabilities.
func RiskFactors(a *models.RiskAssessment) []RiskFactor {
	var out []RiskFactor
	switch {
	case a.DowngradeProbability > 0.10:
		out = append(out, RiskFactor{"HIGH", fmt.Sprintf("downgrade risk %s", pct(a.DowngradeProbability))})
	case a.DowngradeProbability > 0.05:
		out = append(out, RiskFactor{"MODERATE", fmt.Sprintf("downgrade risk %s", pct(a.DowngradeProbability))})
	}
	if a.DefaultProbability > 0.01 {
		out = append(out, RiskFactor{"HIGH", fmt.Sprintf("default risk %s", pct(a.DefaultProbability))})
	}
	return out
}

// riskInterpretation describes each classification in one line.
var riskInterpretation = map[models.RiskLevel]string{
	models.RiskHigh:    "HIGH RISK: Significant probability of rating change within %dd",
	models.RiskMedium:  "MEDIUM RISK: Moderate probability of rating change within %dd",
	models.RiskLow:     "LOW RISK: Low probability of rating change within %dd",
	models.RiskVeryLow: "VERY LOW RISK: Very stable rating expected over %dd",
}

// Interpretation returns the one-line reading of an assessment's class.
func Interpretation(a *models.RiskAssessment) string {
	f, ok := riskInterpretation[a.RiskClassification]
	if !ok {
		return fmt.Sprintf("UNCLASSIFIED: %s", a.RiskClassification)
	}
	return fmt.Sprintf(f, a.HorizonDays)
}

// actionRule adds actions when its condition holds.
type actionRule struct {
	applies func(a *models.RiskAssessment) bool
	actions []string
}

var actionRules = []actionRule{
	{
		applies: func(a *models.RiskAssessment) bool { return a.DowngradeProbability > 0.10 },
		actions: []string{"Monitor financial performance closely", "Review credit facilities and covenants"},
	},
	{
		applies: func(a *models.RiskAssessment) bool { return a.DefaultProbability > 0.01 },
		actions: []string{"Immediate financial review required", "Consider credit protection measures"},
	},
	{
		applies: func(a *models.RiskAssessment) bool {
			return a.RiskClassification == models.RiskHigh || a.RiskClassification == models.RiskMedium
		},
		actions: []string{"Increase monitoring frequency", "Update financial projections"},
	},
}

// RecommendedActions lists follow-ups for an assessment in rule order.
func RecommendedActions(a *models.RiskAssessment) []string {
	var out []string
	for _, r := range actionRules {
		if r.applies(a) {
			out = append(out, r.actions...)
		}
	}
	return out
}

// ════════════════════════════════════════════════════════════════════
// Plain-text renderers
// ════════════════════════════════════════════════════════════════════

const width = 60

var (
	line     = strings.Repeat("═", width)
	thinLine = strings.Repeat("─", width)
)

// RenderAssessment renders one assessment. health may be nil.
func RenderAssessment(a *models.RiskAssessment, health *fundamental.CreditHealth) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("\n  %s | horizon %dd\n", a.CompanyID, a.HorizonDays))
	sb.WriteString(thinLine + "\n")
	sb.WriteString(fmt.Sprintf("  Overall change probability: %s  [%s]\n", pct(a.OverallChangeProbability), a.RiskClassification))
	if a.AdjustmentFactor != 1 {
		sb.WriteString(fmt.Sprintf("  Before adjustment: %s | %s\n", pct(a.OriginalChangeProbability), a.AdjustmentReason))
	}

	sb.WriteString("\n  ■ TRANSITIONS\n")
	for _, t := range models.ModeledTransitions {
		sb.WriteString(fmt.Sprintf("    %-10s %8s   Λ=%.4f  (%s)\n",
			t, pct(a.Probability(t)), a.CumulativeHazards[t], a.ModelSources[t]))
	}

	if factors := RiskFactors(a); len(factors) > 0 {
		sb.WriteString("\n  ■ RISK FACTORS\n")
		for _, f := range factors {
			sb.WriteString(fmt.Sprintf("    [%s] %s\n", f.Level, f.Description))
		}
	}

	sb.WriteString("\n  ■ RISK INTERPRETATION\n")
	sb.WriteString("    " + Interpretation(a) + "\n")

	if actions := RecommendedActions(a); len(actions) > 0 {
		sb.WriteString("\n  ■ RECOMMENDED ACTIONS\n")
		for _, act := range actions {
			sb.WriteString("    - " + act + "\n")
		}
	}

	if health != nil {
		sb.WriteString(fmt.Sprintf("\n  ■ CREDIT HEALTH: %.0f/100 (grade %s)\n", health.Score, health.Grade))
		for _, s := range health.Strengths {
			sb.WriteString("    + " + s + "\n")
		}
		for _, s := range health.Weaknesses {
			sb.WriteString("    - " + s + "\n")
		}
	}

	for _, w := range a.Warnings {
		sb.WriteString("  ! " + w + "\n")
	}
	return sb.String()
}

// RenderScore renders a full score run.
func RenderScore(out *ScoreOutput) string {
	var sb strings.Builder

	sb.WriteString("\n" + line + "\n")
	sb.WriteString(fmt.Sprintf("  RATING TRANSITION RISK | horizon %dd\n", out.HorizonDays))
	if out.RunID != "" {
		sb.WriteString(fmt.Sprintf("  Run: %s\n", out.RunID))
	}
	sb.WriteString(line + "\n")

	health := make(map[string]*fundamental.CreditHealth)
	for _, p := range out.Peers {
		h := fundamental.AssessCreditHealth(p.Ratios)
		health[p.CompanyID] = &h
	}

	if out.Portfolio != nil {
		for _, a := range out.Portfolio.Scored() {
			sb.WriteString(RenderAssessment(a, health[a.CompanyID]))
		}
		if len(out.Portfolio.Failures) > 0 {
			sb.WriteString("\n  ■ NOT SCORED\n")
			for _, f := range out.Portfolio.Failures {
				sb.WriteString(fmt.Sprintf("    #%d %s: %s\n", f.Index, f.CompanyID, f.Error))
			}
		}
		sb.WriteString(thinLine + "\n")
		sb.WriteString(renderDistribution(out.Portfolio.Scored()))
	}

	if len(out.Peers) > 1 {
		sb.WriteString("\n  ■ PEER RANKING (credit health)\n")
		for _, p := range out.Peers {
			sb.WriteString(fmt.Sprintf("    %2d. %-20s %5.0f\n", p.Rank, p.CompanyID, p.Score))
		}
	}

	if len(out.Alerts) > 0 {
		sb.WriteString("\n  ■ ALERTS\n")
		for _, a := range out.Alerts {
			sb.WriteString("    ⚠ " + a + "\n")
		}
	}

	sb.WriteString(line + "\n")
	return sb.String()
}

func renderDistribution(as []*models.RiskAssessment) string {
	counts := make(map[models.RiskLevel]int)
	for _, a := range as {
		counts[a.RiskClassification]++
	}
	var parts []string
	for _, l := range []models.RiskLevel{models.RiskHigh, models.RiskMedium, models.RiskLow, models.RiskVeryLow} {
		parts = append(parts, fmt.Sprintf("%s %d", l, counts[l]))
	}
	return fmt.Sprintf("  Scored %d | %s\n", len(as), strings.Join(parts, " | "))
}

// RenderBacktest renders a backtest report.
func RenderBacktest(rep *backtest.Report) string {
	var sb strings.Builder

	sb.WriteString("\n" + line + "\n")
	sb.WriteString(fmt.Sprintf("  HAZARD MODEL BACKTEST | horizon %dd\n", rep.HorizonDays))
	sb.WriteString(line + "\n\n")

	sb.WriteString(fmt.Sprintf("  %-16s %-10s %-10s %7s %7s %7s %6s %6s %s\n",
		"SPLIT", "PERIOD", "TYPE", "C-IDX", "AUC", "BRIER", "N", "EVENTS", "REGIME"))
	sb.WriteString(thinLine + "\n")
	for _, r := range rep.Rows {
		regime := ""
		if r.RegimeFlag {
			regime = "*"
		}
		sb.WriteString(fmt.Sprintf("  %-16s %-10s %-10s %7.3f %7.3f %7.3f %6d %6d %s\n",
			r.SplitName, r.Period, r.TransitionType, r.ConcordanceIndex, r.HorizonAUC, r.BrierScore,
			r.NObservations, r.NEvents, regime))
	}

	if len(rep.Rows) > 0 {
		sb.WriteString(thinLine + "\n")
		sb.WriteString(renderPeriodMeans(rep.Rows))
	}

	if len(rep.Skipped) > 0 {
		sb.WriteString("\n  ■ SKIPPED\n")
		for _, s := range rep.Skipped {
			where := s.Split
			if s.Period != "" {
				where += "/" + string(s.Period)
			}
			sb.WriteString(fmt.Sprintf("    %s: %s\n", where, s.Reason))
		}
	}

	sb.WriteString("\n  ■ REGIME BIAS\n")
	if b := rep.Bias; b != nil {
		sb.WriteString(fmt.Sprintf("    %-8s %14s %14s %14s\n", "", "C-IDX", "AUC", "BRIER"))
		sb.WriteString(fmt.Sprintf("    %-8s %s %s %s   (%d rows)\n", "regime",
			meanStd(b.Regime.ConcordanceIndex, b.RegimeStd.ConcordanceIndex),
			meanStd(b.Regime.HorizonAUC, b.RegimeStd.HorizonAUC),
			meanStd(b.Regime.BrierScore, b.RegimeStd.BrierScore), b.RegimeRows))
		sb.WriteString(fmt.Sprintf("    %-8s %s %s %s   (%d rows)\n", "normal",
			meanStd(b.Normal.ConcordanceIndex, b.NormalStd.ConcordanceIndex),
			meanStd(b.Normal.HorizonAUC, b.NormalStd.HorizonAUC),
			meanStd(b.Normal.BrierScore, b.NormalStd.BrierScore), b.NormalRows))
		sb.WriteString(fmt.Sprintf("    %-8s %+13.1f%% %+13.1f%% %+13.1f%%\n", "degrade", b.Degradation.ConcordanceIndex, b.Degradation.HorizonAUC, b.Degradation.BrierScore))
		sb.WriteString(fmt.Sprintf("    Assessment: %s (%.1f%% degradation)\n", b.Level, b.OverallDegradationPct))
		sb.WriteString(fmt.Sprintf("    %s Retrain %s.\n", b.Recommendation, b.RetrainCadence))
	} else {
		sb.WriteString("    No regime contrast available.\n")
	}

	sb.WriteString(line + "\n")
	return sb.String()
}

// meanStd formats a mean with its spread, right-aligned to 14 columns.
func meanStd(mean, std float64) string {
	return fmt.Sprintf("%14s", fmt.Sprintf("%.3f ± %.3f", mean, std))
}

func renderPeriodMeans(rows []models.BacktestResult) string {
	type acc struct {
		c, auc, brier float64
		n             int
	}
	byPeriod := make(map[models.Period]*acc)
	for _, r := range rows {
		a, ok := byPeriod[r.Period]
		if !ok {
			a = &acc{}
			byPeriod[r.Period] = a
		}
		a.c += r.ConcordanceIndex
		a.auc += r.HorizonAUC
		a.brier += r.BrierScore
		a.n++
	}

	periods := make([]string, 0, len(byPeriod))
	for p := range byPeriod {
		periods = append(periods, string(p))
	}
	sort.Strings(periods)

	var sb strings.Builder
	for _, p := range periods {
		a := byPeriod[models.Period(p)]
		n := float64(a.n)
		sb.WriteString(fmt.Sprintf("  %-16s %-10s %-10s %7.3f %7.3f %7.3f\n", "mean", p, "", a.c/n, a.auc/n, a.brier/n))
	}
	return sb.String()
}

func pct(p float64) string {
	return fmt.Sprintf("%.2f%%", p*100)
}
