package backtest

import (
	"math"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"
)

// ════════════════════════════════════════════════════════════════════
// Discrimination and Calibration Metrics
// ════════════════════════════════════════════════════════════════════

// ────────────────────────────────────────────────────────────────────
// Harrell's concordance index
// ────────────────────────────────────────────────────────────────────

// ConcordanceIndex returns Harrell's C for risk scores where a higher
// score predicts an earlier event. A pair (i, j) is comparable when
// subject i has an event strictly before j's time. Tied scores count
// half. With no comparable pairs the result is 0.5.
func ConcordanceIndex(durations []float64, events []bool, risk []float64) float64 {
	var concordant, comparable float64
	for i := range durations {
		if !events[i] {
			continue
		}
		for j := range durations {
			if durations[i] >= durations[j] {
				continue
			}
			comparable++
			switch {
			case risk[i] > risk[j]:
				concordant++
			case risk[i] == risk[j]:
				concordant += 0.5
			}
		}
	}
	if comparable == 0 {
		return 0.5
	}
	return bound(concordant / comparable)
}

// ────────────────────────────────────────────────────────────────────
// Horizon ROC-AUC
// ────────────────────────────────────────────────────────────────────

// HorizonAUC returns the area under the ROC curve of scores against
// labels. A single-class population yields 0.5.
func HorizonAUC(scores []float64, labels []bool) float64 {
	pos := 0
	for _, l := range labels {
		if l {
			pos++
		}
	}
	if pos == 0 || pos == len(labels) {
		return 0.5
	}

	y := append([]float64(nil), scores...)
	classes := append([]bool(nil), labels...)
	stat.SortWeightedLabeled(y, classes, nil)

	tpr, fpr, _ := stat.ROC(nil, y, classes, nil)
	auc := integrate.Trapezoidal(fpr, tpr)
	if math.IsNaN(auc) {
		return 0.5
	}
	return bound(auc)
}

// ────────────────────────────────────────────────────────────────────
// Brier score
// ────────────────────────────────────────────────────────────────────

// BrierScore returns the mean squared difference between predicted
// probabilities and binary outcomes. An empty input scores 0.
func BrierScore(probs []float64, labels []bool) float64 {
	if len(probs) == 0 {
		return 0
	}
	sum := 0.0
	for i, p := range probs {
		o := 0.0
		if labels[i] {
			o = 1
		}
		sum += (p - o) * (p - o)
	}
	return bound(sum / float64(len(probs)))
}

func bound(v float64) float64 {
	return math.Min(math.Max(v, 0), 1)
}
