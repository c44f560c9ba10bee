package fundamental

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/seenimoa/ratingrisk/pkg/models"
)

// PeerEntry is one issuer in a peer comparison.
type PeerEntry struct {
	CompanyID string             `json:"company_id" yaml:"company_id"`
	Ratios    map[string]float64 `json:"ratios"     yaml:"ratios"`
	Score     float64            `json:"score"      yaml:"score"` // credit health score
	Rank      int                `json:"rank"       yaml:"rank"`
}

// PeerComparison holds a target's standing among its peers.
type PeerComparison struct {
	Target  PeerEntry        `json:"target"  yaml:"target"`
	Peers   []PeerEntry      `json:"peers"   yaml:"peers"`
	Metrics []RelativeMetric `json:"metrics" yaml:"metrics"`
	Summary string           `json:"summary" yaml:"summary"`
}

// RankPeers scores every entry with AssessCreditHealth and returns them
// best first. Equal scores keep input order.
func RankPeers(entries []PeerEntry) []PeerEntry {
	all := make([]PeerEntry, len(entries))
	copy(all, entries)
	for i := range all {
		all[i].Score = AssessCreditHealth(all[i].Ratios).Score
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Score > all[j].Score
	})
	for i := range all {
		all[i].Rank = i + 1
	}
	return all
}

// ComparePeers ranks target against peers and compares its ratios with
// the peer distribution.
func ComparePeers(target PeerEntry, peers []PeerEntry) PeerComparison {
	all := RankPeers(append([]PeerEntry{target}, peers...))

	pc := PeerComparison{Peers: make([]PeerEntry, 0, len(peers))}
	for _, p := range all {
		if p.CompanyID == target.CompanyID && pc.Target.Rank == 0 {
			pc.Target = p
			continue
		}
		pc.Peers = append(pc.Peers, p)
	}

	peerRatios := make([]map[string]float64, len(peers))
	for i, p := range peers {
		peerRatios[i] = p.Ratios
	}
	pc.Metrics = RelativeRatioMetrics(target.Ratios, peerRatios)
	pc.Summary = buildPeerSummary(target.CompanyID, pc.Target.Rank, len(all))
	return pc
}

// RelativeMetric places one ratio of a target within its peers.
type RelativeMetric struct {
	Ratio       string  `json:"ratio"        yaml:"ratio"`
	TargetValue float64 `json:"target_value" yaml:"target_value"`
	PeerMean    float64 `json:"peer_mean"    yaml:"peer_mean"`
	PeerMedian  float64 `json:"peer_median"  yaml:"peer_median"`
	Percentile  float64 `json:"percentile"   yaml:"percentile"` // share of peers the target beats, 0-100
}

// lowerIsBetter lists ratios where a smaller value is the healthier one.
var lowerIsBetter = map[string]bool{
	models.RatioDebtToAssets: true,
}

// RelativeRatioMetrics compares each required ratio of target with the
// peers that report it. Ratios missing on the target or on every peer
// are skipped.
func RelativeRatioMetrics(target map[string]float64, peers []map[string]float64) []RelativeMetric {
	var out []RelativeMetric
	for _, name := range models.RequiredRatios {
		tv, ok := target[name]
		if !ok {
			continue
		}
		var vals []float64
		for _, p := range peers {
			if v, ok := p[name]; ok {
				vals = append(vals, v)
			}
		}
		if len(vals) == 0 {
			continue
		}
		sort.Float64s(vals)

		beats := 0
		for _, v := range vals {
			if (lowerIsBetter[name] && v > tv) || (!lowerIsBetter[name] && v < tv) {
				beats++
			}
		}
		out = append(out, RelativeMetric{
			Ratio:       name,
			TargetValue: tv,
			PeerMean:    stat.Mean(vals, nil),
			PeerMedian:  stat.Quantile(0.5, stat.Empirical, vals, nil),
			Percentile:  float64(beats) / float64(len(vals)) * 100,
		})
	}
	return out
}

func buildPeerSummary(id string, rank, total int) string {
	if total == 0 || rank == 0 {
		return fmt.Sprintf("%s has no peers to compare", id)
	}
	pctile := (1 - float64(rank-1)/float64(total)) * 100
	switch {
	case pctile >= 80:
		return id + " ranks in the top quintile of its peers by credit health"
	case pctile >= 60:
		return id + " ranks above average among its peers"
	case pctile >= 40:
		return id + " ranks average among its peers"
	case pctile >= 20:
		return id + " ranks below average among its peers"
	default:
		return id + " ranks in the bottom quintile of its peers by credit health"
	}
}
