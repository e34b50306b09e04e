package anomaly

import (
	"math"
	"sort"

	"irrigation-flow-analyzer/src/types"
	"irrigation-flow-analyzer/src/utils"
)

// Severity bands over the composite score, in population sigmas.
const (
	NO_ANOMALY = "NO_ANOMALY"
	MEDIUM     = "MEDIUM"
	ANOMALY    = "ANOMALY"
)

// Score turns the per-valve window statistics into population-relative
// anomaly scores: each valve's window mean is normalized against the
// mean and spread of that statistic across all valves. A valve that
// looks like its peers scores near zero regardless of its absolute flow.
//
// A flat population (zero or undefined spread) yields z = 0, not a
// fault. The composite is the worst absolute z across the three
// metrics, so one misbehaving signal is enough to flag a valve.
func Score(window string, stats map[int]types.ValveWindowStats) []types.AnomalyScore {
	if len(stats) == 0 {
		return nil
	}

	valveIDs := make([]int, 0, len(stats))
	for id := range stats {
		valveIDs = append(valveIDs, id)
	}
	sort.Ints(valveIDs)

	var flows, maxFlows, stabilities []float64
	for _, id := range valveIDs {
		s := stats[id]
		flows = append(flows, s.MeanFlowIncrease)
		maxFlows = append(maxFlows, s.MeanMaxFlow)
		if !math.IsNaN(s.MeanStability) {
			stabilities = append(stabilities, s.MeanStability)
		}
	}

	flowMean, flowStd := utils.Average(flows), utils.StandardDeviation(flows)
	maxMean, maxStd := utils.Average(maxFlows), utils.StandardDeviation(maxFlows)
	stabMean, stabStd := utils.Average(stabilities), utils.StandardDeviation(stabilities)

	scores := make([]types.AnomalyScore, 0, len(valveIDs))
	for _, id := range valveIDs {
		s := stats[id]

		score := types.AnomalyScore{
			Valve:    id,
			Window:   window,
			FlowZ:    zScore(s.MeanFlowIncrease, flowMean, flowStd),
			MaxFlowZ: zScore(s.MeanMaxFlow, maxMean, maxStd),
		}
		if !math.IsNaN(s.MeanStability) {
			score.StabilityZ = zScore(s.MeanStability, stabMean, stabStd)
		}

		score.Composite = composite(score)
		score.Level = LevelFor(score.Composite)
		scores = append(scores, score)
	}

	return scores
}

func zScore(value, mean, std float64) float64 {
	if std == 0 || math.IsNaN(std) {
		return 0.0
	}
	return (value - mean) / std
}

func composite(s types.AnomalyScore) float64 {
	return math.Max(math.Abs(s.FlowZ), math.Max(math.Abs(s.MaxFlowZ), math.Abs(s.StabilityZ)))
}

// LevelFor classifies a composite score for operators: within 2 sigma is
// normal, 2-3 sigma deserves a look, beyond 3 sigma is an anomaly.
func LevelFor(composite float64) string {
	if composite <= 2 {
		return NO_ANOMALY
	}
	if composite <= 3 {
		return MEDIUM
	}
	return ANOMALY
}
