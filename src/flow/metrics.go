package flow

import (
	"math"

	"irrigation-flow-analyzer/src/types"
	"irrigation-flow-analyzer/src/utils"
)

// ComputeMetrics reduces the baseline and in-run windows of a run into
// its RunMetrics. Pure: identical inputs always produce identical
// output.
//
// Medians are lower medians (see utils.Median) and standard deviations
// are population standard deviations, applied the same way to both
// windows. Net flow increase is the median-to-median delta, which keeps
// a noisy baseline or a brief spike from masking the valve's real
// contribution.
func ComputeMetrics(run types.ValveRun, baseline, inRun []types.FlowSample) types.RunMetrics {
	baselineValues := Values(baseline)
	valveValues := Values(inRun)

	baselineMedian := utils.Median(baselineValues)
	valveMedian := utils.Median(valveValues)
	valveMean := utils.Average(valveValues)
	valveStd := utils.StandardDeviation(valveValues)

	stability := math.NaN()
	if valveMean != 0 {
		stability = valveStd / valveMean
	}

	return types.RunMetrics{
		Valve:           run.Valve,
		OffTime:         run.OffTime,
		BaselineMedian:  baselineMedian,
		BaselineMean:    utils.Average(baselineValues),
		BaselineStd:     utils.StandardDeviation(baselineValues),
		ValveMedian:     valveMedian,
		ValveMean:       valveMean,
		ValveMax:        utils.Max(valveValues),
		ValveStd:        valveStd,
		NetFlowIncrease: valveMedian - baselineMedian,
		FlowStability:   stability,
		DurationMinutes: run.Duration().Minutes(),
	}
}
