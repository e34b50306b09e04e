package flow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"irrigation-flow-analyzer/src/types"
)

func TestComputeMetrics(t *testing.T) {
	run := types.ValveRun{Valve: 5, OnTime: t0, OffTime: t0.Add(10 * time.Minute)}
	baseline := sampleSeries(t0.Add(-4*time.Minute), time.Minute, 0.0, 0.0, 0.0)
	inRun := sampleSeries(t0.Add(2*time.Minute), time.Minute, 2.0, 2.1, 2.0)

	m := ComputeMetrics(run, baseline, inRun)

	assert.Equal(t, 5, m.Valve)
	assert.Equal(t, run.OffTime, m.OffTime)
	assert.Equal(t, 0.0, m.BaselineMedian)
	assert.Equal(t, 2.0, m.ValveMedian)
	assert.Equal(t, 2.1, m.ValveMax)
	assert.Equal(t, 2.0, m.NetFlowIncrease)
	assert.Equal(t, 10.0, m.DurationMinutes)
	assert.InDelta(t, 2.0333, m.ValveMean, 0.001)
	assert.False(t, m.StabilityIndeterminate())
	assert.InDelta(t, m.ValveStd/m.ValveMean, m.FlowStability, 1e-12)
}

func TestComputeMetricsStabilitySentinelOnZeroMean(t *testing.T) {
	run := types.ValveRun{Valve: 2, OnTime: t0, OffTime: t0.Add(10 * time.Minute)}
	baseline := sampleSeries(t0.Add(-3*time.Minute), time.Minute, 0.0, 0.0)
	inRun := sampleSeries(t0.Add(2*time.Minute), time.Minute, 0.0, 0.0, 0.0)

	m := ComputeMetrics(run, baseline, inRun)

	assert.True(t, m.StabilityIndeterminate())
	assert.Equal(t, 0.0, m.NetFlowIncrease)
}

func TestComputeMetricsEvenWindowUsesLowerMedian(t *testing.T) {
	run := types.ValveRun{Valve: 1, OnTime: t0, OffTime: t0.Add(10 * time.Minute)}
	baseline := sampleSeries(t0.Add(-3*time.Minute), time.Minute, 0.4, 0.2)
	inRun := sampleSeries(t0.Add(2*time.Minute), time.Minute, 3.0, 1.0, 2.0, 4.0)

	m := ComputeMetrics(run, baseline, inRun)

	assert.Equal(t, 0.2, m.BaselineMedian)
	assert.Equal(t, 2.0, m.ValveMedian)
	assert.Equal(t, 1.8, m.NetFlowIncrease)
}

func TestComputeMetricsDeterministic(t *testing.T) {
	run := types.ValveRun{Valve: 3, OnTime: t0, OffTime: t0.Add(12 * time.Minute)}
	baseline := sampleSeries(t0.Add(-4*time.Minute), time.Minute, 0.3, 0.1, 0.2)
	inRun := sampleSeries(t0.Add(2*time.Minute), time.Minute, 1.9, 2.2, 2.0, 2.1)

	assert.Equal(t, ComputeMetrics(run, baseline, inRun), ComputeMetrics(run, baseline, inRun))
}
