package dynamo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func item(valve int, flowIncrease, maxFlow float64, stability *float64) runMetricsItem {
	return runMetricsItem{
		Valve:           valve,
		NetFlowIncrease: flowIncrease,
		ValveMax:        maxFlow,
		FlowStability:   stability,
	}
}

func ptr(v float64) *float64 { return &v }

func TestReduceGroupsByValve(t *testing.T) {
	stats := reduce([]runMetricsItem{
		item(1, 2.0, 3.0, ptr(0.04)),
		item(1, 2.2, 3.2, ptr(0.06)),
		item(2, 1.0, 1.5, ptr(0.10)),
	})

	require.Len(t, stats, 2)
	assert.Equal(t, 2, stats[1].Runs)
	assert.InDelta(t, 2.1, stats[1].MeanFlowIncrease, 1e-9)
	assert.InDelta(t, 3.1, stats[1].MeanMaxFlow, 1e-9)
	assert.InDelta(t, 0.05, stats[1].MeanStability, 1e-9)
	assert.Equal(t, 1, stats[2].Runs)
}

func TestReduceSkipsMissingStability(t *testing.T) {
	stats := reduce([]runMetricsItem{
		item(1, 2.0, 3.0, nil),
		item(1, 2.0, 3.0, ptr(0.08)),
		item(2, 1.0, 1.5, nil),
	})

	// Valve 1 averages over the single determinate run; valve 2 has
	// none, so its stability stays indeterminate.
	assert.InDelta(t, 0.08, stats[1].MeanStability, 1e-9)
	assert.True(t, math.IsNaN(stats[2].MeanStability))
}

func TestReduceEmptyHistory(t *testing.T) {
	assert.Empty(t, reduce(nil))
}
