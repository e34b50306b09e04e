package flow

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	log "github.com/sirupsen/logrus"

	"irrigation-flow-analyzer/src/types"
	"irrigation-flow-analyzer/src/utils"
)

// ErrInsufficientData marks a run that cannot be analyzed: an empty
// baseline or in-run window, or a run too short to survive the ramp-up
// skip. Callers skip the run and move on.
var ErrInsufficientData = errors.New("insufficient flow data")

// outlierSigmas bounds the deviation from the window median before a
// sample is treated as a sensor spike.
const outlierSigmas = 3.0

// Source retrieves flow-meter samples for a time range, ordered by
// timestamp.
type Source interface {
	QueryFlow(ctx context.Context, start, end time.Time) ([]types.FlowSample, error)
}

// Extractor pairs a valve run with its baseline window (the minutes just
// before the valve opened) and its in-run window (after the ramp-up
// transient).
type Extractor struct {
	source   Source
	baseline time.Duration
	rampUp   time.Duration
}

func NewExtractor(source Source, baseline, rampUp time.Duration) *Extractor {
	return &Extractor{source: source, baseline: baseline, rampUp: rampUp}
}

// Windows returns the baseline samples and the outlier-filtered in-run
// samples for a run. A failed flow query degrades to
// ErrInsufficientData for this run only.
func (e *Extractor) Windows(ctx context.Context, run types.ValveRun) (baseline, inRun []types.FlowSample, err error) {
	inRunStart := run.OnTime.Add(e.rampUp)
	if !inRunStart.Before(run.OffTime) {
		return nil, nil, fmt.Errorf("%w: valve %d run of %s consumed by ramp-up", ErrInsufficientData, run.Valve, run.Duration())
	}

	baseline, err = e.source.QueryFlow(ctx, run.OnTime.Add(-e.baseline), run.OnTime)
	if err != nil {
		log.Warnf("Flow query for valve %d baseline failed: %v", run.Valve, err)
		return nil, nil, fmt.Errorf("%w: baseline query failed", ErrInsufficientData)
	}
	if len(baseline) == 0 {
		return nil, nil, fmt.Errorf("%w: no baseline samples before valve %d run", ErrInsufficientData, run.Valve)
	}

	inRun, err = e.source.QueryFlow(ctx, inRunStart, run.OffTime)
	if err != nil {
		log.Warnf("Flow query for valve %d run failed: %v", run.Valve, err)
		return nil, nil, fmt.Errorf("%w: in-run query failed", ErrInsufficientData)
	}
	if len(inRun) == 0 {
		return nil, nil, fmt.Errorf("%w: no flow samples during valve %d run", ErrInsufficientData, run.Valve)
	}

	return baseline, rejectOutliers(inRun), nil
}

// rejectOutliers drops samples further than outlierSigmas population
// standard deviations from the window median. Centering on the median
// keeps a single sensor spike from dragging the filter toward itself.
func rejectOutliers(samples []types.FlowSample) []types.FlowSample {
	values := Values(samples)
	median := utils.Median(values)
	std := utils.StandardDeviation(values)

	filtered := make([]types.FlowSample, 0, len(samples))
	for _, s := range samples {
		if math.Abs(s.Value-median) <= outlierSigmas*std {
			filtered = append(filtered, s)
		}
	}
	return filtered
}

// Values extracts the flow rates from a sample window.
func Values(samples []types.FlowSample) []float64 {
	values := make([]float64, len(samples))
	for i, s := range samples {
		values[i] = s.Value
	}
	return values
}
