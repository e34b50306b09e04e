package types

import (
	"math"
	"time"
)

// ValveStateSample is one raw sample from the sprinkler controller.
// A positive Valve means the valve with that id opened; zero or negative
// means the currently open valve closed (the id carried by a closing
// sample is not authoritative).
type ValveStateSample struct {
	Timestamp time.Time
	Valve     int
}

// FlowSample is one reading from the inline flow meter.
type FlowSample struct {
	Timestamp time.Time
	Value     float64
}

// ValveRun is one complete on->off interval for a valve.
type ValveRun struct {
	Valve   int
	OnTime  time.Time
	OffTime time.Time
}

func (r ValveRun) Duration() time.Duration {
	return r.OffTime.Sub(r.OnTime)
}

// RunMetrics summarizes the flow behavior of one accepted ValveRun.
// FlowStability is NaN when the in-run mean is zero, since the
// coefficient of variation is meaningless there.
type RunMetrics struct {
	Valve           int
	OffTime         time.Time
	BaselineMedian  float64
	BaselineMean    float64
	BaselineStd     float64
	ValveMedian     float64
	ValveMean       float64
	ValveMax        float64
	ValveStd        float64
	NetFlowIncrease float64
	FlowStability   float64
	DurationMinutes float64
}

// StabilityIndeterminate reports whether FlowStability carries the NaN
// sentinel instead of a real coefficient of variation.
func (m RunMetrics) StabilityIndeterminate() bool {
	return math.IsNaN(m.FlowStability)
}

// ValveWindowStats is the per-valve reduction of RunMetrics history over
// one trailing window. MeanStability is NaN when no run in the window
// had a determinate stability.
type ValveWindowStats struct {
	Runs             int
	MeanFlowIncrease float64
	MeanMaxFlow      float64
	MeanStability    float64
}

// AnomalyScore is one population-relative scoring of a valve for one
// trailing window.
type AnomalyScore struct {
	Valve      int
	Window     string
	FlowZ      float64
	MaxFlowZ   float64
	StabilityZ float64
	Composite  float64
	Level      string
}

// Record is one append-only point for the output store.
type Record struct {
	Series    string
	Timestamp time.Time
	Fields    map[string]float64
	Tags      map[string]string
}
