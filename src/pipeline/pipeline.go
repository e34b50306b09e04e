package pipeline

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"irrigation-flow-analyzer/src/anomaly"
	"irrigation-flow-analyzer/src/config"
	"irrigation-flow-analyzer/src/flow"
	"irrigation-flow-analyzer/src/types"
	"irrigation-flow-analyzer/src/valves"
)

// Series names for the derived points written to the sink.
const (
	SeriesValveFlow     = "valve_flow"
	SeriesRunMetrics    = "valve_run_metrics"
	SeriesAnomalyScores = "valve_anomaly_scores"
)

// EventSource retrieves raw valve on/off samples, ordered by timestamp.
type EventSource interface {
	QueryValveEvents(ctx context.Context, start, end time.Time) ([]types.ValveStateSample, error)
}

// MetricsStore holds the RunMetrics history that decouples the
// correlation stage from the scoring stage.
type MetricsStore interface {
	PutRunMetrics(ctx context.Context, m types.RunMetrics) error
	QueryValveStats(ctx context.Context, since time.Time) (map[int]types.ValveWindowStats, error)
}

// Sink receives derived points, one batched Write per series group.
type Sink interface {
	Write(ctx context.Context, records []types.Record) error
}

// Pipeline is one batch reconciliation over the lookback window. All
// collaborators are injected; the pipeline itself never opens a
// connection.
type Pipeline struct {
	cfg     config.Config
	events  EventSource
	flow    flow.Source
	metrics MetricsStore
	sink    Sink
}

func New(cfg config.Config, events EventSource, flowSource flow.Source, metrics MetricsStore, sink Sink) *Pipeline {
	return &Pipeline{cfg: cfg, events: events, flow: flowSource, metrics: metrics, sink: sink}
}

// Run executes the correlation stage: reconstruct runs from the event
// stream, derive per-run flow metrics, and emit the accepted results. A
// malformed or data-starved run is skipped; a failed top-level event
// query aborts the whole invocation with nothing written.
func (p *Pipeline) Run(ctx context.Context, now time.Time) error {
	start := now.Add(-p.cfg.Lookback)

	events, err := p.events.QueryValveEvents(ctx, start, now)
	if err != nil {
		log.Warnf("Valve event query failed, aborting invocation: %v", err)
		return fmt.Errorf("valve event query: %w", err)
	}
	if len(events) == 0 {
		log.Info("No valve events in lookback window, nothing to do")
		return nil
	}

	reconstructor := valves.NewReconstructor(p.cfg.MinRuntime)
	runs := reconstructor.Reconstruct(events)
	if n := reconstructor.SequenceErrors(); n > 0 {
		log.Warnf("Encountered %d out-of-sequence valve events", n)
	}

	extractor := flow.NewExtractor(p.flow, p.cfg.Baseline, p.cfg.RampUp)

	var flowPoints []types.Record
	var metricRecords []types.Record
	accepted := 0

	for _, run := range runs {
		baseline, inRun, err := extractor.Windows(ctx, run)
		if err != nil {
			log.Debugf("Skipping valve %d run ending %s: %v", run.Valve, run.OffTime.Format(time.RFC3339), err)
			continue
		}

		m := flow.ComputeMetrics(run, baseline, inRun)

		// A run with no detectable flow increase is a malfunction
		// signal, not a data point.
		if m.NetFlowIncrease <= p.cfg.FlowIncreaseThreshold {
			log.Warnf("Valve %d run ending %s shows net flow increase %.3f below threshold %.3f, possible malfunction or background usage",
				run.Valve, run.OffTime.Format(time.RFC3339), m.NetFlowIncrease, p.cfg.FlowIncreaseThreshold)
			continue
		}

		flowPoints = append(flowPoints, flowRecords(run, inRun)...)
		metricRecords = append(metricRecords, metricsRecord(m))

		if err := p.metrics.PutRunMetrics(ctx, m); err != nil {
			log.Warnf("Failed to store metrics for valve %d run: %v", run.Valve, err)
		}
		accepted++
	}

	log.Infof("Reconstructed %d runs, accepted %d", len(runs), accepted)

	if len(flowPoints) > 0 {
		if err := p.sink.Write(ctx, flowPoints); err != nil {
			return fmt.Errorf("writing flow points: %w", err)
		}
	}
	if len(metricRecords) > 0 {
		if err := p.sink.Write(ctx, metricRecords); err != nil {
			return fmt.Errorf("writing run metrics: %w", err)
		}
	}

	return nil
}

// ScoreAnomalies executes the scoring stage over the stored RunMetrics
// history, one pass per trailing window. A failed window query skips
// that window only.
func (p *Pipeline) ScoreAnomalies(ctx context.Context, now time.Time) error {
	var records []types.Record

	for _, days := range p.cfg.AnomalyWindowDays {
		window := fmt.Sprintf("%dd", days)
		since := now.AddDate(0, 0, -days)

		stats, err := p.metrics.QueryValveStats(ctx, since)
		if err != nil {
			log.Warnf("Valve stats query for %s window failed: %v", window, err)
			continue
		}
		if len(stats) == 0 {
			log.Debugf("No run history in %s window", window)
			continue
		}

		for _, score := range anomaly.Score(window, stats) {
			if score.Level != anomaly.NO_ANOMALY {
				log.Warnf("Valve %d scored %s over %s window (composite %.2f)",
					score.Valve, score.Level, window, score.Composite)
			}
			records = append(records, scoreRecord(score, now))
		}
	}

	if len(records) == 0 {
		return nil
	}
	if err := p.sink.Write(ctx, records); err != nil {
		return fmt.Errorf("writing anomaly scores: %w", err)
	}
	return nil
}

// ValveTag formats a valve id the way every derived series tags it.
func ValveTag(valve int) string {
	return fmt.Sprintf("%02d", valve)
}

func flowRecords(run types.ValveRun, samples []types.FlowSample) []types.Record {
	records := make([]types.Record, 0, len(samples))
	for _, s := range samples {
		records = append(records, types.Record{
			Series:    SeriesValveFlow,
			Timestamp: s.Timestamp,
			Fields:    map[string]float64{"flow_rate": s.Value},
			Tags:      map[string]string{"valve": ValveTag(run.Valve)},
		})
	}
	return records
}

func metricsRecord(m types.RunMetrics) types.Record {
	fields := map[string]float64{
		"baseline_median":   m.BaselineMedian,
		"baseline_mean":     m.BaselineMean,
		"baseline_std":      m.BaselineStd,
		"valve_median":      m.ValveMedian,
		"valve_mean":        m.ValveMean,
		"valve_max":         m.ValveMax,
		"valve_std":         m.ValveStd,
		"net_flow_increase": m.NetFlowIncrease,
		"duration_minutes":  m.DurationMinutes,
	}
	if !m.StabilityIndeterminate() {
		fields["flow_stability"] = m.FlowStability
	}

	return types.Record{
		Series:    SeriesRunMetrics,
		Timestamp: m.OffTime,
		Fields:    fields,
		Tags:      map[string]string{"valve": ValveTag(m.Valve)},
	}
}

func scoreRecord(s types.AnomalyScore, now time.Time) types.Record {
	return types.Record{
		Series:    SeriesAnomalyScores,
		Timestamp: now,
		Fields: map[string]float64{
			"flow_z_score":      s.FlowZ,
			"max_flow_z_score":  s.MaxFlowZ,
			"stability_z_score": s.StabilityZ,
			"composite_score":   s.Composite,
		},
		Tags: map[string]string{
			"valve":  ValveTag(s.Valve),
			"window": s.Window,
			"level":  s.Level,
		},
	}
}
