package valves

import (
	"time"

	log "github.com/sirupsen/logrus"

	"irrigation-flow-analyzer/src/types"
)

// Expected watering program window. Runs outside it are still emitted,
// just flagged for the operator.
const (
	scheduleStartHour = 3
	scheduleEndHour   = 18
	scheduleMinRun    = 6 * time.Minute
	scheduleMaxRun    = 25 * time.Minute
)

type state int

const (
	stateIdle state = iota
	stateRunOpen
)

// Reconstructor rebuilds discrete valve runs from the raw on/off sample
// stream. The controller guarantees at most one open valve at a time, so
// the machine holds a single open-run slot.
type Reconstructor struct {
	minRuntime time.Duration

	state  state
	valve  int
	onTime time.Time

	sequenceErrors int
}

func NewReconstructor(minRuntime time.Duration) *Reconstructor {
	return &Reconstructor{minRuntime: minRuntime}
}

// Reconstruct consumes a time-ordered sample window and returns the
// completed runs in order. A run still open at the end of the window is
// incomplete and dropped.
func (r *Reconstructor) Reconstruct(samples []types.ValveStateSample) []types.ValveRun {
	var runs []types.ValveRun

	for _, s := range samples {
		if s.Valve > 0 {
			r.open(s)
			continue
		}

		if run := r.close(s); run != nil {
			runs = append(runs, *run)
		}
	}

	return runs
}

// SequenceErrors returns how many out-of-sequence transitions were seen.
func (r *Reconstructor) SequenceErrors() int {
	return r.sequenceErrors
}

func (r *Reconstructor) open(s types.ValveStateSample) {
	if r.state == stateRunOpen {
		// Two "on" events without a close between them. Last write
		// wins: the newer sample overwrites the open slot.
		r.sequenceErrors++
		log.Warnf("Valve %d turned on while valve %d still open at %s, dropping the earlier run",
			s.Valve, r.valve, s.Timestamp.Format(time.RFC3339))
	}

	r.state = stateRunOpen
	r.valve = s.Valve
	r.onTime = s.Timestamp
}

func (r *Reconstructor) close(s types.ValveStateSample) *types.ValveRun {
	if r.state == stateIdle {
		r.sequenceErrors++
		log.Warnf("Valve off event at %s with no valve open", s.Timestamp.Format(time.RFC3339))
		return nil
	}

	run := types.ValveRun{
		Valve:   r.valve,
		OnTime:  r.onTime,
		OffTime: s.Timestamp,
	}
	r.state = stateIdle

	if run.Duration() < r.minRuntime {
		log.Debugf("Dropping valve %d run of %s, below minimum runtime", run.Valve, run.Duration())
		return nil
	}

	warnOffSchedule(run)
	return &run
}

func warnOffSchedule(run types.ValveRun) {
	hour := run.OnTime.Hour()
	if hour < scheduleStartHour || hour >= scheduleEndHour {
		log.Warnf("Valve %d run started at %02d:00 hour, outside the %02d:00-%02d:00 program window",
			run.Valve, hour, scheduleStartHour, scheduleEndHour)
	}

	if d := run.Duration(); d < scheduleMinRun || d > scheduleMaxRun {
		log.Warnf("Valve %d ran for %s, outside the expected %s-%s range",
			run.Valve, d, scheduleMinRun, scheduleMaxRun)
	}
}
