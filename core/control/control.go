// Package control implements the time-step policy (§4.7 Control):
// per-critical-time TIME/PREDICT/NR parameter windows, the dt-chop/grow
// rule CalNextTstepIMPES/FIM use after each accepted step, and the
// iteration bookkeeping the driver loop reports through.
//
// The per-critical-time windowing and the IMPES/FIM next-dt formulas are
// grounded directly on OCPControl.cpp: ControlTime/ControlPreTime/ControlNR
// are read off config.Tuning, ApplyStage picks the active window the way
// OCPControl::ApplyControl(i) does, and CalNextTstepIMPES/FIM reproduce the
// c1..c4 clamp-and-blend exactly.
package control

import (
	"math"

	"github.com/reservoirsim/ocpcore/config"
	"github.com/reservoirsim/ocpcore/core/bulk"
	"github.com/reservoirsim/ocpcore/ocperr"
)

// Time is the TIME record: initial/min/max step size and the chop/grow
// factors used when scaling dt.
type Time struct {
	TimeInit    float64
	TimeMax     float64
	TimeMin     float64
	MaxIncreFac float64
	MinChopFac  float64
	CutFacNR    float64
}

// PreTime is the PREDICT record: target per-step change limits the IMPES
// predictor's dt-scaling formula blends against.
type PreTime struct {
	DPlim float64
	DSlim float64
	DNlim float64
	DVlim float64
}

// NR is the NR record: Newton iteration limits and tolerances.
type NR struct {
	MaxNRIter int
	NRtol     float64
	NRdPmax   float64
	NRdSmax   float64
	NRdPmin   float64
	NRdSmin   float64
	Verrmax   float64
}

// Control drives the time-stepping schedule: one (Time, PreTime, NR) window
// per critical-time segment, selected by ApplyStage, plus the running
// current_time/last_dt/iteration counters OCPControl.cpp keeps on the
// driver object itself.
type Control struct {
	criticalTime []float64
	timeSet      []Time
	preTimeSet   []PreTime
	nrSet        []NR

	Time    Time
	PreTime PreTime
	NR      NR

	CurrentTime float64
	CurrentDt   float64
	LastDt      float64
	EndTime     float64

	NumTstep    int
	IterNR      int
	IterNRTotal int
	IterLS      int
	IterLSTotal int
	TimeLS      float64
}

// New builds a Control schedule from the decoded TUNING records, expanding
// each record's Day to the critical-time index it applies from through the
// next record's Day (or the end of the run), mirroring OCPControl::InputParam's
// ctrlCriticalTime expansion.
func New(criticalTime []float64, tunings []config.Tuning) (*Control, error) {
	if len(criticalTime) < 2 {
		return nil, ocperr.Err("control: at least two critical times are required (start and end)")
	}
	if len(tunings) == 0 {
		return nil, ocperr.Err("control: at least one TUNING record is required")
	}
	n := len(criticalTime) - 1
	c := &Control{
		criticalTime: append([]float64(nil), criticalTime...),
		timeSet:      make([]Time, n),
		preTimeSet:   make([]PreTime, n),
		nrSet:        make([]NR, n),
	}

	bounds := make([]int, len(tunings)+1)
	for i, t := range tunings {
		bounds[i] = t.Day
	}
	bounds[len(tunings)] = n
	for i, t := range tunings {
		lo, hi := bounds[i], bounds[i+1]
		if lo < 0 || hi > n || lo > hi {
			return nil, ocperr.Err("control: TUNING record %d has an out-of-range day window [%d,%d)", i, lo, hi)
		}
		tm := Time{t.TimeInit, t.TimeMax, t.TimeMin, t.MaxIncreFac, t.MinChopFac, t.CutFacNR}
		pt := PreTime{t.DPlim, t.DSlim, t.DNlim, t.DVlim}
		nr := NR{t.MaxNRIter, t.NRtol, t.NRdPmax, t.NRdSmax, t.NRdPmin, t.NRdSmin, t.Verrmax}
		for d := lo; d < hi; d++ {
			c.timeSet[d] = tm
			c.preTimeSet[d] = pt
			c.nrSet[d] = nr
		}
	}
	return c, nil
}

// ApplyStage activates the i'th critical-time window's TIME/PREDICT/NR
// records and sets EndTime to the window's upper critical time
// (OCPControl::ApplyControl).
func (c *Control) ApplyStage(i int) {
	c.Time = c.timeSet[i]
	c.PreTime = c.preTimeSet[i]
	c.NR = c.nrSet[i]
	c.EndTime = c.criticalTime[i+1]
}

// InitTime sets CurrentDt to the smaller of the window's initial step size
// and the time remaining until EndTime (OCPControl::InitTime).
func (c *Control) InitTime(i int) error {
	dt := c.criticalTime[i+1] - c.CurrentTime
	if dt < 0 {
		return ocperr.Err("control: negative time step size at stage %d (current_time=%g, critical_time=%g)", i, c.CurrentTime, c.criticalTime[i+1])
	}
	c.CurrentDt = math.Min(dt, c.Time.TimeInit)
	return nil
}

const tiny = 1e-10

// clampDt applies the common chop/grow-then-bounds sequence every
// CalNextTstep* variant ends with: blend factor clamped to
// [MinChopFac, MaxIncreFac], resulting dt clamped to [TimeMin, TimeMax],
// then trimmed to not overshoot EndTime.
func (c *Control) clampDt(factor float64) {
	factor = math.Max(c.Time.MinChopFac, factor)
	factor = math.Min(c.Time.MaxIncreFac, factor)
	c.CurrentDt *= factor
	if c.CurrentDt > c.Time.TimeMax {
		c.CurrentDt = c.Time.TimeMax
	}
	if c.CurrentDt < c.Time.TimeMin {
		c.CurrentDt = c.Time.TimeMin
	}
	if remaining := c.EndTime - c.CurrentTime; c.CurrentDt > remaining {
		c.CurrentDt = remaining
	}
}

// CalNextTstepIMPES scales CurrentDt for the next step from the pressure,
// saturation, mole and volume-error changes observed over the step just
// accepted (OCPControl::CalNextTstepIMPEC). lastS holds each cell's phase
// saturations snapshotted right after the previous AcceptStep; pass nil to
// skip the saturation-change term (e.g. before any step has been accepted).
func (c *Control) CalNextTstepIMPES(cells []*bulk.Cell, lastS [][3]float64) {
	c.LastDt = c.CurrentDt
	c.CurrentTime += c.CurrentDt

	c1, c2, c3, c4 := 10.0, 10.0, 10.0, 10.0

	if dPmax := bulk.MaxDeltaP(cells); dPmax > tiny {
		c1 = c.PreTime.DPlim / dPmax
	}
	if lastS != nil {
		if dSmax := bulk.MaxDeltaS(cells, lastS); dSmax > tiny {
			c2 = c.PreTime.DSlim / dSmax
		}
	}
	if dNmax := bulk.MaxDeltaN(cells); dNmax > tiny {
		c3 = c.PreTime.DNlim / dNmax
	}
	if dVmax := bulk.MaxDeltaV(cells); dVmax > tiny {
		c4 = c.PreTime.DVlim / dVmax
	}

	factor := math.Min(math.Min(c1, c2), math.Min(c3, c4))
	c.clampDt(factor)
}

// CalNextTstepFIM scales CurrentDt the same way as CalNextTstepIMPES's
// pressure/saturation terms, but drops the mole/volume terms (FIM conserves
// mass exactly within Newton tolerance each step) and instead grows or
// shrinks the step directly from how many Newton iterations the last step
// needed (OCPControl::CalNextTstepFIM). lastS is the same pre-step
// saturation snapshot CalNextTstepIMPES takes.
func (c *Control) CalNextTstepFIM(cells []*bulk.Cell, lastS [][3]float64) {
	c.LastDt = c.CurrentDt
	c.CurrentTime += c.CurrentDt

	c1, c2 := 10.0, 10.0
	if dPmax := bulk.MaxDeltaP(cells); dPmax > tiny {
		c1 = c.PreTime.DPlim / dPmax
	}
	if lastS != nil {
		if dSmax := bulk.MaxDeltaS(cells, lastS); dSmax > tiny {
			c2 = c.PreTime.DSlim / dSmax
		}
	}

	c3 := 1.5
	switch {
	case c.IterNR < 3:
		c3 = 2
	case c.IterNR > 8:
		c3 = 0.5
	}

	factor := math.Min(math.Min(c1, c2), c3)
	c.clampDt(factor)
}

// UpdateIters advances the step counter and folds this step's Newton
// iteration count into the running total (OCPControl::UpdateIters).
func (c *Control) UpdateIters() {
	c.NumTstep++
	c.IterNRTotal += c.IterNR
}

// UpdateIterLS folds a linear-solve iteration count and wall time into the
// running totals, the bookkeeping method/fim and method/impes call after
// every linear solve.
func (c *Control) UpdateIterLS(iters int, seconds float64) {
	c.IterLS += iters
	c.IterLSTotal += iters
	c.TimeLS += seconds
}
