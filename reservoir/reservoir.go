// Package reservoir wires Bulk, Connection and Well by index into one
// aggregate, the role spec.md assigns Reservoir: "owns Grid, Bulk,
// WellGroup, Connection; these hold only indices across each other" (§
// Cyclic references). Grid geometry and connectivity construction are an
// out-of-scope external collaborator (§1); Reservoir consumes already-built
// Cells/Connections/Wells rather than building them from DX/DY/DZ/PERM.
package reservoir

import (
	"math"

	"github.com/reservoirsim/ocpcore/core/bulk"
	"github.com/reservoirsim/ocpcore/core/connection"
	"github.com/reservoirsim/ocpcore/core/control"
	"github.com/reservoirsim/ocpcore/core/well"
	"github.com/reservoirsim/ocpcore/diagnostics"
	"github.com/reservoirsim/ocpcore/mdl/fluid"
	"github.com/reservoirsim/ocpcore/ocperr"
)

// FieldRates is the field-wide rate/cumulative report CalIPRT accumulates,
// summed across every well each step (WellGroup::CalIPRT).
type FieldRates struct {
	FOPR, FGPR, FWPR float64 // production rates
	FGIR, FWIR       float64 // injection rates
	FOPT, FGPt, FWPT float64 // cumulative production
	FGIT, FWIT       float64 // cumulative injection
}

// Reservoir is the top-level aggregate: every Cell, Connection and Well the
// current run holds, plus the shared Control schedule and Logger.
type Reservoir struct {
	Cells []*bulk.Cell
	Conns []*connection.Connection
	Wells []*well.Well

	Ctrl *control.Control
	Log  *diagnostics.Logger

	Field FieldRates
}

// New validates index ranges and assembles a Reservoir from already-built
// components (the external grid-construction collaborator's output).
func New(cells []*bulk.Cell, conns []*connection.Connection, wells []*well.Well, ctrl *control.Control, log *diagnostics.Logger) (*Reservoir, error) {
	for _, w := range wells {
		for _, p := range w.Perfs {
			if p.CellIndex < 0 || p.CellIndex >= len(cells) {
				return nil, ocperr.Err("reservoir: well %q perforation references out-of-range cell %d", w.Name, p.CellIndex)
			}
		}
	}
	return &Reservoir{Cells: cells, Conns: conns, Wells: wells, Ctrl: ctrl, Log: log}, nil
}

// AcceptAll commits the current (P, Ni) across every cell as the new
// last-accepted-step state, the bookkeeping a converged step performs
// before advancing.
func (r *Reservoir) AcceptAll() {
	for _, c := range r.Cells {
		c.AcceptStep()
	}
}

// RejectAll restores every cell to its last-accepted-step state, used when
// a step is chopped and retried at a smaller dt.
func (r *Reservoir) RejectAll() {
	for _, c := range r.Cells {
		c.RejectStep()
	}
}

// CheckAll runs the per-cell pressure/moles invariant checks over every
// cell, returning the first violation found.
func (r *Reservoir) CheckAll() error {
	for _, c := range r.Cells {
		if err := c.CheckP(); err != nil {
			return err
		}
		if err := c.CheckNi(); err != nil {
			return err
		}
	}
	return nil
}

// MaxCFL returns the largest Courant number over every connection and well
// perforation, the quantity IMPES's explicit saturation update bounds at 1
// (§4.4).
func (r *Reservoir) MaxCFL(dt float64) float64 {
	var maxCFL float64
	for _, conn := range r.Conns {
		krI, err := conn.CellI.RelPerm()
		if err != nil {
			continue
		}
		krJ, err := conn.CellJ.RelPerm()
		if err != nil {
			continue
		}
		for phase := 0; phase < fluid.MaxPhase; phase++ {
			if c := conn.CFL(phase, dt, krI, krJ); c > maxCFL {
				maxCFL = c
			}
		}
	}
	for _, w := range r.Wells {
		if c := w.CalCFL(r.Cells, dt); c > maxCFL {
			maxCFL = c
		}
	}
	return maxCFL
}

// CheckWells runs CheckP over every well, returning the worst outcome seen
// (CheckNegativeP takes priority over CheckModeSwitch, matching
// WellGroup::CheckP's aggregation of 1 over 2 across wells).
func (r *Reservoir) CheckWells() well.CheckResult {
	worst := well.CheckOK
	for _, w := range r.Wells {
		switch w.CheckP(r.Cells) {
		case well.CheckNegativeP:
			return well.CheckNegativeP
		case well.CheckModeSwitch:
			worst = well.CheckModeSwitch
		}
	}
	return worst
}

// CalIPRT refreshes every well's instantaneous rates and folds them, scaled
// by dt, into both the per-well and field cumulative totals
// (WellGroup::CalIPRT).
func (r *Reservoir) CalIPRT(dt float64) {
	r.Field.FOPR, r.Field.FGPR, r.Field.FWPR = 0, 0, 0
	r.Field.FGIR, r.Field.FWIR = 0, 0

	for _, w := range r.Wells {
		numCom := 0
		if len(w.Perfs) > 0 {
			numCom = len(w.Perfs[0].Qi)
		}
		if numCom == 0 {
			continue
		}
		w.CalRates(numCom)

		if w.Injector {
			switch w.Fluid {
			case well.FluidGas:
				r.Field.FGIR += w.Rates.Gas
				w.CumGas += w.Rates.Gas * dt
				r.Field.FGIT += w.Rates.Gas * dt
			default: // water or oil injector: only the water rate is added; FieldRates has no oil-injection total
				r.Field.FWIR += w.Rates.Water
				w.CumWater += w.Rates.Water * dt
				r.Field.FWIT += w.Rates.Water * dt
			}
			w.CumInj += (w.Rates.Oil + w.Rates.Gas + w.Rates.Water) * dt
			continue
		}

		r.Field.FOPR += w.Rates.Oil
		r.Field.FGPR += w.Rates.Gas
		r.Field.FWPR += w.Rates.Water
		w.CumOil += w.Rates.Oil * dt
		w.CumGas += w.Rates.Gas * dt
		w.CumWater += w.Rates.Water * dt
		r.Field.FOPT += w.Rates.Oil * dt
		r.Field.FGPt += w.Rates.Gas * dt
		r.Field.FWPT += w.Rates.Water * dt
	}
}

// FieldPoreVolume returns the sum of every cell's current pore volume, used
// by SummaryWriter to pore-volume-weight its FPR column.
func (r *Reservoir) FieldPoreVolume() float64 {
	var sum float64
	for _, c := range r.Cells {
		sum += c.Vp
	}
	return sum
}

// FieldVolumeError returns the largest per-cell volume-balance error across
// the reservoir (the same quantity CalNextTstepIMPES's dVmax term reads).
func (r *Reservoir) FieldVolumeError() float64 {
	var maxErr float64
	for _, c := range r.Cells {
		if v := c.CheckVe(); !math.IsInf(v, 1) && v > maxErr {
			maxErr = v
		}
	}
	return maxErr
}
