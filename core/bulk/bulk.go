// Package bulk implements the reservoir's finite-volume cells: each Cell
// owns one MixtureModel instance's scratch (a fluid.FlashOutput), one
// relperm.FlowUnit and one rock.Model, and tracks the primary/secondary
// state a Newton step needs (§3 Bulk).
//
// The per-cell scratchpad-plus-state-array shape mirrors the teacher's
// ele/porous.SolidLiquidGas, which keeps one States[idx] per integration
// point alongside a small set of reusable derivative buffers (Kul, Kug, ...)
// computed afresh every AddToRhs call; here the "integration point" is the
// cell itself and the derivative buffer is Out.DSecDPri.
package bulk

import (
	"math"

	"github.com/reservoirsim/ocpcore/mdl/fluid"
	"github.com/reservoirsim/ocpcore/mdl/relperm"
	"github.com/reservoirsim/ocpcore/mdl/rock"
	"github.com/reservoirsim/ocpcore/ocperr"
)

// flashSkipState is the skip-stability-analysis accelerator's committed
// memory: the phase pattern, composition and (P, T) of the last ACCEPTED
// flash, against which CalFlashType measures trust-region distance (§9).
// It is only ever written by commitFlashSkip (from AcceptStep), never by a
// trial Flash/FlashDeriv call, so a chopped/rejected step can never corrupt
// it — there is nothing to roll back on RejectStep beyond the primary
// unknowns themselves.
type flashSkipState struct {
	valid    bool
	exist    [fluid.MaxPhase]bool
	numPhase int
	zi       []float64
	p, t     float64
	margin   float64
}

// Trust-region tolerances for CalFlashType's ftype=1 (full skip) decision.
// A cell's (P, T, zi) must stay within these of the last accepted flash for
// the accelerator to trust the cached split outright (§9).
const (
	trustDP     = 5.0   // psi
	trustDT     = 2.0   // degF
	trustDZ     = 1e-3  // max abs mole-fraction drift, any component
	trustMargin = 0.05  // minimum |StabilityMargin| to consider "away from a phase boundary"
)

// Cell is one reservoir grid block.
type Cell struct {
	Index    int
	RegionID int

	Vb    float64 // bulk volume, ft3
	Depth float64 // ft, positive down

	Model fluid.Model
	Flow  relperm.FlowUnit
	Rock  rock.Model

	// primary unknowns
	P  float64
	Ni []float64

	// state from the last accepted time step, needed by CalFlashType and by
	// IMPES/FIM's time-derivative terms
	Pn  float64
	Nin []float64

	Out   fluid.FlashOutput
	FType int

	skip flashSkipState

	// DSatNR accumulates |delta-saturation| since the current Newton
	// attempt began. Only method/fim updates it (after each iterate's
	// flashAll); IMPES/AIM leave it at zero, which is what keeps
	// CalFlashType's ftype=2 branch FIM-only as §9 requires.
	DSatNR float64

	Vp    float64 // pore volume at current P
	DVpDp float64
	T     float64 // reservoir temperature, degF, constant per cell
}

// New allocates a Cell and its per-cell flash scratch.
func New(index, regionID int, vb, depth, temperature float64, mm fluid.Model, flow relperm.FlowUnit, rk rock.Model) *Cell {
	c := &Cell{
		Index: index, RegionID: regionID,
		Vb: vb, Depth: depth, T: temperature,
		Model: mm, Flow: flow, Rock: rk,
		Ni: make([]float64, mm.NumCom()), Nin: make([]float64, mm.NumCom()),
	}
	c.Out.Init(mm.NumCom())
	return c
}

// CheckP validates the primary pressure unknown (§3 invariant: P > 0).
func (c *Cell) CheckP() error {
	if c.P <= 0 || math.IsNaN(c.P) {
		return ocperr.Err("bulk: cell %d has invalid pressure %g", c.Index, c.P)
	}
	return nil
}

// CheckNi validates the component-mole unknowns (§3 invariant: Ni >= 0,
// sum(Ni) > 0).
func (c *Cell) CheckNi() error {
	sum := 0.0
	for i, n := range c.Ni {
		if n < 0 || math.IsNaN(n) {
			return ocperr.Err("bulk: cell %d component %d has invalid moles %g", c.Index, i, n)
		}
		sum += n
	}
	if sum <= 0 {
		return ocperr.Err("bulk: cell %d has non-positive total moles", c.Index)
	}
	return nil
}

// CheckVe reports the volume-balance error |Vf - Vp| / Vp, the quantity
// Control.Verrmax bounds (§4.4 IMPES, §4.5 FIM).
func (c *Cell) CheckVe() float64 {
	if c.Vp <= 0 {
		return math.Inf(1)
	}
	return math.Abs(c.Out.Vf-c.Vp) / c.Vp
}

// CalFlashType decides the ftype the next Flash/FlashDeriv call should run
// with, by comparing the cell's current trial (P, T, zi) against the
// committed snapshot from the last accepted step (§4.1, §9):
//
//   - no committed snapshot yet (first flash ever): FlashFull.
//   - FIM-only fast path: the last accepted state already had 3+ phases and
//     this Newton attempt has moved saturations enough (DSatNR) that
//     trusting the cached split outright would be unsafe, but re-testing
//     stability from scratch is unnecessary: FlashSkipStability.
//   - the last accepted split sat near a liquidOnly/vapourOnly boundary
//     (|StabilityMargin| < trustMargin): never skip, FlashFull.
//   - (P, T, zi) drifted outside the trust region: FlashFull.
//   - otherwise: FlashSkipAll.
func (c *Cell) CalFlashType() int {
	if !c.skip.valid {
		return fluid.FlashFull
	}
	if c.skip.numPhase >= 3 && math.Abs(c.DSatNR) >= 1e-4 {
		return fluid.FlashSkipStability
	}
	if math.Abs(c.skip.margin) < trustMargin {
		return fluid.FlashFull
	}
	if math.Abs(c.P-c.skip.p) > trustDP || math.Abs(c.T-c.skip.t) > trustDT {
		return fluid.FlashFull
	}
	nt := 0.0
	for _, n := range c.Ni {
		nt += n
	}
	if nt <= 0 {
		return fluid.FlashFull
	}
	for i, n := range c.Ni {
		if math.Abs(n/nt-c.skip.zi[i]) > trustDZ {
			return fluid.FlashFull
		}
	}
	return fluid.FlashSkipAll
}

// Flash re-flashes the cell at its current (P, Ni), updating Out and the
// pore volume Vp/DVpDp from Rock. FType is (re)computed here rather than
// left for the caller, so CalFlashType always runs in lockstep with the
// flash it gates.
func (c *Cell) Flash() error {
	c.FType = c.CalFlashType()
	if err := c.Model.FlashByMoles(c.P, c.T, c.Ni, c.FType, &c.Out); err != nil {
		return err
	}
	c.Vp = c.Rock.PoreVolume(c.Vb, c.P)
	c.DVpDp = c.Rock.DPoreVolumeDP(c.Vb)
	return nil
}

// FlashDeriv is Flash plus the dSec_dPri Jacobian block FIM needs.
func (c *Cell) FlashDeriv() error {
	c.FType = c.CalFlashType()
	if err := c.Model.FlashDeriv(c.P, c.T, c.Ni, c.FType, &c.Out); err != nil {
		return err
	}
	c.Vp = c.Rock.PoreVolume(c.Vb, c.P)
	c.DVpDp = c.Rock.DPoreVolumeDP(c.Vb)
	return nil
}

// RelPerm evaluates the cell's flow functions at its current saturations.
func (c *Cell) RelPerm() (relperm.Result, error) {
	return c.Flow.Eval(c.Out.S[fluid.PhaseWater], c.Out.S[fluid.PhaseGas])
}

// AcceptStep commits the current (P, Ni) as the new "last accepted step"
// state, the bookkeeping IMPES/FIM perform once a Newton/transport update
// converges. It also commits the skip-stability accelerator's snapshot and
// clears DSatNR, so the next step's CalFlashType measures trust-region
// distance from this state, not from whatever chopped trial preceded it.
func (c *Cell) AcceptStep() {
	c.Pn = c.P
	copy(c.Nin, c.Ni)
	c.commitFlashSkip()
	c.DSatNR = 0
}

// RejectStep restores (P, Ni) from the last accepted step, used when a time
// step is chopped (§4.3 Control). The skip-stability snapshot needs no
// restoring: commitFlashSkip only ever runs from AcceptStep, so it already
// reflects the last accepted state and was never touched by the rejected
// trial. DSatNR is transient Newton-attempt state and is cleared here too.
func (c *Cell) RejectStep() {
	c.P = c.Pn
	copy(c.Ni, c.Nin)
	c.DSatNR = 0
}

// commitFlashSkip refreshes the skip-stability accelerator's committed
// snapshot from the just-accepted Out/Nin.
func (c *Cell) commitFlashSkip() {
	if c.skip.zi == nil {
		c.skip.zi = make([]float64, len(c.Nin))
	}
	c.skip.valid = true
	c.skip.exist = c.Out.PhaseExist
	c.skip.numPhase = c.Out.NumPhase
	c.skip.p = c.Pn
	c.skip.t = c.T
	c.skip.margin = c.Out.StabilityMargin
	nt := 0.0
	for _, n := range c.Nin {
		nt += n
	}
	if nt > 0 {
		for i, n := range c.Nin {
			c.skip.zi[i] = n / nt
		}
	}
}
