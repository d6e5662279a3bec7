// Package well implements the Well/Perforation model: mode-switching rate
// vs BHP control, per-perforation connection-factor transmissibility and
// gravity head, and the mass-conserving completion-to-cell flux (§3 Well).
//
// The field layout and the Location/Depth/Trans/WI/Xi/qi_lbmol split follow
// the original Perforation record directly (one struct per completion,
// State toggled closed on crossflow); CheckP's three-way outcome and
// CalTrans/CaldG/CalFlux's per-perforation loop follow WellGroup's driving
// loop, generalised from one hardcoded grid to an index into core/bulk.
package well

import (
	"math"

	"github.com/reservoirsim/ocpcore/core/bulk"
	"github.com/reservoirsim/ocpcore/mdl/fluid"
	"github.com/reservoirsim/ocpcore/mdl/relperm"
	"github.com/reservoirsim/ocpcore/ocperr"
)

// Mode is the well's active control.
type Mode int

const (
	ModeRate Mode = iota
	ModeBHP
)

// FluidType distinguishes an injector's single-phase stream from a
// producer, which draws every mobile phase.
type FluidType int

const (
	FluidWater FluidType = iota
	FluidGas
	FluidOil
)

// CheckResult is CheckP's three-way outcome (§ supplemented: a 0/1/2 flag
// in the original, here named instead of numbered).
type CheckResult int

const (
	CheckOK             CheckResult = iota
	CheckNegativeP                  // cut the time step and resolve
	CheckModeSwitch                 // switched to BHP control or closed a crossflowing perforation; resolve at this step
)

// Perforation is one completion linking the well to a Bulk cell.
type Perforation struct {
	State      bool
	CellIndex  int
	Depth      float64
	WI         float64   // connection factor (geometric part of CalTrans)
	Multiplier float64
	Trans      float64   // WI * Multiplier, set by CalTrans
	P          float64   // flowing pressure at the perforation
	Qi         []float64 // per-component molar rate, +: well->cell (injection), -: cell->well (production)
	Qt         float64   // total reservoir-volume rate

	injectionXi float64 // injected stream's molar density, set by SetInjectionXi
}

// Well is one well: a stack of Perforations sharing one surface control.
type Well struct {
	Name     string
	Injector bool
	Fluid    FluidType
	Mode     Mode
	RateTarg float64 // target surface rate (STB/day or MSCF/day, injector/producer dependent)
	BHPLimit float64 // max BHP for an injector, min BHP for a producer
	RefDepth float64

	BHP   float64
	Perfs []Perforation

	// ProdWeight caches each component's share of this well's total molar
	// rate, refreshed by CalProdWeight only on FinishNR's retry path rather
	// than every Newton iteration, so a BHP-controlled well's reported
	// surface split stays stable across a converging Newton sequence
	// (WellGroup::CalProdWeight).
	ProdWeight []float64

	// instantaneous surface rates, refreshed by CalRates after CalFlux
	Rates SurfaceRates

	// cumulative production/injection, field units (CalIPRT's _IT/_PT accumulators)
	CumOil, CumGas, CumWater, CumInj float64
}

// SurfaceRates buckets a well's current molar withdrawal/injection into the
// three familiar field-unit rate channels, using the fixed component
// ordering the fluid family shares (oil=0 when present, gas=1 when
// present, water=last).
type SurfaceRates struct {
	Oil, Gas, Water float64 // positive magnitude, field units/day
}

// CalProdWeight refreshes ProdWeight from the perforations' current
// component rates. Call after CalFlux on FinishNR's retry path, not every
// Newton iteration (§ supplemented, item 5).
func (w *Well) CalProdWeight(numCom int) {
	if w.ProdWeight == nil {
		w.ProdWeight = make([]float64, numCom)
	}
	total := 0.0
	for ic := 0; ic < numCom; ic++ {
		w.ProdWeight[ic] = 0
		for i := range w.Perfs {
			if len(w.Perfs[i].Qi) > ic {
				w.ProdWeight[ic] += w.Perfs[i].Qi[ic]
			}
		}
		total += math.Abs(w.ProdWeight[ic])
	}
	if total > 0 {
		for ic := range w.ProdWeight {
			w.ProdWeight[ic] /= total
		}
	}
}

// CalRates sums the perforations' current component rates into Rates,
// bucketed oil/gas/water by component index (CalIPRT's per-well rate
// refresh, done every step before the field totals are accumulated).
func (w *Well) CalRates(numCom int) {
	w.Rates = SurfaceRates{}
	var oil, gas, water float64
	for i := range w.Perfs {
		qi := w.Perfs[i].Qi
		if len(qi) == 0 {
			continue
		}
		switch numCom {
		case 1: // pure water model: its one component is water, not oil
			water += qi[0]
		case 2: // oil+water
			oil += qi[0]
			water += qi[1]
		default: // oil, gas, ..., water (§4.1: 0=oil, 1=gas, last=water)
			oil += qi[0]
			gas += qi[1]
			water += qi[numCom-1]
		}
	}
	w.Rates.Oil = math.Abs(oil)
	w.Rates.Gas = math.Abs(gas)
	w.Rates.Water = math.Abs(water)
}

// IsOpen reports whether the well is currently producing/injecting at all.
func (w *Well) IsOpen() bool {
	for i := range w.Perfs {
		if w.Perfs[i].State {
			return true
		}
	}
	return false
}

// CalTrans computes each perforation's transmissibility from its WI and
// the completion multiplier (skin/partial-perf correction folded into
// Multiplier at input time, §3).
func (w *Well) CalTrans() {
	for i := range w.Perfs {
		w.Perfs[i].Trans = w.Perfs[i].WI * w.Perfs[i].Multiplier
	}
}

// CaldG sets each perforation's flowing pressure from BHP plus the
// gravity head between the well's reference depth and the perforated
// cell's depth, using the wellbore fluid density supplied by the caller
// (the drivers pass the injected phase's density for an injector and a
// saturation-weighted density of the first perforated cell's phases for a
// producer).
func (w *Well) CaldG(cells []*bulk.Cell, rhoWellbore float64) {
	const gravityGradient = 0.006944 // psi/ft per lbm/ft3, matches core/connection
	for i := range w.Perfs {
		dz := cells[w.Perfs[i].CellIndex].Depth - w.RefDepth
		w.Perfs[i].P = w.BHP + rhoWellbore*gravityGradient*dz
	}
}

// CheckP flags a perforation whose flowing pressure is non-positive or NaN
// (flag 1) and detects crossflow (flag 2): a producer perforation whose flowing
// pressure exceeds the cell pressure, or an injector perforation below it,
// is no longer behaving as declared and gets closed.
func (w *Well) CheckP(cells []*bulk.Cell) CheckResult {
	res := CheckOK
	for i := range w.Perfs {
		if !w.Perfs[i].State {
			continue
		}
		if w.Perfs[i].P <= 0 || math.IsNaN(w.Perfs[i].P) {
			return CheckNegativeP
		}
		cellP := cells[w.Perfs[i].CellIndex].P
		crossflow := (w.Injector && w.Perfs[i].P < cellP) || (!w.Injector && w.Perfs[i].P > cellP)
		if crossflow {
			w.Perfs[i].State = false
			res = CheckModeSwitch
		}
	}
	return res
}

// CheckOptMode switches a rate-controlled well to BHP control when its
// computed BHP would violate BHPLimit, the other half of WellGroup's
// CheckOptMode/CheckP pair.
func (w *Well) CheckOptMode() bool {
	if w.Mode != ModeRate {
		return false
	}
	if w.Injector && w.BHP > w.BHPLimit {
		w.Mode = ModeBHP
		w.BHP = w.BHPLimit
		return true
	}
	if !w.Injector && w.BHP < w.BHPLimit {
		w.Mode = ModeBHP
		w.BHP = w.BHPLimit
		return true
	}
	return false
}

// SolveRateBHP closes a rate-controlled well's BHP against its target
// surface rate by bisection: CalFlux's withdrawal/injection rate is a
// monotonic (but, through the dP-sign gate in injectFlux/produceFlux, not
// smooth) function of BHP, so a bracketed root find is the robust choice
// over inverting the affine relation directly. Until this runs, a
// rate-controlled well's BHP sits wherever it was last left (BHPLimit at
// construction, §3), so CheckOptMode's BHP-vs-BHPLimit comparison has
// nothing real to compare against; call this once per step, after the
// pressure/Newton solve settles cell pressures and before CheckOptMode
// (§4.3). rhoWellbore is the same wellbore fluid density CaldG takes; each
// trial BHP re-runs CaldG so the perforation pressures CalFlux reads track
// the trial, not whatever BHP was last committed.
func (w *Well) SolveRateBHP(cells []*bulk.Cell, numCom int, rhoWellbore float64) {
	if w.Mode != ModeRate || !w.IsOpen() {
		return
	}
	target := w.RateTarg
	if !w.Injector {
		target = -target // Qt convention: producer withdrawal is negative
	}

	rateAt := func(bhp float64) float64 {
		w.BHP = bhp
		w.CaldG(cells, rhoWellbore)
		w.CalFlux(cells, numCom)
		var qt float64
		for i := range w.Perfs {
			qt += w.Perfs[i].Qt
		}
		return qt
	}

	var lo, hi float64
	if w.Injector {
		lo, hi = 0, w.BHPLimit
	} else {
		lo, hi = w.BHPLimit, w.BHPLimit
		for i := range w.Perfs {
			if cp := cells[w.Perfs[i].CellIndex].P; cp > hi {
				hi = cp
			}
		}
	}
	if hi <= lo {
		return // no usable bracket, e.g. BHPLimit already above every cell pressure
	}

	flo, fhi := rateAt(lo), rateAt(hi)
	if (flo-target)*(fhi-target) > 0 {
		// target unreachable within the BHP bracket: settle at whichever
		// bound gets closer and let CheckOptMode decide whether this well
		// needs to switch to BHP control.
		if math.Abs(flo-target) < math.Abs(fhi-target) {
			rateAt(lo)
		} else {
			rateAt(hi)
		}
		return
	}

	tol := 1e-6 * math.Max(1, math.Abs(target))
	for iter := 0; iter < 40; iter++ {
		mid := 0.5 * (lo + hi)
		fm := rateAt(mid)
		if math.Abs(fm-target) < tol {
			return
		}
		if (fm-target)*(flo-target) < 0 {
			hi = mid
		} else {
			lo, flo = mid, fm
		}
	}
}

// CalFlux computes each open perforation's component molar rates from its
// transmissibility and the potential difference to its cell, mirroring
// core/connection's mobility*potentialDiff shape with the well treated as
// one side of the connection.
func (w *Well) CalFlux(cells []*bulk.Cell, numCom int) {
	for i := range w.Perfs {
		p := &w.Perfs[i]
		if p.Qi == nil {
			p.Qi = make([]float64, numCom)
		}
		for k := range p.Qi {
			p.Qi[k] = 0
		}
		p.Qt = 0
		if !p.State {
			continue
		}
		cell := cells[p.CellIndex]
		dP := p.P - cell.P

		if w.Injector {
			w.injectFlux(p, cell, dP, numCom)
		} else {
			w.produceFlux(p, cell, dP, numCom)
		}
	}
}

func (w *Well) injectFlux(p *Perforation, cell *bulk.Cell, dP float64, numCom int) {
	if dP <= 0 {
		return // injector perforation must have well pressure above the cell to inject
	}
	injComponent := injectedComponent(w.Fluid, numCom)
	if injComponent < 0 {
		return
	}
	q := p.Trans * p.Xi() * dP // molar rate, positive into the cell
	p.Qi[injComponent] += q
	p.Qt = q / p.Xi()
}

func (p *Perforation) Xi() float64 {
	// an injector perforation's Xi is the injected single-phase fluid's
	// molar density, cached by the caller via SetInjectionXi before CalFlux.
	return p.injectionXi
}

// SetInjectionXi records the injected fluid's molar density for this
// perforation, read from a single-phase flash of the well's surface
// stream at BHP.
func (p *Perforation) SetInjectionXi(xi float64) { p.injectionXi = xi }

// injectedComponent maps an injected FluidType to the single component
// index it corresponds to in this model's Ni ordering (oil=0, gas=1,
// water=last, per the black-oil family's fixed component layout).
func injectedComponent(f FluidType, numCom int) int {
	switch f {
	case FluidOil:
		return fluid.PhaseOil
	case FluidGas:
		if numCom >= 2 {
			return fluid.PhaseGas
		}
	case FluidWater:
		if numCom >= 1 {
			return numCom - 1
		}
	}
	return -1
}

func (w *Well) produceFlux(p *Perforation, cell *bulk.Cell, dP float64, numCom int) {
	if dP >= 0 {
		return // producer perforation must have cell pressure above the well to produce
	}
	kr, err := cell.RelPerm()
	if err != nil {
		return
	}
	for phase := 0; phase < fluid.MaxPhase; phase++ {
		if !cell.Out.PhaseExist[phase] || cell.Out.Mu[phase] <= 0 {
			continue
		}
		krPhase := krOfPhase(kr, phase)
		if krPhase <= 0 {
			continue
		}
		mob := krPhase * cell.Out.Xi[phase] / cell.Out.Mu[phase]
		q := -p.Trans * mob * dP // dP<0 here, so q is positive moles withdrawn
		for ic := 0; ic < numCom; ic++ {
			p.Qi[ic] -= q * cell.Out.Xij[phase][ic]
		}
		p.Qt -= q / cell.Out.Xi[phase]
	}
}

func krOfPhase(kr relperm.Result, phase int) float64 {
	switch phase {
	case fluid.PhaseOil:
		return kr.Kro
	case fluid.PhaseGas:
		return kr.Krg
	case fluid.PhaseWater:
		return kr.Krw
	}
	return 0
}

// CalCFL returns the well's contribution to the explicit-saturation CFL
// check: the largest single-perforation withdrawal rate relative to its
// cell's pore volume.
func (w *Well) CalCFL(cells []*bulk.Cell, dt float64) float64 {
	var cfl float64
	for i := range w.Perfs {
		if !w.Perfs[i].State {
			continue
		}
		cell := cells[w.Perfs[i].CellIndex]
		if cell.Vp <= 0 {
			continue
		}
		c := math.Abs(w.Perfs[i].Qt) * dt / cell.Vp
		if c > cfl {
			cfl = c
		}
	}
	return cfl
}

// New allocates a Well with its perforations, validating that at least one
// completion is given (§3 invariant).
func New(name string, injector bool, ft FluidType, mode Mode, refDepth float64, perfs []Perforation) (*Well, error) {
	if len(perfs) == 0 {
		return nil, ocperr.Err("well %q: at least one perforation is required", name)
	}
	return &Well{Name: name, Injector: injector, Fluid: ft, Mode: mode, RefDepth: refDepth, Perfs: perfs}, nil
}
