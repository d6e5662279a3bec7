// Package gravity builds the depth-pressure-saturation equilibrium table
// (InitSjPc, §4.1) a Bulk cell column is seeded from: oil pressure at a
// reference depth, a water-oil and a gas-oil contact, and the capillary
// transition zones hanging off each contact.
//
// The per-depth pressure integral reuses the teacher's mdl/retention.Update
// idiom verbatim in shape: an implicit Radau5 step through gosl/ode.Solver
// with a 1x1 Jacobian built via gosl/la.Triplet, just with dsl/dpc replaced
// by dP/dz = rho(P)*g.
package gravity

import (
	"github.com/cpmech/gosl/la"
	"github.com/cpmech/gosl/ode"

	"github.com/reservoirsim/ocpcore/config"
	"github.com/reservoirsim/ocpcore/mdl/fluid"
	"github.com/reservoirsim/ocpcore/mdl/relperm"
	"github.com/reservoirsim/ocpcore/ocperr"
)

// gGradient converts a mass density in lbm/ft3 to a hydrostatic pressure
// gradient in psi/ft (62.4 lbm/ft3 water gives the familiar 0.433 psi/ft).
const gGradient = 0.006944

// Table holds the equilibrium pressure and saturations at each requested
// depth.
type Table struct {
	Depth []float64
	Po    []float64
	Sw    []float64
	Sg    []float64
}

// componentIndices maps a black-oil-family Kind onto the oil/gas/water
// component slots InitSjPc needs to probe single-phase densities. InitSjPc
// is only defined for the black-oil family (§4.1); COMPS and THERMAL_K
// equilibrate through a full multi-component flash instead, out of scope
// here.
func componentIndices(k fluid.Kind) (oil, gas, water int, err error) {
	switch k {
	case fluid.KindWater:
		return -1, -1, 0, nil
	case fluid.KindOilWater:
		return 0, -1, 1, nil
	case fluid.KindDeadOilGasWater, fluid.KindLiveOilDryGasWater:
		return 0, 1, 2, nil
	default:
		return 0, 0, 0, ocperr.Err("gravity: InitSjPc is not implemented for MixtureModel kind %v", k)
	}
}

// densityAt flashes a trial single-component composition to read off that
// phase's mass density at P, avoiding a second PVT accessor surface on
// fluid.Model.
func densityAt(mm fluid.Model, component int, P float64, scratch *fluid.FlashOutput) (float64, error) {
	Ni := make([]float64, mm.NumCom())
	Ni[component] = 1
	if err := mm.InitFlashByMoles(P, 60, Ni, scratch); err != nil {
		return 0, err
	}
	for j := 0; j < fluid.MaxPhase; j++ {
		if scratch.PhaseExist[j] {
			return scratch.Rho[j], nil
		}
	}
	return 0, ocperr.Err("gravity: no phase present at P=%g", P)
}

// integrate solves dP/dz = rho(P)*gGradient over [z0, z1] given P(z0)=P0,
// one gosl/ode.Solver step per call just as mdl/retention.Update takes one
// step per Δpc.
func integrate(mm fluid.Model, component int, z0, P0, z1 float64) (float64, error) {
	if z1 == z0 {
		return P0, nil
	}
	dz := z1 - z0
	var scratch fluid.FlashOutput
	scratch.Init(mm.NumCom())

	fcn := func(f []float64, dx, x float64, y []float64) error {
		rho, err := densityAt(mm, component, y[0], &scratch)
		if err != nil {
			return err
		}
		f[0] = rho * gGradient * dz
		return nil
	}
	jac := func(dfdy *la.Triplet, dx, x float64, y []float64) error {
		if dfdy.Max() == 0 {
			dfdy.Init(1, 1, 1)
		}
		dfdy.Start()
		dfdy.Put(0, 0, 0) // density held locally constant across one step
		return nil
	}

	var solver ode.Solver
	solver.Init("Radau5", 1, fcn, jac, nil, nil)
	solver.SetTol(1e-8, 1e-6)
	solver.Distr = false

	y := []float64{P0}
	if err := solver.Solve(y, 0, 1, 1, false); err != nil {
		return 0, err
	}
	return y[0], nil
}

// invertPcow finds Sw in [Swco, 1] such that flow.Eval(Sw, 0).Pcow == target
// by bisection; Pcow is monotonically non-increasing in Sw for every
// correlation in mdl/relperm.
func invertPcow(flow relperm.FlowUnit, target float64) (float64, error) {
	lo, hi := flow.Swco(), 1.0
	for iter := 0; iter < 60; iter++ {
		mid := 0.5 * (lo + hi)
		r, err := flow.Eval(mid, 0)
		if err != nil {
			return 0, err
		}
		if r.Pcow > target {
			lo = mid
		} else {
			hi = mid
		}
	}
	return 0.5 * (lo + hi), nil
}

// invertPcgo finds Sg in [0, 1-Swco] such that flow.Eval(Swco, Sg).Pcgo ==
// target by bisection.
func invertPcgo(flow relperm.FlowUnit, swco, target float64) (float64, error) {
	lo, hi := 0.0, 1-swco
	for iter := 0; iter < 60; iter++ {
		mid := 0.5 * (lo + hi)
		r, err := flow.Eval(swco, mid)
		if err != nil {
			return 0, err
		}
		if r.Pcgo < target {
			lo = mid
		} else {
			hi = mid
		}
	}
	return 0.5 * (lo + hi), nil
}

// InitSjPc builds the equilibrium table at the requested depths, honouring
// eq.GOC/eq.OWC and the Pcow/Pcgo transition zones hanging off them.
func InitSjPc(mm fluid.Model, flow relperm.FlowUnit, eq config.Equil, depths []float64) (*Table, error) {
	oilC, gasC, waterC, err := componentIndices(mm.Kind())
	if err != nil {
		return nil, err
	}

	poAtOWC, err := integrate(mm, oilC, eq.RefDepth, eq.RefPressure, eq.OWC)
	if err != nil {
		return nil, err
	}
	pwAtOWC := poAtOWC - eq.PcOWC

	var poAtGOC, pgAtGOC float64
	if gasC >= 0 {
		poAtGOC, err = integrate(mm, oilC, eq.RefDepth, eq.RefPressure, eq.GOC)
		if err != nil {
			return nil, err
		}
		pgAtGOC = poAtGOC + eq.PcGOC
	}

	tbl := &Table{Depth: depths, Po: make([]float64, len(depths)), Sw: make([]float64, len(depths)), Sg: make([]float64, len(depths))}

	for i, z := range depths {
		po, err := integrate(mm, oilC, eq.RefDepth, eq.RefPressure, z)
		if err != nil {
			return nil, err
		}
		tbl.Po[i] = po

		switch {
		case z >= eq.OWC:
			tbl.Sw[i] = 1
			tbl.Sg[i] = 0
		case gasC >= 0 && z <= eq.GOC:
			tbl.Sw[i] = flow.Swco()
			pg, err := integrate(mm, gasC, eq.GOC, pgAtGOC, z)
			if err != nil {
				return nil, err
			}
			sg, err := invertPcgo(flow, flow.Swco(), pg-po)
			if err != nil {
				return nil, err
			}
			tbl.Sg[i] = sg
		default:
			pw, err := integrate(mm, waterC, eq.OWC, pwAtOWC, z)
			if err != nil {
				return nil, err
			}
			sw, err := invertPcow(flow, po-pw)
			if err != nil {
				return nil, err
			}
			tbl.Sw[i] = sw
			tbl.Sg[i] = 0
		}
	}
	return tbl, nil
}
