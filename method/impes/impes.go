// Package impes implements the IMPES (implicit pressure, explicit
// saturation) driver: one linear pressure solve per step followed by an
// explicit flux/mass-balance update, with the four-stage chop-and-retry
// sequence OCP_IMPEC::{AssembleMatIMPEC, GetSolution, UpdateProperty,
// FinishStep} perform (§4.4).
package impes

import (
	"github.com/reservoirsim/ocpcore/core/bulk"
	"github.com/reservoirsim/ocpcore/core/control"
	"github.com/reservoirsim/ocpcore/core/linsys"
	"github.com/reservoirsim/ocpcore/core/well"
	"github.com/reservoirsim/ocpcore/mdl/fluid"
	"github.com/reservoirsim/ocpcore/mdl/relperm"
	"github.com/reservoirsim/ocpcore/method"
	"github.com/reservoirsim/ocpcore/ocperr"
	"github.com/reservoirsim/ocpcore/reservoir"
)

// SolverName selects the gosl sparse solver Solve calls; umfpack is the
// teacher's default for a non-symmetric, resorted-each-step matrix.
const SolverName = "umfpack"

func init() {
	method.Register("impes", func() method.Driver { return &Driver{} })
}

// Driver is the IMPES method. It keeps a per-cell saturation snapshot taken
// right after each AcceptStep, so Control's dSmax term has something to
// measure a step's saturation change against.
type Driver struct {
	lastS [][3]float64
}

// Setup snapshots the initial saturation state.
func (d *Driver) Setup(rs *reservoir.Reservoir) error {
	d.snapshotS(rs)
	return nil
}

func (d *Driver) snapshotS(rs *reservoir.Reservoir) {
	if d.lastS == nil {
		d.lastS = make([][3]float64, len(rs.Cells))
	}
	for i, c := range rs.Cells {
		d.lastS[i] = [3]float64{c.Out.S[fluid.PhaseOil], c.Out.S[fluid.PhaseGas], c.Out.S[fluid.PhaseWater]}
	}
}

// GoOneStep advances the reservoir one IMPES step, mirroring
// OCP_IMPES::goOneStep's PrepareWell -> (assemble, solve, four checks) ->
// CalIPRT -> FinishStep sequence. It chops dt and retries in place on any
// transient check failure, and aborts once dt is pushed below TimeMin.
func (d *Driver) GoOneStep(rs *reservoir.Reservoir, ctrl *control.Control, ls *linsys.LinearSystem) error {
	prepareWell(rs)
	if cfl := rs.MaxCFL(ctrl.CurrentDt); cfl > 1 {
		ctrl.CurrentDt /= cfl
	}

	for {
		if ctrl.CurrentDt < ctrl.Time.TimeMin {
			return ocperr.Err("impes: time step chopped below TimeMin (%g) without converging", ctrl.Time.TimeMin)
		}

		assemble(rs, ctrl.CurrentDt, ls)
		t0 := ctrl.TimeLS
		if err := ls.Solve(SolverName, false, false); err != nil {
			return err
		}
		ctrl.UpdateIterLS(1, ctrl.TimeLS-t0)
		applyPressure(rs, ls)
		settleWellControl(rs)

		switch rs.CheckWells() {
		case well.CheckNegativeP:
			rs.RejectAll()
			ctrl.CurrentDt *= ctrl.Time.CutFacNR
			continue
		case well.CheckModeSwitch:
			rs.RejectAll()
			continue
		}

		calWellFlux(rs)
		if cfl := rs.MaxCFL(ctrl.CurrentDt); cfl > 1 {
			rs.RejectAll()
			ctrl.CurrentDt *= ctrl.Time.CutFacNR
			continue
		}

		massConserve(rs, ctrl.CurrentDt)
		if err := rs.CheckAll(); err != nil {
			rs.RejectAll()
			ctrl.CurrentDt *= ctrl.Time.CutFacNR
			continue
		}

		if err := flashAll(rs); err != nil {
			rs.RejectAll()
			ctrl.CurrentDt *= ctrl.Time.CutFacNR
			continue
		}
		if verr := rs.FieldVolumeError(); verr > ctrl.NR.Verrmax {
			rs.RejectAll()
			ctrl.CurrentDt *= ctrl.Time.CutFacNR
			continue
		}

		break
	}

	rs.CalIPRT(ctrl.CurrentDt)
	ctrl.IterNR = 0
	ctrl.UpdateIters()
	rs.AcceptAll()
	ctrl.CalNextTstepIMPES(rs.Cells, d.lastS)
	d.snapshotS(rs)
	return nil
}

// prepareWell refreshes each well's per-perforation transmissibility and
// flowing pressure before the pressure solve (WellGroup::Prepare).
func prepareWell(rs *reservoir.Reservoir) {
	for _, w := range rs.Wells {
		w.CalTrans()
		rho := wellboreDensity(rs, w)
		w.CaldG(rs.Cells, rho)
	}
}

// settleWellControl closes each rate-controlled well's BHP against its
// target rate now that this iteration's cell pressures are final, then lets
// CheckOptMode decide whether the resulting BHP violates BHPLimit and the
// well needs to switch to BHP control. Calling this before the pressure
// solve (as prepareWell used to) left CheckOptMode comparing BHPLimit
// against itself, since nothing had yet moved BHP away from it (§4.3).
func settleWellControl(rs *reservoir.Reservoir) {
	numCom := 0
	if len(rs.Cells) > 0 {
		numCom = len(rs.Cells[0].Ni)
	}
	for _, w := range rs.Wells {
		rho := wellboreDensity(rs, w)
		w.SolveRateBHP(rs.Cells, numCom, rho)
		if w.CheckOptMode() {
			w.CaldG(rs.Cells, rho)
		}
	}
}

// wellboreDensity returns the density CaldG should use for a well's gravity
// head: the injected phase's density for an injector, the
// saturation-weighted density of the phases present in the first
// perforated cell for a producer.
func wellboreDensity(rs *reservoir.Reservoir, w *well.Well) float64 {
	if len(w.Perfs) == 0 {
		return 0
	}
	cell := rs.Cells[w.Perfs[0].CellIndex]
	switch {
	case w.Injector && w.Fluid == well.FluidWater:
		return cell.Out.Rho[fluid.PhaseWater]
	case w.Injector && w.Fluid == well.FluidGas:
		return cell.Out.Rho[fluid.PhaseGas]
	case w.Injector:
		return cell.Out.Rho[fluid.PhaseOil]
	default:
		var rho, wsum float64
		for phase := 0; phase < fluid.MaxPhase; phase++ {
			if !cell.Out.PhaseExist[phase] {
				continue
			}
			rho += cell.Out.Rho[phase] * cell.Out.S[phase]
			wsum += cell.Out.S[phase]
		}
		if wsum > 0 {
			return rho / wsum
		}
		return cell.Out.Rho[fluid.PhaseOil]
	}
}

// assemble builds the IMPES pressure equation: a compressibility-storage
// diagonal plus inter-cell transmissibility terms, following
// OCP_IMPEC::AssembleMatIMPEC's lumped total-compressibility formulation
// (the full component-by-component derivative chain the original's FIM
// Jacobian uses is out of scope for the explicit-saturation pressure
// solve; see DESIGN.md).
func assemble(rs *reservoir.Reservoir, dt float64, ls *linsys.LinearSystem) {
	ls.Reset()

	for _, c := range rs.Cells {
		storage := c.DVpDp / dt
		if storage < 0 {
			storage = 0
		}
		ls.AddEntry(c.Index, c.Index, storage)
		ls.AddRHS(c.Index, storage*c.Pn)
	}

	for _, conn := range rs.Conns {
		krI, errI := conn.CellI.RelPerm()
		krJ, errJ := conn.CellJ.RelPerm()
		if errI != nil || errJ != nil {
			continue
		}
		var transMob float64
		for phase := 0; phase < fluid.MaxPhase; phase++ {
			transMob += conn.Trans * phaseMobility(conn.CellI, phase, krI) * 0.5
			transMob += conn.Trans * phaseMobility(conn.CellJ, phase, krJ) * 0.5
		}
		i, j := conn.CellI.Index, conn.CellJ.Index
		ls.AddEntry(i, i, transMob)
		ls.AddEntry(j, j, transMob)
		ls.AddEntry(i, j, -transMob)
		ls.AddEntry(j, i, -transMob)
	}

	for _, w := range rs.Wells {
		for _, p := range w.Perfs {
			if !p.State {
				continue
			}
			ls.AddEntry(p.CellIndex, p.CellIndex, p.Trans)
			ls.AddRHS(p.CellIndex, p.Trans*p.P)
		}
	}
}

// phaseMobility returns one phase's molar mobility at a cell, the same
// kr*Xi/Mu shape core/connection and core/well use.
func phaseMobility(c *bulk.Cell, phase int, kr relperm.Result) float64 {
	if !c.Out.PhaseExist[phase] || c.Out.Mu[phase] <= 0 {
		return 0
	}
	var krPhase float64
	switch phase {
	case fluid.PhaseOil:
		krPhase = kr.Kro
	case fluid.PhaseGas:
		krPhase = kr.Krg
	case fluid.PhaseWater:
		krPhase = kr.Krw
	}
	if krPhase <= 0 {
		return 0
	}
	return krPhase * c.Out.Xi[phase] / c.Out.Mu[phase]
}

// applyPressure copies the pressure solve's solution vector into each
// cell's primary pressure unknown (GetSolution's pressure half).
func applyPressure(rs *reservoir.Reservoir, ls *linsys.LinearSystem) {
	for _, c := range rs.Cells {
		c.P = ls.X[c.Index]
	}
}

// calWellFlux recomputes every well's perforation flux at the new pressure
// field (WellGroup::CalFlux, called once the pressure solve has updated
// every cell's P).
func calWellFlux(rs *reservoir.Reservoir) {
	for _, w := range rs.Wells {
		numCom := 0
		if len(rs.Cells) > 0 {
			numCom = len(rs.Cells[0].Ni)
		}
		w.CalFlux(rs.Cells, numCom)
	}
}

// massConserve applies the explicit component-mass update: each cell's Ni
// advances by dt times the net of its connection fluxes and well
// withdrawal/injection (Bulk::MassConserve).
func massConserve(rs *reservoir.Reservoir, dt float64) {
	for _, c := range rs.Cells {
		copy(c.Ni, c.Nin)
	}
	for _, conn := range rs.Conns {
		krI, errI := conn.CellI.RelPerm()
		krJ, errJ := conn.CellJ.RelPerm()
		if errI != nil || errJ != nil {
			continue
		}
		flux := conn.ComponentFlux(krI, krJ)
		for ic, q := range flux {
			conn.CellI.Ni[ic] -= q * dt
			conn.CellJ.Ni[ic] += q * dt
		}
	}
	for _, w := range rs.Wells {
		for _, p := range w.Perfs {
			if !p.State {
				continue
			}
			cell := rs.Cells[p.CellIndex]
			for ic, q := range p.Qi {
				cell.Ni[ic] += q * dt
			}
		}
	}
	// a resulting negative Ni surfaces through CheckAll right after this
	// call, which chops the step; nothing to clamp here.
}

// flashAll re-flashes every cell at its updated (P, Ni), refreshing phase
// properties, pore volume and relperm inputs for the next iteration or the
// step's final CalKrPc/CalFlux pass.
func flashAll(rs *reservoir.Reservoir) error {
	for _, c := range rs.Cells {
		if err := c.Flash(); err != nil {
			return err
		}
	}
	return nil
}
