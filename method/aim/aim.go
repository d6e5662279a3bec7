// Package aim implements the adaptive implicit method: an IMPES predictor
// over the whole reservoir, followed by a local iterative correction
// restricted to WellBulk, the perforated cells and their immediate
// connection neighbors (§ supplemented, item 4). Everywhere outside
// WellBulk keeps its explicit IMPES update; the cells nearest a well get
// repeated mass-update and flash passes until their volume balance closes.
// The CFL check still covers every connection and perforation.
package aim

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

// SolverName selects the gosl sparse solver both the predictor pressure
// solve and the local correction use.
const SolverName = "umfpack"

func init() {
	method.Register("aim", func() method.Driver { return &Driver{} })
}

// Driver is the AIM method.
type Driver struct {
	lastS     [][3]float64
	wellBulk  map[int]bool
	corrIters int // NRIter budget for the local correction, OCP_AIMt's inner loop
}

// Setup snapshots the saturation state and computes WellBulk: every
// perforated cell plus the cells reachable from it by one connection
// (OCP_AIMt::Setup's "get the near-well region" step).
func (d *Driver) Setup(rs *reservoir.Reservoir) error {
	d.snapshotS(rs)
	d.corrIters = 8
	d.wellBulk = computeWellBulk(rs)
	return nil
}

func computeWellBulk(rs *reservoir.Reservoir) map[int]bool {
	perforated := make(map[int]bool)
	for _, w := range rs.Wells {
		for _, p := range w.Perfs {
			perforated[p.CellIndex] = true
		}
	}
	wb := make(map[int]bool, len(perforated))
	for idx := range perforated {
		wb[idx] = true
	}
	for _, conn := range rs.Conns {
		if perforated[conn.CellI.Index] {
			wb[conn.CellJ.Index] = true
		}
		if perforated[conn.CellJ.Index] {
			wb[conn.CellI.Index] = true
		}
	}
	return wb
}

func (d *Driver) snapshotS(rs *reservoir.Reservoir) {
	if d.lastS == nil {
		d.lastS = make([][3]float64, len(rs.Cells))
	}
	for i, c := range rs.Cells {
		d.lastS[i] = [3]float64{c.Out.S[fluid.PhaseOil], c.Out.S[fluid.PhaseGas], c.Out.S[fluid.PhaseWater]}
	}
}

// GoOneStep runs the IMPES predictor over every cell, then a local iterative
// correction over WellBulk. Any failure inside the local correction is
// treated exactly like an IMPES volume-balance failure: halve dt, restore
// the whole reservoir, and retry from the pressure solve; prepareWell runs
// once, before the retry loop (§ Open Question (b)).
func (d *Driver) GoOneStep(rs *reservoir.Reservoir, ctrl *control.Control, ls *linsys.LinearSystem) error {
	prepareWell(rs)
	if cfl := rs.MaxCFL(ctrl.CurrentDt); cfl > 1 {
		ctrl.CurrentDt /= cfl
	}

	for {
		if ctrl.CurrentDt < ctrl.Time.TimeMin {
			return ocperr.Err("aim: time step chopped below TimeMin (%g) without converging", ctrl.Time.TimeMin)
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

		massConserve(rs, ctrl.CurrentDt, d.wellBulk, false) // predictor: every cell outside WellBulk
		if err := flashCells(rs, exclude(rs, d.wellBulk)); err != nil {
			rs.RejectAll()
			ctrl.CurrentDt *= ctrl.Time.CutFacNR
			continue
		}

		if err := d.localCorrect(rs, ctrl); err != nil {
			rs.RejectAll()
			ctrl.CurrentDt *= ctrl.Time.CutFacNR
			continue
		}

		if err := rs.CheckAll(); err != nil {
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
	ctrl.UpdateIters()
	rs.AcceptAll()
	ctrl.CalNextTstepIMPES(rs.Cells, d.lastS)
	d.snapshotS(rs)
	return nil
}

// localCorrect repeats the explicit mass update over the WellBulk cells
// from the current fluxes and re-flashes them, up to corrIters times, until
// every WellBulk cell's volume-balance error is below Verrmax (OCP_AIMt::
// UpdateProperty's WellBulk branch). Cell pressures stay at the predictor's
// solution and no Jacobian is assembled or solved; it returns an error if
// the tolerance is not reached.
func (d *Driver) localCorrect(rs *reservoir.Reservoir, ctrl *control.Control) error {
	cells := wellBulkCells(rs, d.wellBulk)
	for iter := 0; iter < d.corrIters; iter++ {
		massConserve(rs, ctrl.CurrentDt, d.wellBulk, true) // correction: only WellBulk
		if err := flashCells(rs, cells); err != nil {
			return err
		}
		worst := 0.0
		for _, c := range cells {
			if v := c.CheckVe(); v > worst {
				worst = v
			}
		}
		if worst < ctrl.NR.Verrmax {
			return nil
		}
	}
	return ocperr.Err("aim: local correction did not reach the volume-balance tolerance within %d iterations", d.corrIters)
}

func wellBulkCells(rs *reservoir.Reservoir, wb map[int]bool) []*bulk.Cell {
	var out []*bulk.Cell
	for _, c := range rs.Cells {
		if wb[c.Index] {
			out = append(out, c)
		}
	}
	return out
}

func exclude(rs *reservoir.Reservoir, wb map[int]bool) []*bulk.Cell {
	var out []*bulk.Cell
	for _, c := range rs.Cells {
		if !wb[c.Index] {
			out = append(out, c)
		}
	}
	return out
}

func prepareWell(rs *reservoir.Reservoir) {
	for _, w := range rs.Wells {
		w.CalTrans()
		rho := wellboreDensity(rs, w)
		w.CaldG(rs.Cells, rho)
	}
}

// settleWellControl mirrors method/impes's helper of the same name: close
// each rate-controlled well's BHP against its target rate now that the
// predictor pressure solve has settled cell pressures, then let
// CheckOptMode react to the result (§4.3).
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

func wellboreDensity(rs *reservoir.Reservoir, w *well.Well) float64 {
	if len(w.Perfs) == 0 {
		return 0
	}
	cell := rs.Cells[w.Perfs[0].CellIndex]
	if w.Injector {
		switch w.Fluid {
		case well.FluidWater:
			return cell.Out.Rho[fluid.PhaseWater]
		case well.FluidGas:
			return cell.Out.Rho[fluid.PhaseGas]
		default:
			return cell.Out.Rho[fluid.PhaseOil]
		}
	}
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

// assemble is the same lumped IMPES pressure equation method/impes builds;
// AIM keeps one field-wide pressure solve and only switches the transport
// update to implicit near wells (OCP_AIMt shares OCP_IMPEC's
// AssembleMatIMPEC unchanged).
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

func applyPressure(rs *reservoir.Reservoir, ls *linsys.LinearSystem) {
	for _, c := range rs.Cells {
		c.P = ls.X[c.Index]
	}
}

func calWellFlux(rs *reservoir.Reservoir) {
	for _, w := range rs.Wells {
		numCom := 0
		if len(rs.Cells) > 0 {
			numCom = len(rs.Cells[0].Ni)
		}
		w.CalFlux(rs.Cells, numCom)
	}
}

// massConserve advances Ni by dt from the current fluxes, restricted to
// either the non-WellBulk cells (the IMPES predictor pass, onlyWellBulk
// false) or the WellBulk cells (the local correction pass, onlyWellBulk
// true).
func massConserve(rs *reservoir.Reservoir, dt float64, wb map[int]bool, onlyWellBulk bool) {
	included := func(idx int) bool {
		if onlyWellBulk {
			return wb[idx]
		}
		return !wb[idx]
	}

	for _, c := range rs.Cells {
		if included(c.Index) {
			copy(c.Ni, c.Nin)
		}
	}
	for _, conn := range rs.Conns {
		if !included(conn.CellI.Index) && !included(conn.CellJ.Index) {
			continue
		}
		krI, errI := conn.CellI.RelPerm()
		krJ, errJ := conn.CellJ.RelPerm()
		if errI != nil || errJ != nil {
			continue
		}
		flux := conn.ComponentFlux(krI, krJ)
		for ic, q := range flux {
			if included(conn.CellI.Index) {
				conn.CellI.Ni[ic] -= q * dt
			}
			if included(conn.CellJ.Index) {
				conn.CellJ.Ni[ic] += q * dt
			}
		}
	}
	for _, w := range rs.Wells {
		for _, p := range w.Perfs {
			if !p.State || !included(p.CellIndex) {
				continue
			}
			cell := rs.Cells[p.CellIndex]
			for ic, q := range p.Qi {
				cell.Ni[ic] += q * dt
			}
		}
	}
}

func flashCells(rs *reservoir.Reservoir, cells []*bulk.Cell) error {
	for _, c := range cells {
		if err := c.Flash(); err != nil {
			return err
		}
	}
	return nil
}
