// Package fim implements the fully implicit method: every step resolves
// pressure and component moles together through a coupled Newton iteration,
// trading IMPES's CFL-bounded explicit transport for per-iteration
// assemble/solve cost (§4.5). Each cell carries Nc+1 unknowns (P, N_1..N_Nc)
// in the linear system, unlike IMPES/AIM's pressure-only system.
//
// FinishNR's three-way outcome is the centerpiece this package is built
// around (§ supplemented, item 3): exceeding MaxNRIter chops dt and resets
// to the last accepted step; converging while a well's CheckP forced a mode
// switch re-solves the same (or a cut) dt from the reset state without
// counting it as non-convergence; converging cleanly commits.
package fim

import (
	"math"

	"github.com/reservoirsim/ocpcore/core/bulk"
	"github.com/reservoirsim/ocpcore/core/connection"
	"github.com/reservoirsim/ocpcore/core/control"
	"github.com/reservoirsim/ocpcore/core/linsys"
	"github.com/reservoirsim/ocpcore/core/well"
	"github.com/reservoirsim/ocpcore/mdl/fluid"
	"github.com/reservoirsim/ocpcore/method"
	"github.com/reservoirsim/ocpcore/ocperr"
	"github.com/reservoirsim/ocpcore/reservoir"
)

// SolverName selects the gosl sparse solver Solve calls for the Newton
// update; umfpack handles the non-symmetric pattern FIM's coupled
// pressure/mass Jacobian produces.
const SolverName = "umfpack"

func init() {
	method.Register("fim", func() method.Driver { return &Driver{} })
}

// perfRef locates one perforation by well and index, the unit buildTopology
// buckets per cell so assembleResidual/assembleJacobian can find every
// completion touching a given cell without scanning every well.
type perfRef struct {
	well *well.Well
	idx  int
}

// Driver is the FIM method. adj/perfs are built once by Setup and index the
// reservoir's fixed topology by cell.Index, the same role
// reservoir.Reservoir itself doesn't keep (it only holds flat slices).
type Driver struct {
	lastS [][3]float64
	adj   [][]*connection.Connection
	perfs [][]perfRef
}

// Setup snapshots the initial saturation state for Control's dSmax term and
// builds the per-cell connection/perforation adjacency the Newton system's
// assembly walks every iteration.
func (d *Driver) Setup(rs *reservoir.Reservoir) error {
	d.snapshotS(rs)
	d.buildTopology(rs)
	return nil
}

func (d *Driver) buildTopology(rs *reservoir.Reservoir) {
	n := len(rs.Cells)
	d.adj = make([][]*connection.Connection, n)
	for _, conn := range rs.Conns {
		i, j := conn.CellI.Index, conn.CellJ.Index
		d.adj[i] = append(d.adj[i], conn)
		d.adj[j] = append(d.adj[j], conn)
	}
	d.perfs = make([][]perfRef, n)
	for _, w := range rs.Wells {
		for pi := range w.Perfs {
			ci := w.Perfs[pi].CellIndex
			d.perfs[ci] = append(d.perfs[ci], perfRef{well: w, idx: pi})
		}
	}
}

func (d *Driver) snapshotS(rs *reservoir.Reservoir) {
	if d.lastS == nil {
		d.lastS = make([][3]float64, len(rs.Cells))
	}
	for i, c := range rs.Cells {
		d.lastS[i] = [3]float64{c.Out.S[fluid.PhaseOil], c.Out.S[fluid.PhaseGas], c.Out.S[fluid.PhaseWater]}
	}
}

// dof returns the Nc+1 unknowns per cell, k=0 is dP, k=1..Nc is dN_k-1
// (§4.5: the coupled pressure/mass Newton system, unlike IMPES/AIM's
// one-unknown-per-cell pressure equation).
func dof(numCom int) int { return numCom + 1 }

func numComOf(rs *reservoir.Reservoir) int {
	if len(rs.Cells) == 0 {
		return 0
	}
	return len(rs.Cells[0].Ni)
}

// avgNnzPerRowFIM estimates the Triplet's per-row nonzero budget: each
// cell's (Nc+1) rows pick up (Nc+1) columns from itself, plus (Nc+1) columns
// from each connected neighbor (mass-balance rows only) and any perforation
// (no extra columns, since a well carries no Newton unknown of its own,
// §4.5 and DESIGN.md's scope note).
func avgNnzPerRowFIM(numCom int) int { return 6 * dof(numCom) }

// GoOneStep advances the reservoir one FIM step: repeated
// assemble-solve-update Newton iterations over the full (Nc+1)-per-cell
// system, each judged by finishNR's three-way outcome, until the step
// either converges or exhausts its dt budget (OCP_FIM::{Prepare,
// AssembleMat, SolveLinearSystem, UpdateProperty, FinishNR, FinishStep}).
func (d *Driver) GoOneStep(rs *reservoir.Reservoir, ctrl *control.Control, ls *linsys.LinearSystem) error {
	numCom := numComOf(rs)
	n := len(rs.Cells) * dof(numCom)
	if ls.NumRows != n {
		ls.Resize(n, avgNnzPerRowFIM(numCom))
	}

	prepareWell(rs)

	for {
		if ctrl.CurrentDt < ctrl.Time.TimeMin {
			return ocperr.Err("fim: time step chopped below TimeMin (%g) without converging", ctrl.Time.TimeMin)
		}

		ctrl.IterNR = 0
		residual := d.assembleResidual(rs, ctrl.CurrentDt)

		converged := false
		for ctrl.IterNR < ctrl.NR.MaxNRIter {
			if ctrl.CurrentDt < ctrl.Time.TimeMin {
				return ocperr.Err("fim: time step chopped below TimeMin (%g) without converging", ctrl.Time.TimeMin)
			}
			if err := d.assembleJacobian(rs, ctrl.CurrentDt, ls, residual); err != nil {
				return err
			}
			t0 := ctrl.TimeLS
			if err := ls.Solve(SolverName, false, false); err != nil {
				return err
			}
			ctrl.UpdateIterLS(1, ctrl.TimeLS-t0)

			prevSat := cellSaturations(rs)
			applyUpdate(rs, ls, ctrl, numCom)
			ctrl.IterNR++

			if err := flashAllWithDSat(rs, prevSat); err != nil {
				if rerr := rejectAndChop(rs, ctrl); rerr != nil {
					return rerr
				}
				residual = d.assembleResidual(rs, ctrl.CurrentDt)
				continue
			}
			settleWellControl(rs)
			residual = d.assembleResidual(rs, ctrl.CurrentDt)

			outcome, err := finishNR(rs, ctrl, residual)
			if err != nil {
				return err
			}
			switch outcome {
			case nrExceeded, nrSwitchedConstraint:
				residual = d.assembleResidual(rs, ctrl.CurrentDt)
				continue
			case nrConverged:
				converged = true
			case nrContinue:
			}
			if converged {
				break
			}
		}

		if !converged {
			// MaxNRIter exhausted without a converged/reset signal: chop and
			// restart the step from the last accepted state.
			rs.RejectAll()
			if err := flashAll(rs); err != nil {
				return err
			}
			ctrl.CurrentDt *= ctrl.Time.CutFacNR
			continue
		}
		break
	}

	calWellFlux(rs)
	rs.CalIPRT(ctrl.CurrentDt)
	ctrl.UpdateIters()
	rs.AcceptAll()
	ctrl.CalNextTstepFIM(rs.Cells, d.lastS)
	d.snapshotS(rs)
	return nil
}

type nrOutcome int

const (
	nrContinue nrOutcome = iota
	nrConverged
	nrExceeded
	nrSwitchedConstraint
)

// rejectAndChop restores the last accepted (P, Ni), re-flashes so Out stays
// in lockstep with the reset primary unknowns, and cuts dt by CutFacNR.
func rejectAndChop(rs *reservoir.Reservoir, ctrl *control.Control) error {
	rs.RejectAll()
	ctrl.CurrentDt *= ctrl.Time.CutFacNR
	ctrl.IterNR = 0
	return flashAll(rs)
}

// finishNR judges the current Newton iterate against NRtol/MaxNRIter and
// the wells' CheckP, the three-way split OCP_FIM::FinishNR performs every
// iteration (§ supplemented, item 3).
func finishNR(rs *reservoir.Reservoir, ctrl *control.Control, residual []float64) (nrOutcome, error) {
	if ctrl.IterNR >= ctrl.NR.MaxNRIter {
		if err := rejectAndChop(rs, ctrl); err != nil {
			return nrExceeded, err
		}
		return nrExceeded, nil
	}

	switch rs.CheckWells() {
	case well.CheckNegativeP:
		if err := rejectAndChop(rs, ctrl); err != nil {
			return nrSwitchedConstraint, err
		}
		return nrSwitchedConstraint, nil
	case well.CheckModeSwitch:
		rs.RejectAll()
		ctrl.IterNR = 0
		if err := flashAll(rs); err != nil {
			return nrSwitchedConstraint, err
		}
		return nrSwitchedConstraint, nil
	}

	if residualNorm(residual) < ctrl.NR.NRtol && bulk.MaxDeltaP(rs.Cells) < ctrl.NR.NRdPmax && rs.FieldVolumeError() < ctrl.NR.Verrmax {
		return nrConverged, nil
	}
	return nrContinue, nil
}

func residualNorm(r []float64) float64 {
	var sum float64
	for _, v := range r {
		sum += v * v
	}
	return math.Sqrt(sum)
}

func prepareWell(rs *reservoir.Reservoir) {
	for _, w := range rs.Wells {
		w.CalTrans()
		rho := wellboreDensity(rs, w)
		w.CaldG(rs.Cells, rho)
	}
}

// settleWellControl mirrors method/impes's helper of the same name: close
// each rate-controlled well's BHP against its target rate now that this
// Newton iterate's cell pressures and moles are final, then let
// CheckOptMode react to the result (§4.3). Run after applyUpdate+flashAll
// succeed, before finishNR judges convergence, so a rate-controlled well's
// residual contribution (its perforations' Qi, read by cellResidualRow)
// reflects a BHP actually chasing RateTarg rather than whatever BHP was
// last committed.
func settleWellControl(rs *reservoir.Reservoir) {
	numCom := numComOf(rs)
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

// cellResidualRow returns one cell's (Nc+1)-length residual: row 0 is the
// volume balance (Out.Vf - Vp)/Vp IMPES/the old FIM both used; rows 1..Nc
// are the backward-Euler component mass balance
// (Ni - Nin - dt*netInto)/scale, the per-component equation the old FIM
// never assembled at all, applying explicitly via massConserve instead
// (OCP_FIM::CalResFIM, generalised from its pressure-only condensation).
// netInto follows the same sign convention as method/impes's massConserve:
// a connection's ComponentFlux is CellI->CellJ, so it subtracts from CellI's
// balance and adds to CellJ's; a perforation's Qi is already signed
// well->cell positive.
func cellResidualRow(c *bulk.Cell, adj []*connection.Connection, perfs []perfRef, dt float64) []float64 {
	numCom := len(c.Ni)
	row := make([]float64, dof(numCom))
	if c.Vp <= 0 {
		return row
	}
	row[0] = (c.Out.Vf - c.Vp) / c.Vp

	netInto := make([]float64, numCom)
	for _, conn := range adj {
		krI, errI := conn.CellI.RelPerm()
		krJ, errJ := conn.CellJ.RelPerm()
		if errI != nil || errJ != nil {
			continue
		}
		flux := conn.ComponentFlux(krI, krJ)
		if conn.CellJ == c {
			for ic, q := range flux {
				netInto[ic] += q
			}
		} else {
			for ic, q := range flux {
				netInto[ic] -= q
			}
		}
	}
	for _, pr := range perfs {
		p := &pr.well.Perfs[pr.idx]
		if !p.State || len(p.Qi) == 0 {
			continue
		}
		for ic, q := range p.Qi {
			netInto[ic] += q
		}
	}

	scale := 0.0
	for _, ni := range c.Nin {
		scale += ni
	}
	if scale <= 0 {
		scale = 1
	}
	for ic := 0; ic < numCom; ic++ {
		row[ic+1] = (c.Ni[ic] - c.Nin[ic] - dt*netInto[ic]) / scale
	}
	return row
}

// assembleResidual evaluates cellResidualRow over every cell into the flat
// (Nc+1)-per-cell residual vector the Newton loop's convergence test and
// Jacobian right-hand side both read.
func (d *Driver) assembleResidual(rs *reservoir.Reservoir, dt float64) []float64 {
	numCom := numComOf(rs)
	res := make([]float64, len(rs.Cells)*dof(numCom))
	for _, c := range rs.Cells {
		row := cellResidualRow(c, d.adj[c.Index], d.perfs[c.Index], dt)
		copy(res[c.Index*dof(numCom):], row)
	}
	return res
}

const (
	fdEpsPFrac = 1e-6 // relative pressure perturbation, floored below
	fdEpsPMin  = 1e-4 // psi
	fdEpsNFrac = 1e-6 // relative mole perturbation, floored at 1 lbmol
)

// distinctNeighbors returns the cells adjacent to self through adj, each
// listed once, excluding self.
func distinctNeighbors(adj []*connection.Connection, self *bulk.Cell) []*bulk.Cell {
	seen := make(map[int]bool)
	var out []*bulk.Cell
	for _, conn := range adj {
		nb := conn.CellJ
		if nb == self {
			nb = conn.CellI
		}
		if nb == self || seen[nb.Index] {
			continue
		}
		seen[nb.Index] = true
		out = append(out, nb)
	}
	return out
}

// distinctWells returns the wells with a perforation at this cell, each
// listed once.
func distinctWells(perfs []perfRef) []*well.Well {
	seen := make(map[*well.Well]bool)
	var out []*well.Well
	for _, pr := range perfs {
		if !seen[pr.well] {
			seen[pr.well] = true
			out = append(out, pr.well)
		}
	}
	return out
}

// refreshWellFlux recomputes CalFlux for every well touching this cell, so
// a perturbed cell's own perforation(s) pick up the trial (P, Out) before
// cellResidualRow reads p.Qi.
func refreshWellFlux(rs *reservoir.Reservoir, numCom int, perfs []perfRef) {
	for _, w := range distinctWells(perfs) {
		w.CalFlux(rs.Cells, numCom)
	}
}

// assembleJacobian builds the coupled (Nc+1)-per-cell Newton system by
// one-sided finite differences: perturb each of a cell's own Nc+1 unknowns
// in turn, re-flash (and, for a completed cell, re-run CalFlux), and
// difference the resulting residual rows of the cell itself and its direct
// neighbors against the baseline residual (OCP_FIM::AssembleMatFIM's
// structural role, with an FD column rather than an analytic dSec_dPri
// chain — see DESIGN.md on why RowSize's variable-layout analytic block was
// judged out of scope for this column's derivation). The right-hand side is
// -residual, Newton's standard convention (J*dx = -F), unlike the old
// lumped pressure system's Pn-driven storage RHS.
func (d *Driver) assembleJacobian(rs *reservoir.Reservoir, dt float64, ls *linsys.LinearSystem, residual []float64) error {
	numCom := numComOf(rs)
	nd := dof(numCom)
	ls.Reset()
	for i, v := range residual {
		ls.AddRHS(i, -v)
	}

	for _, c := range rs.Cells {
		adj := d.adj[c.Index]
		perfs := d.perfs[c.Index]
		neighbors := distinctNeighbors(adj, c)

		baseP := c.P
		baseNi := append([]float64(nil), c.Ni...)
		baseCol := c.Index * nd

		for k := 0; k < nd; k++ {
			var eps float64
			if k == 0 {
				eps = math.Max(fdEpsPMin, fdEpsPFrac*math.Abs(baseP))
				c.P = baseP + eps
			} else {
				ic := k - 1
				eps = fdEpsNFrac * math.Max(1, math.Abs(baseNi[ic]))
				c.Ni[ic] = baseNi[ic] + eps
			}

			if err := c.FlashDeriv(); err != nil {
				c.P = baseP
				copy(c.Ni, baseNi)
				return ocperr.Err("fim: perturbing cell %d unknown %d: %v", c.Index, k, err)
			}
			refreshWellFlux(rs, numCom, perfs)

			rowC := cellResidualRow(c, adj, perfs, dt)
			for r := 0; r < nd; r++ {
				if dv := (rowC[r] - residual[baseCol+r]) / eps; dv != 0 {
					ls.AddEntry(baseCol+r, baseCol+k, dv)
				}
			}
			for _, nb := range neighbors {
				rowNb := cellResidualRow(nb, d.adj[nb.Index], d.perfs[nb.Index], dt)
				nbCol := nb.Index * nd
				for r := 1; r < nd; r++ { // nb's volume-balance row doesn't depend on c
					if dv := (rowNb[r] - residual[nbCol+r]) / eps; dv != 0 {
						ls.AddEntry(nbCol+r, baseCol+k, dv)
					}
				}
			}

			c.P = baseP
			copy(c.Ni, baseNi)
		}

		// restore Out (and any completion's Qi) to the baseline trial state
		// before the next cell's neighbor rows read this cell's properties.
		if err := c.FlashDeriv(); err != nil {
			return ocperr.Err("fim: restoring cell %d after perturbation: %v", c.Index, err)
		}
		refreshWellFlux(rs, numCom, perfs)
	}
	return nil
}

// cellSaturations snapshots every cell's current phase saturations, used by
// flashAllWithDSat to accumulate Cell.DSatNR across a Newton iterate.
func cellSaturations(rs *reservoir.Reservoir) [][3]float64 {
	s := make([][3]float64, len(rs.Cells))
	for i, c := range rs.Cells {
		s[i] = [3]float64{c.Out.S[fluid.PhaseOil], c.Out.S[fluid.PhaseGas], c.Out.S[fluid.PhaseWater]}
	}
	return s
}

// applyUpdate applies the Newton step X = (dP, dN_1..dN_Nc) per cell,
// uniformly scaled by a chop factor that keeps any single cell's pressure
// change within NRdPmax and prevents a component's moles from going
// negative, the Newton-update half of UpdateProperty the old single-unknown
// FIM never had any per-component analogue of (it moved Ni by an explicit
// flux*dt update instead, the same shape as IMPES's massConserve).
func applyUpdate(rs *reservoir.Reservoir, ls *linsys.LinearSystem, ctrl *control.Control, numCom int) {
	nd := dof(numCom)
	alpha := 1.0
	for _, c := range rs.Cells {
		base := c.Index * nd
		if ad := math.Abs(ls.X[base]); ad > ctrl.NR.NRdPmax {
			if a := ctrl.NR.NRdPmax / ad; a < alpha {
				alpha = a
			}
		}
		for ic := 0; ic < numCom; ic++ {
			dN := ls.X[base+1+ic]
			if dN < 0 && c.Ni[ic] > 0 {
				if a := 0.9 * c.Ni[ic] / -dN; a < alpha {
					alpha = a
				}
			}
		}
	}
	if alpha < 0.1 {
		alpha = 0.1
	}

	for _, c := range rs.Cells {
		base := c.Index * nd
		c.P += alpha * ls.X[base]
		for ic := 0; ic < numCom; ic++ {
			c.Ni[ic] += alpha * ls.X[base+1+ic]
			if c.Ni[ic] < 0 {
				c.Ni[ic] = 0
			}
		}
	}
}

func calWellFlux(rs *reservoir.Reservoir) {
	numCom := numComOf(rs)
	for _, w := range rs.Wells {
		w.CalFlux(rs.Cells, numCom)
	}
}

// flashAll re-flashes every cell without touching DSatNR, used to
// resynchronize Out with (P, Ni) after a reject/reset.
func flashAll(rs *reservoir.Reservoir) error {
	for _, c := range rs.Cells {
		if err := c.FlashDeriv(); err != nil {
			return err
		}
	}
	return nil
}

// flashAllWithDSat re-flashes every cell and accumulates Cell.DSatNR by the
// saturation change this Newton iterate produced, the bookkeeping
// CalFlashType's FIM-only ftype=2 branch needs to ever trigger (§9): no
// other driver advances DSatNR, which is what keeps that branch reachable
// only from a FIM Newton sequence.
func flashAllWithDSat(rs *reservoir.Reservoir, prevSat [][3]float64) error {
	for _, c := range rs.Cells {
		if err := c.FlashDeriv(); err != nil {
			return err
		}
		prev := prevSat[c.Index]
		c.DSatNR += math.Abs(c.Out.S[fluid.PhaseOil]-prev[0]) +
			math.Abs(c.Out.S[fluid.PhaseGas]-prev[1]) +
			math.Abs(c.Out.S[fluid.PhaseWater]-prev[2])
	}
	return nil
}
