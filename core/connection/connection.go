// Package connection implements the transmissibility-weighted inter-cell
// flux (§3 Connection): upstream-weighted phase mobility times a
// potential difference, the same Darcy-flux shape as the teacher's
// ele/seepage.Liquid ("klr * Ksat * (rho*grav - gradPl)"), just discretised
// cell-to-cell instead of integration-point-to-gradient.
package connection

import (
	"math"

	"github.com/reservoirsim/ocpcore/core/bulk"
	"github.com/reservoirsim/ocpcore/mdl/fluid"
	"github.com/reservoirsim/ocpcore/mdl/relperm"
)

// gravityGradient, see mdl/gravity's identical constant: psi/ft per lbm/ft3.
const gravityGradient = 0.006944

// Connection links two Bulk cells through one geometric transmissibility.
type Connection struct {
	CellI, CellJ *bulk.Cell
	Trans        float64 // transmissibility, rb.cp/(day.psi) in field units
}

// potentialDiff returns Φi - Φj for the given phase, using the average of
// the two cells' phase densities for the gravity term (the usual two-point
// flux approximation).
func (c *Connection) potentialDiff(phase int) float64 {
	dz := c.CellJ.Depth - c.CellI.Depth
	rhoBar := 0.5 * (c.CellI.Out.Rho[phase] + c.CellJ.Out.Rho[phase])
	return (c.CellI.P - c.CellJ.P) + rhoBar*gravityGradient*dz
}

// upstream returns the donor cell and its relperm result for a phase: the
// cell with higher potential supplies its mobility and component split, the
// standard upstream-weighting rule.
func (c *Connection) upstream(phase int, krI, krJ relperm.Result) (*bulk.Cell, relperm.Result) {
	if c.potentialDiff(phase) >= 0 {
		return c.CellI, krI
	}
	return c.CellJ, krJ
}

func krOf(kr relperm.Result, phase int) float64 {
	switch phase {
	case fluid.PhaseWater:
		return kr.Krw
	case fluid.PhaseGas:
		return kr.Krg
	case fluid.PhaseOil:
		return kr.Kro
	}
	return 0
}

func mobility(cell *bulk.Cell, phase int, kr relperm.Result) float64 {
	if !cell.Out.PhaseExist[phase] || cell.Out.Mu[phase] <= 0 {
		return 0
	}
	return krOf(kr, phase) * cell.Out.Xi[phase] / cell.Out.Mu[phase]
}

// ComponentFlux returns, for each component, the molar flow rate from
// CellI to CellJ summed over every phase present at the connection
// (positive: flowing from I into J).
func (c *Connection) ComponentFlux(krI, krJ relperm.Result) []float64 {
	numCom := len(c.CellI.Ni)
	flux := make([]float64, numCom)
	for phase := 0; phase < fluid.MaxPhase; phase++ {
		dPhi := c.potentialDiff(phase)
		up, kr := c.upstream(phase, krI, krJ)
		mob := mobility(up, phase, kr)
		if mob == 0 {
			continue
		}
		q := c.Trans * mob * dPhi
		for ic := 0; ic < numCom; ic++ {
			flux[ic] += q * up.Out.Xij[phase][ic]
		}
	}
	return flux
}

// CFL returns the phase-throughput Courant number contribution of this
// connection to its upstream cell's pore volume, the quantity IMPES's
// explicit saturation update checks against 1 (§4.4).
func (c *Connection) CFL(phase int, dt float64, krI, krJ relperm.Result) float64 {
	up, kr := c.upstream(phase, krI, krJ)
	mob := mobility(up, phase, kr)
	if mob == 0 || up.Vp <= 0 {
		return 0
	}
	q := math.Abs(c.Trans * mob * c.potentialDiff(phase))
	return q * dt / up.Vp
}
