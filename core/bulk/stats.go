package bulk

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/reservoirsim/ocpcore/mdl/fluid"
)

// MaxDeltaP returns max|P - Pn| over cells, the dPmax Control.CalNextTstepIMPES/
// FIM use to scale the next time step (OCPControl.cpp's reservoir.bulk.GetdPmax).
func MaxDeltaP(cells []*Cell) float64 {
	deltas := make([]float64, len(cells))
	for i, c := range cells {
		deltas[i] = math.Abs(c.P - c.Pn)
	}
	return floats.Max(deltas)
}

// MaxDeltaN returns the largest relative component-mole change max|Ni -
// Nin| / Nin over cells and components (GetdNmax).
func MaxDeltaN(cells []*Cell) float64 {
	var maxd float64
	for _, c := range cells {
		for i, n := range c.Ni {
			if c.Nin[i] <= 0 {
				continue
			}
			d := math.Abs(n-c.Nin[i]) / c.Nin[i]
			if d > maxd {
				maxd = d
			}
		}
	}
	return maxd
}

// MaxDeltaS returns the largest saturation change across phases and cells
// since the last accepted step (GetdSmax). Saturation isn't itself a
// primary unknown, so this reads Out.S against a caller-supplied snapshot
// taken right after the previous AcceptStep.
func MaxDeltaS(cells []*Cell, lastS [][fluid.MaxPhase]float64) float64 {
	var maxd float64
	for ci, c := range cells {
		for j := 0; j < fluid.MaxPhase; j++ {
			d := math.Abs(c.Out.S[j] - lastS[ci][j])
			if d > maxd {
				maxd = d
			}
		}
	}
	return maxd
}

// MaxDeltaV returns the largest volume-balance error over cells (GetdVmax),
// the same quantity CheckVe reports per cell.
func MaxDeltaV(cells []*Cell) float64 {
	var maxd float64
	for _, c := range cells {
		if v := c.CheckVe(); v > maxd {
			maxd = v
		}
	}
	return maxd
}
