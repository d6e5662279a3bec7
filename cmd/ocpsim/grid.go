package main

import (
	"github.com/cpmech/gosl/fun/dbf"

	"github.com/reservoirsim/ocpcore/config"
	"github.com/reservoirsim/ocpcore/core/bulk"
	"github.com/reservoirsim/ocpcore/core/connection"
	"github.com/reservoirsim/ocpcore/core/well"
	"github.com/reservoirsim/ocpcore/mdl/fluid"
	"github.com/reservoirsim/ocpcore/mdl/gravity"
	"github.com/reservoirsim/ocpcore/mdl/relperm"
	"github.com/reservoirsim/ocpcore/mdl/rock"
	"github.com/reservoirsim/ocpcore/ocperr"
)

// cellHeight is the placeholder uniform layer thickness used to turn a
// DIMENS k-index into a depth. Grid geometry and connectivity construction
// are a named out-of-scope external collaborator (§1); this builder is the
// minimal concrete stand-in that makes cmd/ocpsim runnable over a
// structured config instead of a real gridder.
const (
	cellHeight = 10.0  // ft
	cellArea   = 2.5e5 // ft2, Dx*Dy placeholder
	baseTrans  = 50.0  // rb.cp/(day.psi) placeholder inter-cell transmissibility
)

func mixtureKind(name string) (fluid.Kind, error) {
	switch name {
	case "water":
		return fluid.KindWater, nil
	case "oilwater":
		return fluid.KindOilWater, nil
	case "deadoilgaswater":
		return fluid.KindDeadOilGasWater, nil
	case "liveoildrygaswater":
		return fluid.KindLiveOilDryGasWater, nil
	case "compositional":
		return fluid.KindCompositional, nil
	case "thermalk":
		return fluid.KindThermalK, nil
	}
	return 0, ocperr.Err("ocpsim: unknown MixtureKind %q", name)
}

// buildReservoir assembles a uniform placeholder grid from sim.Dimens: Nx
// by Ny by Nz cells on a regular lattice, connected to their immediate
// I/J/K neighbors, seeded from sim.Regions[0]'s MixtureModel/relperm and
// equilibrated by gravity.InitSjPc at sim.Equil.
func buildReservoir(sim *config.Simulation) ([]*bulk.Cell, []*connection.Connection, []*well.Well, error) {
	if len(sim.Regions) == 0 {
		return nil, nil, nil, ocperr.Err("ocpsim: at least one region is required")
	}
	region := sim.Regions[0]
	kind, err := mixtureKind(region.MixtureKind)
	if err != nil {
		return nil, nil, nil, err
	}

	numCom := 2
	switch kind {
	case fluid.KindWater:
		numCom = 1
	case fluid.KindDeadOilGasWater, fluid.KindLiveOilDryGasWater:
		numCom = 3
	}

	mm, err := fluid.New(kind, numCom)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := mm.Init(defaultPVTParams(kind)); err != nil {
		return nil, nil, nil, ocperr.Err("ocpsim: init fluid model: %v", err)
	}

	flow, err := relperm.New("linear")
	if err != nil {
		return nil, nil, nil, err
	}
	if err := flow.Init(dbf.Params{&dbf.P{N: "Swco", V: 0.2}}); err != nil {
		return nil, nil, nil, ocperr.Err("ocpsim: init relperm: %v", err)
	}

	var rk rock.Model
	if err := rk.Init(dbf.Params{
		&dbf.P{N: "Phi0", V: 0.2}, &dbf.P{N: "Pref", V: sim.Equil.RefPressure}, &dbf.P{N: "Cr", V: 3e-6},
	}); err != nil {
		return nil, nil, nil, ocperr.Err("ocpsim: init rock: %v", err)
	}

	nx, ny, nz := sim.Dimens.Nx, sim.Dimens.Ny, sim.Dimens.Nz
	cells := make([]*bulk.Cell, 0, nx*ny*nz)
	index := func(i, j, k int) int { return i + nx*(j+ny*k) }

	depths := make([]float64, nz)
	for k := 0; k < nz; k++ {
		depths[k] = sim.Equil.RefDepth + float64(k)*cellHeight
	}
	table, err := gravity.InitSjPc(mm, flow, sim.Equil, depths)
	if err != nil {
		return nil, nil, nil, ocperr.Err("ocpsim: equilibrate: %v", err)
	}

	for k := 0; k < nz; k++ {
		for j := 0; j < ny; j++ {
			for i := 0; i < nx; i++ {
				idx := index(i, j, k)
				depth := depths[k]
				c := bulk.New(idx, region.ID, cellArea*cellHeight, depth, 60, mm, flow, rk)
				c.P = table.Po[k]
				c.Ni = initialMoles(numCom, table.Sw[k], table.Sg[k])
				if err := c.Flash(); err != nil {
					return nil, nil, nil, ocperr.Err("ocpsim: initial flash at cell %d: %v", idx, err)
				}
				c.AcceptStep()
				cells = append(cells, c)
			}
		}
	}

	var conns []*connection.Connection
	for k := 0; k < nz; k++ {
		for j := 0; j < ny; j++ {
			for i := 0; i < nx; i++ {
				idx := index(i, j, k)
				if i+1 < nx {
					conns = append(conns, &connection.Connection{CellI: cells[idx], CellJ: cells[index(i+1, j, k)], Trans: baseTrans})
				}
				if j+1 < ny {
					conns = append(conns, &connection.Connection{CellI: cells[idx], CellJ: cells[index(i, j+1, k)], Trans: baseTrans})
				}
				if k+1 < nz {
					conns = append(conns, &connection.Connection{CellI: cells[idx], CellJ: cells[index(i, j, k+1)], Trans: baseTrans})
				}
			}
		}
	}

	wells, err := buildWells(sim, index)
	if err != nil {
		return nil, nil, nil, err
	}
	return cells, conns, wells, nil
}

// initialMoles turns an equilibrium saturation guess into a plausible
// starting component-mole split (an arbitrary but physically ordered
// placeholder, refined by the first Flash call).
func initialMoles(numCom int, sw, sg float64) []float64 {
	ni := make([]float64, numCom)
	switch numCom {
	case 1:
		ni[0] = 100
	case 2:
		ni[0] = 100 * (1 - sw)
		ni[1] = 100 * sw
	default:
		so := 1 - sw - sg
		ni[fluid.PhaseOil] = 100 * so
		ni[fluid.PhaseGas] = 100 * sg
		ni[numCom-1] = 100 * sw
	}
	return ni
}

func defaultPVTParams(kind fluid.Kind) dbf.Params {
	base := dbf.Params{
		&dbf.P{N: "RhoW0", V: 62.4}, &dbf.P{N: "PW0", V: 3000}, &dbf.P{N: "Cw", V: 3e-6}, &dbf.P{N: "MuW", V: 0.5},
	}
	switch kind {
	case fluid.KindWater:
		return base
	default:
		return append(dbf.Params{
			&dbf.P{N: "RhoO0", V: 50}, &dbf.P{N: "PO0", V: 3000}, &dbf.P{N: "Co", V: 1e-5}, &dbf.P{N: "MuO", V: 2},
		}, base...)
	}
}

func buildWells(sim *config.Simulation, index func(i, j, k int) int) ([]*well.Well, error) {
	perfsByWell := make(map[string][]config.CompDat)
	for _, p := range sim.Perfs {
		perfsByWell[p.Well] = append(perfsByWell[p.Well], p)
	}
	ctrlByWell := make(map[string]config.WellControl)
	for _, c := range sim.Controls {
		ctrlByWell[c.Well] = c // last control record active at t=0 wins, day-ordering applied by a real scheduler
	}

	var wells []*well.Well
	for _, spec := range sim.Wells {
		perfs := perfsByWell[spec.Name]
		if len(perfs) == 0 {
			continue
		}
		wp := make([]well.Perforation, len(perfs))
		for i, p := range perfs {
			wp[i] = well.Perforation{State: true, CellIndex: index(p.I, p.J, p.K), WI: p.WI, Multiplier: p.Multiplier}
		}

		ctrl, ok := ctrlByWell[spec.Name]
		mode := well.ModeBHP
		if ok && ctrl.RateMode {
			mode = well.ModeRate
		}
		ft := well.FluidOil
		if ok {
			switch ctrl.FluidType {
			case "water":
				ft = well.FluidWater
			case "gas":
				ft = well.FluidGas
			}
		}
		w, err := well.New(spec.Name, ok && ctrl.Injector, ft, mode, spec.RefDepth, wp)
		if err != nil {
			return nil, err
		}
		if ok {
			w.RateTarg = ctrl.RateTarget
			w.BHPLimit = ctrl.BHPLimit
			w.BHP = ctrl.BHPLimit
		}
		wells = append(wells, w)
	}
	return wells, nil
}
