package aim

import (
	"testing"

	"github.com/cpmech/gosl/fun/dbf"

	"github.com/reservoirsim/ocpcore/config"
	"github.com/reservoirsim/ocpcore/core/bulk"
	"github.com/reservoirsim/ocpcore/core/connection"
	"github.com/reservoirsim/ocpcore/core/control"
	"github.com/reservoirsim/ocpcore/core/linsys"
	"github.com/reservoirsim/ocpcore/core/well"
	"github.com/reservoirsim/ocpcore/mdl/fluid"
	"github.com/reservoirsim/ocpcore/mdl/relperm"
	"github.com/reservoirsim/ocpcore/mdl/rock"
	"github.com/reservoirsim/ocpcore/reservoir"
)

func newTestCell(t *testing.T, idx int, p, depth float64) *bulk.Cell {
	t.Helper()
	mm := &fluid.OilWater{}
	if err := mm.Init(dbf.Params{
		&dbf.P{N: "RhoO0", V: 50}, &dbf.P{N: "PO0", V: 3000}, &dbf.P{N: "Co", V: 1e-5}, &dbf.P{N: "MuO", V: 2},
		&dbf.P{N: "RhoW0", V: 62.4}, &dbf.P{N: "PW0", V: 3000}, &dbf.P{N: "Cw", V: 1e-6}, &dbf.P{N: "MuW", V: 0.5},
	}); err != nil {
		t.Fatalf("mm.Init: %v", err)
	}
	flow, _ := relperm.New("linear")
	if err := flow.Init(dbf.Params{&dbf.P{N: "Swco", V: 0.2}}); err != nil {
		t.Fatalf("flow.Init: %v", err)
	}
	var rk rock.Model
	if err := rk.Init(dbf.Params{&dbf.P{N: "Phi0", V: 0.2}, &dbf.P{N: "Pref", V: 3000}, &dbf.P{N: "Cr", V: 1e-6}}); err != nil {
		t.Fatalf("rk.Init: %v", err)
	}
	c := bulk.New(idx, 0, 100000, depth, 60, mm, flow, rk)
	c.P = p
	c.Ni = []float64{50, 50}
	if err := c.Flash(); err != nil {
		t.Fatalf("Flash: %v", err)
	}
	c.AcceptStep()
	return c
}

func testTuning() config.Tuning {
	return config.Tuning{
		Day: 0, TimeInit: 1, TimeMax: 31, TimeMin: 0.01, MaxIncreFac: 2, MinChopFac: 0.5, CutFacNR: 0.5,
		DPlim: 200, DSlim: 0.2, DNlim: 0.3, DVlim: 0.001,
		NRtol: 1e-2, NRdPmax: 500, NRdSmax: 0.5, NRdPmin: 1, NRdSmin: 0.001, Verrmax: 0.05,
		MaxNRIter: 12,
	}
}

func newTestControl(t *testing.T) *control.Control {
	t.Helper()
	ctrl, err := control.New([]float64{0, 365}, []config.Tuning{testTuning()})
	if err != nil {
		t.Fatalf("control.New: %v", err)
	}
	ctrl.ApplyStage(0)
	if err := ctrl.InitTime(0); err != nil {
		t.Fatalf("InitTime: %v", err)
	}
	return ctrl
}

func threeCellChain(t *testing.T) (*reservoir.Reservoir, *well.Well) {
	c0 := newTestCell(t, 0, 3000, 8000)
	c1 := newTestCell(t, 1, 3000, 8000)
	c2 := newTestCell(t, 2, 3000, 8000)
	conns := []*connection.Connection{
		{CellI: c0, CellJ: c1, Trans: 5},
		{CellI: c1, CellJ: c2, Trans: 5},
	}
	w, err := well.New("P1", false, well.FluidOil, well.ModeBHP, 8000, []well.Perforation{
		{State: true, CellIndex: 0, WI: 1, Multiplier: 1},
	})
	if err != nil {
		t.Fatalf("well.New: %v", err)
	}
	w.BHP = 2900
	rs, err := reservoir.New([]*bulk.Cell{c0, c1, c2}, conns, []*well.Well{w}, nil, nil)
	if err != nil {
		t.Fatalf("reservoir.New: %v", err)
	}
	return rs, w
}

func TestComputeWellBulkIncludesPerforatedAndNeighborCells(t *testing.T) {
	rs, _ := threeCellChain(t)
	wb := computeWellBulk(rs)
	if !wb[0] || !wb[1] {
		t.Fatalf("expected cells 0 and 1 in WellBulk, got %v", wb)
	}
	if wb[2] {
		t.Fatalf("expected cell 2 outside WellBulk, got %v", wb)
	}
}

func TestGoOneStepRunsPredictorAndLocalCorrection(t *testing.T) {
	rs, _ := threeCellChain(t)
	ctrl := newTestControl(t)
	ls := linsys.New(3, 4)

	d := &Driver{}
	if err := d.Setup(rs); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if err := d.GoOneStep(rs, ctrl, ls); err != nil {
		t.Fatalf("GoOneStep: %v", err)
	}
	if ctrl.NumTstep != 1 {
		t.Fatalf("expected NumTstep=1, got %d", ctrl.NumTstep)
	}
}

func TestGoOneStepAbortsBelowTimeMin(t *testing.T) {
	rs, _ := threeCellChain(t)
	ctrl := newTestControl(t)
	ctrl.CurrentDt = ctrl.Time.TimeMin / 2
	ls := linsys.New(3, 4)

	d := &Driver{}
	if err := d.Setup(rs); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if err := d.GoOneStep(rs, ctrl, ls); err == nil {
		t.Fatalf("expected error for dt below TimeMin")
	}
}
