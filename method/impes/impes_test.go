package impes

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
		NRtol: 1e-3, NRdPmax: 200, NRdSmax: 0.2, NRdPmin: 1, NRdSmin: 0.001, Verrmax: 0.01,
		MaxNRIter: 10,
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

func TestGoOneStepCommitsStepWithNonNegativeFOPR(t *testing.T) {
	producer := newTestCell(t, 0, 3000, 8000)
	injector := newTestCell(t, 1, 3000, 8000)
	conn := &connection.Connection{CellI: producer, CellJ: injector, Trans: 5}

	prod, err := well.New("P1", false, well.FluidOil, well.ModeBHP, 8000, []well.Perforation{
		{State: true, CellIndex: 0, WI: 2, Multiplier: 1},
	})
	if err != nil {
		t.Fatalf("well.New producer: %v", err)
	}
	prod.BHP = 2500

	inj, err := well.New("I1", true, well.FluidWater, well.ModeBHP, 8000, []well.Perforation{
		{State: true, CellIndex: 1, WI: 2, Multiplier: 1},
	})
	if err != nil {
		t.Fatalf("well.New injector: %v", err)
	}
	inj.BHP = 3500
	inj.Perfs[0].SetInjectionXi(injector.Out.Xi[fluid.PhaseWater])

	rs, err := reservoir.New(
		[]*bulk.Cell{producer, injector},
		[]*connection.Connection{conn},
		[]*well.Well{prod, inj},
		nil, nil,
	)
	if err != nil {
		t.Fatalf("reservoir.New: %v", err)
	}

	ctrl := newTestControl(t)
	ls := linsys.New(2, 4)

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
	if rs.Field.FOPR < 0 {
		t.Fatalf("expected non-negative FOPR, got %g", rs.Field.FOPR)
	}
}

func TestGoOneStepAbortsBelowTimeMin(t *testing.T) {
	c := newTestCell(t, 0, 3000, 8000)
	rs, err := reservoir.New([]*bulk.Cell{c}, nil, nil, nil, nil)
	if err != nil {
		t.Fatalf("reservoir.New: %v", err)
	}
	ctrl := newTestControl(t)
	ctrl.CurrentDt = ctrl.Time.TimeMin / 2
	ls := linsys.New(1, 2)

	d := &Driver{}
	if err := d.Setup(rs); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if err := d.GoOneStep(rs, ctrl, ls); err == nil {
		t.Fatalf("expected error for dt below TimeMin")
	}
}
