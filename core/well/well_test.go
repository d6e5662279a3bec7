package well

import (
	"testing"

	"github.com/cpmech/gosl/fun/dbf"

	"github.com/reservoirsim/ocpcore/core/bulk"
	"github.com/reservoirsim/ocpcore/mdl/fluid"
	"github.com/reservoirsim/ocpcore/mdl/relperm"
	"github.com/reservoirsim/ocpcore/mdl/rock"
)

func newTestCells(t *testing.T) []*bulk.Cell {
	t.Helper()
	mm := &fluid.OilWater{}
	if err := mm.Init(dbf.Params{
		&dbf.P{N: "RhoO0", V: 50}, &dbf.P{N: "PO0", V: 3000}, &dbf.P{N: "Co", V: 1e-5}, &dbf.P{N: "MuO", V: 2},
		&dbf.P{N: "RhoW0", V: 62.4}, &dbf.P{N: "PW0", V: 3000}, &dbf.P{N: "Cw", V: 1e-6}, &dbf.P{N: "MuW", V: 0.5},
	}); err != nil {
		t.Fatalf("mm.Init: %v", err)
	}
	flow, err := relperm.New("linear")
	if err != nil {
		t.Fatalf("relperm.New: %v", err)
	}
	if err := flow.Init(dbf.Params{&dbf.P{N: "Swco", V: 0.2}}); err != nil {
		t.Fatalf("flow.Init: %v", err)
	}
	var rk rock.Model
	if err := rk.Init(dbf.Params{&dbf.P{N: "Phi0", V: 0.2}, &dbf.P{N: "Pref", V: 3000}, &dbf.P{N: "Cr", V: 1e-6}}); err != nil {
		t.Fatalf("rk.Init: %v", err)
	}
	c := bulk.New(0, 0, 100000, 8000, 60, mm, flow, rk)
	c.P = 3000
	c.Ni = []float64{50, 50}
	if err := c.Flash(); err != nil {
		t.Fatalf("Flash: %v", err)
	}
	return []*bulk.Cell{c}
}

func TestProducerFlowsFromCellToWell(t *testing.T) {
	cells := newTestCells(t)
	w, err := New("P1", false, FluidOil, ModeBHP, 8000, []Perforation{
		{State: true, CellIndex: 0, WI: 1, Multiplier: 1},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	w.BHP = 2900 // below cell pressure: producer should flow
	w.CalTrans()
	w.CaldG(cells, 50)
	w.CalFlux(cells, 2)

	total := 0.0
	for _, q := range w.Perfs[0].Qi {
		total += q
	}
	if total >= 0 {
		t.Fatalf("producer perforation should withdraw moles (negative Qi sum), got %g", total)
	}
}

func TestInjectorFlowsFromWellToCell(t *testing.T) {
	cells := newTestCells(t)
	w, err := New("I1", true, FluidWater, ModeBHP, 8000, []Perforation{
		{State: true, CellIndex: 0, WI: 1, Multiplier: 1},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	w.BHP = 3200 // above cell pressure: injector should inject
	w.Perfs[0].SetInjectionXi(1.2)
	w.CalTrans()
	w.CaldG(cells, 62.4)
	w.CalFlux(cells, 2)

	waterIdx := 1 // numCom=2 OilWater: 0=oil, 1=water
	if w.Perfs[0].Qi[waterIdx] <= 0 {
		t.Fatalf("injector perforation should inject water moles, got %g", w.Perfs[0].Qi[waterIdx])
	}
}

func TestCheckPDetectsCrossflow(t *testing.T) {
	cells := newTestCells(t)
	w, err := New("P1", false, FluidOil, ModeBHP, 8000, []Perforation{
		{State: true, CellIndex: 0, P: 3500}, // producer perf pressure above cell: crossflow
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if res := w.CheckP(cells); res != CheckModeSwitch {
		t.Fatalf("expected CheckModeSwitch, got %v", res)
	}
	if w.Perfs[0].State {
		t.Fatalf("crossflowing perforation should be closed")
	}
}

func TestCheckPNegativePressure(t *testing.T) {
	cells := newTestCells(t)
	w, err := New("P1", false, FluidOil, ModeBHP, 8000, []Perforation{
		{State: true, CellIndex: 0, P: -10},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if res := w.CheckP(cells); res != CheckNegativeP {
		t.Fatalf("expected CheckNegativeP, got %v", res)
	}
}

func TestCheckOptModeSwitchesProducerToBHP(t *testing.T) {
	w, err := New("P1", false, FluidOil, ModeRate, 8000, []Perforation{{State: true, CellIndex: 0, WI: 1, Multiplier: 1}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	w.BHPLimit = 1000
	w.BHP = 900 // below minimum: should switch to BHP control
	if !w.CheckOptMode() {
		t.Fatalf("expected mode switch")
	}
	if w.Mode != ModeBHP || w.BHP != 1000 {
		t.Fatalf("expected BHP control pinned at limit, got mode=%v bhp=%g", w.Mode, w.BHP)
	}
}

func TestNewRejectsEmptyPerforations(t *testing.T) {
	if _, err := New("P1", false, FluidOil, ModeBHP, 8000, nil); err == nil {
		t.Fatalf("expected error for well with no perforations")
	}
}
