package connection

import (
	"testing"

	"github.com/cpmech/gosl/fun/dbf"

	"github.com/reservoirsim/ocpcore/core/bulk"
	"github.com/reservoirsim/ocpcore/mdl/fluid"
	"github.com/reservoirsim/ocpcore/mdl/relperm"
	"github.com/reservoirsim/ocpcore/mdl/rock"
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
	c := bulk.New(idx, 0, 100000, depth, 60, mm, flow, rk)
	c.P = p
	c.Ni = []float64{50, 50}
	if err := c.Flash(); err != nil {
		t.Fatalf("Flash: %v", err)
	}
	return c
}

func TestComponentFluxFlowsDownGradient(t *testing.T) {
	ci := newTestCell(t, 0, 3100, 8000)
	cj := newTestCell(t, 1, 3000, 8000)
	conn := &Connection{CellI: ci, CellJ: cj, Trans: 10}

	krI, err := ci.RelPerm()
	if err != nil {
		t.Fatalf("RelPerm: %v", err)
	}
	krJ, err := cj.RelPerm()
	if err != nil {
		t.Fatalf("RelPerm: %v", err)
	}

	flux := conn.ComponentFlux(krI, krJ)
	for i, q := range flux {
		if q < 0 {
			t.Fatalf("component %d flux should flow from the higher-pressure cell (I->J positive), got %g", i, q)
		}
	}
}

func TestCFLNonNegative(t *testing.T) {
	ci := newTestCell(t, 0, 3100, 8000)
	cj := newTestCell(t, 1, 3000, 8000)
	conn := &Connection{CellI: ci, CellJ: cj, Trans: 10}
	krI, _ := ci.RelPerm()
	krJ, _ := cj.RelPerm()
	cfl := conn.CFL(fluid.PhaseOil, 1, krI, krJ)
	if cfl < 0 {
		t.Fatalf("CFL should be non-negative, got %g", cfl)
	}
}
