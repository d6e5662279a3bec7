package reservoir

import (
	"testing"

	"github.com/cpmech/gosl/fun/dbf"

	"github.com/reservoirsim/ocpcore/core/bulk"
	"github.com/reservoirsim/ocpcore/core/connection"
	"github.com/reservoirsim/ocpcore/core/well"
	"github.com/reservoirsim/ocpcore/mdl/fluid"
	"github.com/reservoirsim/ocpcore/mdl/relperm"
	"github.com/reservoirsim/ocpcore/mdl/rock"
)

func newCell(t *testing.T, idx int, p, depth float64) *bulk.Cell {
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
	return c
}

func TestNewRejectsOutOfRangePerforation(t *testing.T) {
	cells := []*bulk.Cell{newCell(t, 0, 3000, 8000)}
	w, err := well.New("P1", false, well.FluidOil, well.ModeBHP, 8000, []well.Perforation{{State: true, CellIndex: 5}})
	if err != nil {
		t.Fatalf("well.New: %v", err)
	}
	if _, err := New(cells, nil, []*well.Well{w}, nil, nil); err == nil {
		t.Fatalf("expected error for out-of-range perforation cell index")
	}
}

func TestCalIPRTAccumulatesFieldRates(t *testing.T) {
	cells := []*bulk.Cell{newCell(t, 0, 3000, 8000)}
	w, err := well.New("P1", false, well.FluidOil, well.ModeBHP, 8000, []well.Perforation{
		{State: true, CellIndex: 0, WI: 1, Multiplier: 1},
	})
	if err != nil {
		t.Fatalf("well.New: %v", err)
	}
	w.BHP = 2500
	w.CalTrans()
	w.CaldG(cells, 50)
	w.CalFlux(cells, 2)

	r, err := New(cells, nil, []*well.Well{w}, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	r.CalIPRT(1.0)
	if r.Field.FOPR <= 0 && r.Field.FWPR <= 0 {
		t.Fatalf("expected nonzero production rate, got FOPR=%g FWPR=%g", r.Field.FOPR, r.Field.FWPR)
	}
}

func TestMaxCFLNonNegative(t *testing.T) {
	ci := newCell(t, 0, 3100, 8000)
	cj := newCell(t, 1, 3000, 8000)
	conn := &connection.Connection{CellI: ci, CellJ: cj, Trans: 10}
	r, err := New([]*bulk.Cell{ci, cj}, []*connection.Connection{conn}, nil, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c := r.MaxCFL(1); c < 0 {
		t.Fatalf("expected non-negative CFL, got %g", c)
	}
}

func TestAcceptAndRejectAll(t *testing.T) {
	c := newCell(t, 0, 3100, 8000)
	r, err := New([]*bulk.Cell{c}, nil, nil, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	r.AcceptAll()
	c.P = 9999
	r.RejectAll()
	if c.P != 3100 {
		t.Fatalf("expected P restored to 3100, got %g", c.P)
	}
}
