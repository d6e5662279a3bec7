package control

import (
	"testing"

	"github.com/cpmech/gosl/fun/dbf"

	"github.com/reservoirsim/ocpcore/config"
	"github.com/reservoirsim/ocpcore/core/bulk"
	"github.com/reservoirsim/ocpcore/mdl/fluid"
	"github.com/reservoirsim/ocpcore/mdl/relperm"
	"github.com/reservoirsim/ocpcore/mdl/rock"
)

func testTuning() config.Tuning {
	return config.Tuning{
		Day: 0, TimeInit: 1, TimeMax: 30, TimeMin: 0.01,
		MaxIncreFac: 2, MinChopFac: 0.1, CutFacNR: 0.5,
		DPlim: 100, DSlim: 0.2, DNlim: 0.3, DVlim: 0.01,
		MaxNRIter: 10, NRtol: 1e-3, NRdPmax: 500, NRdSmax: 0.5, NRdPmin: 1, NRdSmin: 0.001, Verrmax: 0.01,
	}
}

func TestNewAndApplyStage(t *testing.T) {
	c, err := New([]float64{0, 10, 20}, []config.Tuning{testTuning()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	c.ApplyStage(0)
	if c.EndTime != 10 {
		t.Fatalf("expected EndTime=10, got %g", c.EndTime)
	}
	if c.Time.TimeInit != 1 {
		t.Fatalf("expected TimeInit=1, got %g", c.Time.TimeInit)
	}
}

func TestInitTimeClampsToRemaining(t *testing.T) {
	c, err := New([]float64{0, 0.5, 20}, []config.Tuning{testTuning()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	c.ApplyStage(0)
	if err := c.InitTime(0); err != nil {
		t.Fatalf("InitTime: %v", err)
	}
	if c.CurrentDt != 0.5 {
		t.Fatalf("expected dt clamped to 0.5 remaining, got %g", c.CurrentDt)
	}
}

func TestInitTimeRejectsNegativeStep(t *testing.T) {
	c, _ := New([]float64{5, 10}, []config.Tuning{testTuning()})
	c.ApplyStage(0)
	c.CurrentTime = 20 // already past critical time
	if err := c.InitTime(0); err == nil {
		t.Fatalf("expected error for negative step size")
	}
}

func newTestCell(t *testing.T, p float64) *bulk.Cell {
	t.Helper()
	mm := &fluid.OilWater{}
	mm.Init(dbf.Params{
		&dbf.P{N: "RhoO0", V: 50}, &dbf.P{N: "PO0", V: 3000}, &dbf.P{N: "Co", V: 1e-5}, &dbf.P{N: "MuO", V: 2},
		&dbf.P{N: "RhoW0", V: 62.4}, &dbf.P{N: "PW0", V: 3000}, &dbf.P{N: "Cw", V: 1e-6}, &dbf.P{N: "MuW", V: 0.5},
	})
	flow, _ := relperm.New("linear")
	flow.Init(dbf.Params{&dbf.P{N: "Swco", V: 0.2}})
	var rk rock.Model
	rk.Init(dbf.Params{&dbf.P{N: "Phi0", V: 0.2}, &dbf.P{N: "Pref", V: 3000}, &dbf.P{N: "Cr", V: 1e-6}})
	c := bulk.New(0, 0, 100000, 8000, 60, mm, flow, rk)
	c.P, c.Pn = p, 3000
	c.Ni = []float64{50, 50}
	c.Nin = []float64{50, 50}
	if err := c.Flash(); err != nil {
		t.Fatalf("Flash: %v", err)
	}
	return c
}

func TestCalNextTstepIMPESShrinksOnLargePressureChange(t *testing.T) {
	c, _ := New([]float64{0, 100}, []config.Tuning{testTuning()})
	c.ApplyStage(0)
	c.InitTime(0)
	c.CurrentDt = 1
	cells := []*bulk.Cell{newTestCell(t, 3500)} // dP=500 >> DPlim=100

	c.CalNextTstepIMPES(cells, nil)
	if c.CurrentDt >= 1 {
		t.Fatalf("expected dt to shrink from the large pressure change, got %g", c.CurrentDt)
	}
	if c.CurrentDt < c.Time.TimeMin {
		t.Fatalf("dt should not go below TimeMin, got %g", c.CurrentDt)
	}
}

func TestCalNextTstepFIMGrowsOnFewIterations(t *testing.T) {
	c, _ := New([]float64{0, 100}, []config.Tuning{testTuning()})
	c.ApplyStage(0)
	c.InitTime(0)
	c.CurrentDt = 1
	c.IterNR = 1 // < 3: should grow
	cells := []*bulk.Cell{newTestCell(t, 3000)} // no pressure change

	c.CalNextTstepFIM(cells, nil)
	if c.CurrentDt <= 1 {
		t.Fatalf("expected dt to grow with few Newton iterations, got %g", c.CurrentDt)
	}
}

func TestUpdateItersAccumulates(t *testing.T) {
	c := &Control{}
	c.IterNR = 4
	c.UpdateIters()
	c.IterNR = 6
	c.UpdateIters()
	if c.NumTstep != 2 {
		t.Fatalf("expected NumTstep=2, got %d", c.NumTstep)
	}
	if c.IterNRTotal != 10 {
		t.Fatalf("expected IterNRTotal=10, got %d", c.IterNRTotal)
	}
}
