package out

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cpmech/gosl/fun/dbf"

	"github.com/reservoirsim/ocpcore/core/bulk"
	"github.com/reservoirsim/ocpcore/core/well"
	"github.com/reservoirsim/ocpcore/mdl/fluid"
	"github.com/reservoirsim/ocpcore/mdl/relperm"
	"github.com/reservoirsim/ocpcore/mdl/rock"
	"github.com/reservoirsim/ocpcore/reservoir"
)

func newTestReservoir(t *testing.T) *reservoir.Reservoir {
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
	c := bulk.New(0, 0, 100000, 8000, 60, mm, flow, rk)
	c.P = 3000
	c.Ni = []float64{50, 50}
	if err := c.Flash(); err != nil {
		t.Fatalf("Flash: %v", err)
	}

	w, err := well.New("P1", false, well.FluidOil, well.ModeBHP, 8000, []well.Perforation{
		{State: true, CellIndex: 0, WI: 1, Multiplier: 1},
	})
	if err != nil {
		t.Fatalf("well.New: %v", err)
	}
	rs, err := reservoir.New([]*bulk.Cell{c}, nil, []*well.Well{w}, nil, nil)
	if err != nil {
		t.Fatalf("reservoir.New: %v", err)
	}
	rs.CalIPRT(1)
	return rs
}

func TestSummaryWriterWritesHeaderAndRow(t *testing.T) {
	rs := newTestReservoir(t)
	path := filepath.Join(t.TempDir(), "SUMMARY.out")
	w, err := NewSummaryWriter(path, []string{"WOPR", "WBHP"}, []string{"P1"}, []string{"BPR", "SOIL"}, []CellRef{{I: 1, J: 1, K: 1, Index: 0}})
	if err != nil {
		t.Fatalf("NewSummaryWriter: %v", err)
	}
	if err := w.AppendRow(1.0, rs); err != nil {
		t.Fatalf("AppendRow: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(data) == 0 {
		t.Fatalf("expected non-empty SUMMARY.out")
	}
}

func TestFastReviewWritesRow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "FastReview.out")
	fr, err := NewFastReview(path)
	if err != nil {
		t.Fatalf("NewFastReview: %v", err)
	}
	if err := fr.AppendRow(1, 0.5, 10, 0.001, 0.02, 0.03, 0.9); err != nil {
		t.Fatalf("AppendRow: %v", err)
	}
	fr.Close()
	if fi, err := os.Stat(path); err != nil || fi.Size() == 0 {
		t.Fatalf("expected non-empty FastReview.out")
	}
}

func TestRPTWriterWritesSnapshot(t *testing.T) {
	rs := newTestReservoir(t)
	path := filepath.Join(t.TempDir(), "RPT.out")
	r, err := NewRPTWriter(path, []string{"PRESSURE", "SOIL", "KRO"})
	if err != nil {
		t.Fatalf("NewRPTWriter: %v", err)
	}
	if err := r.WriteSnapshot(1.0, rs); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}
	r.Close()
	if fi, err := os.Stat(path); err != nil || fi.Size() == 0 {
		t.Fatalf("expected non-empty RPT.out")
	}
}

func TestVTKWriterRejectsMismatchedTopology(t *testing.T) {
	topo := Topology{Points: [][3]float64{{0, 0, 0}}, CellVerts: [][]int{{0}}}
	if _, err := NewVTKWriter(t.TempDir(), topo, 2); err == nil {
		t.Fatalf("expected error for topology/cell-count mismatch")
	}
}

func TestVTKWriterWritesPeriod(t *testing.T) {
	topo := Topology{
		Points:    [][3]float64{{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0}, {0, 0, 1}, {1, 0, 1}, {1, 1, 1}, {0, 1, 1}},
		CellVerts: [][]int{{0, 1, 2, 3, 4, 5, 6, 7}},
	}
	dir := t.TempDir()
	v, err := NewVTKWriter(dir, topo, 1)
	if err != nil {
		t.Fatalf("NewVTKWriter: %v", err)
	}
	if err := v.WritePeriod(1, map[string][]float64{"PRESSURE": {3000}}, map[int]bool{0: true}); err != nil {
		t.Fatalf("WritePeriod: %v", err)
	}
	if fi, err := os.Stat(filepath.Join(dir, "grid1.vtk")); err != nil || fi.Size() == 0 {
		t.Fatalf("expected non-empty grid1.vtk")
	}
}
