package gravity

import (
	"testing"

	"github.com/cpmech/gosl/fun/dbf"

	"github.com/reservoirsim/ocpcore/config"
	"github.com/reservoirsim/ocpcore/mdl/fluid"
	"github.com/reservoirsim/ocpcore/mdl/relperm"
)

func TestInitSjPcOilWaterColumn(t *testing.T) {
	mm := &fluid.OilWater{}
	mm.Init(dbf.Params{
		&dbf.P{N: "RhoO0", V: 50}, &dbf.P{N: "PO0", V: 3000}, &dbf.P{N: "Co", V: 1e-5}, &dbf.P{N: "MuO", V: 2},
		&dbf.P{N: "RhoW0", V: 62.4}, &dbf.P{N: "PW0", V: 3000}, &dbf.P{N: "Cw", V: 1e-6}, &dbf.P{N: "MuW", V: 0.5},
	})

	flow, err := relperm.New("corey")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := flow.Init(dbf.Params{
		&dbf.P{N: "Swco", V: 0.2}, &dbf.P{N: "Sorw", V: 0.25}, &dbf.P{N: "Sgc", V: 0},
		&dbf.P{N: "KrwMax", V: 0.4}, &dbf.P{N: "KroMax", V: 1}, &dbf.P{N: "KrgMax", V: 1},
		&dbf.P{N: "Nw", V: 2}, &dbf.P{N: "Now", V: 2}, &dbf.P{N: "Ng", V: 2}, &dbf.P{N: "Nog", V: 2},
		&dbf.P{N: "PcowMax", V: 20}, &dbf.P{N: "PcgoMax", V: 10}, &dbf.P{N: "NPc", V: 2},
	}); err != nil {
		t.Fatalf("flow.Init: %v", err)
	}

	eq := config.Equil{RefDepth: 8000, RefPressure: 3000, OWC: 8100, PcOWC: 0}
	depths := []float64{7900, 8000, 8050, 8100, 8150}

	tbl, err := InitSjPc(mm, flow, eq, depths)
	if err != nil {
		t.Fatalf("InitSjPc: %v", err)
	}
	if len(tbl.Po) != len(depths) {
		t.Fatalf("expected %d pressures, got %d", len(depths), len(tbl.Po))
	}
	if tbl.Sw[len(depths)-1] != 1 {
		t.Fatalf("below OWC, Sw should be 1, got %g", tbl.Sw[len(depths)-1])
	}
	for i := 1; i < len(tbl.Po); i++ {
		if tbl.Po[i] <= tbl.Po[i-1] {
			t.Fatalf("pressure should increase with depth: Po[%d]=%g <= Po[%d]=%g", i, tbl.Po[i], i-1, tbl.Po[i-1])
		}
	}
}
