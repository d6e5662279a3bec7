package fluid

import (
	"testing"

	"github.com/cpmech/gosl/fun/dbf"
)

func near(a, b, tol float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= tol
}

func TestWaterFlash(t *testing.T) {
	w := &Water{R0: 62.4, P0: 3000, C: 1e-6, Mu0: 0.5}
	var out FlashOutput
	out.Init(w.NumCom())
	if err := w.FlashByMoles(4000, 60, []float64{10}, 0, &out); err != nil {
		t.Fatalf("flash: %v", err)
	}
	if !out.PhaseExist[PhaseWater] {
		t.Fatal("water phase should exist")
	}
	if !near(out.S[PhaseWater], 1, 1e-9) {
		t.Fatalf("expected Sw=1, got %g", out.S[PhaseWater])
	}
	wantRho := 62.4 + 1e-6*1000
	if !near(out.Rho[PhaseWater], wantRho, 1e-9) {
		t.Fatalf("rho = %g, want %g", out.Rho[PhaseWater], wantRho)
	}
}

func TestOilWaterFlashSaturations(t *testing.T) {
	ow := &OilWater{RhoO0: 50, PO0: 3000, Co: 1e-5, MuO: 2, RhoW0: 62.4, PW0: 3000, Cw: 1e-6, MuW: 0.5}
	var out FlashOutput
	out.Init(ow.NumCom())
	if err := ow.FlashByMoles(3000, 60, []float64{30, 70}, 0, &out); err != nil {
		t.Fatalf("flash: %v", err)
	}
	if !out.PhaseExist[PhaseOil] || !out.PhaseExist[PhaseWater] {
		t.Fatal("both phases should exist")
	}
	if !near(out.S[PhaseOil]+out.S[PhaseWater], 1, 1e-9) {
		t.Fatalf("saturations should sum to 1, got %g", out.S[PhaseOil]+out.S[PhaseWater])
	}
}

func TestDeadOilGasWaterSkipsAbsentPhase(t *testing.T) {
	m := &DeadOilGasWater{}
	m.Init(dogwTestPrms())
	var out FlashOutput
	out.Init(m.NumCom())
	if err := m.FlashByMoles(3000, 60, []float64{40, 0, 20}, 0, &out); err != nil {
		t.Fatalf("flash: %v", err)
	}
	if out.PhaseExist[PhaseGas] {
		t.Fatal("gas phase should not exist with zero gas moles")
	}
	if out.S[PhaseGas] != 0 {
		t.Fatalf("gas saturation should be 0, got %g", out.S[PhaseGas])
	}
}

func TestLiveOilDryGasWaterSaturatedSplit(t *testing.T) {
	m := &LiveOilDryGasWater{}
	m.Init(odgwTestPrms())
	var out FlashOutput
	out.Init(m.NumCom())
	// More gas than the oil can dissolve at this pressure: a free gas phase
	// must appear.
	if err := m.FlashByMoles(3000, 60, []float64{40, 100000, 20}, 0, &out); err != nil {
		t.Fatalf("flash: %v", err)
	}
	if !out.PhaseExist[PhaseGas] {
		t.Fatal("expected a free gas phase to appear when GOR exceeds Rs")
	}
}

func TestLiveOilDryGasWaterUndersaturated(t *testing.T) {
	m := &LiveOilDryGasWater{}
	m.Init(odgwTestPrms())
	var out FlashOutput
	out.Init(m.NumCom())
	// Very little gas: should dissolve entirely, no free gas phase.
	if err := m.FlashByMoles(3000, 60, []float64{40, 1, 20}, 0, &out); err != nil {
		t.Fatalf("flash: %v", err)
	}
	if out.PhaseExist[PhaseGas] {
		t.Fatal("did not expect a free gas phase when GOR is below Rs")
	}
}

func TestCompositionalRegistryAndSplit(t *testing.T) {
	model, err := New(KindCompositional, 2)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	c := model.(*Compositional)
	c.Tc = []float64{343, 1037}   // methane, n-decane (R)
	c.Pc = []float64{667, 305}    // psia
	c.Acentric = []float64{0.008, 0.49}
	c.MW = []float64{16.04, 142.3}

	var out FlashOutput
	out.Init(c.NumCom())
	if err := c.FlashByMoles(1000, 600, []float64{50, 50}, 0, &out); err != nil {
		t.Fatalf("flash: %v", err)
	}
	if out.Vf <= 0 {
		t.Fatal("total fluid volume should be positive")
	}
}

func TestValidateNiRejectsNegative(t *testing.T) {
	if err := validateNi([]float64{-1, 2}); err == nil {
		t.Fatal("expected an error for negative component moles")
	}
}

func dogwTestPrms() dbf.Params {
	return dbf.Params{
		&dbf.P{N: "RhoOsc", V: 50}, &dbf.P{N: "RhoGsc", V: 0.06}, &dbf.P{N: "RhoWsc", V: 62.4},
		&dbf.P{N: "Bo0", V: 1.2}, &dbf.P{N: "CO", V: 1e-5}, &dbf.P{N: "PrefO", V: 3000},
		&dbf.P{N: "Bw0", V: 1.0}, &dbf.P{N: "Cw", V: 1e-6}, &dbf.P{N: "PrefW", V: 3000},
		&dbf.P{N: "MuO", V: 2}, &dbf.P{N: "MuW", V: 0.5},
		&dbf.P{N: "BgRef", V: 0.01}, &dbf.P{N: "PrefG", V: 3000}, &dbf.P{N: "MuGRef", V: 0.02},
	}
}

func odgwTestPrms() dbf.Params {
	return dbf.Params{
		&dbf.P{N: "RhoOsc", V: 50}, &dbf.P{N: "RhoGsc", V: 0.06}, &dbf.P{N: "RhoWsc", V: 62.4},
		&dbf.P{N: "Bo0", V: 1.2}, &dbf.P{N: "CO", V: 1e-5}, &dbf.P{N: "PrefO", V: 3000},
		&dbf.P{N: "Bw0", V: 1.0}, &dbf.P{N: "Cw", V: 1e-6}, &dbf.P{N: "PrefW", V: 3000},
		&dbf.P{N: "MuO", V: 2}, &dbf.P{N: "MuW", V: 0.5},
		&dbf.P{N: "BgRef", V: 0.01}, &dbf.P{N: "PrefG", V: 3000}, &dbf.P{N: "MuGRef", V: 0.02},
		&dbf.P{N: "RsSlope", V: 0.3}, &dbf.P{N: "Pb", V: 3500}, &dbf.P{N: "CRs", V: 0.0005},
	}
}
