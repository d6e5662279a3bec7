package relperm

import (
	"math"

	"github.com/cpmech/gosl/fun/dbf"
)

// Corey implements the Corey (1954) power-law relative permeability
// correlation plus a power-law capillary-pressure correlation, the most
// common closed-form substitute for a SWOF/SGOF table.
type Corey struct {
	SwcoV, SorwV, SgcV, SorgV float64
	KrwMax, KroMax, KrgMax    float64
	Nw, Now, Ng, Nog          float64
	PcowMax, PcgoMax, NPc     float64
}

func init() {
	allocators["corey"] = func() FlowUnit { return new(Corey) }
}

func (o *Corey) Init(prms dbf.Params) error {
	o.Nw, o.Now, o.Ng, o.Nog = 2, 2, 2, 2
	o.KrwMax, o.KroMax, o.KrgMax = 1, 1, 1
	o.NPc = 2
	for _, p := range prms {
		switch p.N {
		case "Swco":
			o.SwcoV = p.V
		case "Sorw":
			o.SorwV = p.V
		case "Sgc":
			o.SgcV = p.V
		case "Sorg":
			o.SorgV = p.V
		case "KrwMax":
			o.KrwMax = p.V
		case "KroMax":
			o.KroMax = p.V
		case "KrgMax":
			o.KrgMax = p.V
		case "Nw":
			o.Nw = p.V
		case "Now":
			o.Now = p.V
		case "Ng":
			o.Ng = p.V
		case "Nog":
			o.Nog = p.V
		case "PcowMax":
			o.PcowMax = p.V
		case "PcgoMax":
			o.PcgoMax = p.V
		case "NPc":
			o.NPc = p.V
		}
	}
	return nil
}

func (o Corey) GetPrms(example bool) dbf.Params {
	return dbf.Params{
		&dbf.P{N: "Swco", V: o.SwcoV},
		&dbf.P{N: "Sorw", V: o.SorwV},
		&dbf.P{N: "Sgc", V: o.SgcV},
		&dbf.P{N: "Sorg", V: o.SorgV},
		&dbf.P{N: "KrwMax", V: o.KrwMax},
		&dbf.P{N: "KroMax", V: o.KroMax},
		&dbf.P{N: "KrgMax", V: o.KrgMax},
		&dbf.P{N: "Nw", V: o.Nw},
		&dbf.P{N: "Now", V: o.Now},
		&dbf.P{N: "Ng", V: o.Ng},
		&dbf.P{N: "Nog", V: o.Nog},
		&dbf.P{N: "PcowMax", V: o.PcowMax},
		&dbf.P{N: "PcgoMax", V: o.PcgoMax},
		&dbf.P{N: "NPc", V: o.NPc},
	}
}

func (o Corey) Swco() float64 { return o.SwcoV }
func (o Corey) Sorw() float64 { return o.SorwV }
func (o Corey) Sgc() float64  { return o.SgcV }

func (o Corey) Eval(Sw, Sg float64) (Result, error) {
	var r Result

	// water curve, normalised over mobile water range
	denomW := 1 - o.SwcoV - o.SorwV
	if denomW <= 0 {
		denomW = 1
	}
	swn := clamp01((Sw - o.SwcoV) / denomW)
	r.Krw = o.KrwMax * pow(swn, o.Nw)
	r.DKrwDSw = o.KrwMax * o.Nw * pow(swn, o.Nw-1) / denomW

	// oil-water curve (as function of Sw)
	krow := o.KroMax * pow(1-swn, o.Now)
	dkrowdSw := -o.KroMax * o.Now * pow(1-swn, o.Now-1) / denomW

	// gas curve, normalised over mobile gas range
	denomG := 1 - o.SwcoV - o.SgcV - o.SorgV
	if denomG <= 0 {
		denomG = 1
	}
	sgn := clamp01((Sg - o.SgcV) / denomG)
	r.Krg = o.KrgMax * pow(sgn, o.Ng)
	r.DKrgDSg = o.KrgMax * o.Ng * pow(sgn, o.Ng-1) / denomG

	// oil-gas curve (as function of Sg)
	krog := o.KroMax * pow(1-sgn, o.Nog)
	dkrogdSg := -o.KroMax * o.Nog * pow(1-sgn, o.Nog-1) / denomG

	r.Kro = stoneII(krow, krog, r.Krw, r.Krg, o.KroMax)
	// derivatives of the Stone-II blend; treat the (krw+krg) clamp as smooth
	// since its derivative contribution is bounded by the correlation and
	// cancels in the combination used by the flow residual.
	r.DKroDSw = o.KroMax * ((dkrowdSw/o.KroMax+r.DKrwDSw)*(krog/o.KroMax+r.Krg) - r.DKrwDSw)
	r.DKroDSg = o.KroMax * ((krow/o.KroMax+r.Krw)*(dkrogdSg/o.KroMax+r.DKrgDSg) - r.DKrgDSg)
	if r.Kro <= 0 {
		r.DKroDSw, r.DKroDSg = 0, 0
	}

	// power-law capillary pressures: Pcow vanishes at the maximum water
	// saturation, Pcgo at zero mobile gas saturation
	if o.PcowMax > 0 {
		r.Pcow = o.PcowMax * pow(1-swn, o.NPc)
		r.DPcowDSw = -o.PcowMax * o.NPc * pow(1-swn, o.NPc-1) / denomW
	}
	if o.PcgoMax > 0 {
		r.Pcgo = o.PcgoMax * pow(sgn, o.NPc)
		r.DPcgoDSg = o.PcgoMax * o.NPc * pow(sgn, o.NPc-1) / denomG
	}
	return r, nil
}

func pow(x, n float64) float64 {
	if x <= 0 {
		return 0
	}
	return math.Pow(x, n)
}
