package relperm

import "github.com/cpmech/gosl/fun/dbf"

// Linear implements a trivial straight-line relperm model: krw and kro are
// linear in the normalised water saturation, krg = Sg, there is no
// capillary pressure and no interplay between the curves.
type Linear struct {
	SwcoV float64
}

func init() {
	allocators["linear"] = func() FlowUnit { return new(Linear) }
}

func (o *Linear) Init(prms dbf.Params) error {
	for _, p := range prms {
		if p.N == "Swco" {
			o.SwcoV = p.V
		}
	}
	return nil
}

func (o Linear) GetPrms(example bool) dbf.Params {
	return dbf.Params{&dbf.P{N: "Swco", V: o.SwcoV}}
}

func (o Linear) Swco() float64 { return o.SwcoV }
func (o Linear) Sorw() float64 { return 0 }
func (o Linear) Sgc() float64  { return 0 }

func (o Linear) Eval(Sw, Sg float64) (Result, error) {
	var r Result
	denom := 1 - o.SwcoV
	if denom <= 0 {
		denom = 1
	}
	swn := clamp01((Sw - o.SwcoV) / denom)
	r.Krw = swn
	r.DKrwDSw = 1.0 / denom
	r.Kro = 1 - swn
	r.DKroDSw = -1.0 / denom
	r.Krg = Sg
	r.DKrgDSg = 1
	return r, nil
}
