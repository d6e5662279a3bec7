// Package relperm implements per-SATNUM relative permeability and capillary
// pressure with derivatives, dispatched through an allocator registry in the
// same style as the teacher's mdl/retention package (VanGen/Lin models
// registered via init()).
//
// Table-driven SWOF/SGOF/SOF3 interpolation is an out-of-scope external
// collaborator (PVT/SAT table storage and interpolation primitives, §1);
// the variants below are closed-form correlations (Corey, Linear)
// that a table-backed FlowUnit would be substituted for without changing
// this interface.
package relperm

import (
	"math"

	"github.com/cpmech/gosl/fun/dbf"

	"github.com/reservoirsim/ocpcore/ocperr"
)

// Result bundles relperm/Pc values and their saturation derivatives for one
// cell. Oil relperm depends on both Sw and Sg in the three-phase case
// (Stone's model II), so dKroDSw and dKroDSg are both reported.
type Result struct {
	Krw, Kro, Krg          float64
	DKrwDSw                float64
	DKroDSw, DKroDSg       float64
	DKrgDSg                float64
	Pcow, Pcgo             float64 // pcow = po - pw >= 0; pcgo = pg - po >= 0
	DPcowDSw, DPcgoDSg     float64
}

// FlowUnit is one SATNUM region's flow-function model.
type FlowUnit interface {
	Init(prms dbf.Params) error
	GetPrms(example bool) dbf.Params
	Swco() float64 // connate water saturation
	Sorw() float64 // residual oil saturation to water
	Sgc() float64  // critical gas saturation
	Eval(Sw, Sg float64) (Result, error)
}

// New allocates a registered FlowUnit variant by name ("corey",
// "linear").
func New(name string) (FlowUnit, error) {
	alloc, ok := allocators[name]
	if !ok {
		return nil, ocperr.Err("relperm: model %q is not registered", name)
	}
	return alloc(), nil
}

var allocators = map[string]func() FlowUnit{}

// clamp01 restricts x to [0,1], guarding against roundoff pushing a
// normalised saturation just outside its domain.
func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

// stoneII combines two-phase oil curves into a three-phase kro per Stone's
// method II, the same blend the teacher's mdl/retention package's "combine
// rate and non-rate models" idiom inspired: compose simple pieces instead
// of one monolithic three-phase table.
func stoneII(krow, krog, krw, krg, kromax float64) float64 {
	kro := kromax * ((krow/kromax + krw) * (krog/kromax + krg) - (krw + krg))
	if kro < 0 {
		kro = 0
	}
	return kro
}
