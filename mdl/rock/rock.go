// Package rock implements the rock-compressibility model: pore volume as a
// function of pressure, per ROCKNUM region.
//
// Grounded on mdl/porous.Model's parameter-reading/Init idiom from the
// teacher repo (dbf.Params driven Init, GetPrms round-trip) generalised from
// "porosity + liquid/gas conductivity" to "reference porosity + rock
// compressibility".
package rock

import (
	"github.com/cpmech/gosl/fun/dbf"

	"github.com/reservoirsim/ocpcore/ocperr"
)

// Model holds one ROCKNUM region's rock-compressibility parameters.
//
//	Vp(P) = Vb * Phi0 * (1 + Cr*(P - Pref))
type Model struct {
	Phi0 float64 // reference porosity at Pref
	Pref float64 // reference pressure
	Cr   float64 // rock compressibility [1/psia]
}

// Init reads parameters from a parameter database, mirroring
// mdl/porous.Model.Init's prms.Connect idiom.
func (o *Model) Init(prms dbf.Params) error {
	o.Cr = 0
	for _, p := range prms {
		switch p.N {
		case "Phi0":
			o.Phi0 = p.V
		case "Pref":
			o.Pref = p.V
		case "Cr":
			o.Cr = p.V
		}
	}
	if o.Phi0 <= 0 || o.Phi0 > 1 {
		return ocperr.Err("rock model: Phi0 = %g is invalid", o.Phi0)
	}
	if o.Pref <= 0 {
		return ocperr.Err("rock model: Pref = %g is invalid", o.Pref)
	}
	return nil
}

// GetPrms returns an example parameter set (for tests/tooling), mirroring
// the teacher's GetPrms(example bool) round-trip idiom.
func GetPrms(example bool, o Model) dbf.Params {
	if example {
		return dbf.Params{
			&dbf.P{N: "Phi0", V: 0.2},
			&dbf.P{N: "Pref", V: 3600},
			&dbf.P{N: "Cr", V: 3e-6},
		}
	}
	return dbf.Params{
		&dbf.P{N: "Phi0", V: o.Phi0},
		&dbf.P{N: "Pref", V: o.Pref},
		&dbf.P{N: "Cr", V: o.Cr},
	}
}

// PoreVolume returns the pore volume at pressure P given bulk volume Vb.
func (o Model) PoreVolume(Vb, P float64) float64 {
	return Vb * o.Phi0 * (1.0 + o.Cr*(P-o.Pref))
}

// DPoreVolumeDP returns d(PoreVolume)/dP at bulk volume Vb.
func (o Model) DPoreVolumeDP(Vb float64) float64 {
	return Vb * o.Phi0 * o.Cr
}
