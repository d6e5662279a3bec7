package fluid

import (
	"github.com/cpmech/gosl/fun/dbf"
)

// Water implements the water-only MixtureModel variant (Kind W): a single
// phase whose density is linear in pressure, directly generalising the
// teacher's mdl/fluid.Model (R(p) = R0 + C*(p-p0)) from a density-along-a-
// column helper into a full single-phase flash.
type Water struct {
	R0, P0, C float64 // density, pressure-at-R0, compressibility
	Mu0       float64 // viscosity, assumed pressure-independent
}

func (o *Water) Kind() Kind    { return KindWater }
func (o *Water) NumCom() int   { return 1 }

// Init reads parameters, mirroring mdl/fluid.Model.Init's switch-on-name
// loop over a parameter database.
func (o *Water) Init(prms dbf.Params) error {
	for _, p := range prms {
		switch p.N {
		case "R0":
			o.R0 = p.V
		case "P0":
			o.P0 = p.V
		case "C":
			o.C = p.V
		case "Mu0":
			o.Mu0 = p.V
		}
	}
	return nil
}

func (o Water) GetPrms(example bool) dbf.Params {
	return dbf.Params{
		&dbf.P{N: "R0", V: o.R0},
		&dbf.P{N: "P0", V: o.P0},
		&dbf.P{N: "C", V: o.C},
		&dbf.P{N: "Mu0", V: o.Mu0},
	}
}

func (o *Water) flash(P float64, Ni []float64, out *FlashOutput) error {
	if err := validateNi(Ni); err != nil {
		return err
	}
	out.NumPhase = 1
	for j := 0; j < MaxPhase; j++ {
		out.PhaseExist[j] = false
	}
	out.PhaseExist[PhaseWater] = true
	out.S = [MaxPhase]float64{}
	out.S[PhaseWater] = 1

	rho := o.R0 + o.C*(P-o.P0)
	xi := rho // molar mass normalised to 1 for water-only
	out.Rho[PhaseWater] = rho
	out.Xi[PhaseWater] = xi
	out.Mu[PhaseWater] = o.Mu0
	out.Xij[PhaseWater][0] = 1
	out.Nj[PhaseWater] = Ni[0]
	out.Vj[PhaseWater] = Ni[0] / xi
	out.Vf = out.Vj[PhaseWater]
	out.Vfp = -Ni[0] * o.C / (xi * xi)
	out.Vfi[0] = 1.0 / xi
	out.Nt = Ni[0]
	return nil
}

func (o *Water) InitFlashBySaturations(P, T float64, Sj [MaxPhase]float64, Ni []float64, out *FlashOutput) error {
	return o.flash(P, Ni, out)
}

func (o *Water) InitFlashByMoles(P, T float64, Ni []float64, out *FlashOutput) error {
	return o.flash(P, Ni, out)
}

// FlashByMoles ignores ftype: a single-phase mixture has no stability test
// to skip, so there is nothing for the accelerator to do here. out's
// StabilityMargin stays at its Init default of +Inf, so CalFlashType's
// margin test never forces FlashFull here; a water cell never reaches
// FlashSkipStability because it carries fewer than three phases.
func (o *Water) FlashByMoles(P, T float64, Ni []float64, ftype int, out *FlashOutput) error {
	return o.flash(P, Ni, out)
}

func (o *Water) FlashDeriv(P, T float64, Ni []float64, ftype int, out *FlashOutput) error {
	if err := o.flash(P, Ni, out); err != nil {
		return err
	}
	out.RowSize = 2 // [dVf/dP, dVf/dN0]
	out.DSecDPri[0] = out.Vfp
	out.DSecDPri[1] = out.Vfi[0]
	return nil
}
