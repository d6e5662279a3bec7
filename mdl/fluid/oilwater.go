package fluid

import "github.com/cpmech/gosl/fun/dbf"

// OilWater implements the oil-water MixtureModel variant (Kind OW): two
// immiscible dead phases, each with its own linear-in-pressure density
// (PVTW/PVDO-style single-row correlation), generalising mdl/fluid.Model to
// two independent phases sharing one component each.
type OilWater struct {
	RhoO0, PO0, Co, MuO float64 // oil: density, ref pressure, compressibility, viscosity
	RhoW0, PW0, Cw, MuW float64 // water: same, for water
}

func (o *OilWater) Kind() Kind  { return KindOilWater }
func (o *OilWater) NumCom() int { return 2 } // component 0: oil, component 1: water

func (o *OilWater) Init(prms dbf.Params) error {
	for _, p := range prms {
		switch p.N {
		case "RhoO0":
			o.RhoO0 = p.V
		case "PO0":
			o.PO0 = p.V
		case "Co":
			o.Co = p.V
		case "MuO":
			o.MuO = p.V
		case "RhoW0":
			o.RhoW0 = p.V
		case "PW0":
			o.PW0 = p.V
		case "Cw":
			o.Cw = p.V
		case "MuW":
			o.MuW = p.V
		}
	}
	return nil
}

func (o OilWater) GetPrms(example bool) dbf.Params {
	return dbf.Params{
		&dbf.P{N: "RhoO0", V: o.RhoO0}, &dbf.P{N: "PO0", V: o.PO0},
		&dbf.P{N: "Co", V: o.Co}, &dbf.P{N: "MuO", V: o.MuO},
		&dbf.P{N: "RhoW0", V: o.RhoW0}, &dbf.P{N: "PW0", V: o.PW0},
		&dbf.P{N: "Cw", V: o.Cw}, &dbf.P{N: "MuW", V: o.MuW},
	}
}

func (o *OilWater) flash(P float64, Ni []float64, ftype int, out *FlashOutput) error {
	if err := validateNi(Ni); err != nil {
		return err
	}
	prevExist := out.PhaseExist
	out.NumPhase = 2
	for j := 0; j < MaxPhase; j++ {
		out.PhaseExist[j] = false
	}

	No, Nw := Ni[0], Ni[1]
	out.Nt = No + Nw

	xiO := o.RhoO0 + o.Co*(P-o.PO0)
	xiW := o.RhoW0 + o.Cw*(P-o.PW0)

	// oilExists/waterExists is the stability test this model has: a
	// component's phase exists iff it holds positive moles. On a trust-
	// region hit (ftype != FlashFull) the accelerator reuses the phase
	// pattern the previous flash left in out instead of re-deriving it from
	// the sign of Ni,
	// which avoids flip-flopping right at a phase's (dis)appearance (§4.1).
	oilExists, waterExists := No > 0, Nw > 0
	if ftype != FlashFull {
		oilExists, waterExists = prevExist[PhaseOil], prevExist[PhaseWater]
	}

	out.S = [MaxPhase]float64{}
	if oilExists {
		out.PhaseExist[PhaseOil] = true
		out.Rho[PhaseOil] = xiO
		out.Xi[PhaseOil] = xiO
		out.Mu[PhaseOil] = o.MuO
		out.Xij[PhaseOil][0] = 1
		out.Nj[PhaseOil] = No
		out.Vj[PhaseOil] = No / xiO
	}
	if waterExists {
		out.PhaseExist[PhaseWater] = true
		out.Rho[PhaseWater] = xiW
		out.Xi[PhaseWater] = xiW
		out.Mu[PhaseWater] = o.MuW
		out.Xij[PhaseWater][1] = 1
		out.Nj[PhaseWater] = Nw
		out.Vj[PhaseWater] = Nw / xiW
	}
	out.Vf = out.Vj[PhaseOil] + out.Vj[PhaseWater]
	if out.Vf > 0 {
		out.S[PhaseOil] = out.Vj[PhaseOil] / out.Vf
		out.S[PhaseWater] = out.Vj[PhaseWater] / out.Vf
	}

	out.Vfp = -No*o.Co/(xiO*xiO) - Nw*o.Cw/(xiW*xiW)
	out.Vfi[0] = 1.0 / xiO
	out.Vfi[1] = 1.0 / xiW
	return nil
}

func (o *OilWater) InitFlashBySaturations(P, T float64, Sj [MaxPhase]float64, Ni []float64, out *FlashOutput) error {
	return o.flash(P, Ni, FlashFull, out)
}
func (o *OilWater) InitFlashByMoles(P, T float64, Ni []float64, out *FlashOutput) error {
	return o.flash(P, Ni, FlashFull, out)
}
func (o *OilWater) FlashByMoles(P, T float64, Ni []float64, ftype int, out *FlashOutput) error {
	return o.flash(P, Ni, ftype, out)
}
func (o *OilWater) FlashDeriv(P, T float64, Ni []float64, ftype int, out *FlashOutput) error {
	if err := o.flash(P, Ni, ftype, out); err != nil {
		return err
	}
	out.RowSize = 3
	out.DSecDPri[0] = out.Vfp
	out.DSecDPri[1] = out.Vfi[0]
	out.DSecDPri[2] = out.Vfi[1]
	return nil
}
