package fluid

import "github.com/cpmech/gosl/fun/dbf"

// DeadOilGasWater implements the three-phase black-oil variant with no
// dissolved gas (Kind DOGW): oil, gas and water each stay single-component,
// generalising OilWater by adding a free-gas phase whose FVF follows a
// simple inverse-pressure correlation in place of a PVDG table (§4.1).
type DeadOilGasWater struct {
	pvt blackoilPVT
}

func (o *DeadOilGasWater) Kind() Kind  { return KindDeadOilGasWater }
func (o *DeadOilGasWater) NumCom() int { return 3 } // 0: oil, 1: gas, 2: water

func (o *DeadOilGasWater) Init(prms dbf.Params) error {
	for _, p := range prms {
		switch p.N {
		case "RhoOsc":
			o.pvt.RhoOsc = p.V
		case "RhoGsc":
			o.pvt.RhoGsc = p.V
		case "RhoWsc":
			o.pvt.RhoWsc = p.V
		case "Bo0":
			o.pvt.Bo0 = p.V
		case "CO":
			o.pvt.CO = p.V
		case "PrefO":
			o.pvt.PrefO = p.V
		case "Bw0":
			o.pvt.Bw0 = p.V
		case "Cw":
			o.pvt.Cw = p.V
		case "PrefW":
			o.pvt.PrefW = p.V
		case "MuO":
			o.pvt.MuO = p.V
		case "MuW":
			o.pvt.MuW = p.V
		case "BgRef":
			o.pvt.BgRef = p.V
		case "PrefG":
			o.pvt.PrefG = p.V
		case "MuGRef":
			o.pvt.MuGRef = p.V
		}
	}
	return nil
}

func (o DeadOilGasWater) GetPrms(example bool) dbf.Params {
	p := o.pvt
	return dbf.Params{
		&dbf.P{N: "RhoOsc", V: p.RhoOsc}, &dbf.P{N: "RhoGsc", V: p.RhoGsc}, &dbf.P{N: "RhoWsc", V: p.RhoWsc},
		&dbf.P{N: "Bo0", V: p.Bo0}, &dbf.P{N: "CO", V: p.CO}, &dbf.P{N: "PrefO", V: p.PrefO},
		&dbf.P{N: "Bw0", V: p.Bw0}, &dbf.P{N: "Cw", V: p.Cw}, &dbf.P{N: "PrefW", V: p.PrefW},
		&dbf.P{N: "MuO", V: p.MuO}, &dbf.P{N: "MuW", V: p.MuW},
		&dbf.P{N: "BgRef", V: p.BgRef}, &dbf.P{N: "PrefG", V: p.PrefG}, &dbf.P{N: "MuGRef", V: p.MuGRef},
	}
}

func (o *DeadOilGasWater) flash(P float64, Ni []float64, ftype int, out *FlashOutput) error {
	if err := validateNi(Ni); err != nil {
		return err
	}
	prevExist := out.PhaseExist
	out.NumPhase = 3
	for j := 0; j < MaxPhase; j++ {
		out.PhaseExist[j] = false
	}
	out.S = [MaxPhase]float64{}

	No, Ng, Nw := Ni[0], Ni[1], Ni[2]
	out.Nt = No + Ng + Nw

	Bo := o.pvt.Bo(P)
	Bg := o.pvt.Bg(P)
	Bw := o.pvt.Bw(P)

	xiO := 1 / Bo
	xiG := 1 / Bg
	xiW := 1 / Bw

	// As in OilWater, the stability test here is just sign-of-moles; a
	// trust-region hit reuses the phase pattern the previous flash left in
	// out (§4.1).
	oilExists, gasExists, waterExists := No > 0, Ng > 0, Nw > 0
	if ftype != FlashFull {
		oilExists, gasExists, waterExists = prevExist[PhaseOil], prevExist[PhaseGas], prevExist[PhaseWater]
	}

	if oilExists {
		out.PhaseExist[PhaseOil] = true
		out.Xi[PhaseOil] = xiO
		out.Rho[PhaseOil] = o.pvt.RhoOsc * xiO
		out.Mu[PhaseOil] = o.pvt.MuOil(P)
		out.Xij[PhaseOil][0] = 1
		out.Nj[PhaseOil] = No
		out.Vj[PhaseOil] = No * Bo
	}
	if gasExists {
		out.PhaseExist[PhaseGas] = true
		out.Xi[PhaseGas] = xiG
		out.Rho[PhaseGas] = o.pvt.RhoGsc * xiG
		out.Mu[PhaseGas] = o.pvt.MuGas(P)
		out.Xij[PhaseGas][1] = 1
		out.Nj[PhaseGas] = Ng
		out.Vj[PhaseGas] = Ng * Bg
	}
	if waterExists {
		out.PhaseExist[PhaseWater] = true
		out.Xi[PhaseWater] = xiW
		out.Rho[PhaseWater] = o.pvt.RhoWsc * xiW
		out.Mu[PhaseWater] = o.pvt.MuWat(P)
		out.Xij[PhaseWater][2] = 1
		out.Nj[PhaseWater] = Nw
		out.Vj[PhaseWater] = Nw * Bw
	}

	out.Vf = out.Vj[PhaseOil] + out.Vj[PhaseGas] + out.Vj[PhaseWater]
	if out.Vf > 0 {
		out.S[PhaseOil] = out.Vj[PhaseOil] / out.Vf
		out.S[PhaseGas] = out.Vj[PhaseGas] / out.Vf
		out.S[PhaseWater] = out.Vj[PhaseWater] / out.Vf
	}

	out.Vfp = -No*o.pvt.CO*o.pvt.Bo0 + Ng*o.pvt.DBgDP(P) - Nw*o.pvt.Cw*o.pvt.Bw0
	out.Vfi[0] = Bo
	out.Vfi[1] = Bg
	out.Vfi[2] = Bw
	return nil
}

func (o *DeadOilGasWater) InitFlashBySaturations(P, T float64, Sj [MaxPhase]float64, Ni []float64, out *FlashOutput) error {
	return o.flash(P, Ni, FlashFull, out)
}
func (o *DeadOilGasWater) InitFlashByMoles(P, T float64, Ni []float64, out *FlashOutput) error {
	return o.flash(P, Ni, FlashFull, out)
}
func (o *DeadOilGasWater) FlashByMoles(P, T float64, Ni []float64, ftype int, out *FlashOutput) error {
	return o.flash(P, Ni, ftype, out)
}
func (o *DeadOilGasWater) FlashDeriv(P, T float64, Ni []float64, ftype int, out *FlashOutput) error {
	if err := o.flash(P, Ni, ftype, out); err != nil {
		return err
	}
	out.RowSize = 4
	out.DSecDPri[0] = out.Vfp
	out.DSecDPri[1] = out.Vfi[0]
	out.DSecDPri[2] = out.Vfi[1]
	out.DSecDPri[3] = out.Vfi[2]
	return nil
}
