package fluid

import "github.com/cpmech/gosl/fun/dbf"

// LiveOilDryGasWater implements the classic black-oil variant with
// dissolved gas (Kind ODGW): oil carries gas up to the saturated solution
// ratio Rs(P); any gas in excess of No*Rs(P) forms a second, dry (no
// vaporised oil) gas phase. Generalises DeadOilGasWater by letting the oil
// phase's Xij mix oil and gas components instead of staying pure (§4.1).
type LiveOilDryGasWater struct {
	pvt blackoilPVT
}

func (o *LiveOilDryGasWater) Kind() Kind  { return KindLiveOilDryGasWater }
func (o *LiveOilDryGasWater) NumCom() int { return 3 } // 0: oil, 1: gas, 2: water

func (o *LiveOilDryGasWater) Init(prms dbf.Params) error {
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
		case "RsSlope":
			o.pvt.RsSlope = p.V
		case "Pb":
			o.pvt.Pb = p.V
		case "CRs":
			o.pvt.CRs = p.V
		}
	}
	return nil
}

func (o LiveOilDryGasWater) GetPrms(example bool) dbf.Params {
	p := o.pvt
	return dbf.Params{
		&dbf.P{N: "RhoOsc", V: p.RhoOsc}, &dbf.P{N: "RhoGsc", V: p.RhoGsc}, &dbf.P{N: "RhoWsc", V: p.RhoWsc},
		&dbf.P{N: "Bo0", V: p.Bo0}, &dbf.P{N: "CO", V: p.CO}, &dbf.P{N: "PrefO", V: p.PrefO},
		&dbf.P{N: "Bw0", V: p.Bw0}, &dbf.P{N: "Cw", V: p.Cw}, &dbf.P{N: "PrefW", V: p.PrefW},
		&dbf.P{N: "MuO", V: p.MuO}, &dbf.P{N: "MuW", V: p.MuW},
		&dbf.P{N: "BgRef", V: p.BgRef}, &dbf.P{N: "PrefG", V: p.PrefG}, &dbf.P{N: "MuGRef", V: p.MuGRef},
		&dbf.P{N: "RsSlope", V: p.RsSlope}, &dbf.P{N: "Pb", V: p.Pb}, &dbf.P{N: "CRs", V: p.CRs},
	}
}

func (o *LiveOilDryGasWater) flash(P float64, Ni []float64, ftype int, out *FlashOutput) error {
	if err := validateNi(Ni); err != nil {
		return err
	}
	prevGasExists := out.PhaseExist[PhaseGas]
	out.NumPhase = 3
	for j := 0; j < MaxPhase; j++ {
		out.PhaseExist[j] = false
	}
	out.S = [MaxPhase]float64{}

	No, Ngtot, Nw := Ni[0], Ni[1], Ni[2]
	out.Nt = No + Ngtot + Nw

	Rssat := o.pvt.Rs(P)
	Bw := o.pvt.Bw(P)
	xiW := 1 / Bw

	var Ndiss, Nfree float64
	var Bo float64
	if No > 0 {
		Ndiss = Rssat * No
		if Ndiss > Ngtot {
			Ndiss = Ngtot // undersaturated: all available gas dissolves
		}
		Nfree = Ngtot - Ndiss
		Rsused := Ndiss / No
		Bo = o.pvt.BoLive(Rsused)
	} else {
		Nfree = Ngtot
	}

	if No > 0 {
		out.PhaseExist[PhaseOil] = true
		oilMoles := No + Ndiss
		xiO := oilMoles / (No * Bo)
		out.Xi[PhaseOil] = xiO
		out.Rho[PhaseOil] = (o.pvt.RhoOsc*No + o.pvt.RhoGsc*Ndiss) / (No * Bo)
		out.Mu[PhaseOil] = o.pvt.MuOil(P)
		out.Xij[PhaseOil][0] = No / oilMoles
		out.Xij[PhaseOil][1] = Ndiss / oilMoles
		out.Nj[PhaseOil] = oilMoles
		out.Vj[PhaseOil] = No * Bo
	}
	// The real stability decision in this model is saturated-vs-undersaturated:
	// does a free-gas phase exist. A trust-region hit trusts the answer the
	// previous flash left in out instead of re-deriving it from Nfree's clamp, which
	// keeps a cell that sits right at the bubble point from flip-flopping
	// phase counts between otherwise-converged Newton iterates (§4.1).
	gasExists := Nfree > 1e-12
	if ftype != FlashFull {
		gasExists = prevGasExists
	}
	if gasExists {
		Bg := o.pvt.Bg(P)
		xiG := 1 / Bg
		out.PhaseExist[PhaseGas] = true
		out.Xi[PhaseGas] = xiG
		out.Rho[PhaseGas] = o.pvt.RhoGsc * xiG
		out.Mu[PhaseGas] = o.pvt.MuGas(P)
		out.Xij[PhaseGas][1] = 1
		out.Nj[PhaseGas] = Nfree
		out.Vj[PhaseGas] = Nfree * Bg
	}
	if Nw > 0 {
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

	// Pressure/composition derivatives use the saturated-oil branch slopes;
	// accurate enough for the Newton-chop tolerances in §A.2/Control, not
	// meant to reproduce a commercial simulator's exact PVT Jacobian.
	dBwdP := -o.pvt.Cw * o.pvt.Bw0
	if gasExists {
		out.Vfp = o.pvt.CRs*o.pvt.RsSlope*No + o.pvt.DBgDP(P)*Nfree + Nw*dBwdP
		out.Vfi[0] = Bo + o.pvt.CRs*o.pvt.RsSlope*0
		out.Vfi[1] = o.pvt.Bg(P)
	} else {
		out.Vfp = o.pvt.CRs * o.pvt.RsSlope * No
		out.Vfi[0] = Bo
		out.Vfi[1] = Bo * Rssat / No
		if No == 0 {
			out.Vfi[1] = 0
		}
	}
	out.Vfi[2] = Bw
	return nil
}

func (o *LiveOilDryGasWater) InitFlashBySaturations(P, T float64, Sj [MaxPhase]float64, Ni []float64, out *FlashOutput) error {
	return o.flash(P, Ni, FlashFull, out)
}
func (o *LiveOilDryGasWater) InitFlashByMoles(P, T float64, Ni []float64, out *FlashOutput) error {
	return o.flash(P, Ni, FlashFull, out)
}
func (o *LiveOilDryGasWater) FlashByMoles(P, T float64, Ni []float64, ftype int, out *FlashOutput) error {
	return o.flash(P, Ni, ftype, out)
}
func (o *LiveOilDryGasWater) FlashDeriv(P, T float64, Ni []float64, ftype int, out *FlashOutput) error {
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
