package fluid

import (
	"math"

	"github.com/cpmech/gosl/fun/dbf"
)

// ThermalK implements the thermal K-value MixtureModel variant (Kind
// THERMAL_K): the same Rachford-Rice two-phase split as Compositional, but
// with K(P,T) read directly off a temperature-dependent correlation instead
// of a full EoS fugacity match, and ideal-mixture molar volumes. Used for
// the steam/hot-water injection processes where re-solving a cubic at every
// Newton iteration is not worth the cost (§4.1).
type ThermalK struct {
	NumComV  int
	Kref     []float64 // K value at Tref
	Tref     float64
	KSlope   []float64 // dK/dT
	MW       []float64
	LiqMolVol []float64 // constant liquid molar volume per component, ft3/lbmol
}

func (o *ThermalK) Kind() Kind  { return KindThermalK }
func (o *ThermalK) NumCom() int { return o.NumComV }

func (o *ThermalK) Init(prms dbf.Params) error {
	n := o.NumComV
	if n == 0 {
		return nil
	}
	o.Kref = make([]float64, n)
	o.KSlope = make([]float64, n)
	o.MW = make([]float64, n)
	o.LiqMolVol = make([]float64, n)
	for _, p := range prms {
		if p.N == "Tref" {
			o.Tref = p.V
			continue
		}
		var idx int
		var field string
		if err := parseComponentField(p.N, &idx, &field); err != nil || idx >= n {
			continue
		}
		switch field {
		case "Kref":
			o.Kref[idx] = p.V
		case "KSlope":
			o.KSlope[idx] = p.V
		case "MW":
			o.MW[idx] = p.V
		case "LiqMolVol":
			o.LiqMolVol[idx] = p.V
		}
	}
	return nil
}

func (o *ThermalK) GetPrms(example bool) dbf.Params {
	prms := dbf.Params{&dbf.P{N: "Tref", V: o.Tref}}
	for i := 0; i < o.NumComV; i++ {
		prms = append(prms,
			&dbf.P{N: componentField(i, "Kref"), V: o.Kref[i]},
			&dbf.P{N: componentField(i, "KSlope"), V: o.KSlope[i]},
			&dbf.P{N: componentField(i, "MW"), V: o.MW[i]},
			&dbf.P{N: componentField(i, "LiqMolVol"), V: o.LiqMolVol[i]},
		)
	}
	return prms
}

func (o *ThermalK) kValue(i int, T float64) float64 {
	k := o.Kref[i] + o.KSlope[i]*(T-o.Tref)
	if k < 1e-6 {
		k = 1e-6
	}
	return k
}

func (o *ThermalK) flash(P, T float64, Ni []float64, ftype int, out *FlashOutput) error {
	if err := validateNi(Ni); err != nil {
		return err
	}
	n := o.NumComV
	prevLiquidOnly, prevVapourOnly, prevV := out.LiquidOnly, out.VapourOnly, out.V
	out.NumPhase = 2
	for j := 0; j < MaxPhase; j++ {
		out.PhaseExist[j] = false
	}
	out.S = [MaxPhase]float64{}

	out.Nt = 0
	for _, ni := range Ni {
		out.Nt += ni
	}
	z := make([]float64, n)
	for i, ni := range Ni {
		z[i] = ni / out.Nt
	}

	K := make([]float64, n)
	for i := range z {
		K[i] = o.kValue(i, T)
	}

	var liquidOnly, vapourOnly bool
	if ftype == FlashFull {
		var sumZK, sumZoverK float64
		for i := range z {
			sumZK += z[i] * K[i]
			sumZoverK += z[i] / K[i]
		}
		liquidOnly = sumZK <= 1
		vapourOnly = sumZoverK <= 1
		switch {
		case liquidOnly:
			out.StabilityMargin = 1 - sumZK
		case vapourOnly:
			out.StabilityMargin = sumZoverK - 1
		default:
			out.StabilityMargin = math.Inf(1)
		}
	} else {
		// trust-region skip: reuse the last flash's regime (§4.1, §9).
		liquidOnly, vapourOnly = prevLiquidOnly, prevVapourOnly
	}

	var V float64
	switch {
	case liquidOnly:
		V = 0
	case vapourOnly:
		V = 1
	case ftype == FlashSkipAll:
		V = prevV
	default:
		V = rachfordRice(z, K)
	}

	x := make([]float64, n)
	y := make([]float64, n)
	for i := range z {
		if liquidOnly || vapourOnly {
			x[i], y[i] = z[i], z[i]
			continue
		}
		x[i] = z[i] / (1 + V*(K[i]-1))
		y[i] = K[i] * x[i]
	}

	if !vapourOnly {
		o.fillLiquid(x, (1-V)*out.Nt, out)
	}
	if !liquidOnly {
		o.fillVapour(y, V*out.Nt, P, T, out)
	}

	out.Vf = out.Vj[PhaseOil] + out.Vj[PhaseGas]
	if out.Vf > 0 {
		out.S[PhaseOil] = out.Vj[PhaseOil] / out.Vf
		out.S[PhaseGas] = out.Vj[PhaseGas] / out.Vf
	}
	out.LiquidOnly, out.VapourOnly, out.V = liquidOnly, vapourOnly, V

	// Ideal-mixture volumes are linear in Ni at fixed P,T (no EoS coupling
	// between components), so the secondary Jacobian is exact, unlike
	// Compositional's finite-difference approximation.
	out.Vfp = 0
	for i := 0; i < n; i++ {
		out.Vfi[i] = z[i]*o.LiqMolVol[i]*(1-V) + z[i]*o.vapourMolVol(P, T)*V
	}
	return nil
}

func (o *ThermalK) vapourMolVol(P, T float64) float64 {
	return gasConstantPsiaFt3 * T / P
}

func (o *ThermalK) fillLiquid(x []float64, nLiq float64, out *FlashOutput) {
	if nLiq <= 0 {
		return
	}
	var Vm, MWmix float64
	for i, xi := range x {
		Vm += xi * o.LiqMolVol[i]
		MWmix += xi * o.MW[i]
	}
	out.PhaseExist[PhaseOil] = true
	out.Xi[PhaseOil] = 1 / Vm
	out.Rho[PhaseOil] = MWmix / Vm
	out.Mu[PhaseOil] = 1.0 // cP, placeholder: no viscosity correlation in scope for THERMAL_K
	copy(out.Xij[PhaseOil], x)
	out.Nj[PhaseOil] = nLiq
	out.Vj[PhaseOil] = nLiq * Vm
}

func (o *ThermalK) fillVapour(y []float64, nVap, P, T float64, out *FlashOutput) {
	if nVap <= 0 {
		return
	}
	Vm := o.vapourMolVol(P, T)
	var MWmix float64
	for i, yi := range y {
		MWmix += yi * o.MW[i]
	}
	out.PhaseExist[PhaseGas] = true
	out.Xi[PhaseGas] = 1 / Vm
	out.Rho[PhaseGas] = MWmix / Vm
	out.Mu[PhaseGas] = math.Max(0.01, 0.0001*T/600)
	copy(out.Xij[PhaseGas], y)
	out.Nj[PhaseGas] = nVap
	out.Vj[PhaseGas] = nVap * Vm
}

func (o *ThermalK) InitFlashBySaturations(P, T float64, Sj [MaxPhase]float64, Ni []float64, out *FlashOutput) error {
	return o.flash(P, T, Ni, FlashFull, out)
}
func (o *ThermalK) InitFlashByMoles(P, T float64, Ni []float64, out *FlashOutput) error {
	return o.flash(P, T, Ni, FlashFull, out)
}
func (o *ThermalK) FlashByMoles(P, T float64, Ni []float64, ftype int, out *FlashOutput) error {
	return o.flash(P, T, Ni, ftype, out)
}
func (o *ThermalK) FlashDeriv(P, T float64, Ni []float64, ftype int, out *FlashOutput) error {
	if err := o.flash(P, T, Ni, ftype, out); err != nil {
		return err
	}
	out.RowSize = o.NumComV + 1
	out.DSecDPri[0] = out.Vfp
	for i := 0; i < o.NumComV; i++ {
		out.DSecDPri[i+1] = out.Vfi[i]
	}
	return nil
}
