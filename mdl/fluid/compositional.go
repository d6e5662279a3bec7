package fluid

import (
	"math"
	"strconv"

	"github.com/cpmech/gosl/fun/dbf"
	"github.com/rickykimani/zfactor/cubic"

	"github.com/reservoirsim/ocpcore/ocperr"
)

const gasConstantPsiaFt3 = 10.7316 // R in psia*ft3/(lbmol*R)

// Compositional implements the equation-of-state MixtureModel variant
// (Kind COMPS): an arbitrary number of hydrocarbon components split between
// liquid and vapour via Rachford-Rice, with phase molar volumes obtained
// from the Peng-Robinson cubic (github.com/rickykimani/zfactor/cubic),
// exactly as in its single-component NewPRCfg/SolveForVolume pair, lifted to
// a mixture via Kay's mixing rule on the pseudo-critical properties.
type Compositional struct {
	NumComV     int
	Tc, Pc      []float64 // critical temperature (R), pressure (psia)
	Acentric    []float64
	MW          []float64 // molecular weight, lbm/lbmol
	VshiftTuned bool
}

func (o *Compositional) Kind() Kind    { return KindCompositional }
func (o *Compositional) NumCom() int   { return o.NumComV }

func (o *Compositional) Init(prms dbf.Params) error {
	n := o.NumComV
	if n == 0 {
		return nil
	}
	o.Tc = make([]float64, n)
	o.Pc = make([]float64, n)
	o.Acentric = make([]float64, n)
	o.MW = make([]float64, n)
	for _, p := range prms {
		var idx int
		var field string
		if err := parseComponentField(p.N, &idx, &field); err != nil {
			continue
		}
		if idx < 0 || idx >= n {
			continue
		}
		switch field {
		case "Tc":
			o.Tc[idx] = p.V
		case "Pc":
			o.Pc[idx] = p.V
		case "Acentric":
			o.Acentric[idx] = p.V
		case "MW":
			o.MW[idx] = p.V
		}
	}
	return nil
}

func (o *Compositional) GetPrms(example bool) dbf.Params {
	prms := make(dbf.Params, 0, 4*o.NumComV)
	for i := 0; i < o.NumComV; i++ {
		prms = append(prms,
			&dbf.P{N: componentField(i, "Tc"), V: o.Tc[i]},
			&dbf.P{N: componentField(i, "Pc"), V: o.Pc[i]},
			&dbf.P{N: componentField(i, "Acentric"), V: o.Acentric[i]},
			&dbf.P{N: componentField(i, "MW"), V: o.MW[i]},
		)
	}
	return prms
}

func componentField(i int, field string) string {
	return "C" + strconv.Itoa(i) + "." + field
}

// parseComponentField parses names of the form "C0.Tc", "C1.Pc", ... into
// (component index, field name).
func parseComponentField(name string, idx *int, field *string) error {
	if len(name) < 3 || name[0] != 'C' {
		return ocperr.Err("fluid: malformed component parameter %q", name)
	}
	dot := -1
	for i := 1; i < len(name); i++ {
		if name[i] == '.' {
			dot = i
			break
		}
	}
	if dot < 0 {
		return ocperr.Err("fluid: malformed component parameter %q", name)
	}
	n := 0
	for i := 1; i < dot; i++ {
		if name[i] < '0' || name[i] > '9' {
			return ocperr.Err("fluid: malformed component parameter %q", name)
		}
		n = n*10 + int(name[i]-'0')
	}
	*idx = n
	*field = name[dot+1:]
	return nil
}

// wilsonK returns the Wilson-correlation K-value estimate for component i,
// the standard initial guess ahead of (and, here, substitute for) a full
// fugacity-equality flash.
func (o *Compositional) wilsonK(i int, P, T float64) float64 {
	return (o.Pc[i] / P) * math.Exp(5.373*(1+o.Acentric[i])*(1-o.Tc[i]/T))
}

// rachfordRice solves sum(zi*(Ki-1)/(1+V*(Ki-1))) = 0 for the vapour mole
// fraction V by bisection, the textbook two-phase split.
func rachfordRice(z, K []float64) float64 {
	f := func(V float64) float64 {
		s := 0.0
		for i := range z {
			s += z[i] * (K[i] - 1) / (1 + V*(K[i]-1))
		}
		return s
	}
	lo, hi := 0.0, 1.0
	flo, fhi := f(lo), f(hi)
	if flo*fhi > 0 {
		if flo < 0 {
			return 0
		}
		return 1
	}
	for iter := 0; iter < 100; iter++ {
		mid := 0.5 * (lo + hi)
		fm := f(mid)
		if math.Abs(fm) < 1e-10 {
			return mid
		}
		if fm*flo < 0 {
			hi = mid
		} else {
			lo, flo = mid, fm
		}
	}
	return 0.5 * (lo + hi)
}

func (o *Compositional) flash(P, T float64, Ni []float64, ftype int, out *FlashOutput) error {
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
		K[i] = o.wilsonK(i, P, T)
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
		// StabilityMargin is this composition's distance from whichever
		// single-phase boundary it actually sits on; CalFlashType refuses to
		// skip the stability test again once a cell sits close to it (§4.1,
		// §9). Two-phase cells have no such boundary nearby, so treat them
		// as maximally stable.
		switch {
		case liquidOnly:
			out.StabilityMargin = 1 - sumZK
		case vapourOnly:
			out.StabilityMargin = sumZoverK - 1
		default:
			out.StabilityMargin = math.Inf(1)
		}
	} else {
		// trust-region skip (ftype=1 FlashSkipAll, ftype=2 FlashSkipStability):
		// reuse the last flash's regime instead of re-testing stability.
		liquidOnly, vapourOnly = prevLiquidOnly, prevVapourOnly
	}

	var V float64
	switch {
	case liquidOnly:
		V = 0
	case vapourOnly:
		V = 1
	case ftype == FlashSkipAll:
		// full skip: reuse the cached split outright rather than re-running
		// the Rachford-Rice bisection.
		V = prevV
	default:
		V = rachfordRice(z, K)
	}

	x := make([]float64, n) // liquid mole fractions
	y := make([]float64, n) // vapour mole fractions
	for i := range z {
		if liquidOnly {
			x[i], y[i] = z[i], z[i]
		} else if vapourOnly {
			x[i], y[i] = z[i], z[i]
		} else {
			x[i] = z[i] / (1 + V*(K[i]-1))
			y[i] = K[i] * x[i]
		}
	}

	if !vapourOnly {
		nLiq := (1 - V) * out.Nt
		o.fillPhase(PhaseOil, x, nLiq, P, T, out)
	}
	if !liquidOnly {
		nVap := V * out.Nt
		o.fillPhase(PhaseGas, y, nVap, P, T, out)
	}

	out.Vf = out.Vj[PhaseOil] + out.Vj[PhaseGas]
	if out.Vf > 0 {
		out.S[PhaseOil] = out.Vj[PhaseOil] / out.Vf
		out.S[PhaseGas] = out.Vj[PhaseGas] / out.Vf
	}
	out.LiquidOnly, out.VapourOnly, out.V = liquidOnly, vapourOnly, V

	// dVf/dP, dVf/dNi via a one-sided finite difference: a full analytic PR
	// Jacobian needs fugacity-coefficient derivatives this variant doesn't
	// carry; this is accurate enough for the Newton-chop tolerances. The
	// probes always run a full flash regardless of ftype: they are one-off
	// evaluations at a perturbed state, not a trial this cell will commit
	// to, so there is no cache to warm-start from.
	const dP = 1e-3
	base := out.Vf
	var probe FlashOutput
	probe.Init(n)
	if err := o.flashNoDeriv(P+dP, T, Ni, &probe); err == nil {
		out.Vfp = (probe.Vf - base) / dP
	}
	for i := range Ni {
		const dN = 1e-6
		Ni2 := append([]float64(nil), Ni...)
		Ni2[i] += dN
		var probe2 FlashOutput
		probe2.Init(n)
		if err := o.flashNoDeriv(P, T, Ni2, &probe2); err == nil {
			out.Vfi[i] = (probe2.Vf - base) / dN
		}
	}
	return nil
}

func (o *Compositional) flashNoDeriv(P, T float64, Ni []float64, out *FlashOutput) error {
	return o.flash(P, T, Ni, FlashFull, out)
}

// fillPhase populates phase j given its mole fractions comp and total moles
// nPhase, using a pseudo-critical PR cubic (Kay's mixing rule) for volume.
func (o *Compositional) fillPhase(j int, comp []float64, nPhase, P, T float64, out *FlashOutput) {
	if nPhase <= 0 {
		return
	}
	var TcMix, PcMix, wMix, MWMix float64
	for i, xi := range comp {
		TcMix += xi * o.Tc[i]
		PcMix += xi * o.Pc[i]
		wMix += xi * o.Acentric[i]
		MWMix += xi * o.MW[i]
	}
	cfg := cubic.NewPRCfg(T, P, TcMix, PcMix, wMix, gasConstantPsiaFt3)
	vol, err := cubic.SolveForVolume(cfg)
	var Vm float64
	if err != nil {
		Vm = gasConstantPsiaFt3 * T / P // ideal-gas fallback
	} else {
		roots := vol.Clean()
		if len(roots) == 0 {
			Vm = gasConstantPsiaFt3 * T / P
		} else if j == PhaseOil {
			Vm = roots[0] // smallest real root: liquid
		} else {
			Vm = roots[len(roots)-1] // largest real root: vapour
		}
	}
	if Vm <= 0 {
		Vm = gasConstantPsiaFt3 * T / P
	}

	out.PhaseExist[j] = true
	out.Xi[j] = 1 / Vm
	out.Rho[j] = MWMix / Vm
	out.Mu[j] = 0.02 // placeholder constant viscosity; §4.1 leaves viscosity correlations out of scope for COMPS
	copy(out.Xij[j], comp)
	out.Nj[j] = nPhase
	out.Vj[j] = nPhase * Vm
}

func (o *Compositional) InitFlashBySaturations(P, T float64, Sj [MaxPhase]float64, Ni []float64, out *FlashOutput) error {
	return o.flash(P, T, Ni, FlashFull, out)
}
func (o *Compositional) InitFlashByMoles(P, T float64, Ni []float64, out *FlashOutput) error {
	return o.flash(P, T, Ni, FlashFull, out)
}
func (o *Compositional) FlashByMoles(P, T float64, Ni []float64, ftype int, out *FlashOutput) error {
	return o.flash(P, T, Ni, ftype, out)
}
func (o *Compositional) FlashDeriv(P, T float64, Ni []float64, ftype int, out *FlashOutput) error {
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
