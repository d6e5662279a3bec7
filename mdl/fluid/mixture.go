// Package fluid implements the MixtureModel family: water-only, oil-water,
// dead-oil-gas-water, live-oil-dry-gas-water, compositional-EoS and
// thermal-K-value PVT behaviour (§4.1).
//
// The teacher's mdl/fluid.Model mutates its own fields during Flash* calls
// (Ni, phaseExist, S, rho, xi, ...). Per the design notes ("this scratch
// must be factored into an explicit FlashOutput struct so that the model
// object is stateless w.r.t. the call and re-entrancy is preserved") every
// flash call here takes the cell's (P, T, Ni) and writes into a caller-owned
// *FlashOutput instead of mutating receiver state, so one MixtureModel
// instance can serve every cell in its PVT region concurrently-safely (even
// though the engine itself is single-threaded, §5).
package fluid

import (
	"math"

	"github.com/cpmech/gosl/fun/dbf"

	"github.com/reservoirsim/ocpcore/ocperr"
)

// Flash-type outcomes the skip-stability-analysis accelerator
// (Cell.CalFlashType) hands to a Flash* call (§4.1, §9). They live here
// rather than in core/bulk because every Model implementation reads ftype
// directly off its own call signature.
const (
	FlashFull          = iota // re-run the full stability test and phase split
	FlashSkipAll              // trust region hit: reuse the cached phase pattern and split outright
	FlashSkipStability        // FIM-only fast path: skip the stability test but still re-run the split
)

// Kind identifies a MixtureModel variant.
type Kind int

const (
	KindWater Kind = iota
	KindOilWater
	KindDeadOilGasWater
	KindLiveOilDryGasWater
	KindCompositional
	KindThermalK
)

func (k Kind) String() string {
	switch k {
	case KindWater:
		return "W"
	case KindOilWater:
		return "OW"
	case KindDeadOilGasWater:
		return "DOGW"
	case KindLiveOilDryGasWater:
		return "ODGW"
	case KindCompositional:
		return "COMPS"
	case KindThermalK:
		return "THERMAL_K"
	}
	return "?"
}

// Phase indices, fixed across all black-oil-family variants: oil, gas,
// water. Compositional variants repurpose Phase 0/1 as liquid/vapour.
const (
	PhaseOil = iota
	PhaseGas
	PhaseWater
	MaxPhase
)

// FlashOutput is the caller-owned scratch a Flash* call writes into. Sized
// once per cell by Init, called from bulk.New (§4.1), and reused across
// steps.
type FlashOutput struct {
	NumPhase int
	NumCom   int

	PhaseExist [MaxPhase]bool
	S          [MaxPhase]float64 // saturation, maintained even when a phase doesn't exist
	Nj         [MaxPhase]float64 // phase moles
	Rho        [MaxPhase]float64 // mass density
	Xi         [MaxPhase]float64 // molar density
	Mu         [MaxPhase]float64 // viscosity
	Vj         [MaxPhase]float64 // phase volume

	// Xij[j][i] is the mole fraction of component i in phase j. Sized
	// MaxPhase x NumCom by Init.
	Xij [][]float64

	Vf  float64   // total fluid volume
	Vfp float64   // dVf/dP
	Vfi []float64 // dVf/dNi, length NumCom

	// DSecDPri is the secondary-on-primary Jacobian block, sized
	// maxLendSdP = (Nc+1)^2 * Np worst case, with the ACTUAL row count for
	// this cell recorded in RowSize so a phase that has disappeared does not
	// force every other cell to carry the full-rank layout (§4.1, and
	// Open Question (c): forward-looking variable layout, never the fixed
	// OCP_OLD_FIM one).
	DSecDPri []float64
	RowSize  int

	Nt float64 // total moles, sum of Ni

	// Fields below are the skip-stability-analysis accelerator's memory of
	// the most recent flash. Cell.CalFlashType reads them (via the cell's
	// committed snapshot, not this live copy) to decide the next call's
	// ftype. Compositional and ThermalK read V/LiquidOnly/VapourOnly back on
	// a skipped flash, rewrite them after every flash, and refresh
	// StabilityMargin whenever they run the full classification; the other
	// variants leave these fields at their Init defaults (§4.1, §9).
	V               float64 // vapour/free-gas mole fraction from the last split, reused verbatim on FlashSkipAll
	LiquidOnly      bool    // last split collapsed to a single liquid-like phase
	VapourOnly      bool    // last split collapsed to a single vapour-like phase
	StabilityMargin float64 // distance from the liquidOnly/vapourOnly decision boundary; +Inf where no such test applies
}

// Init allocates the per-cell scratch for a mixture with NumCom components.
func (o *FlashOutput) Init(numCom int) {
	o.NumCom = numCom
	o.Xij = make([][]float64, MaxPhase)
	for j := range o.Xij {
		o.Xij[j] = make([]float64, numCom)
	}
	o.Vfi = make([]float64, numCom)
	o.DSecDPri = make([]float64, (numCom+1)*(numCom+1)*MaxPhase)
	o.StabilityMargin = math.Inf(1)
}

// Model is the polymorphic capability set every MixtureModel variant
// implements (§4.1). Implementations must be safe to call concurrently
// across distinct FlashOutput values — they hold no per-call state.
type Model interface {
	Kind() Kind
	NumCom() int

	Init(prms dbf.Params) error
	GetPrms(example bool) dbf.Params

	// InitFlashBySaturations builds the initial phase state from a
	// user-supplied saturation guess (used by InitSjPc, §4.1).
	InitFlashBySaturations(P, T float64, Sj [MaxPhase]float64, Ni []float64, out *FlashOutput) error

	// InitFlashByMoles builds the initial phase state purely from (P, T, Ni).
	InitFlashByMoles(P, T float64, Ni []float64, out *FlashOutput) error

	// FlashByMoles re-flashes an already-initialised cell, honouring the
	// skip-stability accelerator's decision (ftype) per CalFlashType (§4.1).
	FlashByMoles(P, T float64, Ni []float64, ftype int, out *FlashOutput) error

	// FlashDeriv is FlashByMoles plus the dSec_dPri block.
	FlashDeriv(P, T float64, Ni []float64, ftype int, out *FlashOutput) error
}

// validateNi checks the Bulk-level invariant Ni[i] >= 0, sum(Ni) > 0 (§3).
func validateNi(Ni []float64) error {
	sum := 0.0
	for _, n := range Ni {
		if n < 0 {
			return ocperr.Err("fluid: negative moles %g", n)
		}
		sum += n
	}
	if sum <= 0 {
		return ocperr.Err("fluid: total moles must be positive, got %g", sum)
	}
	return nil
}
