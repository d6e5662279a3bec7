package fluid

import "github.com/reservoirsim/ocpcore/ocperr"

// allocators mirrors mdl/relperm's registry idiom: each variant registers
// itself under its Kind in an init() block instead of a central switch.
// numCom is only meaningful for the variable-component variants
// (Compositional, ThermalK); fixed-component variants ignore it.
var allocators = map[Kind]func(numCom int) Model{}

// New allocates a registered MixtureModel variant.
func New(kind Kind, numCom int) (Model, error) {
	alloc, ok := allocators[kind]
	if !ok {
		return nil, ocperr.Err("fluid: model kind %v is not registered", kind)
	}
	return alloc(numCom), nil
}

func init() {
	allocators[KindWater] = func(int) Model { return new(Water) }
	allocators[KindOilWater] = func(int) Model { return new(OilWater) }
	allocators[KindDeadOilGasWater] = func(int) Model { return new(DeadOilGasWater) }
	allocators[KindLiveOilDryGasWater] = func(int) Model { return new(LiveOilDryGasWater) }
	allocators[KindCompositional] = func(numCom int) Model { return &Compositional{NumComV: numCom} }
	allocators[KindThermalK] = func(numCom int) Model { return &ThermalK{NumComV: numCom} }
}
