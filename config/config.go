// Package config holds the structured, already-parsed simulation input.
// Lexing the Eclipse-style keyword deck (DIMENS, EQUIL, WELSPECS, ...) is an
// out-of-scope external collaborator; this package only decodes an
// equivalent TOML document whose field names echo the spec's keywords, and
// exposes the typed structs the rest of the core consumes.
package config

import (
	"github.com/BurntSushi/toml"

	"github.com/reservoirsim/ocpcore/ocperr"
)

// Dimens mirrors the DIMENS keyword: grid extents.
type Dimens struct {
	Nx, Ny, Nz int
}

// Equil mirrors the EQUIL keyword: depth/pressure reference and contacts
// used by mdl/gravity to build the depth-pressure table.
type Equil struct {
	RefDepth    float64 // reference depth
	RefPressure float64 // pressure at RefDepth
	GOC         float64 // gas-oil contact depth, 0 if absent
	OWC         float64 // oil-water contact depth
	PcGOC       float64 // Pcgo at the gas-oil contact
	PcOWC       float64 // Pcow at the oil-water contact
}

// Tuning mirrors one TUNING record, keyed by the day it becomes active
// (spec.md §4.7, §C.1).
type Tuning struct {
	Day         int
	TimeInit    float64
	TimeMax     float64
	TimeMin     float64
	MaxIncreFac float64
	MinChopFac  float64
	CutFacNR    float64
	DPlim       float64
	DSlim       float64
	DNlim       float64
	DVlim       float64
	MaxNRIter   int
	NRtol       float64
	NRdPmax     float64
	NRdSmax     float64
	NRdPmin     float64
	NRdSmin     float64
	Verrmax     float64
}

// WellSpec mirrors WELSPECS: static well location/group.
type WellSpec struct {
	Name       string
	Group      string
	I, J       int
	RefDepth   float64
}

// CompDat mirrors one COMPDAT entry: a single perforation.
type CompDat struct {
	Well        string
	I, J, K     int
	WI          float64 // supplied transmissibility factor; 0 means compute from Kh/skin/diameter
	Kh          float64
	Skin        float64
	Diameter    float64
	Direction   string // "X", "Y", "Z"
	Multiplier  float64
}

// WellControl mirrors WCONPROD/WCONINJE/WELTARG, keyed by the day it
// becomes active.
type WellControl struct {
	Day        int
	Well       string
	Injector   bool
	FluidType  string // injected fluid type, injector only
	RateTarget float64
	BHPLimit   float64
	RateMode   bool // true: rate-controlled, false: BHP-controlled
}

// Region selects the MixtureModel variant and SATNUM/PVTNUM/ROCKNUM tables
// for one PVT region.
type Region struct {
	ID          int
	MixtureKind string // "water", "oilwater", "deadoilgaswater", "liveoildrygaswater", "compositional", "thermalk"
}

// Summary lists the SUMMARY.out columns requested (§6).
type Summary struct {
	Field []string // e.g. "FPR", "FOPR", "FOPT", ...
	Well  []string // e.g. "WOPR", "WBHP", ...
}

// Simulation is the top-level structure decoded from the TOML document.
type Simulation struct {
	Method   string // "IMPEC" or "FIM" (also accepts "AIM")
	Dimens   Dimens
	Equil    Equil
	Tuning   []Tuning
	Wells    []WellSpec
	Perfs    []CompDat
	Controls []WellControl
	Regions  []Region
	Summary  Summary
}

// Load decodes a Simulation from a TOML document at path.
func Load(path string) (*Simulation, error) {
	var sim Simulation
	if _, err := toml.DecodeFile(path, &sim); err != nil {
		return nil, ocperr.Err("config: cannot decode %q: %v", path, err)
	}
	if err := sim.Validate(); err != nil {
		return nil, err
	}
	return &sim, nil
}

// Validate checks the structural invariants a malformed deck would violate;
// these are Input-taxonomy errors (§7) and must never be observed at
// stepping time.
func (s *Simulation) Validate() error {
	if s.Dimens.Nx <= 0 || s.Dimens.Ny <= 0 || s.Dimens.Nz <= 0 {
		return ocperr.Err("config: DIMENS must be positive, got %+v", s.Dimens)
	}
	if s.Method != "IMPEC" && s.Method != "FIM" && s.Method != "AIM" {
		return ocperr.Err("config: unsupported METHOD %q", s.Method)
	}
	if len(s.Tuning) == 0 {
		return ocperr.Err("config: at least one TUNING record is required")
	}
	if len(s.Regions) == 0 {
		return ocperr.Err("config: at least one PVT region is required")
	}
	return nil
}
