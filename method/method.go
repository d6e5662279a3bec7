// Package method defines the shared time-stepping Driver interface and its
// allocator registry (IMPES/FIM/AIM, §4.4-§C.4), grounded on OCPMethod.hpp's
// OCP_IMPES/OCP_FIM split and dispatched through the same tagged-registry
// idiom mdl/fluid and mdl/relperm use.
package method

import (
	"github.com/reservoirsim/ocpcore/core/control"
	"github.com/reservoirsim/ocpcore/core/linsys"
	"github.com/reservoirsim/ocpcore/ocperr"
	"github.com/reservoirsim/ocpcore/reservoir"
)

// Driver is one time-stepping method: IMPES, FIM or AIM. GoOneStep drives a
// full step to either a committed success or an exhausted retry budget,
// mirroring OCP_IMPES::goOneStep / OCP_FIM's Prepare-AssembleMat-Solve-
// UpdateProperty-FinishNR-FinishStep sequence.
type Driver interface {
	// Setup allocates any auxiliary state the driver needs once, before the
	// first step (rs.AllocateAuxIMPEC/FIM).
	Setup(rs *reservoir.Reservoir) error

	// GoOneStep advances the reservoir by one time step, retrying at
	// progressively smaller dt on any transient check failure, and commits
	// the step (AcceptAll, FinishStep bookkeeping) on success. It returns an
	// error when dt is pushed below TimeMin or when an assembly, linear solve
	// or re-flash outside the retry path fails.
	GoOneStep(rs *reservoir.Reservoir, ctrl *control.Control, ls *linsys.LinearSystem) error
}

var allocators = map[string]func() Driver{}

// New allocates a registered Driver by name ("impes", "fim", "aim").
func New(name string) (Driver, error) {
	alloc, ok := allocators[name]
	if !ok {
		return nil, ocperr.Err("method: driver %q is not registered", name)
	}
	return alloc(), nil
}

// Register is called from each method/* subpackage's init(), the same
// self-registration idiom mdl/relperm's flow units and mdl/fluid's
// MixtureModel variants use. Subpackages that need it import method and
// call this from init(); it's exported because Driver implementations live
// in separate subpackages to avoid an import cycle with reservoir.
func Register(name string, alloc func() Driver) {
	allocators[name] = alloc
}
