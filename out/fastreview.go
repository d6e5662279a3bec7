package out

import (
	"fmt"
	"os"

	"github.com/cpmech/gosl/io"

	"github.com/reservoirsim/ocpcore/ocperr"
)

// FastReview appends one wide record per step to FastReview.out: TIME, dt
// and the four Control change metrics plus the step's worst CFL number,
// the at-a-glance diagnostic column set §6 names.
type FastReview struct {
	f *os.File
}

// NewFastReview creates (or truncates) path and writes the header row.
func NewFastReview(path string) (*FastReview, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, ocperr.Err("out: cannot create %q: %v", path, err)
	}
	fr := &FastReview{f: f}
	fmt.Fprintln(f, io.Sf("%-*s%-*s%-*s%-*s%-*s%-*s%-*s",
		colWidth, "TIME", colWidth, "DT", colWidth, "DPMAX", colWidth, "DVMAX",
		colWidth, "DSMAX", colWidth, "DNMAX", colWidth, "CFL"))
	return fr, nil
}

// AppendRow writes one step's TIME/dt/dPmax/dVmax/dSmax/dNmax/CFL row.
func (fr *FastReview) AppendRow(time, dt, dPmax, dVmax, dSmax, dNmax, cfl float64) error {
	_, err := fmt.Fprintln(fr.f, io.Sf("%-*.4f%-*.6f%-*.4f%-*.6f%-*.6f%-*.4f%-*.4f",
		colWidth, time, colWidth, dt, colWidth, dPmax, colWidth, dVmax,
		colWidth, dSmax, colWidth, dNmax, colWidth, cfl))
	return err
}

// Close flushes and closes the underlying file.
func (fr *FastReview) Close() error { return fr.f.Close() }
