// Package out implements the flat-file and SQLite result sinks named as
// out-of-scope *parsing* collaborators in spec.md §1 but carried here as
// ambient scaffolding the same way the teacher's cmd/main.go always writes
// a results file even though deck parsing lives elsewhere (§6, §B).
//
// SummaryWriter/FastReview follow out/out.go's fixed-width,
// io.Pf-formatted column writer shape: a column set fixed at construction,
// rows appended as the run proceeds.
package out

import (
	"fmt"
	"os"

	"github.com/cpmech/gosl/io"

	"github.com/reservoirsim/ocpcore/core/bulk"
	"github.com/reservoirsim/ocpcore/core/well"
	"github.com/reservoirsim/ocpcore/mdl/fluid"
	"github.com/reservoirsim/ocpcore/ocperr"
	"github.com/reservoirsim/ocpcore/reservoir"
)

const colWidth = 12 // ns=12, fixed cell width per §6

// CellRef names a BPR/SOIL/SGAS/SWAT report cell by its (I,J,K) grid
// coordinate alongside the flat Cell index that resolves it.
type CellRef struct {
	I, J, K int
	Index   int
}

// SummaryWriter appends one row per successful step to SUMMARY.out, each
// column left-aligned and space-padded to colWidth characters; columns are
// not tab-separated. Its column set — field totals, selected per-well
// rate/BHP/DG columns and selected per-cell BPR/SOIL/SGAS/SWAT columns —
// is fixed at construction (§6).
type SummaryWriter struct {
	f        *os.File
	wellCols []string // e.g. "WOPR", "WBHP", matched against every well in Wells
	wells    []string // well names to report, in column order
	cells    []CellRef
	cellCols []string // e.g. "BPR", "SOIL"
}

// NewSummaryWriter creates (or truncates) path and writes the header row.
func NewSummaryWriter(path string, wellCols, wellNames []string, cellCols []string, cells []CellRef) (*SummaryWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, ocperr.Err("out: cannot create %q: %v", path, err)
	}
	w := &SummaryWriter{f: f, wellCols: wellCols, wells: wellNames, cells: cells, cellCols: cellCols}
	w.writeHeader()
	return w, nil
}

func (w *SummaryWriter) writeHeader() {
	buf := io.Sf("%-*s%-*s%-*s%-*s%-*s%-*s%-*s%-*s%-*s%-*s%-*s",
		colWidth, "TIME", colWidth, "FPR", colWidth, "FOPR", colWidth, "FOPT",
		colWidth, "FGPR", colWidth, "FGPT", colWidth, "FWPR", colWidth, "FWPT",
		colWidth, "FGIR", colWidth, "FGIT", colWidth, "FWIR")
	for _, wn := range w.wells {
		for _, wc := range w.wellCols {
			buf += io.Sf("%-*s", colWidth, wn+":"+wc)
		}
	}
	for _, cr := range w.cells {
		for _, cc := range w.cellCols {
			buf += io.Sf("%-*s", colWidth, io.Sf("%s(%d,%d,%d)", cc, cr.I, cr.J, cr.K))
		}
	}
	fmt.Fprintln(w.f, buf)
}

// AppendRow writes one step's field/well/cell columns (WellGroup's per-
// well rates plus the reservoir's field totals, both already refreshed by
// Reservoir.CalIPRT before this is called).
func (w *SummaryWriter) AppendRow(t float64, rs *reservoir.Reservoir) error {
	field := rs.Field
	var fpr float64 // pore-volume-weighted field pressure
	if vp := rs.FieldPoreVolume(); vp > 0 {
		for _, c := range rs.Cells {
			fpr += c.P * c.Vp
		}
		fpr /= vp
	}
	buf := io.Sf("%-*.4f%-*.2f%-*.2f%-*.2f%-*.2f%-*.2f%-*.2f%-*.2f%-*.2f%-*.2f%-*.2f",
		colWidth, t, colWidth, fpr, colWidth, field.FOPR, colWidth, field.FOPT,
		colWidth, field.FGPR, colWidth, field.FGPt, colWidth, field.FWPR, colWidth, field.FWPT,
		colWidth, field.FGIR, colWidth, field.FGIT, colWidth, field.FWIR)

	byName := make(map[string]*well.Well, len(rs.Wells))
	for _, wl := range rs.Wells {
		byName[wl.Name] = wl
	}
	for _, wn := range w.wells {
		wl := byName[wn]
		for _, wc := range w.wellCols {
			buf += io.Sf("%-*.4f", colWidth, wellColumn(wl, wc))
		}
	}
	for _, cr := range w.cells {
		if cr.Index < 0 || cr.Index >= len(rs.Cells) {
			return ocperr.Err("out: cell reference (%d,%d,%d) resolves to out-of-range index %d", cr.I, cr.J, cr.K, cr.Index)
		}
		c := rs.Cells[cr.Index]
		for _, cc := range w.cellCols {
			buf += io.Sf("%-*.4f", colWidth, cellColumn(c, cc))
		}
	}
	_, err := fmt.Fprintln(w.f, buf)
	return err
}

func wellColumn(wl *well.Well, col string) float64 {
	if wl == nil {
		return 0
	}
	switch col {
	case "WOPR":
		return wl.Rates.Oil
	case "WGPR":
		return wl.Rates.Gas
	case "WWPR":
		return wl.Rates.Water
	case "WOPT":
		return wl.CumOil
	case "WGPT":
		return wl.CumGas
	case "WWPT":
		return wl.CumWater
	case "WBHP":
		return wl.BHP
	case "DG":
		if len(wl.Perfs) == 0 {
			return 0
		}
		return wl.Perfs[0].Depth - wl.RefDepth
	default:
		return 0
	}
}

func cellColumn(c *bulk.Cell, col string) float64 {
	switch col {
	case "BPR":
		return c.P
	case "SOIL":
		return c.Out.S[fluid.PhaseOil]
	case "SGAS":
		return c.Out.S[fluid.PhaseGas]
	case "SWAT":
		return c.Out.S[fluid.PhaseWater]
	default:
		return 0
	}
}

// Close flushes and closes the underlying file.
func (w *SummaryWriter) Close() error { return w.f.Close() }
