package out

import (
	"fmt"
	"os"

	"github.com/cpmech/gosl/io"

	"github.com/reservoirsim/ocpcore/core/well"
	"github.com/reservoirsim/ocpcore/mdl/fluid"
	"github.com/reservoirsim/ocpcore/ocperr"
	"github.com/reservoirsim/ocpcore/reservoir"
)

// RPTWriter appends period snapshots to RPT.out: a by-well block (rates,
// BHP, cumulative) followed by a by-cell block of the requested grid
// properties, at whatever times the caller chooses to call WriteSnapshot
// (an optional report, §6, unlike SummaryWriter/FastReview's every-step
// cadence).
type RPTWriter struct {
	f        *os.File
	cellCols []string // PRESSURE, SOIL, SGAS, SWAT, KRO, KRG, KRW, ...
}

// NewRPTWriter creates (or truncates) path for period snapshots reporting
// the given per-cell properties.
func NewRPTWriter(path string, cellCols []string) (*RPTWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, ocperr.Err("out: cannot create %q: %v", path, err)
	}
	return &RPTWriter{f: f, cellCols: cellCols}, nil
}

// WriteSnapshot appends one period's well and cell blocks.
func (r *RPTWriter) WriteSnapshot(time float64, rs *reservoir.Reservoir) error {
	fmt.Fprintln(r.f, io.Sf("=== RPT @ TIME=%.4f ===", time))

	fmt.Fprintln(r.f, "-- wells --")
	for _, w := range rs.Wells {
		fmt.Fprintln(r.f, io.Sf("%-16s mode=%-6s BHP=%-10.3f oil=%-10.3f gas=%-10.3f water=%-10.3f cumOil=%-10.3f cumGas=%-10.3f cumWater=%-10.3f",
			w.Name, modeName(w.Mode), w.BHP, w.Rates.Oil, w.Rates.Gas, w.Rates.Water, w.CumOil, w.CumGas, w.CumWater))
	}

	fmt.Fprintln(r.f, "-- cells --")
	for _, c := range rs.Cells {
		line := io.Sf("cell[%d]", c.Index)
		for _, col := range r.cellCols {
			val, err := cellReportValue(rs, c.Index, col)
			if err != nil {
				return err
			}
			line += io.Sf(" %s=%.4f", col, val)
		}
		fmt.Fprintln(r.f, line)
	}
	return nil
}

func modeName(m well.Mode) string {
	if m == well.ModeBHP {
		return "BHP"
	}
	return "RATE"
}

func cellReportValue(rs *reservoir.Reservoir, idx int, col string) (float64, error) {
	c := rs.Cells[idx]
	switch col {
	case "PRESSURE":
		return c.P, nil
	case "SOIL":
		return c.Out.S[fluid.PhaseOil], nil
	case "SGAS":
		return c.Out.S[fluid.PhaseGas], nil
	case "SWAT":
		return c.Out.S[fluid.PhaseWater], nil
	case "DENO":
		return c.Out.Rho[fluid.PhaseOil], nil
	case "DENG":
		return c.Out.Rho[fluid.PhaseGas], nil
	case "DENW":
		return c.Out.Rho[fluid.PhaseWater], nil
	case "BOIL", "BGAS", "BWAT":
		return c.Out.Vf, nil // formation-volume-factor equivalent not separately tracked; reports the flashed phase volume
	default:
		kr, err := c.RelPerm()
		if err != nil {
			return 0, ocperr.Err("out: cell %d relperm: %v", idx, err)
		}
		switch col {
		case "KRO":
			return kr.Kro, nil
		case "KRG":
			return kr.Krg, nil
		case "KRW":
			return kr.Krw, nil
		case "PCW":
			return kr.Pcow, nil
		}
		return 0, nil
	}
}

// Close flushes and closes the underlying file.
func (r *RPTWriter) Close() error { return r.f.Close() }
