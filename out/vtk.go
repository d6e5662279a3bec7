package out

import (
	"fmt"
	"os"

	"github.com/reservoirsim/ocpcore/core/bulk"
	"github.com/reservoirsim/ocpcore/ocperr"
)

// Topology is the point/cell geometry grid<k>.vtk reuses across every
// period: grid construction is an out-of-scope external collaborator
// (§1), so the caller builds this once from whatever grid source feeds
// core/bulk and hands it to VTKWriter.
type Topology struct {
	Points    [][3]float64 // point coordinates, x/y/z
	CellVerts [][]int      // one entry per Bulk cell, point indices (VTK_HEXAHEDRON order)
}

// VTKWriter emits one legacy-format unstructured-grid VTK file per period,
// reusing Topology's point/cell arrays and appending cell-data scalar
// arrays for the requested properties plus a well-marker array (§6
// grid<k>.vtk).
type VTKWriter struct {
	dir string
	topo Topology
}

// NewVTKWriter validates the topology against the cell count it will be
// asked to report on and returns a writer rooted at dir.
func NewVTKWriter(dir string, topo Topology, numCells int) (*VTKWriter, error) {
	if len(topo.CellVerts) != numCells {
		return nil, ocperr.Err("out: VTK topology has %d cells, reservoir has %d", len(topo.CellVerts), numCells)
	}
	return &VTKWriter{dir: dir, topo: topo}, nil
}

// WritePeriod writes grid<k>.vtk: the fixed topology plus one cell-data
// scalar array per entry in props (keyed by the VTK array name) and a
// wellCell marker array (1 for a perforated cell, 0 otherwise).
func (v *VTKWriter) WritePeriod(k int, props map[string][]float64, wellCells map[int]bool) error {
	path := fmt.Sprintf("%s/grid%d.vtk", v.dir, k)
	f, err := os.Create(path)
	if err != nil {
		return ocperr.Err("out: cannot create %q: %v", path, err)
	}
	defer f.Close()

	fmt.Fprintln(f, "# vtk DataFile Version 3.0")
	fmt.Fprintln(f, "reservoir simulation output")
	fmt.Fprintln(f, "ASCII")
	fmt.Fprintln(f, "DATASET UNSTRUCTURED_GRID")

	fmt.Fprintf(f, "POINTS %d double\n", len(v.topo.Points))
	for _, p := range v.topo.Points {
		fmt.Fprintf(f, "%g %g %g\n", p[0], p[1], p[2])
	}

	numCells := len(v.topo.CellVerts)
	size := 0
	for _, verts := range v.topo.CellVerts {
		size += 1 + len(verts)
	}
	fmt.Fprintf(f, "CELLS %d %d\n", numCells, size)
	for _, verts := range v.topo.CellVerts {
		fmt.Fprintf(f, "%d", len(verts))
		for _, vi := range verts {
			fmt.Fprintf(f, " %d", vi)
		}
		fmt.Fprintln(f)
	}

	fmt.Fprintf(f, "CELL_TYPES %d\n", numCells)
	for range v.topo.CellVerts {
		fmt.Fprintln(f, "12") // VTK_HEXAHEDRON
	}

	fmt.Fprintf(f, "CELL_DATA %d\n", numCells)
	for name, vals := range props {
		if len(vals) != numCells {
			return ocperr.Err("out: VTK property %q has %d values, grid has %d cells", name, len(vals), numCells)
		}
		fmt.Fprintf(f, "SCALARS %s double 1\n", name)
		fmt.Fprintln(f, "LOOKUP_TABLE default")
		for _, val := range vals {
			fmt.Fprintf(f, "%g\n", val)
		}
	}
	fmt.Fprintln(f, "SCALARS wellCell int 1")
	fmt.Fprintln(f, "LOOKUP_TABLE default")
	for i := 0; i < numCells; i++ {
		if wellCells[i] {
			fmt.Fprintln(f, "1")
		} else {
			fmt.Fprintln(f, "0")
		}
	}
	return nil
}

// CellProperty extracts one scalar array across every cell, ready to hand
// to WritePeriod's props map. It recognises PRESSURE, KRO, KRG and KRW; any
// other column name, including RPTWriter's saturation and density columns,
// yields zeros.
func CellProperty(cells []*bulk.Cell, col string) ([]float64, error) {
	vals := make([]float64, len(cells))
	for i, c := range cells {
		v, err := cellReportValueFromCell(c, col)
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	return vals, nil
}

func cellReportValueFromCell(c *bulk.Cell, col string) (float64, error) {
	switch col {
	case "PRESSURE":
		return c.P, nil
	default:
		kr, err := c.RelPerm()
		if err != nil {
			return 0, err
		}
		switch col {
		case "KRO":
			return kr.Kro, nil
		case "KRG":
			return kr.Krg, nil
		case "KRW":
			return kr.Krw, nil
		}
		return 0, nil
	}
}
