// Package linsys implements the sparse linear system assembly and solve
// step shared by IMPES's pressure equation and FIM's Newton update (§4.6).
//
// The Triplet-then-factorise-then-solve shape, including the external
// black-box solver boundary, is grounded on the teacher's fem/domain.go
// (Kb *la.Triplet, LinSol la.LinSol) and the Init/Fact/Solve call sequence
// in fem/s_linimp.go and mallano-gofem/fem/solver.go
// (LinSol.InitR/.Fact/.SolveR/.Clean).
package linsys

import (
	"fmt"
	"os"

	"github.com/cpmech/gosl/la"

	"github.com/reservoirsim/ocpcore/ocperr"
)

// LinearSystem owns one Newton (or IMPES pressure) step's coefficient
// matrix and right-hand side: a growable Triplet assembled row by row, then
// handed to an external sparse solver.
type LinearSystem struct {
	NumRows int
	triplet la.Triplet
	B       []float64 // right-hand side
	X       []float64 // solution, filled by Solve

	solver    la.LinSol
	solverSet bool

	// rowCap tracks the nonzero budget reserved per row; RowCapPlus and
	// Resize re-initialise the Triplet from it, while AddEntry itself never
	// grows the Triplet (the Go counterpart of WellGroup.cpp's RowCapPlus
	// bookkeeping).
	rowCap int

	dumpPath string // DumpCSR target; empty disables the debug hook
}

// New allocates a LinearSystem for n unknowns, reserving capacity for
// avgNnzPerRow nonzeros per row (AllocateMem in the original).
func New(n, avgNnzPerRow int) *LinearSystem {
	ls := &LinearSystem{NumRows: n, rowCap: avgNnzPerRow}
	ls.triplet.Init(n, n, n*avgNnzPerRow)
	ls.B = make([]float64, n)
	ls.X = make([]float64, n)
	return ls
}

// RowCapPlus grows the Triplet's reserved nonzero budget by extra entries
// per row and re-initialises it, preserving NumRows; call before the first
// AddEntry of a step that needs more capacity than New reserved.
func (ls *LinearSystem) RowCapPlus(extraPerRow int) {
	ls.rowCap += extraPerRow
	ls.triplet.Init(ls.NumRows, ls.NumRows, ls.NumRows*ls.rowCap)
}

// Resize re-targets the LinearSystem at a system of n unknowns, reserving
// avgNnzPerRow nonzeros per row. Unlike RowCapPlus, which only grows the
// nonzero budget for the existing NumRows, Resize changes NumRows itself —
// FIM needs this the first time it runs against a reservoir whose IMPES/AIM
// siblings share the same *LinearSystem sized for one unknown per cell,
// growing it to (Nc+1) unknowns per cell.
func (ls *LinearSystem) Resize(n, avgNnzPerRow int) {
	ls.NumRows = n
	ls.rowCap = avgNnzPerRow
	ls.triplet.Init(n, n, n*avgNnzPerRow)
	ls.B = make([]float64, n)
	ls.X = make([]float64, n)
}

// Reset clears the matrix and right-hand side for a fresh assembly pass,
// keeping the Triplet's reserved capacity.
func (ls *LinearSystem) Reset() {
	ls.triplet.Start()
	for i := range ls.B {
		ls.B[i] = 0
	}
}

// AddEntry accumulates val into A[row,col] (Triplet entries at the same
// (row,col) sum on solve, the usual FEM/FVM assembly convention).
func (ls *LinearSystem) AddEntry(row, col int, val float64) {
	ls.triplet.Put(row, col, val)
}

// AddRHS accumulates val into b[row].
func (ls *LinearSystem) AddRHS(row int, val float64) {
	ls.B[row] += val
}

// SetDumpPath enables DumpCSR, writing IA/JA/val/b to the given path on the
// next Solve call (Solver.hxx::showMat_CSR's debug hook; disabled by
// default).
func (ls *LinearSystem) SetDumpPath(path string) { ls.dumpPath = path }

// Solve factorises and solves Ax = b with a fresh solver instance each
// call, the same cost-over-robustness tradeoff the teacher's IMPES/transient
// solves make for a matrix whose sparsity pattern changes step to step.
func (ls *LinearSystem) Solve(solverName string, symmetric, verbose bool) error {
	if ls.dumpPath != "" {
		if err := ls.DumpCSR(ls.dumpPath); err != nil {
			return err
		}
	}
	ls.solver = la.GetSolver(solverName)
	ls.solverSet = true
	defer func() {
		ls.solver.Clean()
		ls.solverSet = false
	}()

	if err := ls.solver.InitR(&ls.triplet, symmetric, verbose, false); err != nil {
		return ocperr.Err("linsys: initialise solver %q: %v", solverName, err)
	}
	if err := ls.solver.Fact(); err != nil {
		return ocperr.Err("linsys: factorise: %v", err)
	}
	if err := ls.solver.SolveR(ls.X, ls.B, false); err != nil {
		return ocperr.Err("linsys: solve: %v", err)
	}
	return nil
}

// Free releases the underlying solver's resources; call once the
// LinearSystem is no longer needed (mirrors la.LinSol.Free in domain.Domain.End).
func (ls *LinearSystem) Free() {
	if ls.solverSet {
		ls.solver.Clean()
		ls.solverSet = false
	}
}

// DumpCSR writes the assembled matrix as gosl's compressed-sparse-column
// arrays (IA = column pointers, JA = row indices, VAL = values) plus the
// right-hand side to path, for offline inspection of a failing assembly
// (Solver.hxx::showMat_CSR). The arrays are not transposed to row order.
func (ls *LinearSystem) DumpCSR(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return ocperr.Err("linsys: cannot create dump file %q: %v", path, err)
	}
	defer f.Close()

	cc := ls.triplet.ToMatrix(nil)
	if _, err := fmt.Fprintf(f, "IA: %v\n", cc.Ap); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(f, "JA: %v\n", cc.Ai); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(f, "VAL: %v\n", cc.Ax); err != nil {
		return err
	}
	_, err = fmt.Fprintf(f, "B: %v\n", ls.B)
	return err
}
