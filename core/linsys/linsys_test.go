package linsys

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestSolveDiagonalSystem(t *testing.T) {
	ls := New(3, 3)
	ls.Reset()
	ls.AddEntry(0, 0, 2)
	ls.AddEntry(1, 1, 4)
	ls.AddEntry(2, 2, 5)
	ls.AddRHS(0, 4)
	ls.AddRHS(1, 8)
	ls.AddRHS(2, 10)

	if err := ls.Solve("umfpack", false, false); err != nil {
		t.Fatalf("Solve: %v", err)
	}
	defer ls.Free()

	want := []float64{2, 2, 2}
	for i, w := range want {
		if math.Abs(ls.X[i]-w) > 1e-9 {
			t.Fatalf("x[%d] = %g, want %g", i, ls.X[i], w)
		}
	}
}

func TestRowCapPlusPreservesDimensions(t *testing.T) {
	ls := New(2, 1)
	ls.RowCapPlus(3)
	if ls.NumRows != 2 {
		t.Fatalf("NumRows changed: got %d", ls.NumRows)
	}
}

func TestDumpCSRWritesFile(t *testing.T) {
	ls := New(2, 2)
	ls.Reset()
	ls.AddEntry(0, 0, 1)
	ls.AddEntry(1, 1, 1)
	ls.AddRHS(0, 1)
	ls.AddRHS(1, 1)

	path := filepath.Join(t.TempDir(), "dump.csr")
	if err := ls.DumpCSR(path); err != nil {
		t.Fatalf("DumpCSR: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected dump file to exist: %v", err)
	}
}
