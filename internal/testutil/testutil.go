// Package testutil provides shared test utilities and fixtures.
//
// The generators build raw (N, 5) scene arrays (x, y, z, intensity, label)
// so that packages can share fixtures without depending on each other.
package testutil

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sort"
	"testing"

	"github.com/sbinet/npyio"
	"gonum.org/v1/gonum/mat"

	"github.com/KeyueZhu/XenomatiX/internal/fsutil"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// NewRand returns a deterministic generator for tests.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// UniformRows returns n points drawn uniformly over [0, extentX] x
// [0, extentY] with z in [0, 3), intensity in [0, 1) and labels cycling
// through numClasses.
func UniformRows(rng *rand.Rand, n int, extentX, extentY float64, numClasses int) *mat.Dense {
	m := mat.NewDense(n, 5, nil)
	for i := 0; i < n; i++ {
		m.Set(i, 0, rng.Float64()*extentX)
		m.Set(i, 1, rng.Float64()*extentY)
		m.Set(i, 2, rng.Float64()*3)
		m.Set(i, 3, rng.Float64())
		m.Set(i, 4, float64(i%numClasses))
	}
	return m
}

// GridRows returns one point per unit cell centre of an nx by ny lattice
// starting at the origin (x = 0.5, 1.5, ...), all at z = 1 with label 0.
func GridRows(nx, ny int) *mat.Dense {
	m := mat.NewDense(nx*ny, 5, nil)
	r := 0
	for y := 0; y < ny; y++ {
		for x := 0; x < nx; x++ {
			m.SetRow(r, []float64{float64(x) + 0.5, float64(y) + 0.5, 1, 0.5, 0})
			r++
		}
	}
	return m
}

// Rows builds a scene array from literal rows.
func Rows(rows ...[]float64) *mat.Dense {
	m := mat.NewDense(len(rows), len(rows[0]), nil)
	for i, r := range rows {
		m.SetRow(i, r)
	}
	return m
}

// WriteNPY encodes m as a .npy file at path in fsys.
func WriteNPY(t *testing.T, fsys fsutil.FileSystem, path string, m mat.Matrix) {
	t.Helper()
	w, err := fsys.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	if err := npyio.Write(w, m); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close %s: %v", path, err)
	}
}

// MapSource is an in-memory scene source keyed by name.
type MapSource map[string]*mat.Dense

// SceneNames returns the keys in sorted order.
func (m MapSource) SceneNames(ctx context.Context) ([]string, error) {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

// ReadScene returns the named array.
func (m MapSource) ReadScene(ctx context.Context, name string) (*mat.Dense, error) {
	rows, ok := m[name]
	if !ok {
		return nil, fmt.Errorf("scene %q not in source", name)
	}
	return rows, nil
}
