// Package field provides borrowed-buffer views over flattened field data.
// A Field pairs a slice owned by the caller with the Layout that addresses it.
package field

import (
	"errors"
	"fmt"
	"math"

	"github.com/notargets/SEKernel/index"
	"gonum.org/v1/gonum/floats"
)

// Real is the set of floating point types a field may hold.
type Real interface {
	~float32 | ~float64
}

// ErrShape reports a buffer whose length or layout does not fit an operation.
var ErrShape = errors.New("field shape mismatch")

// Field is a view of one flattened buffer. The kernels read and write Data in
// place and never reallocate it.
type Field[T Real] struct {
	index.Layout
	Data []T
}

// New allocates a zeroed buffer for the layout.
func New[T Real](l index.Layout) (*Field[T], error) {
	if err := l.Validate(); err != nil {
		return nil, err
	}
	return &Field[T]{Layout: l, Data: make([]T, l.Size())}, nil
}

// MustNew is New for layouts known to be valid.
func MustNew[T Real](l index.Layout) *Field[T] {
	f, err := New[T](l)
	if err != nil {
		panic(err)
	}
	return f
}

// Wrap borrows data as a field of layout l.
func Wrap[T Real](l index.Layout, data []T) (*Field[T], error) {
	if err := l.Validate(); err != nil {
		return nil, err
	}
	if len(data) != l.Size() {
		return nil, fmt.Errorf("%w: %s needs %d values, buffer has %d",
			ErrShape, l, l.Size(), len(data))
	}
	return &Field[T]{Layout: l, Data: data}, nil
}

// At returns the value at ix.
func (f *Field[T]) At(ix index.Index) T {
	return f.Data[f.Offset(ix)]
}

// Set stores v at ix.
func (f *Field[T]) Set(ix index.Index, v T) {
	f.Data[f.Offset(ix)] = v
}

// Fill sets every value to v.
func (f *Field[T]) Fill(v T) {
	for i := range f.Data {
		f.Data[i] = v
	}
}

// Apply sets every entry to fn of its index.
func (f *Field[T]) Apply(fn func(ix index.Index) T) {
	f.Each(func(ix index.Index) {
		f.Data[f.Offset(ix)] = fn(ix)
	})
}

// FaceSlice returns the contiguous values of one face of a boundary field,
// all variables included. The slice aliases Data.
func (f *Field[T]) FaceSlice(side, el int) []T {
	block := f.Components() * f.NodesPerBlock() * f.NVar
	start := block * (side - 1 + f.Sides()*el)
	return f.Data[start : start+block]
}

// Expect checks that f has layout want.
func (f *Field[T]) Expect(want index.Layout, name string) error {
	if f == nil {
		return fmt.Errorf("%w: %s is nil", ErrShape, name)
	}
	if f.Layout != want {
		return fmt.Errorf("%w: %s is %s, want %s", ErrShape, name, f.Layout, want)
	}
	if len(f.Data) != want.Size() {
		return fmt.Errorf("%w: %s holds %d values, want %d", ErrShape, name, len(f.Data), want.Size())
	}
	return nil
}

// EqualApprox reports whether a and b have the same layout and agree to within
// tol at every entry.
func EqualApprox(a, b *Field[float64], tol float64) bool {
	if a.Layout != b.Layout {
		return false
	}
	return floats.EqualApprox(a.Data, b.Data, tol)
}

// MaxAbsDiff is the largest absolute difference between a and b, which must
// have the same length.
func MaxAbsDiff(a, b []float64) float64 {
	return floats.Distance(a, b, math.Inf(1))
}
