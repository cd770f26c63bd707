package element

import (
	"errors"
	"fmt"

	"github.com/notargets/SEKernel/dispatch"
	"github.com/notargets/SEKernel/field"
	"github.com/notargets/SEKernel/index"
	"github.com/notargets/SEKernel/mapped"
	"gonum.org/v1/gonum/mat"
)

// ErrSingular is returned for a degenerate affine map.
var ErrSingular = errors.New("singular element map")

// Mapped carries the metric terms of NEl elements of degree N on both the
// interior and the boundary node sets.
//
//	Jacobian(i,...,e)  = det(dx/dxi)
//	Dsdx(r,c,i,...,e)  = J * dxi_c/dx_r, the scaled contravariant basis
//
// Rows of Dsdx index physical axes and columns reference axes.
type Mapped[T field.Real] struct {
	Geometry ElementGeometry
	Dim      int
	N        int
	NEl      int

	Jacobian         *field.Field[T]
	Dsdx             *field.Field[T]
	BoundaryJacobian *field.Field[T]
	BoundaryDsdx     *field.Field[T]

	Executor dispatch.Executor
}

// NewMapped allocates zeroed metric fields. A nil executor runs serially.
func NewMapped[T field.Real](dim, N, nEl int, ex dispatch.Executor) (*Mapped[T], error) {
	geom, err := GeometryFor(Dimensionality(dim))
	if err != nil {
		return nil, err
	}
	if ex == nil {
		ex = dispatch.Serial{}
	}
	m := &Mapped[T]{Geometry: geom, Dim: dim, N: N, NEl: nEl, Executor: ex}
	for _, slot := range []struct {
		dst      **field.Field[T]
		kind     index.Kind
		boundary bool
	}{
		{&m.Jacobian, index.Scalar, false},
		{&m.Dsdx, index.Tensor, false},
		{&m.BoundaryJacobian, index.Scalar, true},
		{&m.BoundaryDsdx, index.Tensor, true},
	} {
		l := index.Layout{Kind: slot.kind, Dim: dim, Boundary: slot.boundary, N: N, NVar: 1, NEl: nEl}
		f, err := field.New[T](l)
		if err != nil {
			return nil, fmt.Errorf("element metrics: %w", err)
		}
		*slot.dst = f
	}
	return m, nil
}

// metrics picks the interior or boundary metric pair matching l.
func (m *Mapped[T]) metrics(l index.Layout) (jac, dsdx *field.Field[T]) {
	if l.Boundary {
		return m.BoundaryJacobian, m.BoundaryDsdx
	}
	return m.Jacobian, m.Dsdx
}

// JacobianWeight divides f by the Jacobian in place.
func (m *Mapped[T]) JacobianWeight(f *field.Field[T]) error {
	jac, _ := m.metrics(f.Layout)
	return mapped.JacobianWeight(m.Executor, f, jac)
}

// ContravariantWeight writes out(r,c) = Dsdx(c,r) * scalar.
func (m *Mapped[T]) ContravariantWeight(scalar, out *field.Field[T]) error {
	_, dsdx := m.metrics(scalar.Layout)
	return mapped.ContravariantWeight(m.Executor, scalar, dsdx, out)
}

// ContravariantProjection writes the contravariant components of phys into
// comp. Following it with JacobianWeight yields dxi/dx * phys.
func (m *Mapped[T]) ContravariantProjection(phys, comp *field.Field[T]) error {
	_, dsdx := m.metrics(phys.Layout)
	return mapped.ContravariantProjection(m.Executor, phys, dsdx, comp)
}

// Curl applies the 2D or 3D curl matching the element dimension.
func (m *Mapped[T]) Curl(grad, curl *field.Field[T]) error {
	if m.Dim == 2 {
		return mapped.Curl2D(m.Executor, grad, curl)
	}
	return mapped.Curl3D(m.Executor, grad, curl)
}

// FillAffine sets every node to the metrics of the affine map x = A xi + b,
// where A(r,c) = dx_r/dxi_c is Dim by Dim.
func (m *Mapped[T]) FillAffine(A *mat.Dense) error {
	r, c := A.Dims()
	if r != m.Dim || c != m.Dim {
		return fmt.Errorf("affine map is %dx%d, element is %dD", r, c, m.Dim)
	}
	det := mat.Det(A)
	if det == 0 {
		return ErrSingular
	}
	var inv mat.Dense
	if err := inv.Inverse(A); err != nil {
		return fmt.Errorf("%w: %v", ErrSingular, err)
	}
	fill := func(jac, dsdx *field.Field[T]) {
		jac.Fill(T(det))
		dsdx.Apply(func(ix index.Index) T {
			return T(det * inv.At(ix.Col-1, ix.Row-1))
		})
	}
	fill(m.Jacobian, m.Dsdx)
	fill(m.BoundaryJacobian, m.BoundaryDsdx)
	return nil
}
