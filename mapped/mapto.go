package mapped

import (
	"fmt"

	"github.com/notargets/SEKernel/dispatch"
	"github.com/notargets/SEKernel/field"
	"github.com/notargets/SEKernel/index"
)

// MapToScalar lowers the rank of src by one so that scalar-only operators can
// process each row as an independent channel. A vector field with nVar
// variables becomes a scalar field with dim*nVar variables, variable
// dim*v+(c-1) holding component c of variable v. A tensor field becomes a
// vector field the same way, variable dim*v+(r-1) holding row r.
//
// dst must have the layout this implies and is fully overwritten.
func MapToScalar[T field.Real](ex dispatch.Executor, src, dst *field.Field[T]) error {
	if err := checkBase(src, "src", index.Vector, index.Tensor); err != nil {
		return err
	}
	want := src.WithKind(src.Kind - 1).WithVars(src.Dim * src.NVar)
	if err := dst.Expect(want, "dst"); err != nil {
		return err
	}
	var (
		sl  = src.Layout
		dl  = dst.Layout
		dim = sl.Dim
		snc = sl.Components()
		dnc = dl.Components()
		sd  = src.Data
		dd  = dst.Data
	)
	ex.Launch(spaceOf(sl), func(p dispatch.Point) {
		ix := indexOf(p)
		sb := snc * sl.ScalarOffset(ix)
		v := ix.Var
		for r := 0; r < dim; r++ {
			ix.Var = dim*v + r
			db := dnc * dl.ScalarOffset(ix)
			for c := 0; c < dnc; c++ {
				dd[db+c] = sd[sb+r+dim*c]
			}
		}
	})
	return nil
}

// MapToTensor is the inverse of MapToScalar: it raises the rank of src by one,
// gathering each run of dim consecutive variables into the rows of a single
// variable. A scalar field with dim*nVar variables becomes a vector field
// with nVar variables; a vector field with dim*nVar variables (for example
// the gradients of the channels produced by MapToScalar) becomes a tensor
// field whose row r is variable dim*v+(r-1).
//
// dst must have the layout this implies and is fully overwritten.
func MapToTensor[T field.Real](ex dispatch.Executor, src, dst *field.Field[T]) error {
	if err := checkBase(src, "src", index.Scalar, index.Vector); err != nil {
		return err
	}
	if src.NVar%src.Dim != 0 {
		return fmt.Errorf("%w: src has %d variables, not a multiple of %d",
			ErrShape, src.NVar, src.Dim)
	}
	want := src.WithKind(src.Kind + 1).WithVars(src.NVar / src.Dim)
	if err := dst.Expect(want, "dst"); err != nil {
		return err
	}
	var (
		sl  = src.Layout
		dl  = dst.Layout
		dim = sl.Dim
		snc = sl.Components()
		dnc = dl.Components()
		sd  = src.Data
		dd  = dst.Data
	)
	ex.Launch(spaceOf(dl), func(p dispatch.Point) {
		ix := indexOf(p)
		db := dnc * dl.ScalarOffset(ix)
		v := ix.Var
		for r := 0; r < dim; r++ {
			ix.Var = dim*v + r
			sb := snc * sl.ScalarOffset(ix)
			for c := 0; c < snc; c++ {
				dd[db+r+dim*c] = sd[sb+c]
			}
		}
	})
	return nil
}
