package mapped

import (
	"github.com/notargets/SEKernel/dispatch"
	"github.com/notargets/SEKernel/field"
	"github.com/notargets/SEKernel/index"
)

// ContravariantWeight scales the contravariant basis by a scalar field,
// writing out(r,c) = dsdx(c,r) * scalar at every node. Row r of out is the
// r-th contravariant direction weighted by the scalar, ready for a
// reference-space divergence. dsdx is an nVar=1 tensor on the node set of
// scalar; out is a tensor with scalar's variable count and is fully
// overwritten.
func ContravariantWeight[T field.Real](ex dispatch.Executor, scalar, dsdx, out *field.Field[T]) error {
	if err := checkBase(scalar, "scalar", index.Scalar); err != nil {
		return err
	}
	if err := checkMultiDim(scalar.Layout, "scalar"); err != nil {
		return err
	}
	if err := dsdx.Expect(scalar.Metric().WithKind(index.Tensor), "dsdx"); err != nil {
		return err
	}
	if err := out.Expect(scalar.WithKind(index.Tensor), "out"); err != nil {
		return err
	}
	if err := checkDistinct(out, dsdx, "out", "dsdx"); err != nil {
		return err
	}
	var (
		l   = scalar.Layout
		ml  = dsdx.Layout
		dim = l.Dim
		nc  = dim * dim
		sd  = scalar.Data
		md  = dsdx.Data
		od  = out.Data
	)
	ex.Launch(spaceOf(l), func(p dispatch.Point) {
		ix := indexOf(p)
		so := l.ScalarOffset(ix)
		s := sd[so]
		ob := nc * so
		ix.Var = 0
		mb := nc * ml.ScalarOffset(ix)
		for c := 0; c < dim; c++ {
			for r := 0; r < dim; r++ {
				od[ob+r+dim*c] = md[mb+c+dim*r] * s
			}
		}
	})
	return nil
}

// ContravariantProjection converts a physical-space vector into its
// contravariant components, comp_c = sum_r dsdx(r,c) * phys_r, where dsdx
// rows index physical axes and columns index reference axes. comp has phys's
// layout and is fully overwritten.
func ContravariantProjection[T field.Real](ex dispatch.Executor, phys, dsdx, comp *field.Field[T]) error {
	if err := checkBase(phys, "phys", index.Vector); err != nil {
		return err
	}
	if err := checkMultiDim(phys.Layout, "phys"); err != nil {
		return err
	}
	if err := dsdx.Expect(phys.Metric().WithKind(index.Tensor), "dsdx"); err != nil {
		return err
	}
	if err := comp.Expect(phys.Layout, "comp"); err != nil {
		return err
	}
	if err := checkDistinct(comp, phys, "comp", "phys"); err != nil {
		return err
	}
	var (
		l   = phys.Layout
		ml  = dsdx.Layout
		dim = l.Dim
		pd  = phys.Data
		md  = dsdx.Data
		cd  = comp.Data
	)
	ex.Launch(spaceOf(l), func(p dispatch.Point) {
		ix := indexOf(p)
		vb := dim * l.ScalarOffset(ix)
		ix.Var = 0
		mb := dim * dim * ml.ScalarOffset(ix)
		for c := 0; c < dim; c++ {
			var sum T
			for r := 0; r < dim; r++ {
				sum += md[mb+r+dim*c] * pd[vb+r]
			}
			cd[vb+c] = sum
		}
	})
	return nil
}
