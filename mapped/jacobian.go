package mapped

import (
	"github.com/notargets/SEKernel/dispatch"
	"github.com/notargets/SEKernel/field"
)

// JacobianWeight divides every entry of f in place by the Jacobian
// determinant at its node. f may be a scalar, vector or tensor field,
// interior or boundary, in 1D, 2D or 3D; jacobian is the matching nVar=1
// scalar field (f.Metric()) and is broadcast across variables and
// components.
//
// Zero Jacobian entries are not trapped; they surface as Inf or NaN.
func JacobianWeight[T field.Real](ex dispatch.Executor, f, jacobian *field.Field[T]) error {
	if err := checkBase(f, "field"); err != nil {
		return err
	}
	if err := jacobian.Expect(f.Metric(), "jacobian"); err != nil {
		return err
	}
	var (
		l  = f.Layout
		jl = jacobian.Layout
		nc = l.Components()
		fd = f.Data
		jd = jacobian.Data
	)
	ex.Launch(spaceOf(l), func(p dispatch.Point) {
		ix := indexOf(p)
		base := nc * l.ScalarOffset(ix)
		ix.Var = 0
		jac := jd[jl.ScalarOffset(ix)]
		for c := 0; c < nc; c++ {
			fd[base+c] /= jac
		}
	})
	return nil
}
