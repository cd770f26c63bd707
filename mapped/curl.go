package mapped

import (
	"fmt"

	"github.com/notargets/SEKernel/dispatch"
	"github.com/notargets/SEKernel/field"
	"github.com/notargets/SEKernel/index"
)

// Curl2D combines a 2D gradient tensor, grad(r,c) = d f_r / d x_c, into the
// scalar curl d f_y/dx - d f_x/dy. curl has grad's variable count.
func Curl2D[T field.Real](ex dispatch.Executor, grad, curl *field.Field[T]) error {
	if err := checkCurl(grad, 2); err != nil {
		return err
	}
	if err := curl.Expect(grad.WithKind(index.Scalar), "curl"); err != nil {
		return err
	}
	var (
		l  = grad.Layout
		gd = grad.Data
		cd = curl.Data
	)
	ex.Launch(spaceOf(l), func(p dispatch.Point) {
		so := l.ScalarOffset(indexOf(p))
		g := gd[4*so : 4*so+4]
		// g[1] = grad(2,1), g[2] = grad(1,2)
		cd[so] = g[1] - g[2]
	})
	return nil
}

// Curl3D combines a 3D gradient tensor, grad(r,c) = d f_r / d x_c, into the
// curl vector (grad(3,2)-grad(2,3), grad(1,3)-grad(3,1), grad(2,1)-grad(1,2)).
func Curl3D[T field.Real](ex dispatch.Executor, grad, curl *field.Field[T]) error {
	if err := checkCurl(grad, 3); err != nil {
		return err
	}
	if err := curl.Expect(grad.WithKind(index.Vector), "curl"); err != nil {
		return err
	}
	var (
		l  = grad.Layout
		gd = grad.Data
		cd = curl.Data
	)
	ex.Launch(spaceOf(l), func(p dispatch.Point) {
		so := l.ScalarOffset(indexOf(p))
		g := gd[9*so : 9*so+9]
		c := cd[3*so : 3*so+3]
		// component (r,c) of g sits at (r-1) + 3*(c-1)
		c[0] = g[5] - g[7]
		c[1] = g[6] - g[2]
		c[2] = g[1] - g[3]
	})
	return nil
}

func checkCurl[T field.Real](grad *field.Field[T], dim int) error {
	if err := checkBase(grad, "grad", index.Tensor); err != nil {
		return err
	}
	if grad.Dim != dim {
		return fmt.Errorf("%w: grad is %dD, want %dD", ErrShape, grad.Dim, dim)
	}
	return nil
}
