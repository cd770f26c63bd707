// Package mapped holds the per-node kernels that move field data between
// physical space and an element's curvilinear coordinates: Jacobian
// weighting, contravariant weighting and projection, component
// reinterpretation and curl.
//
// Every kernel checks the layouts of its arguments once per call and then runs
// one independent task per (node, variable, element [, side]) tuple through
// the supplied executor. Inputs are never written. Outputs must not alias
// inputs unless the kernel is documented as in-place.
package mapped

import (
	"fmt"

	"github.com/notargets/SEKernel/dispatch"
	"github.com/notargets/SEKernel/field"
	"github.com/notargets/SEKernel/index"
)

// ErrShape is returned when argument layouts do not match.
var ErrShape = field.ErrShape

func spaceOf(l index.Layout) dispatch.Space {
	if l.Boundary {
		return dispatch.BoundarySpace(l.Dim, l.N, l.NVar, l.NEl)
	}
	return dispatch.InteriorSpace(l.Dim, l.N, l.NVar, l.NEl)
}

func indexOf(p dispatch.Point) index.Index {
	return index.Index{I: p.I, J: p.J, K: p.K, Var: p.Var, Side: p.Side, El: p.El}
}

func checkBase[T field.Real](f *field.Field[T], name string, kinds ...index.Kind) error {
	if f == nil {
		return fmt.Errorf("%w: %s is nil", ErrShape, name)
	}
	if err := f.Layout.Validate(); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if err := f.Expect(f.Layout, name); err != nil {
		return err
	}
	if len(kinds) == 0 {
		return nil
	}
	for _, k := range kinds {
		if f.Kind == k {
			return nil
		}
	}
	return fmt.Errorf("%w: %s is a %v field, want one of %v", ErrShape, name, f.Kind, kinds)
}

func checkMultiDim(l index.Layout, name string) error {
	if l.Dim < 2 {
		return fmt.Errorf("%w: %s must be 2D or 3D, got %dD", ErrShape, name, l.Dim)
	}
	return nil
}

func checkDistinct[T field.Real](out, in *field.Field[T], outName, inName string) error {
	if len(out.Data) > 0 && len(in.Data) > 0 && &out.Data[0] == &in.Data[0] {
		return fmt.Errorf("%w: %s aliases %s", ErrShape, outName, inName)
	}
	return nil
}
