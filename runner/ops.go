package runner

import (
	"fmt"

	"github.com/notargets/SEKernel/exchange"
	"github.com/notargets/SEKernel/field"
	"github.com/notargets/SEKernel/index"
)

// The device operations mirror package mapped and exchange.SideExchange on
// the shape baked into the runner. Fields must match that shape exactly and
// T must match the configured real_t.

// accept checks that f is one of kinds on the baked grid with nVar variables.
func accept[T field.Real](kr *Runner, f *field.Field[T], name string, nVar int, kinds ...index.Kind) error {
	if f == nil {
		return fmt.Errorf("%w: %s is nil", field.ErrShape, name)
	}
	ok := len(kinds) == 0
	for _, k := range kinds {
		ok = ok || f.Kind == k
	}
	if !ok {
		return fmt.Errorf("%w: %s is a %v field, want one of %v", field.ErrShape, name, f.Kind, kinds)
	}
	return f.Expect(kr.Layout(f.Kind, f.Boundary, nVar), name)
}

func distinct[T field.Real](out, in *field.Field[T], outName, inName string) error {
	if &out.Data[0] == &in.Data[0] {
		return fmt.Errorf("%w: %s aliases %s", field.ErrShape, outName, inName)
	}
	return nil
}

func argName(kernel, arg string) string { return kernel + "." + arg }

// JacobianWeight divides every component of f by jac in place.
func JacobianWeight[T field.Real](kr *Runner, f, jac *field.Field[T]) error {
	if err := checkPrecision[T](kr); err != nil {
		return err
	}
	if err := accept(kr, f, "f", kr.NVar); err != nil {
		return err
	}
	if err := jac.Expect(f.Metric(), "jacobian"); err != nil {
		return err
	}
	k, err := kr.Kernel(OpJacobianWeight, f.Kind, f.Boundary)
	if err != nil {
		return err
	}
	name := KernelName(OpJacobianWeight, f.Kind, f.Boundary)
	return kr.run(k,
		fieldParam(argName(name, "f"), f, Copy),
		fieldParam(argName(name, "jac"), jac, CopyTo))
}

// ContravariantWeight writes out(r,c) = dsdx(c,r) * scalar.
func ContravariantWeight[T field.Real](kr *Runner, scalar, dsdx, out *field.Field[T]) error {
	if err := checkPrecision[T](kr); err != nil {
		return err
	}
	if err := accept(kr, scalar, "scalar", kr.NVar, index.Scalar); err != nil {
		return err
	}
	if err := dsdx.Expect(scalar.Metric().WithKind(index.Tensor), "dsdx"); err != nil {
		return err
	}
	if err := out.Expect(scalar.WithKind(index.Tensor), "out"); err != nil {
		return err
	}
	if err := distinct(out, dsdx, "out", "dsdx"); err != nil {
		return err
	}
	k, err := kr.Kernel(OpContravariantWeight, index.Scalar, scalar.Boundary)
	if err != nil {
		return err
	}
	name := KernelName(OpContravariantWeight, index.Scalar, scalar.Boundary)
	return kr.run(k,
		fieldParam(argName(name, "scalar"), scalar, CopyTo),
		fieldParam(argName(name, "dsdx"), dsdx, CopyTo),
		fieldParam(argName(name, "out"), out, CopyBack))
}

// ContravariantProjection writes comp_c = sum_r dsdx(r,c) * phys_r.
func ContravariantProjection[T field.Real](kr *Runner, phys, dsdx, comp *field.Field[T]) error {
	if err := checkPrecision[T](kr); err != nil {
		return err
	}
	if err := accept(kr, phys, "phys", kr.NVar, index.Vector); err != nil {
		return err
	}
	if err := dsdx.Expect(phys.Metric().WithKind(index.Tensor), "dsdx"); err != nil {
		return err
	}
	if err := comp.Expect(phys.Layout, "comp"); err != nil {
		return err
	}
	if err := distinct(comp, phys, "comp", "phys"); err != nil {
		return err
	}
	k, err := kr.Kernel(OpContravariantProjection, index.Vector, phys.Boundary)
	if err != nil {
		return err
	}
	name := KernelName(OpContravariantProjection, index.Vector, phys.Boundary)
	return kr.run(k,
		fieldParam(argName(name, "phys"), phys, CopyTo),
		fieldParam(argName(name, "dsdx"), dsdx, CopyTo),
		fieldParam(argName(name, "comp"), comp, CopyBack))
}

// MapToScalar lowers src by one rank into Dim*NVar variables of dst.
func MapToScalar[T field.Real](kr *Runner, src, dst *field.Field[T]) error {
	if err := checkPrecision[T](kr); err != nil {
		return err
	}
	if err := accept(kr, src, "src", kr.NVar, index.Vector, index.Tensor); err != nil {
		return err
	}
	if err := dst.Expect(src.WithKind(src.Kind-1).WithVars(kr.Dim*kr.NVar), "dst"); err != nil {
		return err
	}
	k, err := kr.Kernel(OpMapToScalar, src.Kind, src.Boundary)
	if err != nil {
		return err
	}
	name := KernelName(OpMapToScalar, src.Kind, src.Boundary)
	return kr.run(k,
		fieldParam(argName(name, "src"), src, CopyTo),
		fieldParam(argName(name, "dst"), dst, CopyBack))
}

// MapToTensor raises Dim*NVar variables of src by one rank into dst.
func MapToTensor[T field.Real](kr *Runner, src, dst *field.Field[T]) error {
	if err := checkPrecision[T](kr); err != nil {
		return err
	}
	if err := accept(kr, dst, "dst", kr.NVar, index.Vector, index.Tensor); err != nil {
		return err
	}
	if err := src.Expect(dst.WithKind(dst.Kind-1).WithVars(kr.Dim*kr.NVar), "src"); err != nil {
		return err
	}
	k, err := kr.Kernel(OpMapToTensor, dst.Kind, dst.Boundary)
	if err != nil {
		return err
	}
	name := KernelName(OpMapToTensor, dst.Kind, dst.Boundary)
	return kr.run(k,
		fieldParam(argName(name, "src"), src, CopyTo),
		fieldParam(argName(name, "dst"), dst, CopyBack))
}

// Curl applies the 2D or 3D curl of the baked dimension to a gradient
// tensor.
func Curl[T field.Real](kr *Runner, grad, curl *field.Field[T]) error {
	if err := checkPrecision[T](kr); err != nil {
		return err
	}
	if kr.Dim < 2 {
		return fmt.Errorf("%w: curl needs 2D or 3D elements", field.ErrShape)
	}
	if err := accept(kr, grad, "grad", kr.NVar, index.Tensor); err != nil {
		return err
	}
	want := index.Scalar
	if kr.Dim == 3 {
		want = index.Vector
	}
	if err := curl.Expect(grad.WithKind(want), "curl"); err != nil {
		return err
	}
	k, err := kr.Kernel(OpCurl, index.Tensor, grad.Boundary)
	if err != nil {
		return err
	}
	name := KernelName(OpCurl, index.Tensor, grad.Boundary)
	return kr.run(k,
		fieldParam(argName(name, "grad"), grad, CopyTo),
		fieldParam(argName(name, "curl"), curl, CopyBack))
}

// SideExchange fills the faces of ext whose neighbor is owned by the baked
// rank from boundary, leaving every other face of ext as it was. The report
// classifies every face the same way the host exchange does.
func SideExchange[T field.Real](kr *Runner, t *exchange.Topology, boundary, ext *field.Field[T]) (*exchange.Report, error) {
	if err := checkPrecision[T](kr); err != nil {
		return nil, err
	}
	if t == nil || t.Dim != kr.Dim || t.NEl != kr.NEl {
		return nil, fmt.Errorf("%w: topology does not match the %dD runner on %d elements",
			exchange.ErrTopology, kr.Dim, kr.NEl)
	}
	x, err := exchange.NewExchanger(t, kr.Rank, nil, kr.Logger)
	if err != nil {
		return nil, err
	}
	if err := accept(kr, boundary, "boundary", kr.NVar); err != nil {
		return nil, err
	}
	if !boundary.Boundary {
		return nil, fmt.Errorf("%w: boundary is an interior field", field.ErrShape)
	}
	if err := ext.Expect(boundary.Layout, "extBoundary"); err != nil {
		return nil, err
	}
	if err := distinct(ext, boundary, "extBoundary", "boundary"); err != nil {
		return nil, err
	}
	k, err := kr.Kernel(OpSideExchange, boundary.Kind, true)
	if err != nil {
		return nil, err
	}
	name := KernelName(OpSideExchange, boundary.Kind, true)
	err = kr.run(k,
		fieldParam(argName(name, "boundary"), boundary, CopyTo),
		fieldParam(argName(name, "ext"), ext, Copy),
		intParam(argName(name, "sideInfo"), t.Pack(), CopyTo),
		intParam(argName(name, "elemToRank"), t.ElemToRank32(), CopyTo))
	if err != nil {
		return nil, err
	}
	return x.Classification(), nil
}
