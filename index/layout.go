package index

import (
	"errors"
	"fmt"
)

// Kind is the tensor rank of the quantity held at each node.
type Kind uint8

const (
	Scalar Kind = iota
	Vector
	Tensor
)

func (k Kind) String() string {
	switch k {
	case Scalar:
		return "scalar"
	case Vector:
		return "vector"
	case Tensor:
		return "tensor"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// ErrLayout is returned by Validate for layouts that cannot describe a buffer.
var ErrLayout = errors.New("invalid layout")

// Layout describes the shape of one flattened field buffer.
type Layout struct {
	Kind     Kind
	Dim      int  // 1, 2 or 3
	Boundary bool // face-restricted node set when true
	N        int  // polynomial degree, N+1 nodes per axis
	NVar     int
	NEl      int
}

// Index is a logical position inside a field. Row is the vector component for
// vector fields; Row and Col are unused for scalars. Side is unused for
// interior layouts, and node coordinates beyond the layout's node axes are
// ignored.
type Index struct {
	Row, Col int
	I, J, K  int
	Var      int
	Side     int
	El       int
}

// Interior returns an interior layout.
func Interior(kind Kind, dim, N, nVar, nEl int) Layout {
	return Layout{Kind: kind, Dim: dim, N: N, NVar: nVar, NEl: nEl}
}

// Boundary returns a face-restricted layout.
func Boundary(kind Kind, dim, N, nVar, nEl int) Layout {
	return Layout{Kind: kind, Dim: dim, Boundary: true, N: N, NVar: nVar, NEl: nEl}
}

func (l Layout) String() string {
	where := "interior"
	if l.Boundary {
		where = "boundary"
	}
	return fmt.Sprintf("%s %s %dD N=%d nVar=%d nEl=%d", where, l.Kind, l.Dim, l.N, l.NVar, l.NEl)
}

// Validate reports whether the layout is well formed.
func (l Layout) Validate() error {
	switch {
	case l.Dim < 1 || l.Dim > 3:
		return fmt.Errorf("%w: dimension %d", ErrLayout, l.Dim)
	case l.Kind > Tensor:
		return fmt.Errorf("%w: kind %v", ErrLayout, l.Kind)
	case l.N < 0:
		return fmt.Errorf("%w: degree %d", ErrLayout, l.N)
	case l.NVar < 1:
		return fmt.Errorf("%w: nVar %d", ErrLayout, l.NVar)
	case l.NEl < 1:
		return fmt.Errorf("%w: nEl %d", ErrLayout, l.NEl)
	}
	return nil
}

// Components is the number of values stored per node and variable.
func (l Layout) Components() int {
	switch l.Kind {
	case Vector:
		return l.Dim
	case Tensor:
		return l.Dim * l.Dim
	default:
		return 1
	}
}

// NodeAxes is the number of node coordinates that address a block.
func (l Layout) NodeAxes() int {
	if l.Boundary {
		return l.Dim - 1
	}
	return l.Dim
}

// NodesPerBlock is the node count of one (variable, side, element) block.
func (l Layout) NodesPerBlock() int {
	n := 1
	for a := 0; a < l.NodeAxes(); a++ {
		n *= l.N + 1
	}
	return n
}

// Sides is the number of faces per element for boundary layouts and 1 for
// interior layouts.
func (l Layout) Sides() int {
	if l.Boundary {
		return 2 * l.Dim
	}
	return 1
}

// Size is the number of values the buffer holds.
func (l Layout) Size() int {
	return l.Components() * l.NodesPerBlock() * l.NVar * l.Sides() * l.NEl
}

// WithVars returns a copy of l with nVar replaced.
func (l Layout) WithVars(nVar int) Layout {
	l.NVar = nVar
	return l
}

// WithKind returns a copy of l with the kind replaced.
func (l Layout) WithKind(k Kind) Layout {
	l.Kind = k
	return l
}

// Metric returns the scalar nVar=1 layout that holds one metric value per node
// on the same node set as l.
func (l Layout) Metric() Layout {
	l.Kind = Scalar
	l.NVar = 1
	return l
}

// SameGrid reports whether a and b share dimension, node set, degree and
// element count.
func SameGrid(a, b Layout) bool {
	return a.Dim == b.Dim && a.Boundary == b.Boundary && a.N == b.N && a.NEl == b.NEl
}

// ScalarOffset is the offset of the node/variable/side/element tuple of ix in
// a scalar field of this shape, ignoring Row and Col.
func (l Layout) ScalarOffset(ix Index) int {
	N, nVar := l.N, l.NVar
	if l.Boundary {
		switch l.Dim {
		case 1:
			return SCB1D(ix.Var, ix.Side, ix.El, nVar)
		case 2:
			return SCB2D(ix.I, ix.Var, ix.Side, ix.El, N, nVar)
		default:
			return SCB3D(ix.I, ix.J, ix.Var, ix.Side, ix.El, N, nVar)
		}
	}
	switch l.Dim {
	case 1:
		return SC1D(ix.I, ix.Var, ix.El, N, nVar)
	case 2:
		return SC2D(ix.I, ix.J, ix.Var, ix.El, N, nVar)
	default:
		return SC3D(ix.I, ix.J, ix.K, ix.Var, ix.El, N, nVar)
	}
}

// Component is the position of (Row, Col) inside the contiguous component run
// of a node.
func (l Layout) Component(row, col int) int {
	switch l.Kind {
	case Vector:
		return row - 1
	case Tensor:
		return row - 1 + l.Dim*(col-1)
	default:
		return 0
	}
}

// Offset is the flat offset of ix.
func (l Layout) Offset(ix Index) int {
	return l.Component(ix.Row, ix.Col) + l.Components()*l.ScalarOffset(ix)
}

// Decode inverts Offset for offsets in 0..Size()-1.
func (l Layout) Decode(offset int) (ix Index) {
	nc := l.Components()
	c := offset % nc
	offset /= nc
	switch l.Kind {
	case Vector:
		ix.Row = c + 1
	case Tensor:
		ix.Row, ix.Col = c%l.Dim+1, c/l.Dim+1
	}
	np := l.N + 1
	axes := [3]*int{&ix.I, &ix.J, &ix.K}
	for a := 0; a < l.NodeAxes(); a++ {
		*axes[a] = offset % np
		offset /= np
	}
	ix.Var = offset % l.NVar
	offset /= l.NVar
	if l.Boundary {
		ix.Side = offset%l.Sides() + 1
		offset /= l.Sides()
	}
	ix.El = offset
	return ix
}

// Each calls fn for every valid index of the layout, elements outermost.
func (l Layout) Each(fn func(ix Index)) {
	rows, cols := 1, 1
	switch l.Kind {
	case Vector:
		rows = l.Dim
	case Tensor:
		rows, cols = l.Dim, l.Dim
	}
	ni, nj, nk := 1, 1, 1
	switch l.NodeAxes() {
	case 1:
		ni = l.N + 1
	case 2:
		ni, nj = l.N+1, l.N+1
	case 3:
		ni, nj, nk = l.N+1, l.N+1, l.N+1
	}
	sideBase, sides := 0, 1
	if l.Boundary {
		sideBase, sides = 1, l.Sides()
	}
	var ix Index
	for ix.El = 0; ix.El < l.NEl; ix.El++ {
		for s := 0; s < sides; s++ {
			ix.Side = sideBase + s
			for ix.Var = 0; ix.Var < l.NVar; ix.Var++ {
				for ix.K = 0; ix.K < nk; ix.K++ {
					for ix.J = 0; ix.J < nj; ix.J++ {
						for ix.I = 0; ix.I < ni; ix.I++ {
							for c := 0; c < cols; c++ {
								for r := 0; r < rows; r++ {
									ix.Row, ix.Col = 0, 0
									if l.Kind != Scalar {
										ix.Row = r + 1
									}
									if l.Kind == Tensor {
										ix.Col = c + 1
									}
									fn(ix)
								}
							}
						}
					}
				}
			}
		}
	}
}
