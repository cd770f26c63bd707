package exchange

import "fmt"

// Flip encodes how a neighbor indexes a shared face relative to the local
// element. Node i (2D) or (i,j) (3D) of the local face pairs with the node of
// the neighbor's face returned by Source2D / Source3D.
type Flip int

const (
	FlipIdentity Flip = 1

	// 2D
	FlipReverse Flip = 2

	// 3D: quarter turns of the face, counterclockwise in (i,j)
	FlipRotate90  Flip = 2
	FlipRotate180 Flip = 3
	FlipRotate270 Flip = 4
)

// Valid reports whether f is defined in dimension dim.
func (f Flip) Valid(dim int) bool {
	switch dim {
	case 2:
		return f == FlipIdentity || f == FlipReverse
	case 3:
		return f >= FlipIdentity && f <= FlipRotate270
	}
	return false
}

// Inverse is the flip the neighbor sees looking back across the same face.
func (f Flip) Inverse(dim int) Flip {
	if dim == 3 {
		switch f {
		case FlipRotate90:
			return FlipRotate270
		case FlipRotate270:
			return FlipRotate90
		}
	}
	return f
}

// Source2D returns the neighbor node paired with local node i.
func Source2D(f Flip, i, N int) int {
	switch f {
	case FlipIdentity:
		return i
	case FlipReverse:
		return N - i
	}
	panic(fmt.Sprintf("exchange: flip %d undefined in 2D", f))
}

// Source3D returns the neighbor node paired with local node (i, j).
func Source3D(f Flip, i, j, N int) (int, int) {
	switch f {
	case FlipIdentity:
		return i, j
	case FlipRotate90:
		return N - j, i
	case FlipRotate180:
		return N - i, N - j
	case FlipRotate270:
		return j, N - i
	}
	panic(fmt.Sprintf("exchange: flip %d undefined in 3D", f))
}
