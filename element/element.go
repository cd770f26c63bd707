// Package element holds the per-node geometry of tensor-product spectral
// elements and applies the mapped-data kernels with it.
package element

import "fmt"

type Dimensionality uint8

const (
	D1 Dimensionality = iota + 1
	D2
	D3
)

type ElementGeometry uint8

const (
	Line ElementGeometry = iota
	Rectangle
	Hex
)

func (g ElementGeometry) String() string {
	switch g {
	case Line:
		return "line"
	case Rectangle:
		return "rectangle"
	case Hex:
		return "hex"
	}
	return fmt.Sprintf("ElementGeometry(%d)", uint8(g))
}

// GeometryFor returns the tensor-product element of dimension dim.
func GeometryFor(dim Dimensionality) (ElementGeometry, error) {
	switch dim {
	case D1:
		return Line, nil
	case D2:
		return Rectangle, nil
	case D3:
		return Hex, nil
	}
	return 0, fmt.Errorf("no tensor-product element in %d dimensions", dim)
}
