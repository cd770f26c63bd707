package partitions

import (
	"fmt"

	"github.com/notargets/SEKernel/exchange"
)

// Side numbering of a quad.
const (
	QuadSouth = 1
	QuadEast  = 2
	QuadNorth = 3
	QuadWest  = 4
)

// Side numbering of a hex.
const (
	HexBottom = 1
	HexSouth  = 2
	HexEast   = 3
	HexNorth  = 4
	HexWest   = 5
	HexTop    = 6
)

// PhysicalBCID marks the outer faces of a non-periodic direction.
const PhysicalBCID = 1

// faceNumbering hands out global side ids in (element, side) order.
type faceNumbering struct {
	t    *exchange.Topology
	done []bool
	next int
}

func newFaceNumbering(t *exchange.Topology) *faceNumbering {
	return &faceNumbering{t: t, done: make([]bool, t.NEl*t.SidesPerElement()), next: 1}
}

func (fn *faceNumbering) slot(e, s int) int { return (s - 1) + fn.t.SidesPerElement()*e }

func (fn *faceNumbering) connect(e1, s1, e2, s2 int) {
	if fn.done[fn.slot(e1, s1)] {
		return
	}
	fn.t.Connect(fn.next, e1, s1, e2, s2, exchange.FlipIdentity)
	fn.done[fn.slot(e1, s1)], fn.done[fn.slot(e2, s2)] = true, true
	fn.next++
}

func (fn *faceNumbering) boundary(e, s int) {
	if fn.done[fn.slot(e, s)] {
		return
	}
	fn.t.Set(e, s, exchange.Side{GlobalSideID: fn.next, Flip: exchange.FlipIdentity, BCID: PhysicalBCID})
	fn.done[fn.slot(e, s)] = true
	fn.next++
}

// axisNeighbor steps one cell along an axis of extent n, wrapping when
// periodic. ok is false off the end of a non-periodic axis.
func axisNeighbor(i, step, n int, periodic bool) (int, bool) {
	j := i + step
	if j >= 0 && j < n {
		return j, true
	}
	if !periodic {
		return 0, false
	}
	return (j + n) % n, true
}

// StructuredQuadMesh connects an nx by ny grid of quads, element i+nx*j at
// column i and row j. Faces of aligned neighbors share node order, so every
// conforming face has the identity flip. periodic wraps the x and y
// directions.
func StructuredQuadMesh(nx, ny int, periodic [2]bool) (*exchange.Topology, error) {
	if nx < 1 || ny < 1 {
		return nil, fmt.Errorf("%w: %dx%d quad mesh", exchange.ErrTopology, nx, ny)
	}
	t, err := exchange.NewTopology(2, nx*ny, nil)
	if err != nil {
		return nil, err
	}
	fn := newFaceNumbering(t)
	id := func(i, j int) int { return i + nx*j }
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			e := id(i, j)
			if jj, ok := axisNeighbor(j, -1, ny, periodic[1]); ok {
				fn.connect(e, QuadSouth, id(i, jj), QuadNorth)
			} else {
				fn.boundary(e, QuadSouth)
			}
			if ii, ok := axisNeighbor(i, 1, nx, periodic[0]); ok {
				fn.connect(e, QuadEast, id(ii, j), QuadWest)
			} else {
				fn.boundary(e, QuadEast)
			}
			if jj, ok := axisNeighbor(j, 1, ny, periodic[1]); ok {
				fn.connect(e, QuadNorth, id(i, jj), QuadSouth)
			} else {
				fn.boundary(e, QuadNorth)
			}
			if ii, ok := axisNeighbor(i, -1, nx, periodic[0]); ok {
				fn.connect(e, QuadWest, id(ii, j), QuadEast)
			} else {
				fn.boundary(e, QuadWest)
			}
		}
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// StructuredHexMesh connects an nx by ny by nz grid of hexes, element
// i+nx*(j+ny*k). periodic wraps the x, y and z directions.
func StructuredHexMesh(nx, ny, nz int, periodic [3]bool) (*exchange.Topology, error) {
	if nx < 1 || ny < 1 || nz < 1 {
		return nil, fmt.Errorf("%w: %dx%dx%d hex mesh", exchange.ErrTopology, nx, ny, nz)
	}
	t, err := exchange.NewTopology(3, nx*ny*nz, nil)
	if err != nil {
		return nil, err
	}
	fn := newFaceNumbering(t)
	id := func(i, j, k int) int { return i + nx*(j+ny*k) }
	type dir struct {
		side, opposite int
		axis, step     int
	}
	dirs := []dir{
		{HexBottom, HexTop, 2, -1},
		{HexSouth, HexNorth, 1, -1},
		{HexEast, HexWest, 0, 1},
		{HexNorth, HexSouth, 1, 1},
		{HexWest, HexEast, 0, -1},
		{HexTop, HexBottom, 2, 1},
	}
	extent := [3]int{nx, ny, nz}
	for k := 0; k < nz; k++ {
		for j := 0; j < ny; j++ {
			for i := 0; i < nx; i++ {
				e := id(i, j, k)
				for _, d := range dirs {
					c := [3]int{i, j, k}
					n, ok := axisNeighbor(c[d.axis], d.step, extent[d.axis], periodic[d.axis])
					if !ok {
						fn.boundary(e, d.side)
						continue
					}
					c[d.axis] = n
					fn.connect(e, d.side, id(c[0], c[1], c[2]), d.opposite)
				}
			}
		}
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}
