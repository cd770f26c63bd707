package exchange

import (
	"errors"
	"fmt"
)

// ErrTopology reports a topology record that cannot drive an exchange.
var ErrTopology = errors.New("invalid side topology")

// SideInfoWidth is the number of packed integers per (side, element) entry.
const SideInfoWidth = 5

// Side is the topology entry for one (element, local side) pair. Sides are
// numbered from 1, elements from 0.
type Side struct {
	GlobalSideID    int
	NeighborElement int
	NeighborSide    int
	Flip            Flip
	// BCID is zero for a conforming face shared with another element and
	// nonzero for a physical boundary.
	BCID int
}

// Physical reports whether the side lies on a physical boundary.
func (s Side) Physical() bool { return s.BCID != 0 }

// Topology is the read-only side connectivity of a mesh block together with
// the owning rank of every element.
type Topology struct {
	Dim        int
	NEl        int
	ElemToRank []int
	sides      []Side
}

// NewTopology allocates a topology with every side marked as a physical
// boundary (BCID=1), ready to be filled with Set. A nil elemToRank puts every
// element on rank 0.
func NewTopology(dim, nEl int, elemToRank []int) (*Topology, error) {
	if dim != 2 && dim != 3 {
		return nil, fmt.Errorf("%w: dimension %d, want 2 or 3", ErrTopology, dim)
	}
	if nEl < 1 {
		return nil, fmt.Errorf("%w: %d elements", ErrTopology, nEl)
	}
	if elemToRank == nil {
		elemToRank = make([]int, nEl)
	}
	if len(elemToRank) != nEl {
		return nil, fmt.Errorf("%w: elemToRank has %d entries for %d elements",
			ErrTopology, len(elemToRank), nEl)
	}
	t := &Topology{
		Dim:        dim,
		NEl:        nEl,
		ElemToRank: elemToRank,
		sides:      make([]Side, 2*dim*nEl),
	}
	for i := range t.sides {
		t.sides[i] = Side{BCID: 1, Flip: FlipIdentity}
	}
	return t, nil
}

// SidesPerElement is 4 in 2D and 6 in 3D.
func (t *Topology) SidesPerElement() int { return 2 * t.Dim }

func (t *Topology) slot(el, side int) int {
	return (side - 1) + t.SidesPerElement()*el
}

// Set stores the entry for (el, side).
func (t *Topology) Set(el, side int, s Side) {
	t.sides[t.slot(el, side)] = s
}

// Side returns the entry for (el, side).
func (t *Topology) Side(el, side int) Side {
	return t.sides[t.slot(el, side)]
}

// Connect records a conforming face between (e1, s1) and (e2, s2) in both
// directions. flip is the orientation seen from (e1, s1); the reverse entry
// gets the inverse flip.
func (t *Topology) Connect(globalSideID, e1, s1, e2, s2 int, flip Flip) {
	t.Set(e1, s1, Side{GlobalSideID: globalSideID, NeighborElement: e2, NeighborSide: s2, Flip: flip})
	t.Set(e2, s2, Side{GlobalSideID: globalSideID, NeighborElement: e1, NeighborSide: s1, Flip: flip.Inverse(t.Dim)})
}

// Validate checks the ranges of every conforming entry and that paired
// entries point back at each other with inverse flips.
func (t *Topology) Validate() error {
	if t.Dim != 2 && t.Dim != 3 {
		return fmt.Errorf("%w: dimension %d, want 2 or 3", ErrTopology, t.Dim)
	}
	if len(t.ElemToRank) != t.NEl || len(t.sides) != t.SidesPerElement()*t.NEl {
		return fmt.Errorf("%w: tables sized for a different element count", ErrTopology)
	}
	ns := t.SidesPerElement()
	for e := 0; e < t.NEl; e++ {
		for s := 1; s <= ns; s++ {
			sd := t.Side(e, s)
			if sd.Physical() {
				continue
			}
			if sd.NeighborElement < 0 || sd.NeighborElement >= t.NEl {
				return fmt.Errorf("%w: element %d side %d: neighbor element %d out of range",
					ErrTopology, e, s, sd.NeighborElement)
			}
			if sd.NeighborSide < 1 || sd.NeighborSide > ns {
				return fmt.Errorf("%w: element %d side %d: neighbor side %d out of range",
					ErrTopology, e, s, sd.NeighborSide)
			}
			if !sd.Flip.Valid(t.Dim) {
				return fmt.Errorf("%w: element %d side %d: flip %d undefined in %dD",
					ErrTopology, e, s, sd.Flip, t.Dim)
			}
			back := t.Side(sd.NeighborElement, sd.NeighborSide)
			if back.Physical() || back.NeighborElement != e || back.NeighborSide != s {
				return fmt.Errorf("%w: element %d side %d is not mirrored by element %d side %d",
					ErrTopology, e, s, sd.NeighborElement, sd.NeighborSide)
			}
			if back.GlobalSideID != sd.GlobalSideID || back.Flip != sd.Flip.Inverse(t.Dim) {
				return fmt.Errorf("%w: element %d side %d disagrees with its mirror on id or flip",
					ErrTopology, e, s)
			}
		}
	}
	for e, r := range t.ElemToRank {
		if r < 0 {
			return fmt.Errorf("%w: element %d has rank %d", ErrTopology, e, r)
		}
	}
	return nil
}

// Pack flattens the topology into the device sideInfo table, five integers
// per (side, element) with sides fastest:
//
//	[reserved, globalSideId, neighborElement, 10*neighborSide+flip, bcid]
//
// The reserved slot is written as zero.
func (t *Topology) Pack() []int32 {
	out := make([]int32, SideInfoWidth*len(t.sides))
	for i, s := range t.sides {
		row := out[SideInfoWidth*i : SideInfoWidth*(i+1)]
		row[1] = int32(s.GlobalSideID)
		row[2] = int32(s.NeighborElement)
		row[3] = int32(10*s.NeighborSide + int(s.Flip))
		row[4] = int32(s.BCID)
	}
	return out
}

// Unpack is the inverse of Pack.
func Unpack(dim, nEl int, elemToRank []int, info []int32) (*Topology, error) {
	t, err := NewTopology(dim, nEl, elemToRank)
	if err != nil {
		return nil, err
	}
	if len(info) != SideInfoWidth*len(t.sides) {
		return nil, fmt.Errorf("%w: sideInfo has %d entries, want %d",
			ErrTopology, len(info), SideInfoWidth*len(t.sides))
	}
	for i := range t.sides {
		row := info[SideInfoWidth*i : SideInfoWidth*(i+1)]
		t.sides[i] = Side{
			GlobalSideID:    int(row[1]),
			NeighborElement: int(row[2]),
			NeighborSide:    int(row[3] / 10),
			Flip:            Flip(row[3] % 10),
			BCID:            int(row[4]),
		}
	}
	return t, nil
}

// ElemToRank32 returns the element owner table in device integer width.
func (t *Topology) ElemToRank32() []int32 {
	out := make([]int32, len(t.ElemToRank))
	for i, r := range t.ElemToRank {
		out[i] = int32(r)
	}
	return out
}
