// Package exchange resolves face connectivity between spectral elements and
// fills external boundary buffers from same-process neighbors. Faces whose
// neighbor lives on another rank are collected in a Report and a Manifest for
// a transport layer; faces on physical boundaries are left to boundary
// condition code.
package exchange

import (
	"fmt"

	"github.com/notargets/SEKernel/dispatch"
	"github.com/notargets/SEKernel/field"
	"github.com/notargets/SEKernel/index"
	"go.uber.org/zap"
)

// Outcome is what the exchange did for one face.
type Outcome uint8

const (
	// LocalCopy faces were filled from a neighbor on this rank.
	LocalCopy Outcome = iota
	// Remote faces are deferred to the cross-process transport.
	Remote
	// PhysicalBoundary faces are skipped; boundary condition code fills them.
	PhysicalBoundary
)

func (o Outcome) String() string {
	switch o {
	case LocalCopy:
		return "local"
	case Remote:
		return "remote"
	case PhysicalBoundary:
		return "physical"
	}
	return fmt.Sprintf("Outcome(%d)", uint8(o))
}

// Face is the resolved state of one (element, side).
type Face struct {
	Element      int
	Side         int
	Outcome      Outcome
	Link         Side
	NeighborRank int
}

// Report lists the outcome of every face visited by one exchange, elements
// outermost and sides 1..2*dim within each element.
type Report struct {
	Faces    []Face
	Local    int
	Remote   int
	Physical int
}

// RemoteFaces returns the faces deferred to the transport.
func (r *Report) RemoteFaces() []Face {
	out := make([]Face, 0, r.Remote)
	for _, f := range r.Faces {
		if f.Outcome == Remote {
			out = append(out, f)
		}
	}
	return out
}

// Exchanger performs same-process side exchange for one rank.
type Exchanger struct {
	Topology *Topology
	Rank     int
	Executor dispatch.Executor
	Logger   *zap.Logger
}

// NewExchanger validates the topology and returns an exchanger for rank. A
// nil executor runs serially and a nil logger discards output.
func NewExchanger(t *Topology, rank int, ex dispatch.Executor, logger *zap.Logger) (*Exchanger, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: nil topology", ErrTopology)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if ex == nil {
		ex = dispatch.Serial{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exchanger{Topology: t, Rank: rank, Executor: ex, Logger: logger}, nil
}

// Classify resolves the outcome of (el, side).
func (x *Exchanger) Classify(el, side int) Face {
	s := x.Topology.Side(el, side)
	f := Face{Element: el, Side: side, Link: s, NeighborRank: -1}
	switch {
	case s.Physical():
		f.Outcome = PhysicalBoundary
	default:
		f.NeighborRank = x.Topology.ElemToRank[s.NeighborElement]
		if f.NeighborRank == x.Rank {
			f.Outcome = LocalCopy
		} else {
			f.Outcome = Remote
		}
	}
	return f
}

// Classification resolves every face of the topology.
func (x *Exchanger) Classification() *Report {
	t := x.Topology
	r := &Report{Faces: make([]Face, 0, t.NEl*t.SidesPerElement())}
	for e := 0; e < t.NEl; e++ {
		for s := 1; s <= t.SidesPerElement(); s++ {
			f := x.Classify(e, s)
			switch f.Outcome {
			case LocalCopy:
				r.Local++
			case Remote:
				r.Remote++
			case PhysicalBoundary:
				r.Physical++
			}
			r.Faces = append(r.Faces, f)
		}
	}
	return r
}

// SideExchange copies, for every conforming face whose neighbor is on x.Rank,
// the neighbor's boundary values into ext under the face's flip remap.
// Remote and physical faces of ext are never written. boundary and ext are
// boundary fields of the same layout on the topology's elements; any kind is
// accepted and all components of a node move together.
func SideExchange[T field.Real](x *Exchanger, boundary, ext *field.Field[T]) (*Report, error) {
	if err := checkBuffers(x.Topology, boundary, ext); err != nil {
		return nil, err
	}
	report := x.Classification()
	log := x.Logger
	for _, f := range report.Faces {
		if f.Outcome == LocalCopy {
			continue
		}
		log.Debug("face deferred",
			zap.Int("element", f.Element),
			zap.Int("side", f.Side),
			zap.Stringer("outcome", f.Outcome),
			zap.Int("globalSideId", f.Link.GlobalSideID),
			zap.Int("neighborRank", f.NeighborRank))
	}

	var (
		l     = boundary.Layout
		ns    = x.Topology.SidesPerElement()
		faces = report.Faces
		bd    = boundary
		xd    = ext
	)
	x.Executor.Launch(dispatch.BoundarySpace(l.Dim, l.N, l.NVar, l.NEl), func(p dispatch.Point) {
		f := &faces[(p.Side-1)+ns*p.El]
		if f.Outcome != LocalCopy {
			return
		}
		src := bd.FaceSlice(f.Link.NeighborSide, f.Link.NeighborElement)
		dst := xd.FaceSlice(p.Side, p.El)
		copyNode(l, f.Link.Flip, dst, src, p.I, p.J, p.Var)
	})

	log.Debug("side exchange complete",
		zap.Int("rank", x.Rank),
		zap.Int("local", report.Local),
		zap.Int("remote", report.Remote),
		zap.Int("physical", report.Physical))
	return report, nil
}

func checkBuffers[T field.Real](t *Topology, boundary, ext *field.Field[T]) error {
	if boundary == nil {
		return fmt.Errorf("%w: boundary is nil", field.ErrShape)
	}
	l := boundary.Layout
	if err := l.Validate(); err != nil {
		return err
	}
	if !l.Boundary || l.Dim != t.Dim || l.NEl != t.NEl {
		return fmt.Errorf("%w: boundary is %s, want a %dD boundary field on %d elements",
			field.ErrShape, l, t.Dim, t.NEl)
	}
	if err := boundary.Expect(l, "boundary"); err != nil {
		return err
	}
	if err := ext.Expect(l, "extBoundary"); err != nil {
		return err
	}
	if &ext.Data[0] == &boundary.Data[0] {
		return fmt.Errorf("%w: extBoundary aliases boundary", field.ErrShape)
	}
	return nil
}

// faceOffset addresses node (i, j), variable v inside one face slice.
func faceOffset(l index.Layout, i, j, v int) int {
	np := l.N + 1
	if l.Dim == 2 {
		return l.Components() * (i + np*v)
	}
	return l.Components() * (i + np*(j+np*v))
}

// copyNode moves all components of local face node (i, j), variable v, from
// the paired node of the neighbor face src into dst.
func copyNode[T field.Real](l index.Layout, flip Flip, dst, src []T, i, j, v int) {
	var si, sj int
	if l.Dim == 2 {
		si = Source2D(flip, i, l.N)
	} else {
		si, sj = Source3D(flip, i, j, l.N)
	}
	d := faceOffset(l, i, j, v)
	s := faceOffset(l, si, sj, v)
	copy(dst[d:d+l.Components()], src[s:s+l.Components()])
}
