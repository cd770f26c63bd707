package exchange

import (
	"context"
	"fmt"
	"sort"

	"github.com/notargets/SEKernel/field"
	"github.com/notargets/SEKernel/index"
)

// Link pairs a face owned by this rank with its partner on another rank.
type Link struct {
	Element int
	Side    int
	Partner Side
}

// Manifest is the pick and place plan for the remote faces of one rank.
// For every peer rank the links are ordered by global side id, so the k-th
// face this rank sends to a peer is the partner of the k-th face the peer
// sends back.
type Manifest struct {
	Rank   int
	Layout index.Layout
	Links  map[int][]Link
}

// Transport moves face payloads between ranks. Exchange sends payload[peer]
// to every peer and returns what each peer sent to this rank.
type Transport[T field.Real] interface {
	Exchange(ctx context.Context, payload map[int][]T) (map[int][]T, error)
}

// NewManifest collects the remote faces of the elements owned by rank.
// l is the boundary layout the payloads will be cut from.
func NewManifest(t *Topology, rank int, l index.Layout) (*Manifest, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if !l.Boundary || l.Dim != t.Dim || l.NEl != t.NEl {
		return nil, fmt.Errorf("%w: layout %s does not match a %dD topology on %d elements",
			field.ErrShape, l, t.Dim, t.NEl)
	}
	m := &Manifest{Rank: rank, Layout: l, Links: make(map[int][]Link)}
	for e := 0; e < t.NEl; e++ {
		if t.ElemToRank[e] != rank {
			continue
		}
		for s := 1; s <= t.SidesPerElement(); s++ {
			sd := t.Side(e, s)
			if sd.Physical() {
				continue
			}
			peer := t.ElemToRank[sd.NeighborElement]
			if peer == rank {
				continue
			}
			m.Links[peer] = append(m.Links[peer], Link{Element: e, Side: s, Partner: sd})
		}
	}
	for _, links := range m.Links {
		sort.Slice(links, func(a, b int) bool {
			return links[a].Partner.GlobalSideID < links[b].Partner.GlobalSideID
		})
	}
	return m, nil
}

// Peers returns the ranks this rank exchanges with, ascending.
func (m *Manifest) Peers() []int {
	peers := make([]int, 0, len(m.Links))
	for p := range m.Links {
		peers = append(peers, p)
	}
	sort.Ints(peers)
	return peers
}

// FaceSize is the number of values in one face payload.
func (m *Manifest) FaceSize() int {
	return m.Layout.Components() * m.Layout.NodesPerBlock() * m.Layout.NVar
}

// Verify checks that every link is in range, crosses ranks and that no
// global side id repeats toward one peer.
func (m *Manifest) Verify() error {
	l := m.Layout
	for _, peer := range m.Peers() {
		if peer == m.Rank {
			return fmt.Errorf("%w: rank %d lists itself as a peer", ErrTopology, m.Rank)
		}
		links := m.Links[peer]
		for k, lk := range links {
			if lk.Element < 0 || lk.Element >= l.NEl || lk.Side < 1 || lk.Side > l.Sides() {
				return fmt.Errorf("%w: link %d to rank %d addresses element %d side %d",
					ErrTopology, k, peer, lk.Element, lk.Side)
			}
			if !lk.Partner.Flip.Valid(l.Dim) {
				return fmt.Errorf("%w: link %d to rank %d has flip %d", ErrTopology, k, peer, lk.Partner.Flip)
			}
			if k > 0 && links[k-1].Partner.GlobalSideID >= lk.Partner.GlobalSideID {
				return fmt.Errorf("%w: global side %d repeats or is out of order toward rank %d",
					ErrTopology, lk.Partner.GlobalSideID, peer)
			}
		}
	}
	return nil
}

// Pairs checks that a and b agree on the faces they share: every face a
// sends to b is answered, in the same order, by its partner face from b.
func Pairs(a, b *Manifest) error {
	ab, ba := a.Links[b.Rank], b.Links[a.Rank]
	if len(ab) != len(ba) {
		return fmt.Errorf("%w: rank %d sends %d faces to rank %d, which sends %d back",
			ErrTopology, a.Rank, len(ab), b.Rank, len(ba))
	}
	for k := range ab {
		x, y := ab[k], ba[k]
		if x.Partner.GlobalSideID != y.Partner.GlobalSideID ||
			x.Partner.NeighborElement != y.Element || x.Partner.NeighborSide != y.Side {
			return fmt.Errorf("%w: face %d between ranks %d and %d does not pair",
				ErrTopology, k, a.Rank, b.Rank)
		}
	}
	return nil
}

// Pick gathers the payload for every peer: the boundary values of each
// linked local face, in link order. All variables of a face travel together.
func Pick[T field.Real](m *Manifest, boundary *field.Field[T]) (map[int][]T, error) {
	if err := boundary.Expect(m.Layout, "boundary"); err != nil {
		return nil, err
	}
	fs := m.FaceSize()
	out := make(map[int][]T, len(m.Links))
	for peer, links := range m.Links {
		buf := make([]T, 0, fs*len(links))
		for _, lk := range links {
			buf = append(buf, boundary.FaceSlice(lk.Side, lk.Element)...)
		}
		out[peer] = buf
	}
	return out, nil
}

// Place scatters received payloads into ext. Payload faces are in the
// sender's node order; each is re-oriented with the local link's flip.
func Place[T field.Real](m *Manifest, recv map[int][]T, ext *field.Field[T]) error {
	if err := ext.Expect(m.Layout, "extBoundary"); err != nil {
		return err
	}
	l := m.Layout
	fs := m.FaceSize()
	for _, peer := range m.Peers() {
		links := m.Links[peer]
		payload, ok := recv[peer]
		if !ok {
			return fmt.Errorf("%w: no payload from rank %d", field.ErrShape, peer)
		}
		if len(payload) != fs*len(links) {
			return fmt.Errorf("%w: rank %d sent %d values, want %d",
				field.ErrShape, peer, len(payload), fs*len(links))
		}
		for k, lk := range links {
			src := payload[k*fs : (k+1)*fs]
			dst := ext.FaceSlice(lk.Side, lk.Element)
			placeFace(l, lk.Partner.Flip, dst, src)
		}
	}
	return nil
}

func placeFace[T field.Real](l index.Layout, flip Flip, dst, src []T) {
	nj := 1
	if l.Dim == 3 {
		nj = l.N + 1
	}
	for v := 0; v < l.NVar; v++ {
		for j := 0; j < nj; j++ {
			for i := 0; i <= l.N; i++ {
				copyNode(l, flip, dst, src, i, j, v)
			}
		}
	}
}

// RemoteExchange picks this rank's remote faces from boundary, hands them to
// the transport and places what comes back into ext.
func RemoteExchange[T field.Real](ctx context.Context, m *Manifest, tr Transport[T], boundary, ext *field.Field[T]) error {
	if len(m.Links) == 0 {
		return nil
	}
	send, err := Pick(m, boundary)
	if err != nil {
		return err
	}
	recv, err := tr.Exchange(ctx, send)
	if err != nil {
		return fmt.Errorf("rank %d transport: %w", m.Rank, err)
	}
	return Place(m, recv, ext)
}
