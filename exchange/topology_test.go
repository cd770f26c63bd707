package exchange

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlip_Valid(t *testing.T) {
	tests := []struct {
		flip Flip
		dim  int
		want bool
	}{
		{FlipIdentity, 2, true},
		{FlipReverse, 2, true},
		{3, 2, false},
		{0, 2, false},
		{FlipIdentity, 3, true},
		{FlipRotate270, 3, true},
		{5, 3, false},
		{FlipIdentity, 1, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.flip.Valid(tt.dim), "flip %d in %dD", tt.flip, tt.dim)
	}
}

func TestFlip_InverseUndoesRemap(t *testing.T) {
	const N = 4
	for f := FlipIdentity; f <= FlipRotate270; f++ {
		for i := 0; i <= N; i++ {
			for j := 0; j <= N; j++ {
				a, b := Source3D(f, i, j, N)
				require.True(t, a >= 0 && a <= N && b >= 0 && b <= N)
				x, y := Source3D(f.Inverse(3), a, b, N)
				assert.Equal(t, [2]int{i, j}, [2]int{x, y}, "flip %d", f)
			}
		}
	}
	for f := FlipIdentity; f <= FlipReverse; f++ {
		for i := 0; i <= N; i++ {
			assert.Equal(t, i, Source2D(f.Inverse(2), Source2D(f, i, N), N))
		}
	}
}

func TestFlip_UnknownPanics(t *testing.T) {
	assert.Panics(t, func() { Source2D(3, 0, 2) })
	assert.Panics(t, func() { Source3D(0, 0, 0, 2) })
	assert.Panics(t, func() { Source3D(5, 0, 0, 2) })
}

func TestNewTopology(t *testing.T) {
	top, err := NewTopology(3, 2, nil)
	require.NoError(t, err)
	assert.Equal(t, 6, top.SidesPerElement())
	assert.Equal(t, []int{0, 0}, top.ElemToRank)
	for s := 1; s <= 6; s++ {
		assert.True(t, top.Side(1, s).Physical())
	}

	_, err = NewTopology(1, 2, nil)
	assert.ErrorIs(t, err, ErrTopology)
	_, err = NewTopology(2, 0, nil)
	assert.ErrorIs(t, err, ErrTopology)
	_, err = NewTopology(2, 2, []int{0})
	assert.ErrorIs(t, err, ErrTopology)
}

func TestTopology_Validate(t *testing.T) {
	build := func(mutate func(*Topology)) error {
		top, err := NewTopology(2, 2, []int{0, 1})
		require.NoError(t, err)
		top.Connect(3, 0, 2, 1, 4, FlipReverse)
		mutate(top)
		return top.Validate()
	}
	assert.NoError(t, build(func(*Topology) {}))

	tests := map[string]func(*Topology){
		"neighbor element": func(top *Topology) {
			s := top.Side(0, 2)
			s.NeighborElement = 2
			top.Set(0, 2, s)
		},
		"neighbor side": func(top *Topology) {
			s := top.Side(0, 2)
			s.NeighborSide = 5
			top.Set(0, 2, s)
		},
		"flip": func(top *Topology) {
			s := top.Side(0, 2)
			s.Flip = 3
			top.Set(0, 2, s)
		},
		"mirror id": func(top *Topology) {
			s := top.Side(1, 4)
			s.GlobalSideID = 9
			top.Set(1, 4, s)
		},
		"mirror points elsewhere": func(top *Topology) {
			s := top.Side(1, 4)
			s.NeighborSide = 1
			top.Set(1, 4, s)
		},
		"negative rank": func(top *Topology) { top.ElemToRank[1] = -1 },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, build(mutate), ErrTopology)
		})
	}
}

func TestTopology_PackUnpack(t *testing.T) {
	top, err := NewTopology(3, 2, []int{0, 3})
	require.NoError(t, err)
	top.Connect(11, 0, 6, 1, 1, FlipRotate90)

	info := top.Pack()
	require.Len(t, info, SideInfoWidth*6*2)
	// element 0 side 6 is slot 5
	assert.Equal(t, []int32{0, 11, 1, 12, 0}, info[5*SideInfoWidth:6*SideInfoWidth])
	// element 1 side 1 is slot 6 and carries the inverse flip
	assert.Equal(t, []int32{0, 11, 0, 64, 0}, info[6*SideInfoWidth:7*SideInfoWidth])
	assert.Equal(t, []int32{0, 3}, top.ElemToRank32())

	back, err := Unpack(3, 2, []int{0, 3}, info)
	require.NoError(t, err)
	assert.Equal(t, top, back)
	require.NoError(t, back.Validate())

	_, err = Unpack(3, 2, nil, info[:10])
	assert.ErrorIs(t, err, ErrTopology)
}
