package runner

import (
	"math/rand"
	"testing"

	"github.com/notargets/SEKernel/config"
	"github.com/notargets/SEKernel/dispatch"
	"github.com/notargets/SEKernel/exchange"
	"github.com/notargets/SEKernel/field"
	"github.com/notargets/SEKernel/index"
	"github.com/notargets/SEKernel/mapped"
	"github.com/notargets/SEKernel/partitions"
	"github.com/notargets/SEKernel/runner/builder"
	"github.com/notargets/SEKernel/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tol = 1e-13

func randomField(l index.Layout, rng *rand.Rand) *field.Field[float64] {
	f := field.MustNew[float64](l)
	for i := range f.Data {
		f.Data[i] = 2*rng.Float64() - 1
	}
	return f
}

func clone(f *field.Field[float64]) *field.Field[float64] {
	g := field.MustNew[float64](f.Layout)
	copy(g.Data, f.Data)
	return g
}

// positive keeps Jacobians away from zero
func positive(l index.Layout, rng *rand.Rand) *field.Field[float64] {
	f := randomField(l, rng)
	for i := range f.Data {
		f.Data[i] = 1.5 + f.Data[i]
	}
	return f
}

func TestRunner_KernelsMatchHost(t *testing.T) {
	device := utils.CreateTestDevice()
	defer device.Free()

	host := dispatch.Serial{}
	for _, dim := range []int{2, 3} {
		kr := NewRunner(device, builder.Config{Dim: dim, N: 2, NVar: 2, NEl: 3}, nil)
		for _, boundary := range []bool{false, true} {
			rng := rand.New(rand.NewSource(int64(dim)))
			layout := func(kind index.Kind, nVar int) index.Layout {
				return kr.Layout(kind, boundary, nVar)
			}
			jac := positive(layout(index.Scalar, 1), rng)
			dsdx := randomField(layout(index.Tensor, 1), rng)

			t.Run("JacobianWeight", func(t *testing.T) {
				for _, kind := range []index.Kind{index.Scalar, index.Vector, index.Tensor} {
					f := randomField(layout(kind, 2), rng)
					want := clone(f)
					require.NoError(t, mapped.JacobianWeight(host, want, jac))
					require.NoError(t, JacobianWeight(kr, f, jac))
					assert.InDeltaSlice(t, want.Data, f.Data, tol, "%v", f.Layout)
				}
			})

			t.Run("ContravariantWeight", func(t *testing.T) {
				scalar := randomField(layout(index.Scalar, 2), rng)
				want := field.MustNew[float64](layout(index.Tensor, 2))
				got := field.MustNew[float64](layout(index.Tensor, 2))
				require.NoError(t, mapped.ContravariantWeight(host, scalar, dsdx, want))
				require.NoError(t, ContravariantWeight(kr, scalar, dsdx, got))
				assert.InDeltaSlice(t, want.Data, got.Data, tol)
			})

			t.Run("ContravariantProjection", func(t *testing.T) {
				phys := randomField(layout(index.Vector, 2), rng)
				want := field.MustNew[float64](phys.Layout)
				got := field.MustNew[float64](phys.Layout)
				require.NoError(t, mapped.ContravariantProjection(host, phys, dsdx, want))
				require.NoError(t, ContravariantProjection(kr, phys, dsdx, got))
				assert.InDeltaSlice(t, want.Data, got.Data, tol)
			})

			t.Run("MapTo", func(t *testing.T) {
				for _, kind := range []index.Kind{index.Vector, index.Tensor} {
					src := randomField(layout(kind, 2), rng)
					low := field.MustNew[float64](layout(kind-1, 2*dim))
					want := field.MustNew[float64](low.Layout)
					require.NoError(t, mapped.MapToScalar(host, src, want))
					require.NoError(t, MapToScalar(kr, src, low))
					assert.Equal(t, want.Data, low.Data)

					back := field.MustNew[float64](src.Layout)
					require.NoError(t, MapToTensor(kr, low, back))
					assert.Equal(t, src.Data, back.Data)
				}
			})

			t.Run("Curl", func(t *testing.T) {
				grad := randomField(layout(index.Tensor, 2), rng)
				kind := index.Scalar
				if dim == 3 {
					kind = index.Vector
				}
				want := field.MustNew[float64](grad.WithKind(kind))
				got := field.MustNew[float64](grad.WithKind(kind))
				if dim == 2 {
					require.NoError(t, mapped.Curl2D(host, grad, want))
				} else {
					require.NoError(t, mapped.Curl3D(host, grad, want))
				}
				require.NoError(t, Curl(kr, grad, got))
				assert.InDeltaSlice(t, want.Data, got.Data, tol)
			})
		}
		kr.Free()
	}
}

func TestRunner_SideExchangeMatchesHost(t *testing.T) {
	device := utils.CreateTestDevice()
	defer device.Free()

	meshes := map[string]*exchange.Topology{}
	quads, err := partitions.StructuredQuadMesh(3, 2, [2]bool{true, false})
	require.NoError(t, err)
	meshes["quads"] = quads
	hexes, err := partitions.StructuredHexMesh(2, 2, 2, [3]bool{false, true, false})
	require.NoError(t, err)
	meshes["hexes"] = hexes

	for name, topo := range meshes {
		t.Run(name, func(t *testing.T) {
			pb := &partitions.PartitionBuilder{NumElements: topo.NEl, NumPartitions: 2}
			pl, err := pb.BuildPartitions()
			require.NoError(t, err)
			require.NoError(t, pl.Assign(topo))

			const rank = 1
			kr := NewRunner(device, builder.Config{Dim: topo.Dim, N: 3, NVar: 2, NEl: topo.NEl, Rank: rank}, nil)
			defer kr.Free()

			rng := rand.New(rand.NewSource(7))
			for _, kind := range []index.Kind{index.Scalar, index.Vector} {
				bnd := randomField(kr.Layout(kind, true, 2), rng)
				want := field.MustNew[float64](bnd.Layout)
				want.Fill(-999)
				got := clone(want)

				x, err := exchange.NewExchanger(topo, rank, nil, nil)
				require.NoError(t, err)
				wantReport, err := exchange.SideExchange(x, bnd, want)
				require.NoError(t, err)

				report, err := SideExchange(kr, topo, bnd, got)
				require.NoError(t, err)
				assert.Equal(t, want.Data, got.Data)
				assert.Equal(t, wantReport.Local, report.Local)
				assert.Equal(t, wantReport.Remote, report.Remote)
				assert.Positive(t, report.Remote)
			}
		})
	}
}

func TestRunner_Rejects(t *testing.T) {
	device := utils.CreateTestDevice()
	defer device.Free()

	kr := NewRunner(device, builder.Config{Dim: 2, N: 1, NVar: 1, NEl: 2}, nil)
	defer kr.Free()

	jac := field.MustNew[float64](kr.Layout(index.Scalar, false, 1))
	wrongVars := field.MustNew[float64](kr.Layout(index.Scalar, false, 3))
	assert.ErrorIs(t, JacobianWeight(kr, wrongVars, jac), field.ErrShape)
	assert.ErrorIs(t, JacobianWeight[float64](kr, nil, jac), field.ErrShape)

	single := field.MustNew[float32](kr.Layout(index.Scalar, false, 1))
	assert.ErrorIs(t, JacobianWeight(kr, single, single), field.ErrShape)

	phys := field.MustNew[float64](kr.Layout(index.Vector, false, 1))
	dsdx := field.MustNew[float64](kr.Layout(index.Tensor, false, 1))
	assert.ErrorIs(t, ContravariantProjection(kr, phys, dsdx, phys), field.ErrShape)

	topo, err := partitions.StructuredQuadMesh(3, 1, [2]bool{})
	require.NoError(t, err)
	bnd := field.MustNew[float64](kr.Layout(index.Scalar, true, 1))
	_, err = SideExchange(kr, topo, bnd, clone(bnd))
	assert.ErrorIs(t, err, exchange.ErrTopology)
	assert.Empty(t, kr.Kernels)
}

func TestNewRunner_PanicsWithoutDevice(t *testing.T) {
	assert.Panics(t, func() {
		NewRunner(nil, builder.Config{Dim: 2, N: 1, NVar: 1, NEl: 1}, nil)
	})
}

func TestOpen_FromConfig(t *testing.T) {
	cfg, err := config.Parse([]byte("mesh:\n  dim: 3\n  n: 2\n  nvar: 1\n  nel: 2\ndevice:\n  float_type: float32\n"))
	require.NoError(t, err)
	kr, err := Open(cfg, nil)
	require.NoError(t, err)
	defer kr.Free()
	assert.Equal(t, builder.Float32, kr.FloatType)
	assert.Equal(t, 4, kr.GetFloatSize())

	l := kr.Layout(index.Tensor, false, 1)
	grad := field.MustNew[float32](l)
	grad.Set(index.Index{Row: 3, Col: 2, El: 1}, 5)
	curl := field.MustNew[float32](l.WithKind(index.Vector))
	require.NoError(t, Curl(kr, grad, curl))
	assert.Equal(t, float32(5), curl.At(index.Index{Row: 1, El: 1}))

	// float64 fields do not fit a float32 runner
	assert.ErrorIs(t, Curl(kr, field.MustNew[float64](l), field.MustNew[float64](curl.Layout)), field.ErrShape)

	cfg.Mesh.Dim = 7
	_, err = Open(cfg, nil)
	assert.ErrorIs(t, err, config.ErrInvalid)
}
