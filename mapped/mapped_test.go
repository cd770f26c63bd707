package mapped

import (
	"math"
	"math/rand"
	"testing"

	"github.com/notargets/SEKernel/dispatch"
	"github.com/notargets/SEKernel/field"
	"github.com/notargets/SEKernel/index"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

var executors = map[string]dispatch.Executor{
	"serial":   dispatch.Serial{},
	"parallel": dispatch.NewParallel(4),
}

func randomField(t *testing.T, l index.Layout, rng *rand.Rand) *field.Field[float64] {
	t.Helper()
	f, err := field.New[float64](l)
	require.NoError(t, err)
	for i := range f.Data {
		f.Data[i] = rng.Float64()*2 - 1
	}
	return f
}

func clone(f *field.Field[float64]) *field.Field[float64] {
	c := field.MustNew[float64](f.Layout)
	copy(c.Data, f.Data)
	return c
}

func layoutsFor(kinds []index.Kind, dims []int) []index.Layout {
	var out []index.Layout
	for _, boundary := range []bool{false, true} {
		for _, dim := range dims {
			for _, k := range kinds {
				out = append(out, index.Layout{Kind: k, Dim: dim, Boundary: boundary, N: 3, NVar: 2, NEl: 3})
			}
		}
	}
	return out
}

func TestJacobianWeight_UnitJacobianIsIdentity(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for _, l := range layoutsFor([]index.Kind{index.Scalar, index.Vector, index.Tensor}, []int{1, 2, 3}) {
		for name, ex := range executors {
			t.Run(l.String()+"/"+name, func(t *testing.T) {
				f := randomField(t, l, rng)
				want := clone(f)
				jac := field.MustNew[float64](l.Metric())
				jac.Fill(1)
				require.NoError(t, JacobianWeight(ex, f, jac))
				assert.Equal(t, want.Data, f.Data)
			})
		}
	}
}

func TestJacobianWeight_DividesEveryComponent(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	for _, l := range layoutsFor([]index.Kind{index.Scalar, index.Vector, index.Tensor}, []int{2, 3}) {
		t.Run(l.String(), func(t *testing.T) {
			f := randomField(t, l, rng)
			orig := clone(f)
			jac := field.MustNew[float64](l.Metric())
			jac.Apply(func(ix index.Index) float64 {
				return 1 + float64(ix.I+2*ix.J+3*ix.K+5*ix.Side+7*ix.El)
			})
			require.NoError(t, JacobianWeight(dispatch.NewParallel(3), f, jac))
			l.Each(func(ix index.Index) {
				node := ix
				node.Row, node.Col, node.Var = 0, 0, 0
				assert.InDelta(t, orig.At(ix)/jac.At(node), f.At(ix), 1e-14, "%+v", ix)
			})
		})
	}
}

func TestJacobianWeight_ZeroJacobianPropagates(t *testing.T) {
	l := index.Interior(index.Scalar, 2, 1, 1, 1)
	f := field.MustNew[float64](l)
	f.Fill(1)
	jac := field.MustNew[float64](l.Metric())
	require.NoError(t, JacobianWeight(dispatch.Serial{}, f, jac))
	assert.True(t, math.IsInf(f.Data[0], 1))
}

func TestJacobianWeight_ShapeErrors(t *testing.T) {
	l := index.Interior(index.Vector, 2, 2, 3, 2)
	f := field.MustNew[float64](l)
	assert.ErrorIs(t, JacobianWeight(dispatch.Serial{}, f, field.MustNew[float64](l)), ErrShape)
	assert.ErrorIs(t, JacobianWeight(dispatch.Serial{}, f, nil), ErrShape)
	assert.ErrorIs(t, JacobianWeight[float64](dispatch.Serial{}, nil, nil), ErrShape)

	short := &field.Field[float64]{Layout: l, Data: make([]float64, 3)}
	assert.ErrorIs(t, JacobianWeight(dispatch.Serial{}, short, field.MustNew[float64](l.Metric())), ErrShape)
}

func TestJacobianWeight_Float32(t *testing.T) {
	l := index.Boundary(index.Tensor, 3, 2, 2, 2)
	f := field.MustNew[float32](l)
	f.Fill(3)
	jac := field.MustNew[float32](l.Metric())
	jac.Fill(2)
	require.NoError(t, JacobianWeight(dispatch.NewParallel(2), f, jac))
	for _, v := range f.Data {
		assert.Equal(t, float32(1.5), v)
	}
}

func identityMetric(l index.Layout) *field.Field[float64] {
	dsdx := field.MustNew[float64](l.Metric().WithKind(index.Tensor))
	dsdx.Apply(func(ix index.Index) float64 {
		if ix.Row == ix.Col {
			return 1
		}
		return 0
	})
	return dsdx
}

func TestContravariantProjection_IdentityMetric(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for _, l := range layoutsFor([]index.Kind{index.Vector}, []int{2, 3}) {
		for name, ex := range executors {
			t.Run(l.String()+"/"+name, func(t *testing.T) {
				phys := randomField(t, l, rng)
				comp := field.MustNew[float64](l)
				comp.Fill(math.NaN()) // must be overwritten
				require.NoError(t, ContravariantProjection(ex, phys, identityMetric(l), comp))
				assert.Equal(t, phys.Data, comp.Data)
			})
		}
	}
}

func TestContravariantProjection_MatchesTransposeProduct(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	for _, l := range layoutsFor([]index.Kind{index.Vector}, []int{2, 3}) {
		t.Run(l.String(), func(t *testing.T) {
			phys := randomField(t, l, rng)
			dsdx := randomField(t, l.Metric().WithKind(index.Tensor), rng)
			comp := field.MustNew[float64](l)
			require.NoError(t, ContravariantProjection(dispatch.NewParallel(4), phys, dsdx, comp))

			dim := l.Dim
			l.WithKind(index.Scalar).Each(func(ix index.Index) {
				node := ix
				node.Var = 0
				m := mat.NewDense(dim, dim, nil)
				v := mat.NewVecDense(dim, nil)
				for r := 1; r <= dim; r++ {
					v.SetVec(r-1, phys.At(index.Index{Row: r, I: ix.I, J: ix.J, K: ix.K, Var: ix.Var, Side: ix.Side, El: ix.El}))
					for c := 1; c <= dim; c++ {
						node.Row, node.Col = r, c
						m.Set(r-1, c-1, dsdx.At(node))
					}
				}
				var want mat.VecDense
				want.MulVec(m.T(), v)
				for c := 1; c <= dim; c++ {
					got := comp.At(index.Index{Row: c, I: ix.I, J: ix.J, K: ix.K, Var: ix.Var, Side: ix.Side, El: ix.El})
					assert.InDelta(t, want.AtVec(c-1), got, 1e-13)
				}
			})
		})
	}
}

func TestContravariantProjection_RejectsAliasing(t *testing.T) {
	l := index.Interior(index.Vector, 2, 1, 1, 1)
	phys := field.MustNew[float64](l)
	assert.ErrorIs(t, ContravariantProjection(dispatch.Serial{}, phys, identityMetric(l), phys), ErrShape)
	scalar := field.MustNew[float64](l.WithKind(index.Scalar))
	assert.ErrorIs(t, ContravariantProjection(dispatch.Serial{}, scalar, identityMetric(l), phys), ErrShape)
	oneD := field.MustNew[float64](index.Interior(index.Vector, 1, 1, 1, 1))
	assert.ErrorIs(t, ContravariantProjection(dispatch.Serial{}, oneD, nil, oneD), ErrShape)
}

func TestContravariantWeight_ScalesTransposedBasis(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	for _, l := range layoutsFor([]index.Kind{index.Scalar}, []int{2, 3}) {
		for name, ex := range executors {
			t.Run(l.String()+"/"+name, func(t *testing.T) {
				scalar := randomField(t, l, rng)
				dsdx := randomField(t, l.Metric().WithKind(index.Tensor), rng)
				out := field.MustNew[float64](l.WithKind(index.Tensor))
				out.Fill(math.NaN())
				require.NoError(t, ContravariantWeight(ex, scalar, dsdx, out))
				out.Each(func(ix index.Index) {
					s := scalar.At(index.Index{I: ix.I, J: ix.J, K: ix.K, Var: ix.Var, Side: ix.Side, El: ix.El})
					m := dsdx.At(index.Index{Row: ix.Col, Col: ix.Row, I: ix.I, J: ix.J, K: ix.K, Side: ix.Side, El: ix.El})
					assert.Equal(t, m*s, out.At(ix), "%+v", ix)
				})
			})
		}
	}
}

func TestContravariantWeight_ShapeErrors(t *testing.T) {
	l := index.Interior(index.Scalar, 2, 2, 2, 1)
	scalar := field.MustNew[float64](l)
	dsdx := identityMetric(l)
	assert.ErrorIs(t, ContravariantWeight(dispatch.Serial{}, scalar, dsdx, field.MustNew[float64](l.WithKind(index.Tensor).WithVars(1))), ErrShape)
	assert.ErrorIs(t, ContravariantWeight(dispatch.Serial{}, scalar, field.MustNew[float64](l.Metric()), field.MustNew[float64](l.WithKind(index.Tensor))), ErrShape)
}

func TestMapTo_RoundTrips(t *testing.T) {
	rng := rand.New(rand.NewSource(6))
	for _, l := range layoutsFor([]index.Kind{index.Vector, index.Tensor}, []int{1, 2, 3}) {
		for name, ex := range executors {
			t.Run(l.String()+"/"+name, func(t *testing.T) {
				src := randomField(t, l, rng)
				packed := field.MustNew[float64](l.WithKind(l.Kind - 1).WithVars(l.Dim * l.NVar))
				require.NoError(t, MapToScalar(ex, src, packed))
				back := field.MustNew[float64](l)
				require.NoError(t, MapToTensor(ex, packed, back))
				assert.Equal(t, src.Data, back.Data, "lower then raise")

				again := field.MustNew[float64](packed.Layout)
				require.NoError(t, MapToScalar(ex, back, again))
				assert.Equal(t, packed.Data, again.Data, "raise then lower")
			})
		}
	}
}

func TestMapToScalar_ChannelOrder(t *testing.T) {
	l := index.Interior(index.Vector, 3, 1, 2, 2)
	src := field.MustNew[float64](l)
	src.Apply(func(ix index.Index) float64 {
		return float64(100*ix.Var + 10*ix.Row + ix.I)
	})
	dst := field.MustNew[float64](l.WithKind(index.Scalar).WithVars(6))
	require.NoError(t, MapToScalar(dispatch.Serial{}, src, dst))
	dst.Each(func(ix index.Index) {
		v, c := ix.Var/3, ix.Var%3+1
		assert.Equal(t, float64(100*v+10*c+ix.I), dst.At(ix))
	})
}

func TestMapToTensor_GradientRows(t *testing.T) {
	// Two packed channels whose gradients become rows 1 and 2 of the tensor.
	l := index.Boundary(index.Vector, 2, 2, 2, 1)
	src := field.MustNew[float64](l)
	src.Apply(func(ix index.Index) float64 {
		return float64(10*ix.Var + ix.Row)
	})
	dst := field.MustNew[float64](l.WithKind(index.Tensor).WithVars(1))
	require.NoError(t, MapToTensor(dispatch.Serial{}, src, dst))
	dst.Each(func(ix index.Index) {
		assert.Equal(t, float64(10*(ix.Row-1)+ix.Col), dst.At(ix))
	})
}

func TestMapTo_ShapeErrors(t *testing.T) {
	l := index.Interior(index.Scalar, 2, 1, 3, 1)
	s := field.MustNew[float64](l)
	assert.ErrorIs(t, MapToScalar(dispatch.Serial{}, s, s), ErrShape, "scalars cannot be lowered")
	assert.ErrorIs(t, MapToTensor(dispatch.Serial{}, s, field.MustNew[float64](l.WithKind(index.Vector).WithVars(1))), ErrShape,
		"3 variables do not pack into 2D rows")
	tensor := field.MustNew[float64](l.WithKind(index.Tensor))
	assert.ErrorIs(t, MapToTensor(dispatch.Serial{}, tensor, tensor), ErrShape, "tensors cannot be raised")
}

// nodeCoord maps node index i on [0,N] to a point in [-1,1].
func nodeCoord(i, N int) float64 {
	if N == 0 {
		return 0
	}
	return -1 + 2*float64(i)/float64(N)
}

func TestCurl2D_GradientOfPotentialIsCurlFree(t *testing.T) {
	// f = grad(phi), phi = x^2 y + sin(x y); grad(f) is the Hessian of phi.
	l := index.Interior(index.Tensor, 2, 4, 1, 2)
	grad := field.MustNew[float64](l)
	grad.Apply(func(ix index.Index) float64 {
		x, y := nodeCoord(ix.I, l.N)+float64(ix.El), nodeCoord(ix.J, l.N)
		switch {
		case ix.Row == 1 && ix.Col == 1:
			return 2*y - y*y*math.Sin(x*y)
		case ix.Row == 2 && ix.Col == 2:
			return -x * x * math.Sin(x*y)
		default:
			return 2*x + math.Cos(x*y) - x*y*math.Sin(x*y)
		}
	})
	curl := field.MustNew[float64](l.WithKind(index.Scalar))
	curl.Fill(math.NaN())
	require.NoError(t, Curl2D(dispatch.NewParallel(2), grad, curl))
	for _, v := range curl.Data {
		assert.InDelta(t, 0, v, 1e-14)
	}
}

func TestCurl2D_Rotation(t *testing.T) {
	// f = (-y, x): grad(1,2) = -1, grad(2,1) = 1, curl = 2.
	l := index.Boundary(index.Tensor, 2, 3, 2, 2)
	grad := field.MustNew[float64](l)
	grad.Apply(func(ix index.Index) float64 {
		switch {
		case ix.Row == 1 && ix.Col == 2:
			return -1
		case ix.Row == 2 && ix.Col == 1:
			return 1
		}
		return 0
	})
	curl := field.MustNew[float64](l.WithKind(index.Scalar))
	require.NoError(t, Curl2D(dispatch.Serial{}, grad, curl))
	for _, v := range curl.Data {
		assert.Equal(t, 2.0, v)
	}
}

func TestCurl3D_GradientOfPotentialIsCurlFree(t *testing.T) {
	// phi = x y z + x^2 + cos(y) z; grad(f) is its symmetric Hessian.
	l := index.Interior(index.Tensor, 3, 3, 2, 2)
	hessian := func(x, y, z float64) [3][3]float64 {
		return [3][3]float64{
			{2, z, y},
			{z, -math.Cos(y) * z, x - math.Sin(y)},
			{y, x - math.Sin(y), 0},
		}
	}
	grad := field.MustNew[float64](l)
	grad.Apply(func(ix index.Index) float64 {
		x, y, z := nodeCoord(ix.I, l.N), nodeCoord(ix.J, l.N), nodeCoord(ix.K, l.N)+float64(ix.Var)
		return hessian(x, y, z)[ix.Row-1][ix.Col-1]
	})
	curl := field.MustNew[float64](l.WithKind(index.Vector))
	curl.Fill(math.NaN())
	require.NoError(t, Curl3D(dispatch.NewParallel(4), grad, curl))
	for _, v := range curl.Data {
		assert.InDelta(t, 0, v, 1e-14)
	}
}

func TestCurl3D_RigidRotation(t *testing.T) {
	// f = w x r with w = (1, 2, 3) has curl 2w.
	l := index.Interior(index.Tensor, 3, 1, 1, 1)
	w := [3]float64{1, 2, 3}
	skew := [3][3]float64{
		{0, -w[2], w[1]},
		{w[2], 0, -w[0]},
		{-w[1], w[0], 0},
	}
	grad := field.MustNew[float64](l)
	grad.Apply(func(ix index.Index) float64 { return skew[ix.Row-1][ix.Col-1] })
	curl := field.MustNew[float64](l.WithKind(index.Vector))
	require.NoError(t, Curl3D(dispatch.Serial{}, grad, curl))
	curl.Each(func(ix index.Index) {
		assert.Equal(t, 2*w[ix.Row-1], curl.At(ix))
	})
}

func TestCurl_ShapeErrors(t *testing.T) {
	l := index.Interior(index.Tensor, 3, 1, 1, 1)
	grad := field.MustNew[float64](l)
	assert.ErrorIs(t, Curl2D(dispatch.Serial{}, grad, field.MustNew[float64](l.WithKind(index.Scalar))), ErrShape)
	assert.ErrorIs(t, Curl3D(dispatch.Serial{}, grad, field.MustNew[float64](l.WithKind(index.Scalar))), ErrShape)
}
