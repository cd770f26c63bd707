package element

import (
	"fmt"
	"math"

	"github.com/notargets/SEKernel/field"
	"github.com/notargets/SEKernel/index"
	"gonum.org/v1/gonum/mat"
)

// LobattoNodes returns the N+1 Legendre-Gauss-Lobatto points on [-1, 1] in
// increasing order. These are the zeros of (1-x^2) P'_N(x).
func LobattoNodes(N int) []float64 {
	switch N {
	case 0:
		return []float64{0}
	case 1:
		return []float64{-1, 1}
	}
	x := make([]float64, N+1)
	x[0], x[N] = -1, 1
	copy(x[1:N], gaussJacobi(1, 1, N-2))
	return x
}

// gaussJacobi returns the n+1 Gauss-Jacobi points of type (alpha, beta) as
// the eigenvalues of the symmetric tridiagonal Jacobi matrix.
func gaussJacobi(alpha, beta float64, n int) []float64 {
	if n == 0 {
		return []float64{-(alpha - beta) / (alpha + beta + 2)}
	}
	J := mat.NewSymDense(n+1, nil)
	for i := 0; i <= n; i++ {
		h := 2*float64(i) + alpha + beta
		if h != 0 {
			J.SetSym(i, i, (beta*beta-alpha*alpha)/(h*(h+2)))
		}
		if i < n {
			ip1 := float64(i + 1)
			J.SetSym(i, i+1, 2/(h+2)*math.Sqrt(
				ip1*(ip1+alpha+beta)*(ip1+alpha)*(ip1+beta)/(h+1)/(h+3)))
		}
	}
	var eig mat.EigenSym
	if !eig.Factorize(J, false) {
		panic("element: Jacobi matrix eigendecomposition failed")
	}
	return eig.Values(nil)
}

// AffineCoordinates returns the physical coordinates x = A xi + b of every
// interior Lobatto node of nEl copies of the affine element, as a single
// variable vector field.
func AffineCoordinates[T field.Real](A *mat.Dense, b []float64, N, nEl int) (*field.Field[T], error) {
	dim, c := A.Dims()
	if dim != c || len(b) != dim {
		return nil, fmt.Errorf("affine map is %dx%d with a %d offset", dim, c, len(b))
	}
	x, err := field.New[T](index.Interior(index.Vector, dim, N, 1, nEl))
	if err != nil {
		return nil, err
	}
	nodes := LobattoNodes(N)
	x.Apply(func(ix index.Index) T {
		xi := [3]float64{nodes[ix.I], nodes[ix.J], nodes[ix.K]}
		v := b[ix.Row-1]
		for c := 1; c <= dim; c++ {
			v += A.At(ix.Row-1, c-1) * xi[c-1]
		}
		return T(v)
	})
	return x, nil
}
