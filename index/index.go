// Package index defines the flattened addressing convention shared by every
// field buffer: interior and boundary scalars, vectors and tensors in 1D, 2D
// and 3D.
//
// Node coordinates run 0..N, variables 0..nVar-1 and elements 0..nEl-1.
// Vector components and tensor rows/columns are 1-based (1..dim), as are side
// numbers (1..2*dim). Component axes vary fastest, followed by the node axes
// (i fastest), the variable, the side (boundary layouts only) and finally the
// element.
//
// None of the functions in this file check their arguments.
package index

// SC1D addresses an interior scalar on a 1D element.
func SC1D(i, iVar, iEl, N, nVar int) int {
	return i + (N+1)*(iVar+nVar*iEl)
}

// SC2D addresses an interior scalar on a 2D element.
func SC2D(i, j, iVar, iEl, N, nVar int) int {
	return i + (N+1)*(j+(N+1)*(iVar+nVar*iEl))
}

// SC3D addresses an interior scalar on a 3D element.
func SC3D(i, j, k, iVar, iEl, N, nVar int) int {
	return i + (N+1)*(j+(N+1)*(k+(N+1)*(iVar+nVar*iEl)))
}

// VE2D addresses component dir of an interior 2D vector.
func VE2D(dir, i, j, iVar, iEl, N, nVar int) int {
	return dir - 1 + 2*SC2D(i, j, iVar, iEl, N, nVar)
}

// VE3D addresses component dir of an interior 3D vector.
func VE3D(dir, i, j, k, iVar, iEl, N, nVar int) int {
	return dir - 1 + 3*SC3D(i, j, k, iVar, iEl, N, nVar)
}

// TE2D addresses component (row, col) of an interior 2D tensor.
func TE2D(row, col, i, j, iVar, iEl, N, nVar int) int {
	return row - 1 + 2*(col-1+2*SC2D(i, j, iVar, iEl, N, nVar))
}

// TE3D addresses component (row, col) of an interior 3D tensor.
func TE3D(row, col, i, j, k, iVar, iEl, N, nVar int) int {
	return row - 1 + 3*(col-1+3*SC3D(i, j, k, iVar, iEl, N, nVar))
}

// SCB1D addresses a boundary scalar of a 1D element. Each of the two sides
// holds a single node.
func SCB1D(iVar, iSide, iEl, nVar int) int {
	return iVar + nVar*(iSide-1+2*iEl)
}

// SCB2D addresses a boundary scalar of a 2D element.
func SCB2D(i, iVar, iSide, iEl, N, nVar int) int {
	return i + (N+1)*(iVar+nVar*(iSide-1+4*iEl))
}

// SCB3D addresses a boundary scalar of a 3D element.
func SCB3D(i, j, iVar, iSide, iEl, N, nVar int) int {
	return i + (N+1)*(j+(N+1)*(iVar+nVar*(iSide-1+6*iEl)))
}

// VEB2D addresses component dir of a boundary 2D vector.
func VEB2D(dir, i, iVar, iSide, iEl, N, nVar int) int {
	return dir - 1 + 2*SCB2D(i, iVar, iSide, iEl, N, nVar)
}

// VEB3D addresses component dir of a boundary 3D vector.
func VEB3D(dir, i, j, iVar, iSide, iEl, N, nVar int) int {
	return dir - 1 + 3*SCB3D(i, j, iVar, iSide, iEl, N, nVar)
}

// TEB2D addresses component (row, col) of a boundary 2D tensor.
func TEB2D(row, col, i, iVar, iSide, iEl, N, nVar int) int {
	return row - 1 + 2*(col-1+2*SCB2D(i, iVar, iSide, iEl, N, nVar))
}

// TEB3D addresses component (row, col) of a boundary 3D tensor.
func TEB3D(row, col, i, j, iVar, iSide, iEl, N, nVar int) int {
	return row - 1 + 3*(col-1+3*SCB3D(i, j, iVar, iSide, iEl, N, nVar))
}
