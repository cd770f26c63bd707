package runner

import (
	"fmt"
	"strings"

	"github.com/notargets/SEKernel/index"
)

// Op names one mapped-data kernel family.
type Op string

const (
	OpJacobianWeight          Op = "jacobianWeight"
	OpContravariantWeight     Op = "contravariantWeight"
	OpContravariantProjection Op = "contravariantProjection"
	OpMapToScalar             Op = "mapToScalar"
	OpMapToTensor             Op = "mapToTensor"
	OpCurl                    Op = "curl"
	OpSideExchange            Op = "sideExchange"
)

// KernelName is the registered name of op built for one field kind and node
// set.
func KernelName(op Op, kind index.Kind, boundary bool) string {
	set := "interior"
	if boundary {
		set = "boundary"
	}
	return fmt.Sprintf("%s_%s_%s", op, kind, set)
}

// KernelSource returns the OKL source of op for one field kind and node set.
// kind is the kind of the field the operator is named for: the weighted
// field for JacobianWeight, the source for MapToScalar, the destination for
// MapToTensor and the exchanged field for SideExchange. The remaining ops
// take fixed kinds and ignore it.
func (kr *Runner) KernelSource(op Op, kind index.Kind, boundary bool) (string, error) {
	var (
		name = KernelName(op, kind, boundary)
		si   = kr.ScalarIndex(boundary, "iv", "NVAR")
		mi   = kr.MetricIndex(boundary)
		nc   = kr.Layout(kind, boundary, 1).Components()
		sig  string
		body string
	)
	switch op {
	case OpJacobianWeight:
		sig = "real_t *f, const real_t *jac"
		body = fmt.Sprintf(`const real_t J = jac[%s];
const int b = %d*%s;
for (int c = 0; c < %d; ++c) {
  f[b + c] /= J;
}`, mi, nc, si, nc)

	case OpContravariantWeight:
		if kr.Dim < 2 {
			return "", fmt.Errorf("%s needs 2D or 3D elements", op)
		}
		sig = "const real_t *scalar, const real_t *dsdx, real_t *out"
		body = fmt.Sprintf(`const real_t sv = scalar[%s];
const int mb = NDIM*NDIM*%s;
const int ob = NDIM*NDIM*%s;
for (int c = 0; c < NDIM; ++c) {
  for (int r = 0; r < NDIM; ++r) {
    out[ob + r + NDIM*c] = dsdx[mb + c + NDIM*r]*sv;
  }
}`, si, mi, si)

	case OpContravariantProjection:
		if kr.Dim < 2 {
			return "", fmt.Errorf("%s needs 2D or 3D elements", op)
		}
		sig = "const real_t *phys, const real_t *dsdx, real_t *comp"
		body = fmt.Sprintf(`const int mb = NDIM*NDIM*%s;
const int vb = NDIM*%s;
for (int c = 0; c < NDIM; ++c) {
  real_t sum = REAL_ZERO;
  for (int r = 0; r < NDIM; ++r) {
    sum += dsdx[mb + r + NDIM*c]*phys[vb + r];
  }
  comp[vb + c] = sum;
}`, mi, si)

	case OpMapToScalar:
		if kind != index.Vector && kind != index.Tensor {
			return "", fmt.Errorf("%s takes vector or tensor sources, not %s", op, kind)
		}
		dnc := kr.Layout(kind-1, boundary, 1).Components()
		sig = "const real_t *src, real_t *dst"
		body = fmt.Sprintf(`const int sb = %d*%s;
for (int r = 0; r < NDIM; ++r) {
  const int db = %d*%s;
  for (int c = 0; c < %d; ++c) {
    dst[db + c] = src[sb + r + NDIM*c];
  }
}`, nc, si, dnc, kr.ScalarIndex(boundary, "NDIM*iv+r", "NDIM*NVAR"), dnc)

	case OpMapToTensor:
		if kind != index.Vector && kind != index.Tensor {
			return "", fmt.Errorf("%s builds vector or tensor fields, not %s", op, kind)
		}
		snc := kr.Layout(kind-1, boundary, 1).Components()
		sig = "const real_t *src, real_t *dst"
		body = fmt.Sprintf(`const int db = %d*%s;
for (int r = 0; r < NDIM; ++r) {
  const int sb = %d*%s;
  for (int c = 0; c < %d; ++c) {
    dst[db + r + NDIM*c] = src[sb + c];
  }
}`, nc, si, snc, kr.ScalarIndex(boundary, "NDIM*iv+r", "NDIM*NVAR"), snc)

	case OpCurl:
		sig = "const real_t *grad, real_t *curl"
		switch kr.Dim {
		case 2:
			body = fmt.Sprintf(`const int so = %s;
curl[so] = grad[4*so + 1] - grad[4*so + 2];`, si)
		case 3:
			body = fmt.Sprintf(`const int so = %s;
const real_t *g = grad + 9*so;
curl[3*so + 0] = g[5] - g[7];
curl[3*so + 1] = g[6] - g[2];
curl[3*so + 2] = g[1] - g[3];`, si)
		default:
			return "", fmt.Errorf("%s needs 2D or 3D elements", op)
		}

	case OpSideExchange:
		if !boundary {
			return "", fmt.Errorf("%s runs on boundary fields only", op)
		}
		sig = "const real_t *boundary, real_t *ext, const int *sideInfo, const int *elemToRank"
		var err error
		if body, err = kr.sideExchangeBody(nc); err != nil {
			return "", err
		}

	default:
		return "", fmt.Errorf("unknown kernel op %q", op)
	}
	return kr.LoopNest(name, sig, boundary, "NVAR", body), nil
}

// sideExchangeBody copies one face node when the face is conforming and its
// neighbor is owned by RANK. The flip digit of the side info remaps the node.
func (kr *Runner) sideExchangeBody(nc int) (string, error) {
	var remap, dst, src string
	switch kr.Dim {
	case 2:
		remap = `int i2 = i;
if (flip == 2) i2 = NORDER - i;`
		dst = "SCB_2D_INDEX(i,iv,s,iel,NORDER,NVAR)"
		src = "SCB_2D_INDEX(i2,iv,s2,e2,NORDER,NVAR)"
	case 3:
		remap = `int i2 = i, j2 = j;
if (flip == 2) { i2 = NORDER - j; j2 = i; }
else if (flip == 3) { i2 = NORDER - i; j2 = NORDER - j; }
else if (flip == 4) { i2 = j; j2 = NORDER - i; }`
		dst = "SCB_3D_INDEX(i,j,iv,s,iel,NORDER,NVAR)"
		src = "SCB_3D_INDEX(i2,j2,iv,s2,e2,NORDER,NVAR)"
	default:
		return "", fmt.Errorf("%s needs 2D or 3D elements", OpSideExchange)
	}
	var sb strings.Builder
	sb.WriteString(`const int si = SIDE_INFO(s,iel);
const int e2 = sideInfo[si + 2];
const int s2 = sideInfo[si + 3]/10;
const int flip = sideInfo[si + 3] - 10*s2;
if (sideInfo[si + 4] == 0 && elemToRank[e2] == RANK) {
`)
	for _, line := range strings.Split(remap, "\n") {
		sb.WriteString("  " + line + "\n")
	}
	fmt.Fprintf(&sb, `  const int d = %d*%s;
  const int o = %d*%s;
  for (int c = 0; c < %d; ++c) {
    ext[d + c] = boundary[o + c];
  }
}`, nc, dst, nc, src, nc)
	return sb.String(), nil
}
