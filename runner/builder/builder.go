// Package builder generates the OKL source shared by the mapped-data device
// kernels: scalar typedefs, the baked problem sizes and index macros that
// reproduce the host addressing scheme, and the loop nests that lay the
// (variable or side, element) blocks out as @outer groups.
package builder

import (
	"fmt"
	"strings"

	"github.com/notargets/SEKernel/index"
)

// DataType represents the precision of numerical data
type DataType int

const (
	Float32 DataType = iota + 1
	Float64
	INT32
	INT64
)

// ParseFloatType maps a configuration name to a DataType.
func ParseFloatType(name string) (DataType, error) {
	switch name {
	case "", "float64":
		return Float64, nil
	case "float32":
		return Float32, nil
	default:
		return 0, fmt.Errorf("unknown float type %q", name)
	}
}

// Config holds configuration for creating a Builder
type Config struct {
	Dim  int
	N    int
	NVar int
	NEl  int

	// Rank is the owning rank tested by the side exchange kernel.
	Rank int

	FloatType DataType
	IntType   DataType
}

// Builder bakes one problem shape into kernel source.
type Builder struct {
	Dim, N, NVar, NEl int
	Rank              int

	FloatType DataType
	IntType   DataType

	// Generated code
	KernelPreamble string
}

// NewBuilder creates a new Builder instance
func NewBuilder(cfg Config) *Builder {
	l := index.Interior(index.Scalar, cfg.Dim, cfg.N, cfg.NVar, cfg.NEl)
	if err := l.Validate(); err != nil {
		panic(fmt.Sprintf("builder config: %v", err))
	}
	if cfg.Rank < 0 {
		panic(fmt.Sprintf("builder config: rank %d", cfg.Rank))
	}
	floatType := cfg.FloatType
	if floatType == 0 {
		floatType = Float64
	}
	intType := cfg.IntType
	if intType == 0 {
		intType = INT64
	}
	return &Builder{
		Dim:       cfg.Dim,
		N:         cfg.N,
		NVar:      cfg.NVar,
		NEl:       cfg.NEl,
		Rank:      cfg.Rank,
		FloatType: floatType,
		IntType:   intType,
	}
}

// Layout is the field layout of the baked shape with nVar variables.
func (kb *Builder) Layout(kind index.Kind, boundary bool, nVar int) index.Layout {
	return index.Layout{Kind: kind, Dim: kb.Dim, Boundary: boundary, N: kb.N, NVar: nVar, NEl: kb.NEl}
}

// GetFloatSize returns the size of the real type in bytes
func (kb *Builder) GetFloatSize() int {
	if kb.FloatType == Float32 {
		return 4
	}
	return 8
}

// GetIntSize returns the size of the integer type in bytes
func (kb *Builder) GetIntSize() int {
	if kb.IntType == INT32 {
		return 4
	}
	return 8
}

// GeneratePreamble generates the kernel preamble
func (kb *Builder) GeneratePreamble() string {
	var sb strings.Builder
	sb.WriteString(kb.generateTypeDefinitions())
	sb.WriteString(generateIndexMacros())
	kb.KernelPreamble = sb.String()
	return kb.KernelPreamble
}

// generateTypeDefinitions creates type definitions based on precision settings
func (kb *Builder) generateTypeDefinitions() string {
	var sb strings.Builder

	floatTypeStr := "double"
	floatSuffix := ""
	if kb.FloatType == Float32 {
		floatTypeStr = "float"
		floatSuffix = "f"
	}
	intTypeStr := "long"
	if kb.IntType == INT32 {
		intTypeStr = "int"
	}

	sb.WriteString(fmt.Sprintf("typedef %s real_t;\n", floatTypeStr))
	sb.WriteString(fmt.Sprintf("typedef %s int_t;\n", intTypeStr))
	sb.WriteString(fmt.Sprintf("#define REAL_ZERO 0.0%s\n", floatSuffix))
	sb.WriteString(fmt.Sprintf("#define REAL_ONE 1.0%s\n", floatSuffix))
	sb.WriteString("\n")

	sb.WriteString(fmt.Sprintf("#define NDIM %d\n", kb.Dim))
	sb.WriteString(fmt.Sprintf("#define NORDER %d\n", kb.N))
	sb.WriteString(fmt.Sprintf("#define NP %d\n", kb.N+1))
	sb.WriteString(fmt.Sprintf("#define NVAR %d\n", kb.NVar))
	sb.WriteString(fmt.Sprintf("#define NEL %d\n", kb.NEl))
	sb.WriteString(fmt.Sprintf("#define NSIDE %d\n", 2*kb.Dim))
	sb.WriteString(fmt.Sprintf("#define RANK %d\n", kb.Rank))
	sb.WriteString("\n")

	return sb.String()
}

// indexMacros mirror the addressing functions of package index.
var indexMacros = []string{
	"#define SC_1D_INDEX(i,iv,iel,N,nv) ((i)+((N)+1)*((iv)+(nv)*(iel)))",
	"#define SC_2D_INDEX(i,j,iv,iel,N,nv) ((i)+((N)+1)*((j)+((N)+1)*((iv)+(nv)*(iel))))",
	"#define SC_3D_INDEX(i,j,k,iv,iel,N,nv) ((i)+((N)+1)*((j)+((N)+1)*((k)+((N)+1)*((iv)+(nv)*(iel)))))",
	"#define VE_2D_INDEX(d,i,j,iv,iel,N,nv) ((d)-1+2*SC_2D_INDEX(i,j,iv,iel,N,nv))",
	"#define VE_3D_INDEX(d,i,j,k,iv,iel,N,nv) ((d)-1+3*SC_3D_INDEX(i,j,k,iv,iel,N,nv))",
	"#define TE_2D_INDEX(r,c,i,j,iv,iel,N,nv) ((r)-1+2*((c)-1+2*SC_2D_INDEX(i,j,iv,iel,N,nv)))",
	"#define TE_3D_INDEX(r,c,i,j,k,iv,iel,N,nv) ((r)-1+3*((c)-1+3*SC_3D_INDEX(i,j,k,iv,iel,N,nv)))",
	"#define SCB_1D_INDEX(iv,s,iel,nv) ((iv)+(nv)*(((s)-1)+2*(iel)))",
	"#define SCB_2D_INDEX(i,iv,s,iel,N,nv) ((i)+((N)+1)*((iv)+(nv)*(((s)-1)+4*(iel))))",
	"#define SCB_3D_INDEX(i,j,iv,s,iel,N,nv) ((i)+((N)+1)*((j)+((N)+1)*((iv)+(nv)*(((s)-1)+6*(iel)))))",
	"#define VEB_2D_INDEX(d,i,iv,s,iel,N,nv) ((d)-1+2*SCB_2D_INDEX(i,iv,s,iel,N,nv))",
	"#define VEB_3D_INDEX(d,i,j,iv,s,iel,N,nv) ((d)-1+3*SCB_3D_INDEX(i,j,iv,s,iel,N,nv))",
	"#define TEB_2D_INDEX(r,c,i,iv,s,iel,N,nv) ((r)-1+2*((c)-1+2*SCB_2D_INDEX(i,iv,s,iel,N,nv)))",
	"#define TEB_3D_INDEX(r,c,i,j,iv,s,iel,N,nv) ((r)-1+3*((c)-1+3*SCB_3D_INDEX(i,j,iv,s,iel,N,nv)))",
	"#define SIDE_INFO(s,iel) (5*(((s)-1)+NSIDE*(iel)))",
}

func generateIndexMacros() string {
	return strings.Join(indexMacros, "\n") + "\n\n"
}

// ScalarIndex is the OKL expression of the scalar offset of the current
// loop-nest node for variable v of a field with nv variables. The node,
// side and element come from the loop variables declared by LoopNest.
func (kb *Builder) ScalarIndex(boundary bool, v, nv string) string {
	if boundary {
		switch kb.Dim {
		case 1:
			return fmt.Sprintf("SCB_1D_INDEX(%s,s,iel,%s)", v, nv)
		case 2:
			return fmt.Sprintf("SCB_2D_INDEX(i,%s,s,iel,NORDER,%s)", v, nv)
		default:
			return fmt.Sprintf("SCB_3D_INDEX(i,j,%s,s,iel,NORDER,%s)", v, nv)
		}
	}
	switch kb.Dim {
	case 1:
		return fmt.Sprintf("SC_1D_INDEX(i,%s,iel,NORDER,%s)", v, nv)
	case 2:
		return fmt.Sprintf("SC_2D_INDEX(i,j,%s,iel,NORDER,%s)", v, nv)
	default:
		return fmt.Sprintf("SC_3D_INDEX(i,j,k,%s,iel,NORDER,%s)", v, nv)
	}
}

// MetricIndex is the scalar offset of the current node in a single
// variable metric field.
func (kb *Builder) MetricIndex(boundary bool) string {
	return kb.ScalarIndex(boundary, "0", "1")
}

type loop struct {
	name, extent string
}

// LoopNest wraps body in the element loop nest of the baked shape and
// returns the full kernel. Interior kernels group by (variable, element) and
// iterate the node axes inside; boundary kernels group by (side, element)
// and iterate the variables and face nodes inside. nv is the variable extent
// of the fields that drive the loop. Inside body the loop variables iel, iv,
// s and i, j, k are in scope as the layout requires.
func (kb *Builder) LoopNest(name, signature string, boundary bool, nv string, body string) string {
	var outer, inner []loop
	outer = append(outer, loop{"iel", "NEL"})
	if boundary {
		outer = append(outer, loop{"s0", "NSIDE"})
		inner = append(inner, loop{"iv", nv})
	} else {
		outer = append(outer, loop{"iv", nv})
	}
	axes := []string{"k", "j", "i"}
	nodeAxes := kb.Dim
	if boundary {
		nodeAxes--
	}
	for _, a := range axes[len(axes)-nodeAxes:] {
		inner = append(inner, loop{a, "NP"})
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "@kernel void %s(%s) {\n", name, signature)
	depth := 1
	indent := func() string { return strings.Repeat("  ", depth) }
	for n, l := range outer {
		fmt.Fprintf(&sb, "%sfor (int %s = 0; %s < %s; ++%s; @outer(%d)) {\n",
			indent(), l.name, l.name, l.extent, l.name, len(outer)-1-n)
		depth++
	}
	for n, l := range inner {
		fmt.Fprintf(&sb, "%sfor (int %s = 0; %s < %s; ++%s; @inner(%d)) {\n",
			indent(), l.name, l.name, l.extent, l.name, len(inner)-1-n)
		depth++
	}
	if boundary {
		sb.WriteString(indent() + "const int s = s0 + 1;\n")
	}
	for _, line := range strings.Split(strings.TrimRight(body, "\n"), "\n") {
		sb.WriteString(indent() + line + "\n")
	}
	for depth > 1 {
		depth--
		sb.WriteString(indent() + "}\n")
	}
	sb.WriteString("}\n")
	return sb.String()
}
