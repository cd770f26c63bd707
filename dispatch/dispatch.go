// Package dispatch describes kernel iteration spaces and runs kernel bodies
// over them. A Space has an outer grouping (one parallel task per outer
// tuple) and an inner grouping iterated inside each task, matching the
// (block, thread) decomposition used by the device kernels.
package dispatch

import (
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Role names the coordinate an axis drives.
type Role uint8

const (
	Var Role = iota
	Element
	Side
	NodeI
	NodeJ
	NodeK
)

// Axis is one dimension of an iteration space. Coordinates run from Base to
// Base+Extent-1.
type Axis struct {
	Role   Role
	Extent int
	Base   int
}

// Space is the full iteration space of one kernel invocation.
type Space struct {
	Outer []Axis
	Inner []Axis
}

// Point is one tuple of the iteration space.
type Point struct {
	I, J, K int
	Var     int
	Side    int
	El      int
}

func nodeAxes(n, N int) []Axis {
	roles := []Role{NodeI, NodeJ, NodeK}
	axes := make([]Axis, n)
	for a := 0; a < n; a++ {
		axes[a] = Axis{Role: roles[a], Extent: N + 1}
	}
	return axes
}

// InteriorSpace groups by (variable, element) and iterates the dim node axes
// inside each group.
func InteriorSpace(dim, N, nVar, nEl int) Space {
	return Space{
		Outer: []Axis{{Role: Var, Extent: nVar}, {Role: Element, Extent: nEl}},
		Inner: nodeAxes(dim, N),
	}
}

// BoundarySpace groups by (side, element) and iterates the face node axes and
// the variables inside each group. Sides are numbered from 1.
func BoundarySpace(dim, N, nVar, nEl int) Space {
	return Space{
		Outer: []Axis{{Role: Side, Extent: 2 * dim, Base: 1}, {Role: Element, Extent: nEl}},
		Inner: append(nodeAxes(dim-1, N), Axis{Role: Var, Extent: nVar}),
	}
}

func extent(axes []Axis) int {
	n := 1
	for _, a := range axes {
		n *= a.Extent
	}
	return n
}

// OuterSize is the number of independent tasks.
func (s Space) OuterSize() int { return extent(s.Outer) }

// InnerSize is the number of tuples iterated by each task.
func (s Space) InnerSize() int { return extent(s.Inner) }

// Size is the total number of tuples.
func (s Space) Size() int { return s.OuterSize() * s.InnerSize() }

func (p *Point) set(r Role, v int) {
	switch r {
	case Var:
		p.Var = v
	case Element:
		p.El = v
	case Side:
		p.Side = v
	case NodeI:
		p.I = v
	case NodeJ:
		p.J = v
	case NodeK:
		p.K = v
	}
}

// decode writes the coordinates of flat position n of axes into p, first
// axis fastest.
func decode(axes []Axis, n int, p *Point) {
	for _, a := range axes {
		p.set(a.Role, a.Base+n%a.Extent)
		n /= a.Extent
	}
}

// runOuter executes the inner loop of outer task o.
func (s Space) runOuter(o int, body func(Point)) {
	var p Point
	decode(s.Outer, o, &p)
	inner := s.InnerSize()
	for n := 0; n < inner; n++ {
		decode(s.Inner, n, &p)
		body(p)
	}
}

// Executor runs a kernel body once for every tuple of a space. Launch returns
// after every tuple has been processed.
type Executor interface {
	Launch(s Space, body func(Point))
}

// Serial runs every tuple on the calling goroutine.
type Serial struct{}

func (Serial) Launch(s Space, body func(Point)) {
	outer := s.OuterSize()
	for o := 0; o < outer; o++ {
		s.runOuter(o, body)
	}
}

// Parallel distributes outer tasks over at most Workers goroutines. Workers <= 0
// uses runtime.NumCPU().
type Parallel struct {
	Workers int
}

// NewParallel returns a Parallel executor, treating 0 as runtime.NumCPU().
func NewParallel(workers int) Parallel {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return Parallel{Workers: workers}
}

func (px Parallel) Launch(s Space, body func(Point)) {
	workers := px.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	outer := s.OuterSize()
	if outer == 0 {
		return
	}
	if workers > outer {
		workers = outer
	}
	if workers == 1 {
		Serial{}.Launch(s, body)
		return
	}
	chunk := (outer + workers - 1) / workers
	var g errgroup.Group
	g.SetLimit(workers)
	for start := 0; start < outer; start += chunk {
		lo, hi := start, min(start+chunk, outer)
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = &taskPanic{value: r}
				}
			}()
			for o := lo; o < hi; o++ {
				s.runOuter(o, body)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		panic(err)
	}
}

type taskPanic struct {
	value any
}

func (tp *taskPanic) Error() string {
	return fmt.Sprintf("dispatch: kernel task panicked: %v", tp.value)
}
