package emath

import(
	"fmt"

	"golang.org/x/exp/constraints"
	"gonum.org/v1/gonum/floats"
)

// Number is anything we keep in a Grid: raw integer samples as read from a
// raster band, or the floats the color pipeline works on.
type Number interface {
	constraints.Integer | constraints.Float
}

// A Grid is a 2-D grid of values for one band over one window, stored
// row-major in a single slice.
type Grid[T Number] struct {
	stride int
	values []T
}

// FloatGrid is what the color pipeline operates on.
type FloatGrid = Grid[float64]

// SampleGrid holds raw band samples. int32 holds any 8 or 16 bit sample,
// signed or not, and 32 bit signed ones.
type SampleGrid = Grid[int32]

func NewGrid[T Number](w, h int) Grid[T] {
	return Grid[T]{
		stride: w,
		values: make([]T, w*h),
	}
}

// NewGridFrom wraps an existing row-major slice; it does not copy.
func NewGridFrom[T Number](w, h int, values []T) (Grid[T], error) {
	if w < 0 || h < 0 || len(values) != w*h {
		return Grid[T]{}, fmt.Errorf("grid %dx%d needs %d values, got %d", w, h, w*h, len(values))
	}
	return Grid[T]{stride: w, values: values}, nil
}

func (g *Grid[T])Set(x, y int, v T)   { g.values[g.stride*y + x] = v }
func (g *Grid[T])Get(x, y int) T      { return g.values[g.stride*y + x] }
func (g *Grid[T])Dx() int             { return g.stride }
func (g *Grid[T])Len() int            { return len(g.values) }
func (g *Grid[T])Values() []T         { return g.values }

func (g *Grid[T])Dy() int {
	if g.stride == 0 {
		return 0
	}
	return len(g.values) / g.stride
}

func (g *Grid[T])SameShape(o *Grid[T]) bool {
	return g.stride == o.stride && len(g.values) == len(o.values)
}

func (g1 *Grid[T])Copy() Grid[T] {
	g2 := Grid[T]{stride: g1.stride, values: make([]T, len(g1.values))}
	copy(g2.values, g1.values)
	return g2
}

// MapGrid applies f elementwise, returning a new grid of the same shape.
func MapGrid[In, Out Number](g *Grid[In], f func(In) Out) Grid[Out] {
	out := Grid[Out]{stride: g.stride, values: make([]Out, len(g.values))}
	for i, v := range g.values {
		out.values[i] = f(v)
	}
	return out
}

// Apply maps f over the grid in place.
func (g *Grid[T])Apply(f func(T) T) {
	for i, v := range g.values {
		g.values[i] = f(v)
	}
}

func (g *Grid[T])Float64s() []float64 {
	out := make([]float64, len(g.values))
	for i, v := range g.values {
		out[i] = float64(v)
	}
	return out
}

func (g *Grid[T])Stats() string {
	if len(g.values) == 0 {
		return fmt.Sprintf("grid[%dx%d, empty]", g.Dx(), g.Dy())
	}
	vals := g.Float64s()
	return fmt.Sprintf("grid[%dx%d, vals{%f,%f}]", g.Dx(), g.Dy(), floats.Min(vals), floats.Max(vals))
}
