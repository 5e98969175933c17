package truecolor

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abworrall/s2-truecolor/pkg/emath"
)

func uniformSamples(t *testing.T, w, h int, v int32) emath.SampleGrid {
	t.Helper()
	vals := make([]int32, w*h)
	for i := range vals {
		vals[i] = v
	}
	g, err := emath.NewGridFrom(w, h, vals)
	require.NoError(t, err)
	return g
}

func TestProcessSamplesRegressionFixtures(t *testing.T) {
	tests := []struct {
		name     string
		raw      [3]int32
		expected [3]uint8
	}{
		{"gray midtone", [3]int32{1300, 1300, 1300}, [3]uint8{152, 152, 152}},
		{"vegetation-ish", [3]int32{1200, 900, 600}, [3]uint8{151, 129, 97}},
		{"black", [3]int32{0, 0, 0}, [3]uint8{0, 0, 0}},
		{"unit reflectance", [3]int32{10000, 10000, 10000}, [3]uint8{244, 244, 244}},
		{"saturated highlight", [3]int32{30000, 30000, 30000}, [3]uint8{255, 255, 255}},
		{"negative raw", [3]int32{-100, -100, -100}, [3]uint8{0, 0, 0}},
		{"dark", [3]int32{500, 500, 500}, [3]uint8{93, 93, 93}},
		{"bright", [3]int32{2500, 2500, 2500}, [3]uint8{191, 191, 191}},
	}

	p := NewProcessor(DefaultConfig())
	for _, tt := range tests {
		r := uniformSamples(t, 2, 2, tt.raw[0])
		g := uniformSamples(t, 2, 2, tt.raw[1])
		b := uniformSamples(t, 2, 2, tt.raw[2])

		bt, err := p.ProcessSamples(&r, &g, &b)
		require.NoError(t, err, tt.name)
		require.Equal(t, 2, bt.Width)
		require.Equal(t, 2, bt.Height)
		require.Len(t, bt.Pix, 12)

		for y := 0; y < 2; y++ {
			for x := 0; x < 2; x++ {
				rb, gb, bb := bt.At(x, y)
				assert.Equal(t, tt.expected, [3]uint8{rb, gb, bb}, "%s at (%d,%d)", tt.name, x, y)
			}
		}
	}
}

func TestProcessSamplesShapeMismatch(t *testing.T) {
	r := uniformSamples(t, 2, 2, 1)
	g := uniformSamples(t, 2, 2, 1)
	b := uniformSamples(t, 4, 1, 1)

	_, err := NewProcessor(DefaultConfig()).ProcessSamples(&r, &g, &b)
	assert.Error(t, err)
}

func TestLinearDoesNotMutateInput(t *testing.T) {
	cfg := DefaultConfig()
	r := uniformSamples(t, 3, 3, 1200)
	g := uniformSamples(t, 3, 3, 900)
	b := uniformSamples(t, 3, 3, 600)

	in := NormalizeSamples(cfg, &r, &g, &b)
	before := in.R.Copy()

	lin, err := NewProcessor(cfg).Linear(in)
	require.NoError(t, err)
	assert.Equal(t, before.Values(), in.R.Values())
	assert.NotEqual(t, in.R.Values(), lin.R.Values())

	for _, v := range lin.G.Values() {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 1.0)
	}
}

func TestProcessIsDeterministic(t *testing.T) {
	w, h := 17, 9
	mk := func(seed int32) emath.SampleGrid {
		g := emath.NewGrid[int32](w, h)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				g.Set(x, y, (seed*int32(x+1)*int32(y+3))%12000-500)
			}
		}
		return g
	}
	r, g, b := mk(37), mk(101), mk(7)

	p := NewProcessor(DefaultConfig())
	first, err := p.ProcessSamples(&r, &g, &b)
	require.NoError(t, err)
	second, err := p.ProcessSamples(&r, &g, &b)
	require.NoError(t, err)
	assert.Equal(t, first.Pix, second.Pix)

	// And the per-pixel trace agrees with the tile path
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			pt := TracePixel(p.Config(), r.Get(x, y), g.Get(x, y), b.Get(x, y))
			rb, gb, bb := first.At(x, y)
			assert.Equal(t, pt.Output, [3]uint8{rb, gb, bb}, "(%d,%d)", x, y)
		}
	}
}

func TestProcessOutOfRangeSamples(t *testing.T) {
	p := NewProcessor(DefaultConfig())
	for _, raw := range []int32{math.MinInt16, -1, 65535, math.MaxInt32} {
		r := uniformSamples(t, 1, 1, raw)
		g := uniformSamples(t, 1, 1, 1300)
		b := uniformSamples(t, 1, 1, 0)

		lin, err := p.Linear(NormalizeSamples(p.Config(), &r, &g, &b))
		require.NoError(t, err)
		for _, v := range []float64{lin.R.Get(0, 0), lin.G.Get(0, 0), lin.B.Get(0, 0)} {
			assert.False(t, math.IsNaN(v), "raw=%d", raw)
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 1.0)
		}
	}
}

func TestProcessNeutralSaturation(t *testing.T) {
	p := DefaultPreset()
	p.Saturation = 1.0
	cfg, err := NewConfig(p)
	require.NoError(t, err)

	r := uniformSamples(t, 1, 1, 1200)
	g := uniformSamples(t, 1, 1, 900)
	b := uniformSamples(t, 1, 1, 600)

	bt, err := NewProcessor(cfg).ProcessSamples(&r, &g, &b)
	require.NoError(t, err)

	for i, raw := range []int32{1200, 900, 600} {
		expected := emath.ToByte(EncodeSRGB(cfg, emath.ClipUnit(Tone(cfg, Normalize(cfg, float64(raw))))))
		assert.Equal(t, expected, bt.Pix[i])
	}
}

func TestByteTileBand(t *testing.T) {
	bt := ByteTile{Width: 2, Height: 1, Pix: []uint8{1, 2, 3, 4, 5, 6}}
	assert.Equal(t, []uint8{1, 4}, bt.Band(0))
	assert.Equal(t, []uint8{2, 5}, bt.Band(1))
	assert.Equal(t, []uint8{3, 6}, bt.Band(2))
	assert.Equal(t, 6, bt.Stride())
}

func TestEmptyTile(t *testing.T) {
	r := emath.NewGrid[int32](0, 0)
	bt, err := NewProcessor(DefaultConfig()).ProcessSamples(&r, &r, &r)
	require.NoError(t, err)
	assert.Empty(t, bt.Pix)
}
