package truecolor

import(
	"fmt"

	"github.com/abworrall/s2-truecolor/pkg/emath"
)

// A Triple holds the R, G and B grids for one tile at some stage of the
// pipeline. All three must have the same shape.
type Triple struct {
	R, G, B emath.FloatGrid
}

func (t Triple)Dx() int { return t.R.Dx() }
func (t Triple)Dy() int { return t.R.Dy() }

func (t Triple)Validate() error {
	if !t.R.SameShape(&t.G) || !t.R.SameShape(&t.B) {
		return fmt.Errorf("band shapes differ: r=%dx%d g=%dx%d b=%dx%d",
			t.R.Dx(), t.R.Dy(), t.G.Dx(), t.G.Dy(), t.B.Dx(), t.B.Dy())
	}
	return nil
}

// NormalizeSamples turns three raw sample grids into reflectances.
func NormalizeSamples(cfg Config, r, g, b *emath.SampleGrid) Triple {
	f := func(v int32) float64 { return Normalize(cfg, float64(v)) }
	return Triple{
		R: emath.MapGrid(r, f),
		G: emath.MapGrid(g, f),
		B: emath.MapGrid(b, f),
	}
}

// A ByteTile is the 8-bit output for a tile, pixel interleaved RGB.
type ByteTile struct {
	Width   int
	Height  int
	Pix   []uint8
}

func (bt ByteTile)Stride() int { return 3 * bt.Width }

func (bt ByteTile)At(x, y int) (uint8, uint8, uint8) {
	i := y*bt.Stride() + 3*x
	return bt.Pix[i], bt.Pix[i+1], bt.Pix[i+2]
}

// Band returns a copy of one of the three bands (0=R, 1=G, 2=B).
func (bt ByteTile)Band(n int) []uint8 {
	out := make([]uint8, bt.Width*bt.Height)
	for i := range out {
		out[i] = bt.Pix[3*i+n]
	}
	return out
}

// Processor runs the per-tile color pipeline. It holds nothing but the
// Config, so one Processor can be shared by any number of goroutines.
type Processor struct {
	cfg     Config
	tone  []ChannelFunc // per channel, before saturation
	encode  ChannelFunc // per channel, after saturation
}

func NewProcessor(cfg Config) *Processor {
	return &Processor{
		cfg:    cfg,
		tone:   []ChannelFunc{Contrast, Gamma},
		encode: EncodeSRGB,
	}
}

func (p *Processor)Config() Config { return p.cfg }

// Linear runs contrast, gamma and saturation. The result is clipped to
// [0,1] but not yet display encoded. The input is not modified.
func (p *Processor)Linear(in Triple) (Triple, error) {
	if err := in.Validate(); err != nil {
		return Triple{}, err
	}

	tone := func(v float64) float64 {
		for _, f := range p.tone {
			v = f(p.cfg, v)
		}
		return v
	}

	out := Triple{
		R: emath.MapGrid(&in.R, tone),
		G: emath.MapGrid(&in.G, tone),
		B: emath.MapGrid(&in.B, tone),
	}

	r, g, b := out.R.Values(), out.G.Values(), out.B.Values()
	sat := p.cfg.Saturation()
	for i := range r {
		r[i], g[i], b[i] = EnhanceSaturation(sat, r[i], g[i], b[i])
	}

	return out, nil
}

// Encode applies the display transfer curve and quantizes to bytes.
func (p *Processor)Encode(lin Triple) ByteTile {
	bt := ByteTile{
		Width:  lin.Dx(),
		Height: lin.Dy(),
		Pix:    make([]uint8, 3*lin.R.Len()),
	}

	r, g, b := lin.R.Values(), lin.G.Values(), lin.B.Values()
	for i := range r {
		bt.Pix[3*i]   = emath.ToByte(p.encode(p.cfg, r[i]))
		bt.Pix[3*i+1] = emath.ToByte(p.encode(p.cfg, g[i]))
		bt.Pix[3*i+2] = emath.ToByte(p.encode(p.cfg, b[i]))
	}
	return bt
}

// Process is the whole pipeline over normalized reflectances.
func (p *Processor)Process(in Triple) (ByteTile, error) {
	lin, err := p.Linear(in)
	if err != nil {
		return ByteTile{}, err
	}
	return p.Encode(lin), nil
}

// ProcessSamples normalizes raw band samples, then runs Process.
func (p *Processor)ProcessSamples(r, g, b *emath.SampleGrid) (ByteTile, error) {
	if !r.SameShape(g) || !r.SameShape(b) {
		return ByteTile{}, fmt.Errorf("sample shapes differ: r=%dx%d g=%dx%d b=%dx%d",
			r.Dx(), r.Dy(), g.Dx(), g.Dy(), b.Dx(), b.Dy())
	}
	return p.Process(NormalizeSamples(p.cfg, r, g, b))
}
