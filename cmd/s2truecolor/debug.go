package main

import(
	"context"
	"fmt"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/abworrall/s2-truecolor/pkg/emath"
	"github.com/abworrall/s2-truecolor/pkg/raster"
	"github.com/abworrall/s2-truecolor/pkg/truecolor"
)

func parseInts(s string, n int) ([]int, error) {
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, fmt.Errorf("'%s': wanted %d comma separated ints", s, n)
	}
	ret := make([]int, n)
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("'%s': %w", s, err)
		}
		ret[i] = v
	}
	return ret, nil
}

// parsePoint parses "col,row".
func parsePoint(s string) (int, int, error) {
	v, err := parseInts(s, 2)
	if err != nil {
		return 0, 0, err
	}
	return v[0], v[1], nil
}

func parseBands(s string) ([3]int, error) {
	v, err := parseInts(s, 3)
	if err != nil {
		return [3]int{}, fmt.Errorf("bands %w", err)
	}
	return [3]int{v[0], v[1], v[2]}, nil
}

func readTriple(ctx context.Context, src raster.Source, bands [3]int, w raster.Window) ([3]emath.SampleGrid, error) {
	ret := [3]emath.SampleGrid{}
	for i, b := range bands {
		g, err := src.ReadWindow(ctx, b, w)
		if err != nil {
			return ret, err
		}
		ret[i] = g
	}
	return ret, nil
}

func tracePixel(ctx context.Context, src raster.Source, proc *truecolor.Processor, bands [3]int, spec string) error {
	col, row, err := parsePoint(spec)
	if err != nil {
		return fmt.Errorf("--trace-pixel %w", err)
	}

	w := raster.NewWindow(col, row, 1, 1)
	if !w.Within(src.Profile().Width, src.Profile().Height) {
		return fmt.Errorf("--trace-pixel (%d,%d) is outside the raster", col, row)
	}

	rgb, err := readTriple(ctx, src, bands, w)
	if err != nil {
		return err
	}

	pt := truecolor.TracePixel(proc.Config(), rgb[0].Get(0,0), rgb[1].Get(0,0), rgb[2].Get(0,0))
	log.Infof("pixel (%d,%d):\n%s", col, row, pt)
	return nil
}

// dumpWindow writes the linear (pre display encoding) tile holding the
// pixel as a Radiance HDR, and the raw bands as stretched grayscale PNGs.
func dumpWindow(ctx context.Context, src raster.Source, proc *truecolor.Processor, bands [3]int, spec string) error {
	col, row, err := parsePoint(spec)
	if err != nil {
		return fmt.Errorf("--dump-window %w", err)
	}

	w, err := src.Blocks().WindowContaining(col, row)
	if err != nil {
		return fmt.Errorf("--dump-window: %w", err)
	}

	rgb, err := readTriple(ctx, src, bands, w)
	if err != nil {
		return err
	}

	for i := range rgb {
		log.Debugf("band %d: %s", bands[i], rgb[i].Stats())
		filename := fmt.Sprintf("window-%d-%d-b%d.png", col, row, bands[i])
		if err := rgb[i].WriteImg(fmt.Sprintf("band %d %s", bands[i], w), filename); err != nil {
			return err
		}
	}

	lin, err := proc.Linear(truecolor.NormalizeSamples(proc.Config(), &rgb[0], &rgb[1], &rgb[2]))
	if err != nil {
		return err
	}
	filename := fmt.Sprintf("window-%d-%d.hdr", col, row)
	if err := (truecolor.LinearTile{Triple: lin}).WriteToHDR(filename); err != nil {
		return err
	}

	log.Infof("dumped %s to %s", w, filename)
	return nil
}
