package tiling

import(
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/abworrall/s2-truecolor/pkg/raster"
	"github.com/abworrall/s2-truecolor/pkg/truecolor"
)

// Options control a run.
type Options struct {
	Workers   int     // <= 1 means the plain sequential loop
	Validate  bool    // check the block windows partition the raster before starting
	Bands     [3]int  // source bands for R, G and B; all zero means 1, 2, 3
}

func (o Options)bands() [3]int {
	if o.Bands == [3]int{} {
		return [3]int{1, 2, 3}
	}
	return o.Bands
}

// A tileResult is a processed window on its way to the writer.
type tileResult struct {
	w        raster.Window
	pix      []uint8
	enc      *raster.EncodedWindow // set if the sink encodes off the writer
	latency  time.Duration
}

// Run reads every block window of src, pushes it through the processor
// and writes it to sink. On success the sink is closed (finalized); on
// any error it is aborted, and the first error is returned.
func Run(ctx context.Context, src raster.Source, sink raster.Sink, proc *truecolor.Processor, opts Options) (Stats, error) {
	sc := newStatsCollector()

	if err := run(ctx, src, sink, proc, opts, sc); err != nil {
		if abortErr := sink.Abort(); abortErr != nil {
			log.Warnf("abort after failed run: %v", abortErr)
		}
		return sc.stats(), err
	}

	if err := sink.Close(); err != nil {
		return sc.stats(), err
	}

	s := sc.stats()
	log.WithFields(log.Fields{"tiles": s.Tiles, "elapsed": s.Elapsed.Round(time.Millisecond)}).Infof("done: %s", s)
	return s, nil
}

func run(ctx context.Context, src raster.Source, sink raster.Sink, proc *truecolor.Processor, opts Options, sc *statsCollector) error {
	grid := src.Blocks()
	p := src.Profile()

	bands := opts.bands()
	for _, b := range bands {
		if b < 1 || b > p.Count {
			return raster.NewSourceError("open", p.Locator, b, nil, fmt.Errorf("source has %d bands", p.Count))
		}
	}

	if opts.Validate {
		if err := grid.Validate(); err != nil {
			return raster.NewSourceError("open", p.Locator, 0, nil, err)
		}
	}

	log.WithFields(log.Fields{
		"source":  p.Locator,
		"size":    fmt.Sprintf("%dx%d", p.Width, p.Height),
		"blocks":  fmt.Sprintf("%dx%d", grid.BlockWidth, grid.BlockHeight),
		"tiles":   grid.Count(),
		"workers": max(1, opts.Workers),
	}).Info("starting run")

	tp := tileProcessor{src: src, proc: proc, bands: bands}
	tp.encoder, _ = sink.(raster.EncodingSink)

	if opts.Workers <= 1 {
		return runSequential(ctx, grid, tp, sink, sc)
	}
	return runPool(ctx, grid, tp, sink, opts.Workers, sc)
}

type tileProcessor struct {
	src      raster.Source
	proc     *truecolor.Processor
	bands    [3]int
	encoder  raster.EncodingSink // nil if the sink can't encode off the writer
}

// process does everything for one window short of writing it. It shares
// nothing with any other window.
func (tp tileProcessor)process(ctx context.Context, w raster.Window) (tileResult, error) {
	start := time.Now()

	r, err := tp.src.ReadWindow(ctx, tp.bands[0], w)
	if err != nil {
		return tileResult{}, err
	}
	g, err := tp.src.ReadWindow(ctx, tp.bands[1], w)
	if err != nil {
		return tileResult{}, err
	}
	b, err := tp.src.ReadWindow(ctx, tp.bands[2], w)
	if err != nil {
		return tileResult{}, err
	}

	bt, err := tp.proc.ProcessSamples(&r, &g, &b)
	if err != nil {
		return tileResult{}, fmt.Errorf("%s: %w", w, err)
	}

	res := tileResult{w: w, pix: bt.Pix}
	if tp.encoder != nil {
		ew, err := tp.encoder.EncodeWindow(w, bt.Pix)
		if err != nil {
			return tileResult{}, err
		}
		res.enc = &ew
	}

	res.latency = time.Since(start)
	return res, nil
}

func write(ctx context.Context, sink raster.Sink, res tileResult, sc *statsCollector) error {
	var err error
	if res.enc != nil {
		err = sink.(raster.EncodingSink).WriteEncoded(ctx, *res.enc)
	} else {
		err = sink.WriteWindow(ctx, res.w, res.pix)
	}
	if err != nil {
		return err
	}

	sc.add(res.w, res.pix, res.latency)
	log.Debugf("wrote %s (%s)", res.w, res.latency)
	return nil
}

func runSequential(ctx context.Context, grid raster.BlockGrid, tp tileProcessor, sink raster.Sink, sc *statsCollector) error {
	for i := 0; i < grid.Count(); i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		res, err := tp.process(ctx, grid.At(i))
		if err != nil {
			return err
		}
		if err := write(ctx, sink, res, sc); err != nil {
			return err
		}
	}
	return nil
}

// runPool computes tiles on up to `workers` goroutines, and funnels them
// all through a single writer. The first error from anywhere cancels the
// rest.
func runPool(ctx context.Context, grid raster.BlockGrid, tp tileProcessor, sink raster.Sink, workers int, sc *statsCollector) error {
	g, gctx := errgroup.WithContext(ctx)
	results := make(chan tileResult, workers)

	// Producers
	g.Go(func() error {
		defer close(results)

		pg, pctx := errgroup.WithContext(gctx)
		pg.SetLimit(workers)

		for i := 0; i < grid.Count() && pctx.Err() == nil; i++ {
			w := grid.At(i)
			pg.Go(func() error {
				res, err := tp.process(pctx, w)
				if err != nil {
					return err
				}
				select {
				case results <- res:
					return nil
				case <-pctx.Done():
					return pctx.Err()
				}
			})
		}
		if err := pg.Wait(); err != nil {
			return err
		}
		return gctx.Err() // the loop can stop early on cancellation alone
	})

	// The single writer
	g.Go(func() error {
		for res := range results {
			if err := write(gctx, sink, res, sc); err != nil {
				return err
			}
		}
		return nil
	})

	err := g.Wait()
	if err == nil {
		return nil
	}

	// Prefer the caller's own cancellation over the knock-on errors it caused
	if ctx.Err() != nil && errors.Is(err, context.Canceled) {
		return ctx.Err()
	}
	return err
}
