package main

import(
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/pkg/profile"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/abworrall/s2-truecolor/pkg/raster"
	"github.com/abworrall/s2-truecolor/pkg/rasterio"
	"github.com/abworrall/s2-truecolor/pkg/tiling"
	"github.com/abworrall/s2-truecolor/pkg/truecolor"
)

var(
	fVerbosity int
	fPreset string
	fPresetsFile string
	fProfileFile string
	fDriver string
	fCompress string
	fQuality int
	fBlockSize int
	fBigTIFF string
	fThreads int
	fSourceBlockSize int
	fBands string
	fValidate bool
	fTracePixel string
	fDumpWindow string
	fOverview string
	fOverviewSize int
	fCPUProfile string
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "s2truecolor [flags] <input.tif> <output>",
		Short: "Render Sentinel-2 L2A reflectances as a true color 8-bit RGB image",
		Args:  cobra.ExactArgs(2),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, args[0], args[1])
		},
	}

	def := raster.DefaultOutputProfile()
	f := cmd.Flags()
	f.IntVarP(&fVerbosity, "verbose", "v", 0, "how verbose to get (1=debug, 2=trace)")
	f.StringVar(&fPreset, "preset", truecolor.DefaultPresetName, "color grading preset: one of the built-ins, or from --presets")
	f.StringVar(&fPresetsFile, "presets", "", "yaml file of extra presets")
	f.StringVar(&fProfileFile, "profile", "", "yaml file with the output profile; flags override it")
	f.StringVar(&fDriver, "driver", def.Driver, "output driver: COG, GTiff, PNG, JPEG")
	f.StringVar(&fCompress, "compress", def.Compress, "tile compression: NONE, DEFLATE, ZSTD, JPEG")
	f.IntVar(&fQuality, "quality", def.Quality, "JPEG quality, 0-100")
	f.IntVar(&fBlockSize, "blocksize", def.BlockSize, "output tile size, in pixels")
	f.StringVar(&fBigTIFF, "bigtiff", def.BigTIFF, "YES, NO or IF_NEEDED")
	f.IntVar(&fThreads, "threads", def.Threads, "worker goroutines; 0 means all CPUs, 1 means sequential")
	f.IntVar(&fSourceBlockSize, "src-blocksize", 0, "source window size; 0 means the output tile size")
	f.StringVar(&fBands, "bands", "1,2,3", "source bands to use as red, green, blue")
	f.BoolVar(&fValidate, "validate", false, "check the windows partition the raster before starting")
	f.StringVar(&fTracePixel, "trace-pixel", "", "col,row: log one pixel's value at every stage of the pipeline")
	f.StringVar(&fDumpWindow, "dump-window", "", "col,row: write the window holding this pixel as window-<col>-<row>.hdr")
	f.StringVar(&fOverview, "overview", "", "also write a downsampled quicklook PNG here")
	f.IntVar(&fOverviewSize, "overview-size", 1024, "long side of the quicklook, in pixels")
	f.StringVar(&fCPUProfile, "cpuprofile", "", "write a CPU profile into this dir")

	cmd.AddCommand(newPresetsCmd())
	return cmd
}

func newPresetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "List the color grading presets, as yaml",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := loadPresets(fPresetsFile)
			if err != nil {
				return err
			}
			y, err := truecolor.PresetsAsYaml(m)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), y)
			return nil
		},
	}
}

func setLogLevel(v int) {
	switch {
	case v >= 2: log.SetLevel(log.TraceLevel)
	case v == 1: log.SetLevel(log.DebugLevel)
	default:     log.SetLevel(log.InfoLevel)
	}
}

// loadPresets is the built-ins, plus (overriding) anything in the file.
func loadPresets(filename string) (map[string]truecolor.Preset, error) {
	m := truecolor.BuiltinPresets()
	if filename == "" {
		return m, nil
	}
	extra, err := truecolor.LoadPresets(filename)
	if err != nil {
		return nil, err
	}
	for k, v := range extra {
		m[k] = v
	}
	return m, nil
}

func buildConfig() (truecolor.Config, error) {
	m, err := loadPresets(fPresetsFile)
	if err != nil {
		return truecolor.Config{}, err
	}
	p, exists := m[fPreset]
	if !exists {
		return truecolor.Config{}, fmt.Errorf("no preset named '%s'", fPreset)
	}
	return truecolor.NewConfig(p)
}

// buildOutputProfile layers the flags the user actually set over the
// profile file (or the defaults).
func buildOutputProfile(cmd *cobra.Command) (raster.OutputProfile, error) {
	op := raster.DefaultOutputProfile()
	if fProfileFile != "" {
		var err error
		if op, err = raster.LoadOutputProfile(fProfileFile); err != nil {
			return op, err
		}
	}

	f := cmd.Flags()
	if f.Changed("driver")    { op.Driver = fDriver }
	if f.Changed("compress")  { op.Compress = fCompress }
	if f.Changed("quality")   { op.Quality = fQuality }
	if f.Changed("blocksize") { op.BlockSize = fBlockSize }
	if f.Changed("bigtiff")   { op.BigTIFF = fBigTIFF }
	if f.Changed("threads")   { op.Threads = fThreads }

	op = op.Normalize()
	return op, op.Validate()
}

func run(cmd *cobra.Command, input, output string) error {
	setLogLevel(fVerbosity)

	if fCPUProfile != "" {
		defer profile.Start(profile.CPUProfile, profile.ProfilePath(fCPUProfile), profile.Quiet).Stop()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg, err := buildConfig()
	if err != nil {
		return err
	}
	op, err := buildOutputProfile(cmd)
	if err != nil {
		return err
	}
	bands, err := parseBands(fBands)
	if err != nil {
		return err
	}

	if fVerbosity > 0 {
		log.Debugf("Preset '%s':-\n\n%s", fPreset, cfg.AsYaml())
		log.Debugf("Output profile:-\n\n%s", op.AsYaml())
	}

	srcBlocks := fSourceBlockSize
	if srcBlocks == 0 {
		srcBlocks = op.BlockSize // the output tiles dictate the windows
	}
	if (op.Driver == raster.DriverGTiff || op.Driver == raster.DriverCOG) && srcBlocks != op.BlockSize {
		return fmt.Errorf("--src-blocksize %d must match the %s tile size %d", srcBlocks, op.Driver, op.BlockSize)
	}
	src, err := rasterio.OpenSource(ctx, input, rasterio.SourceOptions{BlockSize: srcBlocks})
	if err != nil {
		return err
	}
	defer src.Close()
	log.Infof("opened %s", src.Profile())

	proc := truecolor.NewProcessor(cfg)

	if fTracePixel != "" {
		if err := tracePixel(ctx, src, proc, bands, fTracePixel); err != nil {
			return err
		}
	}
	if fDumpWindow != "" {
		if err := dumpWindow(ctx, src, proc, bands, fDumpWindow); err != nil {
			return err
		}
	}

	p := src.Profile()
	sink, err := rasterio.CreateSink(output, op, p)
	if err != nil {
		return err
	}
	if fOverview != "" {
		caption := fmt.Sprintf("%s [%s]", output, fPreset)
		sink = rasterio.NewOverviewSink(sink, fOverview, src.Blocks(), fOverviewSize, caption)
	}

	opts := tiling.Options{
		Workers:  op.Workers(),
		Validate: fValidate,
		Bands:    bands,
	}
	if _, err := tiling.Run(ctx, src, sink, proc, opts); err != nil {
		return err
	}

	log.Infof("wrote %s", output)
	return nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Fatal(err)
	}
}
