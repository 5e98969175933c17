package raster

import(
	"fmt"
	"os"
	"runtime"
	"strings"

	"gopkg.in/yaml.v2"
)

/* Example output profile file ...

driver: COG
dtype: uint8
count: 3
compress: JPEG
quality: 75
blocksize: 512
tiled: true
bigtiff: IF_NEEDED
threads: 0

*/

// Profile describes an open source raster.
type Profile struct {
	Locator      string
	Driver       string
	Width        int
	Height       int
	Count        int  // number of bands
	BitsPerSample int
	BlockWidth   int
	BlockHeight  int
	Georef       Georef
}

func (p Profile)String() string {
	return fmt.Sprintf("%s [%s, %dx%d, %d bands x %d bits, blocks %dx%d, %s]",
		p.Locator, p.Driver, p.Width, p.Height, p.Count, p.BitsPerSample, p.BlockWidth, p.BlockHeight, p.Georef)
}

// Compression algorithms an output container may use.
const(
	CompressNone     = "NONE"
	CompressDeflate  = "DEFLATE"
	CompressZstd     = "ZSTD"
	CompressJPEG     = "JPEG"
)

// Output drivers.
const(
	DriverGTiff  = "GTiff"
	DriverCOG    = "COG"
	DriverPNG    = "PNG"
	DriverJPEG   = "JPEG"
)

// BigTIFF modes.
const(
	BigTIFFYes       = "YES"
	BigTIFFNo        = "NO"
	BigTIFFIfNeeded  = "IF_NEEDED"
)

// OutputProfile is the configuration for creating a sink.
type OutputProfile struct {
	Driver     string  `yaml:"driver"`
	DType      string  `yaml:"dtype"`
	Count      int     `yaml:"count"`
	Compress   string  `yaml:"compress"`
	Quality    int     `yaml:"quality"`    // 0-100, only used by JPEG
	BlockSize  int     `yaml:"blocksize"`  // square tiles
	Tiled      bool    `yaml:"tiled"`
	BigTIFF    string  `yaml:"bigtiff"`
	Threads    int     `yaml:"threads"`    // worker count hint; 0 means all CPUs
}

func DefaultOutputProfile() OutputProfile {
	return OutputProfile{
		Driver:     DriverCOG,
		DType:      "uint8",
		Count:      3,
		Compress:   CompressJPEG,
		Quality:    75,
		BlockSize:  512,
		Tiled:      true,
		BigTIFF:    BigTIFFYes,
		Threads:    0,
	}
}

// Normalize upper-cases the enumerated fields, so yaml and flags can use
// any case. Driver names are canonicalized too.
func (op OutputProfile)Normalize() OutputProfile {
	op.Compress = strings.ToUpper(op.Compress)
	op.BigTIFF  = strings.ToUpper(op.BigTIFF)
	switch strings.ToUpper(op.Driver) {
	case "GTIFF", "TIFF": op.Driver = DriverGTiff
	case "COG":           op.Driver = DriverCOG
	case "PNG":           op.Driver = DriverPNG
	case "JPEG", "JPG":   op.Driver = DriverJPEG
	}
	if op.Compress == "" { op.Compress = CompressNone }
	if op.BigTIFF  == "" { op.BigTIFF  = BigTIFFIfNeeded }
	return op
}

func (op OutputProfile)Validate() error {
	switch op.Driver {
	case DriverGTiff, DriverCOG, DriverPNG, DriverJPEG:
	default:
		return fmt.Errorf("output profile: unknown driver '%s'", op.Driver)
	}
	if op.DType != "uint8" {
		return fmt.Errorf("output profile: dtype must be uint8, not '%s'", op.DType)
	}
	if op.Count != 3 {
		return fmt.Errorf("output profile: count must be 3, not %d", op.Count)
	}
	switch op.Compress {
	case CompressNone, CompressDeflate, CompressZstd, CompressJPEG:
	default:
		return fmt.Errorf("output profile: unknown compression '%s'", op.Compress)
	}
	if op.Quality < 0 || op.Quality > 100 {
		return fmt.Errorf("output profile: quality %d outside 0-100", op.Quality)
	}
	if op.BlockSize <= 0 || op.BlockSize % 16 != 0 {
		return fmt.Errorf("output profile: blocksize %d must be a positive multiple of 16", op.BlockSize)
	}
	switch op.BigTIFF {
	case BigTIFFYes, BigTIFFNo, BigTIFFIfNeeded:
	default:
		return fmt.Errorf("output profile: bigtiff must be YES, NO or IF_NEEDED, not '%s'", op.BigTIFF)
	}
	if op.Threads < 0 {
		return fmt.Errorf("output profile: threads %d is negative", op.Threads)
	}
	return nil
}

// Workers resolves the threads hint.
func (op OutputProfile)Workers() int {
	if op.Threads == 0 {
		return runtime.NumCPU()
	}
	return op.Threads
}

func (op OutputProfile)AsYaml() string {
	b, err := yaml.Marshal(op)
	if err != nil {
		return fmt.Sprintf("<unmarshalable output profile: %v>", err)
	}
	return string(b)
}

// LoadOutputProfile reads yaml over the defaults, so a file need only
// name the fields it changes.
func LoadOutputProfile(filename string) (OutputProfile, error) {
	contents, err := os.ReadFile(filename)
	if err != nil {
		return OutputProfile{}, fmt.Errorf("output profile read %s: %w", filename, err)
	}
	return ParseOutputProfile(contents)
}

func ParseOutputProfile(b []byte) (OutputProfile, error) {
	op := DefaultOutputProfile()
	if err := yaml.UnmarshalStrict(b, &op); err != nil {
		return OutputProfile{}, fmt.Errorf("output profile parse: %w", err)
	}
	op = op.Normalize()
	return op, op.Validate()
}
