package truecolor

import(
	"errors"
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/samber/lo"
	"gopkg.in/yaml.v2"
)

/* Example presets file ...

l2a-optimized:
  scalefactor: 10000
  maxreflectance: 3.0
  midreflectance: 0.13
  saturation: 1.2
  gamma: 1.8
  gammaoffset: 0.01

muted:
  scalefactor: 10000
  maxreflectance: 3.0
  midreflectance: 0.13
  saturation: 0.9
  gamma: 1.8
  gammaoffset: 0.01

*/

const DefaultPresetName = "l2a-optimized"

// The highlight anchor of the contrast curve; fixed, only the midtone anchor is tunable.
const contrastHighlightAnchor = 1.0

// ErrDegenerateCurve means the contrast curve's denominator has a root
// inside its [0,1] domain, so some pixels would divide by zero.
var ErrDegenerateCurve = errors.New("degenerate contrast curve")

// A Preset is the user-facing, yaml-friendly form of a color grading
// parameter set. Turn it into a Config with NewConfig.
type Preset struct {
	ScaleFactor      float64  `yaml:"scalefactor"`     // raw sample value that means reflectance 1.0
	MaxReflectance   float64  `yaml:"maxreflectance"`  // contrast curve ceiling
	MidReflectance   float64  `yaml:"midreflectance"`  // contrast curve midtone anchor
	Saturation       float64  `yaml:"saturation"`
	Gamma            float64  `yaml:"gamma"`
	GammaOffset      float64  `yaml:"gammaoffset"`
}

var(
	presets = map[string]Preset{
		// The Sentinel Hub "L2A Optimized" constants.
		"l2a-optimized": {ScaleFactor: 10000, MaxReflectance: 3.0, MidReflectance: 0.13, Saturation: 1.2, Gamma: 1.8, GammaOffset: 0.01},
		"natural":       {ScaleFactor: 10000, MaxReflectance: 3.0, MidReflectance: 0.13, Saturation: 1.0, Gamma: 1.8, GammaOffset: 0.01},
		"vivid":         {ScaleFactor: 10000, MaxReflectance: 3.0, MidReflectance: 0.13, Saturation: 1.4, Gamma: 1.8, GammaOffset: 0.01},
		"bright":        {ScaleFactor: 10000, MaxReflectance: 2.0, MidReflectance: 0.13, Saturation: 1.2, Gamma: 1.8, GammaOffset: 0.01},
	}
)

func DefaultPreset() Preset { return presets[DefaultPresetName] }

// BuiltinPresets returns a copy of the built-in presets.
func BuiltinPresets() map[string]Preset {
	return lo.Assign(presets)
}

// ListPresets returns the names of the built-in presets, sorted.
func ListPresets() []string {
	names := lo.Keys(presets)
	sort.Strings(names)
	return names
}

func LookupPreset(name string) (Preset, error) {
	if p, exists := presets[name]; exists {
		return p, nil
	}
	return Preset{}, fmt.Errorf("no preset named '%s', wanted one of %v", name, ListPresets())
}

// LoadPresets reads a yaml file holding a map of preset name to Preset.
func LoadPresets(filename string) (map[string]Preset, error) {
	contents, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("presets read %s: %w", filename, err)
	}
	return ParsePresets(contents)
}

func ParsePresets(b []byte) (map[string]Preset, error) {
	ret := map[string]Preset{}
	if err := yaml.UnmarshalStrict(b, &ret); err != nil {
		return nil, fmt.Errorf("presets parse: %w", err)
	}
	return ret, nil
}

func PresetsAsYaml(m map[string]Preset) (string, error) {
	b, err := yaml.Marshal(m)
	return string(b), err
}

// A DomainError is a parameter set the pipeline can't run with. It is
// only ever raised when building a Config, never per pixel.
type DomainError struct {
	Param  string
	Value  float64
	Reason string
	Err    error
}

func (e *DomainError)Error() string {
	return fmt.Sprintf("truecolor config: %s=%v: %s", e.Param, e.Value, e.Reason)
}

func (e *DomainError)Unwrap() error { return e.Err }

// Config is the immutable parameter set for a run. The derived gamma
// constants are computed once here, so every tile sees exactly the same
// values.
type Config struct {
	preset           Preset
	gammaOffsetPow   float64 // gammaOffset^gamma
	gammaOffsetRange float64 // (1+gammaOffset)^gamma - gammaOffsetPow
}

func NewConfig(p Preset) (Config, error) {
	if err := validatePreset(p); err != nil {
		return Config{}, err
	}

	c := Config{preset: p}
	c.gammaOffsetPow   = math.Pow(p.GammaOffset, p.Gamma)
	c.gammaOffsetRange = math.Pow(1 + p.GammaOffset, p.Gamma) - c.gammaOffsetPow

	if !(c.gammaOffsetRange > 0) || math.IsInf(c.gammaOffsetRange, 0) {
		return Config{}, &DomainError{Param: "gamma", Value: p.Gamma, Reason: "gamma curve has no usable range"}
	}
	return c, nil
}

// DefaultConfig is the l2a-optimized preset, which is known to be valid.
func DefaultConfig() Config {
	c, err := NewConfig(DefaultPreset())
	if err != nil {
		panic(err)
	}
	return c
}

func validatePreset(p Preset) error {
	params := []struct {
		name string
		val  float64
	}{
		{"scalefactor", p.ScaleFactor},
		{"maxreflectance", p.MaxReflectance},
		{"midreflectance", p.MidReflectance},
		{"saturation", p.Saturation},
		{"gamma", p.Gamma},
		{"gammaoffset", p.GammaOffset},
	}
	for _, param := range params {
		if math.IsNaN(param.val) || math.IsInf(param.val, 0) {
			return &DomainError{Param: param.name, Value: param.val, Reason: "must be finite"}
		}
	}

	switch {
	case p.ScaleFactor <= 0:
		return &DomainError{Param: "scalefactor", Value: p.ScaleFactor, Reason: "must be > 0"}
	case p.MaxReflectance <= 0:
		return &DomainError{Param: "maxreflectance", Value: p.MaxReflectance, Reason: "must be > 0"}
	case p.Saturation < 0:
		return &DomainError{Param: "saturation", Value: p.Saturation, Reason: "must be >= 0"}
	case p.Gamma <= 0:
		return &DomainError{Param: "gamma", Value: p.Gamma, Reason: "must be > 0"}
	case p.GammaOffset < 0:
		return &DomainError{Param: "gammaoffset", Value: p.GammaOffset, Reason: "must be >= 0"}
	}

	// The denominator c*(2k-1) - k is linear in c; it is -k at c=0 and k-1
	// at c=1, so it keeps one sign over [0,1] only when 0 < k < 1.
	k := p.MidReflectance / p.MaxReflectance
	if k <= 0 || k >= 1 {
		return &DomainError{
			Param:  "midreflectance/maxreflectance",
			Value:  k,
			Reason: "must lie strictly between 0 and 1",
			Err:    ErrDegenerateCurve,
		}
	}

	return nil
}

func (c Config)Preset() Preset               { return c.preset }
func (c Config)ScaleFactor() float64         { return c.preset.ScaleFactor }
func (c Config)MaxReflectance() float64      { return c.preset.MaxReflectance }
func (c Config)MidReflectance() float64      { return c.preset.MidReflectance }
func (c Config)Saturation() float64          { return c.preset.Saturation }
func (c Config)Gamma() float64               { return c.preset.Gamma }
func (c Config)GammaOffset() float64         { return c.preset.GammaOffset }
func (c Config)GammaOffsetPow() float64      { return c.gammaOffsetPow }
func (c Config)GammaOffsetRange() float64    { return c.gammaOffsetRange }

// IsZero reports whether c was never built by NewConfig.
func (c Config)IsZero() bool { return c.gammaOffsetRange == 0 }

func (c Config)AsYaml() string {
	b, err := yaml.Marshal(c.preset)
	if err != nil {
		return fmt.Sprintf("<unmarshalable config: %v>", err)
	}
	return string(b)
}
