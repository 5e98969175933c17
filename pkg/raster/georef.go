package raster

import(
	"fmt"
)

// Georef is a raster's georeferencing, in the shape GeoTIFF stores it.
// The values are carried from source to output untouched; nothing here
// interprets the CRS.
type Georef struct {
	PixelScale      []float64 // ModelPixelScale: sx, sy, sz
	Tiepoints       []float64 // ModelTiepoint: i, j, k, x, y, z, ...
	Transformation  []float64 // ModelTransformation, 4x4 row major
	GeoKeys         []uint16  // GeoKeyDirectory
	GeoDoubles      []float64 // GeoDoubleParams
	GeoASCII        string    // GeoAsciiParams
	NoData          string    // GDAL_NODATA
}

func (g Georef)IsZero() bool {
	return len(g.PixelScale) == 0 && len(g.Tiepoints) == 0 && len(g.Transformation) == 0 &&
		len(g.GeoKeys) == 0 && len(g.GeoDoubles) == 0 && g.GeoASCII == "" && g.NoData == ""
}

// Origin is the model coordinate of the top left corner, if there is a
// tiepoint for pixel (0,0).
func (g Georef)Origin() (float64, float64, bool) {
	if len(g.Tiepoints) < 6 || g.Tiepoints[0] != 0 || g.Tiepoints[1] != 0 {
		return 0, 0, false
	}
	return g.Tiepoints[3], g.Tiepoints[4], true
}

func (g Georef)String() string {
	if g.IsZero() {
		return "georef[none]"
	}
	str := "georef["
	if x, y, ok := g.Origin(); ok {
		str += fmt.Sprintf("origin=(%.3f,%.3f) ", x, y)
	}
	if len(g.PixelScale) >= 2 {
		str += fmt.Sprintf("scale=(%g,%g) ", g.PixelScale[0], g.PixelScale[1])
	}
	keys := 0
	if len(g.GeoKeys) >= 4 {
		keys = int(g.GeoKeys[3]) // the header's key count
	}
	str += fmt.Sprintf("%d geokeys", keys)
	if g.NoData != "" {
		str += fmt.Sprintf(" nodata=%s", g.NoData)
	}
	return str + "]"
}
