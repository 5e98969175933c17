package gtiff

import(
	"fmt"

	"github.com/abworrall/s2-truecolor/pkg/raster"
)

func readGeoref(d directory) (raster.Georef, error) {
	g := raster.Georef{}

	doubles := []struct{
		id   uint16
		dst  *[]float64
	}{
		{tModelPixelScale, &g.PixelScale},
		{tModelTiepoint, &g.Tiepoints},
		{tModelTransformation, &g.Transformation},
		{tGeoDoubleParams, &g.GeoDoubles},
	}
	for _, dbl := range doubles {
		if !d.has(dbl.id) {
			continue
		}
		vals, err := d.floats(dbl.id)
		if err != nil {
			return g, fmt.Errorf("geotiff: %w", err)
		}
		*dbl.dst = vals
	}

	if d.has(tGeoKeyDirectory) {
		keys, err := d.uints(tGeoKeyDirectory)
		if err != nil {
			return g, fmt.Errorf("geotiff: %w", err)
		}
		for _, k := range keys {
			g.GeoKeys = append(g.GeoKeys, uint16(k))
		}
	}

	g.GeoASCII = d.ascii(tGeoAsciiParams)
	g.NoData   = d.ascii(tGDALNoData)
	return g, nil
}

// georefEntries are the IFD entries that write g back out.
func georefEntries(g raster.Georef) []ifdEntry {
	entries := []ifdEntry{}

	doubles := []struct{
		id    uint16
		vals  []float64
	}{
		{tModelPixelScale, g.PixelScale},
		{tModelTiepoint, g.Tiepoints},
		{tModelTransformation, g.Transformation},
		{tGeoDoubleParams, g.GeoDoubles},
	}
	for _, dbl := range doubles {
		if len(dbl.vals) > 0 {
			entries = append(entries, doubleEntry(dbl.id, dbl.vals...))
		}
	}

	if len(g.GeoKeys) > 0 {
		keys := make([]uint64, len(g.GeoKeys))
		for i, k := range g.GeoKeys {
			keys[i] = uint64(k)
		}
		entries = append(entries, shortEntry(tGeoKeyDirectory, keys...))
	}
	if g.GeoASCII != "" {
		entries = append(entries, asciiEntry(tGeoAsciiParams, g.GeoASCII))
	}
	if g.NoData != "" {
		entries = append(entries, asciiEntry(tGDALNoData, g.NoData))
	}
	return entries
}
