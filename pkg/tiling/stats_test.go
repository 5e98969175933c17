package tiling

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/abworrall/s2-truecolor/pkg/raster"
)

func TestStatsCollector(t *testing.T) {
	sc := newStatsCollector()
	w := raster.Window{Width: 2, Height: 1}

	sc.add(w, []uint8{0, 100, 255, 10, 100, 255}, 2*time.Millisecond)
	sc.add(w, []uint8{20, 100, 200, 30, 100, 200}, 0)

	s := sc.stats()
	assert.Equal(t, 2, s.Tiles)
	assert.Equal(t, 4, s.Pixels)
	assert.InDelta(t, 15.0, s.BandMean[0], 1e-9)
	assert.InDelta(t, 100.0, s.BandMean[1], 1e-9)
	assert.InDelta(t, 227.5, s.BandMean[2], 1e-9)
	assert.InDelta(t, 3.0/12, s.ClippedShare, 1e-9)
	assert.InDelta(t, float64(2*time.Millisecond), float64(s.LatencyMax), float64(10*time.Microsecond))
}

func TestStatsCollectorLongTile(t *testing.T) {
	sc := newStatsCollector()
	sc.add(raster.Window{Width: 1, Height: 1}, []uint8{1, 2, 3}, 3*time.Hour)

	s := sc.stats()
	assert.Equal(t, 1, s.Tiles)
	assert.InDelta(t, float64(time.Hour), float64(s.LatencyMax), float64(time.Hour/100), "clamped, not dropped")
}
