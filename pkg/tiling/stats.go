package tiling

import(
	"fmt"
	"time"

	"github.com/codahale/hdrhistogram"
	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"

	"github.com/abworrall/s2-truecolor/pkg/raster"
)

// Stats summarizes a run.
type Stats struct {
	Tiles         int
	Pixels        int
	BandMean      [3]float64    // mean output byte, per band
	ClippedShare  float64       // share of output samples that are 0 or 255
	LatencyP50    time.Duration // per tile: read, process, encode
	LatencyP99    time.Duration
	LatencyMax    time.Duration
	Elapsed       time.Duration
}

func (s Stats)String() string {
	return fmt.Sprintf("%d tiles, %d pixels in %s; mean RGB [%.1f, %.1f, %.1f], %.2f%% clipped; tile latency p50=%s p99=%s max=%s",
		s.Tiles, s.Pixels, s.Elapsed.Round(time.Millisecond), s.BandMean[0], s.BandMean[1], s.BandMean[2], 100*s.ClippedShare,
		s.LatencyP50, s.LatencyP99, s.LatencyMax)
}

// statsCollector is fed every written tile. It is only ever touched by the
// writer, so needs no locking.
type statsCollector struct {
	start     time.Time
	tiles     int
	pixels    int
	clipped   int
	means     [3][]float64 // per tile
	weights   []float64    // pixels per tile
	latency   *hdrhistogram.Histogram // microseconds
}

func newStatsCollector() *statsCollector {
	return &statsCollector{
		start:   time.Now(),
		latency: hdrhistogram.New(1, int64(time.Hour/time.Microsecond), 3),
	}
}

func (sc *statsCollector)add(w raster.Window, pix []uint8, latency time.Duration) {
	sums := [3]float64{}
	for i, v := range pix {
		sums[i%3] += float64(v)
		if v == 0 || v == 255 {
			sc.clipped++
		}
	}

	n := w.Area()
	if n > 0 {
		for b := 0; b < 3; b++ {
			sc.means[b] = append(sc.means[b], sums[b] / float64(n))
		}
		sc.weights = append(sc.weights, float64(n))
	}

	sc.tiles++
	sc.pixels += n
	// Anything over an hour is recorded as an hour
	us := min(max(1, latency.Microseconds()), sc.latency.HighestTrackableValue())
	if err := sc.latency.RecordValue(us); err != nil {
		log.WithError(err).Warnf("tile %s latency %s not recorded", w, latency)
	}
}

func (sc *statsCollector)stats() Stats {
	s := Stats{
		Tiles:   sc.tiles,
		Pixels:  sc.pixels,
		Elapsed: time.Since(sc.start),
	}
	if sc.pixels > 0 {
		for b := 0; b < 3; b++ {
			s.BandMean[b] = stat.Mean(sc.means[b], sc.weights)
		}
		s.ClippedShare = float64(sc.clipped) / float64(3*sc.pixels)
	}
	if sc.tiles > 0 {
		s.LatencyP50 = time.Duration(sc.latency.ValueAtQuantile(50)) * time.Microsecond
		s.LatencyP99 = time.Duration(sc.latency.ValueAtQuantile(99)) * time.Microsecond
		s.LatencyMax = time.Duration(sc.latency.Max()) * time.Microsecond
	}
	return s
}
