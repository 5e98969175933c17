package truecolor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTracePixelStages(t *testing.T) {
	pt := TracePixel(DefaultConfig(), 1300, 1300, 1300)

	assert.InDelta(t, 0.13, pt.Normalized[0], 1e-15)
	assert.InDelta(t, 0.5216666666666666, pt.Contrast[0], 1e-12)
	assert.InDelta(t, 0.31487589753030865, pt.Gamma[0], 1e-12)
	assert.InDelta(t, pt.Gamma[0], pt.Saturated[0], 1e-12)
	assert.InDelta(t, 0.5968443176428695, pt.Encoded[0], 1e-12)
	assert.Equal(t, [3]uint8{152, 152, 152}, pt.Output)

	s := pt.String()
	assert.Contains(t, s, "Pixel trace")
	assert.Contains(t, s, "#989898")
}
