package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abworrall/s2-truecolor/pkg/raster"
)

func TestParsePoint(t *testing.T) {
	col, row, err := parsePoint("120, 45")
	require.NoError(t, err)
	assert.Equal(t, 120, col)
	assert.Equal(t, 45, row)

	for _, bad := range []string{"", "1", "1,2,3", "a,b"} {
		_, _, err := parsePoint(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseBands(t *testing.T) {
	b, err := parseBands("4,3,2")
	require.NoError(t, err)
	assert.Equal(t, [3]int{4, 3, 2}, b)

	_, err = parseBands("1,2")
	assert.Error(t, err)
}

func TestBuildOutputProfileFlags(t *testing.T) {
	cmd := newRootCmd()
	require.NoError(t, cmd.Flags().Parse([]string{"--compress", "deflate", "--blocksize", "256"}))

	op, err := buildOutputProfile(cmd)
	require.NoError(t, err)
	assert.Equal(t, raster.CompressDeflate, op.Compress)
	assert.Equal(t, 256, op.BlockSize)
	assert.Equal(t, raster.DriverCOG, op.Driver, "unset flags leave the defaults alone")
	assert.Equal(t, 75, op.Quality)
}

func TestPresetsCommand(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"presets"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "l2a-optimized:")
	assert.Contains(t, out.String(), "vivid:")
}
