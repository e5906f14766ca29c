package render

import (
	"bytes"
	"image"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodePNGFitsWithinBounds(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 1024, 512))

	data, width, height, err := EncodePNG(src, 256, 256)
	require.NoError(t, err)

	// Aspect ratio preserved: 1024x512 fits as 256x128.
	assert.Equal(t, 256, width)
	assert.Equal(t, 128, height)

	decoded, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 256, decoded.Bounds().Dx())
	assert.Equal(t, 128, decoded.Bounds().Dy())
}

func TestEncodePNGRejectsTinyFrames(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 8, 8))

	_, _, _, err := EncodePNG(src, 256, 256)
	assert.ErrorIs(t, err, ErrFrameTooSmall)
}

func TestEncodePNGSmallSourceNotUpscaled(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 64, 64))

	_, width, height, err := EncodePNG(src, 256, 256)
	require.NoError(t, err)
	assert.Equal(t, 64, width)
	assert.Equal(t, 64, height)
}
