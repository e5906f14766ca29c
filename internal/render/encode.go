package render

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// minFrameDim rejects frames the renderer produced but that are unusable
// as thumbnails.
const minFrameDim = 16

// EncodePNG fits the frame into width×height preserving aspect ratio and
// encodes it as PNG. Returns the bytes and the final dimensions.
func EncodePNG(frame image.Image, width, height int) ([]byte, int, int, error) {
	bounds := frame.Bounds()
	if bounds.Dx() < minFrameDim || bounds.Dy() < minFrameDim {
		return nil, 0, 0, fmt.Errorf("%w: %dx%d", ErrFrameTooSmall, bounds.Dx(), bounds.Dy())
	}

	fitted := imaging.Fit(frame, width, height, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, fitted, imaging.PNG); err != nil {
		return nil, 0, 0, fmt.Errorf("encode png: %w", err)
	}

	fb := fitted.Bounds()
	return buf.Bytes(), fb.Dx(), fb.Dy(), nil
}
