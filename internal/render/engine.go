package render

import (
	"context"
	"errors"
	"image"
)

var (
	// ErrNoFrames means the renderer exited cleanly but produced nothing.
	ErrNoFrames = errors.New("renderer produced no frames")
	// ErrFrameTooSmall means a produced frame is below the usable minimum.
	ErrFrameTooSmall = errors.New("rendered frame is too small")
)

// Options control one render invocation.
type Options struct {
	Width       int
	Height      int
	OrbitFrames int // 0 = poster frame only
}

// Result holds the decoded frames of one render: the poster frame plus any
// orbit frames in rotation order.
type Result struct {
	Poster image.Image
	Orbit  []image.Image
}

// Engine renders preview frames for a model's source bytes. Implementations
// accumulate per-job scene state; Reset must be called between jobs or
// models pile up across renders.
type Engine interface {
	Render(ctx context.Context, source []byte, opts Options) (*Result, error)
	Reset()
}
