package render

import (
	"context"
	"fmt"
	"image"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	_ "image/jpeg" // renderer frame decoders
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// ExecEngine drives an external headless renderer process. The command is
// invoked as:
//
//	<command> <model-file> <output-dir> <width> <height> <frame-count>
//
// and is expected to write numbered PNG frames into the output directory,
// frame 0 being the poster. Each Render call gets its own scratch
// directory; Reset removes everything the engine has accumulated.
type ExecEngine struct {
	command string

	mu       sync.Mutex
	scratch  []string
	scratchN int
}

func NewExecEngine(command string) *ExecEngine {
	return &ExecEngine{command: command}
}

func (e *ExecEngine) Render(ctx context.Context, source []byte, opts Options) (*Result, error) {
	dir, err := e.newScratchDir()
	if err != nil {
		return nil, err
	}

	modelPath := filepath.Join(dir, "model")
	if err := os.WriteFile(modelPath, source, 0o600); err != nil {
		return nil, fmt.Errorf("write model file: %w", err)
	}

	outDir := filepath.Join(dir, "frames")
	if err := os.Mkdir(outDir, 0o700); err != nil {
		return nil, fmt.Errorf("create frame dir: %w", err)
	}

	frameCount := opts.OrbitFrames + 1
	cmd := exec.CommandContext(ctx, e.command,
		modelPath, outDir,
		strconv.Itoa(opts.Width), strconv.Itoa(opts.Height),
		strconv.Itoa(frameCount))
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("renderer failed: %w: %s", err, out)
	}

	frames, err := loadFrames(outDir)
	if err != nil {
		return nil, err
	}
	if len(frames) == 0 {
		return nil, ErrNoFrames
	}

	return &Result{Poster: frames[0], Orbit: frames[1:]}, nil
}

// Reset removes every scratch directory created since the last reset.
func (e *ExecEngine) Reset() {
	e.mu.Lock()
	dirs := e.scratch
	e.scratch = nil
	e.mu.Unlock()

	for _, dir := range dirs {
		os.RemoveAll(dir)
	}
}

func (e *ExecEngine) newScratchDir() (string, error) {
	e.mu.Lock()
	e.scratchN++
	n := e.scratchN
	e.mu.Unlock()

	dir, err := os.MkdirTemp("", fmt.Sprintf("render-%d-", n))
	if err != nil {
		return "", fmt.Errorf("create scratch dir: %w", err)
	}

	e.mu.Lock()
	e.scratch = append(e.scratch, dir)
	e.mu.Unlock()
	return dir, nil
}

func loadFrames(dir string) ([]image.Image, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read frame dir: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	var frames []image.Image
	for _, name := range names {
		f, err := os.Open(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("open frame %s: %w", name, err)
		}
		img, _, err := image.Decode(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("decode frame %s: %w", name, err)
		}
		frames = append(frames, img)
	}
	return frames, nil
}
