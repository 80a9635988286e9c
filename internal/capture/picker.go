package capture

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"deeptune/internal/screen"
)

var _ screen.ImagePicker = (*PathPicker)(nil)

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// IsImage reports whether path has a supported photo extension.
func IsImage(path string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(path))]
}

// PathPicker picks a photo by path. With a fixed Path it always returns that
// file; otherwise it prompts on its input, and an empty answer cancels.
type PathPicker struct {
	Path string
	Dir  string // base for relative answers

	in  *bufio.Reader
	out io.Writer

	// One goroutine reads in, one line per request. A prompt cancelled while
	// waiting leaves its request pending, and the next prompt takes that line.
	startReader sync.Once
	want        chan struct{}
	lines       chan lineAnswer
	mu          sync.Mutex
	pending     bool
}

type lineAnswer struct {
	line string
	err  error
}

// FixedPicker always picks path.
func FixedPicker(path string) *PathPicker {
	return &PathPicker{Path: path}
}

// NewPromptPicker asks for a path on in, writing the prompt to out.
func NewPromptPicker(in io.Reader, out io.Writer, dir string) *PathPicker {
	return &PathPicker{
		Dir:   dir,
		in:    bufio.NewReader(in),
		out:   out,
		want:  make(chan struct{}, 1),
		lines: make(chan lineAnswer, 1),
	}
}

// PickImage implements screen.ImagePicker.
func (p *PathPicker) PickImage(ctx context.Context) (string, bool, error) {
	path := p.Path
	if path == "" {
		if p.in == nil {
			return "", false, nil
		}
		var err error
		path, err = p.prompt(ctx)
		if err != nil {
			return "", false, err
		}
		if path == "" {
			return "", false, nil
		}
	}

	if !filepath.IsAbs(path) && p.Dir != "" {
		if _, err := os.Stat(path); err != nil {
			path = filepath.Join(p.Dir, path)
		}
	}
	if !IsImage(path) {
		return "", false, fmt.Errorf("unsupported image type: %s", filepath.Base(path))
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", false, fmt.Errorf("cannot open image: %w", err)
	}
	if info.IsDir() {
		return "", false, fmt.Errorf("%s is a directory", path)
	}
	return path, true, nil
}

func (p *PathPicker) prompt(ctx context.Context) (string, error) {
	if p.out != nil {
		fmt.Fprint(p.out, "Photo path (empty to cancel): ")
	}

	a, err := p.readLine(ctx)
	if err != nil {
		return "", err
	}
	if a.err == io.EOF {
		return "", nil
	}
	if a.err != nil {
		return "", fmt.Errorf("failed to read image path: %w", a.err)
	}
	return strings.TrimSpace(a.line), nil
}

func (p *PathPicker) readLine(ctx context.Context) (lineAnswer, error) {
	p.startReader.Do(func() { go p.readLoop() })

	p.mu.Lock()
	if !p.pending {
		p.pending = true
		p.want <- struct{}{}
	}
	p.mu.Unlock()

	select {
	case <-ctx.Done():
		return lineAnswer{}, ctx.Err()
	case a := <-p.lines:
		p.mu.Lock()
		p.pending = false
		p.mu.Unlock()
		return a, nil
	}
}

// readLoop lives as long as the input; pickers normally wrap stdin.
func (p *PathPicker) readLoop() {
	for range p.want {
		line, err := p.in.ReadString('\n')
		if err == io.EOF && line != "" {
			err = nil
		}
		p.lines <- lineAnswer{line, err}
	}
}
