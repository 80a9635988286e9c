// Package capture provides the desktop versions of the platform services the
// prediction screen relies on: a photo picker, a microphone recorder and
// permission checks.
package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"deeptune/internal/logger"
	"deeptune/internal/screen"
)

// stopGrace is how long a capture process gets to exit after an interrupt.
const stopGrace = 2 * time.Second

// CommandRecorder records by running an external program that writes raw
// S16LE mono PCM to stdout (arecord, ffmpeg, sox...).
type CommandRecorder struct {
	Command    []string
	SampleRate int
	Dir        string // where WAV files are written; os.TempDir() when empty
	Logger     *logger.Logger
}

// NewCommandRecorder splits a command line such as
// "arecord -q -t raw -f S16_LE -c 1 -r 44100" into a recorder.
func NewCommandRecorder(commandLine string, sampleRate int, log *logger.Logger) *CommandRecorder {
	if log == nil {
		log = logger.Discard()
	}
	return &CommandRecorder{
		Command:    strings.Fields(commandLine),
		SampleRate: sampleRate,
		Logger:     log,
	}
}

// Start launches the capture program. The process outlives ctx only until
// the session is stopped or released.
func (r *CommandRecorder) Start(ctx context.Context) (screen.Session, error) {
	if len(r.Command) == 0 {
		return nil, errors.New("no record command configured")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cmd := exec.Command(r.Command[0], r.Command[1:]...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open capture output: %w", err)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", r.Command[0], err)
	}
	r.Logger.Debug("Recording with: %s", strings.Join(r.Command, " "))

	s := &commandSession{
		cmd:        cmd,
		stderr:     &stderr,
		sampleRate: r.SampleRate,
		dir:        r.Dir,
		copied:     make(chan struct{}),
	}
	go func() {
		defer close(s.copied)
		io.Copy(&s.pcm, stdout)
	}()
	return s, nil
}

type commandSession struct {
	cmd        *exec.Cmd
	stderr     *bytes.Buffer
	sampleRate int
	dir        string

	pcm    bytes.Buffer
	copied chan struct{}

	mu      sync.Mutex
	stopped bool
	path    string
}

// Stop ends the capture and writes the WAV file.
func (s *commandSession) Stop() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		if s.path == "" {
			return "", errors.New("recording already released")
		}
		return s.path, nil
	}
	s.halt()

	if s.pcm.Len() < bytesPerFrame {
		msg := strings.TrimSpace(s.stderr.String())
		if msg == "" {
			msg = "no audio captured"
		}
		return "", errors.New(msg)
	}

	f, err := os.CreateTemp(s.dir, "deeptune-rec-*.wav")
	if err != nil {
		return "", fmt.Errorf("failed to create wav file: %w", err)
	}
	if err := EncodeWAV(f, s.pcm.Bytes(), s.sampleRate); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to close wav file: %w", err)
	}
	s.path = f.Name()
	return s.path, nil
}

// Release stops the capture if it is still running and deletes the WAV file.
func (s *commandSession) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.stopped {
		s.halt()
	}
	if s.path == "" {
		return nil
	}
	path := s.path
	s.path = ""
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}
	return nil
}

// halt interrupts the process, then kills it if it lingers. mu must be held.
func (s *commandSession) halt() {
	s.stopped = true
	if s.cmd.Process != nil {
		s.cmd.Process.Signal(os.Interrupt)
	}

	select {
	case <-s.copied:
	case <-time.After(stopGrace):
		s.cmd.Process.Kill()
		<-s.copied
	}
	s.cmd.Wait()
}
