package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
)

// SystemPermissions treats "the capture program is installed" as microphone
// access and "the pictures folder is readable" as media library access.
type SystemPermissions struct {
	RecordCommand []string
	PicturesDir   string
}

// Microphone implements screen.Permissions.
func (p SystemPermissions) Microphone(context.Context) error {
	if len(p.RecordCommand) == 0 {
		return errors.New("no record command configured")
	}
	if _, err := exec.LookPath(p.RecordCommand[0]); err != nil {
		return fmt.Errorf("%s not found in PATH", p.RecordCommand[0])
	}
	return nil
}

// MediaLibrary implements screen.Permissions.
func (p SystemPermissions) MediaLibrary(context.Context) error {
	if p.PicturesDir == "" {
		return errors.New("no pictures directory configured")
	}
	dir, err := os.Open(p.PicturesDir)
	if err != nil {
		return fmt.Errorf("cannot open %s: %w", p.PicturesDir, err)
	}
	defer dir.Close()
	if _, err := dir.Readdirnames(1); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("cannot read %s: %w", p.PicturesDir, err)
	}
	return nil
}
