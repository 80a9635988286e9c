package capture

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-audio/wav"
)

func TestEncodeWAV(t *testing.T) {
	// 4 samples: 0, 1, -1, 32767
	pcm := []byte{0x00, 0x00, 0x01, 0x00, 0xff, 0xff, 0xff, 0x7f, 0x42}

	path := filepath.Join(t.TempDir(), "out.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := EncodeWAV(f, pcm, 16000); err != nil {
		t.Fatalf("EncodeWAV() error: %v", err)
	}
	f.Close()

	r, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		t.Fatal("output is not a valid wav file")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatalf("FullPCMBuffer() error: %v", err)
	}
	if dec.SampleRate != 16000 || dec.NumChans != 1 || dec.BitDepth != 16 {
		t.Errorf("format = %d Hz, %d ch, %d bit", dec.SampleRate, dec.NumChans, dec.BitDepth)
	}
	want := []int{0, 1, -1, 32767}
	if len(buf.Data) != len(want) {
		t.Fatalf("samples = %v, want %v", buf.Data, want)
	}
	for i := range want {
		if buf.Data[i] != want[i] {
			t.Errorf("sample %d = %d, want %d", i, buf.Data[i], want[i])
		}
	}
}

func requireCommand(t *testing.T, name string) {
	t.Helper()
	if _, err := exec.LookPath(name); err != nil {
		t.Skipf("%s not available", name)
	}
}

func TestCommandRecorder(t *testing.T) {
	requireCommand(t, "head")

	dir := t.TempDir()
	rec := NewCommandRecorder("head -c 882 /dev/zero", 44100, nil)
	rec.Dir = dir

	sess, err := rec.Start(context.Background())
	if err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	// head exits once it has written everything; stop only after that.
	select {
	case <-sess.(*commandSession).copied:
	case <-time.After(5 * time.Second):
		t.Fatal("capture program did not finish")
	}
	path, err := sess.Stop()
	if err != nil {
		t.Fatalf("Stop() error: %v", err)
	}
	if filepath.Dir(path) != dir || !strings.HasSuffix(path, ".wav") {
		t.Errorf("path = %q", path)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	f.Close()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(buf.Data) != 441 {
		t.Errorf("got %d samples, want 441", len(buf.Data))
	}

	if err := sess.Release(); err != nil {
		t.Fatalf("Release() error: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("wav file should be removed on release")
	}
}

func TestCommandRecorderStopsRunningProcess(t *testing.T) {
	requireCommand(t, "sleep")

	rec := NewCommandRecorder("sleep 30", 44100, nil)
	rec.Dir = t.TempDir()

	sess, err := rec.Start(context.Background())
	if err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if _, err := sess.Stop(); err == nil {
		t.Fatal("expected error for a capture with no audio")
	}
	if err := sess.Release(); err != nil {
		t.Errorf("Release() error: %v", err)
	}
}

func TestCommandRecorderReleaseWithoutStop(t *testing.T) {
	requireCommand(t, "sleep")

	rec := NewCommandRecorder("sleep 30", 44100, nil)
	sess, err := rec.Start(context.Background())
	if err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if err := sess.Release(); err != nil {
		t.Errorf("Release() error: %v", err)
	}
	if _, err := sess.Stop(); err == nil {
		t.Error("Stop() after Release() should fail")
	}
}

func TestCommandRecorderMissingProgram(t *testing.T) {
	rec := NewCommandRecorder("deeptune-no-such-recorder -x", 44100, nil)
	if _, err := rec.Start(context.Background()); err == nil {
		t.Fatal("expected error for missing program")
	}

	empty := NewCommandRecorder("  ", 44100, nil)
	if _, err := empty.Start(context.Background()); err == nil {
		t.Fatal("expected error for empty command")
	}
}

func TestPathPicker(t *testing.T) {
	dir := t.TempDir()
	photo := filepath.Join(dir, "street.jpg")
	if err := os.WriteFile(photo, []byte("jpeg"), 0600); err != nil {
		t.Fatal(err)
	}
	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0600)

	tests := []struct {
		name    string
		input   string
		want    string
		wantOK  bool
		wantErr bool
	}{
		{name: "relative to dir", input: "street.jpg\n", want: photo, wantOK: true},
		{name: "absolute", input: photo + "\n", want: photo, wantOK: true},
		{name: "empty cancels", input: "\n"},
		{name: "eof cancels", input: ""},
		{name: "missing file", input: "nope.jpg\n", wantErr: true},
		{name: "not an image", input: "notes.txt\n", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			p := NewPromptPicker(strings.NewReader(tt.input), &out, dir)

			got, ok, err := p.PickImage(context.Background())
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("PickImage() = %q, %v; want %q, %v", got, ok, tt.want, tt.wantOK)
			}
			if !strings.Contains(out.String(), "Photo path") {
				t.Errorf("prompt not written: %q", out.String())
			}
		})
	}
}

func TestPathPickerReusableAfterCancel(t *testing.T) {
	dir := t.TempDir()
	photo := filepath.Join(dir, "street.jpg")
	if err := os.WriteFile(photo, []byte("jpeg"), 0600); err != nil {
		t.Fatal(err)
	}

	r, w := io.Pipe()
	defer w.Close()
	p := NewPromptPicker(r, io.Discard, dir)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := p.PickImage(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled PickImage() error = %v, want context.Canceled", err)
	}

	go io.WriteString(w, "street.jpg\nnotes.txt\n")

	got, ok, err := p.PickImage(context.Background())
	if err != nil || !ok || got != photo {
		t.Fatalf("PickImage() after cancel = %q, %v, %v; want %q", got, ok, err, photo)
	}
	// The second line is only read for the next prompt.
	if _, _, err := p.PickImage(context.Background()); err == nil {
		t.Error("expected the next line to be read by the next prompt")
	}
}

func TestFixedPicker(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.PNG")
	os.WriteFile(path, []byte("png"), 0600)

	got, ok, err := FixedPicker(path).PickImage(context.Background())
	if err != nil || !ok || got != path {
		t.Errorf("PickImage() = %q, %v, %v", got, ok, err)
	}
}

func TestSystemPermissions(t *testing.T) {
	requireCommand(t, "sh")
	dir := t.TempDir()

	granted := SystemPermissions{RecordCommand: []string{"sh"}, PicturesDir: dir}
	if err := granted.Microphone(context.Background()); err != nil {
		t.Errorf("Microphone() error: %v", err)
	}
	if err := granted.MediaLibrary(context.Background()); err != nil {
		t.Errorf("MediaLibrary() error on empty dir: %v", err)
	}

	denied := SystemPermissions{RecordCommand: []string{"deeptune-no-such-recorder"}, PicturesDir: filepath.Join(dir, "missing")}
	if err := denied.Microphone(context.Background()); err == nil {
		t.Error("Microphone() should fail for missing program")
	}
	if err := denied.MediaLibrary(context.Background()); err == nil {
		t.Error("MediaLibrary() should fail for missing dir")
	}
}
