package screen

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"deeptune/internal/predict"
)

type fakeSession struct {
	mu       sync.Mutex
	path     string
	stopErr  error
	stopped  bool
	released bool
}

func (s *fakeSession) Stop() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	return s.path, s.stopErr
}

func (s *fakeSession) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.released = true
	return nil
}

func (s *fakeSession) state() (stopped, released bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped, s.released
}

type fakeRecorder struct {
	sess     *fakeSession
	startErr error
	started  chan struct{}
}

func (r *fakeRecorder) Start(context.Context) (Session, error) {
	if r.startErr != nil {
		return nil, r.startErr
	}
	if r.started != nil {
		close(r.started)
	}
	return r.sess, nil
}

type fakePermissions struct {
	micErr   error
	mediaErr error
	micCalls int
}

func (p *fakePermissions) Microphone(context.Context) error {
	p.micCalls++
	return p.micErr
}

func (p *fakePermissions) MediaLibrary(context.Context) error { return p.mediaErr }

func TestPredictFromAudio(t *testing.T) {
	fp := &fakePredictor{results: []predict.Result{nightDrive}}
	sess := &fakeSession{path: "/tmp/rec.wav"}
	var startedWith time.Duration
	var stopped bool
	s := New(Options{
		Predictor:      fp,
		Recorder:       &fakeRecorder{sess: sess},
		Permissions:    &fakePermissions{},
		RecordDuration: 20 * time.Millisecond,
		Hooks: Hooks{
			OnRecordStart: func(d time.Duration) { startedWith = d },
			OnRecordStop:  func() { stopped = true },
		},
	})

	if err := s.PredictFromAudio(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fp.calls) != 1 || fp.calls[0].kind != "audio" || fp.calls[0].up.Path != "/tmp/rec.wav" {
		t.Fatalf("calls = %+v", fp.calls)
	}
	if st, rel := sess.state(); !st || !rel {
		t.Errorf("session stopped=%v released=%v", st, rel)
	}
	if startedWith != 20*time.Millisecond || !stopped {
		t.Errorf("hooks: start=%v stop=%v", startedWith, stopped)
	}
	st := s.State()
	if st.Result == nil || st.Result.Title != "Night Drive" || st.Loading || st.Recording {
		t.Errorf("state = %+v", st)
	}
}

func TestPredictFromAudioSetupFailure(t *testing.T) {
	fp := &fakePredictor{}
	s := New(Options{
		Predictor: fp,
		Recorder:  &fakeRecorder{startErr: errors.New("device busy")},
	})

	err := s.PredictFromAudio(context.Background())
	var re *RecordingError
	if !errors.As(err, &re) {
		t.Fatalf("expected RecordingError, got %v", err)
	}
	if fp.callCount() != 0 {
		t.Error("no request expected when recording setup fails")
	}
	st := s.State()
	if st.Alert == nil || st.Alert.Title != TitleAudioError {
		t.Errorf("alert = %+v", st.Alert)
	}
	if st.Loading {
		t.Error("loading should be cleared")
	}
}

func TestPredictFromAudioStopFailure(t *testing.T) {
	fp := &fakePredictor{}
	sess := &fakeSession{stopErr: errors.New("empty capture")}
	s := New(Options{Predictor: fp, Recorder: &fakeRecorder{sess: sess}, RecordDuration: time.Millisecond})

	err := s.PredictFromAudio(context.Background())
	var re *RecordingError
	if !errors.As(err, &re) || re.Op != "stop" {
		t.Fatalf("expected stop RecordingError, got %v", err)
	}
	if fp.callCount() != 0 {
		t.Error("no request expected when stop fails")
	}
	if _, rel := sess.state(); !rel {
		t.Error("session should be released")
	}
}

func TestPredictFromAudioMicrophoneDenied(t *testing.T) {
	fp := &fakePredictor{}
	perms := &fakePermissions{micErr: errors.New("arecord not found")}
	s := New(Options{Predictor: fp, Recorder: &fakeRecorder{sess: &fakeSession{}}, Permissions: perms})

	err := s.PredictFromAudio(context.Background())
	var pd *PermissionDenied
	if !errors.As(err, &pd) {
		t.Fatalf("expected PermissionDenied inside RecordingError, got %v", err)
	}
	var re *RecordingError
	if !errors.As(err, &re) {
		t.Fatalf("expected RecordingError, got %v", err)
	}
	if fp.callCount() != 0 {
		t.Error("no request expected without microphone")
	}
}

func TestPredictFromAudioCancelledWhileRecording(t *testing.T) {
	fp := &fakePredictor{}
	sess := &fakeSession{path: "/tmp/rec.wav"}
	rec := &fakeRecorder{sess: sess, started: make(chan struct{})}
	s := New(Options{Predictor: fp, Recorder: rec, RecordDuration: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- s.PredictFromAudio(ctx) }()

	<-rec.started
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("recording did not stop after cancel")
	}

	if _, rel := sess.state(); !rel {
		t.Error("session should be released after cancel")
	}
	if fp.callCount() != 0 {
		t.Error("no request expected after cancel")
	}
	st := s.State()
	if st.Alert != nil || st.Loading || st.Recording {
		t.Errorf("state after cancel = %+v", st)
	}
}

func TestCheckPermissions(t *testing.T) {
	perms := &fakePermissions{mediaErr: errors.New("unreadable")}
	s := New(Options{Predictor: &fakePredictor{}, Permissions: perms})

	err := s.CheckPermissions(context.Background())
	var pd *PermissionDenied
	if !errors.As(err, &pd) || pd.Capability != "media library" {
		t.Fatalf("err = %v", err)
	}
	if st := s.State(); st.Alert == nil || st.Alert.Title != TitlePermissions {
		t.Errorf("alert = %+v", st.Alert)
	}

	// Microphone was granted at startup, so recording does not ask again.
	s.recorder = &fakeRecorder{startErr: errors.New("stop here")}
	s.PredictFromAudio(context.Background())
	if perms.micCalls != 1 {
		t.Errorf("microphone checked %d times, want 1", perms.micCalls)
	}
}

func TestCheckPermissionsAllGranted(t *testing.T) {
	s := New(Options{Predictor: &fakePredictor{}, Permissions: &fakePermissions{}})
	if err := s.CheckPermissions(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.State().Alert != nil {
		t.Error("no alert expected")
	}
}
