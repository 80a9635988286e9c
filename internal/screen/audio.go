package screen

import (
	"context"
	"errors"
	"time"

	"deeptune/internal/predict"
)

// CheckPermissions asks for microphone and media library access. Each denial
// raises an advisory alert; the returned error only summarizes them.
func (s *Screen) CheckPermissions(ctx context.Context) error {
	if s.perms == nil {
		return nil
	}

	var denied []error
	if err := s.perms.Microphone(ctx); err != nil {
		denied = append(denied, &PermissionDenied{Capability: "microphone", Err: err})
	} else {
		s.mu.Lock()
		s.micGranted = true
		s.mu.Unlock()
	}
	if err := s.perms.MediaLibrary(ctx); err != nil {
		denied = append(denied, &PermissionDenied{Capability: "media library", Err: err})
	}

	for _, err := range denied {
		s.log.Warn("%v", err)
		s.showAlert(TitlePermissions, err)
	}
	return errors.Join(denied...)
}

// PredictFromAudio records the microphone for the configured duration and
// uploads the clip. Cancelling ctx while recording stops and releases the
// capture and returns ctx.Err() without an alert.
func (s *Screen) PredictFromAudio(ctx context.Context) error {
	s.begin()
	defer s.settle()

	path, release, err := s.record(ctx)
	if release != nil {
		defer release()
	}
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			s.log.Debug("recording abandoned: %v", err)
			return err
		}
		s.showAlert(TitleAudioError, err)
		return err
	}

	seq := s.nextSeq()
	res, err := s.predictor.PredictAudio(ctx, predict.Upload{Path: path})
	if err != nil {
		s.showAlert(TitleAudioError, err)
		return err
	}
	return s.apply(seq, res)
}

// record captures one clip. The returned release func must be called once the
// file is no longer needed; it is nil when nothing was started.
func (s *Screen) record(ctx context.Context) (string, func(), error) {
	if s.recorder == nil {
		return "", nil, &RecordingError{Op: "setup", Err: errors.New("no recorder available")}
	}
	if err := s.ensureMicrophone(ctx); err != nil {
		return "", nil, &RecordingError{Op: "setup", Err: err}
	}

	sess, err := s.recorder.Start(ctx)
	if err != nil {
		return "", nil, &RecordingError{Op: "setup", Err: err}
	}
	release := func() {
		if err := sess.Release(); err != nil {
			s.log.Debug("failed to release recording: %v", err)
		}
	}

	s.setRecording(true)
	defer s.setRecording(false)
	if s.hooks.OnRecordStart != nil {
		s.hooks.OnRecordStart(s.recordDuration)
	}
	if s.hooks.OnRecordStop != nil {
		defer s.hooks.OnRecordStop()
	}

	cutoff := time.NewTimer(s.recordDuration)
	defer cutoff.Stop()
	tick := time.NewTicker(time.Second)
	defer tick.Stop()

wait:
	for {
		select {
		case <-ctx.Done():
			return "", release, ctx.Err()
		case <-tick.C:
			if s.hooks.OnRecordTick != nil {
				s.hooks.OnRecordTick()
			}
		case <-cutoff.C:
			break wait
		}
	}

	path, err := sess.Stop()
	if err != nil {
		return "", release, &RecordingError{Op: "stop", Err: err}
	}
	return path, release, nil
}

func (s *Screen) ensureMicrophone(ctx context.Context) error {
	s.mu.Lock()
	granted := s.micGranted
	s.mu.Unlock()
	if granted || s.perms == nil {
		return nil
	}

	if err := s.perms.Microphone(ctx); err != nil {
		return &PermissionDenied{Capability: "microphone", Err: err}
	}
	s.mu.Lock()
	s.micGranted = true
	s.mu.Unlock()
	return nil
}

func (s *Screen) setRecording(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Recording = on
	s.notify()
}
