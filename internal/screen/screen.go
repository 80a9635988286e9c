// Package screen holds what the prediction screen shows: the current song,
// the loading indicator, the lyrics view and the last alert. It runs the four
// prediction flows (text, photo, microphone, audio file) against a Predictor.
package screen

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"deeptune/internal/logger"
	"deeptune/internal/predict"
)

// Alert titles.
const (
	TitleNotice      = "Notice"
	TitleError       = "Error"
	TitleImageError  = "Image error"
	TitleAudioError  = "Music recognition error"
	TitlePermissions = "Permission error"
)

// DefaultRecordDuration is how long the microphone is captured.
const DefaultRecordDuration = 10 * time.Second

// Predictor sends inputs to the prediction server.
type Predictor interface {
	PredictText(ctx context.Context, text string) (predict.Result, error)
	PredictImage(ctx context.Context, up predict.Upload) (predict.Result, error)
	PredictAudio(ctx context.Context, up predict.Upload) (predict.Result, error)
}

// ImagePicker lets the user choose a photo. ok is false when the user cancelled.
type ImagePicker interface {
	PickImage(ctx context.Context) (path string, ok bool, err error)
}

// Recorder starts microphone captures.
type Recorder interface {
	Start(ctx context.Context) (Session, error)
}

// Session is an in-progress capture. Stop finalizes it into a WAV file;
// Release frees everything and is safe to call after Stop or instead of it.
type Session interface {
	Stop() (path string, err error)
	Release() error
}

// Permissions checks platform access. A nil error means granted.
type Permissions interface {
	Microphone(ctx context.Context) error
	MediaLibrary(ctx context.Context) error
}

// Alert is a modal message.
type Alert struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

// State is a snapshot of what the screen displays.
type State struct {
	Result        *predict.Result `json:"result,omitempty"`
	Loading       bool            `json:"loading"`
	Recording     bool            `json:"recording"`
	LyricsVisible bool            `json:"lyrics_visible"`
	LyricsOpen    bool            `json:"lyrics_open"`
	Alert         *Alert          `json:"alert,omitempty"`
	Seq           uint64          `json:"seq"`
}

// Hooks are optional callbacks for front-ends that draw a recording countdown.
type Hooks struct {
	OnRecordStart func(d time.Duration)
	OnRecordTick  func()
	OnRecordStop  func()
}

// Options configure a Screen. Only Predictor is required.
type Options struct {
	Predictor      Predictor
	Picker         ImagePicker
	Recorder       Recorder
	Permissions    Permissions
	RecordDuration time.Duration
	Logger         *logger.Logger
	Hooks          Hooks
}

// Screen is safe for concurrent use. Overlapping requests are allowed; only the
// response to the most recently issued request may replace the result.
type Screen struct {
	predictor      Predictor
	picker         ImagePicker
	recorder       Recorder
	perms          Permissions
	recordDuration time.Duration
	log            *logger.Logger
	hooks          Hooks

	mu         sync.Mutex
	state      State
	issued     uint64
	inFlight   int
	micGranted bool
	listeners  []chan State
}

// New creates a Screen with nothing displayed.
func New(opts Options) *Screen {
	s := &Screen{
		predictor:      opts.Predictor,
		picker:         opts.Picker,
		recorder:       opts.Recorder,
		perms:          opts.Permissions,
		recordDuration: opts.RecordDuration,
		log:            opts.Logger,
		hooks:          opts.Hooks,
	}
	if s.recordDuration <= 0 {
		s.recordDuration = DefaultRecordDuration
	}
	if s.log == nil {
		s.log = logger.Discard()
	}
	return s
}

// State returns a copy of the current display state.
func (s *Screen) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// snapshot must be called with mu held.
func (s *Screen) snapshot() State {
	st := s.state
	if st.Result != nil {
		r := *st.Result
		st.Result = &r
	}
	if st.Alert != nil {
		a := *st.Alert
		st.Alert = &a
	}
	return st
}

// PredictFromText sends a scene description. Blank input is rejected without
// a request.
func (s *Screen) PredictFromText(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		err := &ValidationError{Msg: "enter a scene description"}
		s.showAlert(TitleNotice, err)
		return err
	}
	return s.dispatch(ctx, TitleError, func(ctx context.Context) (predict.Result, error) {
		return s.predictor.PredictText(ctx, text)
	})
}

// PredictFromImage asks the picker for a photo and uploads it. Cancelling the
// picker is not an error and changes nothing.
func (s *Screen) PredictFromImage(ctx context.Context) error {
	return s.PredictFromImageWith(ctx, s.picker)
}

// PredictFromImageWith is PredictFromImage with a one-off picker, used when the
// photo arrives from elsewhere (an upload, a watched folder).
func (s *Screen) PredictFromImageWith(ctx context.Context, picker ImagePicker) error {
	if picker == nil {
		err := errors.New("no image picker available")
		s.showAlert(TitleImageError, err)
		return err
	}
	path, ok, err := picker.PickImage(ctx)
	if err != nil {
		s.showAlert(TitleImageError, err)
		return err
	}
	if !ok {
		s.log.Debug("image selection cancelled")
		return nil
	}
	return s.dispatch(ctx, TitleImageError, func(ctx context.Context) (predict.Result, error) {
		return s.predictor.PredictImage(ctx, predict.Upload{Path: path, ContentType: "image/jpeg"})
	})
}

// PredictFromAudioFile uploads an existing WAV file.
func (s *Screen) PredictFromAudioFile(ctx context.Context, path string) error {
	return s.dispatch(ctx, TitleError, func(ctx context.Context) (predict.Result, error) {
		return s.predictor.PredictAudio(ctx, predict.Upload{Path: path})
	})
}

// dispatch runs one request through Idle → Loading → Success|Failed → Idle.
func (s *Screen) dispatch(ctx context.Context, alertTitle string, call func(context.Context) (predict.Result, error)) error {
	s.begin()
	defer s.settle()

	seq := s.nextSeq()
	res, err := call(ctx)
	if err != nil {
		s.showAlert(alertTitle, err)
		return err
	}
	return s.apply(seq, res)
}

// begin raises the loading flag.
func (s *Screen) begin() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.inFlight++
	s.state.Loading = true
	s.notify()
}

// Hold raises the loading flag until the returned func is called. Front-ends
// that run a prediction in the background take it first, so the state they
// answer with right away already shows loading.
func (s *Screen) Hold() (release func()) {
	s.begin()
	var once sync.Once
	return func() { once.Do(s.settle) }
}

// nextSeq numbers a request right before it is sent.
func (s *Screen) nextSeq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.issued++
	return s.issued
}

// settle lowers the loading flag once no request is in flight.
func (s *Screen) settle() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.inFlight--
	s.state.Loading = s.inFlight > 0
	s.notify()
}

// apply replaces the displayed song if seq is still the latest request.
func (s *Screen) apply(seq uint64, res predict.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if seq != s.issued {
		s.log.Debug("dropping response %d, latest request is %d", seq, s.issued)
		return ErrSuperseded
	}

	s.state.Result = &res
	s.state.Seq = seq
	s.state.LyricsVisible = res.HasLyrics()
	s.state.LyricsOpen = false
	s.notify()
	return nil
}

func (s *Screen) showAlert(title string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.Alert = &Alert{Title: title, Message: err.Error()}
	s.notify()
}

// DismissAlert closes the current alert.
func (s *Screen) DismissAlert() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Alert != nil {
		s.state.Alert = nil
		s.notify()
	}
}

// OpenLyrics shows the lyrics view. It reports false when the current song has none.
func (s *Screen) OpenLyrics() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.state.LyricsVisible {
		return false
	}
	if !s.state.LyricsOpen {
		s.state.LyricsOpen = true
		s.notify()
	}
	return true
}

// CloseLyrics hides the lyrics view.
func (s *Screen) CloseLyrics() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.LyricsOpen {
		s.state.LyricsOpen = false
		s.notify()
	}
}

// Subscribe returns a channel receiving a snapshot after every change.
// Slow readers miss intermediate states.
func (s *Screen) Subscribe() <-chan State {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan State, 16)
	s.listeners = append(s.listeners, ch)
	return ch
}

// Unsubscribe removes and closes a channel returned by Subscribe.
func (s *Screen) Unsubscribe(ch <-chan State) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, l := range s.listeners {
		if l == ch {
			s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
			close(l)
			return
		}
	}
}

// notify must be called with mu held.
func (s *Screen) notify() {
	st := s.snapshot()
	for _, ch := range s.listeners {
		select {
		case ch <- st:
		default:
		}
	}
}
