package backend

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"deeptune/internal/capture"
	"deeptune/internal/predict"
	"deeptune/internal/provider"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// wavBytes encodes one second of mono 16-bit audio at the given amplitude.
func wavBytes(t *testing.T, amplitude int16) []byte {
	t.Helper()
	const rate = 8000
	pcm := make([]byte, rate*2)
	for i := 0; i < rate; i++ {
		v := amplitude
		if i%2 == 1 {
			v = -amplitude
		}
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(v))
	}

	f, err := os.Create(filepath.Join(t.TempDir(), "clip.wav"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := capture.EncodeWAV(f, pcm, rate); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(f.Name())
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func upload(t *testing.T, h http.Handler, path, filename string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if filename != "" {
		part, err := mw.CreateFormFile("file", filename)
		if err != nil {
			t.Fatal(err)
		}
		part.Write(data)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeResult(t *testing.T, rec *httptest.ResponseRecorder) predict.Result {
	t.Helper()
	var res predict.Result
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return res
}

func inCatalogue(res predict.Result) bool {
	for _, e := range DefaultCatalogue {
		if e.Title == res.Title && e.Artist == res.Artist {
			return true
		}
	}
	return false
}

func newTestServer(t *testing.T, opts Options) http.Handler {
	t.Helper()
	opts.UploadDir = t.TempDir()
	return New(opts).Handler()
}

func TestPredictText(t *testing.T) {
	h := newTestServer(t, Options{})

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{name: "ok", body: `{"text":"a rainy city street at night"}`, wantStatus: http.StatusOK},
		{name: "blank", body: `{"text":"   "}`, wantStatus: http.StatusBadRequest},
		{name: "missing field", body: `{}`, wantStatus: http.StatusBadRequest},
		{name: "bad json", body: `{"text":`, wantStatus: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/predict/text", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body)
			}
			if tt.wantStatus == http.StatusOK && !inCatalogue(decodeResult(t, rec)) {
				t.Error("result is not a catalogue entry")
			}
		})
	}
}

func TestPredictTextDeterministic(t *testing.T) {
	h := newTestServer(t, Options{})

	ask := func(text string) predict.Result {
		body, _ := json.Marshal(map[string]string{"text": text})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/predict/text", bytes.NewReader(body)))
		return decodeResult(t, rec)
	}

	a, b := ask("Sunset over the beach"), ask("  sunset over the BEACH ")
	if a != b {
		t.Errorf("same description gave %v and %v", a, b)
	}
	want := DefaultCatalogue.Pick([]byte("sunset over the beach"))
	if a.Title != want.Title || a.Lyrics != want.Lyrics {
		t.Errorf("got %+v, want %+v", a, want)
	}
}

func TestPredictImage(t *testing.T) {
	h := newTestServer(t, Options{})

	rec := upload(t, h, "/predict_image", "photo.png", pngBytes(t))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	res := decodeResult(t, rec)
	if !inCatalogue(res) {
		t.Errorf("result %+v is not a catalogue entry", res)
	}
	if res.Lyrics != "" {
		t.Errorf("image predictions carry no lyrics, got %q", res.Lyrics)
	}

	if rec := upload(t, h, "/predict_image", "photo.jpg", []byte("not an image")); rec.Code != http.StatusBadRequest {
		t.Errorf("garbage image: status = %d", rec.Code)
	}
	if rec := upload(t, h, "/predict_image", "", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("no file: status = %d", rec.Code)
	}
}

func TestPredictAudio(t *testing.T) {
	h := newTestServer(t, Options{})

	for _, path := range []string{"/predict_audio", "/predict/audio"} {
		t.Run(path, func(t *testing.T) {
			rec := upload(t, h, path, "audio.wav", wavBytes(t, 12000))
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d: %s", rec.Code, rec.Body)
			}
			if res := decodeResult(t, rec); !inCatalogue(res) {
				t.Errorf("result %+v is not a catalogue entry", res)
			}
		})
	}
}

func TestPredictAudioSilenceIsNoMatch(t *testing.T) {
	h := newTestServer(t, Options{})

	rec := upload(t, h, "/predict_audio", "audio.wav", wavBytes(t, 0))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	res := decodeResult(t, rec)
	if res.Title != predict.NoMatchTitle || res.Artist != "" || res.Recognized() {
		t.Errorf("result = %+v, want no-match placeholder", res)
	}
}

func TestPredictAudioInvalid(t *testing.T) {
	h := newTestServer(t, Options{})

	tests := []struct {
		name string
		data []byte
	}{
		{"text", []byte("definitely not audio")},
		{"png", pngBytes(t)},
		{"truncated riff", []byte("RIFF\x24\x00\x00\x00WAVE")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := upload(t, h, "/predict_audio", "audio.wav", tt.data)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400: %s", rec.Code, rec.Body)
			}
			if !strings.Contains(rec.Body.String(), "Invalid audio file") {
				t.Errorf("body = %s", rec.Body)
			}
		})
	}
	if rec := upload(t, h, "/predict_audio", "", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("no file: status = %d", rec.Code)
	}
}

type fakeCovers struct {
	song  provider.Song
	found bool
	err   error
}

func (f fakeCovers) Name() string { return "fake" }

func (f fakeCovers) FindCover(context.Context, string, string) (provider.Song, bool, error) {
	return f.song, f.found, f.err
}

type fakeLyrics struct {
	text string
	err  error
	got  []string
}

func (f *fakeLyrics) Lookup(_ context.Context, artist, title string) (string, error) {
	f.got = append(f.got, artist+" - "+title)
	return f.text, f.err
}

func TestEnrich(t *testing.T) {
	entry := Entry{Artist: "Static Bloom", Title: "Neon Rain", Lyrics: "built in"}

	tests := []struct {
		name       string
		covers     provider.CoverFinder
		lyrics     *fakeLyrics
		withLyrics bool
		want       predict.Result
	}{
		{
			name:       "no providers",
			withLyrics: true,
			want:       predict.Result{Artist: "Static Bloom", Title: "Neon Rain", Lyrics: "built in"},
		},
		{
			name:       "cover and lyrics found",
			covers:     fakeCovers{found: true, song: provider.Song{Artist: "Static Bloom", Title: "Neon Rain (Remix)", CoverURL: "https://img/x.jpg"}},
			lyrics:     &fakeLyrics{text: "real words"},
			withLyrics: true,
			want:       predict.Result{Artist: "Static Bloom", Title: "Neon Rain (Remix)", CoverURL: "https://img/x.jpg", Lyrics: "real words"},
		},
		{
			name:       "providers fail",
			covers:     fakeCovers{err: errors.New("quota")},
			lyrics:     &fakeLyrics{err: errors.New("down")},
			withLyrics: true,
			want:       predict.Result{Artist: "Static Bloom", Title: "Neon Rain", Lyrics: "built in"},
		},
		{
			name:   "image keeps lyrics empty",
			lyrics: &fakeLyrics{text: "real words"},
			want:   predict.Result{Artist: "Static Bloom", Title: "Neon Rain"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := Options{Covers: tt.covers}
			if tt.lyrics != nil {
				opts.Lyrics = tt.lyrics
			}
			s := New(opts)
			got := s.enrich(context.Background(), entry, tt.withLyrics)
			if got != tt.want {
				t.Errorf("enrich() = %+v, want %+v", got, tt.want)
			}
			if tt.lyrics != nil && !tt.withLyrics && len(tt.lyrics.got) != 0 {
				t.Errorf("lyrics looked up for image: %v", tt.lyrics.got)
			}
		})
	}
}

func TestClientAgainstStub(t *testing.T) {
	ts := httptest.NewServer(newTestServer(t, Options{}))
	defer ts.Close()

	c := predict.NewClient(ts.URL, 5*time.Second)
	ctx := context.Background()

	res, err := c.PredictText(ctx, "late night drive")
	if err != nil {
		t.Fatalf("PredictText() error: %v", err)
	}
	if !inCatalogue(res) {
		t.Errorf("result %+v is not a catalogue entry", res)
	}

	_, err = c.PredictText(ctx, " ")
	var serr *predict.ServerError
	if !errors.As(err, &serr) || serr.Status != http.StatusBadRequest {
		t.Errorf("blank text error = %v, want server error 400", err)
	}

	res, err = c.PredictAudio(ctx, predict.Upload{Data: wavBytes(t, 9000)})
	if err != nil {
		t.Fatalf("PredictAudio() error: %v", err)
	}
	if !res.Recognized() {
		t.Errorf("audio result %+v not recognized", res)
	}

	if _, err := c.PredictImage(ctx, predict.Upload{Name: "p.png", Data: pngBytes(t)}); err != nil {
		t.Errorf("PredictImage() error: %v", err)
	}
}

func TestLoadCatalogue(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(body), 0600); err != nil {
			t.Fatal(err)
		}
		return p
	}

	c, err := LoadCatalogue(write("ok.yaml", "- artist: A\n  title: One\n  lyrics: la la\n- artist: B\n  title: Two\n"))
	if err != nil {
		t.Fatalf("LoadCatalogue() error: %v", err)
	}
	if len(c) != 2 || c[0].Lyrics != "la la" || c[1].Title != "Two" {
		t.Errorf("catalogue = %+v", c)
	}

	for name, body := range map[string]string{
		"empty.yaml":   "[]\n",
		"notitle.yaml": "- artist: A\n",
		"bad.yaml":     "- [",
	} {
		if _, err := LoadCatalogue(write(name, body)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
	if _, err := LoadCatalogue(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("missing file: expected error")
	}
}
