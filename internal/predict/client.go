package predict

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

const (
	textPath  = "/predict/text"
	imagePath = "/predict_image"
	audioPath = "/predict_audio"

	userAgent = "deeptune/1.0"
)

// Client talks to a prediction server.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a client for the server at baseURL (e.g. http://localhost:5001).
// A zero timeout leaves only the transport's own limits in place.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// BaseURL returns the server address the client posts to.
func (c *Client) BaseURL() string { return c.baseURL }

// PredictText asks for a song matching a scene description.
func (c *Client) PredictText(ctx context.Context, text string) (Result, error) {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return Result{}, fmt.Errorf("failed to encode text request: %w", err)
	}
	return c.post(ctx, textPath, "application/json", bytes.NewReader(body))
}

// PredictImage uploads a photo. Content type defaults to image/jpeg.
func (c *Client) PredictImage(ctx context.Context, up Upload) (Result, error) {
	if up.ContentType == "" {
		up.ContentType = "image/jpeg"
	}
	return c.postFile(ctx, imagePath, up)
}

// PredictAudio uploads a WAV clip. The part is always named audio.wav.
func (c *Client) PredictAudio(ctx context.Context, up Upload) (Result, error) {
	up.Name = "audio.wav"
	if up.ContentType == "" {
		up.ContentType = "audio/wav"
	}
	return c.postFile(ctx, audioPath, up)
}

func (c *Client) postFile(ctx context.Context, path string, up Upload) (Result, error) {
	data := up.Data
	if data == nil {
		var err error
		data, err = os.ReadFile(up.Path)
		if err != nil {
			return Result{}, fmt.Errorf("failed to read %s: %w", up.Path, err)
		}
	}
	name := up.Name
	if name == "" {
		name = filepath.Base(up.Path)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, name))
	h.Set("Content-Type", up.ContentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return Result{}, fmt.Errorf("failed to create multipart part: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return Result{}, fmt.Errorf("failed to write multipart part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return Result{}, fmt.Errorf("failed to close multipart body: %w", err)
	}

	return c.post(ctx, path, mw.FormDataContentType(), &buf)
}

func (c *Client) post(ctx context.Context, path, contentType string, body io.Reader) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return Result{}, fmt.Errorf("failed to create %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-Request-ID", ulid.Make().String())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, &NetworkError{Op: "POST " + path, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return Result{}, &ServerError{Status: resp.StatusCode}
	}

	var res Result
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return Result{}, &NetworkError{Op: "decode " + path + " response", Err: err}
	}
	return res, nil
}
