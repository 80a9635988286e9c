package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/go-audio/wav"
	"github.com/labstack/echo/v4"
	"go.senan.xyz/taglib"

	"deeptune/internal/predict"
)

// silenceThreshold is the peak 16-bit amplitude below which a clip counts as
// silence and cannot be recognized.
const silenceThreshold = 64

type textRequest struct {
	Text string `json:"text"`
}

func (s *Server) predictText(c echo.Context) error {
	var req textRequest
	// The content type is not checked, any JSON body is accepted.
	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid JSON body")
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "No text provided")
	}

	entry := s.catalogue.Pick([]byte(strings.ToLower(text)))
	s.logger.Debug("text %q -> %s - %s", text, entry.Artist, entry.Title)
	return c.JSON(http.StatusOK, s.enrich(c.Request().Context(), entry, true))
}

func (s *Server) predictImage(c echo.Context) error {
	data, err := readUpload(c)
	if err != nil {
		return err
	}
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		s.logger.Debug("image load failed: %v", err)
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid image file")
	}
	s.logger.Debug("image: %s, %d bytes", format, len(data))

	entry := s.catalogue.Pick(data)
	return c.JSON(http.StatusOK, s.enrich(c.Request().Context(), entry, false))
}

func (s *Server) predictAudio(c echo.Context) error {
	data, err := readUpload(c)
	if err != nil {
		return err
	}

	path, err := s.saveTemp(data)
	if err != nil {
		return err
	}
	defer os.Remove(path)

	props, err := taglib.ReadProperties(path)
	if err != nil {
		s.logger.Debug("audio load failed: %v", err)
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid audio file")
	}
	// Unrecognised files come back with zeroed properties and no error.
	if props.SampleRate == 0 || props.Channels == 0 {
		s.logger.Debug("audio load failed: unrecognised format")
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid audio file")
	}
	s.logger.Debug("audio: %v, %d Hz, %d ch", props.Length, props.SampleRate, props.Channels)

	if props.Length <= 0 || isSilent(path) {
		return c.JSON(http.StatusOK, predict.Result{Title: predict.NoMatchTitle})
	}

	entry := s.catalogue.Pick(data)
	return c.JSON(http.StatusOK, s.enrich(c.Request().Context(), entry, true))
}

func readUpload(c echo.Context) ([]byte, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "No file provided")
	}
	f, err := fh.Open()
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "No file provided")
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	return data, nil
}

func (s *Server) saveTemp(data []byte) (string, error) {
	tmp, err := os.CreateTemp(s.uploadDir, "deeptune-stub-*.wav")
	if err != nil {
		return "", fmt.Errorf("failed to save upload: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to save upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to save upload: %w", err)
	}
	return tmp.Name(), nil
}

// isSilent reports whether a WAV file has no sample above silenceThreshold.
// Files the WAV decoder cannot read are treated as not silent.
func isSilent(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return false
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return false
	}
	for _, v := range buf.Data {
		if v > silenceThreshold || v < -silenceThreshold {
			return false
		}
	}
	return true
}
