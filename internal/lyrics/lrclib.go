// Package lyrics looks up song lyrics on LRCLib.
package lyrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// Client queries the LRCLib API.
type Client struct {
	httpClient *http.Client
	apiURL     string
}

func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		apiURL:     "https://lrclib.net/api/get",
	}
}

// Lookup returns plain lyrics for the song. When LRCLib only has synced
// lyrics their timestamps are stripped. An unknown song yields "" and no
// error. Transient network errors are retried once.
func (c *Client) Lookup(ctx context.Context, artist, title string) (string, error) {
	text, err := c.doLookup(ctx, artist, title)
	if err == nil {
		return text, nil
	}
	if !isTransient(err) {
		return "", err
	}

	select {
	case <-ctx.Done():
		return "", err
	case <-time.After(2 * time.Second):
	}
	return c.doLookup(ctx, artist, title)
}

func isTransient(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr)
}

func (c *Client) doLookup(ctx context.Context, artist, title string) (string, error) {
	params := url.Values{}
	params.Set("artist_name", artist)
	params.Set("track_name", title)

	reqURL := fmt.Sprintf("%s?%s", c.apiURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create lrclib request: %w", err)
	}
	req.Header.Set("User-Agent", "deeptune/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("lrclib request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", nil
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("lrclib returned status %d", resp.StatusCode)
	}

	var apiResp apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return "", fmt.Errorf("failed to decode lrclib response: %w", err)
	}
	if apiResp.Instrumental {
		return "", nil
	}
	if plain := strings.TrimSpace(apiResp.PlainLyrics); plain != "" {
		return plain, nil
	}
	return StripTimestamps(apiResp.SyncedLyrics), nil
}

var lrcTimestamp = regexp.MustCompile(`^(\[\d+:\d+(?:[.:]\d+)?\])+\s?`)

// StripTimestamps turns LRC text into plain lines.
func StripTimestamps(lrc string) string {
	lines := strings.Split(strings.ReplaceAll(lrc, "\r\n", "\n"), "\n")
	for i, line := range lines {
		lines[i] = lrcTimestamp.ReplaceAllString(line, "")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

type apiResponse struct {
	Instrumental bool   `json:"instrumental"`
	SyncedLyrics string `json:"syncedLyrics"`
	PlainLyrics  string `json:"plainLyrics"`
}
