package deezer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"deeptune/internal/provider"
)

var _ provider.CoverFinder = (*Client)(nil)

// Client looks up canonical song names and album covers on Deezer.
type Client struct {
	httpClient *http.Client
	apiURL     string
}

// New creates a new Deezer client.
func New() *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		apiURL:     "https://api.deezer.com",
	}
}

func (c *Client) Name() string { return "deezer" }

// FindCover searches for the song, first with a fielded query and then with a
// free-text one. found is false when neither query matches.
func (c *Client) FindCover(ctx context.Context, artist, title string) (provider.Song, bool, error) {
	queries := []string{
		buildQuery(artist, title),
		strings.TrimSpace(title + " " + artist),
	}
	for _, q := range queries {
		if q == "" {
			continue
		}
		items, err := c.search(ctx, q)
		if err != nil {
			return provider.Song{}, false, err
		}
		if len(items) > 0 {
			return toSong(items[0]), true, nil
		}
	}
	return provider.Song{}, false, nil
}

func (c *Client) search(ctx context.Context, q string) ([]trackItem, error) {
	reqURL := fmt.Sprintf("%s/search?q=%s&limit=1", c.apiURL, url.QueryEscape(q))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create deezer request: %w", err)
	}
	req.Header.Set("User-Agent", "deeptune/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("deezer search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("deezer search returned %d: %s", resp.StatusCode, body)
	}

	var searchResp searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("failed to decode deezer response: %w", err)
	}
	if searchResp.Error != nil {
		return nil, fmt.Errorf("deezer API error: %s", searchResp.Error.Message)
	}
	return searchResp.Data, nil
}

func buildQuery(artist, title string) string {
	escape := func(s string) string {
		return strings.ReplaceAll(s, "\"", "")
	}
	var parts []string
	if title != "" {
		parts = append(parts, "track:\""+escape(title)+"\"")
	}
	if artist != "" {
		parts = append(parts, "artist:\""+escape(artist)+"\"")
	}
	return strings.Join(parts, " ")
}

func toSong(item trackItem) provider.Song {
	cover := item.Album.CoverXL
	if cover == "" {
		cover = item.Album.CoverBig
	}
	title := item.TitleShort
	if title == "" {
		title = item.Title
	}
	return provider.Song{
		Title:    title,
		Artist:   item.Artist.Name,
		CoverURL: cover,
	}
}

// Deezer API response types

type searchResponse struct {
	Data  []trackItem `json:"data"`
	Error *apiError   `json:"error,omitempty"`
}

type apiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

type trackItem struct {
	ID         int       `json:"id"`
	Title      string    `json:"title"`
	TitleShort string    `json:"title_short"`
	Artist     artist    `json:"artist"`
	Album      albumInfo `json:"album"`
}

type artist struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type albumInfo struct {
	ID       int    `json:"id"`
	Title    string `json:"title"`
	CoverBig string `json:"cover_big"`
	CoverXL  string `json:"cover_xl"`
}
