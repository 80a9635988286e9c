package itunes

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

// Client is an iTunes Search API client.
type Client struct {
	httpClient *http.Client
	apiURL     string
}

// New creates a new iTunes client.
func New() *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		apiURL:     "https://itunes.apple.com/search",
	}
}

func (c *Client) Name() string { return "itunes" }

// FindCover returns the best iTunes match with 600x600 artwork.
func (c *Client) FindCover(ctx context.Context, artist, title string) (provider.Song, bool, error) {
	term := strings.TrimSpace(title + " " + artist)
	if term == "" {
		return provider.Song{}, false, nil
	}

	params := url.Values{}
	params.Set("term", term)
	params.Set("media", "music")
	params.Set("entity", "song")
	params.Set("limit", "1")

	reqURL := fmt.Sprintf("%s?%s", c.apiURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return provider.Song{}, false, fmt.Errorf("failed to create itunes request: %w", err)
	}
	req.Header.Set("User-Agent", "deeptune/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return provider.Song{}, false, fmt.Errorf("itunes search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return provider.Song{}, false, fmt.Errorf("itunes search returned %d: %s", resp.StatusCode, body)
	}

	var searchResp searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return provider.Song{}, false, fmt.Errorf("failed to decode itunes response: %w", err)
	}
	if len(searchResp.Results) == 0 {
		return provider.Song{}, false, nil
	}

	item := searchResp.Results[0]
	return provider.Song{
		Title:    item.TrackName,
		Artist:   item.ArtistName,
		CoverURL: strings.Replace(item.ArtworkURL100, "100x100", "600x600", 1),
	}, true, nil
}

// iTunes Search API response types

type searchResponse struct {
	ResultCount int          `json:"resultCount"`
	Results     []resultItem `json:"results"`
}

type resultItem struct {
	TrackName      string `json:"trackName"`
	ArtistName     string `json:"artistName"`
	CollectionName string `json:"collectionName"`
	ArtworkURL100  string `json:"artworkUrl100"`
}
