// Package pexels searches stock footage and normalises the results.
package pexels

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/smartvid/smartvid/internal/integrations/apiclient"
)

// MaxFileWidth is the widest file picked for a result.
const MaxFileWidth = 1920

// Video is a normalised search hit.
type Video struct {
	ID       int64  `json:"id"`
	URL      string `json:"url"`
	Image    string `json:"image"`
	Duration int    `json:"duration"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	FileURL  string `json:"file_url"`
	User     string `json:"user"`
}

// SearchParams narrows a search.
type SearchParams struct {
	Query       string
	PerPage     int
	Orientation string
}

// Client calls the Pexels video API.
type Client struct {
	baseURL string
	apiKey  string
	api     *apiclient.Client
}

// NewClient returns a Pexels client.
func NewClient(apiKey string, api *apiclient.Client) *Client {
	if api == nil {
		api = apiclient.New()
	}
	return &Client{baseURL: "https://api.pexels.com", apiKey: apiKey, api: api}
}

// WithBaseURL points the client at another host.
func (c *Client) WithBaseURL(u string) *Client {
	c.baseURL = strings.TrimRight(u, "/")
	return c
}

// File is one encoding of a hit.
type File struct {
	Quality  string `json:"quality"`
	FileType string `json:"file_type"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Link     string `json:"link"`
}

type searchResponse struct {
	Videos []struct {
		ID       int64  `json:"id"`
		URL      string `json:"url"`
		Image    string `json:"image"`
		Duration int    `json:"duration"`
		Width    int    `json:"width"`
		Height   int    `json:"height"`
		User     struct {
			Name string `json:"name"`
		} `json:"user"`
		VideoFiles []File `json:"video_files"`
	} `json:"videos"`
}

// Search runs a video search.  PerPage is clamped to 1..80 (default 15).
func (c *Client) Search(ctx context.Context, p SearchParams) ([]Video, error) {
	q := strings.TrimSpace(p.Query)
	if q == "" {
		return nil, errors.New("stock search: query required")
	}
	if c.apiKey == "" {
		return nil, errors.New("stock search: api key required")
	}
	perPage := p.PerPage
	switch {
	case perPage <= 0:
		perPage = 15
	case perPage > 80:
		perPage = 80
	}
	v := url.Values{}
	v.Set("query", q)
	v.Set("per_page", strconv.Itoa(perPage))
	switch p.Orientation {
	case "landscape", "portrait", "square":
		v.Set("orientation", p.Orientation)
	}
	h := http.Header{}
	h.Set("Authorization", c.apiKey)

	var out searchResponse
	if err := c.api.DoJSON(ctx, apiclient.Request{
		Op:     "stock search",
		Method: http.MethodGet,
		URL:    c.baseURL + "/videos/search?" + v.Encode(),
		Header: h,
	}, nil, &out); err != nil {
		return nil, err
	}
	videos := make([]Video, 0, len(out.Videos))
	for _, r := range out.Videos {
		file, ok := BestFile(r.VideoFiles)
		if !ok {
			continue
		}
		videos = append(videos, Video{
			ID:       r.ID,
			URL:      r.URL,
			Image:    r.Image,
			Duration: r.Duration,
			Width:    file.Width,
			Height:   file.Height,
			FileURL:  file.Link,
			User:     r.User.Name,
		})
	}
	return videos, nil
}

// FirstFileURL returns the file of the best hit for query, or "" when
// nothing matched.
func (c *Client) FirstFileURL(ctx context.Context, query, orientation string) (string, error) {
	videos, err := c.Search(ctx, SearchParams{Query: query, PerPage: 5, Orientation: orientation})
	if err != nil || len(videos) == 0 {
		return "", err
	}
	return videos[0].FileURL, nil
}

// BestFile picks the widest HD mp4 no wider than MaxFileWidth, falling
// back to the widest file within the limit of any quality.
func BestFile(files []File) (File, bool) {
	var (
		best  File
		found bool
	)
	better := func(f File) bool {
		if !found {
			return true
		}
		fHD, bHD := f.Quality == "hd", best.Quality == "hd"
		if fHD != bHD {
			return fHD
		}
		return f.Width > best.Width
	}
	for _, f := range files {
		if f.Link == "" || f.Width > MaxFileWidth {
			continue
		}
		if f.FileType != "" && f.FileType != "video/mp4" {
			continue
		}
		if better(f) {
			best, found = f, true
		}
	}
	return best, found
}
