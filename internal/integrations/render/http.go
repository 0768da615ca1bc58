package render

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/smartvid/smartvid/internal/integrations/apiclient"
)

const defaultSceneSeconds = 5

// HTTPClient talks to a Shotstack-compatible edit API.
type HTTPClient struct {
	baseURL string
	apiKey  string
	api     *apiclient.Client
}

// NewHTTPClient returns a client for the API at baseURL.
func NewHTTPClient(baseURL, apiKey string, api *apiclient.Client) *HTTPClient {
	if api == nil {
		api = apiclient.New()
	}
	return &HTTPClient{baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey, api: api}
}

type asset struct {
	Type  string `json:"type"`
	Src   string `json:"src,omitempty"`
	Text  string `json:"text,omitempty"`
	Style string `json:"style,omitempty"`
}

type clip struct {
	Asset      asset   `json:"asset"`
	Start      float64 `json:"start"`
	Length     float64 `json:"length"`
	Transition *struct {
		In  string `json:"in,omitempty"`
		Out string `json:"out,omitempty"`
	} `json:"transition,omitempty"`
}

type track struct {
	Clips []clip `json:"clips"`
}

type soundtrack struct {
	Src    string `json:"src"`
	Effect string `json:"effect,omitempty"`
}

type timeline struct {
	Soundtrack *soundtrack `json:"soundtrack,omitempty"`
	Tracks     []track     `json:"tracks"`
}

type output struct {
	Format     string `json:"format"`
	Resolution string `json:"resolution"`
}

// Edit is the request body of POST /render.
type Edit struct {
	Timeline timeline `json:"timeline"`
	Output   output   `json:"output"`
}

// BuildEdit lays scenes out back to back: footage on the bottom track and
// narration captions above it.  Scenes without footage get a title card.
func BuildEdit(job Job) Edit {
	var (
		footage  track
		captions track
		start    float64
	)
	for _, sc := range job.Scenes {
		length := sc.Duration
		if length <= 0 {
			length = defaultSceneSeconds
		}
		if sc.FootageURL != "" {
			footage.Clips = append(footage.Clips, clip{Asset: asset{Type: "video", Src: sc.FootageURL}, Start: start, Length: length})
		} else {
			footage.Clips = append(footage.Clips, clip{Asset: asset{Type: "title", Text: sc.Description, Style: "minimal"}, Start: start, Length: length})
		}
		if text := strings.TrimSpace(sc.Narration); text != "" {
			captions.Clips = append(captions.Clips, clip{Asset: asset{Type: "title", Text: text, Style: "subtitle"}, Start: start, Length: length})
		}
		start += length
	}
	if len(footage.Clips) == 0 {
		footage.Clips = []clip{{Asset: asset{Type: "title", Text: job.Title, Style: "minimal"}, Length: defaultSceneSeconds}}
	}
	e := Edit{Output: output{Format: "mp4", Resolution: "hd"}}
	if len(captions.Clips) > 0 {
		e.Timeline.Tracks = append(e.Timeline.Tracks, captions)
	}
	e.Timeline.Tracks = append(e.Timeline.Tracks, footage)
	if job.AudioURL != "" {
		e.Timeline.Soundtrack = &soundtrack{Src: job.AudioURL}
	}
	return e
}

func (c *HTTPClient) header() http.Header {
	h := http.Header{}
	h.Set("x-api-key", c.apiKey)
	return h
}

// Submit queues an edit and returns the provider's render id.
func (c *HTTPClient) Submit(ctx context.Context, job Job) (string, error) {
	var out struct {
		Success  bool   `json:"success"`
		Message  string `json:"message"`
		Response struct {
			ID string `json:"id"`
		} `json:"response"`
	}
	err := c.api.DoJSON(ctx, apiclient.Request{
		Op:     "render submit",
		Method: http.MethodPost,
		URL:    c.baseURL + "/render",
		Header: c.header(),
	}, BuildEdit(job), &out)
	if err != nil {
		return "", err
	}
	if out.Response.ID == "" {
		return "", fmt.Errorf("render submit: no id in response (%s)", out.Message)
	}
	return out.Response.ID, nil
}

// Status fetches the current state of a render.
func (c *HTTPClient) Status(ctx context.Context, renderID string) (Status, error) {
	if strings.TrimSpace(renderID) == "" || IsMockID(renderID) {
		return Status{}, fmt.Errorf("%w: %q", ErrInvalidRenderID, renderID)
	}
	var out struct {
		Response struct {
			ID        string  `json:"id"`
			Status    string  `json:"status"`
			URL       string  `json:"url"`
			Poster    string  `json:"poster"`
			Thumbnail string  `json:"thumbnail"`
			Duration  float64 `json:"duration"`
			Error     string  `json:"error"`
		} `json:"response"`
	}
	err := c.api.DoJSON(ctx, apiclient.Request{
		Op:     "render status",
		Method: http.MethodGet,
		URL:    c.baseURL + "/render/" + url.PathEscape(renderID),
		Header: c.header(),
	}, nil, &out)
	if err != nil {
		return Status{}, err
	}
	r := out.Response
	st := Status{ID: renderID, Label: strings.ToLower(r.Status), URL: r.URL, Duration: r.Duration, Error: r.Error}
	st.ThumbnailURL = r.Thumbnail
	if st.ThumbnailURL == "" {
		st.ThumbnailURL = r.Poster
	}
	if st.Label == "" {
		st.Label = LabelQueued
	}
	return st, nil
}
