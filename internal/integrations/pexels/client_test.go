package pexels

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartvid/smartvid/internal/integrations/apiclient"
	"github.com/smartvid/smartvid/internal/retry"
)

const searchBody = `{"videos":[
 {"id":1,"url":"https://pexels.com/v/1","image":"https://img/1.jpg","duration":12,"width":3840,"height":2160,
  "user":{"name":"Ann"},
  "video_files":[
   {"quality":"uhd","file_type":"video/mp4","width":3840,"height":2160,"link":"https://f/1-4k.mp4"},
   {"quality":"hd","file_type":"video/mp4","width":1920,"height":1080,"link":"https://f/1-1080.mp4"},
   {"quality":"hd","file_type":"video/mp4","width":1280,"height":720,"link":"https://f/1-720.mp4"},
   {"quality":"sd","file_type":"video/mp4","width":640,"height":360,"link":"https://f/1-360.mp4"}]},
 {"id":2,"url":"https://pexels.com/v/2","image":"https://img/2.jpg","duration":8,"width":3840,"height":2160,
  "user":{"name":"Bo"},
  "video_files":[{"quality":"uhd","file_type":"video/mp4","width":3840,"height":2160,"link":"https://f/2-4k.mp4"}]}
]}`

func TestSearchNormalises(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/videos/search", r.URL.Path)
		assert.Equal(t, "k", r.Header.Get("Authorization"))
		assert.Equal(t, "ocean waves", r.URL.Query().Get("query"))
		assert.Equal(t, "80", r.URL.Query().Get("per_page"))
		assert.Equal(t, "portrait", r.URL.Query().Get("orientation"))
		_, _ = w.Write([]byte(searchBody))
	}))
	defer srv.Close()

	c := NewClient("k", &apiclient.Client{HTTP: srv.Client(), Retry: retry.Policy{MaxAttempts: 1}}).WithBaseURL(srv.URL)
	videos, err := c.Search(context.Background(), SearchParams{Query: " ocean waves ", PerPage: 500, Orientation: "portrait"})
	require.NoError(t, err)
	require.Len(t, videos, 1, "hits without a usable file are dropped")
	v := videos[0]
	assert.Equal(t, int64(1), v.ID)
	assert.Equal(t, "https://f/1-1080.mp4", v.FileURL)
	assert.Equal(t, 1920, v.Width)
	assert.Equal(t, "Ann", v.User)
}

func TestSearchRequiresQuery(t *testing.T) {
	_, err := NewClient("k", nil).Search(context.Background(), SearchParams{})
	assert.Error(t, err)
}

func TestBestFilePrefersHD(t *testing.T) {
	f, ok := BestFile([]File{
		{Quality: "sd", FileType: "video/mp4", Width: 960, Link: "sd"},
		{Quality: "hd", FileType: "video/mp4", Width: 1280, Link: "hd"},
	})
	require.True(t, ok)
	assert.Equal(t, "hd", f.Link)

	f, ok = BestFile([]File{{Quality: "sd", Width: 640, Link: "only"}})
	require.True(t, ok)
	assert.Equal(t, "only", f.Link)

	_, ok = BestFile(nil)
	assert.False(t, ok)
}
