package sitemap

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartvid/smartvid/internal/repository"
)

type fakePosts struct {
	entries []repository.SitemapEntry
	err     error
}

func (f fakePosts) PublishedSlugs(context.Context) ([]repository.SitemapEntry, error) {
	return f.entries, f.err
}

func fixedNow() time.Time { return time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC) }

func TestBuild(t *testing.T) {
	g := New("https://smartvid.example/", fakePosts{entries: []repository.SitemapEntry{
		{Slug: "launch", UpdatedAt: time.Date(2024, 3, 9, 23, 0, 0, 0, time.UTC)},
	}})
	g.Now = fixedNow

	doc, err := g.Build(context.Background())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(doc, []byte(xml.Header)))

	var set urlset
	require.NoError(t, xml.Unmarshal(doc, &set))
	assert.Equal(t, xmlns, set.Xmlns)
	require.Len(t, set.URLs, len(StaticRoutes)+1)
	assert.Equal(t, "https://smartvid.example/", set.URLs[0].Loc)
	assert.Equal(t, "2024-05-01", set.URLs[0].LastMod)
	assert.Equal(t, "1.0", set.URLs[0].Priority)

	last := set.URLs[len(set.URLs)-1]
	assert.Equal(t, "https://smartvid.example/blog/launch", last.Loc)
	assert.Equal(t, "2024-03-09", last.LastMod)
}

func TestBuildWithoutPosts(t *testing.T) {
	g := New("http://localhost:5173", nil)
	g.Now = fixedNow
	var buf bytes.Buffer
	require.NoError(t, g.Write(context.Background(), &buf))
	assert.Contains(t, buf.String(), "<loc>http://localhost:5173/terms</loc>")
	assert.NotContains(t, buf.String(), "/blog/")
}

func TestBuildPostError(t *testing.T) {
	g := New("http://x", fakePosts{err: errors.New("db down")})
	_, err := g.Build(context.Background())
	assert.ErrorContains(t, err, "db down")
}
