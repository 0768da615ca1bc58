// Package sitemap renders the public sitemap.xml: the marketing pages plus
// every published blog post.
package sitemap

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/smartvid/smartvid/internal/repository"
)

const xmlns = "http://www.sitemaps.org/schemas/sitemap/0.9"

// StaticRoute is a marketing page listed in every sitemap.
type StaticRoute struct {
	Path       string
	ChangeFreq string
	Priority   float64
}

// StaticRoutes are the pages served by the web app.
var StaticRoutes = []StaticRoute{
	{"/", "weekly", 1.0},
	{"/pricing", "monthly", 0.9},
	{"/blog", "daily", 0.8},
	{"/features", "monthly", 0.8},
	{"/templates", "weekly", 0.7},
	{"/auth", "yearly", 0.5},
	{"/about", "monthly", 0.5},
	{"/contact", "yearly", 0.4},
	{"/privacy", "yearly", 0.3},
	{"/terms", "yearly", 0.3},
}

// PostSource lists published blog posts.
type PostSource interface {
	PublishedSlugs(ctx context.Context) ([]repository.SitemapEntry, error)
}

type urlset struct {
	XMLName xml.Name `xml:"urlset"`
	Xmlns   string   `xml:"xmlns,attr"`
	URLs    []url    `xml:"url"`
}

type url struct {
	Loc        string `xml:"loc"`
	LastMod    string `xml:"lastmod,omitempty"`
	ChangeFreq string `xml:"changefreq,omitempty"`
	Priority   string `xml:"priority,omitempty"`
}

// Generator builds sitemaps for one site.
type Generator struct {
	SiteURL string
	Posts   PostSource
	Now     func() time.Time
}

// New returns a Generator rooted at siteURL.  posts may be nil.
func New(siteURL string, posts PostSource) *Generator {
	return &Generator{SiteURL: strings.TrimRight(siteURL, "/"), Posts: posts, Now: time.Now}
}

// Build returns the complete XML document.
func (g *Generator) Build(ctx context.Context) ([]byte, error) {
	today := g.Now().UTC().Format("2006-01-02")
	set := urlset{Xmlns: xmlns}
	for _, r := range StaticRoutes {
		set.URLs = append(set.URLs, url{
			Loc:        g.SiteURL + r.Path,
			LastMod:    today,
			ChangeFreq: r.ChangeFreq,
			Priority:   fmt.Sprintf("%.1f", r.Priority),
		})
	}
	if g.Posts != nil {
		posts, err := g.Posts.PublishedSlugs(ctx)
		if err != nil {
			return nil, fmt.Errorf("sitemap: list posts: %w", err)
		}
		for _, p := range posts {
			set.URLs = append(set.URLs, url{
				Loc:        g.SiteURL + "/blog/" + p.Slug,
				LastMod:    p.UpdatedAt.UTC().Format("2006-01-02"),
				ChangeFreq: "monthly",
				Priority:   "0.6",
			})
		}
	}
	body, err := xml.MarshalIndent(set, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), append(body, '\n')...), nil
}

// Write builds the document and writes it to w.
func (g *Generator) Write(ctx context.Context, w io.Writer) error {
	doc, err := g.Build(ctx)
	if err != nil {
		return err
	}
	_, err = w.Write(doc)
	return err
}
