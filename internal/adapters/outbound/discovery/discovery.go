// Package discovery finds the pages of a site from its sitemaps, filtered
// by robots.txt. Without a sitemap it falls back to the links on the home page.
package discovery

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/temoto/robotstxt"
	"golang.org/x/net/html"

	"github.com/a11ykraft/a11ykraft/internal/adapters/outbound/logging"
	"github.com/a11ykraft/a11ykraft/internal/domain"
)

const (
	maxIndexDepth  = 3
	maxSitemapSize = 50 << 20
	robotsAgent    = "a11ykraft"
)

var defaultSitemaps = []string{"/sitemap.xml", "/sitemap_index.xml", "/sitemaps.xml"}

type urlSet struct {
	URLs []struct {
		Loc string `xml:"loc"`
	} `xml:"url"`
}

type sitemapIndex struct {
	Sitemaps []struct {
		Loc string `xml:"loc"`
	} `xml:"sitemap"`
}

// Discoverer implements domain.PageDiscoverer.
type Discoverer struct {
	client    *http.Client
	userAgent string
	log       logrus.FieldLogger
}

// New creates a Discoverer. A nil client uses http.DefaultClient.
func New(client *http.Client, userAgent string, log logrus.FieldLogger) *Discoverer {
	if client == nil {
		client = http.DefaultClient
	}
	if userAgent == "" {
		userAgent = robotsAgent
	}
	if log == nil {
		log = logging.Discard()
	}
	return &Discoverer{client: client, userAgent: userAgent, log: log.WithField("component", "discovery")}
}

// crawl is the state of one Discover call.
type crawl struct {
	base   *url.URL
	group  *robotstxt.Group
	limit  int
	seen   map[string]bool
	pages  []domain.PageTarget
	walked map[string]bool
}

func (c *crawl) full() bool { return c.limit > 0 && len(c.pages) >= c.limit }

// add records a same-host page allowed by robots.txt.
func (c *crawl) add(raw, from string, depth int) {
	if c.full() {
		return
	}
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return
	}
	u = c.base.ResolveReference(u)
	if (u.Scheme != "http" && u.Scheme != "https") || !strings.EqualFold(u.Host, c.base.Host) {
		return
	}
	u.Fragment = ""
	key := u.String()
	if c.seen[key] {
		return
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if c.group != nil && !c.group.Test(path) {
		return
	}
	c.seen[key] = true
	c.pages = append(c.pages, domain.PageTarget{URL: key, Depth: depth, DiscoveredFrom: from})
}

// Discover returns up to limit pages of siteURL (no limit when limit <= 0).
// The site URL itself is returned when nothing else is found.
func (d *Discoverer) Discover(ctx context.Context, siteURL string, limit int) ([]domain.PageTarget, error) {
	base, err := url.Parse(strings.TrimSpace(siteURL))
	if err != nil || (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return nil, domain.NewError(domain.KindInvalidTarget, fmt.Sprintf("invalid site url %q", siteURL), err)
	}

	c := &crawl{base: base, limit: limit, seen: map[string]bool{}, walked: map[string]bool{}}

	robots := d.robots(ctx, base)
	var candidates []string
	if robots != nil {
		c.group = robots.FindGroup(robotsAgent)
		candidates = append(candidates, robots.Sitemaps...)
	}
	for _, p := range defaultSitemaps {
		candidates = append(candidates, base.ResolveReference(&url.URL{Path: p}).String())
	}

	for _, sm := range candidates {
		if c.full() || ctx.Err() != nil {
			break
		}
		if d.walkSitemap(ctx, c, sm, 0) {
			break
		}
	}

	if len(c.pages) == 0 && ctx.Err() == nil {
		d.homeLinks(ctx, c)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(c.pages) == 0 {
		c.pages = append(c.pages, domain.PageTarget{URL: base.String()})
	}

	d.log.WithFields(logrus.Fields{"site": base.String(), "pages": len(c.pages)}).Info("discovery finished")
	return c.pages, nil
}

func (d *Discoverer) robots(ctx context.Context, base *url.URL) *robotstxt.RobotsData {
	robotsURL := base.ResolveReference(&url.URL{Path: "/robots.txt"}).String()
	status, body, err := d.get(ctx, robotsURL, 1<<20)
	if err != nil {
		d.log.WithError(err).Debug("robots.txt unavailable")
		return nil
	}
	data, err := robotstxt.FromStatusAndBytes(status, body)
	if err != nil {
		d.log.WithError(err).Warn("failed to parse robots.txt")
		return nil
	}
	return data
}

// walkSitemap reads one sitemap or sitemap index and reports whether it
// contributed any page.
func (d *Discoverer) walkSitemap(ctx context.Context, c *crawl, sitemapURL string, depth int) bool {
	if depth > maxIndexDepth || c.walked[sitemapURL] {
		return false
	}
	c.walked[sitemapURL] = true

	status, body, err := d.get(ctx, sitemapURL, maxSitemapSize)
	if err != nil || status != http.StatusOK {
		d.log.WithFields(logrus.Fields{"sitemap": sitemapURL, "status": status}).Debug("sitemap not found")
		return false
	}

	var set urlSet
	if err := xml.Unmarshal(body, &set); err == nil && len(set.URLs) > 0 {
		before := len(c.pages)
		for _, u := range set.URLs {
			c.add(u.Loc, sitemapURL, 1)
		}
		return len(c.pages) > before
	}

	var index sitemapIndex
	if err := xml.Unmarshal(body, &index); err == nil && len(index.Sitemaps) > 0 {
		found := false
		for _, sm := range index.Sitemaps {
			if c.full() || ctx.Err() != nil {
				break
			}
			if d.walkSitemap(ctx, c, strings.TrimSpace(sm.Loc), depth+1) {
				found = true
			}
		}
		return found
	}

	d.log.WithField("sitemap", sitemapURL).Warn("failed to parse sitemap")
	return false
}

// homeLinks adds the home page and the same-host links it contains.
func (d *Discoverer) homeLinks(ctx context.Context, c *crawl) {
	home := c.base.String()
	status, body, err := d.get(ctx, home, 10<<20)
	if err != nil || status >= http.StatusBadRequest {
		return
	}
	c.add(home, "", 0)

	z := html.NewTokenizer(strings.NewReader(string(body)))
	for !c.full() {
		tt := z.Next()
		if tt == html.ErrorToken {
			return
		}
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			continue
		}
		name, hasAttr := z.TagName()
		if string(name) != "a" || !hasAttr {
			continue
		}
		for {
			key, val, more := z.TagAttr()
			if string(key) == "href" {
				c.add(string(val), home, 1)
				break
			}
			if !more {
				break
			}
		}
	}
}

func (d *Discoverer) get(ctx context.Context, target string, maxBytes int64) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("reading %s: %w", target, err)
	}
	return resp.StatusCode, body, nil
}
