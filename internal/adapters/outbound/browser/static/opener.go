// Package static opens pages by fetching their HTML and parsing it into a
// DOM. It has no layout or script engine, so geometry, screenshots and
// script evaluation are unsupported.
package static

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/a11ykraft/a11ykraft/internal/domain"
)

const (
	maxRedirects     = 5
	maxBodyBytes     = 10 << 20
	defaultUserAgent = "a11ykraft/1.0 (+https://github.com/a11ykraft/a11ykraft)"
)

var (
	errTooManyRedirects = errors.New("too many redirects")
	errBlockedRedirect  = errors.New("redirect to non-http(s) scheme blocked")
)

// NewHTTPClient returns the client used for page and sitemap fetches.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxConnsPerHost:     10,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
		CheckRedirect: redirectPolicy,
	}
}

func redirectPolicy(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return fmt.Errorf("%w: stopped after %d", errTooManyRedirects, maxRedirects)
	}
	if req.URL.Scheme != "http" && req.URL.Scheme != "https" {
		return fmt.Errorf("%w: %s", errBlockedRedirect, req.URL.Scheme)
	}
	return nil
}

// Opener implements domain.PageOpener over plain HTTP and local files.
type Opener struct {
	client    *http.Client
	userAgent string
}

// Option configures an Opener.
type Option func(*Opener)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opener) { o.client = c }
}

// WithUserAgent sets the User-Agent header sent with every fetch.
func WithUserAgent(ua string) Option {
	return func(o *Opener) {
		if ua != "" {
			o.userAgent = ua
		}
	}
}

// NewOpener creates an Opener.
func NewOpener(opts ...Option) *Opener {
	o := &Opener{client: NewHTTPClient(0), userAgent: defaultUserAgent}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Open fetches target and parses it. HTTP status codes of 400 and above are
// page handle errors.
func (o *Opener) Open(ctx context.Context, target domain.PageTarget) (domain.PageHandle, error) {
	u, err := url.Parse(target.URL)
	if err != nil {
		return nil, domain.NewError(domain.KindInvalidTarget, "parsing page url", err)
	}

	var raw []byte
	switch u.Scheme {
	case "http", "https":
		raw, err = o.fetch(ctx, target.URL)
	case "file":
		raw, err = readFile(u)
	default:
		return nil, domain.NewError(domain.KindInvalidTarget, fmt.Sprintf("unsupported scheme %q", u.Scheme), nil)
	}
	if err != nil {
		return nil, err
	}

	page, err := NewPage(target.URL, string(raw))
	if err != nil {
		return nil, err
	}
	return page, nil
}

func (o *Opener) fetch(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, domain.NewError(domain.KindInvalidTarget, "building request", err)
	}
	req.Header.Set("User-Agent", o.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := o.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, domain.NewError(domain.KindTimeout, "fetching page", err)
		}
		return nil, domain.NewError(domain.KindPageHandle, "fetching page", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, domain.NewError(domain.KindPageHandle, fmt.Sprintf("fetching page: status %d", resp.StatusCode), nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, domain.NewError(domain.KindPageHandle, "reading page body", err)
	}
	return body, nil
}

func readFile(u *url.URL) ([]byte, error) {
	path := u.Path
	if path == "" {
		path = u.Opaque
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.NewError(domain.KindPageHandle, "reading page file", err)
	}
	return data, nil
}
