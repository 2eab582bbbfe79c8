package static

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/a11ykraft/a11ykraft/internal/adapters/outbound/htmldom"
	"github.com/a11ykraft/a11ykraft/internal/domain"
)

// Page is a parsed, immutable snapshot of a fetched document.
type Page struct {
	url    string
	source string
	doc    *html.Node
	closed atomic.Bool
}

// NewPage parses source into a Page. It is used for pages whose HTML was
// obtained elsewhere.
func NewPage(pageURL, source string) (*Page, error) {
	doc, err := html.Parse(strings.NewReader(source))
	if err != nil {
		return nil, domain.NewError(domain.KindPageHandle, "parsing page html", err)
	}
	return &Page{url: pageURL, source: source, doc: doc}, nil
}

func (p *Page) URL() string { return p.url }

func (p *Page) HTML(ctx context.Context) (string, error) {
	if p.closed.Load() {
		return "", domain.ErrPageClosed
	}
	return p.source, nil
}

// Document returns the parsed tree. Callers must not modify it.
func (p *Page) Document() (*html.Node, error) {
	if p.closed.Load() {
		return nil, domain.ErrPageClosed
	}
	return p.doc, nil
}

func (p *Page) Evaluate(ctx context.Context, script string) (json.RawMessage, error) {
	return nil, domain.ErrUnsupported
}

func (p *Page) BoundingBox(ctx context.Context, selector string) (*domain.BoundingBox, error) {
	return nil, domain.ErrUnsupported
}

func (p *Page) Screenshot(ctx context.Context, selector string) ([]byte, error) {
	return nil, domain.ErrUnsupported
}

// ResolveSelector returns a unique CSS path for the first element matching selector.
func (p *Page) ResolveSelector(ctx context.Context, selector string) (string, error) {
	if p.closed.Load() {
		return "", domain.ErrPageClosed
	}
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return "", fmt.Errorf("compiling selector %q: %w", selector, err)
	}
	n := sel.MatchFirst(p.doc)
	if n == nil {
		return "", fmt.Errorf("no element matches %q", selector)
	}
	return htmldom.CSSPath(n), nil
}

func (p *Page) Closed() bool { return p.closed.Load() }

func (p *Page) Close() error {
	p.closed.Store(true)
	return nil
}
