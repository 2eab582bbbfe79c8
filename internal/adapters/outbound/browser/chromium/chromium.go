// Package chromium drives a real Chromium through the DevTools protocol. Pages
// opened here support script evaluation, element geometry and screenshots.
package chromium

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/sirupsen/logrus"

	"github.com/a11ykraft/a11ykraft/internal/adapters/outbound/logging"
	"github.com/a11ykraft/a11ykraft/internal/domain"
)

// Opener implements domain.PageOpener. It connects to (or launches) one
// browser and opens a fresh tab per page.
type Opener struct {
	cfg domain.BrowserConfig
	log logrus.FieldLogger

	mu      sync.Mutex
	browser *rod.Browser
}

// NewOpener creates an Opener. The browser is connected lazily on the first Open.
func NewOpener(cfg domain.BrowserConfig, log logrus.FieldLogger) *Opener {
	if log == nil {
		log = logging.Discard()
	}
	return &Opener{cfg: cfg, log: log.WithField("component", "rod")}
}

func (o *Opener) connect() (*rod.Browser, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.browser != nil {
		if _, err := (proto.BrowserGetVersion{}).Call(o.browser); err == nil {
			return o.browser, nil
		}
		_ = o.browser.Close()
		o.browser = nil
	}

	controlURL := o.cfg.ControlURL
	if controlURL == "" {
		bin, ok := launcher.LookPath()
		if !ok {
			return nil, errors.New("no local chromium found; set browser.control_url")
		}
		l := launcher.New().
			Bin(bin).
			Headless(o.cfg.Headless).
			NoSandbox(true).
			Set("disable-gpu").
			Set("disable-dev-shm-usage").
			Set("disable-extensions")
		if o.cfg.UserAgent != "" {
			l = l.Set("user-agent", o.cfg.UserAgent)
		}
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("launching browser: %w", err)
		}
		controlURL = u
		o.log.WithField("bin", bin).Debug("browser launched")
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connecting to browser: %w", err)
	}
	o.browser = browser
	return browser, nil
}

// Open creates a tab, navigates to target and waits for the load event.
func (o *Opener) Open(ctx context.Context, target domain.PageTarget) (domain.PageHandle, error) {
	browser, err := o.connect()
	if err != nil {
		return nil, domain.NewError(domain.KindPageHandle, "browser unavailable", err)
	}

	page, err := browser.Context(ctx).Page(proto.TargetCreateTarget{URL: target.URL})
	if err != nil {
		return nil, domain.NewError(domain.KindPageHandle, "opening tab", err)
	}
	if err := page.Context(ctx).WaitLoad(); err != nil {
		_ = page.Close()
		if ctx.Err() != nil {
			return nil, domain.NewError(domain.KindTimeout, "waiting for page load", err)
		}
		return nil, domain.NewError(domain.KindPageHandle, "waiting for page load", err)
	}
	return &Page{url: target.URL, page: page}, nil
}

// Close shuts the browser connection down.
func (o *Opener) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.browser == nil {
		return nil
	}
	err := o.browser.Close()
	o.browser = nil
	return err
}

// Page wraps one browser tab.
type Page struct {
	url    string
	page   *rod.Page
	closed atomic.Bool
}

func (p *Page) URL() string { return p.url }

func (p *Page) HTML(ctx context.Context) (string, error) {
	raw, err := p.eval(ctx, outerHTMLScript)
	if err != nil {
		return "", err
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("decoding document html: %w", err)
	}
	return s, nil
}

// Evaluate runs a function expression and returns its JSON value. Promises
// are awaited.
func (p *Page) Evaluate(ctx context.Context, script string) (json.RawMessage, error) {
	return p.eval(ctx, script)
}

func (p *Page) eval(ctx context.Context, script string, args ...any) (json.RawMessage, error) {
	if p.closed.Load() {
		return nil, domain.ErrPageClosed
	}
	obj, err := p.page.Context(ctx).Eval(script, args...)
	if err != nil {
		return nil, p.wrap("evaluating script", err)
	}
	raw, err := json.Marshal(obj.Value)
	if err != nil {
		return nil, fmt.Errorf("encoding script result: %w", err)
	}
	return raw, nil
}

func (p *Page) BoundingBox(ctx context.Context, selector string) (*domain.BoundingBox, error) {
	raw, err := p.eval(ctx, boundingBoxScript, selector)
	if err != nil {
		return nil, err
	}
	return DecodeBox(raw)
}

// Screenshot captures the first element matching selector as PNG.
func (p *Page) Screenshot(ctx context.Context, selector string) ([]byte, error) {
	if p.closed.Load() {
		return nil, domain.ErrPageClosed
	}
	els, err := p.page.Context(ctx).Elements(selector)
	if err != nil {
		return nil, p.wrap("querying element", err)
	}
	if len(els) == 0 {
		return nil, fmt.Errorf("no element matches %q", selector)
	}
	png, err := els[0].Screenshot(proto.PageCaptureScreenshotFormatPng, 0)
	if err != nil {
		return nil, p.wrap("capturing element", err)
	}
	return png, nil
}

func (p *Page) ResolveSelector(ctx context.Context, selector string) (string, error) {
	raw, err := p.eval(ctx, cssPathScript, selector)
	if err != nil {
		return "", err
	}
	var path string
	if err := json.Unmarshal(raw, &path); err != nil || path == "" {
		return "", fmt.Errorf("no element matches %q", selector)
	}
	return path, nil
}

func (p *Page) Closed() bool { return p.closed.Load() }

func (p *Page) Close() error {
	if p.closed.Swap(true) {
		return nil
	}
	return p.page.Close()
}

func (p *Page) wrap(msg string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return domain.NewError(domain.KindTimeout, msg, err)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// DecodeBox converts the result of the bounding box script.
func DecodeBox(raw json.RawMessage) (*domain.BoundingBox, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, errors.New("element not found")
	}
	var box domain.BoundingBox
	if err := json.Unmarshal(raw, &box); err != nil {
		return nil, fmt.Errorf("decoding bounding box: %w", err)
	}
	return &box, nil
}

const outerHTMLScript = `() => document.documentElement.outerHTML`

const boundingBoxScript = `(sel) => {
	const el = document.querySelector(sel);
	if (!el) return null;
	const r = el.getBoundingClientRect();
	return { x: r.x + window.scrollX, y: r.y + window.scrollY, width: r.width, height: r.height };
}`

const cssPathScript = `(sel) => {
	const el = document.querySelector(sel);
	if (!el) return "";
	const parts = [];
	for (let n = el; n && n.nodeType === 1; n = n.parentElement) {
		if (n.id && document.querySelectorAll("#" + CSS.escape(n.id)).length === 1) {
			parts.unshift("#" + CSS.escape(n.id));
			break;
		}
		const tag = n.localName;
		const parent = n.parentElement;
		if (!parent) { parts.unshift(tag); break; }
		const same = Array.from(parent.children).filter(c => c.localName === tag);
		parts.unshift(same.length === 1 ? tag : tag + ":nth-of-type(" + (same.indexOf(n) + 1) + ")");
	}
	return parts.join(" > ");
}`
