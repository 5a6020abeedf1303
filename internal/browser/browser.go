// Package browser drives a Chrome instance over the DevTools protocol and
// snapshots its active tab for extraction.
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/jusia/internal/page"
)

// ErrNoActivePage is returned when the browser has no tab to read from.
var ErrNoActivePage = errors.New("no active tab found")

// Config selects how the session reaches Chrome.
type Config struct {
	// ControlURL attaches to a running Chrome, e.g. "127.0.0.1:9222" or a
	// ws:// DevTools URL. Empty launches a new browser.
	ControlURL string
	Headless   bool
	ProxyURL   string
	// Timeout bounds page loads. Zero means no limit.
	Timeout time.Duration
}

// Session is one connection to a browser. The tab most recently opened
// through Open is the active page; otherwise the first regular tab is.
type Session struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	timeout  time.Duration

	mu      sync.Mutex
	current *rod.Page
}

// New attaches to cfg.ControlURL or launches a browser.
func New(ctx context.Context, cfg Config) (*Session, error) {
	var (
		controlURL string
		l          *launcher.Launcher
		err        error
	)
	if strings.TrimSpace(cfg.ControlURL) != "" {
		controlURL, err = launcher.ResolveURL(cfg.ControlURL)
		if err != nil {
			return nil, fmt.Errorf("resolve browser control url: %w", err)
		}
	} else {
		l = launcher.New().Headless(cfg.Headless)
		if cfg.ProxyURL != "" {
			l = l.Proxy(cfg.ProxyURL)
		}
		controlURL, err = l.Context(ctx).Launch()
		if err != nil {
			return nil, fmt.Errorf("launch browser: %w", err)
		}
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		if l != nil {
			l.Kill()
		}
		return nil, fmt.Errorf("connect browser: %w", err)
	}
	log.Debug().Str("url", controlURL).Bool("launched", l != nil).Msg("browser connected")
	return &Session{browser: b, launcher: l, timeout: cfg.Timeout}, nil
}

// Open navigates a new tab to url, waits for it to load and makes it the
// active page. The tab opened by the previous call is closed.
func (s *Session) Open(ctx context.Context, url string) (*page.Document, error) {
	p, err := s.browser.Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		return nil, fmt.Errorf("open tab: %w", err)
	}
	waiter := p.Context(ctx)
	if s.timeout > 0 {
		waiter = waiter.Timeout(s.timeout)
	}
	if err := waiter.WaitLoad(); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("load %s: %w", url, err)
	}

	if prev := s.swapCurrent(p); prev != nil && prev != p {
		if err := prev.Close(); err != nil {
			log.Debug().Err(err).Msg("close previous tab")
		}
	}
	return s.snapshot(ctx, p)
}

// swapCurrent makes p the active tab and returns the one it replaces.
func (s *Session) swapCurrent(p *rod.Page) *rod.Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.current
	s.current = p
	return prev
}

// ActivePage snapshots the active tab.
func (s *Session) ActivePage(ctx context.Context) (*page.Document, error) {
	s.mu.Lock()
	p := s.current
	s.mu.Unlock()
	if p == nil {
		pages, err := s.browser.Context(ctx).Pages()
		if err != nil {
			return nil, fmt.Errorf("list tabs: %w", err)
		}
		for _, candidate := range pages {
			info, err := candidate.Info()
			if err != nil || !usableURL(info.URL) {
				continue
			}
			p = candidate
			break
		}
	}
	if p == nil {
		return nil, ErrNoActivePage
	}
	return s.snapshot(ctx, p)
}

func (s *Session) snapshot(ctx context.Context, p *rod.Page) (*page.Document, error) {
	p = p.Context(ctx)
	html, err := p.HTML()
	if err != nil {
		return nil, fmt.Errorf("read page html: %w", err)
	}
	doc, err := page.ParseString(html)
	if err != nil {
		return nil, err
	}
	if info, err := p.Info(); err == nil {
		doc.URL = info.URL
	}
	return doc.WithFrames(s.frames(ctx, p)), nil
}

// frames resolves iframes of p by id through the live DOM. Frames that the
// protocol cannot enter are reported as inaccessible.
func (s *Session) frames(ctx context.Context, p *rod.Page) page.FrameResolver {
	return func(ref page.FrameRef) (*page.Document, error) {
		els, err := p.Elements("iframe")
		if err != nil {
			return nil, fmt.Errorf("list frames: %w", err)
		}
		for _, el := range els {
			id, err := el.Attribute("id")
			if err != nil || id == nil || *id != ref.ID {
				continue
			}
			inner, err := el.Frame()
			if err != nil {
				return nil, fmt.Errorf("%w: %v", page.ErrFrameInaccessible, err)
			}
			return s.snapshot(ctx, inner)
		}
		return nil, page.ErrFrameInaccessible
	}
}

// Close disconnects. A browser started by New is shut down; an attached one
// is left running with only the tab opened by Open closed.
func (s *Session) Close() error {
	if s.launcher == nil {
		if p := s.swapCurrent(nil); p != nil {
			return p.Close()
		}
		return nil
	}
	err := s.browser.Close()
	s.launcher.Kill()
	return err
}

// usableURL filters out blank and browser-internal tabs.
func usableURL(u string) bool {
	u = strings.ToLower(strings.TrimSpace(u))
	if u == "" || u == "about:blank" {
		return false
	}
	for _, prefix := range []string{"chrome://", "chrome-extension://", "devtools://", "edge://"} {
		if strings.HasPrefix(u, prefix) {
			return false
		}
	}
	return true
}
