// Package headless renders client-side pages with headless Chrome so that
// backlinks injected by JavaScript become visible to the verifier.
package headless

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"golang.org/x/sync/semaphore"

	"github.com/backlinkoo/blog-engine/internal/verify"
)

const (
	defaultNavigationTimeout = 45 * time.Second
	defaultSettleDelay       = 500 * time.Millisecond
)

// scrollToEnd brings footers and lazy widgets, where backlinks usually sit,
// into the viewport.
const scrollToEnd = `window.scrollTo(0, document.body ? document.body.scrollHeight : 0)`

// Config controls the behavior of the headless fetcher.
type Config struct {
	// MaxParallel caps concurrent tabs. Zero means unlimited.
	MaxParallel       int
	UserAgent         string
	NavigationTimeout time.Duration
	// SettleDelay is how long scripts may run after the page is scrolled.
	SettleDelay time.Duration
}

// Fetcher implements verify.Fetcher using chromedp and headless Chrome.
type Fetcher struct {
	cfg         Config
	slots       *semaphore.Weighted
	allocator   context.Context
	allocCancel context.CancelFunc
}

// NewChromedp creates a headless fetcher backed by chromedp. The browser is
// started lazily on the first fetch.
func NewChromedp(cfg Config) (*Fetcher, error) {
	if cfg.MaxParallel < 0 {
		return nil, fmt.Errorf("max parallel must be >= 0")
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = defaultNavigationTimeout
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = defaultSettleDelay
	}

	f := &Fetcher{cfg: cfg}
	if cfg.MaxParallel > 0 {
		f.slots = semaphore.NewWeighted(int64(cfg.MaxParallel))
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("blink-settings", "imagesEnabled=false"),
	)
	f.allocator, f.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	return f, nil
}

// Close shuts the browser down.
func (f *Fetcher) Close() {
	f.allocCancel()
}

// Fetch loads the page in a fresh tab, scrolls it to the end and returns the
// rendered DOM with the document's status, headers and redirect chain.
func (f *Fetcher) Fetch(ctx context.Context, request verify.FetchRequest) (verify.FetchResponse, error) {
	if f.slots != nil {
		if err := f.slots.Acquire(ctx, 1); err != nil {
			return verify.FetchResponse{}, fmt.Errorf("headless slot wait canceled: %w", err)
		}
		defer f.slots.Release(1)
	}

	tabCtx, closeTab := chromedp.NewContext(f.allocator)
	defer closeTab()
	tabCtx, cancel := context.WithTimeout(tabCtx, f.cfg.NavigationTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	doc := &documentTracker{}
	chromedp.ListenTarget(tabCtx, doc.observe)

	start := time.Now()
	var html, location string
	err := chromedp.Run(tabCtx,
		f.prepare(request.Headers),
		chromedp.Navigate(request.URL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Evaluate(scrollToEnd, nil),
		chromedp.Sleep(f.cfg.SettleDelay),
		chromedp.Location(&location),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return verify.FetchResponse{}, fmt.Errorf("render %s: %w", request.URL, err)
	}

	resp := doc.response(request.URL, location)
	resp.Body = []byte(html)
	resp.Duration = time.Since(start)
	resp.UsedHeadless = true
	return resp, nil
}

// prepare enables network events and applies the user agent and extra
// request headers to the tab.
func (f *Fetcher) prepare(headers http.Header) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if f.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(f.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		if extra := toNetworkHeaders(headers); len(extra) > 0 {
			if err := network.SetExtraHTTPHeaders(extra).Do(ctx); err != nil {
				return fmt.Errorf("set extra headers: %w", err)
			}
		}
		return nil
	})
}

// documentTracker records what the browser saw of the top-level document.
// Subresource events are ignored.
type documentTracker struct {
	mu        sync.Mutex
	last      *network.Response
	redirects []string
}

func (d *documentTracker) observe(ev any) {
	switch e := ev.(type) {
	case *network.EventResponseReceived:
		if e.Type == network.ResourceTypeDocument && e.Response != nil {
			d.mu.Lock()
			d.last = e.Response
			d.mu.Unlock()
		}
	case *network.EventRequestWillBeSent:
		if e.Type == network.ResourceTypeDocument && e.RedirectResponse != nil {
			d.mu.Lock()
			d.redirects = append(d.redirects, e.RedirectResponse.URL)
			d.mu.Unlock()
		}
	}
}

// response builds the fetch metadata. When no document response was seen
// the page is reported as a 200 at the browser's final location.
func (d *documentTracker) response(requestURL, location string) verify.FetchResponse {
	d.mu.Lock()
	defer d.mu.Unlock()

	resp := verify.FetchResponse{
		URL:        location,
		StatusCode: http.StatusOK,
		Headers:    http.Header{},
	}
	if resp.URL == "" {
		resp.URL = requestURL
	}
	if d.last != nil {
		if d.last.Status != 0 {
			resp.StatusCode = int(d.last.Status)
		}
		if d.last.URL != "" {
			resp.URL = d.last.URL
		}
		resp.Headers = fromNetworkHeaders(d.last.Headers)
	}
	if len(d.redirects) > 0 {
		resp.RedirectChain = append([]string(nil), d.redirects...)
	}
	return resp
}

func fromNetworkHeaders(in network.Headers) http.Header {
	out := http.Header{}
	for key, value := range in {
		if list, ok := value.([]any); ok {
			for _, entry := range list {
				out.Add(key, fmt.Sprint(entry))
			}
			continue
		}
		out.Add(key, fmt.Sprint(value))
	}
	return out
}

func toNetworkHeaders(h http.Header) network.Headers {
	headers := network.Headers{}
	for key, values := range h {
		switch len(values) {
		case 0:
		case 1:
			headers[key] = values[0]
		default:
			headers[key] = append([]string(nil), values...)
		}
	}
	return headers
}
