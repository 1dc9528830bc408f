// Package browser drives a headless Chrome session with anti-detection
// measures and exposes it through the ports the crawl engine consumes.
package browser

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/autoapply/jobscout/internal/scraper"
)

// fallbackUserAgents is the rotation pool used when no pool is configured.
var fallbackUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2 Safari/605.1.15",
}

// stealthScript masks the usual headless fingerprints before any page script
// runs.
const stealthScript = `
Object.defineProperty(navigator, 'webdriver', {
	get: () => undefined
});
Object.defineProperty(navigator, 'plugins', {
	get: () => [1, 2, 3, 4, 5]
});
Object.defineProperty(navigator, 'languages', {
	get: () => ['en-US', 'en']
});
window.chrome = {
	runtime: {}
};
`

// Config holds the launch settings for a browser session.
type Config struct {
	Headless   bool
	UseProxy   bool
	ProxyURL   string
	UserAgents []string
	// ViewportWidth and ViewportHeight default to 1920x1080, the least
	// suspicious desktop size.
	ViewportWidth  int
	ViewportHeight int
}

// Session is a chromedp-backed implementation of scraper.Browser. One session
// owns one browser context at a time; Rotate replaces it wholesale. A session
// is exclusively owned by a single crawl and is not safe for concurrent use.
type Session struct {
	cfg    Config
	logger *zap.Logger
	rng    *rand.Rand

	allocatorCtx    context.Context
	allocatorCancel context.CancelFunc

	browserCtx    context.Context
	browserCancel context.CancelFunc

	mu         sync.Mutex
	lastStatus int
	lastURL    string
}

// NewSession launches Chrome and warms up the first browser context.
func NewSession(cfg Config, logger *zap.Logger) (*Session, error) {
	if len(cfg.UserAgents) == 0 {
		cfg.UserAgents = fallbackUserAgents
	}
	if cfg.ViewportWidth <= 0 || cfg.ViewportHeight <= 0 {
		cfg.ViewportWidth, cfg.ViewportHeight = 1920, 1080
	}

	opts := chromedp.DefaultExecAllocatorOptions[:]
	opts = append(opts,
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(cfg.ViewportWidth, cfg.ViewportHeight),
	)
	if cfg.UseProxy && cfg.ProxyURL != "" {
		opts = append(opts, chromedp.ProxyServer(cfg.ProxyURL))
	}

	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	s := &Session{
		cfg:             cfg,
		logger:          logger,
		rng:             rand.New(rand.NewSource(time.Now().UnixNano())),
		allocatorCtx:    allocatorCtx,
		allocatorCancel: allocatorCancel,
	}
	if err := s.newBrowserContext(); err != nil {
		allocatorCancel()
		return nil, err
	}
	logger.Info("browser session initialized", zap.Bool("headless", cfg.Headless))
	return s, nil
}

func (s *Session) randomUserAgent() string {
	return s.cfg.UserAgents[s.rng.Intn(len(s.cfg.UserAgents))]
}

// newBrowserContext builds a fresh context with a new user agent, viewport
// emulation, and the stealth init script.
func (s *Session) newBrowserContext() error {
	browserCtx, browserCancel := chromedp.NewContext(s.allocatorCtx)

	ua := s.randomUserAgent()
	warmup := chromedp.Tasks{
		network.Enable(),
		emulation.SetUserAgentOverride(ua).WithAcceptLanguage("en-US,en;q=0.5"),
		emulation.SetDeviceMetricsOverride(int64(s.cfg.ViewportWidth), int64(s.cfg.ViewportHeight), 1, false),
		emulation.SetTimezoneOverride("Asia/Kolkata"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(stealthScript).Do(ctx)
			return err
		}),
	}
	if err := chromedp.Run(browserCtx, warmup); err != nil {
		browserCancel()
		return fmt.Errorf("chromedp warmup: %w", err)
	}

	chromedp.ListenTarget(browserCtx, func(ev interface{}) {
		resp, ok := ev.(*network.EventResponseReceived)
		if !ok || resp.Type != network.ResourceTypeDocument {
			return
		}
		s.mu.Lock()
		s.lastStatus = int(resp.Response.Status)
		s.lastURL = resp.Response.URL
		s.mu.Unlock()
	})

	s.browserCtx = browserCtx
	s.browserCancel = browserCancel
	s.logger.Debug("browser context created", zap.String("user_agent", ua))
	return nil
}

// Navigate loads rawURL and reports the document status of the final
// response. The caller's ctx bounds the whole operation alongside timeout.
func (s *Session) Navigate(ctx context.Context, rawURL string, wait scraper.WaitCondition, timeout time.Duration) (scraper.PageInfo, error) {
	s.mu.Lock()
	s.lastStatus = 0
	s.lastURL = ""
	s.mu.Unlock()

	taskCtx, cancelTask := context.WithTimeout(s.browserCtx, timeout)
	defer cancelTask()
	stopForward := forwardCancel(ctx, cancelTask)
	defer stopForward()

	tasks := chromedp.Tasks{
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	}
	if wait == scraper.WaitNetworkIdle {
		// chromedp has no first-class network-idle wait; a short settle
		// pause covers the late XHR content these listing pages load.
		tasks = append(tasks, chromedp.Sleep(2*time.Second))
	}
	if err := chromedp.Run(taskCtx, tasks); err != nil {
		return scraper.PageInfo{}, fmt.Errorf("chromedp navigate: %w", err)
	}

	s.mu.Lock()
	info := scraper.PageInfo{StatusCode: s.lastStatus, FinalURL: s.lastURL}
	s.mu.Unlock()
	if info.FinalURL == "" {
		info.FinalURL = rawURL
	}
	return info, nil
}

// Content returns the full serialized DOM of the current page.
func (s *Session) Content(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var html string
	if err := chromedp.Run(s.browserCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("chromedp content: %w", err)
	}
	return html, nil
}

// Query returns element handles for every node matching selector.
func (s *Session) Query(ctx context.Context, selector string) ([]scraper.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var nodes []*cdp.Node
	err := chromedp.Run(s.browserCtx,
		chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0)))
	if err != nil {
		return nil, fmt.Errorf("chromedp query %q: %w", selector, err)
	}
	out := make([]scraper.Element, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, &element{session: s, node: n})
	}
	return out, nil
}

// Exists reports whether any node matches selector.
func (s *Session) Exists(ctx context.Context, selector string) (bool, error) {
	els, err := s.Query(ctx, selector)
	if err != nil {
		return false, err
	}
	return len(els) > 0, nil
}

// Click clicks the first node matching selector.
func (s *Session) Click(ctx context.Context, selector string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := chromedp.Run(s.browserCtx, chromedp.Click(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("chromedp click %q: %w", selector, err)
	}
	return nil
}

// CurrentURL returns the page's current location.
func (s *Session) CurrentURL(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var loc string
	if err := chromedp.Run(s.browserCtx, chromedp.Location(&loc)); err != nil {
		return "", fmt.Errorf("chromedp location: %w", err)
	}
	return loc, nil
}

// SetCookie installs one cookie on the session, used for platforms that need
// an authenticated session cookie.
func (s *Session) SetCookie(ctx context.Context, name, value, domain string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	action := chromedp.ActionFunc(func(ctx context.Context) error {
		return network.SetCookie(name, value).
			WithDomain(domain).
			WithPath("/").
			WithSecure(true).
			Do(ctx)
	})
	if err := chromedp.Run(s.browserCtx, action); err != nil {
		return fmt.Errorf("chromedp set cookie %q: %w", name, err)
	}
	return nil
}

// Rotate discards the current browser context and replaces it with a fresh
// one under a new user agent. The old context is fully torn down first so no
// handles dangle.
func (s *Session) Rotate(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.browserCancel()
	if err := s.newBrowserContext(); err != nil {
		return fmt.Errorf("rotating browser context: %w", err)
	}
	s.logger.Info("browser context rotated")
	return nil
}

// Close tears down the browser context and the allocator.
func (s *Session) Close(ctx context.Context) error {
	s.browserCancel()
	s.allocatorCancel()
	s.logger.Info("browser session closed")
	return nil
}

// forwardCancel propagates the caller's cancellation into a chromedp task
// context, which descends from the browser context rather than the caller.
func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}

// element is a handle to one DOM node inside the session's current page.
type element struct {
	session *Session
	node    *cdp.Node
}

func (e *element) Text(ctx context.Context, selector string) (string, bool, error) {
	node, ok, err := e.firstChild(ctx, selector)
	if err != nil || !ok {
		return "", false, err
	}
	var text string
	err = chromedp.Run(e.session.browserCtx,
		chromedp.Text([]cdp.NodeID{node.NodeID}, &text, chromedp.ByNodeID))
	if err != nil {
		return "", false, fmt.Errorf("chromedp text %q: %w", selector, err)
	}
	return strings.TrimSpace(text), true, nil
}

func (e *element) Texts(ctx context.Context, selector string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var nodes []*cdp.Node
	err := chromedp.Run(e.session.browserCtx,
		chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.FromNode(e.node), chromedp.AtLeast(0)))
	if err != nil {
		return nil, fmt.Errorf("chromedp texts %q: %w", selector, err)
	}
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		var text string
		if err := chromedp.Run(e.session.browserCtx,
			chromedp.Text([]cdp.NodeID{n.NodeID}, &text, chromedp.ByNodeID)); err != nil {
			continue
		}
		if t := strings.TrimSpace(text); t != "" {
			out = append(out, t)
		}
	}
	return out, nil
}

func (e *element) Attr(ctx context.Context, name string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	return nodeAttribute(e.node, name)
}

func (e *element) AttrOf(ctx context.Context, selector, name string) (string, bool, error) {
	node, ok, err := e.firstChild(ctx, selector)
	if err != nil || !ok {
		return "", false, err
	}
	return nodeAttribute(node, name)
}

func (e *element) firstChild(ctx context.Context, selector string) (*cdp.Node, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	var nodes []*cdp.Node
	err := chromedp.Run(e.session.browserCtx,
		chromedp.Nodes(selector, &nodes, chromedp.ByQuery, chromedp.FromNode(e.node), chromedp.AtLeast(0)))
	if err != nil {
		return nil, false, fmt.Errorf("chromedp child %q: %w", selector, err)
	}
	if len(nodes) == 0 {
		return nil, false, nil
	}
	return nodes[0], true, nil
}

// nodeAttribute reads an attribute from the node snapshot. Attributes are
// stored as a flat name/value list.
func nodeAttribute(n *cdp.Node, name string) (string, bool, error) {
	for i := 0; i+1 < len(n.Attributes); i += 2 {
		if strings.EqualFold(n.Attributes[i], name) {
			return n.Attributes[i+1], true, nil
		}
	}
	return "", false, nil
}
