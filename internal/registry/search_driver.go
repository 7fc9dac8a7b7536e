package registry

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// DriverConfig controls the headless search driver.
type DriverConfig struct {
	// SearchURL is the register's search results endpoint. Query dimensions
	// and the page number are passed as URL parameters.
	SearchURL         string
	UserAgent         string
	NavigationTimeout time.Duration
}

func (c *DriverConfig) applyDefaults() {
	if c.NavigationTimeout <= 0 {
		c.NavigationTimeout = 45 * time.Second
	}
	if c.UserAgent == "" {
		c.UserAgent = defaultUserAgents()[0]
	}
}

// Driver runs register searches in headless Chrome. The results page is
// rendered client-side, so a plain HTTP client never sees the result rows.
type Driver struct {
	cfg DriverConfig
	log *zap.Logger

	allocator   context.Context
	allocCancel context.CancelFunc

	browser       context.Context
	browserCancel context.CancelFunc
}

// NewDriver starts a headless browser allocator. The browser itself launches
// lazily on the first search.
func NewDriver(cfg DriverConfig, log *zap.Logger) (*Driver, error) {
	cfg.applyDefaults()
	if cfg.SearchURL == "" {
		return nil, fmt.Errorf("search url is required")
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
		chromedp.UserAgent(cfg.UserAgent),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Driver{
		cfg:         cfg,
		log:         log,
		allocator:   allocCtx,
		allocCancel: allocCancel,
	}, nil
}

func (d *Driver) ensureBrowser() context.Context {
	if d.browser == nil {
		d.browser, d.browserCancel = chromedp.NewContext(d.allocator)
	}
	return d.browser
}

// Search loads one page of results for q and scrapes the registration IDs
// off it. Block pages return ErrBlocked.
func (d *Driver) Search(ctx context.Context, q Query, page int) (*ResultPage, error) {
	taskCtx, cancel := context.WithTimeout(d.ensureBrowser(), d.cfg.NavigationTimeout)
	defer cancel()
	if err := contextAlive(ctx); err != nil {
		return nil, err
	}

	var (
		ids     []string
		hasNext bool
		body    string
	)
	actions := []chromedp.Action{
		chromedp.Navigate(d.resultsURL(q, page)),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.WaitVisible(".search-results, .no-results, .error-page", chromedp.ByQuery),
		chromedp.OuterHTML("html", &body, chromedp.ByQuery),
		chromedp.Evaluate(
			`Array.from(document.querySelectorAll('.search-results [data-reg-id]')).map(e => e.dataset.regId)`,
			&ids),
		chromedp.Evaluate(
			`document.querySelector('.search-results .pagination a.next:not(.disabled)') !== null`,
			&hasNext),
	}
	if err := chromedp.Run(taskCtx, actions...); err != nil {
		return nil, fmt.Errorf("search %q page %d: %w", q.NamePrefix, page, err)
	}
	if IsBlockedBody([]byte(body)) {
		return nil, ErrBlocked
	}

	d.log.Debug("search page scraped",
		zap.String("prefix", q.NamePrefix),
		zap.Int("page", page),
		zap.Int("ids", len(ids)),
		zap.Bool("has_next", hasNext))
	return &ResultPage{IDs: ids, HasNext: hasNext}, nil
}

func (d *Driver) resultsURL(q Query, page int) string {
	params := url.Values{}
	params.Set("name", q.NamePrefix)
	if q.Profession != "" {
		params.Set("profession", q.Profession)
	}
	if q.State != "" {
		params.Set("state", q.State)
	}
	if q.Suburb != "" {
		params.Set("suburb", q.Suburb)
	}
	if page > 1 {
		params.Set("page", strconv.Itoa(page))
	}
	return d.cfg.SearchURL + "?" + params.Encode()
}

// ResetSession clears cookies and replaces the browser tab, giving the edge
// protection a fresh client after a long cooldown.
func (d *Driver) ResetSession(ctx context.Context) error {
	if d.browser != nil {
		clearCtx, cancel := context.WithTimeout(d.browser, 10*time.Second)
		err := chromedp.Run(clearCtx, network.ClearBrowserCookies())
		cancel()
		if err != nil {
			d.log.Warn("clear cookies failed, dropping browser", zap.Error(err))
		}
		d.browserCancel()
		d.browser = nil
		d.browserCancel = nil
	}
	return contextAlive(ctx)
}

// Close tears down the browser and its allocator.
func (d *Driver) Close() error {
	if d.browserCancel != nil {
		d.browserCancel()
	}
	d.allocCancel()
	return nil
}

func contextAlive(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
