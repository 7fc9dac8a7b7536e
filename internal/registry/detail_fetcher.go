package registry

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
)

// FetcherConfig controls the detail page fetcher.
type FetcherConfig struct {
	// BaseURL is the register root, e.g. https://register.example.gov.au.
	BaseURL string
	// DetailPath is the detail endpoint under BaseURL; the registration ID
	// is appended.
	DetailPath string
	Timeout    time.Duration
	// UserAgents are rotated every RotateEvery requests. Empty means a
	// single static agent.
	UserAgents  []string
	RotateEvery int
}

func (c *FetcherConfig) applyDefaults() {
	if c.DetailPath == "" {
		c.DetailPath = "/registers/practitioner/"
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.RotateEvery <= 0 {
		c.RotateEvery = 10
	}
	if len(c.UserAgents) == 0 {
		c.UserAgents = defaultUserAgents()
	}
}

func defaultUserAgents() []string {
	return []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:127.0) Gecko/20100101 Firefox/127.0",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.5 Safari/605.1.15",
	}
}

// Fetcher retrieves detail pages with colly, keeping a browsing session
// (cookies, rotating user agent) the register's edge protection accepts.
type Fetcher struct {
	cfg           FetcherConfig
	transport     http.RoundTripper
	baseCollector *colly.Collector
	requests      int
	agentIndex    int
}

// NewFetcher builds a detail fetcher.
func NewFetcher(cfg FetcherConfig) *Fetcher {
	cfg.applyDefaults()
	f := &Fetcher{cfg: cfg, transport: newHTTPTransport()}
	f.resetCollector()
	return f
}

func (f *Fetcher) resetCollector() {
	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = false
	// Retry passes refetch the same detail URL.
	c.AllowURLRevisit = true
	c.WithTransport(f.transport)
	c.SetRequestTimeout(f.cfg.Timeout)
	f.baseCollector = c
}

// ResetSession discards cookies and rotates the user agent, called after a
// long cooldown so the next request looks like a fresh visitor.
func (f *Fetcher) ResetSession() {
	f.agentIndex = (f.agentIndex + 1) % len(f.cfg.UserAgents)
	f.requests = 0
	f.resetCollector()
}

// Fetch retrieves the detail page for regID. Block pages return ErrBlocked.
func (f *Fetcher) Fetch(ctx context.Context, regID string) ([]byte, error) {
	f.requests++
	if f.requests%f.cfg.RotateEvery == 0 {
		f.agentIndex = (f.agentIndex + 1) % len(f.cfg.UserAgents)
	}

	collector := f.baseCollector.Clone()
	collector.UserAgent = f.cfg.UserAgents[f.agentIndex]

	var (
		body     []byte
		fetchErr error
	)
	collector.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml")
		r.Headers.Set("Accept-Language", "en-AU,en;q=0.9")
	})
	collector.OnResponse(func(r *colly.Response) {
		body = append([]byte(nil), r.Body...)
	})
	collector.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	url := f.cfg.BaseURL + f.cfg.DetailPath + regID
	if err := f.visit(ctx, collector, url, &fetchErr); err != nil {
		return nil, err
	}
	if IsBlockedBody(body) {
		return nil, ErrBlocked
	}
	return body, nil
}

func (f *Fetcher) visit(ctx context.Context, collector *colly.Collector, url string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("detail fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("visit %s: %w", url, err)
		}
		if *fetchErr != nil {
			return fmt.Errorf("fetch %s: %w", url, *fetchErr)
		}
		return nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
	}
}
