// Package source fetches reference pages and reduces them to plain text
// that can accompany a generation request.
package source

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
	"pkt.systems/pslog"

	"coursegen/internal/config"
)

// Page is the outcome of fetching one URL
type Page struct {
	URL      string
	Title    string
	Content  string
	Err      error
	Duration time.Duration
}

// Fetcher downloads pages with a bounded worker pool
type Fetcher struct {
	httpClient *http.Client
	maxBytes   int64
	maxWords   int
	userAgent  string
	maxWorkers int
	limiter    *rate.Limiter
}

// NewFetcher creates a fetcher from cfg.
func NewFetcher(cfg config.SourceConfig) *Fetcher {
	workers := cfg.MaxWorkers
	if workers < 1 {
		workers = 1
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	return &Fetcher{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
		maxBytes:   cfg.MaxBytes,
		maxWords:   cfg.MaxWords,
		userAgent:  cfg.UserAgent,
		maxWorkers: workers,
		limiter:    rate.NewLimiter(limit, workers),
	}
}

// Fetch downloads urls in parallel. Results keep the order of urls.
func (f *Fetcher) Fetch(ctx context.Context, urls []string) []Page {
	pages := make([]Page, len(urls))
	if len(urls) == 0 {
		return pages
	}

	jobs := make(chan int, len(urls))
	numWorkers := min(f.maxWorkers, len(urls))

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				pages[idx] = f.fetchOne(ctx, urls[idx])
			}
		}()
	}
	for i := range urls {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	log := pslog.Ctx(ctx)
	for _, p := range pages {
		if p.Err != nil {
			log.Warn("source.fetch_failed", "url", p.URL, "err", p.Err)
			continue
		}
		log.Debug("source.fetched", "url", p.URL, "duration", p.Duration)
	}
	return pages
}

func (f *Fetcher) fetchOne(ctx context.Context, rawURL string) Page {
	start := time.Now()
	page := Page{URL: rawURL}
	finish := func(err error) Page {
		page.Err = err
		page.Duration = time.Since(start)
		return page
	}

	if err := f.limiter.Wait(ctx); err != nil {
		return finish(fmt.Errorf("wait for rate limit: %w", err))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return finish(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return finish(fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return finish(fmt.Errorf("HTTP %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return finish(fmt.Errorf("read body: %w", err))
	}

	switch mediaType(resp.Header.Get("Content-Type")) {
	case "text/html", "application/xhtml+xml", "":
		title, text, err := ExtractText(body, f.maxWords)
		if err != nil {
			return finish(fmt.Errorf("extract text: %w", err))
		}
		page.Title, page.Content = title, text
	case "text/plain", "text/markdown":
		page.Content = plainText(string(body), f.maxWords)
	default:
		return finish(fmt.Errorf("unsupported content type: %s", resp.Header.Get("Content-Type")))
	}
	return finish(nil)
}

func mediaType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(contentType)
	}
	return mt
}

// Combine joins the successful pages into one text block, each under a
// header naming its title and URL, and returns the failures.
func Combine(pages []Page) (string, []error) {
	var b strings.Builder
	var errs []error
	for _, p := range pages {
		if p.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.URL, p.Err))
			continue
		}
		if p.Content == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		title := p.Title
		if title == "" {
			title = p.URL
		}
		fmt.Fprintf(&b, "# %s\nSource: %s\n\n%s", title, p.URL, p.Content)
	}
	return b.String(), errs
}
