package source

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/zimaxnet/orb-image-harvester/internal/harvest"
	"github.com/zimaxnet/orb-image-harvester/internal/source/ratelimit"
)

const defaultWikipediaBase = "https://en.wikipedia.org/wiki/"

// Wikipedia scrapes the figure's article page and extracts the images
// embedded in it. It is the lowest-effort real source: no API key, no
// structured data, just whatever the article happens to illustrate.
type Wikipedia struct {
	base
	articleBase string
	timeout     time.Duration
}

// WikipediaConfig tunes the adapter; zero values use production defaults.
type WikipediaConfig struct {
	ArticleBase string
	Timeout     time.Duration
}

// NewWikipedia builds the page-scrape adapter.
func NewWikipedia(cfg WikipediaConfig, limiter *ratelimit.Limiter, logger *zap.Logger) *Wikipedia {
	articleBase := cfg.ArticleBase
	if articleBase == "" {
		articleBase = defaultWikipediaBase
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Wikipedia{
		base:        newBase("wikipedia", TierWikipedia, limiter, timeout, logger),
		articleBase: articleBase,
		timeout:     timeout,
	}
}

// Search fetches the article for the figure named in the query and
// pattern-matches the embedded Commons images.
func (w *Wikipedia) Search(ctx context.Context, query string, limit int) ([]harvest.Candidate, error) {
	ok, err := w.acquire(ctx)
	if err != nil || !ok {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	name := quotedName(query)
	pageURL := w.articleBase + strings.ReplaceAll(name, " ", "_")

	collector := colly.NewCollector(
		colly.UserAgent(defaultUserAgent),
		colly.MaxDepth(1),
	)
	collector.SetRequestTimeout(w.timeout)

	var (
		mu    sync.Mutex
		seen  = make(map[string]struct{})
		cands []harvest.Candidate
	)
	collector.OnHTML("img[src]", func(e *colly.HTMLElement) {
		src := e.Request.AbsoluteURL(e.Attr("src"))
		if src == "" || !strings.Contains(src, "/wikipedia/commons/") || !isImageFile(src) {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if _, dup := seen[src]; dup || len(cands) >= max(limit, 1) {
			return
		}
		seen[src] = struct{}{}
		cands = append(cands, harvest.Candidate{
			URL:          src,
			Title:        e.Attr("alt"),
			SourceName:   "Wikipedia",
			LicenseLabel: "Public Domain / Creative Commons",
			Tier:         w.tier,
		})
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode == 429 {
			w.Cooldown(30 * time.Second)
		}
		w.logger.Warn("article scrape failed",
			zap.String("source", w.name),
			zap.String("url", pageURL),
			zap.Error(err),
		)
	})

	if err := collector.Visit(pageURL); err != nil {
		w.logger.Warn("article visit failed", zap.String("url", pageURL), zap.Error(err))
		return nil, ctx.Err()
	}
	collector.Wait()

	return cands, ctx.Err()
}
