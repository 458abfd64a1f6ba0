// Package source implements the provider adapters behind the
// harvest.Source capability interface. Adapters never abort the
// pipeline: transport failures become an empty result plus a logged
// warning, and only context cancellation is returned as an error.
package source

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/zimaxnet/orb-image-harvester/internal/source/ratelimit"
)

// Reliability tiers, highest trust first. The orchestrator tries
// sources in descending tier order and accepted items inherit the
// tier as their priority.
const (
	TierWikidata  = 100
	TierCommons   = 80
	TierWikipedia = 60
	TierCSE       = 40
)

const defaultUserAgent = "orb-image-harvester/1.0 (+https://github.com/zimaxnet/orb-image-harvester)"

// base carries what every adapter shares: identity, pacing, logging.
type base struct {
	name    string
	tier    int
	limiter *ratelimit.Limiter
	client  *http.Client
	logger  *zap.Logger
}

func newBase(name string, tier int, limiter *ratelimit.Limiter, timeout time.Duration, logger *zap.Logger) base {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return base{
		name:    name,
		tier:    tier,
		limiter: limiter,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

func (b *base) Name() string { return b.name }
func (b *base) Tier() int    { return b.tier }

// Cooldown pauses the adapter's limiter after a 429.
func (b *base) Cooldown(d time.Duration) {
	b.limiter.Cooldown(d)
}

// acquire blocks on the rate limiter. A spent quota is reported as
// "no candidates" (false); only cancellation propagates.
func (b *base) acquire(ctx context.Context) (bool, error) {
	err := b.limiter.Wait(ctx)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ratelimit.ErrQuotaExhausted):
		b.logger.Warn("daily quota spent, skipping source", zap.String("source", b.name))
		return false, nil
	case ctx.Err() != nil:
		return false, ctx.Err()
	default:
		b.logger.Warn("rate limiter wait failed", zap.String("source", b.name), zap.Error(err))
		return false, nil
	}
}

// getJSON performs one GET and decodes the JSON body into out,
// classifying failures for the caller. A true second return means the
// server answered 429 and the adapter should cool down.
func (b *base) getJSON(ctx context.Context, url string, out any) (ok bool, throttled bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		b.logger.Warn("build request", zap.String("source", b.name), zap.Error(err))
		return false, false
	}
	req.Header.Set("User-Agent", defaultUserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		if ctx.Err() == nil {
			b.logger.Warn("search request failed", zap.String("source", b.name), zap.Error(err))
		}
		return false, false
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode == http.StatusTooManyRequests {
		b.logger.Warn("search throttled", zap.String("source", b.name))
		return false, true
	}
	if resp.StatusCode != http.StatusOK {
		b.logger.Warn("search returned non-200",
			zap.String("source", b.name),
			zap.Int("status", resp.StatusCode),
		)
		return false, false
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4*1024*1024))
	if err != nil {
		b.logger.Warn("read search body", zap.String("source", b.name), zap.Error(err))
		return false, false
	}
	if err := json.Unmarshal(body, out); err != nil {
		b.logger.Warn("malformed search body", zap.String("source", b.name), zap.Error(err))
		return false, false
	}
	return true, false
}

// quotedName extracts the exact-phrase figure name from a generated
// query string, e.g. `"Marie Curie" portrait` -> `Marie Curie`.
func quotedName(query string) string {
	start := strings.IndexByte(query, '"')
	if start < 0 {
		return strings.TrimSpace(query)
	}
	end := strings.IndexByte(query[start+1:], '"')
	if end < 0 {
		return strings.TrimSpace(query)
	}
	return query[start+1 : start+1+end]
}

func isImageFile(name string) bool {
	lower := strings.ToLower(name)
	for _, ext := range []string{".jpg", ".jpeg", ".png", ".gif"} {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}
