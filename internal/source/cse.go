package source

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/zimaxnet/orb-image-harvester/internal/harvest"
	"github.com/zimaxnet/orb-image-harvester/internal/source/ratelimit"
)

const defaultCSEEndpoint = "https://www.googleapis.com/customsearch/v1"

// CSE queries the Google Custom Search JSON API in image mode. It is
// keyed and quota-limited, so it sits at the bottom of the trust chain
// and is only constructed when a credential was resolved; without one
// the pipeline runs in fallback-only mode for this tier.
type CSE struct {
	base
	endpoint string
	apiKey   string
	engineID string
}

// CSEConfig carries the resolved credential and engine.
type CSEConfig struct {
	Endpoint string
	APIKey   string
	EngineID string
	Timeout  time.Duration
}

// NewCSE builds the commercial search adapter. The API key must be
// non-empty; callers without a credential simply skip construction.
func NewCSE(cfg CSEConfig, limiter *ratelimit.Limiter, logger *zap.Logger) (*CSE, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("cse api key is required")
	}
	if cfg.EngineID == "" {
		return nil, fmt.Errorf("cse engine id is required")
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultCSEEndpoint
	}
	return &CSE{
		base:     newBase("cse", TierCSE, limiter, cfg.Timeout, logger),
		endpoint: endpoint,
		apiKey:   cfg.APIKey,
		engineID: cfg.EngineID,
	}, nil
}

type cseResponse struct {
	Items []struct {
		Link  string `json:"link"`
		Title string `json:"title"`
		Mime  string `json:"mime"`
	} `json:"items"`
}

// Search runs one image search against the configured engine.
func (c *CSE) Search(ctx context.Context, query string, limit int) ([]harvest.Candidate, error) {
	ok, err := c.acquire(ctx)
	if err != nil || !ok {
		return nil, err
	}

	// The API rejects num > 10.
	num := max(limit, 1)
	if num > 10 {
		num = 10
	}
	params := url.Values{
		"key":        {c.apiKey},
		"cx":         {c.engineID},
		"q":          {query},
		"searchType": {"image"},
		"num":        {fmt.Sprint(num)},
		"safe":       {"active"},
		"rights":     {"cc_publicdomain"},
	}

	var parsed cseResponse
	ok, throttled := c.getJSON(ctx, c.endpoint+"?"+params.Encode(), &parsed)
	if throttled {
		c.Cooldown(time.Minute)
	}
	if !ok {
		return nil, ctx.Err()
	}

	cands := make([]harvest.Candidate, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if item.Link == "" {
			continue
		}
		cands = append(cands, harvest.Candidate{
			URL:          item.Link,
			Title:        item.Title,
			SourceName:   "Google CSE",
			LicenseLabel: "CC0 Public Domain",
			Tier:         c.tier,
		})
	}
	return cands, nil
}
