package source

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/zimaxnet/orb-image-harvester/internal/harvest"
	"github.com/zimaxnet/orb-image-harvester/internal/source/ratelimit"
)

const defaultCommonsEndpoint = "https://commons.wikimedia.org/w/api.php"

// Commons searches the Wikimedia Commons file namespace with the
// MediaWiki full-text search generator and returns the ranked image
// hits with their direct upload URLs.
type Commons struct {
	base
	endpoint string
}

// CommonsConfig tunes the adapter; zero values use production defaults.
type CommonsConfig struct {
	Endpoint string
	Timeout  time.Duration
}

// NewCommons builds the full-text media search adapter.
func NewCommons(cfg CommonsConfig, limiter *ratelimit.Limiter, logger *zap.Logger) *Commons {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultCommonsEndpoint
	}
	return &Commons{
		base:     newBase("commons", TierCommons, limiter, cfg.Timeout, logger),
		endpoint: endpoint,
	}
}

type commonsResponse struct {
	Query struct {
		Pages map[string]struct {
			Title     string `json:"title"`
			Index     int    `json:"index"`
			ImageInfo []struct {
				URL         string `json:"url"`
				Mime        string `json:"mime"`
				ExtMetadata struct {
					LicenseShortName struct {
						Value string `json:"value"`
					} `json:"LicenseShortName"`
				} `json:"extmetadata"`
			} `json:"imageinfo"`
		} `json:"pages"`
	} `json:"query"`
}

// Search runs one generator=search call against the file namespace.
func (c *Commons) Search(ctx context.Context, query string, limit int) ([]harvest.Candidate, error) {
	ok, err := c.acquire(ctx)
	if err != nil || !ok {
		return nil, err
	}

	params := url.Values{
		"action":       {"query"},
		"format":       {"json"},
		"generator":    {"search"},
		"gsrsearch":    {query},
		"gsrnamespace": {"6"},
		"gsrlimit":     {fmt.Sprint(max(limit, 1))},
		"prop":         {"imageinfo"},
		"iiprop":       {"url|mime|extmetadata"},
	}

	var parsed commonsResponse
	ok, throttled := c.getJSON(ctx, c.endpoint+"?"+params.Encode(), &parsed)
	if throttled {
		c.Cooldown(30 * time.Second)
	}
	if !ok {
		return nil, ctx.Err()
	}

	type ranked struct {
		cand  harvest.Candidate
		index int
	}
	var hits []ranked
	for _, page := range parsed.Query.Pages {
		if len(page.ImageInfo) == 0 || !isImageFile(page.Title) {
			continue
		}
		info := page.ImageInfo[0]
		if info.URL == "" {
			continue
		}
		license := info.ExtMetadata.LicenseShortName.Value
		if license == "" {
			license = "Public Domain / Creative Commons"
		}
		hits = append(hits, ranked{
			cand: harvest.Candidate{
				URL:          info.URL,
				Title:        page.Title,
				SourceName:   "Wikimedia Commons",
				LicenseLabel: license,
				Tier:         c.tier,
			},
			index: page.Index,
		})
	}
	// The pages map loses the search ranking; the index field restores it.
	sort.Slice(hits, func(i, j int) bool { return hits[i].index < hits[j].index })

	cands := make([]harvest.Candidate, 0, len(hits))
	for _, h := range hits {
		cands = append(cands, h.cand)
	}
	return cands, nil
}
