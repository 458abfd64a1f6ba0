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

const defaultWikidataEndpoint = "https://query.wikidata.org/sparql"

// Wikidata resolves a figure's canonical portrait through the P18
// (image) property. One deterministic fact query per search; at most
// one candidate comes back, but it is the most trustworthy one the
// chain can produce.
type Wikidata struct {
	base
	endpoint string
}

// WikidataConfig tunes the adapter; zero values use production defaults.
type WikidataConfig struct {
	Endpoint string
	Timeout  time.Duration
}

// NewWikidata builds the structured-data adapter.
func NewWikidata(cfg WikidataConfig, limiter *ratelimit.Limiter, logger *zap.Logger) *Wikidata {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultWikidataEndpoint
	}
	return &Wikidata{
		base:     newBase("wikidata", TierWikidata, limiter, cfg.Timeout, logger),
		endpoint: endpoint,
	}
}

type sparqlResponse struct {
	Results struct {
		Bindings []struct {
			Image struct {
				Value string `json:"value"`
			} `json:"image"`
		} `json:"bindings"`
	} `json:"results"`
}

// Search looks up the P18 image for the figure named in the query.
func (w *Wikidata) Search(ctx context.Context, query string, limit int) ([]harvest.Candidate, error) {
	ok, err := w.acquire(ctx)
	if err != nil || !ok {
		return nil, err
	}

	name := quotedName(query)
	sparql := fmt.Sprintf(
		`SELECT ?image WHERE { ?person rdfs:label %q@en. ?person wdt:P18 ?image. } LIMIT %d`,
		name, max(limit, 1),
	)
	reqURL := w.endpoint + "?format=json&query=" + url.QueryEscape(sparql)

	var parsed sparqlResponse
	ok, throttled := w.getJSON(ctx, reqURL, &parsed)
	if throttled {
		w.Cooldown(30 * time.Second)
	}
	if !ok {
		return nil, ctx.Err()
	}

	cands := make([]harvest.Candidate, 0, len(parsed.Results.Bindings))
	for _, b := range parsed.Results.Bindings {
		if b.Image.Value == "" {
			continue
		}
		cands = append(cands, harvest.Candidate{
			URL:          b.Image.Value,
			Title:        name + " portrait",
			SourceName:   "Wikidata",
			LicenseLabel: "Public Domain",
			Tier:         w.tier,
		})
	}
	return cands, nil
}
