package harvest

import (
	"context"
	"time"
)

// Source is the capability interface every provider adapter
// implements. Empty results are success; adapters translate transport
// failures into an empty slice plus a logged warning and never abort
// the pipeline. The returned error is reserved for context
// cancellation.
type Source interface {
	Name() string
	// Tier orders sources by trust; the orchestrator tries higher
	// tiers first and stamps accepted items with it.
	Tier() int
	Search(ctx context.Context, query string, limit int) ([]Candidate, error)
	// Cooldown pauses the source after an HTTP 429.
	Cooldown(d time.Duration)
}

// Validator downloads a candidate and applies the quality gates.
// On success it returns the accepted item plus the re-encoded image
// bytes for archival.
type Validator interface {
	Validate(ctx context.Context, cand Candidate) (AcceptedItem, []byte, error)
}

// Deduper rejects candidates already accepted in the current run.
type Deduper interface {
	// SeenURL reports and records whether the URL was already accepted.
	SeenURL(url string) bool
	// SeenFingerprint reports and records whether the perceptual hash
	// was already accepted.
	SeenFingerprint(fp string) bool
}

// CoverageStore persists coverage documents keyed by
// (figure, category, epoch) with wholesale-replace semantics.
type CoverageStore interface {
	Upsert(ctx context.Context, doc CoverageDocument) error
	Get(ctx context.Context, name, category, epoch string) (CoverageDocument, error)
	Report(ctx context.Context) (CoverageReport, error)
	Ping(ctx context.Context) error
	Close()
}

// BlobStore archives accepted image bytes and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Publisher pushes per-figure completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock returns the current time (swappable in tests).
type Clock interface {
	Now() time.Time
}
