// Package worker runs the figure processing pool: each figure is
// resolved slot by slot, archived, persisted as one coverage document,
// and announced with a completion event.
package worker

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zimaxnet/orb-image-harvester/internal/harvest"
	"github.com/zimaxnet/orb-image-harvester/internal/telemetry"
)

// Config tunes the pool.
type Config struct {
	// Workers is the number of figures processed concurrently.
	Workers int
	// StoreRetries is how many times a failed document write is retried.
	StoreRetries int
	// StoreRetryBackoff is multiplied by the attempt number between retries.
	StoreRetryBackoff time.Duration
	// EventTopic receives one completion event per persisted figure.
	EventTopic string
}

// DefaultConfig returns production pool settings.
func DefaultConfig() Config {
	return Config{
		Workers:           4,
		StoreRetries:      2,
		StoreRetryBackoff: time.Second,
		EventTopic:        "figure-coverage-completed",
	}
}

// CompletionEvent is the payload published after a figure's document
// is persisted.
type CompletionEvent struct {
	RunID         string    `json:"run_id"`
	FigureName    string    `json:"figure_name"`
	Category      string    `json:"category"`
	Epoch         string    `json:"epoch"`
	TotalItems    int       `json:"total_items"`
	FallbackSlots []string  `json:"fallback_slots,omitempty"`
	CompletedAt   time.Time `json:"completed_at"`
}

// Pool fans figures out to workers. Figures are independent; a failed
// or cancelled figure never blocks the others, and a figure is only
// persisted once all four of its slots resolved.
type Pool struct {
	orchestrator *harvest.Orchestrator
	store        harvest.CoverageStore
	archive      harvest.BlobStore
	events       harvest.Publisher
	clock        harvest.Clock
	cfg          Config
	logger       *zap.Logger
}

// NewPool wires a pool. All collaborators are required; pass the
// memory implementations to disable archival or events.
func NewPool(
	orchestrator *harvest.Orchestrator,
	store harvest.CoverageStore,
	archive harvest.BlobStore,
	events harvest.Publisher,
	clock harvest.Clock,
	cfg Config,
	logger *zap.Logger,
) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultConfig().Workers
	}
	if cfg.StoreRetryBackoff <= 0 {
		cfg.StoreRetryBackoff = DefaultConfig().StoreRetryBackoff
	}
	if cfg.EventTopic == "" {
		cfg.EventTopic = DefaultConfig().EventTopic
	}
	return &Pool{
		orchestrator: orchestrator,
		store:        store,
		archive:      archive,
		events:       events,
		clock:        clock,
		cfg:          cfg,
		logger:       logger,
	}
}

// Run processes the whole catalog and returns the run summary. The
// returned error is context cancellation only; per-figure failures are
// reported in the summary.
func (p *Pool) Run(ctx context.Context, figures []harvest.Figure) (harvest.RunSummary, error) {
	summary := harvest.RunSummary{
		RunID:        uuid.Must(uuid.NewV7()).String(),
		FiguresTotal: len(figures),
		StartedAt:    p.clock.Now(),
	}
	p.logger.Info("run started",
		zap.String("run_id", summary.RunID),
		zap.Int("figures", len(figures)),
		zap.Int("workers", p.cfg.Workers),
	)

	feed := make(chan harvest.Figure)
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for i := 0; i < p.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			telemetry.IncActiveWorkers()
			defer telemetry.DecActiveWorkers()
			for fig := range feed {
				accepted, fallbacks, err := p.processFigure(ctx, summary.RunID, fig)
				mu.Lock()
				switch {
				case err != nil && ctx.Err() != nil:
					// Cancelled mid-figure; nothing was persisted for it.
				case err != nil:
					summary.FiguresFailed++
					summary.FailedFigures = append(summary.FailedFigures, fig.Key())
					telemetry.ObserveFigure("failed")
				default:
					summary.FiguresOK++
					summary.ItemsAccepted += accepted
					summary.FallbackSlots += fallbacks
					telemetry.ObserveFigure("ok")
				}
				mu.Unlock()
			}
		}()
	}

feedLoop:
	for _, fig := range figures {
		select {
		case feed <- fig:
		case <-ctx.Done():
			break feedLoop
		}
	}
	close(feed)
	wg.Wait()

	summary.FinishedAt = p.clock.Now()
	p.logger.Info("run finished",
		zap.String("run_id", summary.RunID),
		zap.Int("ok", summary.FiguresOK),
		zap.Int("failed", summary.FiguresFailed),
		zap.Int("items", summary.ItemsAccepted),
		zap.Int("fallback_slots", summary.FallbackSlots),
		zap.Duration("elapsed", summary.FinishedAt.Sub(summary.StartedAt)),
	)
	return summary, ctx.Err()
}

// processFigure resolves all slots, archives the accepted bytes, and
// persists the document. A cancellation discards the partial figure.
func (p *Pool) processFigure(ctx context.Context, runID string, fig harvest.Figure) (accepted int, fallbacks int, err error) {
	slots := make(map[harvest.Slot][]harvest.AcceptedItem, len(harvest.Slots()))
	var fallbackSlots []string

	for _, slot := range harvest.Slots() {
		item, data, outcome, err := p.orchestrator.ResolveSlot(ctx, fig, slot)
		if err != nil {
			return 0, 0, err
		}
		if outcome.Fallback {
			fallbackSlots = append(fallbackSlots, string(slot))
			fallbacks++
		} else {
			accepted++
		}
		if len(data) > 0 {
			p.archiveItem(ctx, fig, slot, &item, data)
		}
		slots[slot] = append(slots[slot], item)
	}

	doc := harvest.NewCoverageDocument(fig, slots, p.clock.Now())
	if err := p.upsertWithRetry(ctx, doc); err != nil {
		p.logger.Error("figure write failed", zap.String("figure", fig.Key()), zap.Error(err))
		return 0, 0, err
	}

	if _, err := p.events.Publish(ctx, p.cfg.EventTopic, CompletionEvent{
		RunID:         runID,
		FigureName:    fig.Name,
		Category:      fig.Category,
		Epoch:         fig.Epoch,
		TotalItems:    doc.TotalItems,
		FallbackSlots: fallbackSlots,
		CompletedAt:   doc.LastUpdated,
	}); err != nil {
		// The document is already durable; a lost event is log-only.
		p.logger.Warn("completion event failed", zap.String("figure", fig.Key()), zap.Error(err))
	}
	return accepted, fallbacks, nil
}

// archiveItem uploads the re-encoded bytes and stamps the item with
// the archive URI. Archival failures degrade to source-URL-only items.
func (p *Pool) archiveItem(ctx context.Context, fig harvest.Figure, slot harvest.Slot, item *harvest.AcceptedItem, data []byte) {
	path := fmt.Sprintf("figures/%s/%s/%s/%s/%s.jpg",
		slug(fig.Category), slug(fig.Epoch), slug(fig.Name), slot, item.Fingerprint)
	uri, err := p.archive.PutObject(ctx, path, "image/jpeg", data)
	if err != nil {
		p.logger.Warn("image archive failed",
			zap.String("figure", fig.Key()),
			zap.String("slot", string(slot)),
			zap.Error(err),
		)
		return
	}
	item.ArchiveURI = uri
}

func (p *Pool) upsertWithRetry(ctx context.Context, doc harvest.CoverageDocument) error {
	var lastErr error
	for attempt := 0; attempt <= p.cfg.StoreRetries; attempt++ {
		if attempt > 0 {
			telemetry.ObserveStoreRetry()
			timer := time.NewTimer(time.Duration(attempt) * p.cfg.StoreRetryBackoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
		lastErr = p.store.Upsert(ctx, doc)
		if lastErr == nil {
			return nil
		}
		p.logger.Warn("document write retrying",
			zap.String("figure", doc.FigureName),
			zap.Int("attempt", attempt+1),
			zap.Error(lastErr),
		)
	}
	return lastErr
}

// slug normalizes a catalog value into an archive path segment.
func slug(s string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		case !lastDash:
			b.WriteByte('-')
			lastDash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
