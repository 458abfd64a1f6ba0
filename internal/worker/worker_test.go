package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zimaxnet/orb-image-harvester/internal/blob"
	"github.com/zimaxnet/orb-image-harvester/internal/harvest"
	pubmemory "github.com/zimaxnet/orb-image-harvester/internal/publisher/memory"
	storememory "github.com/zimaxnet/orb-image-harvester/internal/store/memory"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

// portraitSource yields one candidate for portrait queries and nothing
// else, so the remaining slots exhaust into placeholders.
type portraitSource struct{}

func (portraitSource) Name() string { return "scripted" }
func (portraitSource) Tier() int    { return 100 }

func (portraitSource) Cooldown(time.Duration) {}

func (portraitSource) Search(_ context.Context, query string, _ int) ([]harvest.Candidate, error) {
	if !strings.Contains(query, "portrait") {
		return nil, nil
	}
	name := strings.Trim(strings.TrimSuffix(query, " portrait"), `"`)
	return []harvest.Candidate{{
		URL:        "https://img.example/" + strings.ReplaceAll(name, " ", "_") + ".jpg",
		SourceName: "scripted",
		Tier:       100,
	}}, nil
}

// acceptAllValidator accepts every candidate and returns distinct
// fingerprints so dedup never fires.
type acceptAllValidator struct{}

func (acceptAllValidator) Validate(_ context.Context, cand harvest.Candidate) (harvest.AcceptedItem, []byte, error) {
	return harvest.AcceptedItem{
		URL:         cand.URL,
		SourceName:  cand.SourceName,
		Priority:    cand.Tier,
		Fingerprint: fmt.Sprintf("fp-%x", len(cand.URL)) + cand.URL[len(cand.URL)-8:],
		Width:       640,
		Height:      480,
	}, []byte("jpeg-bytes"), nil
}

// flakyStore fails the first failures writes, then delegates.
type flakyStore struct {
	*storememory.CoverageStore
	failures int
	calls    int
}

func (s *flakyStore) Upsert(ctx context.Context, doc harvest.CoverageDocument) error {
	s.calls++
	if s.calls <= s.failures {
		return &harvest.StoreWriteError{FigureKey: doc.FigureName, Err: errors.New("connection reset")}
	}
	return s.CoverageStore.Upsert(ctx, doc)
}

func newTestPool(store harvest.CoverageStore, cfg Config) (*Pool, *blob.MemoryStore, *pubmemory.Publisher) {
	archive := blob.NewMemoryStore()
	events := pubmemory.New()
	clock := fixedClock{now: time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)}
	orch := harvest.NewOrchestrator(
		[]harvest.Source{portraitSource{}},
		acceptAllValidator{},
		harvest.NewDedupIndex(),
		clock,
		harvest.DefaultOrchestratorConfig(),
		zap.NewNop(),
	)
	return NewPool(orch, store, archive, events, clock, cfg, zap.NewNop()), archive, events
}

func TestRunPersistsEveryFigure(t *testing.T) {
	t.Parallel()
	store := storememory.NewCoverageStore()
	pool, archive, events := newTestPool(store, Config{Workers: 2})

	figures := []harvest.Figure{
		{Name: "Marie Curie", Category: "Science", Epoch: "Modern"},
		{Name: "Archimedes", Category: "Science", Epoch: "Ancient"},
	}
	summary, err := pool.Run(context.Background(), figures)
	require.NoError(t, err)
	require.Equal(t, 2, summary.FiguresOK)
	require.Zero(t, summary.FiguresFailed)
	require.Equal(t, 2, summary.ItemsAccepted, "one real portrait per figure")
	require.Equal(t, 6, summary.FallbackSlots, "three placeholder slots per figure")
	require.NotEmpty(t, summary.RunID)

	doc, err := store.Get(context.Background(), "Marie Curie", "Science", "Modern")
	require.NoError(t, err)
	require.Equal(t, 4, doc.TotalItems, "every slot holds at least one item")
	require.Len(t, doc.Slots[harvest.SlotPortrait], 1)
	require.Equal(t, 100, doc.Slots[harvest.SlotPortrait][0].Priority)
	require.Equal(t, harvest.PlaceholderPriority, doc.Slots[harvest.SlotInvention][0].Priority)
	require.Contains(t, doc.Slots[harvest.SlotPortrait][0].ArchiveURI, "mem://figures/science/modern/marie-curie/portrait/")

	require.Equal(t, 2, archive.Len(), "placeholders are never archived")
	require.Len(t, events.Events(), 2)
	evt := events.Events()[0].Payload.(CompletionEvent)
	require.Equal(t, summary.RunID, evt.RunID)
	require.Equal(t, 4, evt.TotalItems)
	require.Len(t, evt.FallbackSlots, 3)
}

func TestRunRetriesDocumentWrites(t *testing.T) {
	t.Parallel()
	store := &flakyStore{CoverageStore: storememory.NewCoverageStore(), failures: 2}
	pool, _, _ := newTestPool(store, Config{Workers: 1, StoreRetries: 2, StoreRetryBackoff: time.Millisecond})

	summary, err := pool.Run(context.Background(), []harvest.Figure{
		{Name: "Grace Hopper", Category: "Technology", Epoch: "Modern"},
	})
	require.NoError(t, err)
	require.Equal(t, 1, summary.FiguresOK)
	require.Equal(t, 3, store.calls)
}

func TestRunReportsExhaustedWrites(t *testing.T) {
	t.Parallel()
	store := &flakyStore{CoverageStore: storememory.NewCoverageStore(), failures: 10}
	pool, _, events := newTestPool(store, Config{Workers: 1, StoreRetries: 1, StoreRetryBackoff: time.Millisecond})

	summary, err := pool.Run(context.Background(), []harvest.Figure{
		{Name: "Grace Hopper", Category: "Technology", Epoch: "Modern"},
	})
	require.NoError(t, err, "a failed figure does not fail the run")
	require.Equal(t, 1, summary.FiguresFailed)
	require.Equal(t, []string{"Grace Hopper/Technology/Modern"}, summary.FailedFigures)
	require.Empty(t, events.Events(), "no event without a durable document")
}

func TestRunCancelledDiscardsPartials(t *testing.T) {
	t.Parallel()
	store := storememory.NewCoverageStore()
	pool, _, _ := newTestPool(store, Config{Workers: 1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	summary, err := pool.Run(ctx, []harvest.Figure{
		{Name: "Marie Curie", Category: "Science", Epoch: "Modern"},
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, summary.FiguresOK)
	require.Zero(t, store.Len(), "no partial documents are written")
}

func TestSlug(t *testing.T) {
	t.Parallel()
	require.Equal(t, "marie-curie", slug("Marie Curie"))
	require.Equal(t, "ada-lovelace", slug("  Ada   Lovelace "))
	require.Equal(t, "18th-century", slug("18th Century"))
}
