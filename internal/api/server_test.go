package api

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zimaxnet/orb-image-harvester/internal/harvest"
	storememory "github.com/zimaxnet/orb-image-harvester/internal/store/memory"
)

func seededStore(t *testing.T) *storememory.CoverageStore {
	t.Helper()
	store := storememory.NewCoverageStore()
	fig := harvest.Figure{Name: "Marie Curie", Category: "Science", Epoch: "Modern"}
	slots := map[harvest.Slot][]harvest.AcceptedItem{
		harvest.SlotPortrait: {{Priority: 100}},
		harvest.SlotArtifact: {{Priority: harvest.PlaceholderPriority}},
	}
	require.NoError(t, store.Upsert(context.Background(), harvest.NewCoverageDocument(fig, slots, time.Now())))
	return store
}

func TestHealthz(t *testing.T) {
	t.Parallel()
	srv := New(":0", seededStore(t), zap.NewNop())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))
	require.Equal(t, 200, rec.Code)
	require.Equal(t, "ok", rec.Body.String())
}

func TestSummary(t *testing.T) {
	t.Parallel()
	srv := New(":0", seededStore(t), zap.NewNop())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/summary", nil))
	require.Equal(t, 200, rec.Code)

	var report harvest.CoverageReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	require.Equal(t, 1, report.Figures)
	require.Equal(t, 2, report.TotalItems)
	require.Equal(t, 1, report.Fallbacks)
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()
	srv := New(":0", seededStore(t), zap.NewNop())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	require.Contains(t, rec.Body.String(), "go_goroutines")
}
