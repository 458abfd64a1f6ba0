// Package memory holds coverage documents in process memory, for
// development runs and tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/zimaxnet/orb-image-harvester/internal/harvest"
)

// ErrNotFound is returned by Get for an unknown figure key.
var ErrNotFound = fmt.Errorf("coverage document not found")

// CoverageStore implements harvest.CoverageStore on a map.
type CoverageStore struct {
	mu   sync.RWMutex
	docs map[string]harvest.CoverageDocument
}

// NewCoverageStore returns an empty in-memory store.
func NewCoverageStore() *CoverageStore {
	return &CoverageStore{docs: make(map[string]harvest.CoverageDocument)}
}

func key(name, category, epoch string) string {
	return name + "/" + category + "/" + epoch
}

// Upsert replaces the figure's document.
func (s *CoverageStore) Upsert(_ context.Context, doc harvest.CoverageDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[key(doc.FigureName, doc.Category, doc.Epoch)] = doc
	return nil
}

// Get loads one figure's document.
func (s *CoverageStore) Get(_ context.Context, name, category, epoch string) (harvest.CoverageDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[key(name, category, epoch)]
	if !ok {
		return harvest.CoverageDocument{}, ErrNotFound
	}
	return doc, nil
}

// Report aggregates coverage across every stored figure.
func (s *CoverageStore) Report(_ context.Context) (harvest.CoverageReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	report := harvest.CoverageReport{PerSlot: make(map[harvest.Slot]int)}
	for _, doc := range s.docs {
		report.Figures++
		report.TotalItems += doc.TotalItems
		for slot, items := range doc.Slots {
			report.PerSlot[slot] += len(items)
			for _, item := range items {
				if item.Priority == harvest.PlaceholderPriority {
					report.Fallbacks++
				}
			}
		}
	}
	return report, nil
}

// Ping always succeeds.
func (s *CoverageStore) Ping(_ context.Context) error { return nil }

// Close is a no-op.
func (s *CoverageStore) Close() {}

// Len reports how many documents are stored, for tests.
func (s *CoverageStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}
