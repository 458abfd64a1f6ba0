// Package harvest defines the core types shared across the acquisition pipeline.
package harvest

import "time"

// Slot is a semantic image role every figure must be covered for.
type Slot string

// The fixed slot set. Slots() returns them in processing order.
const (
	SlotPortrait    Slot = "portrait"
	SlotAchievement Slot = "achievement"
	SlotInvention   Slot = "invention"
	SlotArtifact    Slot = "artifact"
)

// Slots returns every slot in the deterministic processing order.
func Slots() []Slot {
	return []Slot{SlotPortrait, SlotAchievement, SlotInvention, SlotArtifact}
}

// Figure is one catalog entry. Figures are loaded once and never
// mutated by the pipeline; identity is (Name, Category, Epoch).
type Figure struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	Epoch    string `json:"epoch"`
	Context  string `json:"context,omitempty"`
}

// Key returns the document key for the figure.
func (f Figure) Key() string {
	return f.Name + "/" + f.Category + "/" + f.Epoch
}

// Candidate is a tentative search hit from one source adapter. It is
// never persisted unless it survives validation and dedup.
type Candidate struct {
	URL          string
	Title        string
	SourceName   string
	LicenseLabel string
	// Tier orders sources by trust; higher wins and becomes the
	// accepted item's priority.
	Tier int
}

// AcceptedItem is a validated, deduplicated candidate.
type AcceptedItem struct {
	URL          string    `json:"url"`
	Title        string    `json:"title,omitempty"`
	SourceName   string    `json:"source"`
	LicenseLabel string    `json:"license"`
	Priority     int       `json:"priority"`
	Fingerprint  string    `json:"fingerprint,omitempty"`
	Width        int       `json:"width,omitempty"`
	Height       int       `json:"height,omitempty"`
	ArchiveURI   string    `json:"archive_uri,omitempty"`
	RetrievedAt  time.Time `json:"retrieved_at"`
}

// PlaceholderPriority is strictly lower than any real-source tier.
const PlaceholderPriority = 10

// CoverageDocument is the persisted unit, one per figure. It is
// created or wholesale-replaced at the end of processing a figure,
// never patched mid-run.
type CoverageDocument struct {
	FigureName     string                  `json:"figureName"`
	Category       string                  `json:"category"`
	Epoch          string                  `json:"epoch"`
	Slots          map[Slot][]AcceptedItem `json:"slots"`
	CoverageCounts map[Slot]int            `json:"coverageCounts"`
	TotalItems     int                     `json:"totalItems"`
	LastUpdated    time.Time               `json:"lastUpdated"`
}

// NewCoverageDocument assembles a document from the per-slot results,
// computing the coverage counts and totals.
func NewCoverageDocument(fig Figure, slots map[Slot][]AcceptedItem, now time.Time) CoverageDocument {
	doc := CoverageDocument{
		FigureName:     fig.Name,
		Category:       fig.Category,
		Epoch:          fig.Epoch,
		Slots:          slots,
		CoverageCounts: make(map[Slot]int, len(slots)),
		LastUpdated:    now,
	}
	for slot, items := range slots {
		doc.CoverageCounts[slot] = len(items)
		doc.TotalItems += len(items)
	}
	return doc
}

// SlotOutcome records how one slot was resolved, for logging and events.
type SlotOutcome struct {
	Slot       Slot
	SourceName string
	Fallback   bool
	Queries    int
}

// RunSummary aggregates one pipeline run.
type RunSummary struct {
	RunID         string
	FiguresTotal  int
	FiguresOK     int
	FiguresFailed int
	FallbackSlots int
	ItemsAccepted int
	FailedFigures []string
	StartedAt     time.Time
	FinishedAt    time.Time
}

// CoverageReport is the aggregate view read back from the store.
type CoverageReport struct {
	Figures    int          `json:"figures"`
	TotalItems int          `json:"total_items"`
	PerSlot    map[Slot]int `json:"per_slot"`
	Fallbacks  int          `json:"fallbacks"`
}
