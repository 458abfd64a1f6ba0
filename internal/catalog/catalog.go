// Package catalog loads the figure catalog that seeds a harvest run.
// The file is JSON keyed category -> epoch -> list of figures.
package catalog

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/zimaxnet/orb-image-harvester/internal/harvest"
)

type catalogEntry struct {
	Name    string `json:"name"`
	Context string `json:"context,omitempty"`
}

// Filter narrows a load to part of the catalog. Zero value loads
// everything.
type Filter struct {
	// Category and Epoch match case-insensitively when non-empty.
	Category string
	Epoch    string
	// Limit caps the number of figures returned; zero means no cap.
	Limit int
}

// Load reads and flattens the catalog file.
func Load(path string, filter Filter) ([]harvest.Figure, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close() //nolint:errcheck
	figures, err := Parse(f, filter)
	if err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	return figures, nil
}

// Parse decodes a catalog document and flattens it into the
// deterministic processing order: categories and epochs sorted,
// figures in file order.
func Parse(r io.Reader, filter Filter) ([]harvest.Figure, error) {
	var raw map[string]map[string][]catalogEntry
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	categories := make([]string, 0, len(raw))
	for category := range raw {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	var figures []harvest.Figure
	for _, category := range categories {
		if filter.Category != "" && !strings.EqualFold(filter.Category, category) {
			continue
		}
		epochs := make([]string, 0, len(raw[category]))
		for epoch := range raw[category] {
			epochs = append(epochs, epoch)
		}
		sort.Strings(epochs)

		for _, epoch := range epochs {
			if filter.Epoch != "" && !strings.EqualFold(filter.Epoch, epoch) {
				continue
			}
			for _, entry := range raw[category][epoch] {
				if entry.Name == "" {
					return nil, fmt.Errorf("catalog entry without a name under %s/%s", category, epoch)
				}
				figures = append(figures, harvest.Figure{
					Name:     entry.Name,
					Category: category,
					Epoch:    epoch,
					Context:  entry.Context,
				})
				if filter.Limit > 0 && len(figures) >= filter.Limit {
					return figures, nil
				}
			}
		}
	}
	return figures, nil
}
