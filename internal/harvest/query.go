package harvest

import (
	"fmt"
	"strings"
)

// Queries builds the ordered candidate search strings for one
// (figure, slot) pair. The list is deterministic, non-empty, and
// capped at five entries so fixtures stay reproducible. No I/O.
func Queries(name, category string, slot Slot) []string {
	quoted := fmt.Sprintf("%q", name)
	var qs []string
	switch slot {
	case SlotPortrait:
		qs = []string{
			quoted + " portrait",
			quoted + " painting",
			quoted + " bust",
		}
	case SlotAchievement:
		cat := strings.ToLower(category)
		qs = []string{
			fmt.Sprintf("%s %s achievement", quoted, cat),
			fmt.Sprintf("%s %s work", quoted, cat),
		}
	case SlotInvention:
		qs = []string{
			quoted + " invention",
			quoted + " creation",
		}
	case SlotArtifact:
		qs = []string{
			quoted + " artifact",
			quoted + " work",
		}
	default:
		qs = []string{quoted}
	}
	if len(qs) > 5 {
		qs = qs[:5]
	}
	return qs
}
