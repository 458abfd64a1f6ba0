package harvest

import "time"

// FallbackSourceName marks items substituted when every real source
// came up empty.
const FallbackSourceName = "fallback"

// Public-domain Wikimedia icons used when a slot cannot be filled from
// any real source. One per slot so consumers can still render
// something meaningful.
var placeholderURLs = map[Slot]string{
	SlotPortrait:    "https://upload.wikimedia.org/wikipedia/commons/thumb/4/47/Generic_Feed_icon.svg/120px-Generic_Feed_icon.svg.png",
	SlotAchievement: "https://upload.wikimedia.org/wikipedia/commons/thumb/2/2f/Star_icon_1.svg/120px-Star_icon_1.svg.png",
	SlotInvention:   "https://upload.wikimedia.org/wikipedia/commons/thumb/9/9a/Lightbulb_icon.svg/120px-Lightbulb_icon.svg.png",
	SlotArtifact:    "https://upload.wikimedia.org/wikipedia/commons/thumb/8/8a/Ancient_artifact_icon.svg/120px-Ancient_artifact_icon.svg.png",
}

// Placeholder returns the guaranteed item for a slot. It always
// carries the lowest priority so any later real acceptance outranks it.
func Placeholder(slot Slot, figureName string, now time.Time) AcceptedItem {
	return AcceptedItem{
		URL:          placeholderURLs[slot],
		Title:        figureName + " " + string(slot) + " placeholder",
		SourceName:   FallbackSourceName,
		LicenseLabel: "Public Domain",
		Priority:     PlaceholderPriority,
		RetrievedAt:  now,
	}
}
