package harvest

import "sync"

// DedupIndex tracks the URLs and perceptual fingerprints accepted
// during one run. One index is shared by every worker in the run, so
// re-hosted copies are caught across figures too. The sets live only
// as long as the run; the coverage documents are the durable record.
type DedupIndex struct {
	mu           sync.Mutex
	urls         map[string]struct{}
	fingerprints map[string]struct{}
}

// NewDedupIndex returns an empty index.
func NewDedupIndex() *DedupIndex {
	return &DedupIndex{
		urls:         make(map[string]struct{}),
		fingerprints: make(map[string]struct{}),
	}
}

// SeenURL records the URL and reports whether it was already present.
func (d *DedupIndex) SeenURL(url string) bool {
	if url == "" {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.urls[url]; ok {
		return true
	}
	d.urls[url] = struct{}{}
	return false
}

// SeenFingerprint records the hash and reports whether it was already
// present. Empty fingerprints (placeholders) are never duplicates.
func (d *DedupIndex) SeenFingerprint(fp string) bool {
	if fp == "" {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.fingerprints[fp]; ok {
		return true
	}
	d.fingerprints[fp] = struct{}{}
	return false
}
