package harvest

import (
	"errors"
	"fmt"
)

// Sentinel errors for the candidate rejection taxonomy. Rejections are
// expected flow control: the orchestrator moves on to the next
// candidate, adapter, or query.
var (
	// ErrInvalidImage marks payloads that are not a decodable image.
	ErrInvalidImage = errors.New("invalid image")
	// ErrQualityRejected marks images outside the size/aspect limits.
	ErrQualityRejected = errors.New("quality rejected")
	// ErrTooLarge marks payloads over the configured byte ceiling.
	ErrTooLarge = errors.New("payload too large")
	// ErrDuplicate marks candidates already accepted in this run.
	ErrDuplicate = errors.New("duplicate candidate")
	// ErrRateLimited marks an HTTP 429; the caller cools the source down.
	ErrRateLimited = errors.New("rate limited")
)

// RejectionReason maps an error to the label used in logs and metrics.
func RejectionReason(err error) string {
	switch {
	case errors.Is(err, ErrInvalidImage):
		return "invalid_image"
	case errors.Is(err, ErrTooLarge):
		return "too_large"
	case errors.Is(err, ErrQualityRejected):
		return "quality"
	case errors.Is(err, ErrDuplicate):
		return "duplicate"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	default:
		return "transport"
	}
}

// StoreWriteError wraps a coverage store failure for one figure. The
// figure is marked failed in the run summary; the run continues.
type StoreWriteError struct {
	FigureKey string
	Err       error
}

func (e *StoreWriteError) Error() string {
	return fmt.Sprintf("store write for %s: %v", e.FigureKey, e.Err)
}

func (e *StoreWriteError) Unwrap() error { return e.Err }
