package harvest

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func testValidator(t *testing.T) *ImageValidator {
	t.Helper()
	cfg := DefaultValidatorConfig()
	cfg.RetryBackoff = time.Millisecond
	return NewImageValidator(cfg, fixedClock{now: time.Unix(1700000000, 0).UTC()}, zap.NewNop())
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func imageServer(t *testing.T, payload []byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(payload)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestValidateAcceptsGoodImage(t *testing.T) {
	t.Parallel()
	srv := imageServer(t, pngBytes(t, 300, 400))

	item, data, err := testValidator(t).Validate(context.Background(), Candidate{
		URL:          srv.URL + "/portrait.png",
		SourceName:   "Wikimedia Commons",
		LicenseLabel: "CC BY-SA",
		Tier:         80,
	})
	require.NoError(t, err)
	require.Equal(t, 80, item.Priority)
	require.Equal(t, 300, item.Width)
	require.Equal(t, 400, item.Height)
	require.Len(t, item.Fingerprint, 64)
	require.NotEmpty(t, data, "re-encoded bytes are needed for archival")
}

func TestValidateRejectsTinyImage(t *testing.T) {
	t.Parallel()
	srv := imageServer(t, pngBytes(t, 50, 50))

	_, _, err := testValidator(t).Validate(context.Background(), Candidate{URL: srv.URL})
	require.ErrorIs(t, err, ErrQualityRejected)
}

func TestValidateRejectsSliverAspect(t *testing.T) {
	t.Parallel()
	srv := imageServer(t, pngBytes(t, 2000, 210))

	_, _, err := testValidator(t).Validate(context.Background(), Candidate{URL: srv.URL})
	require.ErrorIs(t, err, ErrQualityRejected)
}

func TestValidateDownscalesOversized(t *testing.T) {
	t.Parallel()
	srv := imageServer(t, pngBytes(t, 2048, 1024))

	item, _, err := testValidator(t).Validate(context.Background(), Candidate{URL: srv.URL, Tier: 100})
	require.NoError(t, err)
	require.Equal(t, 1024, item.Width)
	require.Equal(t, 512, item.Height)
}

func TestValidateRejectsNonImage(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html>not an image</html>"))
	}))
	t.Cleanup(srv.Close)

	_, _, err := testValidator(t).Validate(context.Background(), Candidate{URL: srv.URL})
	require.ErrorIs(t, err, ErrInvalidImage)
}

func TestValidateDoesNotRetryNotFound(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.NotFound(w, nil)
	}))
	t.Cleanup(srv.Close)

	_, _, err := testValidator(t).Validate(context.Background(), Candidate{URL: srv.URL})
	require.Error(t, err)
	require.Equal(t, int32(1), calls.Load())
}

func TestValidateRetriesServerErrors(t *testing.T) {
	t.Parallel()
	payload := pngBytes(t, 300, 300)
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(payload)
	}))
	t.Cleanup(srv.Close)

	_, _, err := testValidator(t).Validate(context.Background(), Candidate{URL: srv.URL})
	require.NoError(t, err)
	require.Equal(t, int32(2), calls.Load())
}

func TestValidateSurfacesRateLimit(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	t.Cleanup(srv.Close)

	_, _, err := testValidator(t).Validate(context.Background(), Candidate{URL: srv.URL})
	require.ErrorIs(t, err, ErrRateLimited)
}

func TestValidateRejectsOversizedPayload(t *testing.T) {
	t.Parallel()
	cfg := DefaultValidatorConfig()
	cfg.MaxBytes = 1024
	v := NewImageValidator(cfg, fixedClock{now: time.Now()}, zap.NewNop())

	srv := imageServer(t, pngBytes(t, 300, 300))
	_, _, err := v.Validate(context.Background(), Candidate{URL: srv.URL})
	require.ErrorIs(t, err, ErrTooLarge)
}
