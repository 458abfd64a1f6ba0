package harvest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif" // register decoders for the formats the sources serve
	"image/jpeg"
	_ "image/png"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/image/draw"
)

// ValidatorConfig bounds what the downloader will accept.
type ValidatorConfig struct {
	Timeout      time.Duration
	MaxBytes     int64
	MinDimension int
	MaxLongEdge  int
	MinAspect    float64
	MaxAspect    float64
	MaxRetries   int
	RetryBackoff time.Duration
	UserAgent    string
}

// DefaultValidatorConfig returns the standard quality gates.
func DefaultValidatorConfig() ValidatorConfig {
	return ValidatorConfig{
		Timeout:      15 * time.Second,
		MaxBytes:     5 * 1024 * 1024,
		MinDimension: 200,
		MaxLongEdge:  1024,
		MinAspect:    0.3,
		MaxAspect:    3.0,
		MaxRetries:   2,
		RetryBackoff: 500 * time.Millisecond,
		UserAgent:    "orb-image-harvester/1.0 (+https://github.com/zimaxnet/orb-image-harvester)",
	}
}

// ImageValidator fetches a candidate's payload and applies the decode,
// dimension, aspect, and size gates. Oversized images are downscaled
// rather than rejected.
type ImageValidator struct {
	client *http.Client
	cfg    ValidatorConfig
	clock  Clock
	logger *zap.Logger
}

// NewImageValidator builds a validator with its own bounded-timeout client.
func NewImageValidator(cfg ValidatorConfig, clock Clock, logger *zap.Logger) *ImageValidator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultValidatorConfig().Timeout
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultValidatorConfig().MaxBytes
	}
	return &ImageValidator{
		client: &http.Client{Timeout: cfg.Timeout},
		cfg:    cfg,
		clock:  clock,
		logger: logger,
	}
}

// Validate downloads and vets one candidate. The returned bytes are
// the re-encoded JPEG used for archival.
func (v *ImageValidator) Validate(ctx context.Context, cand Candidate) (AcceptedItem, []byte, error) {
	body, err := v.fetch(ctx, cand.URL)
	if err != nil {
		return AcceptedItem{}, nil, err
	}

	img, format, err := image.Decode(bytes.NewReader(body))
	if err != nil {
		return AcceptedItem{}, nil, fmt.Errorf("decode %s payload: %w", format, ErrInvalidImage)
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width < v.cfg.MinDimension || height < v.cfg.MinDimension {
		return AcceptedItem{}, nil, fmt.Errorf("%dx%d below %dpx minimum: %w", width, height, v.cfg.MinDimension, ErrQualityRejected)
	}
	aspect := float64(width) / float64(height)
	if aspect < v.cfg.MinAspect || aspect > v.cfg.MaxAspect {
		return AcceptedItem{}, nil, fmt.Errorf("aspect %.2f outside [%.1f, %.1f]: %w", aspect, v.cfg.MinAspect, v.cfg.MaxAspect, ErrQualityRejected)
	}

	if long := max(width, height); v.cfg.MaxLongEdge > 0 && long > v.cfg.MaxLongEdge {
		img = downscale(img, v.cfg.MaxLongEdge)
		b := img.Bounds()
		width, height = b.Dx(), b.Dy()
	}

	var encoded bytes.Buffer
	if err := jpeg.Encode(&encoded, img, &jpeg.Options{Quality: 85}); err != nil {
		return AcceptedItem{}, nil, fmt.Errorf("re-encode image: %w", err)
	}

	item := AcceptedItem{
		URL:          cand.URL,
		Title:        cand.Title,
		SourceName:   cand.SourceName,
		LicenseLabel: cand.LicenseLabel,
		Priority:     cand.Tier,
		Fingerprint:  AverageHash(img),
		Width:        width,
		Height:       height,
		RetrievedAt:  v.clock.Now(),
	}
	return item, encoded.Bytes(), nil
}

// fetch downloads the payload, retrying transient transport errors
// with linear backoff. 4xx responses are permanent; 429 surfaces as
// ErrRateLimited so the orchestrator can cool the source down.
func (v *ImageValidator) fetch(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= v.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, time.Duration(attempt)*v.cfg.RetryBackoff); err != nil {
				return nil, err
			}
		}
		body, retryable, err := v.fetchOnce(ctx, url)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !retryable {
			return nil, err
		}
		v.logger.Debug("retrying download",
			zap.String("url", url),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}
	return nil, lastErr
}

func (v *ImageValidator) fetchOnce(ctx context.Context, url string) (body []byte, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, fmt.Errorf("build request: %w", err)
	}
	if v.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", v.cfg.UserAgent)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, false, err
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, true, fmt.Errorf("download timeout: %w", err)
		}
		return nil, true, fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, false, fmt.Errorf("%s: %w", url, ErrRateLimited)
	case resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("server error %d from %s", resp.StatusCode, url)
	case resp.StatusCode >= 400:
		return nil, false, fmt.Errorf("status %d from %s", resp.StatusCode, url)
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "image/") {
		return nil, false, fmt.Errorf("content-type %q: %w", ct, ErrInvalidImage)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, v.cfg.MaxBytes+1))
	if err != nil {
		return nil, true, fmt.Errorf("read body: %w", err)
	}
	if int64(len(data)) > v.cfg.MaxBytes {
		return nil, false, fmt.Errorf("payload over %d bytes: %w", v.cfg.MaxBytes, ErrTooLarge)
	}
	return data, false, nil
}

// downscale resizes img so its long edge equals maxLongEdge,
// preserving aspect ratio.
func downscale(img image.Image, maxLongEdge int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	var nw, nh int
	if w >= h {
		nw = maxLongEdge
		nh = h * maxLongEdge / w
	} else {
		nh = maxLongEdge
		nw = w * maxLongEdge / h
	}
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
