package harvest

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/require"
)

func gradientImage(w, h int) image.Image {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8(255 * x / w)})
		}
	}
	return img
}

func TestAverageHashLength(t *testing.T) {
	t.Parallel()
	hash := AverageHash(gradientImage(320, 240))
	require.Len(t, hash, hashGrid*hashGrid)
}

func TestAverageHashStableAcrossRescale(t *testing.T) {
	t.Parallel()
	// The same picture served at two sizes must fingerprint identically.
	big := AverageHash(gradientImage(640, 480))
	small := AverageHash(gradientImage(320, 240))
	require.Equal(t, big, small)
}

func TestAverageHashDistinguishesContent(t *testing.T) {
	t.Parallel()
	gradient := AverageHash(gradientImage(320, 240))

	flat := image.NewGray(image.Rect(0, 0, 320, 240))
	for i := range flat.Pix {
		flat.Pix[i] = 200
	}
	require.NotEqual(t, gradient, AverageHash(flat))
}
