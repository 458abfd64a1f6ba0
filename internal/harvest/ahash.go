package harvest

import (
	"image"
	"strings"

	"golang.org/x/image/draw"
)

// hashGrid is the side length of the average-hash grid. 8 gives a
// 64-bit fingerprint, coarse enough to match re-hosted copies of the
// same photograph while staying cheap to compute.
const hashGrid = 8

// AverageHash computes a grayscale average-hash bit string of the
// image: downscale to hashGrid x hashGrid, threshold each cell against
// the mean luminance, concatenate the bits. Two images match only on
// the exact bit string.
func AverageHash(img image.Image) string {
	small := image.NewGray(image.Rect(0, 0, hashGrid, hashGrid))
	draw.ApproxBiLinear.Scale(small, small.Bounds(), img, img.Bounds(), draw.Src, nil)

	var sum uint32
	for _, px := range small.Pix {
		sum += uint32(px)
	}
	mean := uint8(sum / uint32(len(small.Pix)))

	var sb strings.Builder
	sb.Grow(len(small.Pix))
	for _, px := range small.Pix {
		if px >= mean {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}
