package processor

import (
	"image"

	"github.com/disintegration/imaging"
)

// Thumbnail applies the fixed transform: Gaussian blur first, then a
// downscale that fits the image within ThumbWidth×ThumbHeight keeping its
// aspect ratio. Images already inside the box keep their size.
func Thumbnail(src image.Image) *image.NRGBA {
	blurred := imaging.Blur(src, BlurSigma)
	return imaging.Fit(blurred, ThumbWidth, ThumbHeight, imaging.Lanczos)
}
