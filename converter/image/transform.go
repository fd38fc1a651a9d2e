package image

import (
	"image"

	"github.com/disintegration/imaging"
)

type Transform func(image.Image) image.Image

// WithWidth resizes to width keeping the aspect ratio. Zero or the current
// width leaves the image untouched.
func WithWidth(width int) Transform {
	return func(img image.Image) image.Image {
		imgDx := img.Bounds().Dx()
		if width != imgDx && width > 0 && imgDx > 0 {
			height := img.Bounds().Dy() * width / imgDx
			if height < 1 {
				height = 1
			}

			return imaging.Resize(img, width, height, imaging.Lanczos)
		}
		return img
	}
}

// Surface draws img unscaled onto a fresh NRGBA canvas with its natural size
// and the origin moved to (0,0).
func Surface() Transform {
	return func(img image.Image) image.Image {
		return imaging.Clone(img)
	}
}

func apply(img image.Image, funcs ...Transform) image.Image {
	for _, f := range funcs {
		img = f(img)
	}
	return img
}
