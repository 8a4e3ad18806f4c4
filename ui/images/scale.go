package images

import (
	"bytes"
	"image"
	"image/png"

	"github.com/disintegration/imaging"
)

// Largest preview shown by the set picker.
const (
	ThumbWidth  = 320
	ThumbHeight = 200
)

// EncodePNG encodes an image to PNG bytes. Errors are ignored and may return an empty slice.
func EncodePNG(img image.Image) []byte {
	if img == nil {
		return nil
	}
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}

// ScaleToFit scales src so it fits within maxW x maxH preserving aspect ratio.
// If the source already fits, the original is returned.
func ScaleToFit(src image.Image, maxW, maxH int) image.Image {
	if src == nil {
		return nil
	}
	b := src.Bounds()
	if b.Dx() <= maxW && b.Dy() <= maxH {
		return src
	}
	return imaging.Fit(src, max(maxW, 1), max(maxH, 1), imaging.Box)
}

// Thumbnail loads the image at path and returns PNG bytes no larger than
// maxW x maxH. A missing or undecodable file yields nil.
func Thumbnail(path string, maxW, maxH int) []byte {
	img, err := imaging.Open(path)
	if err != nil {
		return nil
	}
	return EncodePNG(ScaleToFit(img, maxW, maxH))
}

// Placeholder returns a blank w x h PNG.
func Placeholder(w, h int) []byte {
	return EncodePNG(image.NewRGBA(image.Rect(0, 0, max(w, 1), max(h, 1))))
}
