// Package raster loads source images and fits them to the display box.
package raster

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"os"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"

	// extra decoders for imaging.Open / image.Decode
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// ErrMissingResource reports an image that could not be read or decoded.
var ErrMissingResource = errors.New("missing resource")

var imageExts = map[string]bool{
	"jpg": true, "jpeg": true, "png": true, "gif": true,
	"bmp": true, "tif": true, "tiff": true, "webp": true,
}

// IsImageFile reports whether filename carries a supported image extension.
func IsImageFile(filename string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	return imageExts[ext]
}

// Loader opens images from disk.
type Loader struct{}

// Load decodes the image at path. Failures wrap ErrMissingResource.
func (Loader) Load(path string) (image.Image, error) {
	if img, err := imaging.Open(path); err == nil {
		return img, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingResource, err)
	}
	defer f.Close()
	if strings.EqualFold(filepath.Ext(path), ".webp") {
		if img, err := webp.Decode(f); err == nil {
			return img, nil
		}
		if _, err := f.Seek(0, 0); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMissingResource, err)
		}
	}
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMissingResource, path, err)
	}
	return img, nil
}

// DisplayScale returns the uniform downsampling factor that fits orig inside
// maxSize, and the resulting display size. A factor of 1 means no resize.
func DisplayScale(orig, maxSize image.Point) (float64, image.Point) {
	if maxSize.X <= 0 || maxSize.Y <= 0 || orig.X <= 0 || orig.Y <= 0 {
		return 1, orig
	}
	xRatio := float64(orig.X) / float64(maxSize.X)
	yRatio := float64(orig.Y) / float64(maxSize.Y)
	if xRatio <= 1 && yRatio <= 1 {
		return 1, orig
	}
	factor := max(xRatio, yRatio)
	return factor, image.Pt(int(float64(orig.X)/factor), int(float64(orig.Y)/factor))
}

// Resize scales img to size with bilinear filtering.
func Resize(img image.Image, size image.Point) *image.NRGBA {
	return imaging.Resize(img, size.X, size.Y, imaging.Linear)
}

// ToRGBA copies img into a fresh RGBA canvas anchored at the origin.
func ToRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}
