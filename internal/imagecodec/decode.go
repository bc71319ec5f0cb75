// Package imagecodec turns uploaded bytes into the BGR pixel layout the palm
// classifier works on.
package imagecodec

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/example/palm-check/internal/palm"
)

// MaxPixels caps the declared canvas size accepted by Decode. Compressed
// formats can declare far more pixels than the upload size suggests.
const MaxPixels = 50_000_000

// ErrInvalidImage is returned for empty, undecodable or oversized input.
var ErrInvalidImage = errors.New("invalid image file")

// Decode reads any registered image format and returns it as a BGR image.
// EXIF orientation is applied and alpha is discarded without premultiplying.
// Images declaring more than MaxPixels are rejected before any pixel data is
// decoded.
func Decode(data []byte) (palm.Image, error) {
	if len(data) == 0 {
		return palm.Image{}, fmt.Errorf("%w: empty payload", ErrInvalidImage)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return palm.Image{}, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if pixels := int64(cfg.Width) * int64(cfg.Height); pixels > MaxPixels {
		return palm.Image{}, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrInvalidImage, cfg.Width, cfg.Height, MaxPixels)
	}

	src, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return palm.Image{}, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	return FromImage(src), nil
}

// FromImage copies any image.Image into BGR order.
func FromImage(src image.Image) palm.Image {
	nrgba := imaging.Clone(src)
	b := nrgba.Bounds()
	out := palm.NewImage(b.Dx(), b.Dy())

	for y := 0; y < b.Dy(); y++ {
		row := nrgba.Pix[y*nrgba.Stride : y*nrgba.Stride+b.Dx()*4]
		dst := out.Pix[y*b.Dx()*3 : (y+1)*b.Dx()*3]
		for x := 0; x < b.Dx(); x++ {
			dst[x*3] = row[x*4+2]
			dst[x*3+1] = row[x*4+1]
			dst[x*3+2] = row[x*4]
		}
	}
	return out
}

// Format sniffs the encoded format name without decoding pixels. It returns
// an empty string for unknown input.
func Format(data []byte) string {
	_, name, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return ""
	}
	return name
}
