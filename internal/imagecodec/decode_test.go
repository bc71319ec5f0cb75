package imagecodec

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

func solidNRGBA(width, height int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDecodePNGProducesBGR(t *testing.T) {
	src := solidNRGBA(4, 3, color.NRGBA{R: 224, G: 172, B: 105, A: 255})
	src.SetNRGBA(1, 2, color.NRGBA{R: 1, G: 2, B: 3, A: 255})

	img, err := Decode(encodePNG(t, src))
	require.NoError(t, err)
	require.Equal(t, 4, img.Width)
	require.Equal(t, 3, img.Height)
	require.Len(t, img.Pix, 4*3*3)

	b, g, r := img.At(0, 0)
	require.Equal(t, [3]uint8{105, 172, 224}, [3]uint8{b, g, r})
	b, g, r = img.At(1, 2)
	require.Equal(t, [3]uint8{3, 2, 1}, [3]uint8{b, g, r})
}

func TestDecodeDropsAlphaWithoutPremultiplying(t *testing.T) {
	src := solidNRGBA(2, 2, color.NRGBA{R: 200, G: 100, B: 50, A: 0})

	img, err := Decode(encodePNG(t, src))
	require.NoError(t, err)
	b, g, r := img.At(1, 1)
	require.Equal(t, [3]uint8{50, 100, 200}, [3]uint8{b, g, r})
}

func TestDecodeGrayExpandsChannels(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 3, 3))
	for i := range src.Pix {
		src.Pix[i] = 90
	}

	img, err := Decode(encodePNG(t, src))
	require.NoError(t, err)
	b, g, r := img.At(2, 2)
	require.Equal(t, [3]uint8{90, 90, 90}, [3]uint8{b, g, r})
}

func TestDecodeOtherFormats(t *testing.T) {
	src := solidNRGBA(8, 6, color.NRGBA{R: 10, G: 200, B: 30, A: 255})

	encoders := map[string]func(*bytes.Buffer) error{
		"jpeg": func(buf *bytes.Buffer) error { return jpeg.Encode(buf, src, &jpeg.Options{Quality: 95}) },
		"gif":  func(buf *bytes.Buffer) error { return gif.Encode(buf, src, nil) },
		"bmp":  func(buf *bytes.Buffer) error { return bmp.Encode(buf, src) },
		"tiff": func(buf *bytes.Buffer) error { return tiff.Encode(buf, src, nil) },
	}

	for name, encode := range encoders {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, encode(&buf))

			require.Equal(t, name, Format(buf.Bytes()))
			img, err := Decode(buf.Bytes())
			require.NoError(t, err)
			require.Equal(t, 8, img.Width)
			require.Equal(t, 6, img.Height)
		})
	}
}

// pngHeader returns a PNG signature and IHDR chunk for an 8-bit grayscale
// image of the given size, with no pixel data behind it.
func pngHeader(width, height uint32) []byte {
	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:4], width)
	binary.BigEndian.PutUint32(ihdr[4:8], height)
	ihdr[8] = 8 // bit depth; colour type, compression, filter, interlace stay 0

	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	_ = binary.Write(&buf, binary.BigEndian, uint32(len(ihdr)))
	chunk := append([]byte("IHDR"), ihdr...)
	buf.Write(chunk)
	_ = binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(chunk))
	return buf.Bytes()
}

func TestDecodeRejectsOversizedCanvas(t *testing.T) {
	data := pngHeader(12000, 12000)
	require.Equal(t, "png", Format(data))

	_, err := Decode(data)
	require.ErrorIs(t, err, ErrInvalidImage)
	require.Contains(t, err.Error(), "12000x12000")
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode([]byte("this is definitely not an image"))
	require.ErrorIs(t, err, ErrInvalidImage)

	_, err = Decode(nil)
	require.ErrorIs(t, err, ErrInvalidImage)

	require.Empty(t, Format([]byte("plain text")))
}
