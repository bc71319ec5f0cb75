//go:build gocv
// +build gocv

package palm

import (
	"errors"

	"gocv.io/x/gocv"
)

// Backend names the colour conversion implementation compiled in.
const Backend = "opencv"

func countSkinPixels(img Image, rng ColorRange) (int, error) {
	mat, err := gocv.NewMatFromBytes(img.Height, img.Width, gocv.MatTypeCV8UC3, img.Pix)
	if err != nil {
		return 0, err
	}
	defer mat.Close()
	if mat.Empty() {
		return 0, errors.New("empty matrix")
	}

	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(mat, &hsv, gocv.ColorBGRToHSV)

	mask := gocv.NewMat()
	defer mask.Close()
	gocv.InRangeWithScalar(hsv, toScalar(rng.Lower), toScalar(rng.Upper), &mask)

	return gocv.CountNonZero(mask), nil
}

func toScalar(c [3]uint8) gocv.Scalar {
	return gocv.NewScalar(float64(c[0]), float64(c[1]), float64(c[2]), 0)
}
