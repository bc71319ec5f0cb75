//go:build !gocv
// +build !gocv

package palm

// Backend names the colour conversion implementation compiled in.
const Backend = "go"

func countSkinPixels(img Image, rng ColorRange) (int, error) {
	n := 0
	for i := 0; i < len(img.Pix); i += 3 {
		h, s, v := ToHSV(img.Pix[i], img.Pix[i+1], img.Pix[i+2])
		if rng.Contains(h, s, v) {
			n++
		}
	}
	return n, nil
}
