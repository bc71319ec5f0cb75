package palm

// ToHSV converts one BGR pixel to hue, saturation and value using the 8-bit
// OpenCV convention: hue is halved into 0..179, saturation and value span
// 0..255. Rounding is half-up, matching cv::cvtColor(COLOR_BGR2HSV).
func ToHSV(b, g, r uint8) (h, s, v uint8) {
	bi, gi, ri := int(b), int(g), int(r)

	maxC := max(bi, gi, ri)
	minC := min(bi, gi, ri)
	diff := maxC - minC

	if maxC > 0 {
		s = uint8(roundDiv(255*diff, maxC))
	}
	v = uint8(maxC)
	if diff == 0 {
		return 0, s, v
	}

	var hue int
	switch maxC {
	case ri:
		hue = gi - bi
	case gi:
		hue = bi - ri + 2*diff
	default:
		hue = ri - gi + 4*diff
	}
	hue = roundDiv(30*hue, diff)
	if hue < 0 {
		hue += 180
	}
	return uint8(hue), s, v
}

// roundDiv returns floor(n/d + 0.5) for d > 0, including negative n.
func roundDiv(n, d int) int {
	n = 2*n + d
	d *= 2
	q := n / d
	if n%d != 0 && n < 0 {
		q--
	}
	return q
}
