package palm

// Image is a decoded picture laid out the way OpenCV stores an 8-bit,
// three channel matrix: rows top to bottom, pixels left to right, each pixel
// as blue, green, red.
type Image struct {
	Height int
	Width  int
	Pix    []uint8
}

// NewImage allocates a black image of the given size.
func NewImage(width, height int) Image {
	if width < 0 || height < 0 {
		return Image{Height: height, Width: width}
	}
	return Image{Height: height, Width: width, Pix: make([]uint8, width*height*3)}
}

// Set writes one BGR pixel.
func (m Image) Set(x, y int, b, g, r uint8) {
	i := (y*m.Width + x) * 3
	m.Pix[i], m.Pix[i+1], m.Pix[i+2] = b, g, r
}

// At returns the BGR pixel at (x, y).
func (m Image) At(x, y int) (b, g, r uint8) {
	i := (y*m.Width + x) * 3
	return m.Pix[i], m.Pix[i+1], m.Pix[i+2]
}

// Fill paints every pixel with the same BGR colour.
func (m Image) Fill(b, g, r uint8) {
	for i := 0; i+2 < len(m.Pix); i += 3 {
		m.Pix[i], m.Pix[i+1], m.Pix[i+2] = b, g, r
	}
}

func (m Image) area() int {
	return m.Height * m.Width
}
