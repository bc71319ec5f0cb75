// Package palm decides whether an image plausibly shows a human palm by
// measuring how much of it falls inside a fixed skin-tone range in HSV space.
package palm

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

const (
	// PalmThreshold is the skin ratio an image must strictly exceed.
	PalmThreshold = 0.1

	// MessageDetected is returned with every successful classification,
	// whatever the verdict.
	MessageDetected = "Palm detected."
	// MessageFailed is returned when the image could not be measured.
	MessageFailed = "Image processing failed."
)

var (
	// ErrEmptyImage reports an image with zero height or width.
	ErrEmptyImage = errors.New("palm: image has no pixels")
	// ErrMalformedImage reports a pixel buffer that does not match the
	// declared dimensions.
	ErrMalformedImage = errors.New("palm: pixel buffer does not match image dimensions")
)

// ColorRange is an inclusive per-channel box in HSV space.
type ColorRange struct {
	Lower [3]uint8
	Upper [3]uint8
}

// SkinRange is the hue/saturation/value box treated as skin.
var SkinRange = ColorRange{
	Lower: [3]uint8{0, 20, 70},
	Upper: [3]uint8{20, 255, 255},
}

// Contains reports whether the HSV triple lies inside the range.
func (c ColorRange) Contains(h, s, v uint8) bool {
	return h >= c.Lower[0] && h <= c.Upper[0] &&
		s >= c.Lower[1] && s <= c.Upper[1] &&
		v >= c.Lower[2] && v <= c.Upper[2]
}

// Result is the verdict handed back to callers.
type Result struct {
	IsPalm  bool   `json:"is_palm"`
	Message string `json:"message"`
}

// Failed is the fail-soft result for images that could not be measured.
var Failed = Result{IsPalm: false, Message: MessageFailed}

// Analysis holds the pixel statistics behind a verdict.
type Analysis struct {
	SkinPixels  int
	TotalPixels int
	Ratio       float64
}

// IsPalm applies the threshold to the measured ratio.
func (a Analysis) IsPalm() bool {
	return a.Ratio > PalmThreshold
}

// Measure converts img to HSV, masks the pixels inside SkinRange and returns
// the mask's share of the image. It never panics: any failure, including one
// raised by the colour backend, comes back as an error.
func Measure(img Image) (a Analysis, err error) {
	if img.Height < 0 || img.Width < 0 {
		return Analysis{}, fmt.Errorf("%w: %dx%d", ErrMalformedImage, img.Width, img.Height)
	}
	total := img.area()
	if total == 0 {
		return Analysis{}, ErrEmptyImage
	}
	if len(img.Pix) != total*3 {
		return Analysis{}, fmt.Errorf("%w: %dx%d needs %d bytes, got %d",
			ErrMalformedImage, img.Width, img.Height, total*3, len(img.Pix))
	}

	defer func() {
		if r := recover(); r != nil {
			a, err = Analysis{}, fmt.Errorf("palm: %s backend: %v", Backend, r)
		}
	}()

	skin, err := countSkinPixels(img, SkinRange)
	if err != nil {
		return Analysis{}, fmt.Errorf("palm: %s backend: %w", Backend, err)
	}
	return Analysis{
		SkinPixels:  skin,
		TotalPixels: total,
		Ratio:       float64(skin) / float64(total),
	}, nil
}

// Classifier wraps Measure with the verdict and failure policy. It holds no
// per-call state and is safe for concurrent use.
type Classifier struct {
	logger *zap.Logger
}

// NewClassifier creates a classifier that logs processing failures to logger.
func NewClassifier(logger *zap.Logger) *Classifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Classifier{logger: logger.Named("palm_classifier")}
}

// Classify returns the verdict for img. Processing failures yield Failed.
func (c *Classifier) Classify(img Image) Result {
	res, _, _ := c.Evaluate(img)
	return res
}

// Evaluate is Classify plus the measurement and the processing error, if
// any. The returned Result is always well formed.
func (c *Classifier) Evaluate(img Image) (Result, Analysis, error) {
	a, err := Measure(img)
	if err != nil {
		c.logger.Warn("image processing failed",
			zap.Error(err),
			zap.Int("width", img.Width),
			zap.Int("height", img.Height),
			zap.String("backend", Backend))
		return Failed, Analysis{}, err
	}
	return Result{IsPalm: a.IsPalm(), Message: MessageDetected}, a, nil
}
