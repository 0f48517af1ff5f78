// Package capture snapshots the current camera frame into an encoded page.
package capture

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"log/slog"
	"math"

	"github.com/lehigh-university-libraries/pagescan/internal/camera"
	"github.com/lehigh-university-libraries/pagescan/internal/models"
	"golang.org/x/image/draw"
)

// DefaultJPEGQuality matches the mobile capture surface
const DefaultJPEGQuality = 80

// ErrStreamNotReady is returned when there is no live stream producing frames
var ErrStreamNotReady = errors.New("camera stream is not ready")

// Capturer encodes frames with a single policy so every page of a session
// shares one encoding.
type Capturer struct {
	encoding  models.Format
	quality   int
	maxWidth  int
	maxHeight int
}

// New creates a capturer. Quality applies to JPEG only and defaults to 80.
func New(encoding models.Format, quality int) (*Capturer, error) {
	switch encoding {
	case models.FormatPNG, models.FormatJPEG:
	default:
		return nil, fmt.Errorf("unsupported capture encoding: %q", encoding)
	}
	if quality == 0 {
		quality = DefaultJPEGQuality
	}
	if quality < 1 || quality > 100 {
		return nil, fmt.Errorf("capture quality must be between 1 and 100, got %d", quality)
	}
	return &Capturer{encoding: encoding, quality: quality}, nil
}

func (c *Capturer) Encoding() models.Format { return c.encoding }

// WithMaxSize bounds captured pages. Larger frames are scaled down keeping their
// aspect ratio; zero leaves that dimension unbounded.
func (c *Capturer) WithMaxSize(width, height int) *Capturer {
	c.maxWidth = max(width, 0)
	c.maxHeight = max(height, 0)
	return c
}

// Capture snapshots the current frame of a live stream
func (c *Capturer) Capture(h *camera.Handle) (models.PageImage, error) {
	if !h.Ready() {
		return models.PageImage{}, ErrStreamNotReady
	}
	frame, ok := h.Frame()
	if !ok || frame == nil {
		return models.PageImage{}, ErrStreamNotReady
	}

	surface := Fit(frame, c.maxWidth, c.maxHeight)
	data, err := Encode(surface, c.encoding, c.quality)
	if err != nil {
		return models.PageImage{}, err
	}

	b := surface.Bounds()
	slog.Debug("Frame captured", "format", c.encoding, "width", b.Dx(), "height", b.Dy(), "bytes", len(data))
	return models.NewPageImage(data, c.encoding, b.Dx(), b.Dy()), nil
}

// Rasterize draws a frame onto an RGBA surface of the frame's native size
func Rasterize(frame image.Image) *image.RGBA {
	b := frame.Bounds()
	surface := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(surface, surface.Bounds(), frame, b.Min, draw.Src)
	return surface
}

// Fit rasterizes a frame, scaling it down with Catmull-Rom resampling when it
// exceeds maxWidth or maxHeight
func Fit(frame image.Image, maxWidth, maxHeight int) *image.RGBA {
	b := frame.Bounds()
	w, h := b.Dx(), b.Dy()

	scale := 1.0
	if maxWidth > 0 && w > maxWidth {
		scale = float64(maxWidth) / float64(w)
	}
	if maxHeight > 0 && h > maxHeight {
		scale = min(scale, float64(maxHeight)/float64(h))
	}
	if scale >= 1 {
		return Rasterize(frame)
	}

	dw := max(int(math.Round(float64(w)*scale)), 1)
	dh := max(int(math.Round(float64(h)*scale)), 1)
	surface := image.NewRGBA(image.Rect(0, 0, dw, dh))
	draw.CatmullRom.Scale(surface, surface.Bounds(), frame, b, draw.Src, nil)
	return surface
}

// Encode writes an image in the given format
func Encode(img image.Image, format models.Format, quality int) ([]byte, error) {
	var buf bytes.Buffer
	switch format {
	case models.FormatJPEG:
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, fmt.Errorf("failed to encode jpeg: %w", err)
		}
	case models.FormatPNG:
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("failed to encode png: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported encoding: %q", format)
	}
	return buf.Bytes(), nil
}
