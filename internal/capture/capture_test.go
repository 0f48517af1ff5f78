package capture

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/lehigh-university-libraries/pagescan/internal/camera"
	"github.com/lehigh-university-libraries/pagescan/internal/models"
)

type stubStream struct {
	frame image.Image
}

func (s *stubStream) Ready() bool                        { return s.frame != nil }
func (s *stubStream) CurrentFrame() (image.Image, bool) { return s.frame, s.frame != nil }
func (s *stubStream) Close() error                       { return nil }

type stubDevices struct {
	stream *stubStream
}

func (d *stubDevices) SecureContext() bool { return true }
func (d *stubDevices) GetUserMedia(context.Context, camera.Constraints) (camera.Stream, error) {
	return d.stream, nil
}

func acquire(t *testing.T, frame image.Image) (*camera.Controller, *camera.Handle) {
	t.Helper()
	c := camera.NewController(&stubDevices{stream: &stubStream{frame: frame}})
	h, err := c.Acquire(context.Background(), camera.DefaultConstraints())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	return c, h
}

func testFrame() image.Image {
	// offset bounds, like a cropped sensor frame
	img := image.NewRGBA(image.Rect(10, 20, 74, 68))
	for y := 20; y < 68; y++ {
		for x := 10; x < 74; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 3), G: uint8(y * 2), B: 128, A: 255})
		}
	}
	return img
}

func TestCaptureEncodesAtNativeSize(t *testing.T) {
	tests := []struct {
		name   string
		format models.Format
		decode func([]byte) (image.Image, error)
	}{
		{
			name:   "png",
			format: models.FormatPNG,
			decode: func(b []byte) (image.Image, error) { return png.Decode(bytes.NewReader(b)) },
		},
		{
			name:   "jpeg",
			format: models.FormatJPEG,
			decode: func(b []byte) (image.Image, error) { return jpeg.Decode(bytes.NewReader(b)) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, h := acquire(t, testFrame())
			c, err := New(tt.format, 0)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}

			page, err := c.Capture(h)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if page.Format() != tt.format {
				t.Errorf("Expected format %s, got %s", tt.format, page.Format())
			}
			if page.Width() != 64 || page.Height() != 48 {
				t.Errorf("Expected 64x48, got %dx%d", page.Width(), page.Height())
			}

			img, err := tt.decode(page.Bytes())
			if err != nil {
				t.Fatalf("Failed to decode captured page: %v", err)
			}
			if b := img.Bounds(); b.Dx() != 64 || b.Dy() != 48 {
				t.Errorf("Expected decoded 64x48, got %v", b)
			}
		})
	}
}

func TestCapturePNGIsLossless(t *testing.T) {
	frame := testFrame()
	_, h := acquire(t, frame)
	c, _ := New(models.FormatPNG, 0)

	page, err := c.Capture(h)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(page.Bytes()))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	want := frame.At(10+5, 20+7)
	got := img.At(5, 7)
	if color.RGBAModel.Convert(want) != color.RGBAModel.Convert(got) {
		t.Errorf("Expected pixel %v, got %v", want, got)
	}
}

func TestCaptureStreamNotReady(t *testing.T) {
	c, _ := New(models.FormatPNG, 0)

	if _, err := c.Capture(nil); !errors.Is(err, ErrStreamNotReady) {
		t.Errorf("Expected ErrStreamNotReady for nil handle, got %v", err)
	}

	_, noFrame := acquire(t, nil)
	if _, err := c.Capture(noFrame); !errors.Is(err, ErrStreamNotReady) {
		t.Errorf("Expected ErrStreamNotReady without frames, got %v", err)
	}

	ctrl, h := acquire(t, testFrame())
	ctrl.Release(h)
	if _, err := c.Capture(h); !errors.Is(err, ErrStreamNotReady) {
		t.Errorf("Expected ErrStreamNotReady for released handle, got %v", err)
	}
}

func TestNewValidates(t *testing.T) {
	if _, err := New("tiff", 0); err == nil {
		t.Errorf("Expected error for unsupported encoding")
	}
	if _, err := New(models.FormatJPEG, 101); err == nil {
		t.Errorf("Expected error for quality above 100")
	}
}

func TestCaptureScalesToMaxSize(t *testing.T) {
	tests := []struct {
		name             string
		maxW, maxH       int
		expectW, expectH int
	}{
		{name: "unbounded", expectW: 64, expectH: 48},
		{name: "larger bounds", maxW: 100, maxH: 100, expectW: 64, expectH: 48},
		{name: "width bound", maxW: 32, expectW: 32, expectH: 24},
		{name: "height bound", maxH: 12, expectW: 16, expectH: 12},
		{name: "both bounds", maxW: 32, maxH: 32, expectW: 32, expectH: 24},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, h := acquire(t, testFrame())
			c, err := New(models.FormatPNG, 0)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}

			page, err := c.WithMaxSize(tt.maxW, tt.maxH).Capture(h)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if page.Width() != tt.expectW || page.Height() != tt.expectH {
				t.Errorf("Expected %dx%d, got %dx%d", tt.expectW, tt.expectH, page.Width(), page.Height())
			}
			img, err := png.Decode(bytes.NewReader(page.Bytes()))
			if err != nil {
				t.Fatalf("Failed to decode captured page: %v", err)
			}
			if b := img.Bounds(); b.Dx() != tt.expectW || b.Dy() != tt.expectH {
				t.Errorf("Expected decoded %dx%d, got %v", tt.expectW, tt.expectH, b)
			}
		})
	}
}
