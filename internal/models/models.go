package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Format is the encoding of a captured page
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
)

// ParseFormat normalizes an encoding name ("png", "jpeg", "jpg")
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "png":
		return FormatPNG, nil
	case "jpeg", "jpg":
		return FormatJPEG, nil
	default:
		return "", fmt.Errorf("unsupported image format: %q (supported: png, jpeg)", s)
	}
}

// MimeType returns the content type used when the page leaves the client
func (f Format) MimeType() string {
	if f == FormatJPEG {
		return "image/jpeg"
	}
	return "image/png"
}

// Extension returns the file extension (without dot) used for upload part filenames
func (f Format) Extension() string {
	if f == FormatJPEG {
		return "jpg"
	}
	return "png"
}

// PageImage is an encoded snapshot of one captured page.
// It is immutable: the encoded bytes are copied in and copied out.
type PageImage struct {
	id     uuid.UUID
	data   []byte
	format Format
	width  int
	height int
}

// NewPageImage creates a page from encoded image data
func NewPageImage(data []byte, format Format, width, height int) PageImage {
	return PageImage{
		id:     uuid.New(),
		data:   append([]byte(nil), data...),
		format: format,
		width:  width,
		height: height,
	}
}

func (p PageImage) ID() uuid.UUID  { return p.id }
func (p PageImage) Format() Format { return p.format }
func (p PageImage) Width() int     { return p.width }
func (p PageImage) Height() int    { return p.height }

// SizeBytes is the encoded size, used only for the compression decision
func (p PageImage) SizeBytes() int64 { return int64(len(p.data)) }

// Bytes returns a copy of the encoded image data
func (p PageImage) Bytes() []byte {
	return append([]byte(nil), p.data...)
}

// Reencoded returns a copy of the page carrying new encoded data.
// Identity and dimensions are kept.
func (p PageImage) Reencoded(data []byte, format Format) PageImage {
	return PageImage{
		id:     p.id,
		data:   append([]byte(nil), data...),
		format: format,
		width:  p.width,
		height: p.height,
	}
}

// IsZero reports whether the page holds no image
func (p PageImage) IsZero() bool { return len(p.data) == 0 }

// Document is the frozen view of a capture session handed to the upload coordinator
type Document struct {
	Name  string
	Pages []PageImage
}

// DefaultDocumentName is the name substituted when the user leaves it blank
func DefaultDocumentName(now time.Time) string {
	return fmt.Sprintf("Scan_%s.pdf", now.UTC().Format("2006-01-02"))
}

// ResolveName trims the user supplied name, falling back to the default
func ResolveName(name string, now time.Time) string {
	if trimmed := strings.TrimSpace(name); trimmed != "" {
		return trimmed
	}
	return DefaultDocumentName(now)
}

// PageSummary describes one page in API and console listings
type PageSummary struct {
	Index     int    `json:"index"`
	ID        string `json:"id"`
	Format    Format `json:"format"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	SizeBytes int64  `json:"size_bytes"`
}

// Summarize builds listing entries for an ordered page set (1-based index)
func Summarize(pages []PageImage) []PageSummary {
	out := make([]PageSummary, 0, len(pages))
	for i, p := range pages {
		out = append(out, PageSummary{
			Index:     i + 1,
			ID:        p.ID().String(),
			Format:    p.Format(),
			Width:     p.Width(),
			Height:    p.Height(),
			SizeBytes: p.SizeBytes(),
		})
	}
	return out
}
