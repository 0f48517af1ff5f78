// Package compress re-encodes oversized pages before they leave the client.
package compress

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"

	"github.com/docker/go-units"
	"github.com/lehigh-university-libraries/pagescan/internal/capture"
	"github.com/lehigh-university-libraries/pagescan/internal/models"
)

const (
	// DefaultBudget bounds the per-page upload size
	DefaultBudget int64 = 500_000
	// DefaultQuality is the first JPEG quality tried on an oversized page
	DefaultQuality = 70
)

// fallbackQualities are tried, in order, after the configured quality
var fallbackQualities = []int{50, 30}

// Policy decides whether a page must be re-encoded
type Policy struct {
	Budget  int64
	Quality int
}

// DefaultPolicy is a 500KB budget starting at quality 70
func DefaultPolicy() Policy {
	return Policy{Budget: DefaultBudget, Quality: DefaultQuality}
}

// ParseBudget accepts human sizes such as "500KB" or "1.5MB" (decimal units)
func ParseBudget(s string) (int64, error) {
	size, err := units.FromHumanSize(s)
	if err != nil {
		return 0, fmt.Errorf("invalid compression budget %q: %w", s, err)
	}
	if size <= 0 {
		return 0, fmt.Errorf("compression budget must be positive, got %q", s)
	}
	return size, nil
}

// Apply runs EnsureWithinBudget with the policy's budget and starting quality
func (p Policy) Apply(img models.PageImage) (models.PageImage, error) {
	budget := p.Budget
	if budget <= 0 {
		budget = DefaultBudget
	}
	quality := p.Quality
	if quality <= 0 {
		quality = DefaultQuality
	}
	return ensureWithinBudget(img, budget, quality)
}

// EnsureWithinBudget returns img untouched when it fits the budget. Otherwise it
// decodes the page and re-encodes it as JPEG on a fixed quality ladder, returning
// the first result that fits. When nothing fits, the smallest result is returned.
func EnsureWithinBudget(img models.PageImage, budgetBytes int64) (models.PageImage, error) {
	return ensureWithinBudget(img, budgetBytes, DefaultQuality)
}

func ensureWithinBudget(img models.PageImage, budget int64, quality int) (models.PageImage, error) {
	if img.SizeBytes() <= budget {
		return img, nil
	}

	decoded, _, err := image.Decode(bytes.NewReader(img.Bytes()))
	if err != nil {
		return models.PageImage{}, fmt.Errorf("failed to decode page for compression: %w", err)
	}

	best := img
	for _, q := range ladder(quality) {
		data, err := capture.Encode(decoded, models.FormatJPEG, q)
		if err != nil {
			return models.PageImage{}, err
		}
		if int64(len(data)) < best.SizeBytes() {
			best = img.Reencoded(data, models.FormatJPEG)
		}
		if best.SizeBytes() <= budget {
			slog.Debug("Page compressed",
				"page", img.ID(),
				"from", units.HumanSize(float64(img.SizeBytes())),
				"to", units.HumanSize(float64(best.SizeBytes())),
				"quality", q,
			)
			return best, nil
		}
	}

	slog.Warn("Page still over compression budget after re-encoding",
		"page", img.ID(),
		"size", units.HumanSize(float64(best.SizeBytes())),
		"budget", units.HumanSize(float64(budget)),
	)
	return best, nil
}

func ladder(start int) []int {
	qs := []int{start}
	for _, q := range fallbackQualities {
		if q < start {
			qs = append(qs, q)
		}
	}
	return qs
}
