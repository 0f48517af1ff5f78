package compress

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math/rand"
	"testing"

	"github.com/lehigh-university-libraries/pagescan/internal/models"
)

// noisyPage builds a PNG that does not compress losslessly
func noisyPage(t *testing.T, w, h int) models.PageImage {
	t.Helper()
	rng := rand.New(rand.NewSource(7))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.RGBA{
				R: uint8(rng.Intn(256)),
				G: uint8(rng.Intn(256)),
				B: uint8(rng.Intn(256)),
				A: 255,
			})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("Failed to encode png: %v", err)
	}
	return models.NewPageImage(buf.Bytes(), models.FormatPNG, w, h)
}

func TestSmallPageIsReturnedUnchanged(t *testing.T) {
	page := noisyPage(t, 32, 32)

	got, err := EnsureWithinBudget(page, page.SizeBytes())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !bytes.Equal(got.Bytes(), page.Bytes()) {
		t.Errorf("Expected bit-identical output")
	}
	if got.Format() != models.FormatPNG || got.ID() != page.ID() {
		t.Errorf("Expected the same png page back")
	}
}

func TestOversizedPageFitsBudget(t *testing.T) {
	page := noisyPage(t, 520, 520)
	if page.SizeBytes() <= DefaultBudget {
		t.Fatalf("Expected test page above %d bytes, got %d", DefaultBudget, page.SizeBytes())
	}

	got, err := EnsureWithinBudget(page, DefaultBudget)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got.SizeBytes() > DefaultBudget {
		t.Errorf("Expected at most %d bytes, got %d", DefaultBudget, got.SizeBytes())
	}
	if got.Format() != models.FormatJPEG {
		t.Errorf("Expected jpeg output, got %s", got.Format())
	}

	decoded, err := jpeg.Decode(bytes.NewReader(got.Bytes()))
	if err != nil {
		t.Fatalf("Failed to decode compressed page: %v", err)
	}
	if b := decoded.Bounds(); b.Dx() != 520 || b.Dy() != 520 {
		t.Errorf("Expected dimensions unchanged, got %v", b)
	}
	if got.Width() != 520 || got.Height() != 520 || got.ID() != page.ID() {
		t.Errorf("Expected page identity and dimensions kept")
	}
}

func TestCompressionIsDeterministic(t *testing.T) {
	page := noisyPage(t, 300, 300)
	budget := page.SizeBytes() / 2

	first, err := EnsureWithinBudget(page, budget)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	second, err := EnsureWithinBudget(page, budget)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !bytes.Equal(first.Bytes(), second.Bytes()) {
		t.Errorf("Expected identical output for identical input, got %d and %d bytes", first.SizeBytes(), second.SizeBytes())
	}
}

func TestUnreachableBudgetPlateaus(t *testing.T) {
	page := noisyPage(t, 64, 64)

	got, err := EnsureWithinBudget(page, 10)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got.SizeBytes() <= 10 {
		t.Fatalf("Expected budget to be unreachable, got %d bytes", got.SizeBytes())
	}
	if got.SizeBytes() > page.SizeBytes() {
		t.Errorf("Expected result no larger than input (%d), got %d", page.SizeBytes(), got.SizeBytes())
	}
}

func TestUndecodablePageFails(t *testing.T) {
	page := models.NewPageImage([]byte("not an image at all"), models.FormatPNG, 1, 1)
	if _, err := EnsureWithinBudget(page, 1); err == nil {
		t.Errorf("Expected decode error")
	}
}

func TestParseBudget(t *testing.T) {
	tests := []struct {
		input    string
		expected int64
		wantErr  bool
	}{
		{input: "500KB", expected: 500_000},
		{input: "1.5MB", expected: 1_500_000},
		{input: "250000", expected: 250_000},
		{input: "0", wantErr: true},
		{input: "lots", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseBudget(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("Expected error, got %d", got)
				}
				return
			}
			if err != nil || got != tt.expected {
				t.Errorf("Expected %d, got %d (%v)", tt.expected, got, err)
			}
		})
	}
}

func TestPolicyDefaults(t *testing.T) {
	page := noisyPage(t, 16, 16)
	got, err := Policy{}.Apply(page)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !bytes.Equal(got.Bytes(), page.Bytes()) {
		t.Errorf("Expected small page unchanged under the default policy")
	}
}
