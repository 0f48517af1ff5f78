package buffer

import (
	"errors"
	"math/rand"
	"slices"
	"testing"

	"github.com/lehigh-university-libraries/pagescan/internal/models"
)

func page(tag byte) models.PageImage {
	return models.NewPageImage([]byte{tag}, models.FormatPNG, 1, 1)
}

func tags(pages []models.PageImage) []byte {
	out := make([]byte, 0, len(pages))
	for _, p := range pages {
		out = append(out, p.Bytes()[0])
	}
	return out
}

func TestReplayMatchesReferenceList(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	b := New()
	var ref []byte
	next := byte(0)

	for step := range 2000 {
		switch op := rng.Intn(3); op {
		case 0:
			next++
			b.Append(page(next))
			ref = append(ref, next)
		case 1:
			i := rng.Intn(len(ref) + 2)
			_, err := b.RemoveAt(i)
			if i < len(ref) {
				if err != nil {
					t.Fatalf("Step %d: unexpected error removing %d: %v", step, i, err)
				}
				ref = slices.Delete(ref, i, i+1)
			} else if !errors.Is(err, ErrIndexOutOfRange) {
				t.Fatalf("Step %d: expected out of range for %d, got %v", step, i, err)
			}
		case 2:
			_, ok := b.RemoveLast()
			if ok != (len(ref) > 0) {
				t.Fatalf("Step %d: expected removed=%v, got %v", step, len(ref) > 0, ok)
			}
			if len(ref) > 0 {
				ref = ref[:len(ref)-1]
			}
		}

		if got := tags(b.Snapshot()); !slices.Equal(got, ref) {
			t.Fatalf("Step %d: expected order %v, got %v", step, ref, got)
		}
	}
}

func TestRemoveLastOnEmptyIsNoop(t *testing.T) {
	b := New()
	for range 3 {
		if _, ok := b.RemoveLast(); ok {
			t.Errorf("Expected nothing removed from an empty buffer")
		}
	}
	if b.Len() != 0 {
		t.Errorf("Expected empty buffer, got %d pages", b.Len())
	}
}

func TestRemoveAtOutOfRangeLeavesBufferUnchanged(t *testing.T) {
	b := New()
	b.Append(page('A'))
	b.Append(page('B'))

	tests := []struct {
		name  string
		index int
	}{
		{name: "equal to length", index: 2},
		{name: "beyond length", index: 10},
		{name: "negative", index: -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.RemoveAt(tt.index)
			if !errors.Is(err, ErrIndexOutOfRange) {
				t.Fatalf("Expected ErrIndexOutOfRange, got %v", err)
			}
			var idxErr *IndexError
			if !errors.As(err, &idxErr) || idxErr.Index != tt.index || idxErr.Len != 2 {
				t.Errorf("Expected IndexError{%d, 2}, got %v", tt.index, err)
			}
			if got := string(tags(b.Snapshot())); got != "AB" {
				t.Errorf("Expected AB, got %s", got)
			}
		})
	}
}

func TestRemoveAtShiftsLaterPages(t *testing.T) {
	b := New()
	for _, tag := range []byte("ABCD") {
		b.Append(page(tag))
	}

	removed, err := b.RemoveAt(1)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if removed.Bytes()[0] != 'B' {
		t.Errorf("Expected B removed, got %c", removed.Bytes()[0])
	}
	if got := string(tags(b.Snapshot())); got != "ACD" {
		t.Errorf("Expected ACD, got %s", got)
	}
	p, _ := b.At(1)
	if p.Bytes()[0] != 'C' {
		t.Errorf("Expected C at index 1, got %c", p.Bytes()[0])
	}
}

func TestSnapshotIsIsolated(t *testing.T) {
	b := New()
	b.Append(page('A'))
	snap := b.Snapshot()

	b.Append(page('B'))
	b.RemoveAt(0)

	if len(snap) != 1 || snap[0].Bytes()[0] != 'A' {
		t.Errorf("Expected snapshot to keep [A], got %s", tags(snap))
	}
}

func TestClearKeepsName(t *testing.T) {
	b := New()
	b.Rename("Notes")
	b.Append(page('A'))
	b.Clear()

	if b.Len() != 0 || b.Name() != "Notes" || b.TotalBytes() != 0 {
		t.Errorf("Expected empty buffer named Notes, got %d pages named %q", b.Len(), b.Name())
	}
}
