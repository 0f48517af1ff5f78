// Package buffer holds the ordered pages of a document in progress.
package buffer

import (
	"errors"
	"fmt"
	"sync"

	"github.com/lehigh-university-libraries/pagescan/internal/models"
)

// ErrIndexOutOfRange is matched by every IndexError
var ErrIndexOutOfRange = errors.New("page index out of range")

// IndexError reports a removal outside the buffer
type IndexError struct {
	Index int
	Len   int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("page index %d out of range (buffer holds %d pages)", e.Index, e.Len)
}

func (e *IndexError) Is(target error) bool { return target == ErrIndexOutOfRange }

// PageBuffer is an ordered page collection plus the document name.
// Every call is atomic with respect to the others.
type PageBuffer struct {
	mu    sync.RWMutex
	pages []models.PageImage
	name  string
}

// New creates an empty buffer
func New() *PageBuffer {
	return &PageBuffer{}
}

// Append adds a page at the end
func (b *PageBuffer) Append(p models.PageImage) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pages = append(b.pages, p)
}

// RemoveAt deletes the page at a zero-based index, shifting later pages down.
// Out-of-range indexes leave the buffer untouched.
func (b *PageBuffer) RemoveAt(i int) (models.PageImage, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if i < 0 || i >= len(b.pages) {
		return models.PageImage{}, &IndexError{Index: i, Len: len(b.pages)}
	}

	removed := b.pages[i]
	pages := make([]models.PageImage, 0, len(b.pages)-1)
	pages = append(pages, b.pages[:i]...)
	pages = append(pages, b.pages[i+1:]...)
	b.pages = pages
	return removed, nil
}

// RemoveLast drops the most recent page. It is a no-op on an empty buffer.
func (b *PageBuffer) RemoveLast() (models.PageImage, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.pages) == 0 {
		return models.PageImage{}, false
	}
	last := b.pages[len(b.pages)-1]
	b.pages = b.pages[:len(b.pages)-1:len(b.pages)-1]
	return last, true
}

// Clear drops every page. The name is kept.
func (b *PageBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pages = nil
}

// Rename sets the document name
func (b *PageBuffer) Rename(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.name = name
}

func (b *PageBuffer) Name() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.name
}

func (b *PageBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.pages)
}

// At returns the page at a zero-based index
func (b *PageBuffer) At(i int) (models.PageImage, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if i < 0 || i >= len(b.pages) {
		return models.PageImage{}, &IndexError{Index: i, Len: len(b.pages)}
	}
	return b.pages[i], nil
}

// Snapshot returns the pages in order. The slice is a copy.
func (b *PageBuffer) Snapshot() []models.PageImage {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]models.PageImage(nil), b.pages...)
}

// TotalBytes sums the encoded size of every page
func (b *PageBuffer) TotalBytes() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var total int64
	for _, p := range b.pages {
		total += p.SizeBytes()
	}
	return total
}
