package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

var frameExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".webp": true,
}

// DirCamera replays a directory of still images in name order, like a sheet
// feeder: every frame read advances to the next file, wrapping at the end.
// Files that cannot be decoded are skipped.
type DirCamera struct {
	Dir string
}

// NewDirCamera creates a directory-backed camera driver
func NewDirCamera(dir string) *DirCamera {
	return &DirCamera{Dir: dir}
}

// SecureContext is always true for local files
func (c *DirCamera) SecureContext() bool { return true }

// GetUserMedia lists the directory and checks that at least one file decodes
func (c *DirCamera) GetUserMedia(ctx context.Context, _ Constraints) (Stream, error) {
	entries, err := os.ReadDir(c.Dir)
	if err != nil {
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return nil, fmt.Errorf("%w: %s", ErrNotFound, c.Dir)
		case errors.Is(err, fs.ErrPermission):
			return nil, fmt.Errorf("%w: %s", ErrNotAllowed, c.Dir)
		default:
			return nil, fmt.Errorf("%w: %v", ErrNotReadable, err)
		}
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !frameExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		files = append(files, filepath.Join(c.Dir, e.Name()))
	}
	sort.Strings(files)

	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no image files in %s", ErrNotFound, c.Dir)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s := &dirStream{files: files, open: true}
	first, _, err := s.seek()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotReadable, err)
	}
	s.next = first
	return s, nil
}

type dirStream struct {
	mu        sync.Mutex
	files     []string
	next      int
	open      bool
	exhausted bool
}

// seek decodes the first readable file at or after next, wrapping once
// around the list
func (s *dirStream) seek() (int, image.Image, error) {
	var lastErr error
	for n := range len(s.files) {
		i := (s.next + n) % len(s.files)
		img, err := s.load(i)
		if err != nil {
			slog.Warn("Skipping unreadable frame", "file", s.files[i], "err", err)
			lastErr = err
			continue
		}
		return i, img, nil
	}
	return 0, nil, fmt.Errorf("no decodable image files: %w", lastErr)
}

func (s *dirStream) load(i int) (image.Image, error) {
	data, err := os.ReadFile(s.files[i])
	if err != nil {
		return nil, err
	}
	return decodeFrame(data)
}

func (s *dirStream) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open && !s.exhausted
}

func (s *dirStream) CurrentFrame() (image.Image, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.open {
		return nil, false
	}
	i, img, err := s.seek()
	if err != nil {
		s.exhausted = true
		return nil, false
	}
	s.next = (i + 1) % len(s.files)
	s.exhausted = false
	return img, true
}

func (s *dirStream) Close() error {
	s.mu.Lock()
	s.open = false
	s.mu.Unlock()
	return nil
}
