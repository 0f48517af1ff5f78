// Package console drives a capture session from line-oriented input.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/docker/go-units"

	"github.com/lehigh-university-libraries/pagescan/internal/session"
	"github.com/lehigh-university-libraries/pagescan/internal/upload"
)

const help = `Commands:
  start          start the camera
  capture        add the current frame as a page
  undo           remove the last page
  remove <n>     remove page n (1-based)
  name <text>    set the document name
  pages          list captured pages
  stop           stop the camera
  finish         upload the pages
  quit           leave without uploading`

// Console reads commands from in and reports to out
type Console struct {
	session *session.Session
	in      io.Reader
	out     io.Writer
}

func New(s *session.Session, in io.Reader, out io.Writer) *Console {
	return &Console{session: s, in: in, out: out}
}

// Run processes commands until quit, end of input or context cancellation.
// The session is closed on every exit path.
func (c *Console) Run(ctx context.Context) error {
	defer c.session.Close()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	c.printf("%s\n", help)
	c.prompt()
	for {
		select {
		case <-ctx.Done():
			c.printf("\nInterrupted, %d page(s) discarded\n", len(c.session.Snapshot().Pages))
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := c.handle(ctx, line); quit {
				return nil
			}
			c.prompt()
		}
	}
}

func (c *Console) prompt() {
	snap := c.session.Snapshot()
	c.printf("[%s | %d page(s)]> ", snap.State, len(snap.Pages))
}

func (c *Console) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(c.out, format, args...)
}

func (c *Console) handle(ctx context.Context, line string) bool {
	cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(cmd) {
	case "":
	case "help", "?":
		c.printf("%s\n", help)
	case "start":
		if err := c.session.StartCamera(ctx); err != nil {
			c.fail(err)
			return false
		}
		c.printf("Camera is live\n")
	case "stop":
		if err := c.session.StopCamera(); err != nil {
			c.fail(err)
			return false
		}
		c.printf("Camera stopped\n")
	case "capture", "c":
		page, err := c.session.Capture()
		if err != nil {
			c.fail(err)
			return false
		}
		c.printf("Captured page %d (%dx%d, %s)\n", len(c.session.Snapshot().Pages), page.Width(), page.Height(), units.HumanSize(float64(page.SizeBytes())))
	case "undo", "u":
		removed, err := c.session.Undo()
		if err != nil {
			c.fail(err)
			return false
		}
		if removed {
			c.printf("Removed last page\n")
		} else {
			c.printf("Nothing to undo\n")
		}
	case "remove", "rm":
		n, err := strconv.Atoi(arg)
		if err != nil {
			c.printf("Usage: remove <n>\n")
			return false
		}
		if _, err := c.session.RemoveAt(n - 1); err != nil {
			c.fail(err)
			return false
		}
		c.printf("Removed page %d\n", n)
	case "name":
		if err := c.session.Rename(arg); err != nil {
			c.fail(err)
			return false
		}
		c.printf("Document name set to %q\n", arg)
	case "pages", "ls":
		c.listPages()
	case "finish":
		c.finish(ctx)
	case "quit", "exit", "q":
		if n := len(c.session.Snapshot().Pages); n > 0 {
			c.printf("Discarding %d page(s)\n", n)
		}
		return true
	default:
		c.printf("Unknown command %q, type help\n", cmd)
	}
	return false
}

func (c *Console) listPages() {
	snap := c.session.Snapshot()
	name := snap.Name
	if strings.TrimSpace(name) == "" {
		name = "(default)"
	}
	c.printf("Document: %s\n", name)
	if len(snap.Pages) == 0 {
		c.printf("No pages captured\n")
		return
	}
	for _, p := range snap.Pages {
		c.printf("  %d. %dx%d %s %s\n", p.Index, p.Width, p.Height, p.Format, units.HumanSize(float64(p.SizeBytes)))
	}
	c.printf("Total: %s\n", units.HumanSize(float64(snap.TotalBytes)))
}

func (c *Console) finish(ctx context.Context) {
	c.printf("Uploading...\n")
	result, err := c.session.Finish(ctx)
	if err != nil {
		c.fail(err)
		if result.Reauthenticate {
			c.printf("Sign in again with: pagescan auth store --token <token>\n")
		}
		if result.Phase == upload.PhaseFailed {
			c.printf("Type finish to retry\n")
		}
		return
	}

	if result.ScanID != "" {
		c.printf("Upload complete, scan id %s\n", result.ScanID)
		c.printf("Fetch the document with: pagescan artifact %s\n", result.ScanID)
	} else {
		c.printf("Upload complete\n")
	}
	if err := c.session.ClearAfterSuccess(); err != nil {
		c.fail(err)
	}
}

func (c *Console) fail(err error) {
	switch {
	case errors.Is(err, session.ErrBusy):
		c.printf("Busy, try again in a moment\n")
	case errors.Is(err, session.ErrNoPages):
		c.printf("Capture at least one page before finishing\n")
	default:
		c.printf("Error: %s\n", session.UserMessage(err))
	}
}
