// Package opener hands finished downloads and local files to the operating
// system's default application.
package opener

import (
	"errors"
	"fmt"
	"os"

	"github.com/skratchdot/open-golang/open"
)

// ErrNotFound is returned when the path no longer exists.
var ErrNotFound = errors.New("file not found")

// Opener launches files in the user's default application.
type Opener struct {
	start func(path string) error
}

// New returns an Opener backed by the platform launcher (open, xdg-open or
// rundll32).
func New() *Opener {
	return &Opener{start: open.Start}
}

// Open launches path without waiting for the application to exit.
func (o *Opener) Open(path string) error {
	if path == "" {
		return fmt.Errorf("open: %w", ErrNotFound)
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("open %s: %w", path, ErrNotFound)
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	if err := o.start(path); err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	return nil
}
