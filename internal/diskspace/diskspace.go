// Package diskspace checks free space before a download starts writing.
package diskspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
)

// InsufficientSpaceError indicates that there is not enough disk space available.
type InsufficientSpaceError struct {
	Path           string
	RequiredBytes  int64
	AvailableBytes int64
}

func (e *InsufficientSpaceError) Error() string {
	return fmt.Sprintf("insufficient disk space for %s: need %s, have %s available",
		filepath.Base(e.Path), humanize.IBytes(uint64(e.RequiredBytes)), humanize.IBytes(uint64(e.AvailableBytes)))
}

// CheckAvailableSpace returns an InsufficientSpaceError when the filesystem
// holding targetPath has less than requiredBytes*(1+bufferPercent) free.
// If free space cannot be determined the check passes and the write fails
// on its own later.
func CheckAvailableSpace(targetPath string, requiredBytes int64, bufferPercent float64) error {
	if requiredBytes <= 0 {
		return nil
	}
	available, ok := availableBytes(filepath.Dir(targetPath))
	if !ok {
		return nil
	}

	required := int64(float64(requiredBytes) * (1 + bufferPercent))
	if available < required {
		return &InsufficientSpaceError{
			Path:           targetPath,
			RequiredBytes:  required,
			AvailableBytes: available,
		}
	}
	return nil
}

// GetAvailableSpace returns the available space in bytes for the filesystem
// containing path, which is either a directory or a file that may not exist
// yet. Returns 0 if unable to determine.
func GetAvailableSpace(path string) int64 {
	dir := path
	if info, err := os.Stat(path); err != nil || !info.IsDir() {
		dir = filepath.Dir(path)
	}
	available, ok := availableBytes(dir)
	if !ok {
		return 0
	}
	return available
}

// IsInsufficientSpaceError checks if err is or wraps an InsufficientSpaceError.
func IsInsufficientSpaceError(err error) bool {
	var spaceErr *InsufficientSpaceError
	return errors.As(err, &spaceErr)
}
