// Package paths provides utilities for file path handling in downloads.
package paths

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// maxCollisionSuffix bounds the search for a free name.
const maxCollisionSuffix = 9999

// SplitExt splits name into base and extension, keeping compound
// extensions such as ".fb2.zip" together.
func SplitExt(name string) (string, string) {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	if inner := filepath.Ext(base); inner != "" && len(inner) <= 5 && (ext == ".zip" || ext == ".gz") {
		return strings.TrimSuffix(base, inner), inner + ext
	}
	return base, ext
}

// WithSuffix returns "base (n).ext" for n > 0.
func WithSuffix(path string, n int) string {
	if n <= 0 {
		return path
	}
	dir, name := filepath.Split(path)
	base, ext := SplitExt(name)
	return filepath.Join(dir, fmt.Sprintf("%s (%d)%s", base, n, ext))
}

// UniquePath returns path if nothing exists there, otherwise the first
// "name (n).ext" that is free. The partial suffix is checked too so a
// running download keeps its claim on a name.
func UniquePath(path, partialSuffix string) (string, error) {
	for n := 0; n <= maxCollisionSuffix; n++ {
		candidate := WithSuffix(path, n)
		taken, err := exists(candidate)
		if err != nil {
			return "", err
		}
		if !taken && partialSuffix != "" {
			taken, err = exists(candidate + partialSuffix)
			if err != nil {
				return "", err
			}
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no free name for %s after %d attempts", filepath.Base(path), maxCollisionSuffix)
}

// Claim creates an empty file at the first free "name (n).ext" starting
// from path and returns its name. Creation is exclusive, so a file that
// appeared after UniquePath was consulted is never replaced; the caller
// renames its finished file over the claimed one.
func Claim(path string) (string, error) {
	for n := 0; n <= maxCollisionSuffix; n++ {
		candidate := WithSuffix(path, n)
		f, err := os.OpenFile(candidate, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", err
		}
		if err := f.Close(); err != nil {
			os.Remove(candidate)
			return "", err
		}
		return candidate, nil
	}
	return "", fmt.Errorf("no free name for %s after %d attempts", filepath.Base(path), maxCollisionSuffix)
}

func exists(path string) (bool, error) {
	_, err := os.Lstat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}
