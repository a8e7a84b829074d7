package localfs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ncopds/ncopds/internal/constants"
)

// FileEntry represents a file or directory in the local filesystem.
type FileEntry struct {
	Path    string    // Full path to the file
	Name    string    // Base name of the file
	Size    int64     // Size in bytes (0 for directories)
	IsDir   bool      // True if this is a directory
	ModTime time.Time // Last modification time
}

// IoError is a failed local filesystem operation.
type IoError struct {
	Op   string
	Path string
	Err  error
}

func (e *IoError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, unwrapPathError(e.Err))
}

func (e *IoError) Unwrap() error {
	return e.Err
}

func unwrapPathError(err error) error {
	var pe *fs.PathError
	if errors.As(err, &pe) {
		return pe.Err
	}
	var le *os.LinkError
	if errors.As(err, &le) {
		return le.Err
	}
	return err
}

// Validation errors for Rename
var (
	ErrEmptyName   = errors.New("name must not be empty")
	ErrInvalidName = errors.New("name must not contain path separators")
)

// List returns the contents of a directory: directories first, then files,
// each group sorted by name. Hidden entries and partial downloads are skipped
// unless opts.IncludeHidden is set. Nothing is cached between calls.
func List(path string, opts ListOptions) ([]FileEntry, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, &IoError{Op: "list", Path: path, Err: err}
	}

	result := make([]FileEntry, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if !opts.IncludeHidden && (IsHiddenName(name) || IsPartial(name)) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			// Removed between ReadDir and Info, or unreadable.
			continue
		}

		fe := FileEntry{
			Path:    filepath.Join(path, name),
			Name:    name,
			IsDir:   entry.IsDir(),
			ModTime: info.ModTime(),
		}
		if !fe.IsDir {
			fe.Size = info.Size()
		}
		result = append(result, fe)
	}

	sort.SliceStable(result, func(i, j int) bool {
		if result[i].IsDir != result[j].IsDir {
			return result[i].IsDir
		}
		return strings.ToLower(result[i].Name) < strings.ToLower(result[j].Name)
	})
	return result, nil
}

// Rename gives the file or directory at path a new base name within the same
// directory and returns the new path. An existing target is never replaced.
func Rename(path, newName string) (string, error) {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return "", &IoError{Op: "rename", Path: path, Err: ErrEmptyName}
	}
	if newName == "." || newName == ".." || strings.ContainsAny(newName, `/\`) {
		return "", &IoError{Op: "rename", Path: path, Err: ErrInvalidName}
	}

	if _, err := os.Lstat(path); err != nil {
		return "", &IoError{Op: "rename", Path: path, Err: err}
	}
	target := filepath.Join(filepath.Dir(path), newName)
	if target == path {
		return path, nil
	}
	if _, err := os.Lstat(target); err == nil {
		return "", &IoError{Op: "rename", Path: path, Err: fs.ErrExist}
	}
	if err := os.Rename(path, target); err != nil {
		return "", &IoError{Op: "rename", Path: path, Err: err}
	}
	return target, nil
}

// Delete removes a file or an empty directory immediately. There is no trash.
func Delete(path string) error {
	if _, err := os.Lstat(path); err != nil {
		return &IoError{Op: "delete", Path: path, Err: err}
	}
	if err := os.Remove(path); err != nil {
		return &IoError{Op: "delete", Path: path, Err: err}
	}
	return nil
}

// Filter returns the entries whose names contain text, ignoring case.
func Filter(entries []FileEntry, text string) []FileEntry {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return entries
	}
	out := make([]FileEntry, 0, len(entries))
	for _, e := range entries {
		if strings.Contains(strings.ToLower(e.Name), text) {
			out = append(out, e)
		}
	}
	return out
}

// IsPartial reports whether name is a download still being written.
func IsPartial(name string) bool {
	return strings.HasSuffix(name, constants.PartialSuffix)
}

// WalkFunc is the callback signature for Walk.
// Return filepath.SkipDir to skip a directory, or any other error to stop walking.
type WalkFunc func(entry FileEntry) error

// Walk traverses a directory tree depth-first, calling fn for each file and
// directory below root. Hidden items and partial downloads follow opts.
func Walk(root string, opts WalkOptions, fn WalkFunc) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if path == root {
			return nil
		}

		name := d.Name()
		if !opts.IncludeHidden && (IsHiddenName(name) || IsPartial(name)) {
			if d.IsDir() && opts.SkipHiddenDirs {
				return filepath.SkipDir
			}
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}

		entry := FileEntry{
			Path:    path,
			Name:    name,
			IsDir:   d.IsDir(),
			ModTime: info.ModTime(),
		}
		if !entry.IsDir {
			entry.Size = info.Size()
		}
		return fn(entry)
	})
}
