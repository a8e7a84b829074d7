package progress

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/term"
)

// ProgressUI renders a batch of downloads on the terminal. Both the single
// file bar and the multi-bar UI implement it so `ncopds get` can drive either
// from the same message loop.
type ProgressUI interface {
	// AddFileBar creates a bar for the download with the given 1-based index.
	AddFileBar(index int, label string) FileBarHandle

	// Wait blocks until every bar has completed.
	Wait()

	// Writer returns an io.Writer that prints above active bars.
	Writer() io.Writer

	// IsTerminal reports whether bars are actually drawn.
	IsTerminal() bool
}

// FileBarHandle represents a single download's bar.
type FileBarHandle interface {
	// Update moves the bar to received bytes. total is -1 while unknown.
	Update(received, total int64)

	// Complete finishes the bar and prints a one-line summary.
	Complete(path string, size int64, err error)
}

// New picks the UI for totalFiles downloads written to out. A single file gets
// a progressbar; several get mpb bars. quiet suppresses bars entirely but keeps
// the summary lines.
func New(totalFiles int, out io.Writer, quiet bool) ProgressUI {
	if quiet {
		return NewDownloadUI(totalFiles, nonTerminal{out})
	}
	if totalFiles == 1 && isTerminal(out) {
		return NewSingleUI(NewCLIProgress(out), out)
	}
	return NewDownloadUI(totalFiles, out)
}

// nonTerminal hides the *os.File behind out so isTerminal reports false.
type nonTerminal struct{ io.Writer }

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// truncatePath keeps the last maxComponents elements of path.
func truncatePath(path string, maxComponents int) string {
	parts := strings.Split(filepath.ToSlash(path), "/")
	if len(parts) <= maxComponents {
		return filepath.Base(path)
	}
	relevant := parts[len(parts)-maxComponents:]
	return "…/" + strings.Join(relevant, "/")
}
