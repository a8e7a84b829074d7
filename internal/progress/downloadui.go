package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// DownloadUI manages multiple concurrent download progress bars using mpb.
// On a non-terminal writer no bars are drawn; one line is printed when each
// download starts and finishes.
type DownloadUI struct {
	progress   *mpb.Progress
	out        io.Writer
	isTerminal bool
	totalFiles int
	completed  int32
	failed     int32
	mu         sync.Mutex
}

// DownloadFileBar is a single download's bar.
type DownloadFileBar struct {
	bar        *mpb.Bar
	ui         *DownloadUI
	index      int
	label      string
	total      int64
	startTime  time.Time
	lastUpdate time.Time
}

// NewDownloadUI creates a UI for totalFiles downloads written to out.
func NewDownloadUI(totalFiles int, out io.Writer) *DownloadUI {
	terminal := isTerminal(out)

	var p *mpb.Progress
	if terminal {
		enableANSI(out.(*os.File))
		p = mpb.New(
			mpb.WithOutput(out),
			mpb.WithRefreshRate(150*time.Millisecond),
			mpb.WithWidth(80),
		)
	}

	return &DownloadUI{
		progress:   p,
		out:        out,
		isTerminal: terminal,
		totalFiles: totalFiles,
	}
}

// AddFileBar creates a bar for one download. The total is unknown until the
// first progress update reports it.
func (u *DownloadUI) AddFileBar(index int, label string) FileBarHandle {
	fb := &DownloadFileBar{
		ui:         u,
		index:      index,
		label:      label,
		total:      -1,
		startTime:  time.Now(),
		lastUpdate: time.Now(),
	}

	if !u.isTerminal {
		u.printf("Downloading [%d/%d]: %s\n", index, u.totalFiles, label)
		return fb
	}

	fb.bar = u.progress.New(0,
		mpb.BarStyle().
			Lbound("[").
			Filler("█").
			Tip("█").
			Padding("░").
			Rbound("]"),
		mpb.PrependDecorators(
			decor.Name(fmt.Sprintf("[%d/%d] %s", index, u.totalFiles, truncateLabel(label, 32)), decor.WCSyncSpaceR),
		),
		mpb.AppendDecorators(
			decor.CountersKibiByte("% .1f / % .1f", decor.WCSyncSpace),
			decor.Name("  "),
			decor.EwmaSpeed(decor.SizeB1024(0), "% .1f", 60, decor.WCSyncSpace),
			decor.Name("  "),
			decor.OnComplete(decor.EwmaETA(decor.ET_STYLE_GO, 60), "done"),
		),
		mpb.BarRemoveOnComplete(),
	)
	return fb
}

// Update moves the bar to received bytes, setting the total the first time
// it becomes known.
func (f *DownloadFileBar) Update(received, total int64) {
	if f.bar == nil {
		return
	}
	if total > 0 && total != f.total {
		f.total = total
		f.bar.SetTotal(total, false)
	}

	now := time.Now()
	f.bar.EwmaSetCurrent(received, now.Sub(f.lastUpdate))
	f.lastUpdate = now
}

// Complete finishes the bar and prints a summary above the remaining bars.
func (f *DownloadFileBar) Complete(path string, size int64, err error) {
	elapsed := time.Since(f.startTime).Round(time.Second)

	if err != nil {
		if f.bar != nil {
			f.bar.Abort(false)
		}
		atomic.AddInt32(&f.ui.failed, 1)
		f.ui.printf("✗ %s: %v\n", f.label, err)
		return
	}

	if f.bar != nil {
		f.bar.SetTotal(size, false)
		f.bar.SetCurrent(size)
		f.bar.SetTotal(-1, true)
	}
	atomic.AddInt32(&f.ui.completed, 1)
	f.ui.printf("✓ %s (%s, %s)\n", truncatePath(path, 2), humanize.IBytes(uint64(size)), elapsed)
}

// printf writes through mpb's writer while bars are active so lines do not
// tear the display.
func (u *DownloadUI) printf(format string, args ...any) {
	u.mu.Lock()
	defer u.mu.Unlock()
	fmt.Fprintf(u.Writer(), format, args...)
}

// Wait blocks until all progress bars complete.
func (u *DownloadUI) Wait() {
	if u.progress != nil {
		u.progress.Wait()
	}
}

// Writer returns an io.Writer that prints above the progress bars.
func (u *DownloadUI) Writer() io.Writer {
	if u.progress != nil {
		return u.progress
	}
	return u.out
}

// Completed returns the number of successful downloads.
func (u *DownloadUI) Completed() int {
	return int(atomic.LoadInt32(&u.completed))
}

// Failed returns the number of failed downloads.
func (u *DownloadUI) Failed() int {
	return int(atomic.LoadInt32(&u.failed))
}

// IsTerminal returns whether bars are drawn.
func (u *DownloadUI) IsTerminal() bool {
	return u.isTerminal
}

func truncateLabel(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}
