// Package progress renders download progress for the command line.
package progress

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
)

// Reporter is a single progress bar.
type Reporter interface {
	Start(total int64, description string)
	Update(current int64)
	SetTotal(total int64)
	Finish()
	Error(err error)
}

// CLIProgress implements Reporter with a progressbar.
type CLIProgress struct {
	out io.Writer
	bar *progressbar.ProgressBar
}

// NewCLIProgress creates a reporter writing to out.
func NewCLIProgress(out io.Writer) *CLIProgress {
	return &CLIProgress{out: out}
}

// Start initializes the bar. A negative total renders a spinner until
// SetTotal is called.
func (p *CLIProgress) Start(total int64, description string) {
	out := p.out
	p.bar = progressbar.NewOptions64(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(out),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(out, "\n")
		}),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetRenderBlankState(true),
	)
}

// Update moves the bar to current.
func (p *CLIProgress) Update(current int64) {
	if p.bar != nil {
		_ = p.bar.Set64(current)
	}
}

// SetTotal switches a spinner to a bar once the size is known.
func (p *CLIProgress) SetTotal(total int64) {
	if p.bar != nil && total > 0 {
		p.bar.ChangeMax64(total)
	}
}

// Finish completes the bar.
func (p *CLIProgress) Finish() {
	if p.bar != nil {
		_ = p.bar.Finish()
	}
}

// Error abandons the bar and prints err.
func (p *CLIProgress) Error(err error) {
	if p.bar != nil {
		_ = p.bar.Exit()
	}
	if err != nil {
		fmt.Fprintf(p.out, "\nError: %v\n", err)
	}
}

// NoOpProgress is a reporter that does nothing.
type NoOpProgress struct{}

// NewNoOpProgress creates a new no-op reporter.
func NewNoOpProgress() *NoOpProgress {
	return &NoOpProgress{}
}

func (p *NoOpProgress) Start(total int64, description string) {}
func (p *NoOpProgress) Update(current int64)                   {}
func (p *NoOpProgress) SetTotal(total int64)                   {}
func (p *NoOpProgress) Finish()                                {}
func (p *NoOpProgress) Error(err error)                        {}

// SingleUI adapts one Reporter to ProgressUI for single-file downloads.
type SingleUI struct {
	reporter Reporter
	out      io.Writer
	started  time.Time
}

// NewSingleUI wraps reporter; summaries go to out.
func NewSingleUI(reporter Reporter, out io.Writer) *SingleUI {
	return &SingleUI{reporter: reporter, out: out}
}

// AddFileBar starts the wrapped reporter. index is ignored.
func (u *SingleUI) AddFileBar(index int, label string) FileBarHandle {
	u.started = time.Now()
	u.reporter.Start(-1, label)
	return &singleBar{ui: u, total: -1}
}

func (u *SingleUI) Wait()             {}
func (u *SingleUI) Writer() io.Writer { return u.out }
func (u *SingleUI) IsTerminal() bool  { return isTerminal(u.out) }

type singleBar struct {
	ui    *SingleUI
	total int64
}

func (b *singleBar) Update(received, total int64) {
	if total > 0 && total != b.total {
		b.total = total
		b.ui.reporter.SetTotal(total)
	}
	b.ui.reporter.Update(received)
}

func (b *singleBar) Complete(path string, size int64, err error) {
	if err != nil {
		b.ui.reporter.Error(err)
		return
	}
	b.ui.reporter.Finish()
	fmt.Fprintf(b.ui.out, "✓ %s (%s, %s)\n",
		path, humanize.IBytes(uint64(size)), time.Since(b.ui.started).Round(time.Second))
}
