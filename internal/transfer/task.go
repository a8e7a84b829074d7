package transfer

import (
	"time"
)

// Status is the lifecycle of a download task.
type Status int

const (
	StatusQueued Status = iota
	StatusInProgress
	StatusCompleted
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusQueued:
		return "queued"
	case StatusInProgress:
		return "downloading"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// speedSmoothingAlpha weights the newest sample in the speed EMA.
const speedSmoothingAlpha = 0.25

// DownloadTask is one download as the display sees it. Tasks are owned by
// the interactive loop; workers never touch them.
type DownloadTask struct {
	Seq     uint64
	URL     string
	DestDir string
	Title   string
	// Path is the final file once completed.
	Path string

	Status   Status
	Received int64
	// Total is -1 while unknown.
	Total int64
	// Speed is bytes/sec, smoothed.
	Speed float64
	Err   *Error

	CreatedAt   time.Time
	StartedAt   time.Time
	CompletedAt time.Time

	lastBytes      int64
	lastUpdateTime time.Time
}

func newDownloadTask(seq uint64, url, destDir, title string, now time.Time) *DownloadTask {
	return &DownloadTask{
		Seq:       seq,
		URL:       url,
		DestDir:   destDir,
		Title:     title,
		Status:    StatusQueued,
		Total:     -1,
		CreatedAt: now,
	}
}

// Finished reports whether the task reached Completed or Failed.
func (t *DownloadTask) Finished() bool {
	return t.Status == StatusCompleted || t.Status == StatusFailed
}

// Cancelled reports whether the task failed because the user cancelled it.
func (t *DownloadTask) Cancelled() bool {
	return t.Status == StatusFailed && t.Err != nil && t.Err.Kind == KindCancelled
}

// Fraction returns progress in [0,1], or -1 when the size is unknown.
func (t *DownloadTask) Fraction() float64 {
	if t.Status == StatusCompleted {
		return 1
	}
	if t.Total <= 0 {
		return -1
	}
	f := float64(t.Received) / float64(t.Total)
	if f > 1 {
		f = 1
	}
	return f
}

// Reason is the failure message, empty unless failed.
func (t *DownloadTask) Reason() string {
	if t.Status != StatusFailed || t.Err == nil {
		return ""
	}
	return t.Err.Error()
}

// updateProgress records bytes and recalculates speed using an EMA over
// samples at least 100ms apart.
func (t *DownloadTask) updateProgress(received, total int64, now time.Time) {
	if t.Status == StatusQueued {
		t.Status = StatusInProgress
		t.StartedAt = now
		t.lastUpdateTime = now
		t.lastBytes = received
	}
	t.Received = received
	if total > 0 {
		t.Total = total
	}

	if received > t.lastBytes {
		elapsed := now.Sub(t.lastUpdateTime).Seconds()
		if elapsed > 0.1 {
			instantRate := float64(received-t.lastBytes) / elapsed
			if t.Speed > 0 {
				t.Speed = speedSmoothingAlpha*instantRate + (1-speedSmoothingAlpha)*t.Speed
			} else {
				t.Speed = instantRate
			}
			t.lastBytes = received
			t.lastUpdateTime = now
		}
	}
}

func (t *DownloadTask) complete(path string, size int64, now time.Time) {
	t.Status = StatusCompleted
	t.Path = path
	t.Received = size
	t.Total = size
	t.Speed = 0
	t.CompletedAt = now
}

func (t *DownloadTask) fail(err *Error, now time.Time) {
	t.Status = StatusFailed
	t.Err = err
	t.Speed = 0
	t.CompletedAt = now
}
