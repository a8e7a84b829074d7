package transfer

import (
	"time"

	"github.com/ncopds/ncopds/internal/events"
)

// QueueStats holds counts per status.
type QueueStats struct {
	Queued     int
	InProgress int
	Completed  int
	Failed     int
}

// Total returns total number of tasks in queue.
func (s QueueStats) Total() int {
	return s.Queued + s.InProgress + s.Completed + s.Failed
}

// Running returns tasks that have not finished.
func (s QueueStats) Running() int {
	return s.Queued + s.InProgress
}

// Queue maps download sequence numbers to tasks. It observes downloads
// executed by the Pool and publishes lifecycle events.
//
// Queue is not safe for concurrent use; it belongs to the interactive loop.
type Queue struct {
	tasks    []*DownloadTask
	bySeq    map[uint64]*DownloadTask
	eventBus *events.EventBus
	now      func() time.Time
}

// NewQueue creates an empty queue. eventBus may be nil.
func NewQueue(eventBus *events.EventBus) *Queue {
	return &Queue{
		bySeq:    make(map[uint64]*DownloadTask),
		eventBus: eventBus,
		now:      time.Now,
	}
}

// Track registers a download that was just submitted under seq.
func (q *Queue) Track(seq uint64, url, destDir, title string) *DownloadTask {
	task := newDownloadTask(seq, url, destDir, title, q.now())
	q.tasks = append(q.tasks, task)
	q.bySeq[seq] = task
	q.publish(events.EventDownloadQueued, task)
	return task
}

// Tracking reports whether seq is a download that still accepts messages.
func (q *Queue) Tracking(seq uint64) bool {
	task, ok := q.bySeq[seq]
	return ok && !task.Finished()
}

// Apply updates the task for msg. It returns false, changing nothing, for
// seqs that are unknown, finished, cancelled or dismissed.
func (q *Queue) Apply(msg Message) bool {
	task, ok := q.bySeq[msg.Sequence()]
	if !ok || task.Finished() {
		return false
	}

	now := q.now()
	switch m := msg.(type) {
	case Progress:
		task.updateProgress(m.Received, m.Total, now)
	case Success:
		task.complete(m.Path, m.Size, now)
		q.publish(events.EventDownloadCompleted, task)
	case Failure:
		task.fail(m.Err, now)
		if m.Err != nil && m.Err.Kind == KindCancelled {
			q.publish(events.EventDownloadCancelled, task)
		} else {
			q.publish(events.EventDownloadFailed, task)
		}
	default:
		return false
	}
	return true
}

// Cancel marks an unfinished task Failed(Cancelled) right away. Late
// messages for it are ignored by Apply. Stopping the worker is the caller's
// job.
func (q *Queue) Cancel(seq uint64) bool {
	task, ok := q.bySeq[seq]
	if !ok || task.Finished() {
		return false
	}
	task.fail(&Error{Kind: KindCancelled, Op: "download", Err: ErrCancelled}, q.now())
	q.publish(events.EventDownloadCancelled, task)
	return true
}

// Dismiss removes a finished task. Running tasks must be cancelled first.
func (q *Queue) Dismiss(seq uint64) bool {
	task, ok := q.bySeq[seq]
	if !ok || !task.Finished() {
		return false
	}
	q.remove(func(t *DownloadTask) bool { return t == task })
	return true
}

// ClearFinished removes all completed and failed tasks and returns how many.
func (q *Queue) ClearFinished() int {
	return q.remove((*DownloadTask).Finished)
}

func (q *Queue) remove(match func(*DownloadTask) bool) int {
	kept := q.tasks[:0]
	removed := 0
	for _, task := range q.tasks {
		if match(task) {
			delete(q.bySeq, task.Seq)
			removed++
			continue
		}
		kept = append(kept, task)
	}
	for i := len(kept); i < len(q.tasks); i++ {
		q.tasks[i] = nil
	}
	q.tasks = kept
	return removed
}

// Running returns the seqs of unfinished tasks.
func (q *Queue) Running() []uint64 {
	var seqs []uint64
	for _, task := range q.tasks {
		if !task.Finished() {
			seqs = append(seqs, task.Seq)
		}
	}
	return seqs
}

// Tasks returns copies of all tasks in creation order.
func (q *Queue) Tasks() []DownloadTask {
	result := make([]DownloadTask, len(q.tasks))
	for i, task := range q.tasks {
		result[i] = *task
	}
	return result
}

// Task returns a copy of the task for seq.
func (q *Queue) Task(seq uint64) (DownloadTask, bool) {
	task, ok := q.bySeq[seq]
	if !ok {
		return DownloadTask{}, false
	}
	return *task, true
}

// Stats returns current queue statistics.
func (q *Queue) Stats() QueueStats {
	stats := QueueStats{}
	for _, task := range q.tasks {
		switch task.Status {
		case StatusQueued:
			stats.Queued++
		case StatusInProgress:
			stats.InProgress++
		case StatusCompleted:
			stats.Completed++
		case StatusFailed:
			stats.Failed++
		}
	}
	return stats
}

func (q *Queue) publish(eventType events.EventType, task *DownloadTask) {
	if q.eventBus == nil {
		return
	}
	path := task.Path
	if path == "" {
		path = task.DestDir
	}
	q.eventBus.PublishDownload(eventType, task.Seq, task.URL, path, task.Title, task.Received, task.Reason())
}
