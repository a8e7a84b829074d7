package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/ncopds/ncopds/internal/events"
	"github.com/ncopds/ncopds/internal/logging"
)

func TestJournalEventsLogsAndReportsDrops(t *testing.T) {
	prev := zerolog.GlobalLevel()
	logging.SetGlobalLevel(zerolog.DebugLevel)
	t.Cleanup(func() { logging.SetGlobalLevel(prev) })

	var buf bytes.Buffer
	logger := logging.NewLogger(&buf)

	bus := events.NewEventBus(1)
	ch := bus.SubscribeAll()
	bus.PublishDownload(events.EventDownloadCompleted, 3, "http://h/b.epub", "/books/b.epub", "Moby Dick", 42, "")
	// The buffer holds one event; the next is dropped.
	bus.PublishDownload(events.EventDownloadFailed, 4, "http://h/c.epub", "", "Other", 0, "timeout")

	done := make(chan struct{})
	go func() {
		defer close(done)
		journalEvents(bus, ch, logger)
	}()
	bus.Close()
	<-done

	out := buf.String()
	for _, want := range []string{"download event", "download_completed", "Moby Dick", "event subscribers fell behind"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in journal, got:\n%s", want, out)
		}
	}
	if strings.Contains(out, "timeout") {
		t.Errorf("Expected the dropped event to be missing, got:\n%s", out)
	}
}
