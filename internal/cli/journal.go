package cli

import (
	"github.com/ncopds/ncopds/internal/events"
	"github.com/ncopds/ncopds/internal/logging"
)

// journalEvents writes every bus event to logger until the bus is closed,
// then records how many events subscribers missed.
func journalEvents(bus *events.EventBus, ch <-chan events.Event, logger *logging.Logger) {
	for ev := range ch {
		switch e := ev.(type) {
		case *events.DownloadEvent:
			logger.Info().
				Str("event", string(e.Type())).
				Uint64("seq", e.Seq).
				Str("title", e.Title).
				Str("path", e.Path).
				Int64("bytes", e.Bytes).
				Str("reason", e.Reason).
				Msg("download event")
		case *events.NavigationEvent:
			logger.Debug().
				Str("event", string(e.Type())).
				Str("location", e.Location).
				Str("message", e.Message).
				Msg("navigation event")
		default:
			logger.Debug().Str("event", string(ev.Type())).Msg("event")
		}
	}
	if dropped := bus.DroppedEvents(); dropped > 0 {
		logger.Warn().Int64("dropped", dropped).Msg("event subscribers fell behind")
	}
}
