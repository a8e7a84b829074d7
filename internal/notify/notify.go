// Package notify sends desktop notifications for finished downloads.
// It uses github.com/gen2brain/beeep for cross-platform notification support.
package notify

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/gen2brain/beeep"

	"github.com/ncopds/ncopds/internal/constants"
	"github.com/ncopds/ncopds/internal/events"
	"github.com/ncopds/ncopds/internal/logging"
)

// Notifier handles desktop notifications.
type Notifier struct {
	logger  *logging.Logger
	cfg     Config
	enabled bool
	mu      sync.RWMutex

	// send is beeep.Notify outside tests.
	send func(title, message, icon string) error
}

// Config holds notification configuration.
type Config struct {
	// Enabled determines if notifications are sent.
	Enabled bool

	// ShowDownloadComplete shows notifications for successful downloads.
	ShowDownloadComplete bool

	// ShowDownloadFailed shows notifications for failed downloads.
	// Cancellations never notify.
	ShowDownloadFailed bool
}

// DefaultConfig returns the default notification configuration.
func DefaultConfig() *Config {
	return &Config{
		Enabled:              true,
		ShowDownloadComplete: true,
		ShowDownloadFailed:   true,
	}
}

// NewNotifier creates a new notifier with the given configuration.
func NewNotifier(cfg *Config, logger *logging.Logger) *Notifier {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	return &Notifier{
		logger:  logger,
		cfg:     *cfg,
		enabled: cfg.Enabled,
		send: func(title, message, icon string) error {
			return beeep.Notify(title, message, icon)
		},
	}
}

// SetEnabled enables or disables notifications.
func (n *Notifier) SetEnabled(enabled bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.enabled = enabled
}

// IsEnabled returns whether notifications are enabled.
func (n *Notifier) IsEnabled() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.enabled
}

// Start subscribes to download events on bus and forwards them until ctx is
// done or the bus closes. The returned channel is closed when forwarding
// stops.
func (n *Notifier) Start(ctx context.Context, bus *events.EventBus) <-chan struct{} {
	completed := bus.Subscribe(events.EventDownloadCompleted)
	failed := bus.Subscribe(events.EventDownloadFailed)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-completed:
				if !ok {
					return
				}
				if de, isDownload := ev.(*events.DownloadEvent); isDownload {
					n.DownloadComplete(displayName(de), de.Path)
				}
			case ev, ok := <-failed:
				if !ok {
					return
				}
				if de, isDownload := ev.(*events.DownloadEvent); isDownload {
					n.DownloadFailed(displayName(de), de.Reason)
				}
			}
		}
	}()
	return done
}

func displayName(de *events.DownloadEvent) string {
	if de.Title != "" {
		return de.Title
	}
	return filepath.Base(de.Path)
}

// DownloadComplete sends a notification for a successful download.
func (n *Notifier) DownloadComplete(title string, outputPath string) {
	if !n.IsEnabled() || !n.cfg.ShowDownloadComplete {
		return
	}

	message := fmt.Sprintf("\"%s\" saved to:\n%s", truncate(title, 40), shortenPath(outputPath))
	if err := n.send("Download Complete", message, ""); err != nil {
		n.logger.Warn().Err(err).Str("title", title).Msg("Failed to send download complete notification")
	}
}

// DownloadFailed sends a notification for a failed download.
func (n *Notifier) DownloadFailed(title string, errorMsg string) {
	if !n.IsEnabled() || !n.cfg.ShowDownloadFailed {
		return
	}

	message := fmt.Sprintf("\"%s\" failed:\n%s", truncate(title, 40), truncate(errorMsg, 100))
	if err := n.send("Download Failed", message, ""); err != nil {
		n.logger.Warn().Err(err).Str("title", title).Msg("Failed to send download failed notification")
	}
}

// truncate shortens a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// shortenPath abbreviates a long path for display in notifications.
func shortenPath(path string) string {
	const maxLen = 60

	if len(path) <= maxLen {
		return path
	}

	_, file := filepath.Split(path)
	parentDir := filepath.Base(filepath.Dir(path))
	short := filepath.Join("...", parentDir, file)

	vol := filepath.VolumeName(path)
	if vol != "" && len(vol)+len(short)+1 <= maxLen {
		short = vol + string(filepath.Separator) + short
	}

	if len(short) > maxLen {
		return "..." + path[len(path)-(maxLen-3):]
	}

	return short
}

func init() {
	beeep.AppName = constants.AppName
}
