package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ncopds/ncopds/internal/config"
	"github.com/ncopds/ncopds/internal/constants"
	"github.com/ncopds/ncopds/internal/events"
	"github.com/ncopds/ncopds/internal/localfs"
	"github.com/ncopds/ncopds/internal/logging"
	"github.com/ncopds/ncopds/internal/notify"
	"github.com/ncopds/ncopds/internal/opener"
	"github.com/ncopds/ncopds/internal/state"
	"github.com/ncopds/ncopds/internal/tui"
)

func newTUICmd() *cobra.Command {
	var showHidden bool

	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Start the interactive catalog browser",
		Long: `Start the interactive catalog browser.

The browser opens the first configured connection, or the download
directory when no connection is configured. Logs are written to the
log directory instead of the terminal while the browser is shown.

Press ? inside the browser for the key list.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUIWith(cmd, showHidden)
		},
	}
	cmd.Flags().BoolVarP(&showHidden, "all", "a", false, "Show hidden files and partial downloads in the local view")
	return cmd
}

func runTUI(cmd *cobra.Command) error {
	return runTUIWith(cmd, false)
}

func runTUIWith(cmd *cobra.Command, showHidden bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// The alternate screen owns the terminal; logs go to a rotated file.
	fileLogger := logging.NewNopLogger()
	if err := config.EnsureLogDirectory(); err == nil {
		fileLogger = logging.NewFileLogger(config.LogDirectory())
	} else {
		GetLogger().Warn().Err(err).Msg("Log directory unavailable; logging disabled")
	}
	defer fileLogger.Close()

	if err := os.MkdirAll(cfg.DownloadDirectory, 0755); err != nil {
		return fmt.Errorf("failed to create download directory: %w", err)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	prompter := tui.NewPrompter()
	svc, err := newServices(cfg, fileLogger, prompter)
	if err != nil {
		return err
	}
	defer svc.pool.Close()

	bus := events.NewEventBus(constants.EventBusDefaultBuffer)
	journalDone := make(chan struct{})
	go func(ch <-chan events.Event) {
		defer close(journalDone)
		journalEvents(bus, ch, fileLogger.Child("component", "events"))
	}(bus.SubscribeAll())
	defer func() {
		bus.Close()
		<-journalDone
	}()

	if cfg.Notifications {
		notifier := notify.NewNotifier(notify.DefaultConfig(), fileLogger)
		notifier.Start(ctx, bus)
	}

	var watcher tui.DirWatcher
	if w, err := localfs.NewWatcher(localfs.DefaultDebounce, fileLogger); err == nil {
		go w.Run(ctx)
		watcher = w
	} else {
		fileLogger.Warn().Err(err).Msg("Directory watching unavailable")
	}

	machine := state.New(svc.pool, state.Options{
		Connections: cfg.Connections,
		DownloadDir: cfg.DownloadDirectory,
		List:        localfs.ListOptions{IncludeHidden: showHidden},
		EventBus:    bus,
		Logger:      fileLogger,
	})

	fileLogger.Info().
		Int("connections", len(cfg.Connections)).
		Int("workers", cfg.Workers).
		Str("download_dir", cfg.DownloadDirectory).
		Msg("Starting browser")

	saveConnection := func(conn config.Connection) error {
		if err := cfg.AddConnection(conn); err != nil {
			return err
		}
		_, err := saveConfig(cfg)
		return err
	}

	return tui.Run(ctx, tui.Options{
		Machine:        machine,
		Messages:       svc.pool.Messages(),
		Prompter:       prompter,
		Watcher:        watcher,
		Open:           opener.New().Open,
		Refresh:        cfg.RefreshInterval,
		SaveConnection: saveConnection,
		Logger:         fileLogger,
	})
}
