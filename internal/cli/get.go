package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ncopds/ncopds/internal/config"
	"github.com/ncopds/ncopds/internal/credential"
	"github.com/ncopds/ncopds/internal/http"
	"github.com/ncopds/ncopds/internal/progress"
	"github.com/ncopds/ncopds/internal/transfer"
	"github.com/ncopds/ncopds/internal/util/strings"
)

func newGetCmd() *cobra.Command {
	var (
		outputDir  string
		connection string
	)

	cmd := &cobra.Command{
		Use:   "get <url>...",
		Short: "Download publications by URL",
		Long: `Download one or more acquisition links into the download directory.

Downloads run concurrently on the configured number of workers. Each
file is written to a hidden partial file and renamed into place when
complete, so an interrupted download never leaves a truncated book.

Use --connection when the server needs that connection's credentials.

Examples:
  ncopds get https://www.gutenberg.org/ebooks/84.epub3.images
  ncopds get -o ~/Books --connection library URL1 URL2`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			var conn config.Connection
			if connection != "" {
				c, ok := cfg.Connection(connection)
				if !ok {
					return fmt.Errorf("%w: %s", config.ErrUnknownConnection, connection)
				}
				conn = c
			}

			dest := cfg.DownloadDirectory
			if outputDir != "" {
				dest = config.ExpandHome(outputDir)
			}
			if err := os.MkdirAll(dest, 0755); err != nil {
				return fmt.Errorf("failed to create download directory: %w", err)
			}

			svc, err := newServices(cfg, GetLogger(), credential.NewTerminalPrompter())
			if err != nil {
				return err
			}
			defer svc.pool.Close()

			return runDownloads(cmd, svc.pool, conn, dest, args)
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Directory to save into (default: configured download directory)")
	cmd.Flags().StringVar(&connection, "connection", "", "Connection whose credentials to use")
	return cmd
}

// runDownloads submits one download per URL and drives the progress display
// until every request has finished or the command is cancelled.
func runDownloads(cmd *cobra.Command, pool *transfer.Pool, conn config.Connection, dest string, urls []string) error {
	ctx := cmd.Context()
	ui := progress.New(len(urls), cmd.ErrOrStderr(), quiet)

	// Route log lines above the bars while they are drawn.
	log := GetLogger()
	prev := log.Output()
	log.SetOutput(ui.Writer())
	defer log.SetOutput(prev)

	bars := make(map[uint64]progress.FileBarHandle, len(urls))
	for i, u := range urls {
		seq := uint64(i + 1)
		bars[seq] = ui.AddFileBar(i+1, http.URLFilename(u))
		pool.Submit(transfer.Request{
			Seq:        seq,
			Kind:       transfer.Download,
			Connection: conn,
			URL:        u,
			DestDir:    dest,
		})
	}

	var failed int64
	for len(bars) > 0 {
		select {
		case <-ctx.Done():
			for seq, bar := range bars {
				pool.Cancel(seq)
				bar.Complete("", 0, ctx.Err())
				failed++
			}
			bars = nil
		case msg, ok := <-pool.Messages():
			if !ok {
				return fmt.Errorf("worker pool closed with %s pending", strings.Count(int64(len(bars)), "download"))
			}
			bar, tracked := bars[msg.Sequence()]
			if !tracked {
				continue
			}
			switch m := msg.(type) {
			case transfer.Progress:
				bar.Update(m.Received, m.Total)
			case transfer.Success:
				bar.Complete(m.Path, m.Size, nil)
				delete(bars, m.Seq)
			case transfer.Failure:
				bar.Complete("", 0, m.Err)
				delete(bars, m.Seq)
				failed++
			}
		}
	}
	ui.Wait()

	if failed > 0 {
		return fmt.Errorf("%s of %d failed", strings.Count(failed, "download"), len(urls))
	}
	if !quiet {
		fmt.Fprintf(cmd.ErrOrStderr(), "Downloaded %s to %s\n", strings.Count(int64(len(urls)), "file"), dest)
	}
	return nil
}
