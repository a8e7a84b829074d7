package cli

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ncopds/ncopds/internal/diskspace"
	"github.com/ncopds/ncopds/internal/localfs"
	"github.com/ncopds/ncopds/internal/util/filter"
	"github.com/ncopds/ncopds/internal/util/strings"
)

func newLsCmd() *cobra.Command {
	var (
		all       bool
		recursive bool
		include   string
		exclude   string
		search    string
		paths     string
	)

	cmd := &cobra.Command{
		Use:   "ls [directory]",
		Short: "List downloaded files",
		Long: `List the download directory, or another directory.

Hidden files and partial downloads are skipped unless --all is given.
Filters take comma-separated glob patterns; --path matches the path
relative to the listed directory and supports ** for any depth.

Examples:
  ncopds ls
  ncopds ls -r --include "*.epub,*.pdf"
  ncopds ls -r --path "verne/**" --search island`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var dir string
			if len(args) == 1 {
				dir = args[0]
			} else {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				dir = cfg.DownloadDirectory
			}

			var entries []localfs.FileEntry
			var err error
			if recursive {
				err = localfs.Walk(dir, localfs.WalkOptions{IncludeHidden: all, SkipHiddenDirs: !all}, func(e localfs.FileEntry) error {
					entries = append(entries, e)
					return nil
				})
			} else {
				entries, err = localfs.List(dir, localfs.ListOptions{IncludeHidden: all})
			}
			if err != nil {
				return err
			}

			entries = filter.Apply(dir, entries, filter.Config{
				Include:     filter.ParsePatternList(include),
				Exclude:     filter.ParsePatternList(exclude),
				Search:      filter.ParsePatternList(search),
				PathInclude: filter.ParsePatternList(paths),
			})
			printFiles(cmd.OutOrStdout(), dir, entries, recursive)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&all, "all", "a", false, "Include hidden files and partial downloads")
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "Descend into subdirectories")
	cmd.Flags().StringVar(&include, "include", "", "Only names matching these patterns")
	cmd.Flags().StringVar(&exclude, "exclude", "", "Skip names matching these patterns")
	cmd.Flags().StringVar(&search, "search", "", "Only names containing this text (case-insensitive)")
	cmd.Flags().StringVar(&paths, "path", "", "Only relative paths matching these patterns")
	return cmd
}

// printFiles renders entries as a table followed by a totals line with the
// free space left on the listed filesystem.
func printFiles(w io.Writer, root string, entries []localfs.FileEntry, relative bool) {
	t := newTable([]string{"NAME", "SIZE", "MODIFIED"}, 1)
	var files, bytes int64
	for _, e := range entries {
		name := e.Name
		if relative {
			if rel, err := filepath.Rel(root, e.Path); err == nil {
				name = filepath.ToSlash(rel)
			}
		}
		size := "-"
		if e.IsDir {
			name += "/"
		} else {
			size = humanize.IBytes(uint64(e.Size))
			files++
			bytes += e.Size
		}
		t.Row(name, size, e.ModTime.Format("2006-01-02 15:04"))
	}
	if len(entries) > 0 {
		fmt.Fprintln(w, t.Render())
	}

	footer := fmt.Sprintf("%s, %s", strings.Count(files, "file"), humanize.IBytes(uint64(bytes)))
	if free := diskspace.GetAvailableSpace(root); free > 0 {
		footer += fmt.Sprintf(" (%s free)", humanize.IBytes(uint64(free)))
	}
	fmt.Fprintln(w, footer)
}
