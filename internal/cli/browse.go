package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ncopds/ncopds/internal/credential"
	"github.com/ncopds/ncopds/internal/feed"
)

func newBrowseCmd() *cobra.Command {
	var (
		query     string
		showLinks bool
	)

	cmd := &cobra.Command{
		Use:   "browse <connection|url>",
		Short: "Print one catalog page",
		Long: `Fetch one catalog page and print its entries.

The argument is either the name of a configured connection, whose
root catalog is opened, or an absolute catalog URL. Navigation
entries are marked with ▸ and downloadable publications with ↓.

Examples:
  ncopds browse gutenberg
  ncopds browse gutenberg --search "jules verne"
  ncopds browse https://example.org/opds/new --links`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			conn, target, err := resolveTarget(cfg, args[0])
			if err != nil {
				return err
			}

			svc, err := newServices(cfg, GetLogger(), credential.NewTerminalPrompter())
			if err != nil {
				return err
			}
			defer svc.pool.Close()

			f, err := fetchFeed(cmd.Context(), svc.pool, conn, target, query)
			if err != nil {
				return err
			}
			printFeed(cmd.OutOrStdout(), f, showLinks)
			return nil
		},
	}

	cmd.Flags().StringVarP(&query, "search", "s", "", "Search the catalog instead of listing it")
	cmd.Flags().BoolVar(&showLinks, "links", false, "Print navigation and download URLs")
	return cmd
}

func printFeed(w io.Writer, f *feed.Feed, showLinks bool) {
	title := f.Title
	if title == "" {
		title = f.URL
	}
	fmt.Fprintln(w, title)
	if f.Subtitle != "" {
		fmt.Fprintln(w, f.Subtitle)
	}
	fmt.Fprintln(w, strings.Repeat("─", min(len([]rune(title)), 60)))

	if len(f.Entries) == 0 {
		fmt.Fprintln(w, "(empty catalog)")
	}
	for i := range f.Entries {
		e := &f.Entries[i]
		icon := "·"
		switch {
		case e.IsNavigation():
			icon = "▸"
		case e.Downloadable():
			icon = "↓"
		}
		line := fmt.Sprintf("%s %s", icon, e.Title)
		if authors := e.AuthorLine(); authors != "" {
			line += " · " + authors
		}
		fmt.Fprintln(w, line)

		if !showLinks {
			continue
		}
		if e.IsNavigation() {
			fmt.Fprintf(w, "    %s\n", e.Navigation.Href)
		}
		for _, a := range e.Downloads() {
			if a.Type != "" {
				fmt.Fprintf(w, "    %s %s (%s)\n", a.Kind, a.Href, a.Type)
			} else {
				fmt.Fprintf(w, "    %s %s\n", a.Kind, a.Href)
			}
		}
	}

	var footer []string
	for _, rel := range []feed.PageRel{feed.PagePrevious, feed.PageNext} {
		if href, ok := f.PageLink(rel); ok {
			footer = append(footer, fmt.Sprintf("%s: %s", rel, href))
		}
	}
	if f.CanSearch() {
		footer = append(footer, "search available (--search)")
	}
	if len(footer) > 0 {
		fmt.Fprintln(w)
		for _, line := range footer {
			fmt.Fprintln(w, line)
		}
	}
}
