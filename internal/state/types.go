// Package state owns "where the user is": the per-connection back-stacks,
// the load state of the current location and the download task list.
//
// A Machine is confined to the interactive loop. Workers reach it only
// through transfer messages passed to OnMessage.
package state

import (
	"fmt"

	"github.com/ncopds/ncopds/internal/config"
	"github.com/ncopds/ncopds/internal/feed"
	"github.com/ncopds/ncopds/internal/localfs"
	"github.com/ncopds/ncopds/internal/transfer"
)

// LocationKind tags a Location.
type LocationKind int

const (
	RemotePage LocationKind = iota
	SearchResult
	LocalDirectory
)

func (k LocationKind) String() string {
	switch k {
	case RemotePage:
		return "page"
	case SearchResult:
		return "search"
	case LocalDirectory:
		return "local"
	default:
		return "unknown"
	}
}

// Location is a place the user can be. Connection and URL are set for
// remote pages and search results, Query for search results, Path for the
// local directory.
type Location struct {
	Kind       LocationKind
	Connection string
	URL        string
	Query      string
	Path       string
}

// Remote is a catalog page on a connection.
func Remote(connection, url string) Location {
	return Location{Kind: RemotePage, Connection: connection, URL: url}
}

// SearchAt is the result page of a search on a connection.
func SearchAt(connection, query, url string) Location {
	return Location{Kind: SearchResult, Connection: connection, Query: query, URL: url}
}

// Local is a directory on disk.
func Local(path string) Location {
	return Location{Kind: LocalDirectory, Path: path}
}

// SessionKey is the back-stack a location belongs to: the connection name,
// or "" for the local directory.
func (l Location) SessionKey() string {
	if l.Kind == LocalDirectory {
		return LocalSession
	}
	return l.Connection
}

// IsRemote reports whether loading the location needs the worker pool.
func (l Location) IsRemote() bool {
	return l.Kind != LocalDirectory
}

func (l Location) String() string {
	switch l.Kind {
	case RemotePage:
		return fmt.Sprintf("%s: %s", l.Connection, l.URL)
	case SearchResult:
		return fmt.Sprintf("%s: search %q", l.Connection, l.Query)
	case LocalDirectory:
		return l.Path
	default:
		return "?"
	}
}

// LocalSession is the session key of the downloads directory.
const LocalSession = ""

// StateKind tags a LoadState.
type StateKind int

const (
	Idle StateKind = iota
	Loading
	Loaded
	Failed
)

func (k StateKind) String() string {
	switch k {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	case Failed:
		return "error"
	default:
		return "unknown"
	}
}

// LoadState is what the current location shows. Exactly one of Feed and
// Files is meaningful when Kind is Loaded; Message is set when Failed.
type LoadState struct {
	Kind    StateKind
	Feed    *feed.Feed
	Files   []localfs.FileEntry
	Message string
	// ErrKind classifies Message for remote failures.
	ErrKind transfer.Kind
}

// HasFeed reports whether a catalog document is loaded.
func (s LoadState) HasFeed() bool {
	return s.Kind == Loaded && s.Feed != nil
}

// Snapshot is everything the display needs to render one frame.
type Snapshot struct {
	Location      Location
	Depth         int
	State         LoadState
	Filter        string
	Downloads     []transfer.DownloadTask
	Connections   []config.Connection
	ActiveSession string
}

// CanGoBack reports whether GoBack would do anything.
func (s Snapshot) CanGoBack() bool {
	return s.Depth > 1
}
