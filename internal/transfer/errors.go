package transfer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/ncopds/ncopds/internal/credential"
	"github.com/ncopds/ncopds/internal/diskspace"
	"github.com/ncopds/ncopds/internal/feed"
	"github.com/ncopds/ncopds/internal/http"
	"github.com/ncopds/ncopds/internal/localfs"
)

// Kind is the failure taxonomy shown to the user. None of them is fatal.
type Kind int

const (
	// KindTransport covers network errors, timeouts and non-2xx statuses.
	KindTransport Kind = iota
	// KindParse is a malformed or unsupported catalog document.
	KindParse
	// KindAuthRequired means the server wants credentials we could not supply.
	KindAuthRequired
	// KindCredential is a failure of the credential store or prompt itself.
	KindCredential
	// KindIO is a local filesystem failure.
	KindIO
	// KindCancelled is a user-initiated abort.
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindParse:
		return "parse"
	case KindAuthRequired:
		return "auth required"
	case KindCredential:
		return "credential"
	case KindIO:
		return "io"
	case KindCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ErrCancelled is the cause recorded for downloads the user cancelled.
var ErrCancelled = errors.New("cancelled")

// ErrHTMLPage is returned when a download turns out to be a web page.
var ErrHTMLPage = errors.New("server returned an HTML page")

// Error is the failure carried by a Failure message.
type Error struct {
	Kind Kind
	// Op names the step that failed: "fetch", "search", "download", "credentials".
	Op  string
	Err error
}

// Error renders a one-line message for the status bar.
func (e *Error) Error() string {
	if e.Err == nil {
		return e.Op + ": " + e.Kind.String()
	}
	switch e.Kind {
	case KindAuthRequired:
		return "authentication required: " + detail(e.Err)
	case KindCancelled:
		return "cancelled"
	}
	return e.Op + ": " + detail(e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// detail prefers the network layer's short wording.
func detail(err error) string {
	var statusErr *http.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Error()
	}
	return http.Describe(err)
}

// Classify maps an error from any layer onto a Kind.
func Classify(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	if errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled) || errors.Is(err, credential.ErrCancelled) {
		return KindCancelled
	}
	var parseErr *feed.ParseError
	if errors.As(err, &parseErr) || errors.Is(err, feed.ErrNoSearchTerms) || errors.Is(err, feed.ErrNoSearch) {
		return KindParse
	}
	var credErr *credential.Error
	if errors.As(err, &credErr) {
		return KindCredential
	}
	var ioErr *localfs.IoError
	if errors.As(err, &ioErr) || diskspace.IsInsufficientSpaceError(err) {
		return KindIO
	}
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return KindIO
	}
	if http.ClassifyError(err) == http.ErrorTypeAuth {
		return KindAuthRequired
	}
	return KindTransport
}

// Wrap classifies err and tags it with op. A nil err stays nil.
func Wrap(op string, err error) *Error {
	if err == nil {
		return nil
	}
	var te *Error
	if errors.As(err, &te) {
		return te
	}
	return &Error{Kind: Classify(err), Op: op, Err: err}
}
