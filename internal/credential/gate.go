// Package credential resolves per-connection passwords for catalog requests.
//
// Resolution is blocking (keyring lookups, interactive prompts) and is meant
// to run inside a transfer worker. Secrets are returned to the caller for a
// single request and never cached here.
package credential

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/singleflight"

	"github.com/ncopds/ncopds/internal/config"
	"github.com/ncopds/ncopds/internal/logging"
)

var (
	// ErrNotFound is returned by a Store with no secret for the connection.
	ErrNotFound = errors.New("no stored password")

	// ErrCancelled is returned by a Prompter when the user declines to answer.
	ErrCancelled = errors.New("password entry cancelled")

	// ErrNoPrompter is returned when a password is needed but nobody can be asked.
	ErrNoPrompter = errors.New("password required but no prompt available")
)

// Store is a secret store keyed by connection.
type Store interface {
	Get(conn config.Connection) (string, error)
	Set(conn config.Connection, secret string) error
	Delete(conn config.Connection) error
}

// Prompter asks the user for a connection's password.
type Prompter interface {
	Prompt(ctx context.Context, conn config.Connection) (string, error)
}

// Error is a failed resolution.
type Error struct {
	Connection string
	Err        error
}

func (e *Error) Error() string {
	return fmt.Sprintf("credentials for %s: %v", e.Connection, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Gate combines a Store and a Prompter. Concurrent resolutions for the same
// account share one prompt.
type Gate struct {
	store    Store
	prompter Prompter
	logger   *logging.Logger
	prompts  singleflight.Group
}

// NewGate creates a gate. prompter may be nil for non-interactive use.
func NewGate(store Store, prompter Prompter, logger *logging.Logger) *Gate {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Gate{store: store, prompter: prompter, logger: logger}
}

// Resolve returns the password for conn. ok is false when the connection has
// no username and requests go out unauthenticated.
func (g *Gate) Resolve(ctx context.Context, conn config.Connection) (secret string, ok bool, err error) {
	if conn.Username == "" {
		return "", false, nil
	}

	if g.store != nil {
		secret, err := g.store.Get(conn)
		if err == nil {
			return secret, true, nil
		}
		if !errors.Is(err, ErrNotFound) {
			g.logger.Warn().Err(err).Str("connection", conn.Name).Msg("credential store unavailable, prompting")
		}
	}

	if g.prompter == nil {
		return "", false, &Error{Connection: conn.Name, Err: ErrNoPrompter}
	}

	ch := g.prompts.DoChan(KeyringUser(conn), func() (interface{}, error) {
		return g.prompt(ctx, conn)
	})
	select {
	case <-ctx.Done():
		return "", false, &Error{Connection: conn.Name, Err: ctx.Err()}
	case res := <-ch:
		if res.Err != nil {
			return "", false, &Error{Connection: conn.Name, Err: res.Err}
		}
		return res.Val.(string), true, nil
	}
}

// prompt asks for the password once and stores the answer.
func (g *Gate) prompt(ctx context.Context, conn config.Connection) (string, error) {
	secret, err := g.prompter.Prompt(ctx, conn)
	if err != nil {
		return "", err
	}
	if g.store != nil {
		if err := g.store.Set(conn, secret); err != nil {
			g.logger.Warn().Err(err).Str("connection", conn.Name).Msg("could not store password")
		}
	}
	return secret, nil
}

// Reject forgets a stored secret the server refused, so the next Resolve prompts.
func (g *Gate) Reject(conn config.Connection) {
	if g.store == nil || conn.Username == "" {
		return
	}
	if err := g.store.Delete(conn); err != nil && !errors.Is(err, ErrNotFound) {
		g.logger.Warn().Err(err).Str("connection", conn.Name).Msg("could not forget rejected password")
	}
}
