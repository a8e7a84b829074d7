package tui

import (
	"context"
	"sync"

	"github.com/ncopds/ncopds/internal/config"
	"github.com/ncopds/ncopds/internal/credential"
)

// PasswordRequest asks the interactive loop for a connection's password.
// Exactly one reply is sent on Reply; the channel is buffered so answering
// never blocks the loop, even when the worker has given up.
type PasswordRequest struct {
	ctx        context.Context
	Connection config.Connection
	Reply      chan<- PasswordReply
}

// Abandoned reports whether the asking worker stopped waiting.
func (r PasswordRequest) Abandoned() bool {
	return r.ctx.Err() != nil
}

// PasswordReply is the user's answer. Err is credential.ErrCancelled when the
// user declined.
type PasswordReply struct {
	Secret string
	Err    error
}

// Prompter implements credential.Prompter for workers by forwarding requests
// to the interactive loop and blocking until it answers.
type Prompter struct {
	requests chan PasswordRequest

	once sync.Once
	done chan struct{}
}

// NewPrompter creates a prompter. Requests arrives on Requests.
func NewPrompter() *Prompter {
	return &Prompter{
		requests: make(chan PasswordRequest),
		done:     make(chan struct{}),
	}
}

// Requests is consumed by the interactive loop.
func (p *Prompter) Requests() <-chan PasswordRequest {
	return p.requests
}

// Prompt blocks until the user answers, ctx is cancelled or the prompter is
// closed.
func (p *Prompter) Prompt(ctx context.Context, conn config.Connection) (string, error) {
	reply := make(chan PasswordReply, 1)
	req := PasswordRequest{ctx: ctx, Connection: conn, Reply: reply}

	select {
	case p.requests <- req:
	case <-ctx.Done():
		return "", ctx.Err()
	case <-p.done:
		return "", credential.ErrCancelled
	}

	select {
	case r := <-reply:
		if r.Err != nil {
			return "", r.Err
		}
		if r.Secret == "" {
			return "", credential.ErrCancelled
		}
		return r.Secret, nil
	case <-ctx.Done():
		return "", ctx.Err()
	case <-p.done:
		return "", credential.ErrCancelled
	}
}

// Close makes every pending and future Prompt return ErrCancelled.
func (p *Prompter) Close() {
	p.once.Do(func() { close(p.done) })
}
