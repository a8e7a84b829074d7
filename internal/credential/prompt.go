package credential

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"

	"github.com/ncopds/ncopds/internal/config"
)

// TerminalPrompter reads passwords from the controlling terminal without echo.
// When stdin is not a terminal it reads one line instead, so passwords can be piped.
type TerminalPrompter struct {
	In  *os.File
	Out io.Writer

	mu     sync.Mutex // one prompt at a time on a shared terminal
	reader *bufio.Reader
}

// NewTerminalPrompter prompts on stderr and reads from stdin.
func NewTerminalPrompter() *TerminalPrompter {
	return &TerminalPrompter{In: os.Stdin, Out: os.Stderr}
}

func (p *TerminalPrompter) Prompt(ctx context.Context, conn config.Connection) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}

	fmt.Fprintf(p.Out, "Password for %s at %s: ", conn.Username, conn.Name)
	var secret string
	fd := int(p.In.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(p.Out)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		secret = string(b)
	} else {
		// Buffered input past the first line belongs to later prompts.
		if p.reader == nil {
			p.reader = bufio.NewReader(p.In)
		}
		line, err := p.reader.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			return "", ErrCancelled
		}
		secret = strings.TrimRight(line, "\r\n")
	}

	if secret == "" {
		return "", ErrCancelled
	}
	return secret, nil
}

// StaticPrompter answers every prompt with a fixed secret. Empty means cancel.
type StaticPrompter string

func (s StaticPrompter) Prompt(ctx context.Context, conn config.Connection) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s == "" {
		return "", ErrCancelled
	}
	return string(s), nil
}
