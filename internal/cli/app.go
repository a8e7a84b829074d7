package cli

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"

	"golang.org/x/term"

	"github.com/ncopds/ncopds/internal/config"
	"github.com/ncopds/ncopds/internal/credential"
	"github.com/ncopds/ncopds/internal/feed"
	"github.com/ncopds/ncopds/internal/http"
	"github.com/ncopds/ncopds/internal/logging"
	"github.com/ncopds/ncopds/internal/transfer"
)

// newStore returns the credential store. Tests swap it for a MemoryStore.
var newStore = func() credential.Store {
	return credential.NewKeyringStore()
}

// loadConfig reads and validates the configuration and applies its log level.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	logging.SetGlobalLevel(logLevel(cfg.LogLevel))
	return cfg, nil
}

func configPath() (string, error) {
	if cfgFile != "" {
		return cfgFile, nil
	}
	return config.DefaultConfigPath()
}

// services are the shared pieces every networked command needs.
type services struct {
	cfg    *config.Config
	logger *logging.Logger
	client *http.Client
	gate   *credential.Gate
	pool   *transfer.Pool
}

// newServices wires the HTTP client, the credential gate and the worker pool.
// The caller closes the pool.
func newServices(cfg *config.Config, logger *logging.Logger, prompter credential.Prompter) (*services, error) {
	if cfg.NeedsProxyPassword() {
		if err := promptProxyPassword(cfg); err != nil {
			return nil, err
		}
	}

	client, err := http.NewClient(cfg, logger.Child("component", "http"))
	if err != nil {
		return nil, fmt.Errorf("failed to configure HTTP client: %w", err)
	}
	gate := credential.NewGate(newStore(), prompter, logger.Child("component", "credential"))
	pool := transfer.NewPool(client, gate, cfg.Workers, logger)

	return &services{cfg: cfg, logger: logger, client: client, gate: gate, pool: pool}, nil
}

// promptProxyPassword asks for the proxy password on the terminal. The
// password is kept in memory only.
func promptProxyPassword(cfg *config.Config) error {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return fmt.Errorf("proxy user %s has no password: set %s", cfg.Proxy.User, config.EnvProxyPassword)
	}
	fmt.Fprintf(os.Stderr, "Proxy password for %s@%s: ", cfg.Proxy.User, cfg.Proxy.Host)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return fmt.Errorf("failed to read proxy password: %w", err)
	}
	cfg.Proxy.Password = string(b)
	return nil
}

// resolveTarget turns a connection name or an absolute URL into the
// connection to use and the URL to open.
func resolveTarget(cfg *config.Config, arg string) (config.Connection, string, error) {
	if conn, ok := cfg.Connection(arg); ok {
		return conn, conn.URL, nil
	}
	u, err := url.Parse(arg)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return config.Connection{}, "", fmt.Errorf("%w: %s (not a connection name or http(s) URL)", config.ErrUnknownConnection, arg)
	}
	return config.Connection{Name: u.Host, URL: arg}, arg, nil
}

// await submits req and blocks until its terminal message arrives. Progress
// is passed to onProgress when set.
func await(ctx context.Context, pool *transfer.Pool, req transfer.Request, onProgress func(transfer.Progress)) (transfer.Success, error) {
	pool.Submit(req)
	for {
		select {
		case <-ctx.Done():
			pool.Cancel(req.Seq)
			return transfer.Success{}, ctx.Err()
		case msg, ok := <-pool.Messages():
			if !ok {
				return transfer.Success{}, errors.New("worker pool closed")
			}
			if msg.Sequence() != req.Seq {
				continue
			}
			switch m := msg.(type) {
			case transfer.Progress:
				if onProgress != nil {
					onProgress(m)
				}
			case transfer.Success:
				return m, nil
			case transfer.Failure:
				return transfer.Success{}, m.Err
			}
		}
	}
}

// fetchFeed loads one catalog page, then runs query against it when set.
func fetchFeed(ctx context.Context, pool *transfer.Pool, conn config.Connection, target, query string) (*feed.Feed, error) {
	res, err := await(ctx, pool, transfer.Request{Seq: 1, Kind: transfer.FetchPage, Connection: conn, URL: target}, nil)
	if err != nil {
		return nil, err
	}
	if query == "" {
		return res.Feed, nil
	}
	f := res.Feed
	if !f.CanSearch() {
		return nil, fmt.Errorf("%s: %w", target, feed.ErrNoSearch)
	}
	res, err = await(ctx, pool, transfer.Request{
		Seq:               2,
		Kind:              transfer.Search,
		Connection:        conn,
		Query:             query,
		SearchTemplate:    f.SearchTemplate,
		SearchDescription: f.SearchDescription,
		BaseURL:           f.URL,
	}, nil)
	if err != nil {
		return nil, err
	}
	return res.Feed, nil
}
