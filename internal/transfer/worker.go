package transfer

import (
	"context"
	"errors"
	"net/url"

	"github.com/ncopds/ncopds/internal/feed"
	"github.com/ncopds/ncopds/internal/http"
)

var errUnknownKind = errors.New("unknown request kind")

// credentials resolves auth for req inside the worker. A nil BasicAuth with
// a nil error means the request goes out unauthenticated.
func (p *Pool) credentials(ctx context.Context, req Request) (*http.BasicAuth, *Error) {
	if p.resolver == nil || req.Connection.Username == "" {
		return nil, nil
	}
	secret, ok, err := p.resolver.Resolve(ctx, req.Connection)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &Error{Kind: KindCancelled, Op: "credentials", Err: ctx.Err()}
		}
		return nil, &Error{Kind: KindAuthRequired, Op: "credentials", Err: err}
	}
	if !ok {
		return nil, nil
	}
	return &http.BasicAuth{Username: req.Connection.Username, Password: secret}, nil
}

// rejectIfRefused drops a stored secret that the server answered with 401/403.
func (p *Pool) rejectIfRefused(req Request, auth *http.BasicAuth, err error) {
	if auth != nil && p.resolver != nil && http.ClassifyError(err) == http.ErrorTypeAuth {
		p.logger.Info().Str("connection", req.Connection.Name).Msg("server refused credentials")
		p.resolver.Reject(req.Connection)
	}
}

func (p *Pool) fail(req Request, op string, err error) Failure {
	e := Wrap(op, err)
	if req.Kind != Download && e.Kind == KindIO {
		e.Kind = KindTransport
	}
	return Failure{Seq: req.Seq, Kind: req.Kind, Err: e}
}

// getFeed fetches and parses one catalog document.
func (p *Pool) getFeed(ctx context.Context, req Request, auth *http.BasicAuth, target, op string) (*feed.Feed, error) {
	data, final, err := p.fetcher.Get(ctx, target, auth, http.AcceptFeed)
	if err != nil {
		p.rejectIfRefused(req, auth, err)
		return nil, err
	}
	return feed.Parse(data, final)
}

func (p *Pool) fetchPage(u *unit) Message {
	req := u.req
	auth, cerr := p.credentials(u.ctx, req)
	if cerr != nil {
		return Failure{Seq: req.Seq, Kind: req.Kind, Err: cerr}
	}
	f, err := p.getFeed(u.ctx, req, auth, req.URL, "fetch")
	if err != nil {
		return p.fail(req, "fetch", err)
	}
	return Success{Seq: req.Seq, Kind: FetchPage, Feed: f}
}

func (p *Pool) search(u *unit) Message {
	req := u.req
	auth, cerr := p.credentials(u.ctx, req)
	if cerr != nil {
		return Failure{Seq: req.Seq, Kind: req.Kind, Err: cerr}
	}

	target, err := p.searchURL(u.ctx, req, auth)
	if err != nil {
		return p.fail(req, "search", err)
	}
	f, err := p.getFeed(u.ctx, req, auth, target, "search")
	if err != nil {
		return p.fail(req, "search", err)
	}
	return Success{Seq: req.Seq, Kind: Search, Feed: f, Query: req.Query}
}

// searchURL expands the direct template, or loads the OpenSearch
// description first when that is all the feed offered.
func (p *Pool) searchURL(ctx context.Context, req Request, auth *http.BasicAuth) (string, error) {
	if req.SearchTemplate != "" {
		return feed.ExpandTemplate(req.SearchTemplate, req.Query, parseURL(req.BaseURL))
	}
	if req.SearchDescription == "" {
		return "", feed.ErrNoSearch
	}

	data, final, err := p.fetcher.Get(ctx, req.SearchDescription, auth, http.AcceptOpenSearch)
	if err != nil {
		p.rejectIfRefused(req, auth, err)
		return "", err
	}
	template, err := feed.ParseOpenSearch(data)
	if err != nil {
		return "", err
	}
	return feed.ExpandTemplate(template, req.Query, parseURL(final))
}

func parseURL(raw string) *url.URL {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil
	}
	return u
}
