// Package transfer runs catalog fetches, searches and downloads off the
// interactive loop and reports back over a single channel.
package transfer

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/ncopds/ncopds/internal/config"
	"github.com/ncopds/ncopds/internal/constants"
	"github.com/ncopds/ncopds/internal/http"
	"github.com/ncopds/ncopds/internal/logging"
)

// Fetcher is the network layer used by workers.
type Fetcher interface {
	Get(ctx context.Context, url string, auth *http.BasicAuth, accept string) ([]byte, string, error)
	Stream(ctx context.Context, url string, auth *http.BasicAuth) (*http.Stream, error)
}

// Resolver supplies per-request credentials. credential.Gate implements it.
type Resolver interface {
	Resolve(ctx context.Context, conn config.Connection) (string, bool, error)
	Reject(conn config.Connection)
}

// unit is the pool's bookkeeping for one submitted request.
type unit struct {
	req    Request
	ctx    context.Context
	cancel context.CancelFunc
}

// Pool executes requests on at most `workers` goroutines at a time.
//
// Messages are delivered in order per sequence number: every Progress for a
// seq precedes its terminal message. There is no ordering across seqs.
// After Cancel(seq) no further message for seq is sent, except one that was
// already being handed to the channel.
type Pool struct {
	fetcher  Fetcher
	resolver Resolver
	logger   *logging.Logger

	sem *semaphore.Weighted
	out chan Message

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	units  map[uint64]*unit
	closed bool
}

// NewPool creates a pool. resolver may be nil when no connection needs
// credentials.
func NewPool(fetcher Fetcher, resolver Resolver, workers int, logger *logging.Logger) *Pool {
	if workers < constants.MinWorkers {
		workers = constants.DefaultWorkers
	}
	if workers > constants.MaxWorkers {
		workers = constants.MaxWorkers
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		fetcher:  fetcher,
		resolver: resolver,
		logger:   logger,
		sem:      semaphore.NewWeighted(int64(workers)),
		out:      make(chan Message, constants.MessageBuffer),
		ctx:      ctx,
		cancel:   cancel,
		units:    make(map[uint64]*unit),
	}
}

// Messages is the single channel results arrive on. It is closed by Close
// once all workers have stopped.
func (p *Pool) Messages() <-chan Message {
	return p.out
}

// Submit schedules req. It never blocks on I/O. Submitting after Close or
// reusing a seq that is still running is ignored.
func (p *Pool) Submit(req Request) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		p.logger.Debug().Uint64("seq", req.Seq).Msg("submit after close ignored")
		return
	}
	if _, exists := p.units[req.Seq]; exists {
		p.logger.Warn().Uint64("seq", req.Seq).Msg("duplicate sequence number ignored")
		return
	}

	ctx, cancel := context.WithCancel(p.ctx)
	u := &unit{req: req, ctx: ctx, cancel: cancel}
	p.units[req.Seq] = u
	p.wg.Add(1)
	go p.run(u)
}

// Cancel aborts seq. Unknown or finished seqs are ignored.
func (p *Pool) Cancel(seq uint64) {
	p.mu.Lock()
	u, ok := p.units[seq]
	p.mu.Unlock()
	if ok {
		p.logger.Debug().Uint64("seq", seq).Msg("cancelling request")
		u.cancel()
	}
}

// Active returns the number of submitted requests that have not finished.
func (p *Pool) Active() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.units)
}

// Close cancels all work, waits for workers to release their resources and
// closes the message channel.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	p.cancel()
	p.wg.Wait()
	close(p.out)
}

func (p *Pool) run(u *unit) {
	defer p.wg.Done()
	defer p.finish(u)

	if err := p.sem.Acquire(u.ctx, 1); err != nil {
		// Cancelled while queued.
		return
	}
	defer p.sem.Release(1)

	log := p.logger.With().Uint64("seq", u.req.Seq).Str("kind", u.req.Kind.String()).Logger()
	log.Debug().Str("url", u.req.URL).Msg("worker start")

	var msg Message
	switch u.req.Kind {
	case FetchPage:
		msg = p.fetchPage(u)
	case Search:
		msg = p.search(u)
	case Download:
		msg = p.download(u)
	default:
		msg = Failure{Seq: u.req.Seq, Kind: u.req.Kind, Err: &Error{Kind: KindTransport, Op: "submit", Err: errUnknownKind}}
	}

	if f, ok := msg.(Failure); ok {
		log.Debug().Str("error_kind", f.Err.Kind.String()).Err(f.Err.Err).Msg("worker failed")
	} else {
		log.Debug().Msg("worker done")
	}
	p.send(u, msg)
}

func (p *Pool) finish(u *unit) {
	u.cancel()
	p.mu.Lock()
	if p.units[u.req.Seq] == u {
		delete(p.units, u.req.Seq)
	}
	p.mu.Unlock()
}

// send blocks until msg is queued or the unit is cancelled. Messages are
// never dropped for a live unit.
func (p *Pool) send(u *unit, msg Message) bool {
	if u.ctx.Err() != nil {
		return false
	}
	select {
	case p.out <- msg:
		return true
	case <-u.ctx.Done():
		return false
	}
}
