package credential

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ncopds/ncopds/internal/config"
)

type countingPrompter struct {
	secret string
	err    error
	calls  int
}

func (p *countingPrompter) Prompt(ctx context.Context, conn config.Connection) (string, error) {
	p.calls++
	return p.secret, p.err
}

type brokenStore struct{}

func (brokenStore) Get(config.Connection) (string, error) { return "", errors.New("dbus unavailable") }
func (brokenStore) Set(config.Connection, string) error   { return errors.New("dbus unavailable") }
func (brokenStore) Delete(config.Connection) error        { return errors.New("dbus unavailable") }

var testConn = config.Connection{Name: "lib", URL: "https://lib.example.com/opds", Username: "ann"}

func TestResolveWithoutUsername(t *testing.T) {
	p := &countingPrompter{secret: "x"}
	g := NewGate(NewMemoryStore(), p, nil)

	_, ok, err := g.Resolve(context.Background(), config.Connection{Name: "open", URL: "https://o/"})
	if err != nil || ok {
		t.Errorf("Expected no credential, got ok=%v err=%v", ok, err)
	}
	if p.calls != 0 {
		t.Errorf("Expected no prompt, got %d", p.calls)
	}
}

func TestResolveUsesStoredSecret(t *testing.T) {
	store := NewMemoryStore()
	store.Set(testConn, "stored")
	p := &countingPrompter{secret: "typed"}

	secret, ok, err := NewGate(store, p, nil).Resolve(context.Background(), testConn)
	if err != nil || !ok || secret != "stored" {
		t.Errorf("Expected stored secret, got %q ok=%v err=%v", secret, ok, err)
	}
	if p.calls != 0 {
		t.Errorf("Expected no prompt, got %d", p.calls)
	}
}

func TestResolvePromptsAndStores(t *testing.T) {
	store := NewMemoryStore()
	p := &countingPrompter{secret: "typed"}
	g := NewGate(store, p, nil)

	secret, ok, err := g.Resolve(context.Background(), testConn)
	if err != nil || !ok || secret != "typed" {
		t.Fatalf("Expected typed secret, got %q ok=%v err=%v", secret, ok, err)
	}
	if got, _ := store.Get(testConn); got != "typed" {
		t.Errorf("Expected secret to be stored, got %q", got)
	}

	g.Reject(testConn)
	if _, err := store.Get(testConn); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected rejected secret to be forgotten, got %v", err)
	}
}

func TestResolvePromptCancelled(t *testing.T) {
	p := &countingPrompter{err: ErrCancelled}
	_, ok, err := NewGate(NewMemoryStore(), p, nil).Resolve(context.Background(), testConn)
	if ok {
		t.Error("Expected no credential")
	}
	var credErr *Error
	if !errors.As(err, &credErr) || !errors.Is(err, ErrCancelled) {
		t.Errorf("Expected credential Error wrapping ErrCancelled, got %v", err)
	}
}

func TestResolveWithoutPrompter(t *testing.T) {
	_, _, err := NewGate(NewMemoryStore(), nil, nil).Resolve(context.Background(), testConn)
	if !errors.Is(err, ErrNoPrompter) {
		t.Errorf("Expected ErrNoPrompter, got %v", err)
	}
}

func TestResolveFallsBackWhenStoreBroken(t *testing.T) {
	p := &countingPrompter{secret: "typed"}
	secret, ok, err := NewGate(brokenStore{}, p, nil).Resolve(context.Background(), testConn)
	if err != nil || !ok || secret != "typed" {
		t.Errorf("Expected prompt fallback, got %q ok=%v err=%v", secret, ok, err)
	}
}

func TestStaticPrompter(t *testing.T) {
	if _, err := StaticPrompter("").Prompt(context.Background(), testConn); !errors.Is(err, ErrCancelled) {
		t.Errorf("Expected ErrCancelled, got %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := StaticPrompter("x").Prompt(ctx, testConn); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestTerminalPrompterReadsPipedLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stdin")
	if err := os.WriteFile(path, []byte("hunter2\n"), 0600); err != nil {
		t.Fatal(err)
	}
	in, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer in.Close()

	p := &TerminalPrompter{In: in, Out: io.Discard}
	secret, err := p.Prompt(context.Background(), testConn)
	if err != nil || secret != "hunter2" {
		t.Errorf("Expected piped password, got %q err=%v", secret, err)
	}
}

type blockingPrompter struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
}

func (p *blockingPrompter) Prompt(ctx context.Context, conn config.Connection) (string, error) {
	if p.calls.Add(1) == 1 {
		close(p.started)
	}
	<-p.release
	return "shared", nil
}

func TestResolveMergesConcurrentPrompts(t *testing.T) {
	p := &blockingPrompter{started: make(chan struct{}), release: make(chan struct{})}
	g := NewGate(NewMemoryStore(), p, nil)

	const workers = 4
	var wg sync.WaitGroup
	secrets := make([]string, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			secrets[i], _, errs[i] = g.Resolve(context.Background(), testConn)
		}(i)
	}

	<-p.started
	time.Sleep(50 * time.Millisecond)
	close(p.release)
	wg.Wait()

	if n := p.calls.Load(); n != 1 {
		t.Errorf("Expected 1 prompt for concurrent requests, got %d", n)
	}
	for i := 0; i < workers; i++ {
		if errs[i] != nil || secrets[i] != "shared" {
			t.Errorf("Worker %d: expected shared secret, got %q err=%v", i, secrets[i], errs[i])
		}
	}
}

func TestResolveWaiterHonorsContext(t *testing.T) {
	p := &blockingPrompter{started: make(chan struct{}), release: make(chan struct{})}
	g := NewGate(NewMemoryStore(), p, nil)
	defer close(p.release)

	go g.Resolve(context.Background(), testConn)
	<-p.started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, ok, err := g.Resolve(ctx, testConn)
	if ok || !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected waiting resolve to stop with the context, got ok=%v err=%v", ok, err)
	}
}

func TestTerminalPrompterKeepsBufferedInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stdin")
	if err := os.WriteFile(path, []byte("first\nsecond\n"), 0600); err != nil {
		t.Fatal(err)
	}
	in, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer in.Close()

	p := &TerminalPrompter{In: in, Out: io.Discard}
	for _, want := range []string{"first", "second"} {
		secret, err := p.Prompt(context.Background(), testConn)
		if err != nil || secret != want {
			t.Errorf("Expected %q, got %q err=%v", want, secret, err)
		}
	}
	if _, err := p.Prompt(context.Background(), testConn); !errors.Is(err, ErrCancelled) {
		t.Errorf("Expected ErrCancelled at end of input, got %v", err)
	}
}

func TestKeyringUser(t *testing.T) {
	if got := KeyringUser(testConn); got != "ann@https://lib.example.com/opds" {
		t.Errorf("Unexpected keyring user %q", got)
	}
}
