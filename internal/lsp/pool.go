package lsp

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/standardbeagle/symgraph/internal/config"
	"github.com/standardbeagle/symgraph/internal/debug"
	sgerrors "github.com/standardbeagle/symgraph/internal/errors"
)

// DefaultPoolSize is the client cap per language.
const DefaultPoolSize = 4

// DefaultMaxIdle is how long an idle client survives before the reaper
// shuts it down.
const DefaultMaxIdle = 5 * time.Minute

// acquireTimeout bounds how long Acquire waits on a full pool.
const acquireTimeout = 10 * time.Second

// Pool owns up to N clients per language, handing them out one borrower
// at a time. Acquisition is round-robin over idle clients; a fresh
// client is spawned while the pool has room, otherwise the caller waits
// on a bounded queue. Capability negotiation is cached per language so
// a replacement client starts gating requests immediately.
type Pool struct {
	adapters []config.Adapter
	rootDir  string
	policy   *TimeoutPolicy
	size     int
	maxIdle  time.Duration

	mu     sync.Mutex
	langs  map[string]*langPool
	caps   map[string]*ServerCapabilities
	closed bool

	reapStop chan struct{}
	reapDone chan struct{}
}

type langPool struct {
	idle    chan *Client
	created int
}

// NewPool builds a pool from the adapter set. size<=0 and maxIdle<=0
// take the defaults.
func NewPool(adapters []config.Adapter, rootDir string, policy *TimeoutPolicy, size int, maxIdle time.Duration) *Pool {
	if size <= 0 {
		size = DefaultPoolSize
	}
	if maxIdle <= 0 {
		maxIdle = DefaultMaxIdle
	}
	if policy == nil {
		policy = NewTimeoutPolicy()
	}
	p := &Pool{
		adapters: adapters,
		rootDir:  rootDir,
		policy:   policy,
		size:     size,
		maxIdle:  maxIdle,
		langs:    make(map[string]*langPool),
		caps:     make(map[string]*ServerCapabilities),
		reapStop: make(chan struct{}),
		reapDone: make(chan struct{}),
	}
	go p.reapLoop()
	return p
}

// Policy exposes the shared adaptive-timeout policy.
func (p *Pool) Policy() *TimeoutPolicy {
	return p.policy
}

func (p *Pool) adapterFor(language string) *config.Adapter {
	for i := range p.adapters {
		if p.adapters[i].ID == language {
			return &p.adapters[i]
		}
	}
	return nil
}

func (p *Pool) lang(language string) *langPool {
	lp, ok := p.langs[language]
	if !ok {
		lp = &langPool{idle: make(chan *Client, p.size)}
		p.langs[language] = lp
	}
	return lp
}

// Acquire borrows a client for one language, initializing fresh spawns.
// The release function must be called exactly once; pass keep=false to
// discard an unhealthy client instead of returning it.
func (p *Pool) Acquire(ctx context.Context, language string) (*Client, func(keep bool), error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, nil, sgerrors.ErrPoolClosed
	}
	adapter := p.adapterFor(language)
	if adapter == nil {
		p.mu.Unlock()
		return nil, nil, &sgerrors.LspRequestError{
			Language: language, Method: "acquire", Cause: sgerrors.CauseUnsupported,
			Underlying: fmt.Errorf("no language adapter for %q", language),
		}
	}
	lp := p.lang(language)

	// Fast path: an idle, healthy client.
	for {
		select {
		case c := <-lp.idle:
			if !c.Healthy() {
				lp.created--
				continue
			}
			p.mu.Unlock()
			c.touch()
			return c, p.releaser(language, c), nil
		default:
		}
		break
	}

	if lp.created < p.size {
		lp.created++
		p.mu.Unlock()
		c, err := p.spawnClient(ctx, language, *adapter)
		if err != nil {
			p.mu.Lock()
			lp.created--
			p.mu.Unlock()
			return nil, nil, err
		}
		return c, p.releaser(language, c), nil
	}
	p.mu.Unlock()

	// Pool full: wait for a release, bounded.
	wait, cancel := context.WithTimeout(ctx, acquireTimeout)
	defer cancel()
	for {
		select {
		case c := <-lp.idle:
			if !c.Healthy() {
				p.mu.Lock()
				lp.created--
				p.mu.Unlock()
				continue
			}
			c.touch()
			return c, p.releaser(language, c), nil
		case <-wait.Done():
			return nil, nil, &sgerrors.LspRequestError{
				Language: language, Method: "acquire", Cause: sgerrors.CauseTimeout,
				Underlying: wait.Err(),
			}
		}
	}
}

func (p *Pool) spawnClient(ctx context.Context, language string, adapter config.Adapter) (*Client, error) {
	c, err := spawn(adapter, p.rootDir, p.policy)
	if err != nil {
		return nil, &sgerrors.LspRequestError{
			Language: language, Method: "spawn", Cause: sgerrors.CauseTransportClosed, Underlying: err,
		}
	}
	p.mu.Lock()
	cached := p.caps[language]
	p.mu.Unlock()
	if err := c.Initialize(ctx, cached); err != nil {
		_ = c.Shutdown(context.Background())
		return nil, err
	}
	if cached == nil {
		caps, known := c.Capabilities()
		if known {
			p.mu.Lock()
			p.caps[language] = &caps
			p.mu.Unlock()
		}
	}
	debug.Logf("LSP", "spawned %s client", language)
	return c, nil
}

func (p *Pool) releaser(language string, c *Client) func(keep bool) {
	var once sync.Once
	return func(keep bool) {
		once.Do(func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			lp := p.lang(language)
			if p.closed || !keep || !c.Healthy() {
				lp.created--
				go func() { _ = c.Shutdown(context.Background()) }()
				return
			}
			c.touch()
			lp.idle <- c
		})
	}
}

// Do borrows a client and runs fn. After a transport failure the
// request is retried once on the next client Acquire hands out: an idle
// pooled client when one is ready, a newly spawned one otherwise. Every
// other failure is returned as-is so the extraction chain can fall
// through.
func (p *Pool) Do(ctx context.Context, language string, fn func(*Client) error) error {
	for attempt := 0; ; attempt++ {
		c, release, err := p.Acquire(ctx, language)
		if err != nil {
			return err
		}
		err = fn(c)
		healthy := c.Healthy()
		release(healthy)
		if err == nil {
			return nil
		}
		if !healthy && attempt == 0 {
			debug.Logf("LSP", "%s transport failed, retrying on fresh client", language)
			continue
		}
		return err
	}
}

// reapLoop shuts down clients idle past the cap.
func (p *Pool) reapLoop() {
	defer close(p.reapDone)
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-p.reapStop:
			return
		case <-ticker.C:
			p.reapIdle()
		}
	}
}

func (p *Pool) reapIdle() {
	cutoff := time.Now().Add(-p.maxIdle).UnixNano()
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, lp := range p.langs {
		n := len(lp.idle)
		for i := 0; i < n; i++ {
			c := <-lp.idle
			if c.lastUsed.Load() < cutoff || !c.Healthy() {
				lp.created--
				go func(victim *Client) { _ = victim.Shutdown(context.Background()) }(c)
				continue
			}
			lp.idle <- c
		}
	}
}

// Close shuts down every client and stops the reaper. Borrowed clients
// are shut down when released.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	var victims []*Client
	for _, lp := range p.langs {
		n := len(lp.idle)
		for i := 0; i < n; i++ {
			victims = append(victims, <-lp.idle)
		}
		lp.created -= n
	}
	p.mu.Unlock()

	close(p.reapStop)
	<-p.reapDone
	for _, c := range victims {
		_ = c.Shutdown(context.Background())
	}
}
