package media

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/rs/zerolog/log"
)

// Pool owns the fixed worker set created at startup. There is no
// restart policy: a worker fault invalidates every room routed through
// it, so the pool reports it via onFatal and the process exits.
type Pool struct {
	workers []Worker
	onFatal func(error)

	mu   sync.Mutex
	next int
}

// NewPool creates size workers up front (size <= 0 means one per CPU
// core). Any creation error tears down what was built and is returned;
// the caller treats it as fatal.
func NewPool(ctx context.Context, engine Engine, size int, onFatal func(error)) (*Pool, error) {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	p := &Pool{onFatal: onFatal}
	for i := 0; i < size; i++ {
		w, err := engine.CreateWorker(ctx)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("create worker %d: %w", i, err)
		}
		p.workers = append(p.workers, w)
		go p.watch(i, w)
	}
	log.Info().Str("module", "media.pool").Int("workers", len(p.workers)).Msg("worker pool ready")
	return p, nil
}

func (p *Pool) watch(idx int, w Worker) {
	err, ok := <-w.Died()
	if !ok {
		// Channel closed without a value: orderly shutdown.
		return
	}
	log.Error().Str("module", "media.pool").Int("worker", idx).Err(err).Msg("worker died")
	if p.onFatal != nil {
		p.onFatal(err)
	}
}

// Next returns workers in strict round-robin order, wrapping after the
// last index. Load-aware selection is deliberately not attempted.
func (p *Pool) Next() Worker {
	p.mu.Lock()
	defer p.mu.Unlock()
	w := p.workers[p.next]
	p.next = (p.next + 1) % len(p.workers)
	return w
}

func (p *Pool) Size() int {
	return len(p.workers)
}

func (p *Pool) Close() {
	for _, w := range p.workers {
		_ = w.Close()
	}
}
