package engine

import (
	"context"
	"sync"

	"github.com/gyaneshwarpardhi/funnelquery/internal/compile"
)

// compileJob is one queued single-condition compilation.
type compileJob struct {
	req     compile.Request
	resultC chan compileOutcome
}

type compileOutcome struct {
	res *compile.Result
	err error
}

// compilePool is a fixed-size goroutine pool with a bounded input queue.
// Per-job compilations share no mutable state, so parallelism here is a
// throughput optimization with no ordering concerns.
type compilePool struct {
	queue chan compileJob
	wg    sync.WaitGroup
}

// newCompilePool starts n workers with queue capacity depth.
func newCompilePool(ctx context.Context, n, depth int) *compilePool {
	p := &compilePool{queue: make(chan compileJob, depth)}
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.run(ctx)
		}()
	}
	return p
}

func (p *compilePool) run(ctx context.Context) {
	for {
		select {
		case j, ok := <-p.queue:
			if !ok {
				return
			}
			res, err := compile.CompileEdge(j.req)
			if j.resultC != nil {
				j.resultC <- compileOutcome{res: res, err: err}
			}
		case <-ctx.Done():
			return
		}
	}
}

// submit enqueues a job without blocking; false means the queue is full.
func (p *compilePool) submit(j compileJob) bool {
	select {
	case p.queue <- j:
		return true
	default:
		return false
	}
}

// drain closes the queue and waits for all workers to finish.
func (p *compilePool) drain() {
	close(p.queue)
	p.wg.Wait()
}

func (p *compilePool) queueLen() int { return len(p.queue) }
func (p *compilePool) queueCap() int { return cap(p.queue) }
