package locks

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/onflow/lazyres/model/decl"
	"github.com/onflow/lazyres/module"
)

// Provider hands out the advance locks of the nodes of one arena. There is
// logically one exclusive lock per node; the provider keeps a single table of
// holders and waiters so it can refuse requests that would close a wait-for
// cycle instead of deadlocking.
type Provider struct {
	log     zerolog.Logger
	metrics module.LockMetrics

	mu      sync.Mutex
	cond    *sync.Cond
	holders map[decl.NodeID]*Task
	waiting map[*Task]decl.NodeID
}

func NewProvider(log zerolog.Logger, metrics module.LockMetrics) *Provider {
	p := &Provider{
		log:     log.With().Str("component", "lock_provider").Logger(),
		metrics: metrics,
		holders: make(map[decl.NodeID]*Task),
		waiting: make(map[*Task]decl.NodeID),
	}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// WithLock runs fn while holding the exclusive advance lock of the node.
// The lock is held on behalf of the task carried by ctx; requests without a
// task get a fresh one. Expected errors:
//   - ctx.Err() if ctx is done before the lock is granted
//   - CycleError if granting the lock would deadlock
//   - any error returned by fn
func (p *Provider) WithLock(ctx context.Context, id decl.NodeID, fn func() error) error {
	task, ok := TaskFrom(ctx)
	if !ok {
		ctx, task = WithNewTask(ctx, "lock")
	}
	err := p.acquire(ctx, task, id)
	if err != nil {
		return err
	}
	defer p.release(task, id)
	return fn()
}

// WithReadLock gives fn the currently published payload of the node. Published
// payloads are immutable, so reads never wait for a writer.
func (p *Provider) WithReadLock(n *decl.Node, fn func(*decl.Payload)) {
	fn(n.Payload())
}

// HeldBy returns the task holding the lock of the node, if any.
func (p *Provider) HeldBy(id decl.NodeID) (*Task, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	task, ok := p.holders[id]
	return task, ok
}

func (p *Provider) acquire(ctx context.Context, task *Task, id decl.NodeID) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var stop func() bool
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		holder, held := p.holders[id]
		if !held {
			p.holders[id] = task
			return nil
		}
		if holder == task {
			p.metrics.LockCycleDetected()
			return NewCycleError(task, id, nil)
		}
		if path, cycle := p.cycleThrough(task, holder); cycle {
			p.metrics.LockCycleDetected()
			p.log.Warn().
				Uint64("task", task.ID()).
				Uint64("holder", holder.ID()).
				Uint32("node", uint32(id)).
				Msg("refusing lock that would deadlock")
			return NewCycleError(task, id, path)
		}
		if stop == nil {
			p.metrics.LockContended()
			// wake up the waiters when ctx is done so they can give up
			stop = context.AfterFunc(ctx, func() {
				p.mu.Lock()
				p.cond.Broadcast()
				p.mu.Unlock()
			})
			defer stop()
		}
		p.waiting[task] = id
		p.cond.Wait()
		delete(p.waiting, task)
	}
}

// cycleThrough follows the wait-for chain starting at holder and reports
// whether it leads back to task. Callers must hold p.mu.
func (p *Provider) cycleThrough(task *Task, holder *Task) ([]decl.NodeID, bool) {
	var path []decl.NodeID
	seen := make(map[*Task]struct{})
	for t := holder; t != nil; {
		if _, ok := seen[t]; ok {
			return nil, false
		}
		seen[t] = struct{}{}
		wanted, ok := p.waiting[t]
		if !ok {
			return nil, false
		}
		path = append(path, wanted)
		next := p.holders[wanted]
		if next == task {
			return path, true
		}
		t = next
	}
	return nil, false
}

func (p *Provider) release(task *Task, id decl.NodeID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.holders[id] == task {
		delete(p.holders, id)
	}
	p.cond.Broadcast()
}
