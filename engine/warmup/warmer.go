// Package warmup resolves whole sessions ahead of their first use.
package warmup

import (
	"context"
	"fmt"
	"sync"

	"github.com/gammazero/workerpool"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"

	"github.com/onflow/lazyres/engine/session"
	"github.com/onflow/lazyres/model/decl"
	"github.com/onflow/lazyres/model/phase"
	"github.com/onflow/lazyres/module/locks"
	"github.com/onflow/lazyres/module/util"
)

// DefaultWorkers is the number of declarations resolved concurrently.
const DefaultWorkers = 4

// Warmer resolves every declaration of a session with a pool of workers.
// Each declaration is resolved as a task of its own.
type Warmer struct {
	log     zerolog.Logger
	workers int
}

func NewWarmer(log zerolog.Logger, workers int) *Warmer {
	if workers < 1 {
		workers = DefaultWorkers
	}
	return &Warmer{
		log:     log.With().Str("component", "warmer").Logger(),
		workers: workers,
	}
}

// Warm resolves every independently resolvable node of s to phase p. A failing
// declaration does not stop the others; all failures are returned together.
// Expected errors:
//   - context.Canceled or context.DeadlineExceeded if ctx ends first
//   - a *multierror.Error of the failed declarations
func (w *Warmer) Warm(ctx context.Context, s *session.Session, p phase.Phase) error {
	var nodes []*decl.Node
	s.Arena().Walk(func(n *decl.Node) bool {
		nodes = append(nodes, n)
		return true
	})

	progress := util.LogProgress(w.log, util.DefaultProgressConfig(fmt.Sprintf("warming %s to %s", s.Module().ID, p), len(nodes)))
	pool := workerpool.New(w.workers)

	var mu sync.Mutex
	var result *multierror.Error
	for _, n := range nodes {
		n := n
		pool.Submit(func() {
			defer progress(1)
			if ctx.Err() != nil {
				return
			}
			err := w.warm(ctx, s, n, p)
			if err != nil {
				mu.Lock()
				result = multierror.Append(result, err)
				mu.Unlock()
			}
		})
	}
	pool.StopWait()

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := result.ErrorOrNil(); err != nil {
		w.log.Warn().Err(err).Str("module", s.Module().ID).Msg("session warmed with failures")
		return err
	}
	w.log.Debug().Str("module", s.Module().ID).Int("nodes", len(nodes)).Msg("session warmed")
	return nil
}

// WarmAll warms the sessions one after the other, stopping at the first
// session whose context ended.
func (w *Warmer) WarmAll(ctx context.Context, sessions []*session.Session, p phase.Phase) error {
	var result *multierror.Error
	for _, s := range sessions {
		err := w.Warm(ctx, s, p)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("could not warm %s: %w", s, err))
		}
	}
	return result.ErrorOrNil()
}

func (w *Warmer) warm(ctx context.Context, s *session.Session, n *decl.Node, p phase.Phase) error {
	if s.IsResolved(n, p) {
		return nil
	}
	target, err := s.Target(n.ID())
	if err != nil {
		return err
	}
	ctx, _ = locks.WithNewTask(ctx, "warmup "+n.QualifiedName())
	if err := s.ResolveTo(ctx, target, p); err != nil {
		return fmt.Errorf("could not resolve %s: %w", n.QualifiedName(), err)
	}
	return nil
}
