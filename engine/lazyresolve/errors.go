package lazyresolve

import (
	"context"
	"errors"
	"fmt"

	"github.com/onflow/lazyres/model/decl"
	"github.com/onflow/lazyres/model/phase"
	"github.com/onflow/lazyres/module/irrecoverable"
	"github.com/onflow/lazyres/module/locks"
	"github.com/onflow/lazyres/module/metrics"
)

var (
	// ErrRecompute is returned by a transformer whose inputs were computed too
	// cheaply. The resolver restores the state and runs the transformer once
	// more with precisely computed inputs.
	ErrRecompute = errors.New("inputs must be recomputed")

	// ErrSymbolNotFound is returned by a SymbolProvider that knows no declaration for a name.
	ErrSymbolNotFound = errors.New("symbol not found")
)

// StaleSessionError is returned when a node of an invalidated session is resolved.
type StaleSessionError struct {
	Module string
	Node   string
}

func NewStaleSessionError(module string, node *decl.Node) error {
	e := StaleSessionError{Module: module}
	if node != nil {
		e.Node = node.String()
	}
	return e
}

func (e StaleSessionError) Error() string {
	if e.Node == "" {
		return fmt.Sprintf("session of module %s is no longer valid", e.Module)
	}
	return fmt.Sprintf("session of module %s is no longer valid, cannot resolve %s", e.Module, e.Node)
}

// IsStaleSessionError returns whether err is a StaleSessionError
func IsStaleSessionError(err error) bool {
	var e StaleSessionError
	return errors.As(err, &e)
}

// PhaseConsistencyError is the symptom of a bug in the engine or in a
// transformer: a phase was skipped, did not advance, or left its
// post-conditions unmet. It is always wrapped as an irrecoverable exception.
type PhaseConsistencyError struct {
	Node  string
	Phase phase.Phase
	err   error
}

// NewPhaseConsistencyError returns the exception wrapping a PhaseConsistencyError. node may be nil.
func NewPhaseConsistencyError(node *decl.Node, p phase.Phase, err error) error {
	e := PhaseConsistencyError{Phase: p, err: err}
	if node != nil {
		e.Node = node.String()
	}
	return irrecoverable.NewException(e)
}

func NewPhaseConsistencyErrorf(node *decl.Node, p phase.Phase, msg string, args ...interface{}) error {
	return NewPhaseConsistencyError(node, p, fmt.Errorf(msg, args...))
}

func (e PhaseConsistencyError) Error() string {
	if e.Node == "" {
		return fmt.Sprintf("inconsistent %s resolution: %s", e.Phase, e.err.Error())
	}
	return fmt.Sprintf("inconsistent %s resolution of %s: %s", e.Phase, e.Node, e.err.Error())
}

func (e PhaseConsistencyError) Unwrap() error { return e.err }

// IsPhaseConsistencyError returns whether err is a PhaseConsistencyError
func IsPhaseConsistencyError(err error) bool {
	var e PhaseConsistencyError
	return errors.As(err, &e)
}

// CancellationError is returned when the context of a request is done while
// one of its nodes is being resolved. It unwraps to the context's error.
type CancellationError struct {
	Phase phase.Phase
	Node  string
	err   error
}

func NewCancellationError(p phase.Phase, node *decl.Node, err error) error {
	e := CancellationError{Phase: p, err: err}
	if node != nil {
		e.Node = node.String()
	}
	return e
}

func (e CancellationError) Error() string {
	return fmt.Sprintf("resolution of %s to %s cancelled: %s", e.Node, e.Phase, e.err.Error())
}

func (e CancellationError) Unwrap() error { return e.err }

// IsCancellationError returns whether err is a CancellationError
func IsCancellationError(err error) bool {
	var e CancellationError
	return errors.As(err, &e)
}

// TransformerError wraps a failure of a phase transformer on a node.
type TransformerError struct {
	NodeID decl.NodeID
	Node   string
	Kind   decl.Kind
	Phase  phase.Phase
	Target string
	Err    error
}

func NewTransformerError(node *decl.Node, p phase.Phase, target decl.Target, err error) error {
	return TransformerError{
		NodeID: node.ID(),
		Node:   node.QualifiedName(),
		Kind:   node.Kind(),
		Phase:  p,
		Target: target.String(),
		Err:    err,
	}
}

func (e TransformerError) Error() string {
	return fmt.Sprintf("%s transformer failed on %s %s#%d (target %s): %s", e.Phase, e.Kind, e.Node, e.NodeID, e.Target, e.Err.Error())
}

func (e TransformerError) Unwrap() error { return e.Err }

// IsTransformerError returns whether err is a TransformerError
func IsTransformerError(err error) bool {
	var e TransformerError
	return errors.As(err, &e)
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// reportedError is a resolution failure that was counted and logged already.
type reportedError struct {
	error
}

func (e reportedError) Unwrap() error { return e.error }

func isReported(err error) bool {
	var e reportedError
	return errors.As(err, &e)
}

// failureReason classifies err for metrics. The order matters: a transformer
// error caused by a cycle counts as a cycle.
func failureReason(err error) string {
	switch {
	case IsPhaseConsistencyError(err):
		return metrics.ReasonConsistency
	case IsStaleSessionError(err):
		return metrics.ReasonStale
	case isContextError(err):
		return metrics.ReasonCancelled
	case locks.IsCycleError(err):
		return metrics.ReasonCycle
	case IsTransformerError(err):
		return metrics.ReasonTransformer
	default:
		return metrics.ReasonOther
	}
}
