package decl

import (
	"fmt"

	"github.com/google/go-cmp/cmp"
)

// LazyState tells whether a lazily computed field may be read.
type LazyState uint8

const (
	// Absent means the declaration has no such element.
	Absent LazyState = iota
	// Deferred means only the source text is known. The value must not be read.
	Deferred
	// Computed means the value was computed from the source text.
	Computed
)

func (s LazyState) String() string {
	switch s {
	case Absent:
		return "absent"
	case Deferred:
		return "deferred"
	case Computed:
		return "computed"
	default:
		return fmt.Sprintf("lazy_state(%d)", uint8(s))
	}
}

// Lazy is a field whose value is computed from source text on demand, for
// example a body or the argument list of an annotation.
type Lazy[T any] struct {
	state  LazyState
	source string
	value  T
}

// NewDeferred returns a lazy field that still has to be computed from source.
func NewDeferred[T any](source string) Lazy[T] {
	return Lazy[T]{state: Deferred, source: source}
}

// NewComputed returns a lazy field that holds a value with no source text.
func NewComputed[T any](value T) Lazy[T] {
	return Lazy[T]{state: Computed, value: value}
}

func (l Lazy[T]) State() LazyState { return l.state }

func (l Lazy[T]) IsAbsent() bool { return l.state == Absent }

func (l Lazy[T]) IsDeferred() bool { return l.state == Deferred }

func (l Lazy[T]) IsComputed() bool { return l.state == Computed }

// Source returns the text the value is computed from. It is retained after computing.
func (l Lazy[T]) Source() string { return l.source }

// Value returns the computed value. The second result is false unless the field is Computed.
func (l Lazy[T]) Value() (T, bool) {
	if l.state != Computed {
		var zero T
		return zero, false
	}
	return l.value, true
}

// Compute returns a copy of l holding value, keeping the source text.
// Computing an absent field is a no-op.
func (l Lazy[T]) Compute(value T) Lazy[T] {
	if l.state == Absent {
		return l
	}
	return Lazy[T]{state: Computed, source: l.source, value: value}
}

// Defer returns l reverted to its deferred form.
func (l Lazy[T]) Defer() Lazy[T] {
	if l.state == Absent {
		return l
	}
	return Lazy[T]{state: Deferred, source: l.source}
}

// Map returns a copy of l whose computed value is replaced by fn(value).
func (l Lazy[T]) Map(fn func(T) T) Lazy[T] {
	if l.state != Computed {
		return l
	}
	return Lazy[T]{state: Computed, source: l.source, value: fn(l.value)}
}

// Equal reports whether l and other are in the same state with equal contents.
func (l Lazy[T]) Equal(other Lazy[T]) bool {
	return l.state == other.state && l.source == other.source && cmp.Equal(l.value, other.value)
}

func (l Lazy[T]) String() string {
	switch l.state {
	case Deferred:
		return fmt.Sprintf("deferred(%q)", l.source)
	case Computed:
		return fmt.Sprintf("computed(%v)", l.value)
	default:
		return "absent"
	}
}
