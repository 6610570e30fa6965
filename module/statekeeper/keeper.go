// Package statekeeper snapshots and restores fields of mutable structures.
//
// A Keeper declares, for one owner type, which fields to capture. Keepers
// compose: a keeper can include the keeper of a sub-element with Entity, and
// include a field only while it is not yet in a stable shape with AddIf.
// Preparing a keeper captures the declared fields and may install cheap
// placeholder values at the same time (AddArranged). Restoring the returned
// Snapshot writes every captured value back, in reverse order of capture.
package statekeeper

// Keeper declares the state to capture for owners of type T.
type Keeper[T any] struct {
	build func(b *Builder, owner T)
}

// New returns a keeper that captures what build declares for an owner.
func New[T any](build func(b *Builder, owner T)) Keeper[T] {
	return Keeper[T]{build: build}
}

// Prepare captures the state of owner and applies the arrangements of the keeper.
func (k Keeper[T]) Prepare(owner T) *Snapshot {
	b := &Builder{}
	if k.build != nil {
		k.build(b, owner)
	}
	return &Snapshot{entries: b.entries}
}

// Builder collects the entries of one snapshot.
type Builder struct {
	entries []entry
}

type entry interface {
	restore()
}

type field[V any] struct {
	set   func(V)
	value V
	copy  func(V) V
}

func (f field[V]) restore() {
	if f.copy != nil {
		f.set(f.copy(f.value))
		return
	}
	f.set(f.value)
}

// Add captures the current value of a field.
func Add[V any](b *Builder, get func() V, set func(V)) {
	b.entries = append(b.entries, field[V]{set: set, value: get()})
}

// AddCopied captures a deep copy of a field that holds shared memory, like a
// slice. The copy is taken again on restore, so restoring twice is safe.
func AddCopied[V any](b *Builder, get func() V, set func(V), copy func(V) V) {
	b.entries = append(b.entries, field[V]{set: set, value: copy(get()), copy: copy})
}

// AddArranged captures the current value of a field, then replaces it with
// arrange(value). Restoring brings back the captured value.
func AddArranged[V any](b *Builder, get func() V, set func(V), arrange func(V) V) {
	value := get()
	b.entries = append(b.entries, field[V]{set: set, value: value})
	set(arrange(value))
}

// AddIf captures the field only if condition holds, typically while the
// field is not yet immutable.
func AddIf[V any](b *Builder, condition bool, get func() V, set func(V)) {
	if condition {
		Add(b, get, set)
	}
}

// Entity includes the state declared by keeper for a sub-element.
func Entity[T any](b *Builder, owner T, keeper Keeper[T]) {
	if keeper.build != nil {
		keeper.build(b, owner)
	}
}

// EntityList includes the state declared by keeper for every sub-element.
func EntityList[T any](b *Builder, owners []T, keeper Keeper[T]) {
	for _, owner := range owners {
		Entity(b, owner, keeper)
	}
}

// Snapshot is the captured state of one Prepare call.
type Snapshot struct {
	entries []entry
}

// Len returns the number of captured fields.
func (s *Snapshot) Len() int {
	return len(s.entries)
}

// Restore writes every captured value back.
func (s *Snapshot) Restore() {
	for i := len(s.entries) - 1; i >= 0; i-- {
		s.entries[i].restore()
	}
}
