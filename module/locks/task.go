package locks

import (
	"context"
	"fmt"

	"go.uber.org/atomic"
)

var lastTaskID atomic.Uint64

// Task identifies one logical resolution request across the goroutines and
// sessions it touches. Every lock is held on behalf of a task, so a task
// asking for a lock it already holds is a cycle, not a deadlock.
type Task struct {
	id   uint64
	name string
}

func newTask(name string) *Task {
	return &Task{id: lastTaskID.Inc(), name: name}
}

func (t *Task) ID() uint64 { return t.id }

func (t *Task) String() string {
	return fmt.Sprintf("task %d (%s)", t.id, t.name)
}

type taskKey struct{}

// WithTask returns a context carrying a task. If ctx carries one already it is
// kept, which makes nested requests part of the outer request.
func WithTask(ctx context.Context, name string) (context.Context, *Task) {
	if task, ok := TaskFrom(ctx); ok {
		return ctx, task
	}
	task := newTask(name)
	return context.WithValue(ctx, taskKey{}, task), task
}

// WithNewTask returns a context carrying a fresh task, replacing any task of ctx.
func WithNewTask(ctx context.Context, name string) (context.Context, *Task) {
	task := newTask(name)
	return context.WithValue(ctx, taskKey{}, task), task
}

// TaskFrom returns the task carried by ctx.
func TaskFrom(ctx context.Context) (*Task, bool) {
	task, ok := ctx.Value(taskKey{}).(*Task)
	return task, ok
}
