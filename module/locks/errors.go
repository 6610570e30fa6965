package locks

import (
	"errors"
	"fmt"
	"strings"

	"github.com/onflow/lazyres/model/decl"
)

// CycleError is returned when granting a lock would deadlock: either the
// requesting task holds the lock already, or the holder is transitively
// waiting for a lock of the requesting task.
type CycleError struct {
	Task      uint64
	Requested decl.NodeID
	// Path lists the locks on the wait-for cycle, starting with the requested one.
	Path []decl.NodeID
}

func NewCycleError(task *Task, requested decl.NodeID, path []decl.NodeID) error {
	return CycleError{
		Task:      task.ID(),
		Requested: requested,
		Path:      append([]decl.NodeID{requested}, path...),
	}
}

func (e CycleError) Error() string {
	ids := make([]string, len(e.Path))
	for i, id := range e.Path {
		ids[i] = fmt.Sprintf("%d", id)
	}
	return fmt.Sprintf("task %d requesting lock of node %d would deadlock, cycle: %s", e.Task, e.Requested, strings.Join(ids, " -> "))
}

// IsCycleError returns whether err is a CycleError
func IsCycleError(err error) bool {
	var e CycleError
	return errors.As(err, &e)
}
