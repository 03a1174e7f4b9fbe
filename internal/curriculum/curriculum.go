// Package curriculum implements the task position tracker: a fixed
// grid of sequential task sets a user works through one task at a time.
package curriculum

import "errors"

// Default curriculum shape: 3 sets of 30 tasks, 90 tasks total.
const (
	DefaultSets        = 3
	DefaultTasksPerSet = 30
)

// Errors for position tracking.
var (
	ErrTerminal        = errors.New("curriculum complete: awaiting admin reset")
	ErrInvalidPosition = errors.New("position outside curriculum bounds")
)

// Position is a (set, task) coordinate. Both are 1-indexed. A Task value
// of tasksPerSet+1 in the final set marks the terminal state.
type Position struct {
	Set  int `json:"set"`
	Task int `json:"task"`
}

// Curriculum knows the grid shape and advances positions across it.
type Curriculum struct {
	sets        int
	tasksPerSet int
}

// New creates a Curriculum. Non-positive dimensions fall back to the
// defaults.
func New(sets, tasksPerSet int) *Curriculum {
	if sets < 1 {
		sets = DefaultSets
	}
	if tasksPerSet < 1 {
		tasksPerSet = DefaultTasksPerSet
	}
	return &Curriculum{sets: sets, tasksPerSet: tasksPerSet}
}

// Start returns the position of a freshly registered user: task 1 of
// set 1 is the next task to complete.
func (c *Curriculum) Start() Position {
	return Position{Set: 1, Task: 1}
}

// TotalTasks returns the number of tasks in the whole curriculum.
func (c *Curriculum) TotalTasks() int {
	return c.sets * c.tasksPerSet
}

// TasksPerSet returns the per-set task count.
func (c *Curriculum) TasksPerSet() int {
	return c.tasksPerSet
}

// Sets returns the set count.
func (c *Curriculum) Sets() int {
	return c.sets
}

// IsTerminal reports whether the position is the frozen end-of-
// curriculum state that only an admin reset can leave.
func (c *Curriculum) IsTerminal(p Position) bool {
	return p.Set == c.sets && p.Task > c.tasksPerSet
}

// Valid reports whether the position is one the tracker can hold: an
// active task slot or the terminal state.
func (c *Curriculum) Valid(p Position) bool {
	if p.Set < 1 || p.Set > c.sets {
		return false
	}
	if c.IsTerminal(p) {
		return true
	}
	return p.Task >= 1 && p.Task <= c.tasksPerSet
}

// Advance moves the position one task forward. Finishing the last task
// of a non-final set rolls over to task 1 of the next set; finishing
// the last task of the final set enters the terminal state. Advancing
// from the terminal state returns ErrTerminal.
func (c *Curriculum) Advance(p Position) (Position, error) {
	if !c.Valid(p) {
		return p, ErrInvalidPosition
	}
	if c.IsTerminal(p) {
		return p, ErrTerminal
	}

	p.Task++
	if p.Task > c.tasksPerSet && p.Set < c.sets {
		p.Set++
		p.Task = 1
	}
	return p, nil
}

// SetsCompleted converts a lifetime completed-task count into the
// number of whole sets completed.
func (c *Curriculum) SetsCompleted(totalCompleted int) int {
	if totalCompleted < 0 {
		return 0
	}
	done := totalCompleted / c.tasksPerSet
	if done > c.sets {
		done = c.sets
	}
	return done
}
