// Package levels implements the read-only level progression view: a
// pure mapping from lifetime completed-task counts to level bands and
// bonus eligibility.
package levels

import (
	"errors"

	"github.com/shopspring/decimal"
)

// ErrInvalidTable is returned for empty or non-increasing threshold tables.
var ErrInvalidTable = errors.New("level table must be non-empty with strictly increasing thresholds")

// Band is one level tier. Threshold is the completed-task count at
// which the *next* band begins; Bonus is granted on reaching it.
type Band struct {
	Name      string
	Threshold int
	Bonus     decimal.Decimal
}

// Progression is the derived view for one user.
type Progression struct {
	Level           string          `json:"level"`
	NextLevel       string          `json:"next_level,omitempty"`
	ProgressPercent float64         `json:"progress_percent"`
	RemainingTasks  int             `json:"remaining_tasks"`
	BonusAtNext     decimal.Decimal `json:"bonus_at_next"`
}

// Calculator maps task counts onto a fixed band table.
type Calculator struct {
	bands []Band
}

// DefaultBands is the canonical level table. Agent tops out at 600
// tasks with no further bonus.
func DefaultBands() []Band {
	return []Band{
		{Name: "Level 1", Threshold: 150, Bonus: decimal.NewFromInt(2000)},
		{Name: "Level 2", Threshold: 300, Bonus: decimal.NewFromInt(3000)},
		{Name: "Level 3", Threshold: 450, Bonus: decimal.NewFromInt(6000)},
		{Name: "Agent Level", Threshold: 600, Bonus: decimal.Zero},
	}
}

// New creates a Calculator over the given band table.
func New(bands []Band) (*Calculator, error) {
	if len(bands) == 0 {
		return nil, ErrInvalidTable
	}
	for i := 1; i < len(bands); i++ {
		if bands[i].Threshold <= bands[i-1].Threshold {
			return nil, ErrInvalidTable
		}
	}
	return &Calculator{bands: bands}, nil
}

// Progression returns the derived level view for the given lifetime
// completed-task count. It never mutates anything and is safe to cache.
func (c *Calculator) Progression(totalTasksCompleted int) Progression {
	if totalTasksCompleted < 0 {
		totalTasksCompleted = 0
	}

	idx := len(c.bands) - 1
	for i, b := range c.bands {
		if totalTasksCompleted < b.Threshold {
			idx = i
			break
		}
	}

	band := c.bands[idx]
	floor := 0
	if idx > 0 {
		floor = c.bands[idx-1].Threshold
	}

	span := band.Threshold - floor
	done := totalTasksCompleted - floor
	if done > span {
		done = span
	}

	p := Progression{
		Level:           band.Name,
		ProgressPercent: float64(done) / float64(span) * 100,
		RemainingTasks:  span - done,
		BonusAtNext:     band.Bonus,
	}
	if idx < len(c.bands)-1 {
		p.NextLevel = c.bands[idx+1].Name
	}
	return p
}
