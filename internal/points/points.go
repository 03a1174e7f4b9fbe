// Package points implements the per-task reward generator.
package points

import (
	"errors"
	"math/rand/v2"

	"github.com/shopspring/decimal"
)

// Default reward bounds for the primary deployment.
const (
	DefaultMin = 35.60
	DefaultMax = 40.54
)

// ErrInvalidRange is returned when the configured bounds are unusable.
var ErrInvalidRange = errors.New("points range invalid: min must be positive and not exceed max")

// Source supplies uniform random values in [0, 1). Tests inject a
// deterministic implementation.
type Source interface {
	Float64() float64
}

// Config holds the reward range bounds.
type Config struct {
	Min float64
	Max float64
}

// Generator produces a pseudo-random reward amount per completed task,
// uniformly distributed within the configured range. It has no side
// effects and is not cryptographically sensitive.
type Generator struct {
	min decimal.Decimal
	max decimal.Decimal
	src Source
}

type stdSource struct{}

func (stdSource) Float64() float64 { return rand.Float64() }

// New creates a Generator with the given configuration. A nil source
// falls back to math/rand.
func New(cfg *Config, src Source) (*Generator, error) {
	min, max := DefaultMin, DefaultMax
	if cfg != nil {
		min, max = cfg.Min, cfg.Max
	}
	if min <= 0 || max < min {
		return nil, ErrInvalidRange
	}
	if src == nil {
		src = stdSource{}
	}
	return &Generator{
		min: decimal.NewFromFloat(min),
		max: decimal.NewFromFloat(max),
		src: src,
	}, nil
}

// Generate returns a reward amount in [min, max], rounded to 2 decimal
// places.
func (g *Generator) Generate() decimal.Decimal {
	span := g.max.Sub(g.min)
	u := decimal.NewFromFloat(g.src.Float64())
	return g.min.Add(span.Mul(u)).Round(2)
}

// Bounds returns the configured range.
func (g *Generator) Bounds() (min, max decimal.Decimal) {
	return g.min, g.max
}
