package premium

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"one-travel-working/internal/model"
)

func newTestEngine() *Engine {
	return NewEngine(zerolog.Nop())
}

func cfg(id int64, set, task int, active bool, createdAt time.Time) model.PremiumTaskConfig {
	return model.PremiumTaskConfig{
		ID:                id,
		SetNumber:         set,
		TaskNumber:        task,
		PenaltyAmount:     decimal.NewFromInt(5000),
		AdditionalPending: decimal.NewFromInt(2000),
		Active:            active,
		CreatedAt:         createdAt,
	}
}

func TestMatch_ExactLookup(t *testing.T) {
	e := newTestEngine()
	now := time.Now()
	configs := []model.PremiumTaskConfig{
		cfg(1, 1, 5, true, now),
		cfg(2, 2, 10, true, now),
	}

	m := e.Match(2, 10, configs)
	require.NotNil(t, m)
	assert.Equal(t, int64(2), m.ID)

	assert.Nil(t, e.Match(1, 6, configs), "unconfigured position is a normal task")
	assert.Nil(t, e.Match(3, 5, configs), "same task number in another set does not match")
}

func TestMatch_IgnoresInactive(t *testing.T) {
	e := newTestEngine()
	configs := []model.PremiumTaskConfig{
		cfg(1, 1, 5, false, time.Now()),
	}
	assert.Nil(t, e.Match(1, 5, configs))
}

func TestMatch_DuplicateMostRecentWins(t *testing.T) {
	e := newTestEngine()
	older := time.Now().Add(-time.Hour)
	newer := time.Now()
	configs := []model.PremiumTaskConfig{
		cfg(1, 1, 5, true, newer),
		cfg(2, 1, 5, true, older),
	}

	m := e.Match(1, 5, configs)
	require.NotNil(t, m)
	assert.Equal(t, int64(1), m.ID)

	// Equal timestamps break the tie on the higher id.
	configs = []model.PremiumTaskConfig{
		cfg(1, 1, 5, true, older),
		cfg(2, 1, 5, true, older),
	}
	m = e.Match(1, 5, configs)
	require.NotNil(t, m)
	assert.Equal(t, int64(2), m.ID)
}

func TestEffectFor(t *testing.T) {
	c := cfg(1, 1, 5, true, time.Now())
	eff := EffectFor(&c, decimal.NewFromInt(100))

	assert.True(t, eff.Penalty.Equal(decimal.NewFromInt(5000)))
	assert.True(t, eff.AdditionalPending.Equal(decimal.NewFromInt(2000)))
	// The whole pre-reward balance plus the configured extra is swept.
	assert.True(t, eff.MovedToPending.Equal(decimal.NewFromInt(2100)))
}
