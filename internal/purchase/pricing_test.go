package purchase

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestNewQuote(t *testing.T) {
	hundred := decimal.NewFromInt(100)

	q := NewQuote(decimal.RequireFromString("0.55"), 10, hundred)
	assert.Equal(t, "5.5", q.TotalCost.String())
	assert.Equal(t, int64(1), q.RequiredCoins)
	assert.True(t, q.Affordable(1, hundred))
	assert.False(t, q.Affordable(0, hundred))

	q = NewQuote(decimal.RequireFromString("2"), 100, hundred)
	assert.Equal(t, int64(2), q.RequiredCoins)
	assert.True(t, q.Affordable(2, hundred))

	q = NewQuote(decimal.RequireFromString("2"), 101, hundred)
	assert.Equal(t, int64(3), q.RequiredCoins)
	assert.False(t, q.Affordable(2, hundred))
}

func TestMonthlyRent(t *testing.T) {
	assert.Equal(t, "20", MonthlyRent(decimal.NewFromInt(120), 6).String())
	assert.Equal(t, "1", MonthlyRent(decimal.RequireFromString("5.5"), 6).String())
	assert.Equal(t, "6", MonthlyRent(decimal.RequireFromString("5.5"), 0).String())
}

func TestHighlighter(t *testing.T) {
	h := NewHighlighter(20 * time.Millisecond)
	assert.False(t, h.Active("a"))

	h.Flash("a")
	assert.True(t, h.Active("a"))
	assert.False(t, h.Active("b"))

	assert.Eventually(t, func() bool { return !h.Active("a") }, time.Second, 5*time.Millisecond)

	h.Flash("b")
	h.Stop()
	assert.False(t, h.Active("b"))
}

func TestMemoryGuard(t *testing.T) {
	ctx := context.Background()
	g := NewMemoryGuard()
	ok, _ := g.Acquire(ctx, "x", "a")
	assert.True(t, ok)
	ok, _ = g.Acquire(ctx, "x", "b")
	assert.False(t, ok)
	_ = g.Release(ctx, "x", "b")
	ok, _ = g.Acquire(ctx, "x", "c")
	assert.False(t, ok, "only the owner releases")
	_ = g.Release(ctx, "x", "a")
	ok, _ = g.Acquire(ctx, "x", "c")
	assert.True(t, ok)
}
