package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type draft struct {
	Step string         `json:"step"`
	Data map[string]any `json:"data"`
}

func TestMemoryCacheRoundTrip(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)
	ctx := context.Background()

	in := draft{Step: "amount", Data: map[string]any{"amount": "1.5"}}
	require.NoError(t, c.Set(ctx, "k", in, 0))

	// 写入后修改原值不影响缓存
	in.Data["amount"] = "9"

	var out draft
	require.NoError(t, c.Get(ctx, "k", &out))
	assert.Equal(t, "amount", out.Step)
	assert.Equal(t, "1.5", out.Data["amount"])

	require.NoError(t, c.Delete(ctx, "k"))
	assert.ErrorIs(t, c.Get(ctx, "k", &out), ErrMiss)
}

func TestMemoryCacheExpiry(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k", "v", time.Millisecond))

	time.Sleep(5 * time.Millisecond)
	var s string
	assert.ErrorIs(t, c.Get(ctx, "k", &s), ErrMiss)
}

// failing 模拟不可用的 L2
type failing struct{}

func (failing) Set(context.Context, string, any, time.Duration) error { return errors.New("down") }
func (failing) Get(context.Context, string, any) error { return errors.New("down") }
func (failing) Delete(context.Context, string) error { return errors.New("down") }

func TestMultiLevelBackfillsL1(t *testing.T) {
	ctx := context.Background()
	l1 := NewMemoryCache(time.Minute, time.Minute)
	l2 := NewMemoryCache(time.Minute, time.Minute)
	m := NewMultiLevelCache(l1, l2)

	require.NoError(t, l2.Set(ctx, "k", draft{Step: "review"}, time.Minute))
	assert.Equal(t, 0, l1.Len())

	var out draft
	require.NoError(t, m.Get(ctx, "k", &out))
	assert.Equal(t, "review", out.Step)
	assert.Equal(t, 1, l1.Len())
}

func TestMultiLevelMiss(t *testing.T) {
	m := NewMultiLevelCache(NewMemoryCache(time.Minute, time.Minute), NewMemoryCache(time.Minute, time.Minute))
	var out draft
	assert.ErrorIs(t, m.Get(context.Background(), "nope", &out), ErrMiss)
}

func TestMultiLevelRemoteFailure(t *testing.T) {
	ctx := context.Background()
	l1 := NewMemoryCache(time.Minute, time.Minute)
	m := NewMultiLevelCache(l1, failing{})

	assert.Error(t, m.Set(ctx, "k", "v", time.Minute))
	// L1 仍然写入成功
	var s string
	require.NoError(t, m.Get(ctx, "k", &s))
	assert.Equal(t, "v", s)
}
