package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func staticTool(out string) ExecutorFunc {
	return func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
		return json.RawMessage(out), nil
	}
}

func failingTool(msg string) ExecutorFunc {
	return func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
		return nil, errors.New(msg)
	}
}

func TestRegister(t *testing.T) {
	r := NewRegistry(0)
	require.NoError(t, r.Register("a", staticTool(`{}`)))
	assert.Error(t, r.Register("a", staticTool(`{}`)))
	assert.Error(t, r.Register("", staticTool(`{}`)))
	assert.Error(t, r.Register("b", nil))
	assert.Panics(t, func() { r.MustRegister("a", staticTool(`{}`)) })
	assert.Equal(t, []string{"a"}, r.Names())

	_, err := r.Execute(context.Background(), "missing", nil)
	assert.Error(t, err)
}

func TestExecuteChainFirstSuccessWins(t *testing.T) {
	r := NewRegistry(time.Second)
	r.MustRegister("primary", failingTool("no credentials"))
	r.MustRegister("secondary", staticTool(`{"tier":2}`))
	r.MustRegister("tertiary", staticTool(`{"tier":3}`))

	var calls []string
	r.SetCallHook(func(name string, elapsed time.Duration, err error) {
		calls = append(calls, name)
	})

	out, used, err := r.ExecuteChain(context.Background(), []string{"primary", "secondary", "tertiary"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "secondary", used)
	assert.JSONEq(t, `{"tier":2}`, string(out))
	assert.Equal(t, []string{"primary", "secondary"}, calls)
}

func TestExecuteChainExhausted(t *testing.T) {
	r := NewRegistry(time.Second)
	r.MustRegister("one", failingTool("boom one"))
	r.MustRegister("two", failingTool("boom two"))

	_, used, err := r.ExecuteChain(context.Background(), []string{"one", "two", "unregistered"}, nil)
	require.Error(t, err)
	assert.Empty(t, used)
	assert.ErrorIs(t, err, ErrChainExhausted)
	assert.Contains(t, err.Error(), "boom one")
	assert.Contains(t, err.Error(), "boom two")
	assert.Contains(t, err.Error(), "unregistered")

	_, _, err = r.ExecuteChain(context.Background(), nil, nil)
	assert.ErrorIs(t, err, ErrChainExhausted)
}

func TestExecuteChainBoundsEachCall(t *testing.T) {
	r := NewRegistry(20 * time.Millisecond)
	r.MustRegister("slow", func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Second):
			return json.RawMessage(`{"late":true}`), nil
		}
	})
	r.MustRegister("fast", staticTool(`{"fast":true}`))

	start := time.Now()
	out, used, err := r.ExecuteChain(context.Background(), []string{"slow", "fast"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "fast", used)
	assert.JSONEq(t, `{"fast":true}`, string(out))
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}
