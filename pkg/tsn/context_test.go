package tsn_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsnlang/tsn/internal/config"
	"github.com/tsnlang/tsn/pkg/tsn"
)

func TestCompileAndCall(t *testing.T) {
	c := tsn.New(config.Defaults(), nil)
	m, err := c.Compile("add.tsn", `
		function add(a: i32, b: i32): i32 {
			return a + b;
		}
	`)
	require.NoError(t, err)

	result, isFloat, err := c.Call(context.Background(), m, "add", int32(3), int32(4))
	require.NoError(t, err)
	assert.False(t, isFloat)
	assert.Equal(t, int64(7), int64(result))
}

func TestCallIsNoOpWhenExecutionDisabled(t *testing.T) {
	cfg := config.Defaults()
	cfg.DisableExecution = true
	c := tsn.New(cfg, nil)
	m, err := c.Compile("add.tsn", `
		function add(a: i32, b: i32): i32 {
			return a + b;
		}
	`)
	require.NoError(t, err)

	result, isFloat, err := c.Call(context.Background(), m, "add", int32(3), int32(4))
	require.NoError(t, err)
	assert.False(t, isFloat)
	assert.Equal(t, uint64(0), result)
}

func TestPersistRestoreRoundTrip(t *testing.T) {
	c := tsn.New(config.Defaults(), nil)
	m, err := c.Compile("mul.tsn", `
		function mul(a: i32, b: i32): i32 {
			return a * b;
		}
	`)
	require.NoError(t, err)

	data, err := c.Persist(m, nil)
	require.NoError(t, err)

	restored := tsn.New(config.Defaults(), nil)
	rm, err := restored.Restore(data)
	require.NoError(t, err)

	result, _, err := restored.Call(context.Background(), rm, "mul", int32(6), int32(7))
	require.NoError(t, err)
	assert.Equal(t, int64(42), int64(result))
}

func TestCallRejectsUnknownFunction(t *testing.T) {
	c := tsn.New(config.Defaults(), nil)
	m, err := c.Compile("empty.tsn", `
		function one(): i32 {
			return 1;
		}
	`)
	require.NoError(t, err)

	_, _, err = c.Call(context.Background(), m, "nonexistent")
	assert.Error(t, err)
}
