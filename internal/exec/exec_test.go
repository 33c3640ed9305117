package exec_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsnlang/tsn/internal/exec"
	"github.com/tsnlang/tsn/internal/source"
)

func TestRaiseExceptionSetsState(t *testing.T) {
	ec := exec.New()
	assert.False(t, ec.HasException())

	loc := source.Location{Line: 3}
	ec.RaiseException("divide by zero", loc)

	assert.True(t, ec.HasException())
	assert.Equal(t, "divide by zero", ec.Message())
	require.Len(t, ec.CallStack(), 1)
	assert.Equal(t, 3, ec.CallStack()[0].Line)
}

func TestPushPopFrame(t *testing.T) {
	ec := exec.New()
	ec.PushFrame(source.Location{Line: 1})
	ec.PushFrame(source.Location{Line: 2})
	require.Len(t, ec.CallStack(), 2)

	ec.PopFrame()
	require.Len(t, ec.CallStack(), 1)
	assert.Equal(t, 1, ec.CallStack()[0].Line)
}

func TestClearResetsException(t *testing.T) {
	ec := exec.New()
	ec.RaiseException("boom", source.Location{})
	require.True(t, ec.HasException())

	ec.Clear()
	assert.False(t, ec.HasException())
	assert.Equal(t, "", ec.Message())
}

func TestWithContextNesting(t *testing.T) {
	outer := exec.New()
	ctx := exec.WithContext(context.Background(), outer)

	got, ok := exec.FromContext(ctx)
	require.True(t, ok)
	assert.Same(t, outer, got)

	inner := exec.New()
	nested := exec.WithContext(ctx, inner)
	got, ok = exec.FromContext(nested)
	require.True(t, ok)
	assert.Same(t, inner, got)

	// The outer context.Context is untouched: returning to it (as a
	// reentrant host->script->host call chain naturally does once the
	// inner call returns) resolves back to the outer ExecutionContext.
	got, ok = exec.FromContext(ctx)
	require.True(t, ok)
	assert.Same(t, outer, got)
}

func TestManagerInitPushPopShutdown(t *testing.T) {
	m := exec.NewManager()
	const tid exec.ThreadID = 1

	m.Init(tid)
	_, ok := m.Current(tid)
	assert.False(t, ok)

	ec := m.Push(tid)
	got, ok := m.Current(tid)
	require.True(t, ok)
	assert.Same(t, ec, got)

	m.Pop(tid)
	_, ok = m.Current(tid)
	assert.False(t, ok)

	m.Shutdown(tid)
}
