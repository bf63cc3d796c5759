package tx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCurrent_AbsentWithoutBegin(t *testing.T) {
	_, ok := Current(context.Background())
	assert.False(t, ok)
}

func TestBegin_ThreadsUnitOfWork(t *testing.T) {
	ctx, uow := Begin(context.Background(), nil)

	got, ok := Current(ctx)
	require.True(t, ok)
	assert.Same(t, uow, got)

	// No SQL transaction was attached.
	_, ok = SQL(ctx)
	assert.False(t, ok)
}

func TestCommit_RunsHooksInOrder(t *testing.T) {
	_, uow := Begin(context.Background(), nil)

	var order []int
	uow.OnCommit(func() { order = append(order, 1) })
	uow.OnCommit(func() { order = append(order, 2) })

	require.NoError(t, uow.Commit())
	assert.Equal(t, []int{1, 2}, order)
}

func TestRollback_DiscardsHooks(t *testing.T) {
	_, uow := Begin(context.Background(), nil)

	ran := false
	uow.OnCommit(func() { ran = true })

	require.NoError(t, uow.Rollback())
	assert.False(t, ran)

	// Commit after rollback is a no-op and must not run discarded hooks.
	require.NoError(t, uow.Commit())
	assert.False(t, ran)
}

func TestRollback_AfterCommitIsNoOp(t *testing.T) {
	_, uow := Begin(context.Background(), nil)

	ran := false
	uow.OnCommit(func() { ran = true })

	require.NoError(t, uow.Commit())
	require.NoError(t, uow.Rollback())
	assert.True(t, ran)
}

func TestCommit_Idempotent(t *testing.T) {
	_, uow := Begin(context.Background(), nil)

	count := 0
	uow.OnCommit(func() { count++ })

	require.NoError(t, uow.Commit())
	require.NoError(t, uow.Commit())
	assert.Equal(t, 1, count)
}
