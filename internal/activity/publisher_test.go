package activity

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"syncline/pkg/platform/sentinel"
	txcontext "syncline/pkg/platform/tx"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func testEvent(org string) *Event {
	return &Event{
		EntityType:     "record",
		EntityID:       "e1",
		Action:         ActionUpdate,
		OrganizationID: org,
		Tx:             &TxDescriptor{ID: "m1", SourceID: "s1", Version: 2},
	}
}

func TestPublisher_RequiresUnitOfWork(t *testing.T) {
	bus := NewBus(testLogger())
	defer bus.Close()
	p := NewPublisher(NewInMemoryStore(), bus, testLogger())

	err := p.Publish(context.Background(), testEvent("org-a"))
	assert.ErrorIs(t, err, sentinel.ErrNoTransaction)
}

func TestPublisher_RejectsInvalidAction(t *testing.T) {
	bus := NewBus(testLogger())
	defer bus.Close()
	p := NewPublisher(NewInMemoryStore(), bus, testLogger())

	ctx, _ := txcontext.Begin(context.Background(), nil)
	event := testEvent("org-a")
	event.Action = Action("upsert")

	assert.Error(t, p.Publish(ctx, event))
}

func TestPublisher_DispatchesAfterCommitOnly(t *testing.T) {
	bus := NewBus(testLogger())
	defer bus.Close()
	store := NewInMemoryStore()
	p := NewPublisher(store, bus, testLogger())

	inbox, cancel := bus.Subscribe(8)
	defer cancel()

	ctx, uow := txcontext.Begin(context.Background(), nil)
	require.NoError(t, p.Publish(ctx, testEvent("org-a")))

	// Nothing is observable before commit.
	select {
	case ev := <-inbox:
		t.Fatalf("event dispatched before commit: seq=%d", ev.Seq)
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, uow.Commit())

	select {
	case ev := <-inbox:
		assert.Equal(t, "org-a", ev.OrganizationID)
		assert.Equal(t, int64(1), ev.Seq)
	case <-time.After(time.Second):
		t.Fatal("no event dispatched after commit")
	}
}

func TestPublisher_DispatchFollowsCommitOrder(t *testing.T) {
	bus := NewBus(testLogger())
	defer bus.Close()
	store := NewInMemoryStore()
	p := NewPublisher(store, bus, testLogger())

	inbox, cancel := bus.Subscribe(8)
	defer cancel()

	// Three separate units of work committed one after another must enter the
	// bus in that order, carrying dense seqs.
	for range 3 {
		ctx, uow := txcontext.Begin(context.Background(), nil)
		require.NoError(t, p.Publish(ctx, testEvent("org-a")))
		require.NoError(t, uow.Commit())
	}

	for want := int64(1); want <= 3; want++ {
		select {
		case ev := <-inbox:
			assert.Equal(t, want, ev.Seq)
		case <-time.After(time.Second):
			t.Fatalf("event seq=%d never dispatched", want)
		}
	}
}

func TestPublisher_RollbackSuppressesDispatch(t *testing.T) {
	bus := NewBus(testLogger())
	defer bus.Close()
	store := NewInMemoryStore()
	p := NewPublisher(store, bus, testLogger())

	inbox, cancel := bus.Subscribe(8)
	defer cancel()

	ctx, uow := txcontext.Begin(context.Background(), nil)
	require.NoError(t, p.Publish(ctx, testEvent("org-a")))
	require.NoError(t, uow.Rollback())

	select {
	case ev := <-inbox:
		t.Fatalf("rolled-back mutation produced event seq=%d", ev.Seq)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestPublisher_LatestSince(t *testing.T) {
	bus := NewBus(testLogger())
	defer bus.Close()
	store := NewInMemoryStore()
	p := NewPublisher(store, bus, testLogger())

	ctx, uow := txcontext.Begin(context.Background(), nil)
	for range 3 {
		require.NoError(t, p.Publish(ctx, testEvent("org-a")))
	}
	require.NoError(t, uow.Commit())

	events, err := p.LatestSince(context.Background(), "org-a", 1, 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, int64(2), events[0].Seq)
	assert.Equal(t, int64(3), events[1].Seq)
}
