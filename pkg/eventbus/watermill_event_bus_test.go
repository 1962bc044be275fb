package eventbus_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/dukex/stepflow/pkg/channels/gochannel"
	"github.com/dukex/stepflow/pkg/eventbus"
	"github.com/dukex/stepflow/pkg/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBus(t *testing.T) eventbus.EventBus {
	t.Helper()

	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)
	t.Cleanup(func() { _ = bus.Close() })

	return bus
}

func TestWatermillEventBus_DeliversTypedEvents(t *testing.T) {
	t.Parallel()

	bus := newBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	received := make(chan any, 2)

	require.NoError(t, bus.Handle(events.WorkflowSavedEvent, func(_ context.Context, event any) error {
		received <- event

		return nil
	}))
	require.NoError(t, bus.Handle(events.StepDeleteRejectedEvent, func(_ context.Context, event any) error {
		received <- event

		return nil
	}))
	require.NoError(t, bus.Subscribe(ctx))

	saved := events.WorkflowSaved{
		BaseEvent: events.NewBaseEvent(events.WorkflowSavedEvent, "wf-1"),
		Name:      "Lead nurture",
		Steps:     4,
	}
	require.NoError(t, bus.Publish(ctx, "wf-1", saved))

	rejected := events.StepDeleteRejected{
		BaseEvent: events.NewBaseEvent(events.StepDeleteRejectedEvent, "wf-1"),
		StepID:    "t1",
	}
	require.NoError(t, bus.Publish(ctx, "wf-1", rejected))

	got := make(map[events.EventType]any)

	for range 2 {
		select {
		case event := <-received:
			got[event.(eventbus.Event).GetType()] = event
		case <-time.After(2 * time.Second):
			require.FailNow(t, "timed out waiting for events")
		}
	}

	savedGot, ok := got[events.WorkflowSavedEvent].(*events.WorkflowSaved)
	require.True(t, ok)
	assert.Equal(t, "Lead nurture", savedGot.Name)
	assert.Equal(t, 4, savedGot.Steps)
	assert.Equal(t, "wf-1", savedGot.WorkflowID)

	rejectedGot, ok := got[events.StepDeleteRejectedEvent].(*events.StepDeleteRejected)
	require.True(t, ok)
	assert.Equal(t, "t1", rejectedGot.StepID)
}

func TestWatermillEventBus_SkipsUnhandledTypes(t *testing.T) {
	t.Parallel()

	bus := newBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	received := make(chan any, 1)

	require.NoError(t, bus.Handle(events.WorkflowExportedEvent, func(_ context.Context, event any) error {
		received <- event

		return nil
	}))
	require.NoError(t, bus.Subscribe(ctx))

	require.NoError(t, bus.Publish(ctx, "wf-1", events.WorkflowSaved{
		BaseEvent: events.NewBaseEvent(events.WorkflowSavedEvent, "wf-1"),
	}))
	require.NoError(t, bus.Publish(ctx, "wf-1", events.WorkflowExported{
		BaseEvent: events.NewBaseEvent(events.WorkflowExportedEvent, "wf-1"),
		FileName:  "lead-nurture.json",
	}))

	select {
	case event := <-received:
		exported, ok := event.(*events.WorkflowExported)
		require.True(t, ok)
		assert.Equal(t, "lead-nurture.json", exported.FileName)
	case <-time.After(2 * time.Second):
		require.FailNow(t, "timed out waiting for export event")
	}
}

func TestWatermillEventBus_RedeliversNackedEvents(t *testing.T) {
	t.Parallel()

	bus := newBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	calls := make(chan string, 8)
	failed := false

	require.NoError(t, bus.Handle(events.WorkflowSaveFailedEvent, func(_ context.Context, event any) error {
		calls <- event.(*events.WorkflowSaveFailed).Error

		if !failed {
			failed = true

			return errors.New("handler failed")
		}

		return nil
	}))
	require.NoError(t, bus.Subscribe(ctx))

	require.NoError(t, bus.Publish(ctx, "wf-1", events.WorkflowSaveFailed{
		BaseEvent: events.NewBaseEvent(events.WorkflowSaveFailedEvent, "wf-1"),
		Error:     "disk full",
	}))

	for range 2 {
		select {
		case msg := <-calls:
			assert.Equal(t, "disk full", msg)
		case <-time.After(3 * time.Second):
			require.FailNow(t, "timed out waiting for redelivery")
		}
	}
}
