package eventbus_test

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/dukex/signoff/pkg/channels/gochannel"
	"github.com/dukex/signoff/pkg/eventbus"
	"github.com/dukex/signoff/pkg/events"
	"github.com/dukex/signoff/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatermillEventBus_PublishAndHandle(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)

	defer func() {
		assert.NoError(t, bus.Close())
	}()

	received := make(chan *events.SubmissionTransitioned, 1)

	require.NoError(t, bus.Handle(events.SubmissionApprovedEvent, func(_ context.Context, event any) error {
		received <- event.(*events.SubmissionTransitioned)

		return nil
	}))
	require.NoError(t, bus.Subscribe(ctx))

	decision := models.DecisionApproved
	err = bus.Publish(ctx, "sub-1", events.SubmissionTransitioned{
		BaseEvent: events.BaseEvent{
			ID:        bus.GenerateID(),
			Type:      events.SubmissionApprovedEvent,
			Timestamp: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
			Actor:     "reviewer",
		},
		SubmissionID: "sub-1",
		TemplateID:   "tmpl-1",
		Submittable:  models.SubmittableRef{Kind: models.SubmittableDocument, ID: "doc-1"},
		From:         models.SubmissionStatusWaitingForApproval,
		To:           models.SubmissionStatusApproved,
		Decision:     &decision,
	})
	require.NoError(t, err)

	select {
	case event := <-received:
		assert.Equal(t, "sub-1", event.SubmissionID)
		assert.Equal(t, "reviewer", event.Actor)
		assert.Equal(t, events.SubmissionApprovedEvent, event.GetType())
		require.NotNil(t, event.Decision)
		assert.Equal(t, models.DecisionApproved, *event.Decision)
	case <-time.After(5 * time.Second):
		t.Fatal("event was not delivered")
	}
}

func TestWatermillEventBus_IgnoresUnhandledTypes(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)

	defer func() {
		assert.NoError(t, bus.Close())
	}()

	require.NoError(t, bus.Subscribe(ctx))

	err = bus.Publish(ctx, "doc-1", events.DocumentLockChanged{
		BaseEvent:  events.BaseEvent{ID: bus.GenerateID(), Type: events.DocumentLockedEvent, Actor: "alice"},
		DocumentID: "doc-1",
	})
	require.NoError(t, err)
}
