package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubDeliversToSubscribersOfUser(t *testing.T) {
	hub := NewNotificationHub(4)
	ctx := context.Background()

	mine, unsubscribe := hub.Subscribe("u1")
	defer unsubscribe()
	theirs, unsubscribeOther := hub.Subscribe("u2")
	defer unsubscribeOther()

	n := NewNotification("u1", EssenceGained{Amount: 20, Source: "task_completed"}, testStart)
	require.NoError(t, hub.Send(ctx, "u1", n))

	select {
	case got := <-mine:
		assert.Equal(t, n.ID, got.ID)
	default:
		t.Fatal("expected a notification for u1")
	}
	select {
	case <-theirs:
		t.Fatal("u2 must not receive u1's notification")
	default:
	}
}

func TestHubDropsWhenSubscriberIsFull(t *testing.T) {
	hub := NewNotificationHub(1)
	ctx := context.Background()
	ch, unsubscribe := hub.Subscribe("u1")

	n := NewNotification("u1", LevelUpPayload{NewLevel: 2, NewTitle: "Novice"}, testStart)
	require.NoError(t, hub.Send(ctx, "u1", n))
	require.NoError(t, hub.Send(ctx, "u1", n))
	assert.Len(t, ch, 1)

	unsubscribe()
	unsubscribe()
	assert.Zero(t, hub.Subscribers("u1"))
	_, open := <-ch
	assert.True(t, open) // buffered value still readable
	_, open = <-ch
	assert.False(t, open)

	assert.NoError(t, hub.Send(ctx, "u1", n))
}

type failingDispatcher struct{ calls int }

func (f *failingDispatcher) Send(context.Context, string, Notification) error {
	f.calls++
	return errors.New("push service down")
}

func TestMultiDispatcherContinuesAfterFailure(t *testing.T) {
	hub := NewNotificationHub(1)
	ch, unsubscribe := hub.Subscribe("u1")
	defer unsubscribe()
	failing := &failingDispatcher{}

	err := MultiDispatcher{failing, LogDispatcher{}, hub}.Send(context.Background(), "u1",
		NewNotification("u1", RewardUnlocked{ID: "emoji_fire", Name: "Fire Emoji"}, testStart))

	assert.Error(t, err)
	assert.Equal(t, 1, failing.calls)
	assert.Len(t, ch, 1)
}

func TestNewNotificationText(t *testing.T) {
	n := NewNotification("u1", RewardUnlocked{ID: "color_red", Name: "Crimson", Kind: "NAME_COLOR"}, testStart)
	assert.Equal(t, NotificationRewardUnlocked, n.Type)
	assert.Equal(t, "You unlocked a new Name Color: Crimson", n.Message)

	n = NewNotification("u1", EssenceGained{Amount: 15, Source: "task_completed"}, testStart)
	assert.Equal(t, "You earned 15 essence from task completed", n.Message)

	n = NewNotification("u1", LevelUpPayload{NewLevel: 3, NewTitle: "Apprentice"}, testStart)
	assert.Equal(t, "Congratulations! You reached level 3 - Apprentice", n.Message)

	n = NewNotification("u1", AchievementUnlocked{ID: "first_task", Name: "First Steps", EssenceReward: 50}, testStart)
	assert.Equal(t, "First Steps (+50 essence)", n.Message)
	assert.NotEmpty(t, n.ID)
	assert.Equal(t, testStart, n.Timestamp)
}
