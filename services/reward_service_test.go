package services

import (
	"context"
	"sync"
	"testing"

	"essence-engine/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func grant(t *testing.T, env *testEnv, userID, rewardID string, equipped bool) {
	t.Helper()
	require.NoError(t, env.db.Create(&models.UserReward{
		ID:         uuid.NewString(),
		UserID:     userID,
		RewardID:   rewardID,
		IsEquipped: equipped,
		UnlockedAt: testStart,
	}).Error)
}

func equippedSet(t *testing.T, env *testEnv, userID string) map[string]bool {
	t.Helper()
	var owned []models.UserReward
	require.NoError(t, env.db.Where("user_id = ?", userID).Find(&owned).Error)
	out := map[string]bool{}
	for _, o := range owned {
		out[o.RewardID] = o.IsEquipped
	}
	return out
}

func TestEquipRewardFlipsSameType(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	grant(t, env, "u1", "border_bronze", true)
	grant(t, env, "u1", "border_silver", false)
	grant(t, env, "u1", "emoji_fire", true)

	require.NoError(t, env.Rewards.EquipReward(ctx, "u1", "border_silver"))

	assert.Equal(t, map[string]bool{
		"border_bronze": false,
		"border_silver": true,
		"emoji_fire":    true,
	}, equippedSet(t, env, "u1"))
}

func TestEquipRewardConcurrentSameTypeLeavesOneEquipped(t *testing.T) {
	env := newTestEnv(t)
	borders := []string{"border_bronze", "border_silver", "border_gold"}
	for _, id := range borders {
		grant(t, env, "u1", id, false)
	}

	var wg sync.WaitGroup
	for i := 0; i < 9; i++ {
		rewardID := borders[i%len(borders)]
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, env.Rewards.EquipReward(context.Background(), "u1", rewardID))
		}()
	}
	wg.Wait()

	equipped := 0
	for _, id := range borders {
		if equippedSet(t, env, "u1")[id] {
			equipped++
		}
	}
	assert.Equal(t, 1, equipped)
}

func TestEquipRewardIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	grant(t, env, "u1", "border_bronze", false)
	grant(t, env, "u1", "border_silver", false)

	require.NoError(t, env.Rewards.EquipReward(ctx, "u1", "border_bronze"))
	require.NoError(t, env.Rewards.EquipReward(ctx, "u1", "border_bronze"))

	assert.Equal(t, map[string]bool{
		"border_bronze": true,
		"border_silver": false,
	}, equippedSet(t, env, "u1"))
}

func TestEquipRewardNotOwned(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	grant(t, env, "u1", "border_bronze", true)

	err := env.Rewards.EquipReward(ctx, "u1", "border_gold")
	assert.ErrorIs(t, err, ErrNotOwned)

	// Another user's ownership does not count.
	grant(t, env, "u2", "border_gold", false)
	err = env.Rewards.EquipReward(ctx, "u1", "border_gold")
	assert.ErrorIs(t, err, ErrNotOwned)

	assert.Equal(t, map[string]bool{"border_bronze": true}, equippedSet(t, env, "u1"))
}

func TestEquipRewardLeavesOtherUsersAlone(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	grant(t, env, "u1", "border_bronze", false)
	grant(t, env, "u2", "border_silver", true)

	require.NoError(t, env.Rewards.EquipReward(ctx, "u1", "border_bronze"))

	assert.True(t, equippedSet(t, env, "u2")["border_silver"])
}

func TestListRewardsForUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	grant(t, env, "u1", "border_gold", true)
	grant(t, env, "u1", "emoji_star", false)

	list, err := env.Rewards.ListForUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, list, 8)

	byID := map[string]RewardView{}
	for _, r := range list {
		byID[r.ID] = r
	}
	assert.True(t, byID["border_gold"].Owned)
	assert.True(t, byID["border_gold"].Equipped)
	assert.True(t, byID["emoji_star"].Owned)
	assert.False(t, byID["emoji_star"].Equipped)
	assert.False(t, byID["title_master"].Owned)

	equipped, err := env.Rewards.EquippedRewards(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, equipped, 1)
	assert.Equal(t, "border_gold", equipped[models.RewardTypeBorder].ID)
}

func TestSetIcon(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.Rewards.SetIcon(ctx, "border_gold", "https://cdn.example.com/rewards/border_gold.png"))
	var r models.Reward
	require.NoError(t, env.db.First(&r, "id = ?", "border_gold").Error)
	assert.Equal(t, "https://cdn.example.com/rewards/border_gold.png", r.IconURL)

	assert.ErrorIs(t, env.Rewards.SetIcon(ctx, "nope", "x"), ErrValidation)
}
