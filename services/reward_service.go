// services/reward_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"essence-engine/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RewardService struct {
	DB *gorm.DB
}

func NewRewardService(db *gorm.DB) *RewardService {
	return &RewardService{DB: db}
}

// EquipReward marks rewardID as the user's equipped reward of its type and
// unequips any other of that type. Re-equipping is a no-op.
func (s *RewardService) EquipReward(ctx context.Context, userID, rewardID string) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var owned models.UserReward
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ? AND reward_id = ?", userID, rewardID).
			First(&owned).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: %s does not own %s", ErrNotOwned, userID, rewardID)
			}
			return err
		}

		var reward models.Reward
		if err := tx.First(&reward, "id = ?", rewardID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: unknown reward %s", ErrValidation, rewardID)
			}
			return err
		}

		sameType := tx.Model(&models.Reward{}).Select("id").Where("type = ?", reward.Type)

		// Lock every owned reward of this type so concurrent equips serialize.
		var slot []models.UserReward
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ? AND reward_id IN (?)", userID, sameType).
			Find(&slot).Error; err != nil {
			return err
		}

		if err := tx.Model(&models.UserReward{}).
			Where("user_id = ? AND is_equipped = ? AND reward_id <> ? AND reward_id IN (?)", userID, true, rewardID, sameType).
			Update("is_equipped", false).Error; err != nil {
			return err
		}

		if owned.IsEquipped {
			return nil
		}
		if err := tx.Model(&models.UserReward{}).
			Where("id = ?", owned.ID).
			Update("is_equipped", true).Error; err != nil {
			return err
		}
		log.Printf("🎨 [EQUIP] %s equipped %s (%s)", userID, rewardID, reward.Type)
		return nil
	})
}

// RewardView is a catalog reward with the user's ownership state.
type RewardView struct {
	models.Reward
	Owned      bool       `json:"owned"`
	Equipped   bool       `json:"equipped"`
	UnlockedAt *time.Time `json:"unlocked_at,omitempty"`
}

// ListForUser returns every active reward with userID's ownership state.
func (s *RewardService) ListForUser(ctx context.Context, userID string) ([]RewardView, error) {
	db := s.DB.WithContext(ctx)

	var rewards []models.Reward
	if err := db.Where("active = ?", true).Order("type, id").Find(&rewards).Error; err != nil {
		return nil, err
	}
	var owned []models.UserReward
	if err := db.Where("user_id = ?", userID).Find(&owned).Error; err != nil {
		return nil, err
	}
	byID := make(map[string]models.UserReward, len(owned))
	for _, o := range owned {
		byID[o.RewardID] = o
	}

	views := make([]RewardView, 0, len(rewards))
	for _, r := range rewards {
		v := RewardView{Reward: r}
		if o, ok := byID[r.ID]; ok {
			at := o.UnlockedAt
			v.Owned = true
			v.Equipped = o.IsEquipped
			v.UnlockedAt = &at
		}
		views = append(views, v)
	}
	return views, nil
}

// EquippedRewards returns the user's equipped rewards keyed by type.
func (s *RewardService) EquippedRewards(ctx context.Context, userID string) (map[models.RewardType]models.Reward, error) {
	var rewards []models.Reward
	err := s.DB.WithContext(ctx).
		Joins("JOIN user_rewards ON user_rewards.reward_id = rewards.id").
		Where("user_rewards.user_id = ? AND user_rewards.is_equipped = ?", userID, true).
		Find(&rewards).Error
	if err != nil {
		return nil, err
	}
	out := make(map[models.RewardType]models.Reward, len(rewards))
	for _, r := range rewards {
		out[r.Type] = r
	}
	return out, nil
}

// SetIcon records the artwork URL of a catalog reward.
func (s *RewardService) SetIcon(ctx context.Context, rewardID, url string) error {
	res := s.DB.WithContext(ctx).Model(&models.Reward{}).Where("id = ?", rewardID).Update("icon_url", url)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: unknown reward %s", ErrValidation, rewardID)
	}
	return nil
}
