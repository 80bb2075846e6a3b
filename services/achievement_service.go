package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"essence-engine/models"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AchievementService unlocks catalog achievements and grants their rewards.
// It never credits essenceReward into the profile.
type AchievementService struct {
	DB         *gorm.DB
	Clock      clockwork.Clock
	Criteria   map[string]Criteria
	Milestones []string
	Publisher  Publisher
}

// NewAchievementService fails when a milestone id has no registered criteria.
func NewAchievementService(db *gorm.DB, clock clockwork.Clock, registry map[string]Criteria, milestones []string, publisher Publisher) (*AchievementService, error) {
	for _, id := range milestones {
		if _, ok := registry[id]; !ok {
			return nil, fmt.Errorf("%w: milestone %q has no criteria", ErrUnknownCriteria, id)
		}
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if publisher == nil {
		publisher = nopPublisher{}
	}
	return &AchievementService{
		DB:         db,
		Clock:      clock,
		Criteria:   registry,
		Milestones: append([]string(nil), milestones...),
		Publisher:  publisher,
	}, nil
}

// CheckAndUnlock unlocks achievementID for userID if its criteria hold. It
// reports whether this call created the unlock; unknown, inactive and
// already-unlocked achievements are a no-op.
func (s *AchievementService) CheckAndUnlock(ctx context.Context, userID, achievementID string) (bool, error) {
	db := s.DB.WithContext(ctx)

	criteria, ok := s.Criteria[achievementID]
	if !ok {
		return false, nil
	}

	var achievement models.Achievement
	if err := db.First(&achievement, "id = ?", achievementID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	if !achievement.Active {
		return false, nil
	}

	var unlocked int64
	if err := db.Model(&models.UserAchievement{}).
		Where("user_id = ? AND achievement_id = ?", userID, achievementID).
		Count(&unlocked).Error; err != nil {
		return false, err
	}
	if unlocked > 0 {
		return false, nil
	}

	satisfied, err := criteria.Satisfied(db, userID)
	if err != nil {
		return false, fmt.Errorf("evaluate %s for %s: %w", achievementID, userID, err)
	}
	if !satisfied {
		return false, nil
	}

	now := s.Clock.Now().UTC()
	var granted []models.Reward

	err = db.Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "achievement_id"}},
			DoNothing: true,
		}).Create(&models.UserAchievement{
			ID:            uuid.NewString(),
			UserID:        userID,
			AchievementID: achievementID,
			UnlockedAt:    now,
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// A concurrent trigger won the unlock.
			return errNotGranted
		}

		if len(achievement.RewardIDs) == 0 {
			return nil
		}
		var rewards []models.Reward
		if err := tx.Where("id IN ?", achievement.RewardIDs).Find(&rewards).Error; err != nil {
			return err
		}
		for _, r := range rewards {
			res := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "user_id"}, {Name: "reward_id"}},
				DoNothing: true,
			}).Create(&models.UserReward{
				ID:         uuid.NewString(),
				UserID:     userID,
				RewardID:   r.ID,
				IsEquipped: false,
				UnlockedAt: now,
			})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 1 {
				granted = append(granted, r)
			}
		}
		return nil
	})
	if errors.Is(err, errNotGranted) || errors.Is(err, gorm.ErrDuplicatedKey) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("unlock %s for %s: %w", achievementID, userID, err)
	}

	log.Printf("🏆 [ACHIEVEMENT] %s unlocked %s (%d rewards granted)", userID, achievementID, len(granted))
	s.Publisher.Publish(NewNotification(userID, AchievementUnlocked{
		ID:            achievement.ID,
		Name:          achievement.Name,
		EssenceReward: achievement.EssenceReward,
		RewardIDs:     append([]string{}, achievement.RewardIDs...),
	}, now))
	for _, r := range granted {
		s.Publisher.Publish(NewNotification(userID, RewardUnlocked{ID: r.ID, Name: r.Name, Kind: string(r.Type)}, now))
	}
	return true, nil
}

// CheckAllMilestones runs CheckAndUnlock over the milestone list in order.
// A failing milestone is logged and the sweep continues; the first error is returned.
func (s *AchievementService) CheckAllMilestones(ctx context.Context, userID string) error {
	var firstErr error
	for _, id := range s.Milestones {
		if _, err := s.CheckAndUnlock(ctx, userID, id); err != nil {
			log.Printf("❌ [ACHIEVEMENT] milestone %s for %s: %v", id, userID, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// AchievementView is a catalog achievement with the user's unlock state.
type AchievementView struct {
	models.Achievement
	Unlocked   bool       `json:"unlocked"`
	UnlockedAt *time.Time `json:"unlocked_at,omitempty"`
}

// ListForUser returns every active achievement with userID's unlock state.
func (s *AchievementService) ListForUser(ctx context.Context, userID string) ([]AchievementView, error) {
	db := s.DB.WithContext(ctx)

	var achievements []models.Achievement
	if err := db.Where("active = ?", true).Order("id").Find(&achievements).Error; err != nil {
		return nil, err
	}
	var unlocks []models.UserAchievement
	if err := db.Where("user_id = ?", userID).Find(&unlocks).Error; err != nil {
		return nil, err
	}
	at := make(map[string]time.Time, len(unlocks))
	for _, u := range unlocks {
		at[u.AchievementID] = u.UnlockedAt
	}

	views := make([]AchievementView, 0, len(achievements))
	for _, a := range achievements {
		v := AchievementView{Achievement: a}
		if t, ok := at[a.ID]; ok {
			t := t
			v.Unlocked = true
			v.UnlockedAt = &t
		}
		views = append(views, v)
	}
	return views, nil
}
