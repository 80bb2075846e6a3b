package services

import (
	"context"
	"fmt"
	"log"

	"essence-engine/config"
	"essence-engine/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CatalogService struct {
	DB *gorm.DB
}

func NewCatalogService(db *gorm.DB) *CatalogService {
	return &CatalogService{DB: db}
}

// CatalogModels converts the economy file into catalog rows, rejecting unknown
// reward and achievement types.
func CatalogModels(e *config.Economy) ([]models.Reward, []models.Achievement, error) {
	rewards := make([]models.Reward, 0, len(e.Rewards))
	for _, r := range e.Rewards {
		t := models.RewardType(r.Type)
		if !t.Valid() {
			return nil, nil, fmt.Errorf("%w: reward %q has unknown type %q", ErrValidation, r.ID, r.Type)
		}
		rewards = append(rewards, models.Reward{
			ID:          r.ID,
			Name:        r.Name,
			Description: r.Description,
			Type:        t,
			Value:       r.Value,
			Active:      r.IsActive(),
		})
	}

	achievements := make([]models.Achievement, 0, len(e.Achievements))
	for _, a := range e.Achievements {
		t := models.AchievementType(a.Type)
		if !t.Valid() {
			return nil, nil, fmt.Errorf("%w: achievement %q has unknown type %q", ErrValidation, a.ID, a.Type)
		}
		ids := a.Rewards
		if ids == nil {
			ids = []string{}
		}
		achievements = append(achievements, models.Achievement{
			ID:            a.ID,
			Name:          a.Name,
			Description:   a.Description,
			Type:          t,
			EssenceReward: a.EssenceReward,
			RewardIDs:     ids,
			Active:        a.IsActive(),
		})
	}
	return rewards, achievements, nil
}

// Seed upserts the catalog. Uploaded reward artwork is left untouched.
func (s *CatalogService) Seed(ctx context.Context, e *config.Economy) error {
	rewards, achievements, err := CatalogModels(e)
	if err != nil {
		return err
	}

	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(rewards) > 0 {
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				DoUpdates: clause.AssignmentColumns([]string{"name", "description", "type", "value", "active", "updated_at"}),
			}).Create(&rewards).Error; err != nil {
				return fmt.Errorf("seed rewards: %w", err)
			}
		}
		if len(achievements) > 0 {
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				DoUpdates: clause.AssignmentColumns([]string{"name", "description", "type", "essence_reward", "reward_ids", "active", "updated_at"}),
			}).Create(&achievements).Error; err != nil {
				return fmt.Errorf("seed achievements: %w", err)
			}
		}
		log.Printf("✅ [CATALOG] Seeded %d rewards, %d achievements", len(rewards), len(achievements))
		return nil
	})
}
