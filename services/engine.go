package services

import (
	"essence-engine/config"

	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"
)

// Engine groups the services built from one configuration.
type Engine struct {
	Essence      *EssenceService
	Achievements *AchievementService
	Rewards      *RewardService
	Catalog      *CatalogService
}

// NewEngine wires every service. It fails on any catalog inconsistency,
// including achievements whose criteria kind has no evaluator.
func NewEngine(db *gorm.DB, clock clockwork.Clock, cfg *config.Config, economy *config.Economy, publisher Publisher) (*Engine, error) {
	if _, _, err := CatalogModels(economy); err != nil {
		return nil, err
	}
	registry, err := BuildCriteriaRegistry(economy.Achievements)
	if err != nil {
		return nil, err
	}
	essence, err := NewEssenceService(db, clock, cfg, economy, publisher)
	if err != nil {
		return nil, err
	}
	achievements, err := NewAchievementService(db, essence.Clock, registry, economy.Milestones, essence.Publisher)
	if err != nil {
		return nil, err
	}
	return &Engine{
		Essence:      essence,
		Achievements: achievements,
		Rewards:      NewRewardService(db),
		Catalog:      NewCatalogService(db),
	}, nil
}
