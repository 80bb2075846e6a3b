package services

import (
	"fmt"

	"essence-engine/config"

	"gorm.io/gorm"
)

// Criteria kinds understood by the registry.
const (
	CriteriaLifetimeCount = "lifetime_count"
	CriteriaStreak        = "streak"
)

// Criteria decides whether a user has earned an achievement.
type Criteria interface {
	Satisfied(db *gorm.DB, userID string) (bool, error)
}

// LifetimeCount is met once the user has Threshold ledger rows for Source.
type LifetimeCount struct {
	Source    string
	Threshold int64
}

func (c LifetimeCount) Satisfied(db *gorm.DB, userID string) (bool, error) {
	n, err := countTransactionsSince(db, userID, c.Source, LifetimeEpoch)
	if err != nil {
		return false, err
	}
	return n >= c.Threshold, nil
}

// Unsupported is registered for kinds with no evaluator yet (streaks).
// It never unlocks.
type Unsupported struct {
	Kind string
}

func (Unsupported) Satisfied(*gorm.DB, string) (bool, error) { return false, nil }

// BuildCriteriaRegistry binds every catalog achievement id to a predicate.
// An unknown criteria kind fails startup.
func BuildCriteriaRegistry(achievements []config.AchievementConfig) (map[string]Criteria, error) {
	registry := make(map[string]Criteria, len(achievements))
	for _, a := range achievements {
		var c Criteria
		switch a.Criteria.Kind {
		case CriteriaLifetimeCount:
			if a.Criteria.Source == "" || a.Criteria.Threshold < 1 {
				return nil, fmt.Errorf("achievement %q: lifetime_count needs a source and a positive threshold", a.ID)
			}
			c = LifetimeCount{Source: a.Criteria.Source, Threshold: a.Criteria.Threshold}
		case CriteriaStreak:
			c = Unsupported{Kind: a.Criteria.Kind}
		default:
			return nil, fmt.Errorf("%w: achievement %q uses %q", ErrUnknownCriteria, a.ID, a.Criteria.Kind)
		}
		registry[a.ID] = c
	}
	return registry, nil
}
