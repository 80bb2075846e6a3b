package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"essence-engine/config"
	"essence-engine/models"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SourceRule is how an action kind is paid.
type SourceRule struct {
	Tag        string
	BaseAmount int64
}

// EssenceService owns the ledger and profiles: it is the only writer of
// EssenceTransaction rows and of profile totals.
type EssenceService struct {
	DB          *gorm.DB
	Clock       clockwork.Clock
	Levels      *LevelTable
	Gate        *AntiAbuseGate
	Diminishing *DiminishingReturns
	Sources     map[string]SourceRule // action kind → rule
	Cooldown    time.Duration         // minimum creation→completion gap for an action to pay
	DayLocation *time.Location
	Publisher   Publisher
}

// NewEssenceService wires the engine from env config and the economy catalog.
func NewEssenceService(db *gorm.DB, clock clockwork.Clock, cfg *config.Config, economy *config.Economy, publisher Publisher) (*EssenceService, error) {
	levels, err := NewLevelTable(cfg.Leveling.Constant, economy.Levels.Titles, economy.Levels.Fallback)
	if err != nil {
		return nil, err
	}
	dim, err := DiminishingFromEconomy(cfg.Diminishing.Enabled, economy)
	if err != nil {
		return nil, err
	}
	loc, err := cfg.DayLocation()
	if err != nil {
		return nil, err
	}
	sources := make(map[string]SourceRule, len(economy.Sources))
	for _, s := range economy.Sources {
		sources[s.Kind] = SourceRule{Tag: s.Tag, BaseAmount: s.BaseAmount}
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if publisher == nil {
		publisher = nopPublisher{}
	}
	return &EssenceService{
		DB:     db,
		Clock:  clock,
		Levels: levels,
		Gate: &AntiAbuseGate{
			MaxActionsPerHour: cfg.Limits.MaxActionsPerHour,
			MaxEssencePerHour: cfg.Limits.MaxEssencePerHour,
		},
		Diminishing: dim,
		Sources:     sources,
		Cooldown:    cfg.Limits.InstantCompletionCooldown,
		DayLocation: loc,
		Publisher:   publisher,
	}, nil
}

// GetOrCreateProfile returns the user's profile, creating it on first access.
// Concurrent first accesses converge on one row through the unique user_id index.
func (s *EssenceService) GetOrCreateProfile(ctx context.Context, userID string) (*models.Profile, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrValidation)
	}
	return s.findOrCreateProfile(s.DB.WithContext(ctx), userID, false)
}

func (s *EssenceService) findOrCreateProfile(db *gorm.DB, userID string, lock bool) (*models.Profile, error) {
	query := func() (*models.Profile, error) {
		var p models.Profile
		q := db
		if lock {
			q = q.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		if err := q.Where("user_id = ?", userID).First(&p).Error; err != nil {
			return nil, err
		}
		return &p, nil
	}

	p, err := query()
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	fresh := models.Profile{
		ID:           uuid.NewString(),
		UserID:       userID,
		TotalEssence: 0,
		CurrentLevel: 1,
		CurrentTitle: s.Levels.BaseTitle(),
	}
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(&fresh).Error; err != nil {
		return nil, fmt.Errorf("create profile for %s: %w", userID, err)
	}
	return query()
}

// AwardEssence credits baseAmount (after diminishing returns) for one
// completed action. It returns false, with no side effects, when the gate
// rejects the request or the action was already paid.
func (s *EssenceService) AwardEssence(ctx context.Context, userID, source, sourceID string, baseAmount int64) (bool, error) {
	if userID == "" || source == "" || sourceID == "" {
		return false, fmt.Errorf("%w: user, source and source id are required", ErrValidation)
	}
	if baseAmount < 0 {
		return false, fmt.Errorf("%w: negative base amount %d", ErrValidation, baseAmount)
	}

	now := s.Clock.Now().UTC()
	var (
		amount   int64
		levelUps []LevelUp
		decision GateDecision
	)

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Row lock on the profile serializes awards for this user.
		profile, err := s.findOrCreateProfile(tx, userID, true)
		if err != nil {
			return err
		}

		decision, err = s.Gate.Check(tx, userID, source, sourceID, now)
		if err != nil {
			return err
		}
		if decision != GateGranted {
			return errNotGranted
		}

		amount = baseAmount
		if s.Diminishing.Applies(source) {
			today, err := countTransactionsSince(tx, userID, source, StartOfDay(now, s.DayLocation))
			if err != nil {
				return err
			}
			amount = s.Diminishing.Adjust(source, baseAmount, today)
		}

		inserted, err := appendTransaction(tx, &models.EssenceTransaction{
			ID:        uuid.NewString(),
			UserID:    userID,
			Amount:    amount,
			Source:    source,
			SourceID:  sourceID,
			Timestamp: now,
		})
		if err != nil {
			return err
		}
		if !inserted {
			decision = GateDuplicate
			return errNotGranted
		}

		profile.TotalEssence += amount
		profile.LastEssenceEarned = &now
		levelUps = s.Levels.CheckLevelUp(profile)

		return tx.Save(profile).Error
	})

	switch {
	case errors.Is(err, errNotGranted):
		log.Printf("⚠️ [GATE] Essence not granted for user %s source %s sourceId %s: %s", userID, source, sourceID, decision)
		return false, nil
	case errors.Is(err, gorm.ErrDuplicatedKey):
		log.Printf("⚠️ [GATE] Concurrent award for user %s source %s sourceId %s already recorded", userID, source, sourceID)
		return false, nil
	case err != nil:
		return false, fmt.Errorf("award essence to %s: %w", userID, err)
	}

	log.Printf("✨ [AWARD] %d essence to user %s for %s (sourceId: %s)", amount, userID, source, sourceID)
	s.Publisher.Publish(NewNotification(userID, EssenceGained{Amount: amount, Source: source}, now))
	for _, up := range levelUps {
		log.Printf("🎉 [AWARD] User %s leveled up to %d (%s)", userID, up.Level, up.Title)
		s.Publisher.Publish(NewNotification(userID, LevelUpPayload{NewLevel: up.Level, NewTitle: up.Title}, now))
	}
	return true, nil
}

// HandleAction maps a completed action to its source rule and awards it.
// Actions completed faster than the cooldown after creation are not paid.
func (s *EssenceService) HandleAction(ctx context.Context, evt ActionCompleted) (bool, error) {
	rule, ok := s.Sources[evt.SourceKind]
	if !ok {
		return false, fmt.Errorf("%w: unknown action kind %q", ErrValidation, evt.SourceKind)
	}
	if !s.passesCooldown(evt.CreatedAt, evt.CompletedAt) {
		log.Printf("⚠️ [GATE] %s %s for user %s completed within %s of creation, not awarded", evt.SourceKind, evt.SourceID, evt.UserID, s.Cooldown)
		return false, nil
	}
	return s.AwardEssence(ctx, evt.UserID, rule.Tag, evt.SourceID, rule.BaseAmount)
}

func (s *EssenceService) passesCooldown(createdAt *time.Time, completedAt time.Time) bool {
	if createdAt == nil || completedAt.IsZero() {
		return true
	}
	return completedAt.Sub(*createdAt) >= s.Cooldown
}

// RequiredEssenceForLevel is the cumulative essence threshold of level.
func (s *EssenceService) RequiredEssenceForLevel(level int) int64 {
	return s.Levels.RequiredEssence(level)
}

// ProgressToNextLevel is the 0-100 progress of p toward its next level.
func (s *EssenceService) ProgressToNextLevel(p models.Profile) float64 {
	return s.Levels.ProgressToNextLevel(p)
}

// ProfileView is the profile plus derived progress fields.
type ProfileView struct {
	models.Profile
	EssenceToNextLevel  int64   `json:"essence_to_next_level"`
	ProgressToNextLevel float64 `json:"progress_to_next_level"`
}

func (s *EssenceService) GetProfileView(ctx context.Context, userID string) (*ProfileView, error) {
	p, err := s.GetOrCreateProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &ProfileView{
		Profile:             *p,
		EssenceToNextLevel:  s.Levels.EssenceToNextLevel(*p),
		ProgressToNextLevel: s.Levels.ProgressToNextLevel(*p),
	}, nil
}

// RecentTransactions returns the newest ledger rows for userID.
func (s *EssenceService) RecentTransactions(ctx context.Context, userID string, limit int) ([]models.EssenceTransaction, error) {
	if limit < 1 || limit > 50 {
		limit = 50
	}
	return recentTransactions(s.DB.WithContext(ctx), userID, limit)
}

// UsersWithEssenceSince lists users with at least one ledger row at or after since.
func (s *EssenceService) UsersWithEssenceSince(ctx context.Context, since time.Time) ([]string, error) {
	return usersWithEssenceSince(s.DB.WithContext(ctx), since)
}
