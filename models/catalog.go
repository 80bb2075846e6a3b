package models

import (
	"time"
)

// RewardType is the cosmetic slot a reward occupies. At most one reward per
// type can be equipped.
type RewardType string

const (
	RewardTypeTitle     RewardType = "TITLE"
	RewardTypeBorder    RewardType = "BORDER"
	RewardTypeEmoji     RewardType = "EMOJI"
	RewardTypeNameFont  RewardType = "NAME_FONT"
	RewardTypeNameColor RewardType = "NAME_COLOR"
)

func (t RewardType) Valid() bool {
	switch t {
	case RewardTypeTitle, RewardTypeBorder, RewardTypeEmoji, RewardTypeNameFont, RewardTypeNameColor:
		return true
	}
	return false
}

type AchievementType string

const (
	AchievementTypeMilestone     AchievementType = "MILESTONE"
	AchievementTypeStreak        AchievementType = "STREAK"
	AchievementTypeDomainMastery AchievementType = "DOMAIN_MASTERY"
	AchievementTypeCumulative    AchievementType = "CUMULATIVE"
)

func (t AchievementType) Valid() bool {
	switch t {
	case AchievementTypeMilestone, AchievementTypeStreak, AchievementTypeDomainMastery, AchievementTypeCumulative:
		return true
	}
	return false
}

// Reward: static catalog entry (seeded from the economy file)
type Reward struct {
	ID          string     `gorm:"primaryKey;size:50" json:"id"` // "title_apprentice", "border_gold", "emoji_fire"
	Name        string     `gorm:"size:100;not null" json:"name"`
	Description string     `gorm:"size:500" json:"description"`
	Type        RewardType `gorm:"size:20;not null;index:idx_rewards_type" json:"type"`
	Value       string     `gorm:"size:100" json:"value"` // CSS value, color code, emoji...
	IconURL     string     `gorm:"type:text" json:"icon_url,omitempty"`
	Active      bool       `gorm:"not null" json:"active"`

	Timestamps
}

// Achievement: static catalog entry. Unlock criteria live in the in-memory
// registry built from the same catalog file.
type Achievement struct {
	ID            string          `gorm:"primaryKey;size:50" json:"id"`
	Name          string          `gorm:"size:100;not null" json:"name"`
	Description   string          `gorm:"size:500" json:"description"`
	Type          AchievementType `gorm:"size:20;not null" json:"type"`
	EssenceReward int64           `gorm:"not null" json:"essence_reward"`
	RewardIDs     []string        `gorm:"serializer:json;type:text" json:"reward_ids"`
	Active        bool            `gorm:"not null" json:"active"`

	Timestamps
}

// UserAchievement: unlocked instance, created once per (user, achievement)
type UserAchievement struct {
	ID            string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID        string    `gorm:"not null;uniqueIndex:ux_user_achievement,priority:1;index:idx_user_achievements,priority:1" json:"user_id"`
	AchievementID string    `gorm:"size:50;not null;uniqueIndex:ux_user_achievement,priority:2" json:"achievement_id"`
	UnlockedAt    time.Time `gorm:"not null;index:idx_user_achievements,priority:2" json:"unlocked_at"`
}

// UserReward: owned reward. IsEquipped is the only field that changes after creation.
type UserReward struct {
	ID         string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID     string    `gorm:"not null;uniqueIndex:ux_user_reward,priority:1;index:idx_user_rewards,priority:1" json:"user_id"`
	RewardID   string    `gorm:"size:50;not null;uniqueIndex:ux_user_reward,priority:2" json:"reward_id"`
	IsEquipped bool      `gorm:"not null" json:"is_equipped"`
	UnlockedAt time.Time `gorm:"not null;index:idx_user_rewards,priority:2" json:"unlocked_at"`
}

// All lists every model for AutoMigrate.
func All() []interface{} {
	return []interface{}{
		&Profile{},
		&EssenceTransaction{},
		&Reward{},
		&Achievement{},
		&UserAchievement{},
		&UserReward{},
	}
}
