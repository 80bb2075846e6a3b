package models

import (
	"time"
)

// Profile is the per-user progression aggregate (one row per user).
// TotalEssence and CurrentLevel only ever grow.
type Profile struct {
	ID                string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID            string     `gorm:"uniqueIndex:ux_game_profiles_user;not null" json:"user_id"` // links to the external user service
	TotalEssence      int64      `gorm:"not null" json:"total_essence"`
	CurrentLevel      int        `gorm:"not null" json:"current_level"`
	CurrentTitle      string     `gorm:"size:100;not null" json:"current_title"`
	LastEssenceEarned *time.Time `json:"last_essence_earned,omitempty"`

	Timestamps
}

func (Profile) TableName() string { return "game_profiles" }

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}
