package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ActionCompleted is the inbound signal from the todo/habit collaborators.
type ActionCompleted struct {
	UserID      string     `json:"user_id"`
	SourceID    string     `json:"source_id"`
	SourceKind  string     `json:"source_kind"` // "task", "habit"
	CreatedAt   *time.Time `json:"created_at,omitempty"`
	CompletedAt time.Time  `json:"completed_at"`
}

// NotificationType tags the payload variant.
type NotificationType string

const (
	NotificationEssenceGained       NotificationType = "ESSENCE_GAINED"
	NotificationLevelUp             NotificationType = "LEVEL_UP"
	NotificationAchievementUnlocked NotificationType = "ACHIEVEMENT_UNLOCKED"
	NotificationRewardUnlocked      NotificationType = "REWARD_UNLOCKED"
)

// Payload is one of EssenceGained, LevelUpPayload, AchievementUnlocked, RewardUnlocked.
type Payload interface {
	Type() NotificationType
}

type EssenceGained struct {
	Amount int64  `json:"amount"`
	Source string `json:"source"`
}

type LevelUpPayload struct {
	NewLevel int    `json:"new_level"`
	NewTitle string `json:"new_title"`
}

type AchievementUnlocked struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	EssenceReward int64    `json:"essence_reward"`
	RewardIDs     []string `json:"reward_ids"`
}

type RewardUnlocked struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Kind string `json:"kind,omitempty"`
}

func (EssenceGained) Type() NotificationType       { return NotificationEssenceGained }
func (LevelUpPayload) Type() NotificationType      { return NotificationLevelUp }
func (AchievementUnlocked) Type() NotificationType { return NotificationAchievementUnlocked }
func (RewardUnlocked) Type() NotificationType      { return NotificationRewardUnlocked }

// Notification is the envelope handed to dispatchers.
type Notification struct {
	ID        string           `json:"id"`
	UserID    string           `json:"user_id"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Icon      string           `json:"icon"`
	Payload   Payload          `json:"payload"`
	Timestamp time.Time        `json:"timestamp"`
}

var titleCaser = cases.Title(language.English)

// NewNotification wraps p with display text for userID.
func NewNotification(userID string, p Payload, at time.Time) Notification {
	n := Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		Type:      p.Type(),
		Payload:   p,
		Timestamp: at,
	}
	switch v := p.(type) {
	case EssenceGained:
		n.Title = "Essence Gained!"
		n.Message = fmt.Sprintf("You earned %d essence from %s", v.Amount, strings.ReplaceAll(v.Source, "_", " "))
		n.Icon = "✨"
	case LevelUpPayload:
		n.Title = "Level Up!"
		n.Message = fmt.Sprintf("Congratulations! You reached level %d - %s", v.NewLevel, v.NewTitle)
		n.Icon = "🎉"
	case AchievementUnlocked:
		n.Title = "Achievement Unlocked!"
		n.Message = fmt.Sprintf("%s (+%d essence)", v.Name, v.EssenceReward)
		n.Icon = "🏆"
	case RewardUnlocked:
		n.Title = "Reward Unlocked!"
		if v.Kind != "" {
			n.Message = fmt.Sprintf("You unlocked a new %s: %s", titleCaser.String(strings.ReplaceAll(strings.ToLower(v.Kind), "_", " ")), v.Name)
		} else {
			n.Message = fmt.Sprintf("You unlocked: %s", v.Name)
		}
		n.Icon = "🎁"
	}
	return n
}

// Publisher accepts notifications for asynchronous, best-effort delivery.
// Publish never blocks the award path and never fails it.
type Publisher interface {
	Publish(n Notification)
}

// NotificationDispatcher delivers a notification to one user (at most once).
type NotificationDispatcher interface {
	Send(ctx context.Context, userID string, n Notification) error
}

type nopPublisher struct{}

func (nopPublisher) Publish(Notification) {}
