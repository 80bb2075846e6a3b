package models

import "time"

// EssenceTransaction is one immutable ledger row. (UserID, Source, SourceID)
// is the idempotency key.
type EssenceTransaction struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID    string    `gorm:"not null;uniqueIndex:ux_essence_tx_idem,priority:1;index:idx_essence_tx_user_time,priority:1" json:"user_id"`
	Amount    int64     `gorm:"not null" json:"amount"`
	Source    string    `gorm:"size:50;not null;uniqueIndex:ux_essence_tx_idem,priority:2" json:"source"` // "task_completed", "habit_completed", ...
	SourceID  string    `gorm:"size:64;not null;uniqueIndex:ux_essence_tx_idem,priority:3" json:"source_id"`
	Timestamp time.Time `gorm:"not null;index:idx_essence_tx_user_time,priority:2" json:"timestamp"`
}
