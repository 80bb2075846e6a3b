package services

import (
	"time"

	"essence-engine/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LifetimeEpoch is the lower bound used for unbounded ledger counts.
var LifetimeEpoch = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// Ledger queries. All take the handle to run on so they can join the caller's transaction.

func transactionExists(db *gorm.DB, userID, source, sourceID string) (bool, error) {
	var count int64
	err := db.Model(&models.EssenceTransaction{}).
		Where("user_id = ? AND source = ? AND source_id = ?", userID, source, sourceID).
		Count(&count).Error
	return count > 0, err
}

func countTransactionsSince(db *gorm.DB, userID, source string, since time.Time) (int64, error) {
	var count int64
	err := db.Model(&models.EssenceTransaction{}).
		Where("user_id = ? AND source = ? AND timestamp >= ?", userID, source, since).
		Count(&count).Error
	return count, err
}

func sumEssenceSince(db *gorm.DB, userID string, since time.Time) (int64, error) {
	var sum int64
	err := db.Model(&models.EssenceTransaction{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("user_id = ? AND timestamp >= ?", userID, since).
		Scan(&sum).Error
	return sum, err
}

// appendTransaction inserts tx unless its idempotency key already exists.
// It reports whether a row was written.
func appendTransaction(db *gorm.DB, tx *models.EssenceTransaction) (bool, error) {
	res := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "source"}, {Name: "source_id"}},
		DoNothing: true,
	}).Create(tx)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func recentTransactions(db *gorm.DB, userID string, limit int) ([]models.EssenceTransaction, error) {
	var txs []models.EssenceTransaction
	err := db.Where("user_id = ?", userID).
		Order("timestamp DESC").
		Limit(limit).
		Find(&txs).Error
	return txs, err
}

func usersWithEssenceSince(db *gorm.DB, since time.Time) ([]string, error) {
	var users []string
	err := db.Model(&models.EssenceTransaction{}).
		Distinct("user_id").
		Where("timestamp >= ?", since).
		Pluck("user_id", &users).Error
	return users, err
}
