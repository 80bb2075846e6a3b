package services

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"essence-engine/config"
	"essence-engine/models"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testStart = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "essence.db")), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

func testConfig() *config.Config {
	return &config.Config{
		Limits: config.Limits{
			MaxActionsPerHour:         20,
			MaxEssencePerHour:         500,
			InstantCompletionCooldown: time.Minute,
		},
		Leveling:    config.Leveling{Constant: DefaultLevelConstant},
		Diminishing: config.Diminishing{Enabled: true, DayLocation: "UTC"},
	}
}

type recordingPublisher struct {
	mu   sync.Mutex
	sent []Notification
}

func (p *recordingPublisher) Publish(n Notification) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, n)
}

func (p *recordingPublisher) ofType(t NotificationType) []Notification {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []Notification
	for _, n := range p.sent {
		if n.Type == t {
			out = append(out, n)
		}
	}
	return out
}

type testEnv struct {
	db    *gorm.DB
	clock *clockwork.FakeClock
	pub   *recordingPublisher
	*Engine
}

func newTestEnv(t *testing.T, mutate ...func(*config.Config)) *testEnv {
	t.Helper()
	cfg := testConfig()
	for _, m := range mutate {
		m(cfg)
	}
	economy, err := config.LoadEconomy("")
	require.NoError(t, err)

	db := newTestDB(t)
	clock := clockwork.NewFakeClockAt(testStart)
	pub := &recordingPublisher{}

	engine, err := NewEngine(db, clock, cfg, economy, pub)
	require.NoError(t, err)
	require.NoError(t, engine.Catalog.Seed(context.Background(), economy))

	return &testEnv{db: db, clock: clock, pub: pub, Engine: engine}
}

func (e *testEnv) award(t *testing.T, userID, source, sourceID string, base int64) bool {
	t.Helper()
	ok, err := e.Essence.AwardEssence(context.Background(), userID, source, sourceID, base)
	require.NoError(t, err)
	return ok
}

func (e *testEnv) profile(t *testing.T, userID string) models.Profile {
	t.Helper()
	var p models.Profile
	require.NoError(t, e.db.Where("user_id = ?", userID).First(&p).Error)
	return p
}

func (e *testEnv) ledger(t *testing.T, userID string) []models.EssenceTransaction {
	t.Helper()
	var txs []models.EssenceTransaction
	require.NoError(t, e.db.Where("user_id = ?", userID).Order("timestamp, id").Find(&txs).Error)
	return txs
}

func ledgerSum(txs []models.EssenceTransaction) int64 {
	var sum int64
	for _, tx := range txs {
		sum += tx.Amount
	}
	return sum
}
