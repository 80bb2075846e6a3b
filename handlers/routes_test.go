package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"essence-engine/config"
	"essence-engine/models"
	"essence-engine/services"
	"essence-engine/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type recordingSink struct {
	got  []services.ActionCompleted
	full bool
}

func (s *recordingSink) Enqueue(evt services.ActionCompleted) error {
	if s.full {
		return workers.ErrQueueFull
	}
	s.got = append(s.got, evt)
	return nil
}

type testApp struct {
	app    *fiber.App
	engine *services.Engine
	db     *gorm.DB
	sink   *recordingSink
}

func newTestApp(t *testing.T) *testApp {
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

	cfg := &config.Config{
		Limits:      config.Limits{MaxActionsPerHour: 20, MaxEssencePerHour: 500, InstantCompletionCooldown: time.Minute},
		Leveling:    config.Leveling{Constant: 100},
		Diminishing: config.Diminishing{Enabled: true, DayLocation: "UTC"},
	}
	economy, err := config.LoadEconomy("")
	require.NoError(t, err)

	clock := clockwork.NewFakeClockAt(time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC))
	engine, err := services.NewEngine(db, clock, cfg, economy, nil)
	require.NoError(t, err)
	require.NoError(t, engine.Catalog.Seed(context.Background(), economy))

	app := fiber.New()
	sink := &recordingSink{}
	SetupEssenceRoutes(app, EssenceDeps{
		Essence:      engine.Essence,
		Achievements: engine.Achievements,
		Rewards:      engine.Rewards,
		Hub:          services.NewNotificationHub(4),
	})
	SetupInternalRoutes(app, engine.Essence, sink)
	SetupAdminRoutes(app, engine.Rewards, nil)

	return &testApp{app: app, engine: engine, db: db, sink: sink}
}

func (a *testApp) do(t *testing.T, method, path, userID string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	resp, err := a.app.Test(req, -1)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]interface{}{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp, out
}

func TestProfileRoute(t *testing.T) {
	a := newTestApp(t)
	_, err := a.engine.Essence.AwardEssence(context.Background(), "u1", "bonus", "b1", 200)
	require.NoError(t, err)

	resp, body := a.do(t, http.MethodGet, "/user/essence/profile", "u1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(200), body["total_essence"])
	assert.Equal(t, float64(1), body["current_level"])
	assert.Equal(t, "Freshman", body["current_title"])
	assert.Equal(t, float64(200), body["essence_to_next_level"])
	assert.Equal(t, float64(50), body["progress_to_next_level"])
}

func TestUserRoutesRequireUserContext(t *testing.T) {
	a := newTestApp(t)

	resp, _ := a.do(t, http.MethodGet, "/user/essence/profile", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestEquipRoute(t *testing.T) {
	a := newTestApp(t)

	resp, body := a.do(t, http.MethodPost, "/user/essence/rewards/border_gold/equip", "u1", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "failed to equip reward", body["error"])

	require.NoError(t, a.db.Create(&models.UserReward{ID: "r1", UserID: "u1", RewardID: "border_gold", UnlockedAt: time.Now().UTC()}).Error)
	resp, _ = a.do(t, http.MethodPost, "/user/essence/rewards/border_gold/equip", "u1", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var owned models.UserReward
	require.NoError(t, a.db.First(&owned, "id = ?", "r1").Error)
	assert.True(t, owned.IsEquipped)
}

func TestListRoutes(t *testing.T) {
	a := newTestApp(t)

	for _, path := range []string{"/user/essence/transactions", "/user/essence/achievements", "/user/essence/rewards", "/user/essence/levels"} {
		resp, _ := a.do(t, http.MethodGet, path, "u1", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}

	req := httptest.NewRequest(http.MethodGet, "/user/essence/levels", nil)
	req.Header.Set("X-User-ID", "u1")
	resp, err := a.app.Test(req, -1)
	require.NoError(t, err)
	var levels []map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&levels))
	require.Len(t, levels, 11)
	assert.Equal(t, float64(400), levels[1]["required_essence"])
	assert.Equal(t, "Ascended", levels[10]["title"])
}

func TestIngestActionRoute(t *testing.T) {
	a := newTestApp(t)

	resp, _ := a.do(t, http.MethodPost, "/s/internal/actions", "", map[string]interface{}{
		"user_id": "u1", "source_id": "t1", "source_kind": "task", "completed_at": "2025-03-10T12:00:00Z",
	})
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.Len(t, a.sink.got, 1)
	assert.Equal(t, "t1", a.sink.got[0].SourceID)

	resp, _ = a.do(t, http.MethodPost, "/s/internal/actions", "", map[string]interface{}{
		"user_id": "u1", "source_id": "x1", "source_kind": "expense",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = a.do(t, http.MethodPost, "/s/internal/actions", "", map[string]interface{}{"user_id": "u1"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	a.sink.full = true
	resp, _ = a.do(t, http.MethodPost, "/s/internal/actions", "", map[string]interface{}{
		"user_id": "u1", "source_id": "t2", "source_kind": "task",
	})
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestAdminIconRoute(t *testing.T) {
	a := newTestApp(t)

	req := httptest.NewRequest(http.MethodPost, "/s/admin/rewards/border_gold/icon", nil)
	req.Header.Set("X-User-ID", "u1")
	resp, err := a.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	req = httptest.NewRequest(http.MethodPost, "/s/admin/rewards/border_gold/icon", nil)
	req.Header.Set("X-User-ID", "admin-1")
	req.Header.Set("X-User-Roles", "user, admin")
	resp, err = a.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
