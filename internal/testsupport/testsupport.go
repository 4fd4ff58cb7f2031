package testsupport

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"insightica/internal/config"
	"insightica/internal/database"
	"insightica/internal/enrich"
	"insightica/internal/events"
	"insightica/internal/live"
	"insightica/internal/websites"
)

// testDBCache caches test databases by root test name so subtests share one
var testDBCache = make(map[string]*gorm.DB)
var testDBCacheMu sync.Mutex

// AllModels returns every persisted model.
func AllModels() []any {
	return []any{
		&websites.Website{},
		&events.PageView{},
		&live.Presence{},
	}
}

// SetupTestDB creates a named in-memory database with all models migrated.
// cache=shared lets the pool's connections see the same database. Calls
// within one test (and its subtests) return the same database.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	rootName := t.Name()
	if idx := strings.Index(rootName, "/"); idx > 0 {
		rootName = rootName[:idx]
	}

	testDBCacheMu.Lock()
	if db, exists := testDBCache[rootName]; exists {
		testDBCacheMu.Unlock()
		return db
	}
	testDBCacheMu.Unlock()

	dsn := fmt.Sprintf("file:test_%s_%d?mode=memory&cache=shared", rootName, time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("testsupport: failed to open test database: %v", err)
	}
	// One connection avoids shared-cache table locks between a write
	// transaction and concurrent reads.
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}

	if err := db.AutoMigrate(AllModels()...); err != nil {
		t.Fatalf("testsupport: failed to migrate models: %v", err)
	}

	testDBCacheMu.Lock()
	testDBCache[rootName] = db
	testDBCacheMu.Unlock()

	t.Cleanup(func() {
		testDBCacheMu.Lock()
		delete(testDBCache, rootName)
		testDBCacheMu.Unlock()
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	return db
}

// SetupTestDBManager wraps SetupTestDB in a database manager.
func SetupTestDBManager(t *testing.T) (*database.DBManager, *slog.Logger) {
	t.Helper()
	logger := GetLogger()
	return database.NewFromGorm(SetupTestDB(t), config.SQLiteDatabase, logger), logger
}

// TestConfig returns a test-environment configuration without touching
// the process-wide singleton.
func TestConfig() *config.Config {
	return &config.Config{
		AppName:                "insightica",
		Environment:            config.Test,
		LogLevel:               config.LogLevelError,
		OwnerHeader:            "X-Owner-Email",
		AllowedOrigins:         "*",
		DatabaseType:           config.SQLiteDatabase,
		LiveWindowSeconds:      30,
		PresenceRetentionHours: 24,
		JobIntervalSeconds:     3600,
		AnalyticsWorkers:       2,
	}
}

// CreateTestWebsite registers a website for owner with a fresh id.
func CreateTestWebsite(t *testing.T, conn database.Conn, owner, domain, timezone string) websites.Website {
	t.Helper()
	w, err := websites.NewRegistry(conn, GetLogger()).CreateWebsite(context.Background(), owner, websites.CreateInput{
		Domain:   domain,
		Timezone: timezone,
	})
	require.NoError(t, err)
	return *w
}

// InsertPageViews writes rows directly, bypassing ingestion.
func InsertPageViews(t *testing.T, db *gorm.DB, rows ...events.PageView) {
	t.Helper()
	for i := range rows {
		require.NoError(t, db.Create(&rows[i]).Error)
	}
}

// GetLogger returns a logger that only prints errors.
func GetLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError})
	return slog.New(handler)
}

// MockTimeProvider always reports FixedTime.
type MockTimeProvider struct {
	FixedTime time.Time
}

func (m *MockTimeProvider) Now(loc *time.Location) time.Time {
	return m.FixedTime.In(loc)
}

// StaticResolver resolves every request to Info.
type StaticResolver struct {
	Info enrich.Info
}

func (s StaticResolver) Resolve(string, string) enrich.Info {
	return s.Info
}
