package postgres

import (
	"testing"
	"time"

	"github.com/joshu-sajeev/delayedjobs/internal/models"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func SetupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent), // Disable logs during tests
	})
	require.NoError(t, err)

	// every :memory: connection is its own database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(&models.Job{})
	require.NoError(t, err)

	return db
}

var testBase = time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)

// testClock is a settable time source for WithClock.
type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestRepo(t *testing.T) (*JobRepository, *gorm.DB, *testClock) {
	db := SetupTestDB(t)
	clock := &testClock{now: testBase}
	return NewJobRepository(db, WithClock(clock.Now)), db, clock
}
