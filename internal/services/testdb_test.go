package services

import (
	"testing"
	"time"

	"github.com/rxtech-lab/pooled-funds/internal/models"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	// Use in-memory SQLite database for testing
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err, "Failed to connect to in-memory database")

	// every connection to :memory: opens a separate database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	err = db.AutoMigrate(
		&models.Chain{},
		&models.Pool{},
		&models.Participant{},
		&models.SavedPayout{},
		&models.User{},
		&models.LoginNonce{},
		&models.ReconciliationIssue{},
	)
	require.NoError(t, err, "Failed to run migrations")

	if testing.Verbose() {
		db = db.Debug()
	}

	return db
}

func newTestPool(name string) *models.Pool {
	start := time.Now().Add(time.Hour).Truncate(time.Second)
	return &models.Pool{
		ChainID:       1,
		Name:          name,
		Description:   "Sunday brunch pool",
		BannerImage:   "https://example.com/banner.png",
		Price:         "10",
		TokenDecimals: 6,
		SoftCap:       20,
		StartTime:     start,
		EndTime:       start.Add(time.Hour),
		TokenAddress:  testToken.Hex(),
		HostAddress:   testAddress.Hex(),
	}
}

// createOnchainPool inserts a pool that already exists on-chain with the given status.
func createOnchainPool(t *testing.T, db *gorm.DB, onchainID uint64, status models.PoolStatus) *models.Pool {
	service := NewPoolService(db)
	pool := newTestPool("Brunch")
	require.NoError(t, service.CreateDraft(pool))
	require.NoError(t, service.MarkUnconfirmed(pool.ID, "0xhash"))
	require.NoError(t, service.MarkConfirmed(pool.ID, onchainID, ""))
	if status != models.PoolStatusInactive {
		require.NoError(t, service.MirrorStatus(pool.ID, status))
	}
	stored, err := service.GetPool(pool.ID)
	require.NoError(t, err)
	return stored
}
