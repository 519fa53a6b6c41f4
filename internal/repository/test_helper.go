package repository

import (
	"testing"

	"github.com/retailcore/till-service/pkg/pg"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type testDB struct {
	*pg.DB
	rawDB *gorm.DB
}

func setupTestDB(t *testing.T) *testDB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	// every pooled connection would otherwise see its own empty database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&TillSessionEntity{},
		&CashDropEntity{},
		&CashVarianceEntity{},
		&VarianceActionEntity{},
		&TillSettingsEntity{},
		&SaleEntity{},
		&RefundEntity{},
	)
	require.NoError(t, err)

	return &testDB{
		DB:    pg.NewWithConnections(db, db),
		rawDB: db,
	}
}
