package pg

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type ledgerEntry struct {
	ID   uint `gorm:"primaryKey"`
	Note string
}

func (ledgerEntry) TableName() string {
	return "ledger_entries"
}

func setupDB(t *testing.T) *DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	// every pooled connection would otherwise see its own empty database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&ledgerEntry{}))
	return NewWithConnections(db, db)
}

func TestWithinTransaction(t *testing.T) {
	t.Run("commits writes made through the context", func(t *testing.T) {
		db := setupDB(t)
		ctx := context.Background()

		err := db.WithinTransaction(ctx, func(ctx context.Context) error {
			return db.Write(ctx).Create(&ledgerEntry{Note: "first"}).Error
		})
		require.NoError(t, err)

		var count int64
		require.NoError(t, db.Read(ctx).Model(&ledgerEntry{}).Count(&count).Error)
		assert.Equal(t, int64(1), count)
	})

	t.Run("rolls back all writes when fn fails", func(t *testing.T) {
		db := setupDB(t)
		ctx := context.Background()

		err := db.WithinTransaction(ctx, func(ctx context.Context) error {
			if err := db.Write(ctx).Create(&ledgerEntry{Note: "doomed"}).Error; err != nil {
				return err
			}
			return errors.New("abort")
		})
		require.Error(t, err)

		var count int64
		require.NoError(t, db.Read(ctx).Model(&ledgerEntry{}).Count(&count).Error)
		assert.Equal(t, int64(0), count)
	})

	t.Run("nested call joins the surrounding transaction", func(t *testing.T) {
		db := setupDB(t)
		ctx := context.Background()

		err := db.WithinTransaction(ctx, func(ctx context.Context) error {
			if err := db.Write(ctx).Create(&ledgerEntry{Note: "outer"}).Error; err != nil {
				return err
			}
			return db.WithinTransaction(ctx, func(ctx context.Context) error {
				return db.Write(ctx).Create(&ledgerEntry{Note: "inner"}).Error
			})
		})
		require.NoError(t, err)

		var count int64
		require.NoError(t, db.Read(ctx).Model(&ledgerEntry{}).Count(&count).Error)
		assert.Equal(t, int64(2), count)
	})

	t.Run("outer failure rolls back nested writes", func(t *testing.T) {
		db := setupDB(t)
		ctx := context.Background()

		err := db.WithinTransaction(ctx, func(ctx context.Context) error {
			if err := db.Write(ctx).Create(&ledgerEntry{Note: "outer"}).Error; err != nil {
				return err
			}
			if err := db.WithinTransaction(ctx, func(ctx context.Context) error {
				return db.Write(ctx).Create(&ledgerEntry{Note: "inner"}).Error
			}); err != nil {
				return err
			}
			return errors.New("abort after nested write")
		})
		require.Error(t, err)

		var count int64
		require.NoError(t, db.Read(ctx).Model(&ledgerEntry{}).Count(&count).Error)
		assert.Equal(t, int64(0), count)
	})

	t.Run("reads inside the transaction see uncommitted writes", func(t *testing.T) {
		db := setupDB(t)
		ctx := context.Background()

		err := db.WithinTransaction(ctx, func(ctx context.Context) error {
			if err := db.Write(ctx).Create(&ledgerEntry{Note: "visible"}).Error; err != nil {
				return err
			}
			var count int64
			if err := db.Read(ctx).Model(&ledgerEntry{}).Count(&count).Error; err != nil {
				return err
			}
			assert.Equal(t, int64(1), count)
			return nil
		})
		require.NoError(t, err)
	})
}
