package pg

import (
	"context"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

type txContextKey string

const txKey txContextKey = "trx"

// DB wraps a read replica and a write primary. Repositories pick the
// right side via Read/Write; WithinTransaction pins both to the same tx.
type DB struct {
	read  *gorm.DB
	write *gorm.DB
}

func Create(config Config, withDebug bool) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(config.dsn()), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{
			SingularTable: true,
		},
	})
	if err != nil {
		return nil, err
	}

	if withDebug {
		db = db.Debug()
	}
	return db, nil
}

func CreateReadWrite(readConfig, writeConfig Config, withDebug bool) (*DB, error) {
	read, err := Create(readConfig, withDebug)
	if err != nil {
		return nil, err
	}
	write, err := Create(writeConfig, withDebug)
	if err != nil {
		return nil, err
	}
	return &DB{read: read, write: write}, nil
}

// NewWithConnections builds a DB around existing gorm handles. Tests use
// this with an in-memory sqlite connection on both sides.
func NewWithConnections(read, write *gorm.DB) *DB {
	return &DB{read: read, write: write}
}

// WithinTransaction runs fn inside a single write transaction. Nested
// repository calls observe the transaction through the context; a nested
// WithinTransaction joins the surrounding transaction instead of opening
// a second one, so the whole call tree commits or rolls back together.
func (r *DB) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey).(*gorm.DB); ok {
		return fn(ctx)
	}
	return r.write.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ctx = context.WithValue(ctx, txKey, tx)
		return fn(ctx)
	})
}

func (r *DB) Write(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txKey).(*gorm.DB); ok {
		return tx
	}
	return r.write.WithContext(ctx)
}

func (r *DB) Read(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txKey).(*gorm.DB); ok {
		return tx
	}
	return r.read.WithContext(ctx)
}

func (c Config) dsn() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		c.Host, c.User, c.Password, c.Database, c.Port)
}
