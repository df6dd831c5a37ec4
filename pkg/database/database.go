// Package database owns the PostgreSQL handle: connection setup, embedded
// migrations, transactions and the mapping of driver errors to API errors.
package database

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/yoozak/yoozak-backend/pkg/config"
	"github.com/yoozak/yoozak-backend/pkg/logger"
)

const connectTimeout = 10 * time.Second

// Queryer is satisfied by both *DB and *sqlx.Tx so repositories can run the
// same statement inside or outside a caller's transaction.
type Queryer interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

// DB wraps sqlx.DB with transactions and health reporting
type DB struct {
	*sqlx.DB
	logger *logger.Logger
}

// New opens the pool and checks that the server answers
func New(cfg *config.DatabaseConfig, log *logger.Logger) (*DB, error) {
	db, err := sqlx.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database %s:%d: %w", cfg.Host, cfg.Port, err)
	}

	log.Info().Str("host", cfg.Host).Str("database", cfg.Database).Msg("connected to PostgreSQL")
	return &DB{DB: db, logger: log}, nil
}

// Wrap adapts an existing sqlx handle (e.g. sqlmock in tests).
func Wrap(db *sqlx.DB, log *logger.Logger) *DB {
	return &DB{DB: db, logger: log}
}

// Health pings the database and reports pool usage
func (db *DB) Health(ctx context.Context) map[string]string {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return map[string]string{"status": "down", "error": err.Error()}
	}

	stats := db.Stats()
	return map[string]string{
		"status":           "up",
		"open_connections": strconv.Itoa(stats.OpenConnections),
		"in_use":           strconv.Itoa(stats.InUse),
	}
}

// Transaction runs fn in a transaction, committing when it returns nil.
// A panic inside fn rolls back and re-panics.
func (db *DB) Transaction(ctx context.Context, fn func(*sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			db.logger.Error().Err(rbErr).Msg("failed to rollback transaction")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
