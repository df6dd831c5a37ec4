// Package testutil holds the shared test harness: a PostgreSQL container with
// the migrations applied, sqlmock helpers, a recording event publisher and
// fixtures for operators, articles, variants, promotions and orders.
package testutil

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const defaultPostgresImage = "postgres:16-alpine"

// PostgresContainer is a throwaway PostgreSQL server
type PostgresContainer struct {
	*postgres.PostgresContainer
	DSN string
}

// PostgresContainerConfig configures the test PostgreSQL container
type PostgresContainerConfig struct {
	Database string
	Username string
	Password string
	Image    string
}

// DefaultPostgresConfig returns the container settings used by the
// integration suite. YOOZAK_TEST_POSTGRES_IMAGE overrides the image.
func DefaultPostgresConfig() PostgresContainerConfig {
	image := os.Getenv("YOOZAK_TEST_POSTGRES_IMAGE")
	if image == "" {
		image = defaultPostgresImage
	}
	return PostgresContainerConfig{
		Database: "yoozak_test",
		Username: "yoozak",
		Password: "yoozak",
		Image:    image,
	}
}

// NewPostgresContainer starts a container and waits until it accepts
// connections. The server logs readiness twice: once for the init run and
// once after the restart.
func NewPostgresContainer(ctx context.Context, cfg PostgresContainerConfig) (*PostgresContainer, error) {
	if cfg.Image == "" {
		cfg.Image = defaultPostgresImage
	}

	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage(cfg.Image),
		postgres.WithDatabase(cfg.Database),
		postgres.WithUsername(cfg.Username),
		postgres.WithPassword(cfg.Password),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(90*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("start postgres container %s: %w", cfg.Image, err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable", "application_name=yoozak-tests")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("postgres connection string: %w", err)
	}

	return &PostgresContainer{PostgresContainer: container, DSN: dsn}, nil
}

// Connect opens a sqlx handle on the container
func (c *PostgresContainer) Connect(ctx context.Context) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", c.DSN)
	if err != nil {
		return nil, fmt.Errorf("connect test database: %w", err)
	}
	return db, nil
}
