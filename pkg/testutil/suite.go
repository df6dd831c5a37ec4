package testutil

import (
	"context"
	"flag"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/yoozak/yoozak-backend/pkg/database"
	"github.com/yoozak/yoozak-backend/pkg/logger"
)

var (
	// Global test container (shared across all integration tests of a package)
	globalContainer *PostgresContainer
	globalDB        *sqlx.DB
	containerOnce   sync.Once
	containerErr    error
)

// domainTables are truncated between tests, children first
var domainTables = []string{
	"kpi_processed_events",
	"kpi_daily",
	"order_status_history",
	"order_lines",
	"orders",
	"stock_alerts",
	"stock_movements",
	"promotion_articles",
	"promotions",
	"variants",
	"articles",
	"operators",
}

// IntegrationSuite provides a base for integration tests with real PostgreSQL
type IntegrationSuite struct {
	Container *PostgresContainer
	RawDB     *sqlx.DB
	DB        *database.DB
	Fixtures  *FixtureFactory
	Logger    *logger.Logger
}

// NewIntegrationSuite starts (or reuses) the PostgreSQL container and applies
// the embedded migrations. Call this in TestMain.
//
// Usage:
//
//	var suite *testutil.IntegrationSuite
//
//	func TestMain(m *testing.M) {
//	    if testutil.ShortMode() {
//	        os.Exit(m.Run())
//	    }
//	    ctx := context.Background()
//	    var err error
//	    suite, err = testutil.NewIntegrationSuite(ctx)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    code := m.Run()
//	    testutil.TerminateContainer(ctx)
//	    os.Exit(code)
//	}
func NewIntegrationSuite(ctx context.Context) (*IntegrationSuite, error) {
	container, db, err := getOrCreateContainer(ctx)
	if err != nil {
		return nil, err
	}

	log := logger.New("test", "test")
	wrappedDB := database.Wrap(db, log)

	if err := wrappedDB.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to migrate test database: %w", err)
	}

	return &IntegrationSuite{
		Container: container,
		RawDB:     db,
		DB:        wrappedDB,
		Fixtures:  NewFixtureFactory(),
		Logger:    log,
	}, nil
}

// getOrCreateContainer returns the shared test container
func getOrCreateContainer(ctx context.Context) (*PostgresContainer, *sqlx.DB, error) {
	containerOnce.Do(func() {
		globalContainer, containerErr = NewPostgresContainer(ctx, DefaultPostgresConfig())
		if containerErr != nil {
			return
		}
		globalDB, containerErr = globalContainer.Connect(ctx)
	})

	return globalContainer, globalDB, containerErr
}

// Reset empties every domain table. Call at the start of each test.
func (s *IntegrationSuite) Reset(t *testing.T) {
	t.Helper()
	query := "TRUNCATE " + strings.Join(domainTables, ", ") + " CASCADE"
	if _, err := s.RawDB.ExecContext(context.Background(), query); err != nil {
		t.Fatalf("failed to reset test database: %v", err)
	}
}

// TerminateContainer terminates the shared container.
// Only call this in TestMain after all tests have completed.
func TerminateContainer(ctx context.Context) {
	if globalContainer != nil {
		globalContainer.Terminate(ctx)
	}
}

// ShortMode parses the test flags and reports whether -short was passed.
// Use it in TestMain to skip starting containers.
func ShortMode() bool {
	if !flag.Parsed() {
		flag.Parse()
	}
	return testing.Short()
}
