package testutil

import (
	"context"
	"database/sql/driver"
	"regexp"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/yoozak/yoozak-backend/pkg/database"
	"github.com/yoozak/yoozak-backend/pkg/logger"
)

// MockDB pairs a sqlx handle with its sqlmock controller. Queries passed to
// the Expect helpers are matched literally.
type MockDB struct {
	DB   *sqlx.DB
	Mock sqlmock.Sqlmock
}

// NewMockDB creates a mock database for repository unit tests. The handle is
// closed when the test ends.
//
//	mockDB := testutil.NewMockDB(t)
//	mockDB.ExpectQuery("SELECT id FROM variants").WillReturnRows(testutil.MockRows("id").AddRow(id))
//	repo := repository.NewVariantRepository(mockDB.NewDatabase())
func NewMockDB(t *testing.T) *MockDB {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}

	m := &MockDB{DB: sqlx.NewDb(db, "postgres"), Mock: mock}
	t.Cleanup(func() { _ = m.Close() })
	return m
}

// Close closes the mock database connection
func (m *MockDB) Close() error {
	return m.DB.Close()
}

// NewDatabase wraps the mock in a database.DB so repositories and
// transactions can run against it
func (m *MockDB) NewDatabase() *database.DB {
	return database.Wrap(m.DB, logger.Nop())
}

func (m *MockDB) ExpectQuery(query string) *sqlmock.ExpectedQuery {
	return m.Mock.ExpectQuery(regexp.QuoteMeta(query))
}

func (m *MockDB) ExpectExec(query string) *sqlmock.ExpectedExec {
	return m.Mock.ExpectExec(regexp.QuoteMeta(query))
}

func (m *MockDB) ExpectBegin() *sqlmock.ExpectedBegin {
	return m.Mock.ExpectBegin()
}

func (m *MockDB) ExpectCommit() *sqlmock.ExpectedCommit {
	return m.Mock.ExpectCommit()
}

func (m *MockDB) ExpectRollback() *sqlmock.ExpectedRollback {
	return m.Mock.ExpectRollback()
}

// ExpectationsWereMet fails the test on unfulfilled expectations
func (m *MockDB) ExpectationsWereMet(t *testing.T) {
	t.Helper()
	if err := m.Mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled mock expectations: %v", err)
	}
}

// MockRows creates a new mock rows object
func MockRows(columns ...string) *sqlmock.Rows {
	return sqlmock.NewRows(columns)
}

// AnyUUID matches any argument that parses as a UUID
type AnyUUID struct{}

// Match satisfies the sqlmock.Argument interface
func (AnyUUID) Match(v driver.Value) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}

// MockPublisher records published events. It satisfies
// messaging.EventPublisher.
type MockPublisher struct {
	mu              sync.Mutex
	PublishedEvents []PublishedEvent
	// Err is returned by Publish when set
	Err error
}

// PublishedEvent is one recorded Publish call
type PublishedEvent struct {
	Type    string
	Payload interface{}
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

// Publish records an event unless Err is set
func (m *MockPublisher) Publish(ctx context.Context, eventType string, payload interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.PublishedEvents = append(m.PublishedEvents, PublishedEvent{Type: eventType, Payload: payload})
	return nil
}

// AssertEventPublished fails the test unless eventType was published
func (m *MockPublisher) AssertEventPublished(t *testing.T, eventType string) {
	t.Helper()
	if len(m.EventsOfType(eventType)) == 0 {
		t.Errorf("expected event %q to be published, but it wasn't", eventType)
	}
}

// AssertNoEventsPublished fails the test if anything was published
func (m *MockPublisher) AssertNoEventsPublished(t *testing.T) {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.PublishedEvents) > 0 {
		t.Errorf("expected no events, but got %d: %+v", len(m.PublishedEvents), m.PublishedEvents)
	}
}

// EventsOfType returns the payloads published under eventType
func (m *MockPublisher) EventsOfType(eventType string) []interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []interface{}
	for _, e := range m.PublishedEvents {
		if e.Type == eventType {
			out = append(out, e.Payload)
		}
	}
	return out
}

// Reset clears all published events
func (m *MockPublisher) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PublishedEvents = nil
}
