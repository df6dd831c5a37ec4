package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yoozak/yoozak-backend/internal/stock/domain"
	"github.com/yoozak/yoozak-backend/internal/stock/repository"
	"github.com/yoozak/yoozak-backend/pkg/testutil"
)

func TestMovementRepository_LockVariantsOrdersByID(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	db := mockDB.NewDatabase()
	repo := repository.NewMovementRepository(db)

	mockDB.ExpectBegin()
	mockDB.ExpectQuery(`SELECT id, article_id, quantity FROM variants WHERE id = ANY($1) ORDER BY id FOR UPDATE`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(testutil.MockRows("id", "article_id", "quantity").
			AddRow("v1", "a1", 4).
			AddRow("v2", "a1", 0))
	mockDB.ExpectCommit()

	var locked map[string]domain.LockedVariant
	err := db.Transaction(context.Background(), func(tx *sqlx.Tx) error {
		var err error
		locked, err = repo.LockVariants(context.Background(), tx, []string{"v1", "v2"})
		return err
	})
	require.NoError(t, err)
	assert.Len(t, locked, 2)
	assert.Equal(t, 4, locked["v1"].Quantity)
	assert.Equal(t, "a1", locked["v2"].ArticleID)

	mockDB.ExpectationsWereMet(t)
}

func TestMovementRepository_ApplyWritesVariantsMovementsAndTotals(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	db := mockDB.NewDatabase()
	repo := repository.NewMovementRepository(db)
	now := time.Now()

	movements := []domain.Movement{
		{ArticleID: "a1", VariantID: "v1", Type: domain.MovementOut, Quantity: 2, QuantityBefore: 4, QuantityAfter: 2, OperatorID: "op"},
		{ArticleID: "a1", VariantID: "v2", Type: domain.MovementOut, Quantity: 1, QuantityBefore: 1, QuantityAfter: 0, OperatorID: "op"},
	}

	mockDB.ExpectBegin()
	for _, m := range movements {
		mockDB.ExpectExec(`UPDATE variants SET quantity = $2`).
			WithArgs(m.VariantID, m.QuantityAfter).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mockDB.ExpectQuery(`INSERT INTO stock_movements`).
			WithArgs(testutil.AnyUUID{}, m.ArticleID, m.VariantID, m.Type, m.Quantity, m.QuantityBefore,
				m.QuantityAfter, m.Reason, sqlmock.AnyArg(), m.OperatorID, m.OperatorName).
			WillReturnRows(testutil.MockRows("created_at").AddRow(now))
	}
	mockDB.ExpectQuery(`FROM articles WHERE id = ANY($1) ORDER BY id FOR UPDATE`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(testutil.MockRows("id", "reference", "name", "low_stock_threshold", "total_before", "total_after").
			AddRow("a1", "YZ-1", "Mule", 3, 5, 5))
	mockDB.ExpectQuery(`UPDATE articles a SET`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(testutil.MockRows("id", "total_stock").AddRow("a1", 2))
	mockDB.ExpectCommit()

	var stocks []domain.ArticleStock
	err := db.Transaction(context.Background(), func(tx *sqlx.Tx) error {
		var err error
		stocks, err = repo.Apply(context.Background(), tx, movements)
		return err
	})
	require.NoError(t, err)

	require.Len(t, stocks, 1)
	assert.Equal(t, 5, stocks[0].TotalBefore)
	assert.Equal(t, 2, stocks[0].TotalAfter)
	assert.NotEmpty(t, movements[0].ID)
	assert.Equal(t, now, movements[1].CreatedAt)

	mockDB.ExpectationsWereMet(t)
}

func TestMovementRepository_ApplyRollsBackOnFailure(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	db := mockDB.NewDatabase()
	repo := repository.NewMovementRepository(db)

	movements := []domain.Movement{
		{ArticleID: "a1", VariantID: "v1", Type: domain.MovementIn, Quantity: 2, QuantityAfter: 2, OperatorID: "op"},
		{ArticleID: "a2", VariantID: "v2", Type: domain.MovementIn, Quantity: 1, QuantityAfter: 1, OperatorID: "op"},
	}

	mockDB.ExpectBegin()
	mockDB.ExpectExec(`UPDATE variants SET quantity = $2`).WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectQuery(`INSERT INTO stock_movements`).WillReturnRows(testutil.MockRows("created_at").AddRow(time.Now()))
	mockDB.ExpectExec(`UPDATE variants SET quantity = $2`).WillReturnError(errors.New("connection reset"))
	mockDB.ExpectRollback()

	err := db.Transaction(context.Background(), func(tx *sqlx.Tx) error {
		_, err := repo.Apply(context.Background(), tx, movements)
		return err
	})
	require.Error(t, err)

	mockDB.ExpectationsWereMet(t)
}

func TestMovementRepository_ListAppliesFilters(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	repo := repository.NewMovementRepository(mockDB.NewDatabase())
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	mockDB.ExpectQuery(`SELECT COUNT(*) FROM stock_movements m WHERE 1=1 AND m.article_id = $1 AND m.movement_type = $2 AND m.created_at >= $3`).
		WithArgs("a1", domain.MovementOut, from).
		WillReturnRows(testutil.MockRows("count").AddRow(1))
	mockDB.ExpectQuery(`ORDER BY m.created_at DESC, m.id LIMIT $4 OFFSET $5`).
		WithArgs("a1", domain.MovementOut, from, 10, 0).
		WillReturnRows(testutil.MockRows(
			"id", "article_id", "variant_id", "movement_type", "quantity", "quantity_before",
			"quantity_after", "reason", "order_id", "operator_id", "operator_name", "created_at",
			"reference", "size", "color",
		).AddRow("m1", "a1", "v1", "out", 1, 3, 2, "", nil, "op", "Sara", from, "YZ-1", "40", "noir"))

	movements, total, err := repo.List(context.Background(), domain.MovementFilter{
		ArticleID: "a1",
		Type:      domain.MovementOut,
		From:      &from,
		Limit:     10,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, movements, 1)
	assert.Equal(t, -1, movements[0].Delta())
	assert.Equal(t, "40", movements[0].Size)

	mockDB.ExpectationsWereMet(t)
}
