package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yoozak/yoozak-backend/internal/catalog/repository"
	"github.com/yoozak/yoozak-backend/pkg/errors"
	"github.com/yoozak/yoozak-backend/pkg/money"
	"github.com/yoozak/yoozak-backend/pkg/testutil"
)

var articleCols = []string{
	"id", "reference", "name", "description", "category", "gender", "color", "phase",
	"base_price", "purchase_price", "current_price", "is_upsell",
	"upsell_price_2", "upsell_price_3", "upsell_price_4", "upsell_price_5",
	"total_stock", "low_stock_threshold", "is_active", "created_at", "updated_at",
}

func TestArticleRepository_LockForUpdateThenReprice(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	db := mockDB.NewDatabase()
	repo := repository.NewArticleRepository(db)
	now := time.Now()

	mockDB.ExpectBegin()
	mockDB.ExpectQuery(`FROM articles WHERE id = ANY($1) ORDER BY id FOR UPDATE`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(testutil.MockRows(articleCols...).
			AddRow("a1", "YZ-1", "Mule", "", "mules", "women", "noir", "active",
				20000, 9000, 20000, false, nil, nil, nil, nil, 8, 5, true, now, now))
	mockDB.ExpectExec(`UPDATE articles SET current_price = $2`).
		WithArgs("a1", int64(15000)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectCommit()

	err := db.Transaction(context.Background(), func(tx *sqlx.Tx) error {
		articles, err := repo.LockForUpdate(context.Background(), tx, []string{"a1"})
		if err != nil {
			return err
		}
		require.Len(t, articles, 1)
		assert.Equal(t, money.Money(20000), articles[0].BasePrice)
		assert.Nil(t, articles[0].UpsellPrice2)
		return repo.UpdateCurrentPrice(context.Background(), tx, "a1", 15000)
	})
	require.NoError(t, err)

	mockDB.ExpectationsWereMet(t)
}

func TestArticleRepository_GetByIDNotFound(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	repo := repository.NewArticleRepository(mockDB.NewDatabase())
	mockDB.ExpectQuery(`FROM articles WHERE id = $1`).
		WithArgs("missing").
		WillReturnRows(testutil.MockRows(articleCols...))

	_, err := repo.GetByID(context.Background(), "missing")
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	mockDB.ExpectationsWereMet(t)
}

func TestPromotionRepository_ForArticlesGroupsByArticle(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	db := mockDB.NewDatabase()
	repo := repository.NewPromotionRepository(db)
	now := time.Now()

	mockDB.ExpectQuery(`FROM promotion_articles pa`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(testutil.MockRows(
			"article_id", "id", "name", "description", "discount_percent", "starts_at", "ends_at",
			"is_active", "created_at", "updated_at",
		).
			AddRow("a1", "p1", "Soldes", "", 20.0, now, now.Add(time.Hour), true, now, now).
			AddRow("a1", "p2", "Flash", "", 30.0, now, now.Add(time.Hour), true, now, now).
			AddRow("a2", "p1", "Soldes", "", 20.0, now, now.Add(time.Hour), true, now, now))

	byArticle, err := repo.ForArticles(context.Background(), db, []string{"a1", "a2"})
	require.NoError(t, err)
	assert.Len(t, byArticle["a1"], 2)
	assert.Len(t, byArticle["a2"], 1)
	assert.Equal(t, 30.0, byArticle["a1"][1].DiscountPercent)

	mockDB.ExpectationsWereMet(t)
}
