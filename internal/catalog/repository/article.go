package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/yoozak/yoozak-backend/internal/catalog/domain"
	"github.com/yoozak/yoozak-backend/pkg/database"
	"github.com/yoozak/yoozak-backend/pkg/errors"
	"github.com/yoozak/yoozak-backend/pkg/money"
)

const articleColumns = `id, reference, name, description, category, gender, color, phase,
	base_price, purchase_price, current_price, is_upsell,
	upsell_price_2, upsell_price_3, upsell_price_4, upsell_price_5,
	total_stock, low_stock_threshold, is_active, created_at, updated_at`

// ArticleRepository handles article persistence
type ArticleRepository struct {
	db *database.DB
}

// NewArticleRepository creates a new article repository
func NewArticleRepository(db *database.DB) *ArticleRepository {
	return &ArticleRepository{db: db}
}

// Create inserts an article. CurrentPrice must already be resolved.
func (r *ArticleRepository) Create(ctx context.Context, q database.Queryer, a *domain.Article) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}

	query := `
		INSERT INTO articles (
			id, reference, name, description, category, gender, color, phase,
			base_price, purchase_price, current_price, is_upsell,
			upsell_price_2, upsell_price_3, upsell_price_4, upsell_price_5,
			low_stock_threshold, is_active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		RETURNING total_stock, created_at, updated_at
	`

	err := q.QueryRowxContext(ctx, query,
		a.ID, a.Reference, a.Name, a.Description, a.Category, a.Gender, a.Color, a.Phase,
		a.BasePrice, a.PurchasePrice, a.CurrentPrice, a.IsUpsell,
		a.UpsellPrice2, a.UpsellPrice3, a.UpsellPrice4, a.UpsellPrice5,
		a.LowStockThreshold, a.IsActive,
	).Scan(&a.TotalStock, &a.CreatedAt, &a.UpdatedAt)
	return database.Translate(err)
}

// GetByID gets an article by ID
func (r *ArticleRepository) GetByID(ctx context.Context, id string) (*domain.Article, error) {
	var a domain.Article
	query := `SELECT ` + articleColumns + ` FROM articles WHERE id = $1`

	if err := r.db.GetContext(ctx, &a, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("article")
		}
		return nil, database.Translate(err)
	}
	return &a, nil
}

// GetByReference gets an article by its catalog reference
func (r *ArticleRepository) GetByReference(ctx context.Context, reference string) (*domain.Article, error) {
	var a domain.Article
	query := `SELECT ` + articleColumns + ` FROM articles WHERE reference = $1`

	if err := r.db.GetContext(ctx, &a, query, reference); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("article")
		}
		return nil, database.Translate(err)
	}
	return &a, nil
}

// GetByIDs loads several articles keyed by ID
func (r *ArticleRepository) GetByIDs(ctx context.Context, q database.Queryer, ids []string) (map[string]*domain.Article, error) {
	var rows []domain.Article
	query := `SELECT ` + articleColumns + ` FROM articles WHERE id = ANY($1)`
	if err := q.SelectContext(ctx, &rows, query, pq.Array(ids)); err != nil {
		return nil, err
	}

	out := make(map[string]*domain.Article, len(rows))
	for i := range rows {
		out[rows[i].ID] = &rows[i]
	}
	return out, nil
}

// List returns a page of articles and the total matching count
func (r *ArticleRepository) List(ctx context.Context, f domain.ArticleFilter) ([]domain.Article, int64, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	argNum := 1

	if !f.IncludeInactive {
		where = append(where, "is_active = TRUE")
	}
	if f.Search != "" {
		where = append(where, fmt.Sprintf("(reference ILIKE $%d OR name ILIKE $%d)", argNum, argNum))
		args = append(args, "%"+f.Search+"%")
		argNum++
	}
	if f.Category != "" {
		where = append(where, fmt.Sprintf("category = $%d", argNum))
		args = append(args, f.Category)
		argNum++
	}
	if f.Phase != "" {
		where = append(where, fmt.Sprintf("phase = $%d", argNum))
		args = append(args, f.Phase)
		argNum++
	}
	if f.LowStockOnly {
		where = append(where, "total_stock <= low_stock_threshold")
	}

	whereClause := strings.Join(where, " AND ")

	var total int64
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM articles WHERE "+whereClause, args...); err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}

	query := fmt.Sprintf(`SELECT %s FROM articles WHERE %s ORDER BY reference LIMIT $%d OFFSET $%d`,
		articleColumns, whereClause, argNum, argNum+1)
	args = append(args, limit, f.Offset)

	var articles []domain.Article
	if err := r.db.SelectContext(ctx, &articles, query, args...); err != nil {
		return nil, 0, err
	}
	return articles, total, nil
}

// Update writes the editable article fields
func (r *ArticleRepository) Update(ctx context.Context, q database.Queryer, a *domain.Article) error {
	query := `
		UPDATE articles SET
			name = $2, description = $3, category = $4, gender = $5, color = $6, phase = $7,
			base_price = $8, purchase_price = $9, current_price = $10, is_upsell = $11,
			upsell_price_2 = $12, upsell_price_3 = $13, upsell_price_4 = $14, upsell_price_5 = $15,
			low_stock_threshold = $16, is_active = $17, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	err := q.QueryRowxContext(ctx, query,
		a.ID, a.Name, a.Description, a.Category, a.Gender, a.Color, a.Phase,
		a.BasePrice, a.PurchasePrice, a.CurrentPrice, a.IsUpsell,
		a.UpsellPrice2, a.UpsellPrice3, a.UpsellPrice4, a.UpsellPrice5,
		a.LowStockThreshold, a.IsActive,
	).Scan(&a.UpdatedAt)
	if err == sql.ErrNoRows {
		return errors.NotFound("article")
	}
	return database.Translate(err)
}

// SoftDelete deactivates an article
func (r *ArticleRepository) SoftDelete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE articles SET is_active = FALSE, updated_at = NOW() WHERE id = $1 AND is_active`, id)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return errors.NotFound("article")
	}
	return nil
}

// LockForUpdate locks the given articles in ascending ID order and returns them.
// Must run inside a transaction.
func (r *ArticleRepository) LockForUpdate(ctx context.Context, tx database.Queryer, ids []string) ([]domain.Article, error) {
	var articles []domain.Article
	query := `SELECT ` + articleColumns + ` FROM articles WHERE id = ANY($1) ORDER BY id FOR UPDATE`
	if err := tx.SelectContext(ctx, &articles, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("failed to lock articles: %w", err)
	}
	return articles, nil
}

// UpdateCurrentPrice writes a recomputed price
func (r *ArticleRepository) UpdateCurrentPrice(ctx context.Context, tx database.Queryer, id string, price money.Money) error {
	_, err := tx.ExecContext(ctx, `UPDATE articles SET current_price = $2, updated_at = NOW() WHERE id = $1`, id, price)
	return err
}

// ListPricedIDs returns active articles that have at least one promotion attached
// or whose current price differs from the base price.
func (r *ArticleRepository) ListPricedIDs(ctx context.Context) ([]string, error) {
	var ids []string
	query := `
		SELECT a.id FROM articles a
		WHERE a.is_active AND (
			a.current_price <> a.base_price
			OR EXISTS (SELECT 1 FROM promotion_articles pa WHERE pa.article_id = a.id)
		)
		ORDER BY a.id
	`
	if err := r.db.SelectContext(ctx, &ids, query); err != nil {
		return nil, err
	}
	return ids, nil
}
