package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/yoozak/yoozak-backend/internal/catalog/domain"
	"github.com/yoozak/yoozak-backend/pkg/database"
	"github.com/yoozak/yoozak-backend/pkg/errors"
)

const promotionColumns = `id, name, description, discount_percent, starts_at, ends_at, is_active, created_at, updated_at`

// PromotionRepository handles promotion persistence
type PromotionRepository struct {
	db *database.DB
}

// NewPromotionRepository creates a new promotion repository
func NewPromotionRepository(db *database.DB) *PromotionRepository {
	return &PromotionRepository{db: db}
}

// Create inserts a promotion
func (r *PromotionRepository) Create(ctx context.Context, tx database.Queryer, p *domain.Promotion) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}

	query := `
		INSERT INTO promotions (id, name, description, discount_percent, starts_at, ends_at, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`
	err := tx.QueryRowxContext(ctx, query,
		p.ID, p.Name, p.Description, p.DiscountPercent, p.StartsAt, p.EndsAt, p.IsActive,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	return database.Translate(err)
}

// GetByID gets a promotion with its attached article IDs
func (r *PromotionRepository) GetByID(ctx context.Context, q database.Queryer, id string) (*domain.Promotion, error) {
	var p domain.Promotion
	if err := q.GetContext(ctx, &p, `SELECT `+promotionColumns+` FROM promotions WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("promotion")
		}
		return nil, database.Translate(err)
	}

	ids, err := r.ArticleIDs(ctx, q, id)
	if err != nil {
		return nil, err
	}
	p.ArticleIDs = ids
	return &p, nil
}

// List returns promotions, most recent start first
func (r *PromotionRepository) List(ctx context.Context, f domain.PromotionFilter) ([]domain.Promotion, int64, error) {
	where := "1=1"
	args := []interface{}{}
	argNum := 1

	if f.ActiveOnly {
		where += " AND is_active = TRUE AND ends_at > NOW()"
	}
	if f.ArticleID != "" {
		where += fmt.Sprintf(" AND id IN (SELECT promotion_id FROM promotion_articles WHERE article_id = $%d)", argNum)
		args = append(args, f.ArticleID)
		argNum++
	}

	var total int64
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM promotions WHERE "+where, args...); err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	query := fmt.Sprintf(`SELECT %s FROM promotions WHERE %s ORDER BY starts_at DESC, id LIMIT $%d OFFSET $%d`,
		promotionColumns, where, argNum, argNum+1)
	args = append(args, limit, f.Offset)

	var promos []domain.Promotion
	if err := r.db.SelectContext(ctx, &promos, query, args...); err != nil {
		return nil, 0, err
	}

	for i := range promos {
		ids, err := r.ArticleIDs(ctx, r.db, promos[i].ID)
		if err != nil {
			return nil, 0, err
		}
		promos[i].ArticleIDs = ids
	}
	return promos, total, nil
}

// Update writes the editable promotion fields
func (r *PromotionRepository) Update(ctx context.Context, tx database.Queryer, p *domain.Promotion) error {
	query := `
		UPDATE promotions SET
			name = $2, description = $3, discount_percent = $4, starts_at = $5, ends_at = $6,
			is_active = $7, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	err := tx.QueryRowxContext(ctx, query,
		p.ID, p.Name, p.Description, p.DiscountPercent, p.StartsAt, p.EndsAt, p.IsActive,
	).Scan(&p.UpdatedAt)
	if err == sql.ErrNoRows {
		return errors.NotFound("promotion")
	}
	return database.Translate(err)
}

// SetActive toggles a promotion
func (r *PromotionRepository) SetActive(ctx context.Context, tx database.Queryer, id string, active bool) error {
	result, err := tx.ExecContext(ctx, `UPDATE promotions SET is_active = $2, updated_at = NOW() WHERE id = $1`, id, active)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return errors.NotFound("promotion")
	}
	return nil
}

// Delete removes a promotion; its article links cascade
func (r *PromotionRepository) Delete(ctx context.Context, tx database.Queryer, id string) error {
	result, err := tx.ExecContext(ctx, `DELETE FROM promotions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return errors.NotFound("promotion")
	}
	return nil
}

// AttachArticles links articles to a promotion, ignoring existing links
func (r *PromotionRepository) AttachArticles(ctx context.Context, tx database.Queryer, promotionID string, articleIDs []string) error {
	if len(articleIDs) == 0 {
		return nil
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO promotion_articles (promotion_id, article_id)
		SELECT $1, UNNEST($2::uuid[])
		ON CONFLICT DO NOTHING
	`, promotionID, pq.Array(articleIDs))
	return database.Translate(err)
}

// DetachArticles unlinks articles from a promotion
func (r *PromotionRepository) DetachArticles(ctx context.Context, tx database.Queryer, promotionID string, articleIDs []string) error {
	if len(articleIDs) == 0 {
		return nil
	}
	_, err := tx.ExecContext(ctx, `DELETE FROM promotion_articles WHERE promotion_id = $1 AND article_id = ANY($2)`,
		promotionID, pq.Array(articleIDs))
	return err
}

// ArticleIDs returns the articles attached to a promotion
func (r *PromotionRepository) ArticleIDs(ctx context.Context, q database.Queryer, promotionID string) ([]string, error) {
	ids := []string{}
	if err := q.SelectContext(ctx, &ids, `SELECT article_id FROM promotion_articles WHERE promotion_id = $1 ORDER BY article_id`, promotionID); err != nil {
		return nil, err
	}
	return ids, nil
}

// ForArticles returns every promotion attached to each of the given articles
func (r *PromotionRepository) ForArticles(ctx context.Context, q database.Queryer, articleIDs []string) (map[string][]domain.Promotion, error) {
	type row struct {
		ArticleID string `db:"article_id"`
		domain.Promotion
	}

	var rows []row
	query := `
		SELECT pa.article_id, p.id, p.name, p.description, p.discount_percent, p.starts_at, p.ends_at,
			p.is_active, p.created_at, p.updated_at
		FROM promotion_articles pa
		JOIN promotions p ON p.id = pa.promotion_id
		WHERE pa.article_id = ANY($1)
	`
	if err := q.SelectContext(ctx, &rows, query, pq.Array(articleIDs)); err != nil {
		return nil, err
	}

	out := make(map[string][]domain.Promotion, len(articleIDs))
	for _, r := range rows {
		out[r.ArticleID] = append(out[r.ArticleID], r.Promotion)
	}
	return out, nil
}

// Pending returns active promotions that have not ended yet
func (r *PromotionRepository) Pending(ctx context.Context, now time.Time) ([]domain.Promotion, error) {
	var promos []domain.Promotion
	query := `SELECT ` + promotionColumns + ` FROM promotions WHERE is_active AND ends_at > $1 ORDER BY starts_at`
	if err := r.db.SelectContext(ctx, &promos, query, now); err != nil {
		return nil, err
	}
	return promos, nil
}
