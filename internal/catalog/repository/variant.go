package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/yoozak/yoozak-backend/internal/catalog/domain"
	"github.com/yoozak/yoozak-backend/pkg/database"
	"github.com/yoozak/yoozak-backend/pkg/errors"
)

const variantColumns = `id, article_id, size, color, barcode, quantity, created_at, updated_at`

// VariantRepository handles variant persistence
type VariantRepository struct {
	db *database.DB
}

// NewVariantRepository creates a new variant repository
func NewVariantRepository(db *database.DB) *VariantRepository {
	return &VariantRepository{db: db}
}

// Create inserts a variant with zero stock; stock only enters through movements.
func (r *VariantRepository) Create(ctx context.Context, v *domain.Variant) error {
	if v.ID == "" {
		v.ID = uuid.New().String()
	}

	query := `
		INSERT INTO variants (id, article_id, size, color, barcode, quantity)
		VALUES ($1, $2, $3, $4, $5, 0)
		RETURNING quantity, created_at, updated_at
	`
	err := r.db.QueryRowxContext(ctx, query, v.ID, v.ArticleID, v.Size, v.Color, v.Barcode).
		Scan(&v.Quantity, &v.CreatedAt, &v.UpdatedAt)
	return database.Translate(err)
}

// GetByID gets a variant by ID
func (r *VariantRepository) GetByID(ctx context.Context, id string) (*domain.Variant, error) {
	var v domain.Variant
	if err := r.db.GetContext(ctx, &v, `SELECT `+variantColumns+` FROM variants WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("variant")
		}
		return nil, database.Translate(err)
	}
	return &v, nil
}

// ListByArticle returns the variants of an article ordered by size then color
func (r *VariantRepository) ListByArticle(ctx context.Context, articleID string) ([]domain.Variant, error) {
	var variants []domain.Variant
	query := `SELECT ` + variantColumns + ` FROM variants WHERE article_id = $1 ORDER BY size, color`
	if err := r.db.SelectContext(ctx, &variants, query, articleID); err != nil {
		return nil, err
	}
	return variants, nil
}

// GetByIDs loads several variants keyed by ID
func (r *VariantRepository) GetByIDs(ctx context.Context, q database.Queryer, ids []string) (map[string]*domain.Variant, error) {
	var rows []domain.Variant
	if err := q.SelectContext(ctx, &rows, `SELECT `+variantColumns+` FROM variants WHERE id = ANY($1)`, pq.Array(ids)); err != nil {
		return nil, err
	}

	out := make(map[string]*domain.Variant, len(rows))
	for i := range rows {
		out[rows[i].ID] = &rows[i]
	}
	return out, nil
}

// FindByAttributes resolves a variant from its article reference, size and color
func (r *VariantRepository) FindByAttributes(ctx context.Context, reference, size, color string) (*domain.Variant, error) {
	var v domain.Variant
	query := `
		SELECT v.id, v.article_id, v.size, v.color, v.barcode, v.quantity, v.created_at, v.updated_at
		FROM variants v
		JOIN articles a ON a.id = v.article_id
		WHERE a.reference = $1 AND v.size = $2 AND ($3 = '' OR LOWER(v.color) = LOWER($3))
		ORDER BY v.color
		LIMIT 1
	`
	if err := r.db.GetContext(ctx, &v, query, reference, size, color); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("variant")
		}
		return nil, database.Translate(err)
	}
	return &v, nil
}

// FindByBarcode resolves a variant from its barcode
func (r *VariantRepository) FindByBarcode(ctx context.Context, barcode string) (*domain.Variant, error) {
	var v domain.Variant
	if err := r.db.GetContext(ctx, &v, `SELECT `+variantColumns+` FROM variants WHERE barcode = $1`, barcode); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("variant")
		}
		return nil, database.Translate(err)
	}
	return &v, nil
}

// Delete removes a variant that holds no stock and has never moved
func (r *VariantRepository) Delete(ctx context.Context, id string) error {
	v, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if v.Quantity != 0 {
		return errors.Conflict("variant still holds stock")
	}

	result, err := r.db.ExecContext(ctx, `
		DELETE FROM variants
		WHERE id = $1 AND quantity = 0
		AND NOT EXISTS (SELECT 1 FROM stock_movements WHERE variant_id = $1)
		AND NOT EXISTS (SELECT 1 FROM order_lines WHERE variant_id = $1)
	`, id)
	if err != nil {
		return database.Translate(err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return errors.Conflict("variant has stock history and cannot be deleted")
	}
	return nil
}
