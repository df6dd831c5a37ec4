package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/yoozak/yoozak-backend/internal/stock/domain"
	"github.com/yoozak/yoozak-backend/pkg/database"
)

// LevelRepository reads current stock levels per article and variant
type LevelRepository struct {
	db *database.DB
}

// NewLevelRepository creates a new level repository
func NewLevelRepository(db *database.DB) *LevelRepository {
	return &LevelRepository{db: db}
}

// List returns a page of active articles with their variant quantities.
// A zero Limit returns every matching article.
func (r *LevelRepository) List(ctx context.Context, f domain.LevelFilter) ([]domain.ArticleLevel, int64, error) {
	where := []string{"is_active = TRUE"}
	args := []interface{}{}
	argNum := 1

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
	if f.LowStockOnly {
		where = append(where, "total_stock <= low_stock_threshold")
	}

	whereClause := strings.Join(where, " AND ")

	var total int64
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM articles WHERE "+whereClause, args...); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT id AS article_id, reference, name, category, total_stock, low_stock_threshold,
			total_stock <= low_stock_threshold AS low_stock
		FROM articles WHERE ` + whereClause + ` ORDER BY reference`
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argNum, argNum+1)
		args = append(args, f.Limit, f.Offset)
	}

	var levels []domain.ArticleLevel
	if err := r.db.SelectContext(ctx, &levels, query, args...); err != nil {
		return nil, 0, err
	}
	if len(levels) == 0 {
		return levels, total, nil
	}

	ids := make([]string, len(levels))
	index := make(map[string]int, len(levels))
	for i := range levels {
		ids[i] = levels[i].ArticleID
		index[levels[i].ArticleID] = i
		levels[i].Variants = []domain.VariantLevel{}
	}

	var variants []struct {
		ArticleID string `db:"article_id"`
		domain.VariantLevel
	}
	vq := `
		SELECT article_id, id AS variant_id, size, color, barcode, quantity
		FROM variants WHERE article_id = ANY($1) ORDER BY size, color
	`
	if err := r.db.SelectContext(ctx, &variants, vq, pq.Array(ids)); err != nil {
		return nil, 0, err
	}
	for _, v := range variants {
		i := index[v.ArticleID]
		levels[i].Variants = append(levels[i].Variants, v.VariantLevel)
	}

	return levels, total, nil
}
