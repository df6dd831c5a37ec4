package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/yoozak/yoozak-backend/internal/operator/domain"
	"github.com/yoozak/yoozak-backend/pkg/database"
	"github.com/yoozak/yoozak-backend/pkg/errors"
)

const operatorColumns = `id, email, first_name, last_name, role, password_hash, is_active, created_at, updated_at`

// OperatorRepository handles operator persistence
type OperatorRepository struct {
	db *database.DB
}

// NewOperatorRepository creates a new operator repository
func NewOperatorRepository(db *database.DB) *OperatorRepository {
	return &OperatorRepository{db: db}
}

// Create inserts an operator
func (r *OperatorRepository) Create(ctx context.Context, o *domain.Operator) error {
	if o.ID == "" {
		o.ID = uuid.New().String()
	}

	query := `
		INSERT INTO operators (id, email, first_name, last_name, role, password_hash, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		o.ID, o.Email, o.FirstName, o.LastName, o.Role, o.PasswordHash, o.IsActive,
	).Scan(&o.CreatedAt, &o.UpdatedAt)
	return database.Translate(err)
}

// GetByID gets an operator by ID
func (r *OperatorRepository) GetByID(ctx context.Context, id string) (*domain.Operator, error) {
	var o domain.Operator
	err := r.db.GetContext(ctx, &o, `SELECT `+operatorColumns+` FROM operators WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("operator")
	}
	if err != nil {
		return nil, database.Translate(err)
	}
	return &o, nil
}

// GetByEmail gets an operator by email, case-insensitively
func (r *OperatorRepository) GetByEmail(ctx context.Context, email string) (*domain.Operator, error) {
	var o domain.Operator
	err := r.db.GetContext(ctx, &o, `SELECT `+operatorColumns+` FROM operators WHERE LOWER(email) = LOWER($1)`, email)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("operator")
	}
	if err != nil {
		return nil, database.Translate(err)
	}
	return &o, nil
}

// List returns a page of operators and the total count
func (r *OperatorRepository) List(ctx context.Context, f domain.Filter) ([]domain.Operator, int64, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	argNum := 1

	if f.Role != "" {
		where = append(where, fmt.Sprintf("role = $%d", argNum))
		args = append(args, f.Role)
		argNum++
	}
	if f.Active != nil {
		where = append(where, fmt.Sprintf("is_active = $%d", argNum))
		args = append(args, *f.Active)
		argNum++
	}
	if f.Search != "" {
		where = append(where, fmt.Sprintf(
			"(email ILIKE $%d OR first_name ILIKE $%d OR last_name ILIKE $%d)", argNum, argNum, argNum))
		args = append(args, "%"+f.Search+"%")
		argNum++
	}
	clause := strings.Join(where, " AND ")

	var total int64
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM operators WHERE `+clause, args...); err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`SELECT %s FROM operators WHERE %s ORDER BY last_name, first_name, id LIMIT $%d OFFSET $%d`,
		operatorColumns, clause, argNum, argNum+1)
	args = append(args, limit, f.Offset)

	operators := []domain.Operator{}
	if err := r.db.SelectContext(ctx, &operators, query, args...); err != nil {
		return nil, 0, err
	}
	return operators, total, nil
}

// Transaction runs fn inside a database transaction
func (r *OperatorRepository) Transaction(ctx context.Context, fn func(tx database.Queryer) error) error {
	return r.db.Transaction(ctx, func(tx *sqlx.Tx) error { return fn(tx) })
}

// Update writes the mutable fields of an operator
func (r *OperatorRepository) Update(ctx context.Context, q database.Queryer, o *domain.Operator) error {
	query := `
		UPDATE operators
		SET email = $2, first_name = $3, last_name = $4, role = $5, password_hash = $6, is_active = $7,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	err := q.QueryRowxContext(ctx, query,
		o.ID, o.Email, o.FirstName, o.LastName, o.Role, o.PasswordHash, o.IsActive,
	).Scan(&o.UpdatedAt)
	if err == sql.ErrNoRows {
		return errors.NotFound("operator")
	}
	return database.Translate(err)
}

// LockActiveAdmins locks every enabled admin row and returns their IDs.
// Concurrent demotions serialize on these locks.
func (r *OperatorRepository) LockActiveAdmins(ctx context.Context, q database.Queryer) ([]string, error) {
	ids := []string{}
	err := q.SelectContext(ctx, &ids,
		`SELECT id FROM operators WHERE role = 'admin' AND is_active ORDER BY id FOR UPDATE`)
	return ids, database.Translate(err)
}
