package domain

import (
	"time"

	"github.com/yoozak/yoozak-backend/pkg/permissions"
)

// Operator is a back-office account
type Operator struct {
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	FirstName    string    `db:"first_name" json:"first_name"`
	LastName     string    `db:"last_name" json:"last_name"`
	Role         string    `db:"role" json:"role"`
	PasswordHash string    `db:"password_hash" json:"-"`
	IsActive     bool      `db:"is_active" json:"is_active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Permissions returns the permissions granted by the operator's role
func (o *Operator) Permissions() []string {
	return permissions.ForRole(o.Role)
}

// Filter narrows operator listings
type Filter struct {
	Role   string
	Active *bool
	Search string
	Limit  int
	Offset int
}
