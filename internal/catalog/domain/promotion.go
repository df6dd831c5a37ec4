package domain

import "time"

// Promotion is a time-bounded percentage discount on a set of articles
type Promotion struct {
	ID              string    `db:"id" json:"id"`
	Name            string    `db:"name" json:"name"`
	Description     string    `db:"description" json:"description"`
	DiscountPercent float64   `db:"discount_percent" json:"discount_percent"`
	StartsAt        time.Time `db:"starts_at" json:"starts_at"`
	EndsAt          time.Time `db:"ends_at" json:"ends_at"`
	IsActive        bool      `db:"is_active" json:"is_active"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`

	ArticleIDs []string `db:"-" json:"article_ids"`
}

// AppliesAt reports whether the promotion is in force at t.
// The window is half-open: StartsAt <= t < EndsAt.
func (p *Promotion) AppliesAt(t time.Time) bool {
	return p.IsActive && !t.Before(p.StartsAt) && t.Before(p.EndsAt)
}

// Status describes where the promotion sits relative to now
func (p *Promotion) Status(now time.Time) string {
	switch {
	case !p.IsActive:
		return "inactive"
	case now.Before(p.StartsAt):
		return "scheduled"
	case now.Before(p.EndsAt):
		return "running"
	default:
		return "ended"
	}
}

// PromotionFilter narrows promotion listings
type PromotionFilter struct {
	ActiveOnly bool
	ArticleID  string
	Limit      int
	Offset     int
}
