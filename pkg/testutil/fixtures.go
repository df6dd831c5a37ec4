package testutil

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"
)

// DefaultPassword is the clear-text password of operator fixtures
const DefaultPassword = "password123"

// OperatorFixture represents test operator data
type OperatorFixture struct {
	ID           string
	Email        string
	Password     string
	PasswordHash string
	FirstName    string
	LastName     string
	Role         string
	IsActive     bool
}

// ArticleFixture represents test article data. Prices are in centimes.
type ArticleFixture struct {
	ID                string
	Reference         string
	Name              string
	Category          string
	Phase             string
	BasePrice         int64
	PurchasePrice     int64
	CurrentPrice      int64
	IsUpsell          bool
	UpsellPrice2      *int64
	LowStockThreshold int
}

// VariantFixture represents test variant data
type VariantFixture struct {
	ID        string
	ArticleID string
	Size      string
	Color     string
	Quantity  int
}

// PromotionFixture represents test promotion data
type PromotionFixture struct {
	ID              string
	Name            string
	DiscountPercent float64
	StartsAt        time.Time
	EndsAt          time.Time
	IsActive        bool
	ArticleIDs      []string
}

// FixtureFactory creates test fixtures with sensible defaults
type FixtureFactory struct {
	sequence int
}

// NewFixtureFactory creates a new fixture factory
func NewFixtureFactory() *FixtureFactory {
	return &FixtureFactory{sequence: 0}
}

// nextSeq returns the next sequence number for unique values
func (f *FixtureFactory) nextSeq() int {
	f.sequence++
	return f.sequence
}

// Operator creates an operator fixture with defaults
func (f *FixtureFactory) Operator(opts ...func(*OperatorFixture)) OperatorFixture {
	seq := f.nextSeq()

	op := OperatorFixture{
		ID:        uuid.New().String(),
		Email:     fmt.Sprintf("operator%d@test.yoozak.ma", seq),
		Password:  DefaultPassword,
		FirstName: fmt.Sprintf("Test%d", seq),
		LastName:  "Operator",
		Role:      "admin",
		IsActive:  true,
	}

	for _, opt := range opts {
		opt(&op)
	}

	if op.PasswordHash == "" {
		hash, _ := bcrypt.GenerateFromPassword([]byte(op.Password), bcrypt.MinCost)
		op.PasswordHash = string(hash)
	}
	return op
}

// WithRole sets the operator role
func WithRole(role string) func(*OperatorFixture) {
	return func(o *OperatorFixture) {
		o.Role = role
	}
}

// WithEmail sets the operator email
func WithEmail(email string) func(*OperatorFixture) {
	return func(o *OperatorFixture) {
		o.Email = email
	}
}

// WithPassword sets the operator's clear-text password
func WithPassword(password string) func(*OperatorFixture) {
	return func(o *OperatorFixture) {
		o.Password = password
		o.PasswordHash = ""
	}
}

// Inactive marks the operator as disabled
func Inactive() func(*OperatorFixture) {
	return func(o *OperatorFixture) {
		o.IsActive = false
	}
}

// Article creates an article fixture with defaults
func (f *FixtureFactory) Article(opts ...func(*ArticleFixture)) ArticleFixture {
	seq := f.nextSeq()

	a := ArticleFixture{
		ID:                uuid.New().String(),
		Reference:         fmt.Sprintf("YZ-%04d", seq),
		Name:              fmt.Sprintf("Sandale %d", seq),
		Category:          "sandales",
		Phase:             "active",
		BasePrice:         29900,
		PurchasePrice:     12000,
		LowStockThreshold: 5,
	}

	for _, opt := range opts {
		opt(&a)
	}
	if a.CurrentPrice == 0 {
		a.CurrentPrice = a.BasePrice
	}
	return a
}

// WithReference sets the article reference
func WithReference(ref string) func(*ArticleFixture) {
	return func(a *ArticleFixture) {
		a.Reference = ref
	}
}

// WithBasePrice sets the base price in centimes
func WithBasePrice(price int64) func(*ArticleFixture) {
	return func(a *ArticleFixture) {
		a.BasePrice = price
	}
}

// WithPhase sets the article phase
func WithPhase(phase string) func(*ArticleFixture) {
	return func(a *ArticleFixture) {
		a.Phase = phase
	}
}

// WithThreshold sets the low-stock threshold
func WithThreshold(n int) func(*ArticleFixture) {
	return func(a *ArticleFixture) {
		a.LowStockThreshold = n
	}
}

// WithUpsell makes the article an upsell article with a two-piece price
func WithUpsell(pricePair int64) func(*ArticleFixture) {
	return func(a *ArticleFixture) {
		a.IsUpsell = true
		a.UpsellPrice2 = &pricePair
	}
}

// Variant creates a variant fixture for an article
func (f *FixtureFactory) Variant(articleID string, opts ...func(*VariantFixture)) VariantFixture {
	seq := f.nextSeq()

	v := VariantFixture{
		ID:        uuid.New().String(),
		ArticleID: articleID,
		Size:      fmt.Sprintf("%d", 36+seq%10),
		Color:     fmt.Sprintf("color-%d", seq),
		Quantity:  10,
	}

	for _, opt := range opts {
		opt(&v)
	}
	return v
}

// WithQuantity sets the variant's initial stock
func WithQuantity(q int) func(*VariantFixture) {
	return func(v *VariantFixture) {
		v.Quantity = q
	}
}

// WithSize sets the variant size
func WithSize(size string) func(*VariantFixture) {
	return func(v *VariantFixture) {
		v.Size = size
	}
}

// Promotion creates a promotion fixture running from one hour ago to one day from now
func (f *FixtureFactory) Promotion(opts ...func(*PromotionFixture)) PromotionFixture {
	seq := f.nextSeq()
	now := time.Now().UTC().Truncate(time.Second)

	p := PromotionFixture{
		ID:              uuid.New().String(),
		Name:            fmt.Sprintf("Promo %d", seq),
		DiscountPercent: 20,
		StartsAt:        now.Add(-time.Hour),
		EndsAt:          now.Add(24 * time.Hour),
		IsActive:        true,
	}

	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// WithDiscount sets the discount percentage
func WithDiscount(pct float64) func(*PromotionFixture) {
	return func(p *PromotionFixture) {
		p.DiscountPercent = pct
	}
}

// WithWindow sets the promotion window
func WithWindow(start, end time.Time) func(*PromotionFixture) {
	return func(p *PromotionFixture) {
		p.StartsAt = start
		p.EndsAt = end
	}
}

// ForArticles attaches the promotion to articles
func ForArticles(ids ...string) func(*PromotionFixture) {
	return func(p *PromotionFixture) {
		p.ArticleIDs = ids
	}
}

// InsertOperator writes an operator fixture
func InsertOperator(ctx context.Context, db sqlx.ExecerContext, o OperatorFixture) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO operators (id, email, first_name, last_name, role, password_hash, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, o.ID, o.Email, o.FirstName, o.LastName, o.Role, o.PasswordHash, o.IsActive)
	return err
}

// InsertArticle writes an article fixture
func InsertArticle(ctx context.Context, db sqlx.ExecerContext, a ArticleFixture) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO articles (id, reference, name, category, phase, base_price, purchase_price, current_price,
			is_upsell, upsell_price_2, low_stock_threshold)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, a.ID, a.Reference, a.Name, a.Category, a.Phase, a.BasePrice, a.PurchasePrice, a.CurrentPrice,
		a.IsUpsell, a.UpsellPrice2, a.LowStockThreshold)
	return err
}

// InsertVariant writes a variant fixture and refreshes the article's total stock
func InsertVariant(ctx context.Context, db sqlx.ExecerContext, v VariantFixture) error {
	if _, err := db.ExecContext(ctx, `
		INSERT INTO variants (id, article_id, size, color, quantity) VALUES ($1, $2, $3, $4, $5)
	`, v.ID, v.ArticleID, v.Size, v.Color, v.Quantity); err != nil {
		return err
	}
	_, err := db.ExecContext(ctx, `
		UPDATE articles SET total_stock = (SELECT COALESCE(SUM(quantity), 0) FROM variants WHERE article_id = $1)
		WHERE id = $1
	`, v.ArticleID)
	return err
}

// InsertPromotion writes a promotion fixture and its article links.
// Current prices are not recomputed.
func InsertPromotion(ctx context.Context, db sqlx.ExecerContext, p PromotionFixture) error {
	if _, err := db.ExecContext(ctx, `
		INSERT INTO promotions (id, name, discount_percent, starts_at, ends_at, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, p.ID, p.Name, p.DiscountPercent, p.StartsAt, p.EndsAt, p.IsActive); err != nil {
		return err
	}
	for _, articleID := range p.ArticleIDs {
		if _, err := db.ExecContext(ctx, `INSERT INTO promotion_articles (promotion_id, article_id) VALUES ($1, $2)`,
			p.ID, articleID); err != nil {
			return err
		}
	}
	return nil
}

// SeedArticle inserts an article with one variant per given quantity
func (s *IntegrationSuite) SeedArticle(t interface {
	Helper()
	Fatalf(string, ...interface{})
}, ctx context.Context, articleOpts []func(*ArticleFixture), quantities ...int) (ArticleFixture, []VariantFixture) {
	t.Helper()

	a := s.Fixtures.Article(articleOpts...)
	if err := InsertArticle(ctx, s.RawDB, a); err != nil {
		t.Fatalf("failed to insert article: %v", err)
	}

	variants := make([]VariantFixture, 0, len(quantities))
	for _, q := range quantities {
		v := s.Fixtures.Variant(a.ID, WithQuantity(q))
		if err := InsertVariant(ctx, s.RawDB, v); err != nil {
			t.Fatalf("failed to insert variant: %v", err)
		}
		variants = append(variants, v)
	}
	return a, variants
}

// SeedOperator inserts an operator with the given role
func (s *IntegrationSuite) SeedOperator(t interface {
	Helper()
	Fatalf(string, ...interface{})
}, ctx context.Context, opts ...func(*OperatorFixture)) OperatorFixture {
	t.Helper()
	o := s.Fixtures.Operator(opts...)
	if err := InsertOperator(ctx, s.RawDB, o); err != nil {
		t.Fatalf("failed to insert operator: %v", err)
	}
	return o
}

// OrderLineFixture is one line of an order fixture
type OrderLineFixture struct {
	ArticleID string
	VariantID string
	Quantity  int
	UnitPrice int64
}

// OrderFixture represents test order data written directly to the tables,
// bypassing the workflow and stock movements.
type OrderFixture struct {
	ID                     string
	Number                 string
	CustomerName           string
	Phone                  string
	City                   string
	Status                 string
	ShippingFee            int64
	ConfirmationOperatorID *string
	CreatedAt              time.Time
	Lines                  []OrderLineFixture
}

// Total is the shipping fee plus every line total
func (o OrderFixture) Total() int64 {
	total := o.ShippingFee
	for _, l := range o.Lines {
		total += l.UnitPrice * int64(l.Quantity)
	}
	return total
}

// Order creates an order fixture with defaults
func (f *FixtureFactory) Order(opts ...func(*OrderFixture)) OrderFixture {
	seq := f.nextSeq()

	o := OrderFixture{
		ID:           uuid.New().String(),
		Number:       fmt.Sprintf("YZT%06d", seq),
		CustomerName: fmt.Sprintf("Client %d", seq),
		Phone:        fmt.Sprintf("06%08d", seq),
		City:         "Casablanca",
		Status:       "unassigned",
		CreatedAt:    time.Now(),
	}

	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithStatus sets the order status
func WithStatus(status string) func(*OrderFixture) {
	return func(o *OrderFixture) {
		o.Status = status
	}
}

// AssignedTo sets the confirmation operator
func AssignedTo(operatorID string) func(*OrderFixture) {
	return func(o *OrderFixture) {
		o.ConfirmationOperatorID = &operatorID
	}
}

// CreatedAt backdates the order
func CreatedAt(t time.Time) func(*OrderFixture) {
	return func(o *OrderFixture) {
		o.CreatedAt = t
	}
}

// WithLine adds a line to the order
func WithLine(articleID, variantID string, qty int, unitPrice int64) func(*OrderFixture) {
	return func(o *OrderFixture) {
		o.Lines = append(o.Lines, OrderLineFixture{ArticleID: articleID, VariantID: variantID, Quantity: qty, UnitPrice: unitPrice})
	}
}

// InsertOrder writes an order fixture and its lines
func InsertOrder(ctx context.Context, db sqlx.ExecerContext, o OrderFixture) error {
	if _, err := db.ExecContext(ctx, `
		INSERT INTO orders (id, number, customer_name, phone, city, status, shipping_fee, total,
			confirmation_operator_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
	`, o.ID, o.Number, o.CustomerName, o.Phone, o.City, o.Status, o.ShippingFee, o.Total(),
		o.ConfirmationOperatorID, o.CreatedAt); err != nil {
		return err
	}
	for _, l := range o.Lines {
		if _, err := db.ExecContext(ctx, `
			INSERT INTO order_lines (id, order_id, article_id, variant_id, quantity, unit_price, line_total)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, uuid.New().String(), o.ID, l.ArticleID, l.VariantID, l.Quantity, l.UnitPrice, l.UnitPrice*int64(l.Quantity)); err != nil {
			return err
		}
	}
	return nil
}

// SeedOrder inserts an order fixture
func (s *IntegrationSuite) SeedOrder(t interface {
	Helper()
	Fatalf(string, ...interface{})
}, ctx context.Context, opts ...func(*OrderFixture)) OrderFixture {
	t.Helper()
	o := s.Fixtures.Order(opts...)
	if err := InsertOrder(ctx, s.RawDB, o); err != nil {
		t.Fatalf("failed to insert order: %v", err)
	}
	return o
}
