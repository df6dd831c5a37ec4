package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	// Catalog events
	EventArticleCreated   = "catalog.article.created"
	EventPriceChanged     = "catalog.price.changed"
	EventPromotionChanged = "catalog.promotion.changed"

	// Stock events
	EventStockMovementCreated = "stock.movement.created"
	EventStockLow             = "stock.alert.low"
	EventStockOut             = "stock.alert.out"

	// Order events
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status.changed"
	EventOrderAssigned      = "order.assigned"
)

// Exchange names
const (
	ExchangeCatalogEvents = "catalog.events"
	ExchangeStockEvents   = "stock.events"
	ExchangeOrderEvents   = "order.events"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            GenerateEventID(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// Catalog Events

// ArticleCreatedEvent is published when an article is added to the catalog
type ArticleCreatedEvent struct {
	ArticleID string `json:"article_id"`
	Reference string `json:"reference"`
	Name      string `json:"name"`
}

// PriceChangedEvent is published when an article's current price is recomputed
type PriceChangedEvent struct {
	ArticleID   string  `json:"article_id"`
	Reference   string  `json:"reference"`
	OldPrice    int64   `json:"old_price"`
	NewPrice    int64   `json:"new_price"`
	PromotionID *string `json:"promotion_id,omitempty"`
}

// PromotionChangedEvent is published when a promotion is created, edited or toggled
type PromotionChangedEvent struct {
	PromotionID string `json:"promotion_id"`
	Action      string `json:"action"`
	IsActive    bool   `json:"is_active"`
}

// Stock Events

// StockMovementLine is one variant delta within a movement event
type StockMovementLine struct {
	VariantID   string `json:"variant_id"`
	ArticleID   string `json:"article_id"`
	Delta       int    `json:"delta"`
	NewQuantity int    `json:"new_quantity"`
}

// StockMovementCreatedEvent is published after a movement commits
type StockMovementCreatedEvent struct {
	MovementIDs []string            `json:"movement_ids"`
	Type        string              `json:"type"`
	Reason      string              `json:"reason,omitempty"`
	OrderID     *string             `json:"order_id,omitempty"`
	PerformedBy string              `json:"performed_by"`
	Lines       []StockMovementLine `json:"lines"`
}

// StockAlertEvent is published when an article crosses its low-stock threshold
type StockAlertEvent struct {
	AlertID    string `json:"alert_id"`
	ArticleID  string `json:"article_id"`
	Reference  string `json:"reference"`
	TotalStock int    `json:"total_stock"`
	Threshold  int    `json:"threshold"`
	Severity   string `json:"severity"`
}

// Order Events

// OrderCreatedEvent is published when an order is created or imported
type OrderCreatedEvent struct {
	OrderID     string `json:"order_id"`
	Number      string `json:"number"`
	Total       int64  `json:"total"`
	ItemCount   int    `json:"item_count"`
	Source      string `json:"source"`
	ExternalRef string `json:"external_ref,omitempty"`
}

// OrderStatusChangedEvent is published on every order transition
type OrderStatusChangedEvent struct {
	OrderID    string `json:"order_id"`
	Number     string `json:"number"`
	FromStatus string `json:"from_status"`
	ToStatus   string `json:"to_status"`
	OperatorID string `json:"operator_id"`
	Total      int64  `json:"total"`
}

// OrderAssignedEvent is published when orders are handed to a confirmation operator
type OrderAssignedEvent struct {
	OrderIDs   []string `json:"order_ids"`
	OperatorID string   `json:"operator_id"`
}

// GenerateEventID generates a unique event ID
func GenerateEventID() string {
	return uuid.New().String()
}
