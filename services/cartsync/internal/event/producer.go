package event

import (
	"context"
	"fmt"
	"log/slog"

	pkgkafka "github.com/utafrali/storefront/pkg/kafka"
	"github.com/utafrali/storefront/pkg/logger"
	"github.com/utafrali/storefront/services/cartsync/internal/domain"
)

// TopicCartSynced carries every authoritative cart refresh.
var TopicCartSynced = pkgkafka.Topic("cart", "synced")

// AggregateTypeCart is the aggregate type of cart events.
const AggregateTypeCart = "cart"

// SourceCartSync identifies events originating from this service.
const SourceCartSync = "cartsync"

// CartSyncedData is the payload of a cart.synced event.
type CartSyncedData struct {
	SessionID string         `json:"session_id"`
	CartID    string         `json:"cart_id,omitempty"`
	Items     []CartItemData `json:"items"`
	ItemCount int            `json:"item_count"`
	Total     string         `json:"total"`
	Currency  string         `json:"currency"`
}

// CartItemData is one line within a cart.synced payload.
type CartItemData struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Size      string `json:"size,omitempty"`
	Color     string `json:"color,omitempty"`
	Price     string `json:"price"`
	Quantity  int    `json:"quantity"`
}

// Publisher is the part of pkg/kafka.Producer used here.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes cart domain events.
type Producer struct {
	publisher Publisher
	logger    *slog.Logger
}

// NewProducer creates a new event producer for the cartsync service.
func NewProducer(publisher Publisher, logger *slog.Logger) *Producer {
	return &Producer{
		publisher: publisher,
		logger:    logger,
	}
}

// CartSynced publishes a cart.synced event keyed by session id.
func (p *Producer) CartSynced(ctx context.Context, sessionID string, state domain.State) error {
	data := newCartSyncedData(sessionID, state)

	event, err := pkgkafka.NewEvent(TopicCartSynced, sessionID, AggregateTypeCart, SourceCartSync, data)
	if err != nil {
		return fmt.Errorf("create cart.synced event: %w", err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		event.WithCorrelationID(id)
	}
	event.WithMetadata("cart_id", state.CartID)

	if err := p.publisher.Publish(ctx, TopicCartSynced, event); err != nil {
		return fmt.Errorf("publish cart.synced event: %w", err)
	}

	p.logger.DebugContext(ctx, "published cart.synced event",
		slog.String("session_id", sessionID),
		slog.Int("item_count", data.ItemCount),
	)
	return nil
}

func newCartSyncedData(sessionID string, state domain.State) CartSyncedData {
	items := make([]CartItemData, len(state.Lines))
	currency := ""
	for i, l := range state.Lines {
		items[i] = CartItemData{
			ProductID: l.Product.ID,
			Name:      l.Product.Name,
			Size:      l.Size,
			Color:     l.Color,
			Price:     l.Product.Price.StringFixed(2),
			Quantity:  l.Quantity,
		}
		if currency == "" {
			currency = l.Product.Currency
		}
	}
	if currency == "" {
		currency = domain.DefaultCurrency
	}

	return CartSyncedData{
		SessionID: sessionID,
		CartID:    state.CartID,
		Items:     items,
		ItemCount: state.ItemCount,
		Total:     state.Total.StringFixed(2),
		Currency:  currency,
	}
}
