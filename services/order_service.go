package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"storefront/database"
	"storefront/events"
	"storefront/models"
)

var (
	// ErrValidation wraps every rejection caused by the request itself.
	ErrValidation = errors.New("invalid order")

	ErrEmptyOrder      = errors.New("order must contain items")
	ErrInvalidQuantity = errors.New("item quantity out of range")
	ErrUnknownProduct  = errors.New("unknown product")
	ErrTotalOverflow   = errors.New("order total out of range")
)

// MaxItemQuantity caps the units of a single line.
const MaxItemQuantity = 1000

type CatalogReader interface {
	Products(ctx context.Context) ([]models.Product, error)
}

type OrderService struct {
	catalog     CatalogReader
	store       database.OrderStore
	publisher   events.Publisher
	trustClient bool
	logger      *zap.Logger
	now         func() time.Time
}

// NewOrderService wires the order pipeline. When trustClientPrices is false
// every item is re-priced from the catalog and the total recomputed, so a
// client cannot set its own prices.
func NewOrderService(catalog CatalogReader, store database.OrderStore, publisher events.Publisher, trustClientPrices bool, logger *zap.Logger) *OrderService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &OrderService{
		catalog:     catalog,
		store:       store,
		publisher:   publisher,
		trustClient: trustClientPrices,
		logger:      logger,
		now:         time.Now,
	}
}

func (s *OrderService) PlaceOrder(ctx context.Context, req models.OrderRequest, requestID string) (models.OrderRecord, error) {
	if err := validate(req); err != nil {
		return models.OrderRecord{}, err
	}

	if !s.trustClient {
		priced, err := s.reprice(ctx, req)
		if err != nil {
			return models.OrderRecord{}, err
		}
		if priced.Total != req.Total {
			s.logger.Warn("Client total does not match catalog prices",
				zap.String("request_id", requestID),
				zap.Int64("client_total", req.Total),
				zap.Int64("catalog_total", priced.Total))
		}
		req = priced
	}

	order, err := s.store.Create(ctx, req)
	if err != nil {
		return models.OrderRecord{}, fmt.Errorf("store order: %w", err)
	}

	event := models.NewOrderCreatedEvent(order, s.now())
	if err := s.publisher.PublishOrderCreated(ctx, event); err != nil {
		s.logger.Error("Failed to publish order event",
			zap.String("request_id", requestID),
			zap.Int64("order_id", order.ID),
			zap.Error(err))
	}

	s.logger.Info("Order created",
		zap.String("request_id", requestID),
		zap.Int64("order_id", order.ID),
		zap.Int("items", len(order.Items)),
		zap.Int64("total", order.Total))

	return order, nil
}

func (s *OrderService) ListOrders(ctx context.Context) ([]models.OrderRecord, error) {
	orders, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

func validate(req models.OrderRequest) error {
	if len(req.Items) == 0 {
		return fmt.Errorf("%w: %w", ErrValidation, ErrEmptyOrder)
	}
	for _, item := range req.Items {
		if item.Quantity < 1 || item.Quantity > MaxItemQuantity {
			return fmt.Errorf("%w: %w: product %d quantity %d", ErrValidation, ErrInvalidQuantity, item.ProductID, item.Quantity)
		}
	}
	return nil
}

// reprice replaces each item's name, price and image with the catalog's and
// recomputes the total.
func (s *OrderService) reprice(ctx context.Context, req models.OrderRequest) (models.OrderRequest, error) {
	products, err := s.catalog.Products(ctx)
	if err != nil {
		return models.OrderRequest{}, fmt.Errorf("load catalog for pricing: %w", err)
	}
	byID := make(map[int64]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	priced := models.OrderRequest{
		Customer: req.Customer,
		Items:    make([]models.CartLine, 0, len(req.Items)),
	}
	for _, item := range req.Items {
		p, ok := byID[item.ProductID]
		if !ok {
			return models.OrderRequest{}, fmt.Errorf("%w: %w: id %d", ErrValidation, ErrUnknownProduct, item.ProductID)
		}
		priced.Items = append(priced.Items, models.CartLine{
			ProductID: p.ID,
			Name:      p.Name,
			Price:     p.Price,
			Image:     p.Image,
			Quantity:  item.Quantity,
		})
	}
	total, err := checkedTotal(priced.Items)
	if err != nil {
		return models.OrderRequest{}, err
	}
	priced.Total = total
	return priced, nil
}

// checkedTotal sums price × quantity, failing instead of wrapping past
// MaxInt64.
func checkedTotal(items []models.CartLine) (int64, error) {
	var total int64
	for _, item := range items {
		if item.Price < 0 {
			return 0, fmt.Errorf("%w: %w: product %d has a negative price", ErrValidation, ErrTotalOverflow, item.ProductID)
		}
		qty := int64(item.Quantity)
		if item.Price > 0 && qty > math.MaxInt64/item.Price {
			return 0, fmt.Errorf("%w: %w: product %d", ErrValidation, ErrTotalOverflow, item.ProductID)
		}
		sub := item.Price * qty
		if total > math.MaxInt64-sub {
			return 0, fmt.Errorf("%w: %w", ErrValidation, ErrTotalOverflow)
		}
		total += sub
	}
	return total, nil
}
