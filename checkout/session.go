package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"storefront/cart"
	"storefront/catalog"
	"storefront/models"
)

var (
	ErrEmptyCart          = errors.New("cart is empty")
	ErrCatalogUnavailable = errors.New("catalog unavailable")
	ErrCatalogNotLoaded   = errors.New("catalog not loaded")
	ErrUnknownProduct     = errors.New("product not in catalog")
)

// API is the slice of the storefront API a shopping session needs.
type API interface {
	FetchProducts(ctx context.Context) ([]models.Product, error)
	SubmitOrder(ctx context.Context, req models.OrderRequest) (int64, error)
}

type Confirmation struct {
	OrderID      int64
	CustomerName string
	Total        int64
}

// Session ties one cart to the API: it browses the cached catalog and turns
// the cart into an order.
type Session struct {
	api    API
	cart   *cart.Engine
	logger *zap.Logger

	mu         sync.Mutex
	products   []models.Product
	catalogErr error
	loaded     bool
}

func NewSession(api API, engine *cart.Engine, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{api: api, cart: engine, logger: logger}
}

func (s *Session) Cart() *cart.Engine { return s.cart }

// LoadCatalog fetches the product list once per call and caches it. A
// failure is remembered so Browse can report it instead of showing an empty
// shop.
func (s *Session) LoadCatalog(ctx context.Context) error {
	products, err := s.api.FetchProducts(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = true
	if err != nil {
		s.products = nil
		s.catalogErr = err
		s.logger.Warn("Failed to load catalog", zap.Error(err))
		return fmt.Errorf("%w: %w", ErrCatalogUnavailable, err)
	}
	s.products = products
	s.catalogErr = nil
	return nil
}

// Browse filters the cached catalog.
func (s *Session) Browse(q catalog.Query) ([]models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return nil, ErrCatalogNotLoaded
	}
	if s.catalogErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrCatalogUnavailable, s.catalogErr)
	}
	return q.Apply(s.products), nil
}

func (s *Session) Categories() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return catalog.Categories(s.products)
}

// Product looks up id in the cached catalog.
func (s *Session) Product(id int64) (models.Product, error) {
	products, err := s.Browse(catalog.Query{})
	if err != nil {
		return models.Product{}, err
	}
	for _, p := range products {
		if p.ID == id {
			return p, nil
		}
	}
	return models.Product{}, fmt.Errorf("%w: %d", ErrUnknownProduct, id)
}

// Checkout submits the cart as an order. The cart is cleared only once the
// server has confirmed; on any error it is left as it was so the shopper can
// retry.
func (s *Session) Checkout(ctx context.Context, customer models.Customer) (Confirmation, error) {
	lines := s.cart.Lines()
	if len(lines) == 0 {
		return Confirmation{}, ErrEmptyCart
	}
	req := models.OrderRequest{
		Customer: customer,
		Items:    lines,
		Total:    s.cart.Total(),
	}

	id, err := s.api.SubmitOrder(ctx, req)
	if err != nil {
		s.logger.Warn("Order submission failed", zap.Int("items", len(lines)), zap.Error(err))
		return Confirmation{}, err
	}

	s.cart.Clear()
	s.logger.Info("Order confirmed", zap.Int64("order_id", id), zap.Int64("total", req.Total))
	return Confirmation{
		OrderID:      id,
		CustomerName: customer.Name,
		Total:        req.Total,
	}, nil
}
