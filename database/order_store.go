package database

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"go.uber.org/zap"

	"storefront/models"
)

// OrderStore is an append-only collection of orders. Create assigns the id
// and date of the new record.
type OrderStore interface {
	Create(ctx context.Context, req models.OrderRequest) (models.OrderRecord, error)
	List(ctx context.Context) ([]models.OrderRecord, error)
	Close() error
}

// FileOrderStore keeps every order in one JSON array and rewrites the whole
// file on each Create. Create is a plain read-modify-write with no lock: two
// concurrent calls can both read the same collection and the later write
// drops the earlier order. Wrap it in a SerialOrderStore when requests can
// overlap.
type FileOrderStore struct {
	path   string
	ids    *IDGenerator
	logger *zap.Logger

	// afterLoad runs between the read and the write of Create. Tests use it
	// to force two requests to interleave.
	afterLoad func()
}

// NewFileOrderStore initialises path to an empty array when it is missing
// and seeds the id generator from the stored orders.
func NewFileOrderStore(path string, ids *IDGenerator, logger *zap.Logger) (*FileOrderStore, error) {
	if err := EnsureJSONArray(path); err != nil {
		return nil, err
	}
	s := &FileOrderStore{path: path, ids: ids, logger: logger}
	for _, order := range s.load() {
		ids.Observe(order.ID)
	}
	return s, nil
}

// load returns the stored orders. An unreadable or corrupt file counts as an
// empty collection.
func (s *FileOrderStore) load() []models.OrderRecord {
	var orders []models.OrderRecord
	if err := readJSON(s.path, &orders); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("Order store unreadable, treating as empty",
				zap.String("path", s.path), zap.Error(err))
		}
		return nil
	}
	return orders
}

func (s *FileOrderStore) Create(ctx context.Context, req models.OrderRequest) (models.OrderRecord, error) {
	if err := ctx.Err(); err != nil {
		return models.OrderRecord{}, err
	}

	orders := s.load()
	if s.afterLoad != nil {
		s.afterLoad()
	}

	id, at := s.ids.Next()
	record := models.NewOrderRecord(id, at, req)
	orders = append(orders, record)

	if err := writeJSON(s.path, orders); err != nil {
		return models.OrderRecord{}, fmt.Errorf("persist order %d: %w", id, err)
	}
	return record, nil
}

func (s *FileOrderStore) List(ctx context.Context) ([]models.OrderRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var orders []models.OrderRecord
	if err := readJSON(s.path, &orders); err != nil {
		return nil, fmt.Errorf("read orders: %w", err)
	}
	if orders == nil {
		orders = []models.OrderRecord{}
	}
	return orders, nil
}

func (s *FileOrderStore) Close() error { return nil }
