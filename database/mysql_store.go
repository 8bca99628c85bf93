package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"storefront/models"
)

const createOrdersTable = `
CREATE TABLE IF NOT EXISTS orders (
	id         BIGINT      NOT NULL PRIMARY KEY,
	created_at DATETIME(3) NOT NULL,
	customer   JSON        NOT NULL,
	items      JSON        NOT NULL,
	total      BIGINT      NOT NULL
)`

// errDuplicateEntry is MySQL's ER_DUP_ENTRY.
const errDuplicateEntry = 1062

const maxInsertAttempts = 3

// OpenMySQL opens a pool for dsn with time parsing forced on.
func OpenMySQL(dsn string) (*sql.DB, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC

	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	return db, nil
}

// MySQLOrderStore stores one row per order. Inserts are atomic, so concurrent
// requests cannot lose each other's orders.
type MySQLOrderStore struct {
	db     *sql.DB
	ids    *IDGenerator
	logger *zap.Logger
}

func NewMySQLOrderStore(db *sql.DB, ids *IDGenerator, logger *zap.Logger) *MySQLOrderStore {
	return &MySQLOrderStore{db: db, ids: ids, logger: logger}
}

// Init creates the table when missing and seeds the id generator from the
// largest stored id.
func (s *MySQLOrderStore) Init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createOrdersTable); err != nil {
		return fmt.Errorf("create orders table: %w", err)
	}
	var maxID sql.NullInt64
	if err := s.db.QueryRowContext(ctx, "SELECT MAX(id) FROM orders").Scan(&maxID); err != nil {
		return fmt.Errorf("read max order id: %w", err)
	}
	if maxID.Valid {
		s.ids.Observe(maxID.Int64)
	}
	return nil
}

func (s *MySQLOrderStore) Create(ctx context.Context, req models.OrderRequest) (models.OrderRecord, error) {
	customer, err := json.Marshal(req.Customer)
	if err != nil {
		return models.OrderRecord{}, fmt.Errorf("marshal customer: %w", err)
	}
	items, err := json.Marshal(req.Items)
	if err != nil {
		return models.OrderRecord{}, fmt.Errorf("marshal items: %w", err)
	}

	for attempt := 1; ; attempt++ {
		id, at := s.ids.Next()
		_, err = s.db.ExecContext(ctx,
			"INSERT INTO orders (id, created_at, customer, items, total) VALUES (?, ?, ?, ?, ?)",
			id, at.UTC(), customer, items, req.Total,
		)
		if err == nil {
			return models.NewOrderRecord(id, at, req), nil
		}

		// Another process took the id; move past it.
		var myErr *mysql.MySQLError
		if errors.As(err, &myErr) && myErr.Number == errDuplicateEntry && attempt < maxInsertAttempts {
			s.logger.Warn("Order id collision, retrying", zap.Int64("order_id", id))
			continue
		}
		return models.OrderRecord{}, fmt.Errorf("insert order %d: %w", id, err)
	}
}

func (s *MySQLOrderStore) List(ctx context.Context) ([]models.OrderRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, created_at, customer, items, total FROM orders ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	orders := []models.OrderRecord{}
	for rows.Next() {
		var (
			order     models.OrderRecord
			createdAt time.Time
			customer  []byte
			items     []byte
		)
		if err := rows.Scan(&order.ID, &createdAt, &customer, &items, &order.Total); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		if err := json.Unmarshal(customer, &order.Customer); err != nil {
			return nil, fmt.Errorf("decode customer of order %d: %w", order.ID, err)
		}
		if err := json.Unmarshal(items, &order.Items); err != nil {
			return nil, fmt.Errorf("decode items of order %d: %w", order.ID, err)
		}
		order.Date = createdAt.UTC().Format(models.DateLayout)
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}
	return orders, nil
}

func (s *MySQLOrderStore) Close() error {
	return s.db.Close()
}
