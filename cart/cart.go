package cart

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"storefront/models"
)

// StorageKey is where the cart lives in client storage. Bump the suffix when
// the stored layout changes.
const StorageKey = "bodyforge_cart_v3"

var ErrPersist = errors.New("cart not saved")

// Notifier receives user-facing cart feedback.
type Notifier interface {
	ItemAdded(name string, merged bool)
	PersistFailed(err error)
}

type NopNotifier struct{}

func (NopNotifier) ItemAdded(string, bool) {}
func (NopNotifier) PersistFailed(error)    {}

// Engine owns the cart. Every mutation is written through to storage before
// it returns.
type Engine struct {
	mu      sync.Mutex
	lines   []models.CartLine
	storage Storage
	key     string
	notify  Notifier
	logger  *zap.Logger
}

// Open hydrates the cart stored under key. Missing or unreadable data yields
// an empty cart.
func Open(storage Storage, key string, notify Notifier, logger *zap.Logger) *Engine {
	if notify == nil {
		notify = NopNotifier{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		storage: storage,
		key:     key,
		notify:  notify,
		logger:  logger,
	}
	e.lines = e.load()
	return e
}

func (e *Engine) load() []models.CartLine {
	data, err := e.storage.Get(e.key)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		e.logger.Warn("Cart storage unreadable, starting empty", zap.String("key", e.key), zap.Error(err))
		return nil
	}

	var stored []models.CartLine
	if err := json.Unmarshal(data, &stored); err != nil {
		e.logger.Warn("Stored cart is corrupt, starting empty", zap.String("key", e.key), zap.Error(err))
		return nil
	}
	return normalize(stored)
}

// normalize clamps quantities to 1 and folds duplicate ids into the first
// occurrence.
func normalize(stored []models.CartLine) []models.CartLine {
	lines := make([]models.CartLine, 0, len(stored))
	index := make(map[int64]int, len(stored))
	for _, l := range stored {
		if l.Quantity < 1 {
			l.Quantity = 1
		}
		if i, ok := index[l.ProductID]; ok {
			lines[i].Quantity += l.Quantity
			continue
		}
		index[l.ProductID] = len(lines)
		lines = append(lines, l)
	}
	return lines
}

func (e *Engine) find(productID int64) int {
	for i := range e.lines {
		if e.lines[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// AddItem adds qty units of p, merging into an existing line for the same
// product. qty below 1 counts as 1.
func (e *Engine) AddItem(p models.Product, qty int) models.CartLine {
	if qty < 1 {
		qty = 1
	}

	e.mu.Lock()
	var line models.CartLine
	merged := false
	if i := e.find(p.ID); i >= 0 {
		e.lines[i].Quantity += qty
		line = e.lines[i]
		merged = true
	} else {
		line = models.CartLine{
			ProductID: p.ID,
			Name:      p.Name,
			Price:     p.Price,
			Image:     p.Image,
			Quantity:  qty,
		}
		e.lines = append(e.lines, line)
	}
	err := e.persist()
	e.mu.Unlock()

	e.report(err)
	e.notify.ItemAdded(line.Name, merged)
	return line
}

// SetQuantity replaces the quantity of a line, clamped to 1. It reports
// whether the product was in the cart.
func (e *Engine) SetQuantity(productID int64, qty int) bool {
	if qty < 1 {
		qty = 1
	}

	e.mu.Lock()
	i := e.find(productID)
	if i < 0 {
		e.mu.Unlock()
		return false
	}
	e.lines[i].Quantity = qty
	err := e.persist()
	e.mu.Unlock()

	e.report(err)
	return true
}

// RemoveItem deletes the line for productID if present.
func (e *Engine) RemoveItem(productID int64) bool {
	e.mu.Lock()
	i := e.find(productID)
	if i < 0 {
		e.mu.Unlock()
		return false
	}
	e.lines = append(e.lines[:i], e.lines[i+1:]...)
	err := e.persist()
	e.mu.Unlock()

	e.report(err)
	return true
}

func (e *Engine) Clear() {
	e.mu.Lock()
	e.lines = nil
	err := e.persist()
	e.mu.Unlock()

	e.report(err)
}

// Total is the sum of price × quantity over all lines.
func (e *Engine) Total() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	var total int64
	for _, l := range e.lines {
		total += l.Subtotal()
	}
	return total
}

// Count is the number of units in the cart, not the number of lines.
func (e *Engine) Count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, l := range e.lines {
		n += l.Quantity
	}
	return n
}

func (e *Engine) Lines() []models.CartLine {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]models.CartLine{}, e.lines...)
}

func (e *Engine) IsEmpty() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.lines) == 0
}

// persist must be called with mu held.
func (e *Engine) persist() error {
	lines := e.lines
	if lines == nil {
		lines = []models.CartLine{}
	}
	data, err := json.Marshal(lines)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	if err := e.storage.Set(e.key, data); err != nil {
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	return nil
}

// report surfaces a failed write. The in-memory cart keeps the change.
func (e *Engine) report(err error) {
	if err == nil {
		return
	}
	e.logger.Warn("Failed to save cart", zap.String("key", e.key), zap.Error(err))
	e.notify.PersistFailed(err)
}
