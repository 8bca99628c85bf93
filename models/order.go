package models

import (
	"time"
)

// CartLine is a snapshot of a product taken when it was added to the cart.
type CartLine struct {
	ProductID int64  `json:"id"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	Image     string `json:"image,omitempty"`
	Quantity  int    `json:"quantity"`
}

// Subtotal returns price × quantity.
func (l CartLine) Subtotal() int64 {
	return l.Price * int64(l.Quantity)
}

type Customer struct {
	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty" binding:"omitempty,email"`
	Address string `json:"address,omitempty"`
	City    string `json:"city,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Notes   string `json:"notes,omitempty"`
}

type OrderRequest struct {
	Customer Customer   `json:"customer"`
	Items    []CartLine `json:"items"`
	Total    int64      `json:"total"`
}

// LinesTotal sums the item subtotals, ignoring the submitted Total.
func (r OrderRequest) LinesTotal() int64 {
	var total int64
	for _, item := range r.Items {
		total += item.Subtotal()
	}
	return total
}

// OrderRecord is an order as persisted by the server.
type OrderRecord struct {
	ID       int64      `json:"id"`
	Date     string     `json:"date"`
	Customer Customer   `json:"customer"`
	Items    []CartLine `json:"items"`
	Total    int64      `json:"total"`
}

// DateLayout is the ISO-8601 layout used for OrderRecord.Date.
const DateLayout = "2006-01-02T15:04:05.000Z07:00"

// NewOrderRecord stamps req with id and the commit time.
func NewOrderRecord(id int64, at time.Time, req OrderRequest) OrderRecord {
	items := make([]CartLine, len(req.Items))
	copy(items, req.Items)
	return OrderRecord{
		ID:       id,
		Date:     at.UTC().Format(DateLayout),
		Customer: req.Customer,
		Items:    items,
		Total:    req.Total,
	}
}

type CreateOrderResponse struct {
	Message string `json:"message"`
	OrderID int64  `json:"orderId"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type OrderEvent struct {
	OrderID   int64     `json:"orderId"`
	Type      string    `json:"type"` // created
	Total     int64     `json:"total"`
	ItemCount int       `json:"itemCount"`
	Occurred  time.Time `json:"occurred"`
}

const OrderEventCreated = "created"

// NewOrderCreatedEvent describes a freshly committed order.
func NewOrderCreatedEvent(order OrderRecord, at time.Time) OrderEvent {
	count := 0
	for _, item := range order.Items {
		count += item.Quantity
	}
	return OrderEvent{
		OrderID:   order.ID,
		Type:      OrderEventCreated,
		Total:     order.Total,
		ItemCount: count,
		Occurred:  at,
	}
}
