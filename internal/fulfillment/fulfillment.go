// Package fulfillment guards order status transitions
// Processing -> Shipped -> Delivered and lists the stock changes each accepted
// transition causes.
package fulfillment

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Skotchmaster/storefront/internal/apperr"
	"github.com/Skotchmaster/storefront/internal/models"
)

var rank = map[models.OrderStatus]int{
	models.StatusProcessing: 0,
	models.StatusShipped:    1,
	models.StatusDelivered:  2,
}

// StockChange is a quantity to take off a product's stock.
type StockChange struct {
	ProductID uuid.UUID
	Quantity  int
}

func ParseStatus(s string) (models.OrderStatus, error) {
	st := models.OrderStatus(s)
	if _, ok := rank[st]; !ok {
		return "", fmt.Errorf("%w: unknown order status %q", apperr.ErrValidation, s)
	}
	return st, nil
}

func IsTerminal(s models.OrderStatus) bool {
	return s == models.StatusDelivered
}

// Transition moves order to next. Delivered orders, backward moves and
// repeated statuses are rejected with a conflict and leave order untouched.
// On success the stock changes for every line item are returned.
func Transition(order *models.Order, next models.OrderStatus, now time.Time) ([]StockChange, error) {
	if IsTerminal(order.Status) {
		return nil, fmt.Errorf("%w: order %s already delivered", apperr.ErrConflict, order.ID)
	}
	to, ok := rank[next]
	if !ok {
		return nil, fmt.Errorf("%w: unknown order status %q", apperr.ErrValidation, next)
	}
	if from := rank[order.Status]; to <= from {
		return nil, fmt.Errorf("%w: cannot move order from %s to %s", apperr.ErrConflict, order.Status, next)
	}

	changes := make([]StockChange, 0, len(order.Items))
	for _, it := range order.Items {
		changes = append(changes, StockChange{ProductID: it.ProductID, Quantity: it.Quantity})
	}

	order.Status = next
	if next == models.StatusDelivered {
		at := now
		order.DeliveredAt = &at
	}
	return changes, nil
}
