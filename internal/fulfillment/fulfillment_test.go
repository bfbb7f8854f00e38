package fulfillment

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/storefront/internal/apperr"
	"github.com/Skotchmaster/storefront/internal/models"
)

func newOrder(status models.OrderStatus, items ...models.OrderItem) *models.Order {
	return &models.Order{ID: uuid.New(), Status: status, Items: items}
}

func TestTransition_ProcessingToDelivered(t *testing.T) {
	productA := uuid.New()
	order := newOrder(models.StatusProcessing, models.OrderItem{ProductID: productA, Quantity: 2})
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	changes, err := Transition(order, models.StatusDelivered, now)
	require.NoError(t, err)

	assert.Equal(t, []StockChange{{ProductID: productA, Quantity: 2}}, changes)
	assert.Equal(t, models.StatusDelivered, order.Status)
	require.NotNil(t, order.DeliveredAt)
	assert.Equal(t, now, *order.DeliveredAt)
}

func TestTransition_ShippedDoesNotStampDelivery(t *testing.T) {
	order := newOrder(models.StatusProcessing, models.OrderItem{ProductID: uuid.New(), Quantity: 1})

	changes, err := Transition(order, models.StatusShipped, time.Now())
	require.NoError(t, err)
	assert.Len(t, changes, 1)
	assert.Equal(t, models.StatusShipped, order.Status)
	assert.Nil(t, order.DeliveredAt)
}

func TestTransition_DeliveredIsTerminal(t *testing.T) {
	order := newOrder(models.StatusDelivered, models.OrderItem{ProductID: uuid.New(), Quantity: 3})

	for _, next := range []models.OrderStatus{models.StatusShipped, models.StatusProcessing, models.StatusDelivered} {
		changes, err := Transition(order, next, time.Now())
		require.Error(t, err)
		assert.ErrorIs(t, err, apperr.ErrConflict)
		assert.Nil(t, changes)
		assert.Equal(t, models.StatusDelivered, order.Status)
	}
}

func TestTransition_NoBackwardOrRepeat(t *testing.T) {
	order := newOrder(models.StatusShipped)

	_, err := Transition(order, models.StatusProcessing, time.Now())
	assert.ErrorIs(t, err, apperr.ErrConflict)

	_, err = Transition(order, models.StatusShipped, time.Now())
	assert.ErrorIs(t, err, apperr.ErrConflict)
	assert.Equal(t, models.StatusShipped, order.Status)
}

func TestTransition_UnknownStatus(t *testing.T) {
	order := newOrder(models.StatusProcessing)

	_, err := Transition(order, "Lost", time.Now())
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Equal(t, models.StatusProcessing, order.Status)
}

func TestParseStatus(t *testing.T) {
	st, err := ParseStatus("Shipped")
	require.NoError(t, err)
	assert.Equal(t, models.StatusShipped, st)

	_, err = ParseStatus("shipped")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}
