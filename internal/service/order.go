package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/storefront/internal/apperr"
	"github.com/Skotchmaster/storefront/internal/events"
	"github.com/Skotchmaster/storefront/internal/fulfillment"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/repo"
	"github.com/Skotchmaster/storefront/internal/transport"
)

type OrderService struct {
	Repo   *repo.GormRepo
	Events events.Publisher
	Now    func() time.Time
}

func cents(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(2)
}

func (s *OrderService) CreateOrder(ctx context.Context, userID uuid.UUID, req transport.CreateOrderRequest) (*models.Order, error) {
	if len(req.OrderItems) == 0 {
		return nil, fmt.Errorf("%w: order has no items", apperr.ErrValidation)
	}
	sum := cents(req.ItemsPrice).Add(cents(req.TaxPrice)).Add(cents(req.ShippingPrice))
	if !sum.Equal(cents(req.TotalPrice)) {
		return nil, fmt.Errorf("%w: total_price %s does not match items, tax and shipping %s",
			apperr.ErrValidation, cents(req.TotalPrice), sum)
	}

	items := make([]models.OrderItem, 0, len(req.OrderItems))
	for _, it := range req.OrderItems {
		pid, err := uuid.Parse(it.Product)
		if err != nil {
			return nil, fmt.Errorf("%w: product %q is not a uuid", apperr.ErrValidation, it.Product)
		}
		if it.Quantity < 1 {
			return nil, fmt.Errorf("%w: quantity must be positive", apperr.ErrValidation)
		}
		items = append(items, models.OrderItem{
			ProductID: pid,
			Name:      it.Name,
			Price:     it.Price,
			Quantity:  it.Quantity,
			Image:     it.Image,
		})
	}

	now := nowOr(s.Now)
	o := &models.Order{
		UserID:        userID,
		ShippingInfo:  req.ShippingInfo,
		Items:         items,
		PaymentInfo:   req.PaymentInfo,
		ItemsPrice:    req.ItemsPrice,
		TaxPrice:      req.TaxPrice,
		ShippingPrice: req.ShippingPrice,
		TotalPrice:    req.TotalPrice,
		Status:        models.StatusProcessing,
		PaidAt:        &now,
	}
	if err := s.Repo.CreateOrder(ctx, o); err != nil {
		return nil, err
	}

	publish(ctx, s.Events, events.TopicOrders, o.ID.String(), events.OrderCreated, now, o)
	return o, nil
}

// GetOrder returns the order to its owner or to an admin.
func (s *OrderService) GetOrder(ctx context.Context, id, userID uuid.UUID, isAdmin bool) (*models.Order, error) {
	o, err := s.Repo.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if !isAdmin && o.UserID != userID {
		return nil, fmt.Errorf("%w: order %s belongs to another user", apperr.ErrForbidden, id)
	}
	return o, nil
}

func (s *OrderService) MyOrders(ctx context.Context, userID uuid.UUID) ([]models.Order, error) {
	return s.Repo.OrdersByUser(ctx, userID)
}

// AllOrders lists every order with the sum of their total prices.
func (s *OrderService) AllOrders(ctx context.Context) (*transport.AdminOrders, error) {
	orders, err := s.Repo.AllOrders(ctx)
	if err != nil {
		return nil, err
	}
	total := decimal.Zero
	for _, o := range orders {
		total = total.Add(decimal.NewFromFloat(o.TotalPrice))
	}
	return &transport.AdminOrders{Orders: orders, TotalAmount: total.Round(2).InexactFloat64()}, nil
}

func (s *OrderService) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*models.Order, error) {
	next, err := fulfillment.ParseStatus(status)
	if err != nil {
		return nil, err
	}
	now := nowOr(s.Now)
	o, err := s.Repo.UpdateOrderStatus(ctx, id, next, now)
	if err != nil {
		return nil, err
	}

	publish(ctx, s.Events, events.TopicOrders, o.ID.String(), events.OrderStatusChange, now, map[string]any{
		"order_id": o.ID, "status": o.Status,
	})
	return o, nil
}

func (s *OrderService) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	if err := s.Repo.DeleteOrder(ctx, id); err != nil {
		return err
	}
	publish(ctx, s.Events, events.TopicOrders, id.String(), events.OrderDeleted, nowOr(s.Now), map[string]any{"order_id": id})
	return nil
}
