package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Skotchmaster/storefront/internal/apperr"
	"github.com/Skotchmaster/storefront/internal/fulfillment"
	"github.com/Skotchmaster/storefront/internal/models"
)

// CreateOrder stores o with its line items. Every referenced product must exist.
func (r *GormRepo) CreateOrder(ctx context.Context, o *models.Order) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ids := make([]uuid.UUID, 0, len(o.Items))
		seen := make(map[uuid.UUID]struct{}, len(o.Items))
		for _, it := range o.Items {
			if _, ok := seen[it.ProductID]; ok {
				continue
			}
			seen[it.ProductID] = struct{}{}
			ids = append(ids, it.ProductID)
		}

		var n int64
		if err := tx.Model(&models.Product{}).Where("id IN ?", ids).Count(&n).Error; err != nil {
			return translate(err, "check products")
		}
		if int(n) != len(ids) {
			return fmt.Errorf("%w: order references unknown products", apperr.ErrNotFound)
		}

		return translate(tx.Create(o).Error, "create order")
	})
}

func (r *GormRepo) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var o models.Order
	if err := r.DB.WithContext(ctx).Preload("Items").First(&o, "id = ?", id).Error; err != nil {
		return nil, translate(err, fmt.Sprintf("order %s", id))
	}
	return &o, nil
}

func (r *GormRepo) OrdersByUser(ctx context.Context, userID uuid.UUID) ([]models.Order, error) {
	orders := []models.Order{}
	if err := r.DB.WithContext(ctx).
		Preload("Items").
		Where("user_id = ?", userID).
		Order("created_at ASC").Order("id ASC").
		Find(&orders).Error; err != nil {
		return nil, translate(err, "list orders")
	}
	return orders, nil
}

func (r *GormRepo) AllOrders(ctx context.Context) ([]models.Order, error) {
	orders := []models.Order{}
	if err := r.DB.WithContext(ctx).
		Preload("Items").
		Order("created_at ASC").Order("id ASC").
		Find(&orders).Error; err != nil {
		return nil, translate(err, "list orders")
	}
	return orders, nil
}

// UpdateOrderStatus applies a fulfillment transition and takes the ordered
// quantities off stock in one transaction. Stock has no floor.
func (r *GormRepo) UpdateOrderStatus(ctx context.Context, id uuid.UUID, next models.OrderStatus, now time.Time) (*models.Order, error) {
	var o models.Order
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&o, "id = ?", id).Error; err != nil {
			return translate(err, fmt.Sprintf("order %s", id))
		}
		if err := tx.Where("order_id = ?", id).Find(&o.Items).Error; err != nil {
			return translate(err, "load order items")
		}

		changes, err := fulfillment.Transition(&o, next, now)
		if err != nil {
			return err
		}

		for _, ch := range changes {
			res := tx.Model(&models.Product{}).
				Where("id = ?", ch.ProductID).
				UpdateColumn("stock", gorm.Expr("stock - ?", ch.Quantity))
			if res.Error != nil {
				return translate(res.Error, "update stock")
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("%w: product %s", apperr.ErrNotFound, ch.ProductID)
			}
		}

		err = tx.Model(&models.Order{}).
			Where("id = ?", id).
			Updates(map[string]any{"status": o.Status, "delivered_at": o.DeliveredAt}).Error
		return translate(err, "update order")
	})
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *GormRepo) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("order_id = ?", id).Delete(&models.OrderItem{}).Error; err != nil {
			return translate(err, "delete order items")
		}
		res := tx.Delete(&models.Order{}, "id = ?", id)
		if res.Error != nil {
			return translate(res.Error, "delete order")
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: order %s", apperr.ErrNotFound, id)
		}
		return nil
	})
}
