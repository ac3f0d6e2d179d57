package database

import (
	"context"
	"errors"

	"payment-webhooks/internal/models"

	"gorm.io/gorm"
)

// ErrOrderNotFound is returned when no order matches the id
var ErrOrderNotFound = errors.New("order not found")

// OrderRepository stores merchant orders
type OrderRepository struct {
	db *gorm.DB
}

// NewOrderRepository creates a repository on top of db
func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create 创建订单
func (r *OrderRepository) Create(ctx context.Context, order *models.Order) error {
	if order.Status == "" {
		order.Status = models.OrderStatusPending
	}
	return r.db.WithContext(ctx).Create(order).Error
}

// FindByID 通过ID获取订单
func (r *OrderRepository) FindByID(ctx context.Context, id uint) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).First(&order, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

// UpdateStatus 更新订单状态
func (r *OrderRepository) UpdateStatus(ctx context.Context, id uint, status string) error {
	result := r.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", id).Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrOrderNotFound
	}
	return nil
}
