package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// BaseModel provides common fields for all database models
type BaseModel struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at" gorm:"index"`
}

// Order status values
const (
	OrderStatusPending   = "pending"
	OrderStatusPaid      = "paid"
	OrderStatusCancelled = "cancelled"
)

// Order 商户订单
// The account a provider callback pays for, referenced by its numeric ID.
type Order struct {
	BaseModel
	Amount      decimal.Decimal `json:"amount" gorm:"type:numeric(15,2);not null"` // major units
	Description string          `json:"description" gorm:"size:255"`
	Status      string          `json:"status" gorm:"size:20;not null;default:'pending';index"`
}

// TableName 指定表名
func (Order) TableName() string {
	return "orders"
}

// AmountDue returns the amount the order expects to be paid, in major units
func (o *Order) AmountDue() decimal.Decimal {
	return o.Amount
}

// Reference returns the account reference providers use for this order
func (o *Order) Reference() string {
	return FormatID(o.ID)
}
