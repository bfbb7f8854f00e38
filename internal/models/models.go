package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type OrderStatus string

const (
	StatusProcessing OrderStatus = "Processing"
	StatusShipped    OrderStatus = "Shipped"
	StatusDelivered  OrderStatus = "Delivered"
)

// Image is a reference to a file kept by the image host.
type Image struct {
	PublicID string `json:"public_id"`
	URL      string `json:"url"`
}

type Product struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey"         json:"id"`
	Name         string         `gorm:"not null;index"               json:"name"`
	Description  string         `gorm:"not null"                     json:"description"`
	Price        float64        `gorm:"not null"                     json:"price"`
	Category     string         `gorm:"not null;index"               json:"category"`
	Stock        int            `gorm:"not null"                     json:"stock"`
	Ratings      float64        `gorm:"not null;default:0"           json:"ratings"`
	NumOfReviews int            `gorm:"not null;default:0"           json:"num_of_reviews"`
	UserID       uuid.UUID      `gorm:"type:uuid"                    json:"user_id"`
	Images       []ProductImage `gorm:"foreignKey:ProductID"         json:"images"`
	Reviews      []Review       `gorm:"foreignKey:ProductID"         json:"reviews,omitempty"`
	CreatedAt    time.Time      `gorm:"index"                        json:"created_at"`
}

type ProductImage struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"      json:"-"`
	ProductID uuid.UUID `gorm:"type:uuid;index;not null"  json:"-"`
	Position  int       `gorm:"not null"                  json:"-"`
	Image     `gorm:"embedded"`
}

type Review struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"                             json:"id"`
	ProductID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_review_owner"  json:"-"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_review_owner"  json:"user"`
	Name      string    `gorm:"not null"                                         json:"name"`
	Rating    int       `gorm:"not null"                                         json:"rating"`
	Comment   string    `gorm:"not null"                                         json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

type ShippingInfo struct {
	Address string `json:"address"  validate:"required"`
	City    string `json:"city"     validate:"required"`
	State   string `json:"state"    validate:"required"`
	Country string `json:"country"  validate:"required"`
	PinCode string `json:"pin_code" validate:"required"`
	PhoneNo string `json:"phone_no" validate:"required"`
}

type PaymentInfo struct {
	ID     string `json:"id"     validate:"required"`
	Status string `json:"status" validate:"required"`
}

type Order struct {
	ID            uuid.UUID    `gorm:"type:uuid;primaryKey"                  json:"id"`
	UserID        uuid.UUID    `gorm:"type:uuid;index;not null"              json:"user_id"`
	ShippingInfo  ShippingInfo `gorm:"embedded;embeddedPrefix:shipping_"     json:"shipping_info"`
	Items         []OrderItem  `gorm:"foreignKey:OrderID"                    json:"order_items"`
	PaymentInfo   PaymentInfo  `gorm:"embedded;embeddedPrefix:payment_"      json:"payment_info"`
	ItemsPrice    float64      `gorm:"not null;default:0"                    json:"items_price"`
	TaxPrice      float64      `gorm:"not null;default:0"                    json:"tax_price"`
	ShippingPrice float64      `gorm:"not null;default:0"                    json:"shipping_price"`
	TotalPrice    float64      `gorm:"not null;default:0"                    json:"total_price"`
	Status        OrderStatus  `gorm:"not null;default:Processing"           json:"order_status"`
	PaidAt        *time.Time   `json:"paid_at,omitempty"`
	DeliveredAt   *time.Time   `json:"delivered_at,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
}

type OrderItem struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"      json:"-"`
	OrderID   uuid.UUID `gorm:"type:uuid;index;not null"  json:"-"`
	ProductID uuid.UUID `gorm:"type:uuid;not null"        json:"product"`
	Name      string    `gorm:"not null"                  json:"name"`
	Price     float64   `gorm:"not null"                  json:"price"`
	Quantity  int       `gorm:"not null"                  json:"quantity"`
	Image     string    `json:"image"`
}

type User struct {
	ID                  uuid.UUID  `gorm:"type:uuid;primaryKey"                   json:"id"`
	Name                string     `gorm:"not null"                               json:"name"`
	Email               string     `gorm:"uniqueIndex;not null"                   json:"email"`
	PasswordHash        string     `gorm:"not null"                               json:"-"`
	Role                string     `gorm:"not null;default:user"                  json:"role"`
	Avatar              Image      `gorm:"embedded;embeddedPrefix:avatar_"        json:"avatar"`
	ResetPasswordToken  *string    `gorm:"index"                                  json:"-"`
	ResetPasswordExpire *time.Time `json:"-"`
	CreatedAt           time.Time  `json:"created_at"`
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

func (i *ProductImage) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

func (r *Review) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

func (i *OrderItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// All lists the tables in migration order.
func All() []any {
	return []any{&User{}, &Product{}, &ProductImage{}, &Review{}, &Order{}, &OrderItem{}}
}
