package transport

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/Skotchmaster/storefront/internal/models"
)

// ImageList accepts either a single image or a list of images.
// Each entry is a data URI or a remote URL understood by the image host.
type ImageList []string

func (l *ImageList) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*l = nil
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var one string
		if err := json.Unmarshal(b, &one); err != nil {
			return err
		}
		*l = ImageList{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(b, &many); err != nil {
		return fmt.Errorf("images must be a string or a list of strings: %w", err)
	}
	*l = many
	return nil
}

type CreateProductRequest struct {
	Name        string    `json:"name"        validate:"required,max=100"`
	Description string    `json:"description" validate:"required"`
	Price       *float64  `json:"price"       validate:"required,gte=0"`
	Category    string    `json:"category"    validate:"required"`
	Stock       *int      `json:"stock"       validate:"required"`
	Images      ImageList `json:"images"      validate:"dive,required"`
}

// UpdateProductRequest carries a partial update. Images replace the current
// set only when present.
type UpdateProductRequest struct {
	Name        *string   `json:"name"        validate:"omitempty,min=1,max=100"`
	Description *string   `json:"description" validate:"omitempty,min=1"`
	Price       *float64  `json:"price"       validate:"omitempty,gte=0"`
	Category    *string   `json:"category"    validate:"omitempty,min=1"`
	Stock       *int      `json:"stock"`
	Images      ImageList `json:"images"      validate:"omitempty,dive,required"`
}

type ProductList struct {
	Products      []models.Product `json:"products"`
	TotalCount    int64            `json:"total_count"`
	PageSize      int              `json:"page_size"`
	FilteredCount int64            `json:"filtered_count"`
	Page          int              `json:"page"`
}

type ReviewRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Rating    int    `json:"rating"     validate:"required,min=1,max=5"`
	Comment   string `json:"comment"    validate:"required"`
}

type OrderItemRequest struct {
	Product  string  `json:"product"  validate:"required,uuid"`
	Name     string  `json:"name"     validate:"required"`
	Price    float64 `json:"price"    validate:"gte=0"`
	Quantity int     `json:"quantity" validate:"required,min=1"`
	Image    string  `json:"image"`
}

type CreateOrderRequest struct {
	ShippingInfo  models.ShippingInfo `json:"shipping_info"`
	OrderItems    []OrderItemRequest  `json:"order_items"    validate:"required,min=1,dive"`
	PaymentInfo   models.PaymentInfo  `json:"payment_info"`
	ItemsPrice    float64             `json:"items_price"    validate:"gte=0"`
	TaxPrice      float64             `json:"tax_price"      validate:"gte=0"`
	ShippingPrice float64             `json:"shipping_price" validate:"gte=0"`
	TotalPrice    float64             `json:"total_price"    validate:"gte=0"`
}

type UpdateOrderRequest struct {
	Status string `json:"status" validate:"required"`
}

type AdminOrders struct {
	Orders      []models.Order `json:"orders"`
	TotalAmount float64        `json:"total_amount"`
}

type RegisterRequest struct {
	Name     string `json:"name"     validate:"required,max=30"`
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Avatar   string `json:"avatar"`
}

type LoginRequest struct {
	Email    string `json:"email"    validate:"required"`
	Password string `json:"password" validate:"required"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetPasswordRequest struct {
	Password        string `json:"password"         validate:"required,min=8"`
	ConfirmPassword string `json:"confirm_password" validate:"required"`
}

type UpdatePasswordRequest struct {
	OldPassword     string `json:"old_password"     validate:"required"`
	NewPassword     string `json:"new_password"     validate:"required,min=8"`
	ConfirmPassword string `json:"confirm_password" validate:"required"`
}

type UpdateProfileRequest struct {
	Name   string `json:"name"   validate:"required,max=30"`
	Email  string `json:"email"  validate:"required,email"`
	Avatar string `json:"avatar"`
}

type AdminUpdateUserRequest struct {
	Name  string `json:"name"  validate:"required,max=30"`
	Email string `json:"email" validate:"required,email"`
	Role  string `json:"role"  validate:"required,oneof=user admin"`
}

type AuthResponse struct {
	User  *models.User `json:"user"`
	Token string       `json:"token"`
}

type Message struct {
	Message string `json:"message"`
}
