package models

import (
	"time"
)

const (
	CouponTypePercent      = "percent"
	CouponTypeFixedCart    = "fixed_cart"
	CouponTypeFixedProduct = "fixed_product"

	CouponStatusPublish  = "publish"
	CouponStatusDraft    = "draft"
	CouponStatusDisabled = "disabled"
)

const (
	OrderStatusPending    = "pending"
	OrderStatusProcessing = "processing"
	OrderStatusOnHold     = "on-hold"
	OrderStatusCompleted  = "completed"
	OrderStatusCancelled  = "cancelled"
	OrderStatusFailed     = "failed"
	OrderStatusRefunded   = "refunded"
)

type Category struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string    `gorm:"not null"                 json:"name"`
	Description string    `json:"description"`
	ParentID    *uint     `gorm:"index"                    json:"parent_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Product struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string    `gorm:"not null"                 json:"name"`
	Description string    `json:"description"`
	Price       float64   `gorm:"not null"                 json:"price"`
	Stock       uint      `json:"stock"`
	CategoryID  *uint     `gorm:"index"                    json:"category_id"`
	Active      bool      `gorm:"default:true"             json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Coupon struct {
	ID                uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	Code              string     `gorm:"uniqueIndex;not null"     json:"code"`
	DiscountType      string     `gorm:"not null"                 json:"discount_type"`
	Amount            float64    `gorm:"not null"                 json:"amount"`
	UsageCount        int        `gorm:"default:0"                json:"usage_count"`
	UsageLimit        int        `gorm:"default:0"                json:"usage_limit"`
	UsageLimitPerUser int        `gorm:"default:0"                json:"usage_limit_per_user"`
	MinimumAmount     float64    `json:"minimum_amount"`
	MaximumAmount     float64    `json:"maximum_amount"`
	DateExpires       *time.Time `json:"date_expires"`
	Status            string     `gorm:"not null;default:publish" json:"status"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// CouponRedemption is written inside the order-commit transaction and is the
// source of truth for per-user usage limits.
type CouponRedemption struct {
	ID        uint      `gorm:"primaryKey"     json:"id"`
	CouponID  uint      `gorm:"index;not null" json:"coupon_id"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	OrderID   uint      `gorm:"not null"       json:"order_id"`
	Amount    float64   `gorm:"not null"       json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}

type ShippingMethod struct {
	ID            uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name          string    `gorm:"not null"                 json:"name"`
	Cost          float64   `gorm:"not null"                 json:"cost"`
	ShippingType  string    `json:"shipping_type"`
	MinAmount     float64   `json:"min_amount"`
	MaxAmount     float64   `json:"max_amount"`
	Enabled       bool      `gorm:"default:true"             json:"enabled"`
	EstimatedDays int       `json:"estimated_days"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type Order struct {
	ID               uint        `gorm:"primaryKey;autoIncrement" json:"id"`
	Number           string      `gorm:"uniqueIndex;not null"     json:"number"`
	UserID           uint        `gorm:"index;not null"           json:"user_id"`
	Status           string      `gorm:"not null"                 json:"status"`
	NumDays          int         `gorm:"default:1"                json:"num_days"`
	PaymentMethod    string      `json:"payment_method"`
	Region           string      `json:"region"`
	Subtotal         float64     `gorm:"not null"                 json:"subtotal"`
	ManualDiscount   float64     `json:"manual_discount"`
	CouponCode       string      `json:"coupon_code"`
	CouponDiscount   float64     `json:"coupon_discount"`
	ShippingMethodID *uint       `json:"shipping_method_id"`
	ShippingTotal    float64     `json:"shipping_total"`
	ApplyIVA         bool        `json:"apply_iva"`
	IVA              float64     `json:"iva"`
	Total            float64     `gorm:"not null"                 json:"total"`
	Items            []OrderItem `gorm:"foreignKey:OrderID"       json:"items"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

// OrderItem carries the unit price snapshot taken at order creation, not the
// live product price.
type OrderItem struct {
	ID        uint    `gorm:"primaryKey"                  json:"id"`
	OrderID   uint    `gorm:"index;not null"              json:"order_id"`
	ProductID uint    `gorm:"not null"                    json:"product_id"`
	Name      string  `json:"name"`
	UnitPrice float64 `gorm:"not null"                    json:"unit_price"`
	Quantity  uint    `gorm:"default:1;check:quantity>0"  json:"quantity"`
	LineTotal float64 `gorm:"not null"                    json:"line_total"`
}

type User struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Username     string    `gorm:"unique;not null"          json:"username"`
	PasswordHash string    `gorm:"not null"                 json:"-"`
	Role         string    `gorm:"not null"                 json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

type RefreshToken struct {
	ID        uint      `gorm:"primaryKey"      json:"id"`
	Token     string    `gorm:"unique;not null" json:"token"`
	UserID    uint      `gorm:"index;not null"  json:"user_id"`
	ExpiresAt time.Time `gorm:"not null"        json:"expires_at"`
	Revoked   bool      `gorm:"default:false"   json:"revoked"`
}
