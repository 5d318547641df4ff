package models

import (
	"time"
)

const (
	OrderStatusPending    = "pending"
	OrderStatusProcessing = "processing"
	OrderStatusShipped    = "shipped"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancelled  = "cancelled"
	OrderStatusRefunded   = "refunded"
)

// TerminalStatus reports whether no further transition may leave the status.
func TerminalStatus(s string) bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled || s == OrderStatusRefunded
}

type Product struct {
	ID          uint    `gorm:"primaryKey;autoIncrement"  json:"id"`
	Name        string  `gorm:"not null"                  json:"name"`
	Description string  `gorm:"not null"                  json:"description"`
	Price       float64 `gorm:"not null"                  json:"price"`
	Inventory   uint    `json:"inventory"`
	Active      bool    `gorm:"default:true"              json:"active"`
}

type User struct {
	ID           uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Username     string `gorm:"unique;not null"          json:"username"`
	Email        string `gorm:"index"                    json:"email"`
	PasswordHash string `gorm:"not null"                 json:"-"`
	Role         string `gorm:"not null"                 json:"role"`
}

type RefreshToken struct {
	ID        uint   `gorm:"primaryKey"          json:"id"`
	Token     string `gorm:"unique;not null"     json:"token"`
	UserID    uint   `gorm:"index;not null"      json:"user_id"`
	Role      string `json:"role"`
	ExpiresAt int64  `gorm:"not null"            json:"expires_at"`
	Revoked   bool   `gorm:"default:false"       json:"revoked"`
}

type Address struct {
	ID         uint   `gorm:"primaryKey"     json:"id"`
	UserID     uint   `gorm:"index;not null" json:"user_id"`
	Line1      string `gorm:"not null"       json:"line1"`
	Line2      string `json:"line2"`
	City       string `gorm:"not null"       json:"city"`
	State      string `json:"state"`
	PostalCode string `gorm:"not null"       json:"postal_code"`
	Country    string `gorm:"not null"       json:"country"`
}

// CartItem belongs either to a user (UserID set) or to an anonymous
// device identified by CartToken. Exactly one of the two is set.
type CartItem struct {
	ID        uint      `gorm:"primaryKey"                                 json:"id"`
	UserID    uint      `gorm:"index:idx_cart_user_product,unique"         json:"user_id"`
	CartToken string    `gorm:"index:idx_cart_user_product,unique"         json:"-"`
	ProductID uint      `gorm:"index:idx_cart_user_product,unique;not null" json:"product_id"`
	Quantity  uint      `gorm:"check:quantity>0"                           json:"quantity"`
	UnitPrice float64   `json:"unit_price"`
	CreatedAt time.Time `json:"created_at"`
}

type Order struct {
	ID                    uint      `gorm:"primaryKey"       json:"id"`
	UserID                uint      `gorm:"index;not null"   json:"user_id"`
	Status                string    `gorm:"not null"         json:"status"`
	Total                 float64   `gorm:"not null"         json:"total"`
	Currency              string    `gorm:"not null"         json:"currency"`
	ShippingAddressID     uint      `json:"shipping_address_id"`
	BillingAddressID      uint      `json:"billing_address_id"`
	StripeSessionID       string    `gorm:"uniqueIndex;not null" json:"stripe_session_id"`
	StripePaymentIntentID string    `gorm:"index"            json:"stripe_payment_intent_id"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

type OrderItem struct {
	ID        uint    `gorm:"primaryKey"     json:"id"`
	OrderID   uint    `gorm:"index;not null" json:"order_id"`
	ProductID uint    `gorm:"not null"       json:"product_id"`
	Quantity  uint    `gorm:"not null"       json:"quantity"`
	UnitPrice float64 `gorm:"not null"       json:"unit_price"`
	LineTotal float64 `gorm:"not null"       json:"line_total"`
}
