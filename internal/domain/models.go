package domain

import "time"

// SaleItem is one line of a recorded sale. Quantities and prices are not
// validated; missing values default to zero.
type SaleItem struct {
	ProductID  string `json:"product_id"`
	Qty        int    `json:"qty"`
	PriceCents int64  `json:"price_cents"`
}

// Sale is a completed transaction. Sales are immutable once recorded; there
// is no update operation anywhere in the system.
type Sale struct {
	ID                   string     `json:"id"`
	Items                []SaleItem `json:"items"`
	SubtotalCents        int64      `json:"subtotal_cents"`
	TotalCents           int64      `json:"total_cents"`
	DiscountCents        int64      `json:"discount_cents"`
	PaymentReceivedCents int64      `json:"payment_received_cents"`
	ChangeCents          int64      `json:"change_cents"`
	Date                 time.Time  `json:"date"`
	Cashier              string     `json:"cashier"`
	StoreLocation        string     `json:"store_location"`
}

// SaleInput carries the caller-supplied fields of a new sale. ID and Date are
// assigned by the sales store.
type SaleInput struct {
	Items                []SaleItem `json:"items"`
	SubtotalCents        int64      `json:"subtotal_cents"`
	TotalCents           int64      `json:"total_cents"`
	DiscountCents        int64      `json:"discount_cents"`
	PaymentReceivedCents int64      `json:"payment_received_cents"`
	ChangeCents          int64      `json:"change_cents"`
	Cashier              string     `json:"cashier"`
	StoreLocation        string     `json:"store_location"`
}

type OrderItem struct {
	ProductID  string `json:"product_id"`
	Qty        int    `json:"qty"`
	PriceCents int64  `json:"price_cents"`
}

type Order struct {
	ID                  string      `json:"id"`
	CustomerName        string      `json:"customer_name"`
	ContactNumber       string      `json:"contact_number"`
	Email               string      `json:"email,omitempty"`
	DeliveryAddress     string      `json:"delivery_address,omitempty"`
	Items               []OrderItem `json:"items"`
	SubtotalCents       int64       `json:"subtotal_cents"`
	TotalCents          int64       `json:"total_cents"`
	DiscountCents       int64       `json:"discount_cents"`
	Status              string      `json:"status"`
	PaymentMethod       string      `json:"payment_method"`
	OrderDate           time.Time   `json:"order_date"`
	Notes               string      `json:"notes,omitempty"`
	CreatedBy           string      `json:"created_by,omitempty"`
	FinalAmountCents    int64       `json:"final_amount_cents"`
	AdvancePaymentCents int64       `json:"advance_payment_cents"`
	// SaleCreated flips true exactly once, when the completed order has been
	// materialized into a sale record.
	SaleCreated bool `json:"sale_created"`
}

// OrderInput carries the caller-supplied fields of a new order. ID, OrderDate
// and SaleCreated are assigned by the order store.
type OrderInput struct {
	CustomerName        string      `json:"customer_name"`
	ContactNumber       string      `json:"contact_number"`
	Email               string      `json:"email,omitempty"`
	DeliveryAddress     string      `json:"delivery_address,omitempty"`
	Items               []OrderItem `json:"items"`
	SubtotalCents       int64       `json:"subtotal_cents"`
	TotalCents          int64       `json:"total_cents"`
	DiscountCents       int64       `json:"discount_cents"`
	Status              string      `json:"status"`
	PaymentMethod       string      `json:"payment_method"`
	Notes               string      `json:"notes,omitempty"`
	CreatedBy           string      `json:"created_by,omitempty"`
	FinalAmountCents    int64       `json:"final_amount_cents"`
	AdvancePaymentCents int64       `json:"advance_payment_cents"`
}

// OrderPatch is a partial update. Only non-nil fields are applied, as a
// shallow overwrite of the matching order.
type OrderPatch struct {
	CustomerName        *string      `json:"customer_name,omitempty"`
	ContactNumber       *string      `json:"contact_number,omitempty"`
	Email               *string      `json:"email,omitempty"`
	DeliveryAddress     *string      `json:"delivery_address,omitempty"`
	Items               *[]OrderItem `json:"items,omitempty"`
	SubtotalCents       *int64       `json:"subtotal_cents,omitempty"`
	TotalCents          *int64       `json:"total_cents,omitempty"`
	DiscountCents       *int64       `json:"discount_cents,omitempty"`
	Status              *string      `json:"status,omitempty"`
	PaymentMethod       *string      `json:"payment_method,omitempty"`
	Notes               *string      `json:"notes,omitempty"`
	FinalAmountCents    *int64       `json:"final_amount_cents,omitempty"`
	AdvancePaymentCents *int64       `json:"advance_payment_cents,omitempty"`
}

// ActivityEntry records who did what. Entries are append-only.
type ActivityEntry struct {
	ID        string    `json:"id"`
	Actor     string    `json:"actor"`
	EventType string    `json:"event_type"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

const (
	OrderStatusPending    = "pending"
	OrderStatusProcessing = "processing"
	OrderStatusCompleted  = "completed"
	OrderStatusCancelled  = "cancelled"
)

const (
	PaymentMethodCash         = "cash"
	PaymentMethodCard         = "card"
	PaymentMethodMobile       = "mobile"
	PaymentMethodBankTransfer = "bank_transfer"
)

const (
	EventOrderCreated         = "ORDER_CREATED"
	EventOrderStatusUpdated   = "ORDER_STATUS_UPDATED"
	EventOrderDeleted         = "ORDER_DELETED"
	EventSaleRecorded         = "SALE_RECORDED"
	EventSaleCreatedFromOrder = "SALE_CREATED_FROM_ORDER"
	EventSalesCleared         = "SALES_CLEARED"
)

// DefaultActor attributes store-initiated activity when no creator is known.
const DefaultActor = "system"

// DefaultCashier is recorded on sales derived from orders without a creator.
const DefaultCashier = "System"

func IsValidOrderStatus(status string) bool {
	switch status {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusCompleted, OrderStatusCancelled:
		return true
	}
	return false
}

func IsValidPaymentMethod(method string) bool {
	switch method {
	case PaymentMethodCash, PaymentMethodCard, PaymentMethodMobile, PaymentMethodBankTransfer:
		return true
	}
	return false
}
