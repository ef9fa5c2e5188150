package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/tailor-orders/internal/domain/customer"
)

// ErrNotFound is returned when a requested order does not exist.
var ErrNotFound = errors.New("order not found")

// DiscountType selects how Order.DiscountAmount is interpreted.
type DiscountType string

const (
	// DiscountFixed subtracts DiscountAmount, capped at the subtotal.
	DiscountFixed DiscountType = "fixed"
	// DiscountPercentage subtracts DiscountAmount percent of the subtotal.
	DiscountPercentage DiscountType = "percentage"
)

// PaymentMethod enumerates how a payment was received.
type PaymentMethod string

const (
	MethodCash  PaymentMethod = "cash"
	MethodBkash PaymentMethod = "bkash"
	MethodNagad PaymentMethod = "nagad"
	MethodBank  PaymentMethod = "bank"
	// MethodNone marks an order created without an initial payment.
	MethodNone PaymentMethod = "none"
)

// IsMFS reports whether m is a mobile financial service.
func (m PaymentMethod) IsMFS() bool {
	return m == MethodBkash || m == MethodNagad
}

func (m PaymentMethod) valid() bool {
	switch m {
	case MethodCash, MethodBkash, MethodNagad, MethodBank, MethodNone:
		return true
	}
	return false
}

// Order is a customer order placed at a shop. Subtotal, DiscountValue, Total,
// AdvancePaid and Due are derived and recomputed whenever items or payments change.
type Order struct {
	ID             int64
	Number         string
	ShopID         int64
	CustomerID     int64
	DeliveryDate   time.Time
	DiscountType   DiscountType
	DiscountAmount decimal.Decimal
	DiscountValue  decimal.Decimal
	Subtotal       decimal.Decimal
	Total          decimal.Decimal
	AdvancePaid    decimal.Decimal
	Due            decimal.Decimal
	Status         Status
	Notes          string
	CreatedBy      int64
	CreatedAt      time.Time
	UpdatedAt      time.Time

	Customer *customer.Customer
	Items    []Item
	Payments []Payment
}

// Item is a single line of an order.
type Item struct {
	ID            int64
	OrderID       int64
	ProductTypeID int64
	ProductSizeID int64
	Quantity      int
	UnitPrice     decimal.Decimal
	LineTotal     decimal.Decimal
	Notes         string
}

// Payment is an append-only record of money received against an order.
type Payment struct {
	ID            int64
	OrderID       int64
	Method        PaymentMethod
	Amount        decimal.Decimal
	TransactionID string
	BankName      string
	AccountNumber string
	MFSProvider   string
	MFSNumber     string
	RecordedBy    int64
	PaidAt        time.Time
}

// Filter narrows an order listing.
type Filter struct {
	ShopID int64
	Status Status
	Phone  string
	Limit  int
	Offset int
}

// Store is the persistence boundary of the order workflow. Every mutation
// runs inside InTx so that a failing step leaves no partial state.
type Store interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Get(ctx context.Context, id int64) (*Order, error)
	List(ctx context.Context, f Filter) ([]Order, int, error)
}

// Tx exposes the operations available inside a workflow transaction.
type Tx interface {
	SequenceStore
	LedgerStore

	// ShopExists reports whether the shop is present.
	ShopExists(ctx context.Context, shopID int64) (bool, error)
	// UpsertCustomer returns the stored customer for c.Phone, inserting c
	// when the phone is new.
	UpsertCustomer(ctx context.Context, c customer.Customer) (*customer.Customer, error)
	// SizeOfType reports whether sizeID exists and belongs to typeID.
	SizeOfType(ctx context.Context, typeID, sizeID int64) (bool, error)
	// CreateOrder inserts o and its items, assigning ids.
	CreateOrder(ctx context.Context, o *Order) error
	// GetForUpdate loads an order with items and locks its row.
	GetForUpdate(ctx context.Context, id int64) (*Order, error)
	// ReplaceItems swaps the order's item set.
	ReplaceItems(ctx context.Context, orderID int64, items []Item) error
	// UpdateOrder persists discount, totals, balances, delivery date, notes and status.
	UpdateOrder(ctx context.Context, o *Order) error
}
