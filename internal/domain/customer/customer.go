package customer

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

var (
	// ErrNotFound is returned when no customer matches the lookup.
	ErrNotFound = errors.New("customer not found")
	// ErrInUse is returned when deleting a customer that still has orders.
	ErrInUse = errors.New("customer has orders")
)

// PhoneLength is the number of digits in a local phone number.
const PhoneLength = 11

// Customer is identified by a unique local phone number. Name and address are
// set by the first order that introduces the phone and are never overwritten
// by later orders.
type Customer struct {
	ID        int64
	Phone     string
	Name      string
	Address   string
	CreatedAt time.Time
}

// ValidPhone reports whether phone is exactly PhoneLength ASCII digits.
func ValidPhone(phone string) bool {
	if len(phone) != PhoneLength {
		return false
	}
	for i := range len(phone) {
		if phone[i] < '0' || phone[i] > '9' {
			return false
		}
	}
	return true
}

// Filter narrows a customer listing.
type Filter struct {
	Search string
	Limit  int
	Offset int
}

// Repository persists customers.
type Repository interface {
	// Upsert inserts c unless its phone already exists and returns the stored
	// row either way. Stored name and address are never modified.
	Upsert(ctx context.Context, c Customer) (*Customer, error)
	GetByPhone(ctx context.Context, phone string) (*Customer, error)
	GetByID(ctx context.Context, id int64) (*Customer, error)
	List(ctx context.Context, f Filter) ([]Customer, int, error)
	Update(ctx context.Context, c *Customer) error
	Delete(ctx context.Context, id int64) error
	HasOrders(ctx context.Context, id int64) (bool, error)
}

// Cache holds lookup results keyed by phone.
type Cache interface {
	Get(ctx context.Context, phone string) (*Customer, bool, error)
	Set(ctx context.Context, c *Customer) error
	Delete(ctx context.Context, phone string) error
}

type nopCache struct{}

func (nopCache) Get(context.Context, string) (*Customer, bool, error) { return nil, false, nil }
func (nopCache) Set(context.Context, *Customer) error                 { return nil }
func (nopCache) Delete(context.Context, string) error                 { return nil }
