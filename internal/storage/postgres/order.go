package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/tailor-orders/internal/domain/customer"
	"github.com/xenking/tailor-orders/internal/domain/order"
	"github.com/xenking/tailor-orders/internal/domain/shop"
)

const (
	orderColumns = `o.id, o.order_number, o.shop_id, o.customer_id, o.delivery_date,
		o.discount_type, o.discount_amount, o.discount_value, o.subtotal, o.total_amount,
		o.advance_paid, o.due_amount, o.status, o.notes, COALESCE(o.created_by, 0),
		o.created_at, o.updated_at`
	orderCustomerColumns = orderColumns + `, c.id, c.phone, c.name, c.address, c.created_at`

	orderFilter = `WHERE ($1::bigint = 0 OR o.shop_id = $1)
		AND ($2::text = '' OR o.status = $2)
		AND ($3::text = '' OR c.phone = $3)`

	getOrderSQL = `SELECT ` + orderCustomerColumns + `
		FROM orders o JOIN customers c ON c.id = o.customer_id WHERE o.id = $1`
	listOrdersSQL = `SELECT ` + orderCustomerColumns + `
		FROM orders o JOIN customers c ON c.id = o.customer_id ` + orderFilter + `
		ORDER BY o.id DESC LIMIT $4 OFFSET $5`
	countOrdersSQL = `SELECT COUNT(*) FROM orders o JOIN customers c ON c.id = o.customer_id ` + orderFilter
	lockOrderSQL   = `SELECT ` + orderColumns + ` FROM orders o WHERE o.id = $1 FOR UPDATE`

	createOrderSQL = `INSERT INTO orders (order_number, shop_id, customer_id, delivery_date,
			discount_type, discount_amount, discount_value, subtotal, total_amount,
			advance_paid, due_amount, status, notes, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NULLIF($14::bigint, 0))
		RETURNING id, created_at, updated_at`
	updateOrderSQL = `UPDATE orders SET delivery_date = $2, discount_type = $3, discount_amount = $4,
			discount_value = $5, subtotal = $6, total_amount = $7, advance_paid = $8,
			due_amount = $9, status = $10, notes = $11, updated_at = NOW()
		WHERE id = $1 RETURNING updated_at`
	updateBalancesSQL = `UPDATE orders SET advance_paid = $2, due_amount = $3, updated_at = NOW() WHERE id = $1`

	nextSequenceSQL = `UPDATE shops SET next_order_sequence = next_order_sequence + 1
		WHERE id = $1 RETURNING code, next_order_sequence - 1`
	shopExistsSQL = `SELECT EXISTS (SELECT 1 FROM shops WHERE id = $1)`
	sizeOfTypeSQL = `SELECT EXISTS (SELECT 1 FROM product_sizes WHERE id = $1 AND product_type_id = $2)`

	listItemsSQL = `SELECT id, order_id, product_type_id, product_size_id, quantity, unit_price, line_total, notes
		FROM order_items WHERE order_id = $1 ORDER BY id`
	insertItemSQL = `INSERT INTO order_items (order_id, product_type_id, product_size_id, quantity, unit_price, line_total, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`
	deleteItemsSQL = `DELETE FROM order_items WHERE order_id = $1`

	listPaymentsSQL = `SELECT id, order_id, method, amount, transaction_id, bank_name, account_number,
			mfs_provider, mfs_number, COALESCE(recorded_by, 0), paid_at
		FROM payments WHERE order_id = $1 ORDER BY paid_at, id`
	insertPaymentSQL = `INSERT INTO payments (order_id, method, amount, transaction_id, bank_name,
			account_number, mfs_provider, mfs_number, recorded_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9::bigint, 0))
		RETURNING id, paid_at`
	sumPaymentsSQL = `SELECT COALESCE(SUM(amount), 0) FROM payments WHERE order_id = $1`
)

var (
	_ order.Store = (*OrderStore)(nil)
	_ order.Tx    = (*orderTx)(nil)
)

// OrderStore implements order.Store backed by PostgreSQL.
type OrderStore struct {
	pool *pgxpool.Pool
}

// NewOrderStore returns an OrderStore that uses the given pool.
func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

// InTx runs fn in a read-committed transaction, committing when fn returns nil.
func (s *OrderStore) InTx(ctx context.Context, fn func(ctx context.Context, tx order.Tx) error) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(ctx, &orderTx{q: tx})
	})
}

// Get loads an order with its customer, items and payments.
func (s *OrderStore) Get(ctx context.Context, id int64) (*order.Order, error) {
	rows, err := s.pool.Query(ctx, getOrderSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %d: %w", id, err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrderWithCustomer)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %d: %w", id, err)
	}
	if o.Items, err = listItems(ctx, s.pool, id); err != nil {
		return nil, err
	}
	if o.Payments, err = listPayments(ctx, s.pool, id); err != nil {
		return nil, err
	}
	return &o, nil
}

// List returns a page of orders with their customers, newest first.
func (s *OrderStore) List(ctx context.Context, f order.Filter) ([]order.Order, int, error) {
	var total int
	if err := s.pool.QueryRow(ctx, countOrdersSQL, f.ShopID, string(f.Status), f.Phone).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting orders: %w", err)
	}
	rows, err := s.pool.Query(ctx, listOrdersSQL, f.ShopID, string(f.Status), f.Phone, f.Limit, f.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("listing orders: %w", err)
	}
	out, err := pgx.CollectRows(rows, scanOrderWithCustomer)
	if err != nil {
		return nil, 0, fmt.Errorf("listing orders: %w", err)
	}
	return out, total, nil
}

type orderTx struct {
	q pgx.Tx
}

func (t *orderTx) ShopExists(ctx context.Context, shopID int64) (bool, error) {
	return exists(ctx, t.q, shopExistsSQL, shopID)
}

// NextOrderSequence increments the shop counter and returns the previous
// value. The UPDATE holds the shop row lock until the transaction ends, so
// concurrent creations for one shop serialize here.
func (t *orderTx) NextOrderSequence(ctx context.Context, shopID int64) (string, int64, error) {
	var (
		code string
		seq  int64
	)
	err := t.q.QueryRow(ctx, nextSequenceSQL, shopID).Scan(&code, &seq)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", 0, shop.ErrNotFound
	}
	if err != nil {
		return "", 0, fmt.Errorf("advancing sequence for shop %d: %w", shopID, err)
	}
	return code, seq, nil
}

func (t *orderTx) UpsertCustomer(ctx context.Context, c customer.Customer) (*customer.Customer, error) {
	return upsertCustomer(ctx, t.q, c)
}

func (t *orderTx) SizeOfType(ctx context.Context, typeID, sizeID int64) (bool, error) {
	return exists(ctx, t.q, sizeOfTypeSQL, sizeID, typeID)
}

func (t *orderTx) CreateOrder(ctx context.Context, o *order.Order) error {
	err := t.q.QueryRow(ctx, createOrderSQL,
		o.Number, o.ShopID, o.CustomerID, o.DeliveryDate,
		string(o.DiscountType), o.DiscountAmount, o.DiscountValue, o.Subtotal, o.Total,
		o.AdvancePaid, o.Due, string(o.Status), o.Notes, o.CreatedBy,
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.Number, err)
	}
	return t.insertItems(ctx, o.ID, o.Items)
}

func (t *orderTx) GetForUpdate(ctx context.Context, id int64) (*order.Order, error) {
	rows, err := t.q.Query(ctx, lockOrderSQL, id)
	if err != nil {
		return nil, fmt.Errorf("locking order %d: %w", id, err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("locking order %d: %w", id, err)
	}
	if o.Items, err = listItems(ctx, t.q, id); err != nil {
		return nil, err
	}
	return &o, nil
}

func (t *orderTx) ReplaceItems(ctx context.Context, orderID int64, items []order.Item) error {
	if _, err := t.q.Exec(ctx, deleteItemsSQL, orderID); err != nil {
		return fmt.Errorf("deleting items of order %d: %w", orderID, err)
	}
	return t.insertItems(ctx, orderID, items)
}

func (t *orderTx) UpdateOrder(ctx context.Context, o *order.Order) error {
	err := t.q.QueryRow(ctx, updateOrderSQL,
		o.ID, o.DeliveryDate, string(o.DiscountType), o.DiscountAmount, o.DiscountValue,
		o.Subtotal, o.Total, o.AdvancePaid, o.Due, string(o.Status), o.Notes,
	).Scan(&o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return order.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("updating order %d: %w", o.ID, err)
	}
	return nil
}

func (t *orderTx) AppendPayment(ctx context.Context, p *order.Payment) error {
	err := t.q.QueryRow(ctx, insertPaymentSQL,
		p.OrderID, string(p.Method), p.Amount, p.TransactionID, p.BankName,
		p.AccountNumber, p.MFSProvider, p.MFSNumber, p.RecordedBy,
	).Scan(&p.ID, &p.PaidAt)
	if err != nil {
		return fmt.Errorf("inserting payment for order %d: %w", p.OrderID, err)
	}
	return nil
}

func (t *orderTx) SumPayments(ctx context.Context, orderID int64) (decimal.Decimal, error) {
	var sum decimal.Decimal
	if err := t.q.QueryRow(ctx, sumPaymentsSQL, orderID).Scan(&sum); err != nil {
		return decimal.Zero, fmt.Errorf("summing payments of order %d: %w", orderID, err)
	}
	return sum, nil
}

func (t *orderTx) UpdateBalances(ctx context.Context, orderID int64, advancePaid, due decimal.Decimal) error {
	tag, err := t.q.Exec(ctx, updateBalancesSQL, orderID, advancePaid, due)
	if err != nil {
		return fmt.Errorf("updating balances of order %d: %w", orderID, err)
	}
	return affectedOne(tag, order.ErrNotFound)
}

func (t *orderTx) insertItems(ctx context.Context, orderID int64, items []order.Item) error {
	for i := range items {
		it := &items[i]
		it.OrderID = orderID
		err := t.q.QueryRow(ctx, insertItemSQL,
			orderID, it.ProductTypeID, it.ProductSizeID, it.Quantity, it.UnitPrice, it.LineTotal, it.Notes,
		).Scan(&it.ID)
		if err != nil {
			return fmt.Errorf("inserting item %d of order %d: %w", i, orderID, err)
		}
	}
	return nil
}

func listItems(ctx context.Context, q querier, orderID int64) ([]order.Item, error) {
	rows, err := q.Query(ctx, listItemsSQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("listing items of order %d: %w", orderID, err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (order.Item, error) {
		var it order.Item
		err := row.Scan(&it.ID, &it.OrderID, &it.ProductTypeID, &it.ProductSizeID,
			&it.Quantity, &it.UnitPrice, &it.LineTotal, &it.Notes)
		return it, err
	})
}

func listPayments(ctx context.Context, q querier, orderID int64) ([]order.Payment, error) {
	rows, err := q.Query(ctx, listPaymentsSQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("listing payments of order %d: %w", orderID, err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (order.Payment, error) {
		var (
			p      order.Payment
			method string
		)
		err := row.Scan(&p.ID, &p.OrderID, &method, &p.Amount, &p.TransactionID, &p.BankName,
			&p.AccountNumber, &p.MFSProvider, &p.MFSNumber, &p.RecordedBy, &p.PaidAt)
		p.Method = order.PaymentMethod(method)
		return p, err
	})
}

func orderDest(o *order.Order, discountType, status *string) []any {
	return []any{
		&o.ID, &o.Number, &o.ShopID, &o.CustomerID, &o.DeliveryDate,
		discountType, &o.DiscountAmount, &o.DiscountValue, &o.Subtotal, &o.Total,
		&o.AdvancePaid, &o.Due, status, &o.Notes, &o.CreatedBy,
		&o.CreatedAt, &o.UpdatedAt,
	}
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o                    order.Order
		discountType, status string
	)
	err := row.Scan(orderDest(&o, &discountType, &status)...)
	o.DiscountType = order.DiscountType(discountType)
	o.Status = order.Status(status)
	return o, err
}

func scanOrderWithCustomer(row pgx.CollectableRow) (order.Order, error) {
	var (
		o                    order.Order
		c                    customer.Customer
		discountType, status string
	)
	dest := append(orderDest(&o, &discountType, &status), &c.ID, &c.Phone, &c.Name, &c.Address, &c.CreatedAt)
	err := row.Scan(dest...)
	o.DiscountType = order.DiscountType(discountType)
	o.Status = order.Status(status)
	o.Customer = &c
	return o, err
}
