package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/tailor-orders/internal/domain/customer"
)

const (
	customerColumns = `id, phone, name, address, created_at`

	insertCustomerSQL = `INSERT INTO customers (phone, name, address) VALUES ($1, $2, $3)
		ON CONFLICT (phone) DO NOTHING`
	getCustomerByPhoneSQL = `SELECT ` + customerColumns + ` FROM customers WHERE phone = $1`
	getCustomerByIDSQL    = `SELECT ` + customerColumns + ` FROM customers WHERE id = $1`
	listCustomersSQL      = `SELECT ` + customerColumns + ` FROM customers
		WHERE $1::text = '' OR name ILIKE '%' || $1 || '%' OR phone LIKE $1 || '%'
		ORDER BY id DESC LIMIT $2 OFFSET $3`
	countCustomersSQL = `SELECT COUNT(*) FROM customers
		WHERE $1::text = '' OR name ILIKE '%' || $1 || '%' OR phone LIKE $1 || '%'`
	updateCustomerSQL = `UPDATE customers SET name = $2, address = $3 WHERE id = $1`
	deleteCustomerSQL = `DELETE FROM customers WHERE id = $1`
	customerOrdersSQL = `SELECT EXISTS (SELECT 1 FROM orders WHERE customer_id = $1)`
)

var _ customer.Repository = (*CustomerRepository)(nil)

// CustomerRepository implements customer.Repository backed by PostgreSQL.
type CustomerRepository struct {
	pool *pgxpool.Pool
}

// NewCustomerRepository returns a CustomerRepository that uses the given pool.
func NewCustomerRepository(pool *pgxpool.Pool) *CustomerRepository {
	return &CustomerRepository{pool: pool}
}

// Upsert inserts c unless the phone is already registered and returns the
// stored row. Concurrent inserts of the same phone converge on one row.
func (r *CustomerRepository) Upsert(ctx context.Context, c customer.Customer) (*customer.Customer, error) {
	return upsertCustomer(ctx, r.pool, c)
}

func (r *CustomerRepository) GetByPhone(ctx context.Context, phone string) (*customer.Customer, error) {
	return getCustomer(ctx, r.pool, getCustomerByPhoneSQL, phone)
}

func (r *CustomerRepository) GetByID(ctx context.Context, id int64) (*customer.Customer, error) {
	return getCustomer(ctx, r.pool, getCustomerByIDSQL, id)
}

func (r *CustomerRepository) List(ctx context.Context, f customer.Filter) ([]customer.Customer, int, error) {
	search := escapeLike(f.Search)

	var total int
	if err := r.pool.QueryRow(ctx, countCustomersSQL, search).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting customers: %w", err)
	}
	rows, err := r.pool.Query(ctx, listCustomersSQL, search, f.Limit, f.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("listing customers: %w", err)
	}
	out, err := pgx.CollectRows(rows, scanCustomer)
	if err != nil {
		return nil, 0, fmt.Errorf("listing customers: %w", err)
	}
	return out, total, nil
}

func (r *CustomerRepository) Update(ctx context.Context, c *customer.Customer) error {
	tag, err := r.pool.Exec(ctx, updateCustomerSQL, c.ID, c.Name, c.Address)
	if err != nil {
		return fmt.Errorf("updating customer %d: %w", c.ID, err)
	}
	return affectedOne(tag, customer.ErrNotFound)
}

func (r *CustomerRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, deleteCustomerSQL, id)
	if isForeignKeyViolation(err) {
		return customer.ErrInUse
	}
	if err != nil {
		return fmt.Errorf("deleting customer %d: %w", id, err)
	}
	return affectedOne(tag, customer.ErrNotFound)
}

func (r *CustomerRepository) HasOrders(ctx context.Context, id int64) (bool, error) {
	return exists(ctx, r.pool, customerOrdersSQL, id)
}

func upsertCustomer(ctx context.Context, q querier, c customer.Customer) (*customer.Customer, error) {
	if _, err := q.Exec(ctx, insertCustomerSQL, c.Phone, c.Name, c.Address); err != nil {
		return nil, fmt.Errorf("inserting customer %q: %w", c.Phone, err)
	}
	return getCustomer(ctx, q, getCustomerByPhoneSQL, c.Phone)
}

func getCustomer(ctx context.Context, q querier, sql string, arg any) (*customer.Customer, error) {
	rows, err := q.Query(ctx, sql, arg)
	if err != nil {
		return nil, fmt.Errorf("getting customer %v: %w", arg, err)
	}
	c, err := pgx.CollectExactlyOneRow(rows, scanCustomer)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, customer.ErrNotFound
		}
		return nil, fmt.Errorf("getting customer %v: %w", arg, err)
	}
	return &c, nil
}

func scanCustomer(row pgx.CollectableRow) (customer.Customer, error) {
	var c customer.Customer
	err := row.Scan(&c.ID, &c.Phone, &c.Name, &c.Address, &c.CreatedAt)
	return c, err
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
