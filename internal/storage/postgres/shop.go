package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/tailor-orders/internal/domain/shop"
)

const (
	shopColumns = `id, code, name, address, phone, next_order_sequence, created_at`

	createShopSQL = `INSERT INTO shops (code, name, address, phone, next_order_sequence)
		VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at`
	getShopSQL    = `SELECT ` + shopColumns + ` FROM shops WHERE id = $1`
	listShopsSQL  = `SELECT ` + shopColumns + ` FROM shops ORDER BY code`
	updateShopSQL = `UPDATE shops SET code = $2, name = $3, address = $4, phone = $5 WHERE id = $1`
	deleteShopSQL = `DELETE FROM shops WHERE id = $1`
	shopOrdersSQL = `SELECT EXISTS (SELECT 1 FROM orders WHERE shop_id = $1)`
)

var _ shop.Repository = (*ShopRepository)(nil)

// ShopRepository implements shop.Repository backed by PostgreSQL.
type ShopRepository struct {
	pool *pgxpool.Pool
}

// NewShopRepository returns a ShopRepository that uses the given pool.
func NewShopRepository(pool *pgxpool.Pool) *ShopRepository {
	return &ShopRepository{pool: pool}
}

func (r *ShopRepository) Create(ctx context.Context, s *shop.Shop) error {
	err := r.pool.QueryRow(ctx, createShopSQL, s.Code, s.Name, s.Address, s.Phone, s.NextOrderSequence).
		Scan(&s.ID, &s.CreatedAt)
	if isUniqueViolation(err) {
		return shop.ErrCodeTaken
	}
	if err != nil {
		return fmt.Errorf("creating shop %q: %w", s.Code, err)
	}
	return nil
}

func (r *ShopRepository) Get(ctx context.Context, id int64) (*shop.Shop, error) {
	rows, err := r.pool.Query(ctx, getShopSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting shop %d: %w", id, err)
	}
	s, err := pgx.CollectExactlyOneRow(rows, scanShop)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shop.ErrNotFound
		}
		return nil, fmt.Errorf("getting shop %d: %w", id, err)
	}
	return &s, nil
}

func (r *ShopRepository) List(ctx context.Context) ([]shop.Shop, error) {
	rows, err := r.pool.Query(ctx, listShopsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing shops: %w", err)
	}
	return pgx.CollectRows(rows, scanShop)
}

func (r *ShopRepository) Update(ctx context.Context, s *shop.Shop) error {
	tag, err := r.pool.Exec(ctx, updateShopSQL, s.ID, s.Code, s.Name, s.Address, s.Phone)
	if isUniqueViolation(err) {
		return shop.ErrCodeTaken
	}
	if err != nil {
		return fmt.Errorf("updating shop %d: %w", s.ID, err)
	}
	return affectedOne(tag, shop.ErrNotFound)
}

func (r *ShopRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, deleteShopSQL, id)
	if isForeignKeyViolation(err) {
		return shop.ErrInUse
	}
	if err != nil {
		return fmt.Errorf("deleting shop %d: %w", id, err)
	}
	return affectedOne(tag, shop.ErrNotFound)
}

func (r *ShopRepository) HasOrders(ctx context.Context, id int64) (bool, error) {
	return exists(ctx, r.pool, shopOrdersSQL, id)
}

func scanShop(row pgx.CollectableRow) (shop.Shop, error) {
	var s shop.Shop
	err := row.Scan(&s.ID, &s.Code, &s.Name, &s.Address, &s.Phone, &s.NextOrderSequence, &s.CreatedAt)
	return s, err
}
