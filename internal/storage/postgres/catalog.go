package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/tailor-orders/internal/domain/catalog"
)

const (
	createTypeSQL = `INSERT INTO product_types (name, description) VALUES ($1, $2) RETURNING id`
	getTypeSQL    = `SELECT id, name, description FROM product_types WHERE id = $1`
	listTypesSQL  = `SELECT id, name, description FROM product_types ORDER BY name`
	updateTypeSQL = `UPDATE product_types SET name = $2, description = $3 WHERE id = $1`
	deleteTypeSQL = `DELETE FROM product_types WHERE id = $1`
	typeInUseSQL  = `SELECT EXISTS (SELECT 1 FROM order_items WHERE product_type_id = $1)
		OR EXISTS (SELECT 1 FROM order_items oi JOIN product_sizes ps ON ps.id = oi.product_size_id
			WHERE ps.product_type_id = $1)`

	createSizeSQL   = `INSERT INTO product_sizes (product_type_id, name) VALUES ($1, $2) RETURNING id`
	getSizeSQL      = `SELECT id, product_type_id, name FROM product_sizes WHERE id = $1`
	listSizesSQL    = `SELECT id, product_type_id, name FROM product_sizes ORDER BY product_type_id, name`
	listSizesForSQL = `SELECT id, product_type_id, name FROM product_sizes WHERE product_type_id = $1 ORDER BY name`
	updateSizeSQL   = `UPDATE product_sizes SET name = $2 WHERE id = $1`
	deleteSizeSQL   = `DELETE FROM product_sizes WHERE id = $1`
	sizeInUseSQL    = `SELECT EXISTS (SELECT 1 FROM order_items WHERE product_size_id = $1)`
)

var _ catalog.Repository = (*CatalogRepository)(nil)

// CatalogRepository implements catalog.Repository backed by PostgreSQL.
type CatalogRepository struct {
	pool *pgxpool.Pool
}

// NewCatalogRepository returns a CatalogRepository that uses the given pool.
func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

func (r *CatalogRepository) CreateType(ctx context.Context, t *catalog.ProductType) error {
	err := r.pool.QueryRow(ctx, createTypeSQL, t.Name, t.Description).Scan(&t.ID)
	if isUniqueViolation(err) {
		return catalog.ErrNameTaken
	}
	if err != nil {
		return fmt.Errorf("creating product type %q: %w", t.Name, err)
	}
	return nil
}

func (r *CatalogRepository) GetType(ctx context.Context, id int64) (*catalog.ProductType, error) {
	rows, err := r.pool.Query(ctx, getTypeSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product type %d: %w", id, err)
	}
	t, err := pgx.CollectExactlyOneRow(rows, scanType)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrTypeNotFound
		}
		return nil, fmt.Errorf("getting product type %d: %w", id, err)
	}
	return &t, nil
}

func (r *CatalogRepository) ListTypes(ctx context.Context) ([]catalog.ProductType, error) {
	rows, err := r.pool.Query(ctx, listTypesSQL)
	if err != nil {
		return nil, fmt.Errorf("listing product types: %w", err)
	}
	return pgx.CollectRows(rows, scanType)
}

func (r *CatalogRepository) UpdateType(ctx context.Context, t *catalog.ProductType) error {
	tag, err := r.pool.Exec(ctx, updateTypeSQL, t.ID, t.Name, t.Description)
	if isUniqueViolation(err) {
		return catalog.ErrNameTaken
	}
	if err != nil {
		return fmt.Errorf("updating product type %d: %w", t.ID, err)
	}
	return affectedOne(tag, catalog.ErrTypeNotFound)
}

func (r *CatalogRepository) DeleteType(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, deleteTypeSQL, id)
	if isForeignKeyViolation(err) {
		return catalog.ErrTypeInUse
	}
	if err != nil {
		return fmt.Errorf("deleting product type %d: %w", id, err)
	}
	return affectedOne(tag, catalog.ErrTypeNotFound)
}

func (r *CatalogRepository) TypeInUse(ctx context.Context, id int64) (bool, error) {
	return exists(ctx, r.pool, typeInUseSQL, id)
}

func (r *CatalogRepository) CreateSize(ctx context.Context, s *catalog.ProductSize) error {
	err := r.pool.QueryRow(ctx, createSizeSQL, s.ProductTypeID, s.Name).Scan(&s.ID)
	switch {
	case isUniqueViolation(err):
		return catalog.ErrNameTaken
	case isForeignKeyViolation(err):
		return catalog.ErrTypeNotFound
	case err != nil:
		return fmt.Errorf("creating product size %q: %w", s.Name, err)
	}
	return nil
}

func (r *CatalogRepository) GetSize(ctx context.Context, id int64) (*catalog.ProductSize, error) {
	rows, err := r.pool.Query(ctx, getSizeSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product size %d: %w", id, err)
	}
	s, err := pgx.CollectExactlyOneRow(rows, scanSize)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrSizeNotFound
		}
		return nil, fmt.Errorf("getting product size %d: %w", id, err)
	}
	return &s, nil
}

func (r *CatalogRepository) ListSizes(ctx context.Context, typeID int64) ([]catalog.ProductSize, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if typeID == 0 {
		rows, err = r.pool.Query(ctx, listSizesSQL)
	} else {
		rows, err = r.pool.Query(ctx, listSizesForSQL, typeID)
	}
	if err != nil {
		return nil, fmt.Errorf("listing product sizes: %w", err)
	}
	return pgx.CollectRows(rows, scanSize)
}

func (r *CatalogRepository) UpdateSize(ctx context.Context, s *catalog.ProductSize) error {
	tag, err := r.pool.Exec(ctx, updateSizeSQL, s.ID, s.Name)
	if isUniqueViolation(err) {
		return catalog.ErrNameTaken
	}
	if err != nil {
		return fmt.Errorf("updating product size %d: %w", s.ID, err)
	}
	return affectedOne(tag, catalog.ErrSizeNotFound)
}

func (r *CatalogRepository) DeleteSize(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, deleteSizeSQL, id)
	if isForeignKeyViolation(err) {
		return catalog.ErrSizeInUse
	}
	if err != nil {
		return fmt.Errorf("deleting product size %d: %w", id, err)
	}
	return affectedOne(tag, catalog.ErrSizeNotFound)
}

func (r *CatalogRepository) SizeInUse(ctx context.Context, id int64) (bool, error) {
	return exists(ctx, r.pool, sizeInUseSQL, id)
}

func scanType(row pgx.CollectableRow) (catalog.ProductType, error) {
	var t catalog.ProductType
	err := row.Scan(&t.ID, &t.Name, &t.Description)
	return t, err
}

func scanSize(row pgx.CollectableRow) (catalog.ProductSize, error) {
	var s catalog.ProductSize
	err := row.Scan(&s.ID, &s.ProductTypeID, &s.Name)
	return s, err
}
