// Package catalog manages the garment types and sizes that order items refer to.
package catalog

import (
	"context"
	"strings"

	"github.com/go-faster/errors"

	"github.com/xenking/tailor-orders/internal/domain/validation"
)

var (
	ErrTypeNotFound = errors.New("product type not found")
	ErrSizeNotFound = errors.New("product size not found")
	// ErrTypeInUse is returned when order items reference the type or its sizes.
	ErrTypeInUse = errors.New("product type is used by orders and cannot be deleted")
	// ErrSizeInUse is returned when order items reference the size.
	ErrSizeInUse = errors.New("product size is used by orders and cannot be deleted")
	ErrNameTaken = errors.New("name already in use")
)

// ProductType is a garment category such as "Shirt" or "Panjabi".
type ProductType struct {
	ID          int64
	Name        string
	Description string
}

// ProductSize is a size offered for one product type.
type ProductSize struct {
	ID            int64
	ProductTypeID int64
	Name          string
}

// Repository persists product types and sizes.
type Repository interface {
	CreateType(ctx context.Context, t *ProductType) error
	GetType(ctx context.Context, id int64) (*ProductType, error)
	ListTypes(ctx context.Context) ([]ProductType, error)
	UpdateType(ctx context.Context, t *ProductType) error
	DeleteType(ctx context.Context, id int64) error
	TypeInUse(ctx context.Context, id int64) (bool, error)

	CreateSize(ctx context.Context, s *ProductSize) error
	GetSize(ctx context.Context, id int64) (*ProductSize, error)
	ListSizes(ctx context.Context, typeID int64) ([]ProductSize, error)
	UpdateSize(ctx context.Context, s *ProductSize) error
	DeleteSize(ctx context.Context, id int64) error
	SizeInUse(ctx context.Context, id int64) (bool, error)
}

// Service implements catalog maintenance with deletion guards.
type Service struct {
	repo Repository
}

// NewService creates a catalog Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) CreateType(ctx context.Context, name, description string) (*ProductType, error) {
	t := &ProductType{Name: strings.TrimSpace(name), Description: strings.TrimSpace(description)}
	if t.Name == "" {
		return nil, validation.New("name", "is required")
	}
	if err := s.repo.CreateType(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Service) GetType(ctx context.Context, id int64) (*ProductType, error) {
	return s.repo.GetType(ctx, id)
}

func (s *Service) ListTypes(ctx context.Context) ([]ProductType, error) {
	return s.repo.ListTypes(ctx)
}

func (s *Service) UpdateType(ctx context.Context, id int64, name, description string) (*ProductType, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, validation.New("name", "is required")
	}
	t, err := s.repo.GetType(ctx, id)
	if err != nil {
		return nil, err
	}
	t.Name = name
	t.Description = strings.TrimSpace(description)
	if err := s.repo.UpdateType(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// DeleteType removes a type and its sizes when no order item references either.
func (s *Service) DeleteType(ctx context.Context, id int64) error {
	if _, err := s.repo.GetType(ctx, id); err != nil {
		return err
	}
	used, err := s.repo.TypeInUse(ctx, id)
	if err != nil {
		return errors.Wrap(err, "check product type usage")
	}
	if used {
		return ErrTypeInUse
	}
	return s.repo.DeleteType(ctx, id)
}

func (s *Service) CreateSize(ctx context.Context, typeID int64, name string) (*ProductSize, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, validation.New("name", "is required")
	}
	if _, err := s.repo.GetType(ctx, typeID); err != nil {
		return nil, err
	}
	sz := &ProductSize{ProductTypeID: typeID, Name: name}
	if err := s.repo.CreateSize(ctx, sz); err != nil {
		return nil, err
	}
	return sz, nil
}

func (s *Service) GetSize(ctx context.Context, id int64) (*ProductSize, error) {
	return s.repo.GetSize(ctx, id)
}

// ListSizes returns sizes for a type, or all sizes when typeID is zero.
func (s *Service) ListSizes(ctx context.Context, typeID int64) ([]ProductSize, error) {
	return s.repo.ListSizes(ctx, typeID)
}

func (s *Service) UpdateSize(ctx context.Context, id int64, name string) (*ProductSize, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, validation.New("name", "is required")
	}
	sz, err := s.repo.GetSize(ctx, id)
	if err != nil {
		return nil, err
	}
	sz.Name = name
	if err := s.repo.UpdateSize(ctx, sz); err != nil {
		return nil, err
	}
	return sz, nil
}

// DeleteSize removes a size when no order item references it.
func (s *Service) DeleteSize(ctx context.Context, id int64) error {
	if _, err := s.repo.GetSize(ctx, id); err != nil {
		return err
	}
	used, err := s.repo.SizeInUse(ctx, id)
	if err != nil {
		return errors.Wrap(err, "check product size usage")
	}
	if used {
		return ErrSizeInUse
	}
	return s.repo.DeleteSize(ctx, id)
}
