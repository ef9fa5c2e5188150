package customer

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/tailor-orders/internal/domain/validation"
)

// Service implements customer lookup and maintenance.
type Service struct {
	repo  Repository
	cache Cache
}

// NewService creates a customer Service. A nil cache disables caching.
func NewService(repo Repository, cache Cache) *Service {
	if cache == nil {
		cache = nopCache{}
	}
	return &Service{repo: repo, cache: cache}
}

// Lookup finds a customer by phone, consulting the cache first. Cache
// failures are logged and fall back to the repository.
func (s *Service) Lookup(ctx context.Context, phone string) (*Customer, error) {
	if !ValidPhone(phone) {
		return nil, validation.New("phone", "must be exactly 11 digits")
	}
	lg := zctx.From(ctx)

	c, ok, err := s.cache.Get(ctx, phone)
	if err != nil {
		lg.Warn("Customer cache read failed", zap.Error(err))
	}
	if ok {
		return c, nil
	}

	c, err = s.repo.GetByPhone(ctx, phone)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, c); err != nil {
		lg.Warn("Customer cache write failed", zap.Error(err))
	}
	return c, nil
}

// Get returns a customer by id.
func (s *Service) Get(ctx context.Context, id int64) (*Customer, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns a page of customers and the total match count.
func (s *Service) List(ctx context.Context, f Filter) ([]Customer, int, error) {
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 20
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	f.Search = strings.TrimSpace(f.Search)
	return s.repo.List(ctx, f)
}

// UpdateRequest edits a customer's contact details. The phone is immutable.
type UpdateRequest struct {
	Name    string
	Address string
}

// Update changes name and address and drops the cached lookup.
func (s *Service) Update(ctx context.Context, id int64, req UpdateRequest) (*Customer, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, validation.New("name", "is required")
	}

	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.Name = name
	c.Address = strings.TrimSpace(req.Address)
	if err := s.repo.Update(ctx, c); err != nil {
		return nil, errors.Wrap(err, "update customer")
	}
	s.invalidate(ctx, c.Phone)
	return c, nil
}

// Delete removes a customer that has no orders.
func (s *Service) Delete(ctx context.Context, id int64) error {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	used, err := s.repo.HasOrders(ctx, id)
	if err != nil {
		return errors.Wrap(err, "check customer orders")
	}
	if used {
		return ErrInUse
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return errors.Wrap(err, "delete customer")
	}
	s.invalidate(ctx, c.Phone)
	return nil
}

func (s *Service) invalidate(ctx context.Context, phone string) {
	if err := s.cache.Delete(ctx, phone); err != nil {
		zctx.From(ctx).Warn("Customer cache invalidation failed",
			zap.String("phone", phone), zap.Error(err))
	}
}
