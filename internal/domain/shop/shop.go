package shop

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/tailor-orders/internal/domain/validation"
)

var (
	// ErrNotFound is returned when a requested shop does not exist.
	ErrNotFound = errors.New("shop not found")
	// ErrInUse is returned when deleting a shop that has orders.
	ErrInUse = errors.New("shop has orders and cannot be deleted")
	// ErrCodeTaken is returned when another shop already uses the code.
	ErrCodeTaken = errors.New("shop code already in use")
)

var codePattern = regexp.MustCompile(`^[A-Z0-9]{2,10}$`)

// Shop is a physical outlet. NextOrderSequence is owned by the order number
// generator and never changed through shop maintenance.
type Shop struct {
	ID                int64
	Code              string
	Name              string
	Address           string
	Phone             string
	NextOrderSequence int64
	CreatedAt         time.Time
}

// Repository persists shops.
type Repository interface {
	Create(ctx context.Context, s *Shop) error
	Get(ctx context.Context, id int64) (*Shop, error)
	List(ctx context.Context) ([]Shop, error)
	Update(ctx context.Context, s *Shop) error
	Delete(ctx context.Context, id int64) error
	HasOrders(ctx context.Context, id int64) (bool, error)
}

// Input carries editable shop fields.
type Input struct {
	Code    string
	Name    string
	Address string
	Phone   string
}

func (in *Input) normalize() error {
	in.Code = strings.ToUpper(strings.TrimSpace(in.Code))
	in.Name = strings.TrimSpace(in.Name)
	in.Address = strings.TrimSpace(in.Address)
	in.Phone = strings.TrimSpace(in.Phone)

	verr := &validation.Error{}
	if !codePattern.MatchString(in.Code) {
		verr.Add("code", "must be 2-10 uppercase letters or digits")
	}
	if in.Name == "" {
		verr.Add("name", "is required")
	}
	return verr.Err()
}

// Service implements shop maintenance.
type Service struct {
	repo Repository
}

// NewService creates a shop Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create registers a new shop with its order sequence at 1.
func (s *Service) Create(ctx context.Context, in Input) (*Shop, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	sh := &Shop{
		Code:              in.Code,
		Name:              in.Name,
		Address:           in.Address,
		Phone:             in.Phone,
		NextOrderSequence: 1,
	}
	if err := s.repo.Create(ctx, sh); err != nil {
		return nil, err
	}
	return sh, nil
}

// Get returns a shop by id.
func (s *Service) Get(ctx context.Context, id int64) (*Shop, error) {
	return s.repo.Get(ctx, id)
}

// List returns all shops ordered by code.
func (s *Service) List(ctx context.Context) ([]Shop, error) {
	return s.repo.List(ctx)
}

// Update edits a shop's descriptive fields.
func (s *Service) Update(ctx context.Context, id int64, in Input) (*Shop, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	sh, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	sh.Code = in.Code
	sh.Name = in.Name
	sh.Address = in.Address
	sh.Phone = in.Phone
	if err := s.repo.Update(ctx, sh); err != nil {
		return nil, err
	}
	return sh, nil
}

// Delete removes a shop. Shops referenced by any order are kept and ErrInUse
// is returned.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}
	used, err := s.repo.HasOrders(ctx, id)
	if err != nil {
		return errors.Wrap(err, "check shop orders")
	}
	if used {
		return ErrInUse
	}
	return s.repo.Delete(ctx, id)
}
