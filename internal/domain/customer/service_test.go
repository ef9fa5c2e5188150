package customer

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/tailor-orders/internal/domain/validation"
)

// --- Mock implementations ---

type mockRepo struct {
	byPhone   map[string]*Customer
	hasOrders bool
	deleted   int64
	updated   *Customer
	lookups   int
}

func (m *mockRepo) Upsert(_ context.Context, c Customer) (*Customer, error) {
	if existing, ok := m.byPhone[c.Phone]; ok {
		return existing, nil
	}
	c.ID = int64(len(m.byPhone) + 1)
	m.byPhone[c.Phone] = &c
	return &c, nil
}

func (m *mockRepo) GetByPhone(_ context.Context, phone string) (*Customer, error) {
	m.lookups++
	c, ok := m.byPhone[phone]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *mockRepo) GetByID(_ context.Context, id int64) (*Customer, error) {
	for _, c := range m.byPhone {
		if c.ID == id {
			cp := *c
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockRepo) List(_ context.Context, _ Filter) ([]Customer, int, error) {
	return nil, 0, nil
}

func (m *mockRepo) Update(_ context.Context, c *Customer) error {
	m.updated = c
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id int64) error {
	m.deleted = id
	return nil
}

func (m *mockRepo) HasOrders(_ context.Context, _ int64) (bool, error) {
	return m.hasOrders, nil
}

type mockCache struct {
	items   map[string]*Customer
	getErr  error
	deleted []string
}

func (m *mockCache) Get(_ context.Context, phone string) (*Customer, bool, error) {
	if m.getErr != nil {
		return nil, false, m.getErr
	}
	c, ok := m.items[phone]
	return c, ok, nil
}

func (m *mockCache) Set(_ context.Context, c *Customer) error {
	m.items[c.Phone] = c
	return nil
}

func (m *mockCache) Delete(_ context.Context, phone string) error {
	m.deleted = append(m.deleted, phone)
	delete(m.items, phone)
	return nil
}

func newRepo(customers ...Customer) *mockRepo {
	m := &mockRepo{byPhone: map[string]*Customer{}}
	for i := range customers {
		m.byPhone[customers[i].Phone] = &customers[i]
	}
	return m
}

// --- Tests ---

func TestValidPhone(t *testing.T) {
	tests := []struct {
		phone string
		want  bool
	}{
		{"01712345678", true},
		{"0171234567", false},
		{"017123456789", false},
		{"0171234567a", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.phone, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidPhone(tt.phone))
		})
	}
}

func TestLookup_InvalidPhone(t *testing.T) {
	svc := NewService(newRepo(), nil)

	_, err := svc.Lookup(context.Background(), "123")

	_, ok := validation.As(err)
	assert.True(t, ok)
}

func TestLookup_NotFound(t *testing.T) {
	svc := NewService(newRepo(), nil)

	_, err := svc.Lookup(context.Background(), "01700000000")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestLookup_UsesCache(t *testing.T) {
	repo := newRepo(Customer{ID: 7, Phone: "01712345678", Name: "Rahim"})
	cache := &mockCache{items: map[string]*Customer{}}
	svc := NewService(repo, cache)

	first, err := svc.Lookup(context.Background(), "01712345678")
	require.NoError(t, err)
	second, err := svc.Lookup(context.Background(), "01712345678")
	require.NoError(t, err)

	assert.Equal(t, int64(7), first.ID)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, repo.lookups)
}

func TestLookup_CacheErrorFallsBack(t *testing.T) {
	repo := newRepo(Customer{ID: 7, Phone: "01712345678", Name: "Rahim"})
	cache := &mockCache{items: map[string]*Customer{}, getErr: errors.New("redis down")}
	svc := NewService(repo, cache)

	c, err := svc.Lookup(context.Background(), "01712345678")
	require.NoError(t, err)
	assert.Equal(t, "Rahim", c.Name)
}

func TestUpdate_InvalidatesCache(t *testing.T) {
	repo := newRepo(Customer{ID: 3, Phone: "01812345678", Name: "Karim"})
	cache := &mockCache{items: map[string]*Customer{}}
	svc := NewService(repo, cache)

	c, err := svc.Update(context.Background(), 3, UpdateRequest{Name: " Karim Uddin ", Address: "Mirpur"})
	require.NoError(t, err)

	assert.Equal(t, "Karim Uddin", c.Name)
	assert.Equal(t, "Mirpur", repo.updated.Address)
	assert.Equal(t, []string{"01812345678"}, cache.deleted)
}

func TestUpdate_RequiresName(t *testing.T) {
	svc := NewService(newRepo(Customer{ID: 3, Phone: "01812345678", Name: "Karim"}), nil)

	_, err := svc.Update(context.Background(), 3, UpdateRequest{Name: "  "})
	_, ok := validation.As(err)
	assert.True(t, ok)
}

func TestDelete_GuardedByOrders(t *testing.T) {
	repo := newRepo(Customer{ID: 3, Phone: "01812345678", Name: "Karim"})
	repo.hasOrders = true
	svc := NewService(repo, nil)

	err := svc.Delete(context.Background(), 3)
	require.ErrorIs(t, err, ErrInUse)
	assert.Zero(t, repo.deleted)
}

func TestDelete(t *testing.T) {
	repo := newRepo(Customer{ID: 3, Phone: "01812345678", Name: "Karim"})
	svc := NewService(repo, nil)

	require.NoError(t, svc.Delete(context.Background(), 3))
	assert.Equal(t, int64(3), repo.deleted)
}
