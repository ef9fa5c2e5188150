package shop

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/tailor-orders/internal/domain/validation"
)

type mockRepo struct {
	shops     map[int64]*Shop
	hasOrders bool
	nextID    int64
}

func newMockRepo(shops ...Shop) *mockRepo {
	m := &mockRepo{shops: map[int64]*Shop{}}
	for i := range shops {
		m.shops[shops[i].ID] = &shops[i]
		m.nextID = max(m.nextID, shops[i].ID)
	}
	return m
}

func (m *mockRepo) Create(_ context.Context, s *Shop) error {
	for _, existing := range m.shops {
		if existing.Code == s.Code {
			return ErrCodeTaken
		}
	}
	m.nextID++
	s.ID = m.nextID
	cp := *s
	m.shops[s.ID] = &cp
	return nil
}

func (m *mockRepo) Get(_ context.Context, id int64) (*Shop, error) {
	s, ok := m.shops[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *mockRepo) List(_ context.Context) ([]Shop, error) {
	out := make([]Shop, 0, len(m.shops))
	for _, s := range m.shops {
		out = append(out, *s)
	}
	return out, nil
}

func (m *mockRepo) Update(_ context.Context, s *Shop) error {
	cp := *s
	m.shops[s.ID] = &cp
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id int64) error {
	delete(m.shops, id)
	return nil
}

func (m *mockRepo) HasOrders(_ context.Context, _ int64) (bool, error) {
	return m.hasOrders, nil
}

func TestCreate(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)

	sh, err := svc.Create(context.Background(), Input{Code: " dhk ", Name: "Dhaka Main"})
	require.NoError(t, err)

	assert.Equal(t, "DHK", sh.Code)
	assert.Equal(t, int64(1), sh.NextOrderSequence)
	assert.NotZero(t, sh.ID)
}

func TestCreate_Validation(t *testing.T) {
	svc := NewService(newMockRepo())

	_, err := svc.Create(context.Background(), Input{Code: "d", Name: ""})

	verr, ok := validation.As(err)
	require.True(t, ok)
	assert.Len(t, verr.Fields, 2)
}

func TestCreate_DuplicateCode(t *testing.T) {
	svc := NewService(newMockRepo(Shop{ID: 1, Code: "DHK", Name: "Dhaka"}))

	_, err := svc.Create(context.Background(), Input{Code: "DHK", Name: "Another"})
	require.ErrorIs(t, err, ErrCodeTaken)
}

func TestUpdate_KeepsSequence(t *testing.T) {
	repo := newMockRepo(Shop{ID: 1, Code: "DHK", Name: "Dhaka", NextOrderSequence: 42})
	svc := NewService(repo)

	sh, err := svc.Update(context.Background(), 1, Input{Code: "DHK", Name: "Dhaka Central"})
	require.NoError(t, err)

	assert.Equal(t, "Dhaka Central", sh.Name)
	assert.Equal(t, int64(42), repo.shops[1].NextOrderSequence)
}

func TestDelete_WithOrdersRejected(t *testing.T) {
	repo := newMockRepo(Shop{ID: 1, Code: "DHK", Name: "Dhaka"})
	repo.hasOrders = true
	svc := NewService(repo)

	err := svc.Delete(context.Background(), 1)
	require.ErrorIs(t, err, ErrInUse)
	assert.Contains(t, repo.shops, int64(1))
}

func TestDelete(t *testing.T) {
	repo := newMockRepo(Shop{ID: 1, Code: "DHK", Name: "Dhaka"})
	svc := NewService(repo)

	require.NoError(t, svc.Delete(context.Background(), 1))
	assert.NotContains(t, repo.shops, int64(1))
}

func TestDelete_NotFound(t *testing.T) {
	svc := NewService(newMockRepo())

	require.ErrorIs(t, svc.Delete(context.Background(), 9), ErrNotFound)
}
