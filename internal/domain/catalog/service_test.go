package catalog

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRepo struct {
	created []*Product
	err     error
}

func (m *mockRepo) Create(_ context.Context, p *Product) error {
	if m.err != nil {
		return m.err
	}
	m.created = append(m.created, p)
	return nil
}

func (m *mockRepo) List(_ context.Context) ([]Product, error) { return nil, nil }

func (m *mockRepo) GetByID(_ context.Context, _ string) (*Product, error) {
	return nil, ErrNotFound
}

func (m *mockRepo) GetByIDs(_ context.Context, _ []string) ([]Product, error) {
	return nil, nil
}

func TestRegister(t *testing.T) {
	repo := &mockRepo{}
	svc := NewService(repo)

	p, err := svc.Register(context.Background(), "Pizza margarita", "plato", decimal.RequireFromString("8.5"))

	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "Pizza margarita", p.Name)
	assert.Equal(t, "plato", p.Category)
	assert.True(t, p.Available)
	require.Len(t, repo.created, 1)
	assert.Same(t, p, repo.created[0])
}

func TestRegister_EmptyName(t *testing.T) {
	repo := &mockRepo{}
	svc := NewService(repo)

	_, err := svc.Register(context.Background(), "", "plato", decimal.NewFromInt(1))

	var invalidErr *InvalidProductError
	require.ErrorAs(t, err, &invalidErr)
	assert.Empty(t, repo.created)
}

func TestRegister_NegativePrice(t *testing.T) {
	repo := &mockRepo{}
	svc := NewService(repo)

	_, err := svc.Register(context.Background(), "Pizza", "plato", decimal.RequireFromString("-0.01"))

	var invalidErr *InvalidProductError
	require.ErrorAs(t, err, &invalidErr)
	assert.Empty(t, repo.created)
}

func TestRegister_ZeroPriceAllowed(t *testing.T) {
	repo := &mockRepo{}
	svc := NewService(repo)

	p, err := svc.Register(context.Background(), "Tap water", "bebida", decimal.Zero)

	require.NoError(t, err)
	assert.True(t, p.Price.IsZero())
}

func TestRegister_FreshIdentityPerProduct(t *testing.T) {
	repo := &mockRepo{}
	svc := NewService(repo)

	p1, err := svc.Register(context.Background(), "A", "x", decimal.NewFromInt(1))
	require.NoError(t, err)
	p2, err := svc.Register(context.Background(), "A", "x", decimal.NewFromInt(1))
	require.NoError(t, err)

	assert.NotEqual(t, p1.ID, p2.ID)
}
