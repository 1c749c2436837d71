package order

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/sales-ledger/internal/domain/catalog"
)

// --- Mock implementations ---

type mockProductRepo struct {
	byID   map[string]*catalog.Product
	getErr error
}

func (m *mockProductRepo) Create(_ context.Context, _ *catalog.Product) error { return nil }

func (m *mockProductRepo) List(_ context.Context) ([]catalog.Product, error) { return nil, nil }

func (m *mockProductRepo) GetByID(_ context.Context, id string) (*catalog.Product, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return p, nil
}

func (m *mockProductRepo) GetByIDs(_ context.Context, ids []string) ([]catalog.Product, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	var out []catalog.Product
	for _, id := range ids {
		if p, ok := m.byID[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

type mockOrderRepo struct {
	createdOrders []*Order
	addedLines    []*OrderLine
	totals        map[string]decimal.Decimal

	createErr error
	lineErr   error
	totalErr  error
}

func newMockOrderRepo() *mockOrderRepo {
	return &mockOrderRepo{totals: make(map[string]decimal.Decimal)}
}

func (m *mockOrderRepo) Create(_ context.Context, o *Order) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.createdOrders = append(m.createdOrders, o)
	return nil
}

func (m *mockOrderRepo) AddLine(_ context.Context, line *OrderLine) error {
	if m.lineErr != nil {
		return m.lineErr
	}
	m.addedLines = append(m.addedLines, line)
	return nil
}

func (m *mockOrderRepo) UpdateTotal(_ context.Context, orderID string, total decimal.Decimal) error {
	if m.totalErr != nil {
		return m.totalErr
	}
	m.totals[orderID] = total
	return nil
}

func (m *mockOrderRepo) LatestByClient(_ context.Context, _ string) (*Order, error) {
	return nil, ErrNotFound
}

func (m *mockOrderRepo) List(_ context.Context) ([]Order, error) { return nil, nil }

// --- Helpers ---

func newTestProduct(id, name, price string, available bool) *catalog.Product {
	return &catalog.Product{
		ID:        id,
		Name:      name,
		Category:  "test",
		Price:     decimal.RequireFromString(price),
		Available: available,
	}
}

func newProductRepo(products ...*catalog.Product) *mockProductRepo {
	byID := make(map[string]*catalog.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	return &mockProductRepo{byID: byID}
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// --- Tests ---

func TestCreate(t *testing.T) {
	repo := newMockOrderRepo()
	svc := NewService(newProductRepo(), repo, PermitUnavailable)

	o, err := svc.Create(context.Background(), "Raquel Martinez")

	require.NoError(t, err)
	assert.NotEmpty(t, o.ID)
	assert.Equal(t, "Raquel Martinez", o.ClientID)
	assert.True(t, o.Total.IsZero())
	assert.False(t, o.CreatedAt.IsZero())
	assert.Empty(t, o.Lines)
	require.Len(t, repo.createdOrders, 1)
}

func TestCreate_EmptyClient(t *testing.T) {
	repo := newMockOrderRepo()
	svc := NewService(newProductRepo(), repo, PermitUnavailable)

	_, err := svc.Create(context.Background(), "")

	var invalidErr *InvalidOrderError
	require.ErrorAs(t, err, &invalidErr)
	assert.Empty(t, repo.createdOrders)
}

func TestAddLine(t *testing.T) {
	p := newTestProduct("p1", "Widget", "10.00", true)
	repo := newMockOrderRepo()
	svc := NewService(newProductRepo(p), repo, PermitUnavailable)

	o, err := svc.Create(context.Background(), "client")
	require.NoError(t, err)

	line, err := svc.AddLine(context.Background(), o, p, 3)

	require.NoError(t, err)
	assert.Equal(t, o.ID, line.OrderID)
	assert.Equal(t, "p1", line.ProductID)
	assert.Equal(t, 3, line.Quantity)
	assert.Equal(t, 0, line.Position)
	require.Len(t, o.Lines, 1)
	// Attaching a line never recomputes the total.
	assert.True(t, o.Total.IsZero())
}

func TestAddLine_InvalidQuantity(t *testing.T) {
	p := newTestProduct("p1", "Widget", "10.00", true)
	repo := newMockOrderRepo()
	svc := NewService(newProductRepo(p), repo, PermitUnavailable)

	o, err := svc.Create(context.Background(), "client")
	require.NoError(t, err)

	for _, qty := range []int{0, -1, -100} {
		_, err := svc.AddLine(context.Background(), o, p, qty)

		var iqErr *InvalidQuantityError
		require.ErrorAs(t, err, &iqErr, "quantity %d", qty)
		assert.Equal(t, "p1", iqErr.ProductID)
	}

	// The line collection is untouched on failure.
	assert.Empty(t, o.Lines)
	assert.Empty(t, repo.addedLines)
}

func TestAddLine_UnavailableRejected(t *testing.T) {
	p := newTestProduct("p1", "Delisted", "10.00", false)
	repo := newMockOrderRepo()
	svc := NewService(newProductRepo(p), repo, RejectUnavailable)

	o, err := svc.Create(context.Background(), "client")
	require.NoError(t, err)

	_, err = svc.AddLine(context.Background(), o, p, 1)

	var upErr *UnavailableProductError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, "p1", upErr.ProductID)
	assert.Empty(t, o.Lines)
}

func TestAddLine_UnavailablePermitted(t *testing.T) {
	p := newTestProduct("p1", "Delisted", "10.00", false)
	repo := newMockOrderRepo()
	svc := NewService(newProductRepo(p), repo, PermitUnavailable)

	o, err := svc.Create(context.Background(), "client")
	require.NoError(t, err)

	_, err = svc.AddLine(context.Background(), o, p, 1)

	require.NoError(t, err)
	require.Len(t, o.Lines, 1)
}

func TestPolicyFor(t *testing.T) {
	assert.Equal(t, RejectUnavailable, PolicyFor(true))
	assert.Equal(t, PermitUnavailable, PolicyFor(false))
}

func TestRecomputeTotal_NoLines(t *testing.T) {
	repo := newMockOrderRepo()
	svc := NewService(newProductRepo(), repo, PermitUnavailable)

	o, err := svc.Create(context.Background(), "client")
	require.NoError(t, err)

	total, err := svc.RecomputeTotal(context.Background(), o)

	require.NoError(t, err)
	assert.True(t, total.IsZero())
	assert.True(t, repo.totals[o.ID].IsZero())
}

func TestRecomputeTotal(t *testing.T) {
	pa := newTestProduct("a", "A", "8.5", true)
	pb := newTestProduct("b", "B", "1.5", true)
	repo := newMockOrderRepo()
	svc := NewService(newProductRepo(pa, pb), repo, PermitUnavailable)

	o, err := svc.Create(context.Background(), "Raquel Martinez")
	require.NoError(t, err)

	_, err = svc.AddLine(context.Background(), o, pa, 1)
	require.NoError(t, err)
	_, err = svc.AddLine(context.Background(), o, pb, 2)
	require.NoError(t, err)

	total, err := svc.RecomputeTotal(context.Background(), o)

	require.NoError(t, err)
	assert.True(t, d("11.5").Equal(total), "got %s", total)
	assert.True(t, d("11.5").Equal(o.Total))
	assert.True(t, d("11.5").Equal(repo.totals[o.ID]))
}

func TestRecomputeTotal_Idempotent(t *testing.T) {
	p := newTestProduct("p1", "Widget", "3.33", true)
	repo := newMockOrderRepo()
	svc := NewService(newProductRepo(p), repo, PermitUnavailable)

	o, err := svc.Create(context.Background(), "client")
	require.NoError(t, err)
	_, err = svc.AddLine(context.Background(), o, p, 3)
	require.NoError(t, err)

	first, err := svc.RecomputeTotal(context.Background(), o)
	require.NoError(t, err)
	second, err := svc.RecomputeTotal(context.Background(), o)
	require.NoError(t, err)

	assert.True(t, first.Equal(second))
}

func TestRecomputeTotal_LateBinding(t *testing.T) {
	p := newTestProduct("p1", "Widget", "10.00", true)
	repo := newMockOrderRepo()
	svc := NewService(newProductRepo(p), repo, PermitUnavailable)

	o, err := svc.Create(context.Background(), "client")
	require.NoError(t, err)
	_, err = svc.AddLine(context.Background(), o, p, 2)
	require.NoError(t, err)

	total, err := svc.RecomputeTotal(context.Background(), o)
	require.NoError(t, err)
	assert.True(t, d("20.00").Equal(total))

	// A price edit after attachment is picked up by the next recompute.
	p.Price = d("12.50")

	total, err = svc.RecomputeTotal(context.Background(), o)
	require.NoError(t, err)
	assert.True(t, d("25.00").Equal(total), "got %s", total)
}

func TestRecomputeTotal_ProductGone(t *testing.T) {
	p := newTestProduct("p1", "Widget", "10.00", true)
	products := newProductRepo(p)
	repo := newMockOrderRepo()
	svc := NewService(products, repo, PermitUnavailable)

	o, err := svc.Create(context.Background(), "client")
	require.NoError(t, err)
	_, err = svc.AddLine(context.Background(), o, p, 1)
	require.NoError(t, err)

	delete(products.byID, "p1")

	_, err = svc.RecomputeTotal(context.Background(), o)

	var pnfErr *ProductNotFoundError
	require.ErrorAs(t, err, &pnfErr)
	assert.Equal(t, "p1", pnfErr.ProductID)
}

func TestApplyDiscount(t *testing.T) {
	pa := newTestProduct("a", "A", "8.5", true)
	pb := newTestProduct("b", "B", "1.5", true)
	repo := newMockOrderRepo()
	svc := NewService(newProductRepo(pa, pb), repo, PermitUnavailable)

	o, err := svc.Create(context.Background(), "Raquel Martinez")
	require.NoError(t, err)
	_, err = svc.AddLine(context.Background(), o, pa, 1)
	require.NoError(t, err)
	_, err = svc.AddLine(context.Background(), o, pb, 2)
	require.NoError(t, err)
	_, err = svc.RecomputeTotal(context.Background(), o)
	require.NoError(t, err)

	total, err := svc.ApplyDiscount(context.Background(), o, d("10"))

	require.NoError(t, err)
	assert.True(t, d("10.35").Equal(total), "got %s", total)
	assert.True(t, d("10.35").Equal(repo.totals[o.ID]))
}

func TestApplyDiscount_Compounds(t *testing.T) {
	p := newTestProduct("p1", "Widget", "100.00", true)
	repo := newMockOrderRepo()
	svc := NewService(newProductRepo(p), repo, PermitUnavailable)

	o, err := svc.Create(context.Background(), "client")
	require.NoError(t, err)
	_, err = svc.AddLine(context.Background(), o, p, 1)
	require.NoError(t, err)
	_, err = svc.RecomputeTotal(context.Background(), o)
	require.NoError(t, err)

	_, err = svc.ApplyDiscount(context.Background(), o, d("10"))
	require.NoError(t, err)
	total, err := svc.ApplyDiscount(context.Background(), o, d("20"))
	require.NoError(t, err)

	// Second discount applies to the already-discounted total.
	assert.True(t, d("72.00").Equal(total), "got %s", total)
}

func TestApplyDiscount_BeforeRecompute(t *testing.T) {
	repo := newMockOrderRepo()
	svc := NewService(newProductRepo(), repo, PermitUnavailable)

	o, err := svc.Create(context.Background(), "client")
	require.NoError(t, err)

	total, err := svc.ApplyDiscount(context.Background(), o, d("50"))

	require.NoError(t, err)
	assert.True(t, total.IsZero())
}

func TestApplyDiscount_OutOfRange(t *testing.T) {
	repo := newMockOrderRepo()
	svc := NewService(newProductRepo(), repo, PermitUnavailable)

	o, err := svc.Create(context.Background(), "client")
	require.NoError(t, err)
	o.Total = d("50")

	_, err = svc.ApplyDiscount(context.Background(), o, d("101"))

	require.Error(t, err)
	// Neither the aggregate nor the store is touched on failure.
	assert.True(t, d("50").Equal(o.Total))
	assert.Empty(t, repo.totals)
}

func TestCreate_RepoError(t *testing.T) {
	repo := newMockOrderRepo()
	repo.createErr = errors.New("db write failed")
	svc := NewService(newProductRepo(), repo, PermitUnavailable)

	_, err := svc.Create(context.Background(), "client")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "create order")
}

func TestAddLine_RepoError(t *testing.T) {
	p := newTestProduct("p1", "Widget", "10.00", true)
	repo := newMockOrderRepo()
	repo.lineErr = errors.New("db write failed")
	svc := NewService(newProductRepo(p), repo, PermitUnavailable)

	o, err := svc.Create(context.Background(), "client")
	require.NoError(t, err)

	_, err = svc.AddLine(context.Background(), o, p, 1)

	require.Error(t, err)
	// The aggregate stays consistent with the store.
	assert.Empty(t, o.Lines)
}
