package order

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/tailor-orders/internal/domain/customer"
	"github.com/xenking/tailor-orders/internal/domain/validation"
)

// --- In-memory store ---

type memShop struct {
	code string
	next int64
}

type memState struct {
	shops      map[int64]memShop
	sizes      map[int64]int64 // size id -> type id
	customers  map[string]customer.Customer
	orders     map[int64]Order
	payments   []Payment
	lastID     int64
	paymentErr error
}

func (s memState) clone() memState {
	c := s
	c.shops = make(map[int64]memShop, len(s.shops))
	for k, v := range s.shops {
		c.shops[k] = v
	}
	c.customers = make(map[string]customer.Customer, len(s.customers))
	for k, v := range s.customers {
		c.customers[k] = v
	}
	c.orders = make(map[int64]Order, len(s.orders))
	for k, v := range s.orders {
		c.orders[k] = copyOrder(v)
	}
	c.payments = append([]Payment(nil), s.payments...)
	return c
}

func copyOrder(o Order) Order {
	o.Items = append([]Item(nil), o.Items...)
	o.Payments = nil
	return o
}

type memStore struct {
	mu sync.Mutex
	st memState
}

func newMemStore() *memStore {
	return &memStore{st: memState{
		shops:     map[int64]memShop{1: {code: "DHK", next: 1}, 2: {code: "CTG", next: 41}},
		sizes:     map[int64]int64{10: 1, 11: 1, 20: 2},
		customers: map[string]customer.Customer{},
		orders:    map[int64]Order{},
	}}
}

func (m *memStore) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.st.clone()
	if err := fn(ctx, memTx{m}); err != nil {
		m.st = snapshot
		return err
	}
	return nil
}

func (m *memStore) Get(_ context.Context, id int64) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.st.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	o = copyOrder(o)
	for _, p := range m.st.payments {
		if p.OrderID == id {
			o.Payments = append(o.Payments, p)
		}
	}
	return &o, nil
}

func (m *memStore) List(_ context.Context, f Filter) ([]Order, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Order
	for _, o := range m.st.orders {
		if f.ShopID != 0 && o.ShopID != f.ShopID {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		out = append(out, copyOrder(o))
	}
	return out, len(out), nil
}

func (m *memStore) customerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.st.customers)
}

func (m *memStore) nextSequence(shopID int64) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.shops[shopID].next
}

type memTx struct{ m *memStore }

func (t memTx) st() *memState { return &t.m.st }

func (t memTx) id() int64 {
	t.st().lastID++
	return t.st().lastID
}

func (t memTx) ShopExists(_ context.Context, shopID int64) (bool, error) {
	_, ok := t.st().shops[shopID]
	return ok, nil
}

func (t memTx) NextOrderSequence(_ context.Context, shopID int64) (string, int64, error) {
	s, ok := t.st().shops[shopID]
	if !ok {
		return "", 0, errors.New("shop not found")
	}
	seq := s.next
	s.next++
	t.st().shops[shopID] = s
	return s.code, seq, nil
}

func (t memTx) UpsertCustomer(_ context.Context, c customer.Customer) (*customer.Customer, error) {
	if existing, ok := t.st().customers[c.Phone]; ok {
		return &existing, nil
	}
	c.ID = t.id()
	t.st().customers[c.Phone] = c
	return &c, nil
}

func (t memTx) SizeOfType(_ context.Context, typeID, sizeID int64) (bool, error) {
	owner, ok := t.st().sizes[sizeID]
	return ok && owner == typeID, nil
}

func (t memTx) CreateOrder(_ context.Context, o *Order) error {
	o.ID = t.id()
	for i := range o.Items {
		o.Items[i].ID = t.id()
		o.Items[i].OrderID = o.ID
	}
	t.st().orders[o.ID] = copyOrder(*o)
	return nil
}

func (t memTx) GetForUpdate(_ context.Context, id int64) (*Order, error) {
	o, ok := t.st().orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	o = copyOrder(o)
	return &o, nil
}

func (t memTx) ReplaceItems(_ context.Context, orderID int64, items []Item) error {
	o := t.st().orders[orderID]
	o.Items = make([]Item, len(items))
	for i, it := range items {
		it.ID = t.id()
		it.OrderID = orderID
		o.Items[i] = it
	}
	t.st().orders[orderID] = o
	return nil
}

func (t memTx) UpdateOrder(_ context.Context, o *Order) error {
	stored := t.st().orders[o.ID]
	items := stored.Items
	stored = copyOrder(*o)
	stored.Items = items
	t.st().orders[o.ID] = stored
	return nil
}

func (t memTx) AppendPayment(_ context.Context, p *Payment) error {
	if err := t.st().paymentErr; err != nil {
		return err
	}
	p.ID = t.id()
	t.st().payments = append(t.st().payments, *p)
	return nil
}

func (t memTx) SumPayments(_ context.Context, orderID int64) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, p := range t.st().payments {
		if p.OrderID == orderID {
			sum = sum.Add(p.Amount)
		}
	}
	return sum, nil
}

func (t memTx) UpdateBalances(_ context.Context, orderID int64, advancePaid, due decimal.Decimal) error {
	o := t.st().orders[orderID]
	o.AdvancePaid, o.Due = advancePaid, due
	t.st().orders[orderID] = o
	return nil
}

// --- Helpers ---

var testNow = time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)

func newTestService(t *testing.T, store *memStore) *Service {
	t.Helper()
	svc, err := NewService(store, WithClock(func() time.Time { return testNow }))
	require.NoError(t, err)
	return svc
}

func validRequest() CreateRequest {
	return CreateRequest{
		ShopID:       1,
		Customer:     CustomerInput{Phone: "01712345678", Name: "Rahim", Address: "Dhanmondi"},
		DeliveryDate: testNow.AddDate(0, 0, 7),
		Items: []Line{
			{ProductTypeID: 1, ProductSizeID: 10, Quantity: 2, UnitPrice: d("1500")},
		},
		DiscountType:   DiscountFixed,
		DiscountAmount: d("200"),
		CreatedBy:      1,
	}
}

// --- Tests ---

func TestService_Create(t *testing.T) {
	store := newMemStore()
	svc := newTestService(t, store)

	o, err := svc.Create(context.Background(), validRequest())
	require.NoError(t, err)

	assert.Equal(t, "ORD-DHK-000001", o.Number)
	assert.Equal(t, StatusPending, o.Status)
	assert.Equal(t, "3000.00", o.Subtotal.StringFixed(2))
	assert.Equal(t, "200.00", o.DiscountValue.StringFixed(2))
	assert.Equal(t, "2800.00", o.Total.StringFixed(2))
	assert.Equal(t, "0.00", o.AdvancePaid.StringFixed(2))
	assert.Equal(t, "2800.00", o.Due.StringFixed(2))
	require.Len(t, o.Items, 1)
	assert.Equal(t, "3000.00", o.Items[0].LineTotal.StringFixed(2))
	assert.Empty(t, o.Payments)
	assert.Equal(t, 1, store.customerCount())
}

func TestService_Create_SequentialNumbers(t *testing.T) {
	store := newMemStore()
	svc := newTestService(t, store)
	ctx := context.Background()

	first, err := svc.Create(ctx, validRequest())
	require.NoError(t, err)
	second, err := svc.Create(ctx, validRequest())
	require.NoError(t, err)
	other := validRequest()
	other.ShopID = 2
	third, err := svc.Create(ctx, other)
	require.NoError(t, err)

	assert.Equal(t, "ORD-DHK-000001", first.Number)
	assert.Equal(t, "ORD-DHK-000002", second.Number)
	assert.Equal(t, "ORD-CTG-000041", third.Number)
}

func TestService_Create_PercentageDiscount(t *testing.T) {
	svc := newTestService(t, newMemStore())

	req := validRequest()
	req.Items = []Line{{ProductTypeID: 1, ProductSizeID: 11, Quantity: 1, UnitPrice: d("2000")}}
	req.DiscountType = DiscountPercentage
	req.DiscountAmount = d("10")

	o, err := svc.Create(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "200.00", o.DiscountValue.StringFixed(2))
	assert.Equal(t, "1800.00", o.Total.StringFixed(2))
}

func TestService_Create_RoundsDiscountAmount(t *testing.T) {
	svc := newTestService(t, newMemStore())
	ctx := context.Background()

	req := validRequest()
	req.DiscountType = DiscountPercentage
	req.DiscountAmount = d("12.345")

	o, err := svc.Create(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "12.35", o.DiscountAmount.String())
	assert.Equal(t, "370.50", o.DiscountValue.StringFixed(2))
	assert.Equal(t, "2629.50", o.Total.StringFixed(2))

	notes := "hem trousers"
	o, err = svc.Update(ctx, o.ID, UpdateRequest{Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, "2629.50", o.Total.StringFixed(2))
	assert.Equal(t, "2629.50", o.Due.StringFixed(2))

	amount := d("5.555")
	o, err = svc.Update(ctx, o.ID, UpdateRequest{DiscountAmount: &amount})
	require.NoError(t, err)
	assert.Equal(t, "5.56", o.DiscountAmount.String())
	assert.Equal(t, "166.80", o.DiscountValue.StringFixed(2))
}

func TestService_Create_DeliveryDateUsesUTC(t *testing.T) {
	dhaka := time.FixedZone("BST", 6*60*60)
	// 02:00 on the 11th in Dhaka is still the 10th in UTC.
	now := time.Date(2026, 3, 11, 2, 0, 0, 0, dhaka)
	svc, err := NewService(newMemStore(), WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	req := validRequest()
	req.DeliveryDate = time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)
	_, err = svc.Create(context.Background(), req)
	require.NoError(t, err)

	req.DeliveryDate = time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	_, err = svc.Create(context.Background(), req)
	_, ok := validation.As(err)
	require.True(t, ok, "expected validation error, got %v", err)
}

func TestService_Create_WithPayment(t *testing.T) {
	svc := newTestService(t, newMemStore())

	req := validRequest()
	req.Payment = &PaymentInput{Method: MethodBkash, Amount: d("1000"), MFSNumber: "01898765432"}

	o, err := svc.Create(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "1000.00", o.AdvancePaid.StringFixed(2))
	assert.Equal(t, "1800.00", o.Due.StringFixed(2))
	require.Len(t, o.Payments, 1)
	assert.Equal(t, "bkash", o.Payments[0].MFSProvider)
}

func TestService_Create_NonePaymentIsSkipped(t *testing.T) {
	svc := newTestService(t, newMemStore())

	req := validRequest()
	req.Payment = &PaymentInput{Method: MethodNone}

	o, err := svc.Create(context.Background(), req)
	require.NoError(t, err)
	assert.Empty(t, o.Payments)
	assert.Equal(t, "2800.00", o.Due.StringFixed(2))
}

func TestService_Create_ReusesCustomer(t *testing.T) {
	store := newMemStore()
	svc := newTestService(t, store)
	ctx := context.Background()

	first, err := svc.Create(ctx, validRequest())
	require.NoError(t, err)

	req := validRequest()
	req.Customer.Name = "Someone Else"
	req.Customer.Address = "Gulshan"
	second, err := svc.Create(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, first.CustomerID, second.CustomerID)
	assert.Equal(t, 1, store.customerCount())
	assert.Equal(t, "Rahim", store.st.customers["01712345678"].Name)
	assert.Equal(t, "Dhanmondi", store.st.customers["01712345678"].Address)
}

func TestService_Create_RollsBackOnPaymentFailure(t *testing.T) {
	store := newMemStore()
	store.st.paymentErr = errors.New("connection reset")
	svc := newTestService(t, store)

	req := validRequest()
	req.Payment = &PaymentInput{Method: MethodCash, Amount: d("500")}

	_, err := svc.Create(context.Background(), req)
	require.Error(t, err)

	assert.Equal(t, int64(1), store.nextSequence(1), "sequence must not be consumed")
	assert.Equal(t, 0, store.customerCount())
	orders, _, err := store.List(context.Background(), Filter{})
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestService_Create_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CreateRequest)
		field  string
	}{
		{"missing shop", func(r *CreateRequest) { r.ShopID = 0 }, "shop_id"},
		{"short phone", func(r *CreateRequest) { r.Customer.Phone = "0171234567" }, "customer.phone"},
		{"phone with letters", func(r *CreateRequest) { r.Customer.Phone = "0171234567a" }, "customer.phone"},
		{"blank name", func(r *CreateRequest) { r.Customer.Name = "   " }, "customer.name"},
		{"delivery today", func(r *CreateRequest) { r.DeliveryDate = testNow }, "delivery_date"},
		{"delivery in past", func(r *CreateRequest) { r.DeliveryDate = testNow.AddDate(0, 0, -1) }, "delivery_date"},
		{"no items", func(r *CreateRequest) { r.Items = nil }, "items"},
		{"zero quantity", func(r *CreateRequest) { r.Items[0].Quantity = 0 }, "items[0].quantity"},
		{"negative price", func(r *CreateRequest) { r.Items[0].UnitPrice = d("-1") }, "items[0].price"},
		{"quantity over limit", func(r *CreateRequest) { r.Items[0].Quantity = MaxQuantity + 1 }, "items[0].quantity"},
		{"price over limit", func(r *CreateRequest) { r.Items[0].UnitPrice = d("10000000000") }, "items[0].price"},
		{"line total overflows", func(r *CreateRequest) {
			r.Items[0].Quantity = 100000
			r.Items[0].UnitPrice = d("200000")
		}, "items[0].price"},
		{"subtotal overflows", func(r *CreateRequest) {
			r.Items = []Line{
				{ProductTypeID: 1, ProductSizeID: 10, Quantity: 1, UnitPrice: d("6000000000")},
				{ProductTypeID: 1, ProductSizeID: 11, Quantity: 1, UnitPrice: d("6000000000")},
			}
		}, "items"},
		{"fixed discount over limit", func(r *CreateRequest) { r.DiscountAmount = d("10000000000") }, "discount_amount"},
		{"sub-cent payment", func(r *CreateRequest) {
			r.Payment = &PaymentInput{Method: MethodCash, Amount: d("0.004")}
		}, "payment.amount"},
		{"percentage over 100", func(r *CreateRequest) {
			r.DiscountType = DiscountPercentage
			r.DiscountAmount = d("101")
		}, "discount_amount"},
		{"negative fixed discount", func(r *CreateRequest) { r.DiscountAmount = d("-1") }, "discount_amount"},
		{"unknown discount type", func(r *CreateRequest) { r.DiscountType = "bogo" }, "discount_type"},
		{"payment without amount", func(r *CreateRequest) {
			r.Payment = &PaymentInput{Method: MethodCash}
		}, "payment.amount"},
		{"bank payment without bank", func(r *CreateRequest) {
			r.Payment = &PaymentInput{Method: MethodBank, Amount: d("100")}
		}, "payment.bank_name"},
		{"unknown shop", func(r *CreateRequest) { r.ShopID = 99 }, "shop_id"},
		{"size of another type", func(r *CreateRequest) { r.Items[0].ProductSizeID = 20 }, "items[0].product_size_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			svc := newTestService(t, store)

			req := validRequest()
			tt.mutate(&req)
			_, err := svc.Create(context.Background(), req)

			verr, ok := validation.As(err)
			require.True(t, ok, "expected validation error, got %v", err)
			require.NotEmpty(t, verr.Fields)
			assert.Equal(t, tt.field, verr.Fields[0].Field)
			assert.Equal(t, int64(1), store.nextSequence(1))
		})
	}
}

func TestService_Create_ConcurrentNumbersAreUnique(t *testing.T) {
	store := newMemStore()
	svc := newTestService(t, store)

	const n = 50
	numbers := make([]string, n)
	g, ctx := errgroup.WithContext(context.Background())
	for i := range n {
		g.Go(func() error {
			o, err := svc.Create(ctx, validRequest())
			if err != nil {
				return err
			}
			numbers[i] = o.Number
			return nil
		})
	}
	require.NoError(t, g.Wait())

	seen := make(map[string]struct{}, n)
	for _, num := range numbers {
		_, dup := seen[num]
		require.False(t, dup, "duplicate order number %s", num)
		seen[num] = struct{}{}
	}
	for i := 1; i <= n; i++ {
		assert.Contains(t, seen, FormatNumber("DHK", int64(i)))
	}
}

func TestService_AddPayment(t *testing.T) {
	svc := newTestService(t, newMemStore())
	ctx := context.Background()

	req := validRequest()
	req.Items = []Line{{ProductTypeID: 1, ProductSizeID: 10, Quantity: 1, UnitPrice: d("5000")}}
	req.DiscountAmount = decimal.Zero
	o, err := svc.Create(ctx, req)
	require.NoError(t, err)

	_, err = svc.AddPayment(ctx, o.ID, PaymentInput{Method: MethodCash, Amount: d("2000")}, 1)
	require.NoError(t, err)
	o, err = svc.AddPayment(ctx, o.ID, PaymentInput{Method: MethodNagad, Amount: d("1500"), MFSNumber: "01811111111"}, 1)
	require.NoError(t, err)

	assert.Equal(t, "3500.00", o.AdvancePaid.StringFixed(2))
	assert.Equal(t, "1500.00", o.Due.StringFixed(2))
	assert.Len(t, o.Payments, 2)
}

func TestService_AddPayment_NotFound(t *testing.T) {
	svc := newTestService(t, newMemStore())

	_, err := svc.AddPayment(context.Background(), 404, PaymentInput{Method: MethodCash, Amount: d("1")}, 1)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestService_AddPayment_CancelledOrderAccepted(t *testing.T) {
	svc := newTestService(t, newMemStore())
	ctx := context.Background()

	o, err := svc.Create(ctx, validRequest())
	require.NoError(t, err)
	_, err = svc.UpdateStatus(ctx, o.ID, StatusCancelled)
	require.NoError(t, err)

	o, err = svc.AddPayment(ctx, o.ID, PaymentInput{Method: MethodCash, Amount: d("100")}, 1)
	require.NoError(t, err)
	assert.Equal(t, "100.00", o.AdvancePaid.StringFixed(2))
}

func TestService_Update_KeepsPayments(t *testing.T) {
	svc := newTestService(t, newMemStore())
	ctx := context.Background()

	req := validRequest()
	req.Payment = &PaymentInput{Method: MethodCash, Amount: d("1000")}
	o, err := svc.Create(ctx, req)
	require.NoError(t, err)

	pct := DiscountPercentage
	amount := d("50")
	o, err = svc.Update(ctx, o.ID, UpdateRequest{
		Items: []Line{
			{ProductTypeID: 1, ProductSizeID: 10, Quantity: 1, UnitPrice: d("1000")},
			{ProductTypeID: 2, ProductSizeID: 20, Quantity: 2, UnitPrice: d("250")},
		},
		DiscountType:   &pct,
		DiscountAmount: &amount,
	})
	require.NoError(t, err)

	assert.Equal(t, "1500.00", o.Subtotal.StringFixed(2))
	assert.Equal(t, "750.00", o.Total.StringFixed(2))
	assert.Equal(t, "1000.00", o.AdvancePaid.StringFixed(2))
	assert.Equal(t, "0.00", o.Due.StringFixed(2))
	assert.Len(t, o.Items, 2)
	assert.Len(t, o.Payments, 1)
	assert.Equal(t, "ORD-DHK-000001", o.Number)
}

func TestService_Update_DiscountOnly(t *testing.T) {
	svc := newTestService(t, newMemStore())
	ctx := context.Background()

	o, err := svc.Create(ctx, validRequest())
	require.NoError(t, err)

	amount := d("500")
	o, err = svc.Update(ctx, o.ID, UpdateRequest{DiscountAmount: &amount})
	require.NoError(t, err)
	assert.Equal(t, "2500.00", o.Total.StringFixed(2))
	assert.Equal(t, "2500.00", o.Due.StringFixed(2))
	require.Len(t, o.Items, 1)
}

func TestService_Update_DeliveryDate(t *testing.T) {
	svc := newTestService(t, newMemStore())
	ctx := context.Background()

	o, err := svc.Create(ctx, validRequest())
	require.NoError(t, err)

	past := testNow.AddDate(0, 0, -2)
	_, err = svc.Update(ctx, o.ID, UpdateRequest{DeliveryDate: &past})
	_, ok := validation.As(err)
	require.True(t, ok)

	same := o.DeliveryDate
	_, err = svc.Update(ctx, o.ID, UpdateRequest{DeliveryDate: &same})
	require.NoError(t, err)
}

func TestService_UpdateStatus(t *testing.T) {
	svc := newTestService(t, newMemStore())
	ctx := context.Background()

	o, err := svc.Create(ctx, validRequest())
	require.NoError(t, err)

	o, err = svc.UpdateStatus(ctx, o.ID, StatusShipped)
	require.NoError(t, err)
	assert.Equal(t, StatusShipped, o.Status)

	_, err = svc.UpdateStatus(ctx, o.ID, StatusCancelled)
	require.ErrorIs(t, err, ErrInvalidTransition)

	_, err = svc.UpdateStatus(ctx, o.ID, "misplaced")
	_, ok := validation.As(err)
	require.True(t, ok)

	got, err := svc.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusShipped, got.Status)
}

func TestService_List_Defaults(t *testing.T) {
	svc := newTestService(t, newMemStore())
	ctx := context.Background()

	_, err := svc.Create(ctx, validRequest())
	require.NoError(t, err)

	orders, total, err := svc.List(ctx, Filter{ShopID: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, orders, 1)

	_, _, err = svc.List(ctx, Filter{Status: "lost"})
	_, ok := validation.As(err)
	assert.True(t, ok)
}
