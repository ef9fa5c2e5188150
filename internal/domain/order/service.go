package order

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/tailor-orders/internal/domain/customer"
	"github.com/xenking/tailor-orders/internal/domain/validation"
)

const instrumentationName = "github.com/xenking/tailor-orders/internal/domain/order"

// CustomerInput identifies the customer an order is placed for.
type CustomerInput struct {
	Phone   string
	Name    string
	Address string
}

// CreateRequest holds the input for placing an order.
type CreateRequest struct {
	ShopID         int64
	Customer       CustomerInput
	DeliveryDate   time.Time
	Items          []Line
	DiscountType   DiscountType
	DiscountAmount decimal.Decimal
	Notes          string
	// Payment is applied right after the order is persisted unless it is
	// nil or its method is MethodNone.
	Payment   *PaymentInput
	CreatedBy int64
}

// UpdateRequest edits an existing order. Nil fields keep their stored value.
type UpdateRequest struct {
	Items          []Line
	DiscountType   *DiscountType
	DiscountAmount *decimal.Decimal
	DeliveryDate   *time.Time
	Notes          *string
}

// Service is the order workflow: creation, edits, payments and status changes.
type Service struct {
	store   Store
	numbers NumberGenerator
	ledger  Ledger
	now     func() time.Time

	tracer   trace.Tracer
	created  metric.Int64Counter
	payments metric.Int64Counter
}

// Option configures a Service.
type Option func(*options)

type options struct {
	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
	now            func() time.Time
}

// WithMeterProvider sets the meter provider for workflow counters.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) { o.meterProvider = mp }
}

// WithTracerProvider sets the tracer provider for workflow spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tracerProvider = tp }
}

// WithClock overrides the time source used for delivery date checks.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// NewService creates an order Service backed by store.
func NewService(store Store, opts ...Option) (*Service, error) {
	o := options{
		meterProvider:  metricnoop.NewMeterProvider(),
		tracerProvider: tracenoop.NewTracerProvider(),
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	meter := o.meterProvider.Meter(instrumentationName)
	created, err := meter.Int64Counter("orders.created",
		metric.WithDescription("Number of orders created"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "orders.created counter")
	}
	payments, err := meter.Int64Counter("payments.recorded",
		metric.WithDescription("Number of payments recorded"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "payments.recorded counter")
	}

	return &Service{
		store:    store,
		now:      o.now,
		tracer:   o.tracerProvider.Tracer(instrumentationName),
		created:  created,
		payments: payments,
	}, nil
}

// Create validates req and, in a single transaction, resolves the customer,
// prices the items, assigns the order number, persists the order and applies
// the initial payment. Any failure rolls back every step.
func (s *Service) Create(ctx context.Context, req CreateRequest) (_ *Order, rerr error) {
	ctx, span := s.tracer.Start(ctx, "order.Create",
		trace.WithAttributes(attribute.Int64("shop.id", req.ShopID)),
	)
	defer func() { endSpan(span, rerr) }()

	req.normalize()
	if err := s.validateCreate(req); err != nil {
		return nil, err
	}

	var id int64
	var paid *Payment
	if err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		ok, err := tx.ShopExists(ctx, req.ShopID)
		if err != nil {
			return errors.Wrap(err, "check shop")
		}
		if !ok {
			return validation.New("shop_id", "shop does not exist")
		}
		if err := checkCatalog(ctx, tx, req.Items); err != nil {
			return err
		}

		c, err := tx.UpsertCustomer(ctx, customer.Customer{
			Phone:   req.Customer.Phone,
			Name:    req.Customer.Name,
			Address: req.Customer.Address,
		})
		if err != nil {
			return errors.Wrap(err, "upsert customer")
		}

		totals, err := ComputeTotals(req.Items, req.DiscountType, req.DiscountAmount)
		if err != nil {
			return err
		}
		number, err := s.numbers.Next(ctx, tx, req.ShopID)
		if err != nil {
			return err
		}

		o := &Order{
			Number:         number,
			ShopID:         req.ShopID,
			CustomerID:     c.ID,
			DeliveryDate:   req.DeliveryDate,
			DiscountType:   req.DiscountType,
			DiscountAmount: req.DiscountAmount,
			DiscountValue:  totals.DiscountValue,
			Subtotal:       totals.Subtotal,
			Total:          totals.Total,
			AdvancePaid:    zero,
			Due:            totals.Total,
			Status:         StatusPending,
			Notes:          req.Notes,
			CreatedBy:      req.CreatedBy,
			Items:          buildItems(req.Items, totals),
		}
		if err := tx.CreateOrder(ctx, o); err != nil {
			return errors.Wrap(err, "create order")
		}
		id = o.ID

		if req.Payment != nil && req.Payment.Method != MethodNone {
			if paid, err = s.ledger.Apply(ctx, tx, o, *req.Payment, req.CreatedBy); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return nil, err
	}

	s.created.Add(ctx, 1)
	if paid != nil {
		s.payments.Add(ctx, 1, metric.WithAttributes(attribute.String("method", string(paid.Method))))
	}
	o, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "reload order")
	}
	zctx.From(ctx).Info("Order created",
		zap.Int64("order_id", o.ID),
		zap.String("order_number", o.Number),
		zap.String("total", o.Total.StringFixed(2)),
	)
	return o, nil
}

// Update replaces the item set, discount, delivery date or notes and
// recomputes totals. Recorded payments and AdvancePaid are left intact.
func (s *Service) Update(ctx context.Context, id int64, req UpdateRequest) (_ *Order, rerr error) {
	ctx, span := s.tracer.Start(ctx, "order.Update",
		trace.WithAttributes(attribute.Int64("order.id", id)),
	)
	defer func() { endSpan(span, rerr) }()

	if req.Notes != nil {
		n := strings.TrimSpace(*req.Notes)
		req.Notes = &n
	}
	if req.Items != nil {
		roundPrices(req.Items)
		var verr validation.Error
		validateItems(req.Items, &verr)
		if err := verr.Err(); err != nil {
			return nil, err
		}
	}

	if err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		o, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}

		if req.DiscountType != nil {
			o.DiscountType = *req.DiscountType
		}
		if req.DiscountAmount != nil {
			o.DiscountAmount = req.DiscountAmount.Round(2)
		}
		var verr validation.Error
		validateDiscount(o.DiscountType, o.DiscountAmount, &verr)
		if req.DeliveryDate != nil {
			d := dateOf(*req.DeliveryDate)
			if !d.Equal(dateOf(o.DeliveryDate)) && !d.After(dateOf(s.now().UTC())) {
				verr.Add("delivery_date", "must be a future date")
			}
			o.DeliveryDate = d
		}
		if err := verr.Err(); err != nil {
			return err
		}
		if req.Notes != nil {
			o.Notes = *req.Notes
		}

		lines := req.Items
		if lines == nil {
			lines = linesOf(o.Items)
		} else if err := checkCatalog(ctx, tx, lines); err != nil {
			return err
		}
		totals, err := ComputeTotals(lines, o.DiscountType, o.DiscountAmount)
		if err != nil {
			return err
		}
		if req.Items != nil {
			o.Items = buildItems(lines, totals)
			if err := tx.ReplaceItems(ctx, o.ID, o.Items); err != nil {
				return errors.Wrap(err, "replace items")
			}
		}
		o.Subtotal = totals.Subtotal
		o.DiscountValue = totals.DiscountValue
		o.Total = totals.Total
		o.Due = Due(o.Total, o.AdvancePaid)
		if err := tx.UpdateOrder(ctx, o); err != nil {
			return errors.Wrap(err, "update order")
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, id)
}

// AddPayment records a payment against an order through the ledger. The
// order row is locked so concurrent payments serialize their balance updates.
func (s *Service) AddPayment(ctx context.Context, id int64, in PaymentInput, recordedBy int64) (_ *Order, rerr error) {
	ctx, span := s.tracer.Start(ctx, "order.AddPayment",
		trace.WithAttributes(attribute.Int64("order.id", id)),
	)
	defer func() { endSpan(span, rerr) }()

	if err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		o, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		_, err = s.ledger.Apply(ctx, tx, o, in, recordedBy)
		return err
	}); err != nil {
		return nil, err
	}
	s.payments.Add(ctx, 1, metric.WithAttributes(attribute.String("method", string(in.Method))))
	return s.store.Get(ctx, id)
}

// UpdateStatus moves an order to next if the transition table allows it.
func (s *Service) UpdateStatus(ctx context.Context, id int64, next Status) (_ *Order, rerr error) {
	ctx, span := s.tracer.Start(ctx, "order.UpdateStatus",
		trace.WithAttributes(attribute.Int64("order.id", id), attribute.String("status", string(next))),
	)
	defer func() { endSpan(span, rerr) }()

	if _, err := ParseStatus(string(next)); err != nil {
		return nil, validation.New("status", "must be a known order status")
	}
	if err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		o, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !o.Status.CanTransition(next) {
			return errors.Wrapf(ErrInvalidTransition, "%s -> %s", o.Status, next)
		}
		o.Status = next
		return tx.UpdateOrder(ctx, o)
	}); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, id)
}

// Get returns an order with its items and payments.
func (s *Service) Get(ctx context.Context, id int64) (*Order, error) {
	return s.store.Get(ctx, id)
}

// List returns a page of orders, newest first, and the total match count.
func (s *Service) List(ctx context.Context, f Filter) ([]Order, int, error) {
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 20
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	if f.Status != "" {
		if _, err := ParseStatus(string(f.Status)); err != nil {
			return nil, 0, validation.New("status", "must be a known order status")
		}
	}
	return s.store.List(ctx, f)
}

func (r *CreateRequest) normalize() {
	r.Customer.Phone = strings.TrimSpace(r.Customer.Phone)
	r.Customer.Name = strings.TrimSpace(r.Customer.Name)
	r.Customer.Address = strings.TrimSpace(r.Customer.Address)
	r.Notes = strings.TrimSpace(r.Notes)
	r.DeliveryDate = dateOf(r.DeliveryDate)
	if r.DiscountType == "" {
		r.DiscountType = DiscountFixed
	}
	r.DiscountAmount = r.DiscountAmount.Round(2)
	roundPrices(r.Items)
	if r.Payment != nil {
		if r.Payment.Method == "" {
			r.Payment.Method = MethodNone
		}
		r.Payment.normalize()
	}
}

func (s *Service) validateCreate(req CreateRequest) error {
	var verr validation.Error
	if req.ShopID <= 0 {
		verr.Add("shop_id", "is required")
	}
	if !customer.ValidPhone(req.Customer.Phone) {
		verr.Add("customer.phone", "must be exactly 11 digits")
	}
	if req.Customer.Name == "" {
		verr.Add("customer.name", "is required")
	}
	if !req.DeliveryDate.After(dateOf(s.now().UTC())) {
		verr.Add("delivery_date", "must be a future date")
	}
	validateItems(req.Items, &verr)
	validateDiscount(req.DiscountType, req.DiscountAmount, &verr)
	if p := req.Payment; p != nil && p.Method != MethodNone {
		p.validate("payment.", &verr)
	}
	return verr.Err()
}

func validateItems(items []Line, verr *validation.Error) {
	if len(items) == 0 {
		verr.Add("items", "at least one item is required")
		return
	}
	subtotal := zero
	for i, it := range items {
		prefix := fmt.Sprintf("items[%d].", i)
		if it.ProductTypeID <= 0 {
			verr.Add(prefix+"product_type_id", "is required")
		}
		if it.ProductSizeID <= 0 {
			verr.Add(prefix+"product_size_id", "is required")
		}
		switch {
		case it.Quantity < 1:
			verr.Add(prefix+"quantity", "must be at least 1")
		case it.Quantity > MaxQuantity:
			verr.Add(prefix+"quantity", fmt.Sprintf("must not exceed %d", MaxQuantity))
		}
		switch {
		case it.UnitPrice.IsNegative():
			verr.Add(prefix+"price", "must not be negative")
		case it.UnitPrice.GreaterThan(MaxMoney):
			verr.Add(prefix+"price", "must not exceed "+MaxMoney.StringFixed(2))
		case it.Quantity >= 1:
			lt := it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))).Round(2)
			if lt.GreaterThan(MaxMoney) {
				verr.Add(prefix+"price", "line total must not exceed "+MaxMoney.StringFixed(2))
			}
			subtotal = subtotal.Add(lt)
		}
	}
	if subtotal.GreaterThan(MaxMoney) {
		verr.Add("items", "subtotal must not exceed "+MaxMoney.StringFixed(2))
	}
}

func validateDiscount(t DiscountType, amount decimal.Decimal, verr *validation.Error) {
	switch t {
	case DiscountFixed:
		switch {
		case amount.IsNegative():
			verr.Add("discount_amount", "must not be negative")
		case amount.GreaterThan(MaxMoney):
			verr.Add("discount_amount", "must not exceed "+MaxMoney.StringFixed(2))
		}
	case DiscountPercentage:
		if amount.IsNegative() || amount.GreaterThan(hundred) {
			verr.Add("discount_amount", "must be between 0 and 100")
		}
	default:
		verr.Add("discount_type", "must be fixed or percentage")
	}
}

func checkCatalog(ctx context.Context, tx Tx, items []Line) error {
	var verr validation.Error
	for i, it := range items {
		ok, err := tx.SizeOfType(ctx, it.ProductTypeID, it.ProductSizeID)
		if err != nil {
			return errors.Wrap(err, "check catalog")
		}
		if !ok {
			verr.Add(fmt.Sprintf("items[%d].product_size_id", i), "size does not belong to product type")
		}
	}
	return verr.Err()
}

func buildItems(lines []Line, totals Totals) []Item {
	items := make([]Item, len(lines))
	for i, l := range lines {
		items[i] = Item{
			ProductTypeID: l.ProductTypeID,
			ProductSizeID: l.ProductSizeID,
			Quantity:      l.Quantity,
			UnitPrice:     l.UnitPrice,
			LineTotal:     totals.LineTotals[i],
			Notes:         strings.TrimSpace(l.Notes),
		}
	}
	return items
}

func roundPrices(lines []Line) {
	for i := range lines {
		lines[i].UnitPrice = lines[i].UnitPrice.Round(2)
	}
}

func linesOf(items []Item) []Line {
	lines := make([]Line, len(items))
	for i, it := range items {
		lines[i] = Line{
			ProductTypeID: it.ProductTypeID,
			ProductSizeID: it.ProductSizeID,
			Quantity:      it.Quantity,
			UnitPrice:     it.UnitPrice,
			Notes:         it.Notes,
		}
	}
	return lines
}

// dateOf truncates t to its calendar date.
func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
