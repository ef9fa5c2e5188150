package handler

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/tailor-orders/internal/domain/order"
	"github.com/xenking/tailor-orders/internal/domain/validation"
)

type orderItemRequest struct {
	ProductTypeID int64            `json:"product_type_id" validate:"required,gt=0"`
	ProductSizeID int64            `json:"product_size_id" validate:"required,gt=0"`
	Quantity      int              `json:"quantity" validate:"required,gte=1,lte=100000"`
	Price         *decimal.Decimal `json:"price" validate:"required"`
	Notes         string           `json:"notes" validate:"max=1000"`
}

func linesOf(items []orderItemRequest) []order.Line {
	if items == nil {
		return nil
	}
	lines := make([]order.Line, len(items))
	for i, it := range items {
		lines[i] = order.Line{
			ProductTypeID: it.ProductTypeID,
			ProductSizeID: it.ProductSizeID,
			Quantity:      it.Quantity,
			UnitPrice:     *it.Price,
			Notes:         it.Notes,
		}
	}
	return lines
}

type orderCustomerRequest struct {
	Phone   string `json:"phone" validate:"required"`
	Name    string `json:"name" validate:"required,max=255"`
	Address string `json:"address" validate:"max=500"`
}

type paymentRequest struct {
	Method        string           `json:"method" validate:"required,oneof=cash bkash nagad bank none"`
	Amount        *decimal.Decimal `json:"amount" validate:"required_unless=Method none"`
	TransactionID string           `json:"transaction_id" validate:"max=100"`
	BankName      string           `json:"bank_name" validate:"max=100"`
	AccountNumber string           `json:"account_number" validate:"max=50"`
	MFSProvider   string           `json:"mfs_provider" validate:"max=50"`
	MFSNumber     string           `json:"mfs_number" validate:"max=20"`
}

func (p paymentRequest) input() order.PaymentInput {
	in := order.PaymentInput{
		Method:        order.PaymentMethod(p.Method),
		TransactionID: p.TransactionID,
		BankName:      p.BankName,
		AccountNumber: p.AccountNumber,
		MFSProvider:   p.MFSProvider,
		MFSNumber:     p.MFSNumber,
	}
	if p.Amount != nil {
		in.Amount = *p.Amount
	}
	return in
}

type createOrderRequest struct {
	ShopID         int64                `json:"shop_id" validate:"required,gt=0"`
	Customer       orderCustomerRequest `json:"customer" validate:"required"`
	DeliveryDate   string               `json:"delivery_date" validate:"required,datetime=2006-01-02"`
	Items          []orderItemRequest   `json:"items" validate:"required,min=1,dive"`
	DiscountType   string               `json:"discount_type" validate:"omitempty,oneof=fixed percentage"`
	DiscountAmount *decimal.Decimal     `json:"discount_amount"`
	Notes          string               `json:"notes" validate:"max=2000"`
	Payment        *paymentRequest      `json:"payment" validate:"omitempty"`
}

type updateOrderRequest struct {
	Items          []orderItemRequest `json:"items" validate:"omitempty,min=1,dive"`
	DiscountType   *string            `json:"discount_type" validate:"omitempty,oneof=fixed percentage"`
	DiscountAmount *decimal.Decimal   `json:"discount_amount"`
	DeliveryDate   *string            `json:"delivery_date" validate:"omitempty,datetime=2006-01-02"`
	Notes          *string            `json:"notes" validate:"omitempty,max=2000"`
}

type statusRequest struct {
	Status string `json:"status" validate:"required"`
}

type orderItemResponse struct {
	ID            int64  `json:"id"`
	ProductTypeID int64  `json:"product_type_id"`
	ProductSizeID int64  `json:"product_size_id"`
	Quantity      int    `json:"quantity"`
	Price         money  `json:"price"`
	LineTotal     money  `json:"line_total"`
	Notes         string `json:"notes"`
}

type paymentResponse struct {
	ID            int64     `json:"id"`
	Method        string    `json:"method"`
	Amount        money     `json:"amount"`
	TransactionID string    `json:"transaction_id,omitempty"`
	BankName      string    `json:"bank_name,omitempty"`
	AccountNumber string    `json:"account_number,omitempty"`
	MFSProvider   string    `json:"mfs_provider,omitempty"`
	MFSNumber     string    `json:"mfs_number,omitempty"`
	RecordedBy    int64     `json:"recorded_by,omitempty"`
	PaidAt        time.Time `json:"paid_at"`
}

type orderResponse struct {
	ID             int64               `json:"id"`
	OrderNumber    string              `json:"order_number"`
	ShopID         int64               `json:"shop_id"`
	CustomerID     int64               `json:"customer_id"`
	Customer       *customerResponse   `json:"customer,omitempty"`
	DeliveryDate   string              `json:"delivery_date"`
	DiscountType   string              `json:"discount_type"`
	DiscountAmount money               `json:"discount_amount"`
	DiscountValue  money               `json:"discount_value"`
	Subtotal       money               `json:"subtotal"`
	TotalAmount    money               `json:"total_amount"`
	AdvancePaid    money               `json:"advance_paid"`
	DueAmount      money               `json:"due_amount"`
	Status         string              `json:"status"`
	Notes          string              `json:"notes"`
	CreatedBy      int64               `json:"created_by,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
	Items          []orderItemResponse `json:"items,omitempty"`
	Payments       []paymentResponse   `json:"payments,omitempty"`
}

func toOrder(o order.Order) orderResponse {
	out := orderResponse{
		ID:             o.ID,
		OrderNumber:    o.Number,
		ShopID:         o.ShopID,
		CustomerID:     o.CustomerID,
		DeliveryDate:   o.DeliveryDate.Format(dateLayout),
		DiscountType:   string(o.DiscountType),
		DiscountAmount: money(o.DiscountAmount),
		DiscountValue:  money(o.DiscountValue),
		Subtotal:       money(o.Subtotal),
		TotalAmount:    money(o.Total),
		AdvancePaid:    money(o.AdvancePaid),
		DueAmount:      money(o.Due),
		Status:         string(o.Status),
		Notes:          o.Notes,
		CreatedBy:      o.CreatedBy,
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
	}
	if o.Customer != nil {
		c := toCustomer(*o.Customer)
		out.Customer = &c
	}
	for _, it := range o.Items {
		out.Items = append(out.Items, orderItemResponse{
			ID:            it.ID,
			ProductTypeID: it.ProductTypeID,
			ProductSizeID: it.ProductSizeID,
			Quantity:      it.Quantity,
			Price:         money(it.UnitPrice),
			LineTotal:     money(it.LineTotal),
			Notes:         it.Notes,
		})
	}
	for _, p := range o.Payments {
		out.Payments = append(out.Payments, paymentResponse{
			ID:            p.ID,
			Method:        string(p.Method),
			Amount:        money(p.Amount),
			TransactionID: p.TransactionID,
			BankName:      p.BankName,
			AccountNumber: p.AccountNumber,
			MFSProvider:   p.MFSProvider,
			MFSNumber:     p.MFSNumber,
			RecordedBy:    p.RecordedBy,
			PaidAt:        p.PaidAt,
		})
	}
	return out
}

func parseDate(field, s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, validation.New(field, "must be a date in YYYY-MM-DD format")
	}
	return t, nil
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decode(r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	delivery, err := parseDate("delivery_date", req.DeliveryDate)
	if err != nil {
		handleError(w, r, err)
		return
	}

	in := order.CreateRequest{
		ShopID: req.ShopID,
		Customer: order.CustomerInput{
			Phone:   req.Customer.Phone,
			Name:    req.Customer.Name,
			Address: req.Customer.Address,
		},
		DeliveryDate: delivery,
		Items:        linesOf(req.Items),
		DiscountType: order.DiscountType(req.DiscountType),
		Notes:        req.Notes,
		CreatedBy:    currentUser(r.Context()).ID,
	}
	if req.DiscountAmount != nil {
		in.DiscountAmount = *req.DiscountAmount
	}
	if req.Payment != nil {
		p := req.Payment.input()
		in.Payment = &p
	}

	o, err := h.orders.Create(r.Context(), in)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrder(*o))
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	var verr validation.Error
	q := r.URL.Query()
	f := order.Filter{
		ShopID: int64(queryInt(r, "shop_id", &verr)),
		Status: order.Status(q.Get("status")),
		Phone:  q.Get("phone"),
		Limit:  queryInt(r, "limit", &verr),
		Offset: queryInt(r, "offset", &verr),
	}
	if err := verr.Err(); err != nil {
		handleError(w, r, err)
		return
	}
	list, total, err := h.orders.List(r.Context(), f)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newList(list, total, toOrder))
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	o, err := h.orders.Get(r.Context(), id)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrder(*o))
}

func (h *Handler) updateOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	var req updateOrderRequest
	if err := decode(r, &req); err != nil {
		handleError(w, r, err)
		return
	}

	in := order.UpdateRequest{
		Items:          linesOf(req.Items),
		DiscountAmount: req.DiscountAmount,
		Notes:          req.Notes,
	}
	if req.DiscountType != nil {
		dt := order.DiscountType(*req.DiscountType)
		in.DiscountType = &dt
	}
	if req.DeliveryDate != nil {
		d, err := parseDate("delivery_date", *req.DeliveryDate)
		if err != nil {
			handleError(w, r, err)
			return
		}
		in.DeliveryDate = &d
	}

	o, err := h.orders.Update(r.Context(), id, in)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrder(*o))
}

func (h *Handler) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	var req statusRequest
	if err := decode(r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	o, err := h.orders.UpdateStatus(r.Context(), id, order.Status(req.Status))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrder(*o))
}

func (h *Handler) addPayment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	var req paymentRequest
	if err := decode(r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	o, err := h.orders.AddPayment(r.Context(), id, req.input(), currentUser(r.Context()).ID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrder(*o))
}
