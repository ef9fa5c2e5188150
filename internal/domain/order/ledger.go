package order

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/tailor-orders/internal/domain/validation"
)

// MFSNumberLength is the digit count of a mobile wallet number.
const MFSNumberLength = 11

// LedgerStore is the payment persistence used by Ledger.
type LedgerStore interface {
	AppendPayment(ctx context.Context, p *Payment) error
	SumPayments(ctx context.Context, orderID int64) (decimal.Decimal, error)
	UpdateBalances(ctx context.Context, orderID int64, advancePaid, due decimal.Decimal) error
}

// PaymentInput describes a payment to record.
type PaymentInput struct {
	Method        PaymentMethod
	Amount        decimal.Decimal
	TransactionID string
	BankName      string
	AccountNumber string
	MFSProvider   string
	MFSNumber     string
}

func (in *PaymentInput) normalize() {
	in.Amount = in.Amount.Round(2)
	in.TransactionID = strings.TrimSpace(in.TransactionID)
	in.BankName = strings.TrimSpace(in.BankName)
	in.AccountNumber = strings.TrimSpace(in.AccountNumber)
	in.MFSProvider = strings.TrimSpace(in.MFSProvider)
	in.MFSNumber = strings.TrimSpace(in.MFSNumber)
	if in.Method.IsMFS() && in.MFSProvider == "" {
		in.MFSProvider = string(in.Method)
	}
}

// validate checks a payment the ledger is asked to append. prefix scopes
// field names, e.g. "payment." when nested in an order request.
func (in PaymentInput) validate(prefix string, verr *validation.Error) {
	if !in.Method.valid() || in.Method == MethodNone {
		verr.Add(prefix+"method", "must be one of cash, bkash, nagad, bank")
		return
	}
	switch {
	case !in.Amount.IsPositive():
		verr.Add(prefix+"amount", "must be at least 0.01")
	case in.Amount.GreaterThan(MaxMoney):
		verr.Add(prefix+"amount", "must not exceed "+MaxMoney.StringFixed(2))
	}
	switch {
	case in.Method == MethodBank && in.BankName == "":
		verr.Add(prefix+"bank_name", "is required for bank payments")
	case in.Method.IsMFS() && !digits(in.MFSNumber, MFSNumberLength):
		verr.Add(prefix+"mfs_number", "must be 11 digits")
	}
}

// Ledger records payments and keeps an order's balances consistent with them.
type Ledger struct{}

// Apply appends a payment to o and recomputes AdvancePaid as the sum of all
// payments and Due as max(0, Total-AdvancePaid). Overpayment is accepted.
// It mutates o to reflect the persisted balances.
func (Ledger) Apply(ctx context.Context, s LedgerStore, o *Order, in PaymentInput, recordedBy int64) (*Payment, error) {
	in.normalize()
	var verr validation.Error
	in.validate("", &verr)
	if err := verr.Err(); err != nil {
		return nil, err
	}
	if o.AdvancePaid.Add(in.Amount).GreaterThan(MaxMoney) {
		return nil, validation.New("amount", "total paid would exceed "+MaxMoney.StringFixed(2))
	}

	p := &Payment{
		OrderID:       o.ID,
		Method:        in.Method,
		Amount:        in.Amount,
		TransactionID: in.TransactionID,
		BankName:      in.BankName,
		AccountNumber: in.AccountNumber,
		MFSProvider:   in.MFSProvider,
		MFSNumber:     in.MFSNumber,
		RecordedBy:    recordedBy,
	}
	if err := s.AppendPayment(ctx, p); err != nil {
		return nil, errors.Wrap(err, "append payment")
	}
	if err := rebalance(ctx, s, o); err != nil {
		return nil, err
	}
	o.Payments = append(o.Payments, *p)
	return p, nil
}

// rebalance recomputes balances from the payment history against o.Total.
func rebalance(ctx context.Context, s LedgerStore, o *Order) error {
	sum, err := s.SumPayments(ctx, o.ID)
	if err != nil {
		return errors.Wrap(err, "sum payments")
	}
	advance := sum.Round(2)
	due := Due(o.Total, advance)
	if err := s.UpdateBalances(ctx, o.ID, advance, due); err != nil {
		return errors.Wrap(err, "update balances")
	}
	o.AdvancePaid, o.Due = advance, due
	return nil
}

func digits(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
