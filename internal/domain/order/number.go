package order

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
)

// SequenceStore hands out per-shop order sequences. NextOrderSequence must
// return the shop's current counter and advance it atomically, holding a
// lock until the surrounding transaction ends.
type SequenceStore interface {
	NextOrderSequence(ctx context.Context, shopID int64) (code string, seq int64, err error)
}

// FormatNumber renders an order number: ORD-{code}-{seq}, sequence zero-padded to six digits.
func FormatNumber(code string, seq int64) string {
	return fmt.Sprintf("ORD-%s-%06d", code, seq)
}

// NumberGenerator produces unique order numbers per shop.
type NumberGenerator struct{}

// Next assigns the next number for shopID. Run it inside the order-creation
// transaction so that a rollback releases the sequence without a gap.
func (NumberGenerator) Next(ctx context.Context, s SequenceStore, shopID int64) (string, error) {
	code, seq, err := s.NextOrderSequence(ctx, shopID)
	if err != nil {
		return "", errors.Wrap(err, "next order sequence")
	}
	return FormatNumber(code, seq), nil
}
