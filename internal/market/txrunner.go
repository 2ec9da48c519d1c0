package market

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/ariefcatur/go-barter-market/internal/apperr"
)

const DefaultTxAttempts = 5

// RunInTx runs fn through s.WithTransaction, re-running it on
// ErrTxConflict with exponential backoff. Once attempts are used up the
// result is an apperr CodeConflict; any other error ends the run at once.
func RunInTx(ctx context.Context, s Store, attempts int, fn TxFunc) error {
	if attempts <= 0 {
		attempts = DefaultTxAttempts
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 5 * time.Millisecond
	b.MaxInterval = 250 * time.Millisecond

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := s.WithTransaction(ctx, fn)
		switch {
		case err == nil:
			return struct{}{}, nil
		case errors.Is(err, ErrTxConflict):
			return struct{}{}, err
		default:
			return struct{}{}, backoff.Permanent(err)
		}
	}, backoff.WithBackOff(b), backoff.WithMaxTries(uint(attempts)))

	if errors.Is(err, ErrTxConflict) {
		return apperr.Wrap(apperr.CodeConflict, "transaction retries exhausted", err)
	}
	return err
}
