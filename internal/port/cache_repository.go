package port

import "context"

type IdempotencyRepository interface {
	// Reserve claims a key for an in-flight checkout, returns false if it already exists
	Reserve(ctx context.Context, key string) (bool, error)

	// Complete records the invoice produced for a reserved key
	Complete(ctx context.Context, key string, invoiceID int64) error

	// Lookup returns the invoice recorded for a key, ok is false while it is still in flight
	Lookup(ctx context.Context, key string) (invoiceID int64, ok bool, err error)

	// Release drops a reservation after a failed checkout so the client may retry
	Release(ctx context.Context, key string) error
}
