package history

import "context"

// Repository defines the interface for AQI record persistence.
type Repository interface {
	// Insert stores records and returns their IDs in input order.
	Insert(ctx context.Context, records []*Record) ([]string, error)

	// List returns records matching the filter, newest first.
	List(ctx context.Context, filter Filter) ([]*Record, error)
}
