package audit

import "context"

// Repository persists audit entries.
type Repository interface {
	Insert(ctx context.Context, e *Entry) error
	// List returns entries newest first.
	List(ctx context.Context, f Filter) ([]Entry, error)
}
