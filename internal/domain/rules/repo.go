package rules

import "context"

// Repository persists rule definitions.
type Repository interface {
	ListEnabled(ctx context.Context) ([]Rule, error)
	List(ctx context.Context) ([]Rule, error)
	Count(ctx context.Context) (int, error)
	GetByID(ctx context.Context, id int) (*Rule, error)
	Insert(ctx context.Context, r *Rule) error
	// InsertIfAbsent inserts rules whose names are not taken and returns how
	// many rows were created. Concurrent callers never create duplicates.
	InsertIfAbsent(ctx context.Context, rules []Rule) (int, error)
	Update(ctx context.Context, r *Rule) error
}
