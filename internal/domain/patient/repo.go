package patient

import "context"

// Repository persists patients.
type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id string) (*Patient, error)
	List(ctx context.Context, f Filter) ([]*Patient, error)
	Update(ctx context.Context, p *Patient) error
	Exists(ctx context.Context, id string) (bool, error)
}
