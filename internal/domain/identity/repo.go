package identity

import "context"

// Repository persists users.
type Repository interface {
	GetByUsername(ctx context.Context, username string) (*User, error)
	// CreateIfAbsent inserts u unless the username is taken and reports
	// whether a row was created.
	CreateIfAbsent(ctx context.Context, u *User) (bool, error)
}
