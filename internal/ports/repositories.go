package ports

import (
	"context"

	"stoplight/internal/domain/stoplight"
)

// UnitOfWork runs a function within a single database transaction carried on the context.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// StoplightRepository reads and seeds the persisted stoplight definitions. The
// real-time core never touches it: definitions are read once per route precompute to
// build a session's working set.
type StoplightRepository interface {
	ListGroups(ctx context.Context) ([]stoplight.Group, error)
	ListStoplights(ctx context.Context) ([]stoplight.Stoplight, error)
	SeedGroups(ctx context.Context, groups []stoplight.Group) error
	SeedStoplights(ctx context.Context, stoplights []stoplight.Stoplight) error
}
