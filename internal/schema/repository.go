package schema

import (
	"context"
)

// Repository is a source of raw schema definitions, read once at boot.
type Repository interface {
	// List returns every definition known to the source.
	List(ctx context.Context) ([]*Definition, error)
}
