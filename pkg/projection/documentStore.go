package projection

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when no projection exists for a target.
var ErrNotFound = errors.New("projection not found")

// DocumentStore is the narrow contract against the denormalized store.
// Put is a whole-document overwrite; no partial-field update is assumed
// of the backing engine.
type DocumentStore interface {
	Get(ctx context.Context, targetID string) (*Projection, error)
	Put(ctx context.Context, targetID string, p *Projection) error
	Delete(ctx context.Context, targetID string) error
}
