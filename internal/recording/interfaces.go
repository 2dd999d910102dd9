package recording

import (
	"context"

	"github.com/google/uuid"
	"github.com/mjs/cacophony-api/pkg/auth"
)

// RepositoryInterface defines all public methods of the Repository
type RepositoryInterface interface {
	// Recording operations
	Create(ctx context.Context, rec *Recording) error
	GetByID(ctx context.Context, id uuid.UUID) (*Recording, error)
	GetOneVisible(ctx context.Context, identity *auth.Identity, id uuid.UUID, typeConstraint Type) (*Recording, error)
	Query(ctx context.Context, identity *auth.Identity, q *Query) ([]*Recording, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)

	// Tag operations
	AddTag(ctx context.Context, recordingID uuid.UUID, tag string) error
	RemoveTag(ctx context.Context, recordingID uuid.UUID, tag string) (bool, error)
	ListTags(ctx context.Context, recordingID uuid.UUID) ([]string, error)
}
