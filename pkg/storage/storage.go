package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
)

// Storage is the blob store consumed by the recording pipeline. Keys are
// opaque strings generated server-side; clients never see them directly.
type Storage interface {
	// Upload streams a payload to storage under the given key. The reader is
	// consumed as it arrives; implementations must not buffer the whole
	// payload in memory.
	Upload(ctx context.Context, key string, reader io.Reader, contentType string) error

	// Download opens a stream for a stored object
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes a stored object
	Delete(ctx context.Context, key string) error

	// Exists checks if an object is present
	Exists(ctx context.Context, key string) (bool, error)
}

// NewRecordingKey generates a unique storage key for an uploaded recording.
// Keys are date-prefixed so bucket listings stay navigable.
func NewRecordingKey() string {
	return fmt.Sprintf("raw/%s/%s", time.Now().UTC().Format("2006/01/02"), uuid.New().String())
}
