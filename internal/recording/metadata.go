package recording

import (
	"fmt"

	"github.com/mjs/cacophony-api/pkg/auth"
	"github.com/mjs/cacophony-api/pkg/common"
	"github.com/mjs/cacophony-api/pkg/validation"
)

// MetadataBuilder turns allow-listed upload fields plus the authenticated
// device context into a Recording ready for persistence. It never persists
// anything itself.
type MetadataBuilder struct {
	mime   *MimeResolver
	states StateTable
}

// NewMetadataBuilder creates a builder with the given MIME and
// processing-state tables.
func NewMetadataBuilder(mime *MimeResolver, states StateTable) *MetadataBuilder {
	return &MetadataBuilder{mime: mime, states: states}
}

// Build produces a fully populated Recording. Ownership comes from the
// device context only; client-supplied ownership fields cannot exist because
// UploadMetadata does not carry them.
func (b *MetadataBuilder) Build(device *auth.DeviceContext, meta *UploadMetadata, filename string) (*Recording, error) {
	if err := validation.ValidateStruct(meta); err != nil {
		if valErr, ok := err.(*validation.ValidationError); ok {
			return nil, common.NewValidationError("invalid recording metadata", valErr.Errors)
		}
		return nil, common.NewBadRequestError("invalid recording metadata", err)
	}

	states, ok := b.states[meta.Type]
	if !ok || len(states) == 0 {
		return nil, common.NewConfigurationError(
			fmt.Sprintf("no processing states configured for recording type %q", meta.Type))
	}

	rec := &Recording{
		Type:              meta.Type,
		DeviceID:          device.ID,
		GroupID:           device.GroupID,
		RawMimeType:       b.mime.Resolve(meta.Type, filename),
		ProcessingState:   states[0],
		Duration:          meta.Duration,
		RecordingDateTime: meta.RecordingDateTime,
		Latitude:          meta.Latitude,
		Longitude:         meta.Longitude,
		Version:           meta.Version,
	}

	if device.Public != nil {
		rec.Public = *device.Public
	}

	return rec, nil
}
