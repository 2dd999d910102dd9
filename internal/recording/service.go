package recording

import (
	"context"
	"io"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mjs/cacophony-api/pkg/auth"
	"github.com/mjs/cacophony-api/pkg/common"
	"github.com/mjs/cacophony-api/pkg/logger"
	"github.com/mjs/cacophony-api/pkg/pagination"
	"github.com/mjs/cacophony-api/pkg/storage"
)

// Service handles recording business logic
type Service struct {
	repo    RepositoryInterface
	store   storage.Storage
	builder *MetadataBuilder
	mime    *MimeResolver
	tokens  *TokenIssuer
}

// NewService creates a new recording service
func NewService(repo RepositoryInterface, store storage.Storage, builder *MetadataBuilder, mime *MimeResolver, tokens *TokenIssuer) *Service {
	return &Service{
		repo:    repo,
		store:   store,
		builder: builder,
		mime:    mime,
		tokens:  tokens,
	}
}

// ========================================
// INGESTION
// ========================================

// Ingest streams the file body to storage, then builds and persists the
// recording metadata. When the metadata phase fails after the blob landed,
// the blob is released so storage never accumulates orphans whose keys no
// record references. A storage failure leaves nothing to clean up.
func (s *Service) Ingest(ctx context.Context, device *auth.DeviceContext, meta *UploadMetadata, filename string, body io.Reader) (*Recording, error) {
	key := storage.NewRecordingKey()
	if err := s.store.Upload(ctx, key, body, s.mime.Resolve(meta.Type, filename)); err != nil {
		return nil, common.NewIngestionError("failed to store recording file", err)
	}

	rec, err := s.builder.Build(device, meta, filename)
	if err != nil {
		s.releaseBlob(ctx, key)
		return nil, err
	}
	rec.RawFileKey = key

	if err := s.repo.Create(ctx, rec); err != nil {
		s.releaseBlob(ctx, key)
		return nil, common.NewIngestionError("failed to save recording", err)
	}

	logger.Info("recording ingested",
		zap.String("recording_id", rec.ID.String()),
		zap.String("device_id", device.ID.String()),
		zap.String("type", string(rec.Type)))

	return rec, nil
}

// releaseBlob deletes an uploaded blob after a failed ingestion. Runs on a
// detached context so a cancelled request still gets cleaned up.
func (s *Service) releaseBlob(ctx context.Context, key string) {
	cleanupCtx := context.WithoutCancel(ctx)
	if err := s.store.Delete(cleanupCtx, key); err != nil {
		logger.Error("failed to release orphaned blob",
			zap.String("key", key),
			zap.Error(err))
	}
}

// ========================================
// QUERY
// ========================================

// Query normalizes the client filter, scopes it to the identity and
// returns a page of projections.
func (s *Service) Query(ctx context.Context, identity *auth.Identity, params *QueryParams, typeConstraint Type) (*QueryResponse, error) {
	q, err := NormalizeQuery(params, typeConstraint)
	if err != nil {
		return nil, err
	}

	q.Limit = pagination.ClampLimit(q.Limit)
	q.Offset = pagination.ClampOffset(q.Offset)

	recordings, err := s.repo.Query(ctx, identity, q)
	if err != nil {
		return nil, common.NewInternalServerError("failed to query recordings")
	}

	infos := make([]*RecordingInfo, 0, len(recordings))
	for _, rec := range recordings {
		infos = append(infos, rec.Project())
	}

	return &QueryResponse{
		Recordings: infos,
		Count:      len(infos),
		Limit:      q.Limit,
		Offset:     q.Offset,
	}, nil
}

// GetOne returns a single visible recording together with fresh download
// tokens for its files.
func (s *Service) GetOne(ctx context.Context, identity *auth.Identity, id uuid.UUID, typeConstraint Type) (*GetRecordingResponse, error) {
	rec, err := s.repo.GetOneVisible(ctx, identity, id, typeConstraint)
	if err != nil {
		return nil, common.NewInternalServerError("failed to get recording")
	}
	if rec == nil {
		return nil, common.NewNotFoundError("no file found with given datapoint", nil)
	}

	rawToken, fileToken, err := s.tokens.IssueForRecording(rec)
	if err != nil {
		return nil, common.NewInternalServerError("failed to issue download tokens")
	}

	return &GetRecordingResponse{
		Recording:       rec.Project(),
		DownloadRawJWT:  rawToken,
		DownloadFileJWT: fileToken,
	}, nil
}

// ========================================
// DELETION
// ========================================

// Delete removes a recording the identity is authorized to remove, then
// releases its stored files. Reports whether a recording was deleted;
// (false, nil) means no such recording existed.
func (s *Service) Delete(ctx context.Context, identity *auth.Identity, id uuid.UUID) (bool, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return false, common.NewInternalServerError("failed to get recording")
	}
	if rec == nil {
		return false, nil
	}

	if !identity.CanAccessGroup(rec.GroupID) && !identity.OwnsDevice(rec.DeviceID) {
		return false, common.NewForbiddenError("not authorized to delete this recording")
	}

	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return false, common.NewInternalServerError("failed to delete recording")
	}
	if !deleted {
		return false, nil
	}

	// The record is gone; file cleanup failures are logged, not surfaced.
	s.releaseBlob(ctx, rec.RawFileKey)
	if rec.FileKey != nil {
		s.releaseBlob(ctx, *rec.FileKey)
	}

	logger.Info("recording deleted",
		zap.String("recording_id", id.String()))

	return true, nil
}

// ========================================
// TAGS
// ========================================

// AddTag attaches a tag to a recording visible to the identity
func (s *Service) AddTag(ctx context.Context, identity *auth.Identity, id uuid.UUID, tag string) error {
	rec, err := s.repo.GetOneVisible(ctx, identity, id, "")
	if err != nil {
		return common.NewInternalServerError("failed to get recording")
	}
	if rec == nil {
		return common.NewNotFoundError("no file found with given datapoint", nil)
	}

	if err := s.repo.AddTag(ctx, rec.ID, tag); err != nil {
		return common.NewInternalServerError("failed to add tag")
	}
	return nil
}

// RemoveTag detaches a tag from a recording visible to the identity
func (s *Service) RemoveTag(ctx context.Context, identity *auth.Identity, id uuid.UUID, tag string) error {
	rec, err := s.repo.GetOneVisible(ctx, identity, id, "")
	if err != nil {
		return common.NewInternalServerError("failed to get recording")
	}
	if rec == nil {
		return common.NewNotFoundError("no file found with given datapoint", nil)
	}

	removed, err := s.repo.RemoveTag(ctx, rec.ID, tag)
	if err != nil {
		return common.NewInternalServerError("failed to remove tag")
	}
	if !removed {
		return common.NewNotFoundError("tag not found on recording", nil)
	}
	return nil
}

// ListTags lists the tags on a recording visible to the identity
func (s *Service) ListTags(ctx context.Context, identity *auth.Identity, id uuid.UUID) ([]string, error) {
	rec, err := s.repo.GetOneVisible(ctx, identity, id, "")
	if err != nil {
		return nil, common.NewInternalServerError("failed to get recording")
	}
	if rec == nil {
		return nil, common.NewNotFoundError("no file found with given datapoint", nil)
	}

	tags, err := s.repo.ListTags(ctx, rec.ID)
	if err != nil {
		return nil, common.NewInternalServerError("failed to list tags")
	}
	return tags, nil
}

// ========================================
// DOWNLOAD
// ========================================

// Download redeems a download token for the file bytes. The claims carry
// everything needed to serve the response; no database access happens here.
func (s *Service) Download(ctx context.Context, token string) (*DownloadClaims, io.ReadCloser, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil, nil, common.NewForbiddenError("invalid or expired download token")
	}

	body, err := s.store.Download(ctx, claims.Key)
	if err != nil {
		return nil, nil, common.NewNotFoundError("file no longer available", err)
	}

	return claims, body, nil
}
