package recording

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mjs/cacophony-api/pkg/auth"
	"github.com/mjs/cacophony-api/pkg/common"
	"github.com/mjs/cacophony-api/pkg/pagination"
)

// ========================================
// MOCK REPOSITORY
// ========================================

type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) Create(ctx context.Context, rec *Recording) error {
	args := m.Called(ctx, rec)
	if args.Error(0) == nil {
		rec.ID = uuid.New()
		rec.CreatedAt = time.Now()
	}
	return args.Error(0)
}

func (m *mockRepo) GetByID(ctx context.Context, id uuid.UUID) (*Recording, error) {
	args := m.Called(ctx, id)
	rec, _ := args.Get(0).(*Recording)
	return rec, args.Error(1)
}

func (m *mockRepo) GetOneVisible(ctx context.Context, identity *auth.Identity, id uuid.UUID, typeConstraint Type) (*Recording, error) {
	args := m.Called(ctx, identity, id, typeConstraint)
	rec, _ := args.Get(0).(*Recording)
	return rec, args.Error(1)
}

func (m *mockRepo) Query(ctx context.Context, identity *auth.Identity, q *Query) ([]*Recording, error) {
	args := m.Called(ctx, identity, q)
	recs, _ := args.Get(0).([]*Recording)
	return recs, args.Error(1)
}

func (m *mockRepo) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *mockRepo) AddTag(ctx context.Context, recordingID uuid.UUID, tag string) error {
	args := m.Called(ctx, recordingID, tag)
	return args.Error(0)
}

func (m *mockRepo) RemoveTag(ctx context.Context, recordingID uuid.UUID, tag string) (bool, error) {
	args := m.Called(ctx, recordingID, tag)
	return args.Bool(0), args.Error(1)
}

func (m *mockRepo) ListTags(ctx context.Context, recordingID uuid.UUID) ([]string, error) {
	args := m.Called(ctx, recordingID)
	tags, _ := args.Get(0).([]string)
	return tags, args.Error(1)
}

// ========================================
// MOCK STORAGE
// ========================================

type mockStorage struct {
	mock.Mock
}

func (m *mockStorage) Upload(ctx context.Context, key string, reader io.Reader, contentType string) error {
	args := m.Called(ctx, key, reader, contentType)
	return args.Error(0)
}

func (m *mockStorage) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	args := m.Called(ctx, key)
	body, _ := args.Get(0).(io.ReadCloser)
	return body, args.Error(1)
}

func (m *mockStorage) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *mockStorage) Exists(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

// ========================================
// HELPERS
// ========================================

const testSecret = "test-secret-key-for-testing-only"

func newTestService(repo *mockRepo, store *mockStorage) *Service {
	mime := NewMimeResolver()
	builder := NewMetadataBuilder(mime, DefaultStateTable())
	tokens := NewTokenIssuer([]byte(testSecret))
	return NewService(repo, store, builder, mime, tokens)
}

func testDevice() *auth.DeviceContext {
	return &auth.DeviceContext{
		ID:      uuid.New(),
		GroupID: uuid.New(),
	}
}

func userIdentity(groupIDs ...uuid.UUID) *auth.Identity {
	return &auth.Identity{
		UserID:   uuid.New(),
		GroupIDs: groupIDs,
	}
}

// ========================================
// INGESTION
// ========================================

func TestIngestStoresFileAndCreatesRecording(t *testing.T) {
	ctx := context.Background()
	repo := new(mockRepo)
	store := new(mockStorage)
	service := newTestService(repo, store)
	device := testDevice()

	store.On("Upload", ctx, mock.AnythingOfType("string"), mock.Anything, "application/x-cptv").Return(nil)
	repo.On("Create", ctx, mock.AnythingOfType("*recording.Recording")).Return(nil)

	meta := &UploadMetadata{Type: TypeThermalRaw}
	rec, err := service.Ingest(ctx, device, meta, "clip.cptv", bytes.NewReader([]byte("cptv-bytes")))

	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, device.ID, rec.DeviceID)
	assert.Equal(t, device.GroupID, rec.GroupID)
	assert.Equal(t, StateToMp4, rec.ProcessingState)
	assert.Equal(t, "application/x-cptv", rec.RawMimeType)
	assert.NotEmpty(t, rec.RawFileKey)
	store.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	repo.AssertExpectations(t)
	store.AssertExpectations(t)
}

func TestIngestStorageFailureCreatesNoRecord(t *testing.T) {
	ctx := context.Background()
	repo := new(mockRepo)
	store := new(mockStorage)
	service := newTestService(repo, store)

	store.On("Upload", ctx, mock.AnythingOfType("string"), mock.Anything, mock.AnythingOfType("string")).
		Return(errors.New("connection reset"))

	meta := &UploadMetadata{Type: TypeAudio}
	rec, err := service.Ingest(ctx, testDevice(), meta, "song.mp3", bytes.NewReader([]byte("audio")))

	require.Error(t, err)
	assert.Nil(t, rec)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, common.CodeIngestion, appErr.Code)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	store.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestIngestMetadataFailureReleasesBlob(t *testing.T) {
	ctx := context.Background()
	repo := new(mockRepo)
	store := new(mockStorage)
	service := newTestService(repo, store)

	var uploadedKey string
	store.On("Upload", ctx, mock.AnythingOfType("string"), mock.Anything, mock.AnythingOfType("string")).
		Run(func(args mock.Arguments) { uploadedKey = args.String(1) }).
		Return(nil)
	store.On("Delete", mock.Anything, mock.AnythingOfType("string")).Return(nil)

	// Negative duration fails metadata validation after the blob landed.
	bad := -5
	meta := &UploadMetadata{Type: TypeAudio, Duration: &bad}
	rec, err := service.Ingest(ctx, testDevice(), meta, "song.mp3", bytes.NewReader([]byte("audio")))

	require.Error(t, err)
	assert.Nil(t, rec)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	store.AssertCalled(t, "Delete", mock.Anything, uploadedKey)
}

func TestIngestCreateFailureReleasesBlob(t *testing.T) {
	ctx := context.Background()
	repo := new(mockRepo)
	store := new(mockStorage)
	service := newTestService(repo, store)

	var uploadedKey string
	store.On("Upload", ctx, mock.AnythingOfType("string"), mock.Anything, mock.AnythingOfType("string")).
		Run(func(args mock.Arguments) { uploadedKey = args.String(1) }).
		Return(nil)
	store.On("Delete", mock.Anything, mock.AnythingOfType("string")).Return(nil)
	repo.On("Create", ctx, mock.AnythingOfType("*recording.Recording")).Return(errors.New("db down"))

	meta := &UploadMetadata{Type: TypeThermalRaw}
	rec, err := service.Ingest(ctx, testDevice(), meta, "clip.cptv", bytes.NewReader([]byte("cptv")))

	require.Error(t, err)
	assert.Nil(t, rec)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, common.CodeIngestion, appErr.Code)
	store.AssertCalled(t, "Delete", mock.Anything, uploadedKey)
}

func TestIngestInvalidMetadataReturnsValidationError(t *testing.T) {
	ctx := context.Background()
	repo := new(mockRepo)
	store := new(mockStorage)
	service := newTestService(repo, store)

	store.On("Upload", ctx, mock.AnythingOfType("string"), mock.Anything, mock.AnythingOfType("string")).Return(nil)
	store.On("Delete", mock.Anything, mock.AnythingOfType("string")).Return(nil)

	meta := &UploadMetadata{Type: "video"}
	_, err := service.Ingest(ctx, testDevice(), meta, "clip.avi", bytes.NewReader([]byte("x")))

	require.Error(t, err)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, common.CodeValidation, appErr.Code)
	assert.Contains(t, appErr.Fields, "type")
}

// ========================================
// QUERY
// ========================================

func TestQueryClampsLimitAndProjectsResults(t *testing.T) {
	ctx := context.Background()
	repo := new(mockRepo)
	store := new(mockStorage)
	service := newTestService(repo, store)
	identity := userIdentity(uuid.New())

	recs := []*Recording{
		{ID: uuid.New(), Type: TypeAudio, RawFileKey: "raw/secret-a"},
		{ID: uuid.New(), Type: TypeAudio, RawFileKey: "raw/secret-b"},
	}

	repo.On("Query", ctx, identity, mock.MatchedBy(func(q *Query) bool {
		return q.Limit == pagination.MaxLimit && q.Offset == 0
	})).Return(recs, nil)

	resp, err := service.Query(ctx, identity, &QueryParams{Limit: 5000}, "")

	require.NoError(t, err)
	assert.Equal(t, 2, resp.Count)
	assert.Equal(t, pagination.MaxLimit, resp.Limit)
	repo.AssertExpectations(t)
}

func TestQueryDefaultsLimitWhenUnset(t *testing.T) {
	ctx := context.Background()
	repo := new(mockRepo)
	store := new(mockStorage)
	service := newTestService(repo, store)
	identity := auth.AnonymousIdentity()

	repo.On("Query", ctx, identity, mock.MatchedBy(func(q *Query) bool {
		return q.Limit == pagination.DefaultLimit
	})).Return([]*Recording{}, nil)

	resp, err := service.Query(ctx, identity, &QueryParams{}, "")

	require.NoError(t, err)
	assert.Equal(t, 0, resp.Count)
	assert.Equal(t, pagination.DefaultLimit, resp.Limit)
}

func TestQueryTypeConstraintOverridesFilter(t *testing.T) {
	ctx := context.Background()
	repo := new(mockRepo)
	store := new(mockStorage)
	service := newTestService(repo, store)
	identity := auth.AnonymousIdentity()

	repo.On("Query", ctx, identity, mock.MatchedBy(func(q *Query) bool {
		return q.Where["type"] == string(TypeAudio)
	})).Return([]*Recording{}, nil)

	params := &QueryParams{Where: `{"type": "thermalRaw"}`}
	_, err := service.Query(ctx, identity, params, TypeAudio)

	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestQueryRejectsMalformedWhere(t *testing.T) {
	ctx := context.Background()
	repo := new(mockRepo)
	store := new(mockStorage)
	service := newTestService(repo, store)

	_, err := service.Query(ctx, auth.AnonymousIdentity(), &QueryParams{Where: "not-json"}, "")

	require.Error(t, err)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, common.CodeValidation, appErr.Code)
	repo.AssertNotCalled(t, "Query", mock.Anything, mock.Anything, mock.Anything)
}

// ========================================
// GET ONE
// ========================================

func TestGetOneIssuesDownloadTokens(t *testing.T) {
	ctx := context.Background()
	repo := new(mockRepo)
	store := new(mockStorage)
	service := newTestService(repo, store)
	identity := userIdentity(uuid.New())

	fileKey := "processed/abc"
	fileMime := "video/mp4"
	rec := &Recording{
		ID:           uuid.New(),
		Type:         TypeThermalRaw,
		RawFileKey:   "raw/abc",
		RawMimeType:  "application/x-cptv",
		FileKey:      &fileKey,
		FileMimeType: &fileMime,
		CreatedAt:    time.Now(),
	}

	repo.On("GetOneVisible", ctx, identity, rec.ID, Type("")).Return(rec, nil)

	resp, err := service.GetOne(ctx, identity, rec.ID, "")

	require.NoError(t, err)
	assert.NotEmpty(t, resp.DownloadRawJWT)
	assert.NotEmpty(t, resp.DownloadFileJWT)

	// Both tokens must verify and reference the stored keys.
	issuer := NewTokenIssuer([]byte(testSecret))
	rawClaims, err := issuer.Verify(resp.DownloadRawJWT)
	require.NoError(t, err)
	assert.Equal(t, "raw/abc", rawClaims.Key)
	assert.Equal(t, DownloadTokenType, rawClaims.Type)

	fileClaims, err := issuer.Verify(resp.DownloadFileJWT)
	require.NoError(t, err)
	assert.Equal(t, fileKey, fileClaims.Key)
}

func TestGetOneWithoutProcessedFileOmitsFileToken(t *testing.T) {
	ctx := context.Background()
	repo := new(mockRepo)
	store := new(mockStorage)
	service := newTestService(repo, store)
	identity := auth.AnonymousIdentity()

	rec := &Recording{
		ID:          uuid.New(),
		Type:        TypeAudio,
		RawFileKey:  "raw/xyz",
		RawMimeType: "audio/mpeg",
		Public:      true,
		CreatedAt:   time.Now(),
	}

	repo.On("GetOneVisible", ctx, identity, rec.ID, Type("")).Return(rec, nil)

	resp, err := service.GetOne(ctx, identity, rec.ID, "")

	require.NoError(t, err)
	assert.NotEmpty(t, resp.DownloadRawJWT)
	assert.Empty(t, resp.DownloadFileJWT)
}

func TestGetOneNotVisibleReturnsNotFound(t *testing.T) {
	ctx := context.Background()
	repo := new(mockRepo)
	store := new(mockStorage)
	service := newTestService(repo, store)
	identity := auth.AnonymousIdentity()
	id := uuid.New()

	repo.On("GetOneVisible", ctx, identity, id, Type("")).Return(nil, nil)

	_, err := service.GetOne(ctx, identity, id, "")

	require.Error(t, err)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, common.CodeNotFound, appErr.Code)
}

// ========================================
// DELETE
// ========================================

func TestDeleteRemovesRecordAndReleasesFiles(t *testing.T) {
	ctx := context.Background()
	repo := new(mockRepo)
	store := new(mockStorage)
	service := newTestService(repo, store)

	groupID := uuid.New()
	identity := userIdentity(groupID)
	fileKey := "processed/abc"
	rec := &Recording{
		ID:         uuid.New(),
		GroupID:    groupID,
		DeviceID:   uuid.New(),
		RawFileKey: "raw/abc",
		FileKey:    &fileKey,
	}

	repo.On("GetByID", ctx, rec.ID).Return(rec, nil)
	repo.On("Delete", ctx, rec.ID).Return(true, nil)
	store.On("Delete", mock.Anything, "raw/abc").Return(nil)
	store.On("Delete", mock.Anything, fileKey).Return(nil)

	deleted, err := service.Delete(ctx, identity, rec.ID)

	require.NoError(t, err)
	assert.True(t, deleted)
	store.AssertExpectations(t)
}

func TestDeleteAbsentRecordingReportsFalse(t *testing.T) {
	ctx := context.Background()
	repo := new(mockRepo)
	store := new(mockStorage)
	service := newTestService(repo, store)
	id := uuid.New()

	repo.On("GetByID", ctx, id).Return(nil, nil)

	deleted, err := service.Delete(ctx, userIdentity(uuid.New()), id)

	require.NoError(t, err)
	assert.False(t, deleted)
	repo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestDeleteWithoutGroupAccessIsForbidden(t *testing.T) {
	ctx := context.Background()
	repo := new(mockRepo)
	store := new(mockStorage)
	service := newTestService(repo, store)

	rec := &Recording{
		ID:         uuid.New(),
		GroupID:    uuid.New(),
		DeviceID:   uuid.New(),
		RawFileKey: "raw/abc",
	}

	repo.On("GetByID", ctx, rec.ID).Return(rec, nil)

	deleted, err := service.Delete(ctx, userIdentity(uuid.New()), rec.ID)

	require.Error(t, err)
	assert.False(t, deleted)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, common.CodeForbidden, appErr.Code)
	repo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	store.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestDeleteByOwningDeviceSucceeds(t *testing.T) {
	ctx := context.Background()
	repo := new(mockRepo)
	store := new(mockStorage)
	service := newTestService(repo, store)

	device := testDevice()
	identity := &auth.Identity{Device: device}
	rec := &Recording{
		ID:         uuid.New(),
		GroupID:    uuid.New(), // different group, device match carries it
		DeviceID:   device.ID,
		RawFileKey: "raw/abc",
	}

	repo.On("GetByID", ctx, rec.ID).Return(rec, nil)
	repo.On("Delete", ctx, rec.ID).Return(true, nil)
	store.On("Delete", mock.Anything, "raw/abc").Return(nil)

	deleted, err := service.Delete(ctx, identity, rec.ID)

	require.NoError(t, err)
	assert.True(t, deleted)
}

func TestDeleteStorageFailureStillSucceeds(t *testing.T) {
	ctx := context.Background()
	repo := new(mockRepo)
	store := new(mockStorage)
	service := newTestService(repo, store)

	groupID := uuid.New()
	rec := &Recording{
		ID:         uuid.New(),
		GroupID:    groupID,
		RawFileKey: "raw/abc",
	}

	repo.On("GetByID", ctx, rec.ID).Return(rec, nil)
	repo.On("Delete", ctx, rec.ID).Return(true, nil)
	store.On("Delete", mock.Anything, "raw/abc").Return(errors.New("storage unavailable"))

	deleted, err := service.Delete(ctx, userIdentity(groupID), rec.ID)

	require.NoError(t, err)
	assert.True(t, deleted)
}

// ========================================
// TAGS
// ========================================

func TestAddTagRequiresVisibleRecording(t *testing.T) {
	ctx := context.Background()
	repo := new(mockRepo)
	store := new(mockStorage)
	service := newTestService(repo, store)
	identity := userIdentity(uuid.New())
	id := uuid.New()

	repo.On("GetOneVisible", ctx, identity, id, Type("")).Return(nil, nil)

	err := service.AddTag(ctx, identity, id, "possum")

	require.Error(t, err)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, common.CodeNotFound, appErr.Code)
	repo.AssertNotCalled(t, "AddTag", mock.Anything, mock.Anything, mock.Anything)
}

func TestRemoveTagMissingTagIsNotFound(t *testing.T) {
	ctx := context.Background()
	repo := new(mockRepo)
	store := new(mockStorage)
	service := newTestService(repo, store)
	identity := userIdentity(uuid.New())

	rec := &Recording{ID: uuid.New()}
	repo.On("GetOneVisible", ctx, identity, rec.ID, Type("")).Return(rec, nil)
	repo.On("RemoveTag", ctx, rec.ID, "ghost").Return(false, nil)

	err := service.RemoveTag(ctx, identity, rec.ID, "ghost")

	require.Error(t, err)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, common.CodeNotFound, appErr.Code)
}

// ========================================
// DOWNLOAD
// ========================================

func TestDownloadRedeemsToken(t *testing.T) {
	ctx := context.Background()
	repo := new(mockRepo)
	store := new(mockStorage)
	service := newTestService(repo, store)

	issuer := NewTokenIssuer([]byte(testSecret))
	token, err := issuer.Issue("raw/abc", "20240101-120000-deadbeef.cptv", "application/x-cptv")
	require.NoError(t, err)

	body := io.NopCloser(bytes.NewReader([]byte("cptv-bytes")))
	store.On("Download", ctx, "raw/abc").Return(body, nil)

	claims, got, err := service.Download(ctx, token)

	require.NoError(t, err)
	defer got.Close()
	assert.Equal(t, "raw/abc", claims.Key)
	assert.Equal(t, "application/x-cptv", claims.MimeType)

	data, err := io.ReadAll(got)
	require.NoError(t, err)
	assert.Equal(t, []byte("cptv-bytes"), data)
}

func TestDownloadRejectsIdentityToken(t *testing.T) {
	ctx := context.Background()
	repo := new(mockRepo)
	store := new(mockStorage)
	service := newTestService(repo, store)

	// A device identity token must not be redeemable for file bytes.
	deviceToken, err := auth.GenerateDeviceToken(testDevice(), []byte(testSecret), time.Hour)
	require.NoError(t, err)

	_, _, err = service.Download(ctx, deviceToken)

	require.Error(t, err)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, common.CodeForbidden, appErr.Code)
	store.AssertNotCalled(t, "Download", mock.Anything, mock.Anything)
}
