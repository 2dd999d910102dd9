package recording

import (
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mjs/cacophony-api/pkg/common"
	"github.com/mjs/cacophony-api/pkg/middleware"
	"github.com/mjs/cacophony-api/pkg/validation"
)

// Handler handles HTTP requests for recordings
type Handler struct {
	service *Service
}

// NewHandler creates a new recording handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// ========================================
// UPLOAD
// ========================================

// Upload handles a device uploading a recording. The request is multipart:
// a "data" part carrying the JSON metadata followed by a "file" part with
// the bytes. The file part streams straight to storage without being
// buffered in memory.
func (h *Handler) Upload(c *gin.Context) {
	device, err := middleware.GetDevice(c)
	if err != nil {
		common.ErrorResponse(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	reader, err := c.Request.MultipartReader()
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "expected multipart request")
		return
	}

	meta, filePart, err := readUploadParts(reader)
	if err != nil {
		common.HandleError(c, err, "failed to read upload")
		return
	}

	rec, err := h.service.Ingest(c.Request.Context(), device, meta, filePart.FileName(), filePart)
	if err != nil {
		common.HandleError(c, err, "failed to ingest recording")
		return
	}

	common.CreatedResponse(c, UploadResponse{RecordingID: rec.ID})
}

// readUploadParts walks the multipart stream until both the metadata and
// the file part are found. The file part is returned unread so the caller
// can stream it; this requires "data" to precede "file" in the request.
func readUploadParts(reader *multipart.Reader) (*UploadMetadata, *multipart.Part, error) {
	var meta *UploadMetadata

	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, common.NewBadRequestError("malformed multipart request", err)
		}

		switch part.FormName() {
		case "data":
			meta = &UploadMetadata{}
			if err := json.NewDecoder(part).Decode(meta); err != nil {
				return nil, nil, common.NewBadRequestError("invalid metadata JSON", err)
			}
		case "file":
			if meta == nil {
				return nil, nil, common.NewBadRequestError("file part must follow the data part", nil)
			}
			return meta, part, nil
		}
	}

	if meta == nil {
		return nil, nil, common.NewBadRequestError("missing data part", nil)
	}
	return nil, nil, common.NewBadRequestError("missing file part", nil)
}

// ========================================
// QUERY
// ========================================

// Query handles listing recordings matching a filter
func (h *Handler) Query(c *gin.Context) {
	h.query(c, "")
}

// QueryAudio handles listing audio recordings matching a filter
func (h *Handler) QueryAudio(c *gin.Context) {
	h.query(c, TypeAudio)
}

func (h *Handler) query(c *gin.Context, typeConstraint Type) {
	identity, err := middleware.GetIdentity(c)
	if err != nil {
		common.ErrorResponse(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	var params QueryParams
	if err := c.ShouldBindQuery(&params); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	if err := validation.ValidateStruct(&params); err != nil {
		if valErr, ok := err.(*validation.ValidationError); ok {
			common.AppErrorResponse(c, common.NewValidationError("invalid query parameters", valErr.Errors))
			return
		}
		common.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.service.Query(c.Request.Context(), identity, &params, typeConstraint)
	if err != nil {
		common.HandleError(c, err, "failed to query recordings")
		return
	}

	common.SuccessResponse(c, resp)
}

// GetOne handles getting a recording with its download tokens
func (h *Handler) GetOne(c *gin.Context) {
	h.getOne(c, "")
}

// GetOneAudio handles getting an audio recording with its download tokens
func (h *Handler) GetOneAudio(c *gin.Context) {
	h.getOne(c, TypeAudio)
}

func (h *Handler) getOne(c *gin.Context, typeConstraint Type) {
	identity, err := middleware.GetIdentity(c)
	if err != nil {
		common.ErrorResponse(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid recording ID")
		return
	}

	resp, err := h.service.GetOne(c.Request.Context(), identity, id, typeConstraint)
	if err != nil {
		common.HandleError(c, err, "failed to get recording")
		return
	}

	common.SuccessResponse(c, resp)
}

// ========================================
// DELETE
// ========================================

// Delete handles deleting a recording
func (h *Handler) Delete(c *gin.Context) {
	identity, err := middleware.GetIdentity(c)
	if err != nil {
		common.ErrorResponse(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid recording ID")
		return
	}

	deleted, err := h.service.Delete(c.Request.Context(), identity, id)
	if err != nil {
		common.HandleError(c, err, "failed to delete recording")
		return
	}
	if !deleted {
		common.ErrorResponse(c, http.StatusBadRequest, "failed to delete recording")
		return
	}

	common.SuccessResponse(c, gin.H{"deleted": true})
}

// ========================================
// TAGS
// ========================================

// AddTag handles attaching a tag to a recording
func (h *Handler) AddTag(c *gin.Context) {
	identity, err := middleware.GetIdentity(c)
	if err != nil {
		common.ErrorResponse(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid recording ID")
		return
	}

	var req TagRequest
	if err := middleware.ValidateJSON(c, &req); err != nil {
		if valErr, ok := err.(*validation.ValidationError); ok {
			common.AppErrorResponse(c, common.NewValidationError("invalid tag", valErr.Errors))
			return
		}
		common.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.service.AddTag(c.Request.Context(), identity, id, req.Tag); err != nil {
		common.HandleError(c, err, "failed to add tag")
		return
	}

	common.CreatedResponse(c, gin.H{"tag": req.Tag})
}

// RemoveTag handles detaching a tag from a recording
func (h *Handler) RemoveTag(c *gin.Context) {
	identity, err := middleware.GetIdentity(c)
	if err != nil {
		common.ErrorResponse(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid recording ID")
		return
	}

	tag := c.Param("tag")
	if err := h.service.RemoveTag(c.Request.Context(), identity, id, tag); err != nil {
		common.HandleError(c, err, "failed to remove tag")
		return
	}

	common.SuccessResponse(c, gin.H{"removed": true})
}

// ListTags handles listing a recording's tags
func (h *Handler) ListTags(c *gin.Context) {
	identity, err := middleware.GetIdentity(c)
	if err != nil {
		common.ErrorResponse(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid recording ID")
		return
	}

	tags, err := h.service.ListTags(c.Request.Context(), identity, id)
	if err != nil {
		common.HandleError(c, err, "failed to list tags")
		return
	}
	if tags == nil {
		tags = []string{}
	}

	common.SuccessResponse(c, gin.H{"tags": tags})
}

// ========================================
// DOWNLOAD
// ========================================

// Download redeems a download token for the file bytes
func (h *Handler) Download(c *gin.Context) {
	token := c.Query("jwt")
	if token == "" {
		common.ErrorResponse(c, http.StatusBadRequest, "missing download token")
		return
	}

	claims, body, err := h.service.Download(c.Request.Context(), token)
	if err != nil {
		common.HandleError(c, err, "failed to download file")
		return
	}
	defer body.Close()

	c.Header("Content-Disposition", `attachment; filename="`+claims.Filename+`"`)
	contentType := claims.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.DataFromReader(http.StatusOK, -1, contentType, body, nil)
}

// ========================================
// ROUTES
// ========================================

// RegisterRoutes registers recording routes
func (h *Handler) RegisterRoutes(r *gin.Engine, jwtSecret string) {
	api := r.Group("/api/v1")

	recordings := api.Group("/recordings")
	{
		recordings.POST("", middleware.DeviceAuthMiddleware(jwtSecret), h.Upload)
		recordings.GET("", middleware.OptionalAuthMiddleware(jwtSecret), h.Query)
		recordings.GET("/:id", middleware.OptionalAuthMiddleware(jwtSecret), h.GetOne)
		recordings.DELETE("/:id", middleware.AuthMiddleware(jwtSecret), h.Delete)

		recordings.GET("/:id/tags", middleware.OptionalAuthMiddleware(jwtSecret), h.ListTags)
		recordings.POST("/:id/tags", middleware.AuthMiddleware(jwtSecret), h.AddTag)
		recordings.DELETE("/:id/tags/:tag", middleware.AuthMiddleware(jwtSecret), h.RemoveTag)
	}

	audio := api.Group("/audiorecordings")
	{
		audio.GET("", middleware.OptionalAuthMiddleware(jwtSecret), h.QueryAudio)
		audio.GET("/:id", middleware.OptionalAuthMiddleware(jwtSecret), h.GetOneAudio)
	}

	api.GET("/files", h.Download)
}
