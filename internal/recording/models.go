package recording

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Type is the kind of recording a device can upload
type Type string

const (
	TypeAudio      Type = "audio"
	TypeThermalRaw Type = "thermalRaw"
)

// ProcessingState tracks where a recording sits in its processing pipeline
type ProcessingState string

const (
	StateToMp3    ProcessingState = "toMp3"
	StateToMp4    ProcessingState = "toMp4"
	StateFinished ProcessingState = "FINISHED"
)

// StateTable maps a recording type to its ordered list of valid processing
// states. A new recording starts in the first state for its type.
type StateTable map[Type][]ProcessingState

// DefaultStateTable returns the processing pipelines for the known types.
// Loaded once at startup and passed into the components that need it.
func DefaultStateTable() StateTable {
	return StateTable{
		TypeThermalRaw: {StateToMp4, StateFinished},
		TypeAudio:      {StateToMp3, StateFinished},
	}
}

// TagMode selects how a tag list filters recordings
type TagMode string

const (
	// TagModeAny matches recordings carrying at least one requested tag
	TagModeAny TagMode = "any"
	// TagModeAll matches recordings carrying every requested tag
	TagModeAll TagMode = "all"
)

// Recording is a stored capture plus its metadata. RawFileKey and FileKey
// are storage-layer handles and never serialize to clients; access goes
// through download tokens.
type Recording struct {
	ID              uuid.UUID       `json:"id" db:"id"`
	Type            Type            `json:"type" db:"type"`
	DeviceID        uuid.UUID       `json:"deviceId" db:"device_id"`
	GroupID         uuid.UUID       `json:"groupId" db:"group_id"`
	RawFileKey      string          `json:"-" db:"raw_file_key"`
	RawMimeType     string          `json:"rawMimeType" db:"raw_mime_type"`
	FileKey         *string         `json:"-" db:"file_key"`
	FileMimeType    *string         `json:"fileMimeType,omitempty" db:"file_mime_type"`
	ProcessingState ProcessingState `json:"processingState" db:"processing_state"`
	Public          bool            `json:"public" db:"public"`

	// Allow-listed, device-supplied metadata
	Duration          *int       `json:"duration,omitempty" db:"duration"`
	RecordingDateTime *time.Time `json:"recordingDateTime,omitempty" db:"recording_date_time"`
	Latitude          *float64   `json:"latitude,omitempty" db:"latitude"`
	Longitude         *float64   `json:"longitude,omitempty" db:"longitude"`
	Version           *string    `json:"version,omitempty" db:"version"`

	Tags []string `json:"tags"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// RawFileName derives the client-facing filename for the raw upload
func (r *Recording) RawFileName() string {
	return r.fileName(rawExtension(r.Type))
}

// FileName derives the client-facing filename for the processed artifact
func (r *Recording) FileName() string {
	return r.fileName(processedExtension(r.Type))
}

func (r *Recording) fileName(ext string) string {
	ts := r.CreatedAt
	if r.RecordingDateTime != nil {
		ts = *r.RecordingDateTime
	}
	return fmt.Sprintf("%s-%s.%s", ts.UTC().Format("20060102-150405"), r.ID.String()[:8], ext)
}

func rawExtension(t Type) string {
	switch t {
	case TypeThermalRaw:
		return "cptv"
	case TypeAudio:
		return "mp3"
	default:
		return "bin"
	}
}

func processedExtension(t Type) string {
	switch t {
	case TypeThermalRaw:
		return "mp4"
	case TypeAudio:
		return "mp3"
	default:
		return "bin"
	}
}

// ========================================
// REQUEST/RESPONSE TYPES
// ========================================

// UploadMetadata is the complete allow-list of client-settable upload
// fields. Ownership (deviceId/groupId) and storage keys are never part of
// it; anything outside this struct cannot reach the persisted entity.
type UploadMetadata struct {
	Type              Type       `json:"type" validate:"required,recording_type"`
	Duration          *int       `json:"duration,omitempty" validate:"omitempty,gte=0"`
	RecordingDateTime *time.Time `json:"recordingDateTime,omitempty"`
	Latitude          *float64   `json:"latitude,omitempty" validate:"omitempty,latitude"`
	Longitude         *float64   `json:"longitude,omitempty" validate:"omitempty,longitude"`
	Version           *string    `json:"version,omitempty"`
}

// QueryParams are the raw client-supplied query parameters, before
// normalization.
type QueryParams struct {
	Where   string   `form:"where"`
	TagMode string   `form:"tagMode" validate:"omitempty,tag_mode"`
	Tags    []string `form:"tags"`
	Offset  int      `form:"offset"`
	Limit   int      `form:"limit"`
	Order   string   `form:"order" validate:"omitempty,oneof=asc desc"`
	Type    string   `form:"type" validate:"omitempty,recording_type"`
}

// Query is a normalized, canonical filter specification
type Query struct {
	Where   map[string]interface{}
	TagMode TagMode
	Tags    []string
	Offset  int
	Limit   int
	Order   string
}

// RecordingInfo is the response projection of a Recording. It is built in
// exactly one place so storage keys cannot leak through ad-hoc serialization.
type RecordingInfo struct {
	ID                uuid.UUID       `json:"id"`
	Type              Type            `json:"type"`
	DeviceID          uuid.UUID       `json:"deviceId"`
	GroupID           uuid.UUID       `json:"groupId"`
	RawMimeType       string          `json:"rawMimeType"`
	FileMimeType      *string         `json:"fileMimeType,omitempty"`
	ProcessingState   ProcessingState `json:"processingState"`
	Public            bool            `json:"public"`
	Duration          *int            `json:"duration,omitempty"`
	RecordingDateTime *time.Time      `json:"recordingDateTime,omitempty"`
	Latitude          *float64        `json:"latitude,omitempty"`
	Longitude         *float64        `json:"longitude,omitempty"`
	Version           *string         `json:"version,omitempty"`
	Tags              []string        `json:"tags"`
	CreatedAt         time.Time       `json:"createdAt"`
}

// Project maps a Recording to its response shape, dropping storage keys
func (r *Recording) Project() *RecordingInfo {
	return &RecordingInfo{
		ID:                r.ID,
		Type:              r.Type,
		DeviceID:          r.DeviceID,
		GroupID:           r.GroupID,
		RawMimeType:       r.RawMimeType,
		FileMimeType:      r.FileMimeType,
		ProcessingState:   r.ProcessingState,
		Public:            r.Public,
		Duration:          r.Duration,
		RecordingDateTime: r.RecordingDateTime,
		Latitude:          r.Latitude,
		Longitude:         r.Longitude,
		Version:           r.Version,
		Tags:              r.Tags,
		CreatedAt:         r.CreatedAt,
	}
}

// UploadResponse is returned after a successful ingestion
type UploadResponse struct {
	RecordingID uuid.UUID `json:"recordingId"`
}

// GetRecordingResponse carries a recording plus its download tokens. The
// tokens, not storage keys, are the client's handle on the files.
type GetRecordingResponse struct {
	Recording       *RecordingInfo `json:"recording"`
	DownloadRawJWT  string         `json:"downloadRawJWT"`
	DownloadFileJWT string         `json:"downloadFileJWT,omitempty"`
}

// QueryResponse is a page of recordings
type QueryResponse struct {
	Recordings []*RecordingInfo `json:"recordings"`
	Count      int              `json:"count"`
	Limit      int              `json:"limit"`
	Offset     int              `json:"offset"`
}

// TagRequest attaches a tag to a recording
type TagRequest struct {
	Tag string `json:"tag" validate:"required,min=1,max=64"`
}
