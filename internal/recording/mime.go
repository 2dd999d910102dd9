package recording

import (
	"path"
	"strings"
)

// MimeResolver derives a MIME type from a declared recording type and the
// uploaded filename. Extension lookup wins; otherwise the per-type default
// applies. It always returns a usable value.
type MimeResolver struct {
	extensions map[string]string
	defaults   map[Type]string
}

// NewMimeResolver builds a resolver with the default tables
func NewMimeResolver() *MimeResolver {
	return &MimeResolver{
		extensions: map[string]string{
			".mp3":  "audio/mpeg",
			".m4a":  "audio/mp4",
			".wav":  "audio/wav",
			".ogg":  "audio/ogg",
			".flac": "audio/flac",
			".mp4":  "video/mp4",
			".avi":  "video/x-msvideo",
		},
		defaults: map[Type]string{
			TypeThermalRaw: "application/x-cptv",
			TypeAudio:      "audio/mpeg",
		},
	}
}

// Resolve returns the MIME type for a declared type and filename
func (m *MimeResolver) Resolve(t Type, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	if mimeType, ok := m.extensions[ext]; ok {
		return mimeType
	}
	if mimeType, ok := m.defaults[t]; ok {
		return mimeType
	}
	return "application/octet-stream"
}
