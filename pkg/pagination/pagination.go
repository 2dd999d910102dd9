package pagination

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	// DefaultLimit is the page size used when the client does not supply one
	DefaultLimit = 20
	// MaxLimit is the enforced ceiling on client-requested page sizes
	MaxLimit = 100
	// DefaultOffset is the starting offset
	DefaultOffset = 0
)

// Params holds normalized paging parameters
type Params struct {
	Limit  int
	Offset int
}

// Meta describes a page of results
type Meta struct {
	Limit      int   `json:"limit"`
	Offset     int   `json:"offset"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// ParseParams extracts limit/offset from the query string, applying defaults
// and the MaxLimit ceiling.
func ParseParams(c *gin.Context) Params {
	return Params{
		Limit:  ClampLimit(parseInt(c.Query("limit"), DefaultLimit)),
		Offset: ClampOffset(parseInt(c.Query("offset"), DefaultOffset)),
	}
}

// ClampLimit applies the default and ceiling to a requested limit
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// ClampOffset rejects negative offsets
func ClampOffset(offset int) int {
	if offset < 0 {
		return DefaultOffset
	}
	return offset
}

// BuildMeta builds paging metadata for a result set
func BuildMeta(limit, offset int, total int64) *Meta {
	meta := &Meta{
		Limit:  limit,
		Offset: offset,
		Total:  total,
	}
	if limit > 0 {
		meta.TotalPages = int((total + int64(limit) - 1) / int64(limit))
	}
	return meta
}

// HasMore reports whether more results exist beyond the current page
func HasMore(offset, limit int, total int64) bool {
	return int64(offset+limit) < total
}

// GetCurrentPage returns the 1-based page number for an offset
func GetCurrentPage(offset, limit int) int {
	if limit <= 0 {
		return 1
	}
	return offset/limit + 1
}

func parseInt(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return v
}
