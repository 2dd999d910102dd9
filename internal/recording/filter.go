package recording

import (
	"encoding/json"
	"fmt"

	"github.com/mjs/cacophony-api/pkg/common"
)

// legacyTaggedKey is a deprecated filter key some older clients still send.
// It is stripped before the filter is interpreted.
const legacyTaggedKey = "_tagged"

// whereColumns maps accepted filter keys to their columns. Anything else in
// a where expression is rejected before it reaches the store.
var whereColumns = map[string]string{
	"type":            "type",
	"deviceId":        "device_id",
	"groupId":         "group_id",
	"public":          "public",
	"processingState": "processing_state",
	"duration":        "duration",
}

// NormalizeQuery turns raw client query parameters into a canonical Query.
// typeConstraint, when set, overrides any client-supplied type key.
func NormalizeQuery(params *QueryParams, typeConstraint Type) (*Query, error) {
	where := map[string]interface{}{}
	if params.Where != "" {
		if err := json.Unmarshal([]byte(params.Where), &where); err != nil {
			return nil, common.NewValidationError("malformed where expression",
				map[string]string{"where": "must be a JSON object"})
		}
	}

	delete(where, legacyTaggedKey)

	for key := range where {
		if _, ok := whereColumns[key]; !ok {
			return nil, common.NewValidationError("unsupported filter key",
				map[string]string{"where": fmt.Sprintf("unknown key %q", key)})
		}
	}

	tagMode := TagMode(params.TagMode)
	if tagMode == "" {
		tagMode = TagModeAny
	}

	if typeConstraint == "" && params.Type != "" {
		typeConstraint = Type(params.Type)
	}
	if typeConstraint != "" {
		where["type"] = string(typeConstraint)
	}

	return &Query{
		Where:   where,
		TagMode: tagMode,
		Tags:    params.Tags,
		Offset:  params.Offset,
		Limit:   params.Limit,
		Order:   params.Order,
	}, nil
}
