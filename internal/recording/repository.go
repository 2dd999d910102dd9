package recording

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mjs/cacophony-api/pkg/auth"
)

// Repository handles database operations for recordings
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new recording repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const recordingColumns = `r.id, r.type, r.device_id, r.group_id, r.raw_file_key, r.raw_mime_type,
       r.file_key, r.file_mime_type, r.processing_state, r.public,
       r.duration, r.recording_date_time, r.latitude, r.longitude, r.version,
       r.created_at, r.updated_at`

const tagsJoin = `LEFT JOIN (
		SELECT recording_id, array_agg(tag ORDER BY tag) AS tags
		FROM recording_tags
		GROUP BY recording_id
	) t ON t.recording_id = r.id`

// ========================================
// RECORDING OPERATIONS
// ========================================

// Create inserts a new recording and assigns its store-generated identity
func (r *Repository) Create(ctx context.Context, rec *Recording) error {
	query := `
		INSERT INTO recordings (
			type, device_id, group_id, raw_file_key, raw_mime_type,
			processing_state, public, duration, recording_date_time,
			latitude, longitude, version, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`

	return r.db.QueryRow(ctx, query,
		rec.Type, rec.DeviceID, rec.GroupID, rec.RawFileKey, rec.RawMimeType,
		rec.ProcessingState, rec.Public, rec.Duration, rec.RecordingDateTime,
		rec.Latitude, rec.Longitude, rec.Version,
	).Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt)
}

// GetByID gets a recording by ID without visibility scoping. Returns
// (nil, nil) when no such record exists.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Recording, error) {
	query := fmt.Sprintf(`
		SELECT %s, COALESCE(t.tags, '{}')
		FROM recordings r
		%s
		WHERE r.id = $1
	`, recordingColumns, tagsJoin)

	return r.scanOne(r.db.QueryRow(ctx, query, id))
}

// GetOneVisible gets a recording by ID scoped to the identity's visibility,
// optionally constrained to a type. Returns (nil, nil) when no visible
// record matches.
func (r *Repository) GetOneVisible(ctx context.Context, identity *auth.Identity, id uuid.UUID, typeConstraint Type) (*Recording, error) {
	args := []interface{}{id}
	conditions := []string{"r.id = $1", visibilityClause(identity, &args)}

	if typeConstraint != "" {
		args = append(args, typeConstraint)
		conditions = append(conditions, fmt.Sprintf("r.type = $%d", len(args)))
	}

	query := fmt.Sprintf(`
		SELECT %s, COALESCE(t.tags, '{}')
		FROM recordings r
		%s
		WHERE %s
	`, recordingColumns, tagsJoin, strings.Join(conditions, " AND "))

	return r.scanOne(r.db.QueryRow(ctx, query, args...))
}

// Query executes a normalized filter scoped to the identity's visibility
func (r *Repository) Query(ctx context.Context, identity *auth.Identity, q *Query) ([]*Recording, error) {
	var args []interface{}
	conditions := []string{visibilityClause(identity, &args)}

	for key, value := range q.Where {
		column, ok := whereColumns[key]
		if !ok {
			continue // normalizer rejects unknown keys before this point
		}
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf("r.%s = $%d", column, len(args)))
	}

	if len(q.Tags) > 0 {
		args = append(args, q.Tags)
		switch q.TagMode {
		case TagModeAll:
			args = append(args, len(q.Tags))
			conditions = append(conditions, fmt.Sprintf(
				"(SELECT count(DISTINCT rt.tag) FROM recording_tags rt WHERE rt.recording_id = r.id AND rt.tag = ANY($%d)) = $%d",
				len(args)-1, len(args)))
		default:
			conditions = append(conditions, fmt.Sprintf(
				"EXISTS (SELECT 1 FROM recording_tags rt WHERE rt.recording_id = r.id AND rt.tag = ANY($%d))",
				len(args)))
		}
	}

	direction := "DESC"
	if strings.EqualFold(q.Order, "asc") {
		direction = "ASC"
	}

	args = append(args, q.Limit, q.Offset)
	query := fmt.Sprintf(`
		SELECT %s, COALESCE(t.tags, '{}')
		FROM recordings r
		%s
		WHERE %s
		ORDER BY COALESCE(r.recording_date_time, r.created_at) %s
		LIMIT $%d OFFSET $%d
	`, recordingColumns, tagsJoin, strings.Join(conditions, " AND "), direction, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recordings []*Recording
	for rows.Next() {
		rec, err := scanRecording(rows)
		if err != nil {
			return nil, err
		}
		recordings = append(recordings, rec)
	}

	return recordings, rows.Err()
}

// Delete removes a recording row. Reports whether a row was removed.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM recordings WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ========================================
// TAG OPERATIONS
// ========================================

// AddTag attaches a tag to a recording
func (r *Repository) AddTag(ctx context.Context, recordingID uuid.UUID, tag string) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO recording_tags (recording_id, tag)
		VALUES ($1, $2)
		ON CONFLICT (recording_id, tag) DO NOTHING
	`, recordingID, tag)
	return err
}

// RemoveTag detaches a tag. Reports whether the tag was present.
func (r *Repository) RemoveTag(ctx context.Context, recordingID uuid.UUID, tag string) (bool, error) {
	cmd, err := r.db.Exec(ctx, `
		DELETE FROM recording_tags WHERE recording_id = $1 AND tag = $2
	`, recordingID, tag)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

// ListTags lists a recording's tags
func (r *Repository) ListTags(ctx context.Context, recordingID uuid.UUID) ([]string, error) {
	rows, err := r.db.Query(ctx, `
		SELECT tag FROM recording_tags WHERE recording_id = $1 ORDER BY tag
	`, recordingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}

	return tags, rows.Err()
}

// ========================================
// HELPERS
// ========================================

// visibilityClause builds the SQL condition restricting results to what the
// identity may see: its own device, its groups, or public recordings.
func visibilityClause(identity *auth.Identity, args *[]interface{}) string {
	if identity == nil || identity.Anonymous {
		return "r.public = TRUE"
	}

	if identity.Device != nil {
		*args = append(*args, identity.Device.ID)
		deviceParam := len(*args)
		*args = append(*args, identity.Device.GroupID)
		groupParam := len(*args)
		return fmt.Sprintf("(r.device_id = $%d OR r.group_id = $%d OR r.public = TRUE)", deviceParam, groupParam)
	}

	if len(identity.GroupIDs) == 0 {
		return "r.public = TRUE"
	}

	groups := make([]string, len(identity.GroupIDs))
	for i, g := range identity.GroupIDs {
		groups[i] = g.String()
	}
	*args = append(*args, groups)
	return fmt.Sprintf("(r.group_id = ANY($%d::uuid[]) OR r.public = TRUE)", len(*args))
}

func (r *Repository) scanOne(row pgx.Row) (*Recording, error) {
	rec, err := scanRecording(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func scanRecording(row pgx.Row) (*Recording, error) {
	rec := &Recording{}
	err := row.Scan(
		&rec.ID, &rec.Type, &rec.DeviceID, &rec.GroupID, &rec.RawFileKey, &rec.RawMimeType,
		&rec.FileKey, &rec.FileMimeType, &rec.ProcessingState, &rec.Public,
		&rec.Duration, &rec.RecordingDateTime, &rec.Latitude, &rec.Longitude, &rec.Version,
		&rec.CreatedAt, &rec.UpdatedAt, &rec.Tags,
	)
	if err != nil {
		return nil, err
	}
	return rec, nil
}
