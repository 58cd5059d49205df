package store

import (
	"context"
	"database/sql"
	"time"
)

type Repository interface {
	CreateClip(ctx context.Context, c *ClipRecord) error
	GetClip(ctx context.Context, id string) (*ClipRecord, error)
	ListClips(ctx context.Context, limit int) ([]*ClipRecord, error)
	UpdateClipStatus(ctx context.Context, id, status, errorMsg string) error
	UpdateClipResult(ctx context.Context, id string, outputPath, thumbnailPath string, duration float64, fileSize int64) error

	NextRunNumber(ctx context.Context, projectID string) (int, error)

	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) CreateClip(ctx context.Context, c *ClipRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO clips (id, project_id, name, status, run_number, output_path, thumbnail_path, duration, file_size, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.ProjectID, c.Name, c.Status, nullInt(c.RunNumber), nullString(c.OutputPath), nullString(c.ThumbnailPath),
		c.Duration, c.FileSize, nullString(c.Error),
		c.CreatedAt.Format(time.RFC3339), c.UpdatedAt.Format(time.RFC3339))
	return err
}

func (r *SQLiteRepository) GetClip(ctx context.Context, id string) (*ClipRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, project_id, name, status, run_number, output_path, thumbnail_path, duration, file_size, error, created_at, updated_at
		FROM clips WHERE id = ?
	`, id)
	return r.scanClip(row)
}

func (r *SQLiteRepository) scanClip(row *sql.Row) (*ClipRecord, error) {
	var c ClipRecord
	var runNumber sql.NullInt64
	var outputPath, thumbnailPath, errMsg sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(&c.ID, &c.ProjectID, &c.Name, &c.Status, &runNumber, &outputPath, &thumbnailPath,
		&c.Duration, &c.FileSize, &errMsg, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	c.RunNumber = int(runNumber.Int64)
	c.OutputPath = outputPath.String
	c.ThumbnailPath = thumbnailPath.String
	c.Error = errMsg.String
	c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	c.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &c, nil
}

func (r *SQLiteRepository) ListClips(ctx context.Context, limit int) ([]*ClipRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, project_id, name, status, run_number, output_path, thumbnail_path, duration, file_size, error, created_at, updated_at
		FROM clips ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clips []*ClipRecord
	for rows.Next() {
		var c ClipRecord
		var runNumber sql.NullInt64
		var outputPath, thumbnailPath, errMsg sql.NullString
		var createdAt, updatedAt string

		if err := rows.Scan(&c.ID, &c.ProjectID, &c.Name, &c.Status, &runNumber, &outputPath, &thumbnailPath,
			&c.Duration, &c.FileSize, &errMsg, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		c.RunNumber = int(runNumber.Int64)
		c.OutputPath = outputPath.String
		c.ThumbnailPath = thumbnailPath.String
		c.Error = errMsg.String
		c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		c.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		clips = append(clips, &c)
	}
	return clips, rows.Err()
}

func (r *SQLiteRepository) UpdateClipStatus(ctx context.Context, id, status, errorMsg string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE clips SET status = ?, error = ?, updated_at = datetime('now') WHERE id = ?
	`, status, nullString(errorMsg), id)
	return err
}

func (r *SQLiteRepository) UpdateClipResult(ctx context.Context, id string, outputPath, thumbnailPath string, duration float64, fileSize int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE clips SET output_path = ?, thumbnail_path = ?, duration = ?, file_size = ?, updated_at = datetime('now') WHERE id = ?
	`, nullString(outputPath), nullString(thumbnailPath), duration, fileSize, id)
	return err
}

// NextRunNumber allocates the next run number for a project. Allocation is
// transactional so concurrent builds for the same project never share a run.
func (r *SQLiteRepository) NextRunNumber(ctx context.Context, projectID string) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var next int
	if err := tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(run_number), 0) + 1 FROM runs WHERE project_id = ?", projectID).Scan(&next); err != nil {
		return 0, err
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO runs (project_id, run_number) VALUES (?, ?)", projectID, next); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return next, nil
}

func (r *SQLiteRepository) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (r *SQLiteRepository) SetConfig(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullInt(i int) sql.NullInt64 {
	if i == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(i), Valid: true}
}
