// Package audit persists marking-attempt history and session refresh tokens
// in Postgres.
package audit

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Attempt is one finished marking attempt. The Outcome string matches the
// marking package's outcome values.
type Attempt struct {
	ID        string    `json:"id"`
	StudentID string    `json:"student_id"`
	SubjectID string    `json:"subject_id,omitempty"`
	Outcome   string    `json:"outcome"`
	ImageURL  string    `json:"image_url,omitempty"`
	Message   string    `json:"message,omitempty"`
	When      time.Time `json:"when"`
	CreatedAt time.Time `json:"created_at"`
}

// Repository persists audit data.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// UpsertStudent ensures a student record exists.
func (r *Repository) UpsertStudent(ctx context.Context, studentID string) error {
	if studentID == "" {
		return errors.New("student id required")
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO students (student_id)
		VALUES ($1)
		ON CONFLICT (student_id) DO NOTHING
	`, studentID)
	return err
}

// SaveRefreshToken stores a refresh token for rotation checks.
func (r *Repository) SaveRefreshToken(ctx context.Context, studentID, token string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO refresh_tokens (student_id, token, expires_at)
		VALUES ($1, $2, $3)
	`, studentID, token, expiresAt)
	return err
}

// RevokeRefreshToken marks a token revoked.
func (r *Repository) RevokeRefreshToken(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE refresh_tokens SET revoked = TRUE WHERE token = $1`, token)
	return err
}

// InsertAttempt writes one attempt row.
func (r *Repository) InsertAttempt(ctx context.Context, a Attempt) (Attempt, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.When.IsZero() {
		a.When = time.Now().UTC()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO mark_attempts (id, student_id, subject_id, outcome, image_url, message, occurred_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at
	`, a.ID, a.StudentID, a.SubjectID, a.Outcome, a.ImageURL, a.Message, a.When)
	if err := row.Scan(&a.CreatedAt); err != nil {
		return Attempt{}, err
	}
	return a, nil
}

// ListAttempts returns a student's attempts, newest first.
func (r *Repository) ListAttempts(ctx context.Context, studentID string, limit, offset int) ([]Attempt, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, student_id, subject_id, outcome, image_url, message, occurred_at, created_at
		FROM mark_attempts
		WHERE student_id = $1
		ORDER BY occurred_at DESC
		LIMIT $2 OFFSET $3
	`, studentID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Attempt
	for rows.Next() {
		var a Attempt
		if err := rows.Scan(&a.ID, &a.StudentID, &a.SubjectID, &a.Outcome, &a.ImageURL, &a.Message, &a.When, &a.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

// LastMarked returns the newest successful mark for a student and subject,
// or nil when there is none. The attempts feed uses it to show when a
// subject was last recorded; it is informational only and never blocks a
// re-mark (the backend owns duplicate handling).
func (r *Repository) LastMarked(ctx context.Context, studentID, subjectID string) (*Attempt, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, student_id, subject_id, outcome, image_url, message, occurred_at, created_at
		FROM mark_attempts
		WHERE student_id = $1 AND subject_id = $2 AND outcome = 'verified_marked'
		ORDER BY occurred_at DESC
		LIMIT 1
	`, studentID, subjectID)
	var a Attempt
	if err := row.Scan(&a.ID, &a.StudentID, &a.SubjectID, &a.Outcome, &a.ImageURL, &a.Message, &a.When, &a.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}
