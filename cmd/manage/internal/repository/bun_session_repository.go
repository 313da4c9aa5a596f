package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/manageconsole/manage/cmd/manage/internal/db/models"
	"github.com/manageconsole/manage/cmd/manage/internal/session"
)

// BunSessionRepository implements session.Store using Bun ORM
type BunSessionRepository struct {
	db  *bun.DB
	now func() time.Time
}

var _ session.Store = (*BunSessionRepository)(nil)

// NewBunSessionRepository creates a new Bun-based session repository
func NewBunSessionRepository(db *bun.DB) *BunSessionRepository {
	return &BunSessionRepository{db: db, now: time.Now}
}

// Create inserts a new session
func (r *BunSessionRepository) Create(ctx context.Context, data *session.Data, ttl time.Duration) (string, error) {
	id := session.NewID()
	now := r.now()
	data.CreatedAt = now.Unix()

	encoded, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("marshal session: %w", err)
	}

	row := &models.Session{
		IDHash:    session.HashID(id),
		Data:      string(encoded),
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := r.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return id, nil
}

// Get retrieves an unexpired session by its cookie value
func (r *BunSessionRepository) Get(ctx context.Context, id string) (*session.Data, error) {
	row := new(models.Session)
	err := r.db.NewSelect().
		Model(row).
		Where("id_hash = ?", session.HashID(id)).
		Where("expires_at > ?", r.now()).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, session.ErrNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	var data session.Data
	if err := json.Unmarshal([]byte(row.Data), &data); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &data, nil
}

// Update replaces the session payload and resets its expiry
func (r *BunSessionRepository) Update(ctx context.Context, id string, data *session.Data, ttl time.Duration) error {
	encoded, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	now := r.now()
	_, err = r.db.NewUpdate().
		Model((*models.Session)(nil)).
		Set("data = ?", string(encoded)).
		Set("expires_at = ?", now.Add(ttl)).
		Set("updated_at = ?", now).
		Where("id_hash = ?", session.HashID(id)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return nil
}

// Delete removes a session
func (r *BunSessionRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.NewDelete().
		Model((*models.Session)(nil)).
		Where("id_hash = ?", session.HashID(id)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Touch extends the session expiry
func (r *BunSessionRepository) Touch(ctx context.Context, id string, ttl time.Duration) error {
	now := r.now()
	_, err := r.db.NewUpdate().
		Model((*models.Session)(nil)).
		Set("expires_at = ?", now.Add(ttl)).
		Set("updated_at = ?", now).
		Where("id_hash = ?", session.HashID(id)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

// DeleteExpired deletes all expired sessions and returns how many were removed.
// Run periodically by the serve command.
func (r *BunSessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := r.db.NewDelete().
		Model((*models.Session)(nil)).
		Where("expires_at <= ?", r.now()).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
