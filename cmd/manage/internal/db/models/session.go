package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Session is a persisted browser session.
type Session struct {
	bun.BaseModel `bun:"table:sessions,alias:sess"`

	IDHash    string    `bun:"id_hash,pk"`            // SHA256 hash of the cookie value
	Data      string    `bun:"data,type:text,notnull"` // JSON-encoded session.Data
	ExpiresAt time.Time `bun:"expires_at,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}
