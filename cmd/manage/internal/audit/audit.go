// Package audit records administrative changes as structured log records.
package audit

import (
	"context"
	"log/slog"
)

// Event types and sub types.
const (
	TypeManage = "manage"

	SubTypeUserServiceUpdated   = "user-service-updated"
	SubTypeServiceConfigUpdated = "service-config-updated"
	SubTypeServiceBannerUpdated = "service-banner-updated"
	SubTypeServiceBannerCreated = "service-banner-created"
)

// EditedField describes one changed attribute.
type EditedField struct {
	Name     string `json:"name"`
	OldValue any    `json:"oldValue,omitempty"`
	NewValue any    `json:"newValue"`
}

// Event is a single audit entry. Message is the human readable summary.
type Event struct {
	Message        string
	Type           string
	SubType        string
	UserID         string
	UserEmail      string
	EditedUser     string
	OrganisationID string
	ServiceID      string
	EditedFields   []EditedField
}

// Writer persists audit events.
type Writer interface {
	Write(ctx context.Context, e Event)
}

// SlogWriter writes audit events as info records tagged type=audit.
type SlogWriter struct {
	logger *slog.Logger
}

// NewSlogWriter returns a Writer backed by logger.
func NewSlogWriter(logger *slog.Logger) *SlogWriter {
	return &SlogWriter{logger: logger.With(slog.String("type", "audit"))}
}

// Write implements Writer.
func (w *SlogWriter) Write(ctx context.Context, e Event) {
	meta := []any{
		slog.String("type", e.Type),
		slog.String("subType", e.SubType),
		slog.String("userId", e.UserID),
		slog.String("userEmail", e.UserEmail),
	}
	if e.EditedUser != "" {
		meta = append(meta, slog.String("editedUser", e.EditedUser))
	}
	if e.OrganisationID != "" {
		meta = append(meta, slog.String("organisationId", e.OrganisationID))
	}
	if e.ServiceID != "" {
		meta = append(meta, slog.String("serviceId", e.ServiceID))
	}
	if len(e.EditedFields) > 0 {
		meta = append(meta, slog.Any("editedFields", e.EditedFields))
	}

	w.logger.InfoContext(ctx, e.Message, slog.Group("meta", meta...))
}
