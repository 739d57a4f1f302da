package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/foxzi/alumnet/internal/db"
	"github.com/foxzi/alumnet/internal/models"
)

// DraftRepository holds at most one composer draft per administrator
type DraftRepository struct {
	db *db.DB
}

func NewDraftRepository(d *db.DB) *DraftRepository {
	return &DraftRepository{db: d}
}

// SaveDraft creates or overwrites the draft of d.AdminEmail
func (r *DraftRepository) SaveDraft(ctx context.Context, d *models.Draft) error {
	if d.AdminEmail == "" {
		return fmt.Errorf("draft admin email is required")
	}
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	types := d.PersonTypes
	if types == nil {
		types = []string{}
	}
	typesJSON, err := json.Marshal(types)
	if err != nil {
		return fmt.Errorf("failed to encode person types: %w", err)
	}
	d.UpdatedAt = now()

	_, err = r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO drafts (id, admin_email, subject, body, which, person_types, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(admin_email) DO UPDATE SET
			subject = excluded.subject,
			body = excluded.body,
			which = excluded.which,
			person_types = excluded.person_types,
			updated_at = excluded.updated_at
	`), d.ID, d.AdminEmail, d.Subject, d.Body, d.Which, string(typesJSON), d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save draft: %w", err)
	}
	return nil
}

// GetDraft returns the draft saved by adminEmail
func (r *DraftRepository) GetDraft(ctx context.Context, adminEmail string) (*models.Draft, error) {
	var d models.Draft
	var typesJSON string
	err := r.db.QueryRowContext(ctx, r.db.Rebind(`
		SELECT id, admin_email, subject, body, which, person_types, updated_at
		FROM drafts WHERE admin_email = ?
	`), adminEmail).Scan(&d.ID, &d.AdminEmail, &d.Subject, &d.Body, &d.Which, &typesJSON, &d.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load draft: %w", err)
	}
	if err := json.Unmarshal([]byte(typesJSON), &d.PersonTypes); err != nil {
		return nil, fmt.Errorf("failed to decode person types: %w", err)
	}
	return &d, nil
}
