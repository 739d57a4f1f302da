package repository

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/foxzi/alumnet/internal/audience"
	"github.com/foxzi/alumnet/internal/db"
	"github.com/foxzi/alumnet/internal/models"
)

// ImportResult summarizes a people CSV import
type ImportResult struct {
	Total    int      `json:"total"`
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors,omitempty"`
}

type PersonRepository struct {
	db *db.DB
}

func NewPersonRepository(d *db.DB) *PersonRepository {
	return &PersonRepository{db: d}
}

const personColumns = "id, name, type, email1, email2, created_at, updated_at"

// ListPeople implements audience.PersonStore with keyset paging on id.
// IDs compare bytewise on every dialect so pages follow the same order as
// Go string comparison.
func (r *PersonRepository) ListPeople(ctx context.Context, q audience.PersonQuery) ([]models.Person, error) {
	idKey := "id"
	if r.db.Dialect == db.Postgres {
		idKey = `id COLLATE "C"`
	}

	query := "SELECT " + personColumns + " FROM people WHERE 1=1"
	var args []any

	if len(q.Types) > 0 {
		query += " AND type IN (" + db.Placeholders(len(q.Types)) + ")"
		for _, t := range q.Types {
			args = append(args, string(t))
		}
	}
	if q.AfterID != "" {
		query += " AND " + idKey + " > ?"
		args = append(args, q.AfterID)
	}
	query += " ORDER BY " + idKey
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := r.db.QueryContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list people: %w", err)
	}
	defer rows.Close()

	var people []models.Person
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, err
		}
		people = append(people, *p)
	}
	return people, rows.Err()
}

// Get returns one person by id
func (r *PersonRepository) Get(ctx context.Context, id string) (*models.Person, error) {
	row := r.db.QueryRowContext(ctx, r.db.Rebind("SELECT "+personColumns+" FROM people WHERE id = ?"), id)
	p, err := scanPerson(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

// Upsert inserts p or replaces the stored fields of the person with the same id.
// An empty ID is assigned a new UUID.
func (r *PersonRepository) Upsert(ctx context.Context, p *models.Person) error {
	if !p.Type.Valid() {
		return fmt.Errorf("%w: %q", models.ErrUnknownPersonType, p.Type)
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	ts := now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = ts
	}
	p.UpdatedAt = ts

	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO people (id, name, type, email1, email2, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			type = excluded.type,
			email1 = excluded.email1,
			email2 = excluded.email2,
			updated_at = excluded.updated_at
	`), p.ID, p.Name, string(p.Type), p.Email1, p.Email2, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save person %s: %w", p.ID, err)
	}
	return nil
}

// Count returns the number of stored people
func (r *PersonRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM people").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count people: %w", err)
	}
	return n, nil
}

// ImportCSV upserts people from a CSV with a header row. Recognized columns:
// id, name, type, email1 (or email), email2. Rows with an unknown type or no
// address at all are skipped and reported.
func (r *PersonRepository) ImportCSV(ctx context.Context, reader io.Reader) (*ImportResult, error) {
	result := &ImportResult{}

	csvReader := csv.NewReader(reader)
	csvReader.FieldsPerRecord = -1

	header, err := csvReader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	idIdx, nameIdx, typeIdx, email1Idx, email2Idx := -1, -1, -1, -1, -1
	for i, col := range header {
		switch strings.ToLower(strings.TrimSpace(col)) {
		case "id", "person_id":
			idIdx = i
		case "name", "full_name", "fullname":
			nameIdx = i
		case "type", "person_type":
			typeIdx = i
		case "email1", "email", "e-mail", "primary_email":
			email1Idx = i
		case "email2", "secondary_email", "personal_email":
			email2Idx = i
		}
	}

	if typeIdx == -1 {
		return nil, fmt.Errorf("type column not found in CSV")
	}
	if email1Idx == -1 && email2Idx == -1 {
		return nil, fmt.Errorf("email column not found in CSV")
	}

	field := func(record []string, idx int) string {
		if idx < 0 || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	for {
		record, err := csvReader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			result.Total++
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", result.Total, err))
			result.Skipped++
			continue
		}

		result.Total++

		personType, err := models.ParsePersonType(field(record, typeIdx))
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", result.Total, err))
			result.Skipped++
			continue
		}

		p := &models.Person{
			ID:     field(record, idIdx),
			Name:   field(record, nameIdx),
			Type:   personType,
			Email1: field(record, email1Idx),
			Email2: field(record, email2Idx),
		}
		if p.Email1 == "" && p.Email2 == "" {
			result.Skipped++
			continue
		}

		if err := r.Upsert(ctx, p); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("row %d (%s): %v", result.Total, p.ID, err))
			result.Skipped++
			continue
		}

		result.Imported++
	}

	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPerson(row rowScanner) (*models.Person, error) {
	var p models.Person
	var personType string
	if err := row.Scan(&p.ID, &p.Name, &personType, &p.Email1, &p.Email2, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Type = models.PersonType(personType)
	return &p, nil
}
