package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/foxzi/alumnet/internal/db"
	"github.com/foxzi/alumnet/internal/models"
)

// ReportRepository keeps finished dispatch reports for later lookup and export
type ReportRepository struct {
	db *db.DB
}

func NewReportRepository(d *db.DB) *ReportRepository {
	return &ReportRepository{db: d}
}

// ErrDuplicateReport is returned when a report for the campaign is already stored
var ErrDuplicateReport = errors.New("dispatch report already exists")

// SaveReport stores report. A campaign ID is recorded once; a second save
// fails with ErrDuplicateReport.
func (r *ReportRepository) SaveReport(ctx context.Context, createdBy string, report *models.DispatchReport) error {
	failed := report.Failed
	if failed == nil {
		failed = []models.FailedRecipient{}
	}
	failedJSON, err := json.Marshal(failed)
	if err != nil {
		return fmt.Errorf("failed to encode failed recipients: %w", err)
	}
	delivered := report.Delivered
	if delivered == nil {
		delivered = []string{}
	}
	deliveredJSON, err := json.Marshal(delivered)
	if err != nil {
		return fmt.Errorf("failed to encode delivered recipients: %w", err)
	}

	res, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO dispatch_reports (
			campaign_id, listing_type, listing_id, created_by, total, total_attempted,
			sent, failed, delivered, aborted, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(campaign_id) DO NOTHING
	`),
		report.CampaignID, string(report.ListingType), report.ListingID, createdBy,
		report.Total, report.TotalAttempted, report.Sent,
		string(failedJSON), string(deliveredJSON), boolToInt(report.Aborted),
		report.StartedAt.UTC(), report.FinishedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save dispatch report %s: %w", report.CampaignID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateReport, report.CampaignID)
	}
	return nil
}

// GetReport returns the stored report for campaignID
func (r *ReportRepository) GetReport(ctx context.Context, campaignID string) (*models.DispatchReport, error) {
	var (
		report        models.DispatchReport
		listingType   string
		createdBy     string
		failedJSON    string
		deliveredJSON string
		aborted       int
	)
	err := r.db.QueryRowContext(ctx, r.db.Rebind(`
		SELECT campaign_id, listing_type, listing_id, created_by, total, total_attempted,
		       sent, failed, delivered, aborted, started_at, finished_at
		FROM dispatch_reports WHERE campaign_id = ?
	`), campaignID).Scan(
		&report.CampaignID, &listingType, &report.ListingID, &createdBy,
		&report.Total, &report.TotalAttempted, &report.Sent,
		&failedJSON, &deliveredJSON, &aborted,
		&report.StartedAt, &report.FinishedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load dispatch report %s: %w", campaignID, err)
	}

	report.ListingType = models.ListingType(listingType)
	report.Aborted = aborted != 0
	if err := json.Unmarshal([]byte(failedJSON), &report.Failed); err != nil {
		return nil, fmt.Errorf("failed to decode failed recipients: %w", err)
	}
	if err := json.Unmarshal([]byte(deliveredJSON), &report.Delivered); err != nil {
		return nil, fmt.Errorf("failed to decode delivered recipients: %w", err)
	}
	return &report, nil
}
