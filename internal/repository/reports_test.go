package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/foxzi/alumnet/internal/models"
)

func TestReportRepository_SaveAndGet(t *testing.T) {
	repo := NewReportRepository(setupTestDB(t))
	ctx := context.Background()

	started := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	report := &models.DispatchReport{
		CampaignID:     "c-1",
		ListingType:    models.ListingEvent,
		ListingID:      "e-1",
		Total:          3,
		TotalAttempted: 3,
		Sent:           2,
		Failed:         []models.FailedRecipient{{Address: "gone@x.com", Reason: "550 no such user"}},
		Delivered:      []string{"a@x.com", "b@x.com"},
		StartedAt:      started,
		FinishedAt:     started.Add(2 * time.Second),
	}
	if err := repo.SaveReport(ctx, "ops@alumni.example", report); err != nil {
		t.Fatalf("SaveReport() error = %v", err)
	}

	got, err := repo.GetReport(ctx, "c-1")
	if err != nil {
		t.Fatalf("GetReport() error = %v", err)
	}
	if got.Sent != 2 || got.Total != 3 || got.TotalAttempted != 3 || got.Aborted {
		t.Errorf("GetReport() counts = %+v", got)
	}
	if !got.Consistent() {
		t.Error("stored report is not consistent")
	}
	if len(got.Failed) != 1 || got.Failed[0].Reason != "550 no such user" {
		t.Errorf("Failed = %+v", got.Failed)
	}
	if len(got.Delivered) != 2 || got.Delivered[1] != "b@x.com" {
		t.Errorf("Delivered = %v", got.Delivered)
	}
	if !got.StartedAt.Equal(started) {
		t.Errorf("StartedAt = %v, want %v", got.StartedAt, started)
	}

	// a campaign ID is recorded once
	replacement := *report
	replacement.Delivered = []string{"s1@x.com"}
	if err := repo.SaveReport(ctx, "ops@alumni.example", &replacement); !errors.Is(err, ErrDuplicateReport) {
		t.Fatalf("SaveReport() duplicate error = %v, want ErrDuplicateReport", err)
	}
	got, err = repo.GetReport(ctx, "c-1")
	if err != nil {
		t.Fatalf("GetReport() error = %v", err)
	}
	if len(got.Delivered) != 2 || got.Delivered[0] != "a@x.com" {
		t.Errorf("first report was replaced: Delivered = %v", got.Delivered)
	}
}

func TestReportRepository_EmptyLists(t *testing.T) {
	repo := NewReportRepository(setupTestDB(t))
	ctx := context.Background()

	report := &models.DispatchReport{CampaignID: "c-empty", ListingType: models.ListingCustom, StartedAt: time.Now(), FinishedAt: time.Now()}
	if err := repo.SaveReport(ctx, "", report); err != nil {
		t.Fatalf("SaveReport() error = %v", err)
	}
	got, err := repo.GetReport(ctx, "c-empty")
	if err != nil {
		t.Fatalf("GetReport() error = %v", err)
	}
	if len(got.Failed) != 0 || len(got.Delivered) != 0 {
		t.Errorf("GetReport() = %+v, want empty lists", got)
	}
}

func TestReportRepository_NotFound(t *testing.T) {
	repo := NewReportRepository(setupTestDB(t))
	if _, err := repo.GetReport(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetReport() error = %v, want ErrNotFound", err)
	}
}
