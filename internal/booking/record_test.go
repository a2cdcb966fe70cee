package booking

import (
	"context"
	"testing"
	"time"
)

func TestMemoryRepo_ValidatesRecords(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()

	if err := repo.InsertBooking(ctx, Record{ID: "b1", ShopID: "s"}); err != ErrInvalidRecord {
		t.Fatalf("expected ErrInvalidRecord, got %v", err)
	}

	rec := Record{
		ID:                "b1",
		ShopID:            "shop_1",
		ProviderBookingID: "BK_1",
		StartTime:         time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC),
		Status:            StatusConfirmed,
	}
	if err := repo.InsertBooking(ctx, rec); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if got := repo.Records(); len(got) != 1 || got[0].ProviderBookingID != "BK_1" {
		t.Fatalf("unexpected records: %+v", got)
	}

	rec.Status = "pending"
	if err := repo.InsertBooking(ctx, rec); err != ErrInvalidRecord {
		t.Fatalf("expected unknown status to be rejected, got %v", err)
	}
}
