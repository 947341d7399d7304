package availability

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/CarLinkRent/CarLinkRent/internal/common/apperr"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fakeGate struct {
	validated map[uint]bool
}

func (g fakeGate) VehicleValidated(_ context.Context, id uint) (bool, error) {
	v, ok := g.validated[id]
	if !ok {
		return false, apperr.NotFoundf("vehicle %d not found", id)
	}
	return v, nil
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Entry{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	db := newTestDB(t)
	gate := fakeGate{validated: map[uint]bool{1: true, 2: false}}
	return NewLedger(NewRepo(db), gate)
}

func TestAddManualBlockRequiresValidatedVehicle(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	rng := mustRange(t, "2024-06-01", "2024-06-03")

	if _, err := l.AddManualBlock(ctx, 2, rng, BlockOptions{}); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected conflict for non-validated vehicle, got %v", err)
	}
	if _, err := l.AddManualBlock(ctx, 99, rng, BlockOptions{}); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found for missing vehicle, got %v", err)
	}
	if _, err := l.AddManualBlock(ctx, 1, rng, BlockOptions{}); err != nil {
		t.Fatalf("AddManualBlock: %v", err)
	}
}

func TestManualBlockConflicts(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	if _, err := l.AddManualBlock(ctx, 1, mustRange(t, "2024-06-01", "2024-06-05"), BlockOptions{}); err != nil {
		t.Fatalf("AddManualBlock: %v", err)
	}

	// 与已有手动封锁共享边界日也算冲突。
	_, err := l.AddManualBlock(ctx, 1, mustRange(t, "2024-06-05", "2024-06-08"), BlockOptions{})
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected manual/manual conflict, got %v", err)
	}

	// 完全错开则允许。
	if _, err := l.AddManualBlock(ctx, 1, mustRange(t, "2024-06-06", "2024-06-08"), BlockOptions{}); err != nil {
		t.Fatalf("expected disjoint block to pass, got %v", err)
	}
}

func TestManualBlockRejectedOverReservation(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	if _, err := l.AddDerivedBlock(ctx, 1, mustRange(t, "2024-06-10", "2024-06-12"), BlockOptions{}, 7, nil); err != nil {
		t.Fatalf("AddDerivedBlock: %v", err)
	}

	_, err := l.AddManualBlock(ctx, 1, mustRange(t, "2024-06-11", "2024-06-15"), BlockOptions{})
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected conflict over reservation, got %v", err)
	}
	if err == nil || !strings.Contains(err.Error(), "already booked") {
		t.Fatalf("expected reservation-flavored conflict message, got %v", err)
	}
}

func TestDerivedBlockLifecycle(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	rng := mustRange(t, "2024-06-01", "2024-06-03")

	if _, err := l.AddDerivedBlock(ctx, 1, rng, BlockOptions{}, 41, nil); err != nil {
		t.Fatalf("AddDerivedBlock: %v", err)
	}

	// 双重预订必须被拒。
	if _, err := l.AddDerivedBlock(ctx, 1, mustRange(t, "2024-06-03", "2024-06-05"), BlockOptions{}, 42, nil); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected double-booking conflict, got %v", err)
	}

	// 同一预订改期：排除自身旧封锁后不算冲突。
	own := uint(41)
	if _, err := l.AddDerivedBlock(ctx, 1, mustRange(t, "2024-06-02", "2024-06-04"), BlockOptions{}, 41, &own); err != nil {
		t.Fatalf("expected own block to be excluded, got %v", err)
	}

	n, err := l.RemoveDerivedBlock(ctx, 41)
	if err != nil {
		t.Fatalf("RemoveDerivedBlock: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 derived entries removed for reservation 41, got %d", n)
	}

	// 封锁移除后同区间可再次落单。
	if _, err := l.AddDerivedBlock(ctx, 1, rng, BlockOptions{}, 43, nil); err != nil {
		t.Fatalf("expected range to be free after removal, got %v", err)
	}
}

func TestManualBlockCRUDAndListing(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	later, err := l.AddManualBlock(ctx, 1, mustRange(t, "2024-07-10", "2024-07-12"), BlockOptions{})
	if err != nil {
		t.Fatalf("AddManualBlock: %v", err)
	}
	if _, err := l.AddManualBlock(ctx, 1, mustRange(t, "2024-07-01", "2024-07-02"), BlockOptions{StartTime: "08:00", EndTime: "18:00"}); err != nil {
		t.Fatalf("AddManualBlock: %v", err)
	}

	entries, err := l.ListBlocksForVehicle(ctx, 1)
	if err != nil {
		t.Fatalf("ListBlocksForVehicle: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if !entries[0].StartDate.Before(entries[1].StartDate) {
		t.Fatalf("expected entries ordered by start date")
	}

	updated, err := l.UpdateManualBlock(ctx, later.ID, mustRange(t, "2024-07-20", "2024-07-22"), BlockOptions{})
	if err != nil {
		t.Fatalf("UpdateManualBlock: %v", err)
	}
	if got, _ := updated.Range().Format(); got != "2024-07-20" {
		t.Fatalf("expected updated start date, got %s", got)
	}

	if err := l.DeleteManualBlock(ctx, later.ID); err != nil {
		t.Fatalf("DeleteManualBlock: %v", err)
	}
	if err := l.DeleteManualBlock(ctx, later.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}

func TestDerivedBlockNotEditableAsManual(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	e, err := l.AddDerivedBlock(ctx, 1, mustRange(t, "2024-08-01", "2024-08-02"), BlockOptions{}, 9, nil)
	if err != nil {
		t.Fatalf("AddDerivedBlock: %v", err)
	}
	if _, err := l.UpdateManualBlock(ctx, e.ID, mustRange(t, "2024-08-03", "2024-08-04"), BlockOptions{}); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected derived entry to be hidden from manual edit, got %v", err)
	}
	if err := l.DeleteManualBlock(ctx, e.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected derived entry to be hidden from manual delete, got %v", err)
	}
}
