package invoice

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/CarLinkRent/CarLinkRent/internal/pricing"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestSync(t *testing.T) *Synchronizer {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Invoice{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewSynchronizer(db)
}

func TestSyncCreatesThenUpdatesAmountsOnly(t *testing.T) {
	s := newTestSync(t)
	ctx := context.Background()
	day1 := time.Date(2024, 6, 1, 10, 0, 0, 0, time.Local)

	first, err := s.Sync(ctx, 7, pricing.Amounts{TotalHT: 150, VAT: 28.5, TotalTTC: 178.5}, day1)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if first.Reference == "" {
		t.Fatalf("expected generated reference")
	}
	if !first.InvoiceDate.Equal(day1) {
		t.Fatalf("expected invoice date fixed at first sync")
	}

	// 改期重算：只动金额，编号与开票日期不变。
	day2 := day1.AddDate(0, 0, 5)
	second, err := s.Sync(ctx, 7, pricing.Amounts{TotalHT: 250, VAT: 47.5, TotalTTC: 297.5}, day2)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if second.Reference != first.Reference {
		t.Fatalf("reference must be immutable, got %s != %s", second.Reference, first.Reference)
	}

	got, err := s.FindByReservation(ctx, 7)
	if err != nil {
		t.Fatalf("FindByReservation: %v", err)
	}
	if got.TotalHT != 250 || got.VAT != 47.5 || got.TotalTTC != 297.5 {
		t.Fatalf("expected updated amounts, got %+v", got)
	}
	if !got.InvoiceDate.Equal(day1) {
		t.Fatalf("invoice date must not change on resync")
	}

	// 幂等：相同金额再同步不改变任何观察结果。
	if _, err := s.Sync(ctx, 7, pricing.Amounts{TotalHT: 250, VAT: 47.5, TotalTTC: 297.5}, day2); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	var count int64
	if err := s.db.Model(&Invoice{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly one invoice per reservation, got %d", count)
	}
}
