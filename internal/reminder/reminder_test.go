package reminder

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/CarLinkRent/CarLinkRent/internal/notification"
	"github.com/CarLinkRent/CarLinkRent/internal/reservation"
	"github.com/CarLinkRent/CarLinkRent/internal/vehicle"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&reservation.Reservation{}, &vehicle.Vehicle{}, &notification.Notification{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newJobs(db *gorm.DB, opts Options) *Jobs {
	notes := notification.NewRepo(db)
	return NewJobs(
		reservation.NewRepo(db),
		vehicle.NewRepo(db),
		notes,
		notification.NewService(notes, nil),
		opts,
		nil,
	)
}

func seedReservation(t *testing.T, db *gorm.DB, ref string, status reservation.Status, start time.Time) *reservation.Reservation {
	t.Helper()
	res := &reservation.Reservation{
		Reference: ref, VehicleID: 1, ClientID: 7, ProviderID: 3,
		PickupAgencyID: 1, ReturnAgencyID: 1,
		StartDate: start, EndDate: start.AddDate(0, 0, 2),
		UnitPriceHT: 50, TotalHT: 150, VATRate: 0.19, VAT: 28.5, TotalTTC: 178.5,
		Status: status,
	}
	if err := db.Create(res).Error; err != nil {
		t.Fatalf("seed reservation: %v", err)
	}
	return res
}

func TestGenerateDueRemindersOncePerReservation(t *testing.T) {
	db := newTestDB(t)
	jobs := newJobs(db, DefaultOptions())
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

	soon := seedReservation(t, db, "r-soon", reservation.StatusConfirmed, now.Add(24*time.Hour))
	seedReservation(t, db, "r-far", reservation.StatusConfirmed, now.Add(200*time.Hour))
	seedReservation(t, db, "r-pending", reservation.StatusPending, now.Add(24*time.Hour))

	created, err := jobs.GenerateDueReminders(ctx, now)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if created != 1 {
		t.Fatalf("expected one reminder, got %d", created)
	}

	notes := notification.NewRepo(db)
	exists, err := notes.ReminderExists(ctx, soon.ID)
	if err != nil || !exists {
		t.Fatalf("expected reminder for %s: exists=%v err=%v", soon.Reference, exists, err)
	}

	// 幂等：再跑一遍不会重复提醒。
	created, err = jobs.GenerateDueReminders(ctx, now)
	if err != nil {
		t.Fatalf("generate again: %v", err)
	}
	if created != 0 {
		t.Fatalf("expected no duplicate reminders, got %d", created)
	}
}

func TestPurgeStaleData(t *testing.T) {
	db := newTestDB(t)
	jobs := newJobs(db, DefaultOptions())
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

	live := seedReservation(t, db, "r-live", reservation.StatusConfirmed, now.Add(24*time.Hour))
	liveID := live.ID
	ghostID := liveID + 100

	mk := func(read bool, age time.Duration, entityID *uint) *notification.Notification {
		n := &notification.Notification{
			Type: notification.TypeNewReservation, Title: "t", Message: "m",
			RecipientType: notification.RecipientClient, RecipientID: 7,
			SenderType: notification.SenderSystem,
			IsRead:     read, Priority: notification.PriorityMedium,
		}
		if entityID != nil {
			n.RelatedEntityType = notification.EntityReservation
			n.RelatedEntityID = entityID
		}
		if err := db.Create(n).Error; err != nil {
			t.Fatalf("seed notification: %v", err)
		}
		// autoCreateTime 不可注入，落库后手动回拨。
		if err := db.Model(n).Update("created_at", now.Add(-age)).Error; err != nil {
			t.Fatalf("backdate: %v", err)
		}
		return n
	}

	old := mk(true, 40*24*time.Hour, &liveID)     // 已读且过保留期，应删除
	fresh := mk(true, time.Hour, &liveID)         // 已读但未过期，保留
	unread := mk(false, 40*24*time.Hour, &liveID) // 未读，保留
	orphan := mk(false, time.Hour, &ghostID)      // 指向不存在的预订，标记已读

	res, err := jobs.PurgeStaleData(ctx, now)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if res.ReadExpired != 1 || res.Orphaned != 1 {
		t.Fatalf("unexpected purge result: %+v", res)
	}

	var ids []uint
	if err := db.Model(&notification.Notification{}).Pluck("id", &ids).Error; err != nil {
		t.Fatalf("pluck: %v", err)
	}
	kept := map[uint]bool{}
	for _, id := range ids {
		kept[id] = true
	}
	if kept[old.ID] {
		t.Fatalf("expected expired read notification deleted, kept=%v", ids)
	}
	if !kept[fresh.ID] || !kept[unread.ID] || !kept[orphan.ID] {
		t.Fatalf("expected fresh/unread/orphan notifications kept, kept=%v", ids)
	}

	// 孤儿只是被标记已读，等过保留期后由下一轮删除。
	var got notification.Notification
	if err := db.First(&got, orphan.ID).Error; err != nil {
		t.Fatalf("reload orphan: %v", err)
	}
	if !got.IsRead {
		t.Fatalf("expected orphan notification marked read")
	}

	// 幂等：再跑一遍不重复计数。
	res, err = jobs.PurgeStaleData(ctx, now)
	if err != nil {
		t.Fatalf("purge again: %v", err)
	}
	if res.ReadExpired != 0 || res.Orphaned != 0 {
		t.Fatalf("expected idempotent purge, got %+v", res)
	}
}
