package reservation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/CarLinkRent/CarLinkRent/internal/account"
	"github.com/CarLinkRent/CarLinkRent/internal/agency"
	"github.com/CarLinkRent/CarLinkRent/internal/availability"
	"github.com/CarLinkRent/CarLinkRent/internal/common/apperr"
	"github.com/CarLinkRent/CarLinkRent/internal/invoice"
	"github.com/CarLinkRent/CarLinkRent/internal/pricing"
	"github.com/CarLinkRent/CarLinkRent/internal/vehicle"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type noteRecorder struct {
	mu        sync.Mutex
	created   int
	modified  int
	cancelled int
}

func (n *noteRecorder) NotifyNewReservation(_ context.Context, _, _, _ uint) {
	n.mu.Lock()
	n.created++
	n.mu.Unlock()
}

func (n *noteRecorder) NotifyReservationModified(_ context.Context, _, _, _ uint) {
	n.mu.Lock()
	n.modified++
	n.mu.Unlock()
}

func (n *noteRecorder) NotifyReservationCancelled(_ context.Context, _, _, _ uint) {
	n.mu.Lock()
	n.cancelled++
	n.mu.Unlock()
}

type fixture struct {
	db       *gorm.DB
	svc      *Service
	repo     *Repo
	ledger   *availability.Ledger
	invoices *invoice.Synchronizer
	notes    *noteRecorder
	client   *account.Client
	vehicle  *vehicle.Vehicle
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&account.Client{}, &account.Provider{},
		&agency.Agency{}, &vehicle.Vehicle{}, &vehicle.Driver{},
		&availability.Entry{}, &Reservation{}, &invoice.Invoice{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	ctx := context.Background()
	accounts := account.NewRepo(db)
	client := &account.Client{FirstName: "Lina", LastName: "Haddad", Email: "lina@example.com", PasswordHash: "x", PasswordSalt: "x"}
	if err := accounts.CreateClient(ctx, client); err != nil {
		t.Fatalf("create client: %v", err)
	}
	provider := &account.Provider{CompanyName: "RentCo", Email: "rentco@example.com", PasswordHash: "x", PasswordSalt: "x"}
	if err := accounts.CreateProvider(ctx, provider); err != nil {
		t.Fatalf("create provider: %v", err)
	}

	agencies := agency.NewRepo(db)
	ag := &agency.Agency{Name: "Centre Ville", City: "Tunis", ProviderID: provider.ID}
	if err := agencies.Create(ctx, ag); err != nil {
		t.Fatalf("create agency: %v", err)
	}

	vehicles := vehicle.NewRepo(db)
	v := &vehicle.Vehicle{
		Brand: "Renault", Model: "Clio", Year: 2022, PlateNumber: "RES-" + strings.ReplaceAll(t.Name(), "/", "-"),
		UnitPriceHT: 50, Status: vehicle.StatusValidated, Seats: 5,
		ProviderID: provider.ID, CreatorID: provider.ID, AgencyID: ag.ID,
	}
	if err := vehicles.Create(ctx, v); err != nil {
		t.Fatalf("create vehicle: %v", err)
	}

	repo := NewRepo(db)
	ledger := availability.NewLedger(availability.NewRepo(db), vehicles)
	invoices := invoice.NewSynchronizer(db)
	notes := &noteRecorder{}

	svc := NewService(db, repo, vehicles, agencies, accounts, ledger, invoices, notes, DefaultWindows(), pricing.DefaultVATRate)
	svc.now = func() time.Time { return day(t, "2024-05-01") }

	return &fixture{
		db: db, svc: svc, repo: repo, ledger: ledger, invoices: invoices,
		notes: notes, client: client, vehicle: v,
	}
}

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := availability.ParseDay(s)
	if err != nil {
		t.Fatalf("parse day %s: %v", s, err)
	}
	return d
}

func rng(t *testing.T, start, end string) availability.DateRange {
	t.Helper()
	r, err := availability.NewDateRange(day(t, start), day(t, end))
	if err != nil {
		t.Fatalf("range %s..%s: %v", start, end, err)
	}
	return r
}

func TestCreateReservationEndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.Create(ctx, f.client.ID, CreateInput{
		VehicleID: f.vehicle.ID,
		Range:     rng(t, "2024-06-01", "2024-06-03"),
		StartTime: "09:00",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if res.Reference == "" {
		t.Fatalf("expected a reference to be assigned")
	}
	if res.Status != StatusPending {
		t.Fatalf("expected pending, got %s", res.Status)
	}
	if res.TotalHT != 150 || res.VAT != 28.5 || res.TotalTTC != 178.5 {
		t.Fatalf("unexpected amounts: HT=%v VAT=%v TTC=%v", res.TotalHT, res.VAT, res.TotalTTC)
	}
	if res.PickupAgencyID == 0 || res.PickupAgencyID != res.ReturnAgencyID {
		t.Fatalf("expected return agency to default to pickup agency")
	}

	blocks, err := f.ledger.ListBlocksForVehicle(ctx, f.vehicle.ID)
	if err != nil {
		t.Fatalf("list blocks: %v", err)
	}
	if len(blocks) != 1 || blocks[0].Origin != availability.OriginDerived {
		t.Fatalf("expected one derived block, got %+v", blocks)
	}
	if blocks[0].ReservationID == nil || *blocks[0].ReservationID != res.ID {
		t.Fatalf("derived block not linked to reservation")
	}

	inv, err := f.invoices.FindByReservation(ctx, res.ID)
	if err != nil {
		t.Fatalf("find invoice: %v", err)
	}
	if inv.TotalHT != 150 || inv.VAT != 28.5 || inv.TotalTTC != 178.5 {
		t.Fatalf("invoice amounts out of sync: %+v", inv)
	}

	if f.notes.created != 1 {
		t.Fatalf("expected one creation notification, got %d", f.notes.created)
	}
}

func TestCreateOverlapConflictThenRebookAfterCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.Create(ctx, f.client.ID, CreateInput{
		VehicleID: f.vehicle.ID,
		Range:     rng(t, "2024-06-01", "2024-06-03"),
	})
	if err != nil {
		t.Fatalf("first create: %v", err)
	}

	// 闭区间：06-03 同时属于两个区间，必须冲突。
	in := CreateInput{VehicleID: f.vehicle.ID, Range: rng(t, "2024-06-03", "2024-06-05")}
	if _, err := f.svc.Create(ctx, f.client.ID, in); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected conflict on overlapping create, got %v", err)
	}

	if _, err := f.svc.Cancel(ctx, first.Reference, f.client.Email); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	if _, err := f.svc.Create(ctx, f.client.ID, in); err != nil {
		t.Fatalf("expected rebooking to succeed after cancellation, got %v", err)
	}
}

func TestCreateRequiresValidatedVehicle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.vehicle.Status = vehicle.StatusPending
	if err := f.db.Save(f.vehicle).Error; err != nil {
		t.Fatalf("save vehicle: %v", err)
	}

	_, err := f.svc.Create(ctx, f.client.ID, CreateInput{
		VehicleID: f.vehicle.ID,
		Range:     rng(t, "2024-06-01", "2024-06-03"),
	})
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected conflict for unvalidated vehicle, got %v", err)
	}

	if _, err := f.svc.Create(ctx, f.client.ID, CreateInput{
		VehicleID: 9999,
		Range:     rng(t, "2024-06-01", "2024-06-03"),
	}); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found for missing vehicle, got %v", err)
	}
}

func TestCreateRejectedByManualBlock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.ledger.AddManualBlock(ctx, f.vehicle.ID, rng(t, "2024-06-02", "2024-06-04"), availability.BlockOptions{}); err != nil {
		t.Fatalf("manual block: %v", err)
	}

	_, err := f.svc.Create(ctx, f.client.ID, CreateInput{
		VehicleID: f.vehicle.ID,
		Range:     rng(t, "2024-06-01", "2024-06-03"),
	})
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if err == nil || !strings.Contains(err.Error(), "manually blocked") {
		t.Fatalf("expected manual-block message, got %v", err)
	}

	// 失败的事务不能留下半成品。
	var count int64
	if err := f.db.Model(&Reservation{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no reservation row after rollback, got %d", count)
	}
}

func TestConcurrentCreateSingleWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in := CreateInput{VehicleID: f.vehicle.ID, Range: rng(t, "2024-06-10", "2024-06-12")}

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Create(ctx, f.client.ID, in)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok, conflicts int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, apperr.ErrConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || conflicts != 1 {
		t.Fatalf("expected exactly one winner and one conflict, got ok=%d conflicts=%d", ok, conflicts)
	}

	var count int64
	if err := f.db.Model(&Reservation{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected a single reservation row, got %d", count)
	}
}

func TestModifyRecomputesAmountsAndMovesBlock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.Create(ctx, f.client.ID, CreateInput{
		VehicleID: f.vehicle.ID,
		Range:     rng(t, "2024-06-01", "2024-06-03"),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	invBefore, err := f.invoices.FindByReservation(ctx, res.ID)
	if err != nil {
		t.Fatalf("invoice: %v", err)
	}

	got, err := f.svc.Modify(ctx, res.Reference, f.client.Email, rng(t, "2024-06-01", "2024-06-05"))
	if err != nil {
		t.Fatalf("modify: %v", err)
	}
	if got.TotalHT != 250 || got.VAT != 47.5 || got.TotalTTC != 297.5 {
		t.Fatalf("unexpected amounts after modify: HT=%v VAT=%v TTC=%v", got.TotalHT, got.VAT, got.TotalTTC)
	}

	blocks, err := f.ledger.ListBlocksForVehicle(ctx, f.vehicle.ID)
	if err != nil {
		t.Fatalf("list blocks: %v", err)
	}
	if len(blocks) != 1 {
		t.Fatalf("expected exactly one derived block after modify, got %d", len(blocks))
	}
	if !blocks[0].EndDate.Equal(day(t, "2024-06-05")) {
		t.Fatalf("derived block not moved: end=%v", blocks[0].EndDate)
	}

	invAfter, err := f.invoices.FindByReservation(ctx, res.ID)
	if err != nil {
		t.Fatalf("invoice: %v", err)
	}
	if invAfter.Reference != invBefore.Reference || !invAfter.InvoiceDate.Equal(invBefore.InvoiceDate) {
		t.Fatalf("invoice identity must not change on modify")
	}
	if invAfter.TotalTTC != 297.5 {
		t.Fatalf("invoice amounts not refreshed: %+v", invAfter)
	}
	if f.notes.modified != 1 {
		t.Fatalf("expected one modification notification, got %d", f.notes.modified)
	}
}

func TestModifyGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.Create(ctx, f.client.ID, CreateInput{
		VehicleID: f.vehicle.ID,
		Range:     rng(t, "2024-06-01", "2024-06-03"),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// 归属不符。
	if _, err := f.svc.Modify(ctx, res.Reference, "someone.else@example.com", rng(t, "2024-06-01", "2024-06-04")); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("expected forbidden for wrong email, got %v", err)
	}

	// 改期窗口过期：下单 24h 后。
	f.svc.now = func() time.Time { return res.CreatedAt.Add(24*time.Hour + time.Minute) }
	if _, err := f.svc.Modify(ctx, res.Reference, f.client.Email, rng(t, "2024-06-01", "2024-06-04")); !errors.Is(err, apperr.ErrEditWindow) {
		t.Fatalf("expected edit window error, got %v", err)
	}

	// 窗口边界本身仍然允许。
	f.svc.now = func() time.Time { return res.CreatedAt.Add(24 * time.Hour) }
	if _, err := f.svc.Modify(ctx, res.Reference, f.client.Email, rng(t, "2024-06-01", "2024-06-04")); err != nil {
		t.Fatalf("expected modify at window boundary to succeed, got %v", err)
	}

	// 已确认的预订不能改期。
	f.svc.now = func() time.Time { return day(t, "2024-05-01") }
	if err := f.db.Model(&Reservation{}).Where("id = ?", res.ID).Update("status", StatusConfirmed).Error; err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if _, err := f.svc.Modify(ctx, res.Reference, f.client.Email, rng(t, "2024-06-01", "2024-06-05")); !errors.Is(err, apperr.ErrInvalidState) {
		t.Fatalf("expected invalid state for confirmed reservation, got %v", err)
	}
}

func TestModifyConflictRollsBackBlock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.Create(ctx, f.client.ID, CreateInput{
		VehicleID: f.vehicle.ID,
		Range:     rng(t, "2024-06-01", "2024-06-03"),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.ledger.AddManualBlock(ctx, f.vehicle.ID, rng(t, "2024-06-08", "2024-06-10"), availability.BlockOptions{}); err != nil {
		t.Fatalf("manual block: %v", err)
	}

	if _, err := f.svc.Modify(ctx, res.Reference, f.client.Email, rng(t, "2024-06-07", "2024-06-09")); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	// 回滚后原封锁必须原样保留。
	blocks, err := f.ledger.ListBlocksForVehicle(ctx, f.vehicle.ID)
	if err != nil {
		t.Fatalf("list blocks: %v", err)
	}
	var derived *availability.Entry
	for i := range blocks {
		if blocks[i].Origin == availability.OriginDerived {
			derived = &blocks[i]
		}
	}
	if derived == nil {
		t.Fatalf("derived block lost after failed modify")
	}
	if !derived.StartDate.Equal(day(t, "2024-06-01")) || !derived.EndDate.Equal(day(t, "2024-06-03")) {
		t.Fatalf("derived block changed after failed modify: %+v", derived)
	}

	kept, err := f.repo.GetByReference(ctx, res.Reference)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !kept.EndDate.Equal(day(t, "2024-06-03")) {
		t.Fatalf("reservation dates changed after failed modify")
	}
}

func TestCancelLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.Create(ctx, f.client.ID, CreateInput{
		VehicleID: f.vehicle.ID,
		Range:     rng(t, "2024-06-01", "2024-06-03"),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := f.svc.Cancel(ctx, res.Reference, "someone.else@example.com"); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("expected forbidden for wrong email, got %v", err)
	}

	got, err := f.svc.Cancel(ctx, res.Reference, f.client.Email)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got.Status != StatusCancelled {
		t.Fatalf("expected cancelled, got %s", got.Status)
	}

	blocks, err := f.ledger.ListBlocksForVehicle(ctx, f.vehicle.ID)
	if err != nil {
		t.Fatalf("list blocks: %v", err)
	}
	if len(blocks) != 0 {
		t.Fatalf("expected derived block removed on cancel, got %+v", blocks)
	}

	// 发票保留作历史记录。
	if _, err := f.invoices.FindByReservation(ctx, res.ID); err != nil {
		t.Fatalf("expected invoice to survive cancellation: %v", err)
	}

	// 取消是终态：重复取消报 InvalidState。
	if _, err := f.svc.Cancel(ctx, res.Reference, f.client.Email); !errors.Is(err, apperr.ErrInvalidState) {
		t.Fatalf("expected invalid state on second cancel, got %v", err)
	}
	if f.notes.cancelled != 1 {
		t.Fatalf("expected one cancellation notification, got %d", f.notes.cancelled)
	}
}

func TestConcurrentModifyCannotReviveCancellation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.Create(ctx, f.client.ID, CreateInput{
		VehicleID: f.vehicle.ID,
		Range:     rng(t, "2024-06-01", "2024-06-03"),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// 先占住车辆锁：并发的改期和取消各自完成锁外读取后都停在锁上，
	// 放行后两者先后执行。无论先后顺序如何，取消必须保持终态。
	unlock := f.svc.locks.Lock(res.VehicleID)

	var wg sync.WaitGroup
	var modErr, cancelErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, modErr = f.svc.Modify(ctx, res.Reference, f.client.Email, rng(t, "2024-06-01", "2024-06-05"))
	}()
	go func() {
		defer wg.Done()
		_, cancelErr = f.svc.Cancel(ctx, res.Reference, f.client.Email)
	}()

	time.Sleep(100 * time.Millisecond)
	unlock()
	wg.Wait()

	if cancelErr != nil {
		t.Fatalf("cancel: %v", cancelErr)
	}
	// 改期要么赶在取消前成功，要么撞上已取消的单子。
	if modErr != nil && !errors.Is(modErr, apperr.ErrInvalidState) {
		t.Fatalf("unexpected modify error: %v", modErr)
	}

	kept, err := f.repo.GetByReference(ctx, res.Reference)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if kept.Status != StatusCancelled {
		t.Fatalf("cancellation not terminal: status=%s modErr=%v", kept.Status, modErr)
	}
	blocks, err := f.ledger.ListBlocksForVehicle(ctx, f.vehicle.ID)
	if err != nil {
		t.Fatalf("list blocks: %v", err)
	}
	if len(blocks) != 0 {
		t.Fatalf("expected no blocks after cancellation, got %+v", blocks)
	}

	// 重复取消的竞态同理：后到的一方在锁内重读后报 InvalidState。
	if _, err := f.svc.Cancel(ctx, res.Reference, f.client.Email); !errors.Is(err, apperr.ErrInvalidState) {
		t.Fatalf("expected invalid state on repeated cancel, got %v", err)
	}
}

func TestCancelWindowExpired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.Create(ctx, f.client.ID, CreateInput{
		VehicleID: f.vehicle.ID,
		Range:     rng(t, "2024-06-01", "2024-06-03"),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// 距开始不足 48h。
	f.svc.now = func() time.Time { return day(t, "2024-05-31") }
	if _, err := f.svc.Cancel(ctx, res.Reference, f.client.Email); !errors.Is(err, apperr.ErrCancelWindow) {
		t.Fatalf("expected cancel window error, got %v", err)
	}

	kept, err := f.repo.GetByReference(ctx, res.Reference)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if kept.Status != StatusPending {
		t.Fatalf("expected reservation untouched, got %s", kept.Status)
	}
}
