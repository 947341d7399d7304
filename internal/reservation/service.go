package reservation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/CarLinkRent/CarLinkRent/internal/account"
	"github.com/CarLinkRent/CarLinkRent/internal/agency"
	"github.com/CarLinkRent/CarLinkRent/internal/availability"
	"github.com/CarLinkRent/CarLinkRent/internal/common/apperr"
	"github.com/CarLinkRent/CarLinkRent/internal/invoice"
	"github.com/CarLinkRent/CarLinkRent/internal/pricing"
	"github.com/CarLinkRent/CarLinkRent/internal/vehicle"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Notifier 预订生命周期事件的通知出口（尽力而为，实现方不抛错）。
type Notifier interface {
	NotifyNewReservation(ctx context.Context, reservationID, providerID, clientID uint)
	NotifyReservationModified(ctx context.Context, reservationID, providerID, clientID uint)
	NotifyReservationCancelled(ctx context.Context, reservationID, providerID, clientID uint)
}

// Windows 生命周期的时间窗口规则。
type Windows struct {
	ModifyAfterCreate time.Duration // 下单后多久内允许改期
	CancelLead        time.Duration // 距取车开始不足该时长不允许取消
}

// DefaultWindows 默认窗口：下单 24h 内可改期，开始前 48h 可取消。
func DefaultWindows() Windows {
	return Windows{
		ModifyAfterCreate: 24 * time.Hour,
		CancelLead:        48 * time.Hour,
	}
}

// Service 预订生命周期管理：create / modify / cancel。
//
// 并发约定：同一辆车上“查冲突 → 写预订 → 写派生封锁”必须串行。
// 这里用车辆级互斥锁包住整个检查加写入序列，写入本身再套数据库事务，
// 保证要么全部落地、要么全部回滚，后来者一定观察到先行者的结果。
type Service struct {
	db       *gorm.DB
	repo     *Repo
	vehicles *vehicle.Repo
	agencies *agency.Repo
	clients  *account.Repo
	ledger   *availability.Ledger
	invoices *invoice.Synchronizer
	notifier Notifier
	locks    *vehicleLocks
	windows  Windows
	vatRate  float64
	now      func() time.Time
}

func NewService(
	db *gorm.DB,
	repo *Repo,
	vehicles *vehicle.Repo,
	agencies *agency.Repo,
	clients *account.Repo,
	ledger *availability.Ledger,
	invoices *invoice.Synchronizer,
	notifier Notifier,
	windows Windows,
	vatRate float64,
) *Service {
	if windows.ModifyAfterCreate <= 0 {
		windows.ModifyAfterCreate = DefaultWindows().ModifyAfterCreate
	}
	if windows.CancelLead <= 0 {
		windows.CancelLead = DefaultWindows().CancelLead
	}
	return &Service{
		db:       db,
		repo:     repo,
		vehicles: vehicles,
		agencies: agencies,
		clients:  clients,
		ledger:   ledger,
		invoices: invoices,
		notifier: notifier,
		locks:    newVehicleLocks(),
		windows:  windows,
		vatRate:  vatRate,
		now:      time.Now,
	}
}

// CreateInput 创建预订的入参。日期区间已在边界层解析并规整到日粒度。
type CreateInput struct {
	VehicleID      uint
	Range          availability.DateRange
	StartTime      string // 可选 "HH:MM"
	EndTime        string
	Discount       *float64 // 不传则用车辆默认折扣
	ReturnAgencyID *uint    // 不传则还车网点同取车网点
}

// Create 客户下单。成功时预订行、派生封锁、发票快照在同一事务内落地。
func (s *Service) Create(ctx context.Context, clientID uint, in CreateInput) (*Reservation, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("service not initialized")
	}

	v, err := s.vehicles.FindByID(ctx, in.VehicleID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFoundf("vehicle %d not found", in.VehicleID)
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if v.Status != vehicle.StatusValidated {
		return nil, apperr.Conflictf("vehicle %d is not open for booking", v.ID)
	}
	if v.AgencyID == 0 {
		return nil, apperr.InvalidInputf("vehicle %d has no pickup agency", v.ID)
	}

	returnAgencyID := v.AgencyID
	if in.ReturnAgencyID != nil {
		ag, err := s.agencies.FindByID(ctx, *in.ReturnAgencyID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFoundf("return agency %d not found", *in.ReturnAgencyID)
		}
		if err != nil {
			return nil, apperr.Internal(err)
		}
		if ag.ProviderID != v.ProviderID {
			return nil, apperr.InvalidInputf("return agency must belong to the vehicle's provider")
		}
		returnAgencyID = ag.ID
	}

	discount := v.Discount
	if in.Discount != nil {
		discount = *in.Discount
	}
	days := pricing.Days(in.Range.Start, in.Range.End)
	amounts, err := pricing.Quote(v.UnitPriceHT, days, discount, s.vatRate)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(v.ID)
	defer unlock()

	var created *Reservation
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		hit, err := repo.FindConflict(ctx, v.ID, in.Range, 0)
		if err != nil {
			return apperr.Internal(err)
		}
		if hit != nil {
			return apperr.Conflictf("vehicle already booked for these dates")
		}

		res := &Reservation{
			Reference:      uuid.NewString(),
			VehicleID:      v.ID,
			ClientID:       clientID,
			ProviderID:     v.ProviderID,
			PickupAgencyID: v.AgencyID,
			ReturnAgencyID: returnAgencyID,
			StartDate:      in.Range.Start,
			EndDate:        in.Range.End,
			StartTime:      in.StartTime,
			EndTime:        in.EndTime,
			UnitPriceHT:    v.UnitPriceHT,
			TotalHT:        amounts.TotalHT,
			VATRate:        amounts.VATRate,
			VAT:            amounts.VAT,
			Discount:       discount,
			TotalTTC:       amounts.TotalTTC,
			Status:         StatusPending,
			CreatedAt:      s.now(),
		}
		if err := repo.Create(ctx, res); err != nil {
			return apperr.Internal(err)
		}

		opts := availability.BlockOptions{StartTime: in.StartTime, EndTime: in.EndTime}
		if _, err := s.ledger.WithTx(tx).AddDerivedBlock(ctx, v.ID, in.Range, opts, res.ID, nil); err != nil {
			return err
		}

		if _, err := s.invoices.WithTx(tx).Sync(ctx, res.ID, amounts, s.now()); err != nil {
			return apperr.Internal(err)
		}

		created = res
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		s.notifier.NotifyNewReservation(ctx, created.ID, created.ProviderID, created.ClientID)
	}
	return created, nil
}

// Modify 客户改期。只允许 pending 状态、且仍在改期窗口内的预订。
// 金额按原单价和原折扣对新天数重算，发票只更新金额字段。
//
// 状态和窗口的判定必须在车辆锁内对最新行进行：锁外读到的快照在拿到锁时
// 可能已经被并发的 cancel/modify 改写，拿它写回会把取消过的单子改活。
func (s *Service) Modify(ctx context.Context, reference, email string, newRange availability.DateRange) (*Reservation, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("service not initialized")
	}

	// 锁外只做归属检查并取车辆 ID（两者都不可变）。
	owned, err := s.owned(ctx, reference, email)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(owned.VehicleID)
	defer unlock()

	var res *Reservation
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		res, err = s.reload(ctx, repo, reference)
		if err != nil {
			return err
		}
		if res.Status == StatusConfirmed {
			return apperr.InvalidStatef("confirmed reservation cannot be modified")
		}
		if res.Status == StatusCancelled {
			return apperr.InvalidStatef("cancelled reservation cannot be modified")
		}
		if s.now().After(res.CreatedAt.Add(s.windows.ModifyAfterCreate)) {
			return fmt.Errorf("%w: modifications allowed within %s of booking",
				apperr.ErrEditWindow, s.windows.ModifyAfterCreate)
		}

		days := pricing.Days(newRange.Start, newRange.End)
		amounts, err := pricing.Quote(res.UnitPriceHT, days, res.Discount, res.VATRate)
		if err != nil {
			return err
		}

		hit, err := repo.FindConflict(ctx, res.VehicleID, newRange, res.ID)
		if err != nil {
			return apperr.Internal(err)
		}
		if hit != nil {
			return apperr.Conflictf("vehicle already booked for these dates")
		}

		ledger := s.ledger.WithTx(tx)
		if _, err := ledger.RemoveDerivedBlock(ctx, res.ID); err != nil {
			return err
		}
		opts := availability.BlockOptions{StartTime: res.StartTime, EndTime: res.EndTime}
		if _, err := ledger.AddDerivedBlock(ctx, res.VehicleID, newRange, opts, res.ID, &res.ID); err != nil {
			return err
		}

		res.StartDate = newRange.Start
		res.EndDate = newRange.End
		res.TotalHT = amounts.TotalHT
		res.VAT = amounts.VAT
		res.TotalTTC = amounts.TotalTTC
		if err := repo.Save(ctx, res); err != nil {
			return apperr.Internal(err)
		}

		if _, err := s.invoices.WithTx(tx).Sync(ctx, res.ID, amounts, s.now()); err != nil {
			return apperr.Internal(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		s.notifier.NotifyReservationModified(ctx, res.ID, res.ProviderID, res.ClientID)
	}
	return res, nil
}

// Cancel 客户取消。终态，不可逆；发票保留作历史记录。
// 与 Modify 相同：最新行在锁内重读，避免对过期快照做状态判定。
func (s *Service) Cancel(ctx context.Context, reference, email string) (*Reservation, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("service not initialized")
	}

	owned, err := s.owned(ctx, reference, email)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(owned.VehicleID)
	defer unlock()

	var res *Reservation
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		res, err = s.reload(ctx, repo, reference)
		if err != nil {
			return err
		}
		if res.Status == StatusCancelled {
			return apperr.InvalidStatef("reservation %s already cancelled", reference)
		}
		if s.now().After(res.StartDate.Add(-s.windows.CancelLead)) {
			return fmt.Errorf("%w: cancellations allowed until %s before start",
				apperr.ErrCancelWindow, s.windows.CancelLead)
		}

		if err := ApplyTransition(res, StatusCancelled); err != nil {
			return err
		}
		if err := repo.Save(ctx, res); err != nil {
			return apperr.Internal(err)
		}
		if _, err := s.ledger.WithTx(tx).RemoveDerivedBlock(ctx, res.ID); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		s.notifier.NotifyReservationCancelled(ctx, res.ID, res.ProviderID, res.ClientID)
	}
	return res, nil
}

// GetByReference 查询单个预订。
func (s *Service) GetByReference(ctx context.Context, reference string) (*Reservation, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("service not initialized")
	}
	res, err := s.repo.GetByReference(ctx, reference)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFoundf("reservation %s not found", reference)
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return res, nil
}

// reload 在事务内按编号重读预订，作为状态判定和写回的基准。
func (s *Service) reload(ctx context.Context, repo *Repo, reference string) (*Reservation, error) {
	res, err := repo.GetByReference(ctx, reference)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFoundf("reservation %s not found", reference)
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return res, nil
}

// owned 按编号取出预订并做归属检查（客户邮箱必须匹配）。
// 归属不符只回 "invalid credentials"，不区分“单子不存在”和“不是你的单子”之外的细节。
func (s *Service) owned(ctx context.Context, reference, email string) (*Reservation, error) {
	res, err := s.GetByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	c, err := s.clients.FindClientByID(ctx, res.ClientID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.Forbiddenf("invalid credentials")
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if c.Email != email {
		return nil, apperr.Forbiddenf("invalid credentials")
	}
	return res, nil
}
