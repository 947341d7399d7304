package availability

import (
	"context"
	"errors"
	"fmt"

	"github.com/CarLinkRent/CarLinkRent/internal/common/apperr"
	"gorm.io/gorm"
)

// VehicleGate 是台账对车辆表的最小依赖：
// 只需要知道车辆是否存在、是否已通过审核。由 vehicle 包提供实现。
type VehicleGate interface {
	// VehicleValidated 车辆不存在时返回 apperr.ErrNotFound。
	VehicleValidated(ctx context.Context, vehicleID uint) (bool, error)
}

// BlockOptions 手动封锁的可选字段。
type BlockOptions struct {
	StartTime string // "HH:MM"，可为空
	EndTime   string
}

// Ledger 可用性台账：维护每辆车的封锁区间集合，
// 回答“这个日期段还能不能下新封锁”。
//
// 不变式（由 Add* 在写入前强制检查）：
//   - 同车同来源的条目之间不重叠
//   - manual 条目不得压在 derived 条目（有效预订）上，反之亦然
type Ledger struct {
	repo     *Repo
	vehicles VehicleGate
}

func NewLedger(repo *Repo, vehicles VehicleGate) *Ledger {
	return &Ledger{repo: repo, vehicles: vehicles}
}

// WithTx 返回挂在指定事务上的台账副本。
func (l *Ledger) WithTx(tx *gorm.DB) *Ledger {
	if l == nil {
		return nil
	}
	return &Ledger{repo: l.repo.WithTx(tx), vehicles: l.vehicles}
}

// AddManualBlock 供应商手动把车从可租池里拉出来。
// 车辆必须已审核通过；区间不得压在有效预订或已有手动封锁上。
func (l *Ledger) AddManualBlock(ctx context.Context, vehicleID uint, rng DateRange, opts BlockOptions) (*Entry, error) {
	if l == nil || l.repo == nil {
		return nil, fmt.Errorf("ledger not initialized")
	}

	if l.vehicles != nil {
		validated, err := l.vehicles.VehicleValidated(ctx, vehicleID)
		if err != nil {
			return nil, err
		}
		if !validated {
			return nil, apperr.Conflictf("only validated vehicles can be blocked")
		}
	}

	if err := l.checkFree(ctx, vehicleID, rng, nil); err != nil {
		return nil, err
	}

	e := &Entry{
		VehicleID: vehicleID,
		StartDate: rng.Start,
		EndDate:   rng.End,
		StartTime: opts.StartTime,
		EndTime:   opts.EndTime,
		Origin:    OriginManual,
	}
	if err := l.repo.Insert(ctx, e); err != nil {
		return nil, apperr.Internal(err)
	}
	return e, nil
}

// AddDerivedBlock 写入预订派生封锁。只应在预订事务内调用（WithTx）。
// excludeReservation 用于修改预订：该预订自己的旧封锁不算冲突。
func (l *Ledger) AddDerivedBlock(ctx context.Context, vehicleID uint, rng DateRange, opts BlockOptions, reservationID uint, excludeReservation *uint) (*Entry, error) {
	if l == nil || l.repo == nil {
		return nil, fmt.Errorf("ledger not initialized")
	}

	if err := l.checkFree(ctx, vehicleID, rng, excludeReservation); err != nil {
		return nil, err
	}

	rid := reservationID
	e := &Entry{
		VehicleID:     vehicleID,
		StartDate:     rng.Start,
		EndDate:       rng.End,
		StartTime:     opts.StartTime,
		EndTime:       opts.EndTime,
		Origin:        OriginDerived,
		ReservationID: &rid,
	}
	if err := l.repo.Insert(ctx, e); err != nil {
		return nil, apperr.Internal(err)
	}
	return e, nil
}

// RemoveDerivedBlock 按预订删除派生封锁（取消/改期用），返回删除条数。
func (l *Ledger) RemoveDerivedBlock(ctx context.Context, reservationID uint) (int64, error) {
	if l == nil || l.repo == nil {
		return 0, fmt.Errorf("ledger not initialized")
	}
	n, err := l.repo.DeleteByReservation(ctx, reservationID)
	if err != nil {
		return 0, apperr.Internal(err)
	}
	return n, nil
}

// UpdateManualBlock 直接修改一条手动封锁；派生封锁不允许从这里动。
func (l *Ledger) UpdateManualBlock(ctx context.Context, id uint, rng DateRange, opts BlockOptions) (*Entry, error) {
	if l == nil || l.repo == nil {
		return nil, fmt.Errorf("ledger not initialized")
	}
	e, err := l.getManual(ctx, id)
	if err != nil {
		return nil, err
	}
	e.StartDate = rng.Start
	e.EndDate = rng.End
	if opts.StartTime != "" {
		e.StartTime = opts.StartTime
	}
	if opts.EndTime != "" {
		e.EndTime = opts.EndTime
	}
	if err := l.repo.Save(ctx, e); err != nil {
		return nil, apperr.Internal(err)
	}
	return e, nil
}

// DeleteManualBlock 删除一条手动封锁。
func (l *Ledger) DeleteManualBlock(ctx context.Context, id uint) error {
	if l == nil || l.repo == nil {
		return fmt.Errorf("ledger not initialized")
	}
	e, err := l.getManual(ctx, id)
	if err != nil {
		return err
	}
	if err := l.repo.DeleteByID(ctx, e.ID); err != nil {
		return apperr.Internal(err)
	}
	return nil
}

// ListBlocksForVehicle 列出某辆车的全部封锁，按起始日升序。
func (l *Ledger) ListBlocksForVehicle(ctx context.Context, vehicleID uint) ([]Entry, error) {
	if l == nil || l.repo == nil {
		return nil, fmt.Errorf("ledger not initialized")
	}
	entries, err := l.repo.ListByVehicle(ctx, vehicleID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return entries, nil
}

// checkFree 依次检查派生封锁和手动封锁。
// 两种冲突返回不同的消息：调用方要能区分“已被客户预订”和“被供应商手动封锁”。
func (l *Ledger) checkFree(ctx context.Context, vehicleID uint, rng DateRange, excludeReservation *uint) error {
	hit, err := l.repo.FindOverlapping(ctx, vehicleID, rng, OriginDerived, excludeReservation)
	if err != nil {
		return apperr.Internal(err)
	}
	if hit != nil {
		return apperr.Conflictf("vehicle already booked for these dates")
	}

	hit, err = l.repo.FindOverlapping(ctx, vehicleID, rng, OriginManual, nil)
	if err != nil {
		return apperr.Internal(err)
	}
	if hit != nil {
		return apperr.Conflictf("vehicle manually blocked for this period")
	}
	return nil
}

func (l *Ledger) getManual(ctx context.Context, id uint) (*Entry, error) {
	e, err := l.repo.GetByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFoundf("availability entry %d not found", id)
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if e.Origin != OriginManual {
		return nil, apperr.NotFoundf("availability entry %d is not manually editable", id)
	}
	return e, nil
}
