package availability

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// WithTx 返回挂在指定事务上的 Repo 副本，
// 供预订用例把封锁写入和预订写入放进同一个事务。
func (r *Repo) WithTx(tx *gorm.DB) *Repo {
	return &Repo{db: tx}
}

func (r *Repo) withCtx(ctx context.Context) *gorm.DB {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.WithContext(ctx)
}

func (r *Repo) Insert(ctx context.Context, e *Entry) error {
	db := r.withCtx(ctx)
	if db == nil {
		return fmt.Errorf("repo db is nil")
	}
	return db.Create(e).Error
}

func (r *Repo) Save(ctx context.Context, e *Entry) error {
	db := r.withCtx(ctx)
	if db == nil {
		return fmt.Errorf("repo db is nil")
	}
	return db.Save(e).Error
}

func (r *Repo) GetByID(ctx context.Context, id uint) (*Entry, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	var e Entry
	if err := db.Where("id = ?", id).First(&e).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *Repo) DeleteByID(ctx context.Context, id uint) error {
	db := r.withCtx(ctx)
	if db == nil {
		return fmt.Errorf("repo db is nil")
	}
	return db.Delete(&Entry{}, id).Error
}

// FindOverlapping 查找与 rng 重叠的第一条封锁。
// origin 为空表示任意来源；excludeReservation 非 nil 时跳过该预订自己的派生封锁
// （修改预订时旧封锁不算冲突）。
// 闭区间重叠谓词：start_date <= rng.End AND end_date >= rng.Start。
func (r *Repo) FindOverlapping(ctx context.Context, vehicleID uint, rng DateRange, origin Origin, excludeReservation *uint) (*Entry, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}

	q := db.Where("vehicle_id = ?", vehicleID).
		Where("start_date <= ? AND end_date >= ?", rng.End, rng.Start)
	if origin != "" {
		q = q.Where("origin = ?", origin)
	}
	if excludeReservation != nil {
		q = q.Where("reservation_id IS NULL OR reservation_id <> ?", *excludeReservation)
	}

	var e Entry
	err := q.First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// DeleteByReservation 删除某个预订的派生封锁，返回删除条数。
func (r *Repo) DeleteByReservation(ctx context.Context, reservationID uint) (int64, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return 0, fmt.Errorf("repo db is nil")
	}
	res := db.Where("origin = ? AND reservation_id = ?", OriginDerived, reservationID).Delete(&Entry{})
	return res.RowsAffected, res.Error
}

// ListByVehicle 列出某辆车全部封锁（两种来源都含），按起始日升序。
func (r *Repo) ListByVehicle(ctx context.Context, vehicleID uint) ([]Entry, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	var entries []Entry
	if err := db.Where("vehicle_id = ?", vehicleID).Order("start_date asc").Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// BlockedVehicleIDs 返回在 rng 内存在任意封锁（手动或派生）的车辆 ID 集合，
// 供可租搜索做排除。
func (r *Repo) BlockedVehicleIDs(ctx context.Context, rng DateRange) ([]uint, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	var ids []uint
	err := db.Model(&Entry{}).
		Where("start_date <= ? AND end_date >= ?", rng.End, rng.Start).
		Distinct("vehicle_id").
		Pluck("vehicle_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
