package reservation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/CarLinkRent/CarLinkRent/internal/availability"
	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// WithTx 返回挂在指定事务上的 Repo 副本。
func (r *Repo) WithTx(tx *gorm.DB) *Repo {
	return &Repo{db: tx}
}

func (r *Repo) withCtx(ctx context.Context) *gorm.DB {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.WithContext(ctx)
}

func (r *Repo) Create(ctx context.Context, res *Reservation) error {
	db := r.withCtx(ctx)
	if db == nil {
		return fmt.Errorf("repo db is nil")
	}
	return db.Create(res).Error
}

func (r *Repo) Save(ctx context.Context, res *Reservation) error {
	db := r.withCtx(ctx)
	if db == nil {
		return fmt.Errorf("repo db is nil")
	}
	return db.Save(res).Error
}

func (r *Repo) GetByID(ctx context.Context, id uint) (*Reservation, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	var res Reservation
	if err := db.Where("id = ?", id).First(&res).Error; err != nil {
		return nil, err
	}
	return &res, nil
}

// GetByReference 预订对外只暴露编号，不暴露自增 ID。
func (r *Repo) GetByReference(ctx context.Context, reference string) (*Reservation, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	var res Reservation
	if err := db.Where("reference = ?", reference).First(&res).Error; err != nil {
		return nil, err
	}
	return &res, nil
}

// FindConflict 查找与 rng 重叠的有效预订（pending/confirmed）。
// excludeID 非 0 时排除该预订自身（改期场景）。没有冲突返回 nil。
// 闭区间重叠谓词与可用性台账完全一致：start_date <= rng.End AND end_date >= rng.Start。
func (r *Repo) FindConflict(ctx context.Context, vehicleID uint, rng availability.DateRange, excludeID uint) (*Reservation, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}

	q := db.Where("vehicle_id = ?", vehicleID).
		Where("status IN ?", []Status{StatusPending, StatusConfirmed}).
		Where("start_date <= ? AND end_date >= ?", rng.End, rng.Start)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}

	var res Reservation
	err := q.First(&res).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// ListByProvider 供应商的全部预订，新单在前。
func (r *Repo) ListByProvider(ctx context.Context, providerID uint) ([]Reservation, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	var out []Reservation
	if err := db.Where("provider_id = ?", providerID).Order("created_at desc").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Stats 供应商侧的预订状态统计。
type Stats struct {
	Total     int64
	Pending   int64
	Confirmed int64
	Cancelled int64
}

func (r *Repo) StatsByProvider(ctx context.Context, providerID uint) (Stats, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return Stats{}, fmt.Errorf("repo db is nil")
	}

	var rows []struct {
		Status Status
		Count  int64
	}
	err := db.Model(&Reservation{}).
		Select("status, count(id) as count").
		Where("provider_id = ?", providerID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return Stats{}, err
	}

	var s Stats
	for _, row := range rows {
		s.Total += row.Count
		switch row.Status {
		case StatusPending:
			s.Pending = row.Count
		case StatusConfirmed:
			s.Confirmed = row.Count
		case StatusCancelled:
			s.Cancelled = row.Count
		}
	}
	return s, nil
}

// ListCurrentByProvider 正在进行中的预订（已确认且 now 落在租期内）。
func (r *Repo) ListCurrentByProvider(ctx context.Context, providerID uint, now time.Time) ([]Reservation, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	var out []Reservation
	err := db.Where("provider_id = ? AND status = ?", providerID, StatusConfirmed).
		Where("start_date <= ? AND end_date >= ?", now, now).
		Order("start_date asc").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListFutureByProvider 未来开始的有效预订。
func (r *Repo) ListFutureByProvider(ctx context.Context, providerID uint, now time.Time) ([]Reservation, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	var out []Reservation
	err := db.Where("provider_id = ? AND status IN ?", providerID, []Status{StatusPending, StatusConfirmed}).
		Where("start_date > ?", now).
		Order("start_date asc").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListConfirmedStartingBetween 出发提醒任务用：取 [from, to] 内开始的已确认预订。
func (r *Repo) ListConfirmedStartingBetween(ctx context.Context, from, to time.Time) ([]Reservation, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	var out []Reservation
	err := db.Where("status = ?", StatusConfirmed).
		Where("start_date >= ? AND start_date <= ?", from, to).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ExistsByID 孤儿通知清理用。
func (r *Repo) ExistsByID(ctx context.Context, id uint) (bool, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return false, fmt.Errorf("repo db is nil")
	}
	var count int64
	if err := db.Model(&Reservation{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
