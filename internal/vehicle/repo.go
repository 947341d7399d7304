package vehicle

import (
	"context"
	"errors"
	"fmt"

	"github.com/CarLinkRent/CarLinkRent/internal/common/apperr"
	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) withCtx(ctx context.Context) *gorm.DB {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.WithContext(ctx)
}

func (r *Repo) Create(ctx context.Context, v *Vehicle) error {
	db := r.withCtx(ctx)
	if db == nil {
		return fmt.Errorf("repo db is nil")
	}
	return db.Create(v).Error
}

func (r *Repo) Save(ctx context.Context, v *Vehicle) error {
	db := r.withCtx(ctx)
	if db == nil {
		return fmt.Errorf("repo db is nil")
	}
	return db.Save(v).Error
}

func (r *Repo) FindByID(ctx context.Context, id uint) (*Vehicle, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	var v Vehicle
	if err := db.Where("id = ?", id).First(&v).Error; err != nil {
		return nil, err
	}
	return &v, nil
}

// VehicleValidated 实现 availability.VehicleGate。
func (r *Repo) VehicleValidated(ctx context.Context, id uint) (bool, error) {
	v, err := r.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, apperr.NotFoundf("vehicle %d not found", id)
	}
	if err != nil {
		return false, apperr.Internal(err)
	}
	return v.Status == StatusValidated, nil
}

// ListByProvider 供应商自己的车辆列表 + 分页。
func (r *Repo) ListByProvider(ctx context.Context, providerID uint, offset, limit int) ([]Vehicle, int64, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return nil, 0, fmt.Errorf("repo db is nil")
	}
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	q := db.Model(&Vehicle{}).Where("provider_id = ?", providerID)
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var vehicles []Vehicle
	if err := q.Order("created_at desc").Offset(offset).Limit(limit).Find(&vehicles).Error; err != nil {
		return nil, 0, err
	}
	return vehicles, total, nil
}

// SearchFilter 可租搜索的属性过滤条件，全部可选。
type SearchFilter struct {
	CategoryID    *uint
	ProviderID    *uint
	Brand         string
	Transmission  string
	Seats         *int
	WithInsurance *bool
	PriceMin      *float64
	PriceMax      *float64
	DriverAgeMin  *int
	DriverAgeMax  *int
}

// SearchValidated 返回满足属性过滤、且 ID 不在排除集合里的 validated 车辆，
// 按日租金升序。排除集合由可用性台账给出（区间内有任意封锁的车）。
// 司机年龄是后置过滤：设置了年龄界限时，没配司机的车直接剔除。
func (r *Repo) SearchValidated(ctx context.Context, f SearchFilter, excludeIDs []uint) ([]Vehicle, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}

	q := db.Model(&Vehicle{}).Preload("Driver").Where("status = ?", StatusValidated)
	if f.CategoryID != nil {
		q = q.Where("category_id = ?", *f.CategoryID)
	}
	if f.ProviderID != nil {
		q = q.Where("provider_id = ?", *f.ProviderID)
	}
	if f.Brand != "" {
		q = q.Where("brand = ?", f.Brand)
	}
	if f.Transmission != "" {
		q = q.Where("transmission = ?", f.Transmission)
	}
	if f.Seats != nil {
		q = q.Where("seats = ?", *f.Seats)
	}
	if f.WithInsurance != nil {
		q = q.Where("with_insurance = ?", *f.WithInsurance)
	}
	if f.PriceMin != nil {
		q = q.Where("unit_price_ht >= ?", *f.PriceMin)
	}
	if f.PriceMax != nil {
		q = q.Where("unit_price_ht <= ?", *f.PriceMax)
	}
	if len(excludeIDs) > 0 {
		q = q.Where("id NOT IN ?", excludeIDs)
	}

	var vehicles []Vehicle
	if err := q.Order("unit_price_ht asc").Find(&vehicles).Error; err != nil {
		return nil, err
	}

	if f.DriverAgeMin == nil && f.DriverAgeMax == nil {
		return vehicles, nil
	}
	filtered := make([]Vehicle, 0, len(vehicles))
	for _, v := range vehicles {
		if v.Driver == nil {
			continue
		}
		if f.DriverAgeMin != nil && v.Driver.Age < *f.DriverAgeMin {
			continue
		}
		if f.DriverAgeMax != nil && v.Driver.Age > *f.DriverAgeMax {
			continue
		}
		filtered = append(filtered, v)
	}
	return filtered, nil
}
