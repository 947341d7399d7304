package agency

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Agency 供应商的网点：取车/还车都落在某个网点上。
type Agency struct {
	ID         uint      `gorm:"primaryKey;autoIncrement"`
	Name       string    `gorm:"size:128;not null"`
	City       string    `gorm:"size:64;not null"`
	Address    string    `gorm:"size:255"`
	Phone      string    `gorm:"size:32"`
	ProviderID uint      `gorm:"index;not null"`
	CreatedAt  time.Time `gorm:"autoCreateTime"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime"`
}

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

func (r *Repo) Create(ctx context.Context, a *Agency) error {
	db := r.withCtx(ctx)
	if db == nil {
		return fmt.Errorf("repo db is nil")
	}
	return db.Create(a).Error
}

func (r *Repo) FindByID(ctx context.Context, id uint) (*Agency, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	var a Agency
	if err := db.Where("id = ?", id).First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

// ListByProvider 某供应商的全部网点。
func (r *Repo) ListByProvider(ctx context.Context, providerID uint) ([]Agency, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	var agencies []Agency
	if err := db.Where("provider_id = ?", providerID).Order("name asc").Find(&agencies).Error; err != nil {
		return nil, err
	}
	return agencies, nil
}
