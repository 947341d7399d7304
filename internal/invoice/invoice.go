package invoice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/CarLinkRent/CarLinkRent/internal/pricing"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Invoice 发票快照，与预订 1:1。
// 创建后 Reference / InvoiceDate / ReservationID 不再变化；
// 预订改期时只重算三个金额字段；取消预订不动发票（保留历史记录）。
type Invoice struct {
	ID            uint      `gorm:"primaryKey;autoIncrement"`
	Reference     string    `gorm:"uniqueIndex;size:64;not null"`
	InvoiceDate   time.Time `gorm:"not null"`
	TotalHT       float64   `gorm:"not null"`
	VAT           float64   `gorm:"not null"`
	TotalTTC      float64   `gorm:"not null"`
	ReservationID uint      `gorm:"uniqueIndex;not null"`
	CreatedAt     time.Time `gorm:"autoCreateTime"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime"`
}

// Synchronizer 把预订的金额同步到发票快照。
type Synchronizer struct {
	db *gorm.DB
}

func NewSynchronizer(db *gorm.DB) *Synchronizer {
	return &Synchronizer{db: db}
}

// WithTx 返回挂在指定事务上的副本：发票写入和预订写入要同生共死。
func (s *Synchronizer) WithTx(tx *gorm.DB) *Synchronizer {
	if s == nil {
		return nil
	}
	return &Synchronizer{db: tx}
}

// Sync 幂等同步：首次调用创建发票（生成唯一编号、固定开票日期），
// 之后的调用只更新金额字段。
func (s *Synchronizer) Sync(ctx context.Context, reservationID uint, amounts pricing.Amounts, now time.Time) (*Invoice, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("synchronizer db is nil")
	}
	db := s.db.WithContext(ctx)

	var inv Invoice
	err := db.Where("reservation_id = ?", reservationID).First(&inv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		inv = Invoice{
			Reference:     uuid.NewString(),
			InvoiceDate:   now,
			TotalHT:       amounts.TotalHT,
			VAT:           amounts.VAT,
			TotalTTC:      amounts.TotalTTC,
			ReservationID: reservationID,
		}
		if err := db.Create(&inv).Error; err != nil {
			return nil, err
		}
		return &inv, nil
	}
	if err != nil {
		return nil, err
	}

	inv.TotalHT = amounts.TotalHT
	inv.VAT = amounts.VAT
	inv.TotalTTC = amounts.TotalTTC
	if err := db.Model(&Invoice{}).Where("id = ?", inv.ID).
		Updates(map[string]interface{}{
			"total_ht":  inv.TotalHT,
			"vat":       inv.VAT,
			"total_ttc": inv.TotalTTC,
		}).Error; err != nil {
		return nil, err
	}
	return &inv, nil
}

// FindByReservation 按预订查发票。
func (s *Synchronizer) FindByReservation(ctx context.Context, reservationID uint) (*Invoice, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("synchronizer db is nil")
	}
	var inv Invoice
	if err := s.db.WithContext(ctx).Where("reservation_id = ?", reservationID).First(&inv).Error; err != nil {
		return nil, err
	}
	return &inv, nil
}
