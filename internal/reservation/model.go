package reservation

import "time"

// Status 预订状态枚举（持久化为字符串）。
type Status string

const (
	StatusPending   Status = "pending"   // 已创建，待供应商/管理员确认
	StatusConfirmed Status = "confirmed" // 已确认，只能取消，不能改期
	StatusCancelled Status = "cancelled" // 已取消（终态，不可复活）
)

// Reservation 预订 GORM 模型。
// 金额字段是下单时刻的报价快照；改期时重算，确认后整体只读。
// 每个未取消的预订恰好拥有一条派生可用性封锁（availability.Entry）。
type Reservation struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	Reference string `gorm:"uniqueIndex;size:64;not null"` // 对外的人类可读编号

	// 业务关联
	VehicleID      uint `gorm:"index;not null"`
	ClientID       uint `gorm:"index;not null"`
	ProviderID     uint `gorm:"index;not null"`
	PickupAgencyID uint `gorm:"not null"`
	ReturnAgencyID uint `gorm:"not null"`

	// 租期（日粒度闭区间；时刻只作展示，不参与冲突判断）
	StartDate time.Time `gorm:"index;not null"`
	EndDate   time.Time `gorm:"not null"`
	StartTime string    `gorm:"size:8"`
	EndTime   string    `gorm:"size:8"`

	// 报价快照
	UnitPriceHT float64 `gorm:"not null"`
	TotalHT     float64 `gorm:"not null"`
	VATRate     float64 `gorm:"not null;default:0.19"`
	VAT         float64 `gorm:"not null"`
	Discount    float64 `gorm:"not null;default:0"`
	TotalTTC    float64 `gorm:"not null"`

	Status    Status    `gorm:"type:varchar(16);index;not null;default:'pending'"`
	CreatedAt time.Time `gorm:"autoCreateTime"` // 下单时刻，改期窗口从这里起算
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}
