package vehicle

import "time"

// Status 车辆审核状态（持久化为字符串）。
type Status string

const (
	StatusPending   Status = "pending"   // 供应商提交，待管理员审核
	StatusValidated Status = "validated" // 审核通过，可被预订
	StatusRejected  Status = "rejected"  // 审核驳回
)

// Vehicle 是 vehicles 表的 GORM 模型。
// 只有 validated 状态的车辆允许出现在搜索结果和新预订里。
type Vehicle struct {
	ID            uint      `gorm:"primaryKey;autoIncrement"`
	Brand         string    `gorm:"size:64;not null"`
	Model         string    `gorm:"size:64;not null"`
	Year          int       `gorm:""`
	PlateNumber   string    `gorm:"uniqueIndex;size:32;not null"`
	UnitPriceHT   float64   `gorm:"not null"` // 日租金（不含税）
	Discount      float64   `gorm:"not null;default:0"`
	WithInsurance bool      `gorm:"not null;default:false"`
	Status        Status    `gorm:"type:varchar(16);index;not null;default:'pending'"`
	Seats         int       `gorm:"not null;default:2"`
	Fuel          string    `gorm:"size:32"`
	Transmission  string    `gorm:"size:32"`
	CategoryID    *uint     `gorm:"index"`
	ProviderID    uint      `gorm:"index;not null"`
	CreatorID     uint      `gorm:"not null"`
	AgencyID      uint      `gorm:"index;not null"` // 车辆归属的取车网点
	DriverID      *uint     `gorm:"index"`
	Driver        *Driver   `gorm:"foreignKey:DriverID"`
	CreatedAt     time.Time `gorm:"autoCreateTime"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime"`
}

// Driver 随车司机（可选），搜索时支持按司机年龄过滤。
type Driver struct {
	ID         uint      `gorm:"primaryKey;autoIncrement"`
	FirstName  string    `gorm:"size:64;not null"`
	LastName   string    `gorm:"size:64;not null"`
	Age        int       `gorm:"not null"`
	ProviderID uint      `gorm:"index;not null"`
	CreatedAt  time.Time `gorm:"autoCreateTime"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime"`
}
