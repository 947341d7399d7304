package availability

import "time"

// Origin 封锁条目来源。
type Origin string

const (
	// OriginManual 供应商手动录入的封锁，可直接增删改。
	OriginManual Origin = "manual"
	// OriginDerived 由有效预订派生的封锁，随预订生命周期创建/销毁。
	OriginDerived Origin = "derived"
)

// Entry 是 availability_entries 表的 GORM 模型：
// 某辆车在 [StartDate, EndDate]（闭区间，日粒度）内不可租。
// 不变式：同一辆车、同一来源的条目之间不允许重叠；
// derived 条目与未取消预订一一对应（ReservationID 非空）。
type Entry struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	VehicleID uint      `gorm:"index;not null"`
	StartDate time.Time `gorm:"not null"`
	EndDate   time.Time `gorm:"not null"`
	StartTime string    `gorm:"size:8"` // 可选 "HH:MM"，冲突判断不看时刻
	EndTime   string    `gorm:"size:8"`
	Origin    Origin    `gorm:"type:varchar(16);index;not null"`
	// 仅 derived 条目关联预订；删除派生封锁按预订 ID 定位，
	// 不会误删同车其它预订的封锁。
	ReservationID *uint     `gorm:"index"`
	CreatedAt     time.Time `gorm:"autoCreateTime"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime"`
}

// Range 返回条目覆盖的日期区间。
func (e Entry) Range() DateRange {
	return DateRange{Start: Normalize(e.StartDate), End: Normalize(e.EndDate)}
}
