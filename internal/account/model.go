package account

import "time"

// Client 租车客户账号。身份认证本身在外围服务，这里只保留
// 预订归属检查（邮箱匹配）需要的最小字段。
type Client struct {
	ID           uint      `gorm:"primaryKey;autoIncrement"`
	FirstName    string    `gorm:"size:64;not null"`
	LastName     string    `gorm:"size:64;not null"`
	Email        string    `gorm:"uniqueIndex;size:128;not null"`
	Phone        string    `gorm:"size:32"`
	PasswordHash string    `gorm:"size:128;not null"`
	PasswordSalt string    `gorm:"size:64;not null"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}

// Provider 车辆供应商账号。
type Provider struct {
	ID           uint      `gorm:"primaryKey;autoIncrement"`
	CompanyName  string    `gorm:"size:128;not null"`
	Email        string    `gorm:"uniqueIndex;size:128;not null"`
	Phone        string    `gorm:"size:32"`
	PasswordHash string    `gorm:"size:128;not null"`
	PasswordSalt string    `gorm:"size:64;not null"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}
