package notification

import "time"

// Type 通知类型。
type Type string

const (
	TypeVehicleAccepted      Type = "VEHICLE_ACCEPTED"
	TypeVehicleRejected      Type = "VEHICLE_REJECTED"
	TypeNewReservation       Type = "NEW_RESERVATION"
	TypeReservationModified  Type = "RESERVATION_MODIFIED"
	TypeReservationCancelled Type = "RESERVATION_CANCELLED"
	TypeReservationReminder  Type = "RESERVATION_REMINDER"
)

// Recipient 通知的收件方类型。
type Recipient string

const (
	RecipientAdmin    Recipient = "ADMIN"
	RecipientProvider Recipient = "PROVIDER"
	RecipientClient   Recipient = "CLIENT"
)

// Sender 发件方类型；系统通知没有具体发件人。
type Sender string

const (
	SenderAdmin    Sender = "ADMIN"
	SenderProvider Sender = "PROVIDER"
	SenderClient   Sender = "CLIENT"
	SenderSystem   Sender = "SYSTEM"
)

// EntityType 通知关联的业务实体类型。
type EntityType string

const (
	EntityVehicle     EntityType = "VEHICLE"
	EntityReservation EntityType = "RESERVATION"
)

// Priority 通知优先级。
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
)

// Notification 站内通知行。投递语义是尽力而为：
// 写失败只记日志，绝不影响触发它的业务操作。
type Notification struct {
	ID                uint       `gorm:"primaryKey;autoIncrement"`
	Type              Type       `gorm:"type:varchar(32);index;not null"`
	Title             string     `gorm:"size:255;not null"`
	Message           string     `gorm:"type:text;not null"`
	RecipientType     Recipient  `gorm:"type:varchar(16);index:idx_recipient;not null"`
	RecipientID       uint       `gorm:"index:idx_recipient;not null"`
	SenderType        Sender     `gorm:"type:varchar(16);not null"`
	SenderID          *uint      `gorm:""`
	RelatedEntityType EntityType `gorm:"type:varchar(16)"`
	RelatedEntityID   *uint      `gorm:""`
	IsRead            bool       `gorm:"index;not null;default:false"`
	Priority          Priority   `gorm:"type:varchar(8);not null;default:'MEDIUM'"`
	CreatedAt         time.Time  `gorm:"autoCreateTime"`
	UpdatedAt         time.Time  `gorm:"autoUpdateTime"`
}
