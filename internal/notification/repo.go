package notification

import (
	"context"
	"fmt"
	"time"

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

func (r *Repo) Insert(ctx context.Context, n *Notification) error {
	db := r.withCtx(ctx)
	if db == nil {
		return fmt.Errorf("repo db is nil")
	}
	return db.Create(n).Error
}

// ListForRecipient 收件箱视图，未读在前、新的在前。
func (r *Repo) ListForRecipient(ctx context.Context, rt Recipient, recipientID uint, offset, limit int) ([]Notification, int64, error) {
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

	q := db.Model(&Notification{}).Where("recipient_type = ? AND recipient_id = ?", rt, recipientID)
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var out []Notification
	if err := q.Order("is_read asc, created_at desc").Offset(offset).Limit(limit).Find(&out).Error; err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *Repo) MarkRead(ctx context.Context, id uint) error {
	db := r.withCtx(ctx)
	if db == nil {
		return fmt.Errorf("repo db is nil")
	}
	return db.Model(&Notification{}).Where("id = ?", id).Update("is_read", true).Error
}

// ReminderExists 某预订是否已经生成过提醒（提醒幂等的依据）。
func (r *Repo) ReminderExists(ctx context.Context, reservationID uint) (bool, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return false, fmt.Errorf("repo db is nil")
	}
	var count int64
	err := db.Model(&Notification{}).
		Where("type = ? AND related_entity_type = ? AND related_entity_id = ?",
			TypeReservationReminder, EntityReservation, reservationID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// DeleteReadBefore 清理早于 cutoff 且已读的通知，返回删除条数。
func (r *Repo) DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return 0, fmt.Errorf("repo db is nil")
	}
	res := db.Where("created_at < ? AND is_read = ?", cutoff, true).Delete(&Notification{})
	return res.RowsAffected, res.Error
}

// ListByEntityType 按关联实体类型列出通知（孤儿清理用）。
func (r *Repo) ListByEntityType(ctx context.Context, et EntityType) ([]Notification, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	var out []Notification
	if err := db.Where("related_entity_type = ?", et).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
