package reminder

import (
	"context"
	"errors"
	"time"

	"github.com/CarLinkRent/CarLinkRent/internal/common/logger"
	"github.com/CarLinkRent/CarLinkRent/internal/notification"
	"github.com/CarLinkRent/CarLinkRent/internal/reservation"
	"github.com/CarLinkRent/CarLinkRent/internal/vehicle"
	"gorm.io/gorm"
)

// Options 定时任务参数。
type Options struct {
	ReminderLead time.Duration // 出发前多久生成提醒
	Retention    time.Duration // 已读通知保留时长
}

// DefaultOptions 默认：开始前 48h 提醒，已读通知保留 30 天。
func DefaultOptions() Options {
	return Options{
		ReminderLead: 48 * time.Hour,
		Retention:    30 * 24 * time.Hour,
	}
}

// Reminders 发送出发提醒的出口，由 notification.Service 实现。
type Reminders interface {
	CreateReservationReminder(ctx context.Context, reservationID, clientID uint, startDate time.Time)
}

// Jobs 周期性维护任务：出发提醒 + 过期数据清理。
// 两个任务都是幂等的，调度器重复触发不会产生重复提醒或误删。
type Jobs struct {
	reservations *reservation.Repo
	vehicles     *vehicle.Repo
	notes        *notification.Repo
	reminders    Reminders
	opts         Options
	log          logger.Logger
}

func NewJobs(
	reservations *reservation.Repo,
	vehicles *vehicle.Repo,
	notes *notification.Repo,
	reminders Reminders,
	opts Options,
	log logger.Logger,
) *Jobs {
	if opts.ReminderLead <= 0 {
		opts.ReminderLead = DefaultOptions().ReminderLead
	}
	if opts.Retention <= 0 {
		opts.Retention = DefaultOptions().Retention
	}
	return &Jobs{
		reservations: reservations,
		vehicles:     vehicles,
		notes:        notes,
		reminders:    reminders,
		opts:         opts,
		log:          log,
	}
}

// GenerateDueReminders 给 [now, now+lead] 内开始的已确认预订生成出发提醒。
// 每个预订至多提醒一次：已经存在提醒记录的跳过。返回新生成的提醒数。
func (j *Jobs) GenerateDueReminders(ctx context.Context, now time.Time) (int, error) {
	due, err := j.reservations.ListConfirmedStartingBetween(ctx, now, now.Add(j.opts.ReminderLead))
	if err != nil {
		return 0, err
	}

	created := 0
	for _, res := range due {
		exists, err := j.notes.ReminderExists(ctx, res.ID)
		if err != nil {
			return created, err
		}
		if exists {
			continue
		}
		j.reminders.CreateReservationReminder(ctx, res.ID, res.ClientID, res.StartDate)
		created++
	}

	if j.log != nil && created > 0 {
		j.log.WithFields(map[string]interface{}{
			"due":     len(due),
			"created": created,
		}).Info("departure reminders generated")
	}
	return created, nil
}

// PurgeResult 一次清理的统计。
type PurgeResult struct {
	ReadExpired int64 // 过保留期的已读通知（删除）
	Orphaned    int64 // 指向已不存在实体的通知（标记已读）
}

// PurgeStaleData 删除过保留期的已读通知；关联实体已被删除的孤儿通知
// 先标记为已读，等过了保留期由下一轮清理删除。
func (j *Jobs) PurgeStaleData(ctx context.Context, now time.Time) (PurgeResult, error) {
	var out PurgeResult

	n, err := j.notes.DeleteReadBefore(ctx, now.Add(-j.opts.Retention))
	if err != nil {
		return out, err
	}
	out.ReadExpired = n

	orphaned, err := j.purgeOrphans(ctx, notification.EntityReservation, func(id uint) (bool, error) {
		return j.reservations.ExistsByID(ctx, id)
	})
	if err != nil {
		return out, err
	}
	out.Orphaned += orphaned

	orphaned, err = j.purgeOrphans(ctx, notification.EntityVehicle, func(id uint) (bool, error) {
		_, err := j.vehicles.FindByID(ctx, id)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return true, nil
	})
	if err != nil {
		return out, err
	}
	out.Orphaned += orphaned

	if j.log != nil && (out.ReadExpired > 0 || out.Orphaned > 0) {
		j.log.WithFields(map[string]interface{}{
			"read_expired": out.ReadExpired,
			"orphaned":     out.Orphaned,
		}).Info("stale notifications purged")
	}
	return out, nil
}

func (j *Jobs) purgeOrphans(ctx context.Context, et notification.EntityType, exists func(uint) (bool, error)) (int64, error) {
	notes, err := j.notes.ListByEntityType(ctx, et)
	if err != nil {
		return 0, err
	}

	var marked int64
	for _, n := range notes {
		if n.RelatedEntityID == nil || n.IsRead {
			continue
		}
		ok, err := exists(*n.RelatedEntityID)
		if err != nil {
			return marked, err
		}
		if ok {
			continue
		}
		if err := j.notes.MarkRead(ctx, n.ID); err != nil {
			return marked, err
		}
		marked++
	}
	return marked, nil
}
