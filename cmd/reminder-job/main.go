package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/CarLinkRent/CarLinkRent/internal/common/config"
	"github.com/CarLinkRent/CarLinkRent/internal/common/logger"
	"github.com/CarLinkRent/CarLinkRent/internal/notification"
	"github.com/CarLinkRent/CarLinkRent/internal/reminder"
	"github.com/CarLinkRent/CarLinkRent/internal/reservation"
	"github.com/CarLinkRent/CarLinkRent/internal/vehicle"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// 一次性任务：生成出发提醒并清理过期通知，由外部 cron 调度。
var (
	configPath = flag.String("config", "configs/rental-service.json", "配置文件路径")
	timeout    = flag.Duration("timeout", 2*time.Minute, "任务超时")
)

func main() {
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, cfg.Log.Output, cfg.Log.Path)
	if err != nil {
		panic(fmt.Sprintf("failed to init logger: %v", err))
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.Database.User, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.Database)
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}

	noteRepo := notification.NewRepo(db)
	jobs := reminder.NewJobs(
		reservation.NewRepo(db),
		vehicle.NewRepo(db),
		noteRepo,
		notification.NewService(noteRepo, log),
		reminder.Options{
			ReminderLead: time.Duration(cfg.Booking.ReminderLeadHours) * time.Hour,
			Retention:    time.Duration(cfg.Booking.NotificationRetainDays) * 24 * time.Hour,
		},
		log,
	)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	now := time.Now()
	created, err := jobs.GenerateDueReminders(ctx, now)
	if err != nil {
		log.Fatalf("generate reminders failed: %v", err)
	}
	purged, err := jobs.PurgeStaleData(ctx, now)
	if err != nil {
		log.Fatalf("purge failed: %v", err)
	}

	log.Infof("reminder job done: created=%d read_expired=%d orphaned=%d",
		created, purged.ReadExpired, purged.Orphaned)
}
