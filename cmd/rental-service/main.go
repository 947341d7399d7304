package main

import (
	"flag"
	"fmt"
	"time"

	"github.com/CarLinkRent/CarLinkRent/internal/account"
	"github.com/CarLinkRent/CarLinkRent/internal/agency"
	"github.com/CarLinkRent/CarLinkRent/internal/availability"
	"github.com/CarLinkRent/CarLinkRent/internal/common/config"
	"github.com/CarLinkRent/CarLinkRent/internal/common/logger"
	"github.com/CarLinkRent/CarLinkRent/internal/common/middleware"
	"github.com/CarLinkRent/CarLinkRent/internal/common/server"
	"github.com/CarLinkRent/CarLinkRent/internal/common/tracing"
	"github.com/CarLinkRent/CarLinkRent/internal/invoice"
	"github.com/CarLinkRent/CarLinkRent/internal/notification"
	"github.com/CarLinkRent/CarLinkRent/internal/pricing"
	"github.com/CarLinkRent/CarLinkRent/internal/reminder"
	"github.com/CarLinkRent/CarLinkRent/internal/reservation"
	"github.com/CarLinkRent/CarLinkRent/internal/rest"
	"github.com/CarLinkRent/CarLinkRent/internal/vehicle"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

var (
	configPath   = flag.String("config", "configs/rental-service.json", "配置文件路径")
	consulKVKey  = flag.String("consul-key", "", "从 Consul KV 加载配置的 key（优先于本地文件）")
	consulAddr   = flag.String("consul-host", "localhost", "Consul 地址（仅 -consul-key 时使用）")
	consulKVPort = flag.Int("consul-port", 8500, "Consul 端口（仅 -consul-key 时使用）")
)

func main() {
	flag.Parse()

	// 加载配置：优先 Consul KV，退回本地文件
	var cfg *config.Config
	var err error
	if *consulKVKey != "" {
		cfg, err = config.LoadConfigFromConsulKV(config.ConsulConfig{Host: *consulAddr, Port: *consulKVPort}, *consulKVKey)
	} else {
		cfg, err = config.LoadConfig(*configPath)
	}
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 初始化日志
	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, cfg.Log.Output, cfg.Log.Path)
	if err != nil {
		panic(fmt.Sprintf("failed to init logger: %v", err))
	}

	// 初始化链路追踪
	tracer, closer, err := tracing.InitTracer(
		cfg.Server.Name,
		cfg.Jaeger.Endpoint,
		cfg.Jaeger.Sampler,
	)
	if err != nil {
		log.Warnf("failed to init tracer: %v", err)
	} else {
		defer closer.Close()
	}
	_ = tracer

	// 初始化数据库
	db, err := openDB(cfg.Database)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	if err := db.AutoMigrate(
		&account.Client{}, &account.Provider{},
		&agency.Agency{}, &vehicle.Vehicle{}, &vehicle.Driver{},
		&availability.Entry{}, &reservation.Reservation{},
		&invoice.Invoice{}, &notification.Notification{},
	); err != nil {
		log.Fatalf("failed to migrate schema: %v", err)
	}

	// 组装领域服务
	accounts := account.NewRepo(db)
	agencies := agency.NewRepo(db)
	vehicles := vehicle.NewRepo(db)
	blockRepo := availability.NewRepo(db)
	ledger := availability.NewLedger(blockRepo, vehicles)
	invoices := invoice.NewSynchronizer(db)
	noteRepo := notification.NewRepo(db)
	noteSvc := notification.NewService(noteRepo, log)

	vatRate := cfg.Booking.VATRate
	if vatRate <= 0 {
		vatRate = pricing.DefaultVATRate
	}
	windows := reservation.Windows{
		ModifyAfterCreate: time.Duration(cfg.Booking.ModifyWindowHours) * time.Hour,
		CancelLead:        time.Duration(cfg.Booking.CancelLeadHours) * time.Hour,
	}

	resRepo := reservation.NewRepo(db)
	resSvc := reservation.NewService(db, resRepo, vehicles, agencies, accounts, ledger, invoices, noteSvc, windows, vatRate)
	vehicleSvc := vehicle.NewService(vehicles, blockRepo, noteSvc)
	jobs := reminder.NewJobs(resRepo, vehicles, noteRepo, noteSvc, reminder.Options{
		ReminderLead: time.Duration(cfg.Booking.ReminderLeadHours) * time.Hour,
		Retention:    time.Duration(cfg.Booking.NotificationRetainDays) * 24 * time.Hour,
	}, log)

	handler := rest.NewHandler(resSvc, resRepo, vehicleSvc, ledger, invoices, noteRepo, jobs, log)

	// 鉴权 + 限流挂在路由外面，recovery/tracing/access log 由服务模板统一加。
	wrapped := server.Chain(
		server.RateLimit(middleware.NewTokenBucket(500, 250)),
		server.PerClientRateLimit(time.Minute, 300),
		server.JWTAuth(cfg.Auth, log),
		server.RBAC(cfg.Auth),
	)(handler.Router())

	if err := server.RunHTTPServer(cfg, log, wrapped); err != nil {
		log.Fatalf("rental-service exited with error: %v", err)
	}
}

func openDB(c config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.User, c.Password, c.Host, c.Port, c.Database)
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if c.MaxIdle > 0 {
		sqlDB.SetMaxIdleConns(c.MaxIdle)
	}
	if c.MaxOpen > 0 {
		sqlDB.SetMaxOpenConns(c.MaxOpen)
	}
	return db, nil
}
