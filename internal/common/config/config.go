package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// Config 应用配置
type Config struct {
	Server   ServerConfig   `json:"server"`
	Database DatabaseConfig `json:"database"`
	Auth     AuthConfig     `json:"auth"`
	Booking  BookingConfig  `json:"booking"`
	Consul   ConsulConfig   `json:"consul"`
	Jaeger   JaegerConfig   `json:"jaeger"`
	Log      LogConfig      `json:"log"`
}

// ServerConfig 服务配置
type ServerConfig struct {
	Name     string `json:"name"`      // 服务名称
	Host     string `json:"host"`      // 服务地址
	HTTPPort int    `json:"http_port"` // HTTP端口
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver   string `json:"driver"`   // 数据库驱动
	Host     string `json:"host"`     // 数据库地址
	Port     int    `json:"port"`     // 数据库端口
	User     string `json:"user"`     // 用户名
	Password string `json:"password"` // 密码
	Database string `json:"database"` // 数据库名
	MaxIdle  int    `json:"max_idle"` // 最大空闲连接
	MaxOpen  int    `json:"max_open"` // 最大打开连接
}

// AuthConfig JWT 鉴权配置
type AuthConfig struct {
	Enabled     bool                `json:"enabled"`
	JWTSecret   string              `json:"jwt_secret"`
	Issuer      string              `json:"issuer"`
	Audience    string              `json:"audience"`
	PublicPaths []string            `json:"public_paths"` // 不需要鉴权的路径前缀
	RBAC        map[string][]string `json:"rbac"`         // 路径前缀 -> 允许的角色
}

// BookingConfig 预订业务规则
type BookingConfig struct {
	VATRate                float64 `json:"vat_rate"`                 // 增值税率
	ModifyWindowHours      int     `json:"modify_window_hours"`      // 下单后允许改期的小时数
	CancelLeadHours        int     `json:"cancel_lead_hours"`        // 取消需距开始的最小提前小时数
	ReminderLeadHours      int     `json:"reminder_lead_hours"`      // 出发提醒的提前小时数
	NotificationRetainDays int     `json:"notification_retain_days"` // 已读通知保留天数
}

// ConsulConfig Consul配置
type ConsulConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// JaegerConfig Jaeger配置
type JaegerConfig struct {
	Endpoint string  `json:"endpoint"`
	Sampler  float64 `json:"sampler"` // 采样率 0.0-1.0
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
	Output string `json:"output"` // stdout, file
	Path   string `json:"path"`   // 日志文件路径
}

var (
	globalConfig *Config
	configOnce   sync.Once
)

// LoadConfig 加载配置
func LoadConfig(configPath string) (*Config, error) {
	var err error
	configOnce.Do(func() {
		globalConfig = &Config{}
		// 如果配置文件不存在，使用默认配置
		if _, err = os.Stat(configPath); os.IsNotExist(err) {
			logrus.Warnf("Config file not found: %s, using default config", configPath)
			globalConfig = defaultConfig()
			err = nil
			return
		}

		data, readErr := os.ReadFile(configPath)
		if readErr != nil {
			err = fmt.Errorf("failed to read config file: %w", readErr)
			return
		}

		if unmarshalErr := json.Unmarshal(data, globalConfig); unmarshalErr != nil {
			err = fmt.Errorf("failed to parse config file: %w", unmarshalErr)
			return
		}
	})

	if err != nil {
		return nil, err
	}

	return globalConfig, nil
}

// GetConfig 获取全局配置
func GetConfig() *Config {
	if globalConfig == nil {
		return defaultConfig()
	}
	return globalConfig
}

// defaultConfig 默认配置（开发环境）
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Name:     "rental-service",
			Host:     "0.0.0.0",
			HTTPPort: 8080,
		},
		Database: DatabaseConfig{
			Driver:   "mysql",
			Host:     "localhost",
			Port:     3306,
			User:     "root",
			Password: "root",
			Database: "carlinkrent",
			MaxIdle:  10,
			MaxOpen:  100,
		},
		Auth: AuthConfig{
			Enabled:   false,
			JWTSecret: "",
			Issuer:    "carlinkrent",
			Audience:  "carlinkrent",
			PublicPaths: []string{
				"/healthz",
				"/api/v1/vehicles/search",
			},
		},
		Booking: BookingConfig{
			VATRate:                0.19,
			ModifyWindowHours:      24,
			CancelLeadHours:        48,
			ReminderLeadHours:      48,
			NotificationRetainDays: 30,
		},
		Consul: ConsulConfig{
			Host: "localhost",
			Port: 8500,
		},
		Jaeger: JaegerConfig{
			Endpoint: "http://localhost:14268/api/traces",
			Sampler:  1.0,
		},
		Log: LogConfig{
			Level:  "debug",
			Format: "text",
			Output: "stdout",
			Path:   "logs/app.log",
		},
	}
}
