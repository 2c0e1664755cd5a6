package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config dispatch-engine（HTTP API）配置
type Config struct {
	HTTP struct {
		Addr string
	}
	DBEnabled bool
	Database  DatabaseConfig
	Redis     struct {
		Addr     string
		Password string
		DB       int
	}
	Log struct {
		Level  string
		Format string
	}
	Sweep   SweepConfig
	Webhook WebhookConfig
	MQTT    MQTTConfig
	CAD     CADSettings
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// SweepConfig 不活跃清理配置
// Enabled=false 时保留原始的惰性触发语义（仅在调度面板读取时清理）
type SweepConfig struct {
	Enabled         bool
	IntervalSeconds int
}

// WebhookConfig 外部通知协作方配置（尽力而为，失败不影响核心操作）
type WebhookConfig struct {
	Enabled bool
	URL     string
}

// MQTTConfig MQTT 报警推送配置（用于调度台之外的声光告警硬件，默认禁用）
type MQTTConfig struct {
	Enabled  bool
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string
	QoS      byte
}

// CADSettings CAD 级别的数字旋钮与功能开关
// 按规格要求作为显式参数传入每个操作，而不是进程级单例
type CADSettings struct {
	MaxAssignmentsToCalls           int // 0 = 不限制
	MaxAssignmentsToIncidents       int // 0 = 不限制
	UnitInactivityTimeout           int // 分钟，0 = 禁用
	IncidentInactivityTimeout       int // 分钟，0 = 禁用
	ActiveWarrantsInactivityTimeout int // 分钟，0 = 禁用
	AllowUserDefinedCallsigns       bool
}

func Load() *Config {
	cfg := &Config{}
	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")

	cfg.DBEnabled = getEnv("DB_ENABLED", "true") == "true"
	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = parseInt(getEnv("DB_PORT", "5432"), 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "snailycad")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = parseInt(getEnv("DB_MAX_CONNS", "10"), 10)
	cfg.Database.MaxIdle = parseInt(getEnv("DB_MAX_IDLE", "5"), 5)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = 0

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	cfg.Sweep.Enabled = getEnv("SWEEP_ENABLED", "false") == "true"
	cfg.Sweep.IntervalSeconds = parseInt(getEnv("SWEEP_INTERVAL_SECONDS", "60"), 60)

	cfg.Webhook.Enabled = getEnv("WEBHOOK_ENABLED", "false") == "true"
	cfg.Webhook.URL = getEnv("WEBHOOK_URL", "")

	cfg.MQTT.Enabled = getEnv("MQTT_ENABLED", "false") == "true"
	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "dispatch-engine")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.Topic = getEnv("MQTT_TOPIC", "cad/panic")
	cfg.MQTT.QoS = byte(parseInt(getEnv("MQTT_QOS", "1"), 1))

	cfg.CAD.MaxAssignmentsToCalls = parseInt(getEnv("CAD_MAX_ASSIGNMENTS_TO_CALLS", "0"), 0)
	cfg.CAD.MaxAssignmentsToIncidents = parseInt(getEnv("CAD_MAX_ASSIGNMENTS_TO_INCIDENTS", "0"), 0)
	cfg.CAD.UnitInactivityTimeout = parseInt(getEnv("CAD_UNIT_INACTIVITY_TIMEOUT", "0"), 0)
	cfg.CAD.IncidentInactivityTimeout = parseInt(getEnv("CAD_INCIDENT_INACTIVITY_TIMEOUT", "0"), 0)
	cfg.CAD.ActiveWarrantsInactivityTimeout = parseInt(getEnv("CAD_WARRANT_INACTIVITY_TIMEOUT", "0"), 0)
	cfg.CAD.AllowUserDefinedCallsigns = getEnv("CAD_ALLOW_USER_DEFINED_CALLSIGNS", "false") == "true"

	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}
