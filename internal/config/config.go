package config

import (
	"os"
	"strconv"
)

// DatabaseConfig PostgreSQL 连接配置
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

// MQTTConfig MQTT 配置（车载 agent 经 broker 上报的旁路通道，默认禁用）
type MQTTConfig struct {
	Enabled  bool
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string
	QoS      byte
}

// Config roadsense-data（HTTP API + WebSocket 推送）配置
type Config struct {
	HTTP struct {
		Addr string
	}
	Database DatabaseConfig
	Redis    struct {
		Addr     string
		Password string
		DB       int
	}
	MQTT MQTTConfig
	Log  struct {
		Level  string
		Format string
	}
	// LatestTTLSeconds 每个用户最新一条读数在 Redis 中的保留时间
	LatestTTLSeconds int
}

func Load() *Config {
	cfg := &Config{}
	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8000")

	cfg.Database.Host = getEnv("POSTGRES_HOST", "localhost")
	cfg.Database.Port = parseInt(getEnv("POSTGRES_PORT", "5432"), 5432)
	cfg.Database.User = getEnv("POSTGRES_USER", "postgres")
	cfg.Database.Password = getEnv("POSTGRES_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("POSTGRES_DB", "roadsense")
	cfg.Database.SSLMode = getEnv("POSTGRES_SSLMODE", "disable")
	cfg.Database.MaxConns = parseInt(getEnv("POSTGRES_MAX_CONNS", "10"), 10)
	cfg.Database.MaxIdle = parseInt(getEnv("POSTGRES_MAX_IDLE", "5"), 5)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = parseInt(getEnv("REDIS_DB", "0"), 0)

	cfg.MQTT.Enabled = getEnv("MQTT_ENABLED", "false") == "true"
	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "roadsense-data")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.Topic = getEnv("MQTT_TOPIC", "agents/processed-data")
	cfg.MQTT.QoS = byte(parseInt(getEnv("MQTT_QOS", "1"), 1))

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	cfg.LatestTTLSeconds = parseInt(getEnv("LATEST_TTL_SECONDS", "86400"), 86400)

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
