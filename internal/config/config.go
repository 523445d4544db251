package config

import (
	"os"
	"strconv"
	"time"

	commoncfg "checkin-desk/common/config"
)

// Config checkin-desk（HTTP API）配置
type Config struct {
	HTTP struct {
		Addr string
	}
	DBEnabled bool
	Database  commoncfg.DatabaseConfig
	Redis     struct {
		Enabled bool
		commoncfg.RedisConfig
		Stream       string
		StreamMaxLen int64
		SummaryTTL   time.Duration
	}
	MQTT struct {
		Enabled bool
		commoncfg.MQTTConfig
		TopicPrefix string
	}
	SMTP struct {
		Enabled bool
		commoncfg.SMTPConfig
	}
	Webhook struct {
		Timeout time.Duration
	}
	Tx struct {
		MaxAttempts int
		Backoff     time.Duration
	}
	Log struct {
		Level  string
		Format string
	}
	SeedFile string
}

func Load() *Config {
	cfg := &Config{}
	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")

	// without a database the desk runs on the in-memory store (seeded from SEED_FILE)
	cfg.DBEnabled = getEnv("DB_ENABLED", "true") == "true"
	cfg.Database = commoncfg.DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Password: "postgres",
		Database: "checkin",
		SSLMode:  "disable",
		MaxConns: 20,
		MaxIdle:  5,
	}
	cfg.Database.LoadFromEnv("DB")

	cfg.Redis.Enabled = getEnv("REDIS_ENABLED", "true") == "true"
	cfg.Redis.RedisConfig = commoncfg.RedisConfig{Addr: "localhost:6379"}
	cfg.Redis.LoadFromEnv("REDIS")
	cfg.Redis.Stream = getEnv("REDIS_STREAM", "checkin:events")
	cfg.Redis.StreamMaxLen = int64(parseInt(getEnv("REDIS_STREAM_MAXLEN", "10000"), 10000))
	cfg.Redis.SummaryTTL = time.Duration(parseInt(getEnv("REDIS_SUMMARY_TTL_SECONDS", "300"), 300)) * time.Second

	// MQTT 配置（推送到签到台大屏，默认禁用）
	cfg.MQTT.Enabled = getEnv("MQTT_ENABLED", "false") == "true"
	cfg.MQTT.MQTTConfig = commoncfg.MQTTConfig{Broker: "tcp://localhost:1883", ClientID: "checkin-desk"}
	cfg.MQTT.LoadFromEnv("MQTT")
	cfg.MQTT.QoS = byte(parseInt(getEnv("MQTT_QOS", "1"), 1))
	cfg.MQTT.TopicPrefix = getEnv("MQTT_TOPIC_PREFIX", "checkin")

	cfg.SMTP.Enabled = getEnv("SMTP_ENABLED", "false") == "true"
	cfg.SMTP.SMTPConfig = commoncfg.SMTPConfig{Host: "localhost", Port: 25, From: "checkin@localhost"}
	cfg.SMTP.LoadFromEnv("SMTP")

	cfg.Webhook.Timeout = time.Duration(parseInt(getEnv("WEBHOOK_TIMEOUT_SECONDS", "10"), 10)) * time.Second

	cfg.Tx.MaxAttempts = parseInt(getEnv("TX_MAX_ATTEMPTS", "5"), 5)
	cfg.Tx.Backoff = time.Duration(parseInt(getEnv("TX_BACKOFF_MS", "20"), 20)) * time.Millisecond

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	cfg.SeedFile = getEnv("SEED_FILE", "")

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
