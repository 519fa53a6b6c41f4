package config

import (
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/retailcore/till-service/pkg/logger"
)

const ConfigTagName = "env"
const ConfigDefaultTagName = "default"

var config *Config

// Config holds every environment-driven value the service reads. No other
// code touches env vars directly.
type Config struct {
	AppEnv              string `env:"APP_ENV" default:"dev"`
	AppName             string `env:"APP_NAME" default:"till_service"`
	AppDebug            bool   `env:"APP_DEBUG" default:"1"`
	AppDebugMetricsAddr string `env:"APP_DEBUG_METRIC_ADDR"`
	AppDebugMetricsURI  string `env:"APP_DEBUG_METRIC_URI"`

	HttpListenAddr         string `env:"HTTP_LISTEN_ADDR" validation:"mustExists"`
	HttpServerReadTimeout  int    `env:"HTTP_SERVER_READ_TIMEOUT"`
	HttpServerWriteTimeout int    `env:"HTTP_SERVER_WRITE_TIMEOUT"`

	PostgresReadHost     string `env:"POSTGRES_READ_HOST"`
	PostgresReadPort     string `env:"POSTGRES_READ_PORT"`
	PostgresReadUser     string `env:"POSTGRES_READ_USER"`
	PostgresReadPassword string `env:"POSTGRES_READ_PASSWORD"`
	PostgresReadDatabase string `env:"POSTGRES_READ_DBNAME"`

	PostgresWriteHost     string `env:"POSTGRES_WRITE_HOST"`
	PostgresWritePort     string `env:"POSTGRES_WRITE_PORT"`
	PostgresWriteUser     string `env:"POSTGRES_WRITE_USER"`
	PostgresWritePassword string `env:"POSTGRES_WRITE_PASSWORD"`
	PostgresWriteDatabase string `env:"POSTGRES_WRITE_DBNAME"`

	RedisAddr               string `env:"REDIS_ADDR"`
	RedisUsername           string `env:"REDIS_USER"`
	RedisPassword           string `env:"REDIS_PASS"`
	RedisDatabase           int    `env:"REDIS_DATABASE"`
	RedisUniversalKeyPrefix string `env:"REDIS_UNIVERSAL_KEY_PREFIX"`

	PromNamespace string `env:"PROM_NAMESPACE"`

	LogLevel []string `env:"LOG_LEVEL"`

	SettingsCacheTTL time.Duration `env:"SETTINGS_CACHE_TTL" default:"30s"`

	AlertQueueName              string        `env:"ALERT_QUEUE_NAME" default:"variance-alerts"`
	AlertQueueConsumerGroup     string        `env:"ALERT_QUEUE_CONSUMER_GROUP" default:"alerts"`
	AlertQueueConsumerName      string        `env:"ALERT_QUEUE_CONSUMER_NAME"`
	AlertQueueMaxRetries        int           `env:"ALERT_QUEUE_MAX_RETRIES"`
	AlertQueueVisibilityTimeout time.Duration `env:"ALERT_QUEUE_VISIBILITY_TIMEOUT"`
	AlertQueuePollInterval      time.Duration `env:"ALERT_QUEUE_POLL_INTERVAL"`
	AlertQueueBatchSize         int64         `env:"ALERT_QUEUE_BATCH_SIZE"`
	AlertQueueMaxLen            int64         `env:"ALERT_QUEUE_MAX_LEN"`
	AlertQueueEnableDLQ         bool          `env:"ALERT_QUEUE_ENABLE_DLQ"`

	WebhookPrimaryUrl   string `env:"WEBHOOK_PRIMARY_URL"`
	WebhookSecondaryUrl string `env:"WEBHOOK_SECONDARY_URL"`
	WebhookBackupUrl    string `env:"WEBHOOK_BACKUP_URL"`
}

func Load(path string) error {
	logger.Info("loading configs..", "path", path)
	c := &Config{}
	var err error
	if path != "" {
		logger.Info("trying to publish env from file", "path", path)
		err = godotenv.Load(path)
		if err != nil {
			return errors.New("failed to load configuration file " + path + " error: " + err.Error())
		}
	}

	_, err = env.UnmarshalFromEnviron(c)
	if err != nil {
		return errors.New("failed to map env variables to Configuration object " + " error: " + err.Error())
	}

	config = c
	return nil
}

func Get() *Config {
	if config == nil {
		logger.Panic("Config is not initialized")
	}
	return config
}
