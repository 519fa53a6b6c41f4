package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/retailcore/till-service/internal/alerts"
	"github.com/retailcore/till-service/internal/config"
	"github.com/retailcore/till-service/internal/notify"
	"github.com/retailcore/till-service/pkg/logger"
	"github.com/retailcore/till-service/pkg/prom"
	"github.com/retailcore/till-service/pkg/redis"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {

	err := config.Load(argContainsEnvPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}

	redisAdap, err := redis.NewRedisAdapter("default", config.Get().RedisUniversalKeyPrefix, &redis.Options{
		Addrs:      []string{config.Get().RedisAddr},
		ClientName: "default",
		DB:         config.Get().RedisDatabase,
		Username:   config.Get().RedisUsername,
		Password:   config.Get().RedisPassword,
	})
	if err != nil {
		logger.Error("failed connecting to redis", "error", err)
		return
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	cfg := notify.DefaultConfig([]notify.EndpointConfig{
		{Name: "primary", URL: config.Get().WebhookPrimaryUrl, Weight: 100},
		{Name: "secondary", URL: config.Get().WebhookSecondaryUrl, Weight: 80},
		{Name: "backup", URL: config.Get().WebhookBackupUrl, Weight: 60},
	})
	client, err := notify.NewClient(cfg)
	if err != nil {
		logger.Error("failed to create webhook client", "error", err)
		return
	}

	idempotency := alerts.NewIdempotencyService(redisAdap, alerts.DefaultIdempotencyConfig())

	service := alerts.NewAlertService(redisAdap)
	service.RegisterProcessor(alerts.NewAlertProcessor(client, idempotency))

	var hostname string
	hostname, err = os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	err = prom.Create(hostname, config.Get().AppEnv, config.Get().PromNamespace)
	if err != nil {
		logger.Error("failed to create prometheus metrics", "error", err)
		return
	}

	go func() {
		prom.ListenAndServer(":9100", "/metrics")
	}()

	go func() {
		if err := service.Start(); err != nil {
			logger.Error("failed to start alert service", "error", err)
		}
	}()

	select {
	case <-c:
		service.Stop()
	}
}

func argContainsEnvPath() string {
	for _, v := range os.Args {
		if strings.Contains(v, "--env=") {
			s := strings.Split(v, "=")
			if _, err := os.Open(s[1]); err != nil {
				logger.Error("failed to open the passed env file, got error" + err.Error())
				return ""
			}
			return s[1]
		}
	}
	return ""
}
