package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/retailcore/till-service/internal/alerts"
	"github.com/retailcore/till-service/internal/config"
	"github.com/retailcore/till-service/internal/handlers"
	"github.com/retailcore/till-service/internal/queue"
	"github.com/retailcore/till-service/internal/repository"
	"github.com/retailcore/till-service/internal/services"
	"github.com/retailcore/till-service/pkg/cache"
	xhttp "github.com/retailcore/till-service/pkg/http"
	"github.com/retailcore/till-service/pkg/logger"
	"github.com/retailcore/till-service/pkg/pg"
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

	s := xhttp.NewServer(xhttp.DefaultServerOption)
	s.Server.ReadBufferSize = 1024 * 16
	s.Server.WriteBufferSize = 1024 * 16
	s.Use(xhttp.CompressMiddleware(6))
	s.Use(xhttp.TimeoutMiddleware(time.Second * 5))
	s.Use(xhttp.RequestLoggerMiddleware)
	s.Use(xhttp.RecoverMiddleware)
	s.Router = xhttp.CreateDefaultRouter()

	readConf := pg.Config{
		User:     config.Get().PostgresReadUser,
		Host:     config.Get().PostgresReadHost,
		Port:     config.Get().PostgresReadPort,
		Password: config.Get().PostgresReadPassword,
		Database: config.Get().PostgresReadDatabase,
	}
	writeConf := pg.Config{
		User:     config.Get().PostgresWriteUser,
		Host:     config.Get().PostgresWriteHost,
		Port:     config.Get().PostgresWritePort,
		Password: config.Get().PostgresWritePassword,
		Database: config.Get().PostgresWriteDatabase,
	}

	pgDebug := false
	if config.Get().AppEnv == "dev" {
		pgDebug = true
	}
	db, err := pg.CreateReadWrite(readConf, writeConf, pgDebug)
	if err != nil {
		logger.Error("failed connecting to pg", "error", err)
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
	if config.Get().AppDebugMetricsAddr != "" {
		go func() {
			prom.ListenAndServer(config.Get().AppDebugMetricsAddr, config.Get().AppDebugMetricsURI)
		}()
	}

	alertQueue, err := queue.New(redisAdap, queue.Config{
		Name:              config.Get().AlertQueueName,
		ConsumerGroup:     config.Get().AlertQueueConsumerGroup,
		ConsumerName:      config.Get().AlertQueueConsumerName,
		MaxRetries:        config.Get().AlertQueueMaxRetries,
		VisibilityTimeout: config.Get().AlertQueueVisibilityTimeout,
		PollInterval:      config.Get().AlertQueuePollInterval,
		BatchSize:         config.Get().AlertQueueBatchSize,
		MaxLen:            config.Get().AlertQueueMaxLen,
		EnableDLQ:         config.Get().AlertQueueEnableDLQ,
	})
	if err != nil {
		logger.Error("failed creating alert queue", "error", err)
		return
	}

	sessionRepo := repository.NewSessionRepository(db)
	dropRepo := repository.NewCashDropRepository(db)
	saleRepo := repository.NewSaleRepository(db)
	varianceRepo := repository.NewVarianceRepository(db)
	actionRepo := repository.NewVarianceActionRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)

	// services
	settingsService := services.NewSettingsService(settingsRepo, cache.NewRedisCache(redisAdap), config.Get().SettingsCacheTTL)
	varianceService := services.NewVarianceService(varianceRepo, actionRepo, settingsService, alerts.NewQueuePublisher(alertQueue))
	tillService := services.NewTillService(sessionRepo, dropRepo, saleRepo, settingsService, varianceService)
	healthService := services.NewHealthService(db, redisAdap)

	// v1 handlers
	tillHandler := handlers.NewTillHandler(tillService)
	varianceHandler := handlers.NewVarianceHandler(varianceService)
	settingsHandler := handlers.NewSettingsHandler(settingsService)
	healthHandler := handlers.NewHealthHandler(healthService)

	g := s.Router.Group("/api/v1")
	handlers.RegisterTillRoutes(g, tillHandler)
	handlers.RegisterVarianceRoutes(g, varianceHandler)
	handlers.RegisterSettingsRoutes(g, settingsHandler)
	handlers.RegisterHealthRoutes(g, healthHandler)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		var err = s.ListenAndServe(config.Get().HttpListenAddr)
		if err != nil {
			logger.Error("error in running http-server", "error", err)
		}
	}()

	select {
	case <-c:
		s.Shutdown()
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
