package alerts

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/retailcore/till-service/internal/config"
	"github.com/retailcore/till-service/internal/queue"
	"github.com/retailcore/till-service/pkg/logger"
	"github.com/retailcore/till-service/pkg/redis"
	"github.com/retailcore/till-service/pkg/worker"
)

const DeliveryTimeout = 10 * time.Second
const HealthInterval = 30 * time.Second
const ShutdownTimeout = time.Minute

const consumerInstances = 4
const workerCount = 32
const workerBuffer = 4096

// Processor handles one queued message.
type Processor interface {
	Process(ctx context.Context, msg *queue.Message) error
	GetType() string
}

// AlertService consumes the variance-alert stream and fans messages out
// to a worker pool for delivery.
type AlertService struct {
	adapter   redis.RedisAdapter
	queues    []*queue.Queue
	processor Processor
	metrics   *ServiceMetrics
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	worker    *worker.WorkerManager
}

func NewAlertService(adapter redis.RedisAdapter) *AlertService {
	ctx, cancel := context.WithCancel(context.Background())
	return &AlertService{
		adapter: adapter,
		queues:  make([]*queue.Queue, 0, consumerInstances),
		metrics: NewServiceMetrics(),
		ctx:     ctx,
		cancel:  cancel,
		worker:  worker.NewWorkerManager(workerBuffer, workerCount, nil),
	}
}

func (s *AlertService) RegisterProcessor(p Processor) {
	s.processor = p
	logger.Info("alert processor registered", "type", p.GetType())
}

func (s *AlertService) Start() error {
	if s.processor == nil {
		return fmt.Errorf("no processor registered")
	}

	s.worker.SetWorker(s.workerHandler)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.worker.Start(); err != nil {
			logger.Error("worker manager stopped", "error", err)
		}
	}()

	cfg := config.Get()
	for i := 0; i < consumerInstances; i++ {
		q, err := queue.New(s.adapter, queue.Config{
			Name:              cfg.AlertQueueName,
			ConsumerGroup:     cfg.AlertQueueConsumerGroup,
			ConsumerName:      fmt.Sprintf("%s-instance-%d", cfg.AlertQueueConsumerName, i),
			MaxRetries:        cfg.AlertQueueMaxRetries,
			VisibilityTimeout: cfg.AlertQueueVisibilityTimeout,
			PollInterval:      cfg.AlertQueuePollInterval,
			BatchSize:         cfg.AlertQueueBatchSize,
			MaxLen:            cfg.AlertQueueMaxLen,
			EnableDLQ:         cfg.AlertQueueEnableDLQ,
		})
		if err != nil {
			return fmt.Errorf("create consumer %d: %w", i, err)
		}
		if err := q.Consume(s.messageHandler); err != nil {
			return fmt.Errorf("start consumer %d: %w", i, err)
		}
		s.queues = append(s.queues, q)
	}

	s.wg.Add(2)
	go s.metricsReporter()
	go s.healthChecker()

	logger.Info("alert service started", "consumers", len(s.queues), "workers", workerCount)
	return nil
}

type deliveryJob struct {
	msg        *queue.Message
	resultChan chan error
	ctx        context.Context
}

// messageHandler bridges a queue consumer to the worker pool and blocks
// until the worker reports back, so ack semantics stay with the queue.
func (s *AlertService) messageHandler(ctx context.Context, msg *queue.Message) error {
	resultChan := make(chan error, 1)

	msgCtx, cancel := context.WithTimeout(ctx, DeliveryTimeout+time.Second)
	defer cancel()

	s.worker.Enqueue(&deliveryJob{
		msg:        msg,
		resultChan: resultChan,
		ctx:        msgCtx,
	})

	select {
	case err := <-resultChan:
		return err
	case <-msgCtx.Done():
		return fmt.Errorf("timeout waiting for delivery worker: %w", msgCtx.Err())
	}
}

func (s *AlertService) workerHandler(workerIndex int, job interface{}) {
	dj, ok := job.(*deliveryJob)
	if !ok {
		logger.Error("unexpected job type in worker pool", "worker", workerIndex)
		return
	}

	start := time.Now()
	err := s.processor.Process(dj.ctx, dj.msg)
	if err != nil {
		s.metrics.RecordFailure()
	} else {
		s.metrics.RecordSuccess(time.Since(start))
	}
	dj.resultChan <- err
}

func (s *AlertService) metricsReporter() {
	defer s.wg.Done()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.reportMetrics()
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *AlertService) reportMetrics() {
	stats := s.metrics.GetStats()
	logger.Info("alert delivery metrics",
		"total_delivered", stats["total_delivered"],
		"total_failed", stats["total_failed"],
		"rate_per_second", stats["rate_per_second"],
		"avg_duration_ms", stats["avg_duration_ms"],
		"uptime_seconds", stats["uptime_seconds"])

	for i, q := range s.queues {
		if qStats, err := q.GetStats(); err == nil {
			logger.Info("alert queue stats", "consumer", i, "total", qStats.TotalMessages, "pending", qStats.PendingMessages)
		}
	}
}

func (s *AlertService) healthChecker() {
	defer s.wg.Done()

	ticker := time.NewTicker(HealthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.performHealthCheck()
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *AlertService) performHealthCheck() {
	if err := s.adapter.Client().Ping(context.Background()).Err(); err != nil {
		logger.Error("health check failed: redis unreachable", "error", err)
		return
	}

	for i, q := range s.queues {
		stats, err := q.GetStats()
		if err != nil {
			logger.Warn("health check: queue stats unavailable", "consumer", i, "error", err)
			continue
		}
		if stats.PendingMessages > 10000 {
			logger.Warn("health check: alert queue lagging", "consumer", i, "pending", stats.PendingMessages)
		}
	}
}

func (s *AlertService) Stop() {
	logger.Info("alert service shutting down")

	s.cancel()

	stopChan := make(chan bool, len(s.queues))
	for i, q := range s.queues {
		go func(index int, q *queue.Queue) {
			if err := q.Stop(ShutdownTimeout); err != nil {
				logger.Error("error stopping consumer", "consumer", index, "error", err)
			}
			stopChan <- true
		}(i, q)
	}
	for range s.queues {
		select {
		case <-stopChan:
		case <-time.After(ShutdownTimeout + 5*time.Second):
			logger.Warn("timeout waiting for consumers to stop")
		}
	}

	s.worker.Exit()
	s.wg.Wait()
	s.reportMetrics()

	logger.Info("alert service stopped")
}
