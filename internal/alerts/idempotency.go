package alerts

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/retailcore/till-service/pkg/logger"
	"github.com/retailcore/till-service/pkg/redis"
)

var (
	ErrAlreadyDelivered   = errors.New("alert already delivered")
	ErrLockAcquireFailed  = errors.New("failed to acquire delivery lock")
	ErrMaxRetriesExceeded = errors.New("maximum delivery retries exceeded")
)

type IdempotencyConfig struct {
	LockTTL      time.Duration
	DeliveredTTL time.Duration
	MaxRetries   int

	RetryKeyPrefix     string
	LockKeyPrefix      string
	DeliveredKeyPrefix string
}

func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		LockTTL:            30 * time.Second,
		DeliveredTTL:       24 * time.Hour,
		MaxRetries:         3,
		RetryKeyPrefix:     "alert:retry:",
		LockKeyPrefix:      "alert:lock:",
		DeliveredKeyPrefix: "alert:delivered:",
	}
}

// IdempotencyService makes alert delivery exactly-once per event id as
// seen by the receiver: a short lock against concurrent consumers, a
// long-lived delivered marker against redelivery, and a retry counter
// that caps how often a poisoned event is attempted.
type IdempotencyService struct {
	redis  redis.RedisAdapter
	config IdempotencyConfig
}

func NewIdempotencyService(adapter redis.RedisAdapter, config IdempotencyConfig) *IdempotencyService {
	return &IdempotencyService{
		redis:  adapter,
		config: config,
	}
}

type DeliveryContext struct {
	EventID      string
	RetryCount   int
	IsRetry      bool
	lockAcquired bool
}

func (s *IdempotencyService) AcquireLock(ctx context.Context, eventID string) (*DeliveryContext, error) {
	deliveredKey := s.config.DeliveredKeyPrefix + eventID
	exists, err := s.redis.Exist(deliveredKey)
	if err != nil {
		// a failed check is not worth blocking delivery over; the
		// receiver dedupes on event id as well
		logger.Warn("delivered-marker check failed", "event_id", eventID, "error", err)
	} else if exists > 0 {
		return nil, ErrAlreadyDelivered
	}

	retryCount := 0
	if raw, err := s.redis.Get(s.config.RetryKeyPrefix + eventID); err == nil && len(raw) > 0 {
		retryCount, _ = strconv.Atoi(string(raw))
	}
	if retryCount >= s.config.MaxRetries {
		return nil, fmt.Errorf("%w: event_id=%s, retries=%d", ErrMaxRetriesExceeded, eventID, retryCount)
	}

	lockValue := []byte(strconv.FormatInt(time.Now().UnixNano(), 10))
	acquired, err := s.redis.SetNX(s.config.LockKeyPrefix+eventID, lockValue, s.config.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLockAcquireFailed, err)
	}
	if !acquired {
		return nil, ErrLockAcquireFailed
	}

	return &DeliveryContext{
		EventID:      eventID,
		RetryCount:   retryCount,
		IsRetry:      retryCount > 0,
		lockAcquired: true,
	}, nil
}

func (s *IdempotencyService) MarkDelivered(ctx context.Context, dc *DeliveryContext) error {
	if err := s.redis.Set(s.config.DeliveredKeyPrefix+dc.EventID, []byte("1"), s.config.DeliveredTTL); err != nil {
		return fmt.Errorf("mark delivered: %w", err)
	}
	s.cleanup(dc)
	return nil
}

func (s *IdempotencyService) MarkFailed(ctx context.Context, dc *DeliveryContext, reason error) {
	retryValue := []byte(strconv.Itoa(dc.RetryCount + 1))
	if err := s.redis.Set(s.config.RetryKeyPrefix+dc.EventID, retryValue, s.config.DeliveredTTL); err != nil {
		logger.Error("retry counter update failed", "event_id", dc.EventID, "error", err)
	}
	if err := s.redis.Del(s.config.LockKeyPrefix + dc.EventID); err != nil {
		logger.Warn("lock release failed", "event_id", dc.EventID, "error", err)
	}
	dc.lockAcquired = false

	logger.Warn("alert delivery failed, will retry",
		"event_id", dc.EventID,
		"retry_count", dc.RetryCount+1,
		"max_retries", s.config.MaxRetries,
		"reason", reason)
}

func (s *IdempotencyService) ReleaseLock(ctx context.Context, dc *DeliveryContext) {
	if dc == nil || !dc.lockAcquired {
		return
	}
	if err := s.redis.Del(s.config.LockKeyPrefix + dc.EventID); err != nil {
		logger.Warn("lock release failed", "event_id", dc.EventID, "error", err)
		return
	}
	dc.lockAcquired = false
}

func (s *IdempotencyService) cleanup(dc *DeliveryContext) {
	if err := s.redis.Del(s.config.LockKeyPrefix + dc.EventID); err != nil {
		logger.Warn("lock cleanup failed", "event_id", dc.EventID, "error", err)
	}
	if err := s.redis.Del(s.config.RetryKeyPrefix + dc.EventID); err != nil {
		logger.Warn("retry counter cleanup failed", "event_id", dc.EventID, "error", err)
	}
	dc.lockAcquired = false
}
