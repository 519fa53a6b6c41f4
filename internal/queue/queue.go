package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/retailcore/till-service/pkg/logger"
	"github.com/retailcore/till-service/pkg/redis"
)

// Message is one stream entry handed to a consumer. A handler that
// returns nil gets the entry acked; on error the entry stays pending and
// is reclaimed after the visibility timeout.
type Message struct {
	ID        string
	Data      []byte
	Metadata  map[string]string
	Timestamp time.Time
	Attempts  int
	acked     bool
	queue     *Queue
}

func (m *Message) Ack() error {
	if m.acked {
		return fmt.Errorf("message %s already acknowledged", m.ID)
	}
	m.acked = true
	return m.queue.ack(m.ID)
}

type Handler func(ctx context.Context, msg *Message) error

type Config struct {
	Name              string
	ConsumerGroup     string
	ConsumerName      string
	MaxRetries        int
	VisibilityTimeout time.Duration
	PollInterval      time.Duration
	BatchSize         int64
	MaxLen            int64
	EnableDLQ         bool
}

// Queue is a redis-streams work queue with consumer groups, visibility
// based redelivery and an optional dead letter stream.
type Queue struct {
	adapter    redis.RedisAdapter
	config     Config
	handler    Handler
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	mu         sync.RWMutex
	processing map[string]*Message
}

type Stats struct {
	TotalMessages   int64
	PendingMessages int64
	ConsumerCount   int64
}

func New(adapter redis.RedisAdapter, config Config) (*Queue, error) {
	if config.Name == "" {
		return nil, fmt.Errorf("queue name is required")
	}
	if config.ConsumerGroup == "" {
		config.ConsumerGroup = "default-group"
	}
	if config.ConsumerName == "" {
		config.ConsumerName = fmt.Sprintf("consumer-%d", time.Now().UnixNano())
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = 3
	}
	if config.VisibilityTimeout == 0 {
		config.VisibilityTimeout = 30 * time.Second
	}
	if config.PollInterval == 0 {
		config.PollInterval = time.Second
	}
	if config.BatchSize == 0 {
		config.BatchSize = 10
	}

	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		adapter:    adapter,
		config:     config,
		ctx:        ctx,
		cancel:     cancel,
		processing: make(map[string]*Message),
	}

	// BUSYGROUP from a previous run is expected and harmless
	if err := q.adapter.XGroupCreateMkStream(config.Name, config.ConsumerGroup, "0"); err != nil {
		logger.Debug("consumer group init", "queue", config.Name, "error", err)
	}

	return q, nil
}

func (q *Queue) Publish(ctx context.Context, data []byte, metadata map[string]string) (string, error) {
	values := map[string]interface{}{
		"data":      string(data),
		"timestamp": time.Now().Unix(),
		"attempts":  0,
	}
	for k, v := range metadata {
		values["meta_"+k] = v
	}

	id, err := q.adapter.XAdd(q.config.Name, values)
	if err != nil {
		return "", fmt.Errorf("publish to %s: %w", q.config.Name, err)
	}

	if q.config.MaxLen > 0 {
		_ = q.adapter.XTrimApprox(q.config.Name, q.config.MaxLen)
	}

	return id, nil
}

func (q *Queue) PublishJSON(ctx context.Context, data interface{}, metadata map[string]string) (string, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	return q.Publish(ctx, raw, metadata)
}

// Consume starts the poll loop. Each entry is handed to the handler with
// a deadline of the visibility timeout.
func (q *Queue) Consume(handler Handler) error {
	if handler == nil {
		return fmt.Errorf("message handler is required")
	}

	q.handler = handler
	q.wg.Add(1)
	go q.consumeLoop()
	return nil
}

func (q *Queue) consumeLoop() {
	defer q.wg.Done()

	ticker := time.NewTicker(q.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-q.ctx.Done():
			return
		case <-ticker.C:
			q.readNew()
			q.reclaimStuck()
		}
	}
}

func (q *Queue) readNew() {
	messages, err := q.adapter.XReadGroup(
		q.config.ConsumerGroup,
		q.config.ConsumerName,
		q.config.Name,
		">",
		q.config.BatchSize,
	)
	if err != nil {
		if err != redis.NilError {
			logger.Warn("queue read failed", "queue", q.config.Name, "error", err)
		}
		return
	}

	for _, raw := range messages {
		q.dispatch(q.decode(raw))
	}
}

// reclaimStuck takes over entries another consumer read but never acked
// within the visibility timeout.
func (q *Queue) reclaimStuck() {
	pending, err := q.adapter.XPending(q.config.Name, q.config.ConsumerGroup)
	if err != nil || pending == nil || pending.Count == 0 {
		return
	}

	pendingExt, err := q.adapter.XPendingExt(q.config.Name, q.config.ConsumerGroup, "-", "+", 100)
	if err != nil || len(pendingExt) == 0 {
		return
	}

	var ids []string
	for _, p := range pendingExt {
		if p.Idle >= q.config.VisibilityTimeout {
			ids = append(ids, p.ID)
		}
	}
	if len(ids) == 0 {
		return
	}

	messages, err := q.adapter.XClaim(
		q.config.Name,
		q.config.ConsumerGroup,
		q.config.ConsumerName,
		q.config.VisibilityTimeout,
		ids...,
	)
	if err != nil {
		logger.Warn("queue claim failed", "queue", q.config.Name, "error", err)
		return
	}

	for _, raw := range messages {
		msg := q.decode(raw)
		msg.Attempts++
		q.dispatch(msg)
	}
}

func (q *Queue) dispatch(msg *Message) {
	q.mu.Lock()
	q.processing[msg.ID] = msg
	q.mu.Unlock()

	defer func() {
		q.mu.Lock()
		delete(q.processing, msg.ID)
		q.mu.Unlock()
	}()

	if msg.Attempts >= q.config.MaxRetries {
		q.deadLetter(msg)
		_ = q.ack(msg.ID)
		return
	}

	ctx, cancel := context.WithTimeout(q.ctx, q.config.VisibilityTimeout)
	defer cancel()

	if err := q.handler(ctx, msg); err != nil {
		// no ack: the entry stays pending and gets reclaimed later
		logger.Warn("queue handler failed", "queue", q.config.Name, "message_id", msg.ID, "attempts", msg.Attempts, "error", err)
		return
	}
	_ = q.ack(msg.ID)
}

func (q *Queue) ack(messageID string) error {
	return q.adapter.XAck(q.config.Name, q.config.ConsumerGroup, messageID)
}

func (q *Queue) deadLetter(msg *Message) {
	if !q.config.EnableDLQ {
		return
	}

	values := map[string]interface{}{
		"data":           string(msg.Data),
		"original_id":    msg.ID,
		"attempts":       msg.Attempts,
		"failed_at":      time.Now().Unix(),
		"original_queue": q.config.Name,
	}
	for k, v := range msg.Metadata {
		values["meta_"+k] = v
	}

	if _, err := q.adapter.XAdd(q.config.Name+":dlq", values); err != nil {
		logger.Error("dead letter write failed", "queue", q.config.Name, "message_id", msg.ID, "error", err)
		return
	}
	logger.Warn("message moved to dead letter queue", "queue", q.config.Name, "message_id", msg.ID, "attempts", msg.Attempts)
}

func (q *Queue) decode(raw redis.StreamMessage) *Message {
	msg := &Message{
		ID:       raw.ID,
		Metadata: make(map[string]string),
		queue:    q,
	}

	for k, v := range raw.Values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		switch k {
		case "data":
			msg.Data = []byte(s)
		case "timestamp":
			if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
				msg.Timestamp = time.Unix(unix, 0).UTC()
			}
		case "attempts":
			if n, err := strconv.Atoi(s); err == nil {
				msg.Attempts = n
			}
		default:
			if len(k) > 5 && k[:5] == "meta_" {
				msg.Metadata[k[5:]] = s
			}
		}
	}

	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	return msg
}

func (q *Queue) Stop(timeout time.Duration) error {
	q.cancel()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("timeout waiting for queue to stop")
	}
}

func (q *Queue) GetStats() (*Stats, error) {
	total, err := q.adapter.XLen(q.config.Name)
	if err != nil {
		return nil, err
	}

	stats := &Stats{TotalMessages: total}
	if pending, err := q.adapter.XPending(q.config.Name, q.config.ConsumerGroup); err == nil && pending != nil {
		stats.PendingMessages = pending.Count
		stats.ConsumerCount = int64(len(pending.Consumers))
	}
	return stats, nil
}
