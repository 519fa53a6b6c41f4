package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/retailcore/till-service/internal/model"
	"github.com/retailcore/till-service/pkg/logger"
	"github.com/retailcore/till-service/pkg/prom"
	"github.com/valyala/fasthttp"
)

var (
	ErrNoAvailableEndpoints = errors.New("no available webhook endpoints")
)

// DeliveryReceipt is the receiver's acknowledgement of one alert.
type DeliveryReceipt struct {
	EventID    string    `json:"event_id"`
	Accepted   bool      `json:"accepted"`
	Endpoint   string    `json:"endpoint"`
	ReceivedAt time.Time `json:"received_at"`
}

type endpointMetrics struct {
	totalRequests    atomic.Int64
	successfulReqs   atomic.Int64
	consecutiveFails atomic.Int32
}

func (m *endpointMetrics) successRate() float64 {
	total := m.totalRequests.Load()
	if total == 0 {
		return 1.0
	}
	return float64(m.successfulReqs.Load()) / float64(total)
}

// Endpoint is one alert receiver with its own circuit breaker. A breaker
// opens after the configured run of consecutive failures and half-opens
// once the cooldown elapses.
type Endpoint struct {
	name             string
	url              string
	weight           int
	client           *fasthttp.Client
	metrics          *endpointMetrics
	circuitOpenUntil atomic.Int64
}

func (e *Endpoint) available() bool {
	openUntil := e.circuitOpenUntil.Load()
	return openUntil == 0 || time.Now().Unix() > openUntil
}

// score ranks endpoints for selection; higher is better. Weight dominates
// so the primary receiver wins while it is healthy.
func (e *Endpoint) score() float64 {
	if !e.available() {
		return 0
	}
	penalty := 1.0 - float64(e.metrics.consecutiveFails.Load())*0.2
	if penalty < 0.1 {
		penalty = 0.1
	}
	return (float64(e.weight) + e.metrics.successRate()*10) * penalty
}

type EndpointConfig struct {
	Name   string
	URL    string
	Weight int
}

type Config struct {
	Endpoints               []EndpointConfig
	Timeout                 time.Duration
	MaxRetries              int
	RetryDelay              time.Duration
	MaxConns                int
	CircuitBreakerThreshold int
	CircuitBreakerTimeout   time.Duration
}

func DefaultConfig(endpoints []EndpointConfig) *Config {
	return &Config{
		Endpoints:               endpoints,
		Timeout:                 5 * time.Second,
		MaxRetries:              2,
		RetryDelay:              200 * time.Millisecond,
		MaxConns:                64,
		CircuitBreakerThreshold: 5,
		CircuitBreakerTimeout:   30 * time.Second,
	}
}

// Client fans alerts out to whichever configured receiver is currently
// healthiest, failing over on error.
type Client struct {
	config    *Config
	endpoints []*Endpoint
	mu        sync.RWMutex
}

func NewClient(config *Config) (*Client, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}
	if len(config.Endpoints) == 0 {
		return nil, errors.New("at least one webhook endpoint is required")
	}

	c := &Client{
		config:    config,
		endpoints: make([]*Endpoint, 0, len(config.Endpoints)),
	}

	for _, ec := range config.Endpoints {
		c.endpoints = append(c.endpoints, &Endpoint{
			name:   ec.Name,
			url:    ec.URL,
			weight: ec.Weight,
			client: &fasthttp.Client{
				MaxConnsPerHost:     config.MaxConns,
				ReadTimeout:         config.Timeout,
				WriteTimeout:        config.Timeout,
				MaxIdleConnDuration: 60 * time.Second,
			},
			metrics: &endpointMetrics{},
		})
		logger.Info("webhook endpoint registered", "name", ec.Name, "url", ec.URL, "weight", ec.Weight)
	}

	return c, nil
}

func (c *Client) selectEndpoint() (*Endpoint, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var best *Endpoint
	var bestScore float64
	for _, e := range c.endpoints {
		if s := e.score(); s > bestScore {
			bestScore = s
			best = e
		}
	}
	if best == nil {
		return nil, ErrNoAvailableEndpoints
	}
	return best, nil
}

// Deliver posts one alert, retrying across receivers until one accepts it.
func (c *Client) Deliver(ctx context.Context, alert model.VarianceAlert) (*DeliveryReceipt, error) {
	body, err := json.Marshal(alert)
	if err != nil {
		return nil, fmt.Errorf("marshal alert: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.config.RetryDelay):
			}
		}

		endpoint, err := c.selectEndpoint()
		if err != nil {
			lastErr = err
			continue
		}

		start := time.Now()
		respBody, err := c.post(endpoint, body)
		latency := time.Since(start)

		if err != nil {
			c.recordFailure(endpoint)
			logger.Warn("alert delivery failed", "event_id", alert.EventID, "endpoint", endpoint.name, "attempt", attempt+1, "error", err)
			lastErr = err
			continue
		}

		endpoint.metrics.totalRequests.Add(1)
		endpoint.metrics.successfulReqs.Add(1)
		endpoint.metrics.consecutiveFails.Store(0)
		prom.AddAlertDeliveryDuration(latency.Seconds(), endpoint.name)

		receipt := &DeliveryReceipt{EventID: alert.EventID, Accepted: true, Endpoint: endpoint.name, ReceivedAt: time.Now().UTC()}
		if len(respBody) > 0 {
			// receivers may echo richer receipts; a decode failure is not
			// a delivery failure
			_ = json.Unmarshal(respBody, receipt)
			receipt.Endpoint = endpoint.name
		}

		logger.Info("alert delivered", "event_id", alert.EventID, "endpoint", endpoint.name, "latency_ms", latency.Milliseconds())
		return receipt, nil
	}

	return nil, fmt.Errorf("alert delivery failed after %d attempts: %w", c.config.MaxRetries+1, lastErr)
}

func (c *Client) post(endpoint *Endpoint, body []byte) ([]byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(endpoint.url)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetBody(body)

	if err := endpoint.client.DoTimeout(req, resp, c.config.Timeout); err != nil {
		return nil, err
	}

	status := resp.StatusCode()
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("endpoint %s returned status %d", endpoint.name, status)
	}

	out := make([]byte, len(resp.Body()))
	copy(out, resp.Body())
	return out, nil
}

func (c *Client) recordFailure(endpoint *Endpoint) {
	endpoint.metrics.totalRequests.Add(1)
	fails := endpoint.metrics.consecutiveFails.Add(1)
	if int(fails) >= c.config.CircuitBreakerThreshold {
		endpoint.circuitOpenUntil.Store(time.Now().Add(c.config.CircuitBreakerTimeout).Unix())
		logger.Warn("webhook circuit opened", "endpoint", endpoint.name, "consecutive_fails", fails)
	}
}
