package main

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// VarianceAlertRequest is the payload the alert service posts when a
// discrepancy case breaches a branch threshold.
type VarianceAlertRequest struct {
	EventID    string    `json:"event_id" binding:"required"`
	VarianceID int64     `json:"variance_id"`
	SessionID  int64     `json:"session_id"`
	BranchID   string    `json:"branch_id"`
	Type       string    `json:"variance_type"`
	Amount     string    `json:"amount"`
	Threshold  string    `json:"threshold"`
	OccurredAt time.Time `json:"occurred_at"`
}

// DeliveryReceipt is echoed back so the sender can log where the alert
// landed.
type DeliveryReceipt struct {
	EventID    string    `json:"event_id"`
	Accepted   bool      `json:"accepted"`
	Endpoint   string    `json:"endpoint"`
	ReceivedAt time.Time `json:"received_at"`
}

// HealthResponse represents health check response
type HealthResponse struct {
	Status     string    `json:"status"`
	ReceiverID string    `json:"receiver_id"`
	Timestamp  time.Time `json:"timestamp"`
	AcceptRate float64   `json:"accept_rate"`
	Received   int64     `json:"received"`
	Duplicates int64     `json:"duplicates"`
}

// MockBackoffice simulates the back-office system that receives variance
// alerts. It dedupes on event id and can be configured to randomly
// reject requests to exercise the sender's retry path.
type MockBackoffice struct {
	mu         sync.Mutex
	acceptRate float64
	minDelay   time.Duration
	maxDelay   time.Duration
	receiverID string
	rng        *rand.Rand
	seen       map[string]time.Time
	received   int64
	duplicates int64
}

func NewMockBackoffice(acceptRate float64, minDelay, maxDelay time.Duration) *MockBackoffice {
	return &MockBackoffice{
		acceptRate: acceptRate,
		minDelay:   minDelay,
		maxDelay:   maxDelay,
		receiverID: "MOCK_BACKOFFICE_" + uuid.New().String()[:8],
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		seen:       make(map[string]time.Time),
	}
}

func (m *MockBackoffice) randomDelay() time.Duration {
	if m.maxDelay <= m.minDelay {
		return m.minDelay
	}
	delta := m.maxDelay - m.minDelay
	return m.minDelay + time.Duration(m.rng.Int63n(int64(delta)))
}

func (m *MockBackoffice) shouldAccept() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rng.Float64() < m.acceptRate
}

// record marks the event as seen and reports whether it was a duplicate.
func (m *MockBackoffice) record(eventID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.seen[eventID]; ok {
		m.duplicates++
		return true
	}
	m.seen[eventID] = time.Now()
	m.received++
	return false
}

type Handler struct {
	backoffice *MockBackoffice
}

func NewHandler(backoffice *MockBackoffice) *Handler {
	return &Handler{backoffice: backoffice}
}

// ReceiveAlert handles variance alert webhooks
func (h *Handler) ReceiveAlert(c *gin.Context) {
	var req VarianceAlertRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	// Simulate network/processing delay
	time.Sleep(h.backoffice.randomDelay())

	if !h.backoffice.shouldAccept() {
		log.Warn().
			Str("event_id", req.EventID).
			Str("branch", req.BranchID).
			Msg("Alert rejected (simulated failure)")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Back office temporarily unavailable",
		})
		return
	}

	duplicate := h.backoffice.record(req.EventID)

	log.Info().
		Str("event_id", req.EventID).
		Int64("variance_id", req.VarianceID).
		Str("branch", req.BranchID).
		Str("type", req.Type).
		Str("amount", req.Amount).
		Bool("duplicate", duplicate).
		Msg("Variance alert received")

	c.JSON(http.StatusOK, DeliveryReceipt{
		EventID:    req.EventID,
		Accepted:   true,
		Endpoint:   h.backoffice.receiverID,
		ReceivedAt: time.Now(),
	})
}

// HealthCheck handles health check requests
func (h *Handler) HealthCheck(c *gin.Context) {
	h.backoffice.mu.Lock()
	received := h.backoffice.received
	duplicates := h.backoffice.duplicates
	rate := h.backoffice.acceptRate
	h.backoffice.mu.Unlock()

	c.JSON(http.StatusOK, HealthResponse{
		Status:     "healthy",
		ReceiverID: h.backoffice.receiverID,
		Timestamp:  time.Now(),
		AcceptRate: rate,
		Received:   received,
		Duplicates: duplicates,
	})
}

// UpdateConfig allows changing receiver behaviour at runtime
func (h *Handler) UpdateConfig(c *gin.Context) {
	var config struct {
		AcceptRate *float64 `json:"accept_rate"`
	}

	if err := c.ShouldBindJSON(&config); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	if config.AcceptRate != nil && *config.AcceptRate >= 0 && *config.AcceptRate <= 1.0 {
		h.backoffice.mu.Lock()
		h.backoffice.acceptRate = *config.AcceptRate
		h.backoffice.mu.Unlock()
		log.Info().Float64("rate", *config.AcceptRate).Msg("Updated accept rate")
	}

	c.JSON(http.StatusOK, gin.H{
		"message":     "Configuration updated",
		"accept_rate": h.backoffice.acceptRate,
	})
}

// SetupRouter configures all routes
func SetupRouter(handler *Handler) *gin.Engine {
	router := gin.Default()

	router.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)

		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", duration).
			Msg("Request processed")
	})

	v1 := router.Group("/api/v1")
	{
		v1.POST("/alerts/variance", handler.ReceiveAlert)
		v1.GET("/health", handler.HealthCheck)
		v1.PUT("/config", handler.UpdateConfig)
	}

	router.GET("/health", handler.HealthCheck)

	return router
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	port := getEnv("PORT", "8082")
	acceptRate := getEnvFloat("ACCEPT_RATE", 1)
	minDelay := getEnvDuration("MIN_DELAY", 50*time.Millisecond)
	maxDelay := getEnvDuration("MAX_DELAY", 500*time.Millisecond)

	log.Info().
		Str("port", port).
		Float64("accept_rate", acceptRate).
		Dur("min_delay", minDelay).
		Dur("max_delay", maxDelay).
		Msg("Starting Mock Back Office Receiver")

	backoffice := NewMockBackoffice(acceptRate, minDelay, maxDelay)
	handler := NewHandler(backoffice)
	router := SetupRouter(handler)

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var f float64
		if _, err := fmt.Sscanf(value, "%f", &f); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
