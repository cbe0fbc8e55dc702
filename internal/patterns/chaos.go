package patterns

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/ashendes/order-saga/internal/metrics"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// ErrChaos is the injected failure.
var ErrChaos = errors.New("chaos: simulated failure")

// Chaos injects failures and latency into a collaborator service on demand.
type Chaos struct {
	mu          sync.RWMutex
	failing     bool
	slow        bool
	failureRate float64
	minDelay    time.Duration
	maxDelay    time.Duration
	rng         *rand.Rand
	rngMu       sync.Mutex
	service     string
	logger      log.FieldLogger
}

// NewChaos returns a disabled injector: 40% failures and 5-10s delays once switched on.
func NewChaos(service string, logger log.FieldLogger) *Chaos {
	return &Chaos{
		failureRate: 0.4,
		minDelay:    5 * time.Second,
		maxDelay:    10 * time.Second,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		service:     service,
		logger:      logger,
	}
}

// SetProfile changes the failure rate and the latency range of slow mode.
func (c *Chaos) SetProfile(failureRate float64, minDelay, maxDelay time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failureRate = failureRate
	c.minDelay = minDelay
	c.maxDelay = maxDelay
}

// SetFailing toggles random failures.
func (c *Chaos) SetFailing(enabled bool) {
	c.mu.Lock()
	c.failing = enabled
	c.mu.Unlock()
	metrics.ChaosFailureRate.WithLabelValues(c.service).Set(boolGauge(enabled))
}

// SetSlow toggles injected latency.
func (c *Chaos) SetSlow(enabled bool) {
	c.mu.Lock()
	c.slow = enabled
	c.mu.Unlock()
	metrics.ChaosSlowMode.WithLabelValues(c.service).Set(boolGauge(enabled))
}

// Failing reports whether failure mode is on.
func (c *Chaos) Failing() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.failing
}

// Slow reports whether slow mode is on.
func (c *Chaos) Slow() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.slow
}

// Inject sleeps when slow mode is on and may return ErrChaos when failure
// mode is on. A cancelled ctx cuts the sleep short.
func (c *Chaos) Inject(ctx context.Context) error {
	c.mu.RLock()
	failing, slow, rate := c.failing, c.slow, c.failureRate
	minDelay, maxDelay := c.minDelay, c.maxDelay
	c.mu.RUnlock()

	if slow {
		delay := minDelay + c.jitter(maxDelay-minDelay)
		c.logger.WithField("delay_ms", delay.Milliseconds()).Debug("Chaos: Simulating slow response")
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if failing && c.float() < rate {
		return ErrChaos
	}
	return nil
}

// Register mounts the chaos switches under /chaos/<name>/.
func (c *Chaos) Register(r gin.IRouter, name string) {
	g := r.Group("/chaos/" + name)
	g.POST("/enable", func(ctx *gin.Context) {
		c.SetFailing(true)
		c.logger.Info("Chaos mode ENABLED")
		ctx.JSON(http.StatusOK, gin.H{"message": "Chaos mode enabled"})
	})
	g.POST("/disable", func(ctx *gin.Context) {
		c.SetFailing(false)
		c.SetSlow(false)
		c.logger.Info("Chaos mode DISABLED")
		ctx.JSON(http.StatusOK, gin.H{"message": "Chaos mode disabled"})
	})
	g.POST("/slow", func(ctx *gin.Context) {
		c.SetSlow(true)
		c.logger.Info("Slow mode ENABLED")
		ctx.JSON(http.StatusOK, gin.H{"message": "Slow mode enabled"})
	})
	g.POST("/slow/disable", func(ctx *gin.Context) {
		c.SetSlow(false)
		c.logger.Info("Slow mode DISABLED")
		ctx.JSON(http.StatusOK, gin.H{"message": "Slow mode disabled"})
	})
	g.GET("", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"chaos_enabled": c.Failing(), "chaos_slow_mode": c.Slow()})
	})
}

func (c *Chaos) jitter(span time.Duration) time.Duration {
	if span <= 0 {
		return 0
	}
	c.rngMu.Lock()
	defer c.rngMu.Unlock()
	return time.Duration(c.rng.Int63n(int64(span)))
}

func (c *Chaos) float() float64 {
	c.rngMu.Lock()
	defer c.rngMu.Unlock()
	return c.rng.Float64()
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
