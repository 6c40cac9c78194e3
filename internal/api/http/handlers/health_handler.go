package handlers

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
)

const readinessTimeout = 2 * time.Second

// Pinger is a dependency whose reachability gates readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler answers liveness and readiness probes. Readiness pings the
// ticket store, Redis and the mail provider breaker concurrently.
type HealthHandler struct {
	serviceName string
	version     string
	deps        map[string]Pinger
	startedAt   time.Time
}

// NewHealthHandler returns a new handler instance.
func NewHealthHandler(serviceName, version string, deps map[string]Pinger) *HealthHandler {
	return &HealthHandler{serviceName: serviceName, version: version, deps: deps, startedAt: time.Now()}
}

// Live reports service liveness.
func (h *HealthHandler) Live(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":         "alive",
		"service":        h.serviceName,
		"version":        h.version,
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
	})
}

type depResult struct {
	name string
	err  error
}

// Ready reports 503 with per-dependency details when any ping fails.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), readinessTimeout)
	defer cancel()

	results := make(chan depResult, len(h.deps))
	var wg sync.WaitGroup
	for name, dep := range h.deps {
		if dep == nil {
			continue
		}
		wg.Add(1)
		go func(name string, dep Pinger) {
			defer wg.Done()
			results <- depResult{name: name, err: dep.Ping(ctx)}
		}(name, dep)
	}
	wg.Wait()
	close(results)

	depStatus := fiber.Map{}
	var failed []string
	for res := range results {
		if res.err != nil {
			depStatus[res.name] = res.err.Error()
			failed = append(failed, res.name)
			continue
		}
		depStatus[res.name] = "ok"
	}

	if len(failed) == 0 {
		return c.JSON(fiber.Map{
			"status":       "ready",
			"dependencies": depStatus,
		})
	}

	sort.Strings(failed)
	return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "DEPENDENCY_UNAVAILABLE",
			"message": "unavailable: " + strings.Join(failed, ", "),
			"details": depStatus,
		},
	})
}
