package jobs

import (
	"context"
	"log"
	"time"

	"attendancepro/internal/config"
)

// Pinger is satisfied by the attendance store and the redis client wrapper.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StatusSetter receives the probe outcome, usually the gRPC health service.
type StatusSetter interface {
	SetServing(serving bool)
}

// StartHealthProbeJob pings every dependency on each tick and reports SERVING
// only while all of them answer within the store timeout.
func StartHealthProbeJob(ctx context.Context, cfg config.Config, status StatusSetter, deps map[string]Pinger) {
	if status == nil || len(deps) == 0 {
		log.Printf("health probe job disabled: nothing to probe")
		return
	}
	interval := cfg.HealthProbeInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	timeout := cfg.StoreTimeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}

	serving := probe(ctx, timeout, deps)
	status.SetServing(serving)

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				next := probe(ctx, timeout, deps)
				if next != serving {
					log.Printf("health probe job: serving changed to %t", next)
				}
				serving = next
				status.SetServing(serving)
			}
		}
	}()
}

func probe(ctx context.Context, timeout time.Duration, deps map[string]Pinger) bool {
	healthy := true
	for name, dep := range deps {
		tickCtx, cancel := context.WithTimeout(ctx, timeout)
		err := dep.Ping(tickCtx)
		cancel()
		if err != nil {
			log.Printf("health probe job: %s ping failed: %v", name, err)
			healthy = false
		}
	}
	return healthy
}
