package kiosk

import (
	"bytes"
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"attendancepro/internal/attendance"
)

type stepClock struct {
	now time.Time
}

func (c *stepClock) Now() time.Time { return c.now }

func TestIssuerRotatesAfterRegeneration(t *testing.T) {
	clock := &stepClock{now: time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)}
	issuer := NewIssuer(nil, clock, "Main Gate", time.Minute, 5*time.Minute)
	ctx := context.Background()

	first, err := issuer.Current(ctx)
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if !first.ExpiresAt.Equal(first.IssuedAt.Add(5 * time.Minute)) {
		t.Fatalf("unexpected expiry %s", first.ExpiresAt)
	}

	clock.now = clock.now.Add(59 * time.Second)
	same, err := issuer.Current(ctx)
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if same.Payload != first.Payload {
		t.Fatalf("expected same code within regeneration interval")
	}

	clock.now = clock.now.Add(time.Second)
	next, err := issuer.Current(ctx)
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if next.Payload == first.Payload {
		t.Fatalf("expected a new code after regeneration interval")
	}
}

func TestIssuedPayloadIsAcceptedByValidator(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	issuer := NewIssuer(nil, &stepClock{now: now}, "Main Gate", time.Minute, 5*time.Minute)
	code, err := issuer.Current(context.Background())
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if _, err := attendance.CheckFreshness(code.Payload, now.Add(5*time.Minute), 5*time.Minute, time.UTC); err != nil {
		t.Fatalf("kiosk payload rejected: %v", err)
	}
}

func TestPNG(t *testing.T) {
	png, err := PNG(`{"type":"attendance","timestamp":"2026-03-02T08:00:00Z"}`, 0)
	if err != nil {
		t.Fatalf("png: %v", err)
	}
	if !bytes.HasPrefix(png, []byte("\x89PNG")) {
		t.Fatalf("expected png signature")
	}
}

func TestSharedIssuer(t *testing.T) {
	if os.Getenv("INTEGRATION_TESTS") != "1" || os.Getenv("REDIS_ADDR") == "" {
		t.Skip("set INTEGRATION_TESTS=1 and REDIS_ADDR to run")
	}
	client := redis.NewClient(&redis.Options{Addr: os.Getenv("REDIS_ADDR")})
	defer client.Close()
	ctx := context.Background()
	if err := client.Del(ctx, currentCodeKey).Err(); err != nil {
		t.Fatalf("reset: %v", err)
	}

	clock := &stepClock{now: time.Now()}
	a := NewIssuer(client, clock, "Gate A", time.Minute, 5*time.Minute)
	if err := a.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
	b := NewIssuer(client, clock, "Gate A", time.Minute, 5*time.Minute)
	first, err := a.Current(ctx)
	if err != nil {
		t.Fatalf("issuer a: %v", err)
	}
	clock.now = clock.now.Add(2 * time.Second)
	second, err := b.Current(ctx)
	if err != nil {
		t.Fatalf("issuer b: %v", err)
	}
	if first.Payload != second.Payload {
		t.Fatalf("expected kiosks to share the current code")
	}
}

func TestLocalIssuerPing(t *testing.T) {
	issuer := NewIssuer(nil, nil, "Gate A", 0, 5*time.Minute)
	if err := issuer.Ping(context.Background()); err != nil {
		t.Fatalf("expected no-op ping, got %v", err)
	}
}
