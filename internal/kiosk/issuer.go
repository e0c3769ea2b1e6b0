// Package kiosk issues the rotating QR payload displayed at the check-in location.
package kiosk

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/skip2/go-qrcode"

	"attendancepro/internal/attendance"
)

const currentCodeKey = "kiosk_qr:current"

type Code struct {
	Payload   string    `json:"payload"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Issuer shares one code across kiosks through redis for the regeneration interval. Without
// redis each process keeps its own code.
type Issuer struct {
	redis        *redis.Client
	clock        attendance.Clock
	locationName string
	regeneration time.Duration
	validity     time.Duration

	mu      sync.Mutex
	current *Code
}

func NewIssuer(redisClient *redis.Client, clock attendance.Clock, locationName string, regeneration, validity time.Duration) *Issuer {
	if clock == nil {
		clock = attendance.SystemClock{}
	}
	if regeneration <= 0 {
		regeneration = time.Minute
	}
	return &Issuer{
		redis:        redisClient,
		clock:        clock,
		locationName: locationName,
		regeneration: regeneration,
		validity:     validity,
	}
}

func (i *Issuer) Current(ctx context.Context) (Code, error) {
	if i.redis != nil {
		return i.currentShared(ctx)
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	now := i.clock.Now()
	if i.current != nil && now.Sub(i.current.IssuedAt) < i.regeneration {
		return *i.current, nil
	}
	code, err := i.newCode(now)
	if err != nil {
		return Code{}, err
	}
	i.current = &code
	return code, nil
}

// Ping checks the shared code store. It is a no-op for process-local issuers.
func (i *Issuer) Ping(ctx context.Context) error {
	if i.redis == nil {
		return nil
	}
	return i.redis.Ping(ctx).Err()
}

func (i *Issuer) currentShared(ctx context.Context) (Code, error) {
	code, found, err := i.loadShared(ctx)
	if err != nil || found {
		return code, err
	}
	code, err = i.newCode(i.clock.Now())
	if err != nil {
		return Code{}, err
	}
	data, err := json.Marshal(code)
	if err != nil {
		return Code{}, err
	}
	stored, err := i.redis.SetNX(ctx, currentCodeKey, data, i.regeneration).Result()
	if err != nil {
		return Code{}, err
	}
	if stored {
		return code, nil
	}
	// Another instance rotated first.
	code, found, err = i.loadShared(ctx)
	if err != nil {
		return Code{}, err
	}
	if !found {
		return Code{}, errors.New("kiosk code vanished during rotation")
	}
	return code, nil
}

func (i *Issuer) loadShared(ctx context.Context) (Code, bool, error) {
	value, err := i.redis.Get(ctx, currentCodeKey).Result()
	if err == redis.Nil {
		return Code{}, false, nil
	}
	if err != nil {
		return Code{}, false, err
	}
	var code Code
	if err := json.Unmarshal([]byte(value), &code); err != nil {
		return Code{}, false, err
	}
	return code, true, nil
}

func (i *Issuer) newCode(now time.Time) (Code, error) {
	issuedAt := now.UTC().Truncate(time.Second)
	payload, err := attendance.EncodePayload(issuedAt, i.locationName)
	if err != nil {
		return Code{}, err
	}
	return Code{Payload: payload, IssuedAt: issuedAt, ExpiresAt: issuedAt.Add(i.validity)}, nil
}

// PNG renders a payload as a QR image.
func PNG(payload string, size int) ([]byte, error) {
	if size <= 0 {
		size = 256
	}
	return qrcode.Encode(payload, qrcode.Medium, size)
}
