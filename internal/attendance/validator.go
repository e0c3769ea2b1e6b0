// Package attendance decides whether a check-in is accepted and which status it receives.
package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type CheckInRequest struct {
	UserID    string
	QRPayload string
	Latitude  float64
	Longitude float64
	Accuracy  *float64
}

type Record struct {
	ID        uuid.UUID
	UserID    string
	Timestamp time.Time
	Date      time.Time
	Status    Status
	Latitude  float64
	Longitude float64
	Accuracy  *float64
	QRPayload string
}

type Result struct {
	Status         Status
	DistanceMeters float64
	Record         Record
}

// Store persists records. Insert must return ErrConflict when a record for the same user and
// date already exists. FindByUserAndDate returns nil, nil when there is none.
type Store interface {
	FindByUserAndDate(ctx context.Context, userID string, date time.Time) (*Record, error)
	Insert(ctx context.Context, record Record) (Record, error)
}

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

type Config struct {
	Geofence   Geofence
	QRValidity time.Duration
	Schedule   Schedule
	Location   *time.Location
}

func DefaultConfig() Config {
	return Config{
		Geofence:   Geofence{Latitude: -1.2921, Longitude: 36.8219, RadiusMeters: 100},
		QRValidity: 5 * time.Minute,
		Schedule:   DefaultSchedule(),
		Location:   time.UTC,
	}
}

func (c Config) Validate() error {
	if err := ValidateCoordinates(c.Geofence.Latitude, c.Geofence.Longitude); err != nil {
		return fmt.Errorf("geofence center: %w", err)
	}
	if c.Geofence.RadiusMeters <= 0 {
		return errors.New("geofence radius must be positive")
	}
	if c.QRValidity <= 0 {
		return errors.New("qr validity window must be positive")
	}
	return c.Schedule.Validate()
}

// CalendarDay is the date of t, as a UTC midnight.
func CalendarDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type Validator struct {
	cfg   Config
	store Store
	clock Clock
}

func NewValidator(cfg Config, store Store, clock Clock) (*Validator, error) {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if store == nil {
		return nil, errors.New("attendance store required")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &Validator{cfg: cfg, store: store, clock: clock}, nil
}

func (v *Validator) Config() Config { return v.cfg }

// Today is the caller's current calendar day in the site location.
func (v *Validator) Today() time.Time {
	return CalendarDay(v.clock.Now().In(v.cfg.Location))
}

// checkIn carries one request through the pipeline.
type checkIn struct {
	req      CheckInRequest
	now      time.Time
	day      time.Time
	distance float64
	status   Status
	record   Record
}

type step func(ctx context.Context, c *checkIn) error

// Mark runs coordinates, QR freshness, duplicate, geofence, classification and persistence in
// that order. The first failing step ends the request and nothing is written.
func (v *Validator) Mark(ctx context.Context, req CheckInRequest) (Result, error) {
	if req.UserID == "" {
		return Result{}, errors.New("user id required")
	}
	now := v.clock.Now().In(v.cfg.Location)
	c := &checkIn{req: req, now: now, day: CalendarDay(now)}

	steps := []step{
		v.checkCoordinates,
		v.checkToken,
		v.checkDuplicate,
		v.checkGeofence,
		v.classify,
		v.persist,
	}
	for _, s := range steps {
		if err := s(ctx, c); err != nil {
			return Result{}, err
		}
	}
	return Result{
		Status:         c.status,
		DistanceMeters: roundMeters(c.distance),
		Record:         c.record,
	}, nil
}

func (v *Validator) checkCoordinates(_ context.Context, c *checkIn) error {
	return ValidateCoordinates(c.req.Latitude, c.req.Longitude)
}

func (v *Validator) checkToken(_ context.Context, c *checkIn) error {
	_, err := CheckFreshness(c.req.QRPayload, c.now, v.cfg.QRValidity, v.cfg.Location)
	return err
}

func (v *Validator) checkDuplicate(ctx context.Context, c *checkIn) error {
	existing, err := v.store.FindByUserAndDate(ctx, c.req.UserID, c.day)
	if err != nil {
		return fmt.Errorf("%w: find by user and date: %v", ErrStorageUnavailable, err)
	}
	if existing != nil {
		return ErrAlreadyMarked
	}
	return nil
}

func (v *Validator) checkGeofence(_ context.Context, c *checkIn) error {
	distance, err := v.cfg.Geofence.Check(Point{Latitude: c.req.Latitude, Longitude: c.req.Longitude})
	c.distance = distance
	return err
}

func (v *Validator) classify(_ context.Context, c *checkIn) error {
	c.status = v.cfg.Schedule.Classify(c.now)
	return nil
}

func (v *Validator) persist(ctx context.Context, c *checkIn) error {
	record, err := v.store.Insert(ctx, Record{
		ID:        uuid.New(),
		UserID:    c.req.UserID,
		Timestamp: c.now,
		Date:      c.day,
		Status:    c.status,
		Latitude:  c.req.Latitude,
		Longitude: c.req.Longitude,
		Accuracy:  c.req.Accuracy,
		QRPayload: c.req.QRPayload,
	})
	if errors.Is(err, ErrConflict) {
		return ErrAlreadyMarked
	}
	if err != nil {
		return fmt.Errorf("%w: insert: %v", ErrStorageUnavailable, err)
	}
	c.record = record
	return nil
}
