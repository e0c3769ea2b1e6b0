package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"attendancepro/internal/config"
)

type fakePinger struct {
	mu  sync.Mutex
	err error
}

func (f *fakePinger) Ping(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (f *fakePinger) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

type recordingStatus struct {
	mu      sync.Mutex
	updates []bool
}

func (r *recordingStatus) SetServing(serving bool) {
	r.mu.Lock()
	r.updates = append(r.updates, serving)
	r.mu.Unlock()
}

func (r *recordingStatus) last() (bool, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.updates) == 0 {
		return false, 0
	}
	return r.updates[len(r.updates)-1], len(r.updates)
}

func TestProbe(t *testing.T) {
	ok := &fakePinger{}
	down := &fakePinger{err: errors.New("connection refused")}
	if !probe(context.Background(), time.Second, map[string]Pinger{"db": ok}) {
		t.Fatalf("expected healthy")
	}
	if probe(context.Background(), time.Second, map[string]Pinger{"db": ok, "redis": down}) {
		t.Fatalf("expected unhealthy when one dependency fails")
	}
}

func TestHealthProbeJobTracksDependency(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db := &fakePinger{}
	status := &recordingStatus{}
	cfg := config.Config{HealthProbeInterval: 10 * time.Millisecond, StoreTimeout: time.Second}
	StartHealthProbeJob(ctx, cfg, status, map[string]Pinger{"db": db})

	if serving, n := status.last(); !serving || n != 1 {
		t.Fatalf("expected initial SERVING update, got %t after %d", serving, n)
	}

	db.setErr(errors.New("db down"))
	deadline := time.Now().Add(2 * time.Second)
	for {
		if serving, _ := status.last(); !serving {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("probe never reported NOT_SERVING")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHealthProbeJobDisabled(t *testing.T) {
	status := &recordingStatus{}
	StartHealthProbeJob(context.Background(), config.Config{}, status, nil)
	if _, n := status.last(); n != 0 {
		t.Fatalf("expected no updates without dependencies")
	}
}
