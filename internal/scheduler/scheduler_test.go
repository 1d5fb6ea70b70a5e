package scheduler

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestRegisterDuplicateJob(t *testing.T) {
	s := New(nil)

	if err := s.Register("retrain", "@hourly", func() {}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := s.Register("retrain", "@daily", func() {}); err == nil {
		t.Error("duplicate Register: want error")
	}
}

func TestRegisterInvalidSchedule(t *testing.T) {
	s := New(nil)

	if err := s.Register("broken", "not a schedule", func() {}); err == nil {
		t.Error("Register with invalid schedule: want error")
	}
}

func TestRegisterEveryRunsJob(t *testing.T) {
	s := New(nil)

	var runs atomic.Int64
	if err := s.RegisterEvery("tick", 20*time.Millisecond, func() {
		runs.Add(1)
	}); err != nil {
		t.Fatalf("RegisterEvery: %v", err)
	}

	s.Start()
	defer s.Stop()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if runs.Load() >= 2 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job ran %d times, want >= 2", runs.Load())
}

func TestStopWaitsForRunningJob(t *testing.T) {
	s := New(nil)

	started := make(chan struct{})
	var finished atomic.Bool
	if err := s.RegisterEvery("slow", 10*time.Millisecond, func() {
		select {
		case started <- struct{}{}:
		default:
		}
		time.Sleep(50 * time.Millisecond)
		finished.Store(true)
	}); err != nil {
		t.Fatalf("RegisterEvery: %v", err)
	}

	s.Start()
	select {
	case <-started:
	case <-time.After(3 * time.Second):
		t.Fatal("job never started")
	}
	s.Stop()

	if !finished.Load() {
		t.Error("Stop returned before the running job finished")
	}
}
