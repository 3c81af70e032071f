package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/eugener/trailhead/internal/cache"
)

type fakeSweepable struct {
	cleanups atomic.Int32
}

func (f *fakeSweepable) Cleanup() int {
	f.cleanups.Add(1)
	return 1
}

func (f *fakeSweepable) Stats() cache.Stats {
	return cache.Stats{Size: 3, Memory: 128}
}

func TestCacheSweepWorker_SweepsOnInterval(t *testing.T) {
	t.Parallel()
	c := &fakeSweepable{}
	w := NewCacheSweepWorker(c, 20*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for c.cleanups.Load() < 2 {
		select {
		case <-deadline:
			t.Fatal("sweep did not run twice in time")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()

	if err := <-done; err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestCacheSweepWorker_RemovesExpired(t *testing.T) {
	t.Parallel()
	m := cache.New[string](cache.Options[string]{MaxSize: 10})
	m.Set("gone", "v", time.Nanosecond)
	m.Set("kept", "v", time.Hour)
	time.Sleep(time.Millisecond)

	w := NewCacheSweepWorker(m, time.Hour, nil)
	w.sweep(context.Background())

	if _, ok := m.Get("kept"); !ok {
		t.Error("unexpired entry removed by sweep")
	}
	if s := m.Stats(); s.Size != 1 {
		t.Errorf("size = %d, want 1 after sweep", s.Size)
	}
}
