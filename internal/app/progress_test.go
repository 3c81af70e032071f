package app

import (
	"context"
	"testing"
	"time"

	trailhead "github.com/eugener/trailhead/internal"
	"github.com/eugener/trailhead/internal/testutil"
)

func newTestProgress(t *testing.T, lister *testutil.FakeLister) (*ProgressService, *testutil.FakeStore) {
	t.Helper()
	issuer := &testutil.FakeIssuer{}
	store := testutil.NewFakeStore()
	seedCredential(t, store, "healthy", time.Now().Unix()+7200)
	f := newTestFetcher(issuer, lister, store)
	return NewProgressService(f, store, 100), store
}

func TestProgressService_SyncPersistsFiltered(t *testing.T) {
	t.Parallel()
	lister := &testutil.FakeLister{Pages: [][]trailhead.Activity{{
		{ID: 1, Type: "Hike", Description: "#trail day 1", Distance: 12000, StartDate: time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)},
		{ID: 2, Type: "Run", Description: "#trail tempo", Distance: 8000},
		{ID: 3, Type: "Hike", Description: "#trail day 2", Distance: 18000, StartDate: time.Date(2025, 5, 2, 0, 0, 0, 0, time.UTC)},
	}}}
	svc, store := newTestProgress(t, lister)

	n, err := svc.Sync(context.Background(), 42)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("synced = %d, want 2 matching activities", n)
	}

	count, _ := store.CountActivities(context.Background(), 42)
	if count != 2 {
		t.Errorf("persisted = %d, want 2", count)
	}
}

func TestProgressService_Progress(t *testing.T) {
	t.Parallel()
	lister := &testutil.FakeLister{Pages: [][]trailhead.Activity{{
		{ID: 1, Type: "Hike", Description: "#trail", Distance: 12500, StartDate: time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)},
		{ID: 2, Type: "Hike", Description: "#trail", Distance: 20000, StartDate: time.Date(2025, 5, 3, 0, 0, 0, 0, time.UTC)},
	}}}
	svc, _ := newTestProgress(t, lister)

	if _, err := svc.Sync(context.Background(), 42); err != nil {
		t.Fatal(err)
	}

	p, err := svc.Progress(context.Background(), 42)
	if err != nil {
		t.Fatal(err)
	}
	if p.GoalKm != 100 {
		t.Errorf("goal = %v, want 100", p.GoalKm)
	}
	if p.TotalKm != 32.5 {
		t.Errorf("total = %v, want 32.5", p.TotalKm)
	}
	if p.RemainingKm != 67.5 {
		t.Errorf("remaining = %v, want 67.5", p.RemainingKm)
	}
	if p.Percent != 32.5 {
		t.Errorf("percent = %v, want 32.5", p.Percent)
	}
	if p.ActivityCount != 2 {
		t.Errorf("count = %d, want 2", p.ActivityCount)
	}
	if p.LastActivity == nil || !p.LastActivity.Equal(time.Date(2025, 5, 3, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("last activity = %v, want newest start date", p.LastActivity)
	}
}

func TestProgressService_ProgressEmpty(t *testing.T) {
	t.Parallel()
	svc, _ := newTestProgress(t, &testutil.FakeLister{})

	p, err := svc.Progress(context.Background(), 42)
	if err != nil {
		t.Fatal(err)
	}
	if p.TotalKm != 0 || p.Percent != 0 || p.ActivityCount != 0 {
		t.Errorf("empty progress = %+v", p)
	}
	if p.RemainingKm != 100 {
		t.Errorf("remaining = %v, want full goal", p.RemainingKm)
	}
	if p.LastActivity != nil {
		t.Error("last activity should be nil with no activities")
	}
}

func TestProgressService_GoalOverrun(t *testing.T) {
	t.Parallel()
	lister := &testutil.FakeLister{Pages: [][]trailhead.Activity{{
		{ID: 1, Type: "Hike", Description: "#trail", Distance: 150000},
	}}}
	svc, _ := newTestProgress(t, lister)

	if _, err := svc.Sync(context.Background(), 42); err != nil {
		t.Fatal(err)
	}

	p, err := svc.Progress(context.Background(), 42)
	if err != nil {
		t.Fatal(err)
	}
	if p.Percent != 150 {
		t.Errorf("percent = %v, want 150 (overrun not capped)", p.Percent)
	}
	if p.RemainingKm != 0 {
		t.Errorf("remaining = %v, want 0 (never negative)", p.RemainingKm)
	}
}

func TestProgressService_ForceSyncBypassesCache(t *testing.T) {
	t.Parallel()
	lister := &testutil.FakeLister{Pages: [][]trailhead.Activity{{
		{ID: 1, Type: "Hike", Description: "#trail", Distance: 1000},
	}}}
	svc, _ := newTestProgress(t, lister)

	if _, err := svc.Sync(context.Background(), 42); err != nil {
		t.Fatal(err)
	}
	calls := lister.Calls()

	if _, err := svc.ForceSync(context.Background(), 42); err != nil {
		t.Fatal(err)
	}
	if lister.Calls() <= calls {
		t.Error("force sync should refetch from upstream")
	}
}
