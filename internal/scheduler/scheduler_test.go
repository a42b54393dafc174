package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stakpak/agent-core/pkg/models"
)

type fakeStore struct {
	mu        sync.Mutex
	runs      []*models.Run
	schedules []models.Schedule
	reloadAt  time.Time
}

func (f *fakeStore) ListEnabled(ctx context.Context) ([]models.Schedule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Schedule, len(f.schedules))
	copy(out, f.schedules)
	return out, nil
}

func (f *fakeStore) LastReloadAt(ctx context.Context) (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reloadAt, nil
}

func (f *fakeStore) setSchedules(schedules []models.Schedule) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.schedules = schedules
}

func (f *fakeStore) triggerReload(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reloadAt = t
}

func (f *fakeStore) CreateRun(ctx context.Context, run *models.Run) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, run)
	return nil
}

func (f *fakeStore) UpdateRun(ctx context.Context, run *models.Run) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, run)
	return nil
}

func (f *fakeStore) last() *models.Run {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.runs) == 0 {
		return nil
	}
	return f.runs[len(f.runs)-1]
}

type blockingDispatcher struct {
	release chan struct{}
	calls   int
	mu      sync.Mutex
}

func (d *blockingDispatcher) Dispatch(ctx context.Context, sched models.Schedule, prompt string, callerContext []models.CallerContextInput) error {
	d.mu.Lock()
	d.calls++
	d.mu.Unlock()
	select {
	case <-d.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

func TestFire_SingleFlightSkipsOverlap(t *testing.T) {
	store := &fakeStore{}
	dispatcher := &blockingDispatcher{release: make(chan struct{})}
	s := New(store, dispatcher, nil)

	sched := models.Schedule{Name: "disk-cleanup", Cron: "* * * * *", Prompt: "go", Enabled: true}
	sched.Normalize()

	s.fire(context.Background(), sched)
	// give the goroutine a moment to register as running
	for i := 0; i < 100 && !s.IsRunning(sched.Name); i++ {
		time.Sleep(time.Millisecond)
	}
	if !s.IsRunning(sched.Name) {
		t.Fatalf("expected schedule to be running")
	}

	s.fire(context.Background(), sched)
	// The overlap skip is recorded synchronously by the second fire; the
	// first run's completion is only appended after release below.
	last := store.last()

	close(dispatcher.release)
	s.wg.Wait()

	if last == nil || last.SkipReason == nil || *last.SkipReason != models.SkipOverlap {
		t.Fatalf("expected an overlap-skipped run recorded, got %+v", last)
	}
}

func TestRunOnce_GateRejectsRecordsSkip(t *testing.T) {
	store := &fakeStore{}
	dispatcher := &blockingDispatcher{release: make(chan struct{})}
	close(dispatcher.release)
	s := New(store, dispatcher, nil)

	check := "/nonexistent/check.sh"
	sched := models.Schedule{Name: "gated", Cron: "* * * * *", Check: &check, Prompt: "go", Enabled: true}
	sched.Normalize()

	s.runOnce(context.Background(), sched)

	last := store.last()
	if last == nil || last.Status != models.RunSkipped || last.SkipReason == nil || *last.SkipReason != models.SkipGate {
		t.Fatalf("expected a gate-skipped run, got %+v", last)
	}
	if dispatcher.calls != 0 {
		t.Fatalf("expected dispatcher not called when gate rejects")
	}
}

func TestRunOnce_DispatchSuccessCompletesRun(t *testing.T) {
	store := &fakeStore{}
	dispatcher := &blockingDispatcher{release: make(chan struct{})}
	close(dispatcher.release)
	s := New(store, dispatcher, nil)

	sched := models.Schedule{Name: "always-run", Cron: "* * * * *", Prompt: "go", Enabled: true}
	sched.Normalize()

	s.runOnce(context.Background(), sched)

	last := store.last()
	if last == nil || last.Status != models.RunCompleted {
		t.Fatalf("expected completed run, got %+v", last)
	}
	if dispatcher.calls != 1 {
		t.Fatalf("expected dispatcher invoked once, got %d", dispatcher.calls)
	}
}

// TestPollReload_PicksUpScheduleChangesWithoutRestart exercises the
// RELOAD_SENTINEL consumer: a schedule added to the store after Start
// must be picked up by the running Scheduler without a restart.
func TestPollReload_PicksUpScheduleChangesWithoutRestart(t *testing.T) {
	store := &fakeStore{}
	dispatcher := &blockingDispatcher{release: make(chan struct{})}
	close(dispatcher.release)
	s := New(store, dispatcher, nil)
	s.reloadPollInterval = 5 * time.Millisecond

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Stop()

	if s.IsScheduled("new-watch") {
		t.Fatalf("did not expect new-watch to be scheduled before reload")
	}

	sched := models.Schedule{Name: "new-watch", Cron: "* * * * *", Prompt: "go", Enabled: true}
	sched.Normalize()
	store.setSchedules([]models.Schedule{sched})
	store.triggerReload(time.Now().UTC())

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && !s.IsScheduled("new-watch") {
		time.Sleep(5 * time.Millisecond)
	}
	if !s.IsScheduled("new-watch") {
		t.Fatalf("expected scheduler to pick up new-watch after reload sentinel advanced")
	}
}

// TestPollReload_RemovesDisabledSchedule confirms reconcile() also
// drops a schedule that's no longer enabled, not just adds new ones.
func TestPollReload_RemovesDisabledSchedule(t *testing.T) {
	sched := models.Schedule{Name: "going-away", Cron: "* * * * *", Prompt: "go", Enabled: true}
	sched.Normalize()

	store := &fakeStore{schedules: []models.Schedule{sched}}
	dispatcher := &blockingDispatcher{release: make(chan struct{})}
	close(dispatcher.release)
	s := New(store, dispatcher, nil)
	s.reloadPollInterval = 5 * time.Millisecond

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Stop()

	if !s.IsScheduled("going-away") {
		t.Fatalf("expected going-away to be scheduled at start")
	}

	store.setSchedules(nil)
	store.triggerReload(time.Now().UTC())

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && s.IsScheduled("going-away") {
		time.Sleep(5 * time.Millisecond)
	}
	if s.IsScheduled("going-away") {
		t.Fatalf("expected going-away to be removed after reload sentinel advanced")
	}
}

// TestFire_NoNilCancelPanicUnderConcurrentStop guards against the race
// where a losing single-flight fire() observes a runState with a nil
// cancel func if Stop() ranges the map before the winner installs its
// real cancel: cancel must be constructed before LoadOrStore.
func TestFire_NoNilCancelPanicUnderConcurrentStop(t *testing.T) {
	store := &fakeStore{}
	dispatcher := &blockingDispatcher{release: make(chan struct{})}
	s := New(store, dispatcher, nil)

	sched := models.Schedule{Name: "race", Cron: "* * * * *", Prompt: "go", Enabled: true}
	sched.Normalize()

	s.fire(context.Background(), sched)
	for i := 0; i < 100 && !s.IsRunning(sched.Name); i++ {
		time.Sleep(time.Millisecond)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.running.Range(func(key, value any) bool {
			value.(*runState).cancel()
			return true
		})
	}()
	<-done

	close(dispatcher.release)
	s.wg.Wait()
}
