package schedulestore

import (
	"context"
	"testing"
	"time"

	"github.com/stakpak/agent-core/pkg/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return New(db.Conn())
}

func TestUpsertAndGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	check := "~/checks/disk.sh"
	sched := models.Schedule{Name: "disk-cleanup", Cron: "*/15 * * * *", Check: &check, Prompt: "go", Enabled: true}

	if err := s.Upsert(ctx, sched); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := s.Get(ctx, "disk-cleanup")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Cron != sched.Cron || got.Check == nil || *got.Check != check {
		t.Fatalf("unexpected round-trip: %+v", got)
	}
	if got.TriggerOn != models.TriggerExitZero {
		t.Fatalf("expected normalized trigger_on exit_zero, got %v", got.TriggerOn)
	}
}

func TestGet_NotFound(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.Get(context.Background(), "missing"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListEnabled_ExcludesDisabledAndSentinel(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	must := func(err error) {
		if err != nil {
			t.Fatalf("%v", err)
		}
	}
	must(s.Upsert(ctx, models.Schedule{Name: "a", Cron: "* * * * *", Prompt: "p", Enabled: true}))
	must(s.Upsert(ctx, models.Schedule{Name: "b", Cron: "* * * * *", Prompt: "p", Enabled: false}))
	must(s.TriggerReload(ctx))

	enabled, err := s.ListEnabled(ctx)
	if err != nil {
		t.Fatalf("list enabled: %v", err)
	}
	if len(enabled) != 1 || enabled[0].Name != "a" {
		t.Fatalf("expected only schedule 'a', got %+v", enabled)
	}
}

func TestCreateAndUpdateRun(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	exit := 0
	run := &models.Run{
		ID:           "run-1",
		ScheduleName: "disk-cleanup",
		Status:       models.RunRunning,
		StartedAt:    time.Now().UTC(),
		CheckResult:  &models.CheckResult{ExitCode: &exit, Stdout: "ok"},
	}
	if err := s.CreateRun(ctx, run); err != nil {
		t.Fatalf("create run: %v", err)
	}

	stopped := time.Now().UTC()
	run.Status = models.RunCompleted
	run.StoppedAt = &stopped
	if err := s.UpdateRun(ctx, run); err != nil {
		t.Fatalf("update run: %v", err)
	}

	runs, err := s.ListRuns(ctx, ListRunsFilter{ScheduleName: "disk-cleanup"})
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 1 || runs[0].Status != models.RunCompleted {
		t.Fatalf("expected one completed run, got %+v", runs)
	}
	if runs[0].CheckResult == nil || runs[0].CheckResult.Stdout != "ok" {
		t.Fatalf("expected check result round-tripped, got %+v", runs[0].CheckResult)
	}
	if runs[0].StoppedAt == nil {
		t.Fatalf("expected stopped_at set")
	}
}

func TestTriggerReload_LastReloadAt(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	before, err := s.LastReloadAt(ctx)
	if err != nil {
		t.Fatalf("last reload: %v", err)
	}
	if !before.IsZero() {
		t.Fatalf("expected zero time before any reload")
	}

	if err := s.TriggerReload(ctx); err != nil {
		t.Fatalf("trigger reload: %v", err)
	}

	after, err := s.LastReloadAt(ctx)
	if err != nil {
		t.Fatalf("last reload: %v", err)
	}
	if after.IsZero() {
		t.Fatalf("expected non-zero reload timestamp")
	}
}
