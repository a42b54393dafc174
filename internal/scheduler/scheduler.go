// Package scheduler drives cron-based schedule firing: single-flight
// gating, check-script evaluation, and dispatch to the agent transport
// (C10). Grounded on internal/services/scheduler.go's cron.New +
// cron.AddFunc + EntryID tracking shape (generalized from
// map[int64]cron.EntryID keyed by agent ID to map[string]cron.EntryID
// keyed by schedule name) and internal/services/execution_queue.go's
// lifecycle fields (mu sync.RWMutex, running bool).
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/stakpak/agent-core/internal/checkexec"
	"github.com/stakpak/agent-core/internal/notify"
	"github.com/stakpak/agent-core/internal/promptassembler"
	"github.com/stakpak/agent-core/internal/warden"
	"github.com/stakpak/agent-core/pkg/models"
)

// Store is the schedule/run persistence boundary (C8).
type Store interface {
	ListEnabled(ctx context.Context) ([]models.Schedule, error)
	CreateRun(ctx context.Context, run *models.Run) error
	UpdateRun(ctx context.Context, run *models.Run) error
	// LastReloadAt returns the timestamp of the most recently written
	// RELOAD_SENTINEL row, or the zero time if none has ever been
	// triggered. Polled by the scheduler to pick up schedule changes
	// made by another process sharing the same store.
	LastReloadAt(ctx context.Context) (time.Time, error)
}

// defaultReloadPollInterval is how often a running Scheduler checks the
// RELOAD_SENTINEL for changes made by another process (e.g. `watch
// run`/`pause`/`resume`/`cancel` against a live `mcp server`).
const defaultReloadPollInterval = 3 * time.Second

// Dispatcher sends an assembled prompt and caller context to the agent
// over the transport (C7) and waits for completion.
type Dispatcher interface {
	Dispatch(ctx context.Context, schedule models.Schedule, prompt string, callerContext []models.CallerContextInput) error
}

// runState tracks one schedule's in-flight run for single-flight gating
// and cancellation cascade.
type runState struct {
	cancel context.CancelFunc
}

// Scheduler is a single logical task with its own clock; per-schedule
// execution is single-flight, different schedules run concurrently.
type Scheduler struct {
	cron       *cron.Cron
	store      Store
	dispatcher Dispatcher
	location   *time.Location

	mu      sync.RWMutex
	entries map[string]cron.EntryID
	running sync.Map // schedule name -> *runState

	wg       sync.WaitGroup
	notifier *notify.WebhookNotifier

	reloadPollInterval time.Duration
	lastReload         time.Time // owned by the poll goroutine after Start
	pollCancel         context.CancelFunc
}

// New builds a Scheduler evaluating cron expressions in UTC by default
// (spec's clock-skew/DST open question resolved to UTC, overridable).
func New(store Store, dispatcher Dispatcher, loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cron.VerbosePrintfLogger(log.New(log.Writer(), "scheduler: ", log.LstdFlags))),
	)
	return &Scheduler{
		cron:               c,
		store:              store,
		dispatcher:         dispatcher,
		location:           loc,
		entries:            make(map[string]cron.EntryID),
		notifier:           notify.NewWebhookNotifier(10 * time.Second),
		reloadPollInterval: defaultReloadPollInterval,
	}
}

// Start loads enabled schedules from the store, starts the cron clock,
// and starts the RELOAD_SENTINEL poll loop so schedule changes written
// by another process (the `watch` CLI against a live `mcp server`) take
// effect without a restart (spec.md's RELOAD_SENTINEL mechanism).
func (s *Scheduler) Start(ctx context.Context) error {
	if err := s.reconcile(ctx); err != nil {
		return err
	}
	if t, err := s.store.LastReloadAt(ctx); err == nil {
		s.lastReload = t
	}

	s.cron.Start()

	pollCtx, cancel := context.WithCancel(ctx)
	s.pollCancel = cancel
	s.wg.Add(1)
	go s.pollReload(pollCtx)
	return nil
}

// Stop cancels all in-flight runs, stops the reload poll loop, and
// stops the cron clock; in-flight runs' final persisted state becomes
// Cancelled.
func (s *Scheduler) Stop() {
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()

	if s.pollCancel != nil {
		s.pollCancel()
	}

	s.running.Range(func(key, value any) bool {
		value.(*runState).cancel()
		return true
	})
	s.wg.Wait()
}

// pollReload periodically checks the RELOAD_SENTINEL and reconciles the
// in-memory cron entries against the store whenever it has advanced.
func (s *Scheduler) pollReload(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.reloadPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t, err := s.store.LastReloadAt(ctx)
			if err != nil {
				log.Printf("scheduler: failed to check reload sentinel: %v", err)
				continue
			}
			if !t.After(s.lastReload) {
				continue
			}
			s.lastReload = t
			if err := s.reconcile(ctx); err != nil {
				log.Printf("scheduler: reload reconcile failed: %v", err)
			}
		}
	}
}

// reconcile loads every enabled schedule from the store, adds/updates
// each one, and removes any in-memory entry no longer enabled or
// present — the RELOAD_SENTINEL consumer spec.md §9/§3 describes.
func (s *Scheduler) reconcile(ctx context.Context) error {
	schedules, err := s.store.ListEnabled(ctx)
	if err != nil {
		return fmt.Errorf("failed to load enabled schedules: %w", err)
	}

	seen := make(map[string]bool, len(schedules))
	for _, sched := range schedules {
		seen[sched.Name] = true
		if err := s.Add(sched); err != nil {
			log.Printf("scheduler: failed to add schedule %q: %v", sched.Name, err)
		}
	}

	s.mu.RLock()
	var stale []string
	for name := range s.entries {
		if !seen[name] {
			stale = append(stale, name)
		}
	}
	s.mu.RUnlock()

	for _, name := range stale {
		s.Remove(name)
	}
	return nil
}

// IsScheduled reports whether name currently has a registered cron entry.
func (s *Scheduler) IsScheduled(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[name]
	return ok
}

// Add schedules (or re-schedules) sched, replacing any prior entry with
// the same name.
func (s *Scheduler) Add(sched models.Schedule) error {
	if sched.Name == models.ReloadSentinel {
		return fmt.Errorf("schedule name %q is reserved", models.ReloadSentinel)
	}
	if err := warden.ValidateProfile(sched.Profile); err != nil {
		return fmt.Errorf("schedule %q: %w", sched.Name, err)
	}
	sched.Normalize()

	s.Remove(sched.Name)

	name := sched.Name
	entryID, err := s.cron.AddFunc(sched.Cron, func() {
		s.fire(context.Background(), sched)
	})
	if err != nil {
		return fmt.Errorf("invalid cron expression %q for schedule %q: %w", sched.Cron, name, err)
	}

	s.mu.Lock()
	s.entries[name] = entryID
	s.mu.Unlock()
	return nil
}

// Remove unschedules a schedule by name; a no-op if it isn't scheduled.
func (s *Scheduler) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entryID, ok := s.entries[name]; ok {
		s.cron.Remove(entryID)
		delete(s.entries, name)
	}
}

// fire runs one tick for sched: single-flight gate, check evaluation,
// dispatch. It never panics the scheduler on a single run's failure.
func (s *Scheduler) fire(ctx context.Context, sched models.Schedule) {
	runCtx, cancel := context.WithCancel(ctx)
	if sched.Timeout != nil {
		runCtx, cancel = context.WithTimeout(ctx, *sched.Timeout)
	}

	if _, alreadyRunning := s.running.LoadOrStore(sched.Name, &runState{cancel: cancel}); alreadyRunning {
		cancel()
		s.recordSkip(ctx, sched, models.SkipOverlap, nil)
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		defer s.running.Delete(sched.Name)
		s.runOnce(runCtx, sched)
	}()
}

func (s *Scheduler) runOnce(ctx context.Context, sched models.Schedule) {
	run := &models.Run{
		ID:           newRunID(),
		ScheduleName: sched.Name,
		Status:       models.RunPending,
		StartedAt:    time.Now().UTC(),
	}

	var checkResult *models.CheckResult
	if sched.Check != nil && *sched.Check != "" {
		checkResult = checkexec.Run(ctx, *sched.Check, sched.CheckTimeout)
		run.CheckResult = checkResult
	}

	if !checkResult.Gate(sched.TriggerOn) {
		s.recordSkip(ctx, sched, models.SkipGate, checkResult)
		return
	}

	run.Status = models.RunRunning
	if err := s.store.CreateRun(ctx, run); err != nil {
		log.Printf("scheduler: failed to persist run start for %q: %v", sched.Name, err)
	}

	prompt := promptassembler.AssemblePrompt(sched, checkResult)
	callerContext := promptassembler.BuildCallerContext(sched, checkResult)

	err := s.dispatcher.Dispatch(ctx, sched, prompt, callerContext)
	stopped := time.Now().UTC()
	run.StoppedAt = &stopped

	switch {
	case ctx.Err() == context.Canceled:
		run.Status = models.RunCancelled
	case err != nil:
		run.Status = models.RunFailed
		msg := err.Error()
		run.Error = &msg
	default:
		run.Status = models.RunCompleted
	}

	if err := s.store.UpdateRun(context.WithoutCancel(ctx), run); err != nil {
		log.Printf("scheduler: failed to persist run completion for %q: %v", sched.Name, err)
	}

	notify.NotifyRunTerminal(context.WithoutCancel(ctx), s.notifier, sched, run)
}

func (s *Scheduler) recordSkip(ctx context.Context, sched models.Schedule, reason models.SkipReason, checkResult *models.CheckResult) {
	now := time.Now().UTC()
	run := &models.Run{
		ID:           newRunID(),
		ScheduleName: sched.Name,
		Status:       models.RunSkipped,
		StartedAt:    now,
		StoppedAt:    &now,
		SkipReason:   &reason,
		CheckResult:  checkResult,
	}
	if err := s.store.CreateRun(ctx, run); err != nil {
		log.Printf("scheduler: failed to persist skipped run for %q: %v", sched.Name, err)
	}
}

// IsRunning reports whether a run is currently in flight for name,
// satisfying the single-flight-per-schedule invariant.
func (s *Scheduler) IsRunning(name string) bool {
	_, ok := s.running.Load(name)
	return ok
}
