package schedulestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/stakpak/agent-core/internal/warden"
	"github.com/stakpak/agent-core/pkg/models"
)

// Store is the sqlite-backed repository for Schedules and Runs. It
// satisfies internal/scheduler.Store.
type Store struct {
	db     *sql.DB
	tracer trace.Tracer
}

// New wraps conn in a Store, following the platform's
// otel.Tracer("station-database")-per-repository convention.
func New(conn *sql.DB) *Store {
	return &Store{db: conn, tracer: otel.Tracer("agent-core-schedulestore")}
}

// ErrNotFound is returned when a named schedule does not exist.
var ErrNotFound = errors.New("schedule not found")

// Upsert creates or replaces the schedule row named sched.Name.
func (s *Store) Upsert(ctx context.Context, sched models.Schedule) error {
	ctx, span := s.tracer.Start(ctx, "schedulestore.Upsert")
	defer span.End()
	span.SetAttributes(attribute.String("schedule.name", sched.Name))

	sched.Normalize()
	if err := warden.ValidateProfile(sched.Profile); err != nil {
		return fmt.Errorf("schedule %q: %w", sched.Name, err)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO schedules (
			name, cron, check_path, check_timeout_ms, trigger_on, prompt, profile,
			board_id, timeout_ms, enable_tools, enable_slack_tools, notify_channel,
			notify_chat_id, enabled
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			cron = excluded.cron,
			check_path = excluded.check_path,
			check_timeout_ms = excluded.check_timeout_ms,
			trigger_on = excluded.trigger_on,
			prompt = excluded.prompt,
			profile = excluded.profile,
			board_id = excluded.board_id,
			timeout_ms = excluded.timeout_ms,
			enable_tools = excluded.enable_tools,
			enable_slack_tools = excluded.enable_slack_tools,
			notify_channel = excluded.notify_channel,
			notify_chat_id = excluded.notify_chat_id,
			enabled = excluded.enabled
	`,
		sched.Name, sched.Cron, sched.Check, durationMillis(sched.CheckTimeout), string(sched.TriggerOn),
		sched.Prompt, sched.Profile, sched.BoardID, durationMillis(sched.Timeout),
		sched.EnableTools, sched.EnableSlackTools, sched.NotifyChannel, sched.NotifyChatID, sched.Enabled,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert schedule %q: %w", sched.Name, err)
	}
	return nil
}

// Get returns the named schedule, or ErrNotFound.
func (s *Store) Get(ctx context.Context, name string) (models.Schedule, error) {
	ctx, span := s.tracer.Start(ctx, "schedulestore.Get")
	defer span.End()

	row := s.db.QueryRowContext(ctx, scheduleSelect+" WHERE name = ?", name)
	sched, err := scanSchedule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Schedule{}, ErrNotFound
	}
	if err != nil {
		return models.Schedule{}, fmt.Errorf("failed to get schedule %q: %w", name, err)
	}
	return sched, nil
}

// List returns every schedule, reload sentinel excluded, ordered by name.
func (s *Store) List(ctx context.Context) ([]models.Schedule, error) {
	ctx, span := s.tracer.Start(ctx, "schedulestore.List")
	defer span.End()

	rows, err := s.db.QueryContext(ctx, scheduleSelect+" WHERE name != ? ORDER BY name", models.ReloadSentinel)
	if err != nil {
		return nil, fmt.Errorf("failed to list schedules: %w", err)
	}
	defer rows.Close()

	var out []models.Schedule
	for rows.Next() {
		sched, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan schedule row: %w", err)
		}
		out = append(out, sched)
	}
	return out, rows.Err()
}

// ListEnabled returns every enabled schedule, satisfying scheduler.Store.
func (s *Store) ListEnabled(ctx context.Context) ([]models.Schedule, error) {
	ctx, span := s.tracer.Start(ctx, "schedulestore.ListEnabled")
	defer span.End()

	rows, err := s.db.QueryContext(ctx, scheduleSelect+" WHERE enabled = 1 AND name != ? ORDER BY name", models.ReloadSentinel)
	if err != nil {
		return nil, fmt.Errorf("failed to list enabled schedules: %w", err)
	}
	defer rows.Close()

	var out []models.Schedule
	for rows.Next() {
		sched, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan schedule row: %w", err)
		}
		out = append(out, sched)
	}
	return out, rows.Err()
}

// SetEnabled toggles a schedule's enabled flag (pause/resume).
func (s *Store) SetEnabled(ctx context.Context, name string, enabled bool) error {
	ctx, span := s.tracer.Start(ctx, "schedulestore.SetEnabled")
	defer span.End()

	res, err := s.db.ExecContext(ctx, `UPDATE schedules SET enabled = ? WHERE name = ?`, enabled, name)
	if err != nil {
		return fmt.Errorf("failed to set enabled=%v for schedule %q: %w", enabled, name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a schedule by name.
func (s *Store) Delete(ctx context.Context, name string) error {
	ctx, span := s.tracer.Start(ctx, "schedulestore.Delete")
	defer span.End()

	res, err := s.db.ExecContext(ctx, `DELETE FROM schedules WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("failed to delete schedule %q: %w", name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateRun inserts a new run row.
func (s *Store) CreateRun(ctx context.Context, run *models.Run) error {
	ctx, span := s.tracer.Start(ctx, "schedulestore.CreateRun")
	defer span.End()
	span.SetAttributes(attribute.String("schedule.name", run.ScheduleName), attribute.String("run.status", string(run.Status)))

	checkJSON, err := marshalCheckResult(run.CheckResult)
	if err != nil {
		return fmt.Errorf("failed to marshal check result for run %q: %w", run.ID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (id, schedule_name, status, started_at, stopped_at, check_result_json, skip_reason, error, note)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.ScheduleName, string(run.Status), run.StartedAt, run.StoppedAt, checkJSON, run.SkipReason, run.Error, run.Note)
	if err != nil {
		return fmt.Errorf("failed to create run %q: %w", run.ID, err)
	}
	return nil
}

// UpdateRun persists a run's terminal (or mid-flight) state.
func (s *Store) UpdateRun(ctx context.Context, run *models.Run) error {
	ctx, span := s.tracer.Start(ctx, "schedulestore.UpdateRun")
	defer span.End()
	span.SetAttributes(attribute.String("schedule.name", run.ScheduleName), attribute.String("run.status", string(run.Status)))

	checkJSON, err := marshalCheckResult(run.CheckResult)
	if err != nil {
		return fmt.Errorf("failed to marshal check result for run %q: %w", run.ID, err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, stopped_at = ?, check_result_json = ?, skip_reason = ?, error = ?, note = ?
		WHERE id = ?
	`, string(run.Status), run.StoppedAt, checkJSON, run.SkipReason, run.Error, run.Note, run.ID)
	if err != nil {
		return fmt.Errorf("failed to update run %q: %w", run.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Run wasn't persisted at creation (e.g. a skip recorded in one
		// shot); fall back to insert-or-replace semantics.
		return s.CreateRun(ctx, run)
	}
	return nil
}

// ListRunsFilter narrows ListRuns by schedule name and/or status.
type ListRunsFilter struct {
	ScheduleName string
	Status       *models.RunStatus
	Limit        int
}

// ListRuns returns runs matching filter, most recent first.
func (s *Store) ListRuns(ctx context.Context, filter ListRunsFilter) ([]models.Run, error) {
	ctx, span := s.tracer.Start(ctx, "schedulestore.ListRuns")
	defer span.End()

	query := `SELECT id, schedule_name, status, started_at, stopped_at, check_result_json, skip_reason, error, note FROM runs WHERE 1=1`
	var args []any
	if filter.ScheduleName != "" {
		query += " AND schedule_name = ?"
		args = append(args, filter.ScheduleName)
	}
	if filter.Status != nil {
		query += " AND status = ?"
		args = append(args, string(*filter.Status))
	}
	query += " ORDER BY started_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var out []models.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// TriggerReload writes the RELOAD_SENTINEL row, signaling any running
// scheduler to drop in-memory timers and re-read schedules from the store.
func (s *Store) TriggerReload(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "schedulestore.TriggerReload")
	defer span.End()

	run := &models.Run{
		ID:           newReloadID(),
		ScheduleName: models.ReloadSentinel,
		Status:       models.RunCompleted,
		StartedAt:    time.Now().UTC(),
	}
	return s.CreateRun(ctx, run)
}

// LastReloadAt returns the timestamp of the most recent reload sentinel,
// or the zero time if none has ever been triggered.
func (s *Store) LastReloadAt(ctx context.Context) (time.Time, error) {
	ctx, span := s.tracer.Start(ctx, "schedulestore.LastReloadAt")
	defer span.End()

	var t time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT started_at FROM runs WHERE schedule_name = ? ORDER BY started_at DESC LIMIT 1`,
		models.ReloadSentinel,
	).Scan(&t)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read last reload time: %w", err)
	}
	return t, nil
}

const scheduleSelect = `
	SELECT name, cron, check_path, check_timeout_ms, trigger_on, prompt, profile,
	       board_id, timeout_ms, enable_tools, enable_slack_tools, notify_channel,
	       notify_chat_id, enabled
	FROM schedules`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSchedule(row rowScanner) (models.Schedule, error) {
	var sched models.Schedule
	var checkTimeoutMs, timeoutMs sql.NullInt64
	var triggerOn string
	err := row.Scan(
		&sched.Name, &sched.Cron, &sched.Check, &checkTimeoutMs, &triggerOn, &sched.Prompt, &sched.Profile,
		&sched.BoardID, &timeoutMs, &sched.EnableTools, &sched.EnableSlackTools, &sched.NotifyChannel,
		&sched.NotifyChatID, &sched.Enabled,
	)
	if err != nil {
		return models.Schedule{}, err
	}
	sched.TriggerOn = models.TriggerMode(triggerOn)
	if checkTimeoutMs.Valid {
		d := time.Duration(checkTimeoutMs.Int64) * time.Millisecond
		sched.CheckTimeout = &d
	}
	if timeoutMs.Valid {
		d := time.Duration(timeoutMs.Int64) * time.Millisecond
		sched.Timeout = &d
	}
	return sched, nil
}

func scanRun(row rowScanner) (models.Run, error) {
	var run models.Run
	var status string
	var checkJSON sql.NullString
	var skipReason sql.NullString
	err := row.Scan(&run.ID, &run.ScheduleName, &status, &run.StartedAt, &run.StoppedAt, &checkJSON, &skipReason, &run.Error, &run.Note)
	if err != nil {
		return models.Run{}, err
	}
	run.Status = models.RunStatus(status)
	if skipReason.Valid {
		reason := models.SkipReason(skipReason.String)
		run.SkipReason = &reason
	}
	if checkJSON.Valid && checkJSON.String != "" {
		var result models.CheckResult
		if err := json.Unmarshal([]byte(checkJSON.String), &result); err != nil {
			return models.Run{}, err
		}
		run.CheckResult = &result
	}
	return run, nil
}

func marshalCheckResult(r *models.CheckResult) (*string, error) {
	if r == nil {
		return nil, nil
	}
	b, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	s := string(b)
	return &s, nil
}

func durationMillis(d *time.Duration) *int64 {
	if d == nil {
		return nil
	}
	ms := d.Milliseconds()
	return &ms
}
