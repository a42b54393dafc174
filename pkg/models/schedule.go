// Package models holds the shared data model for the autopilot scheduler
// and the session context assembly pipeline.
package models

import "time"

// TriggerMode is a predicate over a CheckResult deciding whether a run
// proceeds from Pending to Running.
type TriggerMode string

const (
	TriggerExitZero    TriggerMode = "exit_zero"
	TriggerExitNonZero TriggerMode = "exit_nonzero"
	TriggerAlways      TriggerMode = "always"
)

// Schedule is an immutable descriptor of a recurring job.
type Schedule struct {
	Name             string        `json:"name" db:"name"`
	Cron             string        `json:"cron" db:"cron"`
	Check            *string       `json:"check,omitempty" db:"check_path"`
	CheckTimeout     *time.Duration `json:"check_timeout,omitempty" db:"check_timeout"`
	TriggerOn        TriggerMode   `json:"trigger_on" db:"trigger_on"`
	Prompt           string        `json:"prompt" db:"prompt"`
	Profile          *string       `json:"profile,omitempty" db:"profile"`
	BoardID          *string       `json:"board_id,omitempty" db:"board_id"`
	Timeout          *time.Duration `json:"timeout,omitempty" db:"timeout"`
	EnableTools      bool          `json:"enable_tools" db:"enable_tools"`
	EnableSlackTools bool          `json:"enable_slack_tools" db:"enable_slack_tools"`
	NotifyChannel    *string       `json:"notify_channel,omitempty" db:"notify_channel"`
	NotifyChatID     *string       `json:"notify_chat_id,omitempty" db:"notify_chat_id"`
	Enabled          bool          `json:"enabled" db:"enabled"`
}

// Normalize fills in the trigger_on default per spec: exit_zero when a
// check script is set, always when it is not. check_timeout is only
// meaningful when check is set.
func (s *Schedule) Normalize() {
	if s.TriggerOn == "" {
		if s.Check != nil && *s.Check != "" {
			s.TriggerOn = TriggerExitZero
		} else {
			s.TriggerOn = TriggerAlways
		}
	}
	if s.Check == nil || *s.Check == "" {
		s.CheckTimeout = nil
	}
}

// CheckResult is the output of one check-script execution.
type CheckResult struct {
	ExitCode *int   `json:"exit_code,omitempty"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	TimedOut bool   `json:"timed_out"`
}

// Gate evaluates trigger against this result. A nil result only ever
// occurs when the schedule has no check, which implies TriggerAlways.
func (r *CheckResult) Gate(trigger TriggerMode) bool {
	switch trigger {
	case TriggerAlways:
		return true
	case TriggerExitZero:
		return r != nil && !r.TimedOut && r.ExitCode != nil && *r.ExitCode == 0
	case TriggerExitNonZero:
		return r != nil && !r.TimedOut && r.ExitCode != nil && *r.ExitCode != 0
	default:
		return false
	}
}

// RunStatus is the lifecycle state of a persisted Run.
type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
	RunCancelled RunStatus = "cancelled"
	RunSkipped   RunStatus = "skipped"
)

// IsTerminal reports whether status can no longer transition.
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunCompleted, RunFailed, RunCancelled, RunSkipped:
		return true
	default:
		return false
	}
}

// InteractiveDelegatedNote marks a run whose execution was handed off to
// an interactive session rather than dispatched headlessly.
const InteractiveDelegatedNote = "execution delegated to interactive session"

// ReloadSentinel is the store-internal schedule name meaning "configuration
// reloaded; drop in-memory timers and re-read." It is never a real schedule.
const ReloadSentinel = "__reload__"

// SkipReason narrows why a run ended in RunSkipped.
type SkipReason string

const (
	SkipOverlap SkipReason = "overlap"
	SkipGate    SkipReason = "gate"
)

// Run is a persisted record of a single schedule firing.
type Run struct {
	ID          string       `json:"id" db:"id"`
	ScheduleName string      `json:"schedule_name" db:"schedule_name"`
	Status      RunStatus    `json:"status" db:"status"`
	StartedAt   time.Time    `json:"started_at" db:"started_at"`
	StoppedAt   *time.Time   `json:"stopped_at,omitempty" db:"stopped_at"`
	CheckResult *CheckResult `json:"check_result,omitempty" db:"check_result_json"`
	SkipReason  *SkipReason  `json:"skip_reason,omitempty" db:"skip_reason"`
	Error       *string      `json:"error,omitempty" db:"error"`
	Note        *string      `json:"note,omitempty" db:"note"`
}
