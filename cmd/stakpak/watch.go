package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/stakpak/agent-core/internal/schedulestore"
	"github.com/stakpak/agent-core/pkg/models"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Manage autopilot watch schedules",
}

var (
	watchCron         string
	watchCheck        string
	watchCheckTimeout time.Duration
	watchTriggerOn    string
	watchPrompt       string
	watchProfile      string
	watchBoardID      string
	watchTimeout      time.Duration
	watchEnableTools  bool
	watchEnableSlack  bool
	watchNotifyChan   string
	watchNotifyChat   string

	watchListSchedule string
	watchListStatus   string
	watchListLimit    int
)

var watchRunCmd = &cobra.Command{
	Use:   "run <name>",
	Short: "Create or update a watch schedule and enable it",
	Args:  cobra.ExactArgs(1),
	RunE:  runWatchRun,
}

var watchListCmd = &cobra.Command{
	Use:   "list",
	Short: "List watch schedules and their recent runs",
	RunE:  runWatchList,
}

var watchPauseCmd = &cobra.Command{
	Use:   "pause <name>",
	Short: "Disable a watch schedule without deleting it",
	Args:  cobra.ExactArgs(1),
	RunE:  runWatchPause,
}

var watchResumeCmd = &cobra.Command{
	Use:   "resume <name>",
	Short: "Re-enable a paused watch schedule",
	Args:  cobra.ExactArgs(1),
	RunE:  runWatchResume,
}

var watchCancelCmd = &cobra.Command{
	Use:   "cancel <name>",
	Short: "Delete a watch schedule",
	Args:  cobra.ExactArgs(1),
	RunE:  runWatchCancel,
}

func init() {
	watchRunCmd.Flags().StringVar(&watchCron, "cron", "", "5-field cron expression (required)")
	watchRunCmd.Flags().StringVar(&watchCheck, "check", "", "path to a check script gating this schedule")
	watchRunCmd.Flags().DurationVar(&watchCheckTimeout, "check-timeout", 0, "check script timeout, e.g. 30s")
	watchRunCmd.Flags().StringVar(&watchTriggerOn, "trigger-on", "", "exit_zero|exit_nonzero|always (default inferred from --check)")
	watchRunCmd.Flags().StringVar(&watchPrompt, "prompt", "", "prompt template dispatched to the agent (required)")
	watchRunCmd.Flags().StringVar(&watchProfile, "profile", "", "agent profile to dispatch with")
	watchRunCmd.Flags().StringVar(&watchBoardID, "board-id", "", "board to attach dispatched runs to")
	watchRunCmd.Flags().DurationVar(&watchTimeout, "timeout", 0, "overall run timeout, e.g. 5m")
	watchRunCmd.Flags().BoolVar(&watchEnableTools, "enable-tools", false, "allow the dispatched run to use tools")
	watchRunCmd.Flags().BoolVar(&watchEnableSlack, "enable-slack-tools", false, "allow the dispatched run to use Slack tools")
	watchRunCmd.Flags().StringVar(&watchNotifyChan, "notify-channel", "", "Slack channel to notify on completion")
	watchRunCmd.Flags().StringVar(&watchNotifyChat, "notify-chat-id", "", "chat id to notify on completion")
	watchRunCmd.MarkFlagRequired("cron")
	watchRunCmd.MarkFlagRequired("prompt")

	watchListCmd.Flags().StringVar(&watchListSchedule, "schedule", "", "filter runs to one schedule name")
	watchListCmd.Flags().StringVar(&watchListStatus, "status", "", "filter runs by status")
	watchListCmd.Flags().IntVar(&watchListLimit, "limit", 20, "maximum number of runs to show")
}

func runWatchRun(cmd *cobra.Command, args []string) error {
	store, closeStore, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	sched := models.Schedule{
		Name:             args[0],
		Cron:             watchCron,
		TriggerOn:        models.TriggerMode(watchTriggerOn),
		Prompt:           watchPrompt,
		EnableTools:      watchEnableTools,
		EnableSlackTools: watchEnableSlack,
		Enabled:          true,
	}
	if watchCheck != "" {
		sched.Check = &watchCheck
	}
	if watchCheckTimeout > 0 {
		sched.CheckTimeout = &watchCheckTimeout
	}
	if watchProfile != "" {
		sched.Profile = &watchProfile
	}
	if watchBoardID != "" {
		sched.BoardID = &watchBoardID
	}
	if watchTimeout > 0 {
		sched.Timeout = &watchTimeout
	}
	if watchNotifyChan != "" {
		sched.NotifyChannel = &watchNotifyChan
	}
	if watchNotifyChat != "" {
		sched.NotifyChatID = &watchNotifyChat
	}

	ctx := cmd.Context()
	if err := store.Upsert(ctx, sched); err != nil {
		return err
	}
	if err := store.TriggerReload(ctx); err != nil {
		return fmt.Errorf("schedule saved but failed to signal reload: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "watch %q scheduled (%s)\n", sched.Name, sched.Cron)
	return nil
}

func runWatchList(cmd *cobra.Command, args []string) error {
	store, closeStore, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	ctx := cmd.Context()
	schedules, err := store.List(ctx)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, sched := range schedules {
		state := "enabled"
		if !sched.Enabled {
			state = "paused"
		}
		fmt.Fprintf(out, "%-24s %-16s %s\n", sched.Name, sched.Cron, state)
	}

	var statusFilter *models.RunStatus
	if watchListStatus != "" {
		s := models.RunStatus(watchListStatus)
		statusFilter = &s
	}
	runs, err := store.ListRuns(ctx, schedulestore.ListRunsFilter{
		ScheduleName: watchListSchedule,
		Status:       statusFilter,
		Limit:        watchListLimit,
	})
	if err != nil {
		return err
	}
	if len(runs) > 0 {
		fmt.Fprintln(out, "\nrecent runs:")
		for _, run := range runs {
			fmt.Fprintf(out, "%-36s %-24s %-10s %s\n", run.ID, run.ScheduleName, run.Status, run.StartedAt.Format(time.RFC3339))
		}
	}
	return nil
}

func runWatchPause(cmd *cobra.Command, args []string) error {
	return setWatchEnabled(cmd, args[0], false)
}

func runWatchResume(cmd *cobra.Command, args []string) error {
	return setWatchEnabled(cmd, args[0], true)
}

func setWatchEnabled(cmd *cobra.Command, name string, enabled bool) error {
	store, closeStore, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	ctx := cmd.Context()
	if err := store.SetEnabled(ctx, name, enabled); err != nil {
		return err
	}
	if err := store.TriggerReload(ctx); err != nil {
		return fmt.Errorf("state updated but failed to signal reload: %w", err)
	}
	verb := "paused"
	if enabled {
		verb = "resumed"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "watch %q %s\n", name, verb)
	return nil
}

func runWatchCancel(cmd *cobra.Command, args []string) error {
	store, closeStore, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	ctx := cmd.Context()
	if err := store.Delete(ctx, args[0]); err != nil {
		return err
	}
	if err := store.TriggerReload(ctx); err != nil {
		return fmt.Errorf("schedule deleted but failed to signal reload: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "watch %q cancelled\n", args[0])
	return nil
}
