package transport

import (
	"context"
	"fmt"

	"github.com/stakpak/agent-core/pkg/models"
)

// AgentDispatcher adapts a DispatchClient to internal/scheduler.Dispatcher.
type AgentDispatcher struct {
	client *DispatchClient
}

func NewAgentDispatcher(client *DispatchClient) *AgentDispatcher {
	return &AgentDispatcher{client: client}
}

func (d *AgentDispatcher) Dispatch(ctx context.Context, schedule models.Schedule, prompt string, callerContext []models.CallerContextInput) error {
	resp, err := d.client.Dispatch(ctx, &DispatchRequest{
		ScheduleName:  schedule.Name,
		Prompt:        prompt,
		CallerContext: callerContext,
		Profile:       schedule.Profile,
	})
	if err != nil {
		return fmt.Errorf("dispatch to agent failed for schedule %q: %w", schedule.Name, err)
	}
	if resp.Error != "" {
		return fmt.Errorf("agent reported error for schedule %q: %s", schedule.Name, resp.Error)
	}
	return nil
}
