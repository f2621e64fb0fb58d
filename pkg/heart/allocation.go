package heart

import (
	"context"
	"strings"
	"time"

	cronlib "github.com/robfig/cron/v3"

	"github.com/nullcoward/holonic-engine/pkg/holonagent"
)

var cronParser = cronlib.NewParser(cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow | cronlib.Descriptor)

// scheduledAllocation is a standing token credit gated by a cron
// expression rather than applied on every tick. nextRun is advanced each
// time the allocation fires.
type scheduledAllocation struct {
	agent   *holonagent.Agent
	amount  int
	sched   cronlib.Schedule
	nextRun time.Time
}

// AddScheduledAllocation registers a recurring credit for agent, due at
// times computed by the standard five-field cron expression cronExpr.
// Returns an error if the expression doesn't parse. The first run is
// computed from the current time.
func (h *Heart) AddScheduledAllocation(agent *holonagent.Agent, amount int, cronExpr string) error {
	sched, err := cronParser.Parse(strings.TrimSpace(cronExpr))
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	h.mu.Lock()
	h.scheduledAllocations = append(h.scheduledAllocations, &scheduledAllocation{
		agent:   agent,
		amount:  amount,
		sched:   sched,
		nextRun: sched.Next(now),
	})
	h.mu.Unlock()
	return nil
}

// RemoveScheduledAllocations drops every cron-scheduled allocation for
// agent, reporting whether any existed.
func (h *Heart) RemoveScheduledAllocations(agent *holonagent.Agent) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	before := len(h.scheduledAllocations)
	kept := h.scheduledAllocations[:0:0]
	for _, a := range h.scheduledAllocations {
		if a.agent != agent {
			kept = append(kept, a)
		}
	}
	h.scheduledAllocations = kept
	return len(kept) < before
}

// applyScheduledAllocations credits every cron allocation whose nextRun
// has passed beatTime, advancing nextRun for each one fired.
func (h *Heart) applyScheduledAllocations(ctx context.Context, beatTime time.Time) {
	h.mu.Lock()
	due := make([]*scheduledAllocation, 0)
	for _, a := range h.scheduledAllocations {
		if !a.nextRun.After(beatTime) {
			due = append(due, a)
		}
	}
	h.mu.Unlock()

	for _, a := range due {
		a.agent.AddTokens(ctx, a.amount)
		a.nextRun = a.sched.Next(beatTime)
		if h.telemetry != nil {
			h.telemetry.RecordTokenAllocation(a.agent.ID(), a.amount, beatTime)
		}
		h.log.Debug().Str("agent_id", a.agent.ID()).Int("amount", a.amount).Int("token_bank", a.agent.TokenBank()).Msg("scheduled token allocation applied")
	}
}
