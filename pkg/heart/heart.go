// Package heart runs the periodic heartbeat scheduler: every tick it
// collects agents due for a heartbeat, snapshots their HUDs, submits one
// combined prompt to an aitransport.Transport, and dispatches the parsed
// actions back to each agent.
package heart

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nullcoward/holonic-engine/pkg/aitokens"
	"github.com/nullcoward/holonic-engine/pkg/aitransport"
	"github.com/nullcoward/holonic-engine/pkg/heartbeat"
	"github.com/nullcoward/holonic-engine/pkg/holonagent"
	"github.com/nullcoward/holonic-engine/pkg/holonhud"
	"github.com/nullcoward/holonic-engine/pkg/telemetry"
)

// TokenAllocation credits an agent with a fixed number of tokens every
// tick, regardless of solvency — the mechanism by which an insolvent
// agent's bank is topped back up.
type TokenAllocation struct {
	Agent  *holonagent.Agent
	Amount int
}

// Heart is the scheduler. Construct with New, register a heartbeat
// callback with OnHeartbeat if desired, then Start it.
type Heart struct {
	root      *holonagent.Agent
	transport aitransport.Transport
	estimator aitokens.Estimator
	telemetry *telemetry.Telemetry
	log       zerolog.Logger

	model            string
	interval         time.Duration
	maxTokens        int
	structuredOutput bool

	mu               sync.Mutex
	running          bool
	stopCh           chan struct{}
	doneCh           chan struct{}
	history              []*heartbeat.Heartbeat
	tokenAllocations     []TokenAllocation
	scheduledAllocations []*scheduledAllocation
	onHeartbeat          func(*heartbeat.Heartbeat)
}

// Option configures a Heart at construction time.
type Option func(*Heart)

// WithModel overrides the default model name ("gpt-4o", matching the
// original's default).
func WithModel(model string) Option {
	return func(h *Heart) { h.model = model }
}

// WithInterval overrides the tick interval (default 1 second).
func WithInterval(d time.Duration) Option {
	return func(h *Heart) { h.interval = d }
}

// WithMaxTokens overrides the max response tokens requested per AI call.
func WithMaxTokens(n int) Option {
	return func(h *Heart) { h.maxTokens = n }
}

// WithStructuredOutput toggles requesting schema-enforced JSON output on
// transports that support it (only honored when the transport detects as
// OpenAI, mirroring the original's client-type check).
func WithStructuredOutput(v bool) Option {
	return func(h *Heart) { h.structuredOutput = v }
}

// WithTelemetry attaches a telemetry collector; ticks are recorded into it
// if set.
func WithTelemetry(t *telemetry.Telemetry) Option {
	return func(h *Heart) { h.telemetry = t }
}

// New builds a Heart scheduling heartbeats for root and its descendants.
func New(root *holonagent.Agent, transport aitransport.Transport, estimator aitokens.Estimator, log zerolog.Logger, opts ...Option) *Heart {
	h := &Heart{
		root:             root,
		transport:        transport,
		estimator:        estimator,
		log:              log.With().Str("component", "heart").Logger(),
		model:            "gpt-4o",
		interval:         time.Second,
		maxTokens:        4096,
		structuredOutput: true,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// IsRunning reports whether the tick loop is active.
func (h *Heart) IsRunning() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.running
}

// Start launches the tick loop in a background goroutine. Calling Start
// on an already-running Heart is a no-op.
func (h *Heart) Start() {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return
	}
	h.running = true
	h.stopCh = make(chan struct{})
	h.doneCh = make(chan struct{})
	h.mu.Unlock()

	go h.runLoop()
}

// Stop halts the tick loop and waits up to 2x the tick interval for it to
// exit. Calling Stop when not running is a no-op.
func (h *Heart) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	stopCh := h.stopCh
	doneCh := h.doneCh
	h.mu.Unlock()

	close(stopCh)
	select {
	case <-doneCh:
	case <-time.After(2 * h.interval):
		h.log.Warn().Msg("heart did not stop within twice the tick interval")
	}
}

func (h *Heart) runLoop() {
	defer close(h.doneCh)
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-h.stopCh:
			return
		case <-ticker.C:
			hb, err := h.Beat(context.Background())
			if err != nil {
				h.log.Error().Err(err).Msg("heartbeat tick failed")
				continue
			}
			if hb != nil && hb.Len() > 0 {
				h.mu.Lock()
				cb := h.onHeartbeat
				h.mu.Unlock()
				if cb != nil {
					cb(hb)
				}
			}
		}
	}
}

// OnHeartbeat registers a callback invoked after each non-empty
// heartbeat completes. Only one callback is held at a time; registering
// again replaces the previous one.
func (h *Heart) OnHeartbeat(cb func(*heartbeat.Heartbeat)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onHeartbeat = cb
}

// AddTokenAllocation registers a standing per-tick credit for agent.
func (h *Heart) AddTokenAllocation(agent *holonagent.Agent, amount int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.tokenAllocations = append(h.tokenAllocations, TokenAllocation{Agent: agent, Amount: amount})
}

// RemoveTokenAllocation drops every standing allocation for agent,
// reporting whether any existed.
func (h *Heart) RemoveTokenAllocation(agent *holonagent.Agent) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	before := len(h.tokenAllocations)
	kept := h.tokenAllocations[:0:0]
	for _, a := range h.tokenAllocations {
		if a.Agent != agent {
			kept = append(kept, a)
		}
	}
	h.tokenAllocations = kept
	return len(kept) < before
}

// SetTokenAllocation replaces any standing allocations for agent with a
// single one of amount.
func (h *Heart) SetTokenAllocation(agent *holonagent.Agent, amount int) {
	h.RemoveTokenAllocation(agent)
	h.AddTokenAllocation(agent, amount)
}

// History returns a copy of every heartbeat recorded so far, oldest first.
func (h *Heart) History() []*heartbeat.Heartbeat {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]*heartbeat.Heartbeat{}, h.history...)
}

type dueAgent struct {
	agent *holonagent.Agent
	next  time.Time
}

// Beat executes one heartbeat cycle synchronously: credit standing token
// allocations, collect due agents, submit one combined prompt, and
// dispatch the parsed actions. Returns nil if no agent was due.
func (h *Heart) Beat(ctx context.Context) (*heartbeat.Heartbeat, error) {
	start := time.Now()

	now := time.Now().UTC()
	heartbeatTime := now.Truncate(time.Second)
	nextSecond := heartbeatTime.Add(time.Second)

	h.mu.Lock()
	allocations := append([]TokenAllocation{}, h.tokenAllocations...)
	h.mu.Unlock()

	for _, alloc := range allocations {
		alloc.Agent.AddTokens(ctx, alloc.Amount)
		if h.telemetry != nil {
			h.telemetry.RecordTokenAllocation(alloc.Agent.ID(), alloc.Amount, now)
		}
		h.log.Debug().Str("agent_id", alloc.Agent.ID()).Int("amount", alloc.Amount).Int("token_bank", alloc.Agent.TokenBank()).Msg("token allocation applied")
	}

	h.applyScheduledAllocations(ctx, heartbeatTime)

	due := collectDueAgents(h.root, nextSecond)
	if len(due) == 0 {
		return nil, nil
	}

	h.log.Info().Time("heartbeat_time", heartbeatTime).Int("agent_count", len(due)).Msg("heartbeat tick starting")

	hb := heartbeat.New(heartbeatTime)
	for _, d := range due {
		hud, err := holonhud.Build(d.agent, h.estimator, h.model)
		if err != nil {
			return nil, err
		}
		hb.AddAgent(d.agent.ID(), hud, d.next)
		if !d.agent.MarkHeartbeatActive() {
			continue
		}
		if h.telemetry != nil {
			h.telemetry.RecordAgentHeartbeat(d.agent.ID())
		}
	}

	execTime := time.Now().UTC()
	hb.ExecutionTime = &execTime

	h.mu.Lock()
	h.history = append(h.history, hb)
	h.mu.Unlock()

	prompt, err := hb.BuildPrompt()
	if err != nil {
		return nil, err
	}
	promptTokens, _ := h.estimator.CountTokens(h.model, prompt)
	h.log.Debug().Int("prompt_tokens", promptTokens).Str("model", h.model).Msg("submitting heartbeat prompt")

	structured := h.structuredOutput
	if kind, err := aitransport.DetectVendor(h.transport); err != nil || kind != aitransport.VendorOpenAI {
		structured = false
	}

	aiStart := time.Now()
	responseText, err := h.transport.Send(ctx, prompt, h.model, h.maxTokens, structured)
	aiDurationMs := float64(time.Since(aiStart).Microseconds()) / 1000.0
	if err != nil {
		clearActive(due)
		return nil, err
	}

	completionTime := time.Now().UTC()
	hb.CompletionTime = &completionTime

	responseTokens, _ := h.estimator.CountTokens(h.model, responseText)
	h.log.Debug().Int("response_tokens", responseTokens).Float64("duration_ms", aiDurationMs).Msg("heartbeat AI call complete")
	if h.telemetry != nil {
		h.telemetry.RecordAICall(aiDurationMs, promptTokens, responseTokens, now)
	}

	if err := hb.ProcessResponse(responseText); err != nil {
		clearActive(due)
		return nil, err
	}

	h.dispatch(ctx, hb, due)

	totalMs := float64(time.Since(start).Microseconds()) / 1000.0
	if h.telemetry != nil {
		h.telemetry.RecordHeartbeat(totalMs, len(due), now)
	}
	h.log.Info().Time("heartbeat_time", heartbeatTime).Int("agent_count", len(due)).Float64("duration_ms", totalMs).Msg("heartbeat tick complete")

	return hb, nil
}

func clearActive(due []dueAgent) {
	for _, d := range due {
		d.agent.ClearHeartbeatActive()
	}
}

// dispatch delivers each record's parsed actions to its agent, then clears
// the agent's active-heartbeat marker with ClearHeartbeatActive
// (ActionResults itself only advances the heartbeat clock), so dispatch
// is what releases an agent back to being schedulable.
func (h *Heart) dispatch(ctx context.Context, hb *heartbeat.Heartbeat, due []dueAgent) {
	byID := make(map[string]*holonagent.Agent, len(due))
	for _, d := range due {
		byID[d.agent.ID()] = d.agent
	}

	for _, record := range hb.Records() {
		agent, ok := byID[record.AgentID]
		if !ok {
			continue
		}
		calls := parseActionCalls(record.ActionsResult)
		outcomes := agent.ActionResults(ctx, hb.HeartbeatTime, calls)
		agent.ClearHeartbeatActive()

		if h.telemetry == nil {
			continue
		}
		for i, outcome := range outcomes {
			h.telemetry.RecordAction(agent.ID(), outcome.Action, 0, outcome.Err == nil, time.Now())
			if outcome.Err != nil {
				h.telemetry.RecordError("action_dispatch", outcome.Err.Error(), map[string]any{
					"agent_id": agent.ID(),
					"action":   outcome.Action,
					"index":    i,
				}, time.Now())
			}
		}
	}
}

// parseActionCalls converts one agent's raw {"actions": [...]} reply
// fragment into action calls, skipping entries that aren't shaped as
// expected rather than failing the whole heartbeat.
func parseActionCalls(result map[string]any) []holonagent.ActionCall {
	raw, _ := result["actions"].([]any)
	calls := make([]holonagent.ActionCall, 0, len(raw))
	for _, item := range raw {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		name, ok := entry["action"].(string)
		if !ok || name == "" {
			continue
		}
		params, _ := entry["params"].(map[string]any)
		calls = append(calls, holonagent.ActionCall{Action: name, Params: params})
	}
	return calls
}

// collectDueAgents walks the tree rooted at root and returns every agent
// whose next heartbeat falls strictly before boundary, has a non-negative
// token bank, and isn't already mid-heartbeat.
func collectDueAgents(root *holonagent.Agent, boundary time.Time) []dueAgent {
	var out []dueAgent
	for _, entry := range root.CollectDue() {
		if entry.Next.Before(boundary) && entry.Agent.IsSolvent() && !entry.Agent.ActiveHeartbeat() {
			out = append(out, dueAgent{agent: entry.Agent, next: entry.Next})
		}
	}
	return out
}
