// Package heartbeat implements the immutable record of one heartbeat
// cycle: the HUD snapshots taken at add-time, the combined prompt sent to
// the AI, the raw and parsed replies, and per-agent action dispatch
// results.
package heartbeat

import (
	"encoding/json"
	"fmt"
	"time"
)

// Agent is the subset of *holonagent.Agent a Heartbeat needs. Declaring it
// here (rather than importing holonagent) avoids a dependency cycle, since
// holonagent.ActionCall/ActionOutcome are consumed by the scheduler that
// also depends on this package.
type Agent interface {
	ID() string
	NextHeartbeat() time.Time
}

// Record captures one agent's participation in a Heartbeat: the HUD it
// was sent, when it was scheduled, and the raw actions payload the AI
// returned for it.
type Record struct {
	AgentID       string
	HUDSnapshot   map[string]any
	ScheduledTime time.Time
	ActionsResult map[string]any
}

// Heartbeat is one scheduler tick: PENDING until ExecutionTime is set,
// ACTIVE until CompletionTime is set, then COMPLETE.
type Heartbeat struct {
	HeartbeatTime  time.Time
	ExecutionTime  *time.Time
	CompletionTime *time.Time

	records        []Record
	FullPrompt     string
	RawResponse    string
	ParsedResponse map[string]any
}

// New creates a PENDING heartbeat for the given cycle time.
func New(heartbeatTime time.Time) *Heartbeat {
	return &Heartbeat{HeartbeatTime: heartbeatTime}
}

// AddAgent records an agent's participation, snapshotting its HUD
// immutably at add-time. scheduledTime is stored as given: a zero value
// stays zero and is not replaced by the agent's next_heartbeat.
func (h *Heartbeat) AddAgent(agentID string, hud map[string]any, scheduledTime time.Time) {
	h.records = append(h.records, Record{
		AgentID:       agentID,
		HUDSnapshot:   deepCopyMap(hud),
		ScheduledTime: scheduledTime,
		ActionsResult: map[string]any{"actions": []any{}},
	})
}

// Records returns the agent records in this heartbeat, in add order.
func (h *Heartbeat) Records() []Record {
	return append([]Record{}, h.records...)
}

// Len reports how many agents participated in this heartbeat.
func (h *Heartbeat) Len() int {
	return len(h.records)
}

// IsActive reports whether the AI call has started but not completed.
func (h *Heartbeat) IsActive() bool {
	return h.ExecutionTime != nil && h.CompletionTime == nil
}

// IsComplete reports whether the AI call has completed.
func (h *Heartbeat) IsComplete() bool {
	return h.CompletionTime != nil
}

// BuildPrompt renders the combined prompt for every added agent, framing
// each HUD with its scheduled time.
func (h *Heartbeat) BuildPrompt() (string, error) {
	holons := make(map[string]any, len(h.records))
	for _, r := range h.records {
		entry := deepCopyMap(r.HUDSnapshot)
		entry["_heartbeat_info"] = map[string]any{
			"scheduled_time": r.ScheduledTime.UTC().Format(time.RFC3339),
		}
		holons[r.AgentID] = entry
	}

	combined := map[string]any{
		"heartbeat_time": h.HeartbeatTime.UTC().Format(time.RFC3339),
		"holons":         holons,
	}
	if h.ExecutionTime != nil {
		combined["execution_time"] = h.ExecutionTime.UTC().Format(time.RFC3339)
	}

	body, err := json.MarshalIndent(combined, "", "  ")
	if err != nil {
		return "", err
	}

	h.FullPrompt = fmt.Sprintf(promptTemplate, string(body))
	return h.FullPrompt, nil
}

const promptTemplate = `You are processing a heartbeat for multiple holons. Each holon has its own purpose, state, and available actions.

For each holon, analyze its state and decide what actions (if any) to take.

Respond with a JSON object where each key is a holon GUID and the value is an object with an "actions" array:

{
  "holon-guid-1": {
    "actions": [
      {"action": "action_name", "params": {"key": "value"}}
    ]
  },
  "holon-guid-2": {
    "actions": []
  }
}

If a holon needs no actions, use an empty actions array.

HOLONS DATA:
%s
`

// ProcessResponse parses the AI's reply, leniently, and distributes the
// per-agent slice to each record. Agents absent from the parsed reply
// default to an empty actions list rather than failing the whole
// heartbeat (InvalidReply is reserved for a reply that cannot be parsed
// as JSON at all, even after recovery).
func (h *Heartbeat) ProcessResponse(responseText string) error {
	h.RawResponse = responseText

	parsed, err := ParseResponse(responseText)
	if err != nil {
		return err
	}
	h.ParsedResponse = parsed

	for i := range h.records {
		result, ok := parsed[h.records[i].AgentID].(map[string]any)
		if !ok {
			result = map[string]any{"actions": []any{}}
		}
		h.records[i].ActionsResult = result
	}
	return nil
}

func deepCopyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return deepCopyMap(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = deepCopyValue(item)
		}
		return out
	default:
		return v
	}
}
