package heart

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"

	heartbeatpkg "github.com/nullcoward/holonic-engine/pkg/heartbeat"
	"github.com/nullcoward/holonic-engine/pkg/holonagent"
	"github.com/nullcoward/holonic-engine/pkg/telemetry"
)

type fakeEstimator struct{}

func (fakeEstimator) CountTokens(model, text string) (int, error) {
	return len(text) / 4, nil
}

type scriptedTransport struct {
	response string
	prompts  []string
}

func (t *scriptedTransport) Send(ctx context.Context, prompt, model string, maxTokens int, structured bool) (string, error) {
	t.prompts = append(t.prompts, prompt)
	return t.response, nil
}

func newTestHeart(t *testing.T, transport *scriptedTransport) (*Heart, *holonagent.Agent) {
	t.Helper()
	root := holonagent.New(nil)
	root.SetTokenBank(context.Background(), 10)
	h := New(root, transport, fakeEstimator{}, zerolog.Nop(), WithInterval(10*time.Millisecond))
	return h, root
}

func TestBeatReturnsNilWhenNothingDue(t *testing.T) {
	transport := &scriptedTransport{response: "{}"}
	h, root := newTestHeart(t, transport)
	root.SetNextHeartbeat(time.Now().Add(time.Hour))

	hb, err := h.Beat(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hb != nil {
		t.Fatalf("expected nil heartbeat, got %v", hb)
	}
}

func TestBeatDispatchesParsedActionsToDueAgent(t *testing.T) {
	root := holonagent.New(nil)
	root.SetTokenBank(context.Background(), 10)
	root.SetNextHeartbeat(time.Now().Add(-time.Second))

	reply := map[string]any{
		root.ID(): map[string]any{
			"actions": []any{
				map[string]any{"action": "knowledge_set", "params": map[string]any{"path": "seen", "value": true}},
			},
		},
	}
	body, err := json.Marshal(reply)
	if err != nil {
		t.Fatalf("marshal reply: %v", err)
	}
	transport := &scriptedTransport{response: string(body)}
	h := New(root, transport, fakeEstimator{}, zerolog.Nop())

	hb, err := h.Beat(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hb == nil || hb.Len() != 1 {
		t.Fatalf("expected one agent in heartbeat, got %v", hb)
	}
	if !hb.IsComplete() {
		t.Fatalf("expected completed heartbeat")
	}

	got, err := root.KnowledgeGet("seen")
	if err != nil || got != true {
		t.Fatalf("expected action to set knowledge, got %v, %v", got, err)
	}
	if root.ActiveHeartbeat() {
		t.Fatalf("expected active heartbeat marker cleared after dispatch")
	}
}

func TestBeatNeverSchedulesTheInterfaceAgent(t *testing.T) {
	root := holonagent.NewWithID(nil, holonagent.InterfaceID)
	root.SetTokenBank(context.Background(), 10)
	root.SetNextHeartbeat(time.Now().Add(-time.Second))

	transport := &scriptedTransport{response: "{}"}
	h := New(root, transport, fakeEstimator{}, zerolog.Nop())

	due := collectDueAgents(root, time.Now().Add(time.Second))
	if len(due) != 0 {
		t.Fatalf("expected the interface agent to never appear in the due set, got %v", due)
	}

	hb, err := h.Beat(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hb != nil {
		t.Fatalf("expected nil heartbeat: the interface agent is solvent and past due but must not be scheduled, got %v", hb)
	}
}

func TestBeatSkipsInsolventAgents(t *testing.T) {
	root := holonagent.New(nil)
	root.SetTokenBank(context.Background(), -1)
	root.SetNextHeartbeat(time.Now().Add(-time.Second))

	transport := &scriptedTransport{response: "{}"}
	h := New(root, transport, fakeEstimator{}, zerolog.Nop())

	hb, err := h.Beat(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hb != nil {
		t.Fatalf("expected insolvent agent to be skipped, got %v", hb)
	}
}

func TestTokenAllocationsCreditBeforeDueCollection(t *testing.T) {
	root := holonagent.New(nil)
	root.SetTokenBank(context.Background(), -5)
	root.SetNextHeartbeat(time.Now().Add(-time.Second))

	transport := &scriptedTransport{response: "{}"}
	tel := telemetry.New()
	h := New(root, transport, fakeEstimator{}, zerolog.Nop(), WithTelemetry(tel))
	h.AddTokenAllocation(root, 10)

	hb, err := h.Beat(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hb == nil || hb.Len() != 1 {
		t.Fatalf("expected allocation to make agent solvent and due, got %v", hb)
	}
	if root.TokenBank() != 5 {
		t.Fatalf("expected token bank 5 after allocation, got %d", root.TokenBank())
	}
}

func TestSetTokenAllocationReplacesExisting(t *testing.T) {
	root := holonagent.New(nil)
	transport := &scriptedTransport{response: "{}"}
	h := New(root, transport, fakeEstimator{}, zerolog.Nop())

	h.AddTokenAllocation(root, 5)
	h.AddTokenAllocation(root, 5)
	h.SetTokenAllocation(root, 20)

	if len(h.tokenAllocations) != 1 || h.tokenAllocations[0].Amount != 20 {
		t.Fatalf("expected single replaced allocation of 20, got %v", h.tokenAllocations)
	}
}

func TestAddScheduledAllocationRejectsBadExpression(t *testing.T) {
	root := holonagent.New(nil)
	transport := &scriptedTransport{response: "{}"}
	h := New(root, transport, fakeEstimator{}, zerolog.Nop())

	if err := h.AddScheduledAllocation(root, 10, "not a cron expression"); err == nil {
		t.Fatalf("expected parse error for invalid cron expression")
	}
}

func TestScheduledAllocationCreditsOnDueTick(t *testing.T) {
	root := holonagent.New(nil)
	root.SetTokenBank(context.Background(), 0)
	root.SetNextHeartbeat(time.Now().Add(time.Hour))

	transport := &scriptedTransport{response: "{}"}
	h := New(root, transport, fakeEstimator{}, zerolog.Nop())
	if err := h.AddScheduledAllocation(root, 7, "* * * * *"); err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	h.scheduledAllocations[0].nextRun = time.Now().Add(-time.Minute)

	if _, err := h.Beat(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if root.TokenBank() != 7 {
		t.Fatalf("expected scheduled allocation to credit 7 tokens, got %d", root.TokenBank())
	}
	if !h.scheduledAllocations[0].nextRun.After(time.Now()) {
		t.Fatalf("expected nextRun advanced into the future")
	}
}

func TestRemoveScheduledAllocationsReportsWhetherAnyExisted(t *testing.T) {
	root := holonagent.New(nil)
	transport := &scriptedTransport{response: "{}"}
	h := New(root, transport, fakeEstimator{}, zerolog.Nop())

	if h.RemoveScheduledAllocations(root) {
		t.Fatalf("expected no scheduled allocations to remove yet")
	}
	if err := h.AddScheduledAllocation(root, 1, "@every 1m"); err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if !h.RemoveScheduledAllocations(root) {
		t.Fatalf("expected removal to report existing allocation")
	}
}

func TestStartStopIsIdempotentAndJoins(t *testing.T) {
	root := holonagent.New(nil)
	root.SetNextHeartbeat(time.Now().Add(time.Hour))
	transport := &scriptedTransport{response: "{}"}
	h := New(root, transport, fakeEstimator{}, zerolog.Nop(), WithInterval(5*time.Millisecond))

	h.Start()
	h.Start()
	if !h.IsRunning() {
		t.Fatalf("expected heart running after Start")
	}

	time.Sleep(20 * time.Millisecond)

	h.Stop()
	h.Stop()
	if h.IsRunning() {
		t.Fatalf("expected heart stopped after Stop")
	}
}

func TestOnHeartbeatCallbackFiresForNonEmptyTicks(t *testing.T) {
	root := holonagent.New(nil)
	root.SetTokenBank(context.Background(), 10)
	root.SetNextHeartbeat(time.Now().Add(-time.Second))

	transport := &scriptedTransport{response: "{}"}
	h := New(root, transport, fakeEstimator{}, zerolog.Nop(), WithInterval(5*time.Millisecond))

	fired := make(chan *heartbeatpkg.Heartbeat, 1)
	h.OnHeartbeat(func(hb *heartbeatpkg.Heartbeat) {
		fired <- hb
	})

	h.Start()
	defer h.Stop()

	select {
	case hb := <-fired:
		if hb == nil || hb.Len() != 1 {
			t.Fatalf("expected non-empty heartbeat delivered to callback, got %v", hb)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for heartbeat callback")
	}
}
