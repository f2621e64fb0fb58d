package heartbeat

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestAddAgentSnapshotsHUDImmutably(t *testing.T) {
	hb := New(time.Now())
	hud := map[string]any{"self": map[string]any{"token_bank": 5}}
	hb.AddAgent("agent-1", hud, time.Now())

	hud["self"].(map[string]any)["token_bank"] = 999

	rec := hb.Records()[0]
	if rec.HUDSnapshot["self"].(map[string]any)["token_bank"] != 5 {
		t.Fatalf("expected snapshot unaffected by later mutation, got %v", rec.HUDSnapshot)
	}
}

func TestBuildPromptIncludesAllAgents(t *testing.T) {
	hb := New(time.Now())
	hb.AddAgent("a", map[string]any{"purpose": "x"}, time.Now())
	hb.AddAgent("b", map[string]any{"purpose": "y"}, time.Now())

	prompt, err := hb.BuildPrompt()
	if err != nil {
		t.Fatalf("build prompt: %v", err)
	}
	if !strings.Contains(prompt, `"a"`) || !strings.Contains(prompt, `"b"`) {
		t.Fatalf("expected both agent ids in prompt: %s", prompt)
	}
}

func TestProcessResponseDistributesPerAgentActions(t *testing.T) {
	hb := New(time.Now())
	hb.AddAgent("a", map[string]any{}, time.Now())
	hb.AddAgent("b", map[string]any{}, time.Now())

	reply := `{"a": {"actions": [{"action": "sleep", "params": {"seconds": 5}}]}, "b": {"actions": []}}`
	if err := hb.ProcessResponse(reply); err != nil {
		t.Fatalf("process response: %v", err)
	}

	recs := hb.Records()
	if len(recs[0].ActionsResult["actions"].([]any)) != 1 {
		t.Fatalf("expected one action for agent a, got %#v", recs[0].ActionsResult)
	}
	if len(recs[1].ActionsResult["actions"].([]any)) != 0 {
		t.Fatalf("expected no actions for agent b")
	}
}

func TestProcessResponseDefaultsMissingAgentToEmptyActions(t *testing.T) {
	hb := New(time.Now())
	hb.AddAgent("a", map[string]any{}, time.Now())

	if err := hb.ProcessResponse(`{"other": {"actions": []}}`); err != nil {
		t.Fatalf("process response: %v", err)
	}
	if len(hb.Records()[0].ActionsResult["actions"].([]any)) != 0 {
		t.Fatalf("expected default empty actions for unmentioned agent")
	}
}

func TestProcessResponseUnparsableRepliesErrInvalidReply(t *testing.T) {
	hb := New(time.Now())
	if err := hb.ProcessResponse("not json at all, sorry"); !errors.Is(err, ErrInvalidReply) {
		t.Fatalf("expected ErrInvalidReply, got %v", err)
	}
}

func TestParseResponseRecoversFromFencedReply(t *testing.T) {
	reply := "Here you go:\n```json\n{\"a\": {\"actions\": []}}\n```\nhope that helps"
	parsed, err := ParseResponse(reply)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, ok := parsed["a"]; !ok {
		t.Fatalf("expected key a in parsed reply: %#v", parsed)
	}
}

func TestIsActiveAndIsComplete(t *testing.T) {
	hb := New(time.Now())
	if hb.IsActive() || hb.IsComplete() {
		t.Fatalf("expected pending heartbeat to be neither active nor complete")
	}
	now := time.Now()
	hb.ExecutionTime = &now
	if !hb.IsActive() {
		t.Fatalf("expected active once execution time set")
	}
	hb.CompletionTime = &now
	if hb.IsActive() || !hb.IsComplete() {
		t.Fatalf("expected complete once completion time set")
	}
}
