package storage

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/nullcoward/holonic-engine/pkg/heartbeat"
	"github.com/nullcoward/holonic-engine/pkg/holonagent"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), ":memory:", "", testLogger())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return store
}

func TestSaveFullThenRestoreTreeRoundTripsRuntimeState(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	root := holonagent.New(nil)
	root.SetTokenBank(ctx, 42)
	root.SetHeartRateSecs(ctx, 30)
	if err := root.PurposeSet("goal", "keep the lights on"); err != nil {
		t.Fatalf("purpose set: %v", err)
	}
	if err := root.KnowledgeSet("notes.count", 3.0); err != nil {
		t.Fatalf("knowledge set: %v", err)
	}

	child, err := root.CreateChild(ctx, nil)
	if err != nil {
		t.Fatalf("create child: %v", err)
	}
	child.SetTokenBank(ctx, 5)

	if _, err := store.SaveTree(ctx, root); err != nil {
		t.Fatalf("save tree: %v", err)
	}

	restored, err := store.RestoreTree(ctx, root.ID())
	if err != nil {
		t.Fatalf("restore tree: %v", err)
	}
	if restored == nil {
		t.Fatalf("expected restored agent, got nil")
	}
	if restored.TokenBank() != 42 {
		t.Fatalf("expected restored token bank 42, got %d", restored.TokenBank())
	}
	if restored.HeartRateSecs() != 30 {
		t.Fatalf("expected restored heart rate 30, got %d", restored.HeartRateSecs())
	}
	goal, err := restored.PurposeGet("goal")
	if err != nil || goal != "keep the lights on" {
		t.Fatalf("expected restored purpose leaf, got %v, %v", goal, err)
	}
	count, err := restored.KnowledgeGet("notes.count")
	if err != nil || count != 3.0 {
		t.Fatalf("expected restored knowledge leaf, got %v, %v", count, err)
	}

	if len(restored.Children()) != 1 {
		t.Fatalf("expected one restored child, got %d", len(restored.Children()))
	}
	if restored.Children()[0].TokenBank() != 5 {
		t.Fatalf("expected restored child token bank 5, got %d", restored.Children()[0].TokenBank())
	}
}

func TestLoadHobjReturnsSingleRowWithoutRecursing(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	root := holonagent.New(nil)
	root.SetTokenBank(ctx, 7)
	child, err := root.CreateChild(ctx, nil)
	if err != nil {
		t.Fatalf("create child: %v", err)
	}
	if _, err := store.SaveTree(ctx, root); err != nil {
		t.Fatalf("save tree: %v", err)
	}

	row, err := store.LoadHobj(ctx, root.ID())
	if err != nil {
		t.Fatalf("load hobj: %v", err)
	}
	if row == nil {
		t.Fatalf("expected a row for %s", root.ID())
	}
	if row.TokenBank != 7 {
		t.Fatalf("expected token bank 7, got %d", row.TokenBank)
	}
	if row.ParentID != nil {
		t.Fatalf("expected root to have no parent, got %v", *row.ParentID)
	}

	childRow, err := store.LoadHobj(ctx, child.ID())
	if err != nil {
		t.Fatalf("load child hobj: %v", err)
	}
	if childRow == nil || childRow.ParentID == nil || *childRow.ParentID != root.ID() {
		t.Fatalf("expected child row with parent %s, got %+v", root.ID(), childRow)
	}
}

func TestLoadHobjUnknownIDReturnsNil(t *testing.T) {
	store := newTestStore(t)
	row, err := store.LoadHobj(context.Background(), "does-not-exist")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if row != nil {
		t.Fatalf("expected nil row, got %v", row)
	}
}

func TestGetHeartbeatReturnsSavedRow(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	hb := heartbeat.New(time.Now().UTC())
	hb.AddAgent("agent-a", map[string]any{"knowledge": map[string]any{}}, time.Now().UTC())
	id, err := store.SaveHeartbeat(ctx, hb, 12.5)
	if err != nil {
		t.Fatalf("save heartbeat: %v", err)
	}

	row, err := store.GetHeartbeat(ctx, id)
	if err != nil {
		t.Fatalf("get heartbeat: %v", err)
	}
	if row == nil || row.HobjCount != 1 {
		t.Fatalf("expected one-agent heartbeat row, got %+v", row)
	}

	missing, err := store.GetHeartbeat(ctx, id+1000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for unknown heartbeat id, got %v", missing)
	}
}

func TestRestoreTreeUnknownIDReturnsNil(t *testing.T) {
	store := newTestStore(t)
	agent, err := store.RestoreTree(context.Background(), "does-not-exist")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if agent != nil {
		t.Fatalf("expected nil for unknown id, got %v", agent)
	}
}

func TestSaveMessageAndGetMessagesRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	msg := holonagent.Message{
		ID:             "msg-1",
		SenderID:       "agent-a",
		RecipientIDs:   []string{"agent-b"},
		Content:        map[string]any{"text": "hello"},
		TokensAttached: 10,
		Timestamp:      time.Now().UTC(),
	}
	if err := store.SaveMessage(ctx, msg); err != nil {
		t.Fatalf("save message: %v", err)
	}

	sent, err := store.GetMessages(ctx, "agent-a", "sent", 10)
	if err != nil {
		t.Fatalf("get sent messages: %v", err)
	}
	if len(sent) != 1 || sent[0].ID != "msg-1" {
		t.Fatalf("expected one sent message, got %v", sent)
	}

	received, err := store.GetMessages(ctx, "agent-b", "received", 10)
	if err != nil {
		t.Fatalf("get received messages: %v", err)
	}
	if len(received) != 1 || received[0].ID != "msg-1" {
		t.Fatalf("expected one received message, got %v", received)
	}
}

func TestPortableBindingsDropCallablesButRestoreReinstallsDynamicSelf(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	agent := holonagent.New(nil)
	holon, err := store.loadHolon(ctx, agent.ID())
	_ = holon
	if err == nil {
		t.Fatalf("expected no holon row before saving")
	}

	if _, err := store.SaveTree(ctx, agent); err != nil {
		t.Fatalf("save tree: %v", err)
	}
	persisted, err := store.loadHolon(ctx, agent.ID())
	if err != nil {
		t.Fatalf("load holon: %v", err)
	}
	if _, ok := persisted.SelfState["holon_id"]; ok {
		t.Fatalf("expected dynamic holon_id closure to be dropped from persisted self_state, got %v", persisted.SelfState)
	}

	restored, err := store.RestoreTree(ctx, agent.ID())
	if err != nil {
		t.Fatalf("restore tree: %v", err)
	}
	self, err := restored.ResolvedSelf()
	if err != nil {
		t.Fatalf("resolved self: %v", err)
	}
	if self.(map[string]any)["holon_id"] != agent.ID() {
		t.Fatalf("expected restored agent's own New() call to reinstall holon_id, got %v", self)
	}
}
