package holonpath

import (
	"errors"
	"testing"
)

func TestGetSetRoundTrip(t *testing.T) {
	root := map[string]any{
		"tasks": []any{
			map[string]any{"title": "a"},
		},
	}

	if err := Set(root, "tasks[0].title", "b"); err != nil {
		t.Fatalf("set: %v", err)
	}
	v, err := Get(root, "tasks[0].title")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if v != "b" {
		t.Fatalf("got %v, want b", v)
	}
}

func TestSetCreatesIntermediateMaps(t *testing.T) {
	root := map[string]any{}
	if err := Set(root, "user.settings.theme", "dark"); err != nil {
		t.Fatalf("set: %v", err)
	}
	v, err := Get(root, "user.settings.theme")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if v != "dark" {
		t.Fatalf("got %v", v)
	}
}

func TestSetDoesNotGrowSequence(t *testing.T) {
	root := map[string]any{"tasks": []any{}}
	if err := Set(root, "tasks[0]", "x"); !errors.Is(err, ErrPathNotFound) {
		t.Fatalf("expected ErrPathNotFound, got %v", err)
	}
}

func TestDeleteRestoresAbsence(t *testing.T) {
	root := map[string]any{"x": 1}
	if err := Set(root, "x", 42); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := Delete(root, "x"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if Exists(root, "x") {
		t.Fatalf("expected x to not exist")
	}
}

func TestDeleteSequenceIndexShifts(t *testing.T) {
	root := map[string]any{"items": []any{"a", "b", "c"}}
	if err := Delete(root, "items[1]"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	items := root["items"].([]any)
	if len(items) != 2 || items[0] != "a" || items[1] != "c" {
		t.Fatalf("unexpected items: %v", items)
	}
}

func TestEmptyPathOnSetDelete(t *testing.T) {
	root := map[string]any{}
	if err := Set(root, "", "v"); !errors.Is(err, ErrEmptyPath) {
		t.Fatalf("expected ErrEmptyPath, got %v", err)
	}
	if err := Delete(root, ""); !errors.Is(err, ErrEmptyPath) {
		t.Fatalf("expected ErrEmptyPath, got %v", err)
	}
}

func TestMoveAtomicOnSuccess(t *testing.T) {
	root := map[string]any{"old": map[string]any{"k": "v"}}
	if err := Move(root, "old.k", "new.k"); err != nil {
		t.Fatalf("move: %v", err)
	}
	v, err := Get(root, "new.k")
	if err != nil || v != "v" {
		t.Fatalf("new.k = %v, %v", v, err)
	}
	if Exists(root, "old.k") {
		t.Fatalf("old.k should be gone")
	}
}

func TestMoveLeavesRootUntouchedOnFailure(t *testing.T) {
	root := map[string]any{}
	if err := Move(root, "missing", "dest"); !errors.Is(err, ErrPathNotFound) {
		t.Fatalf("expected ErrPathNotFound, got %v", err)
	}
	if Exists(root, "dest") {
		t.Fatalf("dest should not have been created")
	}
}

func TestNumericIndexPrefersSequence(t *testing.T) {
	root := map[string]any{"seq": []any{"first", "second"}}
	v, err := Get(root, "seq[0]")
	if err != nil || v != "first" {
		t.Fatalf("seq[0] = %v, %v", v, err)
	}
}

func TestNumericKeyOnMapFallsBackToStringKey(t *testing.T) {
	root := map[string]any{"m": map[string]any{"3": "three"}}
	v, err := Get(root, "m[3]")
	if err != nil || v != "three" {
		t.Fatalf("m[3] = %v, %v", v, err)
	}
}
