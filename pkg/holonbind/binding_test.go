package holonbind

import (
	"reflect"
	"testing"
)

type fakeAgent struct{ name string }

func (f *fakeAgent) ResolveForHUD() (any, error) {
	return map[string]any{"name": f.name}, nil
}

func key(s string) *string { return &s }

func TestSerializeAllKeyedProducesMap(t *testing.T) {
	c := New()
	c.Add("alice", key("owner"))
	c.Add(42, key("count"))

	got, err := c.Serialize()
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	want := map[string]any{"owner": "alice", "count": 42}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %#v, want %#v", got, want)
	}
}

func TestSerializeNoneKeyedProducesSlice(t *testing.T) {
	c := New()
	c.Add("first", nil)
	c.Add("second", nil)

	got, err := c.Serialize()
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	want := []any{"first", "second"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %#v, want %#v", got, want)
	}
}

func TestSerializeMixedProducesMixedSlice(t *testing.T) {
	c := New()
	c.Add("bare", nil)
	c.Add("named", key("label"))

	got, err := c.Serialize()
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	want := []any{"bare", map[string]any{"label": "named"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %#v, want %#v", got, want)
	}
}

func TestSerializeEmptyProducesEmptySlice(t *testing.T) {
	c := New()
	got, err := c.Serialize()
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	if want := []any{}; !reflect.DeepEqual(got, want) {
		t.Fatalf("got %#v, want %#v", got, want)
	}
}

func TestResolveCallableSourceReEvaluatesEachCall(t *testing.T) {
	n := 0
	c := New()
	c.Add(func() any {
		n++
		return n
	}, nil)

	first, err := c.Resolve()
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	second, err := c.Resolve()
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if first[0] != 1 || second[0] != 2 {
		t.Fatalf("expected fresh evaluation each call, got %v then %v", first, second)
	}
}

func TestResolveNestedAgentUsesResolveForHUD(t *testing.T) {
	c := New()
	c.Add(&fakeAgent{name: "child"}, key("kid"))

	got, err := c.Serialize()
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	want := map[string]any{"kid": map[string]any{"name": "child"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %#v, want %#v", got, want)
	}
}

func TestResolveStructuralWalksNestedCallables(t *testing.T) {
	c := New()
	c.Add(map[string]any{
		"static": "x",
		"dyn":    func() any { return "y" },
	}, key("blob"))

	got, err := c.Serialize()
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	want := map[string]any{"blob": map[string]any{"static": "x", "dyn": "y"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %#v, want %#v", got, want)
	}
}

func TestClearRemovesAllBindings(t *testing.T) {
	c := New()
	c.Add("x", nil)
	c.Clear()
	if c.Len() != 0 {
		t.Fatalf("expected empty container after Clear, got len %d", c.Len())
	}
}
