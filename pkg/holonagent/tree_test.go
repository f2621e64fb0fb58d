package holonagent

import (
	"context"
	"testing"
)

func TestCreateChildFromTemplateRebindsSelfToChild(t *testing.T) {
	root := New(nil)
	template, err := root.CreateChild(context.Background(), nil)
	if err != nil {
		t.Fatalf("create template: %v", err)
	}
	template.SetTokenBank(context.Background(), 42)

	templateID := template.ID()
	child, err := root.CreateChild(context.Background(), &templateID)
	if err != nil {
		t.Fatalf("create child from template: %v", err)
	}

	// holon_id's binding is always a closure (never overwritten by a
	// literal), so this alone catches a stale, template-bound clone: a
	// buggy clone would report the template's id here, not the child's.
	got, err := child.SelfGet("holon_id")
	if err != nil {
		t.Fatalf("self get holon_id: %v", err)
	}
	if got != child.ID() {
		t.Fatalf("child self.holon_id = %v, want the child's own id %v (still bound to the template)", got, child.ID())
	}

	// Mutate the child's real token bank field (not through the self
	// binding) and confirm the self binding resolves to the child's own
	// value rather than a leftover closure still reading the template's.
	child.SetTokenBank(context.Background(), 7)
	if got, _ := child.SelfGet("token_bank"); got != 7 {
		t.Fatalf("child self.token_bank = %v, want 7 (the child's own bank, not the template's 42)", got)
	}
	if templateBank, _ := template.SelfGet("token_bank"); templateBank != 42 {
		t.Fatalf("template self.token_bank = %v, want 42 (unaffected by the child)", templateBank)
	}

	if self, err := child.SelfGet(""); err != nil {
		t.Fatalf("self get whole container: %v", err)
	} else if m, ok := self.(map[string]any); !ok || len(m) != 8 || len(child.SelfBindings()) != 8 {
		t.Fatalf("child self container should have exactly one binding per key (8 keys), got %#v", self)
	}
}
