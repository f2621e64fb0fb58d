package holonagent

import (
	"context"
	"fmt"

	"github.com/nullcoward/holonic-engine/pkg/holonbind"
	"github.com/nullcoward/holonic-engine/pkg/holonpath"
)

// firstSegment splits a dotted/bracketed path into its leading key and the
// remainder, e.g. "config.max" -> ("config", "max"), "theme" -> ("theme", "").
func firstSegment(path string) (string, string, error) {
	segs, err := holonpath.Parse(path)
	if err != nil {
		return "", "", err
	}
	if len(segs) == 0 {
		return "", "", holonpath.ErrEmptyPath
	}
	if segs[0].IsIndex || segs[0].Key == "" {
		return "", "", fmt.Errorf("%w: purpose/self paths must start with a key", holonpath.ErrPathNotFound)
	}
	rest := ""
	for i, seg := range segs[1:] {
		if seg.IsIndex {
			rest += fmt.Sprintf("[%d]", seg.Index)
		} else {
			if i > 0 || rest != "" {
				rest += "."
			}
			rest += seg.Key
		}
	}
	return segs[0].Key, rest, nil
}

// bindingGet resolves path against a binding container: the first segment
// selects a top-level keyed binding, which is resolved (callables invoked,
// nested agents converted recursively); any remaining path descends into
// that resolved structural value.
func bindingGet(c *holonbind.Container, path string) (any, error) {
	if path == "" {
		return c.Serialize()
	}
	key, rest, err := firstSegment(path)
	if err != nil {
		return nil, err
	}
	source, ok := c.SourceAt(key)
	if !ok {
		return nil, fmt.Errorf("%w: %q", holonpath.ErrPathNotFound, path)
	}
	resolved, err := resolveForPath(source)
	if err != nil {
		return nil, err
	}
	if rest == "" {
		return resolved, nil
	}
	return holonpath.Get(resolved, rest)
}

func resolveForPath(source holonbind.Source) (any, error) {
	tmp := holonbind.New()
	tmp.Add(source, nil)
	vals, err := tmp.Resolve()
	if err != nil {
		return nil, err
	}
	return vals[0], nil
}

// bindingSet writes value at path into a binding container. A one-segment
// path replaces (or creates) a top-level keyed binding outright. A longer
// path writes the remainder in place into the top-level binding's live
// map[string]any; when no binding has that key, a new map binding is
// created for it, and any other source type is an error.
func bindingSet(c *holonbind.Container, path string, value any) error {
	key, rest, err := firstSegment(path)
	if err != nil {
		return err
	}
	if rest == "" {
		c.SetKeyed(key, value)
		return nil
	}
	source, ok := c.SourceAt(key)
	if !ok {
		fresh := map[string]any{}
		if err := holonpath.Set(fresh, rest, value); err != nil {
			return err
		}
		c.SetKeyed(key, fresh)
		return nil
	}
	m, ok := source.(map[string]any)
	if !ok {
		return fmt.Errorf("%w: cannot traverse through non-map binding at %q", holonpath.ErrPathNotFound, key)
	}
	return holonpath.Set(m, rest, value)
}

func bindingDelete(c *holonbind.Container, path string) error {
	key, rest, err := firstSegment(path)
	if err != nil {
		return err
	}
	if rest == "" {
		if !c.DeleteKeyed(key) {
			return fmt.Errorf("%w: %q", holonpath.ErrPathNotFound, key)
		}
		return nil
	}
	source, ok := c.SourceAt(key)
	if !ok {
		return fmt.Errorf("%w: %q", holonpath.ErrPathNotFound, path)
	}
	m, ok := source.(map[string]any)
	if !ok {
		return fmt.Errorf("%w: cannot traverse through non-map binding at %q", holonpath.ErrPathNotFound, key)
	}
	return holonpath.Delete(m, rest)
}

func bindingMove(c *holonbind.Container, from, to string) error {
	value, err := bindingGet(c, from)
	if err != nil {
		return err
	}
	if err := bindingSet(c, to, value); err != nil {
		return err
	}
	return bindingDelete(c, from)
}

func bindingExists(c *holonbind.Container, path string) bool {
	_, err := bindingGet(c, path)
	return err == nil
}

// PurposeGet reads the purpose tree at path (empty for the whole thing).
func (a *Agent) PurposeGet(path string) (any, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return bindingGet(a.purpose, path)
}

// PurposeSet writes value at path in the purpose tree (static or a
// zero-arg callable) and auto-saves.
func (a *Agent) PurposeSet(path string, value any) error {
	a.mu.Lock()
	err := bindingSet(a.purpose, path, value)
	a.mu.Unlock()
	if err != nil {
		return err
	}
	a.autoSave(context.Background())
	return nil
}

// PurposeDelete removes the value at path in the purpose tree and
// auto-saves.
func (a *Agent) PurposeDelete(path string) error {
	a.mu.Lock()
	err := bindingDelete(a.purpose, path)
	a.mu.Unlock()
	if err != nil {
		return err
	}
	a.autoSave(context.Background())
	return nil
}

// PurposeMove relocates a value within the purpose tree and auto-saves.
func (a *Agent) PurposeMove(from, to string) error {
	a.mu.Lock()
	err := bindingMove(a.purpose, from, to)
	a.mu.Unlock()
	if err != nil {
		return err
	}
	a.autoSave(context.Background())
	return nil
}

// PurposeExists reports whether path resolves within the purpose tree.
func (a *Agent) PurposeExists(path string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return bindingExists(a.purpose, path)
}

// SelfGet reads the self tree at path (empty for the whole thing).
func (a *Agent) SelfGet(path string) (any, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return bindingGet(a.self, path)
}

// SelfSet writes value at path in the self tree and auto-saves.
func (a *Agent) SelfSet(path string, value any) error {
	a.mu.Lock()
	err := bindingSet(a.self, path, value)
	a.mu.Unlock()
	if err != nil {
		return err
	}
	a.autoSave(context.Background())
	return nil
}

// SelfDelete removes the value at path in the self tree and auto-saves.
func (a *Agent) SelfDelete(path string) error {
	a.mu.Lock()
	err := bindingDelete(a.self, path)
	a.mu.Unlock()
	if err != nil {
		return err
	}
	a.autoSave(context.Background())
	return nil
}

// SelfMove relocates a value within the self tree and auto-saves.
func (a *Agent) SelfMove(from, to string) error {
	a.mu.Lock()
	err := bindingMove(a.self, from, to)
	a.mu.Unlock()
	if err != nil {
		return err
	}
	a.autoSave(context.Background())
	return nil
}

// SelfExists reports whether path resolves within the self tree.
func (a *Agent) SelfExists(path string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return bindingExists(a.self, path)
}
