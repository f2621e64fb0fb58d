// Package holonpath implements the path grammar used to address nested
// values inside purpose/self/knowledge trees: "a.b[0].c".
package holonpath

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrPathNotFound is returned when traversal cannot proceed to the target segment.
var ErrPathNotFound = errors.New("holonpath: path not found")

// ErrEmptyPath is returned when Set/Delete are called on the root path.
var ErrEmptyPath = errors.New("holonpath: path is empty")

// Segment is one parsed step of a path: either a map key or a sequence index.
type Segment struct {
	Key     string
	Index   int
	IsIndex bool
}

// Parse splits a path string like "tasks[0].title" or "users[alice].email"
// into segments. An empty string parses to a nil (root) path.
func Parse(path string) ([]Segment, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, nil
	}

	var segs []Segment
	i := 0
	n := len(path)
	for i < n {
		switch path[i] {
		case '.':
			i++
		case '[':
			j := strings.IndexByte(path[i:], ']')
			if j < 0 {
				return nil, fmt.Errorf("holonpath: unterminated bracket in %q", path)
			}
			inner := path[i+1 : i+j]
			i += j + 1
			if inner == "" {
				return nil, fmt.Errorf("holonpath: empty bracket in %q", path)
			}
			if idx, err := strconv.Atoi(inner); err == nil && idx >= 0 {
				segs = append(segs, Segment{Index: idx, IsIndex: true})
			} else {
				segs = append(segs, Segment{Key: inner})
			}
		default:
			j := i
			for j < n && path[j] != '.' && path[j] != '[' {
				j++
			}
			segs = append(segs, Segment{Key: path[i:j]})
			i = j
		}
	}
	return segs, nil
}

// Get reads the value at path within root.
func Get(root any, path string) (any, error) {
	segs, err := Parse(path)
	if err != nil {
		return nil, err
	}
	cur := root
	for _, seg := range segs {
		next, ok := step(cur, seg)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrPathNotFound, path)
		}
		cur = next
	}
	return cur, nil
}

func step(cur any, seg Segment) (any, bool) {
	if seg.IsIndex {
		if list, ok := cur.([]any); ok {
			if seg.Index >= 0 && seg.Index < len(list) {
				return list[seg.Index], true
			}
			return nil, false
		}
		// Resolve ambiguity per spec.md §9 OQ3: numeric index first when the
		// container is a sequence, string key otherwise.
		if m, ok := cur.(map[string]any); ok {
			v, ok := m[strconv.Itoa(seg.Index)]
			return v, ok
		}
		return nil, false
	}
	if m, ok := cur.(map[string]any); ok {
		v, ok := m[seg.Key]
		return v, ok
	}
	return nil, false
}

// Exists reports whether path resolves to a value within root.
func Exists(root any, path string) bool {
	_, err := Get(root, path)
	return err == nil
}

// Set writes value at path within root, creating intermediate maps as
// needed. Sequence indices must already exist; Set never grows a sequence.
func Set(root any, path string, value any) error {
	segs, err := Parse(path)
	if err != nil {
		return err
	}
	if len(segs) == 0 {
		return ErrEmptyPath
	}
	return setSegs(root, segs, value)
}

func setSegs(root any, segs []Segment, value any) error {
	cur := root
	for i := 0; i < len(segs)-1; i++ {
		seg := segs[i]
		next, ok := step(cur, seg)
		if !ok {
			m, isMap := cur.(map[string]any)
			if !isMap || seg.IsIndex {
				return fmt.Errorf("%w: cannot create intermediate at segment %d", ErrPathNotFound, i)
			}
			created := map[string]any{}
			m[seg.Key] = created
			cur = created
			continue
		}
		cur = next
	}

	last := segs[len(segs)-1]
	if last.IsIndex {
		list, ok := cur.([]any)
		if !ok {
			if m, ok := cur.(map[string]any); ok {
				m[strconv.Itoa(last.Index)] = value
				return nil
			}
			return fmt.Errorf("%w: cannot index non-sequence", ErrPathNotFound)
		}
		if last.Index < 0 || last.Index >= len(list) {
			return fmt.Errorf("%w: index %d out of range", ErrPathNotFound, last.Index)
		}
		list[last.Index] = value
		return nil
	}
	m, ok := cur.(map[string]any)
	if !ok {
		return fmt.Errorf("%w: cannot set key on non-map", ErrPathNotFound)
	}
	m[last.Key] = value
	return nil
}

// Delete removes the value at path within root.
func Delete(root any, path string) error {
	segs, err := Parse(path)
	if err != nil {
		return err
	}
	if len(segs) == 0 {
		return ErrEmptyPath
	}

	cur := root
	for i := 0; i < len(segs)-1; i++ {
		next, ok := step(cur, segs[i])
		if !ok {
			return fmt.Errorf("%w: %v", ErrPathNotFound, segs)
		}
		cur = next
	}

	last := segs[len(segs)-1]
	if last.IsIndex {
		list, ok := cur.([]any)
		if !ok {
			if m, ok := cur.(map[string]any); ok {
				if _, ok := m[strconv.Itoa(last.Index)]; !ok {
					return fmt.Errorf("%w: %d", ErrPathNotFound, last.Index)
				}
				delete(m, strconv.Itoa(last.Index))
				return nil
			}
			return fmt.Errorf("%w: cannot delete index from non-sequence", ErrPathNotFound)
		}
		if last.Index < 0 || last.Index >= len(list) {
			return fmt.Errorf("%w: index %d out of range", ErrPathNotFound, last.Index)
		}
		shortened := append(append([]any{}, list[:last.Index]...), list[last.Index+1:]...)
		// Slices cannot shrink through an alias: write the shortened slice
		// back into whatever container holds it.
		if len(segs) == 1 {
			return fmt.Errorf("holonpath: cannot delete an index from the root sequence itself")
		}
		return setSegs(root, segs[:len(segs)-1], shortened)
	}
	m, ok := cur.(map[string]any)
	if !ok {
		return fmt.Errorf("%w: cannot delete key from non-map", ErrPathNotFound)
	}
	if _, ok := m[last.Key]; !ok {
		return fmt.Errorf("%w: %q", ErrPathNotFound, last.Key)
	}
	delete(m, last.Key)
	return nil
}

// Move relocates the value at from to to as Get, then Set, then Delete. If
// from does not resolve, root is left untouched; if Set fails, from stays
// in place, though intermediate maps Set created along to remain.
func Move(root any, from, to string) error {
	value, err := Get(root, from)
	if err != nil {
		return err
	}
	if err := Set(root, to, value); err != nil {
		return err
	}
	return Delete(root, from)
}
