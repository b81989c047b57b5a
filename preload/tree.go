// Package preload plans nested eager-loading requests. Normalize turns a
// free-form request into a canonical tree, rejecting duplicates and malformed
// values; Expand resolves the tree against a schema into an ordered execution
// plan, inlining through-relations into their base relations.
package preload

import (
	"errors"
	"fmt"
	"strings"
)

// ErrPreloadConflict indicates the same relation name was supplied twice at
// one nesting level of a single normalize call.
var ErrPreloadConflict = errors.New("preload conflict")

// ErrInvalidPreload indicates a preload request value that is not a relation
// name, a list, a pair, or a tree.
var ErrInvalidPreload = errors.New("invalid preload")

// Tree is an ordered mapping from relation name to nested preload tree. Within
// one level a name appears at most once; Insert reports a conflict instead of
// overwriting. Trees are built per request and never shared.
type Tree struct {
	order []string
	nodes map[string]*Tree
}

// NewTree returns an empty preload tree.
func NewTree() *Tree {
	return &Tree{nodes: make(map[string]*Tree)}
}

// Insert adds name with the given subtree. A nil child stands for an empty
// subtree. Inserting a name already present at this level fails with
// ErrPreloadConflict.
func (t *Tree) Insert(name string, child *Tree) error {
	if _, dup := t.nodes[name]; dup {
		return fmt.Errorf("%w: %q", ErrPreloadConflict, name)
	}
	if child == nil {
		child = NewTree()
	}
	t.order = append(t.order, name)
	t.nodes[name] = child
	return nil
}

// Names returns the relation names at this level in insertion order. A nil
// tree has no names.
func (t *Tree) Names() []string {
	if t == nil {
		return nil
	}
	return t.order
}

// Child returns the subtree for name, or nil when absent.
func (t *Tree) Child(name string) *Tree {
	if t == nil {
		return nil
	}
	return t.nodes[name]
}

// Len returns the number of entries at this level.
func (t *Tree) Len() int {
	if t == nil {
		return 0
	}
	return len(t.order)
}

// Clone returns a deep copy of the tree. Cloning a nil tree yields an empty
// one.
func (t *Tree) Clone() *Tree {
	out := NewTree()
	if t == nil {
		return out
	}
	for _, name := range t.order {
		out.order = append(out.order, name)
		out.nodes[name] = t.nodes[name].Clone()
	}
	return out
}

func (t *Tree) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, name := range t.order {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(name)
		if child := t.nodes[name]; child.Len() > 0 {
			b.WriteString(": ")
			b.WriteString(child.String())
		}
	}
	b.WriteByte('}')
	return b.String()
}
