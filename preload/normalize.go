package preload

import (
	"fmt"
)

// Pair names a relation together with a nested preload request for the
// related schema. Nested takes any request form accepted by Normalize.
type Pair struct {
	Name   string
	Nested any
}

// P is shorthand for constructing a Pair.
func P(name string, nested any) Pair {
	return Pair{Name: name, Nested: nested}
}

// Normalize canonicalizes a preload request into a Tree, merged on top of
// acc (which may be nil). A request is a relation name, a Pair, a []any
// mixing names and pairs, or an already-built *Tree. A relation name
// appearing twice at one level fails with ErrPreloadConflict; any other value
// fails with ErrInvalidPreload echoing the offending value. Either the whole
// request normalizes or an error is returned; no partial tree escapes.
func Normalize(request any, acc *Tree) (*Tree, error) {
	out := NewTree()
	if acc != nil {
		out = acc.Clone()
	}
	if err := normalizeInto(request, out); err != nil {
		return nil, err
	}
	return out, nil
}

func normalizeInto(request any, level *Tree) error {
	switch req := request.(type) {
	case string:
		return level.Insert(req, nil)
	case Pair:
		nested, err := Normalize(req.Nested, nil)
		if err != nil {
			return err
		}
		return level.Insert(req.Name, nested)
	case *Tree:
		for _, name := range req.Names() {
			if err := level.Insert(name, req.Child(name).Clone()); err != nil {
				return err
			}
		}
		return nil
	case []any:
		for _, item := range req {
			if err := normalizeInto(item, level); err != nil {
				return err
			}
		}
		return nil
	case []string:
		for _, name := range req {
			if err := level.Insert(name, nil); err != nil {
				return err
			}
		}
		return nil
	case nil:
		return nil
	default:
		return fmt.Errorf("%w: %v", ErrInvalidPreload, request)
	}
}
