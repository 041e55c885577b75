package executor

import (
	"strconv"
	"strings"
	"sync"

	"github.com/tailcall-oss/gateway/internal/plan"
)

// Path is the sequence of list indices accumulated on the way to one
// instance of a field: empty for a field reached through plain objects
// only, one entry deep under a single list, two under a list of lists,
// and so on. The same plan.Field (and so the same FieldID) is reached
// once per combination of ancestor list indices, which is why a Store
// entry is keyed on (FieldID, Path) rather than FieldID alone.
//
// This is distinct from ResponsePath (result.go), which names a GraphQL
// error's location by response field name and index rather than by raw
// list-index chain; internal/synth converts one to the other as it walks
// the Plan and reads the Store.
type Path []int

func (p Path) key() string {
	if len(p) == 0 {
		return ""
	}
	parts := make([]string, len(p))
	for i, v := range p {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, "/")
}

// Child returns the Path one list level deeper, at index i.
func (p Path) Child(i int) Path {
	out := make(Path, len(p)+1)
	copy(out, p)
	out[len(p)] = i
	return out
}

type storeKey struct {
	id   plan.FieldID
	path string
}

// Store collects every field instance's outcome as the Executor's
// goroutines resolve them, decoupled from response shaping: a value, a
// list length (for fields typed as a list, so internal/synth knows how
// many indices to walk without re-deriving it), or an error. The mutex is
// never held across an ir.Eval call -- goroutines only touch the Store to
// record a result they already have in hand.
type Store struct {
	mu     sync.Mutex
	values map[storeKey]any
	lens   map[storeKey]int
	errs   map[storeKey]error
}

func newStore() *Store {
	return &Store{
		values: map[storeKey]any{},
		lens:   map[storeKey]int{},
		errs:   map[storeKey]error{},
	}
}

func (s *Store) setValue(id plan.FieldID, path Path, v any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[storeKey{id, path.key()}] = v
}

func (s *Store) setLen(id plan.FieldID, path Path, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lens[storeKey{id, path.key()}] = n
}

func (s *Store) setErr(id plan.FieldID, path Path, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs[storeKey{id, path.key()}] = err
}

// Value reports the field instance's stored value and whether it was
// stored nil-on-purpose (present) rather than never resolved (absent).
func (s *Store) Value(id plan.FieldID, path Path) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[storeKey{id, path.key()}]
	return v, ok
}

// Len reports a list field instance's length, as recorded when the
// Executor fanned its items out.
func (s *Store) Len(id plan.FieldID, path Path) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.lens[storeKey{id, path.key()}]
	return n, ok
}

// Err reports the error recorded for a field instance, if any.
func (s *Store) Err(id plan.FieldID, path Path) (error, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.errs[storeKey{id, path.key()}]
	return e, ok
}
