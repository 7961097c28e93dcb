// ABOUTME: Thread-safe pipeline state container with per-field merge policies.
// ABOUTME: Defines Patch, Schema (replace/append), and State with snapshot, clone, and apply operations.
package graph

import (
	"reflect"
	"sync"
)

// Patch is a partial state update produced by a node. Keys are state field
// names; how a value folds into existing state is decided by the schema's
// merge policy for that field.
type Patch map[string]any

// MergePolicy decides how an incoming patch value folds into an existing
// state value for the same field.
type MergePolicy int

const (
	// Replace overwrites the existing value (last write wins).
	Replace MergePolicy = iota
	// Append concatenates the incoming value onto the existing ordered
	// sequence. Non-slice values are appended as single elements.
	Append
)

// Schema maps state field names to merge policies. Fields not present in the
// schema default to Replace.
type Schema map[string]MergePolicy

// PolicyFor returns the merge policy for the given field.
func (s Schema) PolicyFor(field string) MergePolicy {
	if s == nil {
		return Replace
	}
	return s[field]
}

// State is a thread-safe field store shared across the nodes of one graph
// run. It is mutable only through Apply, which folds patches in under the
// schema's per-field merge policy.
type State struct {
	schema Schema
	values map[string]any
	mu     sync.RWMutex
}

// NewState creates an empty State governed by the given schema. A nil schema
// means every field replaces.
func NewState(schema Schema) *State {
	return &State{
		schema: schema,
		values: make(map[string]any),
	}
}

// Get retrieves the value for the given field, or nil if unset.
func (s *State) Get(field string) any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values[field]
}

// GetString retrieves the string value for the given field.
// If the field is missing or not a string, defaultVal is returned.
func (s *State) GetString(field, defaultVal string) string {
	v := s.Get(field)
	str, ok := v.(string)
	if !ok {
		return defaultVal
	}
	return str
}

// GetInt retrieves the int value for the given field.
// If the field is missing or not an int, defaultVal is returned.
func (s *State) GetInt(field string, defaultVal int) int {
	v := s.Get(field)
	n, ok := v.(int)
	if !ok {
		return defaultVal
	}
	return n
}

// Snapshot returns a shallow copy of all field-value pairs.
func (s *State) Snapshot() Patch {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := make(Patch, len(s.values))
	for k, v := range s.values {
		snap[k] = v
	}
	return snap
}

// Clone creates an independent copy of the State under the same schema.
// Slice-valued fields are copied so appends in the clone never reach back
// into the parent's backing arrays.
func (s *State) Clone() *State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cloned := &State{
		schema: s.schema,
		values: make(map[string]any, len(s.values)),
	}
	for k, v := range s.values {
		cloned.values[k] = copySliceValue(v)
	}
	return cloned
}

// Apply folds the patch into the state, field by field, under the schema's
// merge policy for each field.
func (s *State) Apply(patch Patch) {
	if len(patch) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for field, incoming := range patch {
		if s.schema.PolicyFor(field) == Append {
			s.values[field] = appendValues(s.values[field], incoming)
			continue
		}
		s.values[field] = incoming
	}
}

// appendValues concatenates incoming onto existing, always allocating a new
// backing array so concurrent clones never share mutable storage. A non-slice
// incoming value is appended as a single element. On element-type mismatch
// the incoming value wins outright, mirroring replace semantics.
func appendValues(existing, incoming any) any {
	if incoming == nil {
		return existing
	}

	in := reflect.ValueOf(incoming)
	if in.Kind() != reflect.Slice {
		sliceType := reflect.SliceOf(in.Type())
		if existing == nil {
			out := reflect.MakeSlice(sliceType, 0, 1)
			return reflect.Append(out, in).Interface()
		}
		ex := reflect.ValueOf(existing)
		if ex.Kind() != reflect.Slice || !in.Type().AssignableTo(ex.Type().Elem()) {
			return incoming
		}
		out := reflect.MakeSlice(ex.Type(), 0, ex.Len()+1)
		out = reflect.AppendSlice(out, ex)
		return reflect.Append(out, in).Interface()
	}

	if existing == nil {
		return copySliceValue(incoming)
	}
	ex := reflect.ValueOf(existing)
	if ex.Kind() != reflect.Slice || ex.Type() != in.Type() {
		return incoming
	}
	out := reflect.MakeSlice(ex.Type(), 0, ex.Len()+in.Len())
	out = reflect.AppendSlice(out, ex)
	return reflect.AppendSlice(out, in).Interface()
}

// copySliceValue returns a fresh copy of v when v is a slice, and v itself
// otherwise. Used to keep clone and append storage independent.
func copySliceValue(v any) any {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice {
		return v
	}
	out := reflect.MakeSlice(rv.Type(), 0, rv.Len())
	return reflect.AppendSlice(out, rv).Interface()
}
