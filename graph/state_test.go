// ABOUTME: Tests for the merge-policy state container.
// ABOUTME: Covers replace vs append semantics, clone isolation, and slice storage independence.
package graph

import (
	"reflect"
	"testing"
)

func TestApply_ReplaceByDefault(t *testing.T) {
	s := NewState(nil)
	s.Apply(Patch{"recommendation": "buy"})
	s.Apply(Patch{"recommendation": "hold"})

	if got := s.GetString("recommendation", ""); got != "hold" {
		t.Errorf("expected last write to win, got %q", got)
	}
}

func TestApply_AppendConcatenates(t *testing.T) {
	schema := Schema{"sections": Append}
	s := NewState(schema)

	s.Apply(Patch{"sections": []string{"one"}})
	s.Apply(Patch{"sections": []string{"two", "three"}})

	got, ok := s.Get("sections").([]string)
	if !ok {
		t.Fatalf("sections is %T, want []string", s.Get("sections"))
	}
	want := []string{"one", "two", "three"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("sections = %v, want %v", got, want)
	}
}

func TestApply_AppendSingleElement(t *testing.T) {
	s := NewState(Schema{"sections": Append})

	s.Apply(Patch{"sections": "solo"})
	s.Apply(Patch{"sections": "encore"})

	got, ok := s.Get("sections").([]string)
	if !ok {
		t.Fatalf("sections is %T, want []string", s.Get("sections"))
	}
	if len(got) != 2 || got[0] != "solo" || got[1] != "encore" {
		t.Errorf("sections = %v, want [solo encore]", got)
	}
}

func TestApply_AppendNilValueIsNoop(t *testing.T) {
	s := NewState(Schema{"sections": Append})
	s.Apply(Patch{"sections": []string{"kept"}})
	s.Apply(Patch{"sections": nil})

	got, _ := s.Get("sections").([]string)
	if len(got) != 1 || got[0] != "kept" {
		t.Errorf("sections = %v, want [kept]", got)
	}
}

func TestApply_AppendTypeMismatchReplaces(t *testing.T) {
	s := NewState(Schema{"sections": Append})
	s.Apply(Patch{"sections": []string{"a"}})
	s.Apply(Patch{"sections": []int{1, 2}})

	got, ok := s.Get("sections").([]int)
	if !ok || len(got) != 2 {
		t.Errorf("expected mismatched slice to replace, got %v", s.Get("sections"))
	}
}

func TestClone_IsIsolatedFromParent(t *testing.T) {
	schema := Schema{"context": Append}
	parent := NewState(schema)
	parent.Apply(Patch{"context": []string{"base"}, "market": "mkt-1"})

	clone := parent.Clone()
	clone.Apply(Patch{"context": []string{"branch-only"}, "market": "mkt-2"})

	parentCtx, _ := parent.Get("context").([]string)
	if len(parentCtx) != 1 {
		t.Errorf("parent context grew to %v after clone write", parentCtx)
	}
	if got := parent.GetString("market", ""); got != "mkt-1" {
		t.Errorf("parent market = %q, clone write leaked", got)
	}
	cloneCtx, _ := clone.Get("context").([]string)
	if len(cloneCtx) != 2 {
		t.Errorf("clone context = %v, want 2 entries", cloneCtx)
	}
}

func TestClone_SliceBackingIsCopied(t *testing.T) {
	s := NewState(Schema{"sections": Append})
	s.Apply(Patch{"sections": []string{"a", "b"}})

	clone := s.Clone()
	clone.Apply(Patch{"sections": []string{"c"}})
	s.Apply(Patch{"sections": []string{"d"}})

	got, _ := s.Get("sections").([]string)
	if !reflect.DeepEqual(got, []string{"a", "b", "d"}) {
		t.Errorf("parent sections = %v, want [a b d]", got)
	}
	cloned, _ := clone.Get("sections").([]string)
	if !reflect.DeepEqual(cloned, []string{"a", "b", "c"}) {
		t.Errorf("clone sections = %v, want [a b c]", cloned)
	}
}

func TestGetInt_DefaultsOnMissingOrWrongType(t *testing.T) {
	s := NewState(nil)
	if got := s.GetInt("maxTurns", 2); got != 2 {
		t.Errorf("missing field: got %d, want default 2", got)
	}
	s.Apply(Patch{"maxTurns": "three"})
	if got := s.GetInt("maxTurns", 2); got != 2 {
		t.Errorf("wrong type: got %d, want default 2", got)
	}
	s.Apply(Patch{"maxTurns": 5})
	if got := s.GetInt("maxTurns", 2); got != 5 {
		t.Errorf("got %d, want 5", got)
	}
}

func TestSnapshot_IsShallowCopy(t *testing.T) {
	s := NewState(nil)
	s.Apply(Patch{"market": "m1"})

	snap := s.Snapshot()
	snap["market"] = "tampered"

	if got := s.GetString("market", ""); got != "m1" {
		t.Errorf("snapshot mutation reached state: %q", got)
	}
}
