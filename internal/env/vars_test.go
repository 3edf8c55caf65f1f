package env

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestVars_SetKeepsPosition(t *testing.T) {
	v := NewVars()
	v.Set("B", "1")
	v.Set("A", "2")
	v.Set("B", "3")

	if diff := cmp.Diff([]string{"B=3", "A=2"}, v.Pairs()); diff != "" {
		t.Errorf("Pairs mismatch (-want +got):\n%s", diff)
	}
}

func TestVars_Delete(t *testing.T) {
	v := NewVars()
	v.Set("A", "1")
	v.Set("B", "2")
	v.Set("C", "3")
	v.Delete("B")
	v.Delete("MISSING")

	if diff := cmp.Diff([]string{"A", "C"}, v.Keys()); diff != "" {
		t.Errorf("Keys mismatch (-want +got):\n%s", diff)
	}
	if _, ok := v.Get("B"); ok {
		t.Error("B should be deleted")
	}
}

func TestVars_MergeOtherWins(t *testing.T) {
	base := NewVars()
	base.Set("A", "base")
	base.Set("B", "base")

	other := NewVars()
	other.Set("B", "other")
	other.Set("C", "other")

	got := base.Clone().Merge(other)

	want := map[string]string{"A": "base", "B": "other", "C": "other"}
	if diff := cmp.Diff(want, got.Map()); diff != "" {
		t.Errorf("Merge mismatch (-want +got):\n%s", diff)
	}
	if value, _ := base.Get("B"); value != "base" {
		t.Errorf("Clone should leave the original untouched, got B=%q", value)
	}
}

func TestFromMap_Sorted(t *testing.T) {
	v := FromMap(map[string]string{"Z": "1", "A": "2", "M": "3"})
	if diff := cmp.Diff([]string{"A", "M", "Z"}, v.Keys()); diff != "" {
		t.Errorf("Keys mismatch (-want +got):\n%s", diff)
	}
}

func TestParsePairs(t *testing.T) {
	v := ParsePairs([]string{"A=1", "B=x=y", "NOEQUALS", "=empty", "C="})

	want := map[string]string{"A": "1", "B": "x=y", "C": ""}
	if diff := cmp.Diff(want, v.Map()); diff != "" {
		t.Errorf("ParsePairs mismatch (-want +got):\n%s", diff)
	}
}

func TestVars_NilSafe(t *testing.T) {
	var v *Vars
	if v.Len() != 0 {
		t.Errorf("Len() = %d, want 0", v.Len())
	}
	if _, ok := v.Get("A"); ok {
		t.Error("Get on nil Vars should report unset")
	}
	if len(v.Pairs()) != 0 {
		t.Error("Pairs on nil Vars should be empty")
	}
}
