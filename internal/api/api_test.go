package api

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Iron-Ham/mailcd/internal/env"
	"github.com/Iron-Ham/mailcd/internal/store"
)

func newDefault(t *testing.T) *Default {
	t.Helper()
	root := t.TempDir()
	return NewDefault(
		store.New(filepath.Join(root, "storage"), nil),
		env.NewConfigs(filepath.Join(root, "env"), "default"),
	)
}

// findOverride answers Find only.
type findOverride struct {
	calls []string
}

func (f *findOverride) Find(storageID string, labels ...string) ([]string, error) {
	f.calls = append(f.calls, storageID)
	return []string{"override-hash"}, nil
}

func TestAPI_RoutesOverriddenOperation(t *testing.T) {
	def := newDefault(t)
	override := &findOverride{}
	a := New(def, override)

	got, err := a.Find("APP", "stable")
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if diff := cmp.Diff([]string{"override-hash"}, got); diff != "" {
		t.Errorf("Find mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"APP"}, override.calls); diff != "" {
		t.Errorf("override calls mismatch (-want +got):\n%s", diff)
	}
}

func TestAPI_FallsBackToDefault(t *testing.T) {
	def := newDefault(t)
	a := New(def, &findOverride{})

	src := t.TempDir()
	if err := os.WriteFile(filepath.Join(src, "app.bin"), []byte("binary"), 0644); err != nil {
		t.Fatal(err)
	}
	hash, err := a.Add("APP", src)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	hashes, err := a.List("APP")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if diff := cmp.Diff([]string{hash}, hashes); diff != "" {
		t.Errorf("List mismatch (-want +got):\n%s", diff)
	}
}

func TestAPI_NilOverride(t *testing.T) {
	a := New(newDefault(t), nil)
	if a.HasOverride() {
		t.Error("HasOverride() = true for a nil override")
	}

	if err := a.CreateEnvironment("ci"); err != nil {
		t.Fatalf("CreateEnvironment failed: %v", err)
	}
	if err := a.SelectEnvironment("ci"); err != nil {
		t.Fatalf("SelectEnvironment failed: %v", err)
	}
	if err := a.SetVariable("", "TARGET", "release"); err != nil {
		t.Fatalf("SetVariable failed: %v", err)
	}

	selected, ok := a.SelectedEnvironment()
	if !ok || selected != "ci" {
		t.Errorf("SelectedEnvironment() = %q, %v; want ci, true", selected, ok)
	}
	vars, err := a.Variables("")
	if err != nil {
		t.Fatalf("Variables failed: %v", err)
	}
	if diff := cmp.Diff(map[string]string{"TARGET": "release"}, vars.Map()); diff != "" {
		t.Errorf("Variables mismatch (-want +got):\n%s", diff)
	}

	if err := a.UnsetVariable("ci", "TARGET"); err != nil {
		t.Fatalf("UnsetVariable failed: %v", err)
	}
	vars, err = a.Variables("ci")
	if err != nil {
		t.Fatalf("Variables failed: %v", err)
	}
	if vars.Len() != 0 {
		t.Errorf("expected no variables after unset, got %v", vars.Map())
	}

	names, err := a.Environments()
	if err != nil {
		t.Fatalf("Environments failed: %v", err)
	}
	if diff := cmp.Diff([]string{"ci"}, names); diff != "" {
		t.Errorf("Environments mismatch (-want +got):\n%s", diff)
	}
	if err := a.DeleteEnvironment("ci"); err != nil {
		t.Fatalf("DeleteEnvironment failed: %v", err)
	}
	if _, ok := a.SelectedEnvironment(); ok {
		t.Error("selection should be cleared after deleting the selected config")
	}
}

// Override values must satisfy the interfaces they intend to replace.
var (
	_ StoreFinder = (*findOverride)(nil)
	_ Backend     = (*Default)(nil)
)
