package prompt

import (
	"strings"
	"testing"
)

func TestRegistryRegisterResolve(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(Spec{Name: "Kyma-Expert", System: "sys v1"}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := r.Register(Spec{Name: "kyma-expert", Version: "v2", System: "sys v2"}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	spec, ok := r.Resolve("kyma-expert@v1")
	if !ok || spec.System != "sys v1" {
		t.Fatalf("expected v1 spec, got %#v ok=%v", spec, ok)
	}
	spec, ok = r.Resolve("kyma-expert")
	if !ok || spec.Version != "v2" {
		t.Fatalf("expected latest version v2, got %#v ok=%v", spec, ok)
	}
	if _, ok := r.Resolve("unknown"); ok {
		t.Fatal("expected unknown prompt to miss")
	}
}

func TestRegisterRejectsInvalidSpecs(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(Spec{Name: "", System: "x"}); err == nil {
		t.Fatal("expected error for empty name")
	}
	if err := r.Register(Spec{Name: "ok", System: ""}); err == nil {
		t.Fatal("expected error for empty system text")
	}
	if err := r.Register(Spec{Name: "bad name!", System: "x"}); err == nil {
		t.Fatal("expected error for invalid identifier")
	}
}

func TestRegisterBuiltins(t *testing.T) {
	r := NewRegistry()
	RegisterBuiltins(r)
	if _, ok := r.Resolve("kyma-expert"); !ok {
		t.Fatal("expected kyma-expert builtin")
	}
	names := r.Names()
	if len(names) < 2 {
		t.Fatalf("expected at least two builtins, got %v", names)
	}
}

func TestRender(t *testing.T) {
	out, err := Render("Cluster context:\n{{context}}\nGive {{ count }} questions.", map[string]string{
		"context": "two failing pods",
		"count":   "5",
	})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if !strings.Contains(out, "two failing pods") || !strings.Contains(out, "Give 5 questions.") {
		t.Fatalf("unexpected render output: %q", out)
	}
}

func TestRender_MissingVariables(t *testing.T) {
	_, err := Render("{{a}} and {{b}} and {{a}}", map[string]string{})
	if err == nil {
		t.Fatal("expected error for missing variables")
	}
	if !strings.Contains(err.Error(), "a, b") {
		t.Fatalf("expected sorted unique missing vars, got %v", err)
	}
}
