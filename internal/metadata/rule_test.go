package metadata

import "testing"

func TestCompileRule_Violation(t *testing.T) {
	rule, err := CompileRule(RulePolicy{
		Field:      "title",
		Expression: `record.title != nil && len(record.title) > 5`,
		Message:    "Title is too long",
	})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	violated, err := rule.Violated(map[string]any{"title": "A very long title"}, false)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !violated {
		t.Fatal("expected violation for long title")
	}

	violated, err = rule.Violated(map[string]any{"title": "Short"}, false)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if violated {
		t.Fatal("expected no violation for short title")
	}

	// Absent field: rule guards with nil check
	violated, err = rule.Violated(map[string]any{}, true)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if violated {
		t.Fatal("expected no violation for absent title")
	}
}

func TestCompileRule_PartialFlag(t *testing.T) {
	rule, err := CompileRule(RulePolicy{Expression: `!partial && record.pages == nil`})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if rule.Message == "" {
		t.Fatal("expected a default message")
	}

	violated, _ := rule.Violated(map[string]any{}, false)
	if !violated {
		t.Fatal("expected violation on create without pages")
	}
	violated, _ = rule.Violated(map[string]any{}, true)
	if violated {
		t.Fatal("expected partial update to skip the rule")
	}
}

func TestCompileRule_RejectsNonBoolean(t *testing.T) {
	if _, err := CompileRule(RulePolicy{Expression: `1 + 2`}); err == nil {
		t.Fatal("expected compile error for non-boolean expression")
	}
}
