package metadata

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Rule is a compiled expression rule. The expression sees `record` (the
// candidate values) and `partial` (true for updates) and must evaluate to a
// boolean; true means the record violates the rule.
type Rule struct {
	Field      string `json:"field,omitempty"`
	Expression string `json:"expression"`
	Message    string `json:"message"`

	program *vm.Program
}

// CompileRule compiles a policy rule once at load time.
func CompileRule(rp RulePolicy) (*Rule, error) {
	prog, err := expr.Compile(rp.Expression, expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile rule %q: %w", rp.Expression, err)
	}
	msg := rp.Message
	if msg == "" {
		msg = fmt.Sprintf("failed rule %s", rp.Expression)
	}
	return &Rule{Field: rp.Field, Expression: rp.Expression, Message: msg, program: prog}, nil
}

// Violated runs the rule against a record.
func (r *Rule) Violated(record map[string]any, partial bool) (bool, error) {
	env := map[string]any{
		"record":  record,
		"partial": partial,
	}
	result, err := expr.Run(r.program, env)
	if err != nil {
		return false, fmt.Errorf("evaluate rule %q: %w", r.Expression, err)
	}
	violated, _ := result.(bool)
	return violated, nil
}
