// Package rationale explains loan decisions with fixed CEL rules over raw
// customer fields. It never consults the classifier.
package rationale

import (
	"fmt"
	"log/slog"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/shopspring/decimal"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Message is the text attached to one side of a rule.
type Message struct {
	Text   string
	Detail string
}

// Rule is one ordered rationale rule. Either side may be empty; when both
// conditions are false the rule contributes nothing.
type Rule struct {
	ID string

	RejectWhen string
	Rejection  Message

	ApproveWhen string
	Approval    Message
}

// compiledRule holds the pre-compiled CEL programs for a rule.
type compiledRule struct {
	rule    Rule
	reject  cel.Program
	approve cel.Program
}

// Engine evaluates rationale rules in a fixed order.
// Programs are compiled once and the engine is safe for concurrent use.
type Engine struct {
	rules  []compiledRule
	logger *slog.Logger
}

// NewEngine compiles the given rules, keeping their order.
func NewEngine(rules []Rule, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}

	env, err := newEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	e := &Engine{
		rules:  make([]compiledRule, 0, len(rules)),
		logger: logger,
	}

	seen := make(map[string]bool, len(rules))
	for _, r := range rules {
		if r.ID == "" {
			return nil, fmt.Errorf("rule id is required")
		}
		if seen[r.ID] {
			return nil, fmt.Errorf("duplicate rule %s", r.ID)
		}
		seen[r.ID] = true

		if r.RejectWhen == "" && r.ApproveWhen == "" {
			return nil, fmt.Errorf("rule %s has no conditions", r.ID)
		}

		cr := compiledRule{rule: r}
		if r.RejectWhen != "" {
			if cr.reject, err = compile(env, r.ID, r.RejectWhen); err != nil {
				return nil, err
			}
		}
		if r.ApproveWhen != "" {
			if cr.approve, err = compile(env, r.ID, r.ApproveWhen); err != nil {
				return nil, err
			}
		}
		e.rules = append(e.rules, cr)
	}

	return e, nil
}

// NewDefaultEngine compiles the built-in loan rules.
func NewDefaultEngine(logger *slog.Logger) (*Engine, error) {
	return NewEngine(DefaultRules(), logger)
}

func newEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("record", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("cibil_score", cel.IntType),
		cel.Variable("bank_balance", cel.DoubleType),
		cel.Variable("existing_loans", cel.StringType),
		cel.Variable("loan_amount", cel.DoubleType),
		cel.Variable("employment_type", cel.StringType),
		cel.Variable("income_source", cel.StringType),
		cel.Variable("bank_balance_exact", cel.StringType),
		cel.Variable("loan_amount_exact", cel.StringType),
		cel.Function("decimal_cmp",
			cel.Overload("decimal_cmp_string_string",
				[]*cel.Type{cel.StringType, cel.StringType}, cel.IntType,
				cel.BinaryBinding(decimalCmp))),
		cel.Function("decimal_mul",
			cel.Overload("decimal_mul_string_string",
				[]*cel.Type{cel.StringType, cel.StringType}, cel.StringType,
				cel.BinaryBinding(decimalMul))),
	)
}

// decimalCmp compares two decimal strings exactly, returning -1, 0 or 1.
func decimalCmp(lhs, rhs ref.Val) ref.Val {
	a, b, err := decimalArgs(lhs, rhs)
	if err != nil {
		return types.NewErr("decimal_cmp: %v", err)
	}
	return types.Int(a.Cmp(b))
}

func decimalMul(lhs, rhs ref.Val) ref.Val {
	a, b, err := decimalArgs(lhs, rhs)
	if err != nil {
		return types.NewErr("decimal_mul: %v", err)
	}
	return types.String(a.Mul(b).String())
}

func decimalArgs(lhs, rhs ref.Val) (decimal.Decimal, decimal.Decimal, error) {
	ls, ok := lhs.(types.String)
	if !ok {
		return decimal.Zero, decimal.Zero, fmt.Errorf("expected string, got %s", lhs.Type())
	}
	rs, ok := rhs.(types.String)
	if !ok {
		return decimal.Zero, decimal.Zero, fmt.Errorf("expected string, got %s", rhs.Type())
	}
	a, err := decimal.NewFromString(string(ls))
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	b, err := decimal.NewFromString(string(rs))
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return a, b, nil
}

func compile(env *cel.Env, id, expr string) (cel.Program, error) {
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile rule %s: %w", id, issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("rule %s: expression must return bool, got %s", id, ast.OutputType())
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for rule %s: %w", id, err)
	}
	return program, nil
}

// Explain returns the reasons that support the outcome, in rule order.
// Approved surfaces only approval reasons and Rejected only rejection reasons.
func (e *Engine) Explain(rec *domain.CustomerRecord, outcome domain.Outcome) domain.ReasonSet {
	reasons := domain.ReasonSet{}
	for _, r := range e.Assess(rec) {
		if r.Leaning.Supports(outcome) {
			reasons = append(reasons, r)
		}
	}
	return reasons
}

// Assess returns every triggered reason regardless of outcome, in rule order.
func (e *Engine) Assess(rec *domain.CustomerRecord) []domain.Reason {
	if rec == nil {
		return nil
	}

	activation := newActivation(rec)
	var reasons []domain.Reason

	for i := range e.rules {
		cr := &e.rules[i]
		if e.holds(cr, cr.reject, activation) {
			reasons = append(reasons, domain.Reason{
				RuleID:  cr.rule.ID,
				Text:    cr.rule.Rejection.Text,
				Detail:  cr.rule.Rejection.Detail,
				Leaning: domain.LeaningRejection,
			})
		}
		if e.holds(cr, cr.approve, activation) {
			reasons = append(reasons, domain.Reason{
				RuleID:  cr.rule.ID,
				Text:    cr.rule.Approval.Text,
				Detail:  cr.rule.Approval.Detail,
				Leaning: domain.LeaningApproval,
			})
		}
	}
	return reasons
}

// RuleIDs returns the rule identifiers in evaluation order.
func (e *Engine) RuleIDs() []string {
	ids := make([]string, len(e.rules))
	for i := range e.rules {
		ids[i] = e.rules[i].rule.ID
	}
	return ids
}

// Disagrees reports whether none of the reasons supports the outcome.
func Disagrees(outcome domain.Outcome, reasons []domain.Reason) bool {
	for _, r := range reasons {
		if r.Leaning.Supports(outcome) {
			return false
		}
	}
	return true
}

func (e *Engine) holds(cr *compiledRule, program cel.Program, activation map[string]any) bool {
	if program == nil {
		return false
	}
	out, _, err := program.Eval(activation)
	if err != nil {
		e.logger.Error("rationale rule evaluation failed", "rule_id", cr.rule.ID, "error", err)
		return false
	}
	return toBool(out)
}

func newActivation(rec *domain.CustomerRecord) map[string]any {
	return map[string]any{
		"record":          rec.Columns(),
		"cibil_score":     int64(rec.CIBILScore),
		"bank_balance":    rec.BankBalance.InexactFloat64(),
		"existing_loans":  rec.ExistingLoans,
		"loan_amount":     rec.LoanAmountRequested.InexactFloat64(),
		"employment_type": rec.EmploymentType,
		"income_source":   rec.IncomeSource,

		"bank_balance_exact": rec.BankBalance.String(),
		"loan_amount_exact":  rec.LoanAmountRequested.String(),
	}
}

// toBool converts a CEL value to a rule result.
func toBool(val ref.Val) bool {
	if b, ok := val.(types.Bool); ok {
		return bool(b)
	}
	return false
}
