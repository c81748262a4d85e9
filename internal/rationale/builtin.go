package rationale

// Rule identifiers.
const (
	RuleCIBILScore    = "cibil-score"
	RuleBankBalance   = "bank-balance"
	RuleExistingLoans = "existing-loans"
	RuleLoanToBalance = "loan-to-balance"
	RuleEmployment    = "employment"
)

const unstableEmployers = `["Unemployed", "Contract"]`

// DefaultRules returns the built-in rules in evaluation order. Money is
// compared through the decimal_* functions so thresholds are exact.
func DefaultRules() []Rule {
	return []Rule{
		{
			ID:          RuleCIBILScore,
			RejectWhen:  "cibil_score < 650",
			Rejection:   Message{Text: "Low CIBIL Score", Detail: "Less than 650"},
			ApproveWhen: "cibil_score >= 650",
			Approval:    Message{Text: "High CIBIL Score", Detail: "Above 650"},
		},
		{
			ID:          RuleBankBalance,
			RejectWhen:  `decimal_cmp(bank_balance_exact, "50000") < 0`,
			Rejection:   Message{Text: "Low Bank Balance", Detail: "Less than ₹50,000"},
			ApproveWhen: `decimal_cmp(bank_balance_exact, "50000") >= 0`,
			Approval:    Message{Text: "Good Bank Balance", Detail: "More than ₹50,000"},
		},
		{
			ID:          RuleExistingLoans,
			RejectWhen:  `existing_loans == "Yes"`,
			Rejection:   Message{Text: "Has Existing Loans", Detail: "Loan already active"},
			ApproveWhen: `existing_loans == "No"`,
			Approval:    Message{Text: "No Existing Loans", Detail: "No active loans"},
		},
		{
			ID:         RuleLoanToBalance,
			RejectWhen: `decimal_cmp(loan_amount_exact, decimal_mul(bank_balance_exact, "2")) > 0`,
			Rejection:  Message{Text: "High Loan Amount Compared to Balance", Detail: "Requested > 2x Bank Balance"},
		},
		{
			ID:          RuleEmployment,
			RejectWhen:  "employment_type in " + unstableEmployers,
			Rejection:   Message{Text: "Unstable Employment", Detail: "Not Full-time/Permanent Job"},
			ApproveWhen: "!(employment_type in " + unstableEmployers + ")",
			Approval:    Message{Text: "Stable Employment", Detail: "Permanent Job"},
		},
	}
}
