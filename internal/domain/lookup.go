package domain

import (
	"time"
)

// Outcome is the classifier's binary decision.
type Outcome string

const (
	OutcomeApproved Outcome = "Approved"
	OutcomeRejected Outcome = "Rejected"
)

// OutcomeFromLabel maps a classifier label to an Outcome.
func OutcomeFromLabel(label int) (Outcome, bool) {
	switch label {
	case 1:
		return OutcomeApproved, true
	case 0:
		return OutcomeRejected, true
	default:
		return "", false
	}
}

// Leaning tags a reason as supporting approval or rejection.
type Leaning string

const (
	LeaningApproval  Leaning = "approval"
	LeaningRejection Leaning = "rejection"
)

// Supports reports whether a leaning backs the outcome.
func (l Leaning) Supports(o Outcome) bool {
	return (l == LeaningApproval && o == OutcomeApproved) ||
		(l == LeaningRejection && o == OutcomeRejected)
}

// Reason is one contributing factor in a decision rationale.
type Reason struct {
	RuleID  string  `json:"ruleId"`
	Text    string  `json:"text"`
	Detail  string  `json:"detail,omitempty"`
	Leaning Leaning `json:"leaning"`
}

// ReasonSet is ordered by rule evaluation order, not by severity.
type ReasonSet []Reason

// Texts returns the short reason texts in order.
func (rs ReasonSet) Texts() []string {
	texts := make([]string, len(rs))
	for i, r := range rs {
		texts[i] = r.Text
	}
	return texts
}

// LookupResult is the composed output of one lookup.
type LookupResult struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Record    CustomerRecord `json:"record"`
	Outcome   Outcome        `json:"outcome"`
	Reasons   ReasonSet      `json:"reasons"`
	Features  FeatureVector  `json:"features"`
	Timestamp time.Time      `json:"timestamp"`

	// RationaleDisagrees is set when no surfaced reason supports the outcome.
	RationaleDisagrees bool `json:"rationaleDisagrees"`

	Metadata LookupMetadata `json:"metadata"`
}

// LookupMetadata contains processing information.
type LookupMetadata struct {
	TraceID        string `json:"traceId,omitempty"`
	FetchMs        int64  `json:"fetchMs"`
	ScoreMs        int64  `json:"scoreMs"`
	TotalMs        int64  `json:"totalMs"`
	ModelVersion   string `json:"modelVersion"`
	EncoderVersion string `json:"encoderVersion,omitempty"`
	EngineVersion  string `json:"engineVersion"`
}

// CustomerDetails is the customer summary shown next to a decision.
type CustomerDetails struct {
	Name                string  `json:"name"`
	Age                 *int    `json:"age,omitempty"`
	Gender              string  `json:"gender,omitempty"`
	Phone               string  `json:"phone,omitempty"`
	City                string  `json:"city,omitempty"`
	State               string  `json:"state,omitempty"`
	Pincode             string  `json:"pincode,omitempty"`
	BankBalance         float64 `json:"bankBalance"`
	CIBILScore          int     `json:"cibilScore"`
	ExistingLoans       string  `json:"existingLoans"`
	LoanAmountRequested float64 `json:"loanAmountRequested"`
	LoanTenureMonths    *int    `json:"loanTenureMonths,omitempty"`
}

// LookupResponse is the API response for a lookup.
type LookupResponse struct {
	LookupID           string          `json:"lookupId"`
	Status             Outcome         `json:"status"`
	Customer           CustomerDetails `json:"customer"`
	Reasons            []string        `json:"reasons"`
	ReasonDetails      ReasonSet       `json:"reasonDetails"`
	RationaleDisagrees bool            `json:"rationaleDisagrees"`
	Metadata           LookupMetadata  `json:"metadata"`
}

// ToResponse converts a LookupResult to an API response.
func (r *LookupResult) ToResponse() *LookupResponse {
	rec := r.Record
	reasons := r.Reasons
	if reasons == nil {
		reasons = ReasonSet{}
	}
	return &LookupResponse{
		LookupID: r.ID,
		Status:   r.Outcome,
		Customer: CustomerDetails{
			Name:                rec.Name,
			Age:                 rec.Age,
			Gender:              rec.Gender,
			Phone:               rec.Phone,
			City:                rec.City,
			State:               rec.State,
			Pincode:             rec.Pincode,
			BankBalance:         rec.BankBalance.InexactFloat64(),
			CIBILScore:          rec.CIBILScore,
			ExistingLoans:       rec.ExistingLoans,
			LoanAmountRequested: rec.LoanAmountRequested.InexactFloat64(),
			LoanTenureMonths:    rec.LoanTenureMonths,
		},
		Reasons:            reasons.Texts(),
		ReasonDetails:      reasons,
		RationaleDisagrees: r.RationaleDisagrees,
		Metadata:           r.Metadata,
	}
}

// LookupActivity is the persisted trace of a completed lookup.
type LookupActivity struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	Outcome            Outcome   `json:"outcome"`
	Reasons            ReasonSet `json:"reasons"`
	ModelVersion       string    `json:"modelVersion"`
	RationaleDisagrees bool      `json:"rationaleDisagrees"`
	Timestamp          time.Time `json:"timestamp"`
	TotalMs            int64     `json:"totalMs"`
}

// Activity returns the persisted form of a result.
func (r *LookupResult) Activity() *LookupActivity {
	return &LookupActivity{
		ID:                 r.ID,
		Name:               r.Name,
		Outcome:            r.Outcome,
		Reasons:            r.Reasons,
		ModelVersion:       r.Metadata.ModelVersion,
		RationaleDisagrees: r.RationaleDisagrees,
		Timestamp:          r.Timestamp,
		TotalMs:            r.Metadata.TotalMs,
	}
}
