package domain

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Document column names used by the customer store.
const (
	ColumnCustomerID          = "Customer_ID"
	ColumnName                = "Name"
	ColumnAge                 = "Age"
	ColumnGender              = "Gender"
	ColumnPhone               = "Phone_Number"
	ColumnEmail               = "Email"
	ColumnAddress             = "Address"
	ColumnCity                = "City"
	ColumnState               = "State"
	ColumnPincode             = "Pincode"
	ColumnBankBalance         = "Bank_Balance"
	ColumnCIBILScore          = "CIBIL_Score"
	ColumnExistingLoans       = "Existing_Loans"
	ColumnIncomeSource        = "Income_Source"
	ColumnEmploymentType      = "Employment_Type"
	ColumnLoanAmountRequested = "Loan_Amount_Requested"
	ColumnLoanTenureMonths    = "Loan_Tenure_Months"
	ColumnLoanStatus          = "Loan_Status"
)

// IdentifyingColumns are never allowed into model input.
var IdentifyingColumns = []string{
	ColumnCustomerID,
	ColumnName,
	ColumnPhone,
	ColumnEmail,
	ColumnAddress,
	ColumnCity,
	ColumnState,
	ColumnPincode,
	ColumnLoanStatus,
}

// CategoricalColumns are label-encoded before scoring.
var CategoricalColumns = []string{
	ColumnGender,
	ColumnIncomeSource,
	ColumnEmploymentType,
}

// Existing-loans flag values.
const (
	ExistingLoansYes = "Yes"
	ExistingLoansNo  = "No"
)

// CustomerRecord is a typed view of a stored customer document.
// Name, CIBILScore, BankBalance, ExistingLoans, EmploymentType and
// LoanAmountRequested are required; everything else is optional.
type CustomerRecord struct {
	CustomerID string `json:"customerId,omitempty"`
	Name       string `json:"name"`
	Age        *int   `json:"age,omitempty"`
	Gender     string `json:"gender,omitempty"`

	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
	Address string `json:"address,omitempty"`
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	Pincode string `json:"pincode,omitempty"`

	BankBalance         decimal.Decimal `json:"bankBalance"`
	CIBILScore          int             `json:"cibilScore"`
	ExistingLoans       string          `json:"existingLoans"`
	IncomeSource        string          `json:"incomeSource,omitempty"`
	EmploymentType      string          `json:"employmentType"`
	LoanAmountRequested decimal.Decimal `json:"loanAmountRequested"`
	LoanTenureMonths    *int            `json:"loanTenureMonths,omitempty"`

	// PriorLoanStatus is the historical label, if the store has one.
	PriorLoanStatus string `json:"priorLoanStatus,omitempty"`

	// Extra holds document fields that have no typed counterpart.
	Extra map[string]any `json:"extra,omitempty"`

	// blank lists optional columns the document carried as empty text.
	blank map[string]bool
}

var knownColumns = map[string]bool{
	ColumnCustomerID: true, ColumnName: true, ColumnAge: true, ColumnGender: true,
	ColumnPhone: true, ColumnEmail: true, ColumnAddress: true, ColumnCity: true,
	ColumnState: true, ColumnPincode: true, ColumnBankBalance: true, ColumnCIBILScore: true,
	ColumnExistingLoans: true, ColumnIncomeSource: true, ColumnEmploymentType: true,
	ColumnLoanAmountRequested: true, ColumnLoanTenureMonths: true, ColumnLoanStatus: true,
	"_id": true,
}

// RecordFromDocument converts a loosely typed store document into a CustomerRecord.
func RecordFromDocument(doc map[string]any) (*CustomerRecord, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: empty document", ErrInvalidRecord)
	}

	rec := &CustomerRecord{}
	var err error

	if rec.Name, err = requiredString(doc, ColumnName); err != nil {
		return nil, err
	}
	if rec.ExistingLoans, err = requiredString(doc, ColumnExistingLoans); err != nil {
		return nil, err
	}
	if rec.EmploymentType, err = requiredString(doc, ColumnEmploymentType); err != nil {
		return nil, err
	}

	score, ok, err := numberField(doc, ColumnCIBILScore)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s is required", ErrInvalidRecord, ColumnCIBILScore)
	}
	rec.CIBILScore = int(score.IntPart())

	balance, ok, err := numberField(doc, ColumnBankBalance)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s is required", ErrInvalidRecord, ColumnBankBalance)
	}
	rec.BankBalance = balance

	amount, ok, err := numberField(doc, ColumnLoanAmountRequested)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s is required", ErrInvalidRecord, ColumnLoanAmountRequested)
	}
	rec.LoanAmountRequested = amount

	if age, ok, err := numberField(doc, ColumnAge); err != nil {
		return nil, err
	} else if ok {
		v := int(age.IntPart())
		rec.Age = &v
	}
	if tenure, ok, err := numberField(doc, ColumnLoanTenureMonths); err != nil {
		return nil, err
	} else if ok {
		v := int(tenure.IntPart())
		rec.LoanTenureMonths = &v
	}

	rec.CustomerID = optionalString(doc, ColumnCustomerID)
	rec.Gender = optionalString(doc, ColumnGender)
	rec.Phone = optionalString(doc, ColumnPhone)
	rec.Email = optionalString(doc, ColumnEmail)
	rec.Address = optionalString(doc, ColumnAddress)
	rec.City = optionalString(doc, ColumnCity)
	rec.State = optionalString(doc, ColumnState)
	rec.Pincode = optionalString(doc, ColumnPincode)
	rec.IncomeSource = optionalString(doc, ColumnIncomeSource)
	rec.PriorLoanStatus = optionalString(doc, ColumnLoanStatus)

	for _, k := range optionalTextColumns {
		if v, ok := doc[k].(string); ok && v == "" {
			if rec.blank == nil {
				rec.blank = make(map[string]bool)
			}
			rec.blank[k] = true
		}
	}

	for k, v := range doc {
		if knownColumns[k] {
			continue
		}
		if rec.Extra == nil {
			rec.Extra = make(map[string]any)
		}
		rec.Extra[k] = v
	}

	return rec, nil
}

var optionalTextColumns = []string{
	ColumnCustomerID, ColumnGender, ColumnPhone, ColumnEmail, ColumnAddress, ColumnCity,
	ColumnState, ColumnPincode, ColumnIncomeSource, ColumnLoanStatus,
}

// Columns returns the record as a document keyed by store column names.
// Optional fields that are unset are omitted; ones stored as empty text
// stay present as "".
func (c *CustomerRecord) Columns() map[string]any {
	cols := make(map[string]any, 18+len(c.Extra))
	for k, v := range c.Extra {
		cols[k] = v
	}

	cols[ColumnName] = c.Name
	cols[ColumnBankBalance] = c.BankBalance.InexactFloat64()
	cols[ColumnCIBILScore] = c.CIBILScore
	cols[ColumnExistingLoans] = c.ExistingLoans
	cols[ColumnEmploymentType] = c.EmploymentType
	cols[ColumnLoanAmountRequested] = c.LoanAmountRequested.InexactFloat64()

	if c.Age != nil {
		cols[ColumnAge] = *c.Age
	}
	if c.LoanTenureMonths != nil {
		cols[ColumnLoanTenureMonths] = *c.LoanTenureMonths
	}

	optional := map[string]string{
		ColumnCustomerID:   c.CustomerID,
		ColumnGender:       c.Gender,
		ColumnPhone:        c.Phone,
		ColumnEmail:        c.Email,
		ColumnAddress:      c.Address,
		ColumnCity:         c.City,
		ColumnState:        c.State,
		ColumnPincode:      c.Pincode,
		ColumnIncomeSource: c.IncomeSource,
		ColumnLoanStatus:   c.PriorLoanStatus,
	}
	for k, v := range optional {
		if v != "" || c.blank[k] {
			cols[k] = v
		}
	}

	return cols
}

func requiredString(doc map[string]any, key string) (string, error) {
	v, ok := doc[key]
	if !ok || v == nil {
		return "", fmt.Errorf("%w: %s is required", ErrInvalidRecord, key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s must be text, got %T", ErrInvalidRecord, key, v)
	}
	return s, nil
}

func optionalString(doc map[string]any, key string) string {
	switch v := doc[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// numberField reads a numeric column. Stores hand back int32, int64,
// float64 or numeric text depending on how the document was written.
func numberField(doc map[string]any, key string) (decimal.Decimal, bool, error) {
	v, ok := doc[key]
	if !ok || v == nil {
		return decimal.Zero, false, nil
	}

	switch n := v.(type) {
	case int:
		return decimal.NewFromInt(int64(n)), true, nil
	case int32:
		return decimal.NewFromInt32(n), true, nil
	case int64:
		return decimal.NewFromInt(n), true, nil
	case float32:
		return decimal.NewFromFloat32(n), true, nil
	case float64:
		return decimal.NewFromFloat(n), true, nil
	case decimal.Decimal:
		return n, true, nil
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(n))
		if err != nil {
			return decimal.Zero, false, fmt.Errorf("%w: %s is not numeric: %q", ErrInvalidRecord, key, n)
		}
		return d, true, nil
	default:
		return decimal.Zero, false, fmt.Errorf("%w: %s has unsupported type %T", ErrInvalidRecord, key, v)
	}
}

// ToFloat converts a loosely typed numeric value to float64.
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	case decimal.Decimal:
		return n.InexactFloat64(), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
