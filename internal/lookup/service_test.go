package lookup

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/opensource-finance/kestrel/internal/decision"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/encoder"
	"github.com/opensource-finance/kestrel/internal/features"
	"github.com/opensource-finance/kestrel/internal/rationale"
)

var schema = []string{
	"Age", "Gender", "Bank_Balance", "CIBIL_Score", "Existing_Loans",
	"Income_Source", "Employment_Type", "Loan_Amount_Requested", "Loan_Tenure_Months",
}

type MockRecordStore struct {
	mock.Mock
}

func (m *MockRecordStore) FindByName(ctx context.Context, name string) (*domain.CustomerRecord, error) {
	args := m.Called(ctx, name)
	rec, _ := args.Get(0).(*domain.CustomerRecord)
	return rec, args.Error(1)
}

func (m *MockRecordStore) SaveCustomer(ctx context.Context, rec *domain.CustomerRecord) error {
	return m.Called(ctx, rec).Error(0)
}

func (m *MockRecordStore) Ping(ctx context.Context) error { return m.Called(ctx).Error(0) }
func (m *MockRecordStore) Close() error                   { return m.Called().Error(0) }

type MockRecorder struct {
	mock.Mock
}

func (m *MockRecorder) Record(ctx context.Context, result *domain.LookupResult) error {
	return m.Called(ctx, result).Error(0)
}

func (m *MockRecorder) RecordMiss(ctx context.Context, name string) error {
	return m.Called(ctx, name).Error(0)
}

// spyClassifier records every vector it is asked to score.
type spyClassifier struct {
	mu     sync.Mutex
	label  int
	err    error
	inputs [][]float64
}

func (s *spyClassifier) FeatureNames() ([]string, error) { return schema, nil }
func (s *spyClassifier) Version() string                 { return "spy-1" }

func (s *spyClassifier) Predict(values []float64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inputs = append(s.inputs, append([]float64(nil), values...))
	return s.label, s.err
}

func (s *spyClassifier) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inputs)
}

func newService(t *testing.T, store domain.RecordStore, clf domain.Classifier, opts ...Option) *Service {
	t.Helper()
	enc, err := encoder.New("enc-1", map[string][]string{
		"Gender":          {"Female", "Male"},
		"Income_Source":   {"Business", "Salary"},
		"Employment_Type": {"Contract", "Full-time", "Self-employed", "Unemployed"},
	})
	require.NoError(t, err)

	engine, err := rationale.NewDefaultEngine(nil)
	require.NoError(t, err)

	return NewService(store, features.NewReconciler(enc, nil), decision.NewScorer(clf), engine, opts...)
}

func customer(cibil int, balance, requested int64, loans, employment string) *domain.CustomerRecord {
	age, tenure := 35, 36
	return &domain.CustomerRecord{
		CustomerID:          "C-1",
		Name:                "Ravi Kumar",
		Age:                 &age,
		Gender:              "Male",
		Phone:               "9000000000",
		Email:               "ravi@example.com",
		Address:             "12 MG Road",
		City:                "Bengaluru",
		State:               "KA",
		Pincode:             "560001",
		BankBalance:         decimal.NewFromInt(balance),
		CIBILScore:          cibil,
		ExistingLoans:       loans,
		IncomeSource:        "Salary",
		EmploymentType:      employment,
		LoanAmountRequested: decimal.NewFromInt(requested),
		LoanTenureMonths:    &tenure,
		PriorLoanStatus:     "Rejected",
	}
}

func TestLookupApprovedScenario(t *testing.T) {
	ctx := context.Background()
	store := new(MockRecordStore)
	store.On("FindByName", mock.Anything, "Ravi Kumar").
		Return(customer(700, 100000, 50000, "No", "Full-time"), nil)

	clf := &spyClassifier{label: 1}
	svc := newService(t, store, clf, WithEncoderVersion("enc-1"))

	result, err := svc.Lookup(ctx, "Ravi Kumar")
	require.NoError(t, err)

	assert.Equal(t, domain.OutcomeApproved, result.Outcome)
	assert.Equal(t, []string{"High CIBIL Score", "Good Bank Balance", "No Existing Loans", "Stable Employment"}, result.Reasons.Texts())
	assert.False(t, result.RationaleDisagrees)
	assert.NotEmpty(t, result.ID)
	assert.Equal(t, "spy-1", result.Metadata.ModelVersion)
	assert.Equal(t, "enc-1", result.Metadata.EncoderVersion)

	require.Equal(t, 1, clf.calls())
	assert.Equal(t, schema, result.Features.Names)
	loans, _ := result.Features.Get("Existing_Loans")
	assert.Equal(t, 0.0, loans)
	for _, c := range domain.IdentifyingColumns {
		assert.False(t, result.Features.Has(c), "identifying column %s in vector", c)
	}
	store.AssertExpectations(t)
}

func TestLookupRejectedScenario(t *testing.T) {
	store := new(MockRecordStore)
	store.On("FindByName", mock.Anything, "Ravi Kumar").
		Return(customer(600, 20000, 60000, "Yes", "Unemployed"), nil)

	svc := newService(t, store, &spyClassifier{label: 0})

	result, err := svc.Lookup(context.Background(), "Ravi Kumar")
	require.NoError(t, err)

	assert.Equal(t, domain.OutcomeRejected, result.Outcome)
	assert.Equal(t, []string{
		"Low CIBIL Score",
		"Low Bank Balance",
		"Has Existing Loans",
		"High Loan Amount Compared to Balance",
		"Unstable Employment",
	}, result.Reasons.Texts())

	loans, _ := result.Features.Get("Existing_Loans")
	assert.Equal(t, 1.0, loans)
}

func TestLookupNotFound(t *testing.T) {
	store := new(MockRecordStore)
	store.On("FindByName", mock.Anything, "NoSuchPerson").Return(nil, domain.ErrCustomerNotFound)

	recorder := new(MockRecorder)
	recorder.On("RecordMiss", mock.Anything, "NoSuchPerson").Return(nil)

	clf := &spyClassifier{label: 1}
	svc := newService(t, store, clf, WithRecorder(recorder))

	result, err := svc.Lookup(context.Background(), "NoSuchPerson")
	assert.Nil(t, result)
	assert.ErrorIs(t, err, domain.ErrCustomerNotFound)
	assert.Equal(t, 0, clf.calls())
	store.AssertNumberOfCalls(t, "FindByName", 1)
	recorder.AssertExpectations(t)
	recorder.AssertNotCalled(t, "Record", mock.Anything, mock.Anything)
}

func TestLookupUnknownCategory(t *testing.T) {
	store := new(MockRecordStore)
	store.On("FindByName", mock.Anything, "Ravi Kumar").
		Return(customer(750, 90000, 10000, "No", "Freelancer"), nil)

	recorder := new(MockRecorder)
	clf := &spyClassifier{label: 1}
	svc := newService(t, store, clf, WithRecorder(recorder))

	result, err := svc.Lookup(context.Background(), "Ravi Kumar")
	assert.Nil(t, result)
	require.ErrorIs(t, err, domain.ErrUnknownCategory)

	var uce *domain.UnknownCategoryError
	require.ErrorAs(t, err, &uce)
	assert.Equal(t, "Employment_Type", uce.Column)
	assert.Equal(t, "Freelancer", uce.Value)
	assert.Equal(t, 0, clf.calls())
	recorder.AssertNotCalled(t, "Record", mock.Anything, mock.Anything)
}

func TestLookupIdempotent(t *testing.T) {
	store := new(MockRecordStore)
	store.On("FindByName", mock.Anything, "Ravi Kumar").
		Return(customer(640, 70000, 200000, "No", "Contract"), nil)

	clf := &spyClassifier{label: 0}
	svc := newService(t, store, clf)

	first, err := svc.Lookup(context.Background(), "Ravi Kumar")
	require.NoError(t, err)
	second, err := svc.Lookup(context.Background(), "Ravi Kumar")
	require.NoError(t, err)

	assert.Equal(t, first.Outcome, second.Outcome)
	assert.Equal(t, first.Reasons, second.Reasons)
	assert.Equal(t, clf.inputs[0], clf.inputs[1])
	assert.NotEqual(t, first.ID, second.ID)
	store.AssertNumberOfCalls(t, "FindByName", 2)
}

func TestLookupDisagreement(t *testing.T) {
	store := new(MockRecordStore)
	store.On("FindByName", mock.Anything, "Ravi Kumar").
		Return(customer(500, 10000, 90000, "Yes", "Unemployed"), nil)

	svc := newService(t, store, &spyClassifier{label: 1})

	result, err := svc.Lookup(context.Background(), "Ravi Kumar")
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeApproved, result.Outcome)
	assert.Empty(t, result.Reasons)
	assert.True(t, result.RationaleDisagrees)
}

func TestLookupFailures(t *testing.T) {
	t.Run("ScoringError", func(t *testing.T) {
		store := new(MockRecordStore)
		store.On("FindByName", mock.Anything, "Ravi Kumar").
			Return(customer(700, 100000, 50000, "No", "Full-time"), nil)

		svc := newService(t, store, &spyClassifier{err: errors.New("model crashed")})
		result, err := svc.Lookup(context.Background(), "Ravi Kumar")
		assert.Nil(t, result)
		assert.ErrorIs(t, err, domain.ErrScoring)
	})

	t.Run("StoreError", func(t *testing.T) {
		store := new(MockRecordStore)
		store.On("FindByName", mock.Anything, "Ravi Kumar").Return(nil, errors.New("connection refused"))

		clf := &spyClassifier{label: 1}
		svc := newService(t, store, clf)
		_, err := svc.Lookup(context.Background(), "Ravi Kumar")
		require.Error(t, err)
		assert.NotErrorIs(t, err, domain.ErrCustomerNotFound)
		assert.Equal(t, 0, clf.calls())
	})

	t.Run("EmptyName", func(t *testing.T) {
		store := new(MockRecordStore)
		svc := newService(t, store, &spyClassifier{})
		_, err := svc.Lookup(context.Background(), "  ")
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
		store.AssertNotCalled(t, "FindByName", mock.Anything, mock.Anything)
	})
}

func TestLookupRecorderFailureIsIgnored(t *testing.T) {
	store := new(MockRecordStore)
	store.On("FindByName", mock.Anything, "Ravi Kumar").
		Return(customer(700, 100000, 50000, "No", "Full-time"), nil)

	recorder := new(MockRecorder)
	recorder.On("Record", mock.Anything, mock.AnythingOfType("*domain.LookupResult")).Return(errors.New("disk full"))

	svc := newService(t, store, &spyClassifier{label: 1}, WithRecorder(recorder))

	result, err := svc.Lookup(context.Background(), "Ravi Kumar")
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeApproved, result.Outcome)
	recorder.AssertExpectations(t)
}
