//go:build !integration

package usecase_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"school-payment-ledger/internal/domain"
	"school-payment-ledger/internal/domain/model"
	"school-payment-ledger/internal/domain/ports/adapter"
	"school-payment-ledger/internal/domain/ports/repository"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// MockTxManager executes the callback immediately with a nil tx handle.
type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

func NewMockTxManager() *MockTxManager { return &MockTxManager{} }

func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, nil)
}

// MockPlanRepo is an in-memory PaymentPlanRepository with overridable methods.
type MockPlanRepo struct {
	mu    sync.RWMutex
	store map[string]*model.PaymentPlan

	ApplyPaymentFunc func(ctx context.Context, tx repository.Tx, id string, paid, balance decimal.Decimal, status model.PlanStatus) error
}

func NewMockPlanRepo() *MockPlanRepo {
	return &MockPlanRepo{store: make(map[string]*model.PaymentPlan)}
}

func (m *MockPlanRepo) Save(ctx context.Context, tx repository.Tx, p *model.PaymentPlan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.store[p.ID] = &cp
	return nil
}

func (m *MockPlanRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PaymentPlan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MockPlanRepo) ListByStudent(ctx context.Context, tx repository.Tx, studentID string) ([]*model.PaymentPlan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.PaymentPlan
	for _, p := range m.store {
		if p.StudentID == studentID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockPlanRepo) ListByCourse(ctx context.Context, tx repository.Tx, courseID string) ([]*model.PaymentPlan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.PaymentPlan
	for _, p := range m.store {
		if p.CourseID != nil && *p.CourseID == courseID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockPlanRepo) ApplyPayment(ctx context.Context, tx repository.Tx, id string, paid, balance decimal.Decimal, status model.PlanStatus) error {
	if m.ApplyPaymentFunc != nil {
		return m.ApplyPaymentFunc(ctx, tx, id, paid, balance, status)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.PaidAmount = paid
	p.BalanceAmount = balance
	p.Status = status
	p.UpdatedAt = time.Now()
	return nil
}

func (m *MockPlanRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, status model.PlanStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.Status = status
	return nil
}

// MockInstallmentRepo is an in-memory InstallmentRepository.
type MockInstallmentRepo struct {
	mu    sync.RWMutex
	store map[string]*model.Installment

	MarkPaidFunc func(ctx context.Context, tx repository.Tx, id string, paidDate time.Time, externalRef *string, remarks string) (bool, error)
}

func NewMockInstallmentRepo() *MockInstallmentRepo {
	return &MockInstallmentRepo{store: make(map[string]*model.Installment)}
}

func (m *MockInstallmentRepo) SaveAll(ctx context.Context, tx repository.Tx, installments []*model.Installment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, i := range installments {
		cp := *i
		m.store[i.ID] = &cp
	}
	return nil
}

func (m *MockInstallmentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Installment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *i
	return &cp, nil
}

func (m *MockInstallmentRepo) ListByPlan(ctx context.Context, tx repository.Tx, planID string) ([]*model.Installment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Installment
	for _, i := range m.store {
		if i.PaymentPlanID == planID {
			cp := *i
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockInstallmentRepo) MarkPaid(ctx context.Context, tx repository.Tx, id string, paidDate time.Time, externalRef *string, remarks string) (bool, error) {
	if m.MarkPaidFunc != nil {
		return m.MarkPaidFunc(ctx, tx, id, paidDate, externalRef, remarks)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.store[id]
	if !ok {
		return false, nil
	}
	if !i.Payable() {
		return false, nil
	}
	i.Status = model.InstallmentStatusPaid
	pd := paidDate
	i.PaidDate = &pd
	if externalRef != nil {
		ref := *externalRef
		i.ExternalPaymentRef = &ref
	}
	if remarks != "" {
		i.Remarks = remarks
	}
	return true, nil
}

func (m *MockInstallmentRepo) SetReceipt(ctx context.Context, tx repository.Tx, id, receiptID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	rid := receiptID
	i.ReceiptID = &rid
	return nil
}

func (m *MockInstallmentRepo) PromoteOverdue(ctx context.Context, tx repository.Tx, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, i := range m.store {
		if i.Status == model.InstallmentStatusPending && i.DueDate.Before(cutoff) {
			i.Status = model.InstallmentStatusOverdue
			n++
		}
	}
	return n, nil
}

func (m *MockInstallmentRepo) ListOverdue(ctx context.Context, tx repository.Tx, asOf time.Time) ([]*model.Installment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Installment
	for _, i := range m.store {
		if i.Status == model.InstallmentStatusOverdue ||
			(i.Status == model.InstallmentStatusPending && i.DueDate.Before(asOf)) {
			cp := *i
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockInstallmentRepo) ListDueBetween(ctx context.Context, tx repository.Tx, from, to time.Time) ([]*model.Installment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Installment
	for _, i := range m.store {
		if i.Status == model.InstallmentStatusPending && !i.DueDate.Before(from) && !i.DueDate.After(to) {
			cp := *i
			out = append(out, &cp)
		}
	}
	return out, nil
}

// MockGatewayPaymentRepo is an in-memory GatewayPaymentRepository.
type MockGatewayPaymentRepo struct {
	mu    sync.RWMutex
	store map[string]*model.GatewayPaymentRecord // keyed by external intent id
}

func NewMockGatewayPaymentRepo() *MockGatewayPaymentRepo {
	return &MockGatewayPaymentRepo{store: make(map[string]*model.GatewayPaymentRecord)}
}

func (m *MockGatewayPaymentRepo) Save(ctx context.Context, tx repository.Tx, rec *model.GatewayPaymentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rec
	m.store[rec.ExternalIntentID] = &cp
	return nil
}

func (m *MockGatewayPaymentRepo) FindByIntentID(ctx context.Context, tx repository.Tx, intentID string) (*model.GatewayPaymentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.store[intentID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *MockGatewayPaymentRepo) MarkPaidIfPending(ctx context.Context, tx repository.Tx, intentID, method string, paidAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.store[intentID]
	if !ok || rec.Status != model.GatewayPaymentStatusPending {
		return false, nil
	}
	rec.Status = model.GatewayPaymentStatusPaid
	rec.PaymentMethod = method
	pa := paidAt
	rec.PaidAt = &pa
	return true, nil
}

func (m *MockGatewayPaymentRepo) MarkFailedIfPending(ctx context.Context, tx repository.Tx, intentID, reason string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.store[intentID]
	if !ok || rec.Status != model.GatewayPaymentStatusPending {
		return false, nil
	}
	rec.Status = model.GatewayPaymentStatusFailed
	rec.ErrorMessage = reason
	return true, nil
}

func (m *MockGatewayPaymentRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.GatewayPaymentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.GatewayPaymentRecord
	for _, rec := range m.store {
		if rec.Status == model.GatewayPaymentStatusPending && rec.CreatedAt.Before(olderThan) {
			cp := *rec
			out = append(out, &cp)
		}
	}
	return out, nil
}

// MockPaymentGateway implements adapter.PaymentGateway with override hooks.
type MockPaymentGateway struct {
	CreateIntentFunc func(ctx context.Context, req adapter.CreateIntentRequest) (string, string, error)
	QueryIntentFunc  func(ctx context.Context, intentID string) (*model.PaymentOutcome, error)
	counter          int
}

func (m *MockPaymentGateway) Name() string { return "mock" }

func (m *MockPaymentGateway) CreateIntent(ctx context.Context, req adapter.CreateIntentRequest) (string, string, error) {
	if m.CreateIntentFunc != nil {
		return m.CreateIntentFunc(ctx, req)
	}
	m.counter++
	return fmt.Sprintf("intent-%d", m.counter), fmt.Sprintf("secret-%d", m.counter), nil
}

func (m *MockPaymentGateway) VerifyWebhook(payload []byte, signature string) (*model.PaymentOutcome, error) {
	return nil, domain.ErrGatewayVerification
}

func (m *MockPaymentGateway) QueryIntent(ctx context.Context, intentID string) (*model.PaymentOutcome, error) {
	if m.QueryIntentFunc != nil {
		return m.QueryIntentFunc(ctx, intentID)
	}
	return nil, nil
}

// MockReceiptIssuer counts issuance and can be made to fail.
type MockReceiptIssuer struct {
	mu     sync.Mutex
	Issued int
	Err    error
}

func (m *MockReceiptIssuer) Issue(ctx context.Context, studentID string, amount decimal.Decimal, kind, description string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return "", m.Err
	}
	m.Issued++
	return fmt.Sprintf("RCP-%d", m.Issued), nil
}

// MockLifecycle records advancement calls.
type MockLifecycle struct {
	mu       sync.Mutex
	Advanced []string
}

func (m *MockLifecycle) AdvanceFromPendingPayment(ctx context.Context, studentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Advanced = append(m.Advanced, studentID)
	return nil
}

func (m *MockLifecycle) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Advanced)
}

// MockAuditSink records audit actions.
type MockAuditSink struct {
	mu      sync.Mutex
	Actions []string
}

func (m *MockAuditSink) Record(ctx context.Context, action, entityType, entityID, note string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Actions = append(m.Actions, action)
}

// inlineRunner executes submitted tasks synchronously for deterministic tests.
type inlineRunner struct{}

func (inlineRunner) Submit(task func(ctx context.Context) error) error {
	return task(context.Background())
}

// mockLocker hands out locks without contention.
type mockLocker struct{}

func (mockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return "token", nil
}

func (mockLocker) Unlock(ctx context.Context, key, token string) error { return nil }
