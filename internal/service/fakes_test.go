package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Fi44er/community_payments/config"
	"github.com/Fi44er/community_payments/internal/models"
	"github.com/Fi44er/community_payments/internal/notify"
	"github.com/Fi44er/community_payments/internal/paystack"
	"github.com/Fi44er/community_payments/internal/repository"
	"github.com/Fi44er/community_payments/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const testSecret = "sk_test_secret"

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

// memoryRepo mirrors the repository's transactional guarantees in memory.
type memoryRepo struct {
	mu            sync.Mutex
	users         map[uint]*models.User
	transactions  []models.Transaction
	failures      map[uuid.UUID]*models.PaymentFailure
	webhookEvents []models.WebhookEvent
	writes        int
}

func newMemoryRepo(users ...*models.User) *memoryRepo {
	r := &memoryRepo{
		users:    make(map[uint]*models.User),
		failures: make(map[uuid.UUID]*models.PaymentFailure),
	}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *memoryRepo) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (r *memoryRepo) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memoryRepo) UpdateCustomerCode(ctx context.Context, userID uint, code string) error {
	return r.updateUser(userID, func(u *models.User) {
		u.PaymentSettings.CustomerCode = code
	})
}

func (r *memoryRepo) UpdateReservedAccount(ctx context.Context, userID uint, code string, account models.ReservedAccount) error {
	return r.updateUser(userID, func(u *models.User) {
		if code != "" {
			u.PaymentSettings.CustomerCode = code
		}
		u.PaymentSettings.ReservedAccount = account
	})
}

func (r *memoryRepo) UpdateRecurringPayment(ctx context.Context, userID uint, recurring models.RecurringPayment) error {
	return r.updateUser(userID, func(u *models.User) {
		u.PaymentSettings.Recurring = recurring
	})
}

func (r *memoryRepo) SetRecurringActive(ctx context.Context, userID uint, active bool) error {
	return r.updateUser(userID, func(u *models.User) {
		u.PaymentSettings.Recurring.Active = active
	})
}

func (r *memoryRepo) updateUser(userID uint, fn func(u *models.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return repository.ErrUserNotFound
	}
	fn(u)
	r.writes++
	return nil
}

func (r *memoryRepo) GetTransactionByReference(ctx context.Context, userID uint, reference string) (*models.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.transactions {
		if t.UserID == userID && t.Reference == reference {
			cp := t
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memoryRepo) CreditBalance(ctx context.Context, txn *models.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.creditLocked(txn)
}

func (r *memoryRepo) creditLocked(txn *models.Transaction) error {
	for _, t := range r.transactions {
		if t.Reference == txn.Reference {
			return fmt.Errorf("%w: %s", repository.ErrDuplicateReference, txn.Reference)
		}
	}
	u, ok := r.users[txn.UserID]
	if !ok {
		return repository.ErrUserNotFound
	}
	txn.ID = uint(len(r.transactions) + 1)
	txn.CreatedAt = testNow
	r.transactions = append(r.transactions, *txn)
	u.Balance = u.Balance.Add(txn.Amount)
	r.writes++
	return nil
}

func (r *memoryRepo) CreatePaymentFailure(ctx context.Context, f *models.PaymentFailure) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	cp := *f
	r.failures[f.ID] = &cp
	r.writes++
	return nil
}

func (r *memoryRepo) GetPaymentFailure(ctx context.Context, id uuid.UUID, userID uint) (*models.PaymentFailure, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.failures[id]
	if !ok || f.UserID != userID {
		return nil, nil
	}
	cp := *f
	return &cp, nil
}

func (r *memoryRepo) ListPendingFailures(ctx context.Context, userID uint) ([]models.PaymentFailure, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.PaymentFailure
	for _, f := range r.failures {
		if f.UserID == userID && !f.Resolved && f.RetryCount < f.MaxRetries {
			out = append(out, *f)
		}
	}
	return out, nil
}

func (r *memoryRepo) ListDueFailures(ctx context.Context, now time.Time, limit int) ([]models.PaymentFailure, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.PaymentFailure
	for _, f := range r.failures {
		if f.Type == models.FailureRecurring && !f.Resolved && f.RetryCount < f.MaxRetries && !f.NextRetryDate.After(now) {
			out = append(out, *f)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memoryRepo) RecordRetryFailure(ctx context.Context, id uuid.UUID, reason string, next time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.failures[id]
	if !ok || f.Resolved || f.RetryCount >= f.MaxRetries {
		return repository.ErrFailureNotFound
	}
	f.RetryCount++
	f.Reason = reason
	f.NextRetryDate = next
	r.writes++
	return nil
}

func (r *memoryRepo) ResolveFailure(ctx context.Context, id uuid.UUID, txn *models.Transaction, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.failures[id]
	if !ok || f.Resolved {
		return repository.ErrFailureNotFound
	}
	credited := false
	for _, t := range r.transactions {
		if t.Reference != txn.Reference {
			continue
		}
		if t.UserID != txn.UserID {
			return fmt.Errorf("%w: %s", repository.ErrDuplicateReference, txn.Reference)
		}
		*txn = t
		credited = true
	}
	if !credited {
		if err := r.creditLocked(txn); err != nil {
			return err
		}
	}
	f.Resolved = true
	f.ResolvedAt = &at
	return nil
}

func (r *memoryRepo) CreateWebhookEvent(ctx context.Context, e *models.WebhookEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e.ID = uint(len(r.webhookEvents) + 1)
	r.webhookEvents = append(r.webhookEvents, *e)
	return nil
}

func (r *memoryRepo) MarkWebhookEventProcessed(ctx context.Context, id uint, processingErr error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.webhookEvents {
		if r.webhookEvents[i].ID != id {
			continue
		}
		at := testNow
		r.webhookEvents[i].ProcessedAt = &at
		if processingErr != nil {
			r.webhookEvents[i].ProcessingError = processingErr.Error()
		}
	}
	return nil
}

func (r *memoryRepo) balance(userID uint) decimal.Decimal {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.users[userID].Balance
}

func (r *memoryRepo) failure(id uuid.UUID) models.PaymentFailure {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.failures[id]
}

func (r *memoryRepo) transactionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.transactions)
}

type stubProvider struct {
	mu sync.Mutex

	verify      func(reference string) (*paystack.TransactionData, error)
	charge      func(req paystack.ChargeRequest) (*paystack.TransactionData, error)
	verifyDelay time.Duration

	verifyCalls int
	chargeCalls int
	charges     []paystack.ChargeRequest
	initialized []paystack.InitializeRequest
	plans       []paystack.PlanRequest
	planUpdates map[string]paystack.PlanRequest
	customers   []paystack.CustomerRequest
	accounts    []paystack.DedicatedAccountRequest

	dedicatedAccount *paystack.DedicatedAccount
	err              error
}

func (p *stubProvider) InitializeTransaction(ctx context.Context, req paystack.InitializeRequest) (*paystack.InitializeData, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	p.initialized = append(p.initialized, req)
	return &paystack.InitializeData{
		AuthorizationURL: "https://checkout.paystack.com/" + req.Reference,
		AccessCode:       "access",
		Reference:        req.Reference,
	}, nil
}

func (p *stubProvider) VerifyTransaction(ctx context.Context, reference string) (*paystack.TransactionData, error) {
	p.mu.Lock()
	p.verifyCalls++
	delay := p.verifyDelay
	p.mu.Unlock()
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return p.verify(reference)
}

func (p *stubProvider) ChargeAuthorization(ctx context.Context, req paystack.ChargeRequest) (*paystack.TransactionData, error) {
	p.mu.Lock()
	p.chargeCalls++
	p.charges = append(p.charges, req)
	p.mu.Unlock()
	return p.charge(req)
}

func (p *stubProvider) CreateCustomer(ctx context.Context, req paystack.CustomerRequest) (*paystack.Customer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.customers = append(p.customers, req)
	return &paystack.Customer{Email: req.Email, CustomerCode: "CUS_test"}, nil
}

func (p *stubProvider) CreateDedicatedAccount(ctx context.Context, req paystack.DedicatedAccountRequest) (*paystack.DedicatedAccount, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.accounts = append(p.accounts, req)
	if p.dedicatedAccount == nil {
		return &paystack.DedicatedAccount{}, nil
	}
	return p.dedicatedAccount, nil
}

func (p *stubProvider) CreatePlan(ctx context.Context, req paystack.PlanRequest) (*paystack.Plan, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	p.plans = append(p.plans, req)
	return &paystack.Plan{PlanCode: "PLN_test", Amount: req.Amount, Interval: req.Interval}, nil
}

func (p *stubProvider) UpdatePlan(ctx context.Context, planCode string, req paystack.PlanRequest) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	if p.planUpdates == nil {
		p.planUpdates = make(map[string]paystack.PlanRequest)
	}
	p.planUpdates[planCode] = req
	return nil
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []notify.Message
	err      error
}

func (n *recordingNotifier) Send(ctx context.Context, msg notify.Message) (*models.Notification, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, msg)
	if n.err != nil {
		return nil, n.err
	}
	return &models.Notification{UserID: msg.UserID, Type: msg.Type, Title: msg.Title, Message: msg.Message}, nil
}

func (n *recordingNotifier) titles() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.messages))
	for _, m := range n.messages {
		out = append(out, m.Title)
	}
	return out
}

type recordingAlerter struct {
	mu        sync.Mutex
	failed    int
	exhausted int
}

func (a *recordingAlerter) PaymentFailed(ctx context.Context, f *models.PaymentFailure) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failed++
}

func (a *recordingAlerter) RetriesExhausted(ctx context.Context, f *models.PaymentFailure) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.exhausted++
}

type fixture struct {
	svc      *Service
	repo     *memoryRepo
	provider *stubProvider
	notifier *recordingNotifier
	alerter  *recordingAlerter
}

func newFixture(users ...*models.User) *fixture {
	f := &fixture{
		repo:     newMemoryRepo(users...),
		provider: &stubProvider{},
		notifier: &recordingNotifier{},
		alerter:  &recordingAlerter{},
	}
	cfg := &config.Config{
		PaystackSecretKey:     testSecret,
		PaystackPreferredBank: "wema-bank",
		AppBaseURL:            "https://app.example.com/",
	}
	f.svc = NewService(f.repo, f.provider, f.notifier, f.alerter, cfg, utils.NopLogger())
	f.svc.now = func() time.Time { return testNow }
	return f
}

func ada() *models.User {
	return &models.User{ID: 1, Name: "Ada Obi", Email: "a@x.io", Balance: decimal.Zero}
}

func successfulCharge(reference string, minor int64) *paystack.TransactionData {
	return &paystack.TransactionData{
		ID:              42,
		Status:          paystack.StatusSuccess,
		Reference:       reference,
		Amount:          minor,
		Currency:        "NGN",
		GatewayResponse: "Approved",
		Customer:        paystack.Customer{Email: "a@x.io"},
	}
}

var errNetwork = errors.New("connection reset")
