package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	database "github.com/Fi44er/community_payments/db"
	"github.com/Fi44er/community_payments/internal/models"
	"github.com/Fi44er/community_payments/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

func newTestRepository(t *testing.T) (*Repository, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "payments.db")), &gorm.Config{
		Logger:         gormLogger.Default.LogMode(gormLogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })

	if err := database.Migrate(db, true, utils.NopLogger()); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	return NewRepository(db, utils.NopLogger()), db
}

func createUser(t *testing.T, db *gorm.DB, id uint, email string) {
	t.Helper()
	user := &models.User{ID: id, Name: "Ada Obi", Email: email, Balance: decimal.Zero}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
}

func deposit(userID uint, reference string, amount int64) *models.Transaction {
	return &models.Transaction{
		UserID:    userID,
		UserEmail: "a@x.io",
		Type:      models.TransactionDeposit,
		Status:    models.TransactionCompleted,
		Amount:    decimal.NewFromInt(amount),
		Reference: reference,
	}
}

func balanceOf(t *testing.T, r *Repository, userID uint) decimal.Decimal {
	t.Helper()
	user, err := r.GetUserByID(context.Background(), userID)
	if err != nil || user == nil {
		t.Fatalf("failed to load user %d: %v", userID, err)
	}
	return user.Balance
}

func countTransactions(t *testing.T, db *gorm.DB, reference string) int64 {
	t.Helper()
	var n int64
	if err := db.Model(&models.Transaction{}).Where("reference = ?", reference).Count(&n).Error; err != nil {
		t.Fatalf("failed to count transactions: %v", err)
	}
	return n
}

func createFailure(t *testing.T, r *Repository, f *models.PaymentFailure) uuid.UUID {
	t.Helper()
	if f.Type == "" {
		f.Type = models.FailureRecurring
	}
	if f.Amount.IsZero() {
		f.Amount = decimal.NewFromInt(2500)
	}
	if err := r.CreatePaymentFailure(context.Background(), f); err != nil {
		t.Fatalf("failed to create payment failure: %v", err)
	}
	return f.ID
}

func TestCreditBalance(t *testing.T) {
	ctx := context.Background()

	t.Run("Given a new reference When credited Then row and balance move together", func(t *testing.T) {
		r, db := newTestRepository(t)
		createUser(t, db, 1, "a@x.io")

		txn := deposit(1, "ref1", 2500)
		if err := r.CreditBalance(ctx, txn); err != nil {
			t.Fatalf("CreditBalance failed: %v", err)
		}
		if txn.ID == 0 {
			t.Error("expected transaction id to be set")
		}
		if got := balanceOf(t, r, 1); !got.Equal(decimal.NewFromInt(2500)) {
			t.Errorf("balance = %s, want 2500", got)
		}

		stored, err := r.GetTransactionByReference(ctx, 1, "ref1")
		if err != nil || stored == nil {
			t.Fatalf("GetTransactionByReference = %v, %v", stored, err)
		}
	})

	t.Run("Given a credited reference When credited again Then rolled back without increment", func(t *testing.T) {
		r, db := newTestRepository(t)
		createUser(t, db, 1, "a@x.io")

		if err := r.CreditBalance(ctx, deposit(1, "ref1", 2500)); err != nil {
			t.Fatalf("CreditBalance failed: %v", err)
		}
		err := r.CreditBalance(ctx, deposit(1, "ref1", 2500))
		if !errors.Is(err, ErrDuplicateReference) {
			t.Fatalf("expected ErrDuplicateReference, got %v", err)
		}
		if got := balanceOf(t, r, 1); !got.Equal(decimal.NewFromInt(2500)) {
			t.Errorf("balance = %s, want 2500", got)
		}
		if n := countTransactions(t, db, "ref1"); n != 1 {
			t.Errorf("transactions = %d, want 1", n)
		}
	})

	t.Run("Given an unknown user When credited Then no transaction row remains", func(t *testing.T) {
		r, db := newTestRepository(t)

		err := r.CreditBalance(ctx, deposit(999, "ref-orphan", 100))
		if !errors.Is(err, ErrUserNotFound) {
			t.Fatalf("expected ErrUserNotFound, got %v", err)
		}
		if n := countTransactions(t, db, "ref-orphan"); n != 0 {
			t.Errorf("transactions = %d, want 0", n)
		}
	})
}

func TestRecordRetryFailureStopsAtMaxRetries(t *testing.T) {
	ctx := context.Background()
	r, db := newTestRepository(t)
	createUser(t, db, 1, "a@x.io")
	id := createFailure(t, r, &models.PaymentFailure{UserID: 1, RetryCount: 2, MaxRetries: 3})

	next := time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)
	if err := r.RecordRetryFailure(ctx, id, "Insufficient Funds", next); err != nil {
		t.Fatalf("RecordRetryFailure failed: %v", err)
	}

	err := r.RecordRetryFailure(ctx, id, "Do Not Honor", next.Add(time.Hour))
	if !errors.Is(err, ErrFailureNotFound) {
		t.Fatalf("expected ErrFailureNotFound, got %v", err)
	}

	failure, err := r.GetPaymentFailure(ctx, id, 1)
	if err != nil || failure == nil {
		t.Fatalf("GetPaymentFailure = %v, %v", failure, err)
	}
	if failure.RetryCount != 3 {
		t.Errorf("retry count = %d, want 3", failure.RetryCount)
	}
	if failure.Reason != "Insufficient Funds" {
		t.Errorf("reason = %q", failure.Reason)
	}
}

func TestResolveFailure(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	t.Run("Given an open failure When resolved Then credited and closed once", func(t *testing.T) {
		r, db := newTestRepository(t)
		createUser(t, db, 1, "a@x.io")
		id := createFailure(t, r, &models.PaymentFailure{UserID: 1})

		if err := r.ResolveFailure(ctx, id, deposit(1, "retry-a-1", 2500), at); err != nil {
			t.Fatalf("ResolveFailure failed: %v", err)
		}
		err := r.ResolveFailure(ctx, id, deposit(1, "retry-a-2", 2500), at)
		if !errors.Is(err, ErrFailureNotFound) {
			t.Fatalf("expected ErrFailureNotFound, got %v", err)
		}

		failure, _ := r.GetPaymentFailure(ctx, id, 1)
		if !failure.Resolved || failure.ResolvedAt == nil {
			t.Errorf("expected resolved failure, got %+v", failure)
		}
		if got := balanceOf(t, r, 1); !got.Equal(decimal.NewFromInt(2500)) {
			t.Errorf("balance = %s, want 2500", got)
		}
		if n := countTransactions(t, db, "retry-a-2"); n != 0 {
			t.Errorf("second resolve left %d transactions", n)
		}
	})

	t.Run("Given the charge was already credited When resolved Then closed without a second credit", func(t *testing.T) {
		r, db := newTestRepository(t)
		createUser(t, db, 1, "a@x.io")
		id := createFailure(t, r, &models.PaymentFailure{UserID: 1})

		credited := deposit(1, "retry-b-1", 2500)
		if err := r.CreditBalance(ctx, credited); err != nil {
			t.Fatalf("CreditBalance failed: %v", err)
		}

		txn := deposit(1, "retry-b-1", 2500)
		if err := r.ResolveFailure(ctx, id, txn, at); err != nil {
			t.Fatalf("ResolveFailure failed: %v", err)
		}
		if txn.ID != credited.ID {
			t.Errorf("transaction id = %d, want %d", txn.ID, credited.ID)
		}
		if got := balanceOf(t, r, 1); !got.Equal(decimal.NewFromInt(2500)) {
			t.Errorf("balance = %s, want 2500", got)
		}
		failure, _ := r.GetPaymentFailure(ctx, id, 1)
		if !failure.Resolved {
			t.Error("expected failure resolved")
		}
	})

	t.Run("Given the reference belongs to another user When resolved Then rolled back", func(t *testing.T) {
		r, db := newTestRepository(t)
		createUser(t, db, 1, "a@x.io")
		createUser(t, db, 2, "b@x.io")
		id := createFailure(t, r, &models.PaymentFailure{UserID: 1})

		if err := r.CreditBalance(ctx, deposit(2, "retry-c-1", 700)); err != nil {
			t.Fatalf("CreditBalance failed: %v", err)
		}

		err := r.ResolveFailure(ctx, id, deposit(1, "retry-c-1", 2500), at)
		if !errors.Is(err, ErrDuplicateReference) {
			t.Fatalf("expected ErrDuplicateReference, got %v", err)
		}
		failure, _ := r.GetPaymentFailure(ctx, id, 1)
		if failure.Resolved {
			t.Error("failure must stay open after rollback")
		}
		if got := balanceOf(t, r, 1); !got.IsZero() {
			t.Errorf("balance = %s, want 0", got)
		}
	})
}

func TestListFailures(t *testing.T) {
	ctx := context.Background()
	r, db := newTestRepository(t)
	createUser(t, db, 1, "a@x.io")
	createUser(t, db, 2, "b@x.io")

	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	due := createFailure(t, r, &models.PaymentFailure{UserID: 1, NextRetryDate: now.Add(-time.Hour)})
	notYet := createFailure(t, r, &models.PaymentFailure{UserID: 1, NextRetryDate: now.Add(time.Hour)})
	createFailure(t, r, &models.PaymentFailure{UserID: 1, Type: models.FailureOneTime, NextRetryDate: now.Add(-time.Hour)})
	createFailure(t, r, &models.PaymentFailure{UserID: 1, RetryCount: 3, NextRetryDate: now.Add(-time.Hour)})
	createFailure(t, r, &models.PaymentFailure{UserID: 1, Resolved: true, NextRetryDate: now.Add(-time.Hour)})
	createFailure(t, r, &models.PaymentFailure{UserID: 2, NextRetryDate: now.Add(-time.Hour)})

	pending, err := r.ListPendingFailures(ctx, 1)
	if err != nil {
		t.Fatalf("ListPendingFailures failed: %v", err)
	}
	if len(pending) != 3 {
		t.Errorf("pending = %d, want 3 (due, not yet due, one-time)", len(pending))
	}
	for _, f := range pending {
		if f.Resolved || f.RetryCount >= f.MaxRetries || f.UserID != 1 {
			t.Errorf("unexpected pending failure %+v", f)
		}
	}

	dueList, err := r.ListDueFailures(ctx, now, 10)
	if err != nil {
		t.Fatalf("ListDueFailures failed: %v", err)
	}
	ids := make(map[uuid.UUID]bool)
	for _, f := range dueList {
		ids[f.ID] = true
	}
	if len(dueList) != 2 || !ids[due] || ids[notYet] {
		t.Errorf("due failures = %+v", dueList)
	}
}

func TestGetUserByEmailIgnoresCase(t *testing.T) {
	r, db := newTestRepository(t)
	createUser(t, db, 1, "Ada@X.io")

	user, err := r.GetUserByEmail(context.Background(), "ada@x.IO")
	if err != nil || user == nil || user.ID != 1 {
		t.Fatalf("GetUserByEmail = %+v, %v", user, err)
	}

	missing, err := r.GetUserByEmail(context.Background(), "nobody@x.io")
	if err != nil || missing != nil {
		t.Errorf("expected nil, nil for unknown email, got %+v, %v", missing, err)
	}
}

func TestNotifications(t *testing.T) {
	ctx := context.Background()
	r, db := newTestRepository(t)
	createUser(t, db, 1, "a@x.io")

	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	longAgo := now.Add(-100 * 24 * time.Hour)
	recently := now.Add(-24 * time.Hour)
	seed := []models.Notification{
		{UserID: 1, Type: models.NotificationGeneral, Title: "old", Message: "m", Read: true, ReadAt: &longAgo},
		{UserID: 1, Type: models.NotificationGeneral, Title: "recent", Message: "m", Read: true, ReadAt: &recently},
		{UserID: 1, Type: models.NotificationGeneral, Title: "unread", Message: "m"},
		{UserID: 2, Type: models.NotificationGeneral, Title: "other", Message: "m"},
	}
	for i := range seed {
		if err := r.CreateNotification(ctx, &seed[i]); err != nil {
			t.Fatalf("CreateNotification failed: %v", err)
		}
	}

	if count, err := r.CountUnreadNotifications(ctx, 1); err != nil || count != 1 {
		t.Errorf("unread = %d, %v; want 1", count, err)
	}
	if ok, err := r.MarkNotificationRead(ctx, 1, seed[3].ID, now); err != nil || ok {
		t.Errorf("marking another user's notification = %v, %v; want false", ok, err)
	}

	deleted, err := r.DeleteReadNotificationsBefore(ctx, now.Add(-90*24*time.Hour))
	if err != nil {
		t.Fatalf("DeleteReadNotificationsBefore failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}

	remaining, err := r.ListNotifications(ctx, 1, false, 0)
	if err != nil {
		t.Fatalf("ListNotifications failed: %v", err)
	}
	if len(remaining) != 2 {
		t.Errorf("remaining = %d, want 2", len(remaining))
	}
	for _, n := range remaining {
		if n.Title == "old" {
			t.Error("old read notification was not removed")
		}
	}
}
