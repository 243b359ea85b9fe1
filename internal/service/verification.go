package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Fi44er/community_payments/internal/models"
	"github.com/Fi44er/community_payments/internal/notify"
	"github.com/Fi44er/community_payments/internal/paystack"
	"github.com/Fi44er/community_payments/internal/repository"
	"github.com/Fi44er/community_payments/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type VerifyResult struct {
	Message          string
	Amount           decimal.Decimal
	TransactionID    uint
	AlreadyProcessed bool
}

type InitializeResult struct {
	AuthorizationURL string
	AccessCode       string
	Reference        string
}

// VerifyPayment confirms a client-reported payment with the provider and
// credits it once. Concurrent calls for the same reference share one run.
func (s *Service) VerifyPayment(ctx context.Context, id Identity, reference string) (*VerifyResult, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, fmt.Errorf("%w: reference is required", ErrValidation)
	}

	// The shared run outlives any single caller; each caller still stops
	// waiting on its own cancellation.
	key := fmt.Sprintf("%d:%s", id.UserID, reference)
	shared := context.WithoutCancel(ctx)
	ch := s.verifyGroup.DoChan(key, func() (any, error) {
		return s.verifyPayment(shared, id, reference)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*VerifyResult), nil
	}
}

func (s *Service) verifyPayment(ctx context.Context, id Identity, reference string) (*VerifyResult, error) {
	log := s.logger.WithFields(logrus.Fields{
		"user_id":   id.UserID,
		"reference": reference,
	})

	user, err := s.loadUser(ctx, id)
	if err != nil {
		return nil, err
	}

	data, err := s.provider.VerifyTransaction(ctx, reference)
	if err != nil {
		return nil, providerError("verify transaction", err)
	}
	if !data.Successful() {
		log.WithField("status", data.Status).Info("Payment verification not successful")
		return nil, &ProviderError{Message: gatewayMessage(data, "Payment verification failed")}
	}
	if data.Customer.Email != "" && !strings.EqualFold(data.Customer.Email, user.Email) {
		log.WithField("customer_email", data.Customer.Email).Warn("Verified payment belongs to another customer")
		return nil, fmt.Errorf("%w: payment does not belong to this account", ErrValidation)
	}

	existing, err := s.repo.GetTransactionByReference(ctx, user.ID, reference)
	if err != nil {
		return nil, fmt.Errorf("failed to look up transaction: %w", err)
	}
	if existing != nil {
		return alreadyProcessed(existing), nil
	}

	amount := utils.ToMajor(data.Amount)
	txn := newDeposit(user, amount, reference, "verification", data)
	if err := s.repo.CreditBalance(ctx, txn); err != nil {
		if !errors.Is(err, repository.ErrDuplicateReference) {
			return nil, fmt.Errorf("failed to credit payment: %w", err)
		}
		// Lost the race to the webhook or a parallel verify.
		existing, lookupErr := s.repo.GetTransactionByReference(ctx, user.ID, reference)
		if lookupErr != nil {
			return nil, fmt.Errorf("failed to look up transaction: %w", lookupErr)
		}
		if existing == nil {
			return nil, fmt.Errorf("%w: reference already used by another account", ErrValidation)
		}
		return alreadyProcessed(existing), nil
	}

	log.WithField("amount", amount.StringFixed(2)).Info("Payment verified and credited")

	s.notify(ctx, notify.Message{
		UserID:  user.ID,
		Type:    models.NotificationGeneral,
		Title:   "Payment Successful",
		Message: fmt.Sprintf("Your payment of %s has been received and added to your balance.", amount.StringFixed(2)),
		RelatedData: map[string]any{
			"transactionId": txn.ID,
			"reference":     reference,
			"amount":        amount.InexactFloat64(),
		},
		ActionURL: "/dashboard/transactions",
	})

	return &VerifyResult{
		Message:       "Payment verified successfully",
		Amount:        amount,
		TransactionID: txn.ID,
	}, nil
}

func alreadyProcessed(txn *models.Transaction) *VerifyResult {
	return &VerifyResult{
		Message:          "Payment already processed",
		Amount:           txn.Amount,
		TransactionID:    txn.ID,
		AlreadyProcessed: true,
	}
}

// InitializePayment starts a one-time deposit on the provider's hosted checkout.
func (s *Service) InitializePayment(ctx context.Context, id Identity, amount decimal.Decimal) (*InitializeResult, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be greater than zero", ErrValidation)
	}

	user, err := s.loadUser(ctx, id)
	if err != nil {
		return nil, err
	}

	data, err := s.provider.InitializeTransaction(ctx, paystack.InitializeRequest{
		Email:       user.Email,
		Amount:      utils.ToMinor(amount),
		Reference:   newReference("dep"),
		CallbackURL: s.callbackURL(),
		Metadata: map[string]any{
			"user_id": user.ID,
			"purpose": "deposit",
		},
	})
	if err != nil {
		return nil, providerError("initialize transaction", err)
	}

	return &InitializeResult{
		AuthorizationURL: data.AuthorizationURL,
		AccessCode:       data.AccessCode,
		Reference:        data.Reference,
	}, nil
}
