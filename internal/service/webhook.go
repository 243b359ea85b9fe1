package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Fi44er/community_payments/internal/models"
	"github.com/Fi44er/community_payments/internal/notify"
	"github.com/Fi44er/community_payments/internal/paystack"
	"github.com/Fi44er/community_payments/internal/repository"
	"github.com/Fi44er/community_payments/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

// HandleWebhook authenticates a provider delivery and applies it. Nothing is
// parsed or written before the signature matches. A nil error means the
// delivery can be acknowledged.
func (s *Service) HandleWebhook(ctx context.Context, body []byte, signature string) error {
	if !paystack.ValidSignature(s.config.PaystackSecretKey, body, signature) {
		s.logger.Warn("Rejected webhook with invalid signature")
		return ErrSignatureInvalid
	}

	event, err := paystack.ParseEvent(body)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}

	log := s.logger.WithFields(logrus.Fields{
		"event":     event.Name(),
		"reference": event.EventReference(),
	})
	log.Info("Webhook received")

	record := &models.WebhookEvent{
		Event:     event.Name(),
		Reference: event.EventReference(),
		Payload:   datatypes.JSON(body),
	}
	if err := s.repo.CreateWebhookEvent(ctx, record); err != nil {
		log.WithError(err).Warn("failed to journal webhook event")
		record = nil
	}

	handleErr := s.dispatchEvent(ctx, event, log)
	if handleErr != nil {
		log.WithError(handleErr).Error("Webhook handling failed")
	}

	if record != nil {
		if err := s.repo.MarkWebhookEventProcessed(ctx, record.ID, handleErr); err != nil {
			log.WithError(err).Warn("failed to update webhook journal")
		}
	}

	return handleErr
}

func (s *Service) dispatchEvent(ctx context.Context, event paystack.Event, log *logrus.Entry) error {
	switch e := event.(type) {
	case paystack.ChargeSuccess:
		return s.handleChargeSuccess(ctx, e, log)
	case paystack.ChargeFailed:
		return s.handleChargeFailed(ctx, e, log)
	case paystack.DedicatedAccountAssigned:
		return s.handleDedicatedAccountAssigned(ctx, e, log)
	case paystack.DedicatedAccountFailed:
		log.WithField("customer", e.Customer.Email).Warn("Dedicated account assignment failed")
		return nil
	case paystack.SubscriptionCreated:
		return s.handleSubscriptionCreated(ctx, e, log)
	case paystack.SubscriptionDisabled:
		return s.handleSubscriptionDisabled(ctx, e, log)
	default:
		log.Info("Unhandled webhook event")
		return nil
	}
}

// userForEvent returns nil without error when the customer is unknown: such
// deliveries are logged and acknowledged.
func (s *Service) userForEvent(ctx context.Context, event paystack.Event, log *logrus.Entry) (*models.User, error) {
	email := event.CustomerEmail()
	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to load user %s: %w", email, err)
	}
	if user == nil {
		log.WithField("customer", email).Warn("Webhook customer does not match any user")
	}
	return user, nil
}

func (s *Service) handleChargeSuccess(ctx context.Context, e paystack.ChargeSuccess, log *logrus.Entry) error {
	user, err := s.userForEvent(ctx, e, log)
	if err != nil || user == nil {
		return err
	}

	amount := utils.ToMajor(e.Amount)
	txn := newDeposit(user, amount, e.Reference, "webhook", &e.TransactionData)

	resolved, err := s.resolveRetriedCharge(ctx, user, txn, log)
	if err != nil || resolved {
		return err
	}

	if err := s.repo.CreditBalance(ctx, txn); err != nil {
		if errors.Is(err, repository.ErrDuplicateReference) {
			log.Info("Charge already credited")
			return nil
		}
		return fmt.Errorf("failed to credit charge: %w", err)
	}

	log.WithFields(logrus.Fields{
		"user_id": user.ID,
		"amount":  amount.StringFixed(2),
	}).Info("Deposit credited")

	s.notify(ctx, notify.Message{
		UserID:  user.ID,
		Type:    models.NotificationGeneral,
		Title:   "Deposit Successful",
		Message: fmt.Sprintf("Your deposit of %s has been credited to your balance.", amount.StringFixed(2)),
		RelatedData: map[string]any{
			"transactionId": txn.ID,
			"reference":     e.Reference,
			"amount":        amount.InexactFloat64(),
		},
		ActionURL: "/dashboard/transactions",
	})
	return nil
}

// resolveRetriedCharge closes the payment failure behind a retry charge whose
// success reached us only through the webhook. It reports false when the
// charge is not an open retry of this user, leaving the plain credit path.
func (s *Service) resolveRetriedCharge(ctx context.Context, user *models.User, txn *models.Transaction, log *logrus.Entry) (bool, error) {
	failureID, ok := failureFromReference(txn.Reference)
	if !ok {
		return false, nil
	}

	failure, err := s.repo.GetPaymentFailure(ctx, failureID, user.ID)
	if err != nil {
		return false, fmt.Errorf("failed to load payment failure: %w", err)
	}
	if failure == nil || failure.Resolved {
		return false, nil
	}

	txn.Metadata["failureId"] = failureID.String()
	err = s.repo.ResolveFailure(ctx, failureID, txn, s.now())
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrFailureNotFound):
		return false, nil
	case errors.Is(err, repository.ErrDuplicateReference):
		log.Info("Charge already credited")
		return true, nil
	default:
		return false, fmt.Errorf("failed to resolve payment failure: %w", err)
	}

	log.WithFields(logrus.Fields{
		"user_id":    user.ID,
		"failure_id": failureID,
		"amount":     txn.Amount.StringFixed(2),
	}).Info("Retried charge confirmed by webhook")

	s.notifyRetrySucceeded(ctx, failureID, txn)
	return true, nil
}

func (s *Service) handleChargeFailed(ctx context.Context, e paystack.ChargeFailed, log *logrus.Entry) error {
	user, err := s.userForEvent(ctx, e, log)
	if err != nil || user == nil {
		return err
	}

	// Any authorization object marks the charge as recurring, even one without
	// a code; retry then stops at the missing authorization check.
	failureType := models.FailureOneTime
	if e.Authorization != nil {
		failureType = models.FailureRecurring
	}

	failure := &models.PaymentFailure{
		UserID:        user.ID,
		UserEmail:     user.Email,
		Type:          failureType,
		Amount:        utils.ToMajor(e.Amount),
		Reason:        gatewayMessage(&e.TransactionData, "Payment failed"),
		Reference:     e.Reference,
		MaxRetries:    models.DefaultMaxRetries,
		NextRetryDate: s.now().Add(models.RetryInterval),
	}
	if err := s.repo.CreatePaymentFailure(ctx, failure); err != nil {
		return fmt.Errorf("failed to record payment failure: %w", err)
	}

	log.WithFields(logrus.Fields{
		"user_id":    user.ID,
		"failure_id": failure.ID,
		"type":       failureType,
	}).Info("Payment failure recorded")

	message := fmt.Sprintf("Your payment of %s failed: %s.", failure.Amount.StringFixed(2), failure.Reason)
	if failureType == models.FailureRecurring {
		message += " We will retry it automatically, or you can retry it now."
	} else {
		message += " Please start a new payment."
	}

	s.notify(ctx, notify.Message{
		UserID:  user.ID,
		Type:    models.NotificationGeneral,
		Title:   "Payment Failed",
		Message: message,
		RelatedData: map[string]any{
			"failureId": failure.ID.String(),
			"reference": e.Reference,
			"amount":    failure.Amount.InexactFloat64(),
			"reason":    failure.Reason,
		},
		ActionURL: "/dashboard/payments",
	})

	if s.alerter != nil {
		s.alerter.PaymentFailed(ctx, failure)
	}
	return nil
}

func (s *Service) handleDedicatedAccountAssigned(ctx context.Context, e paystack.DedicatedAccountAssigned, log *logrus.Entry) error {
	user, err := s.userForEvent(ctx, e, log)
	if err != nil || user == nil {
		return err
	}

	assignedAt := s.now()
	account := models.ReservedAccount{
		AccountNumber: e.DedicatedAccount.AccountNumber,
		BankName:      e.DedicatedAccount.Bank.Name,
		AccountName:   e.DedicatedAccount.AccountName,
		AssignedAt:    &assignedAt,
	}
	if err := s.repo.UpdateReservedAccount(ctx, user.ID, e.Customer.CustomerCode, account); err != nil {
		return fmt.Errorf("failed to store dedicated account: %w", err)
	}

	s.notify(ctx, notify.Message{
		UserID:  user.ID,
		Type:    models.NotificationGeneral,
		Title:   "Dedicated Account Ready",
		Message: fmt.Sprintf("Your dedicated account %s at %s is ready. Transfers to it are added to your balance.", account.AccountNumber, account.BankName),
		RelatedData: map[string]any{
			"accountNumber": account.AccountNumber,
			"bankName":      account.BankName,
			"accountName":   account.AccountName,
		},
		ActionURL: "/dashboard/payments",
	})
	return nil
}

func (s *Service) handleSubscriptionCreated(ctx context.Context, e paystack.SubscriptionCreated, log *logrus.Entry) error {
	user, err := s.userForEvent(ctx, e, log)
	if err != nil || user == nil {
		return err
	}

	recurring := user.PaymentSettings.Recurring
	recurring.SubscriptionCode = e.SubscriptionCode
	recurring.Active = true
	if e.Authorization != nil && e.Authorization.AuthorizationCode != "" {
		recurring.AuthorizationCode = e.Authorization.AuthorizationCode
	}
	if recurring.PlanCode == "" {
		recurring.PlanCode = e.Plan.PlanCode
	}
	if recurring.Amount.IsZero() {
		minor := e.Amount
		if minor == 0 {
			minor = e.Plan.Amount
		}
		recurring.Amount = utils.ToMajor(minor)
	}

	if err := s.repo.UpdateRecurringPayment(ctx, user.ID, recurring); err != nil {
		return fmt.Errorf("failed to store subscription: %w", err)
	}

	s.notify(ctx, notify.Message{
		UserID:  user.ID,
		Type:    models.NotificationContribution,
		Title:   "Recurring Payment Activated",
		Message: fmt.Sprintf("Your monthly contribution of %s is now active.", recurring.Amount.StringFixed(2)),
		RelatedData: map[string]any{
			"subscriptionCode": e.SubscriptionCode,
			"amount":           recurring.Amount.InexactFloat64(),
		},
		ActionURL: "/dashboard/payments",
	})
	return nil
}

func (s *Service) handleSubscriptionDisabled(ctx context.Context, e paystack.SubscriptionDisabled, log *logrus.Entry) error {
	user, err := s.userForEvent(ctx, e, log)
	if err != nil || user == nil {
		return err
	}

	if err := s.repo.SetRecurringActive(ctx, user.ID, false); err != nil {
		return fmt.Errorf("failed to disable subscription: %w", err)
	}

	s.notify(ctx, notify.Message{
		UserID:  user.ID,
		Type:    models.NotificationContribution,
		Title:   "Recurring Payment Cancelled",
		Message: "Your monthly contribution has been cancelled.",
		RelatedData: map[string]any{
			"subscriptionCode": e.SubscriptionCode,
		},
		ActionURL: "/dashboard/payments",
	})
	return nil
}
