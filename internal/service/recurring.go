package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/Fi44er/community_payments/internal/models"
	"github.com/Fi44er/community_payments/internal/paystack"
	"github.com/Fi44er/community_payments/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type EnrollResult struct {
	AuthorizationURL string
	Reference        string
	PlanCode         string
	Amount           decimal.Decimal
}

type DedicatedAccountResult struct {
	Pending bool
	Account models.ReservedAccount
}

// EnrollRecurring creates a monthly plan for the user and returns the checkout
// link that binds their card to it. The subscription itself is confirmed by
// the subscription.create webhook.
func (s *Service) EnrollRecurring(ctx context.Context, id Identity, amount decimal.Decimal) (*EnrollResult, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be greater than zero", ErrValidation)
	}

	user, err := s.loadUser(ctx, id)
	if err != nil {
		return nil, err
	}

	minor := utils.ToMinor(amount)
	plan, err := s.provider.CreatePlan(ctx, paystack.PlanRequest{
		Name:     fmt.Sprintf("Monthly contribution - %s", user.Email),
		Amount:   minor,
		Interval: paystack.IntervalMonthly,
	})
	if err != nil {
		return nil, providerError("create plan", err)
	}

	checkout, err := s.provider.InitializeTransaction(ctx, paystack.InitializeRequest{
		Email:       user.Email,
		Amount:      minor,
		Reference:   newReference("sub"),
		CallbackURL: s.callbackURL(),
		Plan:        plan.PlanCode,
		Metadata: map[string]any{
			"user_id": user.ID,
			"purpose": "recurring",
		},
	})
	if err != nil {
		return nil, providerError("initialize subscription", err)
	}

	recurring := user.PaymentSettings.Recurring
	recurring.Amount = amount
	recurring.PlanCode = plan.PlanCode
	recurring.Active = true
	if err := s.repo.UpdateRecurringPayment(ctx, user.ID, recurring); err != nil {
		return nil, fmt.Errorf("failed to store recurring payment: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"user_id":   user.ID,
		"plan_code": plan.PlanCode,
	}).Info("Recurring payment enrolled")

	return &EnrollResult{
		AuthorizationURL: checkout.AuthorizationURL,
		Reference:        checkout.Reference,
		PlanCode:         plan.PlanCode,
		Amount:           amount,
	}, nil
}

func (s *Service) UpdateRecurringAmount(ctx context.Context, id Identity, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: amount must be greater than zero", ErrValidation)
	}

	user, err := s.loadUser(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}

	recurring := user.PaymentSettings.Recurring
	if recurring.PlanCode == "" {
		return decimal.Zero, ErrNoSubscription
	}

	if err := s.provider.UpdatePlan(ctx, recurring.PlanCode, paystack.PlanRequest{Amount: utils.ToMinor(amount)}); err != nil {
		return decimal.Zero, providerError("update plan", err)
	}

	recurring.Amount = amount
	if err := s.repo.UpdateRecurringPayment(ctx, user.ID, recurring); err != nil {
		return decimal.Zero, fmt.Errorf("failed to store recurring payment: %w", err)
	}
	return amount, nil
}

// CancelRecurring deactivates recurring payments locally. The provider-side
// subscription is left as is.
func (s *Service) CancelRecurring(ctx context.Context, id Identity) error {
	user, err := s.loadUser(ctx, id)
	if err != nil {
		return err
	}

	recurring := user.PaymentSettings.Recurring
	recurring.Active = false
	recurring.Amount = decimal.Zero
	if err := s.repo.UpdateRecurringPayment(ctx, user.ID, recurring); err != nil {
		return fmt.Errorf("failed to cancel recurring payment: %w", err)
	}
	return nil
}

// RequestDedicatedAccount asks the provider for a transfer account. When the
// provider assigns it asynchronously the result is Pending and the account
// arrives through the dedicatedaccount.assign.success webhook.
func (s *Service) RequestDedicatedAccount(ctx context.Context, id Identity) (*DedicatedAccountResult, error) {
	user, err := s.loadUser(ctx, id)
	if err != nil {
		return nil, err
	}

	if existing := user.PaymentSettings.ReservedAccount; existing.AccountNumber != "" {
		return &DedicatedAccountResult{Account: existing}, nil
	}

	customerCode := user.PaymentSettings.CustomerCode
	if customerCode == "" {
		first, last := splitName(user.Name)
		customer, err := s.provider.CreateCustomer(ctx, paystack.CustomerRequest{
			Email:     user.Email,
			FirstName: first,
			LastName:  last,
		})
		if err != nil {
			return nil, providerError("create customer", err)
		}
		customerCode = customer.CustomerCode
		if err := s.repo.UpdateCustomerCode(ctx, user.ID, customerCode); err != nil {
			return nil, fmt.Errorf("failed to store customer code: %w", err)
		}
	}

	account, err := s.provider.CreateDedicatedAccount(ctx, paystack.DedicatedAccountRequest{
		Customer:      customerCode,
		PreferredBank: s.config.PaystackPreferredBank,
	})
	if err != nil {
		return nil, providerError("create dedicated account", err)
	}

	if account.AccountNumber == "" {
		return &DedicatedAccountResult{Pending: true}, nil
	}

	assignedAt := s.now()
	reserved := models.ReservedAccount{
		AccountNumber: account.AccountNumber,
		BankName:      account.Bank.Name,
		AccountName:   account.AccountName,
		AssignedAt:    &assignedAt,
	}
	if err := s.repo.UpdateReservedAccount(ctx, user.ID, customerCode, reserved); err != nil {
		return nil, fmt.Errorf("failed to store dedicated account: %w", err)
	}
	return &DedicatedAccountResult{Account: reserved}, nil
}

func (s *Service) loadUser(ctx context.Context, id Identity) (*models.User, error) {
	user, err := s.repo.GetUserByID(ctx, id.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: user %d", ErrNotFound, id.UserID)
	}
	return user, nil
}

func splitName(name string) (string, string) {
	parts := strings.Fields(name)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}
