package paystack

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	EventChargeSuccess          = "charge.success"
	EventChargeFailed           = "charge.failed"
	EventDedicatedAccountAssign = "dedicatedaccount.assign.success"
	EventDedicatedAccountFailed = "dedicatedaccount.assign.failed"
	EventSubscriptionCreate     = "subscription.create"
	EventSubscriptionDisable    = "subscription.disable"
)

var ErrInvalidEvent = errors.New("paystack: invalid webhook event")

// Event is one of ChargeSuccess, ChargeFailed, DedicatedAccountAssigned,
// DedicatedAccountFailed, SubscriptionCreated, SubscriptionDisabled or UnknownEvent.
type Event interface {
	Name() string
	CustomerEmail() string
	EventReference() string
}

type ChargeSuccess struct{ TransactionData }

type ChargeFailed struct{ TransactionData }

type DedicatedAccountAssigned struct {
	Customer         Customer         `json:"customer"`
	DedicatedAccount DedicatedAccount `json:"dedicated_account"`
}

type DedicatedAccountFailed struct {
	Customer Customer `json:"customer"`
}

type SubscriptionCreated struct {
	SubscriptionCode string         `json:"subscription_code"`
	Amount           int64          `json:"amount"`
	Status           string         `json:"status"`
	Customer         Customer       `json:"customer"`
	Authorization    *Authorization `json:"authorization"`
	Plan             Plan           `json:"plan"`
}

type SubscriptionDisabled struct {
	SubscriptionCode string   `json:"subscription_code"`
	Status           string   `json:"status"`
	Customer         Customer `json:"customer"`
}

type UnknownEvent struct {
	Event string
	Data  json.RawMessage
}

func (ChargeSuccess) Name() string            { return EventChargeSuccess }
func (ChargeFailed) Name() string             { return EventChargeFailed }
func (DedicatedAccountAssigned) Name() string { return EventDedicatedAccountAssign }
func (DedicatedAccountFailed) Name() string   { return EventDedicatedAccountFailed }
func (SubscriptionCreated) Name() string      { return EventSubscriptionCreate }
func (SubscriptionDisabled) Name() string     { return EventSubscriptionDisable }
func (e UnknownEvent) Name() string           { return e.Event }

func (e ChargeSuccess) CustomerEmail() string            { return e.Customer.Email }
func (e ChargeFailed) CustomerEmail() string             { return e.Customer.Email }
func (e DedicatedAccountAssigned) CustomerEmail() string { return e.Customer.Email }
func (e DedicatedAccountFailed) CustomerEmail() string   { return e.Customer.Email }
func (e SubscriptionCreated) CustomerEmail() string      { return e.Customer.Email }
func (e SubscriptionDisabled) CustomerEmail() string     { return e.Customer.Email }
func (UnknownEvent) CustomerEmail() string               { return "" }

func (e ChargeSuccess) EventReference() string            { return e.Reference }
func (e ChargeFailed) EventReference() string             { return e.Reference }
func (e DedicatedAccountAssigned) EventReference() string { return e.DedicatedAccount.AccountNumber }
func (DedicatedAccountFailed) EventReference() string     { return "" }
func (e SubscriptionCreated) EventReference() string      { return e.SubscriptionCode }
func (e SubscriptionDisabled) EventReference() string     { return e.SubscriptionCode }
func (UnknownEvent) EventReference() string               { return "" }

type rawEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// ParseEvent decodes a webhook body into its typed variant and checks the
// fields each handler depends on.
func ParseEvent(body []byte) (Event, error) {
	var raw rawEvent
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	if strings.TrimSpace(raw.Event) == "" {
		return nil, fmt.Errorf("%w: missing event name", ErrInvalidEvent)
	}

	switch raw.Event {
	case EventChargeSuccess:
		var e ChargeSuccess
		if err := decodeData(raw, &e.TransactionData); err != nil {
			return nil, err
		}
		if err := requireFields(raw.Event, map[string]string{
			"customer.email": e.Customer.Email,
			"reference":      e.Reference,
		}); err != nil {
			return nil, err
		}
		if e.Amount <= 0 {
			return nil, fmt.Errorf("%w: %s: amount must be positive", ErrInvalidEvent, raw.Event)
		}
		return e, nil

	case EventChargeFailed:
		var e ChargeFailed
		if err := decodeData(raw, &e.TransactionData); err != nil {
			return nil, err
		}
		if err := requireFields(raw.Event, map[string]string{"customer.email": e.Customer.Email}); err != nil {
			return nil, err
		}
		return e, nil

	case EventDedicatedAccountAssign:
		var e DedicatedAccountAssigned
		if err := decodeData(raw, &e); err != nil {
			return nil, err
		}
		if err := requireFields(raw.Event, map[string]string{
			"customer.email":                   e.Customer.Email,
			"dedicated_account.account_number": e.DedicatedAccount.AccountNumber,
		}); err != nil {
			return nil, err
		}
		return e, nil

	case EventDedicatedAccountFailed:
		var e DedicatedAccountFailed
		if err := decodeData(raw, &e); err != nil {
			return nil, err
		}
		return e, nil

	case EventSubscriptionCreate:
		var e SubscriptionCreated
		if err := decodeData(raw, &e); err != nil {
			return nil, err
		}
		if err := requireFields(raw.Event, map[string]string{
			"customer.email":    e.Customer.Email,
			"subscription_code": e.SubscriptionCode,
		}); err != nil {
			return nil, err
		}
		return e, nil

	case EventSubscriptionDisable:
		var e SubscriptionDisabled
		if err := decodeData(raw, &e); err != nil {
			return nil, err
		}
		if err := requireFields(raw.Event, map[string]string{"customer.email": e.Customer.Email}); err != nil {
			return nil, err
		}
		return e, nil

	default:
		return UnknownEvent{Event: raw.Event, Data: raw.Data}, nil
	}
}

func decodeData(raw rawEvent, target any) error {
	if len(raw.Data) == 0 || string(raw.Data) == "null" {
		return fmt.Errorf("%w: %s: missing data", ErrInvalidEvent, raw.Event)
	}
	if err := json.Unmarshal(raw.Data, target); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidEvent, raw.Event, err)
	}
	return nil
}

func requireFields(event string, fields map[string]string) error {
	for name, value := range fields {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%w: %s: missing %s", ErrInvalidEvent, event, name)
		}
	}
	return nil
}
