package paystack

const (
	StatusSuccess = "success"

	IntervalMonthly = "monthly"
)

type InitializeRequest struct {
	Email       string         `json:"email"`
	Amount      int64          `json:"amount"`
	Reference   string         `json:"reference,omitempty"`
	CallbackURL string         `json:"callback_url,omitempty"`
	Plan        string         `json:"plan,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

type InitializeData struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

type ChargeRequest struct {
	Email             string `json:"email"`
	Amount            int64  `json:"amount"`
	AuthorizationCode string `json:"authorization_code"`
	Reference         string `json:"reference,omitempty"`
}

type Customer struct {
	ID           int64  `json:"id"`
	Email        string `json:"email"`
	CustomerCode string `json:"customer_code"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
}

type Authorization struct {
	AuthorizationCode string `json:"authorization_code"`
	CardType          string `json:"card_type"`
	Last4             string `json:"last4"`
	Bank              string `json:"bank"`
	Reusable          bool   `json:"reusable"`
}

// TransactionData is the body of verify and charge_authorization responses
// and of charge.* webhook events.
type TransactionData struct {
	ID              int64          `json:"id"`
	Status          string         `json:"status"`
	Reference       string         `json:"reference"`
	Amount          int64          `json:"amount"`
	Currency        string         `json:"currency"`
	Channel         string         `json:"channel"`
	GatewayResponse string         `json:"gateway_response"`
	PaidAt          string         `json:"paid_at"`
	Customer        Customer       `json:"customer"`
	Authorization   *Authorization `json:"authorization"`
}

func (t *TransactionData) Successful() bool {
	return t != nil && t.Status == StatusSuccess
}

type CustomerRequest struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

type DedicatedAccountRequest struct {
	Customer      string `json:"customer"`
	PreferredBank string `json:"preferred_bank,omitempty"`
}

type Bank struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type DedicatedAccount struct {
	AccountNumber string    `json:"account_number"`
	AccountName   string    `json:"account_name"`
	Assigned      bool      `json:"assigned"`
	Bank          Bank      `json:"bank"`
	Customer      *Customer `json:"customer,omitempty"`
}

type PlanRequest struct {
	Name     string `json:"name,omitempty"`
	Amount   int64  `json:"amount"`
	Interval string `json:"interval,omitempty"`
}

type Plan struct {
	PlanCode string `json:"plan_code"`
	Name     string `json:"name"`
	Amount   int64  `json:"amount"`
	Interval string `json:"interval"`
}
