package payment

import "encoding/json"

// LineItemParams describes one line of a checkout session to be created.
// UnitAmount is in the currency's minor units.
type LineItemParams struct {
	Name        string
	Description string
	UnitAmount  int64
	Quantity    uint
	Metadata    map[string]string
}

type SessionParams struct {
	Currency      string
	SuccessURL    string
	CancelURL     string
	CustomerEmail string
	Metadata      map[string]string
	LineItems     []LineItemParams
	ExpiresAt     int64
}

// Price carries the server-side price data of a session line item.
type Price struct {
	UnitAmount int64             `json:"unit_amount"`
	Metadata   map[string]string `json:"metadata"`
}

type LineItem struct {
	Quantity uint  `json:"quantity"`
	Price    Price `json:"price"`
}

type LineItemList struct {
	Data []LineItem `json:"data"`
}

// CheckoutSession mirrors the provider's session object. PaymentIntent stays
// an id string because sessions are retrieved with line_items expanded only.
type CheckoutSession struct {
	ID            string            `json:"id"`
	URL           string            `json:"url"`
	Status        string            `json:"status"`
	Currency      string            `json:"currency"`
	AmountTotal   int64             `json:"amount_total"`
	PaymentIntent string            `json:"payment_intent"`
	Metadata      map[string]string `json:"metadata"`
	ExpiresAt     int64             `json:"expires_at"`
	LineItems     LineItemList      `json:"line_items"`
}

// PaymentIntent is the data.object payload of payment_intent.* events.
type PaymentIntent struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// Event is the envelope delivered on the webhook channel.
type Event struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}
