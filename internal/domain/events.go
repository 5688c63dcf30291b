package domain

import "time"

// Lifecycle event names emitted by the ledger and admin config. These are the
// externally durable trace of history besides the bet records themselves.
const (
	EventBetCreated    = "bet_created"
	EventBetSettled    = "bet_settled"
	EventBetCanceled   = "bet_canceled"
	EventParamsChanged = "params_changed"
	EventError         = "error"
)

// EventChannel is the pub/sub channel and stream name for lifecycle events.
const EventChannel = "bets"

// BetEvent is the JSON payload published on the signal bus for every state
// change. Amounts and prices are decimal strings to survive JSON without
// precision loss.
type BetEvent struct {
	Event           string    `json:"event"`
	BetID           uint64    `json:"bet_id"`
	Market          string    `json:"market"`
	Initiator       string    `json:"initiator,omitempty"`
	InitiatorSide   string    `json:"initiator_side,omitempty"`
	InitiatorAmount string    `json:"initiator_amount,omitempty"`
	Acceptor        string    `json:"acceptor,omitempty"`
	AcceptorAmount  string    `json:"acceptor_amount,omitempty"`
	InitialPrice    string    `json:"initial_price,omitempty"`
	CurrentPrice    string    `json:"current_price,omitempty"`
	SuggestedAmount string    `json:"suggested_amount,omitempty"`
	RefundAmount    string    `json:"refund_amount,omitempty"`
	MintedPerSide   string    `json:"minted_per_side,omitempty"`
	FeeAmount       string    `json:"fee_amount,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}
