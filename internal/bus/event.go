package bus

import (
	"time"

	"github.com/RiosWesley/whatsapp-mkauth/internal/model"
)

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// Session client event kinds. All of them live under the "wa." namespace.
const (
	Namespace = "wa."

	KindPairingCode   = "wa.pairing_code"
	KindAuthenticated = "wa.authenticated"
	KindReady         = "wa.ready"
	KindAuthFailed    = "wa.auth_failed"
	KindDisconnected  = "wa.disconnected"
	KindLoading       = "wa.loading"
	KindState         = "wa.state"
	KindAck           = "wa.ack"
)

// PairingCode is the payload of KindPairingCode.
type PairingCode struct {
	Code string
}

// Reason is the payload of KindAuthFailed, KindDisconnected and KindState.
type Reason struct {
	Text string
}

// Loading is the payload of KindLoading.
type Loading struct {
	Percent int
	Message string
}

// Ack is the payload of KindAck.
type Ack struct {
	MessageID string
	Recipient string
	Ack       model.AckState
}

// NewEvent stamps an event with the current time.
func NewEvent(kind string, payload any) Event {
	return Event{Kind: kind, Timestamp: time.Now(), Payload: payload}
}
