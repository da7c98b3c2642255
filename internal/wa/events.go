package wa

import (
	"fmt"

	"github.com/RiosWesley/whatsapp-mkauth/internal/bus"
	"github.com/RiosWesley/whatsapp-mkauth/internal/model"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"go.uber.org/zap"
)

// EventHandler turns whatsmeow events into bus events under the "wa."
// namespace. It keeps no state; the supervisor decides what they mean.
type EventHandler struct {
	bus    *bus.Bus
	logger *zap.Logger
}

// NewEventHandler creates a new event handler.
func NewEventHandler(b *bus.Bus, logger *zap.Logger) *EventHandler {
	return &EventHandler{bus: b, logger: logger}
}

func (h *EventHandler) publish(kind string, payload any) {
	h.bus.Publish(bus.NewEvent(kind, payload))
}

// Handle is the main whatsmeow event handler function.
func (h *EventHandler) Handle(rawEvt any) {
	switch evt := rawEvt.(type) {
	case *events.Receipt:
		h.handleReceipt(evt)
	case *events.PairSuccess:
		h.publish(bus.KindAuthenticated, nil)
	case *events.Connected:
		h.publish(bus.KindReady, nil)
	case *events.Disconnected:
		h.publish(bus.KindDisconnected, bus.Reason{Text: "connection lost"})
	case *events.LoggedOut:
		h.publish(bus.KindDisconnected, bus.Reason{Text: "logged out: " + evt.Reason.String()})
	case *events.StreamReplaced:
		h.publish(bus.KindDisconnected, bus.Reason{Text: "stream replaced by another connection"})
	case *events.TemporaryBan:
		h.publish(bus.KindDisconnected, bus.Reason{Text: evt.String()})
	case *events.ConnectFailure:
		reason := fmt.Sprintf("connect failure: %s %s", evt.Reason.String(), evt.Message)
		if evt.Reason.IsLoggedOut() {
			h.publish(bus.KindAuthFailed, bus.Reason{Text: reason})
			return
		}
		h.publish(bus.KindDisconnected, bus.Reason{Text: reason})
	case *events.ClientOutdated:
		h.publish(bus.KindAuthFailed, bus.Reason{Text: "client outdated"})
	case *events.OfflineSyncPreview:
		h.publish(bus.KindLoading, bus.Loading{
			Percent: 0,
			Message: fmt.Sprintf("syncing %d offline events", evt.Total),
		})
	case *events.OfflineSyncCompleted:
		h.publish(bus.KindLoading, bus.Loading{
			Percent: 100,
			Message: fmt.Sprintf("offline sync completed (%d events)", evt.Count),
		})
	case *events.KeepAliveTimeout:
		h.publish(bus.KindState, bus.Reason{Text: fmt.Sprintf("keepalive timeout (%d errors)", evt.ErrorCount)})
	case *events.KeepAliveRestored:
		h.publish(bus.KindState, bus.Reason{Text: "keepalive restored"})
	}
}

// receiptAck maps receipt types onto ack levels. Self read and played
// receipts carry no delivery information.
func receiptAck(t types.ReceiptType) (model.AckState, bool) {
	switch t {
	case types.ReceiptTypeSender:
		return model.AckServer, true
	case types.ReceiptTypeDelivered:
		return model.AckDelivered, true
	case types.ReceiptTypeRead:
		return model.AckRead, true
	case types.ReceiptTypePlayed:
		return model.AckPlayed, true
	case types.ReceiptTypeServerError:
		return model.AckFailed, true
	default:
		return 0, false
	}
}

func (h *EventHandler) handleReceipt(evt *events.Receipt) {
	// Our own devices reading incoming messages; only the sender receipt
	// is about a message we sent.
	if evt.IsFromMe && evt.Type != types.ReceiptTypeSender {
		return
	}
	ack, ok := receiptAck(evt.Type)
	if !ok {
		return
	}
	recipient := evt.Chat.String()
	for _, id := range evt.MessageIDs {
		h.publish(bus.KindAck, bus.Ack{
			MessageID: string(id),
			Recipient: recipient,
			Ack:       ack,
		})
	}
}

// HandleQR drains a pairing channel. Codes are published as they rotate.
// A timeout or error ends pairing with an auth failure so the supervisor
// can restart the session.
func (h *EventHandler) HandleQR(ch <-chan whatsmeow.QRChannelItem) {
	for item := range ch {
		switch item.Event {
		case "code":
			h.publish(bus.KindPairingCode, bus.PairingCode{Code: item.Code})
		case "success":
			// PairSuccess already reported it through Handle.
			return
		case "timeout":
			h.publish(bus.KindAuthFailed, bus.Reason{Text: "pairing timed out"})
			return
		default:
			if item.Error != nil {
				h.logger.Warn("pairing failed", zap.String("event", item.Event), zap.Error(item.Error))
				h.publish(bus.KindAuthFailed, bus.Reason{Text: item.Error.Error()})
				return
			}
		}
	}
}
