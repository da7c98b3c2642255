package httpapi

import (
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/RiosWesley/whatsapp-mkauth/internal/audit"
	"github.com/RiosWesley/whatsapp-mkauth/internal/dispatch"
	"github.com/RiosWesley/whatsapp-mkauth/internal/fields"
	"github.com/RiosWesley/whatsapp-mkauth/internal/media"
	"github.com/RiosWesley/whatsapp-mkauth/internal/model"
)

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"service": a.Service,
		"status":  a.Sessions.State(),
	})
}

func (a *API) handleStatus(w http.ResponseWriter, _ *http.Request) {
	var qr *string
	if code, ok := a.Sessions.QR(); ok {
		qr = &code
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": a.Sessions.State(),
		"qr":     qr,
	})
}

// handleCapture records whatever a caller sends so integrators can see the
// exact shape of MK-AUTH requests.
func (a *API) handleCapture(w http.ResponseWriter, r *http.Request) {
	in, err := parseInbound(w, r, a.MaxBodyBytes)
	if err != nil {
		in = &inbound{
			Body:   fields.Payload{},
			Query:  fields.FromValues(r.URL.Query()),
			Header: fields.FromHeader(r.Header),
		}
	}

	var file any
	for _, up := range in.Uploads {
		if up.Field == "file" {
			file = map[string]any{
				"fieldname":    up.Field,
				"originalname": up.Filename,
				"mimetype":     up.MimeType,
				"size":         len(up.Data),
			}
			break
		}
	}

	id := a.NewCaptureID()
	a.Audit.Append(audit.MKAuth, map[string]any{
		"captureId": id,
		"method":    r.Method,
		"path":      r.URL.Path,
		"headers":   in.Header,
		"query":     in.Query,
		"body":      in.Body,
		"file":      file,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"received":  true,
		"hint":      fmt.Sprintf("check %s", filepath.Join(a.LogDir, audit.MKAuth+"-YYYY-MM-DD.log")),
		"captureId": id,
	})
}

func (a *API) handleSendMessage(w http.ResponseWriter, r *http.Request, in *inbound) {
	id, err := a.Dispatch.SendText(r.Context(), in.Body)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "id": id})
}

func (a *API) mediaHandler(kind model.Kind) inboundHandler {
	return func(w http.ResponseWriter, r *http.Request, in *inbound) {
		id, err := a.Dispatch.SendMedia(r.Context(), kind, media.Request{Fields: in.Body, Uploads: in.Uploads})
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "id": id})
	}
}

type messageStatus struct {
	Success   bool   `json:"success"`
	ID        string `json:"id"`
	Ack       int    `json:"ack"`
	AckState  string `json:"ackState"`
	To        string `json:"to"`
	JID       string `json:"jid,omitempty"`
	Type      string `json:"type"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

func (a *API) handleMessageStatus(w http.ResponseWriter, r *http.Request) {
	id := fields.String(fields.FromValues(r.URL.Query()), fields.MessageID, "")
	if id == "" {
		writeFailure(w, http.StatusBadRequest, dispatch.CodeIDRequired, nil)
		return
	}
	rec, ok := a.Tracker.Get(id)
	if !ok {
		writeFailure(w, http.StatusNotFound, dispatch.CodeNotFound, nil)
		return
	}
	writeJSON(w, http.StatusOK, messageStatus{
		Success:   true,
		ID:        rec.ID,
		Ack:       int(rec.Ack),
		AckState:  rec.Ack.String(),
		To:        rec.To,
		JID:       rec.JID,
		Type:      string(rec.Kind),
		CreatedAt: rec.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt: rec.UpdatedAt.UTC().Format(time.RFC3339Nano),
	})
}

func (a *API) handleCheckNumber(w http.ResponseWriter, r *http.Request) {
	number, registered, err := a.Dispatch.CheckNumber(r.Context(), fields.FromValues(r.URL.Query()))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"number":     number,
		"registered": registered,
	})
}
