package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/RiosWesley/whatsapp-mkauth/internal/dispatch"
	"go.uber.org/zap"
)

// Request-level error codes not produced by the dispatch path.
const (
	CodeInvalidBody     = "invalid_body"
	CodePayloadTooLarge = "payload_too_large"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeFailure(w http.ResponseWriter, status int, code string, extra map[string]any) {
	body := map[string]any{"success": false, "error": code}
	for k, v := range extra {
		body[k] = v
	}
	writeJSON(w, status, body)
}

// writeError reports err. Dispatch errors keep their status and code;
// anything else is logged and hidden behind internal_error.
func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var de *dispatch.Error
	if errors.As(err, &de) {
		writeFailure(w, de.Status, de.Code, de.Extra)
		return
	}
	a.Logger.Error("request failed",
		zap.String("path", r.URL.Path),
		zap.String("request_id", requestID(r.Context())),
		zap.Error(err),
	)
	writeFailure(w, http.StatusInternalServerError, dispatch.CodeInternal, nil)
}
