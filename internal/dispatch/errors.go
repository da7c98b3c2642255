package dispatch

import (
	"fmt"
	"net/http"
)

// Error codes returned to callers.
const (
	CodeUnauthorized   = "unauthorized"
	CodeNotReady       = "whatsapp_not_ready"
	CodeTextRequired   = "number_and_message_required"
	CodeNumberRequired = "number_required"
	CodeSourceRequired = "file_or_url_required"
	CodeNotOnWhatsApp  = "number_not_on_whatsapp"
	CodeInternal       = "internal_error"
	CodeIDRequired     = "id_required"
	CodeNotFound       = "not_found"
)

// Error is a failure the HTTP layer reports with a specific status and code.
// Extra fields are merged into the response body.
type Error struct {
	Status int
	Code   string
	Extra  map[string]any
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (%d)", e.Code, e.Status)
}

func newError(status int, code string, extra map[string]any) *Error {
	return &Error{Status: status, Code: code, Extra: extra}
}

func notReady(state string) *Error {
	return newError(http.StatusConflict, CodeNotReady, map[string]any{"status": state})
}

func badRequest(code string) *Error {
	return newError(http.StatusBadRequest, code, nil)
}

func notOnWhatsApp(number string) *Error {
	return newError(http.StatusUnprocessableEntity, CodeNotOnWhatsApp, map[string]any{"number": number})
}
