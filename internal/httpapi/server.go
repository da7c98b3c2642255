// Package httpapi is the gateway's HTTP surface.
package httpapi

import (
	"context"
	"net/http"

	"github.com/RiosWesley/whatsapp-mkauth/internal/auth"
	"github.com/RiosWesley/whatsapp-mkauth/internal/dispatch"
	"github.com/RiosWesley/whatsapp-mkauth/internal/fields"
	"github.com/RiosWesley/whatsapp-mkauth/internal/media"
	"github.com/RiosWesley/whatsapp-mkauth/internal/model"
	"github.com/RiosWesley/whatsapp-mkauth/internal/observability"
	"github.com/RiosWesley/whatsapp-mkauth/internal/status"
	"github.com/RiosWesley/whatsapp-mkauth/internal/tracker"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Sessions exposes the session state to handlers.
type Sessions interface {
	State() status.State
	QR() (string, bool)
}

// Dispatcher runs sends and registration checks.
type Dispatcher interface {
	SendText(ctx context.Context, p fields.Payload) (string, error)
	SendMedia(ctx context.Context, kind model.Kind, req media.Request) (string, error)
	CheckNumber(ctx context.Context, p fields.Payload) (string, bool, error)
}

// Auditor appends audit records.
type Auditor interface {
	Append(category string, record map[string]any)
}

// API holds the handler dependencies.
type API struct {
	Dispatch Dispatcher
	Sessions Sessions
	Tracker  *tracker.Tracker
	Auth     *auth.Authenticator
	Audit    Auditor
	Logger   *zap.Logger

	// Service is reported by the health endpoint.
	Service string
	// LogDir is where the capture hint points operators.
	LogDir       string
	MaxBodyBytes int64
	// NewCaptureID generates ids for /mk-capture entries.
	NewCaptureID func() string
}

// Register mounts every route on r.
func (a *API) Register(r *mux.Router) {
	r.HandleFunc("/", a.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/status", a.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/mk-capture", a.handleCapture)
	r.HandleFunc("/send-message", a.protected(a.handleSendMessage)).Methods(http.MethodPost)
	r.HandleFunc("/send-image", a.protected(a.mediaHandler(model.KindImage))).Methods(http.MethodPost)
	r.HandleFunc("/send-document", a.protected(a.mediaHandler(model.KindDocument))).Methods(http.MethodPost)
	r.HandleFunc("/message-status", a.handleMessageStatus).Methods(http.MethodGet)
	r.HandleFunc("/check-number", a.handleCheckNumber).Methods(http.MethodGet)
}

// NewHandler builds the full handler: routes, metrics endpoint and
// middleware.
func NewHandler(a *API, gatherer prometheus.Gatherer) http.Handler {
	r := mux.NewRouter()
	r.Use(Metrics(observability.APIRequests))
	a.Register(r)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	var h http.Handler = r
	h = Logging(a.Logger)(h)
	h = CORS(h)
	h = Recover(a.Logger)(h)
	return h
}

type inboundHandler func(w http.ResponseWriter, r *http.Request, in *inbound)

// protected decodes the request and checks credentials before calling next.
func (a *API) protected(next inboundHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		in, ok := a.decode(w, r)
		if !ok {
			return
		}
		if !a.Auth.Check(r, in.Body) {
			writeFailure(w, http.StatusUnauthorized, dispatch.CodeUnauthorized, nil)
			return
		}
		next(w, r, in)
	}
}

func (a *API) decode(w http.ResponseWriter, r *http.Request) (*inbound, bool) {
	in, err := parseInbound(w, r, a.MaxBodyBytes)
	switch {
	case err == nil:
		return in, true
	case err == errBodyTooLarge:
		writeFailure(w, http.StatusRequestEntityTooLarge, CodePayloadTooLarge, nil)
	default:
		a.Logger.Debug("undecodable body", zap.String("path", r.URL.Path), zap.Error(err))
		writeFailure(w, http.StatusBadRequest, CodeInvalidBody, nil)
	}
	return nil, false
}
