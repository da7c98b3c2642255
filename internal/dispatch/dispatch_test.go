package dispatch

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/RiosWesley/whatsapp-mkauth/internal/audit"
	"github.com/RiosWesley/whatsapp-mkauth/internal/fields"
	"github.com/RiosWesley/whatsapp-mkauth/internal/media"
	"github.com/RiosWesley/whatsapp-mkauth/internal/model"
	"github.com/RiosWesley/whatsapp-mkauth/internal/status"
	"github.com/RiosWesley/whatsapp-mkauth/internal/tracker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type fakeMessenger struct {
	registered bool
	regErr     error
	sendErr    error
	id         string

	checked []string
	sent    []model.Content
	sentTo  []string
}

func (f *fakeMessenger) IsRegistered(_ context.Context, addr string) (bool, error) {
	f.checked = append(f.checked, addr)
	return f.registered, f.regErr
}

func (f *fakeMessenger) Send(_ context.Context, addr string, content model.Content) (string, error) {
	f.sentTo = append(f.sentTo, addr)
	f.sent = append(f.sent, content)
	return f.id, f.sendErr
}

type fixedState status.State

func (s fixedState) State() status.State { return status.State(s) }

type fakeResolver struct {
	calls int
}

func (f *fakeResolver) Resolve(ctx context.Context, kind model.Kind, req media.Request) (*model.Media, error) {
	f.calls++
	return media.NewResolver(nil).Resolve(ctx, kind, req)
}

type recordingAuditor struct {
	cats    []string
	entries []map[string]any
}

func (r *recordingAuditor) Append(category string, record map[string]any) {
	r.cats = append(r.cats, category)
	r.entries = append(r.entries, record)
}

type fixture struct {
	c        *Coordinator
	msgr     *fakeMessenger
	tracker  *tracker.Tracker
	audit    *recordingAuditor
	resolver *fakeResolver
}

func newFixture(state status.State, msgr *fakeMessenger, opts Options) *fixture {
	f := &fixture{
		msgr:     msgr,
		tracker:  tracker.New(),
		audit:    &recordingAuditor{},
		resolver: &fakeResolver{},
	}
	f.c = New(msgr, fixedState(state), f.resolver, f.tracker, f.audit, zap.NewNop(), opts)
	return f
}

func wantError(t *testing.T, err error, httpStatus int, code string) *Error {
	t.Helper()
	var de *Error
	if !errors.As(err, &de) {
		t.Fatalf("error = %v, want *dispatch.Error %s", err, code)
	}
	if de.Status != httpStatus || de.Code != code {
		t.Fatalf("error = %d %s, want %d %s", de.Status, de.Code, httpStatus, code)
	}
	return de
}

func TestSendTextSuccess(t *testing.T) {
	f := newFixture(status.Ready, &fakeMessenger{registered: true, id: "3EB0A1"}, Options{})

	id, err := f.c.SendText(context.Background(), fields.Payload{"to": "11 98765-4321", "msg": "Sua fatura venceu"})
	if err != nil {
		t.Fatalf("SendText() error = %v", err)
	}
	if id != "3EB0A1" {
		t.Errorf("id = %q", id)
	}
	if f.msgr.sentTo[0] != "551187654321@s.whatsapp.net" {
		t.Errorf("sent to %q", f.msgr.sentTo[0])
	}
	if f.msgr.sent[0].Text != "Sua fatura venceu" || f.msgr.sent[0].Kind != model.KindText {
		t.Errorf("content = %+v", f.msgr.sent[0])
	}

	r, ok := f.tracker.Get("3EB0A1")
	if !ok || r.Ack != model.AckPending || r.To != "11 98765-4321" || r.Kind != model.KindText {
		t.Errorf("record = %+v, %v", r, ok)
	}
	if len(f.audit.entries) != 1 || f.audit.cats[0] != audit.Outgoing {
		t.Fatalf("audit = %v %v", f.audit.cats, f.audit.entries)
	}
	if e := f.audit.entries[0]; e["endpoint"] != "send-message" || e["id"] != "3EB0A1" || e["to"] != "11 98765-4321" {
		t.Errorf("audit entry = %v", e)
	}
}

func TestSendTextNotReady(t *testing.T) {
	for _, s := range []status.State{status.Initializing, status.AwaitingPairing, status.Disconnected} {
		t.Run(string(s), func(t *testing.T) {
			f := newFixture(s, &fakeMessenger{registered: true}, Options{})
			_, err := f.c.SendText(context.Background(), fields.Payload{"to": "1", "msg": "x"})
			de := wantError(t, err, http.StatusConflict, CodeNotReady)
			if de.Extra["status"] != string(s) {
				t.Errorf("extra = %v", de.Extra)
			}
			if len(f.msgr.checked)+len(f.msgr.sent) != 0 {
				t.Error("session client called while not ready")
			}
		})
	}
}

func TestSendTextValidation(t *testing.T) {
	tests := []struct {
		name string
		p    fields.Payload
	}{
		{"missing message", fields.Payload{"to": "11987654321"}},
		{"missing number", fields.Payload{"msg": "x"}},
		{"empty message", fields.Payload{"numero": "11987654321", "mensagem": ""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(status.Ready, &fakeMessenger{registered: true}, Options{})
			_, err := f.c.SendText(context.Background(), tt.p)
			wantError(t, err, http.StatusBadRequest, CodeTextRequired)
		})
	}
}

func TestSendTextNotRegistered(t *testing.T) {
	f := newFixture(status.Ready, &fakeMessenger{registered: false}, Options{})
	_, err := f.c.SendText(context.Background(), fields.Payload{"telefone": "5511987654321", "text": "oi"})

	de := wantError(t, err, http.StatusUnprocessableEntity, CodeNotOnWhatsApp)
	if de.Extra["number"] != "5511987654321" {
		t.Errorf("extra = %v, want raw number", de.Extra)
	}
	if len(f.msgr.sent) != 0 || f.tracker.Len() != 0 || len(f.audit.entries) != 0 {
		t.Error("unregistered number must not be sent, tracked or audited")
	}
}

func TestSendTextClientErrors(t *testing.T) {
	boom := errors.New("websocket closed")
	for name, msgr := range map[string]*fakeMessenger{
		"registration": {regErr: boom},
		"send":         {registered: true, sendErr: boom},
	} {
		t.Run(name, func(t *testing.T) {
			f := newFixture(status.Ready, msgr, Options{})
			_, err := f.c.SendText(context.Background(), fields.Payload{"to": "1", "msg": "x"})
			if !errors.Is(err, boom) {
				t.Fatalf("error = %v, want wrapped client error", err)
			}
			var de *Error
			if errors.As(err, &de) {
				t.Errorf("client failure should be internal, got %v", de)
			}
		})
	}
}

func TestSendWithoutIDIsNotTracked(t *testing.T) {
	f := newFixture(status.Ready, &fakeMessenger{registered: true}, Options{})
	if _, err := f.c.SendText(context.Background(), fields.Payload{"to": "1", "msg": "x"}); err != nil {
		t.Fatal(err)
	}
	if f.tracker.Len() != 0 {
		t.Errorf("tracked %d records for an empty id", f.tracker.Len())
	}
	if len(f.audit.entries) != 1 {
		t.Error("send should still be audited")
	}
}

func TestSendMediaUpload(t *testing.T) {
	f := newFixture(status.Ready, &fakeMessenger{registered: true, id: "doc1"}, Options{})

	id, err := f.c.SendMedia(context.Background(), model.KindDocument, media.Request{
		Fields:  fields.Payload{"to": "11987654321", "caption": "boleto"},
		Uploads: []media.Upload{{Field: "file", Filename: "boleto.pdf", MimeType: "application/pdf", Data: []byte("%PDF")}},
	})
	if err != nil {
		t.Fatalf("SendMedia() error = %v", err)
	}
	if id != "doc1" {
		t.Errorf("id = %q", id)
	}
	sent := f.msgr.sent[0]
	if sent.Kind != model.KindDocument || sent.Media.Filename != "boleto.pdf" || sent.Media.Caption != "boleto" {
		t.Errorf("content = %+v media = %+v", sent, sent.Media)
	}
	if e := f.audit.entries[0]; e["endpoint"] != "send-document" || e["filename"] != "boleto.pdf" {
		t.Errorf("audit entry = %v", e)
	}
	if r, _ := f.tracker.Get("doc1"); r.Kind != model.KindDocument {
		t.Errorf("record kind = %v", r.Kind)
	}
}

func TestSendMediaValidation(t *testing.T) {
	f := newFixture(status.Ready, &fakeMessenger{registered: true}, Options{})

	_, err := f.c.SendMedia(context.Background(), model.KindImage, media.Request{Fields: fields.Payload{"legenda": "x"}})
	wantError(t, err, http.StatusBadRequest, CodeNumberRequired)
	if f.resolver.calls != 0 {
		t.Error("media resolved before the recipient was validated")
	}

	_, err = f.c.SendMedia(context.Background(), model.KindImage, media.Request{Fields: fields.Payload{"to": "11987654321"}})
	wantError(t, err, http.StatusBadRequest, CodeSourceRequired)
	if len(f.msgr.checked) != 0 {
		t.Error("registration checked for a request without media")
	}
}

func TestSendMediaNotReadyBeforeValidation(t *testing.T) {
	f := newFixture(status.AwaitingPairing, &fakeMessenger{}, Options{})
	_, err := f.c.SendMedia(context.Background(), model.KindImage, media.Request{})
	wantError(t, err, http.StatusConflict, CodeNotReady)
}

func TestCheckNumber(t *testing.T) {
	f := newFixture(status.Disconnected, &fakeMessenger{registered: true}, Options{})

	number, ok, err := f.c.CheckNumber(context.Background(), fields.Payload{"number": "(11) 98765-4321"})
	if err != nil {
		t.Fatal(err)
	}
	if number != "(11) 98765-4321" || !ok {
		t.Errorf("CheckNumber() = %q, %v", number, ok)
	}
	if f.msgr.checked[0] != "551187654321@s.whatsapp.net" {
		t.Errorf("checked %q", f.msgr.checked[0])
	}

	_, _, err = f.c.CheckNumber(context.Background(), fields.Payload{"telefone": "11987654321"})
	wantError(t, err, http.StatusBadRequest, CodeNumberRequired)
}

func TestSendTimeoutApplies(t *testing.T) {
	msgr := &deadlineMessenger{}
	f := New(msgr, fixedState(status.Ready), &fakeResolver{}, tracker.New(), &recordingAuditor{}, zap.NewNop(), Options{SendTimeout: time.Minute})
	if _, err := f.SendText(context.Background(), fields.Payload{"to": "1", "msg": "x"}); err != nil {
		t.Fatal(err)
	}
	if !msgr.hadDeadline {
		t.Error("session client call ran without a deadline")
	}
}

func TestLimiterCancelled(t *testing.T) {
	limiter := rate.NewLimiter(rate.Every(time.Hour), 1)
	limiter.Allow()
	f := newFixture(status.Ready, &fakeMessenger{registered: true, id: "x"}, Options{Limiter: limiter})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := f.c.SendText(ctx, fields.Payload{"to": "1", "msg": "x"}); err == nil {
		t.Fatal("expected an error when no send slot is available")
	}
	if len(f.msgr.sent) != 0 {
		t.Error("message sent without a slot")
	}
}

type deadlineMessenger struct {
	hadDeadline bool
}

func (d *deadlineMessenger) IsRegistered(context.Context, string) (bool, error) { return true, nil }

func (d *deadlineMessenger) Send(ctx context.Context, _ string, _ model.Content) (string, error) {
	_, d.hadDeadline = ctx.Deadline()
	return "id", nil
}
