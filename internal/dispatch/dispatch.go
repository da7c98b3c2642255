// Package dispatch validates outbound message requests and hands them to the
// session client.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/RiosWesley/whatsapp-mkauth/internal/audit"
	"github.com/RiosWesley/whatsapp-mkauth/internal/fields"
	"github.com/RiosWesley/whatsapp-mkauth/internal/media"
	"github.com/RiosWesley/whatsapp-mkauth/internal/model"
	"github.com/RiosWesley/whatsapp-mkauth/internal/observability"
	"github.com/RiosWesley/whatsapp-mkauth/internal/phone"
	"github.com/RiosWesley/whatsapp-mkauth/internal/status"
	"github.com/RiosWesley/whatsapp-mkauth/internal/tracker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Messenger is the session client as seen by the dispatch path.
type Messenger interface {
	IsRegistered(ctx context.Context, addr string) (bool, error)
	Send(ctx context.Context, addr string, content model.Content) (string, error)
}

// StateReader reports the session state.
type StateReader interface {
	State() status.State
}

// Auditor appends audit records.
type Auditor interface {
	Append(category string, record map[string]any)
}

// MediaResolver builds the payload of image and document messages.
type MediaResolver interface {
	Resolve(ctx context.Context, kind model.Kind, req media.Request) (*model.Media, error)
}

// Options tunes the coordinator.
type Options struct {
	// SendTimeout bounds each session client call. Zero disables it.
	SendTimeout time.Duration
	// Limiter paces sends. Nil disables pacing.
	Limiter *rate.Limiter
}

// Coordinator runs one send per call in a fixed order: readiness, field
// resolution, normalization, registration, send, tracking, audit.
type Coordinator struct {
	messenger Messenger
	state     StateReader
	resolver  MediaResolver
	tracker   *tracker.Tracker
	audit     Auditor
	logger    *zap.Logger
	opts      Options
}

// New creates a coordinator.
func New(m Messenger, s StateReader, r MediaResolver, t *tracker.Tracker, a Auditor, logger *zap.Logger, opts Options) *Coordinator {
	return &Coordinator{
		messenger: m,
		state:     s,
		resolver:  r,
		tracker:   t,
		audit:     a,
		logger:    logger,
		opts:      opts,
	}
}

var endpoints = map[model.Kind]string{
	model.KindText:     "send-message",
	model.KindImage:    "send-image",
	model.KindDocument: "send-document",
}

// SendText sends the text message described by p and returns its id.
func (c *Coordinator) SendText(ctx context.Context, p fields.Payload) (string, error) {
	if err := c.ready(); err != nil {
		return "", err
	}
	number := fields.String(p, fields.Recipient, "")
	text := fields.String(p, fields.Text, "")
	if number == "" || text == "" {
		return "", badRequest(CodeTextRequired)
	}
	return c.deliver(ctx, number, model.Content{Kind: model.KindText, Text: text}, "")
}

// SendMedia sends an image or document message and returns its id.
func (c *Coordinator) SendMedia(ctx context.Context, kind model.Kind, req media.Request) (string, error) {
	if err := c.ready(); err != nil {
		return "", err
	}
	number := fields.String(req.Fields, fields.Recipient, "")
	if number == "" {
		return "", badRequest(CodeNumberRequired)
	}

	m, err := c.resolver.Resolve(ctx, kind, req)
	if errors.Is(err, media.ErrSourceRequired) {
		return "", badRequest(CodeSourceRequired)
	}
	if err != nil {
		return "", c.failed(kind, fmt.Errorf("resolve media: %w", err))
	}
	return c.deliver(ctx, number, model.Content{Kind: kind, Media: m}, m.Filename)
}

// CheckNumber reports whether the number in p is registered on WhatsApp.
// It returns the number as the caller sent it.
func (c *Coordinator) CheckNumber(ctx context.Context, p fields.Payload) (string, bool, error) {
	number := fields.String(p, fields.CheckNumber, "")
	if number == "" {
		return "", false, badRequest(CodeNumberRequired)
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	ok, err := c.messenger.IsRegistered(ctx, phone.Normalize(number))
	if err != nil {
		return number, false, fmt.Errorf("check number: %w", err)
	}
	return number, ok, nil
}

func (c *Coordinator) ready() error {
	if s := c.state.State(); s != status.Ready {
		return notReady(string(s))
	}
	return nil
}

func (c *Coordinator) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.opts.SendTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.opts.SendTimeout)
}

func (c *Coordinator) deliver(ctx context.Context, number string, content model.Content, filename string) (string, error) {
	addr := phone.Normalize(number)

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	registered, err := c.messenger.IsRegistered(ctx, addr)
	if err != nil {
		return "", c.failed(content.Kind, fmt.Errorf("check registration: %w", err))
	}
	if !registered {
		observability.Dispatches.WithLabelValues(string(content.Kind), "unregistered").Inc()
		return "", notOnWhatsApp(number)
	}

	if c.opts.Limiter != nil {
		if err := c.opts.Limiter.Wait(ctx); err != nil {
			return "", c.failed(content.Kind, fmt.Errorf("wait for send slot: %w", err))
		}
	}

	start := time.Now()
	id, err := c.messenger.Send(ctx, addr, content)
	observability.SendLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		return "", c.failed(content.Kind, fmt.Errorf("send %s: %w", content.Kind, err))
	}

	if id != "" {
		c.tracker.RecordPending(id, number, content.Kind)
	}
	record := map[string]any{
		"endpoint": endpoints[content.Kind],
		"to":       number,
		"id":       id,
	}
	if filename != "" {
		record["filename"] = filename
	}
	c.audit.Append(audit.Outgoing, record)
	observability.Dispatches.WithLabelValues(string(content.Kind), "sent").Inc()

	c.logger.Info("message sent",
		zap.String("kind", string(content.Kind)),
		zap.String("to", number),
		zap.String("id", id),
	)
	return id, nil
}

func (c *Coordinator) failed(kind model.Kind, err error) error {
	observability.Dispatches.WithLabelValues(string(kind), "error").Inc()
	return err
}
