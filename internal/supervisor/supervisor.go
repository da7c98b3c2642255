// Package supervisor owns the WhatsApp session lifecycle. It is the single
// consumer of session client events: it drives the state machine, records
// acknowledgments and restarts the client after it drops.
package supervisor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/RiosWesley/whatsapp-mkauth/internal/audit"
	"github.com/RiosWesley/whatsapp-mkauth/internal/bus"
	"github.com/RiosWesley/whatsapp-mkauth/internal/observability"
	"github.com/RiosWesley/whatsapp-mkauth/internal/status"
	"github.com/RiosWesley/whatsapp-mkauth/internal/tracker"
	"go.uber.org/zap"
)

// Lifecycle is the part of the session client the supervisor drives.
type Lifecycle interface {
	Initialize(ctx context.Context) error
	Destroy(ctx context.Context) error
}

// Auditor appends audit records.
type Auditor interface {
	Append(category string, record map[string]any)
}

// Options tunes restarts and the startup watchdog.
type Options struct {
	RestartDelay    time.Duration
	RestartMaxDelay time.Duration
	// MaxAttempts bounds consecutive restarts. Zero means unbounded.
	MaxAttempts     int
	WatchdogTimeout time.Duration
	// OnPairingCode is called from the event loop for every new code.
	OnPairingCode   func(code string)
}

var allStates = []string{
	string(status.Initializing),
	string(status.AwaitingPairing),
	string(status.Ready),
	string(status.Disconnected),
}

// Supervisor runs the session event loop.
type Supervisor struct {
	client  Lifecycle
	machine *status.Machine
	bus     *bus.Bus
	tracker *tracker.Tracker
	audit   Auditor
	logger  *zap.Logger
	opts    Options

	mu        sync.Mutex
	qr        string
	attempts  int
	scheduled bool
	restartT  *time.Timer
	watchdog  *time.Timer

	restarting atomic.Bool
	ctx        context.Context
	cancel     context.CancelFunc
	unsub      func()
	done       chan struct{}
}

// New creates a supervisor. Call Start to run it.
func New(client Lifecycle, machine *status.Machine, b *bus.Bus, t *tracker.Tracker, a Auditor, logger *zap.Logger, opts Options) *Supervisor {
	return &Supervisor{
		client:  client,
		machine: machine,
		bus:     b,
		tracker: t,
		audit:   a,
		logger:  logger,
		opts:    opts,
		done:    make(chan struct{}),
	}
}

// Start subscribes to session events, arms the watchdog and initializes the
// client. An initialization failure is handled like a disconnect.
func (s *Supervisor) Start(ctx context.Context) {
	s.ctx, s.cancel = context.WithCancel(context.Background())

	events, unsub := s.bus.SubscribeQueue(bus.Namespace)
	s.unsub = unsub
	go s.loop(events)

	observability.SetSessionState(string(s.machine.Current()), allStates)
	if s.opts.WatchdogTimeout > 0 {
		s.mu.Lock()
		s.watchdog = time.AfterFunc(s.opts.WatchdogTimeout, s.checkStartup)
		s.mu.Unlock()
	}

	s.logger.Info("initializing WhatsApp client")
	if err := s.client.Initialize(ctx); err != nil {
		s.logger.Error("initialize WhatsApp client", zap.Error(err))
		s.bus.Publish(bus.NewEvent(bus.KindDisconnected, bus.Reason{Text: "initialize: " + err.Error()}))
	}
}

// Stop ends the event loop, cancels pending restarts and destroys the client.
func (s *Supervisor) Stop(ctx context.Context) error {
	if s.cancel == nil {
		return nil
	}
	s.cancel()

	s.mu.Lock()
	if s.restartT != nil {
		s.restartT.Stop()
	}
	if s.watchdog != nil {
		s.watchdog.Stop()
	}
	s.scheduled = false
	s.mu.Unlock()

	s.unsub()
	<-s.done
	return s.client.Destroy(ctx)
}

// State returns the current session state.
func (s *Supervisor) State() status.State {
	return s.machine.Current()
}

// QR returns the latest pairing code while the session awaits pairing.
func (s *Supervisor) QR() (string, bool) {
	if s.machine.Current() != status.AwaitingPairing {
		return "", false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.qr, s.qr != ""
}

func (s *Supervisor) loop(events <-chan bus.Event) {
	defer close(s.done)
	for {
		select {
		case <-s.ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			s.handle(evt)
		}
	}
}

func (s *Supervisor) handle(evt bus.Event) {
	switch evt.Kind {
	case bus.KindPairingCode:
		code, _ := evt.Payload.(bus.PairingCode)
		s.mu.Lock()
		s.qr = code.Code
		s.mu.Unlock()
		s.transition(status.AwaitingPairing)
		s.logger.Info("pairing code issued, scan it to authenticate")
		if s.opts.OnPairingCode != nil {
			s.opts.OnPairingCode(code.Code)
		}
	case bus.KindAuthenticated:
		s.logger.Info("WhatsApp authenticated")
	case bus.KindReady:
		s.mu.Lock()
		s.qr = ""
		s.attempts = 0
		if s.watchdog != nil {
			s.watchdog.Stop()
		}
		s.mu.Unlock()
		s.transition(status.Ready)
		s.logger.Info("WhatsApp client ready")
	case bus.KindAuthFailed:
		reason, _ := evt.Payload.(bus.Reason)
		s.logger.Error("WhatsApp authentication failed", zap.String("reason", reason.Text))
		s.dropped()
	case bus.KindDisconnected:
		reason, _ := evt.Payload.(bus.Reason)
		s.logger.Warn("WhatsApp disconnected", zap.String("reason", reason.Text))
		s.dropped()
	case bus.KindLoading:
		l, _ := evt.Payload.(bus.Loading)
		s.logger.Info("WhatsApp loading", zap.Int("percent", l.Percent), zap.String("message", l.Message))
	case bus.KindState:
		reason, _ := evt.Payload.(bus.Reason)
		s.logger.Info("WhatsApp state", zap.String("state", reason.Text))
	case bus.KindAck:
		ack, ok := evt.Payload.(bus.Ack)
		if !ok || ack.MessageID == "" {
			return
		}
		s.tracker.ApplyAck(ack.MessageID, ack.Ack, ack.Recipient, "")
		observability.Acks.WithLabelValues(ack.Ack.String()).Inc()
		s.audit.Append(audit.OutgoingAck, map[string]any{
			"id":  ack.MessageID,
			"to":  ack.Recipient,
			"ack": int(ack.Ack),
		})
	}
}

func (s *Supervisor) transition(to status.State) {
	from := s.machine.Current()
	if err := s.machine.Transition(to); err != nil {
		s.logger.Debug("ignoring state change", zap.Error(err))
	}
	current := s.machine.Current()
	if current != from {
		s.logger.Info("session state changed", zap.String("from", string(from)), zap.String("to", string(current)))
	}
	observability.SetSessionState(string(current), allStates)
}

// dropped moves to disconnected and schedules a restart unless one is
// already pending.
func (s *Supervisor) dropped() {
	s.transition(status.Disconnected)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.scheduled || s.ctx.Err() != nil {
		return
	}
	s.attempts++
	if s.opts.MaxAttempts > 0 && s.attempts > s.opts.MaxAttempts {
		s.logger.Error("giving up on WhatsApp session restarts", zap.Int("attempts", s.attempts-1))
		return
	}
	delay := Backoff(s.opts.RestartDelay, s.opts.RestartMaxDelay, s.attempts)
	s.logger.Info("scheduling WhatsApp restart", zap.Int("attempt", s.attempts), zap.Duration("delay", delay))
	s.scheduled = true
	s.restartT = time.AfterFunc(delay, s.restart)
}

func (s *Supervisor) restart() {
	s.mu.Lock()
	s.scheduled = false
	s.mu.Unlock()

	// A running restart reports its own outcome.
	if !s.restarting.CompareAndSwap(false, true) {
		return
	}
	defer s.restarting.Store(false)

	if s.ctx.Err() != nil {
		return
	}
	observability.Restarts.Inc()

	if err := s.client.Destroy(s.ctx); err != nil {
		s.logger.Warn("destroy WhatsApp client", zap.Error(err))
	}
	s.transition(status.Initializing)

	if err := s.client.Initialize(s.ctx); err != nil {
		s.logger.Error("reinitialize WhatsApp client", zap.Error(err))
		s.bus.Publish(bus.NewEvent(bus.KindDisconnected, bus.Reason{Text: "initialize: " + err.Error()}))
	}
}

func (s *Supervisor) checkStartup() {
	if s.machine.Current() == status.Initializing {
		s.logger.Warn("WhatsApp client still initializing", zap.Duration("after", s.opts.WatchdogTimeout))
	}
}

// Backoff returns the delay before restart attempt n (1-based): base doubled
// per attempt, capped at limit.
func Backoff(base, limit time.Duration, n int) time.Duration {
	d := base
	for i := 1; i < n; i++ {
		d *= 2
		if limit > 0 && d >= limit {
			return limit
		}
	}
	if limit > 0 && d > limit {
		return limit
	}
	return d
}
