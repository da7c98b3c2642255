// Package wa adapts the whatsmeow client to the gateway: it owns the device
// store, sends messages and translates whatsmeow events into bus events.
package wa

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/RiosWesley/whatsapp-mkauth/internal/bus"
	"github.com/RiosWesley/whatsapp-mkauth/internal/model"
	"github.com/RiosWesley/whatsapp-mkauth/internal/phone"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	wastore "go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotInitialized is returned by operations that need a live client.
var ErrNotInitialized = errors.New("whatsapp client not initialized")

// Adapter wraps the whatsmeow client and manages the WhatsApp connection.
type Adapter struct {
	mu        sync.Mutex
	client    *whatsmeow.Client
	container *sqlstore.Container
	handler   *EventHandler
	logger    *zap.Logger
	cancelQR  context.CancelFunc
}

// NewAdapter opens the device store at dbPath. No connection is made until
// Initialize.
func NewAdapter(ctx context.Context, dbPath, deviceName string, b *bus.Bus, logger *zap.Logger) (*Adapter, error) {
	// Device name shown on the phone's linked devices list.
	if deviceName != "" {
		wastore.SetOSInfo(deviceName, [3]uint32{0, 1, 0})
	}

	container, err := sqlstore.New(ctx, "sqlite3",
		fmt.Sprintf("file:%s?_foreign_keys=on", dbPath),
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("create session store: %w", err)
	}

	return &Adapter{
		container: container,
		handler:   NewEventHandler(b, logger),
		logger:    logger,
	}, nil
}

// Initialize creates a client for the stored device and connects it. An
// unpaired device streams pairing codes onto the bus until it is paired or
// the codes run out.
func (a *Adapter) Initialize(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.client != nil {
		return errors.New("whatsapp client already initialized")
	}

	device, err := a.container.GetFirstDevice(ctx)
	if err != nil {
		return fmt.Errorf("get device store: %w", err)
	}

	client := whatsmeow.NewClient(device, nil)
	// Reconnects are driven by the supervisor.
	client.EnableAutoReconnect = false
	client.AddEventHandler(a.handler.Handle)

	if client.Store.ID == nil {
		qrCtx, cancel := context.WithCancel(context.Background())
		qrChan, err := client.GetQRChannel(qrCtx)
		if err != nil {
			cancel()
			return fmt.Errorf("get QR channel: %w", err)
		}
		// Connect must be called after GetQRChannel.
		if err := client.Connect(); err != nil {
			cancel()
			client.RemoveEventHandlers()
			return fmt.Errorf("connect: %w", err)
		}
		a.cancelQR = cancel
		go a.handler.HandleQR(qrChan)
	} else {
		a.logger.Info("connecting to WhatsApp", zap.String("jid", client.Store.ID.String()))
		if err := client.Connect(); err != nil {
			client.RemoveEventHandlers()
			return fmt.Errorf("connect: %w", err)
		}
	}

	a.client = client
	return nil
}

// Destroy disconnects and drops the client. It is safe to call on an
// adapter that was never initialized.
func (a *Adapter) Destroy(_ context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cancelQR != nil {
		a.cancelQR()
		a.cancelQR = nil
	}
	if a.client == nil {
		return nil
	}
	a.logger.Info("disconnecting from WhatsApp")
	a.client.RemoveEventHandlers()
	a.client.Disconnect()
	a.client = nil
	return nil
}

func (a *Adapter) current() (*whatsmeow.Client, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.client == nil {
		return nil, ErrNotInitialized
	}
	return a.client, nil
}

// IsRegistered reports whether the number behind addr has a WhatsApp account.
func (a *Adapter) IsRegistered(ctx context.Context, addr string) (bool, error) {
	client, err := a.current()
	if err != nil {
		return false, err
	}
	resp, err := client.IsOnWhatsApp(ctx, []string{"+" + phone.Digits(addr)})
	if err != nil {
		return false, fmt.Errorf("query registration: %w", err)
	}
	for _, r := range resp {
		if r.IsIn {
			return true, nil
		}
	}
	return false, nil
}

// Send delivers content to addr. Returns the server message ID.
func (a *Adapter) Send(ctx context.Context, addr string, content model.Content) (string, error) {
	client, err := a.current()
	if err != nil {
		return "", err
	}
	to, err := types.ParseJID(addr)
	if err != nil {
		return "", fmt.Errorf("parse JID: %w", err)
	}

	msg, err := a.build(ctx, client, content)
	if err != nil {
		return "", err
	}
	resp, err := client.SendMessage(ctx, to, msg)
	if err != nil {
		return "", fmt.Errorf("send message: %w", err)
	}
	return resp.ID, nil
}

func (a *Adapter) build(ctx context.Context, client *whatsmeow.Client, content model.Content) (*waE2E.Message, error) {
	switch content.Kind {
	case model.KindText:
		return &waE2E.Message{Conversation: proto.String(content.Text)}, nil
	case model.KindImage, model.KindDocument:
	default:
		return nil, fmt.Errorf("unsupported message kind %q", content.Kind)
	}

	m := content.Media
	if m == nil {
		return nil, fmt.Errorf("%s message without media", content.Kind)
	}

	mediaType := whatsmeow.MediaImage
	if content.Kind == model.KindDocument {
		mediaType = whatsmeow.MediaDocument
	}
	up, err := client.Upload(ctx, m.Data, mediaType)
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", content.Kind, err)
	}
	return mediaMessage(content.Kind, m, up), nil
}

func mediaMessage(kind model.Kind, m *model.Media, up whatsmeow.UploadResponse) *waE2E.Message {
	if kind == model.KindImage {
		return &waE2E.Message{ImageMessage: &waE2E.ImageMessage{
			URL:           proto.String(up.URL),
			DirectPath:    proto.String(up.DirectPath),
			MediaKey:      up.MediaKey,
			Mimetype:      proto.String(m.MimeType),
			FileEncSHA256: up.FileEncSHA256,
			FileSHA256:    up.FileSHA256,
			FileLength:    proto.Uint64(up.FileLength),
			Caption:       proto.String(m.Caption),
		}}
	}
	doc := &waE2E.DocumentMessage{
		URL:           proto.String(up.URL),
		DirectPath:    proto.String(up.DirectPath),
		MediaKey:      up.MediaKey,
		Mimetype:      proto.String(m.MimeType),
		FileEncSHA256: up.FileEncSHA256,
		FileSHA256:    up.FileSHA256,
		FileLength:    proto.Uint64(up.FileLength),
		FileName:      proto.String(m.Filename),
		Title:         proto.String(m.Filename),
	}
	if m.Caption != "" {
		doc.Caption = proto.String(m.Caption)
	}
	return &waE2E.Message{DocumentMessage: doc}
}
