package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"go.mau.fi/whatsmeow"
	waProto "go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"
	_ "modernc.org/sqlite"

	"topup-store/internal/metrics"
)

// WhatsAppConfig holds configuration for the WhatsApp notifier.
type WhatsAppConfig struct {
	StorePath string
	LogLevel  string
	AdminJID  string
}

// WhatsApp sends alerts to one admin chat from a paired device.
type WhatsApp struct {
	client  *whatsmeow.Client
	admin   types.JID
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewWhatsApp opens the device store. Call Start before sending.
func NewWhatsApp(ctx context.Context, cfg WhatsAppConfig, logger *slog.Logger, m *metrics.Metrics) (*WhatsApp, error) {
	if cfg.StorePath == "" {
		return nil, errors.New("store path is required")
	}
	admin, err := types.ParseJID(cfg.AdminJID)
	if err != nil {
		return nil, fmt.Errorf("parse admin jid: %w", err)
	}
	if err := ensureDir(filepath.Dir(cfg.StorePath)); err != nil {
		return nil, fmt.Errorf("ensure store dir: %w", err)
	}

	storeLogger := waLog.Stdout("whatsmeow/sqlstore", cfg.LogLevel, true)
	container, err := sqlstore.New(ctx, "sqlite", fmt.Sprintf("file:%s?_pragma=busy_timeout=10000&_pragma=foreign_keys(ON)", cfg.StorePath), storeLogger)
	if err != nil {
		return nil, fmt.Errorf("create sqlstore: %w", err)
	}
	deviceStore, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("get device: %w", err)
	}

	w := &WhatsApp{
		client:  whatsmeow.NewClient(deviceStore, waLog.Stdout("whatsmeow/client", cfg.LogLevel, true)),
		admin:   admin,
		logger:  logger.With("component", "whatsapp"),
		metrics: m,
	}
	w.client.AddEventHandler(w.handleEvent)
	return w, nil
}

// Start connects, logging the pairing QR code when the device is new.
func (w *WhatsApp) Start(ctx context.Context) error {
	if w.client.Store.ID == nil {
		w.logger.Info("pairing required, waiting for QR scan")
		qrChan, err := w.client.GetQRChannel(ctx)
		if err != nil {
			return fmt.Errorf("get qr channel: %w", err)
		}
		go func() {
			for evt := range qrChan {
				if evt.Event == "code" {
					w.logger.Info("scan the QR code with WhatsApp", "qr", evt.Code)
				} else {
					w.logger.Info("pairing event received", "event", evt.Event)
				}
			}
		}()
	}
	if err := w.client.Connect(); err != nil {
		return fmt.Errorf("connect wa client: %w", err)
	}
	w.logger.Info("whatsapp notifier connected", "admin", w.admin.String())
	return nil
}

// Close disconnects the client.
func (w *WhatsApp) Close() {
	if w.client != nil {
		w.client.Disconnect()
	}
}

// Send delivers text to the admin chat.
func (w *WhatsApp) Send(ctx context.Context, text string) error {
	status := "ok"
	defer func() {
		if w.metrics != nil {
			w.metrics.NotifierSends.WithLabelValues("whatsapp", status).Inc()
		}
	}()
	if !w.client.IsConnected() {
		status = "error"
		return &sendError{channel: "whatsapp", err: errors.New("client not connected")}
	}
	msg := &waProto.Message{Conversation: proto.String(text)}
	if _, err := w.client.SendMessage(ctx, w.admin, msg); err != nil {
		status = "error"
		return &sendError{channel: "whatsapp", err: err}
	}
	return nil
}

func (w *WhatsApp) handleEvent(evt interface{}) {
	switch v := evt.(type) {
	case *events.Connected:
		w.logger.Info("device connected")
	case *events.Disconnected:
		w.logger.Warn("device disconnected")
	case *events.LoggedOut:
		w.logger.Warn("device logged out, pairing required on next start", "reason", v.Reason.String())
	case *events.Message:
		if v.Info.Sender.ToNonAD().User == w.admin.User {
			w.logger.Debug("admin replied on whatsapp", "text", v.Message.GetConversation())
		}
	}
}

func ensureDir(dir string) error {
	if dir == "." || dir == "" {
		return nil
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return os.MkdirAll(dir, 0o755)
	}
	return nil
}
