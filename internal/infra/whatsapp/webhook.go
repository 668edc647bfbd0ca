package whatsapp

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"client-manager-bot/internal/application"
	"client-manager-bot/internal/config"
	"client-manager-bot/internal/domain"
	"client-manager-bot/internal/domain/ports/adapter"
	"client-manager-bot/internal/usecase"
)

const transportName = "whatsapp"

// Webhook receives WhatsApp Cloud API callbacks. Senders are matched to
// accounts by their wa_id; numbers that were never linked with /linkwa get a
// short pointer and nothing else.
type Webhook struct {
	cfg    *config.WhatsAppConfig
	users  usecase.UserUseCase
	router *application.CommandRouter
	msgr   *Messenger
	log    *zerolog.Logger
}

func NewWebhook(cfg *config.WhatsAppConfig, users usecase.UserUseCase, router *application.CommandRouter, msgr *Messenger, logger *zerolog.Logger) *Webhook {
	compLog := logger.With().Str("component", "WhatsAppWebhook").Logger()
	return &Webhook{
		cfg:    cfg,
		users:  users,
		router: router,
		msgr:   msgr,
		log:    &compLog,
	}
}

// Router builds the chi mux Meta calls into.
func (h *Webhook) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Get("/webhook", h.handleVerify)
	r.Post("/webhook", h.handleInbound)
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	return r
}

// handleVerify answers Meta's subscription handshake.
func (h *Webhook) handleVerify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode := q.Get("hub.mode")
	token := q.Get("hub.verify_token")
	if mode != "subscribe" || subtle.ConstantTimeCompare([]byte(token), []byte(h.cfg.VerifyToken)) != 1 {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(q.Get("hub.challenge")))
}

// handleInbound parses the callback and routes each message. It always
// answers 200; anything else makes Meta retry the delivery.
func (h *Webhook) handleInbound(w http.ResponseWriter, r *http.Request) {
	var payload notificationPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.log.Warn().Err(err).Msg("undecodable callback payload")
		w.WriteHeader(http.StatusOK)
		return
	}

	for _, m := range payload.inboundMessages() {
		if err := h.handleMessage(r.Context(), m); err != nil {
			h.log.Error().Err(err).Str("wa_id", m.From).Msg("handle inbound message")
		}
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Webhook) handleMessage(ctx context.Context, in inboundMessage) error {
	user, err := h.users.GetByWhatsAppID(ctx, in.From)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			_, sendErr := h.msgr.Send(ctx, in.From,
				"This number is not linked to an account. Open the Telegram bot and send /linkwa with your number.")
			return sendErr
		}
		return err
	}

	return h.router.HandleMessage(ctx, user, adapter.Message{
		UserID:    user.ID,
		Chat:      in.From,
		Text:      in.Text,
		MessageID: in.ID,
		Document:  in.Document,
	})
}

// ===== Cloud API payload =====

type notificationPayload struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Messages []struct {
					From string `json:"from"`
					ID   string `json:"id"`
					Type string `json:"type"`
					Text *struct {
						Body string `json:"body"`
					} `json:"text"`
					Document *struct {
						ID       string `json:"id"`
						Filename string `json:"filename"`
						MimeType string `json:"mime_type"`
					} `json:"document"`
				} `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type inboundMessage struct {
	From     string
	ID       string
	Text     string
	Document *adapter.Document
}

// inboundMessages flattens the callback's entry/changes nesting into the
// messages the router consumes. Status updates and unsupported types come
// through as empty messages and are skipped.
func (p *notificationPayload) inboundMessages() []inboundMessage {
	var out []inboundMessage
	for _, entry := range p.Entry {
		for _, change := range entry.Changes {
			for _, msg := range change.Value.Messages {
				in := inboundMessage{From: msg.From, ID: msg.ID}
				if msg.Text != nil {
					in.Text = msg.Text.Body
				}
				if msg.Document != nil {
					in.Document = &adapter.Document{
						FileID:   msg.Document.ID,
						FileName: msg.Document.Filename,
						MimeType: msg.Document.MimeType,
					}
				}
				if in.From == "" || (in.Text == "" && in.Document == nil) {
					continue
				}
				out = append(out, in)
			}
		}
	}
	return out
}
