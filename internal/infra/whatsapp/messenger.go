package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"client-manager-bot/internal/config"
	"client-manager-bot/internal/infra/metrics"
)

const graphBaseURL = "https://graph.facebook.com/v18.0"

// Messenger sends messages through the WhatsApp Cloud API. It implements
// adapter.Messenger; Delete is a no-op because the Cloud API cannot delete
// sent messages.
type Messenger struct {
	cfg  *config.WhatsAppConfig
	http *http.Client
	base string
	log  *zerolog.Logger
}

func NewMessenger(cfg *config.WhatsAppConfig, logger *zerolog.Logger) *Messenger {
	compLog := logger.With().Str("component", "WhatsAppMessenger").Logger()
	return &Messenger{
		cfg:  cfg,
		http: &http.Client{Timeout: 30 * time.Second},
		base: graphBaseURL,
		log:  &compLog,
	}
}

type sendRequest struct {
	MessagingProduct string   `json:"messaging_product"`
	To               string   `json:"to"`
	Type             string   `json:"type"`
	Text             sendText `json:"text"`
}

type sendText struct {
	Body string `json:"body"`
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// Send posts a text message to the chat's phone number and returns the wamid.
func (m *Messenger) Send(ctx context.Context, chat string, text string) (string, error) {
	payload, err := json.Marshal(sendRequest{
		MessagingProduct: "whatsapp",
		To:               chat,
		Type:             "text",
		Text:             sendText{Body: text},
	})
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/%s/messages", m.base, m.cfg.PhoneID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+m.cfg.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.http.Do(req)
	if err != nil {
		metrics.SendError(transportName)
		return "", fmt.Errorf("send to %s: %w", chat, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.SendError(transportName)
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("send to %s: status %d: %s", chat, resp.StatusCode, body)
	}

	var out sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode send response: %w", err)
	}
	if len(out.Messages) == 0 {
		return "", fmt.Errorf("send to %s: empty message id", chat)
	}
	return out.Messages[0].ID, nil
}

// Delete is not supported by the Cloud API; prompts simply stay in the chat.
func (m *Messenger) Delete(ctx context.Context, chat string, messageID string) error {
	return nil
}

// FetchDocument resolves a media id to its download URL and fetches the
// content.
func (m *Messenger) FetchDocument(ctx context.Context, fileID string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/%s", m.base, fileID), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+m.cfg.AccessToken)

	resp, err := m.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("resolve media %s: %w", fileID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("resolve media %s: status %d", fileID, resp.StatusCode)
	}

	var meta struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return nil, fmt.Errorf("decode media metadata: %w", err)
	}
	if meta.URL == "" {
		return nil, fmt.Errorf("media %s has no download url", fileID)
	}

	dlReq, err := http.NewRequestWithContext(ctx, http.MethodGet, meta.URL, nil)
	if err != nil {
		return nil, err
	}
	dlReq.Header.Set("Authorization", "Bearer "+m.cfg.AccessToken)

	dlResp, err := m.http.Do(dlReq)
	if err != nil {
		return nil, fmt.Errorf("download media %s: %w", fileID, err)
	}
	defer dlResp.Body.Close()
	if dlResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download media %s: status %d", fileID, dlResp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(dlResp.Body, 10<<20))
}
