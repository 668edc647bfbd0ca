package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"client-manager-bot/internal/application"
	"client-manager-bot/internal/config"
	"client-manager-bot/internal/domain/ports/adapter"
	"client-manager-bot/internal/infra/metrics"
	"client-manager-bot/internal/usecase"
)

const transportName = "telegram"

// Bot is the Telegram transport. It polls for updates, resolves each sender
// to a domain user and hands the message to the command router. It also
// implements adapter.Messenger so the flow engine can reply and clean up
// prompts through it.
type Bot struct {
	api    *tgbotapi.BotAPI
	cfg    *config.BotConfig
	users  usecase.UserUseCase
	router *application.CommandRouter
	log    *zerolog.Logger

	workers int
	http    *http.Client

	cancelPolling context.CancelFunc
}

func NewBot(cfg *config.BotConfig, users usecase.UserUseCase, logger *zerolog.Logger) (*Bot, error) {
	if cfg == nil {
		return nil, errors.New("bot config is nil")
	}

	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = 5
	}
	compLog := logger.With().Str("component", "TelegramBot").Logger()

	return &Bot{
		api:     api,
		cfg:     cfg,
		users:   users,
		log:     &compLog,
		workers: workers,
		http:    &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// SetRouter wires the command router after construction. The router's engine
// needs the bot as its Messenger, so the two are tied together in main in
// two steps.
func (b *Bot) SetRouter(r *application.CommandRouter) { b.router = r }

// StartPolling polls Telegram for updates and fans them out to a fixed pool
// of workers. It blocks until ctx is canceled.
func (b *Bot) StartPolling(ctx context.Context) error {
	if b.router == nil {
		return errors.New("command router not set")
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)

	ctx, cancel := context.WithCancel(ctx)
	b.cancelPolling = cancel

	var wg sync.WaitGroup
	updateChan := make(chan tgbotapi.Update, 100)

	for i := 0; i < b.workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for {
				select {
				case update, ok := <-updateChan:
					if !ok {
						return
					}
					if err := b.handleUpdate(ctx, update); err != nil {
						b.log.Error().Err(err).Int("worker", workerID).Msg("handle update")
					}
				case <-ctx.Done():
					return
				}
			}
		}(i + 1)
	}

	go func() {
		defer close(updateChan)
		for {
			select {
			case update := <-updates:
				select {
				case updateChan <- update:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	b.log.Info().Int("workers", b.workers).Msg("polling started")
	<-ctx.Done()
	b.api.StopReceivingUpdates()
	wg.Wait()
	return nil
}

// StopPolling stops the polling loop gracefully.
func (b *Bot) StopPolling() {
	if b.cancelPolling != nil {
		b.cancelPolling()
	}
}

// Send implements adapter.Messenger. The returned id is the Telegram message
// id in decimal.
func (b *Bot) Send(ctx context.Context, chat string, text string) (string, error) {
	chatID, err := strconv.ParseInt(chat, 10, 64)
	if err != nil {
		return "", fmt.Errorf("bad chat id %q: %w", chat, err)
	}
	sent, err := b.api.Send(tgbotapi.NewMessage(chatID, text))
	if err != nil {
		metrics.SendError(transportName)
		return "", fmt.Errorf("send to %d: %w", chatID, err)
	}
	return strconv.Itoa(sent.MessageID), nil
}

// Delete implements adapter.Messenger.
func (b *Bot) Delete(ctx context.Context, chat string, messageID string) error {
	chatID, err := strconv.ParseInt(chat, 10, 64)
	if err != nil {
		return fmt.Errorf("bad chat id %q: %w", chat, err)
	}
	msgID, err := strconv.Atoi(messageID)
	if err != nil {
		return fmt.Errorf("bad message id %q: %w", messageID, err)
	}
	if _, err := b.api.Request(tgbotapi.NewDeleteMessage(chatID, msgID)); err != nil {
		return fmt.Errorf("delete message %d: %w", msgID, err)
	}
	return nil
}

// FetchDocument implements adapter.Messenger by downloading the file behind
// a Telegram file id.
func (b *Bot) FetchDocument(ctx context.Context, fileID string) ([]byte, error) {
	file, err := b.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("get file %s: %w", fileID, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, file.Link(b.api.Token), nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file %s: %w", fileID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file %s: status %d", fileID, resp.StatusCode)
	}
	// Backups are small JSON files; cap the read anyway.
	return io.ReadAll(io.LimitReader(resp.Body, 10<<20))
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) error {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return nil
	}

	user, err := b.users.RegisterOrFetch(ctx, msg.From.ID, displayName(msg.From))
	if err != nil {
		return fmt.Errorf("register user %d: %w", msg.From.ID, err)
	}

	return b.router.HandleMessage(ctx, user, toMessage(msg))
}

// toMessage converts a Telegram message into the transport-neutral form the
// engine consumes.
func toMessage(msg *tgbotapi.Message) adapter.Message {
	m := adapter.Message{
		UserID:    msg.From.ID,
		Chat:      strconv.FormatInt(msg.Chat.ID, 10),
		Text:      msg.Text,
		MessageID: strconv.Itoa(msg.MessageID),
	}
	if m.Text == "" {
		m.Text = msg.Caption
	}
	if msg.Document != nil {
		m.Document = &adapter.Document{
			FileID:   msg.Document.FileID,
			FileName: msg.Document.FileName,
			MimeType: msg.Document.MimeType,
		}
	}
	return m
}

func displayName(u *tgbotapi.User) string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		name = u.UserName
	}
	return name
}
