package flow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"client-manager-bot/internal/domain"
	"client-manager-bot/internal/domain/model"
	"client-manager-bot/internal/domain/ports/adapter"
)

// The view flow is a single question: which client? It then prints the
// client's general details followed by one message per product.

func (e *Engine) startViewClient(ctx context.Context, u *model.User, m adapter.Message) error {
	s := NewSession(KindViewClient, StepViewQuery)
	e.prompt(ctx, s, m.Chat, "Ok, tell me the id or name of the client you want to see:")
	return e.store.Set(ctx, m.UserID, s)
}

func (e *Engine) viewClientQuery(ctx context.Context, u *model.User, s *Session, m adapter.Message) (Outcome, error) {
	query := strings.TrimSpace(m.Text)
	client, err := e.clients.Find(ctx, query, u.OwnerScope())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			e.say(ctx, m.Chat, fmt.Sprintf("No client found for %q.", query))
			return OutcomeAbort, nil
		}
		return OutcomeStay, err
	}
	e.say(ctx, m.Chat, FormatClientDetails(client))

	products, err := e.clients.Products(ctx, client.ID, u.OwnerScope())
	if err != nil {
		return OutcomeStay, fmt.Errorf("list products of %s: %w", client.ID, err)
	}
	if len(products) == 0 {
		e.say(ctx, m.Chat, "This client has no registered products.")
		return OutcomeDone, nil
	}
	for _, p := range products {
		password := ""
		if p.ServicePassword != "" {
			if password, err = e.enc.Decrypt(p.ServicePassword); err != nil {
				password = "(cannot decrypt)"
			}
		}
		e.say(ctx, m.Chat, FormatProductDetails(p, password))
	}
	return OutcomeDone, nil
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

// FormatClientDetails renders a client's general info block. Shared with the
// non-interactive /client command.
func FormatClientDetails(c *model.Client) string {
	return fmt.Sprintf(
		"Client details:\n\nID: %s\nName: %s\nWhatsApp: %s\nEmail: %s\nNotes: %s",
		c.ID, c.Name, orNA(c.WhatsApp), orNA(c.Email), orNA(c.GeneralNotes))
}

// FormatProductDetails renders one product block; password is the decrypted
// credential or empty.
func FormatProductDetails(p *model.ClientProduct, password string) string {
	return fmt.Sprintf(
		"Product details:\n\nProduct ID: %d\nName: %s\nStatus: %s\nExpires: %s\nUsername: %s\nPassword: %s\nNotes: %s",
		p.ID, p.ProductName, p.Status, p.ExpiryDate.Format("02-01-2006"),
		orNA(p.ServiceUsername), orNA(password), orNA(p.ProductNotes))
}
