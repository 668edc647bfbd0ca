package flow

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"client-manager-bot/internal/domain"
	"client-manager-bot/internal/domain/model"
	"client-manager-bot/internal/domain/ports/adapter"
)

// The renew flow extends a product's expiry by N days from its current
// expiry date, flipping the status to Renewed.

func (e *Engine) startRenewProduct(ctx context.Context, u *model.User, m adapter.Message) error {
	s := NewSession(KindRenewProduct, StepClientSelection)
	_, err := e.promptClientSelection(ctx, u, s, m, "Ok, let's renew a product. First, select the client.")
	return err
}

func (e *Engine) renewSelectClient(ctx context.Context, u *model.User, s *Session, m adapter.Message) (Outcome, error) {
	client, err := e.resolveClientSelection(ctx, u, s, m.Text)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return e.reject(ctx, s, m.Chat, "Client not found. Try again or /cancel.")
		}
		return OutcomeStay, err
	}
	products, err := e.clients.Products(ctx, client.ID, u.OwnerScope())
	if err != nil {
		return OutcomeStay, fmt.Errorf("list products of %s: %w", client.ID, err)
	}
	if len(products) == 0 {
		e.say(ctx, m.Chat, "This client has no products to renew.")
		return OutcomeAbort, nil
	}
	s.Client = &ClientRef{ID: client.ID, Name: client.Name}
	s.Step = StepProductSelection
	e.resetPrompts(ctx, s, m.Chat)
	e.promptProductSelection(ctx, s, m, products, fmt.Sprintf("Client: %s.\n\nStep 2: select the product to renew", client.Name))
	return OutcomeContinue, nil
}

func (e *Engine) renewSelectProduct(ctx context.Context, u *model.User, s *Session, m adapter.Message) (Outcome, error) {
	row, err := strconv.Atoi(strings.TrimSpace(m.Text))
	ref, ok := s.ProductPick[row]
	if err != nil || !ok {
		return e.reject(ctx, s, m.Chat, "Invalid product number. Try again or /cancel.")
	}
	s.Product = &ref
	s.Step = StepRenewDuration
	e.resetPrompts(ctx, s, m.Chat)
	e.prompt(ctx, s, m.Chat, fmt.Sprintf(
		"Selected product: %s.\n\nCurrent expiry: %s\n\nStep 3: by how many days do you want to extend the service? (e.g. 30)",
		ref.Name, ref.Expiry.Format("02-01-2006")))
	return OutcomeContinue, nil
}

func (e *Engine) renewDurationAndCommit(ctx context.Context, u *model.User, s *Session, m adapter.Message) (Outcome, error) {
	days, ok := ParseDuration(m.Text)
	if !ok {
		return e.reject(ctx, s, m.Chat, "Invalid duration. Enter a positive number of days.")
	}
	renewed, err := e.clients.RenewProduct(ctx, s.Product.ID, days, u.OwnerScope())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			e.say(ctx, m.Chat, "The product could not be renewed.")
			return OutcomeAbort, nil
		}
		return OutcomeStay, fmt.Errorf("renew product %d: %w", s.Product.ID, err)
	}
	e.say(ctx, m.Chat, fmt.Sprintf(
		"Product renewed.\nClient: %s\nNew expiry: %s", s.Client.Name, renewed.ExpiryDate.Format("02-01-2006")))
	return OutcomeDone, nil
}
