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

// Deletion flows. Their not-found policy is stricter than the other
// selection flows: an invalid pick aborts instead of re-prompting, so a
// mistyped number can never fall through to the wrong record.

func (e *Engine) startDeleteClient(ctx context.Context, u *model.User, m adapter.Message) error {
	s := NewSession(KindDeleteClient, StepClientSelection)
	_, err := e.promptClientSelection(ctx, u, s, m, "Select the client you want to delete. This removes all of their products too.")
	return err
}

// Single step: the reply must be a listed row number; anything else aborts.
func (e *Engine) deleteClientSelectAndCommit(ctx context.Context, u *model.User, s *Session, m adapter.Message) (Outcome, error) {
	row, err := strconv.Atoi(strings.TrimSpace(m.Text))
	ref, ok := s.ClientPick[row]
	if err != nil || !ok {
		e.say(ctx, m.Chat, "Invalid selection. Operation cancelled.")
		return OutcomeAbort, nil
	}
	deleted, err := e.clients.DeleteClient(ctx, ref.ID, u.OwnerScope())
	if err != nil {
		return OutcomeStay, fmt.Errorf("delete client %s: %w", ref.ID, err)
	}
	if deleted {
		e.say(ctx, m.Chat, fmt.Sprintf("Client %q deleted successfully.", ref.Name))
	} else {
		e.say(ctx, m.Chat, "Client not found, or you are not allowed to delete it.")
	}
	return OutcomeDone, nil
}

func (e *Engine) startDeleteProduct(ctx context.Context, u *model.User, m adapter.Message) error {
	s := NewSession(KindDeleteProduct, StepClientSelection)
	_, err := e.promptClientSelection(ctx, u, s, m, "Ok, let's delete a product. First, select the client.")
	return err
}

func (e *Engine) deleteProductSelectClient(ctx context.Context, u *model.User, s *Session, m adapter.Message) (Outcome, error) {
	client, err := e.resolveClientSelection(ctx, u, s, m.Text)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			e.say(ctx, m.Chat, "Client not found. Operation cancelled.")
			return OutcomeAbort, nil
		}
		return OutcomeStay, err
	}
	products, err := e.clients.Products(ctx, client.ID, u.OwnerScope())
	if err != nil {
		return OutcomeStay, fmt.Errorf("list products of %s: %w", client.ID, err)
	}
	if len(products) == 0 {
		e.say(ctx, m.Chat, "This client has no products to delete.")
		return OutcomeAbort, nil
	}
	s.Client = &ClientRef{ID: client.ID, Name: client.Name}
	s.Step = StepProductSelection
	e.resetPrompts(ctx, s, m.Chat)
	e.promptProductSelection(ctx, s, m, products, fmt.Sprintf("Client: %s.\n\nStep 2: select the product to delete", client.Name))
	return OutcomeContinue, nil
}

func (e *Engine) deleteProductSelectAndCommit(ctx context.Context, u *model.User, s *Session, m adapter.Message) (Outcome, error) {
	row, err := strconv.Atoi(strings.TrimSpace(m.Text))
	ref, ok := s.ProductPick[row]
	if err != nil || !ok {
		e.say(ctx, m.Chat, "Invalid number. Operation cancelled.")
		return OutcomeAbort, nil
	}
	deleted, err := e.clients.DeleteProduct(ctx, ref.ID, u.OwnerScope())
	if err != nil {
		return OutcomeStay, fmt.Errorf("delete product %d: %w", ref.ID, err)
	}
	if deleted {
		e.say(ctx, m.Chat, fmt.Sprintf("Product %q deleted successfully.", ref.Name))
	} else {
		e.say(ctx, m.Chat, "The product could not be deleted.")
	}
	return OutcomeDone, nil
}
