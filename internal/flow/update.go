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

// The update flow edits one field of either the client's general info or one
// of its products. Field names come from a closed allow-list per entity kind;
// anything else is rejected before a write is issued.

func (e *Engine) startUpdateClient(ctx context.Context, u *model.User, m adapter.Message) error {
	s := NewSession(KindUpdateClient, StepClientSelection)
	_, err := e.promptClientSelection(ctx, u, s, m, "Ok, let's update something. Please select a client:")
	return err
}

func (e *Engine) updateSelectClient(ctx context.Context, u *model.User, s *Session, m adapter.Message) (Outcome, error) {
	client, err := e.resolveClientSelection(ctx, u, s, m.Text)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return e.reject(ctx, s, m.Chat, "Client not found. Try again or /cancel.")
		}
		return OutcomeStay, err
	}
	s.Client = &ClientRef{ID: client.ID, Name: client.Name}
	s.Step = StepUpdateTarget
	e.resetPrompts(ctx, s, m.Chat)
	e.prompt(ctx, s, m.Chat, fmt.Sprintf(
		"Selected client: %s.\n\nWhat do you want to update?\n\n1. The client's general info\n2. A specific product", client.Name))
	return OutcomeContinue, nil
}

func (e *Engine) updateSelectTarget(ctx context.Context, u *model.User, s *Session, m adapter.Message) (Outcome, error) {
	choice := strings.TrimSpace(m.Text)
	if choice != "1" && choice != "2" {
		return e.reject(ctx, s, m.Chat, "Invalid option. Please reply with '1' or '2'.")
	}
	e.resetPrompts(ctx, s, m.Chat)
	if choice == "1" {
		s.UpdateTarget = targetClientGeneral
		s.Step = StepFieldSelection
		e.prompt(ctx, s, m.Chat,
			"Ok, we will update the general info.\n\nWhich field do you want to change?\nSend one of: name, whatsapp, email, general_notes")
		return OutcomeContinue, nil
	}

	s.UpdateTarget = targetProductSpecific
	products, err := e.clients.Products(ctx, s.Client.ID, u.OwnerScope())
	if err != nil {
		return OutcomeStay, fmt.Errorf("list products of %s: %w", s.Client.ID, err)
	}
	if len(products) == 0 {
		e.say(ctx, m.Chat, "This client has no products to update.")
		return OutcomeAbort, nil
	}
	s.Step = StepProductSelection
	e.promptProductSelection(ctx, s, m, products, "Ok, select the product to update:")
	return OutcomeContinue, nil
}

func (e *Engine) updateSelectProduct(ctx context.Context, u *model.User, s *Session, m adapter.Message) (Outcome, error) {
	row, err := strconv.Atoi(strings.TrimSpace(m.Text))
	ref, ok := s.ProductPick[row]
	if err != nil || !ok {
		return e.reject(ctx, s, m.Chat, "Invalid product number. Try again or /cancel.")
	}
	s.Product = &ref
	s.Step = StepFieldSelection
	e.resetPrompts(ctx, s, m.Chat)
	e.prompt(ctx, s, m.Chat,
		"Product selected. Which field do you want to change?\n\nSend one of:\nproduct_name, expiry_date, status, product_notes, service_username, service_password")
	return OutcomeContinue, nil
}

func (e *Engine) updateSelectField(ctx context.Context, u *model.User, s *Session, m adapter.Message) (Outcome, error) {
	field := strings.ToLower(strings.TrimSpace(m.Text))
	valid := false
	switch s.UpdateTarget {
	case targetClientGeneral:
		_, valid = model.ParseClientField(field)
	case targetProductSpecific:
		_, valid = model.ParseProductField(field)
	}
	if !valid {
		return e.reject(ctx, s, m.Chat, "Invalid field. Please pick one from the list or /cancel.")
	}
	s.Field = field
	s.Step = StepNewValue
	e.resetPrompts(ctx, s, m.Chat)
	e.prompt(ctx, s, m.Chat, fmt.Sprintf("Ok, enter the new value for %s:", field))
	return OutcomeContinue, nil
}

func (e *Engine) updateApplyValue(ctx context.Context, u *model.User, s *Session, m adapter.Message) (Outcome, error) {
	value := strings.TrimSpace(m.Text)

	if s.UpdateTarget == targetClientGeneral {
		field, ok := model.ParseClientField(s.Field)
		if !ok {
			return OutcomeStay, fmt.Errorf("%w: %q", domain.ErrFieldNotUpdatable, s.Field)
		}
		if field == model.ClientFieldWhatsApp {
			// "no" clears the number, otherwise it must normalize.
			if IsSkip(value) {
				value = ""
			} else {
				normalized, ok := NormalizeWhatsApp(value)
				if !ok {
					e.say(ctx, m.Chat, "Invalid WhatsApp number. Operation cancelled.")
					return OutcomeAbort, nil
				}
				value = normalized
			}
		}
		if err := e.clients.UpdateClientField(ctx, s.Client.ID, field, value, u.OwnerScope()); err != nil {
			return OutcomeStay, fmt.Errorf("update client field %s: %w", field, err)
		}
		e.say(ctx, m.Chat, "Field updated successfully.")
		return OutcomeDone, nil
	}

	field, ok := model.ParseProductField(s.Field)
	if !ok {
		return OutcomeStay, fmt.Errorf("%w: %q", domain.ErrFieldNotUpdatable, s.Field)
	}
	if field == model.ProductFieldServicePassword {
		encrypted, err := e.enc.Encrypt(value)
		if err != nil {
			return OutcomeStay, fmt.Errorf("encrypt password: %w", err)
		}
		value = encrypted
	}
	if err := e.clients.UpdateProductField(ctx, s.Product.ID, field, value, u.OwnerScope()); err != nil {
		return OutcomeStay, fmt.Errorf("update product field %s: %w", field, err)
	}
	e.say(ctx, m.Chat, "Field updated successfully.")
	return OutcomeDone, nil
}
