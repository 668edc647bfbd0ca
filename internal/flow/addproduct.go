package flow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"client-manager-bot/internal/domain"
	"client-manager-bot/internal/domain/model"
	"client-manager-bot/internal/domain/ports/adapter"
)

// The add-product flow attaches a product to an existing client: one
// selection step, then a comma-separated shortcut line with all details.

func (e *Engine) startAddProduct(ctx context.Context, u *model.User, m adapter.Message) error {
	s := NewSession(KindAddProduct, StepClientSelection)
	_, err := e.promptClientSelection(ctx, u, s, m, "Ok, let's add a product to an existing client.")
	return err
}

func (e *Engine) addProductSelectClient(ctx context.Context, u *model.User, s *Session, m adapter.Message) (Outcome, error) {
	client, err := e.resolveClientSelection(ctx, u, s, m.Text)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return e.reject(ctx, s, m.Chat, "Client not found. Try again or /cancel.")
		}
		return OutcomeStay, err
	}
	s.Client = &ClientRef{ID: client.ID, Name: client.Name}
	s.Step = StepProductDetails
	e.resetPrompts(ctx, s, m.Chat)
	e.prompt(ctx, s, m.Chat, fmt.Sprintf(
		"Selected client: %s.\n\n"+
			"Now send the new product's details in this format:\n\n"+
			"Name, Duration (days), Username, Password, Notes (optional)\n\n"+
			"Example:\nNetflix, 30, mail@example.com, pass123, Main screen",
		client.Name))
	return OutcomeContinue, nil
}

func (e *Engine) addProductDetailsAndCommit(ctx context.Context, u *model.User, s *Session, m adapter.Message) (Outcome, error) {
	details, ok := ParseProductDetails(m.Text)
	if !ok {
		return e.reject(ctx, s, m.Chat,
			"Wrong format. Include at least Name, Duration, Username and Password separated by commas. Try again or /cancel.")
	}

	password := details.Password
	if password != "" {
		encrypted, err := e.enc.Encrypt(password)
		if err != nil {
			return OutcomeStay, fmt.Errorf("encrypt password: %w", err)
		}
		password = encrypted
	}
	now := time.Now()
	contract, expiry, notice := model.ProductDates(now, details.DurationDays)
	product := &model.ClientProduct{
		ClientID:        s.Client.ID,
		ProductName:     details.Name,
		ContractDate:    contract,
		ExpiryDate:      expiry,
		NoticeDate:      notice,
		Status:          model.ProductStatusActive,
		ProductNotes:    details.Notes,
		ServiceUsername: details.Username,
		ServicePassword: password,
		AddedByUserID:   u.ID,
	}
	if err := e.clients.AddProduct(ctx, product); err != nil {
		return OutcomeStay, fmt.Errorf("add product: %w", err)
	}
	e.say(ctx, m.Chat, fmt.Sprintf("Product %q added to client %q.", details.Name, s.Client.Name))
	return OutcomeDone, nil
}
