package flow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"client-manager-bot/internal/domain/model"
	"client-manager-bot/internal/domain/ports/adapter"
)

// The add-client flow walks through the client's general info, then its first
// product, and commits both rows in a single transaction at the end.

func (e *Engine) startAddClient(ctx context.Context, u *model.User, m adapter.Message) error {
	s := NewSession(KindAddClient, StepClientName)
	e.prompt(ctx, s, m.Chat, "Ok, let's add a new client.\n\nStep 1: what is the client's name?")
	return e.store.Set(ctx, m.UserID, s)
}

func (e *Engine) addClientName(ctx context.Context, u *model.User, s *Session, m adapter.Message) (Outcome, error) {
	s.Data[dataName] = strings.TrimSpace(m.Text)
	s.Step = StepClientWhatsApp
	e.prompt(ctx, s, m.Chat, "Step 2: the client's WhatsApp number (or \"no\"):")
	return OutcomeContinue, nil
}

func (e *Engine) addClientWhatsApp(ctx context.Context, u *model.User, s *Session, m adapter.Message) (Outcome, error) {
	text := strings.TrimSpace(m.Text)
	if IsSkip(text) {
		s.Data[dataWhatsApp] = ""
	} else {
		normalized, ok := NormalizeWhatsApp(text)
		if !ok {
			return e.reject(ctx, s, m.Chat, "That WhatsApp number is not valid. Try again.")
		}
		s.Data[dataWhatsApp] = normalized
	}
	s.Step = StepClientEmail
	e.prompt(ctx, s, m.Chat, "Step 3: the client's email (or \"no\"):")
	return OutcomeContinue, nil
}

func (e *Engine) addClientEmail(ctx context.Context, u *model.User, s *Session, m adapter.Message) (Outcome, error) {
	text := strings.TrimSpace(m.Text)
	if !IsSkip(text) && !ValidEmail(text) {
		return e.reject(ctx, s, m.Chat, "That email does not look right. Try again.")
	}
	s.Data[dataEmail] = skipToEmpty(text)
	s.Step = StepClientNotes
	e.prompt(ctx, s, m.Chat, "Step 4: any general notes about the client? (or \"no\"):")
	return OutcomeContinue, nil
}

func (e *Engine) addClientNotes(ctx context.Context, u *model.User, s *Session, m adapter.Message) (Outcome, error) {
	s.Data[dataGeneralNotes] = skipToEmpty(m.Text)
	s.Data[dataClientID] = model.NewClientID()
	s.Step = StepProductName
	e.prompt(ctx, s, m.Chat, fmt.Sprintf(
		"Client %q is ready. Now let's record their first product.\n\nStep 5: which product did you sell?", s.Data[dataName]))
	return OutcomeContinue, nil
}

func (e *Engine) addClientProductName(ctx context.Context, u *model.User, s *Session, m adapter.Message) (Outcome, error) {
	s.Data[dataProductName] = strings.TrimSpace(m.Text)
	s.Step = StepProductDuration
	e.prompt(ctx, s, m.Chat, "Step 6: how many days does the service last? (e.g. 30):")
	return OutcomeContinue, nil
}

func (e *Engine) addClientProductDuration(ctx context.Context, u *model.User, s *Session, m adapter.Message) (Outcome, error) {
	days, ok := ParseDuration(m.Text)
	if !ok {
		return e.reject(ctx, s, m.Chat, "Invalid duration. Enter a positive number of days.")
	}
	s.Data[dataProductDuration] = fmt.Sprintf("%d", days)
	s.Step = StepProductNotes
	e.prompt(ctx, s, m.Chat, "Step 7: any notes for this product? (or \"no\"):")
	return OutcomeContinue, nil
}

func (e *Engine) addClientProductNotes(ctx context.Context, u *model.User, s *Session, m adapter.Message) (Outcome, error) {
	s.Data[dataProductNotes] = skipToEmpty(m.Text)
	s.Step = StepProductUsername
	e.prompt(ctx, s, m.Chat, "Step 8: the username/email for the service (or \"no\"):")
	return OutcomeContinue, nil
}

func (e *Engine) addClientProductUsername(ctx context.Context, u *model.User, s *Session, m adapter.Message) (Outcome, error) {
	s.Data[dataServiceUsername] = skipToEmpty(m.Text)
	s.Step = StepProductPassword
	e.prompt(ctx, s, m.Chat, "Step 9: finally, the password for the service (or \"no\"):")
	return OutcomeContinue, nil
}

// Terminal step: synthesize derived fields and commit client + first product
// as one atomic write.
func (e *Engine) addClientProductPasswordAndCommit(ctx context.Context, u *model.User, s *Session, m adapter.Message) (Outcome, error) {
	password := skipToEmpty(m.Text)
	if password != "" {
		encrypted, err := e.enc.Encrypt(password)
		if err != nil {
			return OutcomeStay, fmt.Errorf("encrypt password: %w", err)
		}
		password = encrypted
	}

	days, ok := ParseDuration(s.Data[dataProductDuration])
	if !ok {
		return OutcomeStay, fmt.Errorf("session carries invalid duration %q", s.Data[dataProductDuration])
	}
	now := time.Now()
	contract, expiry, notice := model.ProductDates(now, days)

	client := &model.Client{
		ID:           s.Data[dataClientID],
		Name:         s.Data[dataName],
		WhatsApp:     s.Data[dataWhatsApp],
		Email:        s.Data[dataEmail],
		GeneralNotes: s.Data[dataGeneralNotes],
		OwnerUserID:  u.ID,
		CreatedAt:    now,
	}
	product := &model.ClientProduct{
		ClientID:        client.ID,
		ProductName:     s.Data[dataProductName],
		ContractDate:    contract,
		ExpiryDate:      expiry,
		NoticeDate:      notice,
		Status:          model.ProductStatusActive,
		ProductNotes:    s.Data[dataProductNotes],
		ServiceUsername: s.Data[dataServiceUsername],
		ServicePassword: password,
		AddedByUserID:   u.ID,
	}
	if err := e.clients.CreateWithFirstProduct(ctx, client, product); err != nil {
		return OutcomeStay, fmt.Errorf("create client with first product: %w", err)
	}
	e.say(ctx, m.Chat, "Client and first product added successfully.")
	return OutcomeDone, nil
}
