package flow

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"client-manager-bot/internal/domain/model"
	"client-manager-bot/internal/domain/ports/adapter"
)

// The restore flow is owner only: receive a JSON backup file, show a summary
// of what would change, and apply it only after an explicit confirmation.

func (e *Engine) startRestore(ctx context.Context, u *model.User, m adapter.Message) error {
	s := NewSession(KindRestore, StepBackupFile)
	e.prompt(ctx, s, m.Chat,
		"Send me the backup file (.json) you want to restore.\n"+
			"Existing clients with the same id are skipped; only new ones are added.")
	return e.store.Set(ctx, m.UserID, s)
}

func (e *Engine) restoreReceiveFile(ctx context.Context, u *model.User, s *Session, m adapter.Message) (Outcome, error) {
	if m.Document == nil {
		return e.reject(ctx, s, m.Chat, "That is not a file. Please attach the backup .json file, or /cancel.")
	}
	if !strings.HasSuffix(strings.ToLower(m.Document.FileName), ".json") &&
		m.Document.MimeType != "application/json" {
		return e.reject(ctx, s, m.Chat, "The backup must be a .json file. Try again or /cancel.")
	}

	raw, err := e.msgr.FetchDocument(ctx, m.Document.FileID)
	if err != nil {
		return OutcomeStay, fmt.Errorf("fetch backup document: %w", err)
	}
	var backup []model.BackupClient
	if err := json.Unmarshal(raw, &backup); err != nil {
		return e.reject(ctx, s, m.Chat, "I could not parse that file as a backup. Check it and try again, or /cancel.")
	}
	if len(backup) == 0 {
		return e.reject(ctx, s, m.Chat, "The backup file contains no clients. Send another file or /cancel.")
	}

	existing, err := e.clients.List(ctx, "", u.OwnerScope())
	if err != nil {
		return OutcomeStay, err
	}
	known := make(map[string]bool, len(existing))
	for _, c := range existing {
		known[c.ID] = true
	}
	fresh, skipped := 0, 0
	for _, b := range backup {
		if known[b.ID] {
			skipped++
		} else {
			fresh++
		}
	}

	s.Restore = backup
	s.Step = StepRestoreConfirm
	e.prompt(ctx, s, m.Chat, fmt.Sprintf(
		"Backup summary:\n\nClients in file: %d\nNew clients to add: %d\nAlready present (skipped): %d\n\n"+
			"Reply \"yes\" to restore or \"no\" to cancel.",
		len(backup), fresh, skipped))
	return OutcomeContinue, nil
}

func (e *Engine) restoreConfirm(ctx context.Context, u *model.User, s *Session, m adapter.Message) (Outcome, error) {
	switch strings.ToLower(strings.TrimSpace(m.Text)) {
	case "yes":
		added, err := e.clients.RestoreBackup(ctx, s.Restore, u.ID)
		if err != nil {
			return OutcomeStay, fmt.Errorf("restore backup: %w", err)
		}
		e.say(ctx, m.Chat, fmt.Sprintf("Restore complete. %d clients added.", added))
		return OutcomeDone, nil
	case "no":
		e.say(ctx, m.Chat, "Restore cancelled. Nothing was changed.")
		return OutcomeAbort, nil
	default:
		return e.reject(ctx, s, m.Chat, "Please answer \"yes\" or \"no\".")
	}
}
