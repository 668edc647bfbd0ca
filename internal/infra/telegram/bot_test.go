package telegram

import (
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func TestToMessage(t *testing.T) {
	t.Run("plain text", func(t *testing.T) {
		m := toMessage(&tgbotapi.Message{
			MessageID: 314,
			From:      &tgbotapi.User{ID: 42},
			Chat:      &tgbotapi.Chat{ID: -100123},
			Text:      "hello",
		})
		if m.UserID != 42 || m.Chat != "-100123" || m.Text != "hello" || m.MessageID != "314" {
			t.Errorf("unexpected message: %+v", m)
		}
		if m.Document != nil {
			t.Errorf("document should be nil")
		}
	})

	t.Run("document with caption", func(t *testing.T) {
		m := toMessage(&tgbotapi.Message{
			MessageID: 1,
			From:      &tgbotapi.User{ID: 42},
			Chat:      &tgbotapi.Chat{ID: 42},
			Caption:   "my backup",
			Document: &tgbotapi.Document{
				FileID:   "abc",
				FileName: "backup.json",
				MimeType: "application/json",
			},
		})
		if m.Text != "my backup" {
			t.Errorf("caption should become text, got %q", m.Text)
		}
		if m.Document == nil || m.Document.FileID != "abc" || m.Document.FileName != "backup.json" {
			t.Errorf("document not carried over: %+v", m.Document)
		}
	})
}

func TestDisplayName(t *testing.T) {
	cases := []struct {
		u    tgbotapi.User
		want string
	}{
		{tgbotapi.User{FirstName: "Carlos", LastName: "Gomez"}, "Carlos Gomez"},
		{tgbotapi.User{FirstName: "Carlos"}, "Carlos"},
		{tgbotapi.User{UserName: "cgomez"}, "cgomez"},
	}
	for _, c := range cases {
		if got := displayName(&c.u); got != c.want {
			t.Errorf("displayName(%+v) = %q, want %q", c.u, got, c.want)
		}
	}
}
