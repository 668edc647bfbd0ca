package usecase

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"client-manager-bot/internal/domain/model"
	"client-manager-bot/internal/domain/ports/adapter"
	"client-manager-bot/internal/domain/ports/repository"
	"client-manager-bot/internal/infra/logging"
	"client-manager-bot/internal/infra/metrics"
)

// Compile-time check
var _ NotificationUseCase = (*notificationUC)(nil)

// NotificationUseCase delivers expiry reminders to the reseller who owns each
// client. Run once a day by the scheduler.
type NotificationUseCase interface {
	// SendDueNotices notifies owners about products whose notice date has
	// arrived and which were not already noticed on `day`. Returns how many
	// notices went out.
	SendDueNotices(ctx context.Context, day time.Time) (int, error)
}

type notificationUC struct {
	products repository.ProductRepository
	msgr     adapter.Messenger
	log      *zerolog.Logger
}

func NewNotificationUseCase(products repository.ProductRepository, msgr adapter.Messenger, logger *zerolog.Logger) *notificationUC {
	return &notificationUC{products: products, msgr: msgr, log: logger}
}

func (n *notificationUC) SendDueNotices(ctx context.Context, day time.Time) (int, error) {
	defer logging.TraceDuration(n.log, "NotificationUC.SendDueNotices")()

	due, err := n.products.DueForNotice(ctx, nil, day)
	if err != nil {
		return 0, fmt.Errorf("find due products: %w", err)
	}

	sent := 0
	for _, e := range due {
		text := fmt.Sprintf(
			"Expiry reminder\n\nClient: %s (%s)\nProduct: %s\nExpires: %s\nWhatsApp: %s",
			e.ClientName, e.ClientID, e.ProductName,
			e.ExpiryDate.Format("02-01-2006"), orDash(e.WhatsApp))
		chat := strconv.FormatInt(e.OwnerUserID, 10)
		if _, err := n.msgr.Send(ctx, chat, text); err != nil {
			// A failed delivery is retried tomorrow: the product is not marked.
			n.log.Warn().Err(err).Int64("owner_id", e.OwnerUserID).Int64("product_id", e.ProductID).
				Msg("expiry notice delivery failed")
			continue
		}
		if err := n.products.MarkNoticed(ctx, nil, e.ProductID, day); err != nil {
			n.log.Error().Err(err).Int64("product_id", e.ProductID).Msg("mark noticed failed")
			continue
		}
		if e.Status == model.ProductStatusActive || e.Status == model.ProductStatusRenewed {
			if _, err := n.products.UpdateField(ctx, nil, e.ProductID, model.ProductFieldStatus, string(model.ProductStatusNotice), nil); err != nil {
				n.log.Error().Err(err).Int64("product_id", e.ProductID).Msg("status flip failed")
			}
		}
		metrics.NoticeSent()
		sent++
	}
	n.log.Info().Int("due", len(due)).Int("sent", sent).Msg("expiry notice run finished")
	return sent, nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
