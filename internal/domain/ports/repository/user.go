package repository

import (
	"context"

	"client-manager-bot/internal/domain/model"
)

// UserRepository is the port for bot operators and linked end users.
type UserRepository interface {
	Upsert(ctx context.Context, qx any, u *model.User) error
	FindByID(ctx context.Context, qx any, id int64) (*model.User, error)
	FindByWhatsAppID(ctx context.Context, qx any, waID string) (*model.User, error)
	LinkWhatsAppID(ctx context.Context, qx any, id int64, waID string) error
	Count(ctx context.Context, qx any) (int, error)
}
