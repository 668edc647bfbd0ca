package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"client-manager-bot/internal/domain"
	"client-manager-bot/internal/domain/model"
	"client-manager-bot/internal/domain/ports/repository"
	"client-manager-bot/internal/infra/logging"
)

// Compile-time check
var _ UserUseCase = (*userUC)(nil)

// UserUseCase exposes user registration, role management and the linking of
// the same person across Telegram and WhatsApp.
type UserUseCase interface {
	RegisterOrFetch(ctx context.Context, id int64, name string) (*model.User, error)
	Get(ctx context.Context, id int64) (*model.User, error)
	GetByWhatsAppID(ctx context.Context, waID string) (*model.User, error)
	SetName(ctx context.Context, id int64, name string) error
	SetRole(ctx context.Context, actor *model.User, targetID int64, role model.Role) error
	LinkClient(ctx context.Context, id int64, clientID string) error
	LinkWhatsApp(ctx context.Context, id int64, waID string) error
	Count(ctx context.Context) (int, error)
}

type userUC struct {
	users   repository.UserRepository
	clients repository.ClientRepository
	tm      repository.TransactionManager
	ownerID int64
	log     *zerolog.Logger
}

// NewUserUseCase wires the user operations. ownerID is the configured bootstrap
// owner: that telegram id always registers with the owner role.
func NewUserUseCase(
	users repository.UserRepository,
	clients repository.ClientRepository,
	tm repository.TransactionManager,
	ownerID int64,
	logger *zerolog.Logger,
) *userUC {
	return &userUC{users: users, clients: clients, tm: tm, ownerID: ownerID, log: logger}
}

// RegisterOrFetch returns the user, creating the record on first contact. The
// find and the save run in one serializable transaction so two concurrent
// first messages cannot create duplicate rows.
func (u *userUC) RegisterOrFetch(ctx context.Context, id int64, name string) (*model.User, error) {
	defer logging.TraceDuration(u.log, "UserUC.RegisterOrFetch")()

	var user *model.User
	txOpts := pgx.TxOptions{IsoLevel: pgx.Serializable}
	err := u.tm.WithTx(ctx, txOpts, func(ctx context.Context, tx repository.Tx) error {
		usr, err := u.users.FindByID(ctx, tx, id)
		if err != nil && !isNotFound(err) {
			return err
		}
		now := time.Now()
		if usr != nil {
			if name != "" && usr.Name != name {
				usr.Name = name
				usr.UpdatedAt = now
				if err := u.users.Upsert(ctx, tx, usr); err != nil {
					return err
				}
			}
			user = usr
			return nil
		}

		role := model.RoleUser
		if id == u.ownerID {
			role = model.RoleOwner
		}
		nu := &model.User{
			ID:           id,
			Name:         name,
			Role:         role,
			AuthorizedAt: now,
			UpdatedAt:    now,
		}
		if err := u.users.Upsert(ctx, tx, nu); err != nil {
			return err
		}
		user = nu
		return nil
	})
	return user, err
}

func (u *userUC) Get(ctx context.Context, id int64) (*model.User, error) {
	return u.users.FindByID(ctx, nil, id)
}

func (u *userUC) GetByWhatsAppID(ctx context.Context, waID string) (*model.User, error) {
	return u.users.FindByWhatsAppID(ctx, nil, waID)
}

func (u *userUC) SetName(ctx context.Context, id int64, name string) error {
	defer logging.TraceDuration(u.log, "UserUC.SetName")()
	usr, err := u.users.FindByID(ctx, nil, id)
	if err != nil {
		return err
	}
	usr.Name = name
	usr.UpdatedAt = time.Now()
	return u.users.Upsert(ctx, nil, usr)
}

// SetRole changes a user's role. Only owners may do it, and an owner cannot
// demote themselves (there must always be at least one owner).
func (u *userUC) SetRole(ctx context.Context, actor *model.User, targetID int64, role model.Role) error {
	defer logging.TraceDuration(u.log, "UserUC.SetRole")()
	if !actor.IsOwner() {
		return domain.ErrPermissionDenied
	}
	if actor.ID == targetID && role != model.RoleOwner {
		return fmt.Errorf("cannot demote the acting owner: %w", domain.ErrPermissionDenied)
	}
	usr, err := u.users.FindByID(ctx, nil, targetID)
	if err != nil {
		return err
	}
	usr.Role = role
	usr.UpdatedAt = time.Now()
	return u.users.Upsert(ctx, nil, usr)
}

// LinkClient attaches an end user to a client record so they can see their own
// products. The client must exist.
func (u *userUC) LinkClient(ctx context.Context, id int64, clientID string) error {
	defer logging.TraceDuration(u.log, "UserUC.LinkClient")()
	c, err := u.clients.FindByQuery(ctx, nil, clientID, nil)
	if err != nil {
		return err
	}
	usr, err := u.users.FindByID(ctx, nil, id)
	if err != nil {
		return err
	}
	usr.ClientID = c.ID
	usr.UpdatedAt = time.Now()
	return u.users.Upsert(ctx, nil, usr)
}

func (u *userUC) LinkWhatsApp(ctx context.Context, id int64, waID string) error {
	defer logging.TraceDuration(u.log, "UserUC.LinkWhatsApp")()
	return u.users.LinkWhatsAppID(ctx, nil, id, waID)
}

func (u *userUC) Count(ctx context.Context) (int, error) {
	return u.users.Count(ctx, nil)
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}
