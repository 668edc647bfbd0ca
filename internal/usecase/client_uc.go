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
var _ ClientUseCase = (*clientUC)(nil)

// ClientUseCase exposes client and product operations used by the bot flows
// and the admin API. Every method takes an ownerScope: nil means unrestricted
// (owner role or admin API), otherwise results and writes are limited to
// clients owned by that user id.
type ClientUseCase interface {
	Find(ctx context.Context, query string, ownerScope *int64) (*model.Client, error)
	List(ctx context.Context, search string, ownerScope *int64) ([]*model.Client, error)
	Products(ctx context.Context, clientID string, ownerScope *int64) ([]*model.ClientProduct, error)
	ProductByID(ctx context.Context, id int64, ownerScope *int64) (*model.ClientProduct, error)
	CreateWithFirstProduct(ctx context.Context, c *model.Client, p *model.ClientProduct) error
	AddProduct(ctx context.Context, p *model.ClientProduct) error
	UpdateClientField(ctx context.Context, id string, field model.ClientField, value string, ownerScope *int64) error
	UpdateProductField(ctx context.Context, id int64, field model.ProductField, value string, ownerScope *int64) error
	DeleteClient(ctx context.Context, id string, ownerScope *int64) (bool, error)
	DeleteProduct(ctx context.Context, id int64, ownerScope *int64) (bool, error)
	RenewProduct(ctx context.Context, id int64, durationDays int, ownerScope *int64) (*model.ClientProduct, error)
	RestoreBackup(ctx context.Context, clients []model.BackupClient, ownerID int64) (int, error)
}

type clientUC struct {
	clients  repository.ClientRepository
	products repository.ProductRepository
	tm       repository.TransactionManager
	log      *zerolog.Logger
	now      func() time.Time
}

func NewClientUseCase(
	clients repository.ClientRepository,
	products repository.ProductRepository,
	tm repository.TransactionManager,
	logger *zerolog.Logger,
) *clientUC {
	return &clientUC{
		clients:  clients,
		products: products,
		tm:       tm,
		log:      logger,
		now:      time.Now,
	}
}

func (uc *clientUC) Find(ctx context.Context, query string, ownerScope *int64) (*model.Client, error) {
	defer logging.TraceDuration(uc.log, "ClientUC.Find")()
	return uc.clients.FindByQuery(ctx, nil, query, ownerScope)
}

func (uc *clientUC) List(ctx context.Context, search string, ownerScope *int64) ([]*model.Client, error) {
	defer logging.TraceDuration(uc.log, "ClientUC.List")()
	return uc.clients.List(ctx, nil, search, ownerScope)
}

func (uc *clientUC) Products(ctx context.Context, clientID string, ownerScope *int64) ([]*model.ClientProduct, error) {
	defer logging.TraceDuration(uc.log, "ClientUC.Products")()
	return uc.products.ByClient(ctx, nil, clientID, ownerScope)
}

func (uc *clientUC) ProductByID(ctx context.Context, id int64, ownerScope *int64) (*model.ClientProduct, error) {
	return uc.products.FindByID(ctx, nil, id, ownerScope)
}

// CreateWithFirstProduct inserts the client and its first product in one
// transaction; either both rows land or neither does.
func (uc *clientUC) CreateWithFirstProduct(ctx context.Context, c *model.Client, p *model.ClientProduct) error {
	defer logging.TraceDuration(uc.log, "ClientUC.CreateWithFirstProduct")()

	return uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := uc.clients.Insert(ctx, tx, c); err != nil {
			return fmt.Errorf("insert client %s: %w", c.ID, err)
		}
		p.ClientID = c.ID
		if err := uc.products.Insert(ctx, tx, p); err != nil {
			return fmt.Errorf("insert first product of %s: %w", c.ID, err)
		}
		return nil
	})
}

func (uc *clientUC) AddProduct(ctx context.Context, p *model.ClientProduct) error {
	defer logging.TraceDuration(uc.log, "ClientUC.AddProduct")()
	return uc.products.Insert(ctx, nil, p)
}

func (uc *clientUC) UpdateClientField(ctx context.Context, id string, field model.ClientField, value string, ownerScope *int64) error {
	defer logging.TraceDuration(uc.log, "ClientUC.UpdateClientField")()
	ok, err := uc.clients.UpdateField(ctx, nil, id, field, value, ownerScope)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("client %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (uc *clientUC) UpdateProductField(ctx context.Context, id int64, field model.ProductField, value string, ownerScope *int64) error {
	defer logging.TraceDuration(uc.log, "ClientUC.UpdateProductField")()
	ok, err := uc.products.UpdateField(ctx, nil, id, field, value, ownerScope)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("product %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

// DeleteClient removes the client and all its products transactionally.
// Returns false when no client matched the id within the scope.
func (uc *clientUC) DeleteClient(ctx context.Context, id string, ownerScope *int64) (bool, error) {
	defer logging.TraceDuration(uc.log, "ClientUC.DeleteClient")()

	var deleted bool
	err := uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		products, err := uc.products.ByClient(ctx, tx, id, ownerScope)
		if err != nil {
			return err
		}
		for _, p := range products {
			if _, err := uc.products.Delete(ctx, tx, p.ID, ownerScope); err != nil {
				return err
			}
		}
		deleted, err = uc.clients.Delete(ctx, tx, id, ownerScope)
		return err
	})
	return deleted, err
}

func (uc *clientUC) DeleteProduct(ctx context.Context, id int64, ownerScope *int64) (bool, error) {
	defer logging.TraceDuration(uc.log, "ClientUC.DeleteProduct")()
	return uc.products.Delete(ctx, nil, id, ownerScope)
}

// RenewProduct extends the product's expiry from its current expiry date (not
// from today), recomputes the notice date and flips the status to Renewed.
func (uc *clientUC) RenewProduct(ctx context.Context, id int64, durationDays int, ownerScope *int64) (*model.ClientProduct, error) {
	defer logging.TraceDuration(uc.log, "ClientUC.RenewProduct")()
	if durationDays <= 0 {
		return nil, fmt.Errorf("duration %d: %w", durationDays, domain.ErrInvalidArgument)
	}

	var renewed *model.ClientProduct
	err := uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		p, err := uc.products.FindByID(ctx, tx, id, ownerScope)
		if err != nil {
			return err
		}
		expiry, notice := model.RenewDates(p.ExpiryDate, durationDays)
		ok, err := uc.products.Renew(ctx, tx, id, expiry, notice, model.ProductStatusRenewed, ownerScope)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("product %d: %w", id, domain.ErrNotFound)
		}
		p.ExpiryDate = expiry
		p.NoticeDate = notice
		p.Status = model.ProductStatusRenewed
		renewed = p
		return nil
	})
	return renewed, err
}

const backupDateLayout = "2006-01-02"

// RestoreBackup inserts every backup client that does not already exist, with
// its products, in one transaction. Clients whose id is already present are
// skipped. A malformed entry aborts the whole restore; nothing is kept.
func (uc *clientUC) RestoreBackup(ctx context.Context, clients []model.BackupClient, ownerID int64) (int, error) {
	defer logging.TraceDuration(uc.log, "ClientUC.RestoreBackup")()

	added := 0
	err := uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		for _, b := range clients {
			if b.ID == "" || b.Name == "" {
				return fmt.Errorf("backup entry %q/%q: %w", b.ID, b.Name, domain.ErrInvalidArgument)
			}
			existing, err := uc.clients.FindByQuery(ctx, tx, b.ID, nil)
			if err != nil && !errors.Is(err, domain.ErrNotFound) {
				return err
			}
			if existing != nil {
				continue
			}
			c := &model.Client{
				ID:           b.ID,
				Name:         b.Name,
				WhatsApp:     b.WhatsApp,
				Email:        b.Email,
				GeneralNotes: b.GeneralNotes,
				OwnerUserID:  ownerID,
				CreatedAt:    uc.now(),
			}
			if err := uc.clients.Insert(ctx, tx, c); err != nil {
				return fmt.Errorf("restore client %s: %w", b.ID, err)
			}
			for _, bp := range b.Products {
				p, err := backupProduct(c.ID, ownerID, bp, uc.now())
				if err != nil {
					return fmt.Errorf("restore client %s: %w", b.ID, err)
				}
				if err := uc.products.Insert(ctx, tx, p); err != nil {
					return fmt.Errorf("restore product %q of %s: %w", bp.ProductName, b.ID, err)
				}
			}
			added++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return added, nil
}

// backupProduct converts a backup entry to a domain product. Passwords in the
// backup are already the encrypted form and are carried verbatim.
func backupProduct(clientID string, ownerID int64, b model.BackupProduct, now time.Time) (*model.ClientProduct, error) {
	if b.ProductName == "" {
		return nil, fmt.Errorf("product without name: %w", domain.ErrInvalidArgument)
	}
	expiry, err := time.Parse(backupDateLayout, b.ExpiryDate)
	if err != nil {
		return nil, fmt.Errorf("expiry date %q: %w", b.ExpiryDate, domain.ErrInvalidArgument)
	}
	contract := now
	if b.ContractDate != "" {
		if contract, err = time.Parse(backupDateLayout, b.ContractDate); err != nil {
			return nil, fmt.Errorf("contract date %q: %w", b.ContractDate, domain.ErrInvalidArgument)
		}
	}
	notice := expiry.AddDate(0, 0, -model.NoticeLeadDays)
	if b.NoticeDate != "" {
		if notice, err = time.Parse(backupDateLayout, b.NoticeDate); err != nil {
			return nil, fmt.Errorf("notice date %q: %w", b.NoticeDate, domain.ErrInvalidArgument)
		}
	}
	status := model.ProductStatus(b.Status)
	switch status {
	case model.ProductStatusActive, model.ProductStatusNotice, model.ProductStatusRenewed, model.ProductStatusExpired:
	case "":
		status = model.ProductStatusActive
	default:
		return nil, fmt.Errorf("status %q: %w", b.Status, domain.ErrInvalidArgument)
	}
	return &model.ClientProduct{
		ClientID:        clientID,
		ProductName:     b.ProductName,
		ContractDate:    contract,
		ExpiryDate:      expiry,
		NoticeDate:      notice,
		Status:          status,
		ProductNotes:    b.ProductNotes,
		ServiceUsername: b.ServiceUsername,
		ServicePassword: b.ServicePassword,
		AddedByUserID:   ownerID,
	}, nil
}
