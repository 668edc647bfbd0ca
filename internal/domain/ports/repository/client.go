package repository

import (
	"context"
	"time"

	"client-manager-bot/internal/domain/model"
)

// ownerScope semantics, everywhere below: nil means unrestricted (owner role),
// otherwise results are limited to clients owned by that user id.

// ClientRepository is the port for the clients table.
type ClientRepository interface {
	Insert(ctx context.Context, qx any, c *model.Client) error
	// FindByQuery resolves a client by exact id or case-insensitive name match.
	FindByQuery(ctx context.Context, qx any, query string, ownerScope *int64) (*model.Client, error)
	List(ctx context.Context, qx any, search string, ownerScope *int64) ([]*model.Client, error)
	UpdateField(ctx context.Context, qx any, id string, field model.ClientField, value string, ownerScope *int64) (bool, error)
	Delete(ctx context.Context, qx any, id string, ownerScope *int64) (bool, error)
	Count(ctx context.Context, qx any, ownerScope *int64) (int, error)
}

// ExpiringProduct joins a due product with its client for notice delivery.
type ExpiringProduct struct {
	ProductID   int64
	ProductName string
	ExpiryDate  time.Time
	Status      model.ProductStatus
	ClientID    string
	ClientName  string
	WhatsApp    string
	OwnerUserID int64
}

// ProductRepository is the port for the client_products table.
type ProductRepository interface {
	Insert(ctx context.Context, qx any, p *model.ClientProduct) error
	ByClient(ctx context.Context, qx any, clientID string, ownerScope *int64) ([]*model.ClientProduct, error)
	FindByID(ctx context.Context, qx any, id int64, ownerScope *int64) (*model.ClientProduct, error)
	UpdateField(ctx context.Context, qx any, id int64, field model.ProductField, value string, ownerScope *int64) (bool, error)
	// Renew rewrites expiry/notice dates and status in one statement.
	Renew(ctx context.Context, qx any, id int64, expiry, notice time.Time, status model.ProductStatus, ownerScope *int64) (bool, error)
	Delete(ctx context.Context, qx any, id int64, ownerScope *int64) (bool, error)
	// DueForNotice returns products whose notice date has arrived and which
	// were not already noticed on `day`.
	DueForNotice(ctx context.Context, qx any, day time.Time) ([]*ExpiringProduct, error)
	MarkNoticed(ctx context.Context, qx any, id int64, day time.Time) error
	Count(ctx context.Context, qx any, ownerScope *int64) (int, error)
	CountExpiringBefore(ctx context.Context, qx any, deadline time.Time, ownerScope *int64) (int, error)
}
