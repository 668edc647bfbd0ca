package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"client-manager-bot/internal/domain"
	"client-manager-bot/internal/domain/model"
	"client-manager-bot/internal/domain/ports/repository"
)

var _ repository.ProductRepository = (*PostgresProductRepo)(nil)

// PostgresProductRepo persists client products. Owner scoping goes through the
// owning client row.
type PostgresProductRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresProductRepo(pool *pgxpool.Pool) *PostgresProductRepo {
	return &PostgresProductRepo{pool: pool}
}

const productColumns = `p.id, p.client_id, p.product_name, p.contract_date, p.expiry_date, p.notice_date,
       p.status, p.product_notes, p.service_username, p.service_password, p.added_by_user_id, p.last_notice_sent_at`

func scanProduct(row pgx.Row) (*model.ClientProduct, error) {
	var p model.ClientProduct
	err := row.Scan(&p.ID, &p.ClientID, &p.ProductName, &p.ContractDate, &p.ExpiryDate, &p.NoticeDate,
		&p.Status, &p.ProductNotes, &p.ServiceUsername, &p.ServicePassword, &p.AddedByUserID, &p.LastNoticeSent)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *PostgresProductRepo) Insert(ctx context.Context, qx any, p *model.ClientProduct) error {
	ex, err := getExecutor(r.pool, qx)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO client_products (
  client_id, product_name, contract_date, expiry_date, notice_date,
  status, product_notes, service_username, service_password, added_by_user_id
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
RETURNING id;`
	err = ex.QueryRow(ctx, q, p.ClientID, p.ProductName, p.ContractDate, p.ExpiryDate, p.NoticeDate,
		p.Status, p.ProductNotes, p.ServiceUsername, p.ServicePassword, p.AddedByUserID).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

func (r *PostgresProductRepo) ByClient(ctx context.Context, qx any, clientID string, ownerScope *int64) ([]*model.ClientProduct, error) {
	ex, err := getExecutor(r.pool, qx)
	if err != nil {
		return nil, err
	}
	const q = `
SELECT ` + productColumns + `
  FROM client_products p
  JOIN clients c ON c.id = p.client_id
 WHERE p.client_id = $1
   AND ($2::bigint IS NULL OR c.owner_user_id = $2)
 ORDER BY p.id;`
	rows, err := ex.Query(ctx, q, clientID, ownerScope)
	if err != nil {
		return nil, fmt.Errorf("products of %s: %w", clientID, err)
	}
	defer rows.Close()
	return collectProducts(rows)
}

func collectProducts(rows pgx.Rows) ([]*model.ClientProduct, error) {
	var out []*model.ClientProduct
	for rows.Next() {
		var p model.ClientProduct
		err := rows.Scan(&p.ID, &p.ClientID, &p.ProductName, &p.ContractDate, &p.ExpiryDate, &p.NoticeDate,
			&p.Status, &p.ProductNotes, &p.ServiceUsername, &p.ServicePassword, &p.AddedByUserID, &p.LastNoticeSent)
		if err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

func (r *PostgresProductRepo) FindByID(ctx context.Context, qx any, id int64, ownerScope *int64) (*model.ClientProduct, error) {
	ex, err := getExecutor(r.pool, qx)
	if err != nil {
		return nil, err
	}
	const q = `
SELECT ` + productColumns + `
  FROM client_products p
  JOIN clients c ON c.id = p.client_id
 WHERE p.id = $1
   AND ($2::bigint IS NULL OR c.owner_user_id = $2);`
	return scanProduct(ex.QueryRow(ctx, q, id, ownerScope))
}

func (r *PostgresProductRepo) UpdateField(ctx context.Context, qx any, id int64, field model.ProductField, value string, ownerScope *int64) (bool, error) {
	ex, err := getExecutor(r.pool, qx)
	if err != nil {
		return false, err
	}
	// field comes from the closed ProductField set, never raw user input.
	var column string
	switch field {
	case model.ProductFieldName:
		column = "product_name"
	case model.ProductFieldExpiryDate:
		column = "expiry_date"
	case model.ProductFieldStatus:
		column = "status"
	case model.ProductFieldNotes:
		column = "product_notes"
	case model.ProductFieldServiceUsername:
		column = "service_username"
	case model.ProductFieldServicePassword:
		column = "service_password"
	default:
		return false, fmt.Errorf("product field %q: %w", field, domain.ErrFieldNotUpdatable)
	}
	q := fmt.Sprintf(`
UPDATE client_products p SET %s = $1
  FROM clients c
 WHERE p.id = $2 AND c.id = p.client_id
   AND ($3::bigint IS NULL OR c.owner_user_id = $3);`, column)
	tag, err := ex.Exec(ctx, q, value, id, ownerScope)
	if err != nil {
		return false, fmt.Errorf("update product %d: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PostgresProductRepo) Renew(ctx context.Context, qx any, id int64, expiry, notice time.Time, status model.ProductStatus, ownerScope *int64) (bool, error) {
	ex, err := getExecutor(r.pool, qx)
	if err != nil {
		return false, err
	}
	const q = `
UPDATE client_products p
   SET expiry_date = $1, notice_date = $2, status = $3, last_notice_sent_at = NULL
  FROM clients c
 WHERE p.id = $4 AND c.id = p.client_id
   AND ($5::bigint IS NULL OR c.owner_user_id = $5);`
	tag, err := ex.Exec(ctx, q, expiry, notice, status, id, ownerScope)
	if err != nil {
		return false, fmt.Errorf("renew product %d: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PostgresProductRepo) Delete(ctx context.Context, qx any, id int64, ownerScope *int64) (bool, error) {
	ex, err := getExecutor(r.pool, qx)
	if err != nil {
		return false, err
	}
	const q = `
DELETE FROM client_products p
 USING clients c
 WHERE p.id = $1 AND c.id = p.client_id
   AND ($2::bigint IS NULL OR c.owner_user_id = $2);`
	tag, err := ex.Exec(ctx, q, id, ownerScope)
	if err != nil {
		return false, fmt.Errorf("delete product %d: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PostgresProductRepo) DueForNotice(ctx context.Context, qx any, day time.Time) ([]*repository.ExpiringProduct, error) {
	ex, err := getExecutor(r.pool, qx)
	if err != nil {
		return nil, err
	}
	const q = `
SELECT p.id, p.product_name, p.expiry_date, p.status,
       c.id, c.name, c.whatsapp, c.owner_user_id
  FROM client_products p
  JOIN clients c ON c.id = p.client_id
 WHERE p.notice_date <= $1
   AND p.status <> 'Expired'
   AND (p.last_notice_sent_at IS NULL OR p.last_notice_sent_at::date < $1::date)
 ORDER BY p.id;`
	rows, err := ex.Query(ctx, q, day)
	if err != nil {
		return nil, fmt.Errorf("due for notice: %w", err)
	}
	defer rows.Close()

	var out []*repository.ExpiringProduct
	for rows.Next() {
		var e repository.ExpiringProduct
		if err := rows.Scan(&e.ProductID, &e.ProductName, &e.ExpiryDate, &e.Status,
			&e.ClientID, &e.ClientName, &e.WhatsApp, &e.OwnerUserID); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (r *PostgresProductRepo) MarkNoticed(ctx context.Context, qx any, id int64, day time.Time) error {
	ex, err := getExecutor(r.pool, qx)
	if err != nil {
		return err
	}
	if _, err := ex.Exec(ctx,
		`UPDATE client_products SET last_notice_sent_at = $1 WHERE id = $2;`, day, id); err != nil {
		return fmt.Errorf("mark noticed %d: %w", id, err)
	}
	return nil
}

func (r *PostgresProductRepo) Count(ctx context.Context, qx any, ownerScope *int64) (int, error) {
	ex, err := getExecutor(r.pool, qx)
	if err != nil {
		return 0, err
	}
	const q = `
SELECT COUNT(*)
  FROM client_products p
  JOIN clients c ON c.id = p.client_id
 WHERE $1::bigint IS NULL OR c.owner_user_id = $1;`
	var n int
	if err := ex.QueryRow(ctx, q, ownerScope).Scan(&n); err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return n, nil
}

func (r *PostgresProductRepo) CountExpiringBefore(ctx context.Context, qx any, deadline time.Time, ownerScope *int64) (int, error) {
	ex, err := getExecutor(r.pool, qx)
	if err != nil {
		return 0, err
	}
	const q = `
SELECT COUNT(*)
  FROM client_products p
  JOIN clients c ON c.id = p.client_id
 WHERE p.expiry_date < $1
   AND ($2::bigint IS NULL OR c.owner_user_id = $2);`
	var n int
	if err := ex.QueryRow(ctx, q, deadline, ownerScope).Scan(&n); err != nil {
		return 0, fmt.Errorf("count expiring: %w", err)
	}
	return n, nil
}
