package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"client-manager-bot/internal/domain"
	"client-manager-bot/internal/domain/model"
	"client-manager-bot/internal/domain/ports/repository"
)

var _ repository.ClientRepository = (*PostgresClientRepo)(nil)

// PostgresClientRepo persists clients. Every query carries the owner-scope
// predicate: a NULL scope matches all rows, otherwise only the owner's.
type PostgresClientRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresClientRepo(pool *pgxpool.Pool) *PostgresClientRepo {
	return &PostgresClientRepo{pool: pool}
}

const clientColumns = `id, name, whatsapp, email, general_notes, owner_user_id, created_at`

func scanClient(row pgx.Row) (*model.Client, error) {
	var c model.Client
	if err := row.Scan(&c.ID, &c.Name, &c.WhatsApp, &c.Email, &c.GeneralNotes, &c.OwnerUserID, &c.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *PostgresClientRepo) Insert(ctx context.Context, qx any, c *model.Client) error {
	ex, err := getExecutor(r.pool, qx)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO clients (id, name, whatsapp, email, general_notes, owner_user_id, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7);`
	if _, err := ex.Exec(ctx, q, c.ID, c.Name, c.WhatsApp, c.Email, c.GeneralNotes, c.OwnerUserID, c.CreatedAt); err != nil {
		return fmt.Errorf("insert client: %w", err)
	}
	return nil
}

func (r *PostgresClientRepo) FindByQuery(ctx context.Context, qx any, query string, ownerScope *int64) (*model.Client, error) {
	ex, err := getExecutor(r.pool, qx)
	if err != nil {
		return nil, err
	}
	const q = `
SELECT ` + clientColumns + `
  FROM clients
 WHERE (id = $1 OR LOWER(name) = LOWER($1))
   AND ($2::bigint IS NULL OR owner_user_id = $2)
 ORDER BY (id = $1) DESC
 LIMIT 1;`
	return scanClient(ex.QueryRow(ctx, q, query, ownerScope))
}

func (r *PostgresClientRepo) List(ctx context.Context, qx any, search string, ownerScope *int64) ([]*model.Client, error) {
	ex, err := getExecutor(r.pool, qx)
	if err != nil {
		return nil, err
	}
	const q = `
SELECT ` + clientColumns + `
  FROM clients
 WHERE ($1 = '' OR name ILIKE '%' || $1 || '%' OR id = $1)
   AND ($2::bigint IS NULL OR owner_user_id = $2)
 ORDER BY name, id;`
	rows, err := ex.Query(ctx, q, search, ownerScope)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	defer rows.Close()

	var out []*model.Client
	for rows.Next() {
		var c model.Client
		if err := rows.Scan(&c.ID, &c.Name, &c.WhatsApp, &c.Email, &c.GeneralNotes, &c.OwnerUserID, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

func (r *PostgresClientRepo) UpdateField(ctx context.Context, qx any, id string, field model.ClientField, value string, ownerScope *int64) (bool, error) {
	ex, err := getExecutor(r.pool, qx)
	if err != nil {
		return false, err
	}
	// field comes from the closed ClientField set, never raw user input.
	var column string
	switch field {
	case model.ClientFieldName:
		column = "name"
	case model.ClientFieldWhatsApp:
		column = "whatsapp"
	case model.ClientFieldEmail:
		column = "email"
	case model.ClientFieldGeneralNotes:
		column = "general_notes"
	default:
		return false, fmt.Errorf("client field %q: %w", field, domain.ErrFieldNotUpdatable)
	}
	q := fmt.Sprintf(`UPDATE clients SET %s = $1 WHERE id = $2 AND ($3::bigint IS NULL OR owner_user_id = $3);`, column)
	tag, err := ex.Exec(ctx, q, value, id, ownerScope)
	if err != nil {
		return false, fmt.Errorf("update client %s: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PostgresClientRepo) Delete(ctx context.Context, qx any, id string, ownerScope *int64) (bool, error) {
	ex, err := getExecutor(r.pool, qx)
	if err != nil {
		return false, err
	}
	tag, err := ex.Exec(ctx,
		`DELETE FROM clients WHERE id = $1 AND ($2::bigint IS NULL OR owner_user_id = $2);`, id, ownerScope)
	if err != nil {
		return false, fmt.Errorf("delete client %s: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PostgresClientRepo) Count(ctx context.Context, qx any, ownerScope *int64) (int, error) {
	ex, err := getExecutor(r.pool, qx)
	if err != nil {
		return 0, err
	}
	var n int
	err = ex.QueryRow(ctx,
		`SELECT COUNT(*) FROM clients WHERE $1::bigint IS NULL OR owner_user_id = $1;`, ownerScope).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count clients: %w", err)
	}
	return n, nil
}
