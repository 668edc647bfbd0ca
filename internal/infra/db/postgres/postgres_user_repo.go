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

var _ repository.UserRepository = (*PostgresUserRepo)(nil)

type PostgresUserRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresUserRepo(pool *pgxpool.Pool) *PostgresUserRepo {
	return &PostgresUserRepo{pool: pool}
}

const userColumns = `id, name, role, client_id, whatsapp_id, authorized_at, authorization_end, updated_at`

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Name, &u.Role, &u.ClientID, &u.WhatsAppID,
		&u.AuthorizedAt, &u.AuthorizationEnd, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *PostgresUserRepo) Upsert(ctx context.Context, qx any, u *model.User) error {
	ex, err := getExecutor(r.pool, qx)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO users (id, name, role, client_id, whatsapp_id, authorized_at, authorization_end, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (id) DO UPDATE SET
  name=$2, role=$3, client_id=$4, whatsapp_id=$5, authorization_end=$7, updated_at=$8;`
	if _, err := ex.Exec(ctx, q, u.ID, u.Name, u.Role, u.ClientID, u.WhatsAppID,
		u.AuthorizedAt, u.AuthorizationEnd, u.UpdatedAt); err != nil {
		return fmt.Errorf("upsert user %d: %w", u.ID, err)
	}
	return nil
}

func (r *PostgresUserRepo) FindByID(ctx context.Context, qx any, id int64) (*model.User, error) {
	ex, err := getExecutor(r.pool, qx)
	if err != nil {
		return nil, err
	}
	return scanUser(ex.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1;`, id))
}

func (r *PostgresUserRepo) FindByWhatsAppID(ctx context.Context, qx any, waID string) (*model.User, error) {
	ex, err := getExecutor(r.pool, qx)
	if err != nil {
		return nil, err
	}
	return scanUser(ex.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE whatsapp_id = $1;`, waID))
}

func (r *PostgresUserRepo) LinkWhatsAppID(ctx context.Context, qx any, id int64, waID string) error {
	ex, err := getExecutor(r.pool, qx)
	if err != nil {
		return err
	}
	tag, err := ex.Exec(ctx, `UPDATE users SET whatsapp_id = $1, updated_at = NOW() WHERE id = $2;`, waID, id)
	if err != nil {
		return fmt.Errorf("link whatsapp id: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (r *PostgresUserRepo) Count(ctx context.Context, qx any) (int, error) {
	ex, err := getExecutor(r.pool, qx)
	if err != nil {
		return 0, err
	}
	var n int
	if err := ex.QueryRow(ctx, `SELECT COUNT(*) FROM users;`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}
