package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"client-manager-bot/internal/domain/ports/repository"
)

// Compile-time check
var _ StatsUseCase = (*statsUC)(nil)

// Totals is the stats snapshot shown by /stats and the admin dashboard.
type Totals struct {
	Clients      int `json:"clients"`
	Products     int `json:"products"`
	ExpiringSoon int `json:"expiring_soon"`
	Users        int `json:"users"`
}

// ExpiringSoonDays is the lookahead window for the expiring-soon counter.
const ExpiringSoonDays = 7

type StatsUseCase interface {
	Totals(ctx context.Context, ownerScope *int64) (*Totals, error)
}

type statsUC struct {
	clients  repository.ClientRepository
	products repository.ProductRepository
	users    repository.UserRepository
	log      *zerolog.Logger
}

func NewStatsUseCase(
	clients repository.ClientRepository,
	products repository.ProductRepository,
	users repository.UserRepository,
	logger *zerolog.Logger,
) *statsUC {
	return &statsUC{clients: clients, products: products, users: users, log: logger}
}

func (s *statsUC) Totals(ctx context.Context, ownerScope *int64) (*Totals, error) {
	clients, err := s.clients.Count(ctx, nil, ownerScope)
	if err != nil {
		return nil, err
	}
	products, err := s.products.Count(ctx, nil, ownerScope)
	if err != nil {
		return nil, err
	}
	deadline := time.Now().AddDate(0, 0, ExpiringSoonDays)
	expiring, err := s.products.CountExpiringBefore(ctx, nil, deadline, ownerScope)
	if err != nil {
		return nil, err
	}
	users, err := s.users.Count(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &Totals{Clients: clients, Products: products, ExpiringSoon: expiring, Users: users}, nil
}
