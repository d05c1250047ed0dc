// Package accounts combines the upstream client calls into the
// accounts-with-positions view and serves it with cache-first reads.
package accounts

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"oddogate/internal/domain"
)

// UpstreamClient is the part of the brokerage client this module needs.
type UpstreamClient interface {
	GetAccounts(ctx context.Context, session domain.Session) ([]domain.Account, error)
	GetPositions(ctx context.Context, session domain.Session, accountNumber, asOf string) ([]domain.Position, error)
}

// Service fetches account data from the upstream API.
type Service struct {
	client UpstreamClient
	log    zerolog.Logger
}

// NewService creates an accounts service.
func NewService(client UpstreamClient, log zerolog.Logger) *Service {
	return &Service{
		client: client,
		log:    log.With().Str("service", "accounts").Logger(),
	}
}

// FetchAccountsWithPositions lists the session's accounts and attaches
// each account's positions, valued at the last business day.
func (s *Service) FetchAccountsWithPositions(ctx context.Context, session domain.Session) ([]domain.AccountWithPositions, error) {
	accounts, err := s.client.GetAccounts(ctx, session)
	if err != nil {
		return nil, err
	}

	result := make([]domain.AccountWithPositions, 0, len(accounts))
	for _, account := range accounts {
		positions, err := s.client.GetPositions(ctx, session, account.AccountNumber, "")
		if err != nil {
			return nil, fmt.Errorf("account %s: %w", account.AccountNumber, err)
		}
		result = append(result, domain.AccountWithPositions{
			AccountNumber: account.AccountNumber,
			Label:         account.Label,
			Value:         account.Value,
			Positions:     positions,
		})
	}

	s.log.Debug().Int("accounts", len(result)).Msg("Fetched accounts with positions")
	return result, nil
}
