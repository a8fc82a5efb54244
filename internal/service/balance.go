package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/ledgerbook/internal/domain"
	"github.com/josh-kwaku/ledgerbook/internal/repository"
)

type accountGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error)
}

// BalanceService derives balances from the journal; it never writes.
// Balances are debit-positive: assets and expenses normally carry a positive
// balance, liabilities, equity and income a negative one.
type BalanceService struct {
	balances balanceRepository
	accounts accountGetter
}

func NewBalanceService(balances balanceRepository, accounts accountGetter) *BalanceService {
	return &BalanceService{balances: balances, accounts: accounts}
}

func (s *BalanceService) AccountBalance(ctx context.Context, accountID uuid.UUID, asOf *time.Time) (decimal.Decimal, error) {
	if _, err := s.accounts.GetByID(ctx, accountID); err != nil {
		return decimal.Zero, fmt.Errorf("AccountBalance: %w", err)
	}
	balance, err := s.balances.AccountBalance(ctx, accountID, asOf)
	if err != nil {
		return decimal.Zero, fmt.Errorf("AccountBalance: %w", err)
	}
	return balance, nil
}

func (s *BalanceService) AccountBalances(ctx context.Context, f repository.BalanceFilter) (map[uuid.UUID]decimal.Decimal, error) {
	if f.Type != nil && !f.Type.IsValid() {
		return nil, fmt.Errorf("AccountBalances: %w", domain.Invalid("invalid account type %q", *f.Type))
	}
	balances, err := s.balances.AccountBalances(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("AccountBalances: %w", err)
	}
	return balances, nil
}
