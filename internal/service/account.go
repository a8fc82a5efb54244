package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/ledgerbook/internal/domain"
	"github.com/josh-kwaku/ledgerbook/internal/logging"
	"github.com/josh-kwaku/ledgerbook/internal/repository"
)

// AccountService is the chart of accounts: categories, accounts and code
// assignment.
type AccountService struct {
	categories categoryRepository
	accounts   accountRepository
	entries    entryCounter
	db         *sql.DB
}

func NewAccountService(categories categoryRepository, accounts accountRepository, entries entryCounter, db *sql.DB) *AccountService {
	return &AccountService{categories: categories, accounts: accounts, entries: entries, db: db}
}

type CreateAccountRequest struct {
	CategoryID  *uuid.UUID
	Name        string
	Type        domain.AccountType
	Description *string
	IsActive    bool
}

// UpdateAccountRequest replaces every mutable field. Type may be left empty;
// when set it must match the stored type.
type UpdateAccountRequest struct {
	CategoryID  *uuid.UUID
	Name        string
	Type        domain.AccountType
	Description *string
	IsActive    bool
}

func (s *AccountService) CreateAccount(ctx context.Context, req CreateAccountRequest) (*domain.Account, error) {
	log := logging.FromContext(ctx)

	if strings.TrimSpace(req.Name) == "" {
		return nil, fmt.Errorf("CreateAccount: %w", domain.Invalid("name is required"))
	}
	if !req.Type.IsValid() {
		return nil, fmt.Errorf("CreateAccount: %w", domain.Invalid("invalid account type %q", req.Type))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, domain.StorageFailure("CreateAccount: begin tx", err)
	}
	defer tx.Rollback()

	if req.CategoryID != nil {
		if _, err := s.categories.GetForUpdate(ctx, tx, *req.CategoryID); err != nil {
			return nil, fmt.Errorf("CreateAccount: category: %w", err)
		}
	}

	prefix := req.Type.CodePrefix()
	if err := repository.LockScope(ctx, tx, "acct-code:"+prefix); err != nil {
		return nil, fmt.Errorf("CreateAccount: %w", err)
	}
	last, err := s.accounts.LastCode(ctx, tx, prefix)
	if err != nil {
		return nil, fmt.Errorf("CreateAccount: %w", err)
	}
	code, restarted := domain.NextAccountCode(req.Type, last)
	if restarted {
		log.Warn("unparseable account code, restarting sequence", "last_code", last, "code", code)
	}

	now := time.Now().UTC()
	account := &domain.Account{
		ID:          uuid.New(),
		CategoryID:  req.CategoryID,
		Name:        strings.TrimSpace(req.Name),
		Type:        req.Type,
		Code:        code,
		Description: req.Description,
		IsActive:    req.IsActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.accounts.Create(ctx, tx, account); err != nil {
		return nil, fmt.Errorf("CreateAccount: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, domain.StorageFailure("CreateAccount: commit", err)
	}

	log.Info("account created",
		"account_id", account.ID,
		"code", account.Code,
		"type", account.Type,
	)
	return account, nil
}

func (s *AccountService) GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	account, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("GetAccount: %w", err)
	}
	return account, nil
}

func (s *AccountService) ListAccounts(ctx context.Context, f repository.AccountFilter) ([]domain.Account, error) {
	if f.Type != nil && !f.Type.IsValid() {
		return nil, fmt.Errorf("ListAccounts: %w", domain.Invalid("invalid account type %q", *f.Type))
	}
	accounts, err := s.accounts.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("ListAccounts: %w", err)
	}
	return accounts, nil
}

func (s *AccountService) UpdateAccount(ctx context.Context, id uuid.UUID, req UpdateAccountRequest) (*domain.Account, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, fmt.Errorf("UpdateAccount: %w", domain.Invalid("name is required"))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, domain.StorageFailure("UpdateAccount: begin tx", err)
	}
	defer tx.Rollback()

	account, err := s.accounts.GetForUpdate(ctx, tx, id)
	if err != nil {
		return nil, fmt.Errorf("UpdateAccount: %w", err)
	}
	if req.Type != "" && req.Type != account.Type {
		return nil, fmt.Errorf("UpdateAccount: %w",
			domain.Invalid("account type cannot be changed from %s to %s", account.Type, req.Type))
	}
	if req.CategoryID != nil {
		if _, err := s.categories.GetForUpdate(ctx, tx, *req.CategoryID); err != nil {
			return nil, fmt.Errorf("UpdateAccount: category: %w", err)
		}
	}

	account.CategoryID = req.CategoryID
	account.Name = strings.TrimSpace(req.Name)
	account.Description = req.Description
	account.IsActive = req.IsActive
	account.UpdatedAt = time.Now().UTC()
	if err := s.accounts.Update(ctx, tx, account); err != nil {
		return nil, fmt.Errorf("UpdateAccount: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, domain.StorageFailure("UpdateAccount: commit", err)
	}
	logging.FromContext(ctx).Info("account updated", "account_id", id)
	return account, nil
}

func (s *AccountService) DeleteAccount(ctx context.Context, id uuid.UUID) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, domain.StorageFailure("DeleteAccount: begin tx", err)
	}
	defer tx.Rollback()

	account, err := s.accounts.GetForUpdate(ctx, tx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("DeleteAccount: %w", err)
	}

	n, err := s.entries.CountByAccount(ctx, tx, id)
	if err != nil {
		return false, fmt.Errorf("DeleteAccount: %w", err)
	}
	if n > 0 {
		return false, fmt.Errorf("DeleteAccount: %w",
			domain.Invalid("account %s (%s) has journal entries", account.Name, account.Code))
	}

	deleted, err := s.accounts.Delete(ctx, tx, id)
	if err != nil {
		return false, fmt.Errorf("DeleteAccount: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, domain.StorageFailure("DeleteAccount: commit", err)
	}
	logging.FromContext(ctx).Info("account deleted", "account_id", id, "code", account.Code)
	return deleted, nil
}
