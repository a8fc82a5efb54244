package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/ledgerbook/internal/domain"
	"github.com/josh-kwaku/ledgerbook/internal/logging"
)

func (s *AccountService) CreateCategory(ctx context.Context, name string, description *string) (*domain.AccountCategory, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("CreateCategory: %w", domain.Invalid("name is required"))
	}

	c := &domain.AccountCategory{
		ID:          uuid.New(),
		Name:        name,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.categories.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("CreateCategory: %w", err)
	}
	logging.FromContext(ctx).Info("category created", "category_id", c.ID, "name", c.Name)
	return c, nil
}

func (s *AccountService) GetCategory(ctx context.Context, id uuid.UUID) (*domain.AccountCategory, error) {
	c, err := s.categories.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("GetCategory: %w", err)
	}
	return c, nil
}

func (s *AccountService) ListCategories(ctx context.Context) ([]domain.AccountCategory, error) {
	cs, err := s.categories.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListCategories: %w", err)
	}
	return cs, nil
}

func (s *AccountService) UpdateCategory(ctx context.Context, id uuid.UUID, name string, description *string) (*domain.AccountCategory, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("UpdateCategory: %w", domain.Invalid("name is required"))
	}

	c, err := s.categories.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("UpdateCategory: %w", err)
	}
	c.Name = name
	c.Description = description
	if err := s.categories.Update(ctx, c); err != nil {
		return nil, fmt.Errorf("UpdateCategory: %w", err)
	}
	return c, nil
}

// DeleteCategory refuses while any account still belongs to the category and
// names every blocker in the error.
func (s *AccountService) DeleteCategory(ctx context.Context, id uuid.UUID) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, domain.StorageFailure("DeleteCategory: begin tx", err)
	}
	defer tx.Rollback()

	c, err := s.categories.GetForUpdate(ctx, tx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("DeleteCategory: %w", err)
	}

	blockers, err := s.accounts.ListByCategory(ctx, tx, id)
	if err != nil {
		return false, fmt.Errorf("DeleteCategory: %w", err)
	}
	if len(blockers) > 0 {
		names := make([]string, len(blockers))
		for i, a := range blockers {
			names[i] = fmt.Sprintf("%s (%s)", a.Name, a.Code)
		}
		return false, fmt.Errorf("DeleteCategory: %w",
			domain.Invalid("category %q still has accounts: %s", c.Name, strings.Join(names, ", ")))
	}

	deleted, err := s.categories.Delete(ctx, tx, id)
	if err != nil {
		return false, fmt.Errorf("DeleteCategory: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, domain.StorageFailure("DeleteCategory: commit", err)
	}
	logging.FromContext(ctx).Info("category deleted", "category_id", id)
	return deleted, nil
}
