package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/josh-kwaku/ledgerbook/internal/domain"
)

const categoryColumns = `id, name, description, created_at`

type CategoryRepository struct {
	db *sql.DB
}

func NewCategoryRepository(db *sql.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

func (r *CategoryRepository) Create(ctx context.Context, c *domain.AccountCategory) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO account_categories (id, name, description, created_at)
		VALUES ($1, $2, $3, $4)`,
		c.ID, c.Name, c.Description, c.CreatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return fmt.Errorf("Create: category %q: %w", c.Name, domain.ErrDuplicate)
		}
		return domain.StorageFailure("Create", err)
	}
	return nil
}

func (r *CategoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.AccountCategory, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM account_categories WHERE id = $1`, id,
	)
	c, err := scanCategory(row)
	if err != nil {
		return nil, wrap("GetByID", err)
	}
	return c, nil
}

func (r *CategoryRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.AccountCategory, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM account_categories WHERE id = $1 FOR UPDATE`, id,
	)
	c, err := scanCategory(row)
	if err != nil {
		return nil, wrap("GetForUpdate", err)
	}
	return c, nil
}

func (r *CategoryRepository) List(ctx context.Context) ([]domain.AccountCategory, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+categoryColumns+` FROM account_categories ORDER BY name`,
	)
	if err != nil {
		return nil, domain.StorageFailure("List", err)
	}
	defer rows.Close()

	var categories []domain.AccountCategory
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, domain.StorageFailure("List: scan", err)
		}
		categories = append(categories, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StorageFailure("List: rows", err)
	}
	return categories, nil
}

func (r *CategoryRepository) Update(ctx context.Context, c *domain.AccountCategory) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE account_categories SET name = $1, description = $2 WHERE id = $3`,
		c.Name, c.Description, c.ID,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return fmt.Errorf("Update: category %q: %w", c.Name, domain.ErrDuplicate)
		}
		return domain.StorageFailure("Update", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return domain.StorageFailure("Update: rows affected", err)
	}
	if n == 0 {
		return fmt.Errorf("Update: %w", domain.ErrNotFound)
	}
	return nil
}

func (r *CategoryRepository) Delete(ctx context.Context, tx *sql.Tx, id uuid.UUID) (bool, error) {
	res, err := tx.ExecContext(ctx, `DELETE FROM account_categories WHERE id = $1`, id)
	if err != nil {
		return false, domain.StorageFailure("Delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, domain.StorageFailure("Delete: rows affected", err)
	}
	return n > 0, nil
}

func scanCategory(s scanner) (*domain.AccountCategory, error) {
	var c domain.AccountCategory
	if err := s.Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}
