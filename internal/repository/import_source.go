package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/josh-kwaku/ledgerbook/internal/domain"
)

const importSourceColumns = `id, name, type, COALESCE(config, ''), is_active, created_at`

type ImportSourceRepository struct {
	db *sql.DB
}

func NewImportSourceRepository(db *sql.DB) *ImportSourceRepository {
	return &ImportSourceRepository{db: db}
}

func (r *ImportSourceRepository) Create(ctx context.Context, s *domain.ImportSource) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO import_sources (id, name, type, config, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		s.ID, s.Name, s.Type, s.Config, s.IsActive, s.CreatedAt,
	)
	if err != nil {
		return domain.StorageFailure("Create", err)
	}
	return nil
}

func (r *ImportSourceRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.ImportSource, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+importSourceColumns+` FROM import_sources WHERE id = $1`, id,
	)
	s, err := scanImportSource(row)
	if err != nil {
		return nil, wrap("GetByID", err)
	}
	return s, nil
}

func (r *ImportSourceRepository) List(ctx context.Context, activeOnly bool) ([]domain.ImportSource, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+importSourceColumns+` FROM import_sources
		WHERE NOT $1 OR is_active ORDER BY created_at`, activeOnly,
	)
	if err != nil {
		return nil, domain.StorageFailure("List", err)
	}
	return collectImportSources("List", rows)
}

func (r *ImportSourceRepository) ListActiveByType(ctx context.Context, t domain.ImportSourceType) ([]domain.ImportSource, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+importSourceColumns+` FROM import_sources
		WHERE is_active AND type = $1 ORDER BY created_at`, t,
	)
	if err != nil {
		return nil, domain.StorageFailure("ListActiveByType", err)
	}
	return collectImportSources("ListActiveByType", rows)
}

func (r *ImportSourceRepository) Update(ctx context.Context, s *domain.ImportSource) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE import_sources SET name = $1, type = $2, config = $3, is_active = $4 WHERE id = $5`,
		s.Name, s.Type, s.Config, s.IsActive, s.ID,
	)
	if err != nil {
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

func collectImportSources(op string, rows *sql.Rows) ([]domain.ImportSource, error) {
	defer rows.Close()

	var sources []domain.ImportSource
	for rows.Next() {
		s, err := scanImportSource(rows)
		if err != nil {
			return nil, domain.StorageFailure(op+": scan", err)
		}
		sources = append(sources, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StorageFailure(op+": rows", err)
	}
	return sources, nil
}

func scanImportSource(s scanner) (*domain.ImportSource, error) {
	var src domain.ImportSource
	if err := s.Scan(&src.ID, &src.Name, &src.Type, &src.Config, &src.IsActive, &src.CreatedAt); err != nil {
		return nil, err
	}
	return &src, nil
}
